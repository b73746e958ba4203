package main

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/charmbracelet/glamour"
	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"
	"github.com/hylla/taskmon/internal/adapters/server/common"
	"github.com/hylla/taskmon/internal/app"
	"github.com/hylla/taskmon/internal/domain"
)

// markdownWrap is the glamour word-wrap width for detail views.
const markdownWrap = 96

var (
	headerStyle = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("230")).Padding(0, 1)
	cellStyle   = lipgloss.NewStyle().Padding(0, 1)
	borderStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("62"))
)

// printJSON writes v as indented JSON.
func (c *cli) printJSON(v any) error {
	enc := json.NewEncoder(c.stdout)
	enc.SetIndent("", "  ")
	if err := enc.Encode(v); err != nil {
		return fmt.Errorf("encode json output: %w", err)
	}
	return nil
}

// printTable renders rows under headers with a rounded border.
func (c *cli) printTable(headers []string, rows [][]string) error {
	if len(rows) == 0 {
		_, err := fmt.Fprintln(c.stdout, "(none)")
		return err
	}
	t := table.New().
		Border(lipgloss.RoundedBorder()).
		BorderStyle(borderStyle).
		Headers(headers...).
		Rows(rows...).
		StyleFunc(func(row, _ int) lipgloss.Style {
			if row == table.HeaderRow {
				return headerStyle
			}
			return cellStyle
		})
	_, err := fmt.Fprintln(c.stdout, t.Render())
	return err
}

// printMarkdown renders markdown through glamour, falling back to the raw text.
func (c *cli) printMarkdown(markdown string) error {
	_, err := fmt.Fprintln(c.stdout, c.renderMarkdown(markdown))
	return err
}

func (c *cli) renderMarkdown(markdown string) string {
	markdown = strings.TrimSpace(markdown)
	if markdown == "" {
		return ""
	}
	opts := []glamour.TermRendererOption{glamour.WithWordWrap(markdownWrap)}
	if c.markdownStyle == "auto" {
		opts = append(opts, glamour.WithAutoStyle())
	} else {
		opts = append(opts, glamour.WithStandardStyle(c.markdownStyle))
	}
	renderer, err := glamour.NewTermRenderer(opts...)
	if err != nil {
		return markdown
	}
	rendered, err := renderer.Render(markdown)
	if err != nil {
		return markdown
	}
	return strings.TrimRight(rendered, "\n")
}

// printActivities lists activities as JSON or a table.
func (c *cli) printActivities(svc *app.Service, activities []domain.Activity) error {
	views := common.ActivityViews(svc, activities)
	if c.jsonOut {
		return c.printJSON(map[string]any{"activities": views})
	}
	rows := make([][]string, 0, len(views))
	for _, v := range views {
		rows = append(rows, []string{
			v.ID,
			v.Title,
			v.Status,
			v.Priority,
			formatTime(v.StartTime),
			formatHours(v.EstimatedHours),
			formatOptionalHours(v.ActualHours),
		})
	}
	return c.printTable([]string{"ID", "TITLE", "STATUS", "PRIORITY", "START", "EST", "ACTUAL"}, rows)
}

// printActivity prints one activity as JSON or a one-line summary.
func (c *cli) printActivity(svc *app.Service, a domain.Activity) error {
	view := common.NewActivityView(a, svc.EffectiveStatus(a))
	if c.jsonOut {
		return c.printJSON(view)
	}
	_, err := fmt.Fprintf(c.stdout, "%s  %s  [%s]\n", view.ID, view.Title, view.Status)
	return err
}

// activityDetail is everything shown by activity show.
type activityDetail struct {
	Activity      common.ActivityView    `json:"activity"`
	TimeEntries   []common.TimeEntryView `json:"time_entries"`
	TotalHours    float64                `json:"total_hours"`
	Tags          []common.TagView       `json:"tags"`
	Comments      []common.CommentView   `json:"comments"`
	Prerequisites []common.ActivityView  `json:"prerequisites"`
	Dependents    []common.ActivityView  `json:"dependents"`
	Unblocked     bool                   `json:"unblocked"`
}

// activityMarkdown renders d as a markdown document.
func activityMarkdown(d activityDetail) string {
	a := d.Activity
	var b strings.Builder
	fmt.Fprintf(&b, "# %s\n\n", a.Title)
	fmt.Fprintf(&b, "| field | value |\n|---|---|\n")
	fmt.Fprintf(&b, "| id | `%s` |\n", a.ID)
	fmt.Fprintf(&b, "| status | %s |\n", a.Status)
	fmt.Fprintf(&b, "| priority | %s |\n", a.Priority)
	if a.Category != "" {
		fmt.Fprintf(&b, "| category | %s |\n", a.Category)
	}
	fmt.Fprintf(&b, "| owner | `%s` |\n", a.OwnerID)
	fmt.Fprintf(&b, "| start | %s |\n", formatTime(a.StartTime))
	if a.EndTime != nil {
		fmt.Fprintf(&b, "| end | %s |\n", formatTime(*a.EndTime))
	}
	fmt.Fprintf(&b, "| estimated | %sh |\n", formatHours(a.EstimatedHours))
	fmt.Fprintf(&b, "| tracked | %sh |\n", formatHours(d.TotalHours))
	fmt.Fprintf(&b, "| unblocked | %t |\n\n", d.Unblocked)

	if strings.TrimSpace(a.Description) != "" {
		fmt.Fprintf(&b, "%s\n\n", a.Description)
	}
	if len(d.Tags) > 0 {
		tags := make([]string, 0, len(d.Tags))
		for _, t := range d.Tags {
			tags = append(tags, "`"+t.Text+"`")
		}
		fmt.Fprintf(&b, "**Tags:** %s\n\n", strings.Join(tags, " "))
	}
	if len(d.Prerequisites) > 0 {
		b.WriteString("## Depends on\n\n")
		for _, p := range d.Prerequisites {
			fmt.Fprintf(&b, "- %s (%s)\n", p.Title, p.Status)
		}
		b.WriteString("\n")
	}
	if len(d.Dependents) > 0 {
		b.WriteString("## Blocks\n\n")
		for _, p := range d.Dependents {
			fmt.Fprintf(&b, "- %s (%s)\n", p.Title, p.Status)
		}
		b.WriteString("\n")
	}
	if len(d.TimeEntries) > 0 {
		b.WriteString("## Time\n\n")
		for _, e := range d.TimeEntries {
			fmt.Fprintf(&b, "- %s: %sh %s\n", formatTime(e.TrackedAt), formatHours(e.HoursSpent), e.Description)
		}
		b.WriteString("\n")
	}
	if len(d.Comments) > 0 {
		b.WriteString("## Comments\n\n")
		for _, cm := range d.Comments {
			fmt.Fprintf(&b, "> %s\n>\n> _%s_\n\n", cm.Text, formatTime(cm.CreatedAt))
		}
	}
	return b.String()
}

// dashboardMarkdown renders the metrics summary.
func dashboardMarkdown(d app.Dashboard, series []app.ProductivityPoint) string {
	var b strings.Builder
	b.WriteString("# Dashboard\n\n")
	fmt.Fprintf(&b, "- total activities: **%d**\n", d.TotalActivities)
	fmt.Fprintf(&b, "- activities today: **%d**\n", d.ActivitiesToday)
	fmt.Fprintf(&b, "- completion rate: **%.2f%%**\n", d.CompletionRate)
	fmt.Fprintf(&b, "- active users today: **%d**\n\n", d.ActiveUsersToday)

	b.WriteString("## Status\n\n| status | count |\n|---|---|\n")
	for _, st := range domain.AllStatuses() {
		fmt.Fprintf(&b, "| %s | %d |\n", st, d.StatusDistribution[st])
	}
	b.WriteString("\n")

	if len(d.Departments) > 0 {
		b.WriteString("## Departments\n\n| department | total | completed | rate |\n|---|---|---|---|\n")
		for _, dep := range d.Departments {
			fmt.Fprintf(&b, "| %s | %d | %d | %.2f%% |\n", dep.Department, dep.Total, dep.Completed, dep.CompletionRate)
		}
		b.WriteString("\n")
	}
	if len(d.Workload) > 0 {
		b.WriteString("## Workload\n\n| user | in progress |\n|---|---|\n")
		for _, w := range d.Workload {
			fmt.Fprintf(&b, "| %s | %d |\n", w.Username, w.InProgress)
		}
		b.WriteString("\n")
	}
	if len(series) > 0 {
		b.WriteString("## Completed per day\n\n| date | completed |\n|---|---|\n")
		for _, p := range series {
			fmt.Fprintf(&b, "| %s | %d |\n", p.Date, p.Completed)
		}
	}
	return b.String()
}

func formatTime(t time.Time) string {
	if t.IsZero() {
		return "-"
	}
	return t.Local().Format("2006-01-02 15:04")
}

func formatHours(h float64) string {
	return strconv.FormatFloat(h, 'f', -1, 64)
}

func formatOptionalHours(h *float64) string {
	if h == nil {
		return "-"
	}
	return formatHours(*h)
}
