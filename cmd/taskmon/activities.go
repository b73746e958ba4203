package main

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/hylla/taskmon/internal/adapters/server/common"
	"github.com/hylla/taskmon/internal/app"
	"github.com/hylla/taskmon/internal/domain"
	"github.com/spf13/cobra"
)

// activityCommand groups the activity lifecycle subcommands.
func (c *cli) activityCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:     "activity",
		Aliases: []string{"activities", "a"},
		Short:   "Create, list and progress activities",
	}
	cmd.AddCommand(
		c.activityCreateCommand(),
		c.activityListCommand(),
		c.activityShowCommand(),
		c.activityUpdateCommand(),
		c.activityCompleteCommand(),
		c.activityDeleteCommand(),
	)
	return cmd
}

func (c *cli) activityCreateCommand() *cobra.Command {
	var (
		in       app.CreateActivityInput
		priority string
		status   string
		start    string
	)
	cmd := &cobra.Command{
		Use:   "create",
		Short: "Create an activity",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			startTime, err := parseTimeFlag("start", start)
			if err != nil {
				return err
			}
			in.StartTime = startTime
			in.Priority = domain.NormalizePriority(priority)
			in.Status = domain.NormalizeStatus(status)
			return c.asActor(cmd, func(ctx context.Context, rt *runtime) error {
				a, err := rt.svc.CreateActivity(ctx, in)
				if err != nil {
					return fmt.Errorf("create activity: %w", err)
				}
				return c.printActivity(rt.svc, a)
			})
		},
	}
	f := cmd.Flags()
	f.StringVar(&in.Title, "title", "", "activity title")
	f.StringVar(&in.Description, "description", "", "activity description")
	f.StringVar(&priority, "priority", string(domain.PriorityMedium), "low|medium|high|urgent")
	f.StringVar(&in.Category, "category", "", "free-form category")
	f.Float64Var(&in.EstimatedHours, "estimate", 0, "estimated hours (> 0)")
	f.StringVar(&in.Comments, "comments", "", "free-form notes")
	f.StringVar(&in.OwnerID, "owner", "", "owner user id (defaults to the acting user)")
	f.StringVar(&status, "status", "", "initial status (admin only)")
	f.StringVar(&start, "start", "", "start time, RFC3339 or YYYY-MM-DD (defaults to now)")
	f.StringSliceVar(&in.Tags, "tag", nil, "tag to attach (repeatable)")
	_ = cmd.MarkFlagRequired("title")
	_ = cmd.MarkFlagRequired("estimate")
	return cmd
}

func (c *cli) activityListCommand() *cobra.Command {
	var sf scopeFlags
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List visible activities",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			scope, err := sf.scope()
			if err != nil {
				return err
			}
			return c.asActor(cmd, func(ctx context.Context, rt *runtime) error {
				list, err := rt.svc.ListActivities(ctx, scope)
				if err != nil {
					return fmt.Errorf("list activities: %w", err)
				}
				return c.printActivities(rt.svc, list)
			})
		},
	}
	sf.register(cmd)
	return cmd
}

func (c *cli) activityShowCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "show <id>",
		Short: "Show one activity with its ledger, tags, comments and dependencies",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return c.asActor(cmd, func(ctx context.Context, rt *runtime) error {
				detail, err := loadActivityDetail(ctx, rt.svc, args[0])
				if err != nil {
					return err
				}
				if c.jsonOut {
					return c.printJSON(detail)
				}
				return c.printMarkdown(activityMarkdown(detail))
			})
		},
	}
}

// loadActivityDetail gathers everything attached to one activity.
func loadActivityDetail(ctx context.Context, svc *app.Service, id string) (activityDetail, error) {
	a, err := svc.GetActivity(ctx, id)
	if err != nil {
		return activityDetail{}, fmt.Errorf("get activity: %w", err)
	}
	entries, err := svc.ListTimeEntries(ctx, id)
	if err != nil {
		return activityDetail{}, fmt.Errorf("list time entries: %w", err)
	}
	tags, err := svc.ListTags(ctx, id)
	if err != nil {
		return activityDetail{}, fmt.Errorf("list tags: %w", err)
	}
	comments, err := svc.ListComments(ctx, id)
	if err != nil {
		return activityDetail{}, fmt.Errorf("list comments: %w", err)
	}
	prereqs, err := svc.PrerequisitesOf(ctx, id)
	if err != nil {
		return activityDetail{}, fmt.Errorf("list prerequisites: %w", err)
	}
	dependents, err := svc.DependentsOf(ctx, id)
	if err != nil {
		return activityDetail{}, fmt.Errorf("list dependents: %w", err)
	}
	unblocked, err := svc.IsUnblocked(ctx, id)
	if err != nil {
		return activityDetail{}, fmt.Errorf("check dependencies: %w", err)
	}
	return activityDetail{
		Activity:      common.NewActivityView(a, svc.EffectiveStatus(a)),
		TimeEntries:   common.TimeEntryViews(entries),
		TotalHours:    domain.SumHours(entries),
		Tags:          common.TagViews(tags),
		Comments:      common.CommentViews(comments),
		Prerequisites: common.ActivityViews(svc, prereqs),
		Dependents:    common.ActivityViews(svc, dependents),
		Unblocked:     unblocked,
	}, nil
}

func (c *cli) activityUpdateCommand() *cobra.Command {
	var (
		title       string
		description string
		priority    string
		category    string
		status      string
		estimate    float64
		comments    string
	)
	cmd := &cobra.Command{
		Use:   "update <id>",
		Short: "Edit activity fields or move it between statuses",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var patch domain.ActivityPatch
			f := cmd.Flags()
			if f.Changed("title") {
				patch.Title = &title
			}
			if f.Changed("description") {
				patch.Description = &description
			}
			if f.Changed("priority") {
				p := domain.NormalizePriority(priority)
				patch.Priority = &p
			}
			if f.Changed("category") {
				patch.Category = &category
			}
			if f.Changed("status") {
				st := domain.NormalizeStatus(status)
				patch.Status = &st
			}
			if f.Changed("estimate") {
				patch.EstimatedHours = &estimate
			}
			if f.Changed("comments") {
				patch.Comments = &comments
			}
			return c.asActor(cmd, func(ctx context.Context, rt *runtime) error {
				a, err := rt.svc.UpdateActivity(ctx, args[0], patch)
				if err != nil {
					return fmt.Errorf("update activity: %w", err)
				}
				return c.printActivity(rt.svc, a)
			})
		},
	}
	f := cmd.Flags()
	f.StringVar(&title, "title", "", "new title")
	f.StringVar(&description, "description", "", "new description")
	f.StringVar(&priority, "priority", "", "low|medium|high|urgent")
	f.StringVar(&category, "category", "", "new category")
	f.StringVar(&status, "status", "", "pending|in_progress|completed")
	f.Float64Var(&estimate, "estimate", 0, "new estimated hours")
	f.StringVar(&comments, "comments", "", "new notes")
	return cmd
}

func (c *cli) activityCompleteCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "complete <id>",
		Short: "Mark an activity completed",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return c.asActor(cmd, func(ctx context.Context, rt *runtime) error {
				a, err := rt.svc.CompleteActivity(ctx, args[0])
				if err != nil {
					return fmt.Errorf("complete activity: %w", err)
				}
				return c.printActivity(rt.svc, a)
			})
		},
	}
}

func (c *cli) activityDeleteCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "delete <id>",
		Short: "Delete an activity and everything attached to it",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return c.asActor(cmd, func(ctx context.Context, rt *runtime) error {
				if err := rt.svc.DeleteActivity(ctx, args[0]); err != nil {
					return fmt.Errorf("delete activity: %w", err)
				}
				_, err := fmt.Fprintf(c.stdout, "deleted %s\n", args[0])
				return err
			})
		},
	}
}

// timeCommand groups the time ledger subcommands.
func (c *cli) timeCommand() *cobra.Command {
	cmd := &cobra.Command{Use: "time", Short: "Record and list tracked hours"}

	var (
		hours       float64
		description string
	)
	record := &cobra.Command{
		Use:   "record <activity-id>",
		Short: "Append hours to an activity's ledger",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return c.asActor(cmd, func(ctx context.Context, rt *runtime) error {
				entry, err := rt.svc.RecordTime(ctx, app.RecordTimeInput{
					ActivityID:  args[0],
					HoursSpent:  hours,
					Description: description,
				})
				if err != nil {
					return fmt.Errorf("record time: %w", err)
				}
				total, err := rt.svc.TotalHours(ctx, args[0])
				if err != nil {
					return fmt.Errorf("total hours: %w", err)
				}
				if c.jsonOut {
					return c.printJSON(map[string]any{"entry": common.NewTimeEntryView(entry), "total_hours": total})
				}
				_, err = fmt.Fprintf(c.stdout, "recorded %sh, total %sh\n", formatHours(entry.HoursSpent), formatHours(total))
				return err
			})
		},
	}
	record.Flags().Float64Var(&hours, "hours", 0, "hours spent (>= 0)")
	record.Flags().StringVar(&description, "description", "", "what the time was spent on")
	_ = record.MarkFlagRequired("hours")

	list := &cobra.Command{
		Use:   "list <activity-id>",
		Short: "List ledger entries",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return c.asActor(cmd, func(ctx context.Context, rt *runtime) error {
				entries, err := rt.svc.ListTimeEntries(ctx, args[0])
				if err != nil {
					return fmt.Errorf("list time entries: %w", err)
				}
				total := domain.SumHours(entries)
				if c.jsonOut {
					return c.printJSON(map[string]any{"entries": common.TimeEntryViews(entries), "total_hours": total})
				}
				rows := make([][]string, 0, len(entries))
				for _, e := range entries {
					rows = append(rows, []string{formatTime(e.TrackedAt), formatHours(e.HoursSpent), e.AuthorID, e.Description})
				}
				if err := c.printTable([]string{"TRACKED", "HOURS", "AUTHOR", "DESCRIPTION"}, rows); err != nil {
					return err
				}
				_, err = fmt.Fprintf(c.stdout, "total: %sh\n", formatHours(total))
				return err
			})
		},
	}
	cmd.AddCommand(record, list)
	return cmd
}

// depCommand groups the dependency graph subcommands.
func (c *cli) depCommand() *cobra.Command {
	cmd := &cobra.Command{Use: "dep", Aliases: []string{"deps"}, Short: "Manage depends-on relations"}

	add := &cobra.Command{
		Use:   "add <activity-id> <depends-on-id>",
		Short: "Make an activity depend on another",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return c.asActor(cmd, func(ctx context.Context, rt *runtime) error {
				d, err := rt.svc.AddDependency(ctx, args[0], args[1])
				if err != nil {
					return fmt.Errorf("add dependency: %w", err)
				}
				if c.jsonOut {
					return c.printJSON(common.NewDependencyView(d))
				}
				_, err = fmt.Fprintf(c.stdout, "%s depends on %s\n", d.ActivityID, d.DependsOnID)
				return err
			})
		},
	}
	remove := &cobra.Command{
		Use:   "remove <activity-id> <depends-on-id>",
		Short: "Remove a depends-on relation",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return c.asActor(cmd, func(ctx context.Context, rt *runtime) error {
				if err := rt.svc.RemoveDependency(ctx, args[0], args[1]); err != nil {
					return fmt.Errorf("remove dependency: %w", err)
				}
				_, err := fmt.Fprintf(c.stdout, "%s no longer depends on %s\n", args[0], args[1])
				return err
			})
		},
	}
	check := &cobra.Command{
		Use:   "check <activity-id>",
		Short: "Report whether every prerequisite is completed",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return c.asActor(cmd, func(ctx context.Context, rt *runtime) error {
				unblocked, err := rt.svc.IsUnblocked(ctx, args[0])
				if err != nil {
					return fmt.Errorf("check dependencies: %w", err)
				}
				if c.jsonOut {
					return c.printJSON(map[string]any{"activity_id": args[0], "unblocked": unblocked})
				}
				state := "blocked"
				if unblocked {
					state = "unblocked"
				}
				_, err = fmt.Fprintf(c.stdout, "%s is %s\n", args[0], state)
				return err
			})
		},
	}
	cmd.AddCommand(add, remove, check)
	return cmd
}

// commentCommand groups the comment subcommands.
func (c *cli) commentCommand() *cobra.Command {
	cmd := &cobra.Command{Use: "comment", Aliases: []string{"comments"}, Short: "Discuss activities"}

	add := &cobra.Command{
		Use:   "add <activity-id> <text...>",
		Short: "Add a comment",
		Args:  cobra.MinimumNArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return c.asActor(cmd, func(ctx context.Context, rt *runtime) error {
				cm, err := rt.svc.AddComment(ctx, args[0], strings.Join(args[1:], " "))
				if err != nil {
					return fmt.Errorf("add comment: %w", err)
				}
				if c.jsonOut {
					return c.printJSON(common.NewCommentView(cm))
				}
				_, err = fmt.Fprintf(c.stdout, "comment %s added\n", cm.ID)
				return err
			})
		},
	}
	list := &cobra.Command{
		Use:   "list <activity-id>",
		Short: "List comments oldest first",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return c.asActor(cmd, func(ctx context.Context, rt *runtime) error {
				comments, err := rt.svc.ListComments(ctx, args[0])
				if err != nil {
					return fmt.Errorf("list comments: %w", err)
				}
				if c.jsonOut {
					return c.printJSON(map[string]any{"comments": common.CommentViews(comments)})
				}
				rows := make([][]string, 0, len(comments))
				for _, cm := range comments {
					rows = append(rows, []string{formatTime(cm.CreatedAt), cm.AuthorID, cm.Text})
				}
				return c.printTable([]string{"CREATED", "AUTHOR", "COMMENT"}, rows)
			})
		},
	}
	cmd.AddCommand(add, list)
	return cmd
}

// tagCommand groups the tag subcommands.
func (c *cli) tagCommand() *cobra.Command {
	cmd := &cobra.Command{Use: "tag", Aliases: []string{"tags"}, Short: "Label activities"}

	add := &cobra.Command{
		Use:   "add <activity-id> <tag>",
		Short: "Attach a tag",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return c.asActor(cmd, func(ctx context.Context, rt *runtime) error {
				t, err := rt.svc.AddTag(ctx, args[0], args[1])
				if err != nil {
					return fmt.Errorf("add tag: %w", err)
				}
				if c.jsonOut {
					return c.printJSON(common.NewTagView(t))
				}
				_, err = fmt.Fprintf(c.stdout, "tagged %s with %s\n", t.ActivityID, t.Text)
				return err
			})
		},
	}
	list := &cobra.Command{
		Use:   "list <activity-id>",
		Short: "List tags",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return c.asActor(cmd, func(ctx context.Context, rt *runtime) error {
				tags, err := rt.svc.ListTags(ctx, args[0])
				if err != nil {
					return fmt.Errorf("list tags: %w", err)
				}
				if c.jsonOut {
					return c.printJSON(map[string]any{"tags": common.TagViews(tags)})
				}
				for _, t := range tags {
					if _, err := fmt.Fprintln(c.stdout, t.Text); err != nil {
						return err
					}
				}
				return nil
			})
		},
	}
	cmd.AddCommand(add, list)
	return cmd
}

// reminderCommand groups the reminder subcommands.
func (c *cli) reminderCommand() *cobra.Command {
	cmd := &cobra.Command{Use: "reminder", Aliases: []string{"reminders"}, Short: "Schedule reminders for external delivery"}

	var (
		at        string
		channel   string
		recipient string
	)
	add := &cobra.Command{
		Use:   "add <activity-id>",
		Short: "Schedule a reminder",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			reminderAt, err := parseTimeFlag("at", at)
			if err != nil {
				return err
			}
			if reminderAt.IsZero() {
				return fmt.Errorf("--at is required")
			}
			return c.asActor(cmd, func(ctx context.Context, rt *runtime) error {
				rem, err := rt.svc.AddReminder(ctx, app.AddReminderInput{
					ActivityID:  args[0],
					RecipientID: recipient,
					ReminderAt:  reminderAt,
					Channel:     domain.ReminderChannel(strings.TrimSpace(channel)),
				})
				if err != nil {
					return fmt.Errorf("add reminder: %w", err)
				}
				return c.printReminders([]domain.Reminder{rem})
			})
		},
	}
	add.Flags().StringVar(&at, "at", "", "reminder time, RFC3339 or YYYY-MM-DD")
	add.Flags().StringVar(&channel, "channel", string(domain.ReminderChannelInApp), "email|in_app")
	add.Flags().StringVar(&recipient, "recipient", "", "recipient user id (defaults to the acting user)")

	var before string
	due := &cobra.Command{
		Use:   "due",
		Short: "List unsent reminders due before a time (default now)",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cutoff, err := parseTimeFlag("before", before)
			if err != nil {
				return err
			}
			if cutoff.IsZero() {
				cutoff = c.now()
			}
			return c.asActor(cmd, func(ctx context.Context, rt *runtime) error {
				list, err := rt.svc.DueReminders(ctx, cutoff)
				if err != nil {
					return fmt.Errorf("list due reminders: %w", err)
				}
				return c.printReminders(list)
			})
		},
	}
	due.Flags().StringVar(&before, "before", "", "cutoff, RFC3339 or YYYY-MM-DD")

	sent := &cobra.Command{
		Use:   "sent <reminder-id>",
		Short: "Mark a reminder delivered",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return c.asActor(cmd, func(ctx context.Context, rt *runtime) error {
				rem, err := rt.svc.MarkReminderSent(ctx, args[0])
				if err != nil {
					return fmt.Errorf("mark reminder sent: %w", err)
				}
				return c.printReminders([]domain.Reminder{rem})
			})
		},
	}
	cmd.AddCommand(add, due, sent)
	return cmd
}

func (c *cli) printReminders(list []domain.Reminder) error {
	if c.jsonOut {
		return c.printJSON(map[string]any{"reminders": common.ReminderViews(list)})
	}
	rows := make([][]string, 0, len(list))
	for _, r := range list {
		rows = append(rows, []string{r.ID, r.ActivityID, formatTime(r.ReminderAt), string(r.Channel), fmt.Sprint(r.Sent)})
	}
	return c.printTable([]string{"ID", "ACTIVITY", "AT", "CHANNEL", "SENT"}, rows)
}

// scopeFlags binds the shared list and metrics filters.
type scopeFlags struct {
	department string
	owner      string
	statuses   []string
	from       string
	to         string
}

func (sf *scopeFlags) register(cmd *cobra.Command) {
	f := cmd.Flags()
	f.StringVar(&sf.department, "department", "", "restrict to owners in this department")
	f.StringVar(&sf.owner, "owner", "", "restrict to one owner id")
	f.StringSliceVar(&sf.statuses, "status", nil, "effective statuses to include (repeatable)")
	f.StringVar(&sf.from, "from", "", "start time lower bound, RFC3339 or YYYY-MM-DD")
	f.StringVar(&sf.to, "to", "", "start time upper bound (exclusive)")
}

func (sf *scopeFlags) scope() (app.Scope, error) {
	scope := app.Scope{Department: sf.department, OwnerID: sf.owner}
	for _, raw := range sf.statuses {
		st := domain.NormalizeStatus(raw)
		if !domain.IsValidStatus(st) {
			return app.Scope{}, fmt.Errorf("invalid --status %q", raw)
		}
		scope.Statuses = append(scope.Statuses, st)
	}
	var err error
	if scope.From, err = parseTimeFlag("from", sf.from); err != nil {
		return app.Scope{}, err
	}
	if scope.To, err = parseTimeFlag("to", sf.to); err != nil {
		return app.Scope{}, err
	}
	return scope, nil
}

// parseTimeFlag accepts RFC3339 or a local calendar date. Empty yields the zero time.
func parseTimeFlag(name, raw string) (time.Time, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return time.Time{}, nil
	}
	if t, err := time.Parse(time.RFC3339, raw); err == nil {
		return t, nil
	}
	if t, err := time.ParseInLocation(time.DateOnly, raw, time.Local); err == nil {
		return t, nil
	}
	return time.Time{}, fmt.Errorf("invalid --%s %q: want RFC3339 or YYYY-MM-DD", name, raw)
}
