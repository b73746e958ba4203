package mcpapi

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/hylla/taskmon/internal/adapters/server/common"
	"github.com/hylla/taskmon/internal/app"
	"github.com/hylla/taskmon/internal/domain"
	"github.com/mark3labs/mcp-go/mcp"
	mcpserver "github.com/mark3labs/mcp-go/server"
)

var (
	priorityValues = []string{"low", "medium", "high", "urgent"}
	statusValues   = []string{"pending", "in_progress", "completed"}
)

// registerActivityTools registers create, update, complete, delete and list.
func registerActivityTools(srv *mcpserver.MCPServer, svc common.Service) {
	srv.AddTool(
		mcp.NewTool(
			"taskmon.create_activity",
			mcp.WithDescription("Create an activity owned by the caller or an assigned owner."),
			mcp.WithString("title", mcp.Required(), mcp.Description("Short title")),
			mcp.WithString("description", mcp.Required(), mcp.Description("What the work involves")),
			mcp.WithNumber("estimated_hours", mcp.Required(), mcp.Description("Estimated hours, greater than zero")),
			mcp.WithString("priority", mcp.Description("Priority, defaults to medium"), mcp.Enum(priorityValues...)),
			mcp.WithString("category", mcp.Description("Free-form category")),
			mcp.WithString("comments", mcp.Description("Free-text notes")),
			mcp.WithString("owner_id", mcp.Description("Owner user id (supervisors and admins only)")),
			mcp.WithString("status", mcp.Description("Initial status (admins only)"), mcp.Enum(statusValues...)),
			mcp.WithString("start_time", mcp.Description("RFC3339 start time, defaults to now")),
			mcp.WithArray("tags", mcp.Description("Tags to attach"), mcp.WithStringItems()),
		),
		func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
			title, err := req.RequireString("title")
			if err != nil {
				return mcp.NewToolResultError(err.Error()), nil
			}
			description, err := req.RequireString("description")
			if err != nil {
				return mcp.NewToolResultError(err.Error()), nil
			}
			hours, err := req.RequireFloat("estimated_hours")
			if err != nil {
				return mcp.NewToolResultError(err.Error()), nil
			}
			start, err := optionalTime(req, "start_time")
			if err != nil {
				return toolResultFromError(err), nil
			}
			activity, err := svc.CreateActivity(ctx, app.CreateActivityInput{
				OwnerID:        req.GetString("owner_id", ""),
				Title:          title,
				Description:    description,
				Priority:       domain.Priority(req.GetString("priority", "")),
				Category:       req.GetString("category", ""),
				EstimatedHours: hours,
				Comments:       req.GetString("comments", ""),
				StartTime:      start,
				Status:         domain.Status(req.GetString("status", "")),
				Tags:           req.GetStringSlice("tags", nil),
			})
			if err != nil {
				return toolResultFromError(err), nil
			}
			return jsonResult("create_activity", common.NewActivityView(activity, svc.EffectiveStatus(activity)))
		},
	)

	srv.AddTool(
		mcp.NewTool(
			"taskmon.update_activity",
			mcp.WithDescription("Update activity fields. Omitted fields are left unchanged."),
			mcp.WithString("id", mcp.Required(), mcp.Description("Activity id")),
			mcp.WithString("title", mcp.Description("New title")),
			mcp.WithString("description", mcp.Description("New description")),
			mcp.WithString("priority", mcp.Description("New priority"), mcp.Enum(priorityValues...)),
			mcp.WithString("category", mcp.Description("New category")),
			mcp.WithString("status", mcp.Description("New status"), mcp.Enum(statusValues...)),
			mcp.WithNumber("estimated_hours", mcp.Description("New estimate")),
			mcp.WithString("comments", mcp.Description("New notes")),
		),
		func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
			id, err := req.RequireString("id")
			if err != nil {
				return mcp.NewToolResultError(err.Error()), nil
			}
			args := req.GetArguments()
			patch := domain.ActivityPatch{
				Title:       optionalString(args, "title"),
				Description: optionalString(args, "description"),
				Category:    optionalString(args, "category"),
				Comments:    optionalString(args, "comments"),
			}
			if raw := optionalString(args, "priority"); raw != nil {
				p := domain.Priority(*raw)
				patch.Priority = &p
			}
			if raw := optionalString(args, "status"); raw != nil {
				st := domain.Status(*raw)
				patch.Status = &st
			}
			if _, ok := args["estimated_hours"]; ok {
				hours := req.GetFloat("estimated_hours", 0)
				patch.EstimatedHours = &hours
			}
			activity, err := svc.UpdateActivity(ctx, id, patch)
			if err != nil {
				return toolResultFromError(err), nil
			}
			return jsonResult("update_activity", common.NewActivityView(activity, svc.EffectiveStatus(activity)))
		},
	)

	srv.AddTool(
		mcp.NewTool(
			"taskmon.complete_activity",
			mcp.WithDescription("Complete an activity. Completing a completed activity changes nothing."),
			mcp.WithString("id", mcp.Required(), mcp.Description("Activity id")),
		),
		func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
			id, err := req.RequireString("id")
			if err != nil {
				return mcp.NewToolResultError(err.Error()), nil
			}
			activity, err := svc.CompleteActivity(ctx, id)
			if err != nil {
				return toolResultFromError(err), nil
			}
			return jsonResult("complete_activity", common.NewActivityView(activity, svc.EffectiveStatus(activity)))
		},
	)

	srv.AddTool(
		mcp.NewTool(
			"taskmon.delete_activity",
			mcp.WithDescription("Delete an activity with its tags, dependencies, comments, time entries and reminders."),
			mcp.WithString("id", mcp.Required(), mcp.Description("Activity id")),
		),
		func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
			id, err := req.RequireString("id")
			if err != nil {
				return mcp.NewToolResultError(err.Error()), nil
			}
			if err := svc.DeleteActivity(ctx, id); err != nil {
				return toolResultFromError(err), nil
			}
			return jsonResult("delete_activity", map[string]any{"id": id, "deleted": true})
		},
	)

	srv.AddTool(
		mcp.NewTool(
			"taskmon.list_activities",
			mcp.WithDescription("List activities visible to the caller, ordered by start time."),
			mcp.WithString("department", mcp.Description("Owner department filter")),
			mcp.WithString("owner_id", mcp.Description("Owner filter")),
			mcp.WithString("status", mcp.Description("Comma-separated effective statuses, late included")),
			mcp.WithString("from", mcp.Description("RFC3339 inclusive start_time lower bound")),
			mcp.WithString("to", mcp.Description("RFC3339 exclusive start_time upper bound")),
		),
		func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
			scope, err := scopeFromRequest(req)
			if err != nil {
				return toolResultFromError(err), nil
			}
			activities, err := svc.ListActivities(ctx, scope)
			if err != nil {
				return toolResultFromError(err), nil
			}
			return jsonResult("list_activities", map[string]any{
				"activities": common.ActivityViews(svc, activities),
			})
		},
	)
}

// registerLedgerTools registers record_time.
func registerLedgerTools(srv *mcpserver.MCPServer, svc common.Service) {
	srv.AddTool(
		mcp.NewTool(
			"taskmon.record_time",
			mcp.WithDescription("Record hours spent on an activity. Actual hours become the ledger sum."),
			mcp.WithString("activity_id", mcp.Required(), mcp.Description("Activity id")),
			mcp.WithNumber("hours_spent", mcp.Required(), mcp.Description("Hours spent, zero or more")),
			mcp.WithString("description", mcp.Description("What the time was spent on")),
		),
		func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
			activityID, err := req.RequireString("activity_id")
			if err != nil {
				return mcp.NewToolResultError(err.Error()), nil
			}
			hours, err := req.RequireFloat("hours_spent")
			if err != nil {
				return mcp.NewToolResultError(err.Error()), nil
			}
			entry, err := svc.RecordTime(ctx, app.RecordTimeInput{
				ActivityID:  activityID,
				HoursSpent:  hours,
				Description: req.GetString("description", ""),
			})
			if err != nil {
				return toolResultFromError(err), nil
			}
			total, err := svc.TotalHours(ctx, activityID)
			if err != nil {
				return toolResultFromError(err), nil
			}
			return jsonResult("record_time", map[string]any{
				"entry":       common.NewTimeEntryView(entry),
				"total_hours": total,
			})
		},
	)
}

// registerDependencyTools registers add_dependency and is_unblocked.
func registerDependencyTools(srv *mcpserver.MCPServer, svc common.Service) {
	srv.AddTool(
		mcp.NewTool(
			"taskmon.add_dependency",
			mcp.WithDescription("Make an activity depend on another. Self-loops and cycles are rejected."),
			mcp.WithString("activity_id", mcp.Required(), mcp.Description("Dependent activity id")),
			mcp.WithString("depends_on_id", mcp.Required(), mcp.Description("Prerequisite activity id")),
		),
		func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
			activityID, err := req.RequireString("activity_id")
			if err != nil {
				return mcp.NewToolResultError(err.Error()), nil
			}
			dependsOnID, err := req.RequireString("depends_on_id")
			if err != nil {
				return mcp.NewToolResultError(err.Error()), nil
			}
			dep, err := svc.AddDependency(ctx, activityID, dependsOnID)
			if err != nil {
				return toolResultFromError(err), nil
			}
			return jsonResult("add_dependency", common.NewDependencyView(dep))
		},
	)

	srv.AddTool(
		mcp.NewTool(
			"taskmon.is_unblocked",
			mcp.WithDescription("Report whether every prerequisite of an activity is completed."),
			mcp.WithString("activity_id", mcp.Required(), mcp.Description("Activity id")),
		),
		func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
			activityID, err := req.RequireString("activity_id")
			if err != nil {
				return mcp.NewToolResultError(err.Error()), nil
			}
			unblocked, err := svc.IsUnblocked(ctx, activityID)
			if err != nil {
				return toolResultFromError(err), nil
			}
			return jsonResult("is_unblocked", map[string]any{
				"activity_id": activityID,
				"unblocked":   unblocked,
			})
		},
	)
}

// registerMetricsTools registers dashboard.
func registerMetricsTools(srv *mcpserver.MCPServer, svc common.Service) {
	srv.AddTool(
		mcp.NewTool(
			"taskmon.dashboard",
			mcp.WithDescription("Summary metrics for the caller's visible activities."),
			mcp.WithString("department", mcp.Description("Owner department filter")),
			mcp.WithString("owner_id", mcp.Description("Owner filter")),
			mcp.WithString("status", mcp.Description("Comma-separated effective statuses")),
			mcp.WithString("from", mcp.Description("RFC3339 inclusive start_time lower bound")),
			mcp.WithString("to", mcp.Description("RFC3339 exclusive start_time upper bound")),
		),
		func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
			scope, err := scopeFromRequest(req)
			if err != nil {
				return toolResultFromError(err), nil
			}
			dashboard, err := svc.Dashboard(ctx, scope)
			if err != nil {
				return toolResultFromError(err), nil
			}
			return jsonResult("dashboard", dashboard)
		},
	)
}

// scopeFromRequest reads the shared scope arguments.
func scopeFromRequest(req mcp.CallToolRequest) (app.Scope, error) {
	scope := app.Scope{
		Department: req.GetString("department", ""),
		OwnerID:    req.GetString("owner_id", ""),
	}
	for _, raw := range strings.Split(req.GetString("status", ""), ",") {
		if raw = strings.TrimSpace(raw); raw != "" {
			scope.Statuses = append(scope.Statuses, domain.Status(raw))
		}
	}
	var err error
	if scope.From, err = optionalTime(req, "from"); err != nil {
		return app.Scope{}, err
	}
	if scope.To, err = optionalTime(req, "to"); err != nil {
		return app.Scope{}, err
	}
	return scope, nil
}

// optionalTime parses an optional RFC3339 argument.
func optionalTime(req mcp.CallToolRequest, name string) (time.Time, error) {
	raw := strings.TrimSpace(req.GetString(name, ""))
	if raw == "" {
		return time.Time{}, nil
	}
	t, err := time.Parse(time.RFC3339, raw)
	if err != nil {
		return time.Time{}, fmt.Errorf("%w: %s must be RFC3339", common.ErrInvalidRequest, name)
	}
	return t, nil
}

// optionalString returns the string argument when present.
func optionalString(args map[string]any, name string) *string {
	raw, ok := args[name].(string)
	if !ok {
		return nil
	}
	return &raw
}
