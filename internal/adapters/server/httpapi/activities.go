package httpapi

import (
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/hylla/taskmon/internal/adapters/server/common"
	"github.com/hylla/taskmon/internal/app"
	"github.com/hylla/taskmon/internal/domain"
)

func activityID(r *http.Request) string {
	return strings.TrimSpace(chi.URLParam(r, "id"))
}

// handleListActivities serves GET `/activities`.
func (h *Handler) handleListActivities(w http.ResponseWriter, r *http.Request) {
	scope, err := parseScope(r)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	activities, err := h.svc.ListActivities(r.Context(), scope)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"activities": common.ActivityViews(h.svc, activities),
	})
}

// handleCreateActivity serves POST `/activities`.
func (h *Handler) handleCreateActivity(w http.ResponseWriter, r *http.Request) {
	req, ok := bind[createActivityRequest](h, w, r)
	if !ok {
		return
	}
	activity, err := h.svc.CreateActivity(r.Context(), req.input())
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, common.NewActivityView(activity, h.svc.EffectiveStatus(activity)))
}

// handleGetActivity serves GET `/activities/{id}`.
func (h *Handler) handleGetActivity(w http.ResponseWriter, r *http.Request) {
	activity, err := h.svc.GetActivity(r.Context(), activityID(r))
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, common.NewActivityView(activity, h.svc.EffectiveStatus(activity)))
}

// handleUpdateActivity serves PATCH `/activities/{id}`.
func (h *Handler) handleUpdateActivity(w http.ResponseWriter, r *http.Request) {
	req, ok := bind[updateActivityRequest](h, w, r)
	if !ok {
		return
	}
	activity, err := h.svc.UpdateActivity(r.Context(), activityID(r), req.patch())
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, common.NewActivityView(activity, h.svc.EffectiveStatus(activity)))
}

// handleDeleteActivity serves DELETE `/activities/{id}`.
func (h *Handler) handleDeleteActivity(w http.ResponseWriter, r *http.Request) {
	if err := h.svc.DeleteActivity(r.Context(), activityID(r)); err != nil {
		h.writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// handleCompleteActivity serves POST `/activities/{id}/complete`.
func (h *Handler) handleCompleteActivity(w http.ResponseWriter, r *http.Request) {
	activity, err := h.svc.CompleteActivity(r.Context(), activityID(r))
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, common.NewActivityView(activity, h.svc.EffectiveStatus(activity)))
}

// handleListTime serves GET `/activities/{id}/time`.
func (h *Handler) handleListTime(w http.ResponseWriter, r *http.Request) {
	id := activityID(r)
	entries, err := h.svc.ListTimeEntries(r.Context(), id)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	total, err := h.svc.TotalHours(r.Context(), id)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"entries":     common.TimeEntryViews(entries),
		"total_hours": total,
	})
}

// handleRecordTime serves POST `/activities/{id}/time`.
func (h *Handler) handleRecordTime(w http.ResponseWriter, r *http.Request) {
	req, ok := bind[recordTimeRequest](h, w, r)
	if !ok {
		return
	}
	entry, err := h.svc.RecordTime(r.Context(), app.RecordTimeInput{
		ActivityID:  activityID(r),
		HoursSpent:  req.HoursSpent,
		Description: req.Description,
	})
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, common.NewTimeEntryView(entry))
}

// handleListComments serves GET `/activities/{id}/comments`.
func (h *Handler) handleListComments(w http.ResponseWriter, r *http.Request) {
	comments, err := h.svc.ListComments(r.Context(), activityID(r))
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"comments": common.CommentViews(comments)})
}

// handleAddComment serves POST `/activities/{id}/comments`.
func (h *Handler) handleAddComment(w http.ResponseWriter, r *http.Request) {
	req, ok := bind[commentRequest](h, w, r)
	if !ok {
		return
	}
	comment, err := h.svc.AddComment(r.Context(), activityID(r), req.Text)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, common.NewCommentView(comment))
}

// handleListTags serves GET `/activities/{id}/tags`.
func (h *Handler) handleListTags(w http.ResponseWriter, r *http.Request) {
	tags, err := h.svc.ListTags(r.Context(), activityID(r))
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"tags": common.TagViews(tags)})
}

// handleAddTag serves POST `/activities/{id}/tags`.
func (h *Handler) handleAddTag(w http.ResponseWriter, r *http.Request) {
	req, ok := bind[tagRequest](h, w, r)
	if !ok {
		return
	}
	tag, err := h.svc.AddTag(r.Context(), activityID(r), req.Tag)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, common.NewTagView(tag))
}

// handleListDependencies serves GET `/activities/{id}/dependencies`.
func (h *Handler) handleListDependencies(w http.ResponseWriter, r *http.Request) {
	id := activityID(r)
	prerequisites, err := h.svc.PrerequisitesOf(r.Context(), id)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	dependents, err := h.svc.DependentsOf(r.Context(), id)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"prerequisites": common.ActivityViews(h.svc, prerequisites),
		"dependents":    common.ActivityViews(h.svc, dependents),
	})
}

// handleAddDependency serves POST `/activities/{id}/dependencies`.
func (h *Handler) handleAddDependency(w http.ResponseWriter, r *http.Request) {
	req, ok := bind[dependencyRequest](h, w, r)
	if !ok {
		return
	}
	dep, err := h.svc.AddDependency(r.Context(), activityID(r), req.DependsOnID)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, common.NewDependencyView(dep))
}

// handleRemoveDependency serves DELETE `/activities/{id}/dependencies/{dependsOn}`.
func (h *Handler) handleRemoveDependency(w http.ResponseWriter, r *http.Request) {
	dependsOn := strings.TrimSpace(chi.URLParam(r, "dependsOn"))
	if err := h.svc.RemoveDependency(r.Context(), activityID(r), dependsOn); err != nil {
		h.writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// handleBlocked serves GET `/activities/{id}/blocked`.
func (h *Handler) handleBlocked(w http.ResponseWriter, r *http.Request) {
	id := activityID(r)
	unblocked, err := h.svc.IsUnblocked(r.Context(), id)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"activity_id": id,
		"unblocked":   unblocked,
	})
}

// handleListReminders serves GET `/activities/{id}/reminders`.
func (h *Handler) handleListReminders(w http.ResponseWriter, r *http.Request) {
	reminders, err := h.svc.ListReminders(r.Context(), activityID(r))
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"reminders": common.ReminderViews(reminders)})
}

// handleAddReminder serves POST `/activities/{id}/reminders`.
func (h *Handler) handleAddReminder(w http.ResponseWriter, r *http.Request) {
	req, ok := bind[reminderRequest](h, w, r)
	if !ok {
		return
	}
	reminder, err := h.svc.AddReminder(r.Context(), app.AddReminderInput{
		ActivityID:  activityID(r),
		RecipientID: req.RecipientID,
		ReminderAt:  req.ReminderAt,
		Channel:     domain.ReminderChannel(req.Channel),
	})
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, common.NewReminderView(reminder))
}

// handleDueReminders serves GET `/reminders/due?before=`. before defaults to now.
func (h *Handler) handleDueReminders(w http.ResponseWriter, r *http.Request) {
	before := h.clock()
	if raw := strings.TrimSpace(r.URL.Query().Get("before")); raw != "" {
		parsed, err := time.Parse(time.RFC3339, raw)
		if err != nil {
			h.writeError(w, r, fmt.Errorf("%w: before must be RFC3339", common.ErrInvalidRequest))
			return
		}
		before = parsed
	}
	reminders, err := h.svc.DueReminders(r.Context(), before)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"reminders": common.ReminderViews(reminders)})
}

// handleReminderSent serves POST `/reminders/{id}/sent`.
func (h *Handler) handleReminderSent(w http.ResponseWriter, r *http.Request) {
	reminder, err := h.svc.MarkReminderSent(r.Context(), strings.TrimSpace(chi.URLParam(r, "id")))
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, common.NewReminderView(reminder))
}
