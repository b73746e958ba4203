package domain

import (
	"strings"
	"time"
)

// AuditAction tags what a mutating operation did.
type AuditAction string

// AuditAction values written by the service layer.
const (
	AuditCreateActivity   AuditAction = "create_activity"
	AuditUpdateActivity   AuditAction = "update_activity"
	AuditCompleteActivity AuditAction = "complete_activity"
	AuditDeleteActivity   AuditAction = "delete_activity"
	AuditRecordTime       AuditAction = "record_time"
	AuditAddDependency    AuditAction = "add_dependency"
	AuditRemoveDependency AuditAction = "remove_dependency"
	AuditAddComment       AuditAction = "add_comment"
	AuditAddTag           AuditAction = "add_tag"
	AuditAddReminder      AuditAction = "add_reminder"
	AuditReminderSent     AuditAction = "reminder_sent"
	AuditCreateUser       AuditAction = "create_user"
	AuditUpdateUser       AuditAction = "update_user"
	AuditLogin            AuditAction = "login"
	AuditProvisionAdmin   AuditAction = "provision_admin"
	AuditCreateDepartment AuditAction = "create_department"
	AuditDeleteDepartment AuditAction = "delete_department"
)

// AuditEntry is one immutable audit log record.
type AuditEntry struct {
	ID        int64
	ActorID   string
	Action    AuditAction
	Details   string
	CreatedAt time.Time
}

// NewAuditEntry validates and builds an audit entry. The id is assigned by storage.
func NewAuditEntry(actorID string, action AuditAction, details string, now time.Time) (AuditEntry, error) {
	actorID = strings.TrimSpace(actorID)
	action = AuditAction(strings.TrimSpace(string(action)))
	if actorID == "" {
		return AuditEntry{}, ErrInvalidID
	}
	if action == "" {
		return AuditEntry{}, ErrInvalidAction
	}
	return AuditEntry{
		ActorID:   actorID,
		Action:    action,
		Details:   strings.TrimSpace(details),
		CreatedAt: now.UTC(),
	}, nil
}
