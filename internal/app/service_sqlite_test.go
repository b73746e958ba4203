package app_test

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/hylla/taskmon/internal/adapters/storage/sqlite"
	"github.com/hylla/taskmon/internal/app"
	"golang.org/x/crypto/bcrypt"
)

// countRows returns the row count of table.
func countRows(t *testing.T, repo *sqlite.Repository, table string) int {
	t.Helper()
	var n int
	if err := repo.DB().QueryRowContext(context.Background(), `SELECT COUNT(*) FROM `+table).Scan(&n); err != nil {
		t.Fatalf("count %s error = %v", table, err)
	}
	return n
}

// TestAuditFailureRollsBackSQLite verifies a failed audit insert leaves no trace of the
// operation it belonged to.
func TestAuditFailureRollsBackSQLite(t *testing.T) {
	ctx := context.Background()
	repo, err := sqlite.OpenInMemory(ctx)
	if err != nil {
		t.Fatalf("OpenInMemory() error = %v", err)
	}
	t.Cleanup(func() { _ = repo.Close() })

	now := time.Date(2026, 2, 21, 12, 0, 0, 0, time.UTC)
	n := 0
	svc := app.NewService(repo, func() string {
		n++
		return fmt.Sprintf("id-%d", n)
	}, func() time.Time { return now }, app.ServiceConfig{Location: time.UTC, PasswordCost: bcrypt.MinCost})

	admin, err := svc.ProvisionAdmin(ctx, app.ProvisionAdminInput{Username: "root", Password: "root-password"})
	if err != nil {
		t.Fatalf("ProvisionAdmin() error = %v", err)
	}
	actx := app.WithActor(ctx, app.ActorFromUser(admin))
	kept, err := svc.CreateActivity(actx, app.CreateActivityInput{Title: "Kept", Description: "d", EstimatedHours: 2})
	if err != nil {
		t.Fatalf("CreateActivity() error = %v", err)
	}
	auditBefore := countRows(t, repo, "system_logs")

	if _, err := repo.DB().ExecContext(ctx, `
		CREATE TRIGGER reject_audit BEFORE INSERT ON system_logs
		BEGIN SELECT RAISE(ABORT, 'audit store unavailable'); END
	`); err != nil {
		t.Fatalf("create trigger error = %v", err)
	}

	_, err = svc.CreateActivity(actx, app.CreateActivityInput{
		Title:          "Lost",
		Description:    "d",
		EstimatedHours: 1,
		Tags:           []string{"finance"},
	})
	if !errors.Is(err, app.ErrStorage) {
		t.Fatalf("expected ErrStorage, got %v", err)
	}
	if got := countRows(t, repo, "activities"); got != 1 {
		t.Fatalf("activities rows = %d, want 1", got)
	}
	if got := countRows(t, repo, "activity_tags"); got != 0 {
		t.Fatalf("activity_tags rows = %d, want 0", got)
	}

	if _, err := svc.RecordTime(actx, app.RecordTimeInput{ActivityID: kept.ID, HoursSpent: 1.5}); !errors.Is(err, app.ErrStorage) {
		t.Fatalf("expected ErrStorage from RecordTime, got %v", err)
	}
	if got := countRows(t, repo, "time_tracking"); got != 0 {
		t.Fatalf("time_tracking rows = %d, want 0", got)
	}
	stored, err := repo.GetActivity(ctx, kept.ID)
	if err != nil {
		t.Fatalf("GetActivity() error = %v", err)
	}
	if stored.ActualHours != nil {
		t.Fatalf("expected actual hours untouched, got %v", *stored.ActualHours)
	}
	if got := countRows(t, repo, "system_logs"); got != auditBefore {
		t.Fatalf("system_logs rows = %d, want %d", got, auditBefore)
	}
}
