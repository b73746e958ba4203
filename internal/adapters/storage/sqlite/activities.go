package sqlite

import (
	"context"
	"database/sql"
	"strings"

	"github.com/hylla/taskmon/internal/app"
	"github.com/hylla/taskmon/internal/domain"
)

const activityColumns = `a.id, a.owner_id, a.title, a.description, a.status, a.priority, a.category,
	a.start_time, a.end_time, a.estimated_hours, a.actual_hours, a.comments, a.last_updated`

// CreateActivity creates activity.
func (r *Repository) CreateActivity(ctx context.Context, a domain.Activity) error {
	return r.execWrite(ctx, `
		INSERT INTO activities(
			id, owner_id, title, description, status, priority, category,
			start_time, end_time, estimated_hours, actual_hours, comments, last_updated
		)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`,
		a.ID,
		a.OwnerID,
		a.Title,
		a.Description,
		string(a.Status),
		string(a.Priority),
		a.Category,
		ts(a.StartTime),
		nullableTS(a.EndTime),
		a.EstimatedHours,
		nullableFloat(a.ActualHours),
		a.Comments,
		ts(a.LastUpdated),
	)
}

// UpdateActivity updates state for the requested operation.
func (r *Repository) UpdateActivity(ctx context.Context, a domain.Activity) error {
	return r.execUpdate(ctx, `
		UPDATE activities
		SET title = ?, description = ?, status = ?, priority = ?, category = ?, start_time = ?, end_time = ?,
			estimated_hours = ?, actual_hours = ?, comments = ?, last_updated = ?
		WHERE id = ?
	`,
		a.Title,
		a.Description,
		string(a.Status),
		string(a.Priority),
		a.Category,
		ts(a.StartTime),
		nullableTS(a.EndTime),
		a.EstimatedHours,
		nullableFloat(a.ActualHours),
		a.Comments,
		ts(a.LastUpdated),
		a.ID,
	)
}

// GetActivity returns activity.
func (r *Repository) GetActivity(ctx context.Context, id string) (domain.Activity, error) {
	row := r.q.QueryRowContext(ctx, `SELECT `+activityColumns+` FROM activities a WHERE a.id = ?`, id)
	return scanActivity(row)
}

// ListActivities lists activities matching filter ordered by start time.
func (r *Repository) ListActivities(ctx context.Context, filter app.ActivityFilter) ([]domain.Activity, error) {
	var (
		where []string
		args  []any
	)
	if owner := strings.TrimSpace(filter.OwnerID); owner != "" {
		where = append(where, `a.owner_id = ?`)
		args = append(args, owner)
	}
	if dept := strings.TrimSpace(filter.Department); dept != "" {
		where = append(where, `u.department = ?`)
		args = append(args, dept)
	}
	if len(filter.Statuses) > 0 {
		marks := make([]string, 0, len(filter.Statuses))
		for _, st := range filter.Statuses {
			marks = append(marks, "?")
			args = append(args, string(st))
		}
		where = append(where, `a.status IN (`+strings.Join(marks, ", ")+`)`)
	}
	if !filter.StartFrom.IsZero() {
		where = append(where, `a.start_time >= ?`)
		args = append(args, ts(filter.StartFrom))
	}
	if !filter.StartTo.IsZero() {
		where = append(where, `a.start_time < ?`)
		args = append(args, ts(filter.StartTo))
	}
	if !filter.EndFrom.IsZero() {
		where = append(where, `a.end_time >= ?`)
		args = append(args, ts(filter.EndFrom))
	}

	query := `SELECT ` + activityColumns + ` FROM activities a JOIN users u ON u.id = a.owner_id`
	if len(where) > 0 {
		query += ` WHERE ` + strings.Join(where, ` AND `)
	}
	query += ` ORDER BY a.start_time ASC, a.id ASC`
	return queryAll(ctx, r.q, scanActivity, query, args...)
}

// DeleteActivity deletes activity. Attached rows cascade.
func (r *Repository) DeleteActivity(ctx context.Context, id string) error {
	return r.execUpdate(ctx, `DELETE FROM activities WHERE id = ?`, id)
}

// scanActivity handles scan activity.
func scanActivity(s scanner) (domain.Activity, error) {
	var (
		a          domain.Activity
		status     string
		priority   string
		startRaw   string
		endRaw     sql.NullString
		actualRaw  sql.NullFloat64
		updatedRaw string
	)
	if err := s.Scan(
		&a.ID,
		&a.OwnerID,
		&a.Title,
		&a.Description,
		&status,
		&priority,
		&a.Category,
		&startRaw,
		&endRaw,
		&a.EstimatedHours,
		&actualRaw,
		&a.Comments,
		&updatedRaw,
	); err != nil {
		return domain.Activity{}, translateScanErr(err)
	}
	a.Status = domain.NormalizeStatus(status)
	a.Priority = domain.NormalizePriority(priority)
	a.StartTime = parseTS(startRaw)
	a.EndTime = parseNullTS(endRaw)
	a.ActualHours = parseNullFloat(actualRaw)
	a.LastUpdated = parseTS(updatedRaw)
	return a, nil
}
