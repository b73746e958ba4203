package sqlite

import (
	"context"
	"database/sql"
	"strings"

	"github.com/hylla/taskmon/internal/app"
	"github.com/hylla/taskmon/internal/domain"
)

var _ app.Repository = (*Repository)(nil)

const userColumns = `id, username, password_hash, role, full_name, email, department, status, last_login, created_at`

// CreateUser creates user.
func (r *Repository) CreateUser(ctx context.Context, u domain.User) error {
	return r.execWrite(ctx, `
		INSERT INTO users(`+userColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`, u.ID, u.Username, u.PasswordHash, string(u.Role), u.FullName, u.Email, u.Department, string(u.Status),
		nullableTS(u.LastLogin), ts(u.CreatedAt))
}

// UpdateUser updates state for the requested operation.
func (r *Repository) UpdateUser(ctx context.Context, u domain.User) error {
	return r.execUpdate(ctx, `
		UPDATE users
		SET password_hash = ?, role = ?, full_name = ?, email = ?, department = ?, status = ?, last_login = ?
		WHERE id = ?
	`, u.PasswordHash, string(u.Role), u.FullName, u.Email, u.Department, string(u.Status), nullableTS(u.LastLogin), u.ID)
}

// GetUser returns user.
func (r *Repository) GetUser(ctx context.Context, id string) (domain.User, error) {
	row := r.q.QueryRowContext(ctx, `SELECT `+userColumns+` FROM users WHERE id = ?`, id)
	return scanUser(row)
}

// GetUserByUsername returns the user with the normalized username.
func (r *Repository) GetUserByUsername(ctx context.Context, username string) (domain.User, error) {
	row := r.q.QueryRowContext(ctx, `SELECT `+userColumns+` FROM users WHERE username = ?`, domain.NormalizeUsername(username))
	return scanUser(row)
}

// ListUsers lists users.
func (r *Repository) ListUsers(ctx context.Context) ([]domain.User, error) {
	return queryAll(ctx, r.q, scanUser, `SELECT `+userColumns+` FROM users ORDER BY username ASC`)
}

// CountUsersByRole counts users holding role.
func (r *Repository) CountUsersByRole(ctx context.Context, role domain.Role) (int, error) {
	return countRows(ctx, r.q, `SELECT COUNT(*) FROM users WHERE role = ?`, string(role))
}

// CreateDepartment creates department.
func (r *Repository) CreateDepartment(ctx context.Context, d domain.Department) error {
	return r.execWrite(ctx, `
		INSERT INTO departments(id, name, description)
		VALUES (?, ?, ?)
	`, d.ID, d.Name, d.Description)
}

// GetDepartment returns the department named name.
func (r *Repository) GetDepartment(ctx context.Context, name string) (domain.Department, error) {
	row := r.q.QueryRowContext(ctx, `SELECT id, name, description FROM departments WHERE name = ?`, strings.TrimSpace(name))
	return scanDepartment(row)
}

// ListDepartments lists departments.
func (r *Repository) ListDepartments(ctx context.Context) ([]domain.Department, error) {
	return queryAll(ctx, r.q, scanDepartment, `SELECT id, name, description FROM departments ORDER BY name ASC`)
}

// DeleteDepartment deletes department.
func (r *Repository) DeleteDepartment(ctx context.Context, name string) error {
	return r.execUpdate(ctx, `DELETE FROM departments WHERE name = ?`, strings.TrimSpace(name))
}

// CountUsersInDepartment counts users referencing the department.
func (r *Repository) CountUsersInDepartment(ctx context.Context, name string) (int, error) {
	return countRows(ctx, r.q, `SELECT COUNT(*) FROM users WHERE department = ?`, strings.TrimSpace(name))
}

func scanUser(s scanner) (domain.User, error) {
	var (
		u          domain.User
		role       string
		status     string
		lastLogin  sql.NullString
		createdRaw string
	)
	if err := s.Scan(
		&u.ID,
		&u.Username,
		&u.PasswordHash,
		&role,
		&u.FullName,
		&u.Email,
		&u.Department,
		&status,
		&lastLogin,
		&createdRaw,
	); err != nil {
		return domain.User{}, translateScanErr(err)
	}
	u.Role = domain.NormalizeRole(role)
	u.Status = domain.UserStatus(status)
	u.LastLogin = parseNullTS(lastLogin)
	u.CreatedAt = parseTS(createdRaw)
	return u, nil
}

func scanDepartment(s scanner) (domain.Department, error) {
	var d domain.Department
	if err := s.Scan(&d.ID, &d.Name, &d.Description); err != nil {
		return domain.Department{}, translateScanErr(err)
	}
	return d, nil
}
