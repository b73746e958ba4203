package domain

import (
	"slices"
	"strings"
	"time"
)

// Role controls what a user may see and mutate.
type Role string

// Role values.
const (
	RoleCommon     Role = "common"
	RoleSupervisor Role = "supervisor"
	RoleAdmin      Role = "admin"
)

var validRoles = []Role{RoleCommon, RoleSupervisor, RoleAdmin}

// NormalizeRole canonicalizes raw role input.
func NormalizeRole(raw string) Role {
	return Role(strings.ToLower(strings.TrimSpace(raw)))
}

// IsValidRole reports whether r is a known role.
func IsValidRole(r Role) bool {
	return slices.Contains(validRoles, r)
}

// CanManageAll reports whether the role may mutate activities it does not own.
func (r Role) CanManageAll() bool {
	return r == RoleSupervisor || r == RoleAdmin
}

// UserStatus marks whether an account can authenticate.
type UserStatus string

// UserStatus values.
const (
	UserStatusActive   UserStatus = "active"
	UserStatusInactive UserStatus = "inactive"
)

// User is one account.
type User struct {
	ID           string
	Username     string
	PasswordHash string
	Role         Role
	FullName     string
	Email        string
	Department   string
	Status       UserStatus
	LastLogin    *time.Time
	CreatedAt    time.Time
}

// UserInput holds input values for user creation.
type UserInput struct {
	ID           string
	Username     string
	PasswordHash string
	Role         Role
	FullName     string
	Email        string
	Department   string
	Status       UserStatus
}

// NewUser validates input and builds a user. The password must already be hashed.
func NewUser(in UserInput, now time.Time) (User, error) {
	in.ID = strings.TrimSpace(in.ID)
	in.Username = NormalizeUsername(in.Username)
	in.FullName = strings.TrimSpace(in.FullName)
	in.Email = strings.TrimSpace(in.Email)
	in.Department = strings.TrimSpace(in.Department)
	in.Role = NormalizeRole(string(in.Role))
	in.Status = UserStatus(strings.ToLower(strings.TrimSpace(string(in.Status))))

	if in.ID == "" {
		return User{}, ErrInvalidID
	}
	if !validUsername(in.Username) {
		return User{}, ErrInvalidUsername
	}
	if strings.TrimSpace(in.PasswordHash) == "" {
		return User{}, ErrInvalidPassword
	}
	if in.Role == "" {
		in.Role = RoleCommon
	}
	if !IsValidRole(in.Role) {
		return User{}, ErrInvalidRole
	}
	if in.Status == "" {
		in.Status = UserStatusActive
	}
	if in.Status != UserStatusActive && in.Status != UserStatusInactive {
		return User{}, ErrInvalidUserStatus
	}
	if in.Email != "" && !strings.Contains(in.Email, "@") {
		return User{}, ErrInvalidEmail
	}

	return User{
		ID:           in.ID,
		Username:     in.Username,
		PasswordHash: in.PasswordHash,
		Role:         in.Role,
		FullName:     in.FullName,
		Email:        in.Email,
		Department:   in.Department,
		Status:       in.Status,
		CreatedAt:    now.UTC(),
	}, nil
}

// NormalizeUsername trims and lowercases a username.
func NormalizeUsername(raw string) string {
	return strings.ToLower(strings.TrimSpace(raw))
}

func validUsername(username string) bool {
	if username == "" || len(username) > 64 {
		return false
	}
	return !strings.ContainsAny(username, " \t\r\n")
}

// UpdateProfile replaces the editable profile fields.
func (u *User) UpdateProfile(fullName, email, department string) error {
	email = strings.TrimSpace(email)
	if email != "" && !strings.Contains(email, "@") {
		return ErrInvalidEmail
	}
	u.FullName = strings.TrimSpace(fullName)
	u.Email = email
	u.Department = strings.TrimSpace(department)
	return nil
}

func (u *User) SetRole(role Role) error {
	role = NormalizeRole(string(role))
	if !IsValidRole(role) {
		return ErrInvalidRole
	}
	u.Role = role
	return nil
}

func (u *User) SetStatus(status UserStatus) error {
	status = UserStatus(strings.ToLower(strings.TrimSpace(string(status))))
	if status != UserStatusActive && status != UserStatusInactive {
		return ErrInvalidUserStatus
	}
	u.Status = status
	return nil
}

// RecordLogin stamps the last successful authentication time.
func (u *User) RecordLogin(now time.Time) {
	ts := now.UTC()
	u.LastLogin = &ts
}

// IsActive reports whether the account may authenticate.
func (u User) IsActive() bool {
	return u.Status == UserStatusActive
}

// Department groups users for reporting.
type Department struct {
	ID          string
	Name        string
	Description string
}

// NewDepartment validates and builds a department.
func NewDepartment(id, name, description string) (Department, error) {
	id = strings.TrimSpace(id)
	name = strings.TrimSpace(name)
	if id == "" {
		return Department{}, ErrInvalidID
	}
	if name == "" {
		return Department{}, ErrInvalidName
	}
	return Department{
		ID:          id,
		Name:        name,
		Description: strings.TrimSpace(description),
	}, nil
}
