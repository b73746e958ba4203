package app

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/hylla/taskmon/internal/domain"
	"golang.org/x/crypto/bcrypt"
)

// CreateUserInput holds input values for user creation.
type CreateUserInput struct {
	Username   string
	Password   string
	Role       domain.Role
	FullName   string
	Email      string
	Department string
}

// CreateUser registers a new account. Admin only.
func (s *Service) CreateUser(ctx context.Context, in CreateUserInput) (domain.User, error) {
	actor, err := requireActor(ctx)
	if err != nil {
		return domain.User{}, err
	}
	if actor.Role != domain.RoleAdmin {
		return domain.User{}, ErrForbidden
	}
	user, err := s.newUser(in)
	if err != nil {
		return domain.User{}, err
	}
	err = s.mutate(ctx, func(ctx context.Context, tx Repository) error {
		if err := insertUser(ctx, tx, user); err != nil {
			return err
		}
		return s.audit(ctx, tx, actor.UserID, domain.AuditCreateUser, detailPairs(
			"user", user.ID,
			"username", user.Username,
			"role", string(user.Role),
		))
	})
	if err != nil {
		return domain.User{}, err
	}
	return user, nil
}

// newUser hashes the password and validates the account fields.
func (s *Service) newUser(in CreateUserInput) (domain.User, error) {
	hash, err := s.hashPassword(in.Password)
	if err != nil {
		return domain.User{}, err
	}
	return domain.NewUser(domain.UserInput{
		ID:           s.idGen(),
		Username:     in.Username,
		PasswordHash: hash,
		Role:         in.Role,
		FullName:     in.FullName,
		Email:        in.Email,
		Department:   in.Department,
	}, s.clock())
}

// insertUser checks username uniqueness and the department reference, then stores user.
func insertUser(ctx context.Context, tx Repository, user domain.User) error {
	if _, err := tx.GetUserByUsername(ctx, user.Username); err == nil {
		return fmt.Errorf("%w: username %q is taken", ErrConflict, user.Username)
	} else if !errors.Is(err, ErrNotFound) {
		return err
	}
	if user.Department != "" {
		if _, err := tx.GetDepartment(ctx, user.Department); err != nil {
			return fmt.Errorf("department %q: %w", user.Department, err)
		}
	}
	return tx.CreateUser(ctx, user)
}

func (s *Service) hashPassword(password string) (string, error) {
	if len(password) < MinPasswordLength {
		return "", fmt.Errorf("%w: at least %d characters required", domain.ErrInvalidPassword, MinPasswordLength)
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(password), s.passwordCost)
	if err != nil {
		return "", fmt.Errorf("hash password: %w", err)
	}
	return string(hash), nil
}

// UpdateUserInput holds optional user changes. Nil fields are left untouched.
type UpdateUserInput struct {
	FullName   *string
	Email      *string
	Department *string
	Role       *domain.Role
	Status     *domain.UserStatus
	Password   *string
}

// UpdateUser edits an account. Admins may change anything; users may change their own
// name, email and password.
func (s *Service) UpdateUser(ctx context.Context, id string, in UpdateUserInput) (domain.User, error) {
	actor, err := requireActor(ctx)
	if err != nil {
		return domain.User{}, err
	}
	id = strings.TrimSpace(id)
	isAdmin := actor.Role == domain.RoleAdmin
	if !isAdmin {
		if actor.UserID != id || in.Role != nil || in.Status != nil || in.Department != nil {
			return domain.User{}, ErrForbidden
		}
	}
	var hash string
	if in.Password != nil {
		if hash, err = s.hashPassword(*in.Password); err != nil {
			return domain.User{}, err
		}
	}

	var out domain.User
	err = s.mutate(ctx, func(ctx context.Context, tx Repository) error {
		user, err := tx.GetUser(ctx, id)
		if err != nil {
			return err
		}
		fullName, email, department := user.FullName, user.Email, user.Department
		if in.FullName != nil {
			fullName = *in.FullName
		}
		if in.Email != nil {
			email = *in.Email
		}
		if in.Department != nil {
			department = strings.TrimSpace(*in.Department)
			if department != "" && department != user.Department {
				if _, err := tx.GetDepartment(ctx, department); err != nil {
					return fmt.Errorf("department %q: %w", department, err)
				}
			}
		}
		if err := user.UpdateProfile(fullName, email, department); err != nil {
			return err
		}
		if in.Role != nil {
			if err := user.SetRole(*in.Role); err != nil {
				return err
			}
		}
		if in.Status != nil {
			if err := user.SetStatus(*in.Status); err != nil {
				return err
			}
		}
		if hash != "" {
			user.PasswordHash = hash
		}
		if err := tx.UpdateUser(ctx, user); err != nil {
			return err
		}
		out = user
		return s.audit(ctx, tx, actor.UserID, domain.AuditUpdateUser, detailPairs(
			"user", user.ID,
			"role", string(user.Role),
			"status", string(user.Status),
			"password_changed", fmt.Sprint(hash != ""),
		))
	})
	if err != nil {
		return domain.User{}, err
	}
	return out, nil
}

// GetUser returns one account. Users may read themselves; supervisors and admins anyone.
func (s *Service) GetUser(ctx context.Context, id string) (domain.User, error) {
	actor, err := requireActor(ctx)
	if err != nil {
		return domain.User{}, err
	}
	id = strings.TrimSpace(id)
	if id != actor.UserID && !actor.Role.CanManageAll() {
		return domain.User{}, ErrForbidden
	}
	var out domain.User
	err = s.read(ctx, func(ctx context.Context) error {
		user, err := s.repo.GetUser(ctx, id)
		out = user
		return err
	})
	return out, err
}

// ListUsers returns every account. Supervisors and admins only.
func (s *Service) ListUsers(ctx context.Context) ([]domain.User, error) {
	actor, err := requireActor(ctx)
	if err != nil {
		return nil, err
	}
	if !actor.Role.CanManageAll() {
		return nil, ErrForbidden
	}
	var out []domain.User
	err = s.read(ctx, func(ctx context.Context) error {
		users, err := s.repo.ListUsers(ctx)
		out = users
		return err
	})
	return out, err
}

// Authenticate verifies credentials and records the login. Every failure reports
// ErrInvalidCredentials so callers cannot tell which usernames exist.
func (s *Service) Authenticate(ctx context.Context, username, password string) (domain.User, error) {
	username = domain.NormalizeUsername(username)
	if username == "" || password == "" {
		return domain.User{}, ErrInvalidCredentials
	}
	var out domain.User
	err := s.mutate(ctx, func(ctx context.Context, tx Repository) error {
		user, err := tx.GetUserByUsername(ctx, username)
		if errors.Is(err, ErrNotFound) {
			return ErrInvalidCredentials
		}
		if err != nil {
			return err
		}
		if !user.IsActive() {
			return ErrInvalidCredentials
		}
		if bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(password)) != nil {
			return ErrInvalidCredentials
		}
		user.RecordLogin(s.clock())
		if err := tx.UpdateUser(ctx, user); err != nil {
			return err
		}
		out = user
		return s.audit(ctx, tx, user.ID, domain.AuditLogin, detailPairs("user", user.ID))
	})
	if err != nil {
		return domain.User{}, err
	}
	return out, nil
}

// ResolveActor reloads the account behind a verified token subject so role, department
// and status changes apply to tokens issued earlier. Missing and inactive accounts report
// ErrInvalidCredentials.
func (s *Service) ResolveActor(ctx context.Context, userID string) (Actor, error) {
	userID = strings.TrimSpace(userID)
	if userID == "" {
		return Actor{}, ErrInvalidCredentials
	}
	var out Actor
	err := s.read(ctx, func(ctx context.Context) error {
		user, err := s.repo.GetUser(ctx, userID)
		if errors.Is(err, ErrNotFound) {
			return ErrInvalidCredentials
		}
		if err != nil {
			return err
		}
		if !user.IsActive() {
			return ErrInvalidCredentials
		}
		out = ActorFromUser(user)
		return nil
	})
	if err != nil {
		return Actor{}, err
	}
	return out, nil
}

// ProvisionAdminInput holds the first administrator account.
type ProvisionAdminInput struct {
	Username string
	Password string
	FullName string
	Email    string
}

// ProvisionAdmin creates the first administrator. It fails with ErrAlreadyProvisioned
// once any admin exists.
func (s *Service) ProvisionAdmin(ctx context.Context, in ProvisionAdminInput) (domain.User, error) {
	user, err := s.newUser(CreateUserInput{
		Username: in.Username,
		Password: in.Password,
		Role:     domain.RoleAdmin,
		FullName: in.FullName,
		Email:    in.Email,
	})
	if err != nil {
		return domain.User{}, err
	}
	err = s.mutate(ctx, func(ctx context.Context, tx Repository) error {
		admins, err := tx.CountUsersByRole(ctx, domain.RoleAdmin)
		if err != nil {
			return err
		}
		if admins > 0 {
			return ErrAlreadyProvisioned
		}
		if err := insertUser(ctx, tx, user); err != nil {
			return err
		}
		return s.audit(ctx, tx, user.ID, domain.AuditProvisionAdmin, detailPairs(
			"user", user.ID,
			"username", user.Username,
		))
	})
	if err != nil {
		return domain.User{}, err
	}
	return user, nil
}

// CreateDepartment registers a department. Admin only.
func (s *Service) CreateDepartment(ctx context.Context, name, description string) (domain.Department, error) {
	actor, err := requireActor(ctx)
	if err != nil {
		return domain.Department{}, err
	}
	if actor.Role != domain.RoleAdmin {
		return domain.Department{}, ErrForbidden
	}
	dept, err := domain.NewDepartment(s.idGen(), name, description)
	if err != nil {
		return domain.Department{}, err
	}
	err = s.mutate(ctx, func(ctx context.Context, tx Repository) error {
		if _, err := tx.GetDepartment(ctx, dept.Name); err == nil {
			return fmt.Errorf("%w: department %q exists", ErrConflict, dept.Name)
		} else if !errors.Is(err, ErrNotFound) {
			return err
		}
		if err := tx.CreateDepartment(ctx, dept); err != nil {
			return err
		}
		return s.audit(ctx, tx, actor.UserID, domain.AuditCreateDepartment, detailPairs("department", dept.Name))
	})
	if err != nil {
		return domain.Department{}, err
	}
	return dept, nil
}

// ListDepartments returns departments sorted by name.
func (s *Service) ListDepartments(ctx context.Context) ([]domain.Department, error) {
	if _, err := requireActor(ctx); err != nil {
		return nil, err
	}
	var out []domain.Department
	err := s.read(ctx, func(ctx context.Context) error {
		depts, err := s.repo.ListDepartments(ctx)
		out = depts
		return err
	})
	return out, err
}

// DeleteDepartment removes a department no user references. Admin only.
func (s *Service) DeleteDepartment(ctx context.Context, name string) error {
	actor, err := requireActor(ctx)
	if err != nil {
		return err
	}
	if actor.Role != domain.RoleAdmin {
		return ErrForbidden
	}
	name = strings.TrimSpace(name)
	return s.mutate(ctx, func(ctx context.Context, tx Repository) error {
		if _, err := tx.GetDepartment(ctx, name); err != nil {
			return err
		}
		members, err := tx.CountUsersInDepartment(ctx, name)
		if err != nil {
			return err
		}
		if members > 0 {
			return ErrDepartmentInUse
		}
		if err := tx.DeleteDepartment(ctx, name); err != nil {
			return err
		}
		return s.audit(ctx, tx, actor.UserID, domain.AuditDeleteDepartment, detailPairs("department", name))
	})
}
