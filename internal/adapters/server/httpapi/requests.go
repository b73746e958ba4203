package httpapi

import (
	"errors"
	"fmt"
	"net/http"
	"reflect"
	"strconv"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/hylla/taskmon/internal/adapters/server/common"
	"github.com/hylla/taskmon/internal/app"
	"github.com/hylla/taskmon/internal/domain"
)

type tokenRequest struct {
	Username string `json:"username" validate:"required"`
	Password string `json:"password" validate:"required"`
}

type tokenResponse struct {
	Token     string          `json:"token"`
	ExpiresAt time.Time       `json:"expires_at"`
	User      common.UserView `json:"user"`
}

type createActivityRequest struct {
	OwnerID        string     `json:"owner_id"`
	Title          string     `json:"title" validate:"required,max=200"`
	Description    string     `json:"description" validate:"required"`
	Priority       string     `json:"priority"`
	Category       string     `json:"category" validate:"max=100"`
	EstimatedHours float64    `json:"estimated_hours" validate:"gt=0"`
	Comments       string     `json:"comments"`
	StartTime      *time.Time `json:"start_time"`
	Status         string     `json:"status"`
	Tags           []string   `json:"tags" validate:"dive,required"`
}

func (req createActivityRequest) input() app.CreateActivityInput {
	in := app.CreateActivityInput{
		OwnerID:        req.OwnerID,
		Title:          req.Title,
		Description:    req.Description,
		Priority:       domain.Priority(req.Priority),
		Category:       req.Category,
		EstimatedHours: req.EstimatedHours,
		Comments:       req.Comments,
		Status:         domain.Status(req.Status),
		Tags:           req.Tags,
	}
	if req.StartTime != nil {
		in.StartTime = *req.StartTime
	}
	return in
}

type updateActivityRequest struct {
	Title          *string  `json:"title" validate:"omitempty,max=200"`
	Description    *string  `json:"description"`
	Priority       *string  `json:"priority"`
	Category       *string  `json:"category" validate:"omitempty,max=100"`
	Status         *string  `json:"status"`
	EstimatedHours *float64 `json:"estimated_hours" validate:"omitempty,gt=0"`
	Comments       *string  `json:"comments"`
}

func (req updateActivityRequest) patch() domain.ActivityPatch {
	p := domain.ActivityPatch{
		Title:          req.Title,
		Description:    req.Description,
		Category:       req.Category,
		EstimatedHours: req.EstimatedHours,
		Comments:       req.Comments,
	}
	if req.Priority != nil {
		pr := domain.Priority(*req.Priority)
		p.Priority = &pr
	}
	if req.Status != nil {
		st := domain.Status(*req.Status)
		p.Status = &st
	}
	return p
}

type recordTimeRequest struct {
	HoursSpent  float64 `json:"hours_spent" validate:"gte=0"`
	Description string  `json:"description"`
}

type commentRequest struct {
	Text string `json:"text" validate:"required"`
}

type tagRequest struct {
	Tag string `json:"tag" validate:"required,max=50"`
}

type dependencyRequest struct {
	DependsOnID string `json:"depends_on_id" validate:"required"`
}

type reminderRequest struct {
	RecipientID string    `json:"recipient_id"`
	ReminderAt  time.Time `json:"reminder_at" validate:"required"`
	Channel     string    `json:"channel" validate:"omitempty,oneof=email in_app"`
}

type createUserRequest struct {
	Username   string `json:"username" validate:"required,max=64"`
	Password   string `json:"password" validate:"required,min=8"`
	Role       string `json:"role" validate:"omitempty,oneof=common supervisor admin"`
	FullName   string `json:"full_name"`
	Email      string `json:"email" validate:"omitempty,email"`
	Department string `json:"department"`
}

type updateUserRequest struct {
	FullName   *string `json:"full_name"`
	Email      *string `json:"email" validate:"omitempty,email"`
	Department *string `json:"department"`
	Role       *string `json:"role" validate:"omitempty,oneof=common supervisor admin"`
	Status     *string `json:"status" validate:"omitempty,oneof=active inactive"`
	Password   *string `json:"password" validate:"omitempty,min=8"`
}

func (req updateUserRequest) input() app.UpdateUserInput {
	in := app.UpdateUserInput{
		FullName:   req.FullName,
		Email:      req.Email,
		Department: req.Department,
		Password:   req.Password,
	}
	if req.Role != nil {
		role := domain.Role(*req.Role)
		in.Role = &role
	}
	if req.Status != nil {
		status := domain.UserStatus(*req.Status)
		in.Status = &status
	}
	return in
}

type departmentRequest struct {
	Name        string `json:"name" validate:"required,max=100"`
	Description string `json:"description"`
}

// newValidator reports fields by their JSON names.
func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name, _, _ := strings.Cut(fld.Tag.Get("json"), ",")
		if name == "-" {
			return ""
		}
		return name
	})
	return v
}

// validateStruct runs struct tags and wraps failures as invalid requests.
func (h *Handler) validateStruct(v any) error {
	err := h.validate.Struct(v)
	if err == nil {
		return nil
	}
	var fieldErrs validator.ValidationErrors
	if !errors.As(err, &fieldErrs) {
		return fmt.Errorf("%w: %v", common.ErrInvalidRequest, err)
	}
	parts := make([]string, 0, len(fieldErrs))
	for _, fe := range fieldErrs {
		if fe.Param() != "" {
			parts = append(parts, fmt.Sprintf("%s must satisfy %s=%s", fe.Field(), fe.Tag(), fe.Param()))
			continue
		}
		parts = append(parts, fmt.Sprintf("%s is %s", fe.Field(), fe.Tag()))
	}
	return fmt.Errorf("%w: %s", common.ErrInvalidRequest, strings.Join(parts, "; "))
}

// parseScope reads department, owner_id, status, from and to query parameters. Dates
// accept RFC3339 or YYYY-MM-DD.
func parseScope(r *http.Request) (app.Scope, error) {
	q := r.URL.Query()
	scope := app.Scope{
		Department: strings.TrimSpace(q.Get("department")),
		OwnerID:    strings.TrimSpace(q.Get("owner_id")),
	}
	for _, raw := range q["status"] {
		for _, st := range strings.Split(raw, ",") {
			if st = strings.TrimSpace(st); st != "" {
				scope.Statuses = append(scope.Statuses, domain.Status(st))
			}
		}
	}
	var err error
	if scope.From, err = parseQueryTime(q.Get("from")); err != nil {
		return app.Scope{}, fmt.Errorf("%w: from: %v", common.ErrInvalidRequest, err)
	}
	if scope.To, err = parseQueryTime(q.Get("to")); err != nil {
		return app.Scope{}, fmt.Errorf("%w: to: %v", common.ErrInvalidRequest, err)
	}
	return scope, nil
}

func parseQueryTime(raw string) (time.Time, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return time.Time{}, nil
	}
	if t, err := time.Parse(time.RFC3339, raw); err == nil {
		return t, nil
	}
	return time.ParseInLocation(time.DateOnly, raw, time.Local)
}

// queryInt parses an optional non-negative integer parameter.
func queryInt(r *http.Request, name string) (int, error) {
	raw := strings.TrimSpace(r.URL.Query().Get(name))
	if raw == "" {
		return 0, nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n < 0 {
		return 0, fmt.Errorf("%w: %s must be a non-negative integer", common.ErrInvalidRequest, name)
	}
	return n, nil
}
