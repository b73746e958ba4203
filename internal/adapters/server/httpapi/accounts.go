package httpapi

import (
	"errors"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/hylla/taskmon/internal/adapters/server/common"
	"github.com/hylla/taskmon/internal/app"
	"github.com/hylla/taskmon/internal/domain"
)

// handleIssueToken serves POST `/auth/token`.
func (h *Handler) handleIssueToken(w http.ResponseWriter, r *http.Request) {
	if h.tokens == nil {
		writeJSONError(w, http.StatusServiceUnavailable, APIError{
			Code:    "service_unavailable",
			Message: "token issuing is not configured",
		})
		return
	}
	req, ok := bind[tokenRequest](h, w, r)
	if !ok {
		return
	}
	user, err := h.svc.Authenticate(r.Context(), req.Username, req.Password)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	token, expires, err := h.tokens.Issue(user)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, tokenResponse{
		Token:     token,
		ExpiresAt: expires,
		User:      common.NewUserView(user),
	})
}

// handleListUsers serves GET `/users`.
func (h *Handler) handleListUsers(w http.ResponseWriter, r *http.Request) {
	users, err := h.svc.ListUsers(r.Context())
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"users": common.UserViews(users)})
}

// handleCreateUser serves POST `/users`.
func (h *Handler) handleCreateUser(w http.ResponseWriter, r *http.Request) {
	req, ok := bind[createUserRequest](h, w, r)
	if !ok {
		return
	}
	user, err := h.svc.CreateUser(r.Context(), app.CreateUserInput{
		Username:   req.Username,
		Password:   req.Password,
		Role:       domain.Role(req.Role),
		FullName:   req.FullName,
		Email:      req.Email,
		Department: req.Department,
	})
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, common.NewUserView(user))
}

// handleUpdateUser serves PATCH `/users/{id}`.
func (h *Handler) handleUpdateUser(w http.ResponseWriter, r *http.Request) {
	req, ok := bind[updateUserRequest](h, w, r)
	if !ok {
		return
	}
	user, err := h.svc.UpdateUser(r.Context(), strings.TrimSpace(chi.URLParam(r, "id")), req.input())
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, common.NewUserView(user))
}

// handleListDepartments serves GET `/departments`.
func (h *Handler) handleListDepartments(w http.ResponseWriter, r *http.Request) {
	departments, err := h.svc.ListDepartments(r.Context())
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"departments": common.DepartmentViews(departments)})
}

// handleCreateDepartment serves POST `/departments`.
func (h *Handler) handleCreateDepartment(w http.ResponseWriter, r *http.Request) {
	req, ok := bind[departmentRequest](h, w, r)
	if !ok {
		return
	}
	dept, err := h.svc.CreateDepartment(r.Context(), req.Name, req.Description)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, common.DepartmentViews([]domain.Department{dept})[0])
}

// handleDeleteDepartment serves DELETE `/departments/{name}`.
func (h *Handler) handleDeleteDepartment(w http.ResponseWriter, r *http.Request) {
	err := h.svc.DeleteDepartment(r.Context(), chi.URLParam(r, "name"))
	if errors.Is(err, app.ErrDepartmentInUse) {
		writeJSONError(w, http.StatusConflict, APIError{
			Code:    "department_in_use",
			Message: err.Error(),
			Hint:    "Move or update the users of this department first.",
		})
		return
	}
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// handleListAudit serves GET `/audit?limit=`.
func (h *Handler) handleListAudit(w http.ResponseWriter, r *http.Request) {
	limit, err := queryInt(r, "limit")
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	entries, err := h.svc.ListAudit(r.Context(), limit)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"entries": common.AuditViews(entries)})
}
