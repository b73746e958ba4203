// Package httpapi provides the REST HTTP adapter for the server surfaces.
package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/charmbracelet/log"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-playground/validator/v10"
	"github.com/hylla/taskmon/internal/adapters/server/common"
)

// maxRequestBodyBytes limits decoded JSON payload size for fail-closed request handling.
const maxRequestBodyBytes int64 = 1 << 20

// Observer records one finished request.
type Observer interface {
	Observe(method, route string, status int, elapsed time.Duration)
}

// Options carries optional handler collaborators.
type Options struct {
	Tokens   common.Tokens
	Logger   *log.Logger
	Observer Observer
	Clock    func() time.Time
}

// Handler serves the versioned API subrouter mounted under `/api/v1`.
type Handler struct {
	svc      common.Service
	tokens   common.Tokens
	logger   *log.Logger
	observer Observer
	clock    func() time.Time
	validate *validator.Validate
	router   chi.Router
}

// APIError represents one structured API failure response.
type APIError struct {
	Code    string         `json:"code"`
	Message string         `json:"message"`
	Hint    string         `json:"hint,omitempty"`
	Context map[string]any `json:"context,omitempty"`
}

// ErrorEnvelope wraps one structured API error.
type ErrorEnvelope struct {
	Error APIError `json:"error"`
}

// NewHandler constructs the API router over svc.
func NewHandler(svc common.Service, opts Options) *Handler {
	h := &Handler{
		svc:      svc,
		tokens:   opts.Tokens,
		logger:   opts.Logger,
		observer: opts.Observer,
		clock:    opts.Clock,
		validate: newValidator(),
	}
	if h.clock == nil {
		h.clock = time.Now
	}

	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	r.Use(h.instrument)
	r.NotFound(func(w http.ResponseWriter, _ *http.Request) {
		writeJSONError(w, http.StatusNotFound, APIError{Code: "not_found", Message: "endpoint not found"})
	})
	r.MethodNotAllowed(func(w http.ResponseWriter, _ *http.Request) {
		writeJSONError(w, http.StatusMethodNotAllowed, APIError{Code: "method_not_allowed", Message: "method not allowed"})
	})

	r.Post("/auth/token", h.handleIssueToken)
	r.Group(func(api chi.Router) {
		api.Use(common.Authenticate(h.tokens, h.svc, h.writeError))

		api.Route("/activities", func(ar chi.Router) {
			ar.Get("/", h.handleListActivities)
			ar.Post("/", h.handleCreateActivity)
			ar.Route("/{id}", func(one chi.Router) {
				one.Get("/", h.handleGetActivity)
				one.Patch("/", h.handleUpdateActivity)
				one.Delete("/", h.handleDeleteActivity)
				one.Post("/complete", h.handleCompleteActivity)
				one.Get("/time", h.handleListTime)
				one.Post("/time", h.handleRecordTime)
				one.Get("/comments", h.handleListComments)
				one.Post("/comments", h.handleAddComment)
				one.Get("/tags", h.handleListTags)
				one.Post("/tags", h.handleAddTag)
				one.Get("/dependencies", h.handleListDependencies)
				one.Post("/dependencies", h.handleAddDependency)
				one.Delete("/dependencies/{dependsOn}", h.handleRemoveDependency)
				one.Get("/blocked", h.handleBlocked)
				one.Get("/reminders", h.handleListReminders)
				one.Post("/reminders", h.handleAddReminder)
			})
		})
		api.Get("/reminders/due", h.handleDueReminders)
		api.Post("/reminders/{id}/sent", h.handleReminderSent)

		api.Route("/metrics", func(mr chi.Router) {
			mr.Get("/dashboard", h.handleDashboard)
			mr.Get("/productivity", h.handleProductivity)
			mr.Get("/departments", h.handleDepartmentPerformance)
			mr.Get("/workload", h.handleWorkload)
			mr.Get("/timeline", h.handleTimeline)
		})

		api.Get("/users", h.handleListUsers)
		api.Post("/users", h.handleCreateUser)
		api.Patch("/users/{id}", h.handleUpdateUser)
		api.Get("/departments", h.handleListDepartments)
		api.Post("/departments", h.handleCreateDepartment)
		api.Delete("/departments/{name}", h.handleDeleteDepartment)
		api.Get("/audit", h.handleListAudit)
	})
	h.router = r
	return h
}

// ServeHTTP routes one versioned API request to the matching handler.
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	h.router.ServeHTTP(w, r)
}

// instrument logs and counts each request once the route has resolved.
func (h *Handler) instrument(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		started := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)

		status := ww.Status()
		if status == 0 {
			status = http.StatusOK
		}
		elapsed := time.Since(started)
		route := ""
		if rctx := chi.RouteContext(r.Context()); rctx != nil {
			route = rctx.RoutePattern()
		}
		if h.observer != nil {
			h.observer.Observe(r.Method, route, status, elapsed)
		}
		if h.logger != nil {
			h.logger.Info("http request", "method", r.Method, "path", r.URL.Path, "status", status, "duration", elapsed)
		}
	})
}

// writeError maps service errors into structured HTTP responses. Internal causes are
// logged and never returned.
func (h *Handler) writeError(w http.ResponseWriter, r *http.Request, err error) {
	failure := common.Classify(err)
	if failure.Internal && h.logger != nil {
		h.logger.Error("request failed", "method", r.Method, "path", r.URL.Path, "err", err)
	}
	apiErr := APIError{Code: failure.Code, Message: failure.Message}
	if failure.Code == "unauthenticated" {
		w.Header().Set("WWW-Authenticate", `Bearer realm="taskmon"`)
		apiErr.Hint = "POST /auth/token to obtain a bearer token."
	}
	writeJSONError(w, failure.Status, apiErr)
}

// writeJSONError writes one structured error envelope.
func writeJSONError(w http.ResponseWriter, statusCode int, apiErr APIError) {
	writeJSON(w, statusCode, ErrorEnvelope{Error: apiErr})
}

// writeJSON writes one JSON response envelope.
func writeJSON(w http.ResponseWriter, statusCode int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		http.Error(w, fmt.Sprintf(`{"error":{"code":"encode_error","message":"%s"}}`, err.Error()), http.StatusInternalServerError)
	}
}

// decodeJSONBody decodes one required JSON request body with strict shape checks and
// validates the result.
func (h *Handler) decodeJSONBody(ctx context.Context, w http.ResponseWriter, r *http.Request, out any) error {
	reader := http.MaxBytesReader(w, r.Body, maxRequestBodyBytes)
	defer reader.Close()

	decoder := json.NewDecoder(reader)
	decoder.DisallowUnknownFields()
	if err := decoder.Decode(out); err != nil {
		return fmt.Errorf("decode request body: %w", errors.Join(common.ErrInvalidRequest, err))
	}
	// Reject trailing payloads so malformed JSON bodies fail closed.
	if err := decoder.Decode(&struct{}{}); !errors.Is(err, io.EOF) {
		return fmt.Errorf("decode request body: trailing content: %w", common.ErrInvalidRequest)
	}
	if err := h.validateStruct(out); err != nil {
		return err
	}
	select {
	case <-ctx.Done():
		return fmt.Errorf("request canceled: %w", ctx.Err())
	default:
		return nil
	}
}

// bind decodes the request body into T.
func bind[T any](h *Handler, w http.ResponseWriter, r *http.Request) (T, bool) {
	var req T
	if err := h.decodeJSONBody(r.Context(), w, r, &req); err != nil {
		h.writeError(w, r, err)
		return req, false
	}
	return req, true
}
