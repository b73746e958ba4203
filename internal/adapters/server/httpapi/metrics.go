package httpapi

import (
	"net/http"
)

// handleDashboard serves GET `/metrics/dashboard`.
func (h *Handler) handleDashboard(w http.ResponseWriter, r *http.Request) {
	scope, err := parseScope(r)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	dashboard, err := h.svc.Dashboard(r.Context(), scope)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, dashboard)
}

// handleProductivity serves GET `/metrics/productivity?window=`.
func (h *Handler) handleProductivity(w http.ResponseWriter, r *http.Request) {
	scope, err := parseScope(r)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	window, err := queryInt(r, "window")
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	series, err := h.svc.ProductivitySeries(r.Context(), scope, window)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"series": series})
}

// handleDepartmentPerformance serves GET `/metrics/departments`.
func (h *Handler) handleDepartmentPerformance(w http.ResponseWriter, r *http.Request) {
	stats, err := h.svc.DepartmentPerformance(r.Context())
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"departments": stats})
}

// handleWorkload serves GET `/metrics/workload`.
func (h *Handler) handleWorkload(w http.ResponseWriter, r *http.Request) {
	scope, err := parseScope(r)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	workload, err := h.svc.TeamWorkload(r.Context(), scope)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"workload": workload})
}

// handleTimeline serves GET `/metrics/timeline`.
func (h *Handler) handleTimeline(w http.ResponseWriter, r *http.Request) {
	scope, err := parseScope(r)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	timeline, err := h.svc.Timeline(r.Context(), scope)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"timeline": timeline})
}
