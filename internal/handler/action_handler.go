// internal/handler/action_handler.go
package handler

import (
	"encoding/json"
	"errors"
	"log"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	appErrors "github.com/unclebandit/leadflow-backend/internal/errors"
	"github.com/unclebandit/leadflow-backend/internal/model"
	"github.com/unclebandit/leadflow-backend/internal/service"
)

// ActionHandler exposes scheduled-action management over HTTP.
type ActionHandler struct {
	Service *service.ActionService
}

func NewActionHandler(svc *service.ActionService) *ActionHandler {
	return &ActionHandler{Service: svc}
}

func (h *ActionHandler) Routes(r chi.Router) {
	r.Post("/api/automations/actions", h.CreateActionHandler)
	r.Get("/api/automations/actions", h.ListActionsHandler)
	r.Get("/api/automations/actions/{id}", h.GetActionHandler)
	r.Get("/api/automations/stats", h.StatsHandler)
}

// CreateActionHandler schedules a new action
func (h *ActionHandler) CreateActionHandler(w http.ResponseWriter, r *http.Request) {
	var req service.ScheduleActionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, appErrors.NewValidationError("body", "invalid request body: "+err.Error()))
		return
	}

	action, err := h.Service.ScheduleAction(r.Context(), req)
	if err != nil {
		writeError(w, err)
		return
	}

	log.Printf("📥 Scheduled %s action %d for lead %d at %s", action.ActionType, action.ID, action.LeadID, action.ScheduledAt)
	writeJSON(w, http.StatusCreated, action)
}

// ListActionsHandler returns a paginated list of actions
func (h *ActionHandler) ListActionsHandler(w http.ResponseWriter, r *http.Request) {
	page, _ := strconv.Atoi(r.URL.Query().Get("page"))
	pageSize, _ := strconv.Atoi(r.URL.Query().Get("page_size"))
	status := model.ActionStatus(r.URL.Query().Get("status"))
	actionType := model.ActionType(r.URL.Query().Get("action_type"))

	actions, pagination, err := h.Service.ListActions(r.Context(), page, pageSize, status, actionType)
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"data":       actions,
		"pagination": pagination,
	})
}

// GetActionHandler returns a single action by ID
func (h *ActionHandler) GetActionHandler(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil || id <= 0 {
		writeError(w, appErrors.NewValidationError("id", "invalid action id"))
		return
	}

	action, err := h.Service.GetAction(r.Context(), id)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, action)
}

func (h *ActionHandler) StatsHandler(w http.ResponseWriter, r *http.Request) {
	stats, err := h.Service.Stats(r.Context())
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, stats)
}

func writeError(w http.ResponseWriter, err error) {
	status := appErrors.HTTPStatus(err)
	if status >= http.StatusInternalServerError {
		log.Println("❌ Request failed:", err)
	}

	body := map[string]any{"error": err.Error()}
	var ves *appErrors.ValidationErrors
	if errors.As(err, &ves) {
		msgs := make([]string, 0, len(ves.Errors))
		for _, e := range ves.Errors {
			msgs = append(msgs, e.Error())
		}
		body["details"] = msgs
	}
	writeJSON(w, status, body)
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(body)
}
