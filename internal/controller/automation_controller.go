// internal/controller/automation_controller.go
package controller

import (
	"context"
	"crypto/subtle"
	"encoding/json"
	"log"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	appErrors "github.com/unclebandit/leadflow-backend/internal/errors"
	"github.com/unclebandit/leadflow-backend/internal/service"
)

const cronSecretHeader = "x-cron-secret"

// ActionProcessor runs one processing pass over due actions.
type ActionProcessor interface {
	ProcessScheduledActions(ctx context.Context) (service.ProcessResult, error)
}

// Pinger reports whether the action store is reachable.
type Pinger interface {
	Ready(ctx context.Context) error
}

type AutomationController struct {
	Processor  ActionProcessor
	Store      Pinger
	CronSecret string
	Now        func() time.Time
}

func (c *AutomationController) Routes(r chi.Router) {
	r.Post("/api/automations/process", c.Process)
	r.Get("/api/automations/process", c.Health)
	r.Get("/readyz", c.Readyz)
}

func (c *AutomationController) now() time.Time {
	if c.Now != nil {
		return c.Now().UTC()
	}
	return time.Now().UTC()
}

func (c *AutomationController) authorize(r *http.Request) error {
	if c.CronSecret == "" {
		return nil
	}
	got := r.Header.Get(cronSecretHeader)
	if got == "" {
		return appErrors.NewAuthorizationError("missing " + cronSecretHeader)
	}
	if subtle.ConstantTimeCompare([]byte(got), []byte(c.CronSecret)) != 1 {
		return appErrors.NewAuthorizationError("invalid " + cronSecretHeader)
	}
	return nil
}

// Process is the cron entry point.
func (c *AutomationController) Process(w http.ResponseWriter, r *http.Request) {
	reqID := middleware.GetReqID(r.Context())

	if err := c.authorize(r); err != nil {
		log.Printf("[automations] %s rejected: %v", reqID, err)
		writeJSON(w, http.StatusUnauthorized, map[string]any{"error": "Unauthorized"})
		return
	}

	result, err := c.Processor.ProcessScheduledActions(r.Context())
	if err != nil {
		log.Printf("[automations] ❌ %s processing failed: %v", reqID, err)
		writeJSON(w, http.StatusInternalServerError, map[string]any{
			"error":   "Failed to process automations",
			"details": err.Error(),
		})
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"success":   true,
		"processed": result.Processed,
		"failed":    result.Failed,
		"retried":   result.Retried,
		"recovered": result.Recovered,
		"skipped":   result.Skipped,
		"timestamp": c.now().Format(time.RFC3339),
	})
}

// Health has no side effects.
func (c *AutomationController) Health(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"status":    "ok",
		"message":   "Automation processor is running",
		"timestamp": c.now().Format(time.RFC3339),
	})
}

func (c *AutomationController) Readyz(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), time.Second)
	defer cancel()

	if err := c.Store.Ready(ctx); err != nil {
		log.Printf("[automations] store not ready: %v", err)
		http.Error(w, "not ready", http.StatusServiceUnavailable)
		return
	}
	w.WriteHeader(http.StatusOK)
	w.Write([]byte("ready"))
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(body)
}
