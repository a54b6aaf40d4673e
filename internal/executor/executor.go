package executor

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"sync"

	appErrors "github.com/unclebandit/leadflow-backend/internal/errors"
	"github.com/unclebandit/leadflow-backend/internal/model"
)

// Executor performs the single side effect behind one action type. It must
// not retry internally.
type Executor interface {
	Type() model.ActionType
	Validate(payload json.RawMessage) error
	Execute(ctx context.Context, action *model.ScheduledAction) error
}

// Registry dispatches actions to executors by action type.
type Registry struct {
	mu        sync.RWMutex
	executors map[model.ActionType]Executor
}

func NewRegistry(executors ...Executor) *Registry {
	r := &Registry{executors: make(map[model.ActionType]Executor)}
	for _, e := range executors {
		r.Register(e)
	}
	return r
}

// Register adds or replaces the executor for e.Type().
func (r *Registry) Register(e Executor) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.executors[e.Type()] = e
}

func (r *Registry) Lookup(t model.ActionType) (Executor, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	e, ok := r.executors[t]
	if !ok {
		return nil, appErrors.NewUnknownActionType(string(t))
	}
	return e, nil
}

// Validate checks a payload against the executor registered for t.
func (r *Registry) Validate(t model.ActionType, payload json.RawMessage) error {
	e, err := r.Lookup(t)
	if err != nil {
		return err
	}
	return e.Validate(payload)
}

func (r *Registry) Types() []model.ActionType {
	r.mu.RLock()
	defer r.mu.RUnlock()

	types := make([]model.ActionType, 0, len(r.executors))
	for t := range r.executors {
		types = append(types, t)
	}
	sort.Slice(types, func(i, j int) bool { return types[i] < types[j] })
	return types
}

func decodePayload(payload json.RawMessage, v any) error {
	if len(payload) == 0 {
		return appErrors.NewValidationError("payload", "is required")
	}
	if err := json.Unmarshal(payload, v); err != nil {
		return appErrors.NewValidationError("payload", fmt.Sprintf("invalid JSON: %v", err))
	}
	return nil
}
