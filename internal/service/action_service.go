// internal/service/action_service.go
package service

import (
	"context"
	"encoding/json"
	"errors"
	"math"
	"time"

	appErrors "github.com/unclebandit/leadflow-backend/internal/errors"
	"github.com/unclebandit/leadflow-backend/internal/executor"
	"github.com/unclebandit/leadflow-backend/internal/model"
	"github.com/unclebandit/leadflow-backend/internal/repository"
)

// ActionService schedules and inspects automation actions.
type ActionService struct {
	Store     repository.ActionStore
	Executors *executor.Registry
	Now       func() time.Time
}

type ScheduleActionRequest struct {
	LeadID      int64            `json:"lead_id"`
	ActionType  model.ActionType `json:"action_type"`
	Payload     json.RawMessage  `json:"payload"`
	ScheduledAt *string          `json:"scheduled_at,omitempty"`
}

type Pagination struct {
	Page       int `json:"page"`
	PageSize   int `json:"page_size"`
	TotalCount int `json:"total_count"`
	TotalPages int `json:"total_pages"`
}

func (s *ActionService) now() time.Time {
	if s.Now != nil {
		return s.Now().UTC()
	}
	return time.Now().UTC()
}

// ScheduleAction validates the request against the executor for its type and
// stores a pending action. A missing scheduled_at means due immediately.
func (s *ActionService) ScheduleAction(ctx context.Context, req ScheduleActionRequest) (*model.ScheduledAction, error) {
	errs := &appErrors.ValidationErrors{}
	if req.LeadID <= 0 {
		errs.Add(appErrors.NewValidationError("lead_id", "must be a positive integer"))
	}
	if req.ActionType == "" {
		errs.Add(appErrors.NewValidationError("action_type", "is required"))
	}

	scheduledAt := s.now()
	if req.ScheduledAt != nil && *req.ScheduledAt != "" {
		t, err := time.Parse(time.RFC3339, *req.ScheduledAt)
		if err != nil {
			errs.Add(appErrors.NewValidationError("scheduled_at", "must be an RFC3339 timestamp"))
		} else {
			scheduledAt = t.UTC()
		}
	}
	if errs.HasError() {
		return nil, errs
	}

	if len(req.Payload) == 0 {
		req.Payload = json.RawMessage("{}")
	}
	if err := s.Executors.Validate(req.ActionType, req.Payload); err != nil {
		return nil, err
	}

	action := &model.ScheduledAction{
		LeadID:      req.LeadID,
		ActionType:  req.ActionType,
		Payload:     req.Payload,
		ScheduledAt: scheduledAt,
		Status:      model.StatusPending,
	}
	if err := s.Store.Create(ctx, action); err != nil {
		return nil, appErrors.NewStoreError("create action", err)
	}
	return action, nil
}

func (s *ActionService) GetAction(ctx context.Context, id int64) (*model.ScheduledAction, error) {
	action, err := s.Store.GetByID(ctx, id)
	if err != nil {
		var nf *appErrors.ErrActionNotFound
		if errors.As(err, &nf) {
			return nil, err
		}
		return nil, appErrors.NewStoreError("get action", err)
	}
	return action, nil
}

// ListActions fetches actions with pagination, newest first.
func (s *ActionService) ListActions(ctx context.Context, page, pageSize int, status model.ActionStatus, actionType model.ActionType) ([]*model.ScheduledAction, Pagination, error) {
	if page < 1 {
		page = 1
	}
	if pageSize < 1 {
		pageSize = 20
	}
	if pageSize > 100 {
		pageSize = 100
	}
	if page > math.MaxInt/pageSize {
		return nil, Pagination{}, appErrors.NewValidationError("page", "is too large")
	}

	if status != "" && !isKnownStatus(status) {
		return nil, Pagination{}, appErrors.NewValidationError("status", "must be one of pending, processing, completed, failed")
	}

	actions, total, err := s.Store.List(ctx, repository.ListFilter{
		Status:     status,
		ActionType: actionType,
		Offset:     (page - 1) * pageSize,
		Limit:      pageSize,
	})
	if err != nil {
		return nil, Pagination{}, appErrors.NewStoreError("list actions", err)
	}

	return actions, Pagination{
		Page:       page,
		PageSize:   pageSize,
		TotalCount: total,
		TotalPages: (total + pageSize - 1) / pageSize,
	}, nil
}

func isKnownStatus(status model.ActionStatus) bool {
	for _, s := range model.AllStatuses {
		if s == status {
			return true
		}
	}
	return false
}

func (s *ActionService) Stats(ctx context.Context) (map[model.ActionStatus]int, error) {
	stats, err := s.Store.CountByStatus(ctx)
	if err != nil {
		return nil, appErrors.NewStoreError("count actions", err)
	}
	return stats, nil
}

func (s *ActionService) Ready(ctx context.Context) error {
	if err := s.Store.Ping(ctx); err != nil {
		return appErrors.NewStoreError("ping", err)
	}
	return nil
}
