package repository

import (
	"context"
	"sort"
	"sync"
	"time"

	appErrors "github.com/unclebandit/leadflow-backend/internal/errors"
	"github.com/unclebandit/leadflow-backend/internal/model"
)

// MemoryActionStore keeps actions in process memory. It honours the same
// conditional-update contract as the SQL stores.
type MemoryActionStore struct {
	mu      sync.Mutex
	actions map[int64]*model.ScheduledAction
	nextID  int64
}

func NewMemoryActionStore() *MemoryActionStore {
	return &MemoryActionStore{actions: make(map[int64]*model.ScheduledAction)}
}

func (s *MemoryActionStore) Create(ctx context.Context, a *model.ScheduledAction) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.nextID++
	now := time.Now().UTC()
	a.ID = s.nextID
	if a.Status == "" {
		a.Status = model.StatusPending
	}
	if len(a.Payload) == 0 {
		a.Payload = []byte("{}")
	}
	a.CreatedAt = now
	a.UpdatedAt = now

	cp := *a
	s.actions[a.ID] = &cp
	return nil
}

func (s *MemoryActionStore) GetByID(ctx context.Context, id int64) (*model.ScheduledAction, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	a, ok := s.actions[id]
	if !ok {
		return nil, appErrors.NewActionNotFound(id)
	}
	cp := *a
	return &cp, nil
}

func (s *MemoryActionStore) List(ctx context.Context, f ListFilter) ([]*model.ScheduledAction, int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	matched := []*model.ScheduledAction{}
	for _, a := range s.actions {
		if f.matches(a) {
			cp := *a
			matched = append(matched, &cp)
		}
	}
	sort.Slice(matched, func(i, j int) bool { return matched[i].ID > matched[j].ID })

	total := len(matched)
	if f.Offset < 0 || f.Offset >= total {
		return []*model.ScheduledAction{}, total, nil
	}
	matched = matched[f.Offset:]
	if f.Limit > 0 && len(matched) > f.Limit {
		matched = matched[:f.Limit]
	}
	return matched, total, nil
}

func (s *MemoryActionStore) ListDue(ctx context.Context, now time.Time, limit int) ([]*model.ScheduledAction, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	due := []*model.ScheduledAction{}
	for _, a := range s.actions {
		if a.IsDue(now) {
			cp := *a
			due = append(due, &cp)
		}
	}
	sort.Slice(due, func(i, j int) bool {
		if due[i].ScheduledAt.Equal(due[j].ScheduledAt) {
			return due[i].ID < due[j].ID
		}
		return due[i].ScheduledAt.Before(due[j].ScheduledAt)
	})
	if limit > 0 && len(due) > limit {
		due = due[:limit]
	}
	return due, nil
}

func (s *MemoryActionStore) Claim(ctx context.Context, id int64, lockedBy string, now time.Time) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	a, ok := s.actions[id]
	if !ok || !a.IsDue(now) || !model.CanTransition(a.Status, model.StatusProcessing) {
		return false, nil
	}
	a.Status = model.StatusProcessing
	a.Attempts++
	a.LockedBy = &lockedBy
	locked := now.UTC()
	a.LockedAt = &locked
	a.UpdatedAt = locked
	return true, nil
}

func (s *MemoryActionStore) MarkCompleted(ctx context.Context, id int64, now time.Time) error {
	return s.finish(id, model.StatusCompleted, func(a *model.ScheduledAction) {
		done := now.UTC()
		a.Status = model.StatusCompleted
		a.LastError = nil
		a.CompletedAt = &done
		a.UpdatedAt = done
	})
}

func (s *MemoryActionStore) MarkFailed(ctx context.Context, id int64, lastError string, now time.Time) error {
	return s.finish(id, model.StatusFailed, func(a *model.ScheduledAction) {
		a.Status = model.StatusFailed
		a.LastError = &lastError
		a.UpdatedAt = now.UTC()
	})
}

func (s *MemoryActionStore) Reschedule(ctx context.Context, id int64, nextAt time.Time, lastError string, now time.Time) error {
	return s.finish(id, model.StatusPending, func(a *model.ScheduledAction) {
		a.Status = model.StatusPending
		a.ScheduledAt = nextAt.UTC()
		a.LastError = &lastError
		a.LockedBy = nil
		a.LockedAt = nil
		a.UpdatedAt = now.UTC()
	})
}

// finish applies a transition out of processing. Every finish target is only
// reachable from processing, so a refused transition means the claim was lost.
func (s *MemoryActionStore) finish(id int64, to model.ActionStatus, apply func(a *model.ScheduledAction)) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	a, ok := s.actions[id]
	if !ok || !model.CanTransition(a.Status, to) {
		return ErrNotProcessing
	}
	apply(a)
	return nil
}

func (s *MemoryActionStore) RecoverStale(ctx context.Context, lockedBefore time.Time, now time.Time) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var n int64
	msg := staleLeaseError
	for _, a := range s.actions {
		if model.CanTransition(a.Status, model.StatusFailed) && a.LockedAt != nil && a.LockedAt.Before(lockedBefore) {
			a.Status = model.StatusFailed
			a.LastError = &msg
			a.UpdatedAt = now.UTC()
			n++
		}
	}
	return n, nil
}

func (s *MemoryActionStore) CountByStatus(ctx context.Context) (map[model.ActionStatus]int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	stats := emptyStats()
	for _, a := range s.actions {
		stats[a.Status]++
	}
	return stats, nil
}

func (s *MemoryActionStore) Ping(ctx context.Context) error { return nil }

var _ ActionStore = (*MemoryActionStore)(nil)
