package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/unclebandit/leadflow-backend/internal/config"
	"github.com/unclebandit/leadflow-backend/internal/model"
)

// ErrNotProcessing is returned when a completion update finds the action no
// longer in processing (for example after lease recovery).
var ErrNotProcessing = errors.New("scheduled action is not in processing state")

// ActionStore persists scheduled actions. Claim is the only way an action
// leaves pending, and it must be a single conditional update.
type ActionStore interface {
	Create(ctx context.Context, a *model.ScheduledAction) error
	GetByID(ctx context.Context, id int64) (*model.ScheduledAction, error)

	// List returns one page of actions, newest first, plus the total count
	// matching the filter.
	List(ctx context.Context, f ListFilter) ([]*model.ScheduledAction, int, error)

	// ListDue returns pending actions with scheduled_at <= now, oldest first.
	ListDue(ctx context.Context, now time.Time, limit int) ([]*model.ScheduledAction, error)

	// Claim moves a pending action to processing and increments attempts.
	// It reports false when another caller already claimed the action.
	Claim(ctx context.Context, id int64, lockedBy string, now time.Time) (bool, error)

	MarkCompleted(ctx context.Context, id int64, now time.Time) error
	MarkFailed(ctx context.Context, id int64, lastError string, now time.Time) error

	// Reschedule returns a processing action to pending at nextAt.
	Reschedule(ctx context.Context, id int64, nextAt time.Time, lastError string, now time.Time) error

	// RecoverStale fails processing actions locked before lockedBefore.
	RecoverStale(ctx context.Context, lockedBefore time.Time, now time.Time) (int64, error)

	CountByStatus(ctx context.Context) (map[model.ActionStatus]int, error)
	Ping(ctx context.Context) error
}

type ListFilter struct {
	Status     model.ActionStatus
	ActionType model.ActionType
	Offset     int
	Limit      int
}

func (f ListFilter) matches(a *model.ScheduledAction) bool {
	if f.Status != "" && a.Status != f.Status {
		return false
	}
	if f.ActionType != "" && a.ActionType != f.ActionType {
		return false
	}
	return true
}

// where builds the filter clause with ? placeholders; callers Rebind.
func (f ListFilter) where() (string, []any) {
	clause := ` WHERE 1=1`
	args := []any{}
	if f.Status != "" {
		clause += ` AND status = ?`
		args = append(args, string(f.Status))
	}
	if f.ActionType != "" {
		clause += ` AND action_type = ?`
		args = append(args, string(f.ActionType))
	}
	return clause, args
}

const staleLeaseError = "processing lease expired"

func emptyStats() map[model.ActionStatus]int {
	stats := make(map[model.ActionStatus]int, len(model.AllStatuses))
	for _, s := range model.AllStatuses {
		stats[s] = 0
	}
	return stats
}

// NewActionStore returns the ActionStore implementation for a storage driver.
func NewActionStore(driver string, db *sqlx.DB) (ActionStore, error) {
	switch driver {
	case config.DriverPostgres:
		return NewPostgresActionRepository(db), nil
	case config.DriverSQLite:
		return NewSQLiteActionRepository(db), nil
	default:
		return nil, fmt.Errorf("no action store for driver %q", driver)
	}
}
