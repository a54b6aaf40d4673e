package repository

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/jmoiron/sqlx"

	appErrors "github.com/unclebandit/leadflow-backend/internal/errors"
	"github.com/unclebandit/leadflow-backend/internal/model"
)

const actionColumns = `id, lead_id, action_type, payload, scheduled_at, status, attempts,
    last_error, locked_by, locked_at, completed_at, created_at, updated_at`

// PostgresActionRepository is the production ActionStore.
type PostgresActionRepository struct {
	DB *sqlx.DB
}

func NewPostgresActionRepository(db *sqlx.DB) *PostgresActionRepository {
	return &PostgresActionRepository{DB: db}
}

// Create inserts a new pending action and fills in its generated fields.
func (r *PostgresActionRepository) Create(ctx context.Context, a *model.ScheduledAction) error {
	if len(a.Payload) == 0 {
		a.Payload = []byte("{}")
	}
	query := `
        INSERT INTO scheduled_actions (lead_id, action_type, payload, scheduled_at, status, attempts)
        VALUES ($1, $2, $3, $4, 'pending', 0)
        RETURNING id, status, attempts, created_at, updated_at
    `
	return r.DB.QueryRowxContext(ctx, query, a.LeadID, a.ActionType, []byte(a.Payload), a.ScheduledAt.UTC()).
		Scan(&a.ID, &a.Status, &a.Attempts, &a.CreatedAt, &a.UpdatedAt)
}

func (r *PostgresActionRepository) GetByID(ctx context.Context, id int64) (*model.ScheduledAction, error) {
	var a model.ScheduledAction
	err := r.DB.GetContext(ctx, &a, `SELECT `+actionColumns+` FROM scheduled_actions WHERE id = $1`, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.NewActionNotFound(id)
		}
		return nil, err
	}
	return &a, nil
}

func (r *PostgresActionRepository) List(ctx context.Context, f ListFilter) ([]*model.ScheduledAction, int, error) {
	where, args := f.where()

	var total int
	if err := r.DB.GetContext(ctx, &total, r.DB.Rebind(`SELECT COUNT(*) FROM scheduled_actions`+where), args...); err != nil {
		return nil, 0, err
	}

	query := r.DB.Rebind(`SELECT ` + actionColumns + ` FROM scheduled_actions` + where + ` ORDER BY id DESC LIMIT ? OFFSET ?`)
	actions := []*model.ScheduledAction{}
	if err := r.DB.SelectContext(ctx, &actions, query, append(args, f.Limit, f.Offset)...); err != nil {
		return nil, 0, err
	}
	return actions, total, nil
}

func (r *PostgresActionRepository) ListDue(ctx context.Context, now time.Time, limit int) ([]*model.ScheduledAction, error) {
	query := `SELECT ` + actionColumns + `
        FROM scheduled_actions
        WHERE status = 'pending' AND scheduled_at <= $1
        ORDER BY scheduled_at ASC, id ASC
        LIMIT $2`

	actions := []*model.ScheduledAction{}
	if err := r.DB.SelectContext(ctx, &actions, query, now.UTC(), limit); err != nil {
		return nil, err
	}
	return actions, nil
}

func (r *PostgresActionRepository) Claim(ctx context.Context, id int64, lockedBy string, now time.Time) (bool, error) {
	query := `
        UPDATE scheduled_actions
        SET status = 'processing', attempts = attempts + 1, locked_by = $2, locked_at = $3, updated_at = $3
        WHERE id = $1 AND status = 'pending' AND scheduled_at <= $3
    `
	return affectedOne(r.DB.ExecContext(ctx, query, id, lockedBy, now.UTC()))
}

func (r *PostgresActionRepository) MarkCompleted(ctx context.Context, id int64, now time.Time) error {
	query := `
        UPDATE scheduled_actions
        SET status = 'completed', last_error = NULL, completed_at = $2, updated_at = $2
        WHERE id = $1 AND status = 'processing'
    `
	return requireOne(r.DB.ExecContext(ctx, query, id, now.UTC()))
}

func (r *PostgresActionRepository) MarkFailed(ctx context.Context, id int64, lastError string, now time.Time) error {
	query := `
        UPDATE scheduled_actions
        SET status = 'failed', last_error = $2, updated_at = $3
        WHERE id = $1 AND status = 'processing'
    `
	return requireOne(r.DB.ExecContext(ctx, query, id, lastError, now.UTC()))
}

func (r *PostgresActionRepository) Reschedule(ctx context.Context, id int64, nextAt time.Time, lastError string, now time.Time) error {
	query := `
        UPDATE scheduled_actions
        SET status = 'pending', scheduled_at = $2, last_error = $3, locked_by = NULL, locked_at = NULL, updated_at = $4
        WHERE id = $1 AND status = 'processing'
    `
	return requireOne(r.DB.ExecContext(ctx, query, id, nextAt.UTC(), lastError, now.UTC()))
}

func (r *PostgresActionRepository) RecoverStale(ctx context.Context, lockedBefore time.Time, now time.Time) (int64, error) {
	query := `
        UPDATE scheduled_actions
        SET status = 'failed', last_error = $2, updated_at = $3
        WHERE status = 'processing' AND locked_at < $1
    `
	res, err := r.DB.ExecContext(ctx, query, lockedBefore.UTC(), staleLeaseError, now.UTC())
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

func (r *PostgresActionRepository) CountByStatus(ctx context.Context) (map[model.ActionStatus]int, error) {
	rows, err := r.DB.QueryContext(ctx, `SELECT status, COUNT(*) FROM scheduled_actions GROUP BY status`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanStats(rows)
}

func (r *PostgresActionRepository) Ping(ctx context.Context) error {
	return r.DB.PingContext(ctx)
}

func affectedOne(res sql.Result, err error) (bool, error) {
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n == 1, nil
}

func requireOne(res sql.Result, err error) error {
	ok, err := affectedOne(res, err)
	if err != nil {
		return err
	}
	if !ok {
		return ErrNotProcessing
	}
	return nil
}

func scanStats(rows *sql.Rows) (map[model.ActionStatus]int, error) {
	stats := emptyStats()
	for rows.Next() {
		var status model.ActionStatus
		var count int
		if err := rows.Scan(&status, &count); err != nil {
			return nil, err
		}
		stats[status] = count
	}
	return stats, rows.Err()
}

var _ ActionStore = (*PostgresActionRepository)(nil)
