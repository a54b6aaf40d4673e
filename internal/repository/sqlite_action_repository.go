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

// SQLiteActionRepository is the development ActionStore. Timestamps are
// stored as unix milliseconds.
type SQLiteActionRepository struct {
	DB *sqlx.DB
}

func NewSQLiteActionRepository(db *sqlx.DB) *SQLiteActionRepository {
	return &SQLiteActionRepository{DB: db}
}

type sqliteActionRow struct {
	ID          int64          `db:"id"`
	LeadID      int64          `db:"lead_id"`
	ActionType  string         `db:"action_type"`
	Payload     []byte         `db:"payload"`
	ScheduledAt int64          `db:"scheduled_at"`
	Status      string         `db:"status"`
	Attempts    int            `db:"attempts"`
	LastError   sql.NullString `db:"last_error"`
	LockedBy    sql.NullString `db:"locked_by"`
	LockedAt    sql.NullInt64  `db:"locked_at"`
	CompletedAt sql.NullInt64  `db:"completed_at"`
	CreatedAt   int64          `db:"created_at"`
	UpdatedAt   int64          `db:"updated_at"`
}

func (row sqliteActionRow) toModel() *model.ScheduledAction {
	a := &model.ScheduledAction{
		ID:          row.ID,
		LeadID:      row.LeadID,
		ActionType:  model.ActionType(row.ActionType),
		Payload:     row.Payload,
		ScheduledAt: fromMillis(row.ScheduledAt),
		Status:      model.ActionStatus(row.Status),
		Attempts:    row.Attempts,
		CreatedAt:   fromMillis(row.CreatedAt),
		UpdatedAt:   fromMillis(row.UpdatedAt),
	}
	if row.LastError.Valid {
		a.LastError = &row.LastError.String
	}
	if row.LockedBy.Valid {
		a.LockedBy = &row.LockedBy.String
	}
	if row.LockedAt.Valid {
		t := fromMillis(row.LockedAt.Int64)
		a.LockedAt = &t
	}
	if row.CompletedAt.Valid {
		t := fromMillis(row.CompletedAt.Int64)
		a.CompletedAt = &t
	}
	return a
}

func toMillis(t time.Time) int64 { return t.UTC().UnixMilli() }

func fromMillis(ms int64) time.Time { return time.UnixMilli(ms).UTC() }

func (r *SQLiteActionRepository) Create(ctx context.Context, a *model.ScheduledAction) error {
	if len(a.Payload) == 0 {
		a.Payload = []byte("{}")
	}
	now := toMillis(time.Now())
	res, err := r.DB.ExecContext(ctx, `
        INSERT INTO scheduled_actions (lead_id, action_type, payload, scheduled_at, status, attempts, created_at, updated_at)
        VALUES (?, ?, ?, ?, 'pending', 0, ?, ?)`,
		a.LeadID, string(a.ActionType), []byte(a.Payload), toMillis(a.ScheduledAt), now, now)
	if err != nil {
		return err
	}
	id, err := res.LastInsertId()
	if err != nil {
		return err
	}

	a.ID = id
	a.Status = model.StatusPending
	a.Attempts = 0
	a.ScheduledAt = fromMillis(toMillis(a.ScheduledAt))
	a.CreatedAt = fromMillis(now)
	a.UpdatedAt = a.CreatedAt
	return nil
}

func (r *SQLiteActionRepository) GetByID(ctx context.Context, id int64) (*model.ScheduledAction, error) {
	var row sqliteActionRow
	err := r.DB.GetContext(ctx, &row, `SELECT `+actionColumns+` FROM scheduled_actions WHERE id = ?`, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.NewActionNotFound(id)
		}
		return nil, err
	}
	return row.toModel(), nil
}

func (r *SQLiteActionRepository) List(ctx context.Context, f ListFilter) ([]*model.ScheduledAction, int, error) {
	where, args := f.where()

	var total int
	if err := r.DB.GetContext(ctx, &total, `SELECT COUNT(*) FROM scheduled_actions`+where, args...); err != nil {
		return nil, 0, err
	}

	var rows []sqliteActionRow
	query := `SELECT ` + actionColumns + ` FROM scheduled_actions` + where + ` ORDER BY id DESC LIMIT ? OFFSET ?`
	if err := r.DB.SelectContext(ctx, &rows, query, append(args, f.Limit, f.Offset)...); err != nil {
		return nil, 0, err
	}

	actions := make([]*model.ScheduledAction, 0, len(rows))
	for _, row := range rows {
		actions = append(actions, row.toModel())
	}
	return actions, total, nil
}

func (r *SQLiteActionRepository) ListDue(ctx context.Context, now time.Time, limit int) ([]*model.ScheduledAction, error) {
	var rows []sqliteActionRow
	err := r.DB.SelectContext(ctx, &rows, `SELECT `+actionColumns+`
        FROM scheduled_actions
        WHERE status = 'pending' AND scheduled_at <= ?
        ORDER BY scheduled_at ASC, id ASC
        LIMIT ?`, toMillis(now), limit)
	if err != nil {
		return nil, err
	}

	actions := make([]*model.ScheduledAction, 0, len(rows))
	for _, row := range rows {
		actions = append(actions, row.toModel())
	}
	return actions, nil
}

func (r *SQLiteActionRepository) Claim(ctx context.Context, id int64, lockedBy string, now time.Time) (bool, error) {
	ms := toMillis(now)
	return affectedOne(r.DB.ExecContext(ctx, `
        UPDATE scheduled_actions
        SET status = 'processing', attempts = attempts + 1, locked_by = ?, locked_at = ?, updated_at = ?
        WHERE id = ? AND status = 'pending' AND scheduled_at <= ?`,
		lockedBy, ms, ms, id, ms))
}

func (r *SQLiteActionRepository) MarkCompleted(ctx context.Context, id int64, now time.Time) error {
	ms := toMillis(now)
	return requireOne(r.DB.ExecContext(ctx, `
        UPDATE scheduled_actions
        SET status = 'completed', last_error = NULL, completed_at = ?, updated_at = ?
        WHERE id = ? AND status = 'processing'`,
		ms, ms, id))
}

func (r *SQLiteActionRepository) MarkFailed(ctx context.Context, id int64, lastError string, now time.Time) error {
	return requireOne(r.DB.ExecContext(ctx, `
        UPDATE scheduled_actions
        SET status = 'failed', last_error = ?, updated_at = ?
        WHERE id = ? AND status = 'processing'`,
		lastError, toMillis(now), id))
}

func (r *SQLiteActionRepository) Reschedule(ctx context.Context, id int64, nextAt time.Time, lastError string, now time.Time) error {
	return requireOne(r.DB.ExecContext(ctx, `
        UPDATE scheduled_actions
        SET status = 'pending', scheduled_at = ?, last_error = ?, locked_by = NULL, locked_at = NULL, updated_at = ?
        WHERE id = ? AND status = 'processing'`,
		toMillis(nextAt), lastError, toMillis(now), id))
}

func (r *SQLiteActionRepository) RecoverStale(ctx context.Context, lockedBefore time.Time, now time.Time) (int64, error) {
	res, err := r.DB.ExecContext(ctx, `
        UPDATE scheduled_actions
        SET status = 'failed', last_error = ?, updated_at = ?
        WHERE status = 'processing' AND locked_at < ?`,
		staleLeaseError, toMillis(now), toMillis(lockedBefore))
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

func (r *SQLiteActionRepository) CountByStatus(ctx context.Context) (map[model.ActionStatus]int, error) {
	rows, err := r.DB.QueryContext(ctx, `SELECT status, COUNT(*) FROM scheduled_actions GROUP BY status`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanStats(rows)
}

func (r *SQLiteActionRepository) Ping(ctx context.Context) error {
	return r.DB.PingContext(ctx)
}

var _ ActionStore = (*SQLiteActionRepository)(nil)
