package repository

import (
	"context"
	"database/sql"
	"errors"

	"github.com/jmoiron/sqlx"

	appErrors "github.com/unclebandit/leadflow-backend/internal/errors"
	"github.com/unclebandit/leadflow-backend/internal/model"
)

// LeadRepositoryInterface defines the lead lookups executors need
type LeadRepositoryInterface interface {
	GetByID(ctx context.Context, id int64) (*model.Lead, error)
}

// LeadRepository reads leads from either SQL backend
type LeadRepository struct {
	DB *sqlx.DB
}

func NewLeadRepository(db *sqlx.DB) *LeadRepository {
	return &LeadRepository{DB: db}
}

// GetByID fetches a lead by ID
func (r *LeadRepository) GetByID(ctx context.Context, id int64) (*model.Lead, error) {
	query := r.DB.Rebind(`
        SELECT id, business_name, contact_name, email, phone, city, score
        FROM leads
        WHERE id = ?
    `)

	var l model.Lead
	if err := r.DB.GetContext(ctx, &l, query, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.NewLeadNotFound(id)
		}
		return nil, err
	}
	return &l, nil
}

var _ LeadRepositoryInterface = (*LeadRepository)(nil)
