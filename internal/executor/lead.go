package executor

import (
	"context"
	"errors"

	appErrors "github.com/unclebandit/leadflow-backend/internal/errors"
	"github.com/unclebandit/leadflow-backend/internal/model"
	"github.com/unclebandit/leadflow-backend/internal/repository"
)

// loadLead returns the action's lead, or nil when no repository is wired or
// the lead no longer exists.
func loadLead(ctx context.Context, leads repository.LeadRepositoryInterface, id int64) (*model.Lead, error) {
	if leads == nil {
		return nil, nil
	}
	lead, err := leads.GetByID(ctx, id)
	if err != nil {
		var nf *appErrors.ErrLeadNotFound
		if errors.As(err, &nf) {
			return nil, nil
		}
		return nil, err
	}
	return lead, nil
}
