package executor

import (
	"context"
	"encoding/json"

	"github.com/google/uuid"

	appErrors "github.com/unclebandit/leadflow-backend/internal/errors"
	"github.com/unclebandit/leadflow-backend/internal/model"
	"github.com/unclebandit/leadflow-backend/internal/queue"
	"github.com/unclebandit/leadflow-backend/internal/repository"
)

type CRMPushPayload struct {
	Destination string         `json:"destination,omitempty"`
	Fields      map[string]any `json:"fields"`
}

// CRMPushMessage is the body published for downstream CRM sync.
type CRMPushMessage struct {
	MessageID   string         `json:"message_id"`
	ActionID    int64          `json:"action_id"`
	Destination string         `json:"destination,omitempty"`
	Lead        *model.Lead    `json:"lead,omitempty"`
	LeadID      int64          `json:"lead_id"`
	Fields      map[string]any `json:"fields"`
}

// CRMPushExecutor publishes a lead snapshot to the CRM sync queue.
type CRMPushExecutor struct {
	Queue queue.Queue
	Topic string
	Leads repository.LeadRepositoryInterface
}

func (e *CRMPushExecutor) Type() model.ActionType { return model.ActionCRMPush }

func (e *CRMPushExecutor) Validate(payload json.RawMessage) error {
	_, err := parseCRMPushPayload(payload)
	return err
}

func parseCRMPushPayload(payload json.RawMessage) (CRMPushPayload, error) {
	var p CRMPushPayload
	if err := decodePayload(payload, &p); err != nil {
		return p, err
	}
	if p.Fields == nil {
		p.Fields = map[string]any{}
	}
	return p, nil
}

func (e *CRMPushExecutor) Execute(ctx context.Context, action *model.ScheduledAction) error {
	p, err := parseCRMPushPayload(action.Payload)
	if err != nil {
		return err
	}

	lead, err := loadLead(ctx, e.Leads, action.LeadID)
	if err != nil {
		return appErrors.NewExecutionError(string(model.ActionCRMPush), err)
	}

	msg := CRMPushMessage{
		MessageID:   uuid.NewString(),
		ActionID:    action.ID,
		Destination: p.Destination,
		Lead:        lead,
		LeadID:      action.LeadID,
		Fields:      p.Fields,
	}
	if err := e.Queue.Publish(e.Topic, msg); err != nil {
		return appErrors.NewExecutionError(string(model.ActionCRMPush), err)
	}
	return nil
}

var _ Executor = (*CRMPushExecutor)(nil)
