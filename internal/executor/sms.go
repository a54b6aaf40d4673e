package executor

import (
	"context"
	"encoding/json"
	"strings"

	appErrors "github.com/unclebandit/leadflow-backend/internal/errors"
	"github.com/unclebandit/leadflow-backend/internal/model"
	"github.com/unclebandit/leadflow-backend/internal/repository"
)

type SMSPayload struct {
	To   string `json:"to,omitempty"`
	Body string `json:"body"`
}

// SMSSender sends one text message.
type SMSSender interface {
	SendSMS(ctx context.Context, to, body string) error
}

// SMSExecutor texts a lead, defaulting the recipient to the lead's phone.
type SMSExecutor struct {
	Sender SMSSender
	Leads  repository.LeadRepositoryInterface
}

func (e *SMSExecutor) Type() model.ActionType { return model.ActionSMS }

func (e *SMSExecutor) Validate(payload json.RawMessage) error {
	_, err := parseSMSPayload(payload)
	return err
}

func parseSMSPayload(payload json.RawMessage) (SMSPayload, error) {
	var p SMSPayload
	if err := decodePayload(payload, &p); err != nil {
		return p, err
	}

	errs := &appErrors.ValidationErrors{}
	if strings.TrimSpace(p.Body) == "" {
		errs.Add(appErrors.NewValidationError("body", "is required"))
	}
	if len(p.Body) > 1600 {
		errs.Add(appErrors.NewValidationError("body", "exceeds 1600 characters"))
	}
	if p.To != "" && !isPhoneNumber(p.To) {
		errs.Add(appErrors.NewValidationError("to", "must be an E.164 phone number"))
	}
	if errs.HasError() {
		return p, errs
	}
	return p, nil
}

func isPhoneNumber(s string) bool {
	if len(s) < 8 || len(s) > 16 || s[0] != '+' {
		return false
	}
	for _, r := range s[1:] {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}

func (e *SMSExecutor) Execute(ctx context.Context, action *model.ScheduledAction) error {
	p, err := parseSMSPayload(action.Payload)
	if err != nil {
		return err
	}

	lead, err := loadLead(ctx, e.Leads, action.LeadID)
	if err != nil {
		return appErrors.NewExecutionError(string(model.ActionSMS), err)
	}

	to := p.To
	if to == "" && lead != nil {
		to = lead.Phone
	}
	if to == "" {
		return appErrors.NewValidationError("to", "no recipient and lead has no phone")
	}

	body := RenderTemplate(p.Body, LeadPlaceholders(lead))
	if err := e.Sender.SendSMS(ctx, to, body); err != nil {
		return appErrors.NewExecutionError(string(model.ActionSMS), err)
	}
	return nil
}

var _ Executor = (*SMSExecutor)(nil)
