package executor

import (
	"context"
	"encoding/json"
	"net/mail"
	"strings"

	appErrors "github.com/unclebandit/leadflow-backend/internal/errors"
	"github.com/unclebandit/leadflow-backend/internal/model"
	"github.com/unclebandit/leadflow-backend/internal/repository"
)

type EmailPayload struct {
	To      string `json:"to,omitempty"`
	Subject string `json:"subject"`
	Body    string `json:"body"`
}

type EmailMessage struct {
	To      string
	Subject string
	Text    string
}

// EmailSender delivers one message through an email provider.
type EmailSender interface {
	Send(ctx context.Context, msg EmailMessage) error
}

// EmailExecutor sends a follow-up email, defaulting the recipient to the
// lead's address.
type EmailExecutor struct {
	Sender EmailSender
	Leads  repository.LeadRepositoryInterface
}

func (e *EmailExecutor) Type() model.ActionType { return model.ActionEmail }

func (e *EmailExecutor) Validate(payload json.RawMessage) error {
	_, err := parseEmailPayload(payload)
	return err
}

func parseEmailPayload(payload json.RawMessage) (EmailPayload, error) {
	var p EmailPayload
	if err := decodePayload(payload, &p); err != nil {
		return p, err
	}

	errs := &appErrors.ValidationErrors{}
	if strings.TrimSpace(p.Subject) == "" {
		errs.Add(appErrors.NewValidationError("subject", "is required"))
	}
	if strings.TrimSpace(p.Body) == "" {
		errs.Add(appErrors.NewValidationError("body", "is required"))
	}
	if p.To != "" {
		if _, err := mail.ParseAddress(p.To); err != nil {
			errs.Add(appErrors.NewValidationError("to", "is not a valid email address"))
		}
	}
	if errs.HasError() {
		return p, errs
	}
	return p, nil
}

func (e *EmailExecutor) Execute(ctx context.Context, action *model.ScheduledAction) error {
	p, err := parseEmailPayload(action.Payload)
	if err != nil {
		return err
	}

	lead, err := loadLead(ctx, e.Leads, action.LeadID)
	if err != nil {
		return appErrors.NewExecutionError(string(model.ActionEmail), err)
	}

	to := p.To
	if to == "" && lead != nil {
		to = lead.Email
	}
	if to == "" {
		return appErrors.NewValidationError("to", "no recipient and lead has no email")
	}

	data := LeadPlaceholders(lead)
	msg := EmailMessage{
		To:      to,
		Subject: RenderTemplate(p.Subject, data),
		Text:    RenderTemplate(p.Body, data),
	}
	if err := e.Sender.Send(ctx, msg); err != nil {
		return appErrors.NewExecutionError(string(model.ActionEmail), err)
	}
	return nil
}

var _ Executor = (*EmailExecutor)(nil)
