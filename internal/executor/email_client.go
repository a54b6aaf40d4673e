package executor

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/resend/resend-go/v2"
)

// EmailClient sends messages through the Resend API.
type EmailClient struct {
	From   string
	resend *resend.Client
}

// NewEmailClient builds a Resend client. apiURL is the API base, for example
// https://api.resend.com/.
func NewEmailClient(apiURL, apiKey, from string) *EmailClient {
	rc := resend.NewCustomClient(&http.Client{Timeout: 30 * time.Second}, apiKey)
	if apiURL != "" {
		if !strings.HasSuffix(apiURL, "/") {
			apiURL += "/"
		}
		if base, err := url.Parse(apiURL); err == nil {
			rc.BaseURL = base
		}
	}
	return &EmailClient{From: from, resend: rc}
}

func (c *EmailClient) Send(ctx context.Context, msg EmailMessage) error {
	_, err := c.resend.Emails.SendWithContext(ctx, &resend.SendEmailRequest{
		From:    c.From,
		To:      []string{msg.To},
		Subject: msg.Subject,
		Text:    msg.Text,
	})
	if err != nil {
		return fmt.Errorf("email API rejected message: %w", err)
	}
	return nil
}

var _ EmailSender = (*EmailClient)(nil)
