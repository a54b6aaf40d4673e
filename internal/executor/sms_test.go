package executor

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	appErrors "github.com/unclebandit/leadflow-backend/internal/errors"
	"github.com/unclebandit/leadflow-backend/internal/model"
)

type twilioCall struct {
	path string
	user string
	pass string
	to   string
	from string
	body string
}

func newTwilioServer(t *testing.T, status int, response string) (*httptest.Server, *[]twilioCall) {
	t.Helper()
	calls := &[]twilioCall{}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, r.ParseForm())
		user, pass, _ := r.BasicAuth()
		*calls = append(*calls, twilioCall{
			path: r.URL.Path,
			user: user,
			pass: pass,
			to:   r.PostForm.Get("To"),
			from: r.PostForm.Get("From"),
			body: r.PostForm.Get("Body"),
		})
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		w.Write([]byte(response))
	}))
	t.Cleanup(srv.Close)
	return srv, calls
}

func TestSMSExecutorSendsThroughTwilio(t *testing.T) {
	srv, calls := newTwilioServer(t, http.StatusCreated, `{"sid":"SM1"}`)
	exec := &SMSExecutor{
		Sender: NewTwilioClient("AC123", "secret", "+15550000000", srv.URL+"/"),
		Leads:  leadRepo(),
	}

	err := exec.Execute(context.Background(), action(model.ActionSMS, 1, `{"body":"Hi {contact_name}, following up on {business_name}"}`))
	require.NoError(t, err)

	require.Len(t, *calls, 1)
	c := (*calls)[0]
	assert.Equal(t, "/2010-04-01/Accounts/AC123/Messages.json", c.path)
	assert.Equal(t, "AC123", c.user)
	assert.Equal(t, "secret", c.pass)
	assert.Equal(t, "+15125550100", c.to)
	assert.Equal(t, "+15550000000", c.from)
	assert.Equal(t, "Hi Dana, following up on Acme Plumbing", c.body)
}

func TestSMSExecutorExplicitRecipient(t *testing.T) {
	srv, calls := newTwilioServer(t, http.StatusCreated, `{}`)
	exec := &SMSExecutor{Sender: NewTwilioClient("AC1", "t", "+1555", srv.URL)}

	require.NoError(t, exec.Execute(context.Background(), action(model.ActionSMS, 7, `{"to":"+447700900123","body":"hello"}`)))
	require.Len(t, *calls, 1)
	assert.Equal(t, "+447700900123", (*calls)[0].to)
}

func TestSMSExecutorTwilioError(t *testing.T) {
	srv, _ := newTwilioServer(t, http.StatusBadRequest, `{"code":21211,"message":"The 'To' number is not a valid phone number."}`)
	exec := &SMSExecutor{Sender: NewTwilioClient("AC1", "t", "+1555", srv.URL), Leads: leadRepo()}

	err := exec.Execute(context.Background(), action(model.ActionSMS, 1, `{"body":"hello"}`))
	var ee *appErrors.ExecutionError
	require.ErrorAs(t, err, &ee)
	assert.Equal(t, "sms", ee.ActionType)
	assert.Contains(t, err.Error(), "The 'To' number is not a valid phone number.")
}

func TestSMSExecutorNetworkError(t *testing.T) {
	srv, _ := newTwilioServer(t, http.StatusCreated, `{}`)
	client := NewTwilioClient("AC1", "t", "+1555", srv.URL)
	srv.Close()

	exec := &SMSExecutor{Sender: client, Leads: leadRepo()}
	err := exec.Execute(context.Background(), action(model.ActionSMS, 1, `{"body":"hello"}`))
	var ee *appErrors.ExecutionError
	assert.ErrorAs(t, err, &ee)
}

func TestSMSExecutorValidation(t *testing.T) {
	exec := &SMSExecutor{Sender: NewTwilioClient("AC1", "t", "+1555", "http://unused.invalid"), Leads: leadRepo()}

	tests := []struct {
		name    string
		leadID  int64
		payload string
		field   string
	}{
		{"missing body", 1, `{}`, "body"},
		{"bad phone", 1, `{"to":"555-0100","body":"x"}`, "to"},
		{"unknown lead and no recipient", 42, `{"body":"x"}`, "to"},
		{"not an object", 1, `[1,2]`, "payload"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := exec.Execute(context.Background(), action(model.ActionSMS, tt.leadID, tt.payload))
			var ve *appErrors.ValidationError
			require.ErrorAs(t, err, &ve)
			assert.Equal(t, tt.field, ve.Field)
		})
	}
}

func TestSMSExecutorLeadLookupFailure(t *testing.T) {
	exec := &SMSExecutor{
		Sender: NewTwilioClient("AC1", "t", "+1555", "http://unused.invalid"),
		Leads:  &fakeLeadRepo{err: errors.New("db down")},
	}
	err := exec.Execute(context.Background(), action(model.ActionSMS, 1, `{"body":"x"}`))
	var ee *appErrors.ExecutionError
	require.ErrorAs(t, err, &ee)
	assert.Contains(t, err.Error(), "db down")
}
