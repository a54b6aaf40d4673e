package executor

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	appErrors "github.com/unclebandit/leadflow-backend/internal/errors"
	"github.com/unclebandit/leadflow-backend/internal/model"
)

type sentEmail struct {
	From    string   `json:"from"`
	To      []string `json:"to"`
	Subject string   `json:"subject"`
	Text    string   `json:"text"`
}

func TestEmailExecutorPostsToAPI(t *testing.T) {
	var got sentEmail
	var auth, path string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		auth = r.Header.Get("Authorization")
		path = r.URL.Path
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		w.Write([]byte(`{"id":"em_1"}`))
	}))
	defer srv.Close()

	exec := &EmailExecutor{
		Sender: NewEmailClient(srv.URL, "re_key", "sales@leadflow.test"),
		Leads:  leadRepo(),
	}
	err := exec.Execute(context.Background(), action(model.ActionEmail, 1,
		`{"subject":"Quick question for {business_name}","body":"Hi {contact_name}"}`))
	require.NoError(t, err)

	assert.Equal(t, "/emails", path)
	assert.Equal(t, "Bearer re_key", auth)
	assert.Equal(t, "sales@leadflow.test", got.From)
	assert.Equal(t, []string{"dana@acme.test"}, got.To)
	assert.Equal(t, "Quick question for Acme Plumbing", got.Subject)
	assert.Equal(t, "Hi Dana", got.Text)
}

func TestEmailExecutorAPIError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusUnprocessableEntity)
		w.Write([]byte(`{"statusCode":422,"name":"validation_error","message":"domain not verified"}`))
	}))
	defer srv.Close()

	exec := &EmailExecutor{Sender: NewEmailClient(srv.URL, "k", "a@b.test"), Leads: leadRepo()}
	err := exec.Execute(context.Background(), action(model.ActionEmail, 1, `{"subject":"s","body":"b"}`))

	var ee *appErrors.ExecutionError
	require.ErrorAs(t, err, &ee)
	assert.Contains(t, err.Error(), "domain not verified")
}

func TestEmailExecutorValidate(t *testing.T) {
	exec := &EmailExecutor{}

	assert.NoError(t, exec.Validate(json.RawMessage(`{"to":"x@y.test","subject":"s","body":"b"}`)))

	err := exec.Validate(json.RawMessage(`{"to":"nope","body":""}`))
	var ves *appErrors.ValidationErrors
	require.ErrorAs(t, err, &ves)
	assert.Len(t, ves.Errors, 3)
}
