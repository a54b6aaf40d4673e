package handler_test

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/unclebandit/leadflow-backend/internal/executor"
	"github.com/unclebandit/leadflow-backend/internal/handler"
	"github.com/unclebandit/leadflow-backend/internal/model"
	"github.com/unclebandit/leadflow-backend/internal/repository"
	"github.com/unclebandit/leadflow-backend/internal/service"
)

func newHandler() http.Handler {
	svc := &service.ActionService{
		Store:     repository.NewMemoryActionStore(),
		Executors: executor.NewRegistry(&executor.SMSExecutor{}, &executor.EmailExecutor{}, &executor.CRMPushExecutor{}),
	}
	r := chi.NewRouter()
	handler.NewActionHandler(svc).Routes(r)
	return r
}

func do(h http.Handler, method, path, body string) *httptest.ResponseRecorder {
	var req *http.Request
	if body != "" {
		req = httptest.NewRequest(method, path, strings.NewReader(body))
	} else {
		req = httptest.NewRequest(method, path, nil)
	}
	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)
	return w
}

func TestCreateAndGetAction(t *testing.T) {
	h := newHandler()

	w := do(h, http.MethodPost, "/api/automations/actions",
		`{"lead_id":3,"action_type":"sms","payload":{"body":"Hi {contact_name}"},"scheduled_at":"2026-10-20T09:00:00Z"}`)
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())

	var created model.ScheduledAction
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &created))
	assert.Equal(t, int64(3), created.LeadID)
	assert.Equal(t, model.StatusPending, created.Status)

	w = do(h, http.MethodGet, "/api/automations/actions/"+strconv.FormatInt(created.ID, 10), "")
	require.Equal(t, http.StatusOK, w.Code)

	var got model.ScheduledAction
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &got))
	assert.Equal(t, created.ID, got.ID)
	assert.JSONEq(t, `{"body":"Hi {contact_name}"}`, string(got.Payload))
}

func TestCreateActionRejectsInvalidInput(t *testing.T) {
	h := newHandler()

	tests := []struct {
		name string
		body string
	}{
		{"malformed json", `{"lead_id":`},
		{"unknown type", `{"lead_id":1,"action_type":"fax","payload":{}}`},
		{"bad payload", `{"lead_id":1,"action_type":"email","payload":{"subject":""}}`},
		{"bad time", `{"lead_id":1,"action_type":"crm_push","payload":{},"scheduled_at":"soon"}`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := do(h, http.MethodPost, "/api/automations/actions", tt.body)
			assert.Equal(t, http.StatusBadRequest, w.Code)
			assert.Contains(t, w.Body.String(), `"error"`)
		})
	}
}

func TestGetActionErrors(t *testing.T) {
	h := newHandler()

	assert.Equal(t, http.StatusNotFound, do(h, http.MethodGet, "/api/automations/actions/77", "").Code)
	assert.Equal(t, http.StatusBadRequest, do(h, http.MethodGet, "/api/automations/actions/abc", "").Code)
}

func TestListAndStats(t *testing.T) {
	h := newHandler()
	for i := 0; i < 3; i++ {
		w := do(h, http.MethodPost, "/api/automations/actions", `{"lead_id":1,"action_type":"crm_push","payload":{"fields":{"stage":"new"}}}`)
		require.Equal(t, http.StatusCreated, w.Code)
	}

	w := do(h, http.MethodGet, "/api/automations/actions?page=1&page_size=2&status=pending", "")
	require.Equal(t, http.StatusOK, w.Code)

	var list struct {
		Data       []model.ScheduledAction `json:"data"`
		Pagination service.Pagination      `json:"pagination"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &list))
	assert.Len(t, list.Data, 2)
	assert.Equal(t, service.Pagination{Page: 1, PageSize: 2, TotalCount: 3, TotalPages: 2}, list.Pagination)

	w = do(h, http.MethodGet, "/api/automations/actions?page=4611686018427387904&page_size=100", "")
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = do(h, http.MethodGet, "/api/automations/stats", "")
	require.Equal(t, http.StatusOK, w.Code)
	var stats map[string]int
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &stats))
	assert.Equal(t, map[string]int{"pending": 3, "processing": 0, "completed": 0, "failed": 0}, stats)
}
