package service

import (
	"context"
	"encoding/json"
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	appErrors "github.com/unclebandit/leadflow-backend/internal/errors"
	"github.com/unclebandit/leadflow-backend/internal/executor"
	"github.com/unclebandit/leadflow-backend/internal/model"
	"github.com/unclebandit/leadflow-backend/internal/repository"
)

func newActionService() *ActionService {
	return &ActionService{
		Store:     repository.NewMemoryActionStore(),
		Executors: executor.NewRegistry(&executor.SMSExecutor{}, &executor.EmailExecutor{}),
		Now:       func() time.Time { return fixedNow },
	}
}

func strPtr(s string) *string { return &s }

func TestScheduleAction(t *testing.T) {
	svc := newActionService()

	a, err := svc.ScheduleAction(context.Background(), ScheduleActionRequest{
		LeadID:      7,
		ActionType:  model.ActionSMS,
		Payload:     json.RawMessage(`{"body":"Hi {contact_name}"}`),
		ScheduledAt: strPtr("2026-10-19T08:00:00+02:00"),
	})
	require.NoError(t, err)
	assert.NotZero(t, a.ID)
	assert.Equal(t, model.StatusPending, a.Status)
	assert.Equal(t, time.Date(2026, 10, 19, 6, 0, 0, 0, time.UTC), a.ScheduledAt)
}

func TestScheduleActionDefaultsToNow(t *testing.T) {
	svc := newActionService()

	a, err := svc.ScheduleAction(context.Background(), ScheduleActionRequest{
		LeadID:     7,
		ActionType: model.ActionEmail,
		Payload:    json.RawMessage(`{"subject":"s","body":"b"}`),
	})
	require.NoError(t, err)
	assert.Equal(t, fixedNow, a.ScheduledAt)
}

func TestScheduleActionValidation(t *testing.T) {
	svc := newActionService()

	tests := []struct {
		name string
		req  ScheduleActionRequest
	}{
		{"missing lead", ScheduleActionRequest{ActionType: model.ActionSMS, Payload: json.RawMessage(`{"body":"x"}`)}},
		{"missing type", ScheduleActionRequest{LeadID: 1}},
		{"bad time", ScheduleActionRequest{LeadID: 1, ActionType: model.ActionSMS, Payload: json.RawMessage(`{"body":"x"}`), ScheduledAt: strPtr("tomorrow")}},
		{"bad payload", ScheduleActionRequest{LeadID: 1, ActionType: model.ActionSMS, Payload: json.RawMessage(`{"body":""}`)}},
		{"unknown type", ScheduleActionRequest{LeadID: 1, ActionType: "fax"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := svc.ScheduleAction(context.Background(), tt.req)
			require.Error(t, err)
			assert.Equal(t, 400, appErrors.HTTPStatus(err))
		})
	}

	stats, err := svc.Stats(context.Background())
	require.NoError(t, err)
	assert.Zero(t, stats[model.StatusPending])
}

func TestGetActionNotFound(t *testing.T) {
	svc := newActionService()
	_, err := svc.GetAction(context.Background(), 123)
	assert.Equal(t, 404, appErrors.HTTPStatus(err))
}

func TestListActionsPagination(t *testing.T) {
	svc := newActionService()
	for i := 0; i < 25; i++ {
		_, err := svc.ScheduleAction(context.Background(), ScheduleActionRequest{
			LeadID:     1,
			ActionType: model.ActionSMS,
			Payload:    json.RawMessage(`{"body":"x"}`),
		})
		require.NoError(t, err)
	}

	actions, page, err := svc.ListActions(context.Background(), 2, 10, "", "")
	require.NoError(t, err)
	assert.Len(t, actions, 10)
	assert.Equal(t, Pagination{Page: 2, PageSize: 10, TotalCount: 25, TotalPages: 3}, page)

	_, page, err = svc.ListActions(context.Background(), 0, 500, model.StatusPending, model.ActionSMS)
	require.NoError(t, err)
	assert.Equal(t, 1, page.Page)
	assert.Equal(t, 100, page.PageSize)
	assert.Equal(t, 1, page.TotalPages)

	_, _, err = svc.ListActions(context.Background(), 1, 10, "sent", "")
	assert.Equal(t, 400, appErrors.HTTPStatus(err))
}

func TestListActionsRejectsOverflowingPage(t *testing.T) {
	svc := newActionService()

	_, _, err := svc.ListActions(context.Background(), 1<<62, 100, "", "")
	require.Error(t, err)
	assert.Equal(t, 400, appErrors.HTTPStatus(err))

	_, _, err = svc.ListActions(context.Background(), math.MaxInt, 0, "", "")
	assert.Equal(t, 400, appErrors.HTTPStatus(err))

	actions, _, err := svc.ListActions(context.Background(), math.MaxInt/100, 100, "", "")
	require.NoError(t, err)
	assert.Empty(t, actions)
}
