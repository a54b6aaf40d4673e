package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	appErrors "github.com/unclebandit/leadflow-backend/internal/errors"
)

func envOf(m map[string]string) func(string) string {
	return func(k string) string { return m[k] }
}

func TestLoadDefaults(t *testing.T) {
	cfg, err := load(envOf(nil))
	require.NoError(t, err)

	assert.Equal(t, 8080, cfg.Port)
	assert.Equal(t, DriverSQLite, cfg.StorageDriver)
	assert.Equal(t, "leadflow.db", cfg.SQLitePath)
	assert.Empty(t, cfg.CronSecret)
	assert.Equal(t, 30*time.Second, cfg.ActionTimeout)
	assert.Equal(t, 100, cfg.BatchSize)
	assert.Equal(t, 1, cfg.Retry.MaxAttempts)
	assert.Equal(t, 15*time.Minute, cfg.ProcessingLease)
	assert.Equal(t, "crm_push", cfg.AMQP.Queue)
	assert.NotEmpty(t, cfg.InstanceID)
}

func TestLoadOverrides(t *testing.T) {
	cfg, err := load(envOf(map[string]string{
		"PORT":               "9000",
		"STORAGE_DRIVER":     "postgres",
		"DATABASE_URL":       "postgres://u:p@localhost:5432/leads?sslmode=disable",
		"CRON_SECRET":        "s3cret",
		"ACTION_TIMEOUT":     "5s",
		"RETRY_MAX_ATTEMPTS": "3",
		"RETRY_BASE_DELAY":   "30s",
		"PROCESS_SCHEDULE":   "*/5 * * * *",
		"INSTANCE_ID":        "worker-1",
	}))
	require.NoError(t, err)

	assert.Equal(t, 9000, cfg.Port)
	assert.Equal(t, DriverPostgres, cfg.StorageDriver)
	assert.Equal(t, "s3cret", cfg.CronSecret)
	assert.Equal(t, 5*time.Second, cfg.ActionTimeout)
	assert.Equal(t, 3, cfg.Retry.MaxAttempts)
	assert.Equal(t, 30*time.Second, cfg.Retry.BaseDelay)
	assert.Equal(t, "worker-1", cfg.InstanceID)
}

func TestLoadCollectsValidationErrors(t *testing.T) {
	_, err := load(envOf(map[string]string{
		"PORT":             "eighty",
		"STORAGE_DRIVER":   "postgres",
		"ACTION_TIMEOUT":   "soon",
		"PROCESS_SCHEDULE": "not a schedule",
	}))
	require.Error(t, err)

	var verrs *appErrors.ValidationErrors
	require.ErrorAs(t, err, &verrs)
	assert.Len(t, verrs.Errors, 4)
	assert.Contains(t, err.Error(), "DATABASE_URL")
}

func TestLoadRejectsUnknownDriver(t *testing.T) {
	_, err := load(envOf(map[string]string{"STORAGE_DRIVER": "mysql"}))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unsupported driver")
}

func TestLoadRequiresLeaseLongerThanTimeout(t *testing.T) {
	for _, lease := range []string{"10s", "30s"} {
		_, err := load(envOf(map[string]string{"ACTION_TIMEOUT": "30s", "PROCESSING_LEASE": lease}))
		var verrs *appErrors.ValidationErrors
		require.ErrorAs(t, err, &verrs, lease)
		require.Len(t, verrs.Errors, 1)
		assert.Contains(t, err.Error(), "PROCESSING_LEASE")
	}

	cfg, err := load(envOf(map[string]string{"ACTION_TIMEOUT": "30s", "PROCESSING_LEASE": "31s"}))
	require.NoError(t, err)
	assert.Equal(t, 31*time.Second, cfg.ProcessingLease)
}
