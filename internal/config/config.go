package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/robfig/cron/v3"

	appErrors "github.com/unclebandit/leadflow-backend/internal/errors"
)

const (
	DriverPostgres = "postgres"
	DriverSQLite   = "sqlite"
)

type Config struct {
	Port int

	StorageDriver string
	DatabaseURL   string
	SQLitePath    string

	CronSecret      string
	ProcessSchedule string
	InstanceID      string

	ActionTimeout   time.Duration
	BatchSize       int
	ProcessingLease time.Duration

	Retry RetryConfig

	Twilio TwilioConfig
	Email  EmailConfig
	AMQP   AMQPConfig
}

type RetryConfig struct {
	MaxAttempts int
	BaseDelay   time.Duration
	MaxDelay    time.Duration
}

type TwilioConfig struct {
	AccountSID string
	AuthToken  string
	FromNumber string
	BaseURL    string
}

type EmailConfig struct {
	APIURL string
	APIKey string
	From   string
}

// AMQPConfig configures the CRM push publisher. An empty URL selects the
// in-memory queue.
type AMQPConfig struct {
	URL   string
	Queue string
}

// Load reads the configuration from the process environment. Callers load
// .env files beforehand.
func Load() (*Config, error) {
	return load(os.Getenv)
}

func load(getenv func(string) string) (*Config, error) {
	p := parser{getenv: getenv, errs: &appErrors.ValidationErrors{}}

	cfg := &Config{
		Port:            p.integer("PORT", 8080),
		StorageDriver:   p.str("STORAGE_DRIVER", DriverSQLite),
		DatabaseURL:     getenv("DATABASE_URL"),
		SQLitePath:      p.str("SQLITE_PATH", "leadflow.db"),
		CronSecret:      getenv("CRON_SECRET"),
		ProcessSchedule: p.str("PROCESS_SCHEDULE", "@every 1m"),
		InstanceID:      p.str("INSTANCE_ID", uuid.NewString()),
		ActionTimeout:   p.duration("ACTION_TIMEOUT", 30*time.Second),
		BatchSize:       p.integer("PROCESS_BATCH_SIZE", 100),
		ProcessingLease: p.duration("PROCESSING_LEASE", 15*time.Minute),
		Retry: RetryConfig{
			MaxAttempts: p.integer("RETRY_MAX_ATTEMPTS", 1),
			BaseDelay:   p.duration("RETRY_BASE_DELAY", time.Minute),
			MaxDelay:    p.duration("RETRY_MAX_DELAY", time.Hour),
		},
		Twilio: TwilioConfig{
			AccountSID: getenv("TWILIO_ACCOUNT_SID"),
			AuthToken:  getenv("TWILIO_AUTH_TOKEN"),
			FromNumber: getenv("TWILIO_FROM_NUMBER"),
			BaseURL:    p.str("TWILIO_BASE_URL", "https://api.twilio.com"),
		},
		Email: EmailConfig{
			APIURL: p.str("EMAIL_API_URL", "https://api.resend.com/"),
			APIKey: getenv("EMAIL_API_KEY"),
			From:   getenv("EMAIL_FROM"),
		},
		AMQP: AMQPConfig{
			URL:   getenv("AMQP_URL"),
			Queue: p.str("CRM_PUSH_QUEUE", "crm_push"),
		},
	}

	switch cfg.StorageDriver {
	case DriverPostgres:
		if cfg.DatabaseURL == "" {
			p.errs.Add(appErrors.NewValidationError("DATABASE_URL", "required when STORAGE_DRIVER=postgres"))
		}
	case DriverSQLite:
	default:
		p.errs.Add(appErrors.NewValidationError("STORAGE_DRIVER", fmt.Sprintf("unsupported driver %q", cfg.StorageDriver)))
	}

	if cfg.BatchSize < 1 {
		p.errs.Add(appErrors.NewValidationError("PROCESS_BATCH_SIZE", "must be positive"))
	}
	if cfg.Retry.MaxAttempts < 1 {
		p.errs.Add(appErrors.NewValidationError("RETRY_MAX_ATTEMPTS", "must be at least 1"))
	}
	if cfg.ActionTimeout <= 0 {
		p.errs.Add(appErrors.NewValidationError("ACTION_TIMEOUT", "must be positive"))
	} else if cfg.ProcessingLease <= cfg.ActionTimeout {
		// a shorter lease lets recovery fail an action that is still running
		p.errs.Add(appErrors.NewValidationError("PROCESSING_LEASE", "must be longer than ACTION_TIMEOUT"))
	}
	if _, err := cron.ParseStandard(cfg.ProcessSchedule); err != nil {
		p.errs.Add(appErrors.NewValidationError("PROCESS_SCHEDULE", err.Error()))
	}

	if p.errs.HasError() {
		return nil, p.errs
	}
	return cfg, nil
}

type parser struct {
	getenv func(string) string
	errs   *appErrors.ValidationErrors
}

func (p parser) str(key, def string) string {
	if v := p.getenv(key); v != "" {
		return v
	}
	return def
}

func (p parser) integer(key string, def int) int {
	v := p.getenv(key)
	if v == "" {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		p.errs.Add(appErrors.NewValidationError(key, "must be an integer"))
		return def
	}
	return n
}

func (p parser) duration(key string, def time.Duration) time.Duration {
	v := p.getenv(key)
	if v == "" {
		return def
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		p.errs.Add(appErrors.NewValidationError(key, "invalid duration"))
		return def
	}
	return d
}
