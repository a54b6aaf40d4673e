// internal/app/app.go
package app

import (
	"context"
	"log"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/jmoiron/sqlx"

	"github.com/unclebandit/leadflow-backend/internal/config"
	"github.com/unclebandit/leadflow-backend/internal/controller"
	"github.com/unclebandit/leadflow-backend/internal/db"
	"github.com/unclebandit/leadflow-backend/internal/executor"
	"github.com/unclebandit/leadflow-backend/internal/handler"
	"github.com/unclebandit/leadflow-backend/internal/queue"
	"github.com/unclebandit/leadflow-backend/internal/repository"
	"github.com/unclebandit/leadflow-backend/internal/service"
)

// App holds the wired dependencies shared by the server and the worker.
type App struct {
	Config    *config.Config
	DB        *sqlx.DB
	Store     repository.ActionStore
	Leads     *repository.LeadRepository
	Queue     queue.Queue
	Executors *executor.Registry
	Processor *service.Processor
	Actions   *service.ActionService

	closers []func() error
}

// New opens the configured backend, applies migrations and builds the
// processor with every executor registered.
func New(ctx context.Context, cfg *config.Config) (*App, error) {
	backend, err := db.NewBackend(cfg)
	if err != nil {
		return nil, err
	}
	conn, err := db.Connect(ctx, backend)
	if err != nil {
		return nil, err
	}

	a := &App{Config: cfg, DB: conn}
	a.closers = append(a.closers, conn.Close)

	a.Store, err = repository.NewActionStore(backend.Name(), conn)
	if err != nil {
		a.Close()
		return nil, err
	}
	a.Leads = repository.NewLeadRepository(conn)

	if a.Queue, err = newQueue(cfg); err != nil {
		a.Close()
		return nil, err
	}
	if closer, ok := a.Queue.(interface{ Close() error }); ok {
		a.closers = append(a.closers, closer.Close)
	}

	a.Executors = executor.NewRegistry(
		&executor.EmailExecutor{
			Sender: executor.NewEmailClient(cfg.Email.APIURL, cfg.Email.APIKey, cfg.Email.From),
			Leads:  a.Leads,
		},
		&executor.SMSExecutor{
			Sender: executor.NewTwilioClient(cfg.Twilio.AccountSID, cfg.Twilio.AuthToken, cfg.Twilio.FromNumber, cfg.Twilio.BaseURL),
			Leads:  a.Leads,
		},
		&executor.CRMPushExecutor{
			Queue: a.Queue,
			Topic: cfg.AMQP.Queue,
			Leads: a.Leads,
		},
	)

	a.Processor = service.NewProcessor(a.Store, a.Executors, cfg)
	a.Actions = &service.ActionService{Store: a.Store, Executors: a.Executors}
	return a, nil
}

func newQueue(cfg *config.Config) (queue.Queue, error) {
	if cfg.AMQP.URL != "" {
		q, err := queue.NewAMQPQueue(cfg.AMQP.URL)
		if err != nil {
			return nil, err
		}
		log.Printf("✅ Publishing CRM pushes to RabbitMQ queue %q", cfg.AMQP.Queue)
		return q, nil
	}

	q := queue.NewInMemoryQueue()
	if err := queue.StartCRMPushLogger(q, cfg.AMQP.Queue); err != nil {
		return nil, err
	}
	log.Println("⚠️ AMQP_URL not set, CRM pushes are logged in-process")
	return q, nil
}

// Router mounts the automation endpoints behind chi's request middleware.
func (a *App) Router() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)

	automations := &controller.AutomationController{
		Processor:  a.Processor,
		Store:      a.Actions,
		CronSecret: a.Config.CronSecret,
	}
	automations.Routes(r)
	handler.NewActionHandler(a.Actions).Routes(r)
	return r
}

// Close releases resources in reverse order of acquisition.
func (a *App) Close() error {
	var first error
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](); err != nil && first == nil {
			first = err
		}
	}
	a.closers = nil
	return first
}
