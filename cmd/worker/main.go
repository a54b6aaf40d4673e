package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/robfig/cron/v3"

	"github.com/unclebandit/leadflow-backend/internal/app"
	"github.com/unclebandit/leadflow-backend/internal/config"
	"github.com/unclebandit/leadflow-backend/internal/queue"
	"github.com/unclebandit/leadflow-backend/internal/service"
)

type actionProcessor interface {
	ProcessScheduledActions(ctx context.Context) (service.ProcessResult, error)
}

func main() {
	if err := godotenv.Load(); err != nil {
		log.Println("⚠️ No .env file found, relying on OS environment variables")
	}

	cfg, err := config.Load()
	if err != nil {
		log.Fatal("invalid configuration: ", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	a, err := app.New(ctx, cfg)
	if err != nil {
		log.Fatal(err)
	}
	defer a.Close()

	if err := startCRMPushConsumer(cfg, a.Queue); err != nil {
		log.Fatal("failed to consume CRM pushes: ", err)
	}

	c, err := newScheduler(cfg.ProcessSchedule, processJob(ctx, a.Processor))
	if err != nil {
		log.Fatal("failed to schedule processor: ", err)
	}

	c.Start()
	log.Printf("Worker running on schedule %q, waiting for due actions...", cfg.ProcessSchedule)

	<-ctx.Done()
	log.Println("🛑 Stopping worker, waiting for the running tick to finish")
	<-c.Stop().Done()
}

// startCRMPushConsumer drains the broker's CRM push queue. The in-memory
// queue already has its logger subscribed by app.New.
func startCRMPushConsumer(cfg *config.Config, q queue.Queue) error {
	if cfg.AMQP.URL == "" {
		return nil
	}
	if err := queue.StartCRMPushLogger(q, cfg.AMQP.Queue); err != nil {
		return err
	}
	log.Printf("✅ Consuming CRM pushes from RabbitMQ queue %q", cfg.AMQP.Queue)
	return nil
}

// newScheduler runs job on spec. A tick is skipped while the previous one is
// still running.
func newScheduler(spec string, job func()) (*cron.Cron, error) {
	c := cron.New(cron.WithChain(
		cron.Recover(cron.DefaultLogger),
		cron.SkipIfStillRunning(cron.DefaultLogger),
	))
	if _, err := c.AddFunc(spec, job); err != nil {
		return nil, err
	}
	return c, nil
}

func processJob(ctx context.Context, p actionProcessor) func() {
	return func() {
		if ctx.Err() != nil {
			return
		}
		res, err := p.ProcessScheduledActions(ctx)
		if err != nil {
			log.Println("❌ Processing tick failed:", err)
			return
		}
		if res.Processed+res.Failed+res.Skipped > 0 {
			log.Printf("✅ Tick done: processed=%d failed=%d retried=%d recovered=%d skipped=%d",
				res.Processed, res.Failed, res.Retried, res.Recovered, res.Skipped)
		}
	}
}
