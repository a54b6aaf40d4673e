package service

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/unclebandit/leadflow-backend/internal/config"
	appErrors "github.com/unclebandit/leadflow-backend/internal/errors"
	"github.com/unclebandit/leadflow-backend/internal/executor"
	"github.com/unclebandit/leadflow-backend/internal/model"
	"github.com/unclebandit/leadflow-backend/internal/repository"
)

const defaultBatchSize = 100

// Processor runs due scheduled actions through their executors.
type Processor struct {
	Store         repository.ActionStore
	Executors     *executor.Registry
	Retry         RetryPolicy
	ActionTimeout time.Duration
	BatchSize     int
	LeaseTimeout  time.Duration
	Instance      string
	Now           func() time.Time
}

// ProcessResult summarises one invocation. Failed includes Retried and
// Recovered, so Processed+Failed is the number of actions whose status changed.
type ProcessResult struct {
	Processed int `json:"processed"`
	Failed    int `json:"failed"`
	Retried   int `json:"retried"`
	Recovered int `json:"recovered"`
	Skipped   int `json:"skipped"`
}

type outcome int

const (
	outcomeCompleted outcome = iota
	outcomeFailed
	outcomeRetried
	outcomeSkipped
)

func NewProcessor(store repository.ActionStore, executors *executor.Registry, cfg *config.Config) *Processor {
	return &Processor{
		Store:         store,
		Executors:     executors,
		Retry:         NewRetryPolicy(cfg.Retry),
		ActionTimeout: cfg.ActionTimeout,
		BatchSize:     cfg.BatchSize,
		LeaseTimeout:  cfg.ProcessingLease,
		Instance:      cfg.InstanceID,
	}
}

func (p *Processor) now() time.Time {
	if p.Now != nil {
		return p.Now().UTC()
	}
	return time.Now().UTC()
}

// ProcessScheduledActions claims every due pending action, oldest first, and
// executes them one at a time. Failures of individual actions are recorded on
// the action; store failures abort the invocation and no counts are returned.
func (p *Processor) ProcessScheduledActions(ctx context.Context) (ProcessResult, error) {
	var result ProcessResult
	now := p.now()

	if p.LeaseTimeout > 0 {
		n, err := p.Store.RecoverStale(ctx, now.Add(-p.LeaseTimeout), now)
		if err != nil {
			return ProcessResult{}, appErrors.NewStoreError("recover stale actions", err)
		}
		if n > 0 {
			log.Printf("[processor] ⚠️ marked %d stale processing action(s) as failed", n)
			result.Failed += int(n)
			result.Recovered += int(n)
		}
	}

	batch := p.BatchSize
	if batch <= 0 {
		batch = defaultBatchSize
	}
	due, err := p.Store.ListDue(ctx, now, batch)
	if err != nil {
		return ProcessResult{}, appErrors.NewStoreError("list due actions", err)
	}
	if len(due) == 0 {
		return result, nil
	}
	log.Printf("[processor] %d due action(s) selected", len(due))

	for _, action := range due {
		if err := ctx.Err(); err != nil {
			return ProcessResult{}, err
		}

		out, err := p.processOne(ctx, action)
		if err != nil {
			return ProcessResult{}, err
		}
		switch out {
		case outcomeCompleted:
			result.Processed++
		case outcomeFailed:
			result.Failed++
		case outcomeRetried:
			result.Failed++
			result.Retried++
		case outcomeSkipped:
			result.Skipped++
		}
	}

	log.Printf("[processor] ✅ done: processed=%d failed=%d retried=%d recovered=%d skipped=%d",
		result.Processed, result.Failed, result.Retried, result.Recovered, result.Skipped)
	return result, nil
}

func (p *Processor) processOne(ctx context.Context, action *model.ScheduledAction) (outcome, error) {
	claimed, err := p.Store.Claim(ctx, action.ID, p.Instance, p.now())
	if err != nil {
		return 0, appErrors.NewStoreError("claim action", err)
	}
	if !claimed {
		log.Printf("[processor] action %d already claimed, skipping", action.ID)
		return outcomeSkipped, nil
	}
	action.Status = model.StatusProcessing
	action.Attempts++

	// A claimed action must leave processing even if ctx is cancelled.
	finishCtx := context.WithoutCancel(ctx)

	execErr := p.execute(ctx, action)
	if execErr == nil {
		if err := p.Store.MarkCompleted(finishCtx, action.ID, p.now()); err != nil {
			return p.finishError(action, "mark completed", err)
		}
		log.Printf("[processor] ✅ action %d (%s) completed", action.ID, action.ActionType)
		return outcomeCompleted, nil
	}

	msg := execErr.Error()
	if p.retryable(execErr) && p.Retry.ShouldRetry(action.Attempts) {
		next := p.Retry.NextAttemptAt(p.now(), action.Attempts)
		if err := p.Store.Reschedule(finishCtx, action.ID, next, msg, p.now()); err != nil {
			return p.finishError(action, "reschedule action", err)
		}
		log.Printf("[processor] ⚠️ action %d (%s) failed, retrying at %s: %s",
			action.ID, action.ActionType, next.Format(time.RFC3339), msg)
		return outcomeRetried, nil
	}

	if err := p.Store.MarkFailed(finishCtx, action.ID, msg, p.now()); err != nil {
		return p.finishError(action, "mark failed", err)
	}
	log.Printf("[processor] ❌ action %d (%s) failed: %s", action.ID, action.ActionType, msg)
	return outcomeFailed, nil
}

// finishError treats a lost processing state as a skip; anything else is a
// store failure.
func (p *Processor) finishError(action *model.ScheduledAction, op string, err error) (outcome, error) {
	if errors.Is(err, repository.ErrNotProcessing) {
		log.Printf("[processor] action %d left processing state before %s, skipping", action.ID, op)
		return outcomeSkipped, nil
	}
	return 0, appErrors.NewStoreError(op, err)
}

// Validation and unknown-type errors are permanent. A timed-out executor may
// still be running and may yet deliver, so it is not retried either.
func (p *Processor) retryable(err error) bool {
	var ee *appErrors.ExecutionError
	if !errors.As(err, &ee) {
		return false
	}
	return !errors.Is(err, context.DeadlineExceeded)
}

// execute runs the executor under the per-action timeout. A hung executor is
// abandoned once the deadline passes.
func (p *Processor) execute(ctx context.Context, action *model.ScheduledAction) error {
	exec, err := p.Executors.Lookup(action.ActionType)
	if err != nil {
		return err
	}

	actx := ctx
	cancel := func() {}
	if p.ActionTimeout > 0 {
		actx, cancel = context.WithTimeout(ctx, p.ActionTimeout)
	}
	defer cancel()

	done := make(chan error, 1)
	go func() {
		defer func() {
			if r := recover(); r != nil {
				done <- appErrors.NewExecutionError(string(action.ActionType), fmt.Errorf("executor panicked: %v", r))
			}
		}()
		done <- exec.Execute(actx, action)
	}()

	select {
	case err := <-done:
		return err
	case <-actx.Done():
		return appErrors.NewExecutionError(string(action.ActionType),
			fmt.Errorf("executor did not finish within %s: %w", p.ActionTimeout, actx.Err()))
	}
}
