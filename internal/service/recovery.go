package service

import (
	"context"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/rs/zerolog"

	"github.com/creancio/be-rc-validation/internal/faults"
)

// Reloader re-derives the workflow view from the backend. The recovery
// policy only ever reloads; it never replays the mutation that failed.
type Reloader func(ctx context.Context) error

// Outcome is what the caller shows the user after a failed operation.
type Outcome struct {
	// Message is always specific and displayable, never a bare status code.
	Message string
	// AlreadyGone is set when the target had been deleted by someone else;
	// informational, not alarming.
	AlreadyGone bool
	// ReloadScheduled is set when a self-healing reconciliation reload was
	// queued.
	ReloadScheduled bool
}

// RecoveryPolicy turns classified operation failures into user-facing
// outcomes and, for missing-entity failures, schedules a delayed
// reconciliation reload so the view self-heals.
type RecoveryPolicy struct {
	reload      Reloader
	delay       time.Duration
	maxAttempts uint64
	log         zerolog.Logger

	// appCtx outlives individual requests; a reload must not die with the
	// request that triggered it.
	appCtx context.Context
}

// NewRecoveryPolicy creates a policy. appCtx bounds the lifetime of
// scheduled reloads; delay is the fixed wait before the first reload.
func NewRecoveryPolicy(appCtx context.Context, reload Reloader, delay time.Duration, maxAttempts uint64, log zerolog.Logger) *RecoveryPolicy {
	return &RecoveryPolicy{
		reload:      reload,
		delay:       delay,
		maxAttempts: maxAttempts,
		log:         log,
		appCtx:      appCtx,
	}
}

// HandleFailure classifies a failed workflow operation into an outcome.
// Missing-entity failures schedule a reload; nothing ever retries the
// original mutation.
func (p *RecoveryPolicy) HandleFailure(err error) Outcome {
	switch faults.ClassOf(err) {
	case faults.ClassNotFound:
		p.scheduleReload()
		return Outcome{
			Message:         "This investigation no longer exists; it was probably deleted by another user. The list will refresh shortly.",
			AlreadyGone:     true,
			ReloadScheduled: true,
		}
	case faults.ClassInvalid, faults.ClassUnauthorized:
		return Outcome{Message: faults.MessageOf(err, "The operation is not allowed in the current state.")}
	case faults.ClassConflict:
		return Outcome{Message: faults.MessageOf(err, "The backend refused the operation.")}
	default:
		return Outcome{Message: faults.MessageOf(err, "The operation failed; please try again.")}
	}
}

// scheduleReload queues one delayed reconciliation reload. The reload itself
// may fail transiently and is retried a bounded number of times with the
// same fixed delay.
func (p *RecoveryPolicy) scheduleReload() {
	go func() {
		select {
		case <-p.appCtx.Done():
			return
		case <-time.After(p.delay):
		}

		policy := backoff.WithContext(
			backoff.WithMaxRetries(backoff.NewConstantBackOff(p.delay), p.maxAttempts),
			p.appCtx,
		)
		err := backoff.Retry(func() error {
			return p.reload(p.appCtx)
		}, policy)
		if err != nil {
			p.log.Warn().Err(err).Msg("Post-failure reconciliation reload did not complete")
			return
		}
		p.log.Info().Msg("Workflow view reloaded after missing-entity failure")
	}()
}
