package service

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/creancio/be-rc-validation/internal/faults"
)

func newTestPolicy(t *testing.T, reload Reloader) *RecoveryPolicy {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)
	return NewRecoveryPolicy(ctx, reload, 5*time.Millisecond, 2, zerolog.Nop())
}

func TestHandleFailureNotFoundSchedulesReload(t *testing.T) {
	reloaded := make(chan struct{}, 1)
	p := newTestPolicy(t, func(ctx context.Context) error {
		select {
		case reloaded <- struct{}{}:
		default:
		}
		return nil
	})

	outcome := p.HandleFailure(faults.NotFound("investigation", 7))

	assert.True(t, outcome.AlreadyGone)
	assert.True(t, outcome.ReloadScheduled)
	assert.Contains(t, outcome.Message, "no longer exists")

	select {
	case <-reloaded:
	case <-time.After(time.Second):
		t.Fatal("reload was never invoked")
	}
}

func TestHandleFailureLocalErrorsNeverReload(t *testing.T) {
	var reloads atomic.Int64
	p := newTestPolicy(t, func(ctx context.Context) error {
		reloads.Add(1)
		return nil
	})

	errs := []error{
		faults.Invalid("comment", "a rejection reason is required"),
		faults.Unauthorized("not your investigation"),
		faults.Conflict("deletion blocked"),
		faults.New(faults.ClassTransient, "backend down"),
	}
	for _, err := range errs {
		outcome := p.HandleFailure(err)
		assert.False(t, outcome.AlreadyGone)
		assert.False(t, outcome.ReloadScheduled)
		assert.NotEmpty(t, outcome.Message)
	}

	time.Sleep(30 * time.Millisecond)
	assert.Zero(t, reloads.Load())
}

func TestHandleFailureKeepsSpecificMessage(t *testing.T) {
	p := newTestPolicy(t, func(ctx context.Context) error { return nil })

	outcome := p.HandleFailure(faults.Conflict("deletion blocked by dependent payments"))
	assert.Equal(t, "deletion blocked by dependent payments", outcome.Message)

	// Internal detail from an unclassified error is never shown.
	outcome = p.HandleFailure(context.DeadlineExceeded)
	assert.Equal(t, "The operation failed; please try again.", outcome.Message)
}

func TestReloadRetriesTransientFailures(t *testing.T) {
	var attempts atomic.Int64
	done := make(chan struct{})
	p := newTestPolicy(t, func(ctx context.Context) error {
		if attempts.Add(1) == 1 {
			return faults.New(faults.ClassTransient, "still warming up")
		}
		close(done)
		return nil
	})

	p.HandleFailure(faults.NotFound("investigation", 7))

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("reload never succeeded")
	}
	require.GreaterOrEqual(t, attempts.Load(), int64(2))
}

func TestReloadStopsWhenAppContextCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	var reloads atomic.Int64
	p := NewRecoveryPolicy(ctx, func(rctx context.Context) error {
		reloads.Add(1)
		return nil
	}, 20*time.Millisecond, 2, zerolog.Nop())

	p.HandleFailure(faults.NotFound("investigation", 7))
	cancel()

	time.Sleep(60 * time.Millisecond)
	assert.Zero(t, reloads.Load(), "cancelled app context must drop the pending reload")
}
