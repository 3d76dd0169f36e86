package orchestrator

import (
	"context"
	"errors"
	"log/slog"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/alejandrodnm/cryptoengine/internal/health"
	"github.com/alejandrodnm/cryptoengine/internal/ports"
)

type fakeNotifier struct {
	count int32
}

func newFakeNotifier() *fakeNotifier { return &fakeNotifier{} }

func (f *fakeNotifier) Notify(level ports.Level, text string) {
	atomic.AddInt32(&f.count, 1)
}

func TestRunLoopTicksAtConfiguredInterval(t *testing.T) {
	var ticks int32
	p := pipeline{
		name:     "test",
		interval: 10 * time.Millisecond,
		run: func(ctx context.Context) error {
			atomic.AddInt32(&ticks, 1)
			return nil
		},
	}

	ctx, cancel := context.WithTimeout(context.Background(), 55*time.Millisecond)
	defer cancel()

	checker := health.NewChecker()
	runLoop(ctx, p, 0, checker, newFakeNotifier(), slog.New(slog.NewTextHandler(testWriter{}, nil)))

	assert.GreaterOrEqual(t, int(atomic.LoadInt32(&ticks)), 3)

	snap := checker.Snapshot()
	assert.Equal(t, health.StatusOK, snap.Overall)
}

func TestRunLoopRecordsFaultButKeepsRunning(t *testing.T) {
	var ticks int32
	p := pipeline{
		name:     "faulty",
		interval: 5 * time.Millisecond,
		run: func(ctx context.Context) error {
			n := atomic.AddInt32(&ticks, 1)
			if n <= 2 {
				return errors.New("boom")
			}
			return nil
		},
	}

	ctx, cancel := context.WithTimeout(context.Background(), 40*time.Millisecond)
	defer cancel()

	checker := health.NewChecker()
	notifier := newFakeNotifier()
	runLoop(ctx, p, 0, checker, notifier, slog.New(slog.NewTextHandler(testWriter{}, nil)))

	assert.GreaterOrEqual(t, int(atomic.LoadInt32(&ticks)), 3)
	assert.GreaterOrEqual(t, int(atomic.LoadInt32(&notifier.count)), 2)
}

// testWriter discards log output without pulling in io.Discard-adjacent
// dependencies at the call site.
type testWriter struct{}

func (testWriter) Write(p []byte) (int, error) { return len(p), nil }
