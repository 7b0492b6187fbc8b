package service

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/pkordes/tripbot/internal/metrics"
)

// DetachedTask is a platform call nobody waits for. Its error is logged and
// counted, and never reaches the user who triggered it.
type DetachedTask func(ctx context.Context) error

// Detacher starts detached tasks.
type Detacher interface {
	Go(name string, task DetachedTask)
}

// Background runs detached tasks on their own goroutines, outside the
// lifetime of the request that started them.
type Background struct {
	ctx     context.Context
	cancel  context.CancelFunc
	wg      sync.WaitGroup
	timeout time.Duration
	logger  *slog.Logger
	metrics *metrics.Metrics
}

// NewBackground returns a runner whose tasks each get at most timeout to
// finish. m may be nil.
func NewBackground(logger *slog.Logger, m *metrics.Metrics, timeout time.Duration) *Background {
	if logger == nil {
		logger = slog.Default()
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &Background{ctx: ctx, cancel: cancel, timeout: timeout, logger: logger, metrics: m}
}

// Go starts task under name. name labels the log line and metric on failure.
func (b *Background) Go(name string, task DetachedTask) {
	b.wg.Add(1)
	go func() {
		defer b.wg.Done()
		defer func() {
			if p := recover(); p != nil {
				b.fail(name, "panic", p)
			}
		}()

		ctx, cancel := context.WithTimeout(b.ctx, b.timeout)
		defer cancel()
		if err := task(ctx); err != nil {
			b.fail(name, "error", err)
		}
	}()
}

func (b *Background) fail(name, key string, value any) {
	b.logger.Error("detached task failed", "task", name, key, value)
	if b.metrics != nil {
		b.metrics.DetachedFailures.WithLabelValues(name).Inc()
	}
}

// Shutdown waits for running tasks. If ctx ends first, the remaining tasks
// are cancelled and ctx's error is returned.
func (b *Background) Shutdown(ctx context.Context) error {
	done := make(chan struct{})
	go func() {
		b.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		b.cancel()
		return nil
	case <-ctx.Done():
		b.cancel()
		<-done
		return ctx.Err()
	}
}

// sleep waits for d or until ctx ends, whichever comes first.
func sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return nil
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-t.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
