package ingestion

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/panjf2000/ants/v2"
	"go.uber.org/zap"

	"github.com/smartclaim/triage/internal/telemetry"
)

// Task is a unit of background work. It receives a context that is not tied
// to the request which scheduled it.
type Task func(ctx context.Context) error

// Dispatcher runs ingestion work in the background on a bounded goroutine pool.
type Dispatcher struct {
	pool    *ants.Pool
	timeout time.Duration
	wg      sync.WaitGroup
	logger  *zap.Logger
}

func NewDispatcher(size int, timeout time.Duration, logger *zap.Logger) (*Dispatcher, error) {
	if size < 1 {
		size = 1
	}
	if timeout <= 0 {
		timeout = 5 * time.Minute
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	pool, err := ants.NewPool(size, ants.WithNonblocking(false))
	if err != nil {
		return nil, fmt.Errorf("create worker pool: %w", err)
	}
	return &Dispatcher{pool: pool, timeout: timeout, logger: logger.Named("dispatcher")}, nil
}

// Submit schedules task and returns once it is queued.
func (d *Dispatcher) Submit(name string, task Task) error {
	d.wg.Add(1)
	err := d.pool.Submit(func() {
		defer d.wg.Done()

		ctx, cancel := context.WithTimeout(context.Background(), d.timeout)
		defer cancel()

		start := time.Now()
		if err := task(ctx); err != nil {
			d.logger.Error("background task failed", zap.String("task", name), zap.Error(err))
			telemetry.CaptureError(ctx, err)
			return
		}
		d.logger.Debug("background task done", zap.String("task", name), zap.Duration("took", time.Since(start)))
	})
	if err != nil {
		d.wg.Done()
		return fmt.Errorf("submit %s: %w", name, err)
	}
	return nil
}

// Running reports the number of tasks currently executing.
func (d *Dispatcher) Running() int {
	return d.pool.Running()
}

// Wait blocks until every submitted task has finished.
func (d *Dispatcher) Wait() {
	d.wg.Wait()
}

// Release waits for outstanding tasks up to timeout and frees the pool.
func (d *Dispatcher) Release(timeout time.Duration) {
	done := make(chan struct{})
	go func() {
		d.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(timeout):
		d.logger.Warn("background tasks still running at shutdown", zap.Int("running", d.pool.Running()))
	}
	d.pool.Release()
}
