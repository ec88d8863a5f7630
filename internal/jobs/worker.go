// Package jobs schedules periodic background work such as the reconciliation
// sync between the ticket database and the vector index.
package jobs

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/smartclaim/triage/internal/metrics"
)

// JobProcessor runs one round of background work.
type JobProcessor interface {
	ProcessJobs(ctx context.Context) error
}

// Options tune a Worker. Zero values keep the defaults.
type Options struct {
	// RoundTimeout bounds a single round. Zero means the round only ends
	// with the worker's context.
	RoundTimeout time.Duration
	// Immediate runs the first round at Start instead of after one interval.
	Immediate bool
}

// Worker runs a JobProcessor on a fixed interval. Rounds never overlap: a
// tick that fires while a round is running is dropped.
type Worker struct {
	name      string
	processor JobProcessor
	interval  time.Duration
	opts      Options
	logger    *zap.Logger

	stopOnce sync.Once
	stop     chan struct{}
	done     chan struct{}
}

func NewWorker(name string, processor JobProcessor, interval time.Duration, opts Options, logger *zap.Logger) *Worker {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Worker{
		name:      name,
		processor: processor,
		interval:  interval,
		opts:      opts,
		logger:    logger.Named("jobs").With(zap.String("job", name)),
		stop:      make(chan struct{}),
		done:      make(chan struct{}),
	}
}

// Start blocks until ctx is cancelled or Stop is called.
func (w *Worker) Start(ctx context.Context) {
	defer close(w.done)

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	go func() {
		select {
		case <-w.stop:
			cancel()
		case <-ctx.Done():
		}
	}()

	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	w.logger.Info("worker started", zap.Duration("interval", w.interval))
	if w.opts.Immediate {
		w.round(ctx)
	}

	for {
		select {
		case <-ctx.Done():
			w.logger.Info("worker stopped")
			return
		case <-ticker.C:
			w.round(ctx)
		}
	}
}

func (w *Worker) round(ctx context.Context) {
	if w.opts.RoundTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, w.opts.RoundTimeout)
		defer cancel()
	}

	start := time.Now()
	err := w.processor.ProcessJobs(ctx)
	switch {
	case err == nil:
		metrics.RecordJobRound(w.name, "ok")
		w.logger.Debug("round finished", zap.Duration("elapsed", time.Since(start)))
	case ctx.Err() != nil:
		metrics.RecordJobRound(w.name, "cancelled")
		w.logger.Warn("round cancelled", zap.Error(err), zap.Duration("elapsed", time.Since(start)))
	default:
		metrics.RecordJobRound(w.name, "error")
		w.logger.Error("round failed", zap.Error(err), zap.Duration("elapsed", time.Since(start)))
	}
}

// Stop cancels the running round, if any, and waits for Start to return.
// It is safe to call more than once, but Start must have been called.
func (w *Worker) Stop() {
	w.stopOnce.Do(func() { close(w.stop) })
	<-w.done
}
