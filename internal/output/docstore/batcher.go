package docstore

import (
	"context"
	"fmt"
	"sync"
	"time"

	"golang.org/x/sync/semaphore"

	"logalike/internal/constants"
	"logalike/internal/logger"
	"logalike/pkg/metrics"
)

// Action is one document indexed into one wire destination.
type Action struct {
	ID          string
	Destination string
	Document    map[string]interface{}
}

// BatcherConfig bounds batches by size and staleness, and the number of
// batches in flight.
type BatcherConfig struct {
	// FlushInterval is the maximum staleness of a batch. Must be positive.
	FlushInterval time.Duration
	// MaxActions flushes a batch once it holds this many actions.
	MaxActions int
	// MaxConcurrent bounds in-flight dispatches. A submission that fills
	// the batch blocks while the limit is reached.
	MaxConcurrent int
	// Logger is optional.
	Logger logger.Logger
}

// Batcher coalesces actions into batches and hands them to a dispatch
// function on a bounded number of background workers. It never retries or
// reorders: a failed batch is the dispatcher's to report.
type Batcher struct {
	cfg      BatcherConfig
	dispatch func(context.Context, []Action)
	sem      *semaphore.Weighted

	mu      sync.Mutex
	pending []Action

	stop      chan struct{}
	loopDone  chan struct{}
	inflight  sync.WaitGroup
	closeOnce sync.Once
}

// NewBatcher validates the configuration and starts the interval flusher.
func NewBatcher(cfg BatcherConfig, dispatch func(context.Context, []Action)) (*Batcher, error) {
	if cfg.FlushInterval == 0 {
		cfg.FlushInterval = constants.DefaultFlushInterval
	}
	if cfg.FlushInterval < 0 {
		return nil, fmt.Errorf("flush interval must be positive, got %v", cfg.FlushInterval)
	}
	if cfg.MaxActions == 0 {
		cfg.MaxActions = constants.DefaultMaxActions
	}
	if cfg.MaxActions < 1 {
		return nil, fmt.Errorf("max actions per batch must be at least 1, got %d", cfg.MaxActions)
	}
	if cfg.MaxConcurrent == 0 {
		cfg.MaxConcurrent = constants.DefaultMaxConcurrent
	}
	if cfg.MaxConcurrent < 1 {
		return nil, fmt.Errorf("max concurrent batches must be at least 1, got %d", cfg.MaxConcurrent)
	}
	if cfg.Logger == nil {
		cfg.Logger = logger.NopLogger()
	}
	if dispatch == nil {
		return nil, fmt.Errorf("dispatch function must be set")
	}
	b := &Batcher{
		cfg:      cfg,
		dispatch: dispatch,
		sem:      semaphore.NewWeighted(int64(cfg.MaxConcurrent)),
		stop:     make(chan struct{}),
		loopDone: make(chan struct{}),
	}
	go b.flushLoop()
	return b, nil
}

// Submit adds one action to the current batch, flushing when the batch is
// full. When the submission fills the batch, Submit blocks while
// MaxConcurrent dispatches are already in flight.
func (b *Batcher) Submit(a Action) {
	var full []Action
	b.mu.Lock()
	b.pending = append(b.pending, a)
	if len(b.pending) >= b.cfg.MaxActions {
		full = b.pending
		b.pending = nil
	}
	b.mu.Unlock()

	if full != nil {
		b.flush(full, "size")
	}
}

// Pending returns the number of actions waiting in the current batch.
func (b *Batcher) Pending() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.pending)
}

func (b *Batcher) flushLoop() {
	defer close(b.loopDone)
	ticker := time.NewTicker(b.cfg.FlushInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			b.flushPending("interval")
		case <-b.stop:
			return
		}
	}
}

func (b *Batcher) flushPending(trigger string) {
	b.mu.Lock()
	batch := b.pending
	b.pending = nil
	b.mu.Unlock()
	if len(batch) > 0 {
		b.flush(batch, trigger)
	}
}

// flush acquires a dispatch slot, blocking the caller while the concurrency
// limit is reached, then dispatches the batch in the background.
func (b *Batcher) flush(batch []Action, trigger string) {
	if err := b.sem.Acquire(context.Background(), 1); err != nil {
		return
	}
	metrics.EgressBatchFlushesTotal.WithLabelValues(trigger).Inc()
	b.inflight.Add(1)
	go func() {
		defer b.inflight.Done()
		defer b.sem.Release(1)
		started := time.Now()
		ctx, cancel := context.WithTimeout(context.Background(), constants.DispatchTimeout)
		defer cancel()
		b.dispatch(ctx, batch)
		metrics.EgressBatchDuration.Observe(float64(time.Since(started).Milliseconds()))
	}()
}

// Close flushes whatever is pending, waits for in-flight dispatches and
// stops the interval flusher. Idempotent.
func (b *Batcher) Close() error {
	b.closeOnce.Do(func() {
		close(b.stop)
		<-b.loopDone
		b.flushPending("close")
		b.inflight.Wait()
	})
	return nil
}
