package pipeline

import (
	"context"
	"fmt"
	"io"
	"runtime"
	"sync"
	"sync/atomic"

	"golang.org/x/sync/errgroup"

	"logalike/internal/logger"
	"logalike/pkg/metrics"
)

// Config holds runtime settings for a Pipeline.
type Config struct {
	// Workers is the number of goroutines delivering processed messages to
	// the output. Defaults to the number of CPUs.
	Workers int
}

// Pipeline drives messages from an input through a processor chain into an
// output. It owns the cancellation flag: Close stops delivery at the next
// message boundary and tears down input, processors and output in order.
type Pipeline struct {
	cfg        Config
	input      Input
	output     Output
	processors []Processor
	logger     logger.Logger

	closed    atomic.Bool
	closeOnce sync.Once
	closeErr  error
}

// New assembles a pipeline. The processor list may be empty, in which case
// messages flow from input to output unchanged.
func New(cfg Config, input Input, output Output, log logger.Logger, processors ...Processor) (*Pipeline, error) {
	if input == nil {
		return nil, fmt.Errorf("input must be set")
	}
	if output == nil {
		return nil, fmt.Errorf("output must be set")
	}
	if log == nil {
		log = logger.NopLogger()
	}
	if cfg.Workers <= 0 {
		cfg.Workers = runtime.NumCPU()
	}
	return &Pipeline{
		cfg:        cfg,
		input:      input,
		output:     output,
		processors: processors,
		logger:     log,
	}, nil
}

// Run processes the stream until the input ends or the pipeline is closed.
// Cancelling the context closes the pipeline. Run returns after all workers
// have stopped.
func (p *Pipeline) Run(ctx context.Context) error {
	stream := Chain(p.processors...).Apply(p.input.Get())

	watchDone := make(chan struct{})
	defer close(watchDone)
	go func() {
		select {
		case <-ctx.Done():
			if err := p.Close(); err != nil {
				p.logger.Warnw("Error closing pipeline", "error", err)
			}
		case <-watchDone:
		}
	}()

	g := &errgroup.Group{}
	for i := 0; i < p.cfg.Workers; i++ {
		g.Go(func() error {
			for m := range stream {
				if p.closed.Load() {
					metrics.PipelineMessagesTotal.WithLabelValues("discarded").Inc()
					continue
				}
				p.output.Accept(m)
				metrics.PipelineMessagesTotal.WithLabelValues("delivered").Inc()
			}
			return nil
		})
	}
	return g.Wait()
}

// Close sets the cancellation flag and releases resources: the input first
// so the stream ends, then processors holding background state, then the
// output. Close is idempotent.
func (p *Pipeline) Close() error {
	p.closeOnce.Do(func() {
		p.closed.Store(true)

		if err := p.input.Close(); err != nil {
			p.closeErr = fmt.Errorf("closing input: %w", err)
			p.logger.Warnw("Error closing input", "error", err)
		}
		for _, proc := range p.processors {
			closer, ok := proc.(io.Closer)
			if !ok {
				continue
			}
			if err := closer.Close(); err != nil {
				p.logger.Warnw("Error closing processor", "error", err)
				if p.closeErr == nil {
					p.closeErr = fmt.Errorf("closing processor: %w", err)
				}
			}
		}
		if err := p.output.Close(); err != nil {
			p.logger.Warnw("Error closing output", "error", err)
			if p.closeErr == nil {
				p.closeErr = fmt.Errorf("closing output: %w", err)
			}
		}
	})
	return p.closeErr
}
