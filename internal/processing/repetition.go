// Package processing contains the message processors that run between the
// pipeline's input and output: repetition collapse, per-emitter throttling
// and the stateless mappers and filters they are combined with.
package processing

import (
	"fmt"
	"sync"
	"time"

	"logalike/internal/constants"
	"logalike/internal/logger"
	"logalike/internal/processing/window"
	"logalike/pkg/message"
)

const (
	// RepeatedField marks aggregate messages for windows that saw more
	// than one occurrence.
	RepeatedField = "isRepeated"
	// RepeatCountField carries the number of occurrences counted in the
	// window.
	RepeatCountField = "repeatCount"
)

// Mapper is a unary operation over messages.
type Mapper func(*message.Message) *message.Message

// IdentityMapper returns the message unchanged.
func IdentityMapper(m *message.Message) *message.Message {
	return m
}

// RepetitionConfig configures a RepetitionProcessor.
type RepetitionConfig struct {
	// Window is the tumbling window duration. Defaults to two minutes.
	Window time.Duration
	// Fingerprint groups messages that count as repetitions of each
	// other. Required.
	Fingerprint window.Fingerprint
	// RepeatingMapper is applied to aggregates whose window counted more
	// than one occurrence. Defaults to the identity.
	RepeatingMapper Mapper
	// NonRepeatingMapper is applied to pass-through messages and to
	// aggregates that saw a single occurrence. Defaults to the identity.
	NonRepeatingMapper Mapper
	// Clock drives window timing. Defaults to the system clock.
	Clock window.Clock
	// Logger is optional.
	Logger logger.Logger
}

// RepetitionProcessor compresses repeating messages within a time window.
// Every incoming message passes through immediately while its window
// counter is bumped; when a window closes, one aggregate message is emitted
// tagged with RepeatedField and RepeatCountField.
type RepetitionProcessor struct {
	manager            *window.Manager
	repeatingMapper    Mapper
	nonRepeatingMapper Mapper
	logger             logger.Logger
}

// NewRepetitionProcessor validates the configuration and starts the window
// manager.
func NewRepetitionProcessor(cfg RepetitionConfig) (*RepetitionProcessor, error) {
	if cfg.Fingerprint == nil {
		return nil, fmt.Errorf("fingerprint function must be set")
	}
	if cfg.Window == 0 {
		cfg.Window = constants.DefaultRepetitionWindow
	}
	if cfg.Window < 0 {
		return nil, fmt.Errorf("window duration must be positive, got %v", cfg.Window)
	}
	if cfg.RepeatingMapper == nil {
		cfg.RepeatingMapper = IdentityMapper
	}
	if cfg.NonRepeatingMapper == nil {
		cfg.NonRepeatingMapper = IdentityMapper
	}
	if cfg.Logger == nil {
		cfg.Logger = logger.NopLogger()
	}
	manager, err := window.NewManager(cfg.Window, cfg.Fingerprint, cfg.Clock)
	if err != nil {
		return nil, err
	}
	cfg.Logger.Debugw("Repetition processor initialised", "window", cfg.Window)
	return &RepetitionProcessor{
		manager:            manager,
		repeatingMapper:    cfg.RepeatingMapper,
		nonRepeatingMapper: cfg.NonRepeatingMapper,
		logger:             cfg.Logger,
	}, nil
}

// Apply merges the pass-through stream with the aggregates from closed
// windows. No order is guaranteed between the two.
func (p *RepetitionProcessor) Apply(in <-chan *message.Message) <-chan *message.Message {
	out := make(chan *message.Message)
	var wg sync.WaitGroup
	wg.Add(2)

	go func() {
		defer wg.Done()
		for m := range in {
			p.manager.Increment(m)
			out <- p.nonRepeatingMapper(m)
		}
	}()

	go func() {
		defer wg.Done()
		for w := range p.manager.Closed() {
			out <- p.aggregate(w)
		}
	}()

	go func() {
		wg.Wait()
		close(out)
	}()
	return out
}

// aggregate tags the window's message with the repetition fields and routes
// it through the matching mapper.
func (p *RepetitionProcessor) aggregate(w *window.Window) *message.Message {
	count := w.Count()
	m := w.Message().
		Put(RepeatedField, count > 1).
		Put(RepeatCountField, count)
	if count > 1 {
		return p.repeatingMapper(m)
	}
	return p.nonRepeatingMapper(m)
}

// Close finalises open windows and ends the aggregate stream.
func (p *RepetitionProcessor) Close() error {
	return p.manager.Close()
}
