package processing

import (
	"fmt"
	"sync"
	"time"

	"logalike/internal/logger"
	"logalike/internal/processing/window"
	"logalike/pkg/message"
	"logalike/pkg/metrics"
)

// ThrottleListener is informed when an emitter crosses the throttling
// threshold, stays above it for another cycle, or falls back within it. A
// returned message is emitted on the processor's output; nil stays silent.
type ThrottleListener interface {
	OnThrottleStarting(startTime time.Time, fingerprint string, count int64) *message.Message
	OnThrottleRecurring(startTime time.Time, fingerprint string, count int64) *message.Message
	OnThrottleEnding(startTime time.Time, fingerprint string, count int64) *message.Message
}

// silentListener never emits notifications.
type silentListener struct{}

func (silentListener) OnThrottleStarting(time.Time, string, int64) *message.Message {
	return nil
}

func (silentListener) OnThrottleRecurring(time.Time, string, int64) *message.Message {
	return nil
}

func (silentListener) OnThrottleEnding(time.Time, string, int64) *message.Message {
	return nil
}

// ThrottleConfig configures a ThrottleProcessor.
type ThrottleConfig struct {
	// Cycle is the measuring window per emitter. Must be positive.
	Cycle time.Duration
	// Limit is the number of messages an emitter may send per cycle
	// before being throttled. A limit of zero throttles every emitter on
	// its first over-limit window.
	Limit int64
	// Fingerprint identifies the emitter of a message. Required.
	Fingerprint window.Fingerprint
	// Listener reacts to throttle transitions. Optional.
	Listener ThrottleListener
	// Clock drives window timing. Defaults to the system clock.
	Clock window.Clock
	// Logger is optional.
	Logger logger.Logger
}

// ThrottleProcessor drops messages from emitters that exceed a per-cycle
// limit. Counters are bumped for every message, including dropped ones, so
// over-limit emitters stay measured while blocked and are released once a
// cycle closes within the limit.
type ThrottleProcessor struct {
	cycle       time.Duration
	limit       int64
	fingerprint window.Fingerprint
	manager     *window.Manager
	listener    ThrottleListener
	clock       window.Clock
	logger      logger.Logger

	// mu serialises record transitions: it covers the read-modify-write
	// of throttled plus the listener call.
	mu        sync.Mutex
	throttled map[string]time.Time
}

// NewThrottleProcessor validates the configuration and starts the window
// manager.
func NewThrottleProcessor(cfg ThrottleConfig) (*ThrottleProcessor, error) {
	if cfg.Cycle <= 0 {
		return nil, fmt.Errorf("throttle cycle must be positive, got %v", cfg.Cycle)
	}
	if cfg.Limit < 0 {
		return nil, fmt.Errorf("throttle limit cannot be negative, got %d", cfg.Limit)
	}
	if cfg.Fingerprint == nil {
		return nil, fmt.Errorf("fingerprint function must be set")
	}
	if cfg.Listener == nil {
		cfg.Listener = silentListener{}
	}
	if cfg.Clock == nil {
		cfg.Clock = window.SystemClock
	}
	if cfg.Logger == nil {
		cfg.Logger = logger.NopLogger()
	}
	manager, err := window.NewManager(cfg.Cycle, cfg.Fingerprint, cfg.Clock)
	if err != nil {
		return nil, err
	}
	cfg.Logger.Debugw("Throttle processor initialised", "cycle", cfg.Cycle, "limit", cfg.Limit)
	return &ThrottleProcessor{
		cycle:       cfg.Cycle,
		limit:       cfg.Limit,
		fingerprint: cfg.Fingerprint,
		manager:     manager,
		listener:    cfg.Listener,
		clock:       cfg.Clock,
		logger:      cfg.Logger,
		throttled:   make(map[string]time.Time),
	}, nil
}

// Apply merges the pass-through stream of messages below the limit with the
// notification messages produced at window close. No order is guaranteed
// between the two.
func (p *ThrottleProcessor) Apply(in <-chan *message.Message) <-chan *message.Message {
	out := make(chan *message.Message)
	var wg sync.WaitGroup
	wg.Add(2)

	go func() {
		defer wg.Done()
		for m := range in {
			if p.allow(m) {
				out <- m
			}
		}
	}()

	go func() {
		defer wg.Done()
		for w := range p.manager.Closed() {
			if notification := p.transition(w); notification != nil {
				out <- notification
			}
		}
	}()

	go func() {
		wg.Wait()
		close(out)
	}()
	return out
}

// allow bumps the emitter's counter unconditionally and reports whether the
// message passes: the emitter must not be throttled and the new count must
// stay within the limit.
func (p *ThrottleProcessor) allow(m *message.Message) bool {
	fingerprint := p.fingerprint(m)
	count := p.manager.Increment(m)

	p.mu.Lock()
	_, isThrottled := p.throttled[fingerprint]
	p.mu.Unlock()
	return !isThrottled && count <= p.limit
}

// transition updates the throttle record for a closed window and asks the
// listener for an optional notification message.
func (p *ThrottleProcessor) transition(w *window.Window) *message.Message {
	fingerprint := p.fingerprint(w.Message())
	count := w.Count()

	p.mu.Lock()
	defer p.mu.Unlock()

	startTime, isThrottled := p.throttled[fingerprint]
	switch {
	case count > p.limit && isThrottled:
		metrics.ThrottleTransitionsTotal.WithLabelValues("recurring").Inc()
		return p.listener.OnThrottleRecurring(startTime, fingerprint, count)
	case count > p.limit:
		now := p.clock()
		p.throttled[fingerprint] = now
		metrics.ThrottledEmitters.Inc()
		metrics.ThrottleTransitionsTotal.WithLabelValues("starting").Inc()
		p.logger.Infow("Throttling emitter", "fingerprint", fingerprint, "count", count, "limit", p.limit)
		return p.listener.OnThrottleStarting(now, fingerprint, count)
	case isThrottled:
		delete(p.throttled, fingerprint)
		metrics.ThrottledEmitters.Dec()
		metrics.ThrottleTransitionsTotal.WithLabelValues("ending").Inc()
		p.logger.Infow("Releasing throttled emitter", "fingerprint", fingerprint, "count", count)
		return p.listener.OnThrottleEnding(startTime, fingerprint, count)
	default:
		return nil
	}
}

// Throttled reports whether the emitter is currently throttled.
func (p *ThrottleProcessor) Throttled(fingerprint string) bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	_, ok := p.throttled[fingerprint]
	return ok
}

// Close finalises open windows, emitting their transitions, and ends the
// notification stream.
func (p *ThrottleProcessor) Close() error {
	return p.manager.Close()
}
