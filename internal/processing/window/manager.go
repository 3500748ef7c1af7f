package window

import (
	"fmt"
	"sync"
	"time"

	"logalike/pkg/message"
	"logalike/pkg/metrics"
)

// Fingerprint derives the identity key used to group messages into windows.
// Messages with equal fingerprints are counted in the same window.
type Fingerprint func(*message.Message) string

// ByField builds a Fingerprint from the string value of a single field,
// defaulting to the empty string when the field is absent.
func ByField(field string) Fingerprint {
	return func(m *message.Message) string {
		value, _ := m.OptionalString(field)
		return value
	}
}

// Manager keeps one tumbling window per fingerprint. Increment opens or
// bumps the window for a message; a background sweep closes windows older
// than the configured duration and queues them for consumption through
// Closed.
type Manager struct {
	duration    time.Duration
	fingerprint Fingerprint
	clock       Clock

	mu     sync.Mutex
	open   map[string]*Window
	closed *closedQueue

	sweepStop chan struct{}
	sweepDone chan struct{}
	closeOnce sync.Once
}

// NewManager creates a Manager sweeping every duration. The duration must be
// positive and the fingerprint function non-nil.
func NewManager(duration time.Duration, fingerprint Fingerprint, clock Clock) (*Manager, error) {
	if duration <= 0 {
		return nil, fmt.Errorf("window duration must be positive, got %v", duration)
	}
	if fingerprint == nil {
		return nil, fmt.Errorf("fingerprint function must be set")
	}
	if clock == nil {
		clock = SystemClock
	}
	m := &Manager{
		duration:    duration,
		fingerprint: fingerprint,
		clock:       clock,
		open:        make(map[string]*Window),
		closed:      newClosedQueue(),
		sweepStop:   make(chan struct{}),
		sweepDone:   make(chan struct{}),
	}
	go m.sweepLoop()
	return m, nil
}

// Increment bumps the counter of the window matching the message's
// fingerprint, opening a fresh window owning a copy of the message when none
// is open. Returns the new count; 1 means the message opened the window.
func (m *Manager) Increment(msg *message.Message) int64 {
	fingerprint := m.fingerprint(msg)

	m.mu.Lock()
	defer m.mu.Unlock()
	if w, ok := m.open[fingerprint]; ok {
		return w.increment()
	}
	m.open[fingerprint] = newWindow(msg.Copy(), m.clock())
	return 1
}

// Window returns the open window for the given fingerprint, if any.
func (m *Manager) Window(fingerprint string) (*Window, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	w, ok := m.open[fingerprint]
	return w, ok
}

// Closed returns a lazy stream of closed windows. Receiving blocks until a
// window closes; the channel ends after Close has drained the remaining
// windows.
func (m *Manager) Closed() <-chan *Window {
	out := make(chan *Window)
	go func() {
		defer close(out)
		for {
			w, ok := m.closed.take()
			if !ok {
				return
			}
			out <- w
		}
	}()
	return out
}

func (m *Manager) sweepLoop() {
	defer close(m.sweepDone)
	ticker := time.NewTicker(m.duration)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			m.sweep(false)
		case <-m.sweepStop:
			return
		}
	}
}

// sweep closes every window older than the duration, or every open window
// when final is set.
func (m *Manager) sweep(final bool) {
	cutoff := m.clock().Add(-m.duration)

	m.mu.Lock()
	var evicted []*Window
	for fingerprint, w := range m.open {
		if final || w.olderThan(cutoff) || w.startTime.Equal(cutoff) {
			delete(m.open, fingerprint)
			evicted = append(evicted, w)
		}
	}
	m.mu.Unlock()

	for _, w := range evicted {
		m.closed.put(w)
	}
	if len(evicted) > 0 {
		metrics.WindowsClosedTotal.Add(float64(len(evicted)))
	}
}

// Close stops the sweeper, closes all remaining open windows and ends the
// closed-window stream. Close is idempotent.
func (m *Manager) Close() error {
	m.closeOnce.Do(func() {
		close(m.sweepStop)
		<-m.sweepDone
		m.sweep(true)
		m.closed.close()
	})
	return nil
}

// closedQueue is an unbounded FIFO with blocking take, closed exactly once.
type closedQueue struct {
	mu     sync.Mutex
	cond   *sync.Cond
	items  []*Window
	closed bool
}

func newClosedQueue() *closedQueue {
	q := &closedQueue{}
	q.cond = sync.NewCond(&q.mu)
	return q
}

func (q *closedQueue) put(w *Window) {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.closed {
		return
	}
	q.items = append(q.items, w)
	q.cond.Signal()
}

// take blocks until an item is available or the queue is closed and
// drained.
func (q *closedQueue) take() (*Window, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()
	for len(q.items) == 0 && !q.closed {
		q.cond.Wait()
	}
	if len(q.items) == 0 {
		return nil, false
	}
	w := q.items[0]
	q.items = q.items[1:]
	return w, true
}

func (q *closedQueue) close() {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.closed = true
	q.cond.Broadcast()
}
