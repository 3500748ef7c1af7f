package window

import (
	"sync/atomic"
	"time"

	"logalike/pkg/message"
)

// Clock supplies the current time. Injected so window behaviour can be
// driven deterministically in tests.
type Clock func() time.Time

// SystemClock reads the wall clock.
func SystemClock() time.Time {
	return time.Now()
}

// Window counts how many messages with the same fingerprint were seen since
// the window opened. It owns a copy of the message that opened it.
type Window struct {
	msg       *message.Message
	startTime time.Time
	count     atomic.Int64
}

func newWindow(msg *message.Message, now time.Time) *Window {
	w := &Window{msg: msg, startTime: now}
	w.count.Store(1)
	return w
}

// Message returns the message that opened this window.
func (w *Window) Message() *message.Message {
	return w.msg
}

// Count returns how many times the fingerprint has been seen during the
// window's lifetime.
func (w *Window) Count() int64 {
	return w.count.Load()
}

// StartTime returns the instant the window was opened.
func (w *Window) StartTime() time.Time {
	return w.startTime
}

func (w *Window) increment() int64 {
	return w.count.Add(1)
}

// olderThan reports whether the window opened before the given instant.
func (w *Window) olderThan(t time.Time) bool {
	return w.startTime.Before(t)
}
