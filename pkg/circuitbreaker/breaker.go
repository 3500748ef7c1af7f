// Package circuitbreaker isolates the document store from sustained bulk
// failures: once dispatches keep failing, further batches are rejected
// immediately until the store has had time to recover, instead of piling
// blocked writes onto a broken connection.
package circuitbreaker

import (
	"context"
	"time"

	"github.com/sony/gobreaker"

	"logalike/pkg/metrics"
)

// Breaker guards bulk dispatches to the document store. State changes and
// request outcomes are reflected in the circuit breaker metrics.
type Breaker struct {
	cb *gobreaker.CircuitBreaker
}

// New builds a breaker tuned for bulk egress: it trips once at least three
// dispatches were made within the rolling interval and at least half of
// them failed, stays open for a minute, then probes with up to three
// requests.
func New(name string) *Breaker {
	settings := gobreaker.Settings{
		Name:        name,
		MaxRequests: 3,
		Interval:    60 * time.Second,
		Timeout:     60 * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			failureRatio := float64(counts.TotalFailures) / float64(counts.Requests)
			return counts.Requests >= 3 && failureRatio >= 0.5
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			updateStateMetric(name, to)
		},
	}

	cb := gobreaker.NewCircuitBreaker(settings)
	updateStateMetric(name, cb.State())
	return &Breaker{cb: cb}
}

// Do runs one dispatch under the breaker and records the outcome. A
// context that is already cancelled short-circuits without counting
// against the breaker.
func (b *Breaker) Do(ctx context.Context, fn func() (interface{}, error)) (interface{}, error) {
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	default:
	}

	result, err := b.cb.Execute(func() (interface{}, error) {
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		default:
			return fn()
		}
	})

	state := b.cb.State().String()
	metrics.CircuitBreakerRequests.WithLabelValues(b.cb.Name(), state).Inc()
	if err != nil {
		metrics.CircuitBreakerFailures.WithLabelValues(b.cb.Name()).Inc()
	}
	return result, err
}

func updateStateMetric(name string, state gobreaker.State) {
	var stateValue float64
	switch state {
	case gobreaker.StateClosed:
		stateValue = 0
	case gobreaker.StateHalfOpen:
		stateValue = 1
	case gobreaker.StateOpen:
		stateValue = 2
	}
	metrics.CircuitBreakerState.WithLabelValues(name).Set(stateValue)
}
