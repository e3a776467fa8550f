// Package circuitbreaker wraps sony/gobreaker with a generic, per-call
// result type so callers don't need a type-switch at the call site.
package circuitbreaker

import (
	"time"

	"github.com/sony/gobreaker/v2"
)

// Config configures a CircuitBreaker. Mirrors the fields of
// gobreaker.Settings that callers in this codebase actually tune.
type Config struct {
	Name          string
	MaxRequests   uint32
	Interval      time.Duration
	Timeout       time.Duration
	FailureRatio  float64
	MinRequests   uint32
	OnStateChange func(name string, from, to gobreaker.State)
}

// DefaultConfig returns sane defaults: trip after 60% failures out of at
// least 5 requests in a rolling 60s window, stay open 30s before probing.
func DefaultConfig(name string) Config {
	return Config{
		Name:         name,
		MaxRequests:  3,
		Interval:     60 * time.Second,
		Timeout:      30 * time.Second,
		FailureRatio: 0.6,
		MinRequests:  5,
	}
}

// CircuitBreaker wraps gobreaker.CircuitBreaker[T] with this codebase's
// Config shape.
type CircuitBreaker[T any] struct {
	cb *gobreaker.CircuitBreaker[T]
}

// New builds a CircuitBreaker from cfg.
func New[T any](cfg Config) *CircuitBreaker[T] {
	settings := gobreaker.Settings{
		Name:        cfg.Name,
		MaxRequests: cfg.MaxRequests,
		Interval:    cfg.Interval,
		Timeout:     cfg.Timeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			if counts.Requests < cfg.MinRequests {
				return false
			}
			failureRatio := float64(counts.TotalFailures) / float64(counts.Requests)
			return failureRatio >= cfg.FailureRatio
		},
	}
	if cfg.OnStateChange != nil {
		settings.OnStateChange = func(name string, from, to gobreaker.State) {
			cfg.OnStateChange(name, from, to)
		}
	}

	return &CircuitBreaker[T]{cb: gobreaker.NewCircuitBreaker[T](settings)}
}

// Execute runs fn through the breaker, short-circuiting with
// gobreaker.ErrOpenState when tripped.
func (c *CircuitBreaker[T]) Execute(fn func() (T, error)) (T, error) {
	return c.cb.Execute(fn)
}

// State reports the current breaker state.
func (c *CircuitBreaker[T]) State() gobreaker.State {
	return c.cb.State()
}
