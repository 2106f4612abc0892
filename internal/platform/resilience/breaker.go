package resilience

import (
	"context"
	"errors"
	"time"

	"github.com/sony/gobreaker/v2"
	"go.uber.org/zap"

	"github.com/Roohan-gm/shopblizz-backend/internal/platform/config"
)

const (
	defaultMaxFailures  = 5
	defaultOpenDuration = 30 * time.Second
)

// ErrUnavailable is returned while a breaker is open or probing.
var ErrUnavailable = errors.New("resilience: dependency temporarily unavailable")

// Breaker guards calls to one remote dependency.
type Breaker[T any] struct {
	cb *gobreaker.CircuitBreaker[T]
}

// NewBreaker trips after cfg.MaxFailures consecutive failures and stays open for
// cfg.OpenDuration. Caller cancellations do not count as failures.
func NewBreaker[T any](name string, cfg config.BreakerConfig, logger *zap.Logger) *Breaker[T] {
	if logger == nil {
		logger = zap.NewNop()
	}
	maxFailures := cfg.MaxFailures
	if maxFailures == 0 {
		maxFailures = defaultMaxFailures
	}
	openFor := cfg.OpenDuration
	if openFor <= 0 {
		openFor = defaultOpenDuration
	}
	settings := gobreaker.Settings{
		Name:        name,
		MaxRequests: 1,
		Timeout:     openFor,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= maxFailures
		},
		IsSuccessful: func(err error) bool {
			return err == nil || errors.Is(err, context.Canceled)
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			logger.Warn("circuit breaker state changed",
				zap.String("breaker", name),
				zap.String("from", from.String()),
				zap.String("to", to.String()),
			)
		},
	}
	return &Breaker[T]{cb: gobreaker.NewCircuitBreaker[T](settings)}
}

// Execute runs fn unless the breaker is open.
func (b *Breaker[T]) Execute(fn func() (T, error)) (T, error) {
	result, err := b.cb.Execute(fn)
	if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
		var zero T
		return zero, errors.Join(ErrUnavailable, err)
	}
	return result, err
}

// State reports the breaker state name for health checks.
func (b *Breaker[T]) State() string {
	return b.cb.State().String()
}
