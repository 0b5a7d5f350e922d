package optimizer

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/rs/zerolog"

	"github.com/kosarica/basket-service/internal/requestid"
)

// CircuitBreakerState represents the state of the circuit breaker.
type CircuitBreakerState int

const (
	// CircuitClosed allows requests to pass through.
	CircuitClosed CircuitBreakerState = iota

	// CircuitOpen rejects requests immediately.
	CircuitOpen

	// CircuitHalfOpen allows a test request to check if the source has recovered.
	CircuitHalfOpen
)

// String returns the string representation of the circuit breaker state.
func (s CircuitBreakerState) String() string {
	switch s {
	case CircuitClosed:
		return "closed"
	case CircuitOpen:
		return "open"
	case CircuitHalfOpen:
		return "half-open"
	default:
		return "unknown"
	}
}

// CircuitBreakerConfig holds configuration for the circuit breaker.
type CircuitBreakerConfig struct {
	// MaxFailures is the number of consecutive failures before opening the circuit.
	MaxFailures int

	// ResetTimeout is how long to wait before attempting a reset (half-open state).
	ResetTimeout time.Duration

	// HalfOpenMaxCalls is the number of successes needed in half-open to close again.
	HalfOpenMaxCalls int
}

// DefaultCircuitBreakerConfig returns the default circuit breaker configuration.
func DefaultCircuitBreakerConfig() *CircuitBreakerConfig {
	return &CircuitBreakerConfig{
		MaxFailures:      5,
		ResetTimeout:     30 * time.Second,
		HalfOpenMaxCalls: 1,
	}
}

// CircuitBreaker implements the circuit breaker pattern for price source failures.
type CircuitBreaker struct {
	mu              sync.Mutex
	state           CircuitBreakerState
	failureCount    int
	successCount    int // Used in half-open state
	inFlight        int // Half-open trial calls not yet reported
	lastFailureTime time.Time
	config          *CircuitBreakerConfig
	metrics         *MetricsRecorder
	logger          *zerolog.Logger
	name            string
	now             func() time.Time
}

// NewCircuitBreaker creates a new circuit breaker.
func NewCircuitBreaker(name string, config *CircuitBreakerConfig, metrics *MetricsRecorder, logger *zerolog.Logger) *CircuitBreaker {
	if config == nil {
		config = DefaultCircuitBreakerConfig()
	}
	if config.HalfOpenMaxCalls < 1 {
		config.HalfOpenMaxCalls = 1
	}
	if logger == nil {
		nopLogger := zerolog.Nop()
		logger = &nopLogger
	}

	cb := &CircuitBreaker{
		state:   CircuitClosed,
		config:  config,
		metrics: metrics,
		logger:  logger,
		name:    name,
		now:     time.Now,
	}
	cb.recordState()
	return cb
}

// Allow returns true if the request should be allowed through the circuit breaker.
func (cb *CircuitBreaker) Allow(ctx context.Context) bool {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	switch cb.state {
	case CircuitClosed:
		return true

	case CircuitOpen:
		if cb.now().Sub(cb.lastFailureTime) >= cb.config.ResetTimeout {
			cb.transitionTo(CircuitHalfOpen)
			cb.logger.Info().
				Str("circuit_breaker", cb.name).
				Str("request_id", requestid.FromContext(ctx)).
				Msg("Circuit breaker transitioning to half-open")
			cb.inFlight = 1
			return true
		}
		return false

	case CircuitHalfOpen:
		if cb.inFlight+cb.successCount >= cb.config.HalfOpenMaxCalls {
			return false
		}
		cb.inFlight++
		return true

	default:
		return false
	}
}

// RecordSuccess records a successful operation.
func (cb *CircuitBreaker) RecordSuccess() {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	switch cb.state {
	case CircuitClosed:
		cb.failureCount = 0

	case CircuitHalfOpen:
		cb.releaseTrial()
		cb.successCount++
		if cb.successCount >= cb.config.HalfOpenMaxCalls {
			cb.transitionTo(CircuitClosed)
			cb.logger.Info().
				Str("circuit_breaker", cb.name).
				Int("success_count", cb.successCount).
				Msg("Circuit breaker closing after successful recovery")
			cb.successCount = 0
			cb.failureCount = 0
			cb.inFlight = 0
		}
	}
}

// RecordFailure records a failed operation.
func (cb *CircuitBreaker) RecordFailure(ctx context.Context, err error) {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	cb.failureCount++
	cb.lastFailureTime = cb.now()

	cb.logger.Error().
		Err(err).
		Str("circuit_breaker", cb.name).
		Str("request_id", requestid.FromContext(ctx)).
		Int("failure_count", cb.failureCount).
		Msg("Circuit breaker recording failure")

	switch cb.state {
	case CircuitClosed:
		if cb.failureCount >= cb.config.MaxFailures {
			cb.transitionTo(CircuitOpen)
			cb.logger.Warn().
				Str("circuit_breaker", cb.name).
				Int("failure_count", cb.failureCount).
				Dur("reset_timeout", cb.config.ResetTimeout).
				Msg("Circuit breaker opening after max failures")
		}

	case CircuitHalfOpen:
		// Any failure in half-open immediately opens the circuit
		cb.transitionTo(CircuitOpen)
		cb.logger.Warn().
			Str("circuit_breaker", cb.name).
			Msg("Circuit breaker re-opening after failure in half-open state")
		cb.successCount = 0
		cb.inFlight = 0
	}
}

// Release returns an admitted half-open trial slot without a verdict,
// for calls that ended before the source could answer.
func (cb *CircuitBreaker) Release() {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	if cb.state == CircuitHalfOpen {
		cb.releaseTrial()
	}
}

func (cb *CircuitBreaker) releaseTrial() {
	if cb.inFlight > 0 {
		cb.inFlight--
	}
}

func (cb *CircuitBreaker) transitionTo(newState CircuitBreakerState) {
	cb.state = newState
	cb.recordState()
}

func (cb *CircuitBreaker) recordState() {
	if cb.metrics != nil {
		cb.metrics.RecordBreakerState(cb.name, cb.state)
	}
}

// State returns the current state of the circuit breaker.
func (cb *CircuitBreaker) State() CircuitBreakerState {
	cb.mu.Lock()
	defer cb.mu.Unlock()
	return cb.state
}

// FailureCount returns the current failure count.
func (cb *CircuitBreaker) FailureCount() int {
	cb.mu.Lock()
	defer cb.mu.Unlock()
	return cb.failureCount
}

// ResilientSource decorates a PriceSource with a circuit breaker and
// optional bounded retries. It still returns all rows or an error.
type ResilientSource struct {
	next           PriceSource
	breaker        *CircuitBreaker
	retries        int
	initialBackoff time.Duration
	maxBackoff     time.Duration
	metrics        *MetricsRecorder
	logger         zerolog.Logger
}

// NewResilientSource wraps next using the breaker and retry settings from config.
func NewResilientSource(next PriceSource, config *Config, metrics *MetricsRecorder, logger zerolog.Logger) *ResilientSource {
	if metrics == nil {
		metrics = NewMetricsRecorder()
	}
	logger = logger.With().Str("component", "resilient_price_source").Logger()

	breaker := NewCircuitBreaker("price_source", &CircuitBreakerConfig{
		MaxFailures:      config.BreakerMaxFailures,
		ResetTimeout:     config.BreakerResetTimeout,
		HalfOpenMaxCalls: 1,
	}, metrics, &logger)

	return &ResilientSource{
		next:           next,
		breaker:        breaker,
		retries:        config.FetchRetries,
		initialBackoff: config.RetryInitialBackoff,
		maxBackoff:     config.RetryMaxBackoff,
		metrics:        metrics,
		logger:         logger,
	}
}

// Breaker exposes the circuit breaker for health reporting.
func (s *ResilientSource) Breaker() *CircuitBreaker {
	return s.breaker
}

// FetchPrices implements PriceSource.
func (s *ResilientSource) FetchPrices(ctx context.Context, q PriceQuery) ([]PriceObservation, error) {
	var rows []PriceObservation

	attempt := func() error {
		if !s.breaker.Allow(ctx) {
			s.metrics.RecordFetch("rejected", 0)
			return backoff.Permanent(ErrCircuitOpen)
		}

		start := time.Now()
		result, err := s.next.FetchPrices(ctx, q)
		if err != nil {
			s.metrics.RecordFetch("error", time.Since(start))
			// Caller cancellation says nothing about the source's health.
			if errors.Is(err, context.Canceled) {
				s.breaker.Release()
			} else {
				s.breaker.RecordFailure(ctx, err)
			}
			if ctx.Err() != nil {
				return backoff.Permanent(err)
			}
			return err
		}

		s.metrics.RecordFetch("ok", time.Since(start))
		s.breaker.RecordSuccess()
		rows = result
		return nil
	}

	if s.retries == 0 {
		if err := attempt(); err != nil {
			return nil, unwrapPermanent(err)
		}
		return rows, nil
	}

	b := backoff.NewExponentialBackOff()
	b.InitialInterval = s.initialBackoff
	b.MaxInterval = s.maxBackoff
	b.MaxElapsedTime = 0

	notify := func(err error, wait time.Duration) {
		s.logger.Warn().
			Err(err).
			Str("request_id", requestid.FromContext(ctx)).
			Dur("backoff", wait).
			Msg("Price source fetch failed, retrying")
	}

	policy := backoff.WithContext(backoff.WithMaxRetries(b, uint64(s.retries)), ctx)
	if err := backoff.RetryNotify(attempt, policy, notify); err != nil {
		return nil, unwrapPermanent(err)
	}
	return rows, nil
}

func unwrapPermanent(err error) error {
	var perm *backoff.PermanentError
	if errors.As(err, &perm) {
		return perm.Err
	}
	return err
}
