package storage

import (
	"context"

	"wisegate/internal/config"
	"wisegate/internal/normalize"
	"wisegate/pkg/circuitbreaker"
	apperrors "wisegate/pkg/errors"
)

const breakerName = "postgres-sink"

// CircuitBreakerSink fails fast while the database is unhealthy. A rejected
// insert is a storage error like any other; nothing is retried.
type CircuitBreakerSink struct {
	sink Sink
	cb   *circuitbreaker.Wrapper
}

func NewCircuitBreakerSink(sink Sink, cfg config.CircuitBreakerConfig) *CircuitBreakerSink {
	if !cfg.Enabled {
		return &CircuitBreakerSink{sink: sink}
	}

	cbConfig := circuitbreaker.DefaultConfig(breakerName)
	if cfg.MaxRequests > 0 {
		cbConfig.MaxRequests = cfg.MaxRequests
	}
	if cfg.Interval > 0 {
		cbConfig.Interval = cfg.Interval
	}
	if cfg.Timeout > 0 {
		cbConfig.Timeout = cfg.Timeout
	}
	if cfg.FailureRatio > 0 {
		cbConfig.FailureRatio = cfg.FailureRatio
	}
	if cfg.MinRequests > 0 {
		cbConfig.MinRequests = cfg.MinRequests
	}

	return &CircuitBreakerSink{sink: sink, cb: circuitbreaker.NewWrapper(cbConfig)}
}

func (s *CircuitBreakerSink) Insert(ctx context.Context, table string, rec normalize.Record) error {
	if s.cb == nil {
		return s.sink.Insert(ctx, table, rec)
	}

	err := s.cb.Execute(ctx, func(ctx context.Context) error {
		return s.sink.Insert(ctx, table, rec)
	})
	if err != nil && circuitbreaker.IsRejected(err) {
		return apperrors.ErrStorage.
			WithCause(err).
			WithMessage("circuit breaker is open for " + breakerName).
			WithDetail("table", table)
	}
	return err
}

func (s *CircuitBreakerSink) State() string {
	if s.cb == nil {
		return "disabled"
	}
	return s.cb.State().String()
}

func (s *CircuitBreakerSink) IsOpen() bool {
	if s.cb == nil {
		return false
	}
	return s.cb.IsOpen()
}
