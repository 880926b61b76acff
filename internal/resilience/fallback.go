package resilience

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
)

// ErrAllFailed is returned when every member of a [FallbackGroup] fails or
// has an open circuit breaker.
var ErrAllFailed = errors.New("resilience: all strategies failed")

// FallbackConfig configures the circuit breaker created for each member of a
// [FallbackGroup]. Name is overwritten with the member's name.
type FallbackConfig struct {
	CircuitBreaker CircuitBreakerConfig
}

type member[T any] struct {
	name    string
	value   T
	breaker *CircuitBreaker
}

// FallbackGroup is an ordered list of interchangeable values of type T
// (rewrite strategies, transcription backends). Members are tried in
// registration order until one succeeds.
//
// Members are registered during setup; Add must not race with Execute.
type FallbackGroup[T any] struct {
	members []member[T]
	cfg     FallbackConfig
}

// NewFallbackGroup returns an empty group. Register members with
// [FallbackGroup.Add].
func NewFallbackGroup[T any](cfg FallbackConfig) *FallbackGroup[T] {
	return &FallbackGroup[T]{cfg: cfg}
}

// Add appends a member with its own circuit breaker.
func (g *FallbackGroup[T]) Add(name string, v T) {
	cbCfg := g.cfg.CircuitBreaker
	cbCfg.Name = name
	g.members = append(g.members, member[T]{
		name:    name,
		value:   v,
		breaker: NewCircuitBreaker(cbCfg),
	})
}

// Len reports the number of members.
func (g *FallbackGroup[T]) Len() int { return len(g.members) }

// Names returns the member names in trial order.
func (g *FallbackGroup[T]) Names() []string {
	out := make([]string, len(g.members))
	for i, m := range g.members {
		out[i] = m.name
	}
	return out
}

// Breaker returns the circuit breaker of the named member, or nil.
func (g *FallbackGroup[T]) Breaker(name string) *CircuitBreaker {
	for i := range g.members {
		if g.members[i].name == name {
			return g.members[i].breaker
		}
	}
	return nil
}

// Execute calls fn for each member in order until one succeeds and returns
// the result with the name of the member that produced it.
//
// Members with an open breaker are skipped. When ctx is done the loop stops
// and ctx.Err() is returned. When every member fails, the error matches
// [ErrAllFailed] and wraps every member's error.
func Execute[T, R any](ctx context.Context, g *FallbackGroup[T], fn func(context.Context, T) (R, error)) (R, string, error) {
	var (
		zero R
		errs []error
	)
	for i := range g.members {
		m := &g.members[i]
		if err := ctx.Err(); err != nil {
			return zero, "", err
		}
		var result R
		err := m.breaker.Execute(func() error {
			var innerErr error
			result, innerErr = fn(ctx, m.value)
			return innerErr
		})
		if err == nil {
			return result, m.name, nil
		}
		if errors.Is(err, ErrCircuitOpen) {
			slog.Debug("skipping strategy, circuit open", "strategy", m.name)
		} else {
			slog.Warn("strategy failed, trying next", "strategy", m.name, "err", err)
		}
		errs = append(errs, fmt.Errorf("%s: %w", m.name, err))
	}
	if len(errs) == 0 {
		return zero, "", ErrAllFailed
	}
	return zero, "", fmt.Errorf("%w: %w", ErrAllFailed, errors.Join(errs...))
}
