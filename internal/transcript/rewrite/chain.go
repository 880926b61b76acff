package rewrite

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/MrWong99/glossa/internal/observe"
	"github.com/MrWong99/glossa/internal/resilience"
	"github.com/MrWong99/glossa/pkg/knowledge"
)

// Passthrough is the strategy name reported when no rewriter produced text
// and the input was kept.
const Passthrough = "passthrough"

// Outcome is the result of [Chain.Rewrite].
type Outcome struct {
	Text string

	// Strategy names the rewriter that produced Text, or [Passthrough].
	Strategy string

	// Rewritten is false when Text is the unchanged input.
	Rewritten bool
}

type strategy struct {
	name string
	r    Rewriter
}

// ChainOption configures a [Chain].
type ChainOption func(*Chain)

// WithChainMetrics sets the metrics sink. Defaults to [observe.DefaultMetrics].
func WithChainMetrics(m *observe.Metrics) ChainOption {
	return func(c *Chain) { c.metrics = m }
}

// WithStrategyTimeout bounds each strategy attempt. Zero means no bound
// beyond the caller's context.
func WithStrategyTimeout(d time.Duration) ChainOption {
	return func(c *Chain) { c.timeout = d }
}

// Chain is an ordered list of rewrite strategies. Each strategy is guarded
// by a circuit breaker; a strategy whose backend keeps failing is skipped
// until its breaker lets a probe through again.
//
// Strategies are registered during setup with [Chain.Add].
type Chain struct {
	group   *resilience.FallbackGroup[strategy]
	metrics *observe.Metrics
	timeout time.Duration
}

// NewChain returns an empty chain. cb configures every strategy's breaker;
// validation errors never count as breaker failures.
func NewChain(cb resilience.CircuitBreakerConfig, opts ...ChainOption) *Chain {
	cb.IsFailure = func(err error) bool {
		return !errors.Is(err, context.Canceled) && !errors.Is(err, knowledge.ErrValidation)
	}
	if cb.OnStateChange == nil {
		cb.OnStateChange = func(name string, from, to resilience.State) {
			observe.Logger(context.Background()).Info("rewrite strategy breaker changed state",
				"strategy", name, "from", from.String(), "to", to.String())
		}
	}
	c := &Chain{group: resilience.NewFallbackGroup[strategy](resilience.FallbackConfig{CircuitBreaker: cb})}
	for _, o := range opts {
		o(c)
	}
	if c.metrics == nil {
		c.metrics = observe.DefaultMetrics()
	}
	return c
}

// Add appends a strategy.
func (c *Chain) Add(name string, r Rewriter) { c.group.Add(name, strategy{name: name, r: r}) }

// Strategies returns the strategy names in trial order.
func (c *Chain) Strategies() []string { return c.group.Names() }

// Rewrite tries each strategy in order. When every strategy fails the input
// is returned unchanged with Strategy set to [Passthrough]; the failure is
// logged and counted but not returned. Errors are returned only for an
// unknown format or a done context.
func (c *Chain) Rewrite(ctx context.Context, text, format string) (Outcome, error) {
	if err := CheckFormat(format); err != nil {
		return Outcome{}, err
	}
	if strings.TrimSpace(text) == "" || c.group.Len() == 0 {
		return Outcome{Text: text, Strategy: Passthrough}, nil
	}

	out, name, err := resilience.Execute(ctx, c.group, func(ctx context.Context, s strategy) (string, error) {
		return c.attempt(ctx, s, text, format)
	})
	if err == nil {
		return Outcome{Text: out, Strategy: name, Rewritten: true}, nil
	}
	if ctxErr := ctx.Err(); ctxErr != nil {
		return Outcome{}, ctxErr
	}
	c.metrics.RecordProviderError(ctx, Passthrough, "rewrite")
	observe.Logger(ctx).Warn("all rewrite strategies failed, keeping transcript",
		"format", format, "err", errors.Join(knowledge.ErrCollaboratorUnavailable, err))
	return Outcome{Text: text, Strategy: Passthrough}, nil
}

func (c *Chain) attempt(ctx context.Context, s strategy, text, format string) (string, error) {
	if c.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.timeout)
		defer cancel()
	}
	start := time.Now()
	out, err := s.r.Rewrite(ctx, text, format)
	c.metrics.RewriteDuration.Record(ctx, time.Since(start).Seconds())
	status := "ok"
	if err != nil {
		status = "error"
		c.metrics.RecordProviderError(ctx, s.name, "rewrite")
	}
	c.metrics.RecordProviderRequest(ctx, s.name, "rewrite", status)
	return out, err
}

