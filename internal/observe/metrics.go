// Package observe wires OpenTelemetry metrics and tracing into glossa and
// ties them to request logging.
//
// [Setup] exports metrics to a Prometheus registry served at /metrics.
// Components built without explicit metrics fall back to [DefaultMetrics]
// on the global meter provider. Tests build their own with [NewMetrics]
// and a manual reader.
package observe

import (
	"context"
	"errors"
	"sync"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// Metrics holds every instrument glossa records. Attribute keys are listed
// per instrument; the Record helpers set them consistently.
type Metrics struct {
	SearchDuration        metric.Float64Histogram // source
	TranscriptionDuration metric.Float64Histogram
	RewriteDuration       metric.Float64Histogram
	HTTPRequestDuration   metric.Float64Histogram // method, path

	EntriesCreated     metric.Int64Counter
	SearchFallbacks    metric.Int64Counter // reason: disabled|error|empty|unresolved
	CorrectionsLearned metric.Int64Counter // type
	LearningFailures   metric.Int64Counter
	Suggestions        metric.Int64Counter
	IndexFailures      metric.Int64Counter // op: upsert|query|delete
	ProviderRequests   metric.Int64Counter // provider, kind, status
	ProviderErrors     metric.Int64Counter // provider, kind
}

// Upper bounds in seconds. Searches land in the low buckets, transcription
// and rewrites in the high ones.
var latencyBuckets = []float64{0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30}

type builder struct {
	meter metric.Meter
	errs  []error
}

func (b *builder) histogram(name, desc string, buckets bool) metric.Float64Histogram {
	opts := []metric.Float64HistogramOption{metric.WithDescription(desc), metric.WithUnit("s")}
	if buckets {
		opts = append(opts, metric.WithExplicitBucketBoundaries(latencyBuckets...))
	}
	h, err := b.meter.Float64Histogram(name, opts...)
	b.errs = append(b.errs, err)
	return h
}

func (b *builder) counter(name, desc string) metric.Int64Counter {
	c, err := b.meter.Int64Counter(name, metric.WithDescription(desc))
	b.errs = append(b.errs, err)
	return c
}

// NewMetrics creates every instrument on mp.
func NewMetrics(mp metric.MeterProvider) (*Metrics, error) {
	b := &builder{meter: mp.Meter(scopeName)}
	m := &Metrics{
		SearchDuration:        b.histogram("glossa.search.duration", "Hybrid search latency by result source.", true),
		TranscriptionDuration: b.histogram("glossa.transcription.duration", "Speech-to-text latency.", true),
		RewriteDuration:       b.histogram("glossa.rewrite.duration", "LLM rewrite latency.", true),
		HTTPRequestDuration:   b.histogram("glossa.http.request.duration", "HTTP request latency by method and route.", false),

		EntriesCreated:     b.counter("glossa.entries.created", "Entries committed."),
		SearchFallbacks:    b.counter("glossa.search.fallbacks", "Searches answered by substring fallback, by reason."),
		CorrectionsLearned: b.counter("glossa.corrections.learned", "Corrections learned from edits, by type."),
		LearningFailures:   b.counter("glossa.learning.failures", "Learning runs that failed."),
		Suggestions:        b.counter("glossa.suggestions", "Suggestions returned."),
		IndexFailures:      b.counter("glossa.index.failures", "Semantic index failures, by operation."),
		ProviderRequests:   b.counter("glossa.provider.requests", "Provider calls by provider, kind and status."),
		ProviderErrors:     b.counter("glossa.provider.errors", "Provider errors by provider and kind."),
	}
	if err := errors.Join(b.errs...); err != nil {
		return nil, err
	}
	return m, nil
}

var (
	defaultMetrics     *Metrics
	defaultMetricsOnce sync.Once
)

// DefaultMetrics returns a process-wide [Metrics] on [otel.GetMeterProvider],
// created on first use.
func DefaultMetrics() *Metrics {
	defaultMetricsOnce.Do(func() {
		m, err := NewMetrics(otel.GetMeterProvider())
		if err != nil {
			panic("observe: default metrics: " + err.Error())
		}
		defaultMetrics = m
	})
	return defaultMetrics
}

// RecordSearch records one search latency. A non-empty fallbackReason also
// counts the search as a substring fallback.
func (m *Metrics) RecordSearch(ctx context.Context, source, fallbackReason string, seconds float64) {
	m.SearchDuration.Record(ctx, seconds, metric.WithAttributes(attribute.String("source", source)))
	if fallbackReason != "" {
		m.SearchFallbacks.Add(ctx, 1, metric.WithAttributes(attribute.String("reason", fallbackReason)))
	}
}

func (m *Metrics) RecordLearned(ctx context.Context, correctionType string) {
	m.CorrectionsLearned.Add(ctx, 1, metric.WithAttributes(attribute.String("type", correctionType)))
}

func (m *Metrics) RecordIndexFailure(ctx context.Context, op string) {
	m.IndexFailures.Add(ctx, 1, metric.WithAttributes(attribute.String("op", op)))
}

// RecordProviderRequest counts one provider call with its outcome.
func (m *Metrics) RecordProviderRequest(ctx context.Context, provider, kind, status string) {
	m.ProviderRequests.Add(ctx, 1, metric.WithAttributes(
		attribute.String("provider", provider),
		attribute.String("kind", kind),
		attribute.String("status", status),
	))
}

func (m *Metrics) RecordProviderError(ctx context.Context, provider, kind string) {
	m.ProviderErrors.Add(ctx, 1, metric.WithAttributes(
		attribute.String("provider", provider),
		attribute.String("kind", kind),
	))
}
