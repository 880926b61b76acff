package observe

import (
	"context"
	"testing"

	"go.opentelemetry.io/otel/attribute"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"
)

func newTestMetrics(t *testing.T) (*Metrics, *sdkmetric.ManualReader) {
	t.Helper()
	reader := sdkmetric.NewManualReader()
	mp := sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader))
	t.Cleanup(func() { _ = mp.Shutdown(context.Background()) })
	m, err := NewMetrics(mp)
	if err != nil {
		t.Fatalf("NewMetrics: %v", err)
	}
	return m, reader
}

func collect(t *testing.T, reader *sdkmetric.ManualReader) metricdata.ResourceMetrics {
	t.Helper()
	var rm metricdata.ResourceMetrics
	if err := reader.Collect(context.Background(), &rm); err != nil {
		t.Fatalf("Collect: %v", err)
	}
	return rm
}

func findMetric(rm metricdata.ResourceMetrics, name string) *metricdata.Metrics {
	for _, sm := range rm.ScopeMetrics {
		for i := range sm.Metrics {
			if sm.Metrics[i].Name == name {
				return &sm.Metrics[i]
			}
		}
	}
	return nil
}

// sumWhere adds up the counter points of name whose key attribute equals
// value. An empty key sums every point.
func sumWhere(t *testing.T, rm metricdata.ResourceMetrics, name, key, value string) int64 {
	t.Helper()
	met := findMetric(rm, name)
	if met == nil {
		t.Fatalf("metric %s not found", name)
	}
	sum, ok := met.Data.(metricdata.Sum[int64])
	if !ok {
		t.Fatalf("metric %s: want int64 sum, got %T", name, met.Data)
	}
	var total int64
	for _, dp := range sum.DataPoints {
		if key == "" {
			total += dp.Value
			continue
		}
		if v, found := dp.Attributes.Value(attribute.Key(key)); found && v.AsString() == value {
			total += dp.Value
		}
	}
	return total
}

// samples counts histogram observations of name across all points.
func samples(t *testing.T, rm metricdata.ResourceMetrics, name string) uint64 {
	t.Helper()
	met := findMetric(rm, name)
	if met == nil {
		t.Fatalf("metric %s not found", name)
	}
	hist, ok := met.Data.(metricdata.Histogram[float64])
	if !ok {
		t.Fatalf("metric %s: want float64 histogram, got %T", name, met.Data)
	}
	var n uint64
	for _, dp := range hist.DataPoints {
		n += dp.Count
	}
	return n
}

func TestMetrics_LatencyHistograms(t *testing.T) {
	t.Parallel()
	m, reader := newTestMetrics(t)
	ctx := context.Background()

	m.TranscriptionDuration.Record(ctx, 1.7)
	m.RewriteDuration.Record(ctx, 0.8)
	m.RewriteDuration.Record(ctx, 2.2)

	rm := collect(t, reader)
	if n := samples(t, rm, "glossa.transcription.duration"); n != 1 {
		t.Errorf("transcription samples: want 1, got %d", n)
	}
	if n := samples(t, rm, "glossa.rewrite.duration"); n != 2 {
		t.Errorf("rewrite samples: want 2, got %d", n)
	}
	hist := findMetric(rm, "glossa.rewrite.duration").Data.(metricdata.Histogram[float64])
	if got := len(hist.DataPoints[0].Bounds); got != len(latencyBuckets) {
		t.Errorf("rewrite buckets: want %d bounds, got %d", len(latencyBuckets), got)
	}
}

func TestRecordSearch(t *testing.T) {
	t.Parallel()
	m, reader := newTestMetrics(t)
	ctx := context.Background()

	m.RecordSearch(ctx, "semantic", "", 0.01)
	m.RecordSearch(ctx, "substring", "error", 0.02)
	m.RecordSearch(ctx, "substring", "error", 0.02)
	m.RecordSearch(ctx, "substring", "empty", 0.02)

	rm := collect(t, reader)
	if n := samples(t, rm, "glossa.search.duration"); n != 4 {
		t.Errorf("search samples: want 4, got %d", n)
	}
	if got := sumWhere(t, rm, "glossa.search.fallbacks", "reason", "error"); got != 2 {
		t.Errorf("fallbacks{reason=error}: want 2, got %d", got)
	}
	if got := sumWhere(t, rm, "glossa.search.fallbacks", "", ""); got != 3 {
		t.Errorf("fallbacks: want 3 in total, got %d", got)
	}
}

func TestRecordHelpers(t *testing.T) {
	t.Parallel()
	m, reader := newTestMetrics(t)
	ctx := context.Background()

	m.RecordLearned(ctx, "proper_name")
	m.RecordLearned(ctx, "proper_name")
	m.RecordLearned(ctx, "grammar")
	m.RecordIndexFailure(ctx, "upsert")
	m.RecordProviderRequest(ctx, "ollama", "rewrite", "ok")
	m.RecordProviderRequest(ctx, "ollama", "rewrite", "error")
	m.RecordProviderError(ctx, "whisper", "transcription")
	m.EntriesCreated.Add(ctx, 1)
	m.Suggestions.Add(ctx, 4)

	rm := collect(t, reader)
	tests := []struct {
		name, key, value string
		want             int64
	}{
		{"glossa.corrections.learned", "type", "proper_name", 2},
		{"glossa.corrections.learned", "type", "grammar", 1},
		{"glossa.index.failures", "op", "upsert", 1},
		{"glossa.provider.requests", "status", "ok", 1},
		{"glossa.provider.requests", "", "", 2},
		{"glossa.provider.errors", "provider", "whisper", 1},
		{"glossa.entries.created", "", "", 1},
		{"glossa.suggestions", "", "", 4},
	}
	for _, tc := range tests {
		if got := sumWhere(t, rm, tc.name, tc.key, tc.value); got != tc.want {
			t.Errorf("%s{%s=%s}: want %d, got %d", tc.name, tc.key, tc.value, tc.want, got)
		}
	}
}

func TestDefaultMetrics_Singleton(t *testing.T) {
	if DefaultMetrics() != DefaultMetrics() {
		t.Error("DefaultMetrics: want the same instance on every call")
	}
}
