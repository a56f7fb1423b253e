package analytics

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// memStore is an in-memory SnapshotStore for tests
type memStore struct {
	mu   sync.Mutex
	data map[string][]byte
}

func newMemStore() *memStore {
	return &memStore{data: make(map[string][]byte)}
}

func (m *memStore) Save(ctx context.Context, name string, data []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.data[name] = append([]byte(nil), data...)
	return nil
}

func (m *memStore) Load(ctx context.Context, name string) ([]byte, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	data, exists := m.data[name]
	if !exists {
		return nil, fmt.Errorf("snapshot %q not found", name)
	}
	return append([]byte(nil), data...), nil
}

func metricFor(project string, confidence float64, opts ...func(*RoutingMetric)) RoutingMetric {
	m := RoutingMetric{
		Timestamp:       time.Now(),
		Query:           "what is the weather in paris",
		ProjectSelected: project,
		Confidence:      confidence,
		RoutingTimeMs:   10,
		Mode:            "automatic",
		Success:         true,
	}
	for _, opt := range opts {
		opt(&m)
	}
	return m
}

func TestCollector_SummaryAggregates(t *testing.T) {
	c := NewCollector(100, nil, nil, nil)

	c.Record(metricFor("weather", 0.9, func(m *RoutingMetric) { m.CacheHit = true }))
	c.Record(metricFor("weather", 0.7, func(m *RoutingMetric) { m.RoutingTimeMs = 30 }))
	c.Record(metricFor("mps", 0.5, func(m *RoutingMetric) {
		m.Query = "deploy the api service"
		m.Mode = "manual"
		m.Success = false
		m.Error = "llm timeout"
	}))

	summary := c.Summary(0)
	assert.Equal(t, 3, summary.TotalQueries)
	assert.Equal(t, 2, summary.ProjectUsage["weather"])
	assert.Equal(t, 1, summary.ProjectUsage["mps"])
	assert.InDelta(t, 0.7, summary.AvgConfidence, 1e-9)
	assert.InDelta(t, 1.0/3.0, summary.CacheHitRate, 1e-9)
	assert.Equal(t, 1, summary.Failures)
	assert.Equal(t, 1, summary.ManualCount)
	assert.Equal(t, 2, summary.AutomaticCount)
	assert.Equal(t, "all", summary.TimeRange)

	weather := summary.ProjectStats["weather"]
	assert.Equal(t, 2, weather.Count)
	assert.InDelta(t, 0.8, weather.AvgConfidence, 1e-9)
	assert.InDelta(t, 20, weather.AvgRoutingTime, 1e-9)
	assert.Equal(t, 1, weather.CacheHits)
	assert.Equal(t, 0, weather.Failures)

	mps := summary.ProjectStats["mps"]
	assert.Equal(t, 1, mps.Failures)
}

func TestCollector_SummaryTimeRange(t *testing.T) {
	c := NewCollector(100, nil, nil, nil)

	old := metricFor("weather", 0.9)
	old.Timestamp = time.Now().Add(-2 * time.Hour)
	c.Record(old)
	c.Record(metricFor("mps", 0.8, func(m *RoutingMetric) { m.Query = "deploy it" }))

	summary := c.Summary(time.Hour)
	assert.Equal(t, 1, summary.TotalQueries)
	assert.Equal(t, 0, summary.ProjectUsage["weather"])
	assert.Equal(t, 1, summary.ProjectUsage["mps"])
	assert.Equal(t, "1h0m0s", summary.TimeRange)
}

func TestCollector_MaxHistoryBound(t *testing.T) {
	c := NewCollector(5, nil, nil, nil)

	for i := 0; i < 12; i++ {
		c.Record(metricFor(fmt.Sprintf("p%d", i), 0.5))
	}

	summary := c.Summary(0)
	assert.Equal(t, 5, summary.TotalQueries)
	assert.Equal(t, 0, summary.ProjectUsage["p6"], "oldest entries are evicted")
	assert.Equal(t, 1, summary.ProjectUsage["p11"], "newest entries are kept")
}

func TestCollector_ZeroHistoryDiscards(t *testing.T) {
	c := NewCollector(0, nil, nil, nil)

	var hooked []RoutingMetric
	c.OnRecord(func(m RoutingMetric) { hooked = append(hooked, m) })

	c.Record(metricFor("weather", 0.9))
	c.Record(metricFor("mps", 0.8))

	summary := c.Summary(0)
	assert.Equal(t, 0, summary.TotalQueries)
	assert.Zero(t, summary.AvgConfidence)
	assert.Zero(t, summary.CacheHitRate)
	assert.Empty(t, summary.ProjectUsage)
	assert.Len(t, hooked, 2, "records are still accepted and forwarded")
}

func TestCollector_TopPatterns(t *testing.T) {
	c := NewCollector(100, nil, nil, nil)

	for i := 0; i < 3; i++ {
		c.Record(metricFor("weather", 0.9, func(m *RoutingMetric) { m.Query = "what is the forecast" }))
	}
	c.Record(metricFor("mps", 0.8, func(m *RoutingMetric) { m.Query = "deploy the service" }))

	summary := c.Summary(0)
	require.NotEmpty(t, summary.TopPatterns)
	assert.Equal(t, "what", summary.TopPatterns[0].Pattern)
	assert.Equal(t, 3, summary.TopPatterns[0].Count)
}

func TestCollector_TimeSeries(t *testing.T) {
	c := NewCollector(100, nil, nil, nil)

	now := time.Now()
	for i, confidence := range []float64{0.6, 0.8} {
		m := metricFor("weather", confidence)
		m.Timestamp = now.Add(time.Duration(-i) * time.Minute)
		m.CacheHit = i == 0
		c.Record(m)
	}
	stale := metricFor("weather", 0.9)
	stale.Timestamp = now.Add(-48 * time.Hour)
	c.Record(stale)

	queries := c.TimeSeries("queries", 24, 60)
	var total float64
	for _, point := range queries {
		total += point.Value
	}
	assert.InDelta(t, 2, total, 1e-9, "entries outside the window are excluded")

	confidence := c.TimeSeries("confidence", 24, 24*60)
	require.Len(t, confidence, 1)
	assert.InDelta(t, 0.7, confidence[0].Value, 1e-9, "confidence is averaged per bucket")

	hits := c.TimeSeries("cache_hits", 24, 24*60)
	require.Len(t, hits, 1)
	assert.InDelta(t, 1, hits[0].Value, 1e-9)

	assert.Nil(t, c.TimeSeries("bogus", 24, 60))
}

func TestCollector_ProjectStats(t *testing.T) {
	c := NewCollector(100, nil, nil, nil)
	c.Record(metricFor("weather", 0.9))

	stats, exists := c.ProjectStats("weather")
	require.True(t, exists)
	assert.Equal(t, 1, stats.Count)

	_, exists = c.ProjectStats("unknown")
	assert.False(t, exists)
}

func TestCollector_Clear(t *testing.T) {
	c := NewCollector(100, nil, nil, nil)
	c.Record(metricFor("weather", 0.9))
	c.Clear()

	assert.Equal(t, 0, c.Summary(0).TotalQueries)
}

func TestCollector_ExportImportRoundTrip(t *testing.T) {
	store := newMemStore()
	c := NewCollector(100, nil, store, nil)

	c.Record(metricFor("weather", 0.9, func(m *RoutingMetric) { m.CacheHit = true }))
	c.Record(metricFor("mps", 0.6, func(m *RoutingMetric) {
		m.Query = "deploy the api"
		m.Success = false
	}))
	before := c.Summary(0)

	ctx := context.Background()
	require.NoError(t, c.Export(ctx, "backup.json"))

	c.Clear()
	require.Equal(t, 0, c.Summary(0).TotalQueries)

	require.NoError(t, c.Import(ctx, "backup.json"))
	after := c.Summary(0)

	assert.Equal(t, before.TotalQueries, after.TotalQueries)
	assert.Equal(t, before.ProjectUsage, after.ProjectUsage)
	assert.InDelta(t, before.AvgConfidence, after.AvgConfidence, 1e-9)
	assert.InDelta(t, before.CacheHitRate, after.CacheHitRate, 1e-9)
	assert.Equal(t, before.Failures, after.Failures)
}

func TestCollector_ExportWithoutStore(t *testing.T) {
	c := NewCollector(100, nil, nil, nil)
	assert.Error(t, c.Export(context.Background(), "backup.json"))
	assert.Error(t, c.Import(context.Background(), "backup.json"))
}

func TestCollector_PersistsAndRestores(t *testing.T) {
	store := newMemStore()

	first := NewCollector(100, nil, store, nil)
	first.Record(metricFor("weather", 0.9))
	first.Record(metricFor("mps", 0.7, func(m *RoutingMetric) { m.Query = "deploy it" }))

	second := NewCollector(100, nil, store, nil)
	summary := second.Summary(0)
	assert.Equal(t, 2, summary.TotalQueries)
	assert.Equal(t, 1, summary.ProjectUsage["weather"])
}

func TestCollector_CorruptSnapshotIgnored(t *testing.T) {
	store := newMemStore()
	require.NoError(t, store.Save(context.Background(), "analytics.json", []byte("{not json")))

	c := NewCollector(100, nil, store, nil)
	assert.Equal(t, 0, c.Summary(0).TotalQueries)
}
