// Package analytics records routing decisions in a bounded in-memory
// buffer and computes summaries, per-project statistics, and time
// series on demand. Snapshots persist through a pluggable store.
package analytics

import (
	"context"
	"encoding/json"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/switchyard-ai/switchyard/core"
)

const snapshotName = "analytics.json"

// RoutingMetric is one recorded routing decision
type RoutingMetric struct {
	Timestamp       time.Time `json:"timestamp"`
	Query           string    `json:"query"`
	ProjectSelected string    `json:"project_selected"`
	Confidence      float64   `json:"confidence"`
	RoutingTimeMs   float64   `json:"routing_time_ms"`
	CacheHit        bool      `json:"cache_hit"`
	Mode            string    `json:"mode"`
	Reasoning       string    `json:"reasoning,omitempty"`
	Alternatives    []string  `json:"alternatives,omitempty"`
	Success         bool      `json:"success"`
	Error           string    `json:"error,omitempty"`
}

// ProjectStats aggregates decisions for one project
type ProjectStats struct {
	Count           int     `json:"count"`
	AvgConfidence   float64 `json:"avg_confidence"`
	AvgRoutingTime  float64 `json:"avg_routing_time_ms"`
	CacheHits       int     `json:"cache_hits"`
	Failures        int     `json:"failures"`
	TotalConfidence float64 `json:"-"`
	TotalTime       float64 `json:"-"`
}

// Summary is a point-in-time aggregate over recorded metrics
type Summary struct {
	TotalQueries   int                     `json:"total_queries"`
	ProjectUsage   map[string]int          `json:"project_usage"`
	AvgConfidence  float64                 `json:"avg_confidence"`
	CacheHitRate   float64                 `json:"cache_hit_rate"`
	AvgRoutingTime float64                 `json:"avg_routing_time_ms"`
	Failures       int                     `json:"failures"`
	ManualCount    int                     `json:"manual_count"`
	AutomaticCount int                     `json:"automatic_count"`
	TopPatterns    []PatternCount          `json:"top_patterns"`
	ProjectStats   map[string]ProjectStats `json:"project_stats"`
	TimeRange      string                  `json:"time_range"`
}

// PatternCount pairs a query pattern with its frequency
type PatternCount struct {
	Pattern string `json:"pattern"`
	Count   int    `json:"count"`
}

// TimePoint is one bucket of a time series
type TimePoint struct {
	Bucket time.Time `json:"bucket"`
	Value  float64   `json:"value"`
}

type snapshot struct {
	Metrics []RoutingMetric `json:"metrics"`
	SavedAt time.Time       `json:"saved_at"`
}

// PatternFunc extracts a coarse pattern key from a query. Wired to the
// same extractor the feedback store uses so aggregates line up.
type PatternFunc func(query string) string

// Collector is the analytics pipeline. All state is in memory and
// mutex-guarded; snapshots are best-effort.
type Collector struct {
	mu         sync.Mutex
	metrics    []RoutingMetric
	maxHistory int

	patternFn PatternFunc
	onRecord  func(RoutingMetric)

	store  core.SnapshotStore
	logger core.Logger
}

// NewCollector creates a collector. maxHistory 0 means accept and
// discard; negative means use the default of 1000. A nil store
// disables persistence.
func NewCollector(maxHistory int, patternFn PatternFunc, store core.SnapshotStore, logger core.Logger) *Collector {
	if maxHistory < 0 {
		maxHistory = 1000
	}
	if patternFn == nil {
		patternFn = func(q string) string {
			fields := strings.Fields(strings.ToLower(q))
			if len(fields) == 0 {
				return "empty"
			}
			return fields[0]
		}
	}
	if logger == nil {
		logger = &core.NoOpLogger{}
	}

	c := &Collector{
		maxHistory: maxHistory,
		patternFn:  patternFn,
		store:      store,
		logger:     logger,
	}
	c.load()
	return c
}

// OnRecord registers a hook invoked after each record, outside the
// collector's lock. Used to bridge metrics onto a realtime bus.
func (c *Collector) OnRecord(fn func(RoutingMetric)) {
	c.mu.Lock()
	c.onRecord = fn
	c.mu.Unlock()
}

// Record appends one metric, trimming to maxHistory
func (c *Collector) Record(metric RoutingMetric) {
	if metric.Timestamp.IsZero() {
		metric.Timestamp = time.Now()
	}

	c.mu.Lock()
	hook := c.onRecord
	if c.maxHistory > 0 {
		c.metrics = append(c.metrics, metric)
		if len(c.metrics) > c.maxHistory {
			c.metrics = c.metrics[len(c.metrics)-c.maxHistory:]
		}
	}
	c.mu.Unlock()

	if hook != nil {
		hook(metric)
	}
	c.save()
}

// Summary aggregates metrics within the given time range. A zero range
// covers everything recorded.
func (c *Collector) Summary(timeRange time.Duration) Summary {
	c.mu.Lock()
	defer c.mu.Unlock()

	cutoff := time.Time{}
	rangeLabel := "all"
	if timeRange > 0 {
		cutoff = time.Now().Add(-timeRange)
		rangeLabel = timeRange.String()
	}

	summary := Summary{
		ProjectUsage: make(map[string]int),
		ProjectStats: make(map[string]ProjectStats),
		TimeRange:    rangeLabel,
	}

	var totalConfidence, totalTime float64
	var cacheHits int
	patterns := make(map[string]int)

	for _, m := range c.metrics {
		if !cutoff.IsZero() && m.Timestamp.Before(cutoff) {
			continue
		}

		summary.TotalQueries++
		summary.ProjectUsage[m.ProjectSelected]++
		totalConfidence += m.Confidence
		totalTime += m.RoutingTimeMs
		if m.CacheHit {
			cacheHits++
		}
		if !m.Success {
			summary.Failures++
		}
		if m.Mode == "manual" {
			summary.ManualCount++
		} else {
			summary.AutomaticCount++
		}
		patterns[c.patternFn(m.Query)]++

		stats := summary.ProjectStats[m.ProjectSelected]
		stats.Count++
		stats.TotalConfidence += m.Confidence
		stats.TotalTime += m.RoutingTimeMs
		if m.CacheHit {
			stats.CacheHits++
		}
		if !m.Success {
			stats.Failures++
		}
		summary.ProjectStats[m.ProjectSelected] = stats
	}

	if summary.TotalQueries > 0 {
		summary.AvgConfidence = totalConfidence / float64(summary.TotalQueries)
		summary.AvgRoutingTime = totalTime / float64(summary.TotalQueries)
		summary.CacheHitRate = float64(cacheHits) / float64(summary.TotalQueries)
	}

	for name, stats := range summary.ProjectStats {
		if stats.Count > 0 {
			stats.AvgConfidence = stats.TotalConfidence / float64(stats.Count)
			stats.AvgRoutingTime = stats.TotalTime / float64(stats.Count)
		}
		summary.ProjectStats[name] = stats
	}

	for pattern, count := range patterns {
		summary.TopPatterns = append(summary.TopPatterns, PatternCount{pattern, count})
	}
	sort.Slice(summary.TopPatterns, func(i, j int) bool {
		if summary.TopPatterns[i].Count != summary.TopPatterns[j].Count {
			return summary.TopPatterns[i].Count > summary.TopPatterns[j].Count
		}
		return summary.TopPatterns[i].Pattern < summary.TopPatterns[j].Pattern
	})
	if len(summary.TopPatterns) > 10 {
		summary.TopPatterns = summary.TopPatterns[:10]
	}

	return summary
}

// TimeSeries buckets one metric over the trailing window. Supported
// metric names: queries, confidence, routing_time, cache_hits.
// Buckets with no data are omitted.
func (c *Collector) TimeSeries(metricName string, hours int, bucketMinutes int) []TimePoint {
	if hours <= 0 {
		hours = 24
	}
	if bucketMinutes <= 0 {
		bucketMinutes = 60
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	cutoff := time.Now().Add(-time.Duration(hours) * time.Hour)
	bucketSize := time.Duration(bucketMinutes) * time.Minute

	sums := make(map[time.Time]float64)
	counts := make(map[time.Time]int)

	for _, m := range c.metrics {
		if m.Timestamp.Before(cutoff) {
			continue
		}
		bucket := m.Timestamp.Truncate(bucketSize)

		switch metricName {
		case "queries":
			sums[bucket]++
		case "confidence":
			sums[bucket] += m.Confidence
			counts[bucket]++
		case "routing_time":
			sums[bucket] += m.RoutingTimeMs
			counts[bucket]++
		case "cache_hits":
			if m.CacheHit {
				sums[bucket]++
			}
		default:
			return nil
		}
	}

	series := make([]TimePoint, 0, len(sums))
	for bucket, sum := range sums {
		value := sum
		if n := counts[bucket]; n > 0 {
			value = sum / float64(n)
		}
		series = append(series, TimePoint{Bucket: bucket, Value: value})
	}
	sort.Slice(series, func(i, j int) bool {
		return series[i].Bucket.Before(series[j].Bucket)
	})
	return series
}

// ProjectStats returns aggregates for one project
func (c *Collector) ProjectStats(name string) (ProjectStats, bool) {
	summary := c.Summary(0)
	stats, exists := summary.ProjectStats[name]
	return stats, exists
}

// Clear drops all recorded metrics
func (c *Collector) Clear() {
	c.mu.Lock()
	c.metrics = nil
	c.mu.Unlock()
	c.save()
}

// Export writes all metrics as a JSON snapshot to the named entry in
// the snapshot store.
func (c *Collector) Export(ctx context.Context, name string) error {
	if c.store == nil {
		return &core.CoreError{
			Op:      "analytics.Export",
			Kind:    "config",
			Message: "no snapshot store configured",
			Err:     core.ErrMissingConfiguration,
		}
	}

	c.mu.Lock()
	snap := snapshot{
		Metrics: append([]RoutingMetric(nil), c.metrics...),
		SavedAt: time.Now().UTC(),
	}
	c.mu.Unlock()

	data, err := json.MarshalIndent(snap, "", "  ")
	if err != nil {
		return err
	}
	return c.store.Save(ctx, name, data)
}

// Import replaces in-memory metrics with a previously exported snapshot
func (c *Collector) Import(ctx context.Context, name string) error {
	if c.store == nil {
		return &core.CoreError{
			Op:      "analytics.Import",
			Kind:    "config",
			Message: "no snapshot store configured",
			Err:     core.ErrMissingConfiguration,
		}
	}

	data, err := c.store.Load(ctx, name)
	if err != nil {
		return err
	}

	var snap snapshot
	if err := json.Unmarshal(data, &snap); err != nil {
		return err
	}

	c.mu.Lock()
	c.metrics = snap.Metrics
	if c.maxHistory > 0 && len(c.metrics) > c.maxHistory {
		c.metrics = c.metrics[len(c.metrics)-c.maxHistory:]
	} else if c.maxHistory == 0 {
		c.metrics = nil
	}
	c.mu.Unlock()
	return nil
}

// save persists the current buffer, best-effort
func (c *Collector) save() {
	if c.store == nil {
		return
	}

	c.mu.Lock()
	snap := snapshot{
		Metrics: append([]RoutingMetric(nil), c.metrics...),
		SavedAt: time.Now().UTC(),
	}
	c.mu.Unlock()

	data, err := json.Marshal(snap)
	if err == nil {
		err = c.store.Save(context.Background(), snapshotName, data)
	}
	if err != nil {
		c.logger.Warn("Analytics snapshot write failed", map[string]interface{}{
			"operation": "analytics_persist",
			"error":     err.Error(),
		})
	}
}

// load restores the buffer from the default snapshot, tolerating
// missing or corrupt data.
func (c *Collector) load() {
	if c.store == nil {
		return
	}

	data, err := c.store.Load(context.Background(), snapshotName)
	if err != nil || len(data) == 0 {
		return
	}

	var snap snapshot
	if err := json.Unmarshal(data, &snap); err != nil {
		c.logger.Warn("Analytics snapshot unreadable, starting fresh", map[string]interface{}{
			"operation": "analytics_restore",
			"error":     err.Error(),
		})
		return
	}

	c.mu.Lock()
	c.metrics = snap.Metrics
	if c.maxHistory > 0 && len(c.metrics) > c.maxHistory {
		c.metrics = c.metrics[len(c.metrics)-c.maxHistory:]
	} else if c.maxHistory == 0 {
		c.metrics = nil
	}
	c.mu.Unlock()
}
