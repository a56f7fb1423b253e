package routing

import (
	"container/list"
	"math"
	"math/rand"
	"strings"
	"sync"
	"time"

	"github.com/switchyard-ai/switchyard/core"
)

// Adaptive TTL thresholds and multipliers
const (
	hotAccessThreshold  = 10
	warmAccessThreshold = 5
	hotTTLMultiplier    = 2.0
	warmTTLMultiplier   = 1.5
	coldTTLMultiplier   = 0.5
	xfetchBeta          = 1.0
)

// CacheEntry is one cached routing decision with its freshness state
type CacheEntry struct {
	Decision      *RoutingDecision
	OriginalQuery string
	CreatedAt     time.Time
	LastAccess    time.Time
	AccessCount   int
	BaseTTL       time.Duration
	AdaptiveTTL   time.Duration
	Dependencies  map[string]struct{}

	key     string
	element *list.Element
}

// CacheStats tracks cache effectiveness counters
type CacheStats struct {
	TotalQueries int64   `json:"total_queries"`
	Hits         int64   `json:"hits"`
	Misses       int64   `json:"misses"`
	Entries      int     `json:"entries"`
	Evictions    int64   `json:"evictions"`
	HitRate      float64 `json:"hit_rate"`
	MissRate     float64 `json:"miss_rate"`
}

// CacheOptions configures a RoutingCache
type CacheOptions struct {
	MaxSize             int
	BaseTTL             time.Duration
	SimilarityThreshold float64

	// Invalidation strategy toggles
	AdaptiveTTL             bool
	ProbabilisticExpiration bool
	EventDriven             bool

	Logger core.Logger
}

// RoutingCache is an LRU cache of routing decisions keyed by normalized
// query plus enabled-project context. Three invalidation strategies
// cooperate: TTL (optionally adaptive), probabilistic early expiration,
// and event-driven dependency invalidation.
type RoutingCache struct {
	mu      sync.Mutex
	entries map[string]*CacheEntry
	lru     *list.List

	maxSize             int
	baseTTL             time.Duration
	similarityThreshold float64

	adaptiveTTL             bool
	probabilisticExpiration bool
	eventDriven             bool

	invalidation *invalidationIndex
	stats        CacheStats
	logger       core.Logger

	// injectable for deterministic tests
	now  func() time.Time
	rand func() float64

	janitorStop chan struct{}
}

// NewRoutingCache creates a cache with the given options
func NewRoutingCache(opts CacheOptions) *RoutingCache {
	if opts.MaxSize <= 0 {
		opts.MaxSize = 100
	}
	if opts.BaseTTL <= 0 {
		opts.BaseTTL = time.Hour
	}
	if opts.SimilarityThreshold <= 0 {
		opts.SimilarityThreshold = 0.85
	}
	logger := opts.Logger
	if logger == nil {
		logger = &core.NoOpLogger{}
	}

	return &RoutingCache{
		entries:                 make(map[string]*CacheEntry),
		lru:                     list.New(),
		maxSize:                 opts.MaxSize,
		baseTTL:                 opts.BaseTTL,
		similarityThreshold:     opts.SimilarityThreshold,
		adaptiveTTL:             opts.AdaptiveTTL,
		probabilisticExpiration: opts.ProbabilisticExpiration,
		eventDriven:             opts.EventDriven,
		invalidation:            newInvalidationIndex(),
		logger:                  logger,
		now:                     time.Now,
		rand:                    rand.Float64,
	}
}

// Get looks up a cached decision for the query against the given
// enabled-project set. Falls back to a similarity scan over entries
// sharing the same project context when the exact key misses.
func (c *RoutingCache) Get(query string, enabledProjects []string) (*RoutingDecision, bool) {
	key := CacheKey(query, enabledProjects)
	now := c.now()

	c.mu.Lock()
	defer c.mu.Unlock()

	c.stats.TotalQueries++

	if entry, exists := c.entries[key]; exists {
		if c.isStale(entry, now) {
			c.removeLocked(entry)
			c.stats.Misses++
			return nil, false
		}
		c.touchLocked(entry, now)
		c.stats.Hits++
		return entry.Decision, true
	}

	if entry := c.bestSimilarLocked(query, key, now); entry != nil {
		c.touchLocked(entry, now)
		c.stats.Hits++
		c.logger.Debug("Fuzzy cache hit", map[string]interface{}{
			"operation":     "cache_lookup",
			"query":         query,
			"matched_query": entry.OriginalQuery,
			"matched_key":   entry.key,
		})
		return entry.Decision, true
	}

	c.stats.Misses++
	return nil, false
}

// bestSimilarLocked scans non-expired entries with the same
// enabled-project context and returns the most similar one above the
// threshold, preferring recency on ties.
func (c *RoutingCache) bestSimilarLocked(query, key string, now time.Time) *CacheEntry {
	sep := strings.LastIndex(key, "|")
	context := key[sep:]
	queryWords := wordSet(query)

	var best *CacheEntry
	bestScore := 0.0

	for k, entry := range c.entries {
		if !strings.HasSuffix(k, context) {
			continue
		}
		if c.isStale(entry, now) {
			continue
		}
		score := jaccard(queryWords, wordSet(entry.OriginalQuery))
		if score < c.similarityThreshold {
			continue
		}
		if score > bestScore || (score == bestScore && best != nil && entry.LastAccess.After(best.LastAccess)) {
			best = entry
			bestScore = score
		}
	}

	return best
}

// Put inserts a decision, evicting the LRU entry when at capacity.
// Dependencies are the capability and project names the decision
// referenced, used for event-driven invalidation.
func (c *RoutingCache) Put(query string, enabledProjects []string, decision *RoutingDecision, dependencies []string) {
	key := CacheKey(query, enabledProjects)
	now := c.now()

	c.mu.Lock()
	defer c.mu.Unlock()

	if existing, exists := c.entries[key]; exists {
		c.removeLocked(existing)
	} else if len(c.entries) >= c.maxSize {
		if oldest := c.lru.Back(); oldest != nil {
			c.removeLocked(oldest.Value.(*CacheEntry))
			c.stats.Evictions++
		}
	}

	deps := make(map[string]struct{}, len(dependencies))
	for _, d := range dependencies {
		deps[d] = struct{}{}
	}

	entry := &CacheEntry{
		Decision:      decision,
		OriginalQuery: query,
		CreatedAt:     now,
		LastAccess:    now,
		AccessCount:   0,
		BaseTTL:       c.baseTTL,
		AdaptiveTTL:   c.baseTTL,
		Dependencies:  deps,
		key:           key,
	}
	entry.element = c.lru.PushFront(entry)
	c.entries[key] = entry

	if c.eventDriven {
		c.invalidation.register(key, deps)
	}
}

// touchLocked promotes the entry to MRU and updates access bookkeeping
func (c *RoutingCache) touchLocked(entry *CacheEntry, now time.Time) {
	entry.AccessCount++
	entry.LastAccess = now
	c.lru.MoveToFront(entry.element)
	if c.adaptiveTTL {
		entry.AdaptiveTTL = c.computeAdaptiveTTL(entry, now)
	}
}

// computeAdaptiveTTL recomputes TTL from access frequency. Hot entries
// live longer; cold entries past 10% of base TTL are halved. Never
// drops below half the base TTL.
func (c *RoutingCache) computeAdaptiveTTL(entry *CacheEntry, now time.Time) time.Duration {
	var ttl time.Duration
	switch {
	case entry.AccessCount >= hotAccessThreshold:
		ttl = time.Duration(float64(entry.BaseTTL) * hotTTLMultiplier)
	case entry.AccessCount >= warmAccessThreshold:
		ttl = time.Duration(float64(entry.BaseTTL) * warmTTLMultiplier)
	case now.Sub(entry.CreatedAt) > time.Duration(float64(entry.BaseTTL)*0.1):
		ttl = time.Duration(float64(entry.BaseTTL) * coldTTLMultiplier)
	default:
		ttl = entry.BaseTTL
	}

	floor := time.Duration(float64(entry.BaseTTL) * 0.5)
	if ttl < floor {
		ttl = floor
	}
	return ttl
}

// isStale reports whether the entry has expired, either by TTL or by
// probabilistic early expiration.
func (c *RoutingCache) isStale(entry *CacheEntry, now time.Time) bool {
	expiry := entry.CreatedAt.Add(entry.AdaptiveTTL)
	if now.After(expiry) {
		return true
	}

	if c.probabilisticExpiration {
		// XFetch: early-expire with probability that rises as expiry
		// nears and the entry goes unaccessed.
		remaining := expiry.Sub(now).Seconds()
		idle := now.Sub(entry.LastAccess).Seconds()
		if -xfetchBeta*math.Log(c.rand())*remaining < idle {
			return true
		}
	}

	return false
}

// removeLocked deletes an entry from the map, LRU list, and dependency index
func (c *RoutingCache) removeLocked(entry *CacheEntry) {
	delete(c.entries, entry.key)
	c.lru.Remove(entry.element)
	c.invalidation.unregister(entry.key, entry.Dependencies)
}

// InvalidateProject removes all entries that depend on the given
// project. Returns the removed keys.
func (c *RoutingCache) InvalidateProject(name string) ([]string, error) {
	return c.invalidateDependency(name)
}

// InvalidateCapability removes all entries that depend on the given
// capability. Returns the removed keys.
func (c *RoutingCache) InvalidateCapability(name string) ([]string, error) {
	return c.invalidateDependency(name)
}

func (c *RoutingCache) invalidateDependency(dep string) ([]string, error) {
	if !c.eventDriven {
		return nil, &core.CoreError{
			Op:   "cache.Invalidate",
			Kind: "cache",
			ID:   dep,
			Err:  core.ErrInvalidationDisabled,
		}
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	keys := c.invalidation.keysFor(dep)
	removed := make([]string, 0, len(keys))
	for _, key := range keys {
		if entry, exists := c.entries[key]; exists {
			c.removeLocked(entry)
			removed = append(removed, key)
		}
	}

	c.logger.Info("Cache invalidated by dependency", map[string]interface{}{
		"operation":  "cache_invalidation",
		"dependency": dep,
		"removed":    len(removed),
	})

	return removed, nil
}

// InvalidatePattern removes all entries whose key starts with the given
// prefix. Returns the removed keys.
func (c *RoutingCache) InvalidatePattern(prefix string) ([]string, error) {
	if !c.eventDriven {
		return nil, &core.CoreError{
			Op:   "cache.InvalidatePattern",
			Kind: "cache",
			Err:  core.ErrInvalidationDisabled,
		}
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	var removed []string
	for key, entry := range c.entries {
		if strings.HasPrefix(key, prefix) {
			c.removeLocked(entry)
			removed = append(removed, key)
		}
	}
	return removed, nil
}

// CleanupExpired removes all stale entries and returns how many were dropped
func (c *RoutingCache) CleanupExpired() int {
	now := c.now()

	c.mu.Lock()
	defer c.mu.Unlock()

	var stale []*CacheEntry
	for _, entry := range c.entries {
		if now.After(entry.CreatedAt.Add(entry.AdaptiveTTL)) {
			stale = append(stale, entry)
		}
	}
	for _, entry := range stale {
		c.removeLocked(entry)
	}
	return len(stale)
}

// StartJanitor runs periodic expired-entry cleanup until StopJanitor
func (c *RoutingCache) StartJanitor(interval time.Duration) {
	c.mu.Lock()
	if c.janitorStop != nil {
		c.mu.Unlock()
		return
	}
	stop := make(chan struct{})
	c.janitorStop = stop
	c.mu.Unlock()

	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				c.CleanupExpired()
			case <-stop:
				return
			}
		}
	}()
}

// StopJanitor stops the background cleanup goroutine
func (c *RoutingCache) StopJanitor() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.janitorStop != nil {
		close(c.janitorStop)
		c.janitorStop = nil
	}
}

// Clear removes every entry without touching counters
func (c *RoutingCache) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.entries = make(map[string]*CacheEntry)
	c.lru.Init()
	c.invalidation = newInvalidationIndex()
}

// Stats returns a snapshot of the cache counters
func (c *RoutingCache) Stats() CacheStats {
	c.mu.Lock()
	defer c.mu.Unlock()

	stats := c.stats
	stats.Entries = len(c.entries)
	if stats.TotalQueries > 0 {
		stats.HitRate = float64(stats.Hits) / float64(stats.TotalQueries)
		stats.MissRate = float64(stats.Misses) / float64(stats.TotalQueries)
	}
	return stats
}

// Entry returns the cache entry for a query, for inspection in tests
// and diagnostics. The returned entry must not be mutated.
func (c *RoutingCache) Entry(query string, enabledProjects []string) (*CacheEntry, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	entry, exists := c.entries[CacheKey(query, enabledProjects)]
	return entry, exists
}
