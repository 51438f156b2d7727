// Package metrics records per-role request outcomes for the analytics
// surface and exports Prometheus counters.
package metrics

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/finsolve/rbac-chat/schema"
)

var (
	registerOnce sync.Once

	chatRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "chat_requests_total",
			Help: "Chat requests handled, by role and answer mode.",
		},
		[]string{"role", "mode"},
	)
	chatCacheHitsTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "chat_cache_hits_total",
			Help: "Chat requests answered from the retrieval cache.",
		},
	)
)

// Collectors returns the package collectors for registry registration.
// Registration is idempotent across callers.
func Collectors() []prometheus.Collector {
	return []prometheus.Collector{chatRequestsTotal, chatCacheHitsTotal}
}

// MustRegister registers the collectors on the default registry once.
func MustRegister() {
	registerOnce.Do(func() {
		prometheus.MustRegister(Collectors()...)
	})
}

// RoleStats counts outcomes for one role.
type RoleStats struct {
	Total    int64 `json:"total"`
	SQL      int64 `json:"sql"`
	RAG      int64 `json:"rag"`
	Fallback int64 `json:"sql_fallback_to_rag"`
}

// Snapshot is a point-in-time copy of the tracker.
type Snapshot struct {
	Roles         map[string]RoleStats `json:"roles"`
	CacheHits     int64                `json:"cache_hits"`
	RerankerUsed  bool                 `json:"reranker_used"`
	TotalRequests int64                `json:"total_requests"`
}

// Tracker accumulates per-role request counts. Safe for concurrent use.
type Tracker struct {
	mu           sync.Mutex
	roles        map[string]RoleStats
	cacheHits    int64
	rerankerUsed bool
}

// NewTracker returns an empty tracker.
func NewTracker() *Tracker {
	return &Tracker{roles: make(map[string]RoleStats)}
}

// Record registers exactly one request outcome.
func (t *Tracker) Record(role, mode string, cacheHit, rerankerUsed bool) {
	t.mu.Lock()
	stats := t.roles[role]
	stats.Total++
	switch mode {
	case schema.ModeSQL:
		stats.SQL++
	case schema.ModeSQLFallback:
		stats.Fallback++
	default:
		stats.RAG++
	}
	t.roles[role] = stats
	if cacheHit {
		t.cacheHits++
	}
	if rerankerUsed {
		t.rerankerUsed = true
	}
	t.mu.Unlock()

	chatRequestsTotal.WithLabelValues(role, mode).Inc()
	if cacheHit {
		chatCacheHitsTotal.Inc()
	}
}

// Snapshot deep-copies the current counts.
func (t *Tracker) Snapshot() Snapshot {
	t.mu.Lock()
	defer t.mu.Unlock()

	roles := make(map[string]RoleStats, len(t.roles))
	var total int64
	for role, stats := range t.roles {
		roles[role] = stats
		total += stats.Total
	}
	return Snapshot{
		Roles:         roles,
		CacheHits:     t.cacheHits,
		RerankerUsed:  t.rerankerUsed,
		TotalRequests: total,
	}
}
