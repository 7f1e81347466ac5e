// Package filter is the message evaluation hook handed to the dispatcher.
//
// Each Check takes a snapshot of the rule store, evaluates the message with
// the matcher and reports the verdict. Verdicts are memoized per message and
// tagged with the snapshot version they were computed from, so a cached
// verdict is never served after a rule mutation.
package filter

import (
	"sync/atomic"

	"github.com/VictoriaMetrics/metrics"

	"github.com/haukened/keyword-filter/internal/filter/common/log"
	"github.com/haukened/keyword-filter/internal/filter/domain"
	"github.com/haukened/keyword-filter/internal/filter/services/matcher"
	"github.com/haukened/keyword-filter/internal/filter/services/rulestore"
)

// RuleSource supplies versioned rule set snapshots.
type RuleSource interface {
	Snapshot() rulestore.Snapshot
}

// CachedVerdict is a verdict together with the rule set version it was computed against.
type CachedVerdict struct {
	Version uint64
	Verdict domain.MatchVerdict
}

// CacheStats reports lightweight cache metrics.
type CacheStats struct {
	Capacity  int    // configured capacity (0 for disabled cache)
	Size      int    // current number of entries
	Hits      uint64 // total cache hits since construction
	Misses    uint64 // total cache misses since construction
	Evictions uint64 // total evictions since construction
}

// VerdictCache caches verdicts by message text.
type VerdictCache interface {
	Get(message string) (CachedVerdict, bool)
	Put(message string, v CachedVerdict)
	Len() int
	Purge()
	Stats() CacheStats
}

// MaxCachedMessageBytes is the longest message whose verdict is cached.
// Longer messages are evaluated on every call so cache keys stay small.
const MaxCachedMessageBytes = 4096

// Filter evaluates inbound messages against the current rule set.
type Filter struct {
	rules  RuleSource
	cache  VerdictCache
	logger log.Logger

	// lastVersion is the newest rule set version seen; the cache is purged when it moves.
	lastVersion atomic.Uint64

	evaluated *metrics.Counter
	blocked   map[domain.RuleCategory]*metrics.Counter
}

// Options configures a Filter.
type Options struct {
	Rules   RuleSource
	Cache   VerdictCache // optional
	Logger  log.Logger
	Metrics *metrics.Set // optional; counters are registered here
}

// New constructs a Filter.
func New(opts Options) *Filter {
	logger := opts.Logger
	if logger == nil {
		logger = log.NewNoopLogger()
	}
	set := opts.Metrics
	if set == nil {
		set = metrics.NewSet()
	}
	f := &Filter{
		rules:     opts.Rules,
		cache:     opts.Cache,
		logger:    logger,
		evaluated: set.GetOrCreateCounter(`keyword_filter_messages_evaluated_total`),
		blocked:   make(map[domain.RuleCategory]*metrics.Counter, len(domain.RuleCategories)),
	}
	for _, c := range domain.RuleCategories {
		f.blocked[c] = set.GetOrCreateCounter(`keyword_filter_messages_blocked_total{category="` + c.String() + `"}`)
	}
	return f
}

// Check returns the verdict for message. It never fails.
func (f *Filter) Check(message string) domain.MatchVerdict {
	if message == "" {
		return domain.PassVerdict()
	}
	f.evaluated.Inc()

	snap := f.rules.Snapshot()
	cacheable := f.cache != nil && len(message) <= MaxCachedMessageBytes
	verdict, hit := f.lookup(message, snap.Version, cacheable)
	if !hit {
		verdict = matcher.Evaluate(message, snap.Rules)
		if cacheable {
			f.cache.Put(message, CachedVerdict{Version: snap.Version, Verdict: verdict})
		}
	}

	if verdict.IsBlocked() {
		f.blocked[verdict.Category].Inc()
		f.logger.Info(map[string]any{
			"category": verdict.Category.String(),
			"rule":     verdict.MatchedRule,
			"message":  message,
		}, "Keyword filter blocked message")
	}
	return verdict
}

// ShouldStop reports whether the dispatcher must stop processing message.
func (f *Filter) ShouldStop(message string) bool {
	return f.Check(message).IsBlocked()
}

// CacheStats returns the verdict cache counters, or zero values without a cache.
func (f *Filter) CacheStats() CacheStats {
	if f.cache == nil {
		return CacheStats{}
	}
	return f.cache.Stats()
}

// lookup returns a cached verdict computed against version, purging the cache
// the first time a newer version is observed. Messages that are not cacheable
// still trigger the purge but always miss.
func (f *Filter) lookup(message string, version uint64, cacheable bool) (domain.MatchVerdict, bool) {
	if f.cache == nil {
		return domain.MatchVerdict{}, false
	}
	for {
		last := f.lastVersion.Load()
		if version <= last {
			break
		}
		if f.lastVersion.CompareAndSwap(last, version) {
			f.cache.Purge()
			f.logger.Debug(map[string]any{"version": version}, "Rule set changed, verdict cache purged")
			break
		}
	}
	if !cacheable {
		return domain.MatchVerdict{}, false
	}
	cached, ok := f.cache.Get(message)
	if !ok || cached.Version != version {
		return domain.MatchVerdict{}, false
	}
	return cached.Verdict, true
}
