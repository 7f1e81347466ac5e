package rulestore

import "github.com/haukened/keyword-filter/internal/filter/domain"

// Backend is the durable storage the rule set is loaded from and flushed to.
// Implementations persist the three sequences under the names returned by
// RuleCategory.StorageKey; an absent sequence loads as empty.
type Backend interface {
	Load() (domain.RuleSet, error)
	Save(rs domain.RuleSet) error
	Close() error
}

// BloomFilter is the minimal interface the store needs for its membership index.
type BloomFilter interface {
	Add(key []byte)
	MightContain(key []byte) bool
}

// BloomFactory builds a BloomFilter sized for capacity items at the target false-positive rate.
type BloomFactory interface {
	New(capacity uint64, fpRate float64) BloomFilter
}

// Snapshot is a read-only view of the rule set at a given version.
// Version starts at zero after load and increments on every committed mutation.
type Snapshot struct {
	Rules   domain.RuleSet
	Version uint64
}
