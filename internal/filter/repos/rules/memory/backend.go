// Package memory provides an in-process rule set backend. Nothing survives a restart.
package memory

import (
	"sync"

	"github.com/haukened/keyword-filter/internal/filter/domain"
	"github.com/haukened/keyword-filter/internal/filter/services/rulestore"
)

// Backend keeps a private copy of the last saved rule set.
type Backend struct {
	mu    sync.Mutex
	rules domain.RuleSet
	saves int
}

// New returns a Backend seeded with initial.
func New(initial domain.RuleSet) *Backend {
	return &Backend{rules: initial.Clone()}
}

func (b *Backend) Load() (domain.RuleSet, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.rules.Clone(), nil
}

func (b *Backend) Save(rs domain.RuleSet) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.rules = rs.Clone()
	b.saves++
	return nil
}

// Saves returns how many times Save was called.
func (b *Backend) Saves() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.saves
}

func (b *Backend) Close() error { return nil }

var _ rulestore.Backend = (*Backend)(nil)
