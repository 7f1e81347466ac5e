// Package rulestore owns the process-wide rule set and its durable copy.
//
// Mutations are write-then-commit: the candidate rule set is written to the
// backend while the exclusive lock is held and only becomes visible once the
// write succeeded. Readers receive immutable snapshots and never observe a
// partially applied mutation.
package rulestore

import (
	"fmt"
	"strings"
	"sync"

	"github.com/haukened/keyword-filter/internal/filter/common/log"
	"github.com/haukened/keyword-filter/internal/filter/domain"
)

// DefaultBloomFPRate is used when Options.BloomFPRate is outside (0, 1).
const DefaultBloomFPRate = 0.01

// Store implements the rule management operations over a Backend.
type Store struct {
	mu      sync.RWMutex
	rules   domain.RuleSet
	version uint64
	index   *index

	backend Backend
	logger  log.Logger
	factory BloomFactory
	fpRate  float64
}

// Options configures a Store.
type Options struct {
	Backend      Backend
	Logger       log.Logger
	BloomFactory BloomFactory // optional; nil disables the membership index
	BloomFPRate  float64
}

// New loads the rule set from opts.Backend and returns a ready Store.
// Duplicates found in persisted data are dropped, keeping the first occurrence.
func New(opts Options) (*Store, error) {
	if opts.Backend == nil {
		return nil, fmt.Errorf("rulestore: backend is required")
	}
	logger := opts.Logger
	if logger == nil {
		logger = log.NewNoopLogger()
	}
	fpRate := opts.BloomFPRate
	if !(fpRate > 0 && fpRate < 1) {
		fpRate = DefaultBloomFPRate
	}

	loaded, err := opts.Backend.Load()
	if err != nil {
		return nil, fmt.Errorf("failed to load rule set: %w", err)
	}
	rules, dropped := loaded.Normalize()
	for c, dups := range dropped {
		logger.Warn(map[string]any{
			"category":   c.String(),
			"duplicates": dups,
		}, "Dropped duplicate rules from persisted rule set")
	}
	for _, c := range domain.RuleCategories {
		if domain.IndexOf(rules.Rules(c), "") >= 0 {
			logger.Warn(map[string]any{"category": c.String()}, "Empty rule present; it matches every message")
		}
	}

	s := &Store{
		rules:   rules,
		backend: opts.Backend,
		logger:  logger,
		factory: opts.BloomFactory,
		fpRate:  fpRate,
	}
	s.index = buildIndex(s.factory, s.fpRate, rules)

	counts := rules.Counts()
	logger.Info(map[string]any{
		"prefixes": counts.Prefixes,
		"keywords": counts.Keywords,
		"suffixes": counts.Suffixes,
		"total":    rules.Len(),
	}, "Keyword filter rules loaded")
	return s, nil
}

// List returns the current rule set for display. The result must not be modified.
func (s *Store) List() domain.RuleSet {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.rules
}

// Snapshot returns the current rule set together with its version.
func (s *Store) Snapshot() Snapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return Snapshot{Rules: s.rules, Version: s.version}
}

// Version returns the number of committed mutations since load.
func (s *Store) Version() uint64 {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.version
}

// Add appends value to the category unless it is already present.
// Values are stored verbatim; values that are empty after trimming are rejected.
func (s *Store) Add(c domain.RuleCategory, value string) (domain.Outcome, error) {
	if err := validate(c, value); err != nil {
		return 0, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	current := s.rules.Rules(c)
	if s.index.position(c, current, value) >= 0 {
		return domain.OutcomeAlreadyExists, nil
	}

	next := make([]string, 0, len(current)+1)
	next = append(next, current...)
	next = append(next, value)
	if err := s.commit(s.rules.WithRules(c, next)); err != nil {
		s.logger.Error(map[string]any{
			"category": c.String(),
			"value":    value,
			"error":    err,
		}, "Failed to persist added rule")
		return 0, err
	}

	s.logger.Info(map[string]any{
		"category": c.String(),
		"value":    value,
	}, "Keyword filter rule added")
	return domain.OutcomeAdded, nil
}

// Remove deletes value from the category if present.
func (s *Store) Remove(c domain.RuleCategory, value string) (domain.Outcome, error) {
	if err := validate(c, value); err != nil {
		return 0, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	current := s.rules.Rules(c)
	pos := s.index.position(c, current, value)
	if pos < 0 {
		return domain.OutcomeNotFound, nil
	}

	next := make([]string, 0, len(current)-1)
	next = append(next, current[:pos]...)
	next = append(next, current[pos+1:]...)
	if err := s.commit(s.rules.WithRules(c, next)); err != nil {
		s.logger.Error(map[string]any{
			"category": c.String(),
			"value":    value,
			"error":    err,
		}, "Failed to persist removed rule")
		return 0, err
	}

	s.logger.Info(map[string]any{
		"category": c.String(),
		"value":    value,
	}, "Keyword filter rule removed")
	return domain.OutcomeRemoved, nil
}

// Close releases the backend.
func (s *Store) Close() error {
	return s.backend.Close()
}

// commit writes next to the backend and, on success, makes it current.
// Caller must hold s.mu exclusively.
func (s *Store) commit(next domain.RuleSet) error {
	if err := s.backend.Save(next); err != nil {
		return fmt.Errorf("%w: %w", domain.ErrPersistence, err)
	}
	s.rules = next
	s.version++
	s.index = buildIndex(s.factory, s.fpRate, next)
	return nil
}

func validate(c domain.RuleCategory, value string) error {
	if !c.Valid() {
		return fmt.Errorf("%w: %s", domain.ErrInvalidCategory, c)
	}
	if strings.TrimSpace(value) == "" {
		return domain.ErrEmptyRule
	}
	return nil
}
