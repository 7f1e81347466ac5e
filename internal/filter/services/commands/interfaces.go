package commands

import "github.com/haukened/keyword-filter/internal/filter/domain"

// RuleManager is the rule store surface the handler drives.
type RuleManager interface {
	List() domain.RuleSet
	Add(c domain.RuleCategory, value string) (domain.Outcome, error)
	Remove(c domain.RuleCategory, value string) (domain.Outcome, error)
}
