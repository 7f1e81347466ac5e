// Package matcher decides whether a message is blocked by a rule set.
//
// Categories are tried in fixed precedence: prefix, then keyword, then suffix.
// Within a category rules are tried in stored order and the first hit wins;
// there is no longest-match preference.
package matcher

import (
	"strings"

	"github.com/haukened/keyword-filter/internal/filter/domain"
)

// Evaluate returns the verdict for message under rules.
// It is pure and deterministic. Empty messages are never matched.
func Evaluate(message string, rules domain.RuleSet) domain.MatchVerdict {
	if message == "" {
		return domain.PassVerdict()
	}
	if rule, ok := firstMatch(rules.Prefixes, message, strings.HasPrefix); ok {
		return domain.BlockVerdict(domain.CategoryPrefix, rule)
	}
	if rule, ok := firstMatch(rules.Keywords, message, strings.Contains); ok {
		return domain.BlockVerdict(domain.CategoryKeyword, rule)
	}
	if rule, ok := firstMatch(rules.Suffixes, message, strings.HasSuffix); ok {
		return domain.BlockVerdict(domain.CategorySuffix, rule)
	}
	return domain.PassVerdict()
}

// firstMatch returns the first rule for which test(message, rule) holds.
func firstMatch(rules []string, message string, test func(s, rule string) bool) (string, bool) {
	for _, r := range rules {
		if test(message, r) {
			return r, true
		}
	}
	return "", false
}
