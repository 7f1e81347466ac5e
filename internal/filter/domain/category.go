package domain

import (
	"fmt"
	"strings"
)

// RuleCategory selects which string test a rule applies to a message.
//
// prefix  - message starts with the rule
// keyword - message contains the rule anywhere
// suffix  - message ends with the rule
type RuleCategory uint8

const (
	// CategoryNone is reported by verdicts that did not block.
	CategoryNone RuleCategory = iota
	// CategoryPrefix matches messages that start with the rule.
	CategoryPrefix
	// CategoryKeyword matches messages that contain the rule.
	CategoryKeyword
	// CategorySuffix matches messages that end with the rule.
	CategorySuffix
)

// RuleCategories lists the rule categories in match precedence order.
var RuleCategories = []RuleCategory{CategoryPrefix, CategoryKeyword, CategorySuffix}

// String returns a stable string representation of the category.
func (c RuleCategory) String() string {
	switch c {
	case CategoryNone:
		return "none"
	case CategoryPrefix:
		return "prefix"
	case CategoryKeyword:
		return "keyword"
	case CategorySuffix:
		return "suffix"
	default:
		return fmt.Sprintf("RuleCategory(%d)", c)
	}
}

// DisplayName returns the human readable name used in replies.
func (c RuleCategory) DisplayName() string {
	switch c {
	case CategoryPrefix:
		return "前缀"
	case CategoryKeyword:
		return "关键字"
	case CategorySuffix:
		return "后缀"
	default:
		return c.String()
	}
}

// StorageKey returns the name of the persisted sequence holding the category's rules.
func (c RuleCategory) StorageKey() string {
	switch c {
	case CategoryPrefix:
		return "block_prefixes"
	case CategoryKeyword:
		return "block_keywords"
	case CategorySuffix:
		return "block_suffixes"
	default:
		return ""
	}
}

// Valid reports whether c names one of the three rule categories.
func (c RuleCategory) Valid() bool {
	return c == CategoryPrefix || c == CategoryKeyword || c == CategorySuffix
}

// ParseRuleCategory converts a user supplied token into a RuleCategory.
// Accepts: "prefix", "keyword", "suffix" (case-insensitive, surrounding space ignored).
func ParseRuleCategory(s string) (RuleCategory, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "prefix":
		return CategoryPrefix, nil
	case "keyword":
		return CategoryKeyword, nil
	case "suffix":
		return CategorySuffix, nil
	default:
		return CategoryNone, fmt.Errorf("%w: %q", ErrInvalidCategory, s)
	}
}
