package domain

// RuleSet holds the active rules of all three categories.
//
// Notes:
//   - Order within a category is the match-attempt order.
//   - Each category holds unique values (exact, case-sensitive comparison).
//   - A RuleSet handed out by the rule store must be treated as read-only;
//     mutations go through WithRules, which never touches the receiver's slices.
type RuleSet struct {
	Prefixes []string
	Keywords []string
	Suffixes []string
}

// RuleCounts reports the number of rules per category.
type RuleCounts struct {
	Prefixes int
	Keywords int
	Suffixes int
}

// EmptyRuleSet returns a RuleSet with empty, non-nil sequences.
func EmptyRuleSet() RuleSet {
	return RuleSet{Prefixes: []string{}, Keywords: []string{}, Suffixes: []string{}}
}

// Rules returns the sequence for the category, or nil for CategoryNone.
func (rs RuleSet) Rules(c RuleCategory) []string {
	switch c {
	case CategoryPrefix:
		return rs.Prefixes
	case CategoryKeyword:
		return rs.Keywords
	case CategorySuffix:
		return rs.Suffixes
	default:
		return nil
	}
}

// WithRules returns a copy of rs where the category's sequence is replaced by rules.
// The other sequences are shared with rs.
func (rs RuleSet) WithRules(c RuleCategory, rules []string) RuleSet {
	switch c {
	case CategoryPrefix:
		rs.Prefixes = rules
	case CategoryKeyword:
		rs.Keywords = rules
	case CategorySuffix:
		rs.Suffixes = rules
	}
	return rs
}

// Clone returns a deep copy of rs.
func (rs RuleSet) Clone() RuleSet {
	return RuleSet{
		Prefixes: append([]string{}, rs.Prefixes...),
		Keywords: append([]string{}, rs.Keywords...),
		Suffixes: append([]string{}, rs.Suffixes...),
	}
}

// Counts returns the number of rules per category.
func (rs RuleSet) Counts() RuleCounts {
	return RuleCounts{Prefixes: len(rs.Prefixes), Keywords: len(rs.Keywords), Suffixes: len(rs.Suffixes)}
}

// Len returns the total number of rules across all categories.
func (rs RuleSet) Len() int {
	return len(rs.Prefixes) + len(rs.Keywords) + len(rs.Suffixes)
}

// Normalize returns a RuleSet with non-nil sequences and duplicates removed,
// keeping the first occurrence of each value. dropped lists every removed
// duplicate per category in the order it was seen.
func (rs RuleSet) Normalize() (out RuleSet, dropped map[RuleCategory][]string) {
	out = EmptyRuleSet()
	for _, c := range RuleCategories {
		seen := make(map[string]struct{})
		uniq := make([]string, 0, len(rs.Rules(c)))
		for _, r := range rs.Rules(c) {
			if _, dup := seen[r]; dup {
				if dropped == nil {
					dropped = make(map[RuleCategory][]string)
				}
				dropped[c] = append(dropped[c], r)
				continue
			}
			seen[r] = struct{}{}
			uniq = append(uniq, r)
		}
		out = out.WithRules(c, uniq)
	}
	return out, dropped
}

// IndexOf returns the position of value in rules, or -1 when absent.
func IndexOf(rules []string, value string) int {
	for i, r := range rules {
		if r == value {
			return i
		}
	}
	return -1
}
