package rulestore

import "github.com/haukened/keyword-filter/internal/filter/domain"

// index answers "definitely absent" for a category without scanning its rules.
// A nil index, or a nil filter for a category, always answers "maybe".
type index struct {
	filters map[domain.RuleCategory]BloomFilter
}

// buildIndex sizes one filter per category from the rule set.
func buildIndex(factory BloomFactory, fpRate float64, rs domain.RuleSet) *index {
	if factory == nil {
		return nil
	}
	idx := &index{filters: make(map[domain.RuleCategory]BloomFilter, len(domain.RuleCategories))}
	for _, c := range domain.RuleCategories {
		rules := rs.Rules(c)
		bf := factory.New(uint64(len(rules)), fpRate)
		for _, r := range rules {
			bf.Add([]byte(r))
		}
		idx.filters[c] = bf
	}
	return idx
}

// mightContain returns false only when value is certainly not in the category.
func (i *index) mightContain(c domain.RuleCategory, value string) bool {
	if i == nil {
		return true
	}
	bf, ok := i.filters[c]
	if !ok || bf == nil {
		return true
	}
	return bf.MightContain([]byte(value))
}

// position returns the index of value in rules, consulting the filter first.
func (i *index) position(c domain.RuleCategory, rules []string, value string) int {
	if !i.mightContain(c, value) {
		return -1
	}
	return domain.IndexOf(rules, value)
}
