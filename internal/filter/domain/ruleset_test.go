package domain

import (
	"reflect"
	"testing"
)

func TestRuleSet_RulesAndWithRules(t *testing.T) {
	rs := RuleSet{Prefixes: []string{"p"}, Keywords: []string{"k"}, Suffixes: []string{"s"}}

	if got := rs.Rules(CategoryKeyword); !reflect.DeepEqual(got, []string{"k"}) {
		t.Fatalf("Rules(keyword) = %v", got)
	}
	if got := rs.Rules(CategoryNone); got != nil {
		t.Fatalf("Rules(none) = %v, want nil", got)
	}

	next := rs.WithRules(CategorySuffix, []string{"s", "t"})
	if !reflect.DeepEqual(next.Suffixes, []string{"s", "t"}) {
		t.Fatalf("WithRules did not replace suffixes: %v", next.Suffixes)
	}
	if !reflect.DeepEqual(rs.Suffixes, []string{"s"}) {
		t.Fatalf("WithRules modified receiver: %v", rs.Suffixes)
	}
	if same := rs.WithRules(CategoryNone, []string{"x"}); !reflect.DeepEqual(same, rs) {
		t.Fatalf("WithRules(none) should be a no-op")
	}
}

func TestRuleSet_CloneIsDeep(t *testing.T) {
	rs := RuleSet{Prefixes: []string{"a"}, Keywords: []string{"b"}, Suffixes: []string{"c"}}
	cp := rs.Clone()
	cp.Prefixes[0] = "changed"
	if rs.Prefixes[0] != "a" {
		t.Fatalf("Clone shares backing array")
	}
}

func TestRuleSet_CountsLenIndexOf(t *testing.T) {
	rs := RuleSet{Prefixes: []string{"a", "b"}, Keywords: []string{"c"}}
	if got := rs.Counts(); got != (RuleCounts{Prefixes: 2, Keywords: 1, Suffixes: 0}) {
		t.Fatalf("Counts() = %+v", got)
	}
	if rs.Len() != 3 {
		t.Fatalf("Len() = %d, want 3", rs.Len())
	}
	if IndexOf(rs.Rules(CategoryPrefix), "b") != 1 {
		t.Fatalf("expected prefix b at position 1")
	}
	if IndexOf(rs.Rules(CategoryPrefix), "B") >= 0 {
		t.Fatalf("comparison must be case-sensitive")
	}
	if IndexOf(rs.Rules(CategorySuffix), "a") >= 0 {
		t.Fatalf("categories must not leak into each other")
	}
}

func TestRuleSet_Normalize(t *testing.T) {
	rs := RuleSet{
		Prefixes: []string{"广告", "a", "广告", "b", "a"},
		Keywords: nil,
		Suffixes: []string{"x"},
	}
	out, dropped := rs.Normalize()

	if !reflect.DeepEqual(out.Prefixes, []string{"广告", "a", "b"}) {
		t.Fatalf("Prefixes = %v", out.Prefixes)
	}
	if out.Keywords == nil || len(out.Keywords) != 0 {
		t.Fatalf("Keywords should be empty non-nil, got %#v", out.Keywords)
	}
	if !reflect.DeepEqual(out.Suffixes, []string{"x"}) {
		t.Fatalf("Suffixes = %v", out.Suffixes)
	}
	if !reflect.DeepEqual(dropped[CategoryPrefix], []string{"广告", "a"}) {
		t.Fatalf("dropped = %v", dropped)
	}
	if _, ok := dropped[CategorySuffix]; ok {
		t.Fatalf("no suffix duplicates expected")
	}
}

func TestRuleSet_NormalizeNoDuplicates(t *testing.T) {
	_, dropped := EmptyRuleSet().Normalize()
	if dropped != nil {
		t.Fatalf("expected nil dropped map, got %v", dropped)
	}
}

func TestIndexOf(t *testing.T) {
	rules := []string{"a", "b", ""}
	tests := []struct {
		v    string
		want int
	}{
		{"a", 0},
		{"b", 1},
		{"", 2},
		{"c", -1},
	}
	for _, tt := range tests {
		if got := IndexOf(rules, tt.v); got != tt.want {
			t.Errorf("IndexOf(%q) = %d, want %d", tt.v, got, tt.want)
		}
	}
}
