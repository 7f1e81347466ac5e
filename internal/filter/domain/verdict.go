package domain

// MatchVerdict is the outcome of evaluating one message against the rule set.
// Pure value type, no external dependencies.
type MatchVerdict struct {
	Blocked     bool         // true if a rule matched
	Category    RuleCategory // category of the matching rule, CategoryNone when not blocked
	MatchedRule string       // exact rule string that matched, empty when not blocked
}

// IsBlocked is a convenience accessor.
func (v MatchVerdict) IsBlocked() bool { return v.Blocked }

// PassVerdict returns a not-blocked verdict.
func PassVerdict() MatchVerdict { return MatchVerdict{Blocked: false, Category: CategoryNone} }

// BlockVerdict returns a blocked verdict for the given category and rule.
func BlockVerdict(c RuleCategory, rule string) MatchVerdict {
	return MatchVerdict{Blocked: true, Category: c, MatchedRule: rule}
}

// Outcome is the non-exceptional result of a rule mutation.
type Outcome uint8

const (
	// OutcomeAdded means the rule was appended and persisted.
	OutcomeAdded Outcome = iota + 1
	// OutcomeAlreadyExists means the rule was present; nothing changed.
	OutcomeAlreadyExists
	// OutcomeRemoved means the rule was removed and the change persisted.
	OutcomeRemoved
	// OutcomeNotFound means the rule was absent; nothing changed.
	OutcomeNotFound
)

func (o Outcome) String() string {
	switch o {
	case OutcomeAdded:
		return "added"
	case OutcomeAlreadyExists:
		return "already_exists"
	case OutcomeRemoved:
		return "removed"
	case OutcomeNotFound:
		return "not_found"
	default:
		return "unknown"
	}
}

// Changed reports whether the outcome committed a mutation.
func (o Outcome) Changed() bool { return o == OutcomeAdded || o == OutcomeRemoved }
