package httpapi

import (
	"io"

	"github.com/haukened/keyword-filter/internal/filter/domain"
	"github.com/haukened/keyword-filter/internal/filter/services/commands"
)

// MessageChecker evaluates one inbound message.
type MessageChecker interface {
	Check(message string) domain.MatchVerdict
}

// CommandRunner executes one command line.
type CommandRunner interface {
	HandleLine(line string) (commands.Reply, error)
}

// RuleLister returns the current rule set.
type RuleLister interface {
	List() domain.RuleSet
}

// MetricsWriter writes metrics in Prometheus text format.
type MetricsWriter interface {
	WritePrometheus(w io.Writer)
}
