package commands

import (
	"fmt"
	"strings"
	"unicode"

	"github.com/haukened/keyword-filter/internal/filter/domain"
)

// Command names served by the handler.
const (
	NameList   = "block_list"
	NameAdd    = "block_add"
	NameRemove = "block_remove"
)

// Command is a tokenized command line.
// Args holds at most two entries: the category token and the remainder of
// the line, which may contain spaces.
type Command struct {
	Name string
	Args []string
}

// ParseCommand splits line into a command name and up to two arguments.
// Whitespace runs separate the first two tokens; everything after the
// category token is kept as the rule value. A leading "/" on the name is
// accepted.
func ParseCommand(line string) (Command, error) {
	parts := splitN(line, 3)
	if len(parts) == 0 {
		return Command{}, fmt.Errorf("%w: empty command", domain.ErrUnknownCommand)
	}
	name := strings.TrimPrefix(parts[0], "/")
	switch name {
	case NameList, NameAdd, NameRemove:
	default:
		return Command{}, fmt.Errorf("%w: %q", domain.ErrUnknownCommand, parts[0])
	}
	return Command{Name: name, Args: parts[1:]}, nil
}

// splitN splits s around runs of white space into at most n fields. The last
// field is the unsplit remainder with leading white space removed.
func splitN(s string, n int) []string {
	var out []string
	rest := strings.TrimLeftFunc(s, unicode.IsSpace)
	for rest != "" {
		if len(out) == n-1 {
			out = append(out, rest)
			break
		}
		end := strings.IndexFunc(rest, unicode.IsSpace)
		if end < 0 {
			out = append(out, rest)
			break
		}
		out = append(out, rest[:end])
		rest = strings.TrimLeftFunc(rest[end:], unicode.IsSpace)
	}
	return out
}
