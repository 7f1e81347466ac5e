// Package commands implements the chat command surface for managing rules:
// block_list, block_add and block_remove.
package commands

import (
	"errors"
	"fmt"
	"strings"

	"github.com/haukened/keyword-filter/internal/filter/common/log"
	"github.com/haukened/keyword-filter/internal/filter/domain"
)

const (
	listHeader     = "当前屏蔽规则："
	emptyMarker    = "（空）"
	invalidMode    = "模式错误，仅支持：prefix / keyword / suffix"
	saveFailed     = "规则保存失败，本次修改未生效：%v"
	usageAdd       = "用法：block_add <prefix|keyword|suffix> <文本>\n示例：block_add keyword 广告"
	usageRemove    = "用法：block_remove <prefix|keyword|suffix> <文本>\n示例：block_remove keyword 广告"
	replyAdded     = "已在 %s 规则中添加：'%s'"
	replyExists    = "%s规则中已存在：'%s'"
	replyRemoved   = "已从 %s 规则中移除：'%s'"
	replyNotFound  = "%s 规则中不存在：'%s'"
	listTitleFmt   = "%s屏蔽（%s）"
	listSeparator  = "\n\n"
	listItemPrefix = "- "
)

// Reply carries the text replies for one command.
// Err is set only when a mutation could not be persisted.
type Reply struct {
	Lines []string
	Err   error
}

// Handler executes parsed commands against a RuleManager.
type Handler struct {
	rules  RuleManager
	logger log.Logger
}

// HandlerOptions configures a Handler.
type HandlerOptions struct {
	Rules  RuleManager
	Logger log.Logger
}

// NewHandler returns a Handler. A nil logger discards output.
func NewHandler(opts HandlerOptions) *Handler {
	logger := opts.Logger
	if logger == nil {
		logger = log.NewNoopLogger()
	}
	return &Handler{rules: opts.Rules, logger: logger}
}

// HandleLine parses line and executes it. Unknown commands return an error
// wrapping domain.ErrUnknownCommand.
func (h *Handler) HandleLine(line string) (Reply, error) {
	cmd, err := ParseCommand(line)
	if err != nil {
		return Reply{}, err
	}
	return h.Handle(cmd), nil
}

// Handle executes cmd.
func (h *Handler) Handle(cmd Command) Reply {
	switch cmd.Name {
	case NameList:
		return reply(FormatRuleSet(h.rules.List()))
	case NameAdd:
		return h.mutate(cmd, usageAdd, h.rules.Add)
	case NameRemove:
		return h.mutate(cmd, usageRemove, h.rules.Remove)
	default:
		return Reply{Err: fmt.Errorf("%w: %q", domain.ErrUnknownCommand, cmd.Name)}
	}
}

type mutation func(domain.RuleCategory, string) (domain.Outcome, error)

func (h *Handler) mutate(cmd Command, usage string, apply mutation) Reply {
	if len(cmd.Args) < 2 {
		return reply(usage)
	}
	c, err := domain.ParseRuleCategory(cmd.Args[0])
	if err != nil {
		return reply(invalidMode)
	}
	value := strings.TrimSpace(cmd.Args[1])
	if value == "" {
		return reply(usage)
	}

	outcome, err := apply(c, value)
	switch {
	case errors.Is(err, domain.ErrInvalidCategory):
		return reply(invalidMode)
	case errors.Is(err, domain.ErrEmptyRule):
		return reply(usage)
	case err != nil:
		h.logger.Warn(map[string]any{
			"command":  cmd.Name,
			"category": c.String(),
			"value":    value,
			"error":    err,
		}, "Rule command failed")
		return Reply{Lines: []string{fmt.Sprintf(saveFailed, err)}, Err: err}
	}

	if outcome.Changed() {
		h.logger.Debug(map[string]any{
			"command":  cmd.Name,
			"category": c.String(),
			"value":    value,
			"outcome":  outcome.String(),
		}, "Rule set changed by command")
	}

	name := c.DisplayName()
	switch outcome {
	case domain.OutcomeAdded:
		return reply(fmt.Sprintf(replyAdded, name, value))
	case domain.OutcomeAlreadyExists:
		return reply(fmt.Sprintf(replyExists, name, value))
	case domain.OutcomeRemoved:
		return reply(fmt.Sprintf(replyRemoved, name, value))
	default:
		return reply(fmt.Sprintf(replyNotFound, name, value))
	}
}

// FormatRuleSet renders rs as the block_list reply.
func FormatRuleSet(rs domain.RuleSet) string {
	sections := make([]string, 0, len(domain.RuleCategories))
	for _, c := range domain.RuleCategories {
		title := fmt.Sprintf(listTitleFmt, c.DisplayName(), c.String())
		rules := rs.Rules(c)
		if len(rules) == 0 {
			sections = append(sections, title+": "+emptyMarker)
			continue
		}
		var b strings.Builder
		b.WriteString(title)
		b.WriteString(":")
		for _, r := range rules {
			b.WriteString("\n")
			b.WriteString(listItemPrefix)
			b.WriteString(r)
		}
		sections = append(sections, b.String())
	}
	return listHeader + "\n" + strings.Join(sections, listSeparator)
}

func reply(lines ...string) Reply { return Reply{Lines: lines} }
