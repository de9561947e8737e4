// Package conversation holds the fixed-vocabulary parts of talking to
// Kotonoha: manual commands, yes/no answers, and screen output.
package conversation

import (
	"regexp"
	"strconv"
	"strings"

	"github.com/hammamikhairi/kotonoha/internal/logger"
)

// CommandKind is a manual command that bypasses the classifier.
type CommandKind int

const (
	CmdNone CommandKind = iota
	CmdAdd
	CmdList
	CmdDone
	CmdHelp
	CmdExit
)

// String returns a human-readable command name.
func (k CommandKind) String() string {
	switch k {
	case CmdAdd:
		return "todo"
	case CmdList:
		return "list"
	case CmdDone:
		return "done"
	case CmdHelp:
		return "help"
	case CmdExit:
		return "exit"
	default:
		return "none"
	}
}

// Command is a parsed manual command. Title is set for CmdAdd; ID for
// CmdDone (BadID when the argument was not a number).
type Command struct {
	Kind  CommandKind
	Title string
	ID    int
	BadID bool
}

// CommandParser recognises the typed commands and a couple of spoken
// shortcuts. Anything else is left for the classifier.
type CommandParser struct {
	log      *logger.Logger
	patterns []patternRule
}

type patternRule struct {
	regex *regexp.Regexp
	kind  CommandKind
}

// NewCommandParser creates the manual command parser.
func NewCommandParser(log *logger.Logger) *CommandParser {
	p := &CommandParser{log: log}
	p.patterns = []patternRule{
		{regexp.MustCompile(`(?i)^(exit|quit)$`), CmdExit},
		{regexp.MustCompile(`(?i)^(help|\?|ヘルプ)$`), CmdHelp},
		{regexp.MustCompile(`(?i)^(list|ls)$`), CmdList},
		{regexp.MustCompile(`(?i)^todo(\s+|$)`), CmdAdd},
		{regexp.MustCompile(`(?i)^done(\s+|$)`), CmdDone},
		{regexp.MustCompile(`タスク(一覧|確認)`), CmdList},
	}
	return p
}

// Parse returns the command in input, or a Command with Kind CmdNone.
func (p *CommandParser) Parse(input string) Command {
	trimmed := strings.TrimSpace(input)
	if trimmed == "" {
		return Command{}
	}

	for _, rule := range p.patterns {
		loc := rule.regex.FindStringIndex(trimmed)
		if loc == nil {
			continue
		}
		p.log.Debug("conversation: matched command %s", rule.kind)

		arg := strings.TrimSpace(trimmed[loc[1]:])
		switch rule.kind {
		case CmdAdd:
			return Command{Kind: CmdAdd, Title: arg}
		case CmdDone:
			id, err := strconv.Atoi(arg)
			if err != nil || id <= 0 {
				return Command{Kind: CmdDone, BadID: true}
			}
			return Command{Kind: CmdDone, ID: id}
		default:
			return Command{Kind: rule.kind}
		}
	}

	return Command{}
}
