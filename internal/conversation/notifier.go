package conversation

import (
	"context"
	"fmt"

	"github.com/hammamikhairi/kotonoha/internal/domain"
	"github.com/hammamikhairi/kotonoha/internal/logger"
)

// Compile-time interface check.
var _ domain.Notifier = (*CLINotifier)(nil)

// ANSI escape codes for terminal formatting.
const (
	reset  = "\033[0m"
	bold   = "\033[1m"
	yellow = "\033[33m"
	cyan   = "\033[36m"
)

// Prompt prefixes used in the REPL transcript.
const (
	SpeakerPrefix = "Kotonoha > "
	UserPrefix    = "あなた > "
)

// PrintFunc prints one formatted line. Matches both fmt.Printf-style
// helpers and display.UI.Printf.
type PrintFunc func(format string, a ...any)

// CLINotifier writes Kotonoha's lines to the terminal.
type CLINotifier struct {
	log     *logger.Logger
	printFn PrintFunc
	color   bool
}

// NewCLINotifier creates a terminal notifier. If printFn is nil, lines go
// to stdout. color toggles ANSI styling.
func NewCLINotifier(log *logger.Logger, printFn PrintFunc, color bool) *CLINotifier {
	if printFn == nil {
		printFn = func(format string, a ...any) {
			fmt.Printf(format+"\n", a...)
		}
	}
	return &CLINotifier{log: log, printFn: printFn, color: color}
}

// Notify prints a normal line.
func (n *CLINotifier) Notify(_ context.Context, message string) error {
	n.log.Debug("notify: %s", message)
	if n.color {
		n.printFn("%s%s%s%s", cyan, SpeakerPrefix, message, reset)
	} else {
		n.printFn("%s%s", SpeakerPrefix, message)
	}
	return nil
}

// NotifyUrgent prints a reminder in bold yellow.
func (n *CLINotifier) NotifyUrgent(_ context.Context, message string) error {
	n.log.Debug("notify-urgent: %s", message)
	if n.color {
		n.printFn("%s%s%s⏰ %s%s", yellow, bold, SpeakerPrefix, message, reset)
	} else {
		n.printFn("%s⏰ %s", SpeakerPrefix, message)
	}
	return nil
}
