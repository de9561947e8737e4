package domain

import "time"

// IntentLabel is the classifier's verdict on a line of user input.
type IntentLabel int

const (
	IntentUnknown IntentLabel = iota
	IntentTask
	IntentChat
)

// String returns a human-readable label.
func (i IntentLabel) String() string {
	switch i {
	case IntentTask:
		return "task"
	case IntentChat:
		return "chat"
	default:
		return "unknown"
	}
}

// TaskAction is the operation a task-intent line asks for.
type TaskAction int

const (
	ActionNone TaskAction = iota
	ActionAdd
	ActionComplete
	ActionList
)

// String returns a human-readable action.
func (a TaskAction) String() string {
	switch a {
	case ActionAdd:
		return "add"
	case ActionComplete:
		return "complete"
	case ActionList:
		return "list"
	default:
		return "none"
	}
}

// ChatMessage is one turn of a conversation with the language model.
type ChatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// PendingConfirmation is the single outstanding "do it now?" question
// raised by a due-task reminder.
type PendingConfirmation struct {
	TaskID  int
	DueDate Date
	AskedAt time.Time
}
