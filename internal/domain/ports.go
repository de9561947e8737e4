package domain

import "context"

// AudioSink renders one utterance. Implementations can play through the
// sound card, record to a buffer, or drop the text entirely.
type AudioSink interface {
	Speak(ctx context.Context, text string) error
}

// Speaker accepts utterances at one of three priority tiers. Calls never
// block on playback.
type Speaker interface {
	SayUser(text string)
	SayAlert(text string)
	SayMonologue(text string)
	MarkUserAction()
}

// TaskStore persists the to-do list. Implementations can be in-memory or
// backed by a JSON file.
type TaskStore interface {
	// List returns every task, flattened depth-first.
	List(ctx context.Context) ([]TaskSummary, error)
	// Add appends a new top-level task and returns it.
	Add(ctx context.Context, title string) (Task, error)
	// MarkDone completes the task with the given id at any depth.
	MarkDone(ctx context.Context, id int) error
	// FindByTitle resolves free text to the id of an open task.
	FindByTitle(ctx context.Context, query string) (int, error)
	// FindDueWithinDays returns open tasks due between today and
	// today+days inclusive.
	FindDueWithinDays(ctx context.Context, days int) ([]Task, error)
	// TaskTitle returns the title of the task with the given id.
	TaskTitle(ctx context.Context, id int) (string, error)
	// Summary renders the open tasks for a model prompt.
	Summary(ctx context.Context) (string, error)
}

// Classifier turns free text into intents, titles and replies.
// Implementations can be LLM-backed or keyword-based.
type Classifier interface {
	Classify(ctx context.Context, text string) (IntentLabel, error)
	TaskAction(ctx context.Context, text string) (TaskAction, error)
	ExtractTitle(ctx context.Context, text string) (string, error)
	Reply(ctx context.Context, history []ChatMessage) (string, error)
}

// Notifier delivers text to the user's screen.
type Notifier interface {
	Notify(ctx context.Context, message string) error
	NotifyUrgent(ctx context.Context, message string) error
}
