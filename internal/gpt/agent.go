package gpt

import (
	"context"
	"fmt"
	"strings"

	"github.com/hammamikhairi/kotonoha/internal/domain"
	"github.com/hammamikhairi/kotonoha/internal/logger"
)

// Compile-time interface check.
var _ domain.Classifier = (*Agent)(nil)

// chatter is the part of Client the Agent needs.
type chatter interface {
	Chat(ctx context.Context, messages []Message) (string, error)
}

// Agent classifies user input and chats through the model. It is the
// LLM-backed domain.Classifier.
type Agent struct {
	client chatter
	log    *logger.Logger
}

// NewAgent creates an agent backed by the given Client.
func NewAgent(client *Client, log *logger.Logger) *Agent {
	return &Agent{client: client, log: log}
}

// ── Classification ───────────────────────────────────────────────

// Classify labels text as a task instruction or chat.
func (a *Agent) Classify(ctx context.Context, text string) (domain.IntentLabel, error) {
	raw, err := a.ask(ctx, promptClassify, text)
	if err != nil {
		return domain.IntentUnknown, err
	}
	label := parseLabel(raw)
	a.log.Debug("gpt: classified %q -> %s (raw=%q)", text, label, raw)
	return label, nil
}

// TaskAction picks the task operation text describes.
func (a *Agent) TaskAction(ctx context.Context, text string) (domain.TaskAction, error) {
	raw, err := a.ask(ctx, promptAction, text)
	if err != nil {
		return domain.ActionNone, err
	}
	action := parseAction(raw)
	a.log.Debug("gpt: action for %q -> %s (raw=%q)", text, action, raw)
	return action, nil
}

// ExtractTitle pulls the task title out of text. An empty result means the
// model found no task.
func (a *Agent) ExtractTitle(ctx context.Context, text string) (string, error) {
	raw, err := a.ask(ctx, promptExtract, text)
	if err != nil {
		return "", err
	}
	title := cleanTitle(raw)
	a.log.Debug("gpt: extracted %q from %q", title, text)
	return title, nil
}

// Reply answers the conversation in character. The persona prompt is
// prepended unless history already starts with a system message.
func (a *Agent) Reply(ctx context.Context, history []domain.ChatMessage) (string, error) {
	msgs := make([]Message, 0, len(history)+1)
	if len(history) == 0 || history[0].Role != RoleSystem {
		msgs = append(msgs, Message{Role: RoleSystem, Content: SystemPrompt})
	}
	for _, m := range history {
		msgs = append(msgs, Message{Role: m.Role, Content: m.Content})
	}
	return a.client.Chat(ctx, msgs)
}

func (a *Agent) ask(ctx context.Context, prompt, text string) (string, error) {
	return a.client.Chat(ctx, []Message{
		{Role: RoleUser, Content: fmt.Sprintf(prompt, text)},
	})
}

// ── Parsing ──────────────────────────────────────────────────────

// parseLabel reads the one-word classification. Models sometimes wrap
// the word in brackets or a sentence, so this looks for it anywhere.
func parseLabel(raw string) domain.IntentLabel {
	s := strings.ToLower(strings.TrimSpace(raw))
	switch {
	case strings.Contains(s, "タスク"), strings.Contains(s, "task"), strings.Contains(s, "todo"):
		return domain.IntentTask
	case strings.Contains(s, "雑談"), strings.Contains(s, "chat"):
		return domain.IntentChat
	default:
		return domain.IntentUnknown
	}
}

// parseAction reads the one-word task operation.
func parseAction(raw string) domain.TaskAction {
	s := strings.ToLower(strings.TrimSpace(raw))
	switch {
	case strings.Contains(s, "なし"), strings.Contains(s, "none"):
		return domain.ActionNone
	case strings.Contains(s, "追加"), strings.Contains(s, "add"):
		return domain.ActionAdd
	case strings.Contains(s, "完了"), strings.Contains(s, "complete"), strings.Contains(s, "done"):
		return domain.ActionComplete
	case strings.Contains(s, "一覧"), strings.Contains(s, "list"):
		return domain.ActionList
	default:
		return domain.ActionNone
	}
}

// cleanTitle strips the decoration models put around an extracted title.
func cleanTitle(raw string) string {
	s := strings.TrimSpace(raw)
	for _, prefix := range []string{"タイトル：", "タイトル:", "タスク：", "タスク:", "Title:"} {
		s = strings.TrimPrefix(s, prefix)
	}
	s = strings.Trim(s, " 　「」『』\"'“”。")
	if s == "" || s == "なし" || strings.EqualFold(s, "none") {
		return ""
	}
	return s
}
