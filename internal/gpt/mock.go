package gpt

import (
	"context"
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/hammamikhairi/kotonoha/internal/domain"
)

// Compile-time interface check.
var _ domain.Classifier = (*MockAgent)(nil)

// MockReply is what the MockAgent says to any chat.
const MockReply = "はい、承知しました。"

// MockAgent classifies with keyword rules and never calls the network.
// It backs offline runs and tests.
type MockAgent struct{}

// NewMockAgent creates a keyword classifier.
func NewMockAgent() *MockAgent { return &MockAgent{} }

// Classify treats anything mentioning a task, doing or finishing as a
// task instruction.
func (MockAgent) Classify(_ context.Context, text string) (domain.IntentLabel, error) {
	if strings.Contains(text, "タスク") || strings.Contains(text, "やる") || strings.Contains(text, "完了") {
		return domain.IntentTask, nil
	}
	return domain.IntentChat, nil
}

// TaskAction maps keywords to operations. Completion wins over listing,
// listing over adding.
func (MockAgent) TaskAction(_ context.Context, text string) (domain.TaskAction, error) {
	switch {
	case strings.Contains(text, "完了"):
		return domain.ActionComplete, nil
	case strings.Contains(text, "一覧"):
		return domain.ActionList, nil
	case strings.Contains(text, "追加"), strings.Contains(text, "覚えて"), strings.Contains(text, "登録"):
		return domain.ActionAdd, nil
	default:
		return domain.ActionNone, nil
	}
}

// ExtractTitle returns the phrase ending in "タスク", starting after the
// last space or punctuation before it. Without "タスク" the whole trimmed
// input is the title.
func (MockAgent) ExtractTitle(_ context.Context, text string) (string, error) {
	idx := strings.Index(text, "タスク")
	if idx < 0 {
		return strings.TrimSpace(text), nil
	}
	prefix := text[:idx+len("タスク")]
	start := strings.LastIndexFunc(prefix, func(r rune) bool {
		return unicode.IsSpace(r) || strings.ContainsRune("、。,.！!?？", r)
	})
	if start >= 0 {
		// Skip the delimiter itself, which may be multi-byte.
		_, size := utf8.DecodeRuneInString(prefix[start:])
		start += size
	} else {
		start = 0
	}
	return prefix[start:], nil
}

// Reply always agrees.
func (MockAgent) Reply(context.Context, []domain.ChatMessage) (string, error) {
	return MockReply, nil
}
