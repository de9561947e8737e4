package tasks

import (
	"fmt"
	"strings"
	"time"

	"github.com/dustin/go-humanize"

	"github.com/hammamikhairi/kotonoha/internal/domain"
)

// FormatList renders a task listing for the terminal, one line per task,
// subtasks indented under their parent.
func FormatList(list []domain.TaskSummary, now time.Time) string {
	if len(list) == 0 {
		return "登録されたタスクはありません。"
	}

	today := domain.NewDate(now)
	var b strings.Builder
	b.WriteString("現在のタスク一覧:")
	for _, t := range list {
		mark := "　"
		if t.Done {
			mark = "✅"
		}
		fmt.Fprintf(&b, "\n%s%d: %s [%s]", strings.Repeat("  ", t.Depth), t.ID, t.Title, mark)
		if t.DueDate != nil {
			fmt.Fprintf(&b, " due %s (%s)", t.DueDate, dueRelative(*t.DueDate, today))
		}
	}
	return b.String()
}

func dueRelative(due, today domain.Date) string {
	if due.Equal(today.Time) {
		return "today"
	}
	return humanize.RelTime(due.Time, today.Time, "ago", "from now")
}
