// Package tasks implements Kotonoha's to-do list: the operations over a
// forest of nested tasks and a store that keeps them in a JSON file.
package tasks

import (
	"sort"
	"strings"
	"time"

	"github.com/sahilm/fuzzy"

	"github.com/hammamikhairi/kotonoha/internal/domain"
)

// Flatten lists every task depth-first with its nesting depth.
func Flatten(forest []domain.Task) []domain.TaskSummary {
	var out []domain.TaskSummary
	domain.Walk(forest, func(t *domain.Task, depth int) bool {
		out = append(out, domain.TaskSummary{
			ID:      t.ID,
			Title:   t.Title,
			Done:    t.Done,
			DueDate: t.DueDate,
			Depth:   depth,
		})
		return true
	})
	return out
}

// PendingCount counts open tasks at any depth.
func PendingCount(forest []domain.Task) int {
	n := 0
	domain.Walk(forest, func(t *domain.Task, _ int) bool {
		if !t.Done {
			n++
		}
		return true
	})
	return n
}

// NextID returns one more than the largest id in the forest.
func NextID(forest []domain.Task) int {
	maxID := 0
	domain.Walk(forest, func(t *domain.Task, _ int) bool {
		if t.ID > maxID {
			maxID = t.ID
		}
		return true
	})
	return maxID + 1
}

// Find returns the task with the given id at any depth.
func Find(forest []domain.Task, id int) (*domain.Task, bool) {
	var found *domain.Task
	domain.Walk(forest, func(t *domain.Task, _ int) bool {
		if t.ID == id {
			found = t
			return false
		}
		return true
	})
	return found, found != nil
}

// MarkDone completes the task with the given id in place.
func MarkDone(forest []domain.Task, id int) bool {
	t, ok := Find(forest, id)
	if !ok {
		return false
	}
	t.Done = true
	t.Status = domain.StatusCompleted
	return true
}

// DueWithinDays returns copies of open tasks whose due date lies between
// today and today+days inclusive, in file order.
func DueWithinDays(forest []domain.Task, now time.Time, days int) []domain.Task {
	today := domain.NewDate(now)
	limit := today.AddDate(0, 0, days)

	var out []domain.Task
	domain.Walk(forest, func(t *domain.Task, _ int) bool {
		if t.Done || t.DueDate == nil {
			return true
		}
		due := t.DueDate.Time
		if !due.Before(today.Time) && !due.After(limit) {
			out = append(out, *t)
		}
		return true
	})
	return out
}

// MatchTitle resolves free text to an open task. It tries, in order: an
// exact title, a title containing the query, a query containing the title
// (longest title wins), then fuzzy matching in both directions.
func MatchTitle(forest []domain.Task, query string) (int, bool) {
	q := strings.ToLower(strings.TrimSpace(query))
	if q == "" {
		return 0, false
	}

	var open []domain.TaskSummary
	for _, s := range Flatten(forest) {
		if !s.Done && strings.TrimSpace(s.Title) != "" {
			open = append(open, s)
		}
	}
	if len(open) == 0 {
		return 0, false
	}

	titles := make([]string, len(open))
	for i, s := range open {
		titles[i] = strings.ToLower(s.Title)
	}

	for i, title := range titles {
		if title == q {
			return open[i].ID, true
		}
	}
	for i, title := range titles {
		if strings.Contains(title, q) {
			return open[i].ID, true
		}
	}

	best, bestLen := -1, 0
	for i, title := range titles {
		if strings.Contains(q, title) && len(title) > bestLen {
			best, bestLen = i, len(title)
		}
	}
	if best >= 0 {
		return open[best].ID, true
	}

	if matches := fuzzy.Find(q, titles); len(matches) > 0 {
		return open[matches[0].Index].ID, true
	}

	// Title as a subsequence of a longer sentence, e.g. "週報" in
	// "週報をやっと出したよ".
	type scored struct {
		idx   int
		score int
	}
	var reverse []scored
	for i, title := range titles {
		if m := fuzzy.Find(title, []string{q}); len(m) > 0 {
			reverse = append(reverse, scored{idx: i, score: m[0].Score})
		}
	}
	if len(reverse) > 0 {
		sort.SliceStable(reverse, func(a, b int) bool { return reverse[a].score > reverse[b].score })
		return open[reverse[0].idx].ID, true
	}

	return 0, false
}

// Summary renders the open tasks for a language-model prompt.
func Summary(forest []domain.Task) string {
	var lines []string
	domain.Walk(forest, func(t *domain.Task, depth int) bool {
		if !t.Done {
			lines = append(lines, strings.Repeat("  ", depth)+"・"+t.Title)
		}
		return true
	})
	if len(lines) == 0 {
		return "現在、登録されているタスクはありません。"
	}
	return "現在の未完了タスク一覧:\n" + strings.Join(lines, "\n")
}
