// Package domain defines the core types and interfaces for the Kotonoha
// secretary. All other packages depend on domain; domain depends on nothing.
package domain

import (
	"encoding/json"
	"fmt"
	"time"
)

// DateLayout is the on-disk format of due dates.
const DateLayout = "2006-01-02"

// Task is one to-do item. Tasks nest through Subtasks.
type Task struct {
	ID         int            `json:"id"`
	Title      string         `json:"title"`
	Done       bool           `json:"done"`
	DueDate    *Date          `json:"due_date"`
	Priority   *int           `json:"priority"`
	Status     TaskStatus     `json:"status"`
	Visibility string         `json:"visibility,omitempty"`
	Notes      *string        `json:"notes"`
	Tags       []string       `json:"tags"`
	Subtasks   []Task         `json:"subtasks"`
	Extensions map[string]any `json:"extensions"`
}

// NewTask returns an open task with empty collections, ready to be saved.
func NewTask(id int, title string) Task {
	return Task{
		ID:         id,
		Title:      title,
		Status:     StatusNotStarted,
		Tags:       []string{},
		Subtasks:   []Task{},
		Extensions: map[string]any{},
	}
}

// TaskStatus tracks the lifecycle of a task.
type TaskStatus string

const (
	StatusNotStarted TaskStatus = "not_started"
	StatusInProgress TaskStatus = "in_progress"
	StatusCompleted  TaskStatus = "completed"
)

// TaskSummary is a lightweight view used for listings.
type TaskSummary struct {
	ID      int
	Title   string
	Done    bool
	DueDate *Date
	Depth   int
}

// Date is a calendar day without a time component.
type Date struct {
	time.Time
}

// NewDate truncates t to its calendar day in t's location.
func NewDate(t time.Time) Date {
	y, m, d := t.Date()
	return Date{time.Date(y, m, d, 0, 0, 0, 0, t.Location())}
}

// ParseDate parses a YYYY-MM-DD string in the local time zone.
func ParseDate(s string) (Date, error) {
	t, err := time.ParseInLocation(DateLayout, s, time.Local)
	if err != nil {
		return Date{}, fmt.Errorf("domain: parsing date %q: %w", s, err)
	}
	return Date{t}, nil
}

// String returns the date as YYYY-MM-DD.
func (d Date) String() string { return d.Format(DateLayout) }

// MarshalJSON encodes the date as "YYYY-MM-DD".
func (d Date) MarshalJSON() ([]byte, error) {
	return json.Marshal(d.String())
}

// UnmarshalJSON decodes a "YYYY-MM-DD" string.
func (d *Date) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return err
	}
	parsed, err := ParseDate(s)
	if err != nil {
		return err
	}
	*d = parsed
	return nil
}

// Walk visits every task in the forest depth-first, parents before
// children, in file order. Traversal uses an explicit stack so deep
// nesting cannot exhaust the goroutine stack. Returning false from fn
// stops the walk.
func Walk(tasks []Task, fn func(t *Task, depth int) bool) {
	type frame struct {
		task  *Task
		depth int
	}

	stack := make([]frame, 0, len(tasks))
	for i := len(tasks) - 1; i >= 0; i-- {
		stack = append(stack, frame{task: &tasks[i]})
	}

	for len(stack) > 0 {
		top := stack[len(stack)-1]
		stack = stack[:len(stack)-1]

		if !fn(top.task, top.depth) {
			return
		}

		subs := top.task.Subtasks
		for i := len(subs) - 1; i >= 0; i-- {
			stack = append(stack, frame{task: &subs[i], depth: top.depth + 1})
		}
	}
}
