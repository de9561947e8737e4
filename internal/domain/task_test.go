package domain

import (
	"encoding/json"
	"strings"
	"testing"
	"time"
)

func TestWalkOrder(t *testing.T) {
	forest := []Task{
		{ID: 1, Subtasks: []Task{
			{ID: 2, Subtasks: []Task{{ID: 3}}},
			{ID: 4},
		}},
		{ID: 5},
	}

	var ids, depths []int
	Walk(forest, func(t *Task, depth int) bool {
		ids = append(ids, t.ID)
		depths = append(depths, depth)
		return true
	})

	wantIDs := []int{1, 2, 3, 4, 5}
	wantDepths := []int{0, 1, 2, 1, 0}
	for i := range wantIDs {
		if i >= len(ids) || ids[i] != wantIDs[i] || depths[i] != wantDepths[i] {
			t.Fatalf("walk = ids %v depths %v, want ids %v depths %v", ids, depths, wantIDs, wantDepths)
		}
	}
}

func TestWalkStopsEarly(t *testing.T) {
	forest := []Task{{ID: 1, Subtasks: []Task{{ID: 2}}}, {ID: 3}}

	visited := 0
	Walk(forest, func(t *Task, _ int) bool {
		visited++
		return t.ID != 2
	})
	if visited != 2 {
		t.Errorf("visited %d tasks, want 2", visited)
	}
}

func TestWalkMutatesInPlace(t *testing.T) {
	forest := []Task{{ID: 1, Subtasks: []Task{{ID: 2}}}}
	Walk(forest, func(t *Task, _ int) bool {
		t.Done = true
		return true
	})
	if !forest[0].Subtasks[0].Done {
		t.Error("nested task should be marked through the walk pointer")
	}
}

func TestDueDateJSON(t *testing.T) {
	var task Task
	if err := json.Unmarshal([]byte(`{"id":1,"title":"a","due_date":"2025-06-11"}`), &task); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if task.DueDate == nil {
		t.Fatal("due date should be set")
	}
	if got := task.DueDate.String(); got != "2025-06-11" {
		t.Errorf("due date = %s", got)
	}

	out, err := json.Marshal(task)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	if !strings.Contains(string(out), `"due_date":"2025-06-11"`) {
		t.Errorf("encoded task = %s", out)
	}

	var undated Task
	if err := json.Unmarshal([]byte(`{"id":2,"title":"b","due_date":null}`), &undated); err != nil {
		t.Fatalf("unmarshal null: %v", err)
	}
	if undated.DueDate != nil {
		t.Errorf("null due date decoded as %v", undated.DueDate)
	}

	var bad Task
	if err := json.Unmarshal([]byte(`{"id":3,"due_date":"next week"}`), &bad); err == nil {
		t.Error("expected an error for a malformed due date")
	}
}

func TestNewDateTruncates(t *testing.T) {
	d := NewDate(time.Date(2025, 6, 10, 17, 45, 3, 0, time.Local))
	if d.Hour() != 0 || d.Minute() != 0 || d.Day() != 10 {
		t.Errorf("NewDate = %v", d.Time)
	}
}
