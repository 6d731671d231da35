package storage

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/valter-silva-au/buildphase/pkg/models"
)

func newTestTaskStore(t *testing.T) (*fileTaskStore, string) {
	t.Helper()
	dir := t.TempDir()
	return NewTaskStore(dir).(*fileTaskStore), dir
}

func date(y int, m time.Month, d int) *time.Time {
	v := time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
	return &v
}

func sampleTask(id string, due *time.Time) models.Task {
	return models.Task{
		ID:       id,
		Title:    "Install laminate " + id,
		Status:   models.StatusPending,
		Priority: models.PriorityMedium,
		DueDate:  due,
	}
}

func writeData(t *testing.T, dir, name, content string) {
	t.Helper()
	if err := os.WriteFile(filepath.Join(dir, name), []byte(content), 0o644); err != nil {
		t.Fatalf("failed to write %s: %v", name, err)
	}
}

func TestTaskStore_LoadMissingFileIsEmpty(t *testing.T) {
	store, _ := newTestTaskStore(t)
	if err := store.Load(); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got := store.GetAll(); len(got) != 0 {
		t.Errorf("expected no tasks, got %d", len(got))
	}
}

func TestTaskStore_LoadParsesDatesAndKeepsOrder(t *testing.T) {
	store, dir := newTestTaskStore(t)
	writeData(t, dir, TasksFileName, `
version: "1.0"
tasks:
  - id: T2
    title: Install Laminate Flooring
    status: in_progress
    priority: high
    due_date: 2024-06-03
  - id: T1
    title: Order laminate
    status: completed
`)
	if err := store.Load(); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	got := store.GetAll()
	if len(got) != 2 || got[0].ID != "T2" || got[1].ID != "T1" {
		t.Fatalf("unexpected tasks %+v", got)
	}
	if got[0].DueDate == nil || !got[0].DueDate.Equal(*date(2024, 6, 3)) {
		t.Errorf("due date = %v, want 2024-06-03", got[0].DueDate)
	}
	if got[1].DueDate != nil {
		t.Errorf("T1 should have no due date, got %v", got[1].DueDate)
	}
}

func TestTaskStore_LoadRejectsInvalidRecords(t *testing.T) {
	tests := []struct {
		name    string
		content string
		want    string
	}{
		{"unknown status", "tasks:\n  - id: T1\n    title: x\n    status: blocked\n", "oneof"},
		{"missing id", "tasks:\n  - title: x\n    status: pending\n", "required"},
		{"bad priority", "tasks:\n  - id: T1\n    title: x\n    status: pending\n    priority: P0\n", "Priority"},
		{"duplicate id", "tasks:\n  - {id: T1, title: x, status: pending}\n  - {id: T1, title: y, status: pending}\n", "duplicate"},
		{"malformed yaml", "tasks: [", "parsing YAML"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			store, dir := newTestTaskStore(t)
			writeData(t, dir, TasksFileName, tt.content)
			err := store.Load()
			if err == nil {
				t.Fatal("expected error")
			}
			if !strings.Contains(err.Error(), tt.want) {
				t.Errorf("error %q should contain %q", err, tt.want)
			}
		})
	}
}

func TestTaskStore_UpsertGetRemove(t *testing.T) {
	store, _ := newTestTaskStore(t)

	if err := store.Upsert(sampleTask("T1", nil)); err != nil {
		t.Fatalf("Upsert: %v", err)
	}
	updated := sampleTask("T1", date(2024, 6, 5))
	updated.Status = models.StatusInProgress
	if err := store.Upsert(updated); err != nil {
		t.Fatalf("Upsert: %v", err)
	}
	if n := len(store.GetAll()); n != 1 {
		t.Fatalf("expected 1 task after replace, got %d", n)
	}
	got, err := store.Get("T1")
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if got.Status != models.StatusInProgress {
		t.Errorf("status = %s, want in_progress", got.Status)
	}

	if err := store.Upsert(models.Task{ID: "bad"}); err == nil {
		t.Error("expected validation error for task without title and status")
	}

	if err := store.Remove("T1"); err != nil {
		t.Fatalf("Remove: %v", err)
	}
	if _, err := store.Get("T1"); !errors.Is(err, ErrTaskNotFound) {
		t.Errorf("Get after remove err = %v, want ErrTaskNotFound", err)
	}
	if err := store.Remove("T1"); !errors.Is(err, ErrTaskNotFound) {
		t.Errorf("Remove missing err = %v, want ErrTaskNotFound", err)
	}
}

func TestTaskStore_SaveAndReload(t *testing.T) {
	store, dir := newTestTaskStore(t)
	_ = store.Upsert(sampleTask("T1", date(2024, 6, 1)))
	_ = store.Upsert(sampleTask("T2", nil))
	if err := store.Save(); err != nil {
		t.Fatalf("Save: %v", err)
	}

	reloaded := NewTaskStore(dir)
	if err := reloaded.Load(); err != nil {
		t.Fatalf("Load: %v", err)
	}
	got := reloaded.GetAll()
	if len(got) != 2 || got[0].ID != "T1" || !got[0].DueDate.Equal(*date(2024, 6, 1)) {
		t.Errorf("reloaded tasks = %+v", got)
	}
}

func TestTaskStore_GetAllReturnsCopy(t *testing.T) {
	store, _ := newTestTaskStore(t)
	_ = store.Upsert(sampleTask("T1", nil))
	all := store.GetAll()
	all[0].Title = "mutated"
	if got, _ := store.Get("T1"); got.Title == "mutated" {
		t.Error("GetAll must return a copy")
	}
}

func TestApplyDueDateUpdates_WritesBatch(t *testing.T) {
	store, dir := newTestTaskStore(t)
	_ = store.Upsert(sampleTask("T1", date(2024, 6, 3)))
	_ = store.Upsert(sampleTask("T2", date(2024, 6, 6)))
	if err := store.Save(); err != nil {
		t.Fatalf("Save: %v", err)
	}

	err := store.ApplyDueDateUpdates([]models.DueDateUpdate{
		{TaskID: "T1", NewDueDate: *date(2024, 6, 6)},
		{TaskID: "T2", NewDueDate: *date(2024, 6, 9)},
	})
	if err != nil {
		t.Fatalf("ApplyDueDateUpdates: %v", err)
	}

	reloaded := NewTaskStore(dir)
	if err := reloaded.Load(); err != nil {
		t.Fatalf("Load: %v", err)
	}
	t1, _ := reloaded.Get("T1")
	t2, _ := reloaded.Get("T2")
	if !t1.DueDate.Equal(*date(2024, 6, 6)) || !t2.DueDate.Equal(*date(2024, 6, 9)) {
		t.Errorf("persisted due dates = %v / %v", t1.DueDate, t2.DueDate)
	}
	if got, _ := store.Get("T1"); !got.DueDate.Equal(*date(2024, 6, 6)) {
		t.Error("in-memory state should reflect the applied batch")
	}
}

func TestApplyDueDateUpdates_UnknownIDWritesNothing(t *testing.T) {
	store, dir := newTestTaskStore(t)
	_ = store.Upsert(sampleTask("T1", date(2024, 6, 3)))
	if err := store.Save(); err != nil {
		t.Fatalf("Save: %v", err)
	}
	before, err := os.ReadFile(filepath.Join(dir, TasksFileName))
	if err != nil {
		t.Fatalf("reading tasks file: %v", err)
	}

	err = store.ApplyDueDateUpdates([]models.DueDateUpdate{
		{TaskID: "T1", NewDueDate: *date(2024, 6, 9)},
		{TaskID: "ghost", NewDueDate: *date(2024, 6, 9)},
	})
	if !errors.Is(err, ErrTaskNotFound) {
		t.Fatalf("err = %v, want ErrTaskNotFound", err)
	}

	after, _ := os.ReadFile(filepath.Join(dir, TasksFileName))
	if string(before) != string(after) {
		t.Error("tasks file changed despite a failed batch")
	}
	if got, _ := store.Get("T1"); !got.DueDate.Equal(*date(2024, 6, 3)) {
		t.Error("in-memory state changed despite a failed batch")
	}
}

func TestApplyDueDateUpdates_PreservesExternalEdits(t *testing.T) {
	store, dir := newTestTaskStore(t)
	_ = store.Upsert(sampleTask("T1", date(2024, 6, 3)))
	if err := store.Save(); err != nil {
		t.Fatalf("Save: %v", err)
	}

	// Another process adds a task after this store loaded.
	other := NewTaskStore(dir)
	_ = other.Load()
	_ = other.Upsert(sampleTask("T9", nil))
	_ = other.Save()

	if err := store.ApplyDueDateUpdates([]models.DueDateUpdate{{TaskID: "T1", NewDueDate: *date(2024, 6, 4)}}); err != nil {
		t.Fatalf("ApplyDueDateUpdates: %v", err)
	}
	if _, err := store.Get("T9"); err != nil {
		t.Errorf("external task lost: %v", err)
	}
}

func TestApplyDueDateUpdates_EmptyBatchIsNoop(t *testing.T) {
	store, dir := newTestTaskStore(t)
	if err := store.ApplyDueDateUpdates(nil); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if _, err := os.Stat(filepath.Join(dir, TasksFileName)); !os.IsNotExist(err) {
		t.Error("empty batch should not create the tasks file")
	}
}
