package storage

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/valter-silva-au/buildphase/pkg/models"
	"gopkg.in/yaml.v3"
)

// TasksFileName is the task registry inside the data directory.
const TasksFileName = "tasks.yaml"

// ErrTaskNotFound is returned when an operation names a task ID the store
// does not hold.
var ErrTaskNotFound = errors.New("task not found")

// TaskFile represents the top-level structure of tasks.yaml. Tasks keep file
// order, which is the order the scheduler sees them in.
type TaskFile struct {
	Version string        `yaml:"version"`
	Tasks   []models.Task `yaml:"tasks"`
}

// TaskStore defines the interface for the project's task registry.
type TaskStore interface {
	Load() error
	Save() error
	GetAll() []models.Task
	Get(taskID string) (*models.Task, error)
	Upsert(task models.Task) error
	Remove(taskID string) error

	// ApplyDueDateUpdates writes every update or none of them. An unknown
	// task ID fails the whole batch with ErrTaskNotFound and nothing is
	// written.
	ApplyDueDateUpdates(updates []models.DueDateUpdate) error
}

type fileTaskStore struct {
	dir  string
	mu   sync.RWMutex
	data TaskFile
}

// NewTaskStore creates a TaskStore backed by tasks.yaml in dir.
func NewTaskStore(dir string) TaskStore {
	return &fileTaskStore{
		dir:  dir,
		data: TaskFile{Version: "1.0"},
	}
}

func (s *fileTaskStore) filePath() string {
	return filepath.Join(s.dir, TasksFileName)
}

func (s *fileTaskStore) lockPath() string {
	return filepath.Join(s.dir, ".tasks.lock")
}

func (s *fileTaskStore) Load() error {
	tf, err := s.read()
	if err != nil {
		return err
	}
	s.mu.Lock()
	s.data = tf
	s.mu.Unlock()
	return nil
}

// read parses tasks.yaml without touching the in-memory state. A missing file
// is an empty registry.
func (s *fileTaskStore) read() (TaskFile, error) {
	data, err := os.ReadFile(s.filePath())
	if err != nil {
		if os.IsNotExist(err) {
			return TaskFile{Version: "1.0"}, nil
		}
		return TaskFile{}, fmt.Errorf("loading tasks: %w", err)
	}

	var tf TaskFile
	if err := yaml.Unmarshal(data, &tf); err != nil {
		return TaskFile{}, fmt.Errorf("loading tasks: parsing YAML: %w", err)
	}
	if tf.Version == "" {
		tf.Version = "1.0"
	}
	if err := validateTasks(tf.Tasks); err != nil {
		return TaskFile{}, fmt.Errorf("loading tasks: %w", err)
	}
	return tf, nil
}

func validateTasks(tasks []models.Task) error {
	seen := make(map[string]bool, len(tasks))
	for i := range tasks {
		t := &tasks[i]
		if err := validateRecord("task", t.ID, t); err != nil {
			return err
		}
		if seen[t.ID] {
			return fmt.Errorf("duplicate task ID %s", t.ID)
		}
		seen[t.ID] = true
	}
	return nil
}

func (s *fileTaskStore) Save() error {
	unlock, err := s.lock()
	if err != nil {
		return fmt.Errorf("saving tasks: %w", err)
	}
	defer func() { _ = unlock() }()

	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.write(s.data)
}

func (s *fileTaskStore) lock() (func() error, error) {
	if err := os.MkdirAll(s.dir, 0o750); err != nil {
		return nil, fmt.Errorf("creating directory: %w", err)
	}
	return lockFile(s.lockPath())
}

func (s *fileTaskStore) write(tf TaskFile) error {
	data, err := yaml.Marshal(&tf)
	if err != nil {
		return fmt.Errorf("saving tasks: marshaling YAML: %w", err)
	}
	if err := writeFileAtomic(s.filePath(), data, 0o600); err != nil {
		return fmt.Errorf("saving tasks: %w", err)
	}
	return nil
}

func (s *fileTaskStore) GetAll() []models.Task {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]models.Task(nil), s.data.Tasks...)
}

func (s *fileTaskStore) Get(taskID string) (*models.Task, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	i := indexOf(s.data.Tasks, taskID)
	if i < 0 {
		return nil, fmt.Errorf("getting task %s: %w", taskID, ErrTaskNotFound)
	}
	t := s.data.Tasks[i]
	return &t, nil
}

// Upsert validates the task and replaces the stored task with the same ID,
// or appends it.
func (s *fileTaskStore) Upsert(task models.Task) error {
	if err := validateRecord("task", task.ID, &task); err != nil {
		return fmt.Errorf("upserting task: %w", err)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if i := indexOf(s.data.Tasks, task.ID); i >= 0 {
		s.data.Tasks[i] = task
		return nil
	}
	s.data.Tasks = append(s.data.Tasks, task)
	return nil
}

func (s *fileTaskStore) Remove(taskID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	i := indexOf(s.data.Tasks, taskID)
	if i < 0 {
		return fmt.Errorf("removing task %s: %w", taskID, ErrTaskNotFound)
	}
	s.data.Tasks = append(s.data.Tasks[:i], s.data.Tasks[i+1:]...)
	return nil
}

// ApplyDueDateUpdates re-reads tasks.yaml under the file lock so that edits
// made by other processes since Load are not overwritten, applies the batch
// to a copy and swaps it in only after the file is written.
func (s *fileTaskStore) ApplyDueDateUpdates(updates []models.DueDateUpdate) error {
	if len(updates) == 0 {
		return nil
	}

	unlock, err := s.lock()
	if err != nil {
		return fmt.Errorf("applying due dates: %w", err)
	}
	defer func() { _ = unlock() }()

	current, err := s.read()
	if err != nil {
		return fmt.Errorf("applying due dates: %w", err)
	}

	next := TaskFile{
		Version: current.Version,
		Tasks:   append([]models.Task(nil), current.Tasks...),
	}
	for _, u := range updates {
		i := indexOf(next.Tasks, u.TaskID)
		if i < 0 {
			return fmt.Errorf("applying due dates: task %s: %w", u.TaskID, ErrTaskNotFound)
		}
		due := u.NewDueDate
		next.Tasks[i].DueDate = &due
	}

	if err := s.write(next); err != nil {
		return fmt.Errorf("applying due dates: %w", err)
	}

	s.mu.Lock()
	s.data = next
	s.mu.Unlock()
	return nil
}

func indexOf(tasks []models.Task, id string) int {
	for i := range tasks {
		if tasks[i].ID == id {
			return i
		}
	}
	return -1
}
