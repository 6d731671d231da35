package models

import "time"

// TaskStatus represents the current lifecycle state of a task.
type TaskStatus string

const (
	StatusPending    TaskStatus = "pending"
	StatusInProgress TaskStatus = "in_progress"
	StatusCompleted  TaskStatus = "completed"
)

// Priority represents the urgency level of a task.
type Priority string

const (
	PriorityLow    Priority = "low"
	PriorityMedium Priority = "medium"
	PriorityHigh   Priority = "high"
	PriorityUrgent Priority = "urgent"
)

// Task is a unit of construction work supplied by the task store. The
// scheduling engine treats the task set of each rebuild as the current truth
// and never changes a task's identity.
type Task struct {
	ID          string     `yaml:"id" json:"id" validate:"required"`
	Title       string     `yaml:"title" json:"title" validate:"required"`
	Description string     `yaml:"description,omitempty" json:"description,omitempty"`
	Priority    Priority   `yaml:"priority" json:"priority" validate:"omitempty,oneof=low medium high urgent"`
	Status      TaskStatus `yaml:"status" json:"status" validate:"required,oneof=pending in_progress completed"`
	DueDate     *time.Time `yaml:"due_date,omitempty" json:"due_date,omitempty"`

	// MaterialCategory is informational only; sub-timeline grouping is driven
	// by the supplied material list.
	MaterialCategory string `yaml:"material_category,omitempty" json:"material_category,omitempty"`
}

// IsCompleted reports whether the task has reached its terminal status.
func (t Task) IsCompleted() bool {
	return t.Status == StatusCompleted
}

// HasDueDate reports whether the task carries a due date.
func (t Task) HasDueDate() bool {
	return t.DueDate != nil && !t.DueDate.IsZero()
}
