package models

import "time"

// ShiftProposal moves one task's due date forward because an earlier task is
// late. CausedBy is the ID of the delayed task that triggered it.
type ShiftProposal struct {
	TaskID          string    `json:"task_id" yaml:"task_id"`
	OriginalDueDate time.Time `json:"original_due_date" yaml:"original_due_date"`
	NewDueDate      time.Time `json:"new_due_date" yaml:"new_due_date"`
	ShiftDays       int       `json:"shift_days" yaml:"shift_days"`
	CausedBy        string    `json:"caused_by" yaml:"caused_by"`
}

// AutoShiftPlan is an advisory, unconfirmed batch of shift proposals. It is
// never persisted: the caller either applies it or discards it.
type AutoShiftPlan struct {
	GeneratedAt time.Time       `json:"generated_at" yaml:"generated_at"`
	Proposals   []ShiftProposal `json:"proposals" yaml:"proposals"`
}

// IsEmpty reports whether the plan proposes nothing.
func (p *AutoShiftPlan) IsEmpty() bool {
	return p == nil || len(p.Proposals) == 0
}

// Collisions returns the IDs of tasks that received more than one proposal,
// in order of first appearance.
func (p *AutoShiftPlan) Collisions() []string {
	if p == nil {
		return nil
	}
	seen := make(map[string]int, len(p.Proposals))
	var ids []string
	for _, sp := range p.Proposals {
		seen[sp.TaskID]++
		if seen[sp.TaskID] == 2 {
			ids = append(ids, sp.TaskID)
		}
	}
	return ids
}

// DueDateUpdate is a single due-date write the caller must persist after
// applying a plan.
type DueDateUpdate struct {
	TaskID     string    `json:"task_id" yaml:"task_id"`
	NewDueDate time.Time `json:"new_due_date" yaml:"new_due_date"`
}
