package core

import (
	"sort"
	"time"

	"github.com/valter-silva-au/buildphase/pkg/models"
)

// DelayedTask is an overdue, incomplete task together with how late it is.
type DelayedTask struct {
	Task      models.Task
	DelayDays int
}

// IsDelayed reports whether the task is overdue: due strictly before today
// and not completed. A task due today is never delayed.
func IsDelayed(task models.Task, now time.Time) bool {
	return DelayDays(task, now) > 0
}

// DelayDays returns how many whole days the task is overdue, or 0 when it is
// not delayed.
func DelayDays(task models.Task, now time.Time) int {
	if task.IsCompleted() || !task.HasDueDate() {
		return 0
	}
	days := daysBetween(*task.DueDate, now)
	if days < 0 {
		return 0
	}
	return days
}

// DetectDelays returns every delayed task, most overdue first. Ties keep
// input order.
func DetectDelays(tasks []models.Task, now time.Time) []DelayedTask {
	var delayed []DelayedTask
	for _, t := range tasks {
		if d := DelayDays(t, now); d > 0 {
			delayed = append(delayed, DelayedTask{Task: t, DelayDays: d})
		}
	}
	sort.SliceStable(delayed, func(i, j int) bool {
		return delayed[i].DelayDays > delayed[j].DelayDays
	})
	return delayed
}

// CalculateAutoShift proposes moving every incomplete task due strictly after
// the delayed task forward by delayDays calendar days. Tasks due on or before
// the delayed task, completed tasks, tasks without a due date and the delayed
// task itself are never shifted.
func CalculateAutoShift(delayed models.Task, all []models.Task, delayDays int) []models.ShiftProposal {
	if !delayed.HasDueDate() || delayDays <= 0 {
		return nil
	}
	pivot := civilDate(*delayed.DueDate)

	var proposals []models.ShiftProposal
	for _, t := range all {
		if t.ID == delayed.ID || t.IsCompleted() || !t.HasDueDate() {
			continue
		}
		due := civilDate(*t.DueDate)
		if !due.After(pivot) {
			continue
		}
		proposals = append(proposals, models.ShiftProposal{
			TaskID:          t.ID,
			OriginalDueDate: due,
			NewDueDate:      addDays(due, delayDays),
			ShiftDays:       delayDays,
			CausedBy:        delayed.ID,
		})
	}
	return proposals
}

// rootCause picks the delayed task a sub-timeline's shift is anchored on: the
// earliest-due delayed member, first in order on ties.
func rootCause(st models.SubTimeline, now time.Time) (models.Task, bool) {
	var root models.Task
	found := false
	for _, t := range st.Tasks {
		if !IsDelayed(t, now) {
			continue
		}
		if !found || t.DueDate.Before(*root.DueDate) {
			root = t
			found = true
		}
	}
	return root, found
}

// PlanAutoShift builds the advisory plan for a phase tree: one root cause per
// delayed sub-timeline, shifted by that sub-timeline's delay. Proposals from
// independent roots are concatenated as-is; a task may appear more than once.
// It returns nil when nothing needs shifting.
func PlanAutoShift(phases []models.Phase, all []models.Task, now time.Time) *models.AutoShiftPlan {
	var proposals []models.ShiftProposal
	for _, phase := range phases {
		for _, st := range phase.SubTimelines {
			if !st.Delayed {
				continue
			}
			root, ok := rootCause(st, now)
			if !ok {
				continue
			}
			proposals = append(proposals, CalculateAutoShift(root, all, st.DelayDays)...)
		}
	}
	if len(proposals) == 0 {
		return nil
	}
	return &models.AutoShiftPlan{
		GeneratedAt: now,
		Proposals:   proposals,
	}
}
