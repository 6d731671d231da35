package core

import (
	"context"
	"time"

	"github.com/valter-silva-au/buildphase/pkg/models"
)

// InputLoader supplies the full input of a rebuild.
// This interface is defined locally in core to avoid importing storage.
type InputLoader interface {
	LoadInput(ctx context.Context, now time.Time) (ScheduleInput, error)
}

// DueDateWriter persists confirmed due-date changes as one atomic batch.
// This interface is defined locally in core to avoid importing storage.
type DueDateWriter interface {
	ApplyDueDateUpdates(updates []models.DueDateUpdate) error
}

// EventLogger is the subset of the observability event log that core
// services need. Defining it here avoids importing the observability package.
type EventLogger interface {
	LogEvent(eventType string, data map[string]any) error
}

// ScheduleObserver receives every rebuilt schedule and applied shift, for
// metrics export.
type ScheduleObserver interface {
	ObserveSchedule(s models.Schedule)
	ShiftApplied(updates int)
}

// Event types logged by ScheduleService. They match the observability
// package's constants.
const (
	eventScheduleRebuilt     = "schedule.rebuilt"
	eventShiftProposed       = "shift.proposed"
	eventShiftApplied        = "shift.applied"
	eventShiftDiscarded      = "shift.discarded"
	eventPhaseExpandRejected = "phase.expand_rejected"
)
