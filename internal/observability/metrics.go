package observability

import (
	"fmt"
	"time"
)

// Metrics holds calculated metrics derived from the event log.
type Metrics struct {
	Rebuilds          int            `json:"rebuilds"`
	PlansProposed     int            `json:"plans_proposed"`
	ProposalsTotal    int            `json:"proposals_total"`
	ShiftsApplied     int            `json:"shifts_applied"`
	TasksShifted      int            `json:"tasks_shifted"`
	PlansDiscarded    int            `json:"plans_discarded"`
	ExpandRejections  int            `json:"expand_rejections"`
	RejectionsByPhase map[string]int `json:"rejections_by_phase"`
	EventCount        int            `json:"event_count"`
	OldestEvent       *time.Time     `json:"oldest_event,omitempty"`
	NewestEvent       *time.Time     `json:"newest_event,omitempty"`
}

// MetricsCalculator derives metrics from the event log.
type MetricsCalculator interface {
	Calculate(since time.Time) (*Metrics, error)
}

type metricsCalculator struct {
	eventLog EventLog
}

// NewMetricsCalculator creates a new MetricsCalculator that reads from the given EventLog.
func NewMetricsCalculator(eventLog EventLog) MetricsCalculator {
	return &metricsCalculator{eventLog: eventLog}
}

// Calculate reads all events since the given time and aggregates them into metrics.
func (mc *metricsCalculator) Calculate(since time.Time) (*Metrics, error) {
	events, err := mc.eventLog.Read(EventFilter{Since: &since})
	if err != nil {
		return nil, fmt.Errorf("reading events for metrics: %w", err)
	}

	m := &Metrics{
		RejectionsByPhase: make(map[string]int),
		EventCount:        len(events),
	}

	for i, event := range events {
		if i == 0 {
			t := event.Time
			m.OldestEvent = &t
		}
		t := event.Time
		m.NewestEvent = &t

		switch event.Type {
		case EventScheduleRebuilt:
			m.Rebuilds++
		case EventShiftProposed:
			m.PlansProposed++
			m.ProposalsTotal += intField(event.Data, "proposals")
		case EventShiftApplied:
			m.ShiftsApplied++
			m.TasksShifted += intField(event.Data, "updates")
		case EventShiftDiscarded:
			m.PlansDiscarded++
		case EventPhaseExpandRejected:
			m.ExpandRejections++
			if phase, ok := event.Data["phase"].(string); ok {
				m.RejectionsByPhase[phase]++
			}
		}
	}

	return m, nil
}

// intField reads a numeric data field. Numbers decoded from JSON arrive as
// float64; freshly built events may carry ints.
func intField(data map[string]any, key string) int {
	switch v := data[key].(type) {
	case int:
		return v
	case float64:
		return int(v)
	default:
		return 0
	}
}
