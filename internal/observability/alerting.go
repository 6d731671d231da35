package observability

import (
	"fmt"
	"strings"
	"time"

	"github.com/valter-silva-au/buildphase/pkg/models"
)

// AlertSeverity represents the urgency of an alert.
type AlertSeverity string

const (
	SeverityHigh   AlertSeverity = "high"
	SeverityMedium AlertSeverity = "medium"
	SeverityLow    AlertSeverity = "low"
)

// Alert conditions raised by the engine.
const (
	ConditionDelayed     = "subtimeline_delayed"
	ConditionWeather     = "weather_conflict"
	ConditionCrewAbsent  = "crew_absent"
	ConditionPhaseLocked = "phase_locked"
)

// Alert represents a triggered alert condition.
type Alert struct {
	ID          string        `json:"id"`
	Condition   string        `json:"condition"`
	Phase       string        `json:"phase,omitempty"`
	Severity    AlertSeverity `json:"severity"`
	Message     string        `json:"message"`
	TriggeredAt time.Time     `json:"triggered_at"`
}

// AlertThresholds configures when alerts escalate.
type AlertThresholds struct {
	// HighDelayDays is the delay at which a delayed sub-timeline becomes a
	// high severity alert.
	HighDelayDays int `yaml:"high_delay_days" json:"high_delay_days"`
}

// DefaultAlertThresholds returns the default thresholds.
func DefaultAlertThresholds() AlertThresholds {
	return AlertThresholds{HighDelayDays: 3}
}

// AlertEngine turns a rebuilt schedule into alerts.
type AlertEngine interface {
	Evaluate(schedule models.Schedule) []Alert
}

type alertEngine struct {
	thresholds AlertThresholds
}

// NewAlertEngine creates an AlertEngine with the given thresholds.
func NewAlertEngine(thresholds AlertThresholds) AlertEngine {
	return &alertEngine{thresholds: thresholds}
}

// Evaluate walks the phase tree in order. Alerts are stamped with the
// schedule's Now, so the same schedule always yields the same alerts.
func (ae *alertEngine) Evaluate(schedule models.Schedule) []Alert {
	now := schedule.Now
	var alerts []Alert

	for _, phase := range schedule.Phases {
		for _, st := range phase.SubTimelines {
			if st.Delayed {
				sev := SeverityMedium
				if st.DelayDays >= ae.thresholds.HighDelayDays {
					sev = SeverityHigh
				}
				alerts = append(alerts, Alert{
					ID:          "delayed-" + st.Key,
					Condition:   ConditionDelayed,
					Phase:       phase.Name,
					Severity:    sev,
					Message:     fmt.Sprintf("%s / %s is %d day(s) behind", phase.Name, st.Label, st.DelayDays),
					TriggeredAt: now,
				})
			}
			if st.ConflictStatus.HasWeather() {
				alerts = append(alerts, Alert{
					ID:          "weather-" + st.Key,
					Condition:   ConditionWeather,
					Phase:       phase.Name,
					Severity:    SeverityHigh,
					Message:     fmt.Sprintf("%s / %s: %s", phase.Name, st.Label, st.ConflictMessage),
					TriggeredAt: now,
				})
			}
			if st.ConflictStatus.HasGPS() {
				alerts = append(alerts, Alert{
					ID:          "crew-" + st.Key,
					Condition:   ConditionCrewAbsent,
					Phase:       phase.Name,
					Severity:    SeverityMedium,
					Message:     fmt.Sprintf("%s / %s: no crew member is on site", phase.Name, st.Label),
					TriggeredAt: now,
				})
			}
		}

		if phase.Locked && hasPendingWork(phase.Tasks) {
			alerts = append(alerts, Alert{
				ID:          "locked-" + strings.ToLower(phase.Name),
				Condition:   ConditionPhaseLocked,
				Phase:       phase.Name,
				Severity:    SeverityLow,
				Message:     fmt.Sprintf("%s is locked: %s", phase.Name, phase.LockReason),
				TriggeredAt: now,
			})
		}
	}

	return alerts
}

func hasPendingWork(tasks []models.Task) bool {
	for _, t := range tasks {
		if !t.IsCompleted() {
			return true
		}
	}
	return false
}
