package core

import (
	"time"

	"github.com/valter-silva-au/buildphase/pkg/models"
)

// crewAbsentMessage is the conflict message for a crew-presence conflict that
// has no weather alert to report.
const crewAbsentMessage = "No crew member is on site for active execution tasks"

// WeatherConflict returns the first danger-severity alert forecast for the
// task's due date. Tasks without a due date never conflict.
func WeatherConflict(task models.Task, forecast []models.ForecastDay) (*models.ConstructionAlert, bool) {
	if !task.HasDueDate() {
		return nil, false
	}
	for _, day := range forecast {
		if !sameDay(day.Date, *task.DueDate) {
			continue
		}
		for i := range day.Alerts {
			if day.Alerts[i].Severity == models.AlertDanger {
				alert := day.Alerts[i]
				return &alert, true
			}
		}
	}
	return nil, false
}

// AnyoneOnSite reports whether at least one crew member is marked on site.
func AnyoneOnSite(crew []models.CrewLocation) bool {
	for _, c := range crew {
		if c.IsOnSite {
			return true
		}
	}
	return false
}

// activeToday reports whether an incomplete task is in progress or due today.
func activeToday(task models.Task, now time.Time) bool {
	if task.IsCompleted() {
		return false
	}
	if task.Status == models.StatusInProgress {
		return true
	}
	return task.HasDueDate() && sameDay(*task.DueDate, now)
}

// CrewConflict reports whether execution work is active today while nobody is
// on site. An empty crew snapshot means no presence data, which is not a
// conflict.
func CrewConflict(phase models.PhaseID, tasks []models.Task, crew []models.CrewLocation, now time.Time) bool {
	if phase != models.PhaseExecution || len(crew) == 0 || AnyoneOnSite(crew) {
		return false
	}
	for _, t := range tasks {
		if activeToday(t, now) {
			return true
		}
	}
	return false
}

// evaluateConflicts combines the weather and crew evaluators for one group of
// tasks. The first danger alert found supplies the message.
func evaluateConflicts(phase models.PhaseID, tasks []models.Task, forecast []models.ForecastDay, crew []models.CrewLocation, now time.Time) (models.ConflictStatus, string) {
	var weatherMsg string
	weather := false
	for _, t := range tasks {
		if alert, ok := WeatherConflict(t, forecast); ok {
			weather = true
			weatherMsg = alert.Message
			break
		}
	}
	gps := CrewConflict(phase, tasks, crew, now)

	switch {
	case weather && gps:
		return models.ConflictBoth, weatherMsg
	case weather:
		return models.ConflictWeather, weatherMsg
	case gps:
		return models.ConflictGPS, crewAbsentMessage
	default:
		return models.ConflictNone, ""
	}
}
