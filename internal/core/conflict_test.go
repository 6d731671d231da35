package core

import (
	"testing"
	"time"

	"github.com/valter-silva-au/buildphase/pkg/models"
)

func rainForecast() []models.ForecastDay {
	return []models.ForecastDay{
		{
			Date: time.Date(2024, 6, 1, 0, 0, 0, 0, time.UTC),
			Alerts: []models.ConstructionAlert{
				{Type: "wind", Severity: models.AlertWarning, Message: "Gusty winds"},
				{Type: "rain", Severity: models.AlertDanger, Message: "Heavy rain expected"},
				{Type: "storm", Severity: models.AlertDanger, Message: "Thunderstorms"},
			},
		},
		{
			Date:   time.Date(2024, 6, 2, 0, 0, 0, 0, time.UTC),
			Alerts: []models.ConstructionAlert{{Type: "heat", Severity: models.AlertWarning, Message: "Hot"}},
		},
	}
}

func TestWeatherConflict_FirstDangerAlertWins(t *testing.T) {
	tk := task("T1", "Install laminate", models.StatusPending, day(0))

	alert, ok := WeatherConflict(tk, rainForecast())
	if !ok {
		t.Fatal("expected a weather conflict")
	}
	if alert.Message != "Heavy rain expected" {
		t.Errorf("message = %q, want first danger alert", alert.Message)
	}
}

func TestWeatherConflict_WarningOnlyIsNoConflict(t *testing.T) {
	tk := task("T1", "Install laminate", models.StatusPending, day(1))
	if _, ok := WeatherConflict(tk, rainForecast()); ok {
		t.Error("warning-only day must not conflict")
	}
}

func TestWeatherConflict_NoDueDateOrForecast(t *testing.T) {
	if _, ok := WeatherConflict(task("T1", "x", models.StatusPending, nil), rainForecast()); ok {
		t.Error("task without due date must not conflict")
	}
	if _, ok := WeatherConflict(task("T1", "x", models.StatusPending, day(0)), nil); ok {
		t.Error("missing forecast must not conflict")
	}
}

func TestWeatherConflict_MatchesCalendarDayAcrossZones(t *testing.T) {
	loc := time.FixedZone("UTC-7", -7*3600)
	due := time.Date(2024, 6, 1, 18, 0, 0, 0, loc)
	tk := task("T1", "Install laminate", models.StatusPending, &due)
	if _, ok := WeatherConflict(tk, rainForecast()); !ok {
		t.Error("expected the local calendar date to match the forecast date")
	}
}

func TestCrewConflict(t *testing.T) {
	absent := []models.CrewLocation{{MemberID: "u1", Name: "Ana", IsOnSite: false}}
	present := []models.CrewLocation{{MemberID: "u1", IsOnSite: false}, {MemberID: "u2", IsOnSite: true}}

	inProgress := task("T1", "Install laminate", models.StatusInProgress, day(3))
	dueToday := task("T2", "Install trim", models.StatusPending, day(0))
	doneToday := task("T3", "Install trim", models.StatusCompleted, day(0))
	later := task("T4", "Install trim", models.StatusPending, day(2))

	tests := []struct {
		name  string
		phase models.PhaseID
		tasks []models.Task
		crew  []models.CrewLocation
		want  bool
	}{
		{"in progress, nobody on site", models.PhaseExecution, []models.Task{inProgress}, absent, true},
		{"due today, nobody on site", models.PhaseExecution, []models.Task{dueToday}, absent, true},
		{"someone on site", models.PhaseExecution, []models.Task{inProgress}, present, false},
		{"no crew data", models.PhaseExecution, []models.Task{inProgress}, nil, false},
		{"not execution phase", models.PhaseVerification, []models.Task{inProgress}, absent, false},
		{"completed today", models.PhaseExecution, []models.Task{doneToday}, absent, false},
		{"nothing active today", models.PhaseExecution, []models.Task{later}, absent, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := CrewConflict(tt.phase, tt.tasks, tt.crew, refNow); got != tt.want {
				t.Errorf("CrewConflict = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestEvaluateConflicts_Combinations(t *testing.T) {
	absent := []models.CrewLocation{{MemberID: "u1", IsOnSite: false}}
	rainy := task("T1", "Install laminate", models.StatusInProgress, day(0))
	dry := task("T2", "Install laminate", models.StatusInProgress, day(5))

	status, msg := evaluateConflicts(models.PhaseExecution, []models.Task{rainy}, rainForecast(), absent, refNow)
	if status != models.ConflictBoth || msg != "Heavy rain expected" {
		t.Errorf("got (%s, %q), want (both, weather message)", status, msg)
	}

	status, msg = evaluateConflicts(models.PhaseExecution, []models.Task{dry}, rainForecast(), absent, refNow)
	if status != models.ConflictGPS || msg != crewAbsentMessage {
		t.Errorf("got (%s, %q), want (gps, crew message)", status, msg)
	}

	status, _ = evaluateConflicts(models.PhasePreparation, []models.Task{rainy}, rainForecast(), absent, refNow)
	if status != models.ConflictWeather {
		t.Errorf("got %s, want weather outside execution", status)
	}

	status, msg = evaluateConflicts(models.PhaseExecution, []models.Task{dry}, nil, nil, refNow)
	if status != models.ConflictNone || msg != "" {
		t.Errorf("got (%s, %q), want none with absent data", status, msg)
	}
}
