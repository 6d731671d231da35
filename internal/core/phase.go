package core

import (
	"fmt"
	"strings"
	"time"

	"github.com/valter-silva-au/buildphase/pkg/models"
)

// PhaseInput is the full input to a phase-tree build.
type PhaseInput struct {
	Tasks     []models.Task
	Materials []models.Material
	Forecast  []models.ForecastDay
	Crew      []models.CrewLocation
	Now       time.Time
}

// BuildPhases classifies every task, builds the three phases in fixed order
// and applies the dependency locks.
func BuildPhases(in PhaseInput, classifier Classifier) []models.Phase {
	var byPhase [models.PhaseCount][]models.Task
	for _, t := range in.Tasks {
		p := classifier.ClassifyPhase(t)
		if !p.Valid() {
			p = models.PhaseExecution
		}
		byPhase[p] = append(byPhase[p], t)
	}

	checkpoints := checkpointMatcherFor(classifier)
	phases := make([]models.Phase, 0, models.PhaseCount)
	for _, id := range models.AllPhases {
		tasks := byPhase[id]
		phase := models.Phase{
			ID:    id,
			Name:  id.String(),
			Tasks: tasks,
			SubTimelines: BuildSubTimelines(SubTimelineInput{
				Phase:     id,
				Tasks:     tasks,
				Materials: in.Materials,
				Forecast:  in.Forecast,
				Crew:      in.Crew,
				Now:       in.Now,
			}, classifier),
			Range:                dateRange(tasks),
			Progress:             completionPercent(tasks),
			VerificationProgress: verificationProgress(tasks, checkpoints),
		}
		for _, st := range phase.SubTimelines {
			if st.Delayed {
				phase.Delayed = true
				if st.DelayDays > phase.DelayDays {
					phase.DelayDays = st.DelayDays
				}
			}
		}
		phases = append(phases, phase)
	}

	applyDependencyLocks(phases)
	return phases
}

// VerificationProgress returns the completion percentage of the checkpoint
// tasks (titles naming verify, inspect, check or final). Without any
// checkpoint it falls back to overall completion.
func VerificationProgress(tasks []models.Task) int {
	return verificationProgress(tasks, DefaultClassifier())
}

func verificationProgress(tasks []models.Task, checkpoints CheckpointMatcher) int {
	total, done := 0, 0
	for _, t := range tasks {
		if !checkpoints.IsCheckpoint(t) {
			continue
		}
		total++
		if t.IsCompleted() {
			done++
		}
	}
	if total == 0 {
		return completionPercent(tasks)
	}
	return percent(done, total)
}

func checkpointMatcherFor(c Classifier) CheckpointMatcher {
	if m, ok := c.(CheckpointMatcher); ok {
		return m
	}
	return DefaultClassifier()
}

// gate is the verification state carried from one phase to the next.
type gate struct {
	open     bool
	blocker  models.PhaseID
	progress int
}

// applyDependencyLocks walks the phases in order. Preparation is never locked;
// each later phase is locked while the carried gate is below 100%. A phase
// with tasks replaces the gate with its own verification progress; an empty
// phase passes the incoming gate through unchanged.
//
// The gate is therefore the verification progress of the nearest earlier phase
// that has tasks, not of the immediately preceding phase. An empty phase
// reports 0% verification yet does not lock its successor: with Preparation
// complete and Execution empty, Verification is unlocked. Locked still implies
// the preceding phase is below 100%, because an empty phase is only locked when
// the gate it passes on is closed.
func applyDependencyLocks(phases []models.Phase) {
	g := gate{open: true}
	for i := range phases {
		p := &phases[i]
		p.Locked = false
		p.LockReason = ""
		if i > 0 && !g.open {
			p.Locked = true
			p.LockReason = lockReason(g, p.ID)
		}
		if len(p.Tasks) > 0 {
			g = gate{
				open:     p.VerificationProgress >= 100,
				blocker:  p.ID,
				progress: p.VerificationProgress,
			}
		}
	}
}

func lockReason(g gate, locked models.PhaseID) string {
	return fmt.Sprintf("%s verification is %d%% complete; %s unlocks at 100%%",
		g.blocker, g.progress, strings.ToLower(locked.String()))
}
