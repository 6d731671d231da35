package core

import (
	"fmt"
	"strings"
	"time"

	"github.com/valter-silva-au/buildphase/pkg/models"
)

// SubTimelineInput carries everything needed to build the sub-timelines of a
// single phase.
type SubTimelineInput struct {
	Phase     models.PhaseID
	Tasks     []models.Task
	Materials []models.Material
	Forecast  []models.ForecastDay
	Crew      []models.CrewLocation
	Now       time.Time
}

// BuildSubTimelines groups a phase's tasks by the category of the first
// material whose keyword prefixes a word of the task title. Unmatched tasks
// form the General Tasks bucket. Empty groups are omitted and the result
// follows models.CategoryOrder.
func BuildSubTimelines(in SubTimelineInput, categorizer MaterialCategorizer) []models.SubTimeline {
	type materialKey struct {
		keyword  string
		category models.MaterialCategory
	}
	keys := make([]materialKey, 0, len(in.Materials))
	for _, m := range in.Materials {
		kw := materialKeyword(m.Item)
		if kw == "" {
			continue
		}
		keys = append(keys, materialKey{keyword: kw, category: categorizer.CategorizeMaterial(m.Item)})
	}

	groups := make(map[models.MaterialCategory][]models.Task)
	for _, t := range in.Tasks {
		cat := models.CategoryGeneral
		for _, k := range keys {
			if matchesMaterial(t.Title, k.keyword) {
				cat = k.category
				break
			}
		}
		groups[cat] = append(groups[cat], t)
	}

	var out []models.SubTimeline
	for _, cat := range models.CategoryOrder {
		tasks, ok := groups[cat]
		if !ok {
			continue
		}
		out = append(out, buildSubTimeline(in, cat, tasks))
	}
	return out
}

func buildSubTimeline(in SubTimelineInput, cat models.MaterialCategory, tasks []models.Task) models.SubTimeline {
	st := models.SubTimeline{
		Key:      subTimelineKey(in.Phase, cat),
		Phase:    in.Phase,
		Category: cat,
		Label:    cat.Label(),
		Tasks:    tasks,
		Range:    dateRange(tasks),
		Progress: completionPercent(tasks),
	}
	for _, t := range tasks {
		if d := DelayDays(t, in.Now); d > 0 {
			st.Delayed = true
			if d > st.DelayDays {
				st.DelayDays = d
			}
		}
	}
	st.ConflictStatus, st.ConflictMessage = evaluateConflicts(in.Phase, tasks, in.Forecast, in.Crew, in.Now)
	return st
}

func subTimelineKey(phase models.PhaseID, cat models.MaterialCategory) string {
	return fmt.Sprintf("%s/%s", strings.ToLower(phase.String()), cat)
}

// dateRange returns the min/max due date of the tasks, skipping tasks with no
// due date.
func dateRange(tasks []models.Task) models.DateRange {
	var r models.DateRange
	for _, t := range tasks {
		if !t.HasDueDate() {
			continue
		}
		d := civilDate(*t.DueDate)
		if r.Start == nil || d.Before(*r.Start) {
			start := d
			r.Start = &start
		}
		if r.End == nil || d.After(*r.End) {
			end := d
			r.End = &end
		}
	}
	return r
}

// completionPercent is the rounded share of completed tasks.
func completionPercent(tasks []models.Task) int {
	done := 0
	for _, t := range tasks {
		if t.IsCompleted() {
			done++
		}
	}
	return percent(done, len(tasks))
}
