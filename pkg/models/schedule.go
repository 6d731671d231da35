package models

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

// PhaseID identifies one of the three schedule phases. The numeric value is
// the phase's fixed position in every schedule.
type PhaseID int

const (
	PhasePreparation PhaseID = iota
	PhaseExecution
	PhaseVerification
)

// PhaseCount is the number of phases in every schedule.
const PhaseCount = 3

// AllPhases lists the phases in schedule order.
var AllPhases = [PhaseCount]PhaseID{PhasePreparation, PhaseExecution, PhaseVerification}

func (p PhaseID) String() string {
	switch p {
	case PhasePreparation:
		return "Preparation"
	case PhaseExecution:
		return "Execution"
	case PhaseVerification:
		return "Verification"
	default:
		return fmt.Sprintf("Phase(%d)", int(p))
	}
}

// Valid reports whether p is one of the three known phases.
func (p PhaseID) Valid() bool {
	return p >= PhasePreparation && p <= PhaseVerification
}

// ParsePhaseID accepts a phase index ("0".."2") or a case-insensitive phase
// name ("execution").
func ParsePhaseID(s string) (PhaseID, error) {
	s = strings.TrimSpace(s)
	if n, err := strconv.Atoi(s); err == nil {
		p := PhaseID(n)
		if !p.Valid() {
			return 0, fmt.Errorf("phase index %d out of range 0-%d", n, PhaseCount-1)
		}
		return p, nil
	}
	for _, p := range AllPhases {
		if strings.EqualFold(p.String(), s) {
			return p, nil
		}
	}
	return 0, fmt.Errorf("unknown phase %q: must be preparation, execution, or verification", s)
}

// MaterialCategory is the category a material (and its sub-timeline) falls in.
type MaterialCategory string

const (
	CategoryFlooring     MaterialCategory = "flooring"
	CategoryUnderlayment MaterialCategory = "underlayment"
	CategoryTrim         MaterialCategory = "trim"
	CategorySupplies     MaterialCategory = "supplies"
	CategoryOther        MaterialCategory = "other"

	// CategoryGeneral is the bucket for tasks that match no supplied material.
	CategoryGeneral MaterialCategory = "general"
)

// CategoryOrder is the display order of sub-timelines within a phase.
var CategoryOrder = []MaterialCategory{
	CategoryFlooring,
	CategoryUnderlayment,
	CategoryTrim,
	CategorySupplies,
	CategoryOther,
	CategoryGeneral,
}

// Label returns the human-readable sub-timeline title for the category.
func (c MaterialCategory) Label() string {
	switch c {
	case CategoryGeneral:
		return "General Tasks"
	case "":
		return ""
	default:
		return strings.ToUpper(string(c[:1])) + string(c[1:])
	}
}

// ConflictStatus reports which external conflicts affect a sub-timeline.
type ConflictStatus string

const (
	ConflictNone    ConflictStatus = "none"
	ConflictWeather ConflictStatus = "weather"
	ConflictGPS     ConflictStatus = "gps"
	ConflictBoth    ConflictStatus = "both"
)

// HasWeather reports whether the status includes a weather conflict.
func (c ConflictStatus) HasWeather() bool {
	return c == ConflictWeather || c == ConflictBoth
}

// HasGPS reports whether the status includes a crew-presence conflict.
func (c ConflictStatus) HasGPS() bool {
	return c == ConflictGPS || c == ConflictBoth
}

// DateRange is the span of due dates of a group of tasks. Both ends are nil
// when no task in the group has a due date.
type DateRange struct {
	Start *time.Time `json:"start,omitempty" yaml:"start,omitempty"`
	End   *time.Time `json:"end,omitempty" yaml:"end,omitempty"`
}

// IsEmpty reports whether the range carries no dates.
func (r DateRange) IsEmpty() bool {
	return r.Start == nil || r.End == nil
}

// SubTimeline groups the tasks of one phase that share a material category.
type SubTimeline struct {
	Key             string           `json:"key"`
	Phase           PhaseID          `json:"phase"`
	Category        MaterialCategory `json:"category"`
	Label           string           `json:"label"`
	Tasks           []Task           `json:"tasks"`
	Range           DateRange        `json:"range"`
	Progress        int              `json:"progress"`
	Delayed         bool             `json:"delayed"`
	DelayDays       int              `json:"delay_days"`
	ConflictStatus  ConflictStatus   `json:"conflict_status"`
	ConflictMessage string           `json:"conflict_message,omitempty"`
}

// Phase is one of the three derived top-level schedule groupings.
type Phase struct {
	ID                   PhaseID       `json:"id"`
	Name                 string        `json:"name"`
	SubTimelines         []SubTimeline `json:"sub_timelines"`
	Tasks                []Task        `json:"tasks"`
	Range                DateRange     `json:"range"`
	Progress             int           `json:"progress"`
	VerificationProgress int           `json:"verification_progress"`
	Locked               bool          `json:"locked"`
	LockReason           string        `json:"lock_reason,omitempty"`
	Delayed              bool          `json:"delayed"`
	DelayDays            int           `json:"delay_days"`
}

// Schedule is the output of one rebuild: the phase tree in fixed order plus
// the pending auto-shift plan, if any.
type Schedule struct {
	Now    time.Time      `json:"now"`
	Phases []Phase        `json:"phases"`
	Plan   *AutoShiftPlan `json:"plan,omitempty"`
}

// Phase returns the phase with the given ID, or the zero Phase when the
// schedule has not been built.
func (s Schedule) Phase(id PhaseID) Phase {
	if id < 0 || int(id) >= len(s.Phases) {
		return Phase{}
	}
	return s.Phases[id]
}
