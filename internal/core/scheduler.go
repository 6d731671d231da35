package core

import (
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/valter-silva-au/buildphase/pkg/models"
)

// ErrPlanCollision is returned by ApplyShift under the reject policy when a
// plan proposes more than one shift for the same task.
var ErrPlanCollision = errors.New("shift plan proposes multiple shifts for the same task")

// ErrNoPlan is returned when applying a nil or empty plan.
var ErrNoPlan = errors.New("no shift plan to apply")

// ScheduleInput is everything a rebuild consumes, supplied wholesale.
type ScheduleInput struct {
	Tasks     []models.Task
	Materials []models.Material
	Forecast  []models.ForecastDay
	Crew      []models.CrewLocation

	// Now is the moment "today" is derived from. It is always explicit.
	Now time.Time
}

// Rebuild is the pure derivation: the same input always yields the same
// schedule. A nil classifier uses the built-in keyword tables.
func Rebuild(in ScheduleInput, classifier Classifier) models.Schedule {
	if classifier == nil {
		classifier = DefaultClassifier()
	}
	phases := BuildPhases(PhaseInput(in), classifier)
	return models.Schedule{
		Now:    in.Now,
		Phases: phases,
		Plan:   PlanAutoShift(phases, in.Tasks, in.Now),
	}
}

// SchedulerOptions configures a Scheduler.
type SchedulerOptions struct {
	Classifier  Classifier
	ShiftPolicy models.ShiftPolicy

	// OnTaskSelected receives tasks forwarded through OnTaskSelected.
	OnTaskSelected func(models.Task)
}

// Scheduler is the facade transports talk to. It holds only the snapshot of
// the last rebuild; every rebuild recomputes the tree from scratch.
type Scheduler struct {
	classifier Classifier
	policy     models.ShiftPolicy
	onSelect   func(models.Task)

	mu       sync.RWMutex
	schedule models.Schedule
	plan     *models.AutoShiftPlan
	built    bool
}

// NewScheduler creates a Scheduler. Zero-valued options select the keyword
// classifier and the max-shift collision policy.
func NewScheduler(opts SchedulerOptions) *Scheduler {
	s := &Scheduler{
		classifier: opts.Classifier,
		policy:     opts.ShiftPolicy,
		onSelect:   opts.OnTaskSelected,
	}
	if s.classifier == nil {
		s.classifier = DefaultClassifier()
	}
	if s.policy == "" {
		s.policy = models.ShiftPolicyMax
	}
	return s
}

// Rebuild recomputes the schedule and replaces the pending plan.
func (s *Scheduler) Rebuild(in ScheduleInput) models.Schedule {
	sched := Rebuild(in, s.classifier)

	s.mu.Lock()
	s.schedule = sched
	s.plan = sched.Plan
	s.built = true
	s.mu.Unlock()

	return cloneSchedule(sched)
}

// Schedule returns a copy of the last rebuilt schedule and whether a rebuild
// has happened yet.
func (s *Scheduler) Schedule() (models.Schedule, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	sched := cloneSchedule(s.schedule)
	sched.Plan = clonePlan(s.plan)
	return sched, s.built
}

// GetPhases returns a copy of the phase tree from the last rebuild.
func (s *Scheduler) GetPhases() []models.Phase {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return clonePhases(s.schedule.Phases)
}

// OnTaskSelected forwards the task to the registered callback.
func (s *Scheduler) OnTaskSelected(task models.Task) {
	if s.onSelect != nil {
		s.onSelect(task)
	}
}

// ProposedShift returns the pending plan, or nil when there is none.
func (s *Scheduler) ProposedShift() *models.AutoShiftPlan {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.plan.IsEmpty() {
		return nil
	}
	return clonePlan(s.plan)
}

// DiscardShift drops the pending plan without side effects.
func (s *Scheduler) DiscardShift() {
	s.mu.Lock()
	s.plan = nil
	s.mu.Unlock()
}

// ApplyShift converts a confirmed plan into the due-date writes the caller
// must persist atomically. The engine never writes tasks itself. Applying
// clears the pending plan; the caller rebuilds after persisting.
func (s *Scheduler) ApplyShift(plan *models.AutoShiftPlan) ([]models.DueDateUpdate, error) {
	updates, err := ResolveShift(plan, s.policy)
	if err != nil {
		return nil, err
	}
	s.mu.Lock()
	s.plan = nil
	s.mu.Unlock()
	return updates, nil
}

// ExpandPhase reports whether the phase may be expanded. A locked phase is
// rejected with its lock reason; the call never errors.
func (s *Scheduler) ExpandPhase(id models.PhaseID) (bool, string) {
	if !id.Valid() {
		return false, fmt.Sprintf("unknown phase %d", int(id))
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	if int(id) >= len(s.schedule.Phases) {
		return true, ""
	}
	p := s.schedule.Phases[id]
	if p.Locked {
		return false, p.LockReason
	}
	return true, ""
}

// ResolveShift turns a plan into one update per task. Under ShiftPolicyMax
// the largest shift wins and the first proposal wins ties; under
// ShiftPolicyReject any collision fails the whole batch.
func ResolveShift(plan *models.AutoShiftPlan, policy models.ShiftPolicy) ([]models.DueDateUpdate, error) {
	if plan.IsEmpty() {
		return nil, ErrNoPlan
	}
	if policy == models.ShiftPolicyReject {
		if ids := plan.Collisions(); len(ids) > 0 {
			return nil, fmt.Errorf("%w: %s", ErrPlanCollision, strings.Join(ids, ", "))
		}
	}

	best := make(map[string]models.ShiftProposal, len(plan.Proposals))
	var order []string
	for _, p := range plan.Proposals {
		cur, seen := best[p.TaskID]
		if !seen {
			order = append(order, p.TaskID)
			best[p.TaskID] = p
			continue
		}
		if p.ShiftDays > cur.ShiftDays {
			best[p.TaskID] = p
		}
	}

	updates := make([]models.DueDateUpdate, 0, len(order))
	for _, id := range order {
		updates = append(updates, models.DueDateUpdate{
			TaskID:     id,
			NewDueDate: best[id].NewDueDate,
		})
	}
	return updates, nil
}

func cloneSchedule(s models.Schedule) models.Schedule {
	return models.Schedule{
		Now:    s.Now,
		Phases: clonePhases(s.Phases),
		Plan:   clonePlan(s.Plan),
	}
}

func clonePhases(phases []models.Phase) []models.Phase {
	if phases == nil {
		return nil
	}
	out := make([]models.Phase, len(phases))
	for i, p := range phases {
		p.Tasks = append([]models.Task(nil), p.Tasks...)
		sts := make([]models.SubTimeline, len(p.SubTimelines))
		for j, st := range p.SubTimelines {
			st.Tasks = append([]models.Task(nil), st.Tasks...)
			sts[j] = st
		}
		p.SubTimelines = sts
		out[i] = p
	}
	return out
}

func clonePlan(p *models.AutoShiftPlan) *models.AutoShiftPlan {
	if p == nil {
		return nil
	}
	return &models.AutoShiftPlan{
		GeneratedAt: p.GeneratedAt,
		Proposals:   append([]models.ShiftProposal(nil), p.Proposals...),
	}
}
