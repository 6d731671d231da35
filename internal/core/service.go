package core

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/valter-silva-au/buildphase/pkg/models"
	"go.uber.org/zap"
)

// ScheduleService is what the transports (CLI, dashboard, HTTP, MCP) talk to.
// It loads input, rebuilds through the Scheduler, persists confirmed shifts
// and records what happened.
type ScheduleService interface {
	// Refresh reloads every input source and rebuilds the schedule.
	Refresh(ctx context.Context) (models.Schedule, error)
	// Current returns the last schedule, refreshing first if none exists.
	Current(ctx context.Context) (models.Schedule, error)
	// ProposedShift returns the pending plan, or nil.
	ProposedShift() *models.AutoShiftPlan
	// ApplyShift persists the pending plan and rebuilds. It returns ErrNoPlan
	// when nothing is pending.
	ApplyShift(ctx context.Context) ([]models.DueDateUpdate, error)
	// DiscardShift drops the pending plan and reports whether one existed.
	DiscardShift() bool
	// ExpandPhase reports whether the phase may be expanded, with the lock
	// reason when it may not.
	ExpandPhase(id models.PhaseID) (bool, string)
	// SelectTask forwards a task selection to the registered callback.
	SelectTask(task models.Task)
}

// ServiceOptions wires a ScheduleService. Loader and Writer are required;
// the rest are optional.
type ServiceOptions struct {
	Scheduler *Scheduler
	Loader    InputLoader
	Writer    DueDateWriter
	Events    EventLogger
	Observer  ScheduleObserver
	Logger    *zap.Logger

	// Now supplies "today" for every rebuild. Defaults to time.Now.
	Now func() time.Time
}

type scheduleService struct {
	scheduler *Scheduler
	loader    InputLoader
	writer    DueDateWriter
	events    EventLogger
	observer  ScheduleObserver
	logger    *zap.Logger
	now       func() time.Time

	// mu serialises rebuilds and applies so a watcher-triggered refresh
	// never interleaves with a shift being written.
	mu sync.Mutex
}

// NewScheduleService creates a ScheduleService.
func NewScheduleService(opts ServiceOptions) (ScheduleService, error) {
	if opts.Loader == nil {
		return nil, errors.New("schedule service: input loader is required")
	}
	if opts.Writer == nil {
		return nil, errors.New("schedule service: due date writer is required")
	}
	s := &scheduleService{
		scheduler: opts.Scheduler,
		loader:    opts.Loader,
		writer:    opts.Writer,
		events:    opts.Events,
		observer:  opts.Observer,
		logger:    opts.Logger,
		now:       opts.Now,
	}
	if s.scheduler == nil {
		s.scheduler = NewScheduler(SchedulerOptions{})
	}
	if s.logger == nil {
		s.logger = zap.NewNop()
	}
	if s.now == nil {
		s.now = time.Now
	}
	return s, nil
}

func (s *scheduleService) Refresh(ctx context.Context) (models.Schedule, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.refreshLocked(ctx)
}

func (s *scheduleService) refreshLocked(ctx context.Context) (models.Schedule, error) {
	now := s.now()
	in, err := s.loader.LoadInput(ctx, now)
	if err != nil {
		return models.Schedule{}, fmt.Errorf("loading schedule input: %w", err)
	}

	previous := s.scheduler.ProposedShift()
	sched := s.scheduler.Rebuild(in)

	s.logger.Debug("schedule rebuilt",
		zap.Int("tasks", len(in.Tasks)),
		zap.Int("materials", len(in.Materials)),
		zap.Int("forecast_days", len(in.Forecast)),
		zap.Int("crew", len(in.Crew)),
	)
	s.logEvent(eventScheduleRebuilt, map[string]any{
		"tasks":   len(in.Tasks),
		"delayed": countDelayed(sched),
		"locked":  lockedPhaseNames(sched),
	})
	if !sched.Plan.IsEmpty() && !samePlan(previous, sched.Plan) {
		s.logEvent(eventShiftProposed, map[string]any{
			"proposals":  len(sched.Plan.Proposals),
			"collisions": sched.Plan.Collisions(),
		})
	}
	if s.observer != nil {
		s.observer.ObserveSchedule(sched)
	}
	return sched, nil
}

func (s *scheduleService) Current(ctx context.Context) (models.Schedule, error) {
	if sched, built := s.scheduler.Schedule(); built {
		return sched, nil
	}
	return s.Refresh(ctx)
}

func (s *scheduleService) ProposedShift() *models.AutoShiftPlan {
	return s.scheduler.ProposedShift()
}

func (s *scheduleService) ApplyShift(ctx context.Context) ([]models.DueDateUpdate, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	plan := s.scheduler.ProposedShift()
	if plan == nil {
		return nil, ErrNoPlan
	}
	updates, err := s.scheduler.ApplyShift(plan)
	if err != nil {
		return nil, err
	}
	if err := s.writer.ApplyDueDateUpdates(updates); err != nil {
		// Nothing was written; rebuild so the plan is pending again.
		if _, rerr := s.refreshLocked(ctx); rerr != nil {
			s.logger.Warn("rebuild after failed apply", zap.Error(rerr))
		}
		return nil, fmt.Errorf("persisting shift: %w", err)
	}

	s.logger.Info("shift applied", zap.Int("updates", len(updates)))
	s.logEvent(eventShiftApplied, map[string]any{
		"updates":   len(updates),
		"proposals": len(plan.Proposals),
	})
	if s.observer != nil {
		s.observer.ShiftApplied(len(updates))
	}

	if _, err := s.refreshLocked(ctx); err != nil {
		return updates, fmt.Errorf("rebuilding after shift: %w", err)
	}
	return updates, nil
}

func (s *scheduleService) DiscardShift() bool {
	if s.scheduler.ProposedShift() == nil {
		return false
	}
	s.scheduler.DiscardShift()
	s.logEvent(eventShiftDiscarded, nil)
	return true
}

func (s *scheduleService) ExpandPhase(id models.PhaseID) (bool, string) {
	ok, reason := s.scheduler.ExpandPhase(id)
	if !ok {
		s.logEvent(eventPhaseExpandRejected, map[string]any{
			"phase":  id.String(),
			"reason": reason,
		})
	}
	return ok, reason
}

func (s *scheduleService) SelectTask(task models.Task) {
	s.scheduler.OnTaskSelected(task)
}

func (s *scheduleService) logEvent(eventType string, data map[string]any) {
	if s.events == nil {
		return
	}
	if err := s.events.LogEvent(eventType, data); err != nil {
		s.logger.Warn("writing event", zap.String("type", eventType), zap.Error(err))
	}
}

func countDelayed(s models.Schedule) int {
	n := 0
	for _, p := range s.Phases {
		for _, st := range p.SubTimelines {
			if st.Delayed {
				n++
			}
		}
	}
	return n
}

func lockedPhaseNames(s models.Schedule) []string {
	var names []string
	for _, p := range s.Phases {
		if p.Locked {
			names = append(names, p.Name)
		}
	}
	return names
}

// samePlan reports whether two plans propose the same moves.
func samePlan(a, b *models.AutoShiftPlan) bool {
	if a.IsEmpty() || b.IsEmpty() {
		return a.IsEmpty() == b.IsEmpty()
	}
	if len(a.Proposals) != len(b.Proposals) {
		return false
	}
	for i := range a.Proposals {
		pa, pb := a.Proposals[i], b.Proposals[i]
		if pa.TaskID != pb.TaskID || pa.CausedBy != pb.CausedBy || pa.ShiftDays != pb.ShiftDays ||
			!pa.NewDueDate.Equal(pb.NewDueDate) {
			return false
		}
	}
	return true
}
