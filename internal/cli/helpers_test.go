package cli

import (
	"bytes"
	"context"
	"testing"
	"time"

	"github.com/spf13/cobra"
	"github.com/valter-silva-au/buildphase/internal/core"
	"github.com/valter-silva-au/buildphase/pkg/models"
)

var testNow = time.Date(2024, 6, 1, 0, 0, 0, 0, time.UTC)

func testDay(offset int) *time.Time {
	d := testNow.AddDate(0, 0, offset)
	return &d
}

// fakeService implements core.ScheduleService over a fixed schedule.
type fakeService struct {
	sched      models.Schedule
	plan       *models.AutoShiftPlan
	refreshErr error
	applyErr   error

	refreshes int
	applied   int
	selected  []string
}

func (f *fakeService) Refresh(context.Context) (models.Schedule, error) {
	f.refreshes++
	return f.sched, f.refreshErr
}

func (f *fakeService) Current(context.Context) (models.Schedule, error) {
	return f.sched, f.refreshErr
}

func (f *fakeService) ProposedShift() *models.AutoShiftPlan { return f.plan }

func (f *fakeService) ApplyShift(context.Context) ([]models.DueDateUpdate, error) {
	if f.applyErr != nil {
		return nil, f.applyErr
	}
	if f.plan == nil {
		return nil, core.ErrNoPlan
	}
	f.applied++
	var updates []models.DueDateUpdate
	for _, p := range f.plan.Proposals {
		updates = append(updates, models.DueDateUpdate{TaskID: p.TaskID, NewDueDate: p.NewDueDate})
	}
	f.plan = nil
	return updates, nil
}

func (f *fakeService) DiscardShift() bool {
	had := f.plan != nil
	f.plan = nil
	return had
}

func (f *fakeService) ExpandPhase(id models.PhaseID) (bool, string) {
	p := f.sched.Phase(id)
	if p.Locked {
		return false, p.LockReason
	}
	return true, ""
}

func (f *fakeService) SelectTask(t models.Task) { f.selected = append(f.selected, t.ID) }

// newFakeService returns a schedule with delayed flooring work in Execution,
// a locked Verification phase and one pending proposal.
func newFakeService() *fakeService {
	install := models.Task{ID: "A", Title: "Install laminate flooring", Status: models.StatusPending, DueDate: testDay(-3)}
	check := models.Task{ID: "B", Title: "Verify laminate installation", Status: models.StatusPending, DueDate: testDay(5)}
	inspect := models.Task{ID: "C", Title: "Final inspection", Status: models.StatusPending, DueDate: testDay(9)}

	plan := &models.AutoShiftPlan{
		GeneratedAt: testNow,
		Proposals: []models.ShiftProposal{
			{TaskID: "B", OriginalDueDate: *testDay(5), NewDueDate: *testDay(8), ShiftDays: 3, CausedBy: "A"},
			{TaskID: "C", OriginalDueDate: *testDay(9), NewDueDate: *testDay(12), ShiftDays: 3, CausedBy: "A"},
		},
	}

	return &fakeService{
		sched: models.Schedule{
			Plan: plan,
			Now: testNow,
			Phases: []models.Phase{
				{ID: models.PhasePreparation, Name: "Preparation"},
				{
					ID: models.PhaseExecution, Name: "Execution",
					Tasks:     []models.Task{install, check},
					Range:     models.DateRange{Start: testDay(-3), End: testDay(5)},
					Delayed:   true,
					DelayDays: 3,
					SubTimelines: []models.SubTimeline{{
						Key: "execution-flooring", Phase: models.PhaseExecution, Category: models.CategoryFlooring,
						Label: "Flooring", Tasks: []models.Task{install, check},
						Range:   models.DateRange{Start: testDay(-3), End: testDay(5)},
						Delayed: true, DelayDays: 3,
						ConflictStatus: models.ConflictWeather, ConflictMessage: "Heavy rain",
					}},
				},
				{
					ID: models.PhaseVerification, Name: "Verification",
					Tasks:  []models.Task{inspect},
					Locked: true, LockReason: "Execution verification is at 0%, needs 100%",
				},
			},
		},
		plan: plan,
	}
}

// withService swaps the package service for the duration of the test.
func withService(t *testing.T, svc core.ScheduleService) {
	t.Helper()
	orig := Service
	Service = svc
	t.Cleanup(func() { Service = orig })
}

// runCmd runs cmd's RunE with captured output and the given stdin.
func runCmd(t *testing.T, cmd *cobra.Command, stdin string, args ...string) (string, error) {
	t.Helper()
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	cmd.SetIn(bytes.NewBufferString(stdin))
	cmd.SetContext(context.Background())
	t.Cleanup(func() {
		cmd.SetOut(nil)
		cmd.SetErr(nil)
		cmd.SetIn(nil)
	})
	err := cmd.RunE(cmd, args)
	return out.String(), err
}
