package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/valter-silva-au/buildphase/internal/core"
	"github.com/valter-silva-au/buildphase/internal/observability"
	"github.com/valter-silva-au/buildphase/pkg/models"
)

func init() {
	gin.SetMode(gin.TestMode)
}

// fakeService implements core.ScheduleService.
type fakeService struct {
	sched      models.Schedule
	plan       *models.AutoShiftPlan
	applyErr   error
	refreshErr error
	locked     map[models.PhaseID]string
	refreshes  int
	applied    int
}

func (f *fakeService) Refresh(context.Context) (models.Schedule, error) {
	f.refreshes++
	return f.sched, f.refreshErr
}

func (f *fakeService) Current(ctx context.Context) (models.Schedule, error) {
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
	if reason, ok := f.locked[id]; ok {
		return false, reason
	}
	return true, ""
}

func (f *fakeService) SelectTask(models.Task) {}

var testNow = time.Date(2024, 6, 1, 0, 0, 0, 0, time.UTC)

func newFakeService() *fakeService {
	due := testNow.AddDate(0, 0, 5)
	return &fakeService{
		sched: models.Schedule{
			Now: testNow,
			Phases: []models.Phase{
				{ID: models.PhasePreparation, Name: "Preparation", Progress: 100},
				{ID: models.PhaseExecution, Name: "Execution", Progress: 0, Tasks: []models.Task{
					{ID: "T1", Title: "Install laminate", Status: models.StatusPending},
				}},
				{ID: models.PhaseVerification, Name: "Verification", Locked: true, LockReason: "Execution verification is at 0%", Tasks: []models.Task{
					{ID: "T2", Title: "Inspect floor", Status: models.StatusPending, DueDate: &due},
				}},
			},
		},
		plan: &models.AutoShiftPlan{
			GeneratedAt: testNow,
			Proposals: []models.ShiftProposal{
				{TaskID: "T2", OriginalDueDate: due, NewDueDate: due.AddDate(0, 0, 3), ShiftDays: 3, CausedBy: "T1"},
			},
		},
		locked: map[models.PhaseID]string{
			models.PhaseVerification: "Execution verification is at 0%",
		},
	}
}

func setupTestRouter(svc core.ScheduleService, gatherer prometheus.Gatherer) *gin.Engine {
	h := NewHandlers(svc, observability.NewAlertEngine(observability.DefaultAlertThresholds()), gatherer, "test")
	return NewRouter(h, nil)
}

func do(router *gin.Engine, method, path string) *httptest.ResponseRecorder {
	req, _ := http.NewRequest(method, path, nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	return w
}

func TestHealth(t *testing.T) {
	router := setupTestRouter(newFakeService(), nil)
	w := do(router, "GET", "/health")

	assert.Equal(t, http.StatusOK, w.Code)
	var resp HealthResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, "ok", resp.Status)
	assert.Equal(t, "test", resp.Version)
}

func TestPhases_ReturnsFixedOrder(t *testing.T) {
	svc := newFakeService()
	router := setupTestRouter(svc, nil)
	w := do(router, "GET", "/v1/phases")

	require.Equal(t, http.StatusOK, w.Code)
	var resp PhasesResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	require.Len(t, resp.Phases, 3)
	assert.Equal(t, "Preparation", resp.Phases[0].Name)
	assert.Equal(t, "Verification", resp.Phases[2].Name)
	assert.True(t, resp.Phases[2].Locked)
	assert.Equal(t, 0, svc.refreshes, "plain GET must not rebuild")
}

func TestPhases_RefreshQuery(t *testing.T) {
	svc := newFakeService()
	router := setupTestRouter(svc, nil)
	w := do(router, "GET", "/v1/phases?refresh=true")

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, 1, svc.refreshes)
}

func TestPhases_LoadError(t *testing.T) {
	svc := newFakeService()
	svc.refreshErr = errors.New("tasks.yaml: bad indentation")
	router := setupTestRouter(svc, nil)
	w := do(router, "GET", "/v1/phases")

	assert.Equal(t, http.StatusInternalServerError, w.Code)
	assert.Contains(t, w.Body.String(), "bad indentation")
}

func TestGetShift(t *testing.T) {
	router := setupTestRouter(newFakeService(), nil)
	w := do(router, "GET", "/v1/shift")

	require.Equal(t, http.StatusOK, w.Code)
	var resp ShiftResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	require.NotNil(t, resp.Plan)
	require.Len(t, resp.Plan.Proposals, 1)
	assert.Equal(t, "T2", resp.Plan.Proposals[0].TaskID)
	assert.Equal(t, 3, resp.Plan.Proposals[0].ShiftDays)
}

func TestGetShift_NoPlanIsNull(t *testing.T) {
	svc := newFakeService()
	svc.plan = nil
	router := setupTestRouter(svc, nil)
	w := do(router, "GET", "/v1/shift")

	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"plan":null`)
}

func TestApplyShift(t *testing.T) {
	svc := newFakeService()
	router := setupTestRouter(svc, nil)

	w := do(router, "POST", "/v1/shift/apply")
	require.Equal(t, http.StatusOK, w.Code)
	var resp ApplyResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	require.Len(t, resp.Updates, 1)
	assert.Equal(t, "T2", resp.Updates[0].TaskID)
	assert.True(t, resp.Updates[0].NewDueDate.Equal(testNow.AddDate(0, 0, 8)))

	// Nothing left to apply.
	w = do(router, "POST", "/v1/shift/apply")
	assert.Equal(t, http.StatusConflict, w.Code)
}

func TestApplyShift_Collision(t *testing.T) {
	svc := newFakeService()
	svc.applyErr = core.ErrPlanCollision
	router := setupTestRouter(svc, nil)

	w := do(router, "POST", "/v1/shift/apply")
	assert.Equal(t, http.StatusConflict, w.Code)
}

func TestApplyShift_WriteFailure(t *testing.T) {
	svc := newFakeService()
	svc.applyErr = errors.New("persisting shift: read-only file system")
	router := setupTestRouter(svc, nil)

	w := do(router, "POST", "/v1/shift/apply")
	assert.Equal(t, http.StatusInternalServerError, w.Code)
	assert.Contains(t, w.Body.String(), "read-only")
}

func TestDiscardShift(t *testing.T) {
	router := setupTestRouter(newFakeService(), nil)

	w := do(router, "DELETE", "/v1/shift")
	assert.Equal(t, http.StatusNoContent, w.Code)

	w = do(router, "DELETE", "/v1/shift")
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestExpandPhase(t *testing.T) {
	router := setupTestRouter(newFakeService(), nil)

	w := do(router, "POST", "/v1/phases/execution/expand")
	require.Equal(t, http.StatusOK, w.Code)
	var resp ExpandResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.True(t, resp.Expanded)
	require.NotNil(t, resp.Detail)
	assert.Len(t, resp.Detail.Tasks, 1)
}

func TestExpandPhase_LockedIsConflict(t *testing.T) {
	router := setupTestRouter(newFakeService(), nil)

	w := do(router, "POST", "/v1/phases/2/expand")
	require.Equal(t, http.StatusConflict, w.Code)
	var resp ExpandResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.False(t, resp.Expanded)
	assert.Equal(t, "Verification", resp.Phase)
	assert.Contains(t, resp.Reason, "0%")
}

func TestExpandPhase_UnknownPhase(t *testing.T) {
	router := setupTestRouter(newFakeService(), nil)

	w := do(router, "POST", "/v1/phases/demolition/expand")
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestAlerts(t *testing.T) {
	router := setupTestRouter(newFakeService(), nil)
	w := do(router, "GET", "/v1/alerts")

	require.Equal(t, http.StatusOK, w.Code)
	var resp AlertsResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	require.NotEmpty(t, resp.Alerts)
	assert.Equal(t, observability.ConditionPhaseLocked, resp.Alerts[0].Condition)
}

func TestMetrics_OnlyWithGatherer(t *testing.T) {
	w := do(setupTestRouter(newFakeService(), nil), "GET", "/metrics")
	assert.Equal(t, http.StatusNotFound, w.Code)

	reg := prometheus.NewRegistry()
	collectors := observability.NewCollectors(reg)
	collectors.ObserveSchedule(newFakeService().sched)

	w = do(setupTestRouter(newFakeService(), reg), "GET", "/metrics")
	require.Equal(t, http.StatusOK, w.Code)
	assert.True(t, strings.Contains(w.Body.String(), "bph_rebuilds_total 1"))
}
