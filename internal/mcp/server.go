// Package mcp provides an MCP (Model Context Protocol) server that exposes
// the construction schedule as MCP tools for AI assistants.
package mcp

import (
	"context"
	"errors"
	"fmt"
	"time"

	gomcp "github.com/modelcontextprotocol/go-sdk/mcp"
	"github.com/valter-silva-au/buildphase/internal/core"
	"github.com/valter-silva-au/buildphase/internal/observability"
	"github.com/valter-silva-au/buildphase/pkg/models"
)

const dateLayout = "2006-01-02"

// Server wraps the schedule service and exposes it as MCP tools.
type Server struct {
	server      *gomcp.Server
	service     core.ScheduleService
	metricsCalc observability.MetricsCalculator
	alertEngine observability.AlertEngine
}

// NewServer creates a new MCP server over the schedule service.
// metricsCalc and alertEngine may be nil if observability is disabled.
func NewServer(service core.ScheduleService, metricsCalc observability.MetricsCalculator, alertEngine observability.AlertEngine, version string) *Server {
	if version == "" {
		version = "dev"
	}

	s := &Server{
		service:     service,
		metricsCalc: metricsCalc,
		alertEngine: alertEngine,
	}

	s.server = gomcp.NewServer(
		&gomcp.Implementation{Name: "bph", Version: version},
		nil,
	)

	s.registerTools()

	return s
}

// Run starts the MCP server on stdio, blocking until the client disconnects
// or the context is cancelled.
func (s *Server) Run(ctx context.Context) error {
	return s.server.Run(ctx, &gomcp.StdioTransport{})
}

// MCPServer returns the underlying mcp.Server for testing purposes.
func (s *Server) MCPServer() *gomcp.Server {
	return s.server
}

// --- Tool input/output types ---

type getPhasesInput struct {
	Refresh bool `json:"refresh,omitempty" jsonschema:"rebuild from the data directory before answering"`
}

type taskOutput struct {
	ID      string `json:"id"`
	Title   string `json:"title"`
	Status  string `json:"status"`
	DueDate string `json:"due_date,omitempty"`
}

type subTimelineOutput struct {
	Key       string       `json:"key"`
	Label     string       `json:"label"`
	Progress  int          `json:"progress"`
	Start     string       `json:"start,omitempty"`
	End       string       `json:"end,omitempty"`
	Delayed   bool         `json:"delayed"`
	DelayDays int          `json:"delay_days"`
	Conflict  string       `json:"conflict"`
	Message   string       `json:"conflict_message,omitempty"`
	Tasks     []taskOutput `json:"tasks,omitempty"`
}

type phaseOutput struct {
	ID                   int                 `json:"id"`
	Name                 string              `json:"name"`
	Progress             int                 `json:"progress"`
	VerificationProgress int                 `json:"verification_progress"`
	Start                string              `json:"start,omitempty"`
	End                  string              `json:"end,omitempty"`
	Locked               bool                `json:"locked"`
	LockReason           string              `json:"lock_reason,omitempty"`
	Delayed              bool                `json:"delayed"`
	DelayDays            int                 `json:"delay_days"`
	SubTimelines         []subTimelineOutput `json:"sub_timelines"`
}

type getPhasesOutput struct {
	Now    string        `json:"now"`
	Phases []phaseOutput `json:"phases"`
}

type getProposedShiftInput struct{}

type proposalOutput struct {
	TaskID          string `json:"task_id"`
	OriginalDueDate string `json:"original_due_date"`
	NewDueDate      string `json:"new_due_date"`
	ShiftDays       int    `json:"shift_days"`
	CausedBy        string `json:"caused_by"`
}

type shiftOutput struct {
	Pending    bool             `json:"pending"`
	Proposals  []proposalOutput `json:"proposals"`
	Collisions []string         `json:"collisions,omitempty"`
}

type applyShiftInput struct {
	Confirm bool `json:"confirm" jsonschema:"required,must be true; applying writes new due dates to the task store"`
}

type updateOutput struct {
	TaskID     string `json:"task_id"`
	NewDueDate string `json:"new_due_date"`
}

type applyShiftOutput struct {
	Updates []updateOutput `json:"updates"`
	Count   int            `json:"count"`
}

type discardShiftInput struct{}

type discardShiftOutput struct {
	Discarded bool   `json:"discarded"`
	Message   string `json:"message"`
}

type expandPhaseInput struct {
	Phase string `json:"phase" jsonschema:"required,phase name (preparation, execution, verification) or index 0-2"`
}

type expandPhaseOutput struct {
	Expanded bool         `json:"expanded"`
	Reason   string       `json:"reason,omitempty"`
	Phase    *phaseOutput `json:"phase,omitempty"`
}

type getMetricsInput struct {
	Since string `json:"since,omitempty" jsonschema:"time window for metrics (e.g. 7d, 30d, 24h). Defaults to 7d."`
}

type metricsOutput struct {
	Rebuilds          int            `json:"rebuilds"`
	PlansProposed     int            `json:"plans_proposed"`
	ProposalsTotal    int            `json:"proposals_total"`
	ShiftsApplied     int            `json:"shifts_applied"`
	TasksShifted      int            `json:"tasks_shifted"`
	PlansDiscarded    int            `json:"plans_discarded"`
	ExpandRejections  int            `json:"expand_rejections"`
	RejectionsByPhase map[string]int `json:"rejections_by_phase"`
	EventCount        int            `json:"event_count"`
	OldestEvent       string         `json:"oldest_event,omitempty"`
	NewestEvent       string         `json:"newest_event,omitempty"`
}

type getAlertsInput struct{}

type alertOutput struct {
	ID          string `json:"id"`
	Condition   string `json:"condition"`
	Severity    string `json:"severity"`
	Message     string `json:"message"`
	TriggeredAt string `json:"triggered_at"`
}

type getAlertsOutput struct {
	Alerts []alertOutput `json:"alerts"`
	Count  int           `json:"count"`
}

// --- Tool registration ---

func (s *Server) registerTools() {
	gomcp.AddTool(s.server, &gomcp.Tool{
		Name:        "get_phases",
		Description: "Get the phased construction schedule: Preparation, Execution and Verification with sub-timelines, progress, delays, conflicts and lock state.",
	}, s.handleGetPhases)

	gomcp.AddTool(s.server, &gomcp.Tool{
		Name:        "get_proposed_shift",
		Description: "Get the pending auto-shift plan that moves downstream due dates forward because of delayed work.",
	}, s.handleGetProposedShift)

	gomcp.AddTool(s.server, &gomcp.Tool{
		Name:        "apply_shift",
		Description: "Apply the pending auto-shift plan, writing every new due date to the task store. Requires confirm=true.",
	}, s.handleApplyShift)

	gomcp.AddTool(s.server, &gomcp.Tool{
		Name:        "discard_shift",
		Description: "Discard the pending auto-shift plan without changing any task.",
	}, s.handleDiscardShift)

	gomcp.AddTool(s.server, &gomcp.Tool{
		Name:        "expand_phase",
		Description: "Expand a phase to list its tasks. Locked phases are refused with the reason they are locked.",
	}, s.handleExpandPhase)

	gomcp.AddTool(s.server, &gomcp.Tool{
		Name:        "get_metrics",
		Description: "Get aggregated scheduling metrics from the event log: rebuilds, proposed and applied shifts, rejected expansions.",
	}, s.handleGetMetrics)

	gomcp.AddTool(s.server, &gomcp.Tool{
		Name:        "get_alerts",
		Description: "Evaluate and return active alerts (delayed sub-timelines, weather and crew conflicts, locked phases with pending work).",
	}, s.handleGetAlerts)
}

// --- Tool handlers ---

func (s *Server) handleGetPhases(ctx context.Context, _ *gomcp.CallToolRequest, input getPhasesInput) (*gomcp.CallToolResult, getPhasesOutput, error) {
	var (
		sched models.Schedule
		err   error
	)
	if input.Refresh {
		sched, err = s.service.Refresh(ctx)
	} else {
		sched, err = s.service.Current(ctx)
	}
	if err != nil {
		return errorResult(fmt.Sprintf("building schedule: %s", err)), getPhasesOutput{}, nil
	}

	out := getPhasesOutput{
		Now:    sched.Now.Format(dateLayout),
		Phases: make([]phaseOutput, len(sched.Phases)),
	}
	for i, p := range sched.Phases {
		out.Phases[i] = phaseToOutput(p, false)
	}
	return nil, out, nil
}

func (s *Server) handleGetProposedShift(ctx context.Context, _ *gomcp.CallToolRequest, _ getProposedShiftInput) (*gomcp.CallToolResult, shiftOutput, error) {
	if _, err := s.service.Current(ctx); err != nil {
		return errorResult(fmt.Sprintf("building schedule: %s", err)), shiftOutput{}, nil
	}
	return nil, planToOutput(s.service.ProposedShift()), nil
}

func (s *Server) handleApplyShift(ctx context.Context, _ *gomcp.CallToolRequest, input applyShiftInput) (*gomcp.CallToolResult, applyShiftOutput, error) {
	if !input.Confirm {
		return errorResult("confirm must be true to apply the shift plan"), applyShiftOutput{}, nil
	}

	updates, err := s.service.ApplyShift(ctx)
	if err != nil && updates == nil {
		if errors.Is(err, core.ErrNoPlan) {
			return errorResult("no shift plan is pending"), applyShiftOutput{}, nil
		}
		return errorResult(fmt.Sprintf("applying shift: %s", err)), applyShiftOutput{}, nil
	}

	out := applyShiftOutput{
		Updates: make([]updateOutput, len(updates)),
		Count:   len(updates),
	}
	for i, u := range updates {
		out.Updates[i] = updateOutput{TaskID: u.TaskID, NewDueDate: u.NewDueDate.Format(dateLayout)}
	}
	return nil, out, nil
}

func (s *Server) handleDiscardShift(_ context.Context, _ *gomcp.CallToolRequest, _ discardShiftInput) (*gomcp.CallToolResult, discardShiftOutput, error) {
	if s.service.DiscardShift() {
		return nil, discardShiftOutput{Discarded: true, Message: "shift plan discarded"}, nil
	}
	return nil, discardShiftOutput{Message: "no shift plan is pending"}, nil
}

func (s *Server) handleExpandPhase(ctx context.Context, _ *gomcp.CallToolRequest, input expandPhaseInput) (*gomcp.CallToolResult, expandPhaseOutput, error) {
	if input.Phase == "" {
		return errorResult("phase is required"), expandPhaseOutput{}, nil
	}
	id, err := models.ParsePhaseID(input.Phase)
	if err != nil {
		return errorResult(err.Error()), expandPhaseOutput{}, nil
	}
	sched, err := s.service.Current(ctx)
	if err != nil {
		return errorResult(fmt.Sprintf("building schedule: %s", err)), expandPhaseOutput{}, nil
	}

	// A locked phase is a normal answer, not a tool error.
	ok, reason := s.service.ExpandPhase(id)
	if !ok {
		return nil, expandPhaseOutput{Reason: reason}, nil
	}
	p := phaseToOutput(sched.Phase(id), true)
	return nil, expandPhaseOutput{Expanded: true, Phase: &p}, nil
}

func (s *Server) handleGetMetrics(_ context.Context, _ *gomcp.CallToolRequest, input getMetricsInput) (*gomcp.CallToolResult, metricsOutput, error) {
	if s.metricsCalc == nil {
		return errorResult("metrics calculator not available (observability may be disabled)"), emptyMetricsOutput(), nil
	}

	sinceStr := input.Since
	if sinceStr == "" {
		sinceStr = "7d"
	}

	sinceTime, err := parseSince(sinceStr)
	if err != nil {
		return errorResult(fmt.Sprintf("parsing since duration: %s", err)), emptyMetricsOutput(), nil
	}

	metrics, err := s.metricsCalc.Calculate(sinceTime)
	if err != nil {
		return errorResult(fmt.Sprintf("calculating metrics: %s", err)), emptyMetricsOutput(), nil
	}

	out := metricsOutput{
		Rebuilds:          metrics.Rebuilds,
		PlansProposed:     metrics.PlansProposed,
		ProposalsTotal:    metrics.ProposalsTotal,
		ShiftsApplied:     metrics.ShiftsApplied,
		TasksShifted:      metrics.TasksShifted,
		PlansDiscarded:    metrics.PlansDiscarded,
		ExpandRejections:  metrics.ExpandRejections,
		RejectionsByPhase: metrics.RejectionsByPhase,
		EventCount:        metrics.EventCount,
	}
	if out.RejectionsByPhase == nil {
		out.RejectionsByPhase = make(map[string]int)
	}
	if metrics.OldestEvent != nil {
		out.OldestEvent = metrics.OldestEvent.Format(time.RFC3339)
	}
	if metrics.NewestEvent != nil {
		out.NewestEvent = metrics.NewestEvent.Format(time.RFC3339)
	}

	return nil, out, nil
}

func (s *Server) handleGetAlerts(ctx context.Context, _ *gomcp.CallToolRequest, _ getAlertsInput) (*gomcp.CallToolResult, getAlertsOutput, error) {
	if s.alertEngine == nil {
		return errorResult("alert engine not available (observability may be disabled)"), getAlertsOutput{}, nil
	}

	sched, err := s.service.Current(ctx)
	if err != nil {
		return errorResult(fmt.Sprintf("building schedule: %s", err)), getAlertsOutput{}, nil
	}
	alerts := s.alertEngine.Evaluate(sched)

	out := getAlertsOutput{
		Alerts: make([]alertOutput, len(alerts)),
		Count:  len(alerts),
	}
	for i, a := range alerts {
		out.Alerts[i] = alertOutput{
			ID:          a.ID,
			Condition:   a.Condition,
			Severity:    string(a.Severity),
			Message:     a.Message,
			TriggeredAt: a.TriggeredAt.Format(time.RFC3339),
		}
	}

	return nil, out, nil
}

// --- Helpers ---

func phaseToOutput(p models.Phase, withTasks bool) phaseOutput {
	out := phaseOutput{
		ID:                   int(p.ID),
		Name:                 p.Name,
		Progress:             p.Progress,
		VerificationProgress: p.VerificationProgress,
		Locked:               p.Locked,
		LockReason:           p.LockReason,
		Delayed:              p.Delayed,
		DelayDays:            p.DelayDays,
		SubTimelines:         make([]subTimelineOutput, len(p.SubTimelines)),
	}
	out.Start, out.End = formatRange(p.Range)
	for i, st := range p.SubTimelines {
		so := subTimelineOutput{
			Key:       st.Key,
			Label:     st.Label,
			Progress:  st.Progress,
			Delayed:   st.Delayed,
			DelayDays: st.DelayDays,
			Conflict:  string(st.ConflictStatus),
			Message:   st.ConflictMessage,
		}
		so.Start, so.End = formatRange(st.Range)
		if withTasks {
			so.Tasks = make([]taskOutput, len(st.Tasks))
			for j, t := range st.Tasks {
				so.Tasks[j] = taskToOutput(t)
			}
		}
		out.SubTimelines[i] = so
	}
	return out
}

func taskToOutput(t models.Task) taskOutput {
	out := taskOutput{
		ID:     t.ID,
		Title:  t.Title,
		Status: string(t.Status),
	}
	if t.HasDueDate() {
		out.DueDate = t.DueDate.Format(dateLayout)
	}
	return out
}

func planToOutput(plan *models.AutoShiftPlan) shiftOutput {
	if plan.IsEmpty() {
		return shiftOutput{Proposals: []proposalOutput{}}
	}
	out := shiftOutput{
		Pending:    true,
		Proposals:  make([]proposalOutput, len(plan.Proposals)),
		Collisions: plan.Collisions(),
	}
	for i, p := range plan.Proposals {
		out.Proposals[i] = proposalOutput{
			TaskID:          p.TaskID,
			OriginalDueDate: p.OriginalDueDate.Format(dateLayout),
			NewDueDate:      p.NewDueDate.Format(dateLayout),
			ShiftDays:       p.ShiftDays,
			CausedBy:        p.CausedBy,
		}
	}
	return out
}

func formatRange(r models.DateRange) (string, string) {
	if r.IsEmpty() {
		return "", ""
	}
	return r.Start.Format(dateLayout), r.End.Format(dateLayout)
}

func emptyMetricsOutput() metricsOutput {
	return metricsOutput{
		RejectionsByPhase: make(map[string]int),
	}
}

func errorResult(msg string) *gomcp.CallToolResult {
	return &gomcp.CallToolResult{
		Content: []gomcp.Content{&gomcp.TextContent{Text: msg}},
		IsError: true,
	}
}

// parseSince parses a human-friendly duration string like "7d", "30d", or "24h"
// into the corresponding time in the past.
func parseSince(s string) (time.Time, error) {
	now := time.Now().UTC()

	if len(s) < 2 {
		return time.Time{}, fmt.Errorf("invalid duration %q", s)
	}

	suffix := s[len(s)-1]
	numStr := s[:len(s)-1]
	var num int
	if _, err := fmt.Sscanf(numStr, "%d", &num); err != nil {
		return time.Time{}, fmt.Errorf("invalid duration %q: %w", s, err)
	}

	switch suffix {
	case 'd':
		return now.AddDate(0, 0, -num), nil
	case 'h':
		return now.Add(-time.Duration(num) * time.Hour), nil
	default:
		return time.Time{}, fmt.Errorf("unsupported duration suffix %q (use d or h)", string(suffix))
	}
}
