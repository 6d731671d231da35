package cli

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/spf13/cobra"
	"github.com/valter-silva-au/buildphase/internal/core"
	"github.com/valter-silva-au/buildphase/internal/integration"
	"github.com/valter-silva-au/buildphase/pkg/models"
	"go.uber.org/zap"
)

type dashboardModel struct {
	service core.ScheduleService
	ctx     context.Context

	cursor   int
	expanded map[models.PhaseID]bool
	width    int
	height   int

	// Data.
	sched models.Schedule
	plan  *models.AutoShiftPlan

	// State.
	loading    bool
	confirming bool
	notice     string
	err        error
}

// scheduleLoadedMsg carries a rebuilt schedule back to the model.
type scheduleLoadedMsg struct {
	sched models.Schedule
	plan  *models.AutoShiftPlan
	err   error
}

// shiftAppliedMsg reports the outcome of applying the pending plan.
type shiftAppliedMsg struct {
	updates []models.DueDateUpdate
	sched   models.Schedule
	plan    *models.AutoShiftPlan
	err     error
}

// dataChangedMsg is sent by the file watcher when the data files change.
type dataChangedMsg struct {
	files []string
}

// Style definitions.
var (
	titleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("230")).
			Background(lipgloss.Color("62")).
			Padding(0, 1)

	panelStyle = lipgloss.NewStyle().
			BorderStyle(lipgloss.RoundedBorder()).
			BorderForeground(lipgloss.Color("240")).
			Padding(0, 1)

	activePanelStyle = lipgloss.NewStyle().
				BorderStyle(lipgloss.RoundedBorder()).
				BorderForeground(lipgloss.Color("62")).
				Padding(0, 1)

	lockedPanelStyle = lipgloss.NewStyle().
				BorderStyle(lipgloss.RoundedBorder()).
				BorderForeground(lipgloss.Color("238")).
				Foreground(lipgloss.Color("244")).
				Padding(0, 1)

	headerStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("62"))

	barFilled = lipgloss.NewStyle().Foreground(lipgloss.Color("46"))
	barEmpty  = lipgloss.NewStyle().Foreground(lipgloss.Color("238"))

	badgeDelayed = lipgloss.NewStyle().Foreground(lipgloss.Color("196")).Bold(true)
	badgeWeather = lipgloss.NewStyle().Foreground(lipgloss.Color("39"))
	badgeCrew    = lipgloss.NewStyle().Foreground(lipgloss.Color("214"))
	badgeLocked  = lipgloss.NewStyle().Foreground(lipgloss.Color("245"))

	statusDone       = lipgloss.NewStyle().Foreground(lipgloss.Color("46"))
	statusInProgress = lipgloss.NewStyle().Foreground(lipgloss.Color("226"))
	statusPending    = lipgloss.NewStyle().Foreground(lipgloss.Color("245"))

	noticeStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("214"))
	confirmStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("230")).Background(lipgloss.Color("124")).Padding(0, 1)
	helpStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("241"))
)

func newDashboardModel(ctx context.Context, service core.ScheduleService) dashboardModel {
	return dashboardModel{
		service:  service,
		ctx:      ctx,
		expanded: make(map[models.PhaseID]bool),
		loading:  true,
	}
}

func (m dashboardModel) Init() tea.Cmd {
	return m.loadSchedule
}

func (m dashboardModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		return m.handleKey(msg)

	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		return m, nil

	case scheduleLoadedMsg:
		m.loading = false
		if msg.err != nil {
			m.err = msg.err
			return m, nil
		}
		m.sched = msg.sched
		m.plan = msg.plan
		m.err = nil
		// Collapse phases that became locked since the last rebuild.
		for id := range m.expanded {
			if m.sched.Phase(id).Locked {
				delete(m.expanded, id)
			}
		}
		return m, nil

	case shiftAppliedMsg:
		m.loading = false
		if msg.err != nil && msg.updates == nil {
			m.notice = fmt.Sprintf("Shift not applied: %s", msg.err)
			return m, m.loadSchedule
		}
		m.notice = fmt.Sprintf("Updated %d due date(s).", len(msg.updates))
		m.sched = msg.sched
		m.plan = msg.plan
		return m, nil

	case dataChangedMsg:
		m.notice = fmt.Sprintf("Reloaded after changes to %s.", strings.Join(msg.files, ", "))
		return m, m.loadSchedule
	}

	return m, nil
}

func (m dashboardModel) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	key := msg.String()

	if m.confirming {
		switch key {
		case "y", "Y":
			m.confirming = false
			m.loading = true
			return m, m.applyShift
		case "ctrl+c":
			return m, tea.Quit
		default:
			m.confirming = false
			m.notice = "Shift not applied."
			return m, nil
		}
	}

	switch key {
	case "q", "esc", "ctrl+c":
		return m, tea.Quit
	case "up", "k":
		if m.cursor > 0 {
			m.cursor--
		}
	case "down", "j":
		if m.cursor < models.PhaseCount-1 {
			m.cursor++
		}
	case "enter", " ":
		id := models.PhaseID(m.cursor)
		if m.expanded[id] {
			delete(m.expanded, id)
			return m, nil
		}
		ok, reason := m.service.ExpandPhase(id)
		if !ok {
			m.notice = fmt.Sprintf("%s is locked: %s", id, reason)
			return m, nil
		}
		m.expanded[id] = true
		m.notice = ""
		if sel := m.sched.Phase(id); len(sel.Tasks) > 0 {
			m.service.SelectTask(sel.Tasks[0])
		}
	case "r":
		m.loading = true
		m.notice = ""
		return m, m.loadSchedule
	case "a":
		if m.plan.IsEmpty() {
			m.notice = "No shift proposed."
			return m, nil
		}
		m.confirming = true
	case "d":
		if m.service.DiscardShift() {
			m.plan = nil
			m.notice = "Shift plan discarded."
		} else {
			m.notice = "No shift proposed."
		}
	}
	return m, nil
}

func (m dashboardModel) loadSchedule() tea.Msg {
	sched, err := m.service.Refresh(m.ctx)
	if err != nil {
		return scheduleLoadedMsg{err: err}
	}
	return scheduleLoadedMsg{sched: sched, plan: m.service.ProposedShift()}
}

func (m dashboardModel) applyShift() tea.Msg {
	updates, err := m.service.ApplyShift(m.ctx)
	msg := shiftAppliedMsg{updates: updates, err: err}
	if err == nil || updates != nil {
		msg.sched, _ = m.service.Current(m.ctx)
		msg.plan = m.service.ProposedShift()
	}
	return msg
}

func (m dashboardModel) View() string {
	if m.width == 0 {
		return "Loading..."
	}

	title := titleStyle.Render(" bph Schedule ")
	help := helpStyle.Render("up/down: select | enter: expand | a: apply shift | d: discard | r: refresh | q: quit")

	if m.loading && len(m.sched.Phases) == 0 {
		return fmt.Sprintf("%s\n\n  Loading schedule...\n\n%s", title, help)
	}
	if m.err != nil {
		return fmt.Sprintf("%s\n\n  Error: %s\n\n%s", title, m.err, help)
	}

	panelWidth := m.width - 6
	if panelWidth < 30 {
		panelWidth = 30
	}

	panels := make([]string, 0, len(m.sched.Phases)+1)
	for i, p := range m.sched.Phases {
		panels = append(panels, m.applyPanelStyle(i, p, m.renderPhase(p), panelWidth))
	}
	if !m.plan.IsEmpty() {
		panels = append(panels, panelStyle.Width(panelWidth).Render(m.renderPlan()))
	}
	body := lipgloss.JoinVertical(lipgloss.Left, panels...)

	footer := help
	switch {
	case m.confirming:
		footer = confirmStyle.Render(fmt.Sprintf("Apply %d due date change(s)? y/N", len(m.plan.Proposals)))
	case m.notice != "":
		footer = noticeStyle.Render(m.notice) + "\n" + help
	}

	return fmt.Sprintf("%s  %s\n\n%s\n\n%s", title, m.sched.Now.Format("Mon Jan 2 2006"), body, footer)
}

func (m dashboardModel) applyPanelStyle(index int, p models.Phase, content string, width int) string {
	style := panelStyle
	switch {
	case m.cursor == index:
		style = activePanelStyle
	case p.Locked:
		style = lockedPanelStyle
	}
	return style.Width(width).Render(content)
}

func (m dashboardModel) renderPhase(p models.Phase) string {
	var b strings.Builder
	b.WriteString(headerStyle.Render(p.Name))
	b.WriteString(fmt.Sprintf("  %s %3d%%  %s", styledBar(p.Progress, 20), p.Progress, formatRange(p.Range)))
	if p.Locked {
		b.WriteString("  " + badgeLocked.Render("LOCKED"))
	}
	if p.Delayed {
		b.WriteString("  " + badgeDelayed.Render(fmt.Sprintf("+%dd", p.DelayDays)))
	}

	if p.Locked {
		b.WriteString("\n  " + badgeLocked.Render(p.LockReason))
		return b.String()
	}
	if len(p.SubTimelines) == 0 {
		b.WriteString("\n  No tasks.")
		return b.String()
	}

	for _, st := range p.SubTimelines {
		b.WriteString(fmt.Sprintf("\n  %-15s %s %3d%%  %s%s",
			st.Label, styledBar(st.Progress, 10), st.Progress, formatRange(st.Range), badges(st)))
		if m.expanded[p.ID] {
			for _, t := range st.Tasks {
				b.WriteString("\n      " + styleForStatus(t.Status).Render(fmt.Sprintf("%-12s %-32s %s", t.Status, t.Title, formatDue(t.DueDate))))
			}
		}
	}
	return b.String()
}

func (m dashboardModel) renderPlan() string {
	var b strings.Builder
	b.WriteString(headerStyle.Render(fmt.Sprintf("Proposed shift (%d)", len(m.plan.Proposals))))
	for _, p := range m.plan.Proposals {
		b.WriteString(fmt.Sprintf("\n  %-10s %s -> %s  +%dd  (%s)",
			p.TaskID, p.OriginalDueDate.Format("Jan 2"), p.NewDueDate.Format("Jan 2"), p.ShiftDays, p.CausedBy))
	}
	if ids := m.plan.Collisions(); len(ids) > 0 {
		b.WriteString("\n  " + noticeStyle.Render("Multiple proposals for "+strings.Join(ids, ", ")))
	}
	return b.String()
}

func badges(st models.SubTimeline) string {
	var out []string
	if st.Delayed {
		out = append(out, badgeDelayed.Render(fmt.Sprintf("delayed %dd", st.DelayDays)))
	}
	if st.ConflictStatus.HasWeather() {
		out = append(out, badgeWeather.Render("weather"))
	}
	if st.ConflictStatus.HasGPS() {
		out = append(out, badgeCrew.Render("no crew"))
	}
	if len(out) == 0 {
		return ""
	}
	return "  " + strings.Join(out, " ")
}

func styledBar(pct, width int) string {
	if pct < 0 {
		pct = 0
	}
	if pct > 100 {
		pct = 100
	}
	filled := pct * width / 100
	return barFilled.Render(strings.Repeat("█", filled)) + barEmpty.Render(strings.Repeat("░", width-filled))
}

func styleForStatus(status models.TaskStatus) lipgloss.Style {
	switch status {
	case models.StatusCompleted:
		return statusDone
	case models.StatusInProgress:
		return statusInProgress
	default:
		return statusPending
	}
}

var dashboardCmd = &cobra.Command{
	Use:   "dashboard",
	Short: "Interactive TUI dashboard for the phased schedule",
	Long: `Launch an interactive terminal dashboard showing every phase with its
sub-timelines, progress bars and conflict badges.

The dashboard reloads when files in the data directory change. Expand a phase
with enter; locked phases show why they are locked. Press a to review and
apply a proposed shift.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		if Service == nil {
			return fmt.Errorf("schedule service not initialized")
		}

		ctx, cancel := context.WithCancel(cmd.Context())
		defer cancel()

		p := tea.NewProgram(newDashboardModel(ctx, Service), tea.WithAltScreen(), tea.WithContext(ctx))

		if DataDir != "" {
			w := integration.NewWatcher(DataDir, watchDebounce(), func(files []string) {
				p.Send(dataChangedMsg{files: files})
			}, logger())
			go func() {
				if err := w.Run(ctx); err != nil {
					logger().Warn("dashboard file watcher stopped", zap.Error(err))
				}
			}()
		}

		_, err := p.Run()
		if errors.Is(err, tea.ErrProgramKilled) && ctx.Err() != nil {
			return nil
		}
		return err
	},
}

func watchDebounce() time.Duration {
	if Config == nil {
		return integration.DefaultDebounce
	}
	return time.Duration(Config.WatchDebounceMS) * time.Millisecond
}

func init() {
	rootCmd.AddCommand(dashboardCmd)
}
