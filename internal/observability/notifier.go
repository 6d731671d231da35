package observability

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/valter-silva-au/buildphase/pkg/models"
)

// Notifier sends alert notifications to external channels.
type Notifier interface {
	Notify(ctx context.Context, alerts []Alert) error
}

// slackNotifier posts one message per batch of alerts to a Slack webhook.
type slackNotifier struct {
	webhookURL string
	client     *http.Client
}

// NewSlackNotifier creates a Notifier that sends alerts to the given Slack webhook URL.
func NewSlackNotifier(webhookURL string) Notifier {
	return &slackNotifier{
		webhookURL: webhookURL,
		client:     &http.Client{Timeout: 10 * time.Second},
	}
}

type slackMessage struct {
	Text   string       `json:"text"`
	Blocks []slackBlock `json:"blocks"`
}

type slackBlock struct {
	Type     string      `json:"type"`
	Text     *slackText  `json:"text,omitempty"`
	Elements []slackText `json:"elements,omitempty"`
}

type slackText struct {
	Type string `json:"type"`
	Text string `json:"text"`
}

// Notify posts the alerts as a single message. An empty batch sends nothing.
func (s *slackNotifier) Notify(ctx context.Context, alerts []Alert) error {
	if len(alerts) == 0 {
		return nil
	}

	body, err := json.Marshal(buildSlackMessage(alerts))
	if err != nil {
		return fmt.Errorf("encoding slack message: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.webhookURL, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("building slack request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := s.client.Do(req)
	if err != nil {
		return fmt.Errorf("posting %d alert(s) to slack: %w", len(alerts), err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("slack webhook returned status %d", resp.StatusCode)
	}
	return nil
}

// phaseAlerts is the slice of a batch that belongs to one phase.
type phaseAlerts struct {
	phase  string
	alerts []Alert
}

// groupByPhase buckets alerts by phase in schedule order. Alerts without a
// known phase land in a trailing "Schedule" group. Order within a group is
// kept.
func groupByPhase(alerts []Alert) []phaseAlerts {
	var groups [models.PhaseCount + 1]phaseAlerts
	for i, id := range models.AllPhases {
		groups[i].phase = id.String()
	}
	groups[models.PhaseCount].phase = "Schedule"

	for _, a := range alerts {
		idx := models.PhaseCount
		if id, err := models.ParsePhaseID(a.Phase); err == nil {
			idx = int(id)
		}
		groups[idx].alerts = append(groups[idx].alerts, a)
	}

	out := make([]phaseAlerts, 0, len(groups))
	for _, g := range groups {
		if len(g.alerts) > 0 {
			out = append(out, g)
		}
	}
	return out
}

// severitySummary renders "2 high, 1 low" in severity order.
func severitySummary(alerts []Alert) string {
	counts := make(map[AlertSeverity]int)
	for _, a := range alerts {
		counts[a.Severity]++
	}
	var parts []string
	for _, sev := range []AlertSeverity{SeverityHigh, SeverityMedium, SeverityLow} {
		if n := counts[sev]; n > 0 {
			parts = append(parts, fmt.Sprintf("%d %s", n, sev))
		}
	}
	return strings.Join(parts, ", ")
}

// buildSlackMessage lays the batch out as a header, a summary line stamped
// with the schedule time, and one section per phase listing its alerts.
func buildSlackMessage(alerts []Alert) slackMessage {
	summary := fmt.Sprintf("%d schedule alert(s): %s", len(alerts), severitySummary(alerts))
	blocks := []slackBlock{
		{Type: "header", Text: &slackText{Type: "plain_text", Text: "Construction schedule alerts"}},
		{Type: "context", Elements: []slackText{{
			Type: "mrkdwn",
			Text: fmt.Sprintf("%s as of %s", summary, alerts[0].TriggeredAt.UTC().Format("2006-01-02 15:04 UTC")),
		}}},
	}

	for i, g := range groupByPhase(alerts) {
		if i > 0 {
			blocks = append(blocks, slackBlock{Type: "divider"})
		}
		var b strings.Builder
		fmt.Fprintf(&b, "*%s*", g.phase)
		for _, a := range g.alerts {
			fmt.Fprintf(&b, "\n%s %s", severityEmoji(a.Severity), a.Message)
		}
		blocks = append(blocks, slackBlock{
			Type: "section",
			Text: &slackText{Type: "mrkdwn", Text: b.String()},
		})
	}

	return slackMessage{Text: summary, Blocks: blocks}
}

func severityEmoji(severity AlertSeverity) string {
	switch severity {
	case SeverityHigh:
		return ":red_circle:"
	case SeverityMedium:
		return ":large_yellow_circle:"
	case SeverityLow:
		return ":large_blue_circle:"
	default:
		return ":grey_question:"
	}
}
