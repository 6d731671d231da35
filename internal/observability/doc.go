// Package observability provides the domain event log, schedule alerting,
// event-derived metrics, Prometheus collectors and Slack notifications for
// buildphase. Events are persisted as JSON Lines and metrics are derived
// on demand from the log.
package observability
