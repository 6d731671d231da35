package models

import "time"

// AlertSeverity grades a construction weather alert.
type AlertSeverity string

const (
	AlertWarning AlertSeverity = "warning"
	AlertDanger  AlertSeverity = "danger"
)

// ConstructionAlert is a weather alert relevant to site work. Only danger
// alerts produce scheduling conflicts.
type ConstructionAlert struct {
	Type     string        `yaml:"type" json:"type"`
	Severity AlertSeverity `yaml:"severity" json:"severity" validate:"required,oneof=warning danger"`
	Message  string        `yaml:"message" json:"message"`
}

// ForecastDay groups the alerts forecast for one calendar date.
type ForecastDay struct {
	Date   time.Time           `yaml:"date" json:"date" validate:"required"`
	Alerts []ConstructionAlert `yaml:"alerts" json:"alerts" validate:"dive"`
}

// CrewLocation is a point-in-time presence snapshot for one crew member.
type CrewLocation struct {
	MemberID string     `yaml:"member_id" json:"member_id" validate:"required"`
	Name     string     `yaml:"name" json:"name"`
	IsOnSite bool       `yaml:"is_on_site" json:"is_on_site"`
	LastSeen *time.Time `yaml:"last_seen,omitempty" json:"last_seen,omitempty"`
}

// Material is a line of the project's material list. Only Item drives
// scheduling; quantity and unit are carried for display.
type Material struct {
	Item     string  `yaml:"item" json:"item" validate:"required"`
	Quantity float64 `yaml:"quantity" json:"quantity" validate:"gte=0"`
	Unit     string  `yaml:"unit" json:"unit"`
}
