package models

// ShiftPolicy decides what applying a plan does when one task received more
// than one proposal.
type ShiftPolicy string

const (
	// ShiftPolicyMax applies the largest proposed shift per task.
	ShiftPolicyMax ShiftPolicy = "max"
	// ShiftPolicyReject refuses to apply a plan containing collisions.
	ShiftPolicyReject ShiftPolicy = "reject"
)

// KeywordConfig overrides the classifier keyword tables. An empty slice keeps
// the built-in set.
type KeywordConfig struct {
	Preparation  []string `yaml:"preparation,omitempty" mapstructure:"preparation"`
	Execution    []string `yaml:"execution,omitempty" mapstructure:"execution"`
	Verification []string `yaml:"verification,omitempty" mapstructure:"verification"`
	Checkpoint   []string `yaml:"checkpoint,omitempty" mapstructure:"checkpoint"`

	// Materials maps a category name to its keyword list.
	Materials map[MaterialCategory][]string `yaml:"materials,omitempty" mapstructure:"materials"`
}

// SlackConfig holds the Slack webhook used for alert notifications.
type SlackConfig struct {
	WebhookURL string `yaml:"webhook_url" mapstructure:"webhook_url"`
}

// NotificationConfig controls outbound alert notifications.
type NotificationConfig struct {
	Enabled bool        `yaml:"enabled" mapstructure:"enabled"`
	Slack   SlackConfig `yaml:"slack" mapstructure:"slack"`
}

// GlobalConfig holds project-wide settings read from .bphconfig via Viper.
type GlobalConfig struct {
	DataDir         string             `yaml:"data_dir" mapstructure:"data_dir"`
	ShiftPolicy     ShiftPolicy        `yaml:"shift_policy" mapstructure:"shift_policy"`
	WatchDebounceMS int                `yaml:"watch_debounce_ms" mapstructure:"watch_debounce_ms"`
	HTTPAddr        string             `yaml:"http_addr" mapstructure:"http_addr"`
	LogLevel        string             `yaml:"log_level" mapstructure:"log_level"`
	Keywords        KeywordConfig      `yaml:"keywords" mapstructure:"keywords"`
	Notifications   NotificationConfig `yaml:"notifications" mapstructure:"notifications"`
}
