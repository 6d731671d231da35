// Package core contains the scheduling engine for buildphase: task and
// material classification, sub-timeline and phase derivation, dependency
// locks, conflict detection, delay detection and auto-shift planning, plus
// the project configuration those pieces are tuned by.
package core

import (
	"fmt"
	"strings"

	"github.com/spf13/viper"
	"github.com/valter-silva-au/buildphase/pkg/models"
)

// ConfigFileName is the project configuration file looked up in the base path.
const ConfigFileName = ".bphconfig"

// ConfigurationManager loads and validates the project configuration.
type ConfigurationManager interface {
	LoadGlobalConfig() (*models.GlobalConfig, error)
	ValidateConfig(cfg *models.GlobalConfig) error
}

// viperConfigManager implements ConfigurationManager using Viper for
// reading the YAML configuration file.
type viperConfigManager struct {
	basePath string
}

// NewConfigurationManager creates a ConfigurationManager that reads
// .bphconfig from basePath.
func NewConfigurationManager(basePath string) ConfigurationManager {
	return &viperConfigManager{basePath: basePath}
}

// DefaultGlobalConfig returns a GlobalConfig populated with defaults.
func DefaultGlobalConfig() *models.GlobalConfig {
	return &models.GlobalConfig{
		DataDir:         "data",
		ShiftPolicy:     models.ShiftPolicyMax,
		WatchDebounceMS: 250,
		HTTPAddr:        "127.0.0.1:8085",
		LogLevel:        "info",
	}
}

// LoadGlobalConfig reads .bphconfig from the base path. A missing file yields
// the defaults.
func (cm *viperConfigManager) LoadGlobalConfig() (*models.GlobalConfig, error) {
	cfg := DefaultGlobalConfig()

	v := viper.New()
	v.SetConfigName(ConfigFileName)
	v.SetConfigType("yaml")
	v.AddConfigPath(cm.basePath)

	v.SetDefault("data.dir", cfg.DataDir)
	v.SetDefault("shift.policy", string(cfg.ShiftPolicy))
	v.SetDefault("watch.debounce_ms", cfg.WatchDebounceMS)
	v.SetDefault("http.addr", cfg.HTTPAddr)
	v.SetDefault("log.level", cfg.LogLevel)
	v.SetDefault("notifications.enabled", false)

	v.SetEnvPrefix("BPH")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("reading %s: %w", ConfigFileName, err)
		}
	}

	cfg.DataDir = v.GetString("data.dir")
	cfg.ShiftPolicy = models.ShiftPolicy(v.GetString("shift.policy"))
	cfg.WatchDebounceMS = v.GetInt("watch.debounce_ms")
	cfg.HTTPAddr = v.GetString("http.addr")
	cfg.LogLevel = v.GetString("log.level")
	cfg.Notifications.Enabled = v.GetBool("notifications.enabled")
	cfg.Notifications.Slack.WebhookURL = v.GetString("notifications.slack.webhook_url")

	cfg.Keywords.Preparation = v.GetStringSlice("keywords.preparation")
	cfg.Keywords.Execution = v.GetStringSlice("keywords.execution")
	cfg.Keywords.Verification = v.GetStringSlice("keywords.verification")
	cfg.Keywords.Checkpoint = v.GetStringSlice("keywords.checkpoint")

	// materials.<category>: [keywords...]
	if raw := v.GetStringMap("materials"); len(raw) > 0 {
		cfg.Keywords.Materials = make(map[models.MaterialCategory][]string, len(raw))
		for cat := range raw {
			cfg.Keywords.Materials[models.MaterialCategory(strings.ToLower(cat))] = v.GetStringSlice("materials." + cat)
		}
	}

	return cfg, nil
}

var validShiftPolicies = map[models.ShiftPolicy]bool{
	models.ShiftPolicyMax:    true,
	models.ShiftPolicyReject: true,
}

var validLogLevels = map[string]bool{
	"debug": true, "info": true, "warn": true, "error": true,
}

var configurableCategories = map[models.MaterialCategory]bool{
	models.CategoryFlooring:     true,
	models.CategoryUnderlayment: true,
	models.CategoryTrim:         true,
	models.CategorySupplies:     true,
}

// ValidateConfig checks cfg for invalid values and reports every problem
// found in one error.
func (cm *viperConfigManager) ValidateConfig(cfg *models.GlobalConfig) error {
	if cfg == nil {
		return fmt.Errorf("configuration is nil")
	}

	var errs []string

	if strings.TrimSpace(cfg.DataDir) == "" {
		errs = append(errs, "data.dir must not be empty")
	}
	if !validShiftPolicies[cfg.ShiftPolicy] {
		errs = append(errs, fmt.Sprintf("shift.policy %q is invalid, must be one of: max, reject", cfg.ShiftPolicy))
	}
	if cfg.WatchDebounceMS < 0 {
		errs = append(errs, fmt.Sprintf("watch.debounce_ms must be non-negative, got %d", cfg.WatchDebounceMS))
	}
	if !validLogLevels[strings.ToLower(cfg.LogLevel)] {
		errs = append(errs, fmt.Sprintf("log.level %q is invalid, must be one of: debug, info, warn, error", cfg.LogLevel))
	}
	for cat := range cfg.Keywords.Materials {
		if !configurableCategories[cat] {
			errs = append(errs, fmt.Sprintf("materials key %q is not a category, must be one of: flooring, underlayment, trim, supplies", cat))
		}
	}
	if cfg.Notifications.Enabled && cfg.Notifications.Slack.WebhookURL == "" {
		errs = append(errs, "notifications.slack.webhook_url is required when notifications are enabled")
	}

	if len(errs) > 0 {
		return fmt.Errorf("config validation failed:\n  - %s", strings.Join(errs, "\n  - "))
	}
	return nil
}
