// Package internal provides the App struct that wires all components of the
// buildphase system together and initializes the CLI layer.
package internal

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/valter-silva-au/buildphase/internal/cli"
	"github.com/valter-silva-au/buildphase/internal/core"
	"github.com/valter-silva-au/buildphase/internal/logging"
	"github.com/valter-silva-au/buildphase/internal/observability"
	"github.com/valter-silva-au/buildphase/internal/storage"
	"github.com/valter-silva-au/buildphase/pkg/models"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

// EventLogFileName is the JSONL event log kept in the base path.
const EventLogFileName = ".bph_events.jsonl"

// App holds all service dependencies for the buildphase system.
type App struct {
	BasePath string
	DataDir  string

	// Configuration
	ConfigMgr core.ConfigurationManager
	Config    *models.GlobalConfig

	// Logging
	Logger   *zap.Logger
	LogLevel zap.AtomicLevel

	// Storage layer
	TaskStore storage.TaskStore
	SiteStore storage.SiteDataStore

	// Core services
	Classifier core.Classifier
	Scheduler  *core.Scheduler
	Service    core.ScheduleService

	// Observability
	EventLog    observability.EventLog
	AlertEngine observability.AlertEngine
	MetricsCalc observability.MetricsCalculator
	Notifier    observability.Notifier
	Collectors  *observability.Collectors
	Registry    *prometheus.Registry
}

// AppOptions overrides parts of the wiring, mainly for tests.
type AppOptions struct {
	// Now is the clock for every rebuild. Defaults to cli.Now, which honours
	// the --now flag.
	Now func() time.Time
	// Logger replaces the logger built from the configured level.
	Logger *zap.Logger
	// SkipCLI leaves the cli package variables untouched.
	SkipCLI bool
}

// NewApp creates and wires all components of the buildphase system.
// basePath is the project root holding .bphconfig and the data directory.
func NewApp(basePath string, opts AppOptions) (*App, error) {
	app := &App{BasePath: basePath}

	// --- Configuration ---
	app.ConfigMgr = core.NewConfigurationManager(basePath)
	cfg, err := app.ConfigMgr.LoadGlobalConfig()
	if err != nil {
		return nil, fmt.Errorf("loading configuration: %w", err)
	}
	if err := app.ConfigMgr.ValidateConfig(cfg); err != nil {
		return nil, err
	}
	app.Config = cfg

	// --- Logging ---
	if opts.Logger != nil {
		app.Logger = opts.Logger
		app.LogLevel = zap.NewAtomicLevel()
	} else {
		app.Logger, app.LogLevel, err = logging.NewWithLevel(logging.Options{Level: cfg.LogLevel})
		if err != nil {
			return nil, err
		}
	}

	// --- Storage layer ---
	app.DataDir = cfg.DataDir
	if !filepath.IsAbs(app.DataDir) {
		app.DataDir = filepath.Join(basePath, app.DataDir)
	}
	app.TaskStore = storage.NewTaskStore(app.DataDir)
	app.SiteStore = storage.NewSiteDataStore(app.DataDir)

	// --- Observability ---
	eventLogPath := filepath.Join(basePath, EventLogFileName)
	app.EventLog, err = observability.NewJSONLEventLog(eventLogPath)
	if err != nil {
		// Non-fatal: run without the event log if it can't be created.
		app.Logger.Warn("event log disabled", zap.String("path", eventLogPath), zap.Error(err))
		app.EventLog = nil
	}
	app.AlertEngine = observability.NewAlertEngine(observability.DefaultAlertThresholds())
	if app.EventLog != nil {
		app.MetricsCalc = observability.NewMetricsCalculator(app.EventLog)
	}
	if cfg.Notifications.Enabled && cfg.Notifications.Slack.WebhookURL != "" {
		app.Notifier = observability.NewSlackNotifier(cfg.Notifications.Slack.WebhookURL)
	}
	app.Registry = prometheus.NewRegistry()
	app.Registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	app.Collectors = observability.NewCollectors(app.Registry)

	// --- Core services ---
	app.Classifier = core.NewKeywordClassifier(cfg.Keywords)
	logger := app.Logger
	app.Scheduler = core.NewScheduler(core.SchedulerOptions{
		Classifier:  app.Classifier,
		ShiftPolicy: cfg.ShiftPolicy,
		OnTaskSelected: func(t models.Task) {
			logger.Debug("task selected", zap.String("task_id", t.ID), zap.String("title", t.Title))
		},
	})

	now := opts.Now
	if now == nil {
		now = cli.Now
	}
	var evtAdapter core.EventLogger
	if app.EventLog != nil {
		evtAdapter = &eventLogAdapter{log: app.EventLog}
	}
	app.Service, err = core.NewScheduleService(core.ServiceOptions{
		Scheduler: app.Scheduler,
		Loader:    app,
		Writer:    app.TaskStore,
		Events:    evtAdapter,
		Observer:  app.Collectors,
		Logger:    app.Logger.Named("scheduler"),
		Now:       now,
	})
	if err != nil {
		return nil, err
	}

	if opts.SkipCLI {
		return app, nil
	}

	// --- Wire CLI package-level variables ---
	cli.BasePath = basePath
	cli.DataDir = app.DataDir
	cli.Config = cfg
	cli.Logger = app.Logger
	cli.LogLevel = app.LogLevel
	cli.Service = app.Service
	cli.TaskStore = app.TaskStore

	cli.AlertEngine = app.AlertEngine
	cli.MetricsCalc = app.MetricsCalc
	cli.Notifier = app.Notifier
	cli.MetricsGatherer = app.Registry

	return app, nil
}

// LoadInput reads the task registry and the three site sources concurrently
// and assembles the rebuild input. Any failing source fails the load.
func (a *App) LoadInput(ctx context.Context, now time.Time) (core.ScheduleInput, error) {
	in := core.ScheduleInput{Now: now}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		if err := gctx.Err(); err != nil {
			return err
		}
		if err := a.TaskStore.Load(); err != nil {
			return err
		}
		in.Tasks = a.TaskStore.GetAll()
		return nil
	})
	g.Go(func() error {
		if err := gctx.Err(); err != nil {
			return err
		}
		var err error
		in.Materials, err = a.SiteStore.LoadMaterials()
		return err
	})
	g.Go(func() error {
		if err := gctx.Err(); err != nil {
			return err
		}
		var err error
		in.Forecast, err = a.SiteStore.LoadForecast()
		return err
	})
	g.Go(func() error {
		if err := gctx.Err(); err != nil {
			return err
		}
		var err error
		in.Crew, err = a.SiteStore.LoadCrew()
		return err
	})
	if err := g.Wait(); err != nil {
		return core.ScheduleInput{}, err
	}
	return in, nil
}

// Close releases resources held by the App, such as the event log file handle.
func (a *App) Close() error {
	if a.Logger != nil {
		_ = a.Logger.Sync()
	}
	if a.EventLog != nil {
		return a.EventLog.Close()
	}
	return nil
}

// ResolveBasePath determines the project root. It checks the BPH_HOME env
// var, then walks up from the current directory looking for .bphconfig, and
// falls back to the current directory.
func ResolveBasePath() string {
	if home := os.Getenv("BPH_HOME"); home != "" {
		return home
	}
	cwd, err := os.Getwd()
	if err != nil {
		return "."
	}
	for dir := cwd; ; {
		for _, name := range []string{core.ConfigFileName, core.ConfigFileName + ".yaml", core.ConfigFileName + ".yml"} {
			if _, err := os.Stat(filepath.Join(dir, name)); err == nil {
				return dir
			}
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			break
		}
		dir = parent
	}
	return cwd
}

// --- Adapters ---

// eventLogAdapter adapts observability.EventLog to core.EventLogger.
type eventLogAdapter struct {
	log observability.EventLog
}

func (a *eventLogAdapter) LogEvent(eventType string, data map[string]any) error {
	return a.log.Write(observability.Event{
		Time:    time.Now().UTC(),
		Level:   "INFO",
		Type:    eventType,
		Message: eventType,
		Data:    data,
	})
}
