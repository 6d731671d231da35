package cli

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/valter-silva-au/buildphase/internal/core"
	"github.com/valter-silva-au/buildphase/internal/observability"
	"github.com/valter-silva-au/buildphase/internal/storage"
	"github.com/valter-silva-au/buildphase/pkg/models"
	"go.uber.org/zap"
)

// Project wiring, set during app initialization in app.go.
var (
	BasePath string
	DataDir  string
	Config   *models.GlobalConfig

	Logger   *zap.Logger
	LogLevel zap.AtomicLevel

	Service   core.ScheduleService
	TaskStore storage.TaskStore
)

// Observability service instances, set during app initialization in app.go.
var (
	AlertEngine     observability.AlertEngine
	MetricsCalc     observability.MetricsCalculator
	Notifier        observability.Notifier
	MetricsGatherer prometheus.Gatherer
)

// nowOverride is set by --now. The zero value means the wall clock.
var nowOverride time.Time

// Now returns the "today" every rebuild uses: the --now date when given,
// otherwise the wall clock.
func Now() time.Time {
	if !nowOverride.IsZero() {
		return nowOverride
	}
	return time.Now()
}

func logger() *zap.Logger {
	if Logger == nil {
		return zap.NewNop()
	}
	return Logger
}
