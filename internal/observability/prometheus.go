package observability

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/valter-silva-au/buildphase/pkg/models"
)

// Collectors are the Prometheus series exported by bph serve.
type Collectors struct {
	rebuilds      prometheus.Counter
	delayed       prometheus.Gauge
	conflicts     *prometheus.GaugeVec
	phaseLocked   *prometheus.GaugeVec
	shiftsApplied prometheus.Counter
}

// NewCollectors registers the collectors on reg. Tests pass a fresh
// prometheus.NewRegistry(); the server passes prometheus.DefaultRegisterer.
func NewCollectors(reg prometheus.Registerer) *Collectors {
	f := promauto.With(reg)
	return &Collectors{
		rebuilds: f.NewCounter(prometheus.CounterOpts{
			Name: "bph_rebuilds_total",
			Help: "Schedule rebuilds performed.",
		}),
		delayed: f.NewGauge(prometheus.GaugeOpts{
			Name: "bph_delayed_subtimelines",
			Help: "Sub-timelines delayed in the current schedule.",
		}),
		conflicts: f.NewGaugeVec(prometheus.GaugeOpts{
			Name: "bph_conflicts",
			Help: "Sub-timelines with a conflict in the current schedule, by kind.",
		}, []string{"kind"}),
		phaseLocked: f.NewGaugeVec(prometheus.GaugeOpts{
			Name: "bph_phase_locked",
			Help: "1 when the phase is locked in the current schedule.",
		}, []string{"phase"}),
		shiftsApplied: f.NewCounter(prometheus.CounterOpts{
			Name: "bph_shifts_applied_total",
			Help: "Due-date updates written by applied shift plans.",
		}),
	}
}

// ObserveSchedule records a rebuild and replaces the gauges with the state of
// the new schedule.
func (c *Collectors) ObserveSchedule(s models.Schedule) {
	c.rebuilds.Inc()

	delayed, weather, gps := 0, 0, 0
	for _, p := range s.Phases {
		locked := 0.0
		if p.Locked {
			locked = 1
		}
		c.phaseLocked.WithLabelValues(p.Name).Set(locked)

		for _, st := range p.SubTimelines {
			if st.Delayed {
				delayed++
			}
			if st.ConflictStatus.HasWeather() {
				weather++
			}
			if st.ConflictStatus.HasGPS() {
				gps++
			}
		}
	}
	c.delayed.Set(float64(delayed))
	c.conflicts.WithLabelValues(string(models.ConflictWeather)).Set(float64(weather))
	c.conflicts.WithLabelValues(string(models.ConflictGPS)).Set(float64(gps))
}

// ShiftApplied counts the due-date updates of an applied plan.
func (c *Collectors) ShiftApplied(updates int) {
	c.shiftsApplied.Add(float64(updates))
}
