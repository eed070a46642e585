package observability

import (
	"fmt"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/signalsfoundry/loiter-planner/core"
	"github.com/signalsfoundry/loiter-planner/model"
)

var _ core.Recorder = (*MissionCollector)(nil)

var lifecycles = []model.Lifecycle{
	model.Idle, model.Flying, model.Loitering, model.Returning, model.Descent, model.Landed,
}

// MissionCollector bundles the planner and executor Prometheus metrics. It
// satisfies core.Recorder; a nil collector records nothing.
type MissionCollector struct {
	gatherer prometheus.Gatherer

	PlanDuration       *prometheus.HistogramVec
	PlanOrbits         prometheus.Gauge
	PlanCoverage       prometheus.Gauge
	TransitionsSkipped prometheus.Counter
	PathFallbacks      prometheus.Counter

	Ticks             prometheus.Counter
	Battery           prometheus.Gauge
	Coverage          prometheus.Gauge
	Distance          prometheus.Gauge
	Lifecycle         *prometheus.GaugeVec
	AvoidanceEntries  prometheus.Counter
	AvoidanceStuck    prometheus.Counter
	ObstaclesDetected prometheus.Counter
}

// NewMissionCollector registers mission metrics against the provided
// registerer, defaulting to the global Prometheus registry when nil.
// Registering twice against the same registry reuses the existing
// collectors.
func NewMissionCollector(reg prometheus.Registerer) (*MissionCollector, error) {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	gatherer := prometheus.DefaultGatherer
	if g, ok := reg.(prometheus.Gatherer); ok {
		gatherer = g
	}

	c := &MissionCollector{gatherer: gatherer}
	var err error

	if c.PlanDuration, err = register(reg, prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "loiter_plan_duration_seconds",
		Help:    "Wall time of a planning run, labeled by coverage status.",
		Buckets: []float64{0.001, 0.005, 0.01, 0.05, 0.1, 0.25, 0.5, 1, 2, 5, 10},
	}, []string{"status"})); err != nil {
		return nil, err
	}
	if c.PlanOrbits, err = register(reg, gauge("loiter_plan_orbits", "Orbits in the most recent plan.")); err != nil {
		return nil, err
	}
	if c.PlanCoverage, err = register(reg, gauge("loiter_plan_coverage_ratio", "Coverage fraction the most recent plan achieves.")); err != nil {
		return nil, err
	}
	if c.TransitionsSkipped, err = register(reg, counter("loiter_transitions_skipped_total", "Legs with no clear curvature-bounded transition.")); err != nil {
		return nil, err
	}
	if c.PathFallbacks, err = register(reg, counter("loiter_path_fallbacks_total", "Grid searches that fell back to a direct segment.")); err != nil {
		return nil, err
	}

	if c.Ticks, err = register(reg, counter("loiter_ticks_total", "Executor ticks run.")); err != nil {
		return nil, err
	}
	if c.Battery, err = register(reg, gauge("loiter_battery_ratio", "Remaining battery fraction.")); err != nil {
		return nil, err
	}
	if c.Coverage, err = register(reg, gauge("loiter_coverage_ratio", "Coverage fraction observed in flight.")); err != nil {
		return nil, err
	}
	if c.Distance, err = register(reg, gauge("loiter_distance_flown", "Distance flown in map units.")); err != nil {
		return nil, err
	}
	if c.Lifecycle, err = register(reg, prometheus.NewGaugeVec(prometheus.GaugeOpts{
		Name: "loiter_lifecycle_state",
		Help: "1 for the executor's current lifecycle state, 0 otherwise.",
	}, []string{"state"})); err != nil {
		return nil, err
	}
	if c.AvoidanceEntries, err = register(reg, counter("loiter_avoidance_entries_total", "Times the reactive controller left NORMAL.")); err != nil {
		return nil, err
	}
	if c.AvoidanceStuck, err = register(reg, counter("loiter_avoidance_stuck_total", "Avoidance manoeuvres that exceeded their tick bound.")); err != nil {
		return nil, err
	}
	if c.ObstaclesDetected, err = register(reg, counter("loiter_obstacles_detected_total", "Obstacles found in flight that the map did not contain.")); err != nil {
		return nil, err
	}
	return c, nil
}

// Handler exposes a ready-to-use /metrics handler.
func (c *MissionCollector) Handler() http.Handler {
	gatherer := c.gatherer
	if gatherer == nil {
		gatherer = prometheus.DefaultGatherer
	}
	return promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{})
}

// ObservePlan records a finished planning run.
func (c *MissionCollector) ObservePlan(d time.Duration, orbits int, coverage float64, status model.CoverageStatus) {
	if c == nil {
		return
	}
	c.PlanDuration.WithLabelValues(status.String()).Observe(d.Seconds())
	c.PlanOrbits.Set(float64(orbits))
	c.PlanCoverage.Set(coverage)
}

func (c *MissionCollector) IncTransitionSkipped() {
	if c != nil {
		c.TransitionsSkipped.Inc()
	}
}

func (c *MissionCollector) IncPathFallback() {
	if c != nil {
		c.PathFallbacks.Inc()
	}
}

// ObserveTick updates the executor gauges from one snapshot.
func (c *MissionCollector) ObserveTick(s model.Snapshot) {
	if c == nil {
		return
	}
	c.Ticks.Inc()
	c.Battery.Set(s.Battery)
	c.Coverage.Set(s.Coverage)
	c.Distance.Set(s.Distance)
	for _, l := range lifecycles {
		v := 0.0
		if l == s.Lifecycle {
			v = 1
		}
		c.Lifecycle.WithLabelValues(l.String()).Set(v)
	}
}

func (c *MissionCollector) IncAvoidanceEntry() {
	if c != nil {
		c.AvoidanceEntries.Inc()
	}
}

func (c *MissionCollector) IncStuck() {
	if c != nil {
		c.AvoidanceStuck.Inc()
	}
}

func (c *MissionCollector) IncObstacleDetected() {
	if c != nil {
		c.ObstaclesDetected.Inc()
	}
}

func gauge(name, help string) prometheus.Gauge {
	return prometheus.NewGauge(prometheus.GaugeOpts{Name: name, Help: help})
}

func counter(name, help string) prometheus.Counter {
	return prometheus.NewCounter(prometheus.CounterOpts{Name: name, Help: help})
}

// register adds c to reg, returning the collector already registered under
// the same descriptor when there is one of the same type.
func register[T prometheus.Collector](reg prometheus.Registerer, c T) (T, error) {
	if err := reg.Register(c); err != nil {
		if are, ok := err.(prometheus.AlreadyRegisteredError); ok {
			if existing, ok := are.ExistingCollector.(T); ok {
				return existing, nil
			}
			var zero T
			return zero, fmt.Errorf("collector %T already registered with incompatible type", c)
		}
		var zero T
		return zero, err
	}
	return c, nil
}
