package core

import (
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/trace"

	"github.com/signalsfoundry/loiter-planner/internal/logging"
	"github.com/signalsfoundry/loiter-planner/model"
)

const tracerName = "github.com/signalsfoundry/loiter-planner/core"

// Recorder receives planning and execution measurements. The Prometheus
// collector in internal/observability satisfies it.
type Recorder interface {
	ObservePlan(d time.Duration, orbits int, coverage float64, status model.CoverageStatus)
	IncTransitionSkipped()
	IncPathFallback()
	ObserveTick(s model.Snapshot)
	IncAvoidanceEntry()
	IncStuck()
	IncObstacleDetected()
}

type noopRecorder struct{}

func (noopRecorder) ObservePlan(time.Duration, int, float64, model.CoverageStatus) {}
func (noopRecorder) IncTransitionSkipped()                                         {}
func (noopRecorder) IncPathFallback()                                              {}
func (noopRecorder) ObserveTick(model.Snapshot)                                    {}
func (noopRecorder) IncAvoidanceEntry()                                            {}
func (noopRecorder) IncStuck()                                                     {}
func (noopRecorder) IncObstacleDetected()                                          {}

// ObstacleTracker is told about obstacles the sensor finds that the
// offline map did not contain. MarkDetected reports whether id was new.
type ObstacleTracker interface {
	MarkDetected(id string) bool
}

type options struct {
	log      logging.Logger
	recorder Recorder
	tracer   trace.Tracer
	tracker  ObstacleTracker
}

// Option customises planners and executors.
type Option func(*options)

// WithLogger sets the structured logger.
func WithLogger(l logging.Logger) Option {
	return func(o *options) {
		if l != nil {
			o.log = l
		}
	}
}

// WithRecorder sets the metrics sink.
func WithRecorder(r Recorder) Option {
	return func(o *options) {
		if r != nil {
			o.recorder = r
		}
	}
}

// WithTracerProvider sets the provider spans are started from.
func WithTracerProvider(tp trace.TracerProvider) Option {
	return func(o *options) {
		if tp != nil {
			o.tracer = tp.Tracer(tracerName)
		}
	}
}

// WithObstacleTracker routes obstacle discoveries to t.
func WithObstacleTracker(t ObstacleTracker) Option {
	return func(o *options) { o.tracker = t }
}

func buildOptions(opts []Option) options {
	o := options{
		log:      logging.Noop(),
		recorder: noopRecorder{},
		tracer:   otel.Tracer(tracerName),
	}
	for _, opt := range opts {
		opt(&o)
	}
	return o
}
