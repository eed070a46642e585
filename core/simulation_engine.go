package core

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"

	"github.com/signalsfoundry/loiter-planner/internal/logging"
	"github.com/signalsfoundry/loiter-planner/model"
)

// ErrTickLimit is returned by Run when the tick budget ran out before the
// vehicle landed.
var ErrTickLimit = errors.New("tick limit reached before landing")

// SimulationEngine serialises access to an Executor and fans each
// snapshot out to the registered listeners. It can be driven by Run or by
// an external clock calling Step.
type SimulationEngine struct {
	mu        sync.Mutex
	exec      *Executor
	opt       options
	listeners []func(model.Snapshot)
	last      model.Snapshot
}

// NewSimulationEngine wraps exec.
func NewSimulationEngine(exec *Executor, opts ...Option) *SimulationEngine {
	return &SimulationEngine{
		exec: exec,
		opt:  buildOptions(opts),
		last: exec.snapshot(),
	}
}

// RegisterTickListener adds fn to the listeners called after every tick.
func (se *SimulationEngine) RegisterTickListener(fn func(model.Snapshot)) {
	se.mu.Lock()
	defer se.mu.Unlock()
	se.listeners = append(se.listeners, fn)
}

// Step runs one executor tick. Once the vehicle has landed it returns the
// final snapshot without notifying anyone.
func (se *SimulationEngine) Step(ctx context.Context) model.Snapshot {
	se.mu.Lock()
	if se.exec.Done() {
		s := se.last
		se.mu.Unlock()
		return s
	}
	s := se.exec.Tick(ctx)
	se.last = s
	listeners := append([]func(model.Snapshot){}, se.listeners...)
	se.mu.Unlock()

	for _, fn := range listeners {
		fn(s)
	}
	return s
}

// Done reports whether the vehicle has landed.
func (se *SimulationEngine) Done() bool {
	se.mu.Lock()
	defer se.mu.Unlock()
	return se.exec.Done()
}

// Last returns the most recent snapshot.
func (se *SimulationEngine) Last() model.Snapshot {
	se.mu.Lock()
	defer se.mu.Unlock()
	return se.last
}

// Executor returns the wrapped executor. Callers must not tick it directly
// while the engine is running.
func (se *SimulationEngine) Executor() *Executor { return se.exec }

// Run ticks until the vehicle lands, ctx is cancelled, or maxTicks ticks
// have run. A maxTicks of 0 falls back to execution.max_ticks, and to no
// limit when that is 0 too.
func (se *SimulationEngine) Run(ctx context.Context, maxTicks int) (model.Snapshot, error) {
	if maxTicks <= 0 {
		maxTicks = se.exec.cfg.Execution.MaxTicks
	}
	ctx, runID := logging.EnsureMissionID(ctx)
	ctx, span := se.opt.tracer.Start(ctx, "mission.run")
	defer span.End()
	span.SetAttributes(attribute.String("mission.id", runID))

	se.opt.log.Info(ctx, "mission run started",
		logging.String("plan_id", se.exec.plan.ID),
		logging.Int("waypoints", len(se.exec.plan.Waypoints)),
		logging.Int("max_ticks", maxTicks),
	)

	var err error
	s := se.Last()
	for n := 0; !se.Done(); n++ {
		if maxTicks > 0 && n >= maxTicks {
			err = fmt.Errorf("%w: %d ticks, %s", ErrTickLimit, maxTicks, s.Lifecycle)
			break
		}
		if err = ctx.Err(); err != nil {
			break
		}
		s = se.Step(ctx)
	}

	span.SetAttributes(
		attribute.Int("ticks", s.Tick),
		attribute.String("lifecycle", s.Lifecycle.String()),
		attribute.Float64("coverage", s.Coverage),
		attribute.Float64("battery", s.Battery),
	)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		se.opt.log.Warn(ctx, "mission run stopped", logging.Err(err), logging.Int("tick", s.Tick))
		return s, err
	}
	se.opt.log.Info(ctx, "mission run finished",
		logging.Int("ticks", s.Tick),
		logging.Duration("sim_time", s.SimTime),
		logging.Float("coverage", s.Coverage),
		logging.Float("battery", s.Battery),
		logging.Float("distance", s.Distance),
	)
	return s, nil
}
