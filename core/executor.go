package core

import (
	"context"
	"errors"
	"fmt"
	"math"
	"time"

	"github.com/signalsfoundry/loiter-planner/internal/config"
	"github.com/signalsfoundry/loiter-planner/internal/logging"
	"github.com/signalsfoundry/loiter-planner/model"
)

// ErrPlanEmpty is returned when a plan has no waypoints to fly.
var ErrPlanEmpty = errors.New("mission plan has no waypoints")

// Executor flies a MissionPlan one fixed tick at a time. It owns the
// vehicle state and the execution coverage grid; neither is shared.
type Executor struct {
	cfg  config.Config
	opt  options
	plan model.MissionPlan

	orbits    []model.Orbit
	physical  []model.Obstacle
	mapped    map[string]bool
	known     map[string]bool
	coverage  *model.CoverageGrid
	sensor    Sensor
	avoider   *Avoider
	power     PowerModel
	ledger    *EnergyLedger
	returnNav *Pathfinder

	state   model.VehicleState
	tick    int
	simTime time.Duration

	wp          int
	returnRoute []model.Waypoint
	returnWP    int

	orbitIdx   int
	loiter     *OrbitMotion
	loiterFrom float64
	revs       float64

	descent *Descent

	avoidState   model.AvoidanceState
	fullyBlocked bool
	stuck        bool
}

// NewExecutor prepares a run of plan over m. world lists every obstacle
// that physically exists, including ones m does not know about; nil means
// m's obstacles are the whole truth.
func NewExecutor(cfg config.Config, plan model.MissionPlan, m model.SurveillanceMap, world []model.Obstacle, opts ...Option) (*Executor, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if len(plan.Waypoints) == 0 {
		return nil, ErrPlanEmpty
	}
	if world == nil {
		world = m.Obstacles
	}
	cov := model.NewCoverageGrid(m.Width, m.Height, m.Resolution)
	blockObstacleCells(cov, m.Obstacles)

	e := &Executor{
		cfg:       cfg,
		opt:       buildOptions(opts),
		plan:      plan,
		orbits:    append([]model.Orbit(nil), plan.Orbits...),
		mapped:    make(map[string]bool, len(m.Obstacles)),
		known:     make(map[string]bool, len(m.Obstacles)),
		coverage:  cov,
		sensor:    NewSensor(cfg),
		avoider:   NewAvoider(NewAvoidanceParams(cfg)),
		power:     NewPowerModel(cfg),
		ledger:    NewEnergyLedger(cfg.Energy.BatteryCapacityWh),
		returnNav: NewPathfinder(NewInflatedGrid(m, cfg), cfg, opts...),
		orbitIdx:  -1,
	}
	for _, o := range m.Obstacles {
		e.mapped[o.ID] = true
		e.known[o.ID] = true
	}
	for _, o := range world {
		if o.Physical() {
			e.physical = append(e.physical, o)
		}
	}
	e.state = model.VehicleState{
		Position:  plan.Home,
		Heading:   NormalizeAngle(cfg.Planner.HomeHeadingDeg * math.Pi / 180),
		Altitude:  cfg.Vehicle.CruiseAltitude,
		Battery:   1,
		EnergyWh:  cfg.Energy.BatteryCapacityWh,
		Lifecycle: model.Idle,
	}
	return e, nil
}

// State returns a copy of the vehicle state.
func (e *Executor) State() model.VehicleState { return e.state }

// Orbits returns the orbits with their runtime status.
func (e *Executor) Orbits() []model.Orbit { return append([]model.Orbit(nil), e.orbits...) }

// Coverage returns the execution coverage grid. Callers must not mutate it.
func (e *Executor) Coverage() *model.CoverageGrid { return e.coverage }

// Ledger returns the energy ledger.
func (e *Executor) Ledger() *EnergyLedger { return e.ledger }

// Done reports whether the vehicle has landed.
func (e *Executor) Done() bool { return e.state.Lifecycle == model.Landed }

// Tick advances the mission by one timestep and returns the resulting
// snapshot. Once LANDED, Tick changes nothing.
func (e *Executor) Tick(ctx context.Context) model.Snapshot {
	if e.state.Lifecycle == model.Landed {
		return e.snapshot()
	}
	if e.state.Lifecycle == model.Idle {
		e.fire(ctx, EventLaunch)
		e.state.Speed = e.cfg.Vehicle.CruiseSpeed
	}

	dt := e.cfg.Execution.TickDT
	e.tick++
	e.simTime += dt

	phase := e.state.Lifecycle
	draw := e.power.Draw(phase)
	switch phase {
	case model.Flying, model.Returning:
		e.stepTransit(ctx, dt)
	case model.Loitering:
		draw *= e.orbits[e.orbitIdx].Kind.Spec().EnergyMultiplier
		e.stepLoiter(ctx, dt)
	case model.Descent:
		e.stepDescent(ctx, dt)
	}

	e.ledger.Consume(phase, EnergyWh(draw, dt))
	e.state.Battery = e.ledger.Fraction()
	e.state.EnergyWh = e.ledger.RemainingWh

	switch {
	case e.state.Lifecycle == model.Landed:
	case e.ledger.Exhausted():
		e.opt.log.Warn(ctx, "battery exhausted in flight",
			logging.String("phase", e.state.Lifecycle.String()),
			logging.Float("distance", e.state.Distance),
		)
		e.fire(ctx, EventBatteryExhausted)
		e.state.Speed = 0
	case (e.state.Lifecycle == model.Flying || e.state.Lifecycle == model.Loitering) &&
		e.state.Battery <= e.cfg.Energy.ReserveFraction:
		e.opt.log.Info(ctx, "energy reserve reached, returning home",
			logging.Float("battery", e.state.Battery),
		)
		e.beginReturn(ctx, EventReserveReached)
	}

	snap := e.snapshot()
	e.opt.recorder.ObserveTick(snap)
	return snap
}

func (e *Executor) fire(ctx context.Context, ev Event) {
	to, err := Fire(e.state.Lifecycle, ev)
	if err != nil {
		// Every call site checks the current state first.
		e.opt.log.Error(ctx, "lifecycle transition rejected", logging.Err(err))
		return
	}
	e.opt.log.Debug(ctx, "lifecycle transition",
		logging.String("from", e.state.Lifecycle.String()),
		logging.String("to", to.String()),
		logging.String("event", ev.String()),
		logging.Int("tick", e.tick),
	)
	e.state.Lifecycle = to
}

// route returns the waypoints currently being followed and the index of
// the active one.
func (e *Executor) route() ([]model.Waypoint, int) {
	if e.returnRoute != nil {
		return e.returnRoute, e.returnWP
	}
	return e.plan.Waypoints, e.wp
}

func (e *Executor) setIndex(i int) {
	if e.returnRoute != nil {
		e.returnWP = i
		return
	}
	e.wp = i
}

func (e *Executor) stepTransit(ctx context.Context, dt time.Duration) {
	if !e.advanceWaypoints(ctx) {
		return
	}
	if e.state.Lifecycle == model.Loitering {
		e.stepLoiter(ctx, dt)
		return
	}

	route, i := e.route()
	target := route[i].Point
	if e.avoidState != model.AvoidNormal {
		target = e.lookahead(route, i)
	}
	planned := e.state.Position.HeadingTo(target)

	scan := e.sensor.Scan(e.state.Position, e.state.Heading, e.physical)
	e.noteDetections(ctx, scan)
	out := e.avoider.Step(AvoidanceInput{
		Position: e.state.Position,
		Heading:  e.state.Heading,
		Planned:  planned,
		GoalDist: e.state.Position.DistanceTo(e.goal(route, i)),
		Scan:     scan,
	})
	e.observeAvoidance(ctx, out)

	prev := e.state.Position
	d := TransitMotion{Command: out.Heading, TurnRate: e.cfg.Vehicle.TurnRate}.Advance(&e.state, dt)
	e.state.Distance += d
	e.markSwath(prev, e.state.Position)
}

// advanceWaypoints consumes captured or passed waypoints and fires the
// lifecycle events they imply. It returns false when the tick's motion has
// already been handled (touchdown or descent start).
func (e *Executor) advanceWaypoints(ctx context.Context) bool {
	for {
		route, i := e.route()
		if i >= len(route) {
			if e.state.Lifecycle == model.Flying {
				e.beginReturn(ctx, EventRouteComplete)
				continue
			}
			e.arriveHome(ctx)
			return false
		}
		w := route[i]
		if e.state.Lifecycle == model.Flying && w.Role == model.RoleReturn && e.returnRoute == nil {
			e.fire(ctx, EventRouteComplete)
		}
		if !e.reached(route, i) {
			return true
		}
		if e.state.Lifecycle == model.Flying && w.Role == model.RoleOrbitEntry {
			e.enterOrbit(ctx, w.Orbit)
			return true
		}
		if i == len(route)-1 && e.state.Lifecycle == model.Returning {
			e.arriveHome(ctx)
			return false
		}
		e.setIndex(i + 1)
	}
}

// reached reports whether waypoint i is inside the capture radius or has
// been passed along the direction of its leg.
func (e *Executor) reached(route []model.Waypoint, i int) bool {
	w := route[i].Point
	pos := e.state.Position
	if pos.DistanceTo(w) <= e.cfg.Execution.CaptureRadius {
		return true
	}
	prev := e.plan.Home
	if i > 0 {
		prev = route[i-1].Point
	}
	leg := w.Sub(prev)
	if leg.Norm() == 0 {
		return false
	}
	rel := pos.Sub(w)
	return rel.X*leg.X+rel.Y*leg.Y > 0
}

// lookahead picks the first waypoint at least the look-ahead distance away
// so that avoidance steers back towards the route rather than a point
// already behind the obstacle. Orbit entries and the route end stop the
// search.
func (e *Executor) lookahead(route []model.Waypoint, i int) model.Point {
	for j := i; j < len(route); j++ {
		w := route[j]
		if w.Role == model.RoleOrbitEntry || j == len(route)-1 {
			return w.Point
		}
		if e.state.Position.DistanceTo(w.Point) >= e.cfg.Avoidance.Lookahead {
			return w.Point
		}
	}
	return route[len(route)-1].Point
}

// goal is the next waypoint that has to be reached rather than passed:
// an orbit entry, the last waypoint before the return leg or the end of
// the route.
func (e *Executor) goal(route []model.Waypoint, i int) model.Point {
	for j := i; j < len(route)-1; j++ {
		w := route[j]
		if w.Role == model.RoleOrbitEntry || (w.Role != model.RoleReturn && route[j+1].Role == model.RoleReturn) {
			return w.Point
		}
	}
	return route[len(route)-1].Point
}

func (e *Executor) enterOrbit(ctx context.Context, idx int) {
	if idx < 0 || idx >= len(e.orbits) {
		e.setIndex(e.wp + 1)
		return
	}
	o := &e.orbits[idx]
	o.Status = model.OrbitActive
	e.orbitIdx = idx
	phase := o.NearestPhase(e.state.Position)
	e.loiter = &OrbitMotion{Orbit: *o, Phase: phase, TurnRate: e.cfg.Vehicle.TurnRate}
	e.loiterFrom = phase
	e.revs = 0
	e.avoider.Reset()
	e.avoidState = model.AvoidNormal
	e.fire(ctx, EventOrbitEntered)
	e.opt.log.Info(ctx, "loiter started",
		logging.String("orbit", o.ID),
		logging.Float("coverage", e.coverage.Fraction()),
	)
}

func (e *Executor) stepLoiter(ctx context.Context, dt time.Duration) {
	scan := e.sensor.Scan(e.state.Position, e.state.Heading, e.physical)
	e.noteDetections(ctx, scan)
	if id, ok := e.ringThreat(scan); ok {
		o := &e.orbits[e.orbitIdx]
		o.Status = model.OrbitSkipped
		e.fire(ctx, EventOrbitComplete)
		e.loiter = nil
		e.skipOrbitWaypoints(e.orbitIdx)
		e.opt.log.Warn(ctx, "loiter abandoned",
			logging.String("orbit", o.ID),
			logging.String("obstacle", id),
			logging.Float("revolutions", e.revs),
		)
		e.stepTransit(ctx, dt)
		return
	}

	prev := e.state.Position
	d := e.loiter.Advance(&e.state, dt)
	e.state.Distance += d
	e.markSwath(prev, e.state.Position)
	e.revs = (e.loiter.Phase - e.loiterFrom) / e.loiter.Orbit.Perimeter()
	if e.revs < e.cfg.Planner.LoiterRevolutions {
		return
	}

	o := &e.orbits[e.orbitIdx]
	o.Status = model.OrbitDone
	minX, minY, maxX, maxY := o.Bounds()
	e.coverage.MarkWithin(minX, minY, maxX, maxY, o.Covers)
	e.fire(ctx, EventOrbitComplete)
	e.loiter = nil
	e.skipOrbitWaypoints(e.orbitIdx)
	e.opt.log.Info(ctx, "loiter complete",
		logging.String("orbit", o.ID),
		logging.Float("revolutions", e.revs),
		logging.Float("coverage", e.coverage.Fraction()),
	)
}

// skipOrbitWaypoints moves the plan index past orbit idx's entry and
// perimeter points.
func (e *Executor) skipOrbitWaypoints(idx int) {
	for e.wp < len(e.plan.Waypoints) {
		w := e.plan.Waypoints[e.wp]
		if w.Orbit != idx || (w.Role != model.RoleOrbitEntry && w.Role != model.RoleOrbitPoint) {
			break
		}
		e.wp++
	}
}

// ringThreat returns an unmapped obstacle sensed within the standoff of
// the perimeter ahead, no further round than the trigger distance. Mapped
// obstacles were cleared when the orbit was placed.
func (e *Executor) ringThreat(scan model.SensorScan) (string, bool) {
	o := e.loiter.Orbit
	per := o.Perimeter()
	here := math.Mod(e.loiter.Phase, per)
	for _, r := range scan.Rays {
		if r.Clear || e.mapped[r.Obstacle] {
			continue
		}
		hit := scan.Origin.Offset(scan.Heading+r.Bearing, r.Distance)
		at := o.NearestPhase(hit)
		if o.PoseAt(at).Point.DistanceTo(hit) >= e.cfg.Avoidance.Standoff {
			continue
		}
		if math.Mod(at-here+per, per) <= e.cfg.Avoidance.TriggerDistance {
			return r.Obstacle, true
		}
	}
	return "", false
}

// skipTarget gives up on the waypoint the controller could not get to.
// Skipping an orbit entry skips the orbit; the last waypoint of a route
// is kept and approached afresh.
func (e *Executor) skipTarget(ctx context.Context) {
	route, i := e.route()
	w := route[i]
	e.avoider.Reset()
	e.avoidState = model.AvoidNormal
	switch {
	case i == len(route)-1:
	case w.Role == model.RoleOrbitEntry && w.Orbit >= 0 && w.Orbit < len(e.orbits):
		e.orbits[w.Orbit].Status = model.OrbitSkipped
		e.skipOrbitWaypoints(w.Orbit)
	default:
		e.setIndex(i + 1)
	}
	e.opt.log.Warn(ctx, "waypoint skipped",
		logging.Int("waypoint", i),
		logging.String("role", w.Role.String()),
		logging.Int("tick", e.tick),
	)
}

// beginReturn abandons the remaining route and heads home along a grid
// route around the known obstacles.
func (e *Executor) beginReturn(ctx context.Context, ev Event) {
	if e.state.Lifecycle == model.Loitering {
		e.orbits[e.orbitIdx].Status = model.OrbitSkipped
		e.loiter = nil
	}
	e.fire(ctx, ev)
	path := e.returnNav.FindPath(ctx, e.state.Position, e.plan.Home)
	route := make([]model.Waypoint, 0, len(path.Waypoints))
	for _, p := range path.Waypoints[1:] {
		route = append(route, model.Waypoint{Point: p, Role: model.RoleReturn, Orbit: -1})
	}
	if len(route) == 0 {
		route = append(route, model.Waypoint{Point: e.plan.Home, Role: model.RoleReturn, Orbit: -1})
	}
	e.returnRoute, e.returnWP = route, 0
	e.avoider.Reset()
	e.avoidState = model.AvoidNormal
}

func (e *Executor) arriveHome(ctx context.Context) {
	if !e.cfg.Execution.DescentEnabled {
		e.fire(ctx, EventTouchdown)
		e.state.Speed = 0
		e.opt.log.Info(ctx, "landed", logging.Float("distance", e.state.Distance))
		return
	}
	e.descent = NewDescent(
		model.Pose{Point: e.state.Position, Heading: e.state.Heading},
		e.cfg.EffectiveDescentRadius(),
		e.cfg.Execution.DescentPerRev,
		e.cfg.Execution.TouchdownAltitude,
	)
	e.fire(ctx, EventHomeReached)
	e.opt.log.Info(ctx, "descent started", logging.Float("altitude", e.state.Altitude))
}

// stepDescent keeps the sensor running for detections; the spiral itself
// is not steered around obstacles.
func (e *Executor) stepDescent(ctx context.Context, dt time.Duration) {
	if e.descent.Done(e.state) {
		e.fire(ctx, EventTouchdown)
		e.state.Speed = 0
		return
	}
	e.noteDetections(ctx, e.sensor.Scan(e.state.Position, e.state.Heading, e.physical))
	e.state.Distance += e.descent.Advance(&e.state, dt)
	if e.descent.Done(e.state) {
		e.fire(ctx, EventTouchdown)
		e.state.Speed = 0
		e.opt.log.Info(ctx, "landed", logging.Float("distance", e.state.Distance))
	}
}

func (e *Executor) observeAvoidance(ctx context.Context, out AvoidanceOutput) {
	if out.Entered {
		e.opt.recorder.IncAvoidanceEntry()
		e.opt.log.Debug(ctx, "avoidance engaged", logging.Int("tick", e.tick))
	}
	if out.Stuck && !e.stuck {
		e.opt.recorder.IncStuck()
		e.opt.log.Warn(ctx, "avoidance stuck",
			logging.Bool("fully_blocked", out.FullyBlocked),
			logging.Int("tick", e.tick),
		)
		e.stuck, e.fullyBlocked = true, out.FullyBlocked
		if e.cfg.Avoidance.AbortOnStuck && e.state.Lifecycle == model.Flying {
			e.beginReturn(ctx, EventAbort)
			return
		}
		e.skipTarget(ctx)
		return
	}
	e.avoidState = out.State
	e.fullyBlocked = out.FullyBlocked
	e.stuck = out.Stuck
}

func (e *Executor) noteDetections(ctx context.Context, scan model.SensorScan) {
	for _, r := range scan.Rays {
		if r.Clear || e.known[r.Obstacle] {
			continue
		}
		e.known[r.Obstacle] = true
		if e.opt.tracker != nil && !e.opt.tracker.MarkDetected(r.Obstacle) {
			continue
		}
		e.opt.recorder.IncObstacleDetected()
		e.opt.log.Info(ctx, "unmapped obstacle detected",
			logging.String("obstacle", r.Obstacle),
			logging.Float("range", r.Distance),
		)
	}
}

// markSwath covers every cell within the sensor footprint of segment a-b.
func (e *Executor) markSwath(a, b model.Point) {
	fp := e.sensor.Footprint
	if fp <= 0 {
		return
	}
	e.coverage.MarkWithin(
		math.Min(a.X, b.X)-fp, math.Min(a.Y, b.Y)-fp,
		math.Max(a.X, b.X)+fp, math.Max(a.Y, b.Y)+fp,
		func(p model.Point) bool { return DistanceToSegment(a, b, p) <= fp },
	)
}

func (e *Executor) snapshot() model.Snapshot {
	_, i := e.route()
	return model.Snapshot{
		Tick:          e.tick,
		SimTime:       e.simTime,
		Position:      e.state.Position,
		Heading:       e.state.Heading,
		Altitude:      e.state.Altitude,
		Speed:         e.state.Speed,
		Lifecycle:     e.state.Lifecycle,
		Battery:       e.state.Battery,
		EnergyWh:      e.state.EnergyWh,
		Distance:      e.state.Distance,
		Coverage:      e.coverage.Fraction(),
		CoveredCells:  e.coverage.CoveredCount(),
		Avoidance:     e.avoidState,
		FullyBlocked:  e.fullyBlocked,
		Stuck:         e.stuck,
		WaypointIndex: i,
		OrbitIndex:    e.orbitIdx,
		Revolutions:   e.revs,
	}
}

// String summarises the executor for logs.
func (e *Executor) String() string {
	return fmt.Sprintf("executor(tick=%d, %s, battery=%.2f)", e.tick, e.state.Lifecycle, e.state.Battery)
}
