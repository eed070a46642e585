package core

import (
	"math"

	"github.com/signalsfoundry/loiter-planner/internal/config"
	"github.com/signalsfoundry/loiter-planner/model"
)

// AvoidanceParams tunes the reactive controller. Angles are in radians.
type AvoidanceParams struct {
	Trigger     float64
	Standoff    float64
	Range       float64
	HeadingStep float64
	Align       float64
	MaxTicks    int
	MaxBlocked  int
	// Settle is how many consecutive NORMAL ticks end an avoidance
	// episode. A re-entry before that continues the previous episode and
	// its tick budget.
	Settle int
}

// NewAvoidanceParams derives controller parameters from cfg.
func NewAvoidanceParams(cfg config.Config) AvoidanceParams {
	a := cfg.Avoidance
	return AvoidanceParams{
		Trigger:     a.TriggerDistance,
		Standoff:    a.Standoff,
		Range:       cfg.Sensor.MaxRange,
		HeadingStep: a.HeadingStepDeg * math.Pi / 180,
		Align:       a.AlignDeg * math.Pi / 180,
		MaxTicks:    a.MaxAvoidTicks,
		MaxBlocked:  a.MaxBlockedTicks,
		Settle:      a.SettleTicks,
	}
}

// AvoidanceMemory is everything the controller carries between ticks.
// Side is +1 for passing with the obstacle on the right (turning left)
// and -1 for the mirror case. Calm counts NORMAL ticks since the last
// episode.
type AvoidanceMemory struct {
	State        model.AvoidanceState
	Side         float64
	Ticks        int
	BlockedTicks int
	Calm         int
	Stuck        bool
}

// AvoidanceInput is one tick's observation. GoalDist is how far away the
// point the vehicle must actually reach lies; obstacles beyond it do not
// block the planned heading. Zero means no such point.
type AvoidanceInput struct {
	Position model.Point
	Heading  float64
	Planned  float64
	GoalDist float64
	Scan     model.SensorScan
}

// AvoidanceOutput is the commanded heading plus status flags. Entered is
// set on the tick the controller leaves NORMAL.
type AvoidanceOutput struct {
	Heading      float64
	State        model.AvoidanceState
	FullyBlocked bool
	Stuck        bool
	Entered      bool
}

// Step is the controller's transition function. It has no side effects.
func (p AvoidanceParams) Step(mem AvoidanceMemory, in AvoidanceInput) (AvoidanceMemory, AvoidanceOutput) {
	hits := in.Scan.Hits()
	ahead := p.reach(in, p.Range)
	near := p.reach(in, p.Trigger)
	entered := false
	if mem.State == model.AvoidNormal {
		if p.corridorClear(in.Position, in.Planned, hits, near) {
			mem.Calm++
			if mem.Calm >= p.Settle {
				mem = AvoidanceMemory{Calm: mem.Calm}
			}
			return mem, AvoidanceOutput{Heading: in.Planned, State: model.AvoidNormal, Stuck: mem.Stuck}
		}
		if mem.Calm >= p.Settle {
			mem = AvoidanceMemory{}
		}
		if mem.Side == 0 {
			mem.Side = pickSide(in.Scan)
		}
		mem.State, mem.Calm = model.AvoidAvoiding, 0
		entered = true
	}
	mem.Ticks++

	out := AvoidanceOutput{Heading: in.Planned, Entered: entered}
	if mem.State == model.AvoidRecovering {
		if p.corridorClear(in.Position, in.Planned, hits, near) {
			out.State = model.AvoidRecovering
			if p.corridorClear(in.Position, in.Planned, hits, ahead) &&
				math.Abs(AngleDiff(in.Heading, in.Planned)) <= p.Align {
				mem.State, mem.BlockedTicks = model.AvoidNormal, 0
				out.State = model.AvoidNormal
			}
			return p.bound(mem, out)
		}
		mem.State = model.AvoidAvoiding
	}

	heading, k, ok := p.firstClearHeading(in, hits, mem.Side)
	switch {
	case !ok:
		mem.BlockedTicks++
		out.FullyBlocked = true
		out.Heading = NormalizeAngle(in.Heading + mem.Side*math.Pi/2)
		out.State = model.AvoidAvoiding
	case k == 0:
		mem.BlockedTicks = 0
		mem.State = model.AvoidRecovering
		out.State = model.AvoidRecovering
	default:
		mem.BlockedTicks = 0
		out.Heading = heading
		out.State = model.AvoidAvoiding
	}
	return p.bound(mem, out)
}

// reach caps a look-ahead distance at the goal.
func (p AvoidanceParams) reach(in AvoidanceInput, dist float64) float64 {
	if in.GoalDist > 0 {
		return math.Min(dist, in.GoalDist)
	}
	return dist
}

// bound latches the stuck signal once either tick budget is exceeded.
func (p AvoidanceParams) bound(mem AvoidanceMemory, out AvoidanceOutput) (AvoidanceMemory, AvoidanceOutput) {
	if mem.Ticks > p.MaxTicks || mem.BlockedTicks > p.MaxBlocked {
		mem.Stuck = true
	}
	out.Stuck = mem.Stuck
	return mem, out
}

// firstClearHeading sweeps from the planned heading towards side and
// returns the first heading whose corridor is clear, with its step index.
// Only the planned heading itself is cut short at the goal.
func (p AvoidanceParams) firstClearHeading(in AvoidanceInput, hits []model.Point, side float64) (float64, int, bool) {
	if in.Scan.Blocked() {
		return 0, 0, false
	}
	steps := int(math.Round(math.Pi / p.HeadingStep))
	for k := 0; k <= steps; k++ {
		phi := NormalizeAngle(in.Planned + side*float64(k)*p.HeadingStep)
		dist := p.Range
		if k == 0 {
			dist = p.reach(in, p.Range)
		}
		if p.corridorClear(in.Position, phi, hits, dist) {
			return phi, k, true
		}
	}
	return 0, 0, false
}

// corridorClear reports whether no hit lies ahead along heading within
// dist and closer than the standoff to the centreline.
func (p AvoidanceParams) corridorClear(pos model.Point, heading float64, hits []model.Point, dist float64) bool {
	cos, sin := math.Cos(heading), math.Sin(heading)
	for _, h := range hits {
		v := h.Sub(pos)
		along := v.X*cos + v.Y*sin
		lateral := math.Abs(v.X*sin - v.Y*cos)
		if along > 0 && along < dist && lateral < p.Standoff {
			return false
		}
	}
	return true
}

// pickSide compares the summed clearance of the left and right rays; a
// clear ray counts as the full range. Ties go left.
func pickSide(scan model.SensorScan) float64 {
	var left, right float64
	for _, r := range scan.Rays {
		switch {
		case r.Bearing > 1e-9:
			left += r.Distance
		case r.Bearing < -1e-9:
			right += r.Distance
		}
	}
	if right > left {
		return -1
	}
	return 1
}

// Avoider wraps the transition function with its memory for callers that
// step it once per tick.
type Avoider struct {
	params AvoidanceParams
	mem    AvoidanceMemory
}

// NewAvoider returns a controller in NORMAL.
func NewAvoider(p AvoidanceParams) *Avoider { return &Avoider{params: p} }

// Step advances the controller by one tick.
func (a *Avoider) Step(in AvoidanceInput) AvoidanceOutput {
	var out AvoidanceOutput
	a.mem, out = a.params.Step(a.mem, in)
	return out
}

// State returns the current control state.
func (a *Avoider) State() model.AvoidanceState { return a.mem.State }

// Reset returns the controller to NORMAL.
func (a *Avoider) Reset() { a.mem = AvoidanceMemory{} }
