package core

import (
	"context"
	"errors"
	"fmt"
	"math"
	"time"

	"github.com/google/uuid"
	"github.com/samber/lo"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"

	"github.com/signalsfoundry/loiter-planner/internal/config"
	"github.com/signalsfoundry/loiter-planner/internal/logging"
	"github.com/signalsfoundry/loiter-planner/model"
)

// MissionPlanner runs coverage, sequencing and leg planning and flattens
// the result into a MissionPlan.
type MissionPlanner struct {
	cfg  config.Config
	opt  options
	opts []Option
}

// NewMissionPlanner validates cfg and returns a planner. Invalid
// configuration is the only condition that prevents a plan.
func NewMissionPlanner(cfg config.Config, opts ...Option) (*MissionPlanner, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &MissionPlanner{cfg: cfg, opt: buildOptions(opts), opts: opts}, nil
}

// Plan produces the mission for m. The returned map carries the coverage
// the plan is expected to achieve; m is left untouched.
func (mp *MissionPlanner) Plan(ctx context.Context, m model.SurveillanceMap) (model.MissionPlan, model.SurveillanceMap, error) {
	began := time.Now()
	ctx, span := mp.opt.tracer.Start(ctx, "mission.plan")
	defer span.End()

	coverage, err := NewCoveragePlanner(mp.cfg, mp.opts...)
	if err != nil {
		return model.MissionPlan{}, m, err
	}
	covCtx, covSpan := mp.opt.tracer.Start(ctx, "mission.coverage")
	planned, res, err := coverage.Plan(covCtx, m)
	covSpan.SetAttributes(
		attribute.Int("orbits", len(res.Orbits)),
		attribute.Float64("coverage", res.Achieved),
		attribute.Int("iterations", res.Iterations),
	)
	covSpan.End()
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return model.MissionPlan{}, m, err
	}

	plan := model.MissionPlan{
		ID:              uuid.NewString(),
		Home:            m.Start,
		Orbits:          SequenceNearestNeighbor(m.Start, res.Orbits),
		CoverageStatus:  res.Status,
		PlannedCoverage: res.Achieved,
	}
	if res.Status == model.CoverageUnderTarget {
		plan.Warnings = append(plan.Warnings, fmt.Sprintf(
			"coverage %.1f%% is below the %.1f%% target", res.Achieved*100, res.Target*100))
	}

	legCtx, legSpan := mp.opt.tracer.Start(ctx, "mission.legs")
	err = mp.planLegs(legCtx, m, &plan)
	legSpan.SetAttributes(attribute.Int("legs", len(plan.Legs)))
	legSpan.End()
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return model.MissionPlan{}, m, err
	}

	plan.Waypoints = mp.flatten(plan)
	mp.estimate(&plan)

	span.SetAttributes(
		attribute.String("plan.id", plan.ID),
		attribute.Float64("plan.length", plan.TotalLength),
		attribute.Float64("plan.energy_wh", plan.EstimatedEnergyWh),
	)
	mp.opt.recorder.ObservePlan(time.Since(began), len(plan.Orbits), plan.PlannedCoverage, plan.CoverageStatus)
	mp.opt.log.Info(ctx, "mission planned",
		logging.String("plan_id", plan.ID),
		logging.Int("orbits", len(plan.Orbits)),
		logging.Int("legs", len(plan.Legs)),
		logging.Float("coverage", plan.PlannedCoverage),
		logging.Float("length", plan.TotalLength),
		logging.Float("energy_wh", plan.EstimatedEnergyWh),
		logging.Int("warnings", len(plan.Warnings)),
	)
	return plan, planned, nil
}

// planLegs connects home, every orbit in order, and home again. A leg
// with no clear curvature-bounded connection is searched on the grid.
func (mp *MissionPlanner) planLegs(ctx context.Context, m model.SurveillanceMap, plan *model.MissionPlan) error {
	if len(plan.Orbits) == 0 {
		return nil
	}
	tp := NewTransitionPlanner(mp.cfg, m.Obstacles)
	var pf *Pathfinder
	gridLeg := func(from, to model.Point) *model.GridPath {
		if pf == nil {
			pf = NewPathfinder(NewInflatedGrid(m, mp.cfg), mp.cfg, mp.opts...)
		}
		path := pf.FindPath(ctx, from, to)
		return &path
	}

	pose := model.Pose{Point: m.Start, Heading: NormalizeAngle(mp.cfg.Planner.HomeHeadingDeg * math.Pi / 180)}
	from := -1
	for i := range plan.Orbits {
		leg := model.Leg{From: from, To: i}
		path, joined, err := tp.ConnectOrbit(pose, plan.Orbits[i])
		switch {
		case err == nil:
			plan.Orbits[i] = joined
			leg.Kind, leg.Transition = model.LegTransition, &path
		case errors.Is(err, ErrTransitionUnreachable):
			o := &plan.Orbits[i]
			o.EntryPhase = o.NearestPhase(pose.Point)
			leg.Kind, leg.Grid, leg.TransitionSkipped = model.LegGrid, gridLeg(pose.Point, o.EntryPose().Point), true
			mp.skipped(ctx, plan, leg, err)
		default:
			return err
		}
		plan.Legs = append(plan.Legs, leg)
		pose = mp.exitPose(plan.Orbits[i])
		from = i
	}

	home := model.Pose{Point: m.Start, Heading: pose.Point.HeadingTo(m.Start)}
	leg := model.Leg{From: from, To: -1}
	path, err := tp.Connect(pose, home)
	switch {
	case err == nil:
		leg.Kind, leg.Transition = model.LegTransition, &path
	case errors.Is(err, ErrTransitionUnreachable):
		leg.Kind, leg.Grid, leg.TransitionSkipped = model.LegGrid, gridLeg(pose.Point, m.Start), true
		mp.skipped(ctx, plan, leg, err)
	default:
		return err
	}
	plan.Legs = append(plan.Legs, leg)

	for _, l := range plan.Legs {
		if l.Unsafe() {
			plan.Warnings = append(plan.Warnings, fmt.Sprintf("%s may cross inflated obstacles", legName(l)))
		}
	}
	return nil
}

func (mp *MissionPlanner) skipped(ctx context.Context, plan *model.MissionPlan, leg model.Leg, err error) {
	mp.opt.recorder.IncTransitionSkipped()
	mp.opt.log.Warn(ctx, "transition unreachable, using grid leg",
		logging.Int("from", leg.From),
		logging.Int("to", leg.To),
		logging.Err(err),
	)
	plan.Warnings = append(plan.Warnings, fmt.Sprintf("%s: no clear transition, grid leg used", legName(leg)))
}

// exitPose is where the vehicle leaves o after the configured revolutions.
func (mp *MissionPlanner) exitPose(o model.Orbit) model.Pose {
	return o.PoseAt(o.EntryPhase + mp.cfg.Planner.LoiterRevolutions*o.Perimeter())
}

func legName(l model.Leg) string {
	name := func(i int) string {
		if i < 0 {
			return "home"
		}
		return fmt.Sprintf("orbit %d", i)
	}
	return fmt.Sprintf("leg %s -> %s", name(l.From), name(l.To))
}

// flatten lays the legs and loiter arcs end to end. Each leg's first
// point is dropped since the vehicle is already there.
func (mp *MissionPlanner) flatten(plan model.MissionPlan) []model.Waypoint {
	var out []model.Waypoint
	for _, leg := range plan.Legs {
		pts := leg.Waypoints()
		if len(pts) > 1 {
			pts = pts[1:]
		}
		role := model.RoleTransit
		if leg.To < 0 {
			role = model.RoleReturn
		}
		for _, p := range pts {
			out = append(out, model.Waypoint{Point: p, Role: role, Orbit: -1})
		}
		if leg.To < 0 {
			continue
		}
		o := plan.Orbits[leg.To]
		if len(out) > 0 && out[len(out)-1].Point.DistanceTo(o.EntryPose().Point) < 1e-6 {
			out = out[:len(out)-1]
		}
		out = append(out, model.Waypoint{Point: o.EntryPose().Point, Role: model.RoleOrbitEntry, Orbit: leg.To})
		arc := mp.cfg.Planner.LoiterRevolutions * o.Perimeter()
		n := int(math.Ceil(arc / mp.cfg.Planner.TransitionStep))
		for k := 1; k <= n; k++ {
			p := o.PoseAt(o.EntryPhase + arc*float64(k)/float64(n)).Point
			out = append(out, model.Waypoint{Point: p, Role: model.RoleOrbitPoint, Orbit: leg.To})
		}
	}
	if len(out) == 0 || out[len(out)-1].Role != model.RoleReturn {
		out = append(out, model.Waypoint{Point: plan.Home, Role: model.RoleReturn, Orbit: -1})
	}
	return out
}

// estimate fills the length, duration and energy budget of plan.
func (mp *MissionPlanner) estimate(plan *model.MissionPlan) {
	speed := mp.cfg.Vehicle.CruiseSpeed
	power := NewPowerModel(mp.cfg)

	transit := lo.SumBy(plan.Legs, func(l model.Leg) float64 { return l.Length() })
	loiter := lo.SumBy(plan.Orbits, func(o model.Orbit) float64 {
		return mp.cfg.Planner.LoiterRevolutions * o.Perimeter()
	})
	energy := power.Transit*(transit/speed)/3600 +
		lo.SumBy(plan.Orbits, func(o model.Orbit) float64 {
			arc := mp.cfg.Planner.LoiterRevolutions * o.Perimeter()
			return power.Loiter * o.Kind.Spec().EnergyMultiplier * (arc / speed) / 3600
		})

	var descent float64
	if x := mp.cfg.Execution; x.DescentEnabled {
		revs := math.Max(0, mp.cfg.Vehicle.CruiseAltitude-x.TouchdownAltitude) / x.DescentPerRev
		descent = revs * 2 * math.Pi * mp.cfg.EffectiveDescentRadius()
		energy += power.Descent * (descent / speed) / 3600
	}

	plan.TotalLength = transit + loiter + descent
	plan.EstimatedDuration = time.Duration(plan.TotalLength / speed * float64(time.Second))
	plan.EstimatedEnergyWh = energy

	usable := mp.cfg.Energy.BatteryCapacityWh * (1 - mp.cfg.Energy.ReserveFraction)
	if energy > usable {
		plan.Warnings = append(plan.Warnings, fmt.Sprintf(
			"estimated energy %.1f Wh exceeds the %.1f Wh usable above reserve", energy, usable))
	}
}
