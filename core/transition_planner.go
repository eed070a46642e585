package core

import (
	"errors"
	"fmt"
	"math"

	"github.com/signalsfoundry/loiter-planner/internal/config"
	"github.com/signalsfoundry/loiter-planner/model"
)

// ErrTransitionUnreachable reports that no curvature-bounded family gave a
// clear connection, even after the alternate headings were tried.
var ErrTransitionUnreachable = errors.New("transition unreachable")

// retryOffsets are tried in order after the natural connection fails.
// Connect turns the end heading by them; ConnectOrbit moves the entry
// point round the perimeter with retryEntryPhase.
var retryOffsets = []float64{0, math.Pi / 4, -math.Pi / 4, math.Pi / 2, -math.Pi / 2}

// TransitionPlanner connects oriented configurations with the shortest
// clear curvature-bounded path.
type TransitionPlanner struct {
	radius    float64
	step      float64
	obstacles []model.Obstacle
	margin    float64
	noFly     float64
}

// NewTransitionPlanner returns a planner that keeps paths clear of the
// inflated obstacles.
func NewTransitionPlanner(cfg config.Config, obstacles []model.Obstacle) *TransitionPlanner {
	return &TransitionPlanner{
		radius:    cfg.Vehicle.TurnRadius,
		step:      cfg.Planner.TransitionStep,
		obstacles: obstacles,
		margin:    cfg.Planner.ObstacleMargin,
		noFly:     cfg.Planner.NoFlyMargin,
	}
}

// Connect returns the shortest clear path from start to end. When every
// family is blocked, the end heading is perturbed by the retry offsets.
func (tp *TransitionPlanner) Connect(start, end model.Pose) (model.TransitionPath, error) {
	for _, off := range retryOffsets {
		goal := end
		goal.Heading = NormalizeAngle(end.Heading + off)
		if path, ok := tp.firstClear(start, goal); ok {
			return path, nil
		}
	}
	return model.TransitionPath{}, fmt.Errorf("%w: (%.1f,%.1f) -> (%.1f,%.1f)",
		ErrTransitionUnreachable, start.Point.X, start.Point.Y, end.Point.X, end.Point.Y)
}

// ConnectOrbit joins target tangentially. The entry point starts at the
// perimeter point nearest start and is moved around the orbit when
// blocked. The returned orbit carries the chosen EntryPhase.
func (tp *TransitionPlanner) ConnectOrbit(start model.Pose, target model.Orbit) (model.TransitionPath, model.Orbit, error) {
	base := target.NearestPhase(start.Point)
	for _, off := range retryOffsets {
		o := target
		o.EntryPhase = retryEntryPhase(o, base, off)
		if path, ok := tp.firstClear(start, o.EntryPose()); ok {
			return path, o, nil
		}
	}
	return model.TransitionPath{}, target, fmt.Errorf("%w: (%.1f,%.1f) -> %s",
		ErrTransitionUnreachable, start.Point.X, start.Point.Y, target.ID)
}

// retryEntryPhase moves base round the perimeter by off times the radius.
// On a circle that turns the entry heading by off. On a racetrack the
// straights take up part of the distance, so the heading turns by less.
func retryEntryPhase(o model.Orbit, base, off float64) float64 {
	per := o.Perimeter()
	return math.Mod(base+off*o.Radius+per, per)
}

// firstClear walks the feasible families shortest first and returns the
// first whose sampled path stays clear.
func (tp *TransitionPlanner) firstClear(start, end model.Pose) (model.TransitionPath, bool) {
	for _, cand := range DubinsCandidates(start, end, tp.radius) {
		path := SampleTransition(cand, tp.step)
		if tp.Clear(path.Waypoints) {
			return path, true
		}
	}
	return model.TransitionPath{}, false
}

// Clear reports whether the polyline keeps the inflation margin from every
// obstacle and no-fly zone.
func (tp *TransitionPlanner) Clear(pts []model.Point) bool {
	for _, o := range tp.obstacles {
		margin := inflationFor(o, tp.margin, tp.noFly)
		for i := 1; i < len(pts); i++ {
			if !SegmentClear(pts[i-1], pts[i], o, margin) {
				return false
			}
		}
	}
	return true
}
