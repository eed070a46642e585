package core

import (
	"context"
	"errors"
	"math"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/google/go-cmp/cmp/cmpopts"

	"github.com/signalsfoundry/loiter-planner/internal/config"
	"github.com/signalsfoundry/loiter-planner/model"
)

func TestMissionPlannerIsDeterministic(t *testing.T) {
	cfg := smallConfig()
	m := mustMap(t, 100, 100, 2, model.Pt(0, 0),
		model.Obstacle{ID: "rock", Center: model.Pt(50, 50), Radius: 8, Known: true})

	a := planFor(t, cfg, m)
	b := planFor(t, cfg, m)
	if a.ID == b.ID {
		t.Fatalf("two plans share ID %q", a.ID)
	}
	opts := cmp.Options{
		cmpopts.IgnoreFields(model.MissionPlan{}, "ID"),
		cmpopts.EquateApprox(0, 1e-12),
	}
	if diff := cmp.Diff(a, b, opts); diff != "" {
		t.Fatalf("plans differ (-first +second):\n%s", diff)
	}
}

func TestMissionPlannerStructure(t *testing.T) {
	cfg := smallConfig()
	m := mustMap(t, 100, 100, 2, model.Pt(0, 0))
	plan := planFor(t, cfg, m)

	if len(plan.Orbits) == 0 {
		t.Fatalf("no orbits planned")
	}
	if len(plan.Legs) != len(plan.Orbits)+1 {
		t.Fatalf("got %d legs for %d orbits, want orbits+1", len(plan.Legs), len(plan.Orbits))
	}
	if plan.Legs[0].From != -1 || plan.Legs[len(plan.Legs)-1].To != -1 {
		t.Fatalf("legs must start and end at home: first %+v last %+v", plan.Legs[0], plan.Legs[len(plan.Legs)-1])
	}
	for i, o := range plan.Orbits {
		if o.Index != i || o.Status != model.OrbitPending {
			t.Fatalf("orbit %d: index %d status %v", i, o.Index, o.Status)
		}
		leg := plan.Legs[i]
		if leg.Kind != model.LegTransition {
			continue
		}
		// A transition ends tangent to the orbit at its entry pose.
		entry := o.EntryPose()
		if d := leg.Transition.End.Point.DistanceTo(entry.Point); d > 1e-6 {
			t.Fatalf("leg %d ends %.3g from orbit entry", i, d)
		}
		if math.Abs(AngleDiff(leg.Transition.End.Heading, entry.Heading)) > 1e-6 {
			t.Fatalf("leg %d arrives with heading %.3f, orbit tangent %.3f", i, leg.Transition.End.Heading, entry.Heading)
		}
	}

	entries := 0
	for i, w := range plan.Waypoints {
		switch w.Role {
		case model.RoleOrbitEntry:
			if w.Point.DistanceTo(plan.Orbits[w.Orbit].EntryPose().Point) > 1e-9 {
				t.Fatalf("waypoint %d is not orbit %d's entry", i, w.Orbit)
			}
			entries++
		case model.RoleOrbitPoint:
			if w.Orbit < 0 || w.Orbit >= len(plan.Orbits) {
				t.Fatalf("orbit point %d references orbit %d", i, w.Orbit)
			}
		default:
			if w.Orbit != -1 {
				t.Fatalf("waypoint %d (%v) tagged with orbit %d", i, w.Role, w.Orbit)
			}
		}
	}
	if entries != len(plan.Orbits) {
		t.Fatalf("%d orbit entries for %d orbits", entries, len(plan.Orbits))
	}
	last := plan.Waypoints[len(plan.Waypoints)-1]
	if last.Role != model.RoleReturn || last.Point.DistanceTo(plan.Home) > 1e-6 {
		t.Fatalf("route ends at %+v, want a return to home", last)
	}

	if plan.TotalLength <= 0 || plan.EstimatedDuration <= 0 || plan.EstimatedEnergyWh <= 0 {
		t.Fatalf("estimates not filled: %+v", plan)
	}
	if plan.CoverageStatus != model.CoverageComplete || len(plan.Warnings) != 0 {
		t.Fatalf("status %v warnings %v", plan.CoverageStatus, plan.Warnings)
	}
}

func TestMissionPlannerWarnings(t *testing.T) {
	cfg := smallConfig()
	cfg.Planner.MaxOrbits = 2
	cfg.Energy.BatteryCapacityWh = 0.1
	m := mustMap(t, 100, 100, 2, model.Pt(0, 0))
	plan := planFor(t, cfg, m)

	if plan.CoverageStatus != model.CoverageUnderTarget {
		t.Fatalf("status = %v, want under-target", plan.CoverageStatus)
	}
	if len(plan.Orbits) != 2 {
		t.Fatalf("got %d orbits, want the cap of 2", len(plan.Orbits))
	}
	want := []string{"below the", "exceeds the"}
	for _, w := range want {
		found := false
		for _, got := range plan.Warnings {
			if strings.Contains(got, w) {
				found = true
			}
		}
		if !found {
			t.Fatalf("warnings %q missing %q", plan.Warnings, w)
		}
	}
}

func TestMissionPlannerWithNoPlaceableOrbits(t *testing.T) {
	cfg := smallConfig()
	// Every lattice ring crosses the inflated rock.
	m := mustMap(t, 40, 40, 2, model.Pt(0, 0),
		model.Obstacle{ID: "rock", Center: model.Pt(20, 20), Radius: 10, Known: true})
	plan := planFor(t, cfg, m)

	if len(plan.Orbits) != 0 || len(plan.Legs) != 0 {
		t.Fatalf("got %d orbits %d legs, want none", len(plan.Orbits), len(plan.Legs))
	}
	if len(plan.Waypoints) != 1 || plan.Waypoints[0].Role != model.RoleReturn {
		t.Fatalf("waypoints = %+v, want a single return home", plan.Waypoints)
	}

	e, err := NewExecutor(cfg, plan, m, nil)
	if err != nil {
		t.Fatalf("NewExecutor: %v", err)
	}
	trace := lifecycleTrace(fly(t, cfg, e))
	// Launch, route completion and arrival all fire on the first tick.
	want := []model.Lifecycle{model.Descent, model.Landed}
	if !cmp.Equal(trace, want) {
		t.Fatalf("trace = %v, want %v", trace, want)
	}
}

func TestNewMissionPlannerRejectsInvalidConfig(t *testing.T) {
	cfg := smallConfig()
	cfg.Vehicle.TurnRadius = 0
	if _, err := NewMissionPlanner(cfg); !errors.Is(err, config.ErrInvalidConfiguration) {
		t.Fatalf("err = %v, want ErrInvalidConfiguration", err)
	}
}

func TestMissionPlannerHonoursCancellation(t *testing.T) {
	mp, err := NewMissionPlanner(smallConfig())
	if err != nil {
		t.Fatalf("NewMissionPlanner: %v", err)
	}
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, _, err := mp.Plan(ctx, mustMap(t, 100, 100, 2, model.Pt(0, 0))); !errors.Is(err, context.Canceled) {
		t.Fatalf("err = %v, want context.Canceled", err)
	}
}
