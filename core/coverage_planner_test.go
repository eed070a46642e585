package core

import (
	"context"
	"errors"
	"testing"

	"github.com/signalsfoundry/loiter-planner/internal/config"
	"github.com/signalsfoundry/loiter-planner/model"
)

func TestCoveragePlannerReachesTargetOnEmptyMap(t *testing.T) {
	cfg := smallConfig()
	planner, err := NewCoveragePlanner(cfg)
	if err != nil {
		t.Fatalf("NewCoveragePlanner: %v", err)
	}
	m := mustMap(t, 100, 100, 2, model.Pt(0, 0))

	out, res, err := planner.Plan(context.Background(), m)
	if err != nil {
		t.Fatalf("Plan: %v", err)
	}
	if res.Achieved < 0.95 {
		t.Fatalf("achieved coverage %.3f, want >= 0.95", res.Achieved)
	}
	if res.Status != model.CoverageComplete {
		t.Fatalf("status = %v, want complete", res.Status)
	}
	if len(res.Orbits) == 0 || len(res.Orbits) > cfg.Planner.MaxOrbits {
		t.Fatalf("orbit count %d outside (0, %d]", len(res.Orbits), cfg.Planner.MaxOrbits)
	}
	if res.Iterations > cfg.Planner.MaxOrbits {
		t.Fatalf("iterations %d exceed the orbit cap", res.Iterations)
	}
	if got := out.Coverage.Fraction(); got != res.Achieved {
		t.Fatalf("returned grid fraction %v != result %v", got, res.Achieved)
	}
	if m.Coverage.CoveredCount() != 0 {
		t.Fatalf("planner modified the caller's grid")
	}
}

func TestCoveragePlannerGreedyProgress(t *testing.T) {
	planner, err := NewCoveragePlanner(smallConfig())
	if err != nil {
		t.Fatalf("NewCoveragePlanner: %v", err)
	}
	m := mustMap(t, 100, 100, 2, model.Pt(0, 0))
	_, res, err := planner.Plan(context.Background(), m)
	if err != nil {
		t.Fatalf("Plan: %v", err)
	}
	total := 0
	prev := int(^uint(0) >> 1)
	for i, o := range res.Orbits {
		if o.NewlyCovered <= 0 {
			t.Fatalf("orbit %d added no coverage", i)
		}
		// Equal energy cost per orbit makes greedy gains non-increasing.
		if o.NewlyCovered > prev {
			t.Fatalf("orbit %d gain %d exceeds previous gain %d", i, o.NewlyCovered, prev)
		}
		prev = o.NewlyCovered
		total += o.NewlyCovered
	}
	if want := m.Coverage.SurveyableCount(); float64(total)/float64(want) != res.Achieved {
		t.Fatalf("sum of gains %d inconsistent with achieved %.4f", total, res.Achieved)
	}
}

func TestCoveragePlannerUnderTargetIsNotAnError(t *testing.T) {
	cfg := smallConfig()
	cfg.Planner.MaxOrbits = 2
	planner, err := NewCoveragePlanner(cfg)
	if err != nil {
		t.Fatalf("NewCoveragePlanner: %v", err)
	}
	_, res, err := planner.Plan(context.Background(), mustMap(t, 100, 100, 2, model.Pt(0, 0)))
	if err != nil {
		t.Fatalf("Plan: %v", err)
	}
	if res.Status != model.CoverageUnderTarget {
		t.Fatalf("status = %v, want under-target", res.Status)
	}
	if len(res.Orbits) != 2 {
		t.Fatalf("got %d orbits, want the cap of 2", len(res.Orbits))
	}
	if res.Achieved <= 0 || res.Achieved >= 0.95 {
		t.Fatalf("achieved %.3f outside (0, 0.95)", res.Achieved)
	}
}

func TestCoveragePlannerAvoidsObstacles(t *testing.T) {
	cfg := smallConfig()
	obstacles := []model.Obstacle{
		{ID: "rock", Center: model.Pt(50, 50), Radius: 12, Known: true},
		{ID: "nfz", Center: model.Pt(20, 80), Radius: 8, NoFly: true, Known: true},
	}
	planner, err := NewCoveragePlanner(cfg)
	if err != nil {
		t.Fatalf("NewCoveragePlanner: %v", err)
	}
	_, res, err := planner.Plan(context.Background(), mustMap(t, 100, 100, 2, model.Pt(0, 0), obstacles...))
	if err != nil {
		t.Fatalf("Plan: %v", err)
	}
	if len(res.Orbits) == 0 {
		t.Fatalf("expected orbits around the obstacles")
	}
	for _, o := range res.Orbits {
		for _, ob := range obstacles {
			margin := inflationFor(ob, cfg.Planner.ObstacleMargin, cfg.Planner.NoFlyMargin)
			if InsideObstacle(o.Center, ob, margin) {
				t.Fatalf("orbit centre %+v inside inflated %s", o.Center, ob.ID)
			}
		}
	}
}

func TestCoveragePlannerIsDeterministic(t *testing.T) {
	cfg := smallConfig()
	cfg.Planner.LatticeJitter = true
	cfg.Planner.Seed = 42
	planner, err := NewCoveragePlanner(cfg)
	if err != nil {
		t.Fatalf("NewCoveragePlanner: %v", err)
	}
	m := mustMap(t, 100, 60, 2, model.Pt(0, 0))
	_, a, _ := planner.Plan(context.Background(), m)
	_, b, _ := planner.Plan(context.Background(), m)
	if len(a.Orbits) != len(b.Orbits) {
		t.Fatalf("orbit counts differ: %d vs %d", len(a.Orbits), len(b.Orbits))
	}
	for i := range a.Orbits {
		if a.Orbits[i].Center != b.Orbits[i].Center {
			t.Fatalf("orbit %d differs: %+v vs %+v", i, a.Orbits[i].Center, b.Orbits[i].Center)
		}
	}
}

func TestNewCoveragePlannerRejectsInvalidConfig(t *testing.T) {
	cfg := smallConfig()
	cfg.Planner.OverlapFactor = 1
	if _, err := NewCoveragePlanner(cfg); !errors.Is(err, config.ErrInvalidConfiguration) {
		t.Fatalf("err = %v, want ErrInvalidConfiguration", err)
	}
}

func TestCoveragePlannerHonoursCancellation(t *testing.T) {
	planner, err := NewCoveragePlanner(smallConfig())
	if err != nil {
		t.Fatalf("NewCoveragePlanner: %v", err)
	}
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, _, err := planner.Plan(ctx, mustMap(t, 100, 100, 2, model.Pt(0, 0))); !errors.Is(err, context.Canceled) {
		t.Fatalf("err = %v, want context.Canceled", err)
	}
}

func TestSequenceNearestNeighbor(t *testing.T) {
	orbits := []model.Orbit{
		{Center: model.Pt(90, 0)},
		{Center: model.Pt(10, 0)},
		{Center: model.Pt(50, 0)},
	}
	seq := SequenceNearestNeighbor(model.Pt(0, 0), orbits)
	want := []float64{10, 50, 90}
	for i, o := range seq {
		if o.Center.X != want[i] || o.Index != i {
			t.Fatalf("seq[%d] = %+v, want x=%v index=%d", i, o, want[i], i)
		}
	}
	if TourLength(model.Pt(0, 0), seq) != 180 {
		t.Fatalf("TourLength = %v, want 180", TourLength(model.Pt(0, 0), seq))
	}
}
