package core

import (
	"container/heap"
	"context"
	"math"
	"math/rand"
	"testing"

	"github.com/signalsfoundry/loiter-planner/model"
)

func TestPathfinderAvoidsInflatedObstacle(t *testing.T) {
	cfg := smallConfig()
	rock := model.Obstacle{ID: "rock", Center: model.Pt(50, 50), Radius: 15, Known: true}
	m := mustMap(t, 120, 120, 2, model.Pt(0, 0), rock)
	pf := NewPathfinder(NewInflatedGrid(m, cfg), cfg)

	path := pf.FindPath(context.Background(), model.Pt(0, 0), model.Pt(100, 100))
	if path.Fallback {
		t.Fatalf("unexpected fallback after %d expansions", path.Expanded)
	}
	keep := rock.Radius + cfg.Planner.ObstacleMargin
	for i, p := range path.Waypoints {
		if d := p.DistanceTo(rock.Center); d < keep {
			t.Fatalf("waypoint %d at %+v is %.2f from the obstacle, want >= %.2f", i, p, d, keep)
		}
	}
	if first := path.Waypoints[0]; first != model.Pt(0, 0) {
		t.Fatalf("path starts at %+v", first)
	}
	if last := path.Waypoints[len(path.Waypoints)-1]; last != model.Pt(100, 100) {
		t.Fatalf("path ends at %+v", last)
	}
	if path.Length < model.Pt(0, 0).DistanceTo(model.Pt(100, 100)) {
		t.Fatalf("path length %v shorter than the straight line", path.Length)
	}
}

func TestPathfinderSmoothsOpenField(t *testing.T) {
	cfg := smallConfig()
	m := mustMap(t, 100, 60, 2, model.Pt(0, 0))
	pf := NewPathfinder(NewInflatedGrid(m, cfg), cfg)

	path := pf.FindPath(context.Background(), model.Pt(1, 1), model.Pt(99, 51))
	if path.Fallback {
		t.Fatalf("unexpected fallback")
	}
	if len(path.Waypoints) != 2 {
		t.Fatalf("open field path has %d waypoints, want 2", len(path.Waypoints))
	}
	if path.SearchCost < path.Length {
		t.Fatalf("smoothed length %v exceeds raw search cost %v", path.Length, path.SearchCost)
	}
}

func TestPathfinderFallsBackAtIterationCap(t *testing.T) {
	cfg := smallConfig()
	cfg.Planner.PathfinderIterationCap = 1
	m := mustMap(t, 100, 100, 2, model.Pt(0, 0))
	rec := &countingRecorder{}
	pf := NewPathfinder(NewInflatedGrid(m, cfg), cfg, WithRecorder(rec))

	path := pf.FindPath(context.Background(), model.Pt(1, 1), model.Pt(95, 95))
	if !path.Fallback {
		t.Fatalf("expected the direct-segment fallback")
	}
	if len(path.Waypoints) != 2 || path.Waypoints[0] != model.Pt(1, 1) || path.Waypoints[1] != model.Pt(95, 95) {
		t.Fatalf("fallback waypoints = %+v", path.Waypoints)
	}
	if rec.fallbacks != 1 {
		t.Fatalf("recorded %d fallbacks, want 1", rec.fallbacks)
	}
}

func TestPathfinderFallsBackWhenWalledOff(t *testing.T) {
	cols, rows := 10, 10
	mask := make([]bool, cols*rows)
	for r := 0; r < rows; r++ {
		mask[r*cols+5] = true
	}
	pf := NewPathfinder(NewInflatedGridFromMask(cols, rows, 1, mask), smallConfig())
	path := pf.FindPath(context.Background(), model.Pt(0.5, 0.5), model.Pt(9.5, 9.5))
	if !path.Fallback {
		t.Fatalf("expected fallback across a full wall")
	}
}

func TestPathfinderTotality(t *testing.T) {
	cfg := smallConfig()
	obstacles := []model.Obstacle{
		{ID: "a", Center: model.Pt(30, 30), Radius: 10, Known: true},
		{ID: "b", Center: model.Pt(70, 60), Radius: 12, NoFly: true, Known: true},
	}
	m := mustMap(t, 100, 100, 2, model.Pt(0, 0), obstacles...)
	pf := NewPathfinder(NewInflatedGrid(m, cfg), cfg)

	rng := rand.New(rand.NewSource(3))
	for i := 0; i < 50; i++ {
		// Endpoints may sit inside obstacles or off the map.
		start := model.Pt(rng.Float64()*120-10, rng.Float64()*120-10)
		goal := model.Pt(rng.Float64()*120-10, rng.Float64()*120-10)
		path := pf.FindPath(context.Background(), start, goal)
		if len(path.Waypoints) == 0 {
			t.Fatalf("case %d: empty waypoint sequence", i)
		}
		if path.Waypoints[0] != start || path.Waypoints[len(path.Waypoints)-1] != goal {
			t.Fatalf("case %d: endpoints %+v..%+v, want %+v..%+v", i,
				path.Waypoints[0], path.Waypoints[len(path.Waypoints)-1], start, goal)
		}
	}
}

func TestPathfinderMatchesBruteForceOnSmallGrids(t *testing.T) {
	const cols, rows = 12, 12
	rng := rand.New(rand.NewSource(11))
	for trial := 0; trial < 40; trial++ {
		mask := make([]bool, cols*rows)
		for i := range mask {
			mask[i] = rng.Float64() < 0.25
		}
		mask[0], mask[cols*rows-1] = false, false
		grid := NewInflatedGridFromMask(cols, rows, 1, mask)
		pf := NewPathfinder(grid, smallConfig())

		path := pf.FindPath(context.Background(), model.Pt(0.5, 0.5), model.Pt(cols-0.5, rows-0.5))
		want := bruteForceCost(grid, 0, cols*rows-1)
		if math.IsInf(want, 1) {
			if !path.Fallback {
				t.Fatalf("trial %d: unreachable goal but no fallback", trial)
			}
			continue
		}
		if path.Fallback {
			t.Fatalf("trial %d: fallback on a reachable goal", trial)
		}
		if math.Abs(path.SearchCost-want) > 1e-9 {
			t.Fatalf("trial %d: search cost %v, brute force %v", trial, path.SearchCost, want)
		}
	}
}

// bruteForceCost runs an uninformed Dijkstra with the same move rules.
func bruteForceCost(g *InflatedGrid, start, goal int) float64 {
	dist := make([]float64, g.Cols*g.Rows)
	for i := range dist {
		dist[i] = math.Inf(1)
	}
	dist[start] = 0
	q := &frontier{{cell: start}}
	for q.Len() > 0 {
		cur := heap.Pop(q).(searchNode)
		if cur.f > dist[cur.cell] {
			continue
		}
		c, r := cur.cell%g.Cols, cur.cell/g.Cols
		for _, d := range neighbours {
			nc, nr := c+d.dc, r+d.dr
			if g.Blocked(nc, nr) {
				continue
			}
			if d.dc != 0 && d.dr != 0 && (g.Blocked(c+d.dc, r) || g.Blocked(c, r+d.dr)) {
				continue
			}
			next := nr*g.Cols + nc
			if alt := dist[cur.cell] + d.cost*g.Resolution; alt < dist[next] {
				dist[next] = alt
				heap.Push(q, searchNode{cell: next, f: alt})
			}
		}
	}
	return dist[goal]
}

type countingRecorder struct {
	noopRecorder
	fallbacks int
	skipped   int
	entries   int
	stuck     int
	detected  int
	ticks     int
}

func (r *countingRecorder) IncPathFallback()           { r.fallbacks++ }
func (r *countingRecorder) IncTransitionSkipped()      { r.skipped++ }
func (r *countingRecorder) IncAvoidanceEntry()         { r.entries++ }
func (r *countingRecorder) IncStuck()                  { r.stuck++ }
func (r *countingRecorder) IncObstacleDetected()       { r.detected++ }
func (r *countingRecorder) ObserveTick(model.Snapshot) { r.ticks++ }
