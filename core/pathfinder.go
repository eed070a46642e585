package core

import (
	"container/heap"
	"context"
	"math"

	"github.com/signalsfoundry/loiter-planner/internal/config"
	"github.com/signalsfoundry/loiter-planner/internal/logging"
	"github.com/signalsfoundry/loiter-planner/model"
)

// InflatedGrid is the occupancy grid searched by the Pathfinder. A cell is
// blocked when its centre lies within an obstacle grown by its safety
// margin. Cells outside the grid count as blocked.
type InflatedGrid struct {
	Cols       int
	Rows       int
	Resolution float64

	blocked   []bool
	obstacles []model.Obstacle
	margin    float64
	noFly     float64
}

// NewInflatedGrid rasterises the map's obstacles at the planner's grid
// resolution.
func NewInflatedGrid(m model.SurveillanceMap, cfg config.Config) *InflatedGrid {
	res := cfg.Planner.GridResolution
	cols := max(1, int(math.Ceil(m.Width/res)))
	rows := max(1, int(math.Ceil(m.Height/res)))
	g := &InflatedGrid{
		Cols:       cols,
		Rows:       rows,
		Resolution: res,
		blocked:    make([]bool, cols*rows),
		obstacles:  append([]model.Obstacle(nil), m.Obstacles...),
		margin:     cfg.Planner.ObstacleMargin,
		noFly:      cfg.Planner.NoFlyMargin,
	}
	for row := 0; row < rows; row++ {
		for col := 0; col < cols; col++ {
			c := g.CellCenter(col, row)
			for _, o := range g.obstacles {
				if InsideObstacle(c, o, inflationFor(o, g.margin, g.noFly)) {
					g.blocked[row*cols+col] = true
					break
				}
			}
		}
	}
	return g
}

// NewInflatedGridFromMask builds a grid from an explicit row-major
// occupancy mask.
func NewInflatedGridFromMask(cols, rows int, resolution float64, blocked []bool) *InflatedGrid {
	mask := make([]bool, cols*rows)
	copy(mask, blocked)
	return &InflatedGrid{Cols: cols, Rows: rows, Resolution: resolution, blocked: mask}
}

// Blocked reports whether a cell may not be entered.
func (g *InflatedGrid) Blocked(col, row int) bool {
	if col < 0 || row < 0 || col >= g.Cols || row >= g.Rows {
		return true
	}
	return g.blocked[row*g.Cols+col]
}

// CellCenter returns the map position of a cell's centre.
func (g *InflatedGrid) CellCenter(col, row int) model.Point {
	return model.Pt((float64(col)+0.5)*g.Resolution, (float64(row)+0.5)*g.Resolution)
}

// CellOf returns the cell containing p, clamped onto the grid.
func (g *InflatedGrid) CellOf(p model.Point) (col, row int) {
	col = int(math.Floor(p.X / g.Resolution))
	row = int(math.Floor(p.Y / g.Resolution))
	return min(max(col, 0), g.Cols-1), min(max(row, 0), g.Rows-1)
}

// ChordClear reports whether the straight segment a-b stays in free cells
// and, where obstacle geometry is known, outside every inflated obstacle.
func (g *InflatedGrid) ChordClear(a, b model.Point) bool {
	for _, o := range g.obstacles {
		if !SegmentClear(a, b, o, inflationFor(o, g.margin, g.noFly)) {
			return false
		}
	}
	step := g.Resolution / 4
	n := int(math.Ceil(a.DistanceTo(b) / step))
	for i := 0; i <= n; i++ {
		t := 0.0
		if n > 0 {
			t = float64(i) / float64(n)
		}
		p := a.Add(b.Sub(a).Scale(t))
		col := int(math.Floor(p.X / g.Resolution))
		row := int(math.Floor(p.Y / g.Resolution))
		if g.Blocked(col, row) {
			return false
		}
	}
	return true
}

// nearestFree finds the free cell closest (in breadth-first ring order) to
// (col, row).
func (g *InflatedGrid) nearestFree(col, row int) (int, int, bool) {
	if !g.Blocked(col, row) {
		return col, row, true
	}
	seen := make([]bool, g.Cols*g.Rows)
	queue := []int{row*g.Cols + col}
	seen[queue[0]] = true
	for len(queue) > 0 {
		cur := queue[0]
		queue = queue[1:]
		c, r := cur%g.Cols, cur/g.Cols
		for _, d := range neighbours {
			nc, nr := c+d.dc, r+d.dr
			if nc < 0 || nr < 0 || nc >= g.Cols || nr >= g.Rows {
				continue
			}
			i := nr*g.Cols + nc
			if seen[i] {
				continue
			}
			if !g.blocked[i] {
				return nc, nr, true
			}
			seen[i] = true
			queue = append(queue, i)
		}
	}
	return 0, 0, false
}

var neighbours = []struct {
	dc, dr int
	cost   float64
}{
	{1, 0, 1}, {-1, 0, 1}, {0, 1, 1}, {0, -1, 1},
	{1, 1, math.Sqrt2}, {-1, 1, math.Sqrt2}, {1, -1, math.Sqrt2}, {-1, -1, math.Sqrt2},
}

// Pathfinder runs a bounded best-first search over an InflatedGrid.
type Pathfinder struct {
	grid         *InflatedGrid
	iterationCap int
	opt          options
}

// NewPathfinder returns a pathfinder that gives up after the configured
// number of node expansions.
func NewPathfinder(grid *InflatedGrid, cfg config.Config, opts ...Option) *Pathfinder {
	return &Pathfinder{grid: grid, iterationCap: cfg.Planner.PathfinderIterationCap, opt: buildOptions(opts)}
}

// FindPath returns a non-empty waypoint sequence from start to goal. When
// the search exhausts its budget or the frontier, the result is the direct
// segment with Fallback set; callers must treat it as possibly unsafe.
func (pf *Pathfinder) FindPath(ctx context.Context, start, goal model.Point) model.GridPath {
	g := pf.grid
	sc, sr := g.CellOf(start)
	gc, gr := g.CellOf(goal)
	sc, sr, okS := g.nearestFree(sc, sr)
	gc, gr, okG := g.nearestFree(gc, gr)
	if !okS || !okG {
		return pf.fallback(ctx, start, goal, 0, "no free cell near endpoint")
	}

	cells, cost, expanded, ok := pf.search(sr*g.Cols+sc, gr*g.Cols+gc)
	if !ok {
		return pf.fallback(ctx, start, goal, expanded, "search exhausted")
	}

	pts := make([]model.Point, 0, len(cells)+2)
	pts = append(pts, start)
	for _, i := range cells {
		pts = append(pts, g.CellCenter(i%g.Cols, i/g.Cols))
	}
	pts = append(pts, goal)
	pts = dedupe(pts)
	pts = pf.smooth(pts)
	return model.GridPath{
		Waypoints:  pts,
		Length:     PathLength(pts),
		SearchCost: cost,
		Expanded:   expanded,
	}
}

func (pf *Pathfinder) fallback(ctx context.Context, start, goal model.Point, expanded int, reason string) model.GridPath {
	pf.opt.log.Warn(ctx, "pathfinder fell back to direct segment",
		logging.String("reason", reason),
		logging.Int("expanded", expanded),
		logging.Int("iteration_cap", pf.iterationCap),
	)
	pf.opt.recorder.IncPathFallback()
	pts := []model.Point{start, goal}
	return model.GridPath{
		Waypoints: pts,
		Length:    PathLength(pts),
		Expanded:  expanded,
		Fallback:  true,
	}
}

type searchNode struct {
	cell int
	f, h float64
	seq  int
}

type frontier []searchNode

func (q frontier) Len() int { return len(q) }
func (q frontier) Less(i, j int) bool {
	if q[i].f != q[j].f {
		return q[i].f < q[j].f
	}
	if q[i].h != q[j].h {
		return q[i].h < q[j].h
	}
	return q[i].seq < q[j].seq
}
func (q frontier) Swap(i, j int) { q[i], q[j] = q[j], q[i] }
func (q *frontier) Push(x any)   { *q = append(*q, x.(searchNode)) }
func (q *frontier) Pop() any {
	old := *q
	n := old[len(old)-1]
	*q = old[:len(old)-1]
	return n
}

// search returns the cell sequence from start to goal (inclusive), its cost
// in map units and the number of expansions.
func (pf *Pathfinder) search(start, goal int) ([]int, float64, int, bool) {
	g := pf.grid
	res := g.Resolution
	gc, gr := goal%g.Cols, goal/g.Cols
	heuristic := func(i int) float64 {
		return math.Hypot(float64(i%g.Cols-gc), float64(i/g.Cols-gr)) * res
	}

	n := g.Cols * g.Rows
	cost := make([]float64, n)
	for i := range cost {
		cost[i] = math.Inf(1)
	}
	parent := make([]int, n)
	closed := make([]bool, n)
	cost[start] = 0
	parent[start] = -1

	seq := 0
	q := &frontier{{cell: start, f: heuristic(start), h: heuristic(start)}}
	expanded := 0
	for q.Len() > 0 {
		cur := heap.Pop(q).(searchNode)
		if closed[cur.cell] {
			continue
		}
		if cur.cell == goal {
			return walkBack(parent, goal), cost[goal], expanded, true
		}
		if expanded >= pf.iterationCap {
			return nil, 0, expanded, false
		}
		closed[cur.cell] = true
		expanded++

		c, r := cur.cell%g.Cols, cur.cell/g.Cols
		for _, d := range neighbours {
			nc, nr := c+d.dc, r+d.dr
			if g.Blocked(nc, nr) {
				continue
			}
			// No corner cutting past a blocked orthogonal neighbour.
			if d.dc != 0 && d.dr != 0 && (g.Blocked(c+d.dc, r) || g.Blocked(c, r+d.dr)) {
				continue
			}
			next := nr*g.Cols + nc
			if closed[next] {
				continue
			}
			tentative := cost[cur.cell] + d.cost*res
			if tentative >= cost[next] {
				continue
			}
			cost[next] = tentative
			parent[next] = cur.cell
			seq++
			h := heuristic(next)
			heap.Push(q, searchNode{cell: next, f: tentative + h, h: h, seq: seq})
		}
	}
	return nil, 0, expanded, false
}

func walkBack(parent []int, goal int) []int {
	var out []int
	for i := goal; i != -1; i = parent[i] {
		out = append(out, i)
	}
	for l, r := 0, len(out)-1; l < r; l, r = l+1, r-1 {
		out[l], out[r] = out[r], out[l]
	}
	return out
}

// smooth drops interior waypoints while the chord that replaces them stays
// clear, anchoring on each kept point in turn.
func (pf *Pathfinder) smooth(pts []model.Point) []model.Point {
	if len(pts) <= 2 {
		return pts
	}
	out := []model.Point{pts[0]}
	anchor := 0
	for anchor < len(pts)-1 {
		next := anchor + 1
		for j := len(pts) - 1; j > anchor+1; j-- {
			if pf.grid.ChordClear(pts[anchor], pts[j]) {
				next = j
				break
			}
		}
		out = append(out, pts[next])
		anchor = next
	}
	return out
}

func dedupe(pts []model.Point) []model.Point {
	out := pts[:1]
	for _, p := range pts[1:] {
		if p != out[len(out)-1] {
			out = append(out, p)
		}
	}
	return out
}
