package model

import "math"

// CoverageGrid is a discretised view of the surveyed area. Cells move from
// uncovered to covered and never back. Cells whose centre lies inside an
// obstacle are blocked and do not count towards coverage.
type CoverageGrid struct {
	Cols       int
	Rows       int
	Resolution float64

	covered  []bool
	blocked  []bool
	nCovered int
	nBlocked int
}

// NewCoverageGrid returns an all-uncovered grid spanning width x height.
func NewCoverageGrid(width, height, resolution float64) *CoverageGrid {
	cols := int(math.Ceil(width / resolution))
	rows := int(math.Ceil(height / resolution))
	if cols < 1 {
		cols = 1
	}
	if rows < 1 {
		rows = 1
	}
	return &CoverageGrid{
		Cols:       cols,
		Rows:       rows,
		Resolution: resolution,
		covered:    make([]bool, cols*rows),
		blocked:    make([]bool, cols*rows),
	}
}

func (g *CoverageGrid) index(col, row int) int { return row*g.Cols + col }

// InBounds reports whether (col, row) addresses a grid cell.
func (g *CoverageGrid) InBounds(col, row int) bool {
	return col >= 0 && row >= 0 && col < g.Cols && row < g.Rows
}

// CellCenter returns the map position of the centre of a cell.
func (g *CoverageGrid) CellCenter(col, row int) Point {
	return Point{
		X: (float64(col) + 0.5) * g.Resolution,
		Y: (float64(row) + 0.5) * g.Resolution,
	}
}

// CellOf returns the cell containing p.
func (g *CoverageGrid) CellOf(p Point) (col, row int, ok bool) {
	col = int(math.Floor(p.X / g.Resolution))
	row = int(math.Floor(p.Y / g.Resolution))
	return col, row, g.InBounds(col, row)
}

// Block excludes a cell from coverage accounting. Blocking a covered cell
// is ignored so the covered count never shrinks.
func (g *CoverageGrid) Block(col, row int) {
	if !g.InBounds(col, row) {
		return
	}
	i := g.index(col, row)
	if g.blocked[i] || g.covered[i] {
		return
	}
	g.blocked[i] = true
	g.nBlocked++
}

// Surveyable reports whether the cell counts towards coverage.
func (g *CoverageGrid) Surveyable(col, row int) bool {
	return g.InBounds(col, row) && !g.blocked[g.index(col, row)]
}

// Covered reports whether the cell has been observed.
func (g *CoverageGrid) Covered(col, row int) bool {
	return g.InBounds(col, row) && g.covered[g.index(col, row)]
}

// Mark covers a single surveyable cell and reports whether it was newly
// covered.
func (g *CoverageGrid) Mark(col, row int) bool {
	if !g.Surveyable(col, row) {
		return false
	}
	i := g.index(col, row)
	if g.covered[i] {
		return false
	}
	g.covered[i] = true
	g.nCovered++
	return true
}

// cellRange clips a world-space box to grid indices.
func (g *CoverageGrid) cellRange(minX, minY, maxX, maxY float64) (c0, r0, c1, r1 int) {
	c0 = max(0, int(math.Floor(minX/g.Resolution)))
	r0 = max(0, int(math.Floor(minY/g.Resolution)))
	c1 = min(g.Cols-1, int(math.Floor(maxX/g.Resolution)))
	r1 = min(g.Rows-1, int(math.Floor(maxY/g.Resolution)))
	return c0, r0, c1, r1
}

// CountUncovered counts surveyable, uncovered cells inside the box whose
// centre satisfies inside.
func (g *CoverageGrid) CountUncovered(minX, minY, maxX, maxY float64, inside func(Point) bool) int {
	c0, r0, c1, r1 := g.cellRange(minX, minY, maxX, maxY)
	n := 0
	for row := r0; row <= r1; row++ {
		for col := c0; col <= c1; col++ {
			i := g.index(col, row)
			if g.covered[i] || g.blocked[i] {
				continue
			}
			if inside(g.CellCenter(col, row)) {
				n++
			}
		}
	}
	return n
}

// MarkWithin covers every surveyable cell inside the box whose centre
// satisfies inside, returning the number of newly covered cells.
func (g *CoverageGrid) MarkWithin(minX, minY, maxX, maxY float64, inside func(Point) bool) int {
	c0, r0, c1, r1 := g.cellRange(minX, minY, maxX, maxY)
	n := 0
	for row := r0; row <= r1; row++ {
		for col := c0; col <= c1; col++ {
			i := g.index(col, row)
			if g.covered[i] || g.blocked[i] {
				continue
			}
			if inside(g.CellCenter(col, row)) {
				g.covered[i] = true
				g.nCovered++
				n++
			}
		}
	}
	return n
}

// CoveredCount returns the number of covered cells.
func (g *CoverageGrid) CoveredCount() int { return g.nCovered }

// SurveyableCount returns the number of cells that count towards coverage.
func (g *CoverageGrid) SurveyableCount() int { return len(g.covered) - g.nBlocked }

// Fraction returns covered / surveyable in [0, 1]. A grid with no
// surveyable cells reports 1.
func (g *CoverageGrid) Fraction() float64 {
	total := g.SurveyableCount()
	if total == 0 {
		return 1
	}
	return float64(g.nCovered) / float64(total)
}

// Clone returns a deep copy of the grid.
func (g *CoverageGrid) Clone() *CoverageGrid {
	if g == nil {
		return nil
	}
	cp := *g
	cp.covered = append([]bool(nil), g.covered...)
	cp.blocked = append([]bool(nil), g.blocked...)
	return &cp
}

// SurveillanceMap is the planar field to be surveyed. It is a value owned
// by the caller; planners work on a clone and hand the updated map back.
type SurveillanceMap struct {
	Width      float64
	Height     float64
	Resolution float64
	Start      Point
	Obstacles  []Obstacle
	Coverage   *CoverageGrid
}

// Contains reports whether p lies inside the map bounds.
func (m SurveillanceMap) Contains(p Point) bool {
	return p.X >= 0 && p.Y >= 0 && p.X <= m.Width && p.Y <= m.Height
}

// Clone returns a copy that shares no mutable state with m.
func (m SurveillanceMap) Clone() SurveillanceMap {
	cp := m
	cp.Obstacles = append([]Obstacle(nil), m.Obstacles...)
	cp.Coverage = m.Coverage.Clone()
	return cp
}
