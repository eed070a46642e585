package core

import (
	"errors"
	"fmt"

	"github.com/signalsfoundry/loiter-planner/model"
)

// ErrInvalidMap is returned for maps with non-positive extent or resolution
// or a start position outside the field.
var ErrInvalidMap = errors.New("invalid surveillance map")

// NewSurveillanceMap builds a map with an all-uncovered coverage grid.
// Cells whose centre lies inside an obstacle or no-fly zone are excluded
// from coverage accounting.
func NewSurveillanceMap(width, height, resolution float64, start model.Point, obstacles []model.Obstacle) (model.SurveillanceMap, error) {
	if width <= 0 || height <= 0 || resolution <= 0 {
		return model.SurveillanceMap{}, fmt.Errorf("%w: width %v, height %v, resolution %v", ErrInvalidMap, width, height, resolution)
	}
	m := model.SurveillanceMap{
		Width:      width,
		Height:     height,
		Resolution: resolution,
		Start:      start,
		Obstacles:  append([]model.Obstacle(nil), obstacles...),
		Coverage:   model.NewCoverageGrid(width, height, resolution),
	}
	if !m.Contains(start) {
		return model.SurveillanceMap{}, fmt.Errorf("%w: start %+v outside %vx%v", ErrInvalidMap, start, width, height)
	}
	blockObstacleCells(m.Coverage, m.Obstacles)
	return m, nil
}

func blockObstacleCells(g *model.CoverageGrid, obstacles []model.Obstacle) {
	for _, o := range obstacles {
		ext := o.Radius
		for _, v := range o.Polygon {
			ext = max(ext, v.DistanceTo(o.Center))
		}
		c0, r0, _ := g.CellOf(model.Pt(o.Center.X-ext, o.Center.Y-ext))
		c1, r1, _ := g.CellOf(model.Pt(o.Center.X+ext, o.Center.Y+ext))
		for row := max(0, r0); row <= min(g.Rows-1, r1); row++ {
			for col := max(0, c0); col <= min(g.Cols-1, c1); col++ {
				if InsideObstacle(g.CellCenter(col, row), o, 0) {
					g.Block(col, row)
				}
			}
		}
	}
}

// inflationFor returns the safety margin applied around o.
func inflationFor(o model.Obstacle, physical, noFly float64) float64 {
	if o.NoFly {
		return noFly
	}
	return physical
}
