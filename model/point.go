package model

import (
	"math"

	"gonum.org/v1/gonum/spatial/r2"
)

// Point is a position in map-local distance units.
type Point r2.Vec

// Pt is shorthand for Point{X: x, Y: y}.
func Pt(x, y float64) Point { return Point{X: x, Y: y} }

// Vec returns the point as a gonum vector.
func (p Point) Vec() r2.Vec { return r2.Vec(p) }

// Add returns p + q.
func (p Point) Add(q Point) Point { return Point(r2.Add(r2.Vec(p), r2.Vec(q))) }

// Sub returns p - q.
func (p Point) Sub(q Point) Point { return Point(r2.Sub(r2.Vec(p), r2.Vec(q))) }

// Scale returns p scaled by f.
func (p Point) Scale(f float64) Point { return Point(r2.Scale(f, r2.Vec(p))) }

// Norm returns the Euclidean length of p treated as a vector.
func (p Point) Norm() float64 { return r2.Norm(r2.Vec(p)) }

// DistanceTo returns the straight-line distance between two points.
func (p Point) DistanceTo(q Point) float64 { return p.Sub(q).Norm() }

// HeadingTo returns the bearing from p to q in radians, measured
// counter-clockwise from the +X axis.
func (p Point) HeadingTo(q Point) float64 {
	return math.Atan2(q.Y-p.Y, q.X-p.X)
}

// Offset returns the point reached by travelling dist along heading.
func (p Point) Offset(heading, dist float64) Point {
	return Point{X: p.X + dist*math.Cos(heading), Y: p.Y + dist*math.Sin(heading)}
}

// Pose is an oriented configuration: a position plus a heading in radians.
type Pose struct {
	Point   Point
	Heading float64
}
