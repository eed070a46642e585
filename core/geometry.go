package core

import (
	"math"

	"gonum.org/v1/gonum/spatial/r2"

	"github.com/signalsfoundry/loiter-planner/model"
)

// NormalizeAngle wraps a into [-pi, pi).
func NormalizeAngle(a float64) float64 {
	a = math.Mod(a+math.Pi, 2*math.Pi)
	if a < 0 {
		a += 2 * math.Pi
	}
	return a - math.Pi
}

// AngleDiff returns the signed smallest rotation taking from onto to.
func AngleDiff(from, to float64) float64 {
	return NormalizeAngle(to - from)
}

// Mod2Pi wraps a into [0, 2pi).
func Mod2Pi(a float64) float64 {
	a = math.Mod(a, 2*math.Pi)
	if a < 0 {
		a += 2 * math.Pi
	}
	return a
}

// PointInCircle reports whether p lies inside or on the circle.
func PointInCircle(p, center model.Point, radius float64) bool {
	return p.DistanceTo(center) <= radius
}

// closestOnSegment returns the point of segment ab nearest to c.
func closestOnSegment(a, b, c model.Point) model.Point {
	v := r2.Sub(b.Vec(), a.Vec())
	l2 := r2.Dot(v, v)
	if l2 == 0 {
		return a
	}
	// t minimises |a + t v - c|^2, clamped to the segment.
	t := r2.Dot(r2.Sub(c.Vec(), a.Vec()), v) / l2
	if t < 0 {
		t = 0
	} else if t > 1 {
		t = 1
	}
	return model.Point(r2.Add(a.Vec(), r2.Scale(t, v)))
}

// DistanceToSegment returns the distance from c to segment ab.
func DistanceToSegment(a, b, c model.Point) float64 {
	return closestOnSegment(a, b, c).DistanceTo(c)
}

// SegmentIntersectsCircle reports whether segment ab passes through the
// closed disc of the given radius.
func SegmentIntersectsCircle(a, b, center model.Point, radius float64) bool {
	return DistanceToSegment(a, b, center) <= radius
}

// RayCircleDistance returns the distance along a ray from origin with the
// given heading to the first intersection with the circle, if that
// intersection lies within maxRange. An origin inside the circle reports
// distance 0.
func RayCircleDistance(origin model.Point, heading float64, center model.Point, radius, maxRange float64) (float64, bool) {
	dir := r2.Vec{X: math.Cos(heading), Y: math.Sin(heading)}
	oc := r2.Sub(origin.Vec(), center.Vec())
	c := r2.Dot(oc, oc) - radius*radius
	if c <= 0 {
		return 0, true
	}
	b := r2.Dot(oc, dir)
	if b >= 0 {
		return 0, false
	}
	disc := b*b - c
	if disc < 0 {
		return 0, false
	}
	t := -b - math.Sqrt(disc)
	if t > maxRange {
		return 0, false
	}
	return t, true
}

// PointInPolygon reports whether p lies inside the polygon using the
// even-odd crossing rule. Polygons with fewer than three vertices contain
// nothing.
func PointInPolygon(p model.Point, poly []model.Point) bool {
	if len(poly) < 3 {
		return false
	}
	inside := false
	j := len(poly) - 1
	for i := range poly {
		pi, pj := poly[i], poly[j]
		if (pi.Y > p.Y) != (pj.Y > p.Y) {
			x := pj.X + (p.Y-pj.Y)*(pi.X-pj.X)/(pi.Y-pj.Y)
			if p.X < x {
				inside = !inside
			}
		}
		j = i
	}
	return inside
}

// DistanceToPolygon returns the distance from p to the polygon boundary,
// or 0 when p is inside.
func DistanceToPolygon(p model.Point, poly []model.Point) float64 {
	if PointInPolygon(p, poly) {
		return 0
	}
	best := math.Inf(1)
	j := len(poly) - 1
	for i := range poly {
		best = math.Min(best, DistanceToSegment(poly[j], poly[i], p))
		j = i
	}
	return best
}

// ObstacleClearance returns the distance from p to the obstacle boundary,
// negative inside circular obstacles and 0 inside polygonal zones.
func ObstacleClearance(p model.Point, o model.Obstacle) float64 {
	if len(o.Polygon) >= 3 {
		return DistanceToPolygon(p, o.Polygon)
	}
	return p.DistanceTo(o.Center) - o.Radius
}

// InsideObstacle reports whether p lies within margin of the obstacle.
func InsideObstacle(p model.Point, o model.Obstacle, margin float64) bool {
	if len(o.Polygon) >= 3 && PointInPolygon(p, o.Polygon) {
		return true
	}
	return ObstacleClearance(p, o) <= margin
}

// SegmentClear reports whether segment ab keeps more than margin from the
// obstacle.
func SegmentClear(a, b model.Point, o model.Obstacle, margin float64) bool {
	if len(o.Polygon) < 3 {
		return !SegmentIntersectsCircle(a, b, o.Center, o.Radius+margin)
	}
	if PointInPolygon(a, o.Polygon) || PointInPolygon(b, o.Polygon) {
		return false
	}
	j := len(o.Polygon) - 1
	for i := range o.Polygon {
		if segmentDistance(a, b, o.Polygon[j], o.Polygon[i]) <= margin {
			return false
		}
		j = i
	}
	return true
}

// segmentDistance returns the minimum distance between segments ab and cd.
func segmentDistance(a, b, c, d model.Point) float64 {
	if segmentsCross(a, b, c, d) {
		return 0
	}
	return math.Min(
		math.Min(DistanceToSegment(a, b, c), DistanceToSegment(a, b, d)),
		math.Min(DistanceToSegment(c, d, a), DistanceToSegment(c, d, b)),
	)
}

func segmentsCross(a, b, c, d model.Point) bool {
	cross := func(o, p, q model.Point) float64 {
		return r2.Cross(r2.Sub(p.Vec(), o.Vec()), r2.Sub(q.Vec(), o.Vec()))
	}
	d1, d2 := cross(c, d, a), cross(c, d, b)
	d3, d4 := cross(a, b, c), cross(a, b, d)
	return ((d1 > 0 && d2 < 0) || (d1 < 0 && d2 > 0)) &&
		((d3 > 0 && d4 < 0) || (d3 < 0 && d4 > 0))
}

// PathLength returns the polyline length of pts.
func PathLength(pts []model.Point) float64 {
	total := 0.0
	for i := 1; i < len(pts); i++ {
		total += pts[i-1].DistanceTo(pts[i])
	}
	return total
}
