package core

import (
	"math"

	"github.com/signalsfoundry/loiter-planner/model"
)

// angleEps snaps angles that are a rounding error away from a full turn
// back to zero.
const angleEps = 1e-9

// dubinsWord is one closed-form family candidate in units of the turn
// radius: t, p, q are the three segment lengths.
type dubinsWord struct {
	family  model.PathFamily
	t, p, q float64
}

func (w dubinsWord) length() float64 { return w.t + w.p + w.q }

// dubinsFrame holds the normalised problem: distance d in turn radii and
// the start/end headings alpha, beta relative to the start-to-end line.
type dubinsFrame struct {
	d, alpha, beta float64
	sa, sb, ca, cb float64
	cab, dsq       float64
}

func newDubinsFrame(start, end model.Pose, r float64) dubinsFrame {
	dx, dy := end.Point.X-start.Point.X, end.Point.Y-start.Point.Y
	d := math.Hypot(dx, dy) / r
	theta := 0.0
	if d > 0 {
		theta = Mod2Pi(math.Atan2(dy, dx))
	}
	a := Mod2Pi(start.Heading - theta)
	b := Mod2Pi(end.Heading - theta)
	return dubinsFrame{
		d: d, alpha: a, beta: b,
		sa: math.Sin(a), sb: math.Sin(b), ca: math.Cos(a), cb: math.Cos(b),
		cab: math.Cos(a - b), dsq: d * d,
	}
}

func snap(a float64) float64 {
	a = Mod2Pi(a)
	if a > 2*math.Pi-angleEps {
		return 0
	}
	return a
}

// solve returns the segment lengths for family f, or false when the
// family's geometric precondition fails.
func (f dubinsFrame) solve(fam model.PathFamily) (dubinsWord, bool) {
	w := dubinsWord{family: fam}
	switch fam {
	case model.FamilyLSL:
		tmp := f.d + f.sa - f.sb
		psq := 2 + f.dsq - 2*f.cab + 2*f.d*(f.sa-f.sb)
		if psq < 0 {
			return w, false
		}
		t1 := math.Atan2(f.cb-f.ca, tmp)
		w.t, w.p, w.q = snap(t1-f.alpha), math.Sqrt(psq), snap(f.beta-t1)
	case model.FamilyRSR:
		tmp := f.d - f.sa + f.sb
		psq := 2 + f.dsq - 2*f.cab + 2*f.d*(f.sb-f.sa)
		if psq < 0 {
			return w, false
		}
		t1 := math.Atan2(f.ca-f.cb, tmp)
		w.t, w.p, w.q = snap(f.alpha-t1), math.Sqrt(psq), snap(t1-f.beta)
	case model.FamilyLSR:
		psq := -2 + f.dsq + 2*f.cab + 2*f.d*(f.sa+f.sb)
		if psq < 0 {
			return w, false
		}
		p := math.Sqrt(psq)
		t0 := math.Atan2(-f.ca-f.cb, f.d+f.sa+f.sb) - math.Atan2(-2, p)
		w.t, w.p, w.q = snap(t0-f.alpha), p, snap(t0-f.beta)
	case model.FamilyRSL:
		psq := -2 + f.dsq + 2*f.cab - 2*f.d*(f.sa+f.sb)
		if psq < 0 {
			return w, false
		}
		p := math.Sqrt(psq)
		t0 := math.Atan2(f.ca+f.cb, f.d-f.sa-f.sb) - math.Atan2(2, p)
		w.t, w.p, w.q = snap(f.alpha-t0), p, snap(f.beta-t0)
	case model.FamilyRLR:
		// Centres more than 4r apart leave no room for the middle arc.
		tmp := (6 - f.dsq + 2*f.cab + 2*f.d*(f.sa-f.sb)) / 8
		if math.Abs(tmp) > 1 {
			return w, false
		}
		phi := math.Atan2(f.ca-f.cb, f.d-f.sa+f.sb)
		p := snap(2*math.Pi - math.Acos(tmp))
		t := snap(f.alpha - phi + snap(p/2))
		w.t, w.p, w.q = t, p, snap(f.alpha-f.beta-t+p)
	case model.FamilyLRL:
		tmp := (6 - f.dsq + 2*f.cab + 2*f.d*(f.sb-f.sa)) / 8
		if math.Abs(tmp) > 1 {
			return w, false
		}
		phi := math.Atan2(f.ca-f.cb, f.d+f.sa-f.sb)
		p := snap(2*math.Pi - math.Acos(tmp))
		t := snap(-f.alpha - phi + p/2)
		w.t, w.p, w.q = t, p, snap(f.beta-f.alpha-t+p)
	default:
		return w, false
	}
	return w, true
}

// step advances a pose along one segment of the given length in map units.
func step(pose model.Pose, turn model.Turn, length, r float64) model.Pose {
	x, y, h := pose.Point.X, pose.Point.Y, pose.Heading
	switch turn {
	case model.TurnLeft:
		phi := length / r
		x += r * (math.Sin(h+phi) - math.Sin(h))
		y += r * (math.Cos(h) - math.Cos(h+phi))
		h += phi
	case model.TurnRight:
		phi := length / r
		x += r * (math.Sin(h) - math.Sin(h-phi))
		y += r * (math.Cos(h-phi) - math.Cos(h))
		h -= phi
	default:
		x += length * math.Cos(h)
		y += length * math.Sin(h)
	}
	return model.Pose{Point: model.Pt(x, y), Heading: h}
}

// endpointTolerance bounds how far a closed-form word may land from the
// requested end pose before it is discarded.
func endpointTolerance(r float64) float64 { return 1e-6 * math.Max(1, r) }

// DubinsCandidates returns every feasible family connecting start to end
// with turn radius r, each verified by integrating its segments. The
// result is ordered by length, ties in family order.
func DubinsCandidates(start, end model.Pose, r float64) []model.TransitionPath {
	if !(r > 0) || math.IsInf(r, 0) {
		return nil
	}
	if start.Point.DistanceTo(end.Point) <= endpointTolerance(r) &&
		math.Abs(AngleDiff(start.Heading, end.Heading)) <= angleEps {
		// Coincident poses: the tangent direction is undefined, so every
		// closed form would report a spurious full circle.
		return []model.TransitionPath{{
			Family:   model.FamilyLSL,
			Radius:   r,
			Start:    start,
			End:      end,
			Segments: [3]model.Segment{{Turn: model.TurnLeft}, {Turn: model.TurnStraight}, {Turn: model.TurnLeft}},
		}}
	}
	frame := newDubinsFrame(start, end, r)
	var out []model.TransitionPath
	for _, fam := range model.Families {
		w, ok := frame.solve(fam)
		if !ok || math.IsNaN(w.length()) {
			continue
		}
		turns := fam.Turns()
		tp := model.TransitionPath{
			Family: fam,
			Radius: r,
			Start:  start,
			End:    end,
			Segments: [3]model.Segment{
				{Turn: turns[0], Length: w.t * r},
				{Turn: turns[1], Length: w.p * r},
				{Turn: turns[2], Length: w.q * r},
			},
			Length: w.length() * r,
		}
		if !landsOn(tp, end) {
			continue
		}
		out = append(out, tp)
	}
	sortByLength(out)
	return out
}

func landsOn(tp model.TransitionPath, end model.Pose) bool {
	pose := tp.Start
	for _, s := range tp.Segments {
		pose = step(pose, s.Turn, s.Length, tp.Radius)
	}
	tol := endpointTolerance(tp.Radius)
	return pose.Point.DistanceTo(end.Point) <= tol &&
		math.Abs(AngleDiff(pose.Heading, end.Heading)) <= 1e-6
}

// insertion sort keeps equal lengths in family order.
func sortByLength(paths []model.TransitionPath) {
	for i := 1; i < len(paths); i++ {
		for j := i; j > 0 && paths[j].Length < paths[j-1].Length; j-- {
			paths[j], paths[j-1] = paths[j-1], paths[j]
		}
	}
}

// ShortestDubins returns the minimum-length feasible path, or false when no
// family is feasible.
func ShortestDubins(start, end model.Pose, r float64) (model.TransitionPath, bool) {
	c := DubinsCandidates(start, end, r)
	if len(c) == 0 {
		return model.TransitionPath{}, false
	}
	return c[0], true
}

// SampleTransition fills tp.Waypoints by walking each segment at a fixed
// arc-length step. The first waypoint is the start position and the last is
// the integrated end position.
func SampleTransition(tp model.TransitionPath, stepLen float64) model.TransitionPath {
	pose := tp.Start
	pts := []model.Point{pose.Point}
	for _, seg := range tp.Segments {
		if seg.Length <= 0 {
			continue
		}
		n := int(math.Ceil(seg.Length / stepLen))
		ds := seg.Length / float64(n)
		for i := 0; i < n; i++ {
			pose = step(pose, seg.Turn, ds, tp.Radius)
			pts = append(pts, pose.Point)
		}
	}
	tp.Waypoints = pts
	return tp
}
