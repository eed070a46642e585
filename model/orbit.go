package model

import (
	"fmt"
	"math"
	"strings"
)

// PatternKind selects the loiter shape and its radius band.
type PatternKind int

const (
	PatternStandard PatternKind = iota
	PatternTight
	PatternWide
	PatternRacetrack
)

// PatternSpec describes the radius band and relative energy cost of a
// pattern kind.
type PatternSpec struct {
	MinRadius        float64
	MaxRadius        float64
	EnergyMultiplier float64
}

var patternSpecs = map[PatternKind]PatternSpec{
	PatternTight:     {MinRadius: 50, MaxRadius: 100, EnergyMultiplier: 1.3},
	PatternStandard:  {MinRadius: 100, MaxRadius: 200, EnergyMultiplier: 1.0},
	PatternWide:      {MinRadius: 200, MaxRadius: 500, EnergyMultiplier: 0.8},
	PatternRacetrack: {MinRadius: 100, MaxRadius: 300, EnergyMultiplier: 0.9},
}

// Spec returns the radius band and energy multiplier for k.
func (k PatternKind) Spec() PatternSpec { return patternSpecs[k] }

func (k PatternKind) String() string {
	switch k {
	case PatternTight:
		return "tight"
	case PatternStandard:
		return "standard"
	case PatternWide:
		return "wide"
	case PatternRacetrack:
		return "racetrack"
	default:
		return fmt.Sprintf("PatternKind(%d)", int(k))
	}
}

// ParsePatternKind maps a configuration string onto a PatternKind.
func ParsePatternKind(s string) (PatternKind, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "standard":
		return PatternStandard, nil
	case "tight":
		return PatternTight, nil
	case "wide":
		return PatternWide, nil
	case "racetrack":
		return PatternRacetrack, nil
	}
	return PatternStandard, fmt.Errorf("unknown pattern kind %q", s)
}

// OrbitStatus is the runtime progress tag of an orbit.
type OrbitStatus int

const (
	OrbitPending OrbitStatus = iota
	OrbitActive
	OrbitDone
	// OrbitSkipped orbits were left before their revolutions were flown.
	OrbitSkipped
)

func (s OrbitStatus) String() string {
	switch s {
	case OrbitActive:
		return "active"
	case OrbitDone:
		return "done"
	case OrbitSkipped:
		return "skipped"
	default:
		return "pending"
	}
}

// Orbit is an observation loiter. Circles have Length 0; racetracks are
// stadiums whose straights of Length run along Axis. Orbits are flown
// counter-clockwise.
type Orbit struct {
	ID     string
	Index  int
	Center Point
	Radius float64
	Kind   PatternKind
	Length float64
	Axis   float64

	// EntryPhase is the arc-length position on the perimeter where the
	// vehicle joins the orbit.
	EntryPhase float64

	// NewlyCovered is the number of grid cells this orbit added when it was
	// selected.
	NewlyCovered int

	Status OrbitStatus
}

// Perimeter returns the length of one revolution.
func (o Orbit) Perimeter() float64 { return 2*math.Pi*o.Radius + 2*o.Length }

// PoseAt returns the position and heading at arc length s from the
// perimeter origin. The origin is the start of the lower straight.
func (o Orbit) PoseAt(s float64) Pose {
	per := o.Perimeter()
	s = math.Mod(s, per)
	if s < 0 {
		s += per
	}
	r, half := o.Radius, o.Length/2
	arc := math.Pi * r

	var local Point
	var heading float64
	switch {
	case s < o.Length:
		local = Point{X: -half + s, Y: -r}
		heading = 0
	case s < o.Length+arc:
		a := -math.Pi/2 + (s-o.Length)/r
		local = Point{X: half + r*math.Cos(a), Y: r * math.Sin(a)}
		heading = a + math.Pi/2
	case s < 2*o.Length+arc:
		local = Point{X: half - (s - o.Length - arc), Y: r}
		heading = math.Pi
	default:
		a := math.Pi/2 + (s-2*o.Length-arc)/r
		local = Point{X: -half + r*math.Cos(a), Y: r * math.Sin(a)}
		heading = a + math.Pi/2
	}
	return Pose{Point: o.toWorld(local), Heading: heading + o.Axis}
}

// EntryPose is the pose at which the orbit is joined.
func (o Orbit) EntryPose() Pose { return o.PoseAt(o.EntryPhase) }

// NearestPhase returns the perimeter arc length closest to p.
func (o Orbit) NearestPhase(p Point) float64 {
	local := o.toLocal(p)
	r, half := o.Radius, o.Length/2
	arc := math.Pi * r
	switch {
	case local.X > half:
		a := math.Atan2(local.Y, local.X-half)
		return o.Length + (a+math.Pi/2)*r
	case local.X < -half:
		a := math.Atan2(local.Y, local.X+half)
		if a < 0 {
			a += 2 * math.Pi
		}
		return math.Mod(2*o.Length+arc+(a-math.Pi/2)*r, o.Perimeter())
	case local.Y < 0:
		return local.X + half
	default:
		return o.Length + arc + half - local.X
	}
}

// Covers reports whether p lies in the orbit's observation footprint: the
// disc for circles, the stadium for racetracks.
func (o Orbit) Covers(p Point) bool {
	if o.Length == 0 {
		return o.Center.DistanceTo(p) <= o.Radius
	}
	local := o.toLocal(p)
	x := math.Max(-o.Length/2, math.Min(o.Length/2, local.X))
	return math.Hypot(local.X-x, local.Y) <= o.Radius
}

// Bounds returns an axis-aligned box enclosing the footprint.
func (o Orbit) Bounds() (minX, minY, maxX, maxY float64) {
	ext := o.Radius + o.Length/2
	return o.Center.X - ext, o.Center.Y - ext, o.Center.X + ext, o.Center.Y + ext
}

func (o Orbit) toWorld(local Point) Point {
	c, s := math.Cos(o.Axis), math.Sin(o.Axis)
	return Point{
		X: o.Center.X + local.X*c - local.Y*s,
		Y: o.Center.Y + local.X*s + local.Y*c,
	}
}

func (o Orbit) toLocal(p Point) Point {
	d := p.Sub(o.Center)
	c, s := math.Cos(o.Axis), math.Sin(o.Axis)
	return Point{X: d.X*c + d.Y*s, Y: -d.X*s + d.Y*c}
}
