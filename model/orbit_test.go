package model

import (
	"math"
	"testing"
)

func TestCircleOrbitPoseStaysOnRing(t *testing.T) {
	o := Orbit{Center: Pt(50, 50), Radius: 20}
	for i := 0; i <= 40; i++ {
		s := o.Perimeter() * float64(i) / 40
		pose := o.PoseAt(s)
		if d := pose.Point.DistanceTo(o.Center); math.Abs(d-20) > 1e-9 {
			t.Fatalf("PoseAt(%v) at distance %v, want 20", s, d)
		}
		// Counter-clockwise flight: heading is the radial angle plus 90 degrees.
		radial := o.Center.HeadingTo(pose.Point)
		diff := math.Remainder(pose.Heading-radial-math.Pi/2, 2*math.Pi)
		if math.Abs(diff) > 1e-9 {
			t.Fatalf("heading at s=%v off tangent by %v", s, diff)
		}
	}
}

func TestNearestPhaseRoundTrip(t *testing.T) {
	o := Orbit{Center: Pt(0, 0), Radius: 10}
	p := Pt(0, 30)
	pose := o.PoseAt(o.NearestPhase(p))
	if pose.Point.DistanceTo(Pt(0, 10)) > 1e-9 {
		t.Fatalf("nearest point = %+v, want (0,10)", pose.Point)
	}
}

func TestNearestPhaseOnPerimeter(t *testing.T) {
	orbits := []Orbit{
		{Center: Pt(20, -5), Radius: 10, Axis: 2.1},
		{Center: Pt(100, 100), Radius: 10, Length: 40, Axis: math.Pi / 6, Kind: PatternRacetrack},
	}
	for _, o := range orbits {
		per := o.Perimeter()
		for i := 0; i < 60; i++ {
			s := per * (float64(i) + 0.5) / 60
			pose := o.PoseAt(s)
			got := o.NearestPhase(pose.Point)
			if d := math.Abs(math.Remainder(got-s, per)); d > 1e-9 {
				t.Fatalf("length %v: NearestPhase(PoseAt(%v)) = %v", o.Length, s, got)
			}
			// Points pushed off the perimeter along the normal map back.
			out := pose.Point.Offset(pose.Heading-math.Pi/2, 3)
			if d := math.Abs(math.Remainder(o.NearestPhase(out)-s, per)); d > 1e-9 {
				t.Fatalf("length %v: outside point at s=%v mapped to %v", o.Length, s, o.NearestPhase(out))
			}
		}
	}
}

func TestRacetrackPerimeterIsContinuous(t *testing.T) {
	o := Orbit{Center: Pt(100, 100), Radius: 10, Length: 40, Axis: math.Pi / 6, Kind: PatternRacetrack}
	per := o.Perimeter()
	prev := o.PoseAt(0).Point
	const n = 400
	step := per / n
	for i := 1; i <= n; i++ {
		cur := o.PoseAt(step * float64(i)).Point
		if d := cur.DistanceTo(prev); d > step+1e-9 {
			t.Fatalf("jump of %v between samples %d and %d", d, i-1, i)
		}
		prev = cur
	}
}

func TestRacetrackFootprint(t *testing.T) {
	o := Orbit{Center: Pt(0, 0), Radius: 10, Length: 40, Kind: PatternRacetrack}
	if !o.Covers(Pt(25, 5)) {
		t.Errorf("expected point near right end covered")
	}
	if o.Covers(Pt(0, 11)) {
		t.Errorf("point beyond the straight should not be covered")
	}
	if !o.Covers(Pt(-29, 0)) || o.Covers(Pt(-31, 0)) {
		t.Errorf("left cap boundary misplaced")
	}
}

func TestParsePatternKind(t *testing.T) {
	k, err := ParsePatternKind(" Racetrack ")
	if err != nil || k != PatternRacetrack {
		t.Fatalf("ParsePatternKind = %v, %v", k, err)
	}
	if _, err := ParsePatternKind("figure-eight"); err == nil {
		t.Fatalf("expected error for unknown kind")
	}
}
