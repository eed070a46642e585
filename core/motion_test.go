package core

import (
	"math"
	"testing"
	"time"

	"github.com/signalsfoundry/loiter-planner/model"
)

func TestTurnToward(t *testing.T) {
	cases := []struct {
		name                  string
		heading, target, step float64
		want                  float64
	}{
		{"within step snaps", 0, 0.05, 0.1, 0.05},
		{"rate limited left", 0, math.Pi / 2, 0.5, 0.5},
		{"rate limited right", 0, -math.Pi / 2, 0.5, -0.5},
		{"shorter way across pi", 3, -3, 0.1, 3.1},
		{"target normalised", 0, 2*math.Pi + 0.01, 0.1, 0.01},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got := TurnToward(tc.heading, tc.target, tc.step)
			if math.Abs(got-tc.want) > 1e-9 {
				t.Fatalf("TurnToward(%v, %v, %v) = %v, want %v", tc.heading, tc.target, tc.step, got, tc.want)
			}
		})
	}
}

func TestTransitMotionLimitsTurnRate(t *testing.T) {
	s := &model.VehicleState{Speed: 10}
	m := TransitMotion{Command: math.Pi / 2, TurnRate: 0.5}

	d := m.Advance(s, time.Second)
	if d != 10 {
		t.Fatalf("distance = %v, want 10", d)
	}
	if math.Abs(s.Heading-0.5) > 1e-9 {
		t.Fatalf("heading = %v, want 0.5", s.Heading)
	}
	want := model.Pt(10*math.Cos(0.5), 10*math.Sin(0.5))
	if s.Position.DistanceTo(want) > 1e-9 {
		t.Fatalf("position = %+v, want %+v", s.Position, want)
	}

	for i := 0; i < 10; i++ {
		m.Advance(s, time.Second)
	}
	if math.Abs(s.Heading-math.Pi/2) > 1e-9 {
		t.Fatalf("heading after settling = %v, want pi/2", s.Heading)
	}
}

func TestOrbitMotionStaysOnPerimeter(t *testing.T) {
	o := model.Orbit{Center: model.Pt(50, 50), Radius: 10, Kind: model.PatternStandard}
	m := &OrbitMotion{Orbit: o}
	s := &model.VehicleState{Speed: 5 * math.Pi}

	// A quarter revolution from the origin at the bottom of the circle.
	m.Advance(s, time.Second)
	if s.Position.DistanceTo(model.Pt(60, 50)) > 1e-9 {
		t.Fatalf("position = %+v, want (60, 50)", s.Position)
	}
	if math.Abs(s.Heading-math.Pi/2) > 1e-9 {
		t.Fatalf("heading = %v, want pi/2", s.Heading)
	}

	total := 0.0
	for i := 0; i < 40; i++ {
		total += m.Advance(s, 100*time.Millisecond)
		if r := s.Position.DistanceTo(o.Center); math.Abs(r-10) > 1e-9 {
			t.Fatalf("tick %d: %v from centre, want 10", i, r)
		}
	}
	if math.Abs(total-20*math.Pi) > 1e-9 {
		t.Fatalf("distance = %v, want %v", total, 20*math.Pi)
	}
	if math.Abs(m.Phase-(25*math.Pi)) > 1e-9 {
		t.Fatalf("phase = %v, want %v", m.Phase, 25*math.Pi)
	}
}

func TestOrbitMotionJoinsWithoutJumping(t *testing.T) {
	cases := []struct {
		name  string
		orbit model.Orbit
		start model.Point
	}{
		{"circle", model.Orbit{Center: model.Pt(50, 50), Radius: 10}, model.Pt(50, 36)},
		{"racetrack", model.Orbit{Center: model.Pt(50, 50), Radius: 10, Length: 20, Kind: model.PatternRacetrack}, model.Pt(40, 36)},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			o := tc.orbit
			s := &model.VehicleState{Position: tc.start, Speed: 5}
			m := &OrbitMotion{Orbit: o, Phase: o.NearestPhase(tc.start), TurnRate: 1}
			from := m.Phase
			dt := 100 * time.Millisecond
			step := s.Speed * dt.Seconds()

			for i := 0; i < 300; i++ {
				prev := s.Position
				if d := m.Advance(s, dt); d != step {
					t.Fatalf("tick %d: distance %v, want %v", i, d, step)
				}
				if moved := s.Position.DistanceTo(prev); moved > step+1e-9 {
					t.Fatalf("tick %d: moved %v in one tick, limit %v", i, moved, step)
				}
			}
			if off := s.Position.DistanceTo(o.PoseAt(o.NearestPhase(s.Position)).Point); off > 1e-9 {
				t.Fatalf("still %v off the perimeter", off)
			}
			if flown := m.Phase - from; flown < 0.9*300*step || flown > 300*step+1e-9 {
				t.Fatalf("phase advanced %v over %v flown", flown, 300*step)
			}
		})
	}
}
