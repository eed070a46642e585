package core

import (
	"math"
	"time"

	"github.com/signalsfoundry/loiter-planner/model"
)

// MotionModel advances a vehicle's pose over one tick and returns the
// distance flown.
type MotionModel interface {
	Advance(s *model.VehicleState, dt time.Duration) float64
}

// TransitMotion turns towards Command at no more than TurnRate (rad/s)
// and then flies straight at the vehicle's speed.
type TransitMotion struct {
	Command  float64
	TurnRate float64
}

// Advance applies one tick of rate-limited steering.
func (m TransitMotion) Advance(s *model.VehicleState, dt time.Duration) float64 {
	s.Heading = TurnToward(s.Heading, m.Command, m.TurnRate*dt.Seconds())
	d := s.Speed * dt.Seconds()
	s.Position = s.Position.Offset(s.Heading, d)
	return d
}

// OrbitMotion flies the perimeter of Orbit, tracking the arc-length
// position in Phase. With a TurnRate the vehicle first steers onto the
// perimeter from wherever it is; without one it is placed on it.
type OrbitMotion struct {
	Orbit    model.Orbit
	Phase    float64
	TurnRate float64

	joined bool
}

// Advance moves the vehicle one tick along the perimeter. It never moves
// the vehicle further than one tick of flight.
func (m *OrbitMotion) Advance(s *model.VehicleState, dt time.Duration) float64 {
	d := s.Speed * dt.Seconds()
	if m.TurnRate <= 0 || m.joined {
		m.Phase += d
		m.place(s)
		return d
	}

	o := m.Orbit
	near := m.unwrap(o.NearestPhase(s.Position))
	pose := o.PoseAt(near)
	if off := s.Position.DistanceTo(pose.Point); off <= d {
		m.joined = true
		m.Phase = near + d - off
		m.place(s)
		return d
	}

	// Converge along a heading that leans into the perimeter by the
	// cross-track offset.
	n := pose.Heading + math.Pi/2
	v := s.Position.Sub(pose.Point)
	inside := v.X*math.Cos(n) + v.Y*math.Sin(n)
	command := pose.Heading - math.Atan2(inside, o.Radius)
	s.Heading = TurnToward(s.Heading, command, m.TurnRate*dt.Seconds())
	s.Position = s.Position.Offset(s.Heading, d)
	m.Phase = math.Max(m.Phase, m.unwrap(o.NearestPhase(s.Position)))
	return d
}

func (m *OrbitMotion) place(s *model.VehicleState) {
	pose := m.Orbit.PoseAt(m.Phase)
	s.Position = pose.Point
	s.Heading = NormalizeAngle(pose.Heading)
}

// unwrap lifts a perimeter phase to the lap of Phase nearest to it.
func (m *OrbitMotion) unwrap(phase float64) float64 {
	per := m.Orbit.Perimeter()
	p := m.Phase - math.Mod(m.Phase, per) + phase
	switch {
	case p < m.Phase-per/2:
		p += per
	case p > m.Phase+per/2:
		p -= per
	}
	return p
}

// TurnToward rotates heading towards target by at most maxStep radians,
// taking the shorter way round.
func TurnToward(heading, target, maxStep float64) float64 {
	diff := AngleDiff(heading, target)
	if math.Abs(diff) <= maxStep {
		return NormalizeAngle(target)
	}
	return NormalizeAngle(heading + math.Copysign(maxStep, diff))
}
