package core

import (
	"math"
	"time"

	"github.com/signalsfoundry/loiter-planner/model"
)

// Descent is a constant-radius spiral flown to the left of the pose it
// starts from, losing a fixed altitude per revolution.
type Descent struct {
	motion    OrbitMotion
	perRev    float64
	touchdown float64
}

// NewDescent places the spiral circle tangent to start.
func NewDescent(start model.Pose, radius, perRev, touchdown float64) *Descent {
	o := model.Orbit{
		ID:     "descent",
		Index:  -1,
		Center: start.Point.Offset(start.Heading+math.Pi/2, radius),
		Radius: radius,
	}
	return &Descent{
		motion:    OrbitMotion{Orbit: o, Phase: o.NearestPhase(start.Point)},
		perRev:    perRev,
		touchdown: touchdown,
	}
}

// Advance flies one tick of the spiral.
func (d *Descent) Advance(s *model.VehicleState, dt time.Duration) float64 {
	dist := d.motion.Advance(s, dt)
	drop := dist / d.motion.Orbit.Perimeter() * d.perRev
	s.Altitude = math.Max(d.touchdown, s.Altitude-drop)
	return dist
}

// Done reports whether s has reached touchdown altitude.
func (d *Descent) Done(s model.VehicleState) bool { return s.Altitude <= d.touchdown }

// Circle returns the spiral's ground track.
func (d *Descent) Circle() model.Orbit { return d.motion.Orbit }
