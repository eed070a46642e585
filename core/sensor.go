package core

import (
	"math"

	"github.com/signalsfoundry/loiter-planner/internal/config"
	"github.com/signalsfoundry/loiter-planner/model"
)

// Sensor is a fan of forward-looking range rays. No-fly zones are planning
// constructs and never return an echo.
type Sensor struct {
	RayCount  int
	FOV       float64 // radians
	MaxRange  float64
	Footprint float64
}

// NewSensor builds the sensor described by cfg.
func NewSensor(cfg config.Config) Sensor {
	return Sensor{
		RayCount:  cfg.Sensor.RayCount,
		FOV:       cfg.Sensor.FOVDeg * math.Pi / 180,
		MaxRange:  cfg.Sensor.MaxRange,
		Footprint: cfg.Sensor.Footprint,
	}
}

// Bearings returns the ray directions relative to the heading, spread
// evenly across the field of view from right to left.
func (s Sensor) Bearings() []float64 {
	out := make([]float64, s.RayCount)
	if s.RayCount == 1 {
		return out
	}
	for i := range out {
		out[i] = -s.FOV/2 + float64(i)*s.FOV/float64(s.RayCount-1)
	}
	return out
}

// Scan casts every ray from origin and reports the nearest physical
// obstacle along each.
func (s Sensor) Scan(origin model.Point, heading float64, obstacles []model.Obstacle) model.SensorScan {
	scan := model.SensorScan{
		Origin:   origin,
		Heading:  heading,
		MaxRange: s.MaxRange,
		Rays:     make([]model.Ray, 0, s.RayCount),
	}
	for _, b := range s.Bearings() {
		ray := model.Ray{Bearing: b, Distance: s.MaxRange, Clear: true}
		for _, o := range obstacles {
			if !o.Physical() {
				continue
			}
			d, ok := RayCircleDistance(origin, heading+b, o.Center, o.Radius, s.MaxRange)
			if ok && (ray.Clear || d < ray.Distance) {
				ray.Distance, ray.Clear, ray.Obstacle = d, false, o.ID
			}
		}
		scan.Rays = append(scan.Rays, ray)
	}
	return scan
}
