package model

import (
	"fmt"
	"time"
)

// Lifecycle is the mission executor's phase.
type Lifecycle int

const (
	Idle Lifecycle = iota
	Flying
	Loitering
	Returning
	Descent
	Landed
)

func (l Lifecycle) String() string {
	switch l {
	case Idle:
		return "IDLE"
	case Flying:
		return "FLYING"
	case Loitering:
		return "LOITERING"
	case Returning:
		return "RETURNING"
	case Descent:
		return "DESCENT"
	case Landed:
		return "LANDED"
	default:
		return fmt.Sprintf("Lifecycle(%d)", int(l))
	}
}

// VehicleState is written only by the mission executor, once per tick.
type VehicleState struct {
	Position  Point
	Heading   float64
	Speed     float64
	Altitude  float64
	Battery   float64 // fraction of capacity in [0, 1]
	EnergyWh  float64 // remaining energy
	Distance  float64
	Lifecycle Lifecycle
}

// AvoidanceState is the reactive controller's mode.
type AvoidanceState int

const (
	AvoidNormal AvoidanceState = iota
	AvoidAvoiding
	AvoidRecovering
)

func (s AvoidanceState) String() string {
	switch s {
	case AvoidAvoiding:
		return "AVOIDING"
	case AvoidRecovering:
		return "RECOVERING"
	default:
		return "NORMAL"
	}
}

// Ray is one beam of a sensor scan. Bearing is relative to the vehicle
// heading. Clear rays carry the sensor's maximum range as Distance.
type Ray struct {
	Bearing  float64
	Distance float64
	Clear    bool
	Obstacle string
}

// SensorScan is a fresh fan of forward rays taken at one tick.
type SensorScan struct {
	Origin   Point
	Heading  float64
	MaxRange float64
	Rays     []Ray
}

// Hits returns the world positions of every ray return.
func (s SensorScan) Hits() []Point {
	var out []Point
	for _, r := range s.Rays {
		if r.Clear {
			continue
		}
		out = append(out, s.Origin.Offset(s.Heading+r.Bearing, r.Distance))
	}
	return out
}

// Blocked reports whether every ray returned an obstruction.
func (s SensorScan) Blocked() bool {
	if len(s.Rays) == 0 {
		return false
	}
	for _, r := range s.Rays {
		if r.Clear {
			return false
		}
	}
	return true
}

// Snapshot is the per-tick telemetry record.
type Snapshot struct {
	Tick          int
	SimTime       time.Duration
	Position      Point
	Heading       float64
	Altitude      float64
	Speed         float64
	Lifecycle     Lifecycle
	Battery       float64
	EnergyWh      float64
	Distance      float64
	Coverage      float64
	CoveredCells  int
	Avoidance     AvoidanceState
	FullyBlocked  bool
	Stuck         bool
	WaypointIndex int
	OrbitIndex    int
	Revolutions   float64
}
