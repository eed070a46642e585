package core

import (
	"testing"
	"time"

	"github.com/signalsfoundry/loiter-planner/internal/config"
	"github.com/signalsfoundry/loiter-planner/model"
)

// smallConfig is a configuration scaled for 100-300 unit test maps.
func smallConfig() config.Config {
	cfg := config.DefaultConfig()
	cfg.Planner.OrbitRadius = 10
	cfg.Planner.OverlapFactor = 0.2
	cfg.Planner.CoverageThresholdPct = 95
	cfg.Planner.MaxOrbits = 100
	cfg.Planner.TransitionStep = 2
	cfg.Planner.GridResolution = 2
	cfg.Planner.ObstacleMargin = 5
	cfg.Planner.NoFlyMargin = 10
	cfg.Vehicle.TurnRadius = 5
	cfg.Vehicle.CruiseSpeed = 5
	cfg.Vehicle.TurnRate = 1
	cfg.Vehicle.CruiseAltitude = 10
	cfg.Sensor.MaxRange = 40
	cfg.Sensor.Footprint = 8
	cfg.Avoidance.TriggerDistance = 20
	cfg.Avoidance.Standoff = 8
	cfg.Avoidance.Lookahead = 30
	cfg.Execution.TickDT = 100 * time.Millisecond
	cfg.Execution.CaptureRadius = 5
	cfg.Execution.DescentPerRev = 5
	cfg.Execution.TouchdownAltitude = 0.5
	return cfg
}

func mustMap(t *testing.T, w, h, res float64, start model.Point, obstacles ...model.Obstacle) model.SurveillanceMap {
	t.Helper()
	m, err := NewSurveillanceMap(w, h, res, start, obstacles)
	if err != nil {
		t.Fatalf("NewSurveillanceMap: %v", err)
	}
	return m
}
