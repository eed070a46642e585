// Package config holds the single validated configuration value consumed by
// planning and execution.
package config

import (
	"errors"
	"fmt"
	"math"
	"time"

	"github.com/signalsfoundry/loiter-planner/model"
)

// ErrInvalidConfiguration is returned when a configuration fails validation.
// It is the only error that prevents a planning run from producing output.
var ErrInvalidConfiguration = errors.New("invalid configuration")

// Config is passed by value; nothing mutates it after Validate succeeds.
type Config struct {
	Planner   PlannerConfig   `mapstructure:"planner" yaml:"planner"`
	Vehicle   VehicleConfig   `mapstructure:"vehicle" yaml:"vehicle"`
	Sensor    SensorConfig    `mapstructure:"sensor" yaml:"sensor"`
	Avoidance AvoidanceConfig `mapstructure:"avoidance" yaml:"avoidance"`
	Energy    EnergyConfig    `mapstructure:"energy" yaml:"energy"`
	Execution ExecutionConfig `mapstructure:"execution" yaml:"execution"`
	Logging   LoggingConfig   `mapstructure:"logging" yaml:"logging"`
}

// PlannerConfig drives coverage, transition and grid planning.
type PlannerConfig struct {
	OrbitRadius            float64 `mapstructure:"orbit_radius" yaml:"orbit_radius"`
	Pattern                string  `mapstructure:"pattern" yaml:"pattern"`
	RacetrackLength        float64 `mapstructure:"racetrack_length" yaml:"racetrack_length"`
	OverlapFactor          float64 `mapstructure:"overlap_factor" yaml:"overlap_factor"`
	CoverageThresholdPct   float64 `mapstructure:"coverage_threshold_pct" yaml:"coverage_threshold_pct"`
	MaxOrbits              int     `mapstructure:"max_orbits" yaml:"max_orbits"`
	Seed                   int64   `mapstructure:"seed" yaml:"seed"`
	LatticeJitter          bool    `mapstructure:"lattice_jitter" yaml:"lattice_jitter"`
	LoiterRevolutions      float64 `mapstructure:"loiter_revolutions" yaml:"loiter_revolutions"`
	TransitionStep         float64 `mapstructure:"transition_step" yaml:"transition_step"`
	HomeHeadingDeg         float64 `mapstructure:"home_heading_deg" yaml:"home_heading_deg"`
	PathfinderIterationCap int     `mapstructure:"pathfinder_iteration_cap" yaml:"pathfinder_iteration_cap"`
	GridResolution         float64 `mapstructure:"grid_resolution" yaml:"grid_resolution"`
	ObstacleMargin         float64 `mapstructure:"obstacle_margin" yaml:"obstacle_margin"`
	NoFlyMargin            float64 `mapstructure:"no_fly_margin" yaml:"no_fly_margin"`
}

// VehicleConfig describes the forward-flight airframe.
type VehicleConfig struct {
	TurnRadius     float64 `mapstructure:"turn_radius" yaml:"turn_radius"`
	CruiseSpeed    float64 `mapstructure:"cruise_speed" yaml:"cruise_speed"`
	TurnRate       float64 `mapstructure:"turn_rate" yaml:"turn_rate"`
	CruiseAltitude float64 `mapstructure:"cruise_altitude" yaml:"cruise_altitude"`
}

// SensorConfig describes the forward ray fan.
type SensorConfig struct {
	RayCount  int     `mapstructure:"ray_count" yaml:"ray_count"`
	MaxRange  float64 `mapstructure:"max_range" yaml:"max_range"`
	FOVDeg    float64 `mapstructure:"fov_deg" yaml:"fov_deg"`
	Footprint float64 `mapstructure:"footprint" yaml:"footprint"`
}

// AvoidanceConfig tunes the reactive controller.
type AvoidanceConfig struct {
	TriggerDistance float64 `mapstructure:"trigger_distance" yaml:"trigger_distance"`
	Standoff        float64 `mapstructure:"standoff" yaml:"standoff"`
	HeadingStepDeg  float64 `mapstructure:"heading_step_deg" yaml:"heading_step_deg"`
	AlignDeg        float64 `mapstructure:"align_deg" yaml:"align_deg"`
	Lookahead       float64 `mapstructure:"lookahead" yaml:"lookahead"`
	MaxAvoidTicks   int     `mapstructure:"max_avoid_ticks" yaml:"max_avoid_ticks"`
	MaxBlockedTicks int     `mapstructure:"max_blocked_ticks" yaml:"max_blocked_ticks"`
	SettleTicks     int     `mapstructure:"settle_ticks" yaml:"settle_ticks"`
	AbortOnStuck    bool    `mapstructure:"abort_on_stuck" yaml:"abort_on_stuck"`
}

// EnergyConfig holds the battery and phase power model.
type EnergyConfig struct {
	BatteryCapacityWh float64 `mapstructure:"battery_capacity_wh" yaml:"battery_capacity_wh"`
	ReserveFraction   float64 `mapstructure:"reserve_fraction" yaml:"reserve_fraction"`
	TransitPowerW     float64 `mapstructure:"transit_power_w" yaml:"transit_power_w"`
	LoiterPowerW      float64 `mapstructure:"loiter_power_w" yaml:"loiter_power_w"`
	DescentPowerW     float64 `mapstructure:"descent_power_w" yaml:"descent_power_w"`
	OperatingAltitude float64 `mapstructure:"operating_altitude_m" yaml:"operating_altitude_m"`
}

// ExecutionConfig tunes the fixed-step mission executor.
type ExecutionConfig struct {
	TickDT            time.Duration `mapstructure:"tick_dt" yaml:"tick_dt"`
	CaptureRadius     float64       `mapstructure:"capture_radius" yaml:"capture_radius"`
	DescentEnabled    bool          `mapstructure:"descent_enabled" yaml:"descent_enabled"`
	DescentRadius     float64       `mapstructure:"descent_radius" yaml:"descent_radius"`
	DescentPerRev     float64       `mapstructure:"descent_per_rev" yaml:"descent_per_rev"`
	TouchdownAltitude float64       `mapstructure:"touchdown_altitude" yaml:"touchdown_altitude"`
	MaxTicks          int           `mapstructure:"max_ticks" yaml:"max_ticks"`
}

// LoggingConfig mirrors logging.Config so it can live in the YAML file.
type LoggingConfig struct {
	Level  string `mapstructure:"level" yaml:"level"`
	Format string `mapstructure:"format" yaml:"format"`
	File   string `mapstructure:"file" yaml:"file"`
}

// DefaultConfig returns the built-in configuration.
func DefaultConfig() Config {
	return Config{
		Planner: PlannerConfig{
			OrbitRadius:            150,
			Pattern:                "standard",
			OverlapFactor:          0.2,
			CoverageThresholdPct:   95,
			MaxOrbits:              60,
			Seed:                   1,
			LoiterRevolutions:      1,
			TransitionStep:         5,
			PathfinderIterationCap: 50000,
			GridResolution:         10,
			ObstacleMargin:         20,
			NoFlyMargin:            50,
		},
		Vehicle: VehicleConfig{
			TurnRadius:     50,
			CruiseSpeed:    19,
			TurnRate:       0.5,
			CruiseAltitude: 100,
		},
		Sensor: SensorConfig{
			RayCount:  7,
			MaxRange:  80,
			FOVDeg:    120,
			Footprint: 40,
		},
		Avoidance: AvoidanceConfig{
			TriggerDistance: 50,
			Standoff:        30,
			HeadingStepDeg:  10,
			AlignDeg:        10,
			Lookahead:       80,
			MaxAvoidTicks:   600,
			MaxBlockedTicks: 50,
			SettleTicks:     50,
		},
		Energy: EnergyConfig{
			BatteryCapacityWh: 370,
			ReserveFraction:   0.22,
			TransitPowerW:     133,
			LoiterPowerW:      122,
			DescentPowerW:     80,
		},
		Execution: ExecutionConfig{
			TickDT:            100 * time.Millisecond,
			CaptureRadius:     20,
			DescentEnabled:    true,
			DescentPerRev:     10,
			TouchdownAltitude: 0.5,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "text",
		},
	}
}

// PatternKind returns the parsed loiter pattern.
func (c Config) PatternKind() model.PatternKind {
	k, _ := model.ParsePatternKind(c.Planner.Pattern)
	return k
}

// EffectiveOrbitRadius returns the configured orbit radius, or the middle
// of the pattern's radius band when none is set. It never drops below the
// turn radius.
func (c Config) EffectiveOrbitRadius() float64 {
	r := c.Planner.OrbitRadius
	if r == 0 {
		spec := c.PatternKind().Spec()
		r = (spec.MinRadius + spec.MaxRadius) / 2
	}
	return math.Max(r, c.Vehicle.TurnRadius)
}

// EffectiveRacetrackLength returns the straight length of racetrack orbits.
func (c Config) EffectiveRacetrackLength() float64 {
	if c.PatternKind() != model.PatternRacetrack {
		return 0
	}
	if c.Planner.RacetrackLength > 0 {
		return c.Planner.RacetrackLength
	}
	return 2 * c.EffectiveOrbitRadius()
}

// EffectiveDescentRadius returns the spiral descent radius.
func (c Config) EffectiveDescentRadius() float64 {
	return math.Max(c.Execution.DescentRadius, c.Vehicle.TurnRadius)
}

// CoverageTarget returns the coverage threshold as a fraction.
func (c Config) CoverageTarget() float64 { return c.Planner.CoverageThresholdPct / 100 }

// Validate reports every violated constraint, wrapped in
// ErrInvalidConfiguration.
func (c Config) Validate() error {
	var errs []error
	bad := func(format string, args ...any) {
		errs = append(errs, fmt.Errorf(format, args...))
	}

	p, v, s, a, e, x := c.Planner, c.Vehicle, c.Sensor, c.Avoidance, c.Energy, c.Execution

	if v.TurnRadius <= 0 {
		bad("vehicle.turn_radius must be > 0, got %v", v.TurnRadius)
	}
	if p.OrbitRadius < 0 || (p.OrbitRadius > 0 && p.OrbitRadius < v.TurnRadius) {
		bad("planner.orbit_radius %v is below vehicle.turn_radius %v", p.OrbitRadius, v.TurnRadius)
	}
	if _, err := model.ParsePatternKind(p.Pattern); err != nil {
		bad("planner.pattern: %v", err)
	}
	if p.RacetrackLength < 0 {
		bad("planner.racetrack_length must be >= 0, got %v", p.RacetrackLength)
	}
	if p.OverlapFactor < 0 || p.OverlapFactor >= 1 {
		bad("planner.overlap_factor must be in [0,1), got %v", p.OverlapFactor)
	}
	if p.CoverageThresholdPct <= 0 || p.CoverageThresholdPct > 100 {
		bad("planner.coverage_threshold_pct must be in (0,100], got %v", p.CoverageThresholdPct)
	}
	if p.MaxOrbits <= 0 {
		bad("planner.max_orbits must be > 0, got %d", p.MaxOrbits)
	}
	if p.LoiterRevolutions <= 0 {
		bad("planner.loiter_revolutions must be > 0, got %v", p.LoiterRevolutions)
	}
	if p.TransitionStep <= 0 {
		bad("planner.transition_step must be > 0, got %v", p.TransitionStep)
	}
	if p.PathfinderIterationCap <= 0 {
		bad("planner.pathfinder_iteration_cap must be > 0, got %d", p.PathfinderIterationCap)
	}
	if p.GridResolution <= 0 {
		bad("planner.grid_resolution must be > 0, got %v", p.GridResolution)
	}
	if p.ObstacleMargin < 0 || p.NoFlyMargin < 0 {
		bad("planner margins must be >= 0")
	}

	if v.CruiseSpeed <= 0 {
		bad("vehicle.cruise_speed must be > 0, got %v", v.CruiseSpeed)
	}
	if v.TurnRate <= 0 {
		bad("vehicle.turn_rate must be > 0, got %v", v.TurnRate)
	}
	if v.CruiseSpeed > 0 && v.TurnRate > 0 && v.TurnRadius > 0 && v.CruiseSpeed/v.TurnRate > v.TurnRadius+1e-9 {
		bad("vehicle cannot fly turn_radius %v: cruise_speed/turn_rate is %v", v.TurnRadius, v.CruiseSpeed/v.TurnRate)
	}
	if v.CruiseAltitude < 0 {
		bad("vehicle.cruise_altitude must be >= 0, got %v", v.CruiseAltitude)
	}

	if s.RayCount < 1 {
		bad("sensor.ray_count must be >= 1, got %d", s.RayCount)
	}
	if s.MaxRange <= 0 {
		bad("sensor.max_range must be > 0, got %v", s.MaxRange)
	}
	if s.FOVDeg <= 0 || s.FOVDeg > 360 {
		bad("sensor.fov_deg must be in (0,360], got %v", s.FOVDeg)
	}
	if s.Footprint < 0 {
		bad("sensor.footprint must be >= 0, got %v", s.Footprint)
	}

	if a.TriggerDistance <= 0 || a.TriggerDistance > s.MaxRange {
		bad("avoidance.trigger_distance must be in (0, sensor.max_range], got %v", a.TriggerDistance)
	}
	if a.Standoff <= 0 {
		bad("avoidance.standoff must be > 0, got %v", a.Standoff)
	}
	if a.HeadingStepDeg <= 0 || a.HeadingStepDeg > 90 {
		bad("avoidance.heading_step_deg must be in (0,90], got %v", a.HeadingStepDeg)
	}
	if a.AlignDeg <= 0 {
		bad("avoidance.align_deg must be > 0, got %v", a.AlignDeg)
	}
	if a.Lookahead < 0 {
		bad("avoidance.lookahead must be >= 0, got %v", a.Lookahead)
	}
	if a.MaxAvoidTicks <= 0 || a.MaxBlockedTicks <= 0 {
		bad("avoidance tick bounds must be > 0")
	}
	if a.SettleTicks < 0 {
		bad("avoidance.settle_ticks must be >= 0, got %v", a.SettleTicks)
	}

	if e.BatteryCapacityWh <= 0 {
		bad("energy.battery_capacity_wh must be > 0, got %v", e.BatteryCapacityWh)
	}
	if e.ReserveFraction < 0 || e.ReserveFraction >= 1 {
		bad("energy.reserve_fraction must be in [0,1), got %v", e.ReserveFraction)
	}
	if e.TransitPowerW <= 0 || e.LoiterPowerW <= 0 || e.DescentPowerW <= 0 {
		bad("energy power draws must all be > 0")
	}
	if e.OperatingAltitude < 0 || e.OperatingAltitude > 11000 {
		bad("energy.operating_altitude_m must be in [0,11000], got %v", e.OperatingAltitude)
	}

	if x.TickDT <= 0 {
		bad("execution.tick_dt must be > 0, got %v", x.TickDT)
	}
	if x.CaptureRadius <= 0 {
		bad("execution.capture_radius must be > 0, got %v", x.CaptureRadius)
	}
	if x.DescentEnabled {
		if x.DescentPerRev <= 0 {
			bad("execution.descent_per_rev must be > 0 when descent is enabled, got %v", x.DescentPerRev)
		}
		if x.DescentRadius < 0 {
			bad("execution.descent_radius must be >= 0, got %v", x.DescentRadius)
		}
	}
	if x.TouchdownAltitude < 0 {
		bad("execution.touchdown_altitude must be >= 0, got %v", x.TouchdownAltitude)
	}
	if x.MaxTicks < 0 {
		bad("execution.max_ticks must be >= 0, got %d", x.MaxTicks)
	}

	if len(errs) == 0 {
		return nil
	}
	return fmt.Errorf("%w: %w", ErrInvalidConfiguration, errors.Join(errs...))
}
