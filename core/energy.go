package core

import (
	"math"
	"time"

	"github.com/signalsfoundry/loiter-planner/internal/config"
	"github.com/signalsfoundry/loiter-planner/model"
)

// PowerModel holds the phase power draws in watts, already scaled for the
// operating altitude.
type PowerModel struct {
	Transit float64
	Loiter  float64
	Descent float64
}

// NewPowerModel derives the phase draws from cfg.
func NewPowerModel(cfg config.Config) PowerModel {
	k := PowerScale(cfg.Energy.OperatingAltitude)
	return PowerModel{
		Transit: cfg.Energy.TransitPowerW * k,
		Loiter:  cfg.Energy.LoiterPowerW * k,
		Descent: cfg.Energy.DescentPowerW * k,
	}
}

// Draw returns the power drawn in phase l. Idle and landed vehicles draw
// nothing.
func (pm PowerModel) Draw(l model.Lifecycle) float64 {
	switch l {
	case model.Flying, model.Returning:
		return pm.Transit
	case model.Loitering:
		return pm.Loiter
	case model.Descent:
		return pm.Descent
	default:
		return 0
	}
}

// Min returns the smallest in-flight draw.
func (pm PowerModel) Min() float64 {
	return math.Min(pm.Transit, math.Min(pm.Loiter, pm.Descent))
}

// EnergyWh converts a draw sustained for d into watt-hours.
func EnergyWh(powerW float64, d time.Duration) float64 {
	return powerW * d.Seconds() / 3600
}

// RevolutionEnergyWh is the energy of one loiter revolution of the given
// perimeter flown at speed.
func RevolutionEnergyWh(perimeter, speed, powerW float64) float64 {
	return powerW * (perimeter / speed) / 3600
}

// EnergyLedger tracks remaining battery energy and where it went. The
// remaining energy never increases and never drops below zero.
type EnergyLedger struct {
	CapacityWh  float64
	RemainingWh float64
	byPhase     map[model.Lifecycle]float64
}

// NewEnergyLedger returns a full battery of the given capacity.
func NewEnergyLedger(capacityWh float64) *EnergyLedger {
	return &EnergyLedger{
		CapacityWh:  capacityWh,
		RemainingWh: capacityWh,
		byPhase:     make(map[model.Lifecycle]float64),
	}
}

// Consume draws wh for phase and returns the amount actually taken.
// Negative requests are ignored.
func (l *EnergyLedger) Consume(phase model.Lifecycle, wh float64) float64 {
	if wh <= 0 || math.IsNaN(wh) {
		return 0
	}
	if wh > l.RemainingWh {
		wh = l.RemainingWh
	}
	l.RemainingWh -= wh
	l.byPhase[phase] += wh
	return wh
}

// Fraction returns remaining / capacity.
func (l *EnergyLedger) Fraction() float64 {
	if l.CapacityWh <= 0 {
		return 0
	}
	return l.RemainingWh / l.CapacityWh
}

// Exhausted reports whether the battery is empty.
func (l *EnergyLedger) Exhausted() bool { return l.RemainingWh <= 0 }

// ByPhase returns a copy of the energy spent per phase.
func (l *EnergyLedger) ByPhase() map[model.Lifecycle]float64 {
	out := make(map[model.Lifecycle]float64, len(l.byPhase))
	for k, v := range l.byPhase {
		out[k] = v
	}
	return out
}
