package core

import (
	"errors"
	"fmt"

	"github.com/signalsfoundry/loiter-planner/model"
)

// ErrIllegalTransition is returned when an event has no edge from the
// current lifecycle state.
var ErrIllegalTransition = errors.New("illegal lifecycle transition")

// Event drives the mission lifecycle.
type Event int

const (
	EventLaunch Event = iota
	EventOrbitEntered
	EventOrbitComplete
	EventRouteComplete
	EventReserveReached
	EventAbort
	EventHomeReached
	EventTouchdown
	EventBatteryExhausted
)

func (e Event) String() string {
	switch e {
	case EventLaunch:
		return "launch"
	case EventOrbitEntered:
		return "orbit-entered"
	case EventOrbitComplete:
		return "orbit-complete"
	case EventRouteComplete:
		return "route-complete"
	case EventReserveReached:
		return "reserve-reached"
	case EventAbort:
		return "abort"
	case EventHomeReached:
		return "home-reached"
	case EventTouchdown:
		return "touchdown"
	case EventBatteryExhausted:
		return "battery-exhausted"
	default:
		return fmt.Sprintf("Event(%d)", int(e))
	}
}

var lifecycleEdges = map[model.Lifecycle]map[Event]model.Lifecycle{
	model.Idle: {
		EventLaunch: model.Flying,
	},
	model.Flying: {
		EventOrbitEntered:     model.Loitering,
		EventRouteComplete:    model.Returning,
		EventReserveReached:   model.Returning,
		EventAbort:            model.Returning,
		EventBatteryExhausted: model.Landed,
	},
	model.Loitering: {
		EventOrbitComplete:    model.Flying,
		EventReserveReached:   model.Returning,
		EventAbort:            model.Returning,
		EventBatteryExhausted: model.Landed,
	},
	model.Returning: {
		EventHomeReached:      model.Descent,
		EventTouchdown:        model.Landed,
		EventBatteryExhausted: model.Landed,
	},
	model.Descent: {
		EventTouchdown:        model.Landed,
		EventBatteryExhausted: model.Landed,
	},
}

// Fire returns the state reached from "from" on event e. LANDED has no
// outgoing edges.
func Fire(from model.Lifecycle, e Event) (model.Lifecycle, error) {
	if to, ok := lifecycleEdges[from][e]; ok {
		return to, nil
	}
	return from, fmt.Errorf("%w: %s on %s", ErrIllegalTransition, from, e)
}
