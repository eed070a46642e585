package model

import "time"

// PathFamily names one of the six curvature-bounded transition words.
type PathFamily int

const (
	FamilyLSL PathFamily = iota
	FamilyRSR
	FamilyLSR
	FamilyRSL
	FamilyRLR
	FamilyLRL
)

// Families lists every transition family in evaluation order.
var Families = []PathFamily{FamilyLSL, FamilyRSR, FamilyLSR, FamilyRSL, FamilyRLR, FamilyLRL}

func (f PathFamily) String() string {
	switch f {
	case FamilyLSL:
		return "LSL"
	case FamilyRSR:
		return "RSR"
	case FamilyLSR:
		return "LSR"
	case FamilyRSL:
		return "RSL"
	case FamilyRLR:
		return "RLR"
	case FamilyLRL:
		return "LRL"
	default:
		return "unknown"
	}
}

// Turn is the steering sense of one path segment.
type Turn int

const (
	TurnLeft Turn = iota
	TurnStraight
	TurnRight
)

// Turns returns the segment senses making up the family.
func (f PathFamily) Turns() [3]Turn {
	switch f {
	case FamilyLSL:
		return [3]Turn{TurnLeft, TurnStraight, TurnLeft}
	case FamilyRSR:
		return [3]Turn{TurnRight, TurnStraight, TurnRight}
	case FamilyLSR:
		return [3]Turn{TurnLeft, TurnStraight, TurnRight}
	case FamilyRSL:
		return [3]Turn{TurnRight, TurnStraight, TurnLeft}
	case FamilyRLR:
		return [3]Turn{TurnRight, TurnLeft, TurnRight}
	default:
		return [3]Turn{TurnLeft, TurnRight, TurnLeft}
	}
}

// Segment is one arc or straight of a transition; Length is in map units.
type Segment struct {
	Turn   Turn
	Length float64
}

// TransitionPath is a curvature-bounded connection between two poses.
type TransitionPath struct {
	Family    PathFamily
	Segments  [3]Segment
	Radius    float64
	Start     Pose
	End       Pose
	Waypoints []Point
	Length    float64
}

// GridPath is a leg found by searching the inflated obstacle grid.
// Fallback marks a direct segment returned after the search failed; it may
// cross inflated obstacles.
type GridPath struct {
	Waypoints  []Point
	Length     float64
	SearchCost float64
	Expanded   int
	Fallback   bool
}

// LegKind tags how a leg of the plan was produced.
type LegKind int

const (
	LegTransition LegKind = iota
	LegGrid
)

func (k LegKind) String() string {
	if k == LegGrid {
		return "grid"
	}
	return "transition"
}

// Leg connects two consecutive stops of the plan. From and To are orbit
// indices, with -1 standing for home. Exactly one of Transition and Grid
// is set, according to Kind.
type Leg struct {
	From       int
	To         int
	Kind       LegKind
	Transition *TransitionPath
	Grid       *GridPath

	// TransitionSkipped is set when no clear curvature-bounded connection
	// existed and the leg was searched on the grid instead.
	TransitionSkipped bool
}

// Waypoints returns the leg's sampled positions.
func (l Leg) Waypoints() []Point {
	if l.Kind == LegGrid && l.Grid != nil {
		return l.Grid.Waypoints
	}
	if l.Transition != nil {
		return l.Transition.Waypoints
	}
	return nil
}

// Length returns the flown length of the leg.
func (l Leg) Length() float64 {
	if l.Kind == LegGrid && l.Grid != nil {
		return l.Grid.Length
	}
	if l.Transition != nil {
		return l.Transition.Length
	}
	return 0
}

// Unsafe reports whether the leg is a fallback that may cross obstacles.
func (l Leg) Unsafe() bool { return l.Kind == LegGrid && l.Grid != nil && l.Grid.Fallback }

// WaypointRole tags what a flattened waypoint is for.
type WaypointRole int

const (
	RoleTransit WaypointRole = iota
	RoleOrbitEntry
	RoleOrbitPoint
	RoleReturn
)

func (r WaypointRole) String() string {
	switch r {
	case RoleOrbitEntry:
		return "orbit-entry"
	case RoleOrbitPoint:
		return "orbit-point"
	case RoleReturn:
		return "return"
	default:
		return "transit"
	}
}

// Waypoint is one entry of the flattened route. Orbit is the index of the
// orbit the waypoint belongs to, or -1.
type Waypoint struct {
	Point Point
	Role  WaypointRole
	Orbit int
}

// CoverageStatus reports whether planning reached its coverage target.
type CoverageStatus int

const (
	CoverageComplete CoverageStatus = iota
	CoverageUnderTarget
)

func (s CoverageStatus) String() string {
	if s == CoverageUnderTarget {
		return "under-target"
	}
	return "complete"
}

// MissionPlan is the immutable output of planning.
type MissionPlan struct {
	ID        string
	Home      Point
	Orbits    []Orbit
	Legs      []Leg
	Waypoints []Waypoint

	CoverageStatus    CoverageStatus
	PlannedCoverage   float64
	TotalLength       float64
	EstimatedDuration time.Duration
	EstimatedEnergyWh float64
	Warnings          []string
}
