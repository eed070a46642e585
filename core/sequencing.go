package core

import (
	"fmt"

	"github.com/signalsfoundry/loiter-planner/model"
)

// SequenceNearestNeighbor orders orbits greedily by distance, starting from
// start and always flying to the closest unvisited centre. Ties keep the
// earlier orbit. The returned orbits carry their new Index and an ID.
func SequenceNearestNeighbor(start model.Point, orbits []model.Orbit) []model.Orbit {
	remaining := append([]model.Orbit(nil), orbits...)
	out := make([]model.Orbit, 0, len(orbits))
	cur := start
	for len(remaining) > 0 {
		best := 0
		bestD := cur.DistanceTo(remaining[0].Center)
		for i := 1; i < len(remaining); i++ {
			if d := cur.DistanceTo(remaining[i].Center); d < bestD {
				best, bestD = i, d
			}
		}
		o := remaining[best]
		o.Index = len(out)
		o.ID = fmt.Sprintf("orbit-%03d", o.Index)
		out = append(out, o)
		cur = o.Center
		remaining = append(remaining[:best], remaining[best+1:]...)
	}
	return out
}

// TourLength returns the centre-to-centre length of home, the orbits in
// order, and back home.
func TourLength(home model.Point, orbits []model.Orbit) float64 {
	total := 0.0
	cur := home
	for _, o := range orbits {
		total += cur.DistanceTo(o.Center)
		cur = o.Center
	}
	return total + cur.DistanceTo(home)
}
