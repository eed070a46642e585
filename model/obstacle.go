package model

// Obstacle is a circular physical obstacle or, when NoFly is set, a
// restricted zone. A no-fly zone may carry a polygon outline; Center and
// Radius then describe its bounding circle.
type Obstacle struct {
	ID      string
	Center  Point
	Radius  float64
	NoFly   bool
	Polygon []Point

	// Known reports whether the obstacle is part of the offline map. Unknown
	// obstacles exist only in the simulated world and are found by the sensor.
	Known bool
}

// Physical reports whether the obstacle is a volume the sensor can detect.
func (o Obstacle) Physical() bool { return !o.NoFly }
