package core

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/samber/lo"
	"gopkg.in/yaml.v3"

	"github.com/signalsfoundry/loiter-planner/model"
)

// ErrEmptyScenario is returned for a scenario document with no content or
// no map extent.
var ErrEmptyScenario = errors.New("empty scenario")

// ScenarioFormat selects the scenario decoder.
type ScenarioFormat string

const (
	FormatJSON ScenarioFormat = "json"
	FormatYAML ScenarioFormat = "yaml"
)

// Scenario is a loaded survey problem. Map carries only the obstacles the
// planner is told about; World additionally holds the ones it must find in
// flight.
type Scenario struct {
	Name  string
	Map   model.SurveillanceMap
	World []model.Obstacle
}

// internal document shapes, unexported so the file format can evolve.
type scenarioDoc struct {
	Name       string        `json:"name" yaml:"name"`
	Width      float64       `json:"width" yaml:"width"`
	Height     float64       `json:"height" yaml:"height"`
	Resolution float64       `json:"resolution" yaml:"resolution"`
	Start      pointDoc      `json:"start" yaml:"start"`
	Obstacles  []obstacleDoc `json:"obstacles" yaml:"obstacles"`
}

type pointDoc struct {
	X float64 `json:"x" yaml:"x"`
	Y float64 `json:"y" yaml:"y"`
}

type obstacleDoc struct {
	ID      string     `json:"id" yaml:"id"`
	Center  pointDoc   `json:"center" yaml:"center"`
	Radius  float64    `json:"radius" yaml:"radius"`
	NoFly   bool       `json:"no_fly" yaml:"no_fly"`
	Polygon []pointDoc `json:"polygon" yaml:"polygon"`
	Known   *bool      `json:"known" yaml:"known"` // defaults to true
}

// LoadScenarioFile reads a scenario, picking the decoder from the file
// extension (.json, .yaml, .yml).
func LoadScenarioFile(path string) (Scenario, error) {
	var format ScenarioFormat
	switch strings.ToLower(filepath.Ext(path)) {
	case ".json":
		format = FormatJSON
	case ".yaml", ".yml":
		format = FormatYAML
	default:
		return Scenario{}, fmt.Errorf("scenario %s: unsupported extension", path)
	}
	f, err := os.Open(path)
	if err != nil {
		return Scenario{}, fmt.Errorf("scenario %s: %w", path, err)
	}
	defer f.Close()

	s, err := LoadScenario(f, format)
	if err != nil {
		return Scenario{}, fmt.Errorf("scenario %s: %w", path, err)
	}
	if s.Name == "" {
		s.Name = strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
	}
	return s, nil
}

// LoadScenario decodes a scenario from r and builds its map. It fails on
// decode errors, an empty document, or an invalid map.
func LoadScenario(r io.Reader, format ScenarioFormat) (Scenario, error) {
	var doc scenarioDoc
	var err error
	switch format {
	case FormatJSON:
		err = json.NewDecoder(r).Decode(&doc)
	case FormatYAML:
		err = yaml.NewDecoder(r).Decode(&doc)
	default:
		return Scenario{}, fmt.Errorf("unknown scenario format %q", format)
	}
	if errors.Is(err, io.EOF) {
		return Scenario{}, ErrEmptyScenario
	}
	if err != nil {
		return Scenario{}, fmt.Errorf("decode %s scenario: %w", format, err)
	}
	if doc.Width == 0 && doc.Height == 0 {
		return Scenario{}, fmt.Errorf("%w: no map extent", ErrEmptyScenario)
	}
	if doc.Resolution == 0 {
		doc.Resolution = 10
	}

	world := make([]model.Obstacle, 0, len(doc.Obstacles))
	seen := make(map[string]bool, len(doc.Obstacles))
	for i, od := range doc.Obstacles {
		o, err := od.toModel(i)
		if err != nil {
			return Scenario{}, err
		}
		if seen[o.ID] {
			return Scenario{}, fmt.Errorf("duplicate obstacle id %q", o.ID)
		}
		seen[o.ID] = true
		world = append(world, o)
	}

	known := lo.Filter(world, func(o model.Obstacle, _ int) bool { return o.Known })
	m, err := NewSurveillanceMap(doc.Width, doc.Height, doc.Resolution, model.Pt(doc.Start.X, doc.Start.Y), known)
	if err != nil {
		return Scenario{}, err
	}
	return Scenario{Name: doc.Name, Map: m, World: world}, nil
}

func (od obstacleDoc) toModel(i int) (model.Obstacle, error) {
	o := model.Obstacle{
		ID:     od.ID,
		Center: model.Pt(od.Center.X, od.Center.Y),
		Radius: od.Radius,
		NoFly:  od.NoFly,
		Known:  od.Known == nil || *od.Known,
		Polygon: lo.Map(od.Polygon, func(p pointDoc, _ int) model.Point {
			return model.Pt(p.X, p.Y)
		}),
	}
	if o.ID == "" {
		o.ID = fmt.Sprintf("obstacle-%d", i)
	}
	if len(o.Polygon) > 0 {
		if !o.NoFly {
			return model.Obstacle{}, fmt.Errorf("obstacle %q: only no-fly zones may carry a polygon", o.ID)
		}
		if len(o.Polygon) < 3 {
			return model.Obstacle{}, fmt.Errorf("obstacle %q: polygon needs at least 3 vertices", o.ID)
		}
		if o.Radius == 0 {
			o.Center, o.Radius = boundingCircle(o.Polygon)
		}
	}
	if o.Radius <= 0 {
		return model.Obstacle{}, fmt.Errorf("obstacle %q: radius must be > 0, got %v", o.ID, o.Radius)
	}
	return o, nil
}

// boundingCircle returns the vertex centroid and the distance to the
// farthest vertex.
func boundingCircle(poly []model.Point) (model.Point, float64) {
	n := float64(len(poly))
	c := model.Pt(
		lo.SumBy(poly, func(p model.Point) float64 { return p.X })/n,
		lo.SumBy(poly, func(p model.Point) float64 { return p.Y })/n,
	)
	r := lo.Max(lo.Map(poly, func(p model.Point, _ int) float64 { return p.DistanceTo(c) }))
	return c, r
}
