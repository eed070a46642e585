package core

import (
	"errors"
	"math"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/signalsfoundry/loiter-planner/model"
)

const yamlScenario = `
name: ridge-line
width: 400
height: 300
resolution: 5
start: {x: 10, y: 10}
obstacles:
  - id: ridge
    center: {x: 200, y: 150}
    radius: 30
  - id: mast
    center: {x: 300, y: 80}
    radius: 8
    known: false
  - id: airfield
    no_fly: true
    polygon:
      - {x: 40, y: 200}
      - {x: 80, y: 200}
      - {x: 80, y: 240}
      - {x: 40, y: 240}
`

func TestLoadScenarioYAML(t *testing.T) {
	s, err := LoadScenario(strings.NewReader(yamlScenario), FormatYAML)
	if err != nil {
		t.Fatalf("LoadScenario: %v", err)
	}
	if s.Name != "ridge-line" || s.Map.Width != 400 || s.Map.Resolution != 5 {
		t.Fatalf("scenario header = %q %vx%v@%v", s.Name, s.Map.Width, s.Map.Height, s.Map.Resolution)
	}
	if s.Map.Start != model.Pt(10, 10) {
		t.Fatalf("start = %+v", s.Map.Start)
	}
	if len(s.World) != 3 {
		t.Fatalf("world has %d obstacles, want 3", len(s.World))
	}
	if len(s.Map.Obstacles) != 2 {
		t.Fatalf("map knows %d obstacles, want 2 (mast is unknown)", len(s.Map.Obstacles))
	}
	for _, o := range s.Map.Obstacles {
		if o.ID == "mast" {
			t.Fatalf("unknown obstacle leaked into the map")
		}
	}

	zone := s.World[2]
	if !zone.NoFly || len(zone.Polygon) != 4 {
		t.Fatalf("airfield = %+v", zone)
	}
	if zone.Center.DistanceTo(model.Pt(60, 220)) > 1e-9 || math.Abs(zone.Radius-math.Hypot(20, 20)) > 1e-9 {
		t.Fatalf("airfield bounding circle = %+v r=%v", zone.Center, zone.Radius)
	}
	if g := s.Map.Coverage; g.SurveyableCount() == g.Cols*g.Rows {
		t.Fatalf("known obstacles did not block any coverage cells")
	}
}

func TestLoadScenarioJSON(t *testing.T) {
	doc := `{"width": 100, "height": 100, "start": {"x": 0, "y": 0},
		"obstacles": [{"center": {"x": 50, "y": 50}, "radius": 10}]}`
	s, err := LoadScenario(strings.NewReader(doc), FormatJSON)
	if err != nil {
		t.Fatalf("LoadScenario: %v", err)
	}
	if s.Map.Resolution != 10 {
		t.Fatalf("default resolution = %v, want 10", s.Map.Resolution)
	}
	if len(s.World) != 1 || s.World[0].ID != "obstacle-0" || !s.World[0].Known {
		t.Fatalf("world = %+v", s.World)
	}
}

func TestLoadScenarioErrors(t *testing.T) {
	cases := []struct {
		name   string
		doc    string
		format ScenarioFormat
		want   error
	}{
		{"empty yaml", "", FormatYAML, ErrEmptyScenario},
		{"empty json", "", FormatJSON, ErrEmptyScenario},
		{"no extent", `{"name": "x"}`, FormatJSON, ErrEmptyScenario},
		{"start outside", `{"width": 10, "height": 10, "start": {"x": 20, "y": 0}}`, FormatJSON, ErrInvalidMap},
		{"negative size", `{"width": -10, "height": 10}`, FormatJSON, ErrInvalidMap},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if _, err := LoadScenario(strings.NewReader(tc.doc), tc.format); !errors.Is(err, tc.want) {
				t.Fatalf("err = %v, want %v", err, tc.want)
			}
		})
	}

	invalid := map[string]string{
		"duplicate ids":    `{"width": 10, "height": 10, "obstacles": [{"id": "a", "radius": 1}, {"id": "a", "radius": 1}]}`,
		"zero radius":      `{"width": 10, "height": 10, "obstacles": [{"id": "a"}]}`,
		"physical polygon": `{"width": 10, "height": 10, "obstacles": [{"id": "a", "polygon": [{"x":0,"y":0},{"x":1,"y":0},{"x":0,"y":1}]}]}`,
		"short polygon":    `{"width": 10, "height": 10, "obstacles": [{"id": "a", "no_fly": true, "polygon": [{"x":0,"y":0},{"x":1,"y":0}]}]}`,
		"malformed":        `{"width": `,
	}
	for name, doc := range invalid {
		if _, err := LoadScenario(strings.NewReader(doc), FormatJSON); err == nil {
			t.Fatalf("%s: expected an error", name)
		}
	}
	if _, err := LoadScenario(strings.NewReader("{}"), "toml"); err == nil {
		t.Fatalf("expected an error for an unknown format")
	}
}

func TestLoadScenarioFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "valley.yml")
	if err := os.WriteFile(path, []byte("width: 50\nheight: 50\n"), 0o600); err != nil {
		t.Fatalf("write: %v", err)
	}
	s, err := LoadScenarioFile(path)
	if err != nil {
		t.Fatalf("LoadScenarioFile: %v", err)
	}
	if s.Name != "valley" {
		t.Fatalf("name = %q, want the file stem", s.Name)
	}

	if _, err := LoadScenarioFile(filepath.Join(dir, "valley.txt")); err == nil {
		t.Fatalf("expected an error for an unsupported extension")
	}
	if _, err := LoadScenarioFile(filepath.Join(dir, "missing.json")); !errors.Is(err, os.ErrNotExist) {
		t.Fatalf("err = %v, want os.ErrNotExist", err)
	}
}
