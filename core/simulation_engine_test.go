package core

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/signalsfoundry/loiter-planner/kb"
	"github.com/signalsfoundry/loiter-planner/model"
	"github.com/signalsfoundry/loiter-planner/timectrl"
)

const hiddenMastScenario = `
width: 120
height: 80
resolution: 2
start: {x: 0, y: 0}
obstacles:
  - id: mast
    center: {x: 60, y: 40}
    radius: 4
    known: false
`

func engineFor(t *testing.T, opts ...Option) (*SimulationEngine, Scenario) {
	t.Helper()
	s, err := LoadScenario(strings.NewReader(hiddenMastScenario), FormatYAML)
	if err != nil {
		t.Fatalf("LoadScenario: %v", err)
	}
	cfg := smallConfig()
	e, err := NewExecutor(cfg, planFor(t, cfg, s.Map), s.Map, s.World, opts...)
	if err != nil {
		t.Fatalf("NewExecutor: %v", err)
	}
	return NewSimulationEngine(e, opts...), s
}

func TestSimulationEngineRunLands(t *testing.T) {
	store := kb.NewKnowledgeBase()
	se, s := engineFor(t, WithObstacleTracker(store))
	for _, o := range s.World {
		if err := store.AddObstacle(o); err != nil {
			t.Fatalf("AddObstacle: %v", err)
		}
	}
	var detections []string
	store.Subscribe(func(e kb.Event) {
		if e.Type == kb.EventObstacleDetected {
			detections = append(detections, e.Obstacle.ID)
		}
	})

	var ticks []int
	se.RegisterTickListener(func(s model.Snapshot) { ticks = append(ticks, s.Tick) })

	last, err := se.Run(context.Background(), 0)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if last.Lifecycle != model.Landed || !se.Done() {
		t.Fatalf("run ended in %v", last.Lifecycle)
	}
	if len(ticks) != last.Tick || ticks[0] != 1 {
		t.Fatalf("listener saw %d ticks starting at %d, want %d from 1", len(ticks), ticks[0], last.Tick)
	}
	if se.Last() != last {
		t.Fatalf("Last() disagrees with Run's result")
	}
	if len(detections) != 1 || detections[0] != "mast" {
		t.Fatalf("detections = %v, want [mast]", detections)
	}
	if again := se.Step(context.Background()); again != last || len(ticks) != last.Tick {
		t.Fatalf("stepping a landed engine changed state")
	}
}

func TestSimulationEngineTickLimit(t *testing.T) {
	se, _ := engineFor(t)
	last, err := se.Run(context.Background(), 10)
	if !errors.Is(err, ErrTickLimit) {
		t.Fatalf("err = %v, want ErrTickLimit", err)
	}
	if last.Tick != 10 || se.Done() {
		t.Fatalf("stopped at tick %d, done=%v", last.Tick, se.Done())
	}

	// A later run resumes where the first one stopped.
	last, err = se.Run(context.Background(), 0)
	if err != nil || last.Lifecycle != model.Landed {
		t.Fatalf("resumed run = %v, %v", last.Lifecycle, err)
	}
}

func TestSimulationEngineHonoursCancellation(t *testing.T) {
	se, _ := engineFor(t)
	ctx, cancel := context.WithCancel(context.Background())
	se.RegisterTickListener(func(s model.Snapshot) {
		if s.Tick == 5 {
			cancel()
		}
	})
	last, err := se.Run(ctx, 0)
	if !errors.Is(err, context.Canceled) || last.Tick != 5 {
		t.Fatalf("Run = tick %d, %v; want tick 5, context.Canceled", last.Tick, err)
	}
}

func TestSimulationEngineDrivenByClock(t *testing.T) {
	se, _ := engineFor(t)
	clock := timectrl.NewTimeController(time.Time{}, smallConfig().Execution.TickDT, timectrl.Accelerated)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	clock.AddListener(func(time.Time) {
		if se.Step(ctx).Lifecycle == model.Landed {
			cancel()
		}
	})

	n, err := clock.Run(ctx, 0)
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("clock stopped with %v", err)
	}
	last := se.Last()
	if last.Lifecycle != model.Landed || last.Tick != n {
		t.Fatalf("clock ran %d ticks, engine at tick %d in %v", n, last.Tick, last.Lifecycle)
	}
	if got := clock.Now().Sub(time.Time{}); got != last.SimTime {
		t.Fatalf("clock time %v != simulated time %v", got, last.SimTime)
	}
}
