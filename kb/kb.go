// Package kb holds the simulated obstacle world: everything that physically
// exists, whether or not the offline map knows about it.
package kb

import (
	"errors"
	"fmt"
	"sort"
	"sync"

	"github.com/samber/lo"

	"github.com/signalsfoundry/loiter-planner/model"
)

// ErrDuplicateObstacle is returned when an obstacle ID is already stored.
var ErrDuplicateObstacle = errors.New("obstacle already exists")

// EventType indicates what kind of change happened in the KB.
type EventType int

const (
	EventObstacleAdded EventType = iota
	EventObstacleDetected
)

func (t EventType) String() string {
	if t == EventObstacleDetected {
		return "detected"
	}
	return "added"
}

// Event is emitted to subscribers when something interesting happens.
type Event struct {
	Type     EventType
	Obstacle model.Obstacle
}

// KnowledgeBase is an in-memory, thread-safe obstacle store.
type KnowledgeBase struct {
	mu sync.RWMutex

	obstacles map[string]*model.Obstacle

	subs    map[int]func(Event)
	nextSub int
}

// NewKnowledgeBase constructs an empty KB.
func NewKnowledgeBase() *KnowledgeBase {
	return &KnowledgeBase{
		obstacles: make(map[string]*model.Obstacle),
		subs:      make(map[int]func(Event)),
	}
}

// AddObstacle stores o. IDs must be non-empty and unique.
func (kb *KnowledgeBase) AddObstacle(o model.Obstacle) error {
	if o.ID == "" {
		return fmt.Errorf("obstacle at (%.1f,%.1f) has no ID", o.Center.X, o.Center.Y)
	}
	kb.mu.Lock()
	if _, exists := kb.obstacles[o.ID]; exists {
		kb.mu.Unlock()
		return fmt.Errorf("%w: %q", ErrDuplicateObstacle, o.ID)
	}
	o.Polygon = append([]model.Point(nil), o.Polygon...)
	kb.obstacles[o.ID] = &o
	subs := kb.subscribers()
	kb.mu.Unlock()

	notify(subs, Event{Type: EventObstacleAdded, Obstacle: o})
	return nil
}

// GetObstacle returns a copy of the obstacle with the given ID.
func (kb *KnowledgeBase) GetObstacle(id string) (model.Obstacle, bool) {
	kb.mu.RLock()
	defer kb.mu.RUnlock()
	o, ok := kb.obstacles[id]
	if !ok {
		return model.Obstacle{}, false
	}
	return *o, true
}

// World returns every obstacle, known or not, ordered by ID.
func (kb *KnowledgeBase) World() []model.Obstacle {
	kb.mu.RLock()
	defer kb.mu.RUnlock()

	res := make([]model.Obstacle, 0, len(kb.obstacles))
	for _, o := range kb.obstacles {
		res = append(res, *o)
	}
	sort.Slice(res, func(i, j int) bool { return res[i].ID < res[j].ID })
	return res
}

// Known returns the obstacles that are on the map, ordered by ID.
func (kb *KnowledgeBase) Known() []model.Obstacle {
	return lo.Filter(kb.World(), func(o model.Obstacle, _ int) bool { return o.Known })
}

// Unknown returns the obstacles the map does not contain yet.
func (kb *KnowledgeBase) Unknown() []model.Obstacle {
	return lo.Reject(kb.World(), func(o model.Obstacle, _ int) bool { return o.Known })
}

// MarkDetected flags a sensed obstacle as known and notifies subscribers.
// It reports false when id is missing or already known.
func (kb *KnowledgeBase) MarkDetected(id string) bool {
	kb.mu.Lock()
	o, ok := kb.obstacles[id]
	if !ok || o.Known {
		kb.mu.Unlock()
		return false
	}
	o.Known = true
	event := Event{Type: EventObstacleDetected, Obstacle: *o}
	subs := kb.subscribers()
	kb.mu.Unlock()

	// Notify subscribers outside the lock to avoid deadlocks.
	notify(subs, event)
	return true
}

// Subscribe registers a callback for KB events. It returns an unsubscribe
// function; calling it more than once is harmless.
func (kb *KnowledgeBase) Subscribe(fn func(Event)) (unsubscribe func()) {
	kb.mu.Lock()
	defer kb.mu.Unlock()
	id := kb.nextSub
	kb.nextSub++
	kb.subs[id] = fn

	return func() {
		kb.mu.Lock()
		defer kb.mu.Unlock()
		delete(kb.subs, id)
	}
}

// subscribers must be called with kb.mu held.
func (kb *KnowledgeBase) subscribers() []func(Event) {
	keys := lo.Keys(kb.subs)
	sort.Ints(keys)
	return lo.Map(keys, func(k int, _ int) func(Event) { return kb.subs[k] })
}

func notify(subs []func(Event), e Event) {
	for _, sub := range subs {
		sub(e)
	}
}
