// Package telemetry keeps the per-tick snapshots of a mission run.
package telemetry

import (
	"sync"
	"time"

	"github.com/signalsfoundry/loiter-planner/model"
)

// DefaultCapacity is the number of snapshots kept when none is given.
const DefaultCapacity = 4096

// Transition records a lifecycle change.
type Transition struct {
	Tick int
	From model.Lifecycle
	To   model.Lifecycle
}

// Summary aggregates a whole run, including ticks that have already
// rolled out of the history window.
type Summary struct {
	Ticks          int
	SimTime        time.Duration
	Final          model.Lifecycle
	Coverage       float64
	Battery        float64
	Distance       float64
	AvoidingTicks  int
	BlockedTicks   int
	StuckTicks     int
	TicksPerPhase  map[model.Lifecycle]int
	Transitions    []Transition
	MaxWaypointIdx int
}

// Recorder is a concurrency-safe bounded snapshot history. Record has the
// tick-listener signature so it can be registered directly.
type Recorder struct {
	mu       sync.RWMutex
	capacity int
	buf      []model.Snapshot
	next     int
	full     bool

	summary Summary
	prev    model.Lifecycle
	seen    bool
}

// NewRecorder keeps the most recent capacity snapshots.
func NewRecorder(capacity int) *Recorder {
	if capacity <= 0 {
		capacity = DefaultCapacity
	}
	return &Recorder{
		capacity: capacity,
		buf:      make([]model.Snapshot, 0, capacity),
		summary:  Summary{TicksPerPhase: make(map[model.Lifecycle]int)},
	}
}

// Record appends s.
func (r *Recorder) Record(s model.Snapshot) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if len(r.buf) < r.capacity {
		r.buf = append(r.buf, s)
	} else {
		r.buf[r.next] = s
		r.full = true
	}
	r.next = (r.next + 1) % r.capacity

	sum := &r.summary
	from := r.prev
	if !r.seen {
		from = model.Idle
	}
	if s.Lifecycle != from {
		sum.Transitions = append(sum.Transitions, Transition{Tick: s.Tick, From: from, To: s.Lifecycle})
	}
	r.prev, r.seen = s.Lifecycle, true

	sum.Ticks++
	sum.SimTime = s.SimTime
	sum.Final = s.Lifecycle
	sum.Coverage = s.Coverage
	sum.Battery = s.Battery
	sum.Distance = s.Distance
	sum.TicksPerPhase[s.Lifecycle]++
	if s.Avoidance != model.AvoidNormal {
		sum.AvoidingTicks++
	}
	if s.FullyBlocked {
		sum.BlockedTicks++
	}
	if s.Stuck {
		sum.StuckTicks++
	}
	sum.MaxWaypointIdx = max(sum.MaxWaypointIdx, s.WaypointIndex)
}

// Latest returns the most recent snapshot.
func (r *Recorder) Latest() (model.Snapshot, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if len(r.buf) == 0 {
		return model.Snapshot{}, false
	}
	i := (r.next - 1 + r.capacity) % r.capacity
	return r.buf[i], true
}

// History returns the retained snapshots, oldest first.
func (r *Recorder) History() []model.Snapshot {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if !r.full {
		return append([]model.Snapshot(nil), r.buf...)
	}
	out := make([]model.Snapshot, 0, r.capacity)
	out = append(out, r.buf[r.next:]...)
	return append(out, r.buf[:r.next]...)
}

// Summary returns a copy of the run summary.
func (r *Recorder) Summary() Summary {
	r.mu.RLock()
	defer r.mu.RUnlock()
	cp := r.summary
	cp.TicksPerPhase = make(map[model.Lifecycle]int, len(r.summary.TicksPerPhase))
	for k, v := range r.summary.TicksPerPhase {
		cp.TicksPerPhase[k] = v
	}
	cp.Transitions = append([]Transition(nil), r.summary.Transitions...)
	return cp
}
