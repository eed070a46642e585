package telemetry

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/signalsfoundry/loiter-planner/model"
)

func snap(tick int, l model.Lifecycle) model.Snapshot {
	return model.Snapshot{
		Tick:          tick,
		SimTime:       time.Duration(tick) * 100 * time.Millisecond,
		Lifecycle:     l,
		Battery:       1 - float64(tick)/100,
		Coverage:      float64(tick) / 100,
		WaypointIndex: tick,
	}
}

func TestRecorderEmpty(t *testing.T) {
	r := NewRecorder(0)
	_, ok := r.Latest()
	assert.False(t, ok)
	assert.Empty(t, r.History())
	assert.Equal(t, 0, r.Summary().Ticks)
}

func TestRecorderKeepsMostRecentWindow(t *testing.T) {
	r := NewRecorder(3)
	for i := 1; i <= 5; i++ {
		r.Record(snap(i, model.Flying))
	}

	hist := r.History()
	require.Len(t, hist, 3)
	assert.Equal(t, []int{3, 4, 5}, []int{hist[0].Tick, hist[1].Tick, hist[2].Tick})

	latest, ok := r.Latest()
	require.True(t, ok)
	assert.Equal(t, 5, latest.Tick)

	sum := r.Summary()
	assert.Equal(t, 5, sum.Ticks)
	assert.Equal(t, 5, sum.MaxWaypointIdx)
	assert.InDelta(t, 0.05, sum.Coverage, 1e-12)
}

func TestRecorderSummaryTracksTransitions(t *testing.T) {
	r := NewRecorder(10)
	phases := []model.Lifecycle{model.Flying, model.Flying, model.Loitering, model.Flying, model.Returning, model.Landed}
	for i, l := range phases {
		s := snap(i+1, l)
		if i == 1 {
			s.Avoidance = model.AvoidAvoiding
			s.FullyBlocked = true
			s.Stuck = true
		}
		r.Record(s)
	}

	sum := r.Summary()
	assert.Equal(t, model.Landed, sum.Final)
	assert.Equal(t, 3, sum.TicksPerPhase[model.Flying])
	assert.Equal(t, 1, sum.AvoidingTicks)
	assert.Equal(t, 1, sum.BlockedTicks)
	assert.Equal(t, 1, sum.StuckTicks)
	assert.Equal(t, []Transition{
		{Tick: 1, From: model.Idle, To: model.Flying},
		{Tick: 3, From: model.Flying, To: model.Loitering},
		{Tick: 4, From: model.Loitering, To: model.Flying},
		{Tick: 5, From: model.Flying, To: model.Returning},
		{Tick: 6, From: model.Returning, To: model.Landed},
	}, sum.Transitions)

	sum.TicksPerPhase[model.Flying] = 99
	sum.Transitions[0].Tick = 99
	again := r.Summary()
	assert.Equal(t, 3, again.TicksPerPhase[model.Flying])
	assert.Equal(t, 1, again.Transitions[0].Tick)
}

func TestRecorderConcurrentUse(t *testing.T) {
	r := NewRecorder(16)
	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(2)
		go func() {
			defer wg.Done()
			for j := 0; j < 50; j++ {
				r.Record(snap(j, model.Flying))
			}
		}()
		go func() {
			defer wg.Done()
			_ = r.History()
			_, _ = r.Latest()
			_ = r.Summary()
		}()
	}
	wg.Wait()
	assert.Equal(t, 400, r.Summary().Ticks)
	assert.Len(t, r.History(), 16)
}
