package core

import (
	"context"
	"fmt"
	"math"
	"math/rand"

	"gonum.org/v1/gonum/floats"

	"github.com/signalsfoundry/loiter-planner/internal/config"
	"github.com/signalsfoundry/loiter-planner/internal/logging"
	"github.com/signalsfoundry/loiter-planner/model"
)

// ringSamples is the number of perimeter chords checked when validating
// that an orbit's flown ring stays clear of inflated obstacles.
const ringSamples = 72

// CoverageResult is the outcome of greedy orbit placement.
type CoverageResult struct {
	Orbits     []model.Orbit
	Achieved   float64
	Target     float64
	Status     model.CoverageStatus
	Iterations int
	Candidates int
}

// CoveragePlanner places observation orbits by greedy energy-weighted set
// cover over the map's coverage grid.
type CoveragePlanner struct {
	cfg config.Config
	opt options
}

// NewCoveragePlanner validates cfg and returns a planner.
func NewCoveragePlanner(cfg config.Config, opts ...Option) (*CoveragePlanner, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &CoveragePlanner{cfg: cfg, opt: buildOptions(opts)}, nil
}

type candidate struct {
	orbit model.Orbit
	alive bool
}

// Plan selects orbits until the coverage target, the orbit cap, or zero
// marginal gain is reached. It works on a clone of m and returns the
// updated map; m itself is never modified. Falling short of the target is
// reported through the result status, not as an error.
func (p *CoveragePlanner) Plan(ctx context.Context, m model.SurveillanceMap) (model.SurveillanceMap, CoverageResult, error) {
	work := m.Clone()
	if work.Coverage == nil {
		prepared, err := NewSurveillanceMap(m.Width, m.Height, m.Resolution, m.Start, m.Obstacles)
		if err != nil {
			return m, CoverageResult{}, err
		}
		work = prepared
	}

	radius := p.cfg.EffectiveOrbitRadius()
	kind := p.cfg.PatternKind()
	length := p.cfg.EffectiveRacetrackLength()
	template := model.Orbit{Radius: radius, Kind: kind, Length: length}

	cost := RevolutionEnergyWh(template.Perimeter(), p.cfg.Vehicle.CruiseSpeed,
		NewPowerModel(p.cfg).Loiter*kind.Spec().EnergyMultiplier)
	cellArea := work.Coverage.Resolution * work.Coverage.Resolution

	cands := p.candidates(work, template)
	res := CoverageResult{Target: p.cfg.CoverageTarget(), Candidates: len(cands)}

	for len(res.Orbits) < p.cfg.Planner.MaxOrbits && work.Coverage.Fraction() < res.Target {
		if err := ctx.Err(); err != nil {
			return m, CoverageResult{}, fmt.Errorf("coverage planning: %w", err)
		}
		res.Iterations++

		best, bestGain, bestScore := -1, 0, 0.0
		for i := range cands {
			c := &cands[i]
			if !c.alive {
				continue
			}
			gain := countNew(work.Coverage, c.orbit)
			if gain == 0 {
				// Coverage only grows, so this candidate is spent for good.
				c.alive = false
				continue
			}
			// Strict comparison keeps the lowest lattice index on ties.
			if score := float64(gain) * cellArea / cost; score > bestScore {
				best, bestGain, bestScore = i, gain, score
			}
		}
		if best < 0 {
			break
		}

		chosen := cands[best].orbit
		cands[best].alive = false
		minX, minY, maxX, maxY := chosen.Bounds()
		work.Coverage.MarkWithin(minX, minY, maxX, maxY, chosen.Covers)
		chosen.NewlyCovered = bestGain
		res.Orbits = append(res.Orbits, chosen)

		p.opt.log.Debug(ctx, "orbit selected",
			logging.Float("x", chosen.Center.X),
			logging.Float("y", chosen.Center.Y),
			logging.Int("new_cells", bestGain),
			logging.Float("coverage", work.Coverage.Fraction()),
		)
	}

	res.Achieved = work.Coverage.Fraction()
	if res.Achieved < res.Target {
		res.Status = model.CoverageUnderTarget
		p.opt.log.Warn(ctx, "coverage target not reached",
			logging.Float("achieved", res.Achieved),
			logging.Float("target", res.Target),
			logging.Int("orbits", len(res.Orbits)),
		)
	}
	return work, res, nil
}

func countNew(g *model.CoverageGrid, o model.Orbit) int {
	minX, minY, maxX, maxY := o.Bounds()
	return g.CountUncovered(minX, minY, maxX, maxY, o.Covers)
}

// candidates lays out the placement lattice and drops centres that sit in
// an inflated obstacle or whose ring would cross one.
func (p *CoveragePlanner) candidates(m model.SurveillanceMap, template model.Orbit) []candidate {
	spacing := template.Radius * (1 - p.cfg.Planner.OverlapFactor)
	origin := spacing / 2
	var jx, jy float64
	if p.cfg.Planner.LatticeJitter {
		rng := rand.New(rand.NewSource(p.cfg.Planner.Seed))
		jx, jy = rng.Float64()*origin, rng.Float64()*origin
	}
	xs := latticeAxis(origin+jx, m.Width, spacing)
	ys := latticeAxis(origin+jy, m.Height, spacing)

	out := make([]candidate, 0, len(xs)*len(ys))
	for _, y := range ys {
		for _, x := range xs {
			o := template
			o.Center = model.Pt(x, y)
			if p.orbitClear(o, m.Obstacles) {
				out = append(out, candidate{orbit: o, alive: true})
			}
		}
	}
	return out
}

// latticeAxis returns evenly spaced coordinates from start up to limit.
func latticeAxis(start, limit, spacing float64) []float64 {
	if start > limit {
		return []float64{limit / 2}
	}
	n := int(math.Floor((limit-start)/spacing)) + 1
	if n == 1 {
		return []float64{start}
	}
	return floats.Span(make([]float64, n), start, start+float64(n-1)*spacing)
}

func (p *CoveragePlanner) orbitClear(o model.Orbit, obstacles []model.Obstacle) bool {
	if len(obstacles) == 0 {
		return true
	}
	per := o.Perimeter()
	ring := make([]model.Point, ringSamples)
	for i := range ring {
		ring[i] = o.PoseAt(per * float64(i) / ringSamples).Point
	}
	for _, ob := range obstacles {
		margin := inflationFor(ob, p.cfg.Planner.ObstacleMargin, p.cfg.Planner.NoFlyMargin)
		if InsideObstacle(o.Center, ob, margin) {
			return false
		}
		for i := range ring {
			if !SegmentClear(ring[i], ring[(i+1)%len(ring)], ob, margin) {
				return false
			}
		}
	}
	return true
}
