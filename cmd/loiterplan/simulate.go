package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"math"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/signalsfoundry/loiter-planner/core"
	"github.com/signalsfoundry/loiter-planner/internal/logging"
	"github.com/signalsfoundry/loiter-planner/internal/observability"
	"github.com/signalsfoundry/loiter-planner/internal/telemetry"
	"github.com/signalsfoundry/loiter-planner/kb"
	"github.com/signalsfoundry/loiter-planner/model"
	"github.com/signalsfoundry/loiter-planner/timectrl"
)

type simulateFlags struct {
	scenario    string
	realtime    bool
	maxTicks    int
	metricsAddr string
	every       int
	history     int
}

func newSimulateCmd(flags *rootFlags) *cobra.Command {
	sf := &simulateFlags{}
	cmd := &cobra.Command{
		Use:   "simulate",
		Short: "Plan a mission for a scenario and fly it to landing",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			rt, err := flags.setup(cmd)
			if err != nil {
				return err
			}
			defer rt.shutdown(context.WithoutCancel(cmd.Context()))
			return runSimulation(cmd.Context(), cmd.OutOrStdout(), rt, sf)
		},
	}
	f := cmd.Flags()
	f.StringVarP(&sf.scenario, "scenario", "s", "", "scenario file (.json, .yaml)")
	f.BoolVar(&sf.realtime, "realtime", false, "pace ticks against the wall clock")
	f.IntVar(&sf.maxTicks, "max-ticks", 0, "stop after this many ticks (0 uses execution.max_ticks)")
	f.StringVar(&sf.metricsAddr, "metrics-addr", "", "serve Prometheus metrics on this address while flying")
	f.IntVar(&sf.every, "every", 0, "print a progress line every N ticks (0 disables)")
	f.IntVar(&sf.history, "history", 0, "print the last N snapshots after landing")
	_ = cmd.MarkFlagRequired("scenario")
	return cmd
}

func runSimulation(ctx context.Context, out io.Writer, rt *runtime, sf *simulateFlags) error {
	// Every record logged under ctx carries the mission ID.
	ctx, missionID := logging.EnsureMissionID(ctx)

	scenario, err := core.LoadScenarioFile(sf.scenario)
	if err != nil {
		return err
	}
	store := kb.NewKnowledgeBase()
	for _, o := range scenario.World {
		if err := store.AddObstacle(o); err != nil {
			return err
		}
	}
	unsubscribe := store.Subscribe(func(e kb.Event) {
		if e.Type == kb.EventObstacleDetected {
			fmt.Fprintf(out, "detected obstacle %s at (%.0f, %.0f) r=%.0f\n",
				e.Obstacle.ID, e.Obstacle.Center.X, e.Obstacle.Center.Y, e.Obstacle.Radius)
		}
	})
	defer unsubscribe()

	reg := prometheus.NewRegistry()
	collector, err := observability.NewMissionCollector(reg)
	if err != nil {
		return err
	}
	opts := append(append([]core.Option{}, rt.opts...),
		core.WithRecorder(collector),
		core.WithObstacleTracker(store),
	)

	mp, err := core.NewMissionPlanner(rt.cfg, opts...)
	if err != nil {
		return err
	}
	plan, _, err := mp.Plan(ctx, scenario.Map)
	if err != nil {
		return err
	}
	fmt.Fprintf(out, "Mission:    %s\n", missionID)
	printPlan(out, scenario, plan, false)

	exec, err := core.NewExecutor(rt.cfg, plan, scenario.Map, store.World(), opts...)
	if err != nil {
		return err
	}
	engine := core.NewSimulationEngine(exec, opts...)
	history := telemetry.NewRecorder(0)
	engine.RegisterTickListener(history.Record)
	if sf.every > 0 {
		engine.RegisterTickListener(func(s model.Snapshot) {
			if s.Tick%sf.every == 0 {
				printSnapshot(out, s)
			}
		})
	}

	maxTicks := sf.maxTicks
	if maxTicks <= 0 {
		maxTicks = rt.cfg.Execution.MaxTicks
	}
	mode := timectrl.Accelerated
	if sf.realtime {
		mode = timectrl.RealTime
	}
	clock := timectrl.NewTimeController(time.Time{}, rt.cfg.Execution.TickDT, mode)

	g, gctx := errgroup.WithContext(ctx)
	runCtx, stop := context.WithCancel(gctx)
	defer stop()
	clock.AddListener(func(time.Time) {
		engine.Step(runCtx)
		if engine.Done() {
			stop()
		}
	})

	g.Go(func() error {
		defer stop()
		n, err := clock.Run(runCtx, maxTicks)
		switch {
		case engine.Done():
			return nil
		case err == nil:
			return fmt.Errorf("%w: %d ticks", core.ErrTickLimit, n)
		default:
			return err
		}
	})
	if sf.metricsAddr != "" {
		srv := &http.Server{
			Addr:              sf.metricsAddr,
			Handler:           collector.Handler(),
			ReadHeaderTimeout: 5 * time.Second,
		}
		g.Go(func() error {
			rt.log.Info(ctx, "serving metrics", logging.String("addr", sf.metricsAddr))
			if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				return fmt.Errorf("metrics server: %w", err)
			}
			return nil
		})
		g.Go(func() error {
			<-runCtx.Done()
			shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 5*time.Second)
			defer cancel()
			return srv.Shutdown(shutdownCtx)
		})
	}
	runErr := g.Wait()

	printSummary(out, history.Summary())
	printEnergy(out, engine.Executor().Ledger())
	if sf.history > 0 {
		snaps := history.History()
		if len(snaps) > sf.history {
			snaps = snaps[len(snaps)-sf.history:]
		}
		for _, s := range snaps {
			printSnapshot(out, s)
		}
	}
	return runErr
}

func printSnapshot(w io.Writer, s model.Snapshot) {
	fmt.Fprintf(w, "tick %6d %-10s pos (%7.1f, %7.1f) alt %6.1f hdg %4.0f° batt %5.1f%% cov %5.1f%% %s\n",
		s.Tick, s.Lifecycle, s.Position.X, s.Position.Y, s.Altitude,
		s.Heading*180/math.Pi, s.Battery*100, s.Coverage*100, s.Avoidance)
}

func printSummary(w io.Writer, sum telemetry.Summary) {
	fmt.Fprintf(w, "Result:     %s after %d ticks (%s)\n", sum.Final, sum.Ticks, sum.SimTime)
	fmt.Fprintf(w, "Coverage:   %.1f%%\n", sum.Coverage*100)
	fmt.Fprintf(w, "Battery:    %.1f%%\n", sum.Battery*100)
	fmt.Fprintf(w, "Distance:   %.0f\n", sum.Distance)
	fmt.Fprintf(w, "Avoidance:  %d ticks (%d blocked, %d stuck)\n", sum.AvoidingTicks, sum.BlockedTicks, sum.StuckTicks)
	for _, tr := range sum.Transitions {
		fmt.Fprintf(w, "  tick %6d %s -> %s\n", tr.Tick, tr.From, tr.To)
	}
}

func printEnergy(w io.Writer, ledger *core.EnergyLedger) {
	spent := ledger.ByPhase()
	for _, phase := range []model.Lifecycle{model.Flying, model.Loitering, model.Returning, model.Descent} {
		if wh, ok := spent[phase]; ok {
			fmt.Fprintf(w, "  %-10s %8.2f Wh\n", phase, wh)
		}
	}
}
