package main

import (
	"fmt"
	"io"
	"math"
	"time"

	"github.com/samber/lo"
	"github.com/spf13/cobra"

	"github.com/signalsfoundry/loiter-planner/core"
	"github.com/signalsfoundry/loiter-planner/model"
)

func newPlanCmd(flags *rootFlags) *cobra.Command {
	var scenarioPath string
	var verbose bool

	cmd := &cobra.Command{
		Use:   "plan",
		Short: "Plan a mission for a scenario and print its summary",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			rt, err := flags.setup(cmd)
			if err != nil {
				return err
			}
			defer rt.shutdown(ctx)

			scenario, err := core.LoadScenarioFile(scenarioPath)
			if err != nil {
				return err
			}
			mp, err := core.NewMissionPlanner(rt.cfg, rt.opts...)
			if err != nil {
				return err
			}
			plan, _, err := mp.Plan(ctx, scenario.Map)
			if err != nil {
				return err
			}
			printPlan(cmd.OutOrStdout(), scenario, plan, verbose)
			return nil
		},
	}
	cmd.Flags().StringVarP(&scenarioPath, "scenario", "s", "", "scenario file (.json, .yaml)")
	cmd.Flags().BoolVarP(&verbose, "verbose", "v", false, "list every orbit and leg")
	_ = cmd.MarkFlagRequired("scenario")
	return cmd
}

func printPlan(w io.Writer, s core.Scenario, plan model.MissionPlan, verbose bool) {
	gridLegs := lo.CountBy(plan.Legs, func(l model.Leg) bool { return l.Kind == model.LegGrid })
	unsafe := lo.CountBy(plan.Legs, func(l model.Leg) bool { return l.Unsafe() })

	fmt.Fprintf(w, "Scenario:   %s (%gx%g, %d known obstacles)\n", s.Name, s.Map.Width, s.Map.Height, len(s.Map.Obstacles))
	fmt.Fprintf(w, "Plan:       %s\n", plan.ID)
	fmt.Fprintf(w, "Coverage:   %.1f%% (%s)\n", plan.PlannedCoverage*100, plan.CoverageStatus)
	fmt.Fprintf(w, "Orbits:     %d\n", len(plan.Orbits))
	fmt.Fprintf(w, "Legs:       %d (%d grid, %d unsafe)\n", len(plan.Legs), gridLegs, unsafe)
	fmt.Fprintf(w, "Waypoints:  %d\n", len(plan.Waypoints))
	fmt.Fprintf(w, "Length:     %.0f\n", plan.TotalLength)
	fmt.Fprintf(w, "Duration:   %s\n", plan.EstimatedDuration.Round(time.Second))
	fmt.Fprintf(w, "Energy:     %.1f Wh\n", plan.EstimatedEnergyWh)

	if verbose {
		for _, o := range plan.Orbits {
			fmt.Fprintf(w, "  %s %-9s centre (%.0f, %.0f) r=%.0f entry %.0f°  +%d cells\n",
				o.ID, o.Kind, o.Center.X, o.Center.Y, o.Radius,
				o.EntryPose().Heading*180/math.Pi, o.NewlyCovered)
		}
		for i, l := range plan.Legs {
			desc := l.Kind.String()
			if l.Kind == model.LegTransition && l.Transition != nil {
				desc = l.Transition.Family.String()
			}
			fmt.Fprintf(w, "  leg %-3d %4d -> %-4d %-10s %.0f\n", i, l.From, l.To, desc, l.Length())
		}
	}
	for _, warn := range plan.Warnings {
		fmt.Fprintf(w, "warning: %s\n", warn)
	}
}
