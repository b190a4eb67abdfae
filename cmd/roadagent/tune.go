package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"text/tabwriter"

	"github.com/banshee-data/roadagent/internal/api"
	"github.com/banshee-data/roadagent/internal/units"
)

// tuneCommand sends tunables to a running monitor, or lists agents when no
// agent is named.
func tuneCommand(ctx context.Context, args []string, stdout io.Writer) error {
	fs := flag.NewFlagSet("tune", flag.ContinueOnError)
	fs.SetOutput(stdout)
	addr := fs.String("addr", "http://localhost:8080", "Monitor base URL")
	agent := fs.String("agent", "", "Agent name or ID; empty lists agents")
	unit := fs.String("units", "", "Units for the agent listing (default: server's)")
	patience := fs.Float64("patience", 0, "Patience in [0, 1]")
	recklessness := fs.Float64("recklessness", 0, "Recklessness in [0, 1]")
	manual := fs.Bool("manual", false, "Enable manual throttle and brake")
	throttle := fs.Float64("throttle", 0, "Manual throttle in [0, 1]")
	brake := fs.Float64("brake", 0, "Manual brake in [0, 1]")
	changeLane := fs.Bool("change-lane", false, "Switch lanes now")
	laneSpeed := fs.Float64("lane-change-speed", 0, "Lane change speed in [0, 1]")
	cruise := fs.Float64("cruise", 0, "Desired cruise speed as a fraction of the maximum")
	if err := fs.Parse(args); err != nil {
		return err
	}

	client := api.NewClient(*addr, nil)
	if *agent == "" {
		if *unit != "" && !units.IsValid(*unit) {
			return fmt.Errorf("invalid -units %q, want one of: %s", *unit, units.ValidUnitsString())
		}
		resp, err := client.Agents(ctx, *unit)
		if err != nil {
			return err
		}
		tw := tabwriter.NewWriter(stdout, 0, 4, 2, ' ', 0)
		fmt.Fprintf(tw, "NAME\tSTATE\tSPEED (%s)\tTARGET\tPATIENCE\tRECKLESSNESS\n", resp.Units)
		for _, a := range resp.Agents {
			fmt.Fprintf(tw, "%s\t%s\t%.1f\t%.1f\t%.2f\t%.2f\n", a.Name, a.State, a.Speed, a.TargetSpeed, a.Personality.Patience, a.Personality.Recklessness)
		}
		return tw.Flush()
	}

	var req api.TunablesRequest
	fs.Visit(func(f *flag.Flag) {
		switch f.Name {
		case "patience":
			req.Patience = patience
		case "recklessness":
			req.Recklessness = recklessness
		case "manual":
			req.ManualOverride = manual
		case "throttle":
			req.ManualThrottle = throttle
		case "brake":
			req.ManualBrake = brake
		case "change-lane":
			req.ForceLaneChange = *changeLane
		case "lane-change-speed":
			req.LaneChangeSpeed = laneSpeed
		case "cruise":
			req.DesiredCruiseSpeed = cruise
		}
	})
	if err := req.Validate(); err != nil {
		return fmt.Errorf("%w: %v", errUsage, err)
	}
	if err := client.SetTunables(ctx, *agent, req); err != nil {
		return err
	}
	fmt.Fprintf(stdout, "queued tunables for %s\n", *agent)
	return nil
}
