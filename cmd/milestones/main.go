// Package main provides a CLI that evaluates a goal file against an action
// log file without a server or database.
package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/warp/milestone-engine/api"
	"github.com/warp/milestone-engine/factory"
	"github.com/warp/milestone-engine/milestone"
)

type options struct {
	goalPath    string
	actionsPath string
	now         string
	json        bool
}

func main() {
	rootCmd := newRootCmd()
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	opts := &options{}
	rootCmd := &cobra.Command{
		Use:          "milestones",
		Short:        "Adaptive milestone schedules for habit goals",
		SilenceUsage: true,
	}
	rootCmd.PersistentFlags().StringVar(&opts.goalPath, "goal", "", "goal JSON file (required)")
	rootCmd.PersistentFlags().StringVar(&opts.actionsPath, "actions", "", "action log JSON file (array)")
	rootCmd.PersistentFlags().StringVar(&opts.now, "now", "", "evaluate at this RFC3339 instant (default: current time)")
	rootCmd.PersistentFlags().BoolVar(&opts.json, "json", false, "print JSON instead of a table")
	_ = rootCmd.MarkPersistentFlagRequired("goal")

	rootCmd.AddCommand(&cobra.Command{
		Use:   "schedule",
		Short: "Print the reconciled milestone schedule",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ev, _, err := evaluate(cmd, opts)
			if err != nil {
				return err
			}
			if opts.json {
				return writeJSON(cmd.OutOrStdout(), api.ToEvaluationDTO(ev))
			}
			return printSchedule(cmd.OutOrStdout(), ev)
		},
	})

	rootCmd.AddCommand(&cobra.Command{
		Use:   "status",
		Short: "Print the track status summary",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ev, _, err := evaluate(cmd, opts)
			if err != nil {
				return err
			}
			if opts.json {
				dto := api.ToEvaluationDTO(ev)
				dto.Milestones = nil
				return writeJSON(cmd.OutOrStdout(), dto)
			}
			return printStatus(cmd.OutOrStdout(), ev)
		},
	})

	rootCmd.AddCommand(&cobra.Command{
		Use:   "next",
		Short: "Print the next upcoming milestone",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ev, now, err := evaluate(cmd, opts)
			if err != nil {
				return err
			}
			m, wait, ok := milestone.NextMilestone(ev, now)
			if opts.json {
				resp := api.NextMilestoneDTO{GoalID: ev.GoalID, Track: api.ToTrackStatusDTO(ev.Track)}
				if ok {
					dto := api.ToMilestoneDTO(m)
					resp.Found = true
					resp.Milestone = &dto
					resp.WaitMs = wait.Milliseconds()
				}
				return writeJSON(cmd.OutOrStdout(), resp)
			}
			if !ok {
				_, err := fmt.Fprintln(cmd.OutOrStdout(), "no upcoming milestones")
				return err
			}
			_, err = fmt.Fprintf(cmd.OutOrStdout(), "milestone %d/%d at %s (in %s)\n",
				m.Index, m.Total, m.At.Format(time.RFC3339), wait.Round(time.Second))
			return err
		},
	})

	return rootCmd
}

// evaluate loads the goal and action files and runs the engine.
func evaluate(cmd *cobra.Command, opts *options) (*milestone.Evaluation, time.Time, error) {
	now := time.Now().UTC()
	if opts.now != "" {
		t, err := time.Parse(time.RFC3339, opts.now)
		if err != nil {
			return nil, time.Time{}, fmt.Errorf("invalid --now value: %w", err)
		}
		now = t.UTC()
	}

	data, err := os.ReadFile(opts.goalPath)
	if err != nil {
		return nil, time.Time{}, fmt.Errorf("failed to read goal: %w", err)
	}
	f := factory.NewGoalFactory()
	f.Now = func() time.Time { return now }
	goal, err := f.ParseGoal(data)
	if err != nil {
		return nil, time.Time{}, err
	}

	var actions []milestone.ActionRecord
	if opts.actionsPath != "" {
		data, err := os.ReadFile(opts.actionsPath)
		if err != nil {
			return nil, time.Time{}, fmt.Errorf("failed to read actions: %w", err)
		}
		var dropped int
		actions, dropped, err = factory.ParseActions(data)
		if err != nil {
			return nil, time.Time{}, err
		}
		if dropped > 0 {
			fmt.Fprintf(cmd.ErrOrStderr(), "skipped %d malformed action(s)\n", dropped)
		}
	}

	ev, err := milestone.Evaluate(*goal, actions, now)
	if err != nil {
		return nil, time.Time{}, err
	}
	return ev, now, nil
}

func printStatus(w io.Writer, ev *milestone.Evaluation) error {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintf(tw, "goal\t%s\n", ev.GoalID)
	fmt.Fprintf(tw, "direction\t%s\n", ev.Direction)
	fmt.Fprintf(tw, "track\t%s\n", formatTrack(ev.Track))
	fmt.Fprintf(tw, "state\t%s\n", ev.State())
	fmt.Fprintf(tw, "actions\t%d\n", ev.ActionCount)
	fmt.Fprintf(tw, "passed\t%d/%d\n", ev.MilestonesPassedByTime, ev.TotalMilestones)
	fmt.Fprintf(tw, "remaining\t%d\n", ev.Remaining)
	fmt.Fprintf(tw, "interval\t%s (curve %s)\n", ev.CurrentInterval.Round(time.Minute), ev.Model.Curve)
	return tw.Flush()
}

func printSchedule(w io.Writer, ev *milestone.Evaluation) error {
	if err := printStatus(w, ev); err != nil {
		return err
	}
	fmt.Fprintln(w)

	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "#\tAT\tINTERVAL\tPROGRESS\tSTATUS")
	for _, m := range ev.Milestones {
		fmt.Fprintf(tw, "%d\t%s\t%s\t%.0f%%\t%s\n",
			m.Index, m.At.Format(time.RFC3339), m.Interval.Round(time.Minute), m.Progress*100, m.Status)
	}
	return tw.Flush()
}

func formatTrack(t milestone.TrackStatus) string {
	if t.Count == 0 {
		return string(t.State)
	}
	return fmt.Sprintf("%s (%d)", t.State, t.Count)
}

func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
