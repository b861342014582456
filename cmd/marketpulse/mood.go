package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"MarketPulse/internal/registry"
	"MarketPulse/internal/scheduler"
)

func newMoodCmd(a *app) *cobra.Command {
	var broadcast bool
	cmd := &cobra.Command{
		Use:   "mood",
		Short: "Compute the current market mood, optionally pushing it to subscribers",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			if ctx == nil {
				ctx = context.Background()
			}
			col, err := a.buildCollector()
			if err != nil {
				return err
			}
			if !broadcast {
				snap, err := col.Mood(ctx)
				if err != nil {
					return err
				}
				return printJSON(snap)
			}

			rec := a.openRecorder()
			defer rec.Close()
			devices, err := registry.New(a.cfg.Notify.TokensFile, a.log.Named("registry"))
			if err != nil {
				return fmt.Errorf("init device registry: %w", err)
			}
			sched := scheduler.NewScheduler(ctx, col, nil, nil, rec, a.log.Named("scheduler"))
			dispatcher, err := a.buildDispatcher(devices)
			if err != nil {
				return err
			}
			if dispatcher != nil {
				sched.Fanout = dispatcher
			}
			if tn := a.buildTelegram(); tn != nil {
				sched.Channel = tn
			}
			b, err := sched.BroadcastMood(ctx, "cli")
			if err != nil {
				return err
			}
			return printJSON(b)
		},
	}
	cmd.Flags().BoolVar(&broadcast, "broadcast", false, "Push the mood to every registered device and record the run")
	return cmd
}

func printJSON(v any) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
