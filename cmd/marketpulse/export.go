package main

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"MarketPulse/internal/archive"
	"MarketPulse/internal/recorder"
)

func newExportCmd(a *app) *cobra.Command {
	var dir string
	var moodLimit int
	cmd := &cobra.Command{
		Use:   "export",
		Short: "Archive the stock history and mood history as Parquet files",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			if ctx == nil {
				ctx = context.Background()
			}
			if dir == "" {
				dir = a.cfg.Archive.Dir
			}
			col, err := a.buildCollector()
			if err != nil {
				return err
			}
			dash, err := col.Dashboard(ctx)
			if err != nil {
				return fmt.Errorf("load dashboard: %w", err)
			}
			now := time.Now()

			hp := archive.HistoryPath(dir, now)
			n, err := archive.WriteHistory(hp, dash.StockData)
			if err != nil {
				return err
			}
			a.log.Info("history archived", zap.String("path", hp), zap.Int("rows", n))

			rec := a.openRecorder()
			defer rec.Close()
			moods, err := rec.ListMoods(moodLimit)
			if err != nil {
				return fmt.Errorf("list moods: %w", err)
			}
			if len(moods) == 0 {
				a.log.Info("no recorded moods to archive")
				return nil
			}
			mp := archive.MoodPath(dir, now)
			m, err := archive.WriteMoods(mp, moods)
			if err != nil {
				return err
			}
			a.log.Info("mood history archived", zap.String("path", mp), zap.Int("rows", m))
			return nil
		},
	}
	cmd.Flags().StringVar(&dir, "dir", "", "Archive directory (default archive.dir from the config)")
	cmd.Flags().IntVar(&moodLimit, "moods", recorder.DefaultListLimit, "Number of recent mood snapshots to archive")
	return cmd
}
