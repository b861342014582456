package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"MarketPulse/internal/config"
	"MarketPulse/internal/logging"
)

// app carries what every subcommand needs once flags are parsed.
type app struct {
	cfg *config.Config
	log *zap.Logger
}

func newRootCmd() *cobra.Command {
	a := &app{}
	var cfgPath, envFile, logLevel string

	rootCmd := &cobra.Command{
		Use:   "marketpulse",
		Short: "MarketPulse - market mood dashboard backend",
		Long: `MarketPulse reads the LASA market spreadsheets, computes market mood,
index strength and screening candidates, serves them over HTTP and pushes
a periodic market mood notification to subscribed devices.`,
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if v := os.Getenv("CONFIG_PATH"); v != "" && !cmd.Flags().Changed("config") {
				cfgPath = v
			}
			cfg, err := config.Load(cfgPath, envFile)
			if err != nil {
				return fmt.Errorf("load config: %w", err)
			}
			if logLevel != "" {
				cfg.Log.Level = logLevel
			}
			if err := cfg.Validate(); err != nil {
				return err
			}
			log, err := logging.NewLogger(cfg.Log.Level, cfg.Log.Format)
			if err != nil {
				return err
			}
			a.cfg, a.log = cfg, log
			return nil
		},
		PersistentPostRun: func(cmd *cobra.Command, args []string) {
			if a.log != nil {
				_ = a.log.Sync()
			}
		},
	}

	rootCmd.PersistentFlags().StringVar(&cfgPath, "config", "configs/config.yaml", "Configuration file path (env CONFIG_PATH)")
	rootCmd.PersistentFlags().StringVar(&envFile, "env-file", ".env", "dotenv file loaded before the environment overrides")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "Override log level (debug, info, warn, error)")

	rootCmd.AddCommand(newServeCmd(a))
	rootCmd.AddCommand(newMoodCmd(a))
	rootCmd.AddCommand(newScreenCmd(a))
	rootCmd.AddCommand(newExportCmd(a))
	return rootCmd
}
