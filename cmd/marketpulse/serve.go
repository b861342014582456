package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"MarketPulse/internal/registry"
	"MarketPulse/internal/scheduler"
	"MarketPulse/internal/server"
)

func newServeCmd(a *app) *cobra.Command {
	var runOnStart, noSchedule bool
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API, scheduled mood broadcasts and the Telegram bot",
		RunE: func(cmd *cobra.Command, args []string) error {
			if os.Getenv("RUN_ON_START") == "true" {
				runOnStart = true
			}
			return a.serve(runOnStart, noSchedule)
		},
	}
	cmd.Flags().BoolVar(&runOnStart, "run-on-start", false, "Broadcast the market mood once at startup (env RUN_ON_START=true)")
	cmd.Flags().BoolVar(&noSchedule, "no-schedule", false, "Disable the cron jobs")
	return cmd
}

func (a *app) serve(runOnStart, noSchedule bool) error {
	log := a.log
	log.Info("MarketPulse starting", zap.String("addr", a.cfg.Server.Addr))

	col, err := a.buildCollector()
	if err != nil {
		return err
	}
	rec := a.openRecorder()
	defer rec.Close()

	devices, err := registry.New(a.cfg.Notify.TokensFile, log.Named("registry"))
	if err != nil {
		return fmt.Errorf("init device registry: %w", err)
	}
	dispatcher, err := a.buildDispatcher(devices)
	if err != nil {
		return err
	}

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	sched := scheduler.NewScheduler(ctx, nil, nil, nil, rec, log.Named("scheduler"))
	if dispatcher != nil {
		sched.Fanout = dispatcher
	}
	tn := a.buildTelegram()
	if tn != nil {
		sched.Channel = tn
	}

	var pusher server.Pusher
	if dispatcher != nil {
		pusher = dispatcher
	}
	srv := server.New(col, moodBroadcaster(sched), pusher, devices, rec, server.Options{
		CacheTTL:    a.cfg.Cache.TTL,
		StaleTTL:    a.cfg.Cache.StaleTTL,
		CORSOrigins: a.cfg.Server.CORSOrigins,
		CronSecret:  a.cfg.Notify.CronSecret,
	}, log.Named("http"))

	// Jobs and chat commands read through the server's cache.
	sched.Source = srv
	sched.Warm = srv.Warm

	if !noSchedule {
		if err := sched.RegisterAll(a.cfg.Schedule.MoodCron, a.cfg.Schedule.WarmCron); err != nil {
			return fmt.Errorf("register cron tasks: %w", err)
		}
		sched.Start()
		defer sched.Stop()
	}

	if tn != nil {
		go tn.StartPolling(ctx, sched.HandleCommand)
		log.Info("telegram polling started")
	}

	if runOnStart {
		log.Info("RUN_ON_START enabled, broadcasting market mood now")
		go func() {
			if _, err := sched.BroadcastMood(ctx, "startup"); err != nil {
				log.Error("startup broadcast", zap.Error(err))
			}
		}()
	}

	httpSrv := &http.Server{
		Addr:              a.cfg.Server.Addr,
		Handler:           srv.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}
	errCh := make(chan error, 1)
	go func() {
		log.Info("http listening", zap.String("addr", httpSrv.Addr))
		if err := httpSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("http server: %w", err)
		}
	case <-ctx.Done():
		log.Info("shutdown signal received, stopping...")
	}

	shutdownCtx, done := context.WithTimeout(context.Background(), 15*time.Second)
	defer done()
	if err := httpSrv.Shutdown(shutdownCtx); err != nil {
		log.Warn("http shutdown", zap.Error(err))
	}
	log.Info("MarketPulse stopped")
	return nil
}
