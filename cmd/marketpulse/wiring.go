package main

import (
	"fmt"
	"os"

	"go.uber.org/zap"

	"MarketPulse/internal/collector"
	"MarketPulse/internal/notifier"
	"MarketPulse/internal/recorder"
	"MarketPulse/internal/registry"
	"MarketPulse/internal/scheduler"
	"MarketPulse/internal/server"
)

func (a *app) collectorOptions() collector.Options {
	c := a.cfg
	opts := collector.DefaultOptions(c.Sheets.MasterID, c.Sheets.SwingID)
	opts.Tabs.Master.Range = c.Sheets.MasterRange
	opts.Tabs.Current.Range = c.Sheets.CurrentRange
	opts.Tabs.Swing.Range = c.Sheets.SwingRange
	opts.Universe = c.Analysis.Universe
	opts.MoodGroups = c.Analysis.MoodGroups
	opts.HistoryGroups = c.Analysis.HistoryGroups
	opts.HistoryDays = c.Analysis.HistoryDays
	opts.StrengthPoints = c.Analysis.StrengthPoints
	opts.MoversLimit = c.Analysis.MoversLimit
	opts.Indices = c.Analysis.Indices
	opts.Rules = c.Analysis.Rules
	opts.Fields = *c.Analysis.Fields
	opts.Fallbacks = c.Sheets.LegacyFallbacks
	return opts
}

func (a *app) buildCollector() (*collector.Collector, error) {
	creds, err := a.cfg.SheetsCredentials()
	if err != nil {
		return nil, err
	}
	if creds == nil {
		a.log.Warn("no Google service account configured, sheets requests are unauthenticated")
	}
	sheets, err := collector.NewSheetsSource(collector.SheetsOptions{
		BaseURL:           a.cfg.Sheets.BaseURL,
		Credentials:       creds,
		RequestsPerMinute: a.cfg.Sheets.RequestsPerMinute,
		Timeout:           a.cfg.Sheets.FetchTimeout,
		ProxyURL:          a.cfg.Proxy,
	}, a.log.Named("sheets"))
	if err != nil {
		return nil, fmt.Errorf("init sheets source: %w", err)
	}

	var screen collector.RowSource = sheets
	if path := a.cfg.Sheets.WorkbookPath; path != "" {
		if _, err := os.Stat(path); err == nil {
			a.log.Info("screening from local workbook first", zap.String("path", path))
		}
		screen = &collector.ChainSource{
			Sources: []collector.RowSource{collector.NewWorkbookSource(path), sheets},
			Log:     a.log.Named("chain"),
		}
	}
	return collector.NewCollector(sheets, screen, a.collectorOptions(), a.log.Named("collector")), nil
}

func (a *app) openRecorder() recorder.Recorder {
	if a.cfg.Database.SQLitePath == "" {
		return recorder.NewNoopRecorder()
	}
	sr, err := recorder.NewSQLiteRecorder(a.cfg.Database.SQLitePath, a.log.Named("recorder"))
	if err != nil {
		a.log.Warn("init sqlite recorder failed, using noop", zap.Error(err))
		return recorder.NewNoopRecorder()
	}
	return sr
}

// buildDispatcher wires FCM delivery to the device registry. It returns nil
// when Firebase is not configured.
func (a *app) buildDispatcher(devices *registry.Registry) (*notifier.Dispatcher, error) {
	creds, err := a.cfg.FirebaseCredentials()
	if err != nil {
		return nil, err
	}
	if creds == nil && a.cfg.Notify.FCMBaseURL == "" {
		a.log.Warn("no Firebase service account configured, push notifications disabled")
		return nil, nil
	}
	sender, err := notifier.NewFCMSender(notifier.FCMOptions{
		BaseURL:     a.cfg.Notify.FCMBaseURL,
		ProjectID:   a.cfg.Notify.ProjectID,
		Credentials: creds,
		ProxyURL:    a.cfg.Proxy,
	}, a.log.Named("fcm"))
	if err != nil {
		return nil, fmt.Errorf("init fcm sender: %w", err)
	}
	return notifier.NewDispatcher(sender, devices, notifier.DispatchOptions{
		SendsPerSecond: a.cfg.Notify.SendsPerSecond,
	}, a.log.Named("dispatch")), nil
}

func (a *app) buildTelegram() *notifier.TelegramNotifier {
	if a.cfg.Telegram.BotToken == "" {
		return nil
	}
	return notifier.NewTelegramNotifier(a.cfg.Telegram.BotToken, a.cfg.Telegram.ChatID,
		a.cfg.Proxy, a.cfg.Telegram.BaseURL, a.log.Named("telegram"))
}

// moodBroadcaster exposes the scheduler as the HTTP broadcast trigger only
// when push delivery is configured, so the endpoint answers 503 otherwise.
func moodBroadcaster(sched *scheduler.Scheduler) server.Broadcaster {
	if sched == nil || sched.Fanout == nil {
		return nil
	}
	return sched
}
