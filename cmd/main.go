package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"audittrail/internal/api"
	"audittrail/internal/bot"
	"audittrail/internal/config"
	"audittrail/internal/database"
	"audittrail/internal/importer"
	"audittrail/internal/scheduler"
	"audittrail/internal/summarizer"
	"audittrail/internal/versions"
)

func main() {
	log := slog.New(slog.NewJSONHandler(os.Stdout, nil))
	slog.SetDefault(log)

	start := time.Now()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	cfg := config.LoadConfig()

	db, err := database.New(ctx, cfg.DBPath, log)
	if err != nil {
		log.ErrorContext(ctx, "Failed to initialize db",
			"error", err,
			"dbPath", cfg.DBPath)

		return
	}
	defer func() {
		if err = db.Close(); err != nil {
			log.ErrorContext(ctx, "Failed to close db",
				"error", err,
				"dbPath", cfg.DBPath)
		}
	}()
	log.InfoContext(ctx, "DB is initialized",
		"dbPath", cfg.DBPath)

	imp, err := importer.New(log)
	if err != nil {
		log.ErrorContext(ctx, "Failed to initialize importer",
			"error", err)

		return
	}

	svc := versions.New(db, initOpenAISummarizer(ctx, cfg.OpenAIAPIKey, log), imp, versions.Options{
		CacheSize: cfg.DiffCacheSize,
		CacheTTL:  cfg.DiffCacheTTL,
	}, log)

	server := api.New(svc, api.Options{
		Addr:           cfg.HTTPAddr,
		CORSOrigin:     cfg.CORSOrigin,
		RequestTimeout: cfg.RequestTimeout,
	}, log)

	serveErr, err := server.Start(ctx)
	if err != nil {
		log.ErrorContext(ctx, "Failed to start HTTP server",
			"error", err,
			"addr", cfg.HTTPAddr)

		return
	}

	var (
		botInst *bot.Bot
		digest  scheduler.DigestSender
	)

	if cfg.BotEnabled() {
		botInst, err = bot.New(cfg.Token, svc, db, imp, cfg.AllowedUsers, log)
		if err != nil {
			log.ErrorContext(ctx, "Failed to initialize bot",
				"error", err,
				"allowedUsersCount", len(cfg.AllowedUsers))

			return
		}
		digest = botInst

		log.InfoContext(ctx, "Bot is initialized",
			"allowedUsersCount", len(cfg.AllowedUsers))
	} else {
		log.WarnContext(ctx, "TOKEN is missing so bot and digests are disabled",
			"envVar", "TOKEN")
	}

	sched := scheduler.New(ctx, svc, db, digest, cfg.SourceRefreshSpec, log)

	if err = sched.Start(); err != nil {
		log.ErrorContext(ctx, "Failed to start scheduler",
			"error", err,
			"refreshSpec", cfg.SourceRefreshSpec,
			"digestSpec", scheduler.HourlyDigestSpec,
			"timezone", time.FixedZone(scheduler.Timezone, scheduler.TimezoneOffsetSeconds).String())

		return
	}
	defer sched.Stop()
	log.InfoContext(ctx, "Scheduler is started",
		"refreshSpec", cfg.SourceRefreshSpec,
		"digestSpec", scheduler.HourlyDigestSpec,
		"timezone", time.FixedZone(scheduler.Timezone, scheduler.TimezoneOffsetSeconds).String())

	if botInst != nil {
		go func() {
			botInst.Start(ctx)
		}()
		log.InfoContext(ctx, "Bot is started",
			"updateTimeoutSeconds", bot.BotUpdateTimeout)
	}

	c := make(chan os.Signal, 1)
	signal.Notify(c, os.Interrupt, syscall.SIGTERM)

	select {
	case sig := <-c:
		log.InfoContext(ctx, "Shutdown signal is received",
			"signal", sig.String())
	case err = <-serveErr:
		log.ErrorContext(ctx, "HTTP server is stopped",
			"error", err)
	}
	cancel()

	log.InfoContext(ctx, "Exiting...",
		"uptimeSeconds", time.Since(start).Seconds())

	if err = server.Stop(context.Background()); err != nil {
		log.ErrorContext(ctx, "Failed to stop HTTP server",
			"error", err)
	}

	if botInst != nil {
		botInst.Stop()
		log.InfoContext(ctx, "Bot is stopped",
			"uptimeSeconds", time.Since(start).Seconds())
	}
}

func initOpenAISummarizer(ctx context.Context, apiKey string, log *slog.Logger) summarizer.Summarizer {
	if apiKey == "" {
		log.WarnContext(ctx, "OPENAI_API_KEY is missing so fallback will be used",
			"envVar", "OPENAI_API_KEY")

		return nil
	}

	s, err := summarizer.NewOpenAISummarizer(apiKey)
	if err != nil {
		log.ErrorContext(ctx, "Failed to create OpenAI summarizer so fallback will be used",
			"error", err,
			"envVar", "OPENAI_API_KEY")

		return nil
	}

	log.InfoContext(ctx, "OpenAI summarizer is initialized",
		"provider", "openai")

	return s
}
