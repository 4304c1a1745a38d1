package main

import (
	"context"
	"database/sql"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	_ "github.com/go-sql-driver/mysql"
	"github.com/rs/zerolog/log"

	server "resortadmin/internal/adapters/http_server"
	"resortadmin/internal/adapters/observability"
	redisad "resortadmin/internal/adapters/redis"
	"resortadmin/internal/adapters/telegram"
	"resortadmin/internal/app"
	"resortadmin/internal/domain"
	"resortadmin/internal/scheduler"
	"resortadmin/internal/shared"
	mysqlrepo "resortadmin/internal/storage/mysql"
)

func main() {
	cfg := shared.Load()

	// set global logger (console in dev, JSON otherwise)
	log.Logger = observability.NewLogger(cfg.AppEnv)

	observability.Serve()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// db
	db, err := sql.Open("mysql", cfg.MySQLDSN)
	if err != nil {
		log.Fatal().Err(err).Msg("sql.Open failed")
	}
	if err := db.Ping(); err != nil {
		log.Fatal().Err(err).Msg("db.Ping failed")
	}
	if err := mysqlrepo.Migrate(db); err != nil {
		log.Fatal().Err(err).Msg("migrations failed")
	}
	log.Info().Msg("database ready")

	// deps
	repo := mysqlrepo.New(db)
	cache := redisad.New(cfg.RedisAddr, cfg.RedisPass, cfg.RedisDB)

	// typed nil must not leak into the Notifier interface
	var notifier domain.Notifier
	var tgNotifier *telegram.Notifier
	if cfg.BotToken != "" && cfg.AdminChatID != 0 {
		tgNotifier, err = telegram.New(cfg.BotToken, cfg.AdminChatID)
		if err != nil {
			log.Fatal().Err(err).Msg("telegram notifier failed")
		}
		notifier = tgNotifier
	}

	auth := app.NewAuthService(repo, cfg.BotToken, cfg.JWTSecret, cfg.TokenTTL)
	analytics := app.NewAnalyticsService(repo, repo, repo, cache, cfg.CacheTTL)
	handlers := &server.Handlers{
		Auth:      auth,
		Rooms:     app.NewRoomService(repo, cache, cfg.CacheTTL),
		Analytics: analytics,
		Export:    app.NewExportService(repo, repo, repo, analytics),
		Users:     app.NewUserService(repo, repo),
		History:   app.NewHistoryService(repo),
	}
	handlers.Bookings = app.NewBookingService(repo, repo, repo, notifier, cache, cfg.TxRetries)

	// daily report
	if notifier != nil && cfg.ReportHour >= 0 {
		loc, err := time.LoadLocation(cfg.Timezone)
		if err != nil {
			log.Warn().Err(err).Str("tz", cfg.Timezone).Msg("bad timezone, using UTC")
			loc = time.UTC
		}
		sched := scheduler.New(analytics, notifier, loc, cfg.ReportHour)
		go func() {
			if err := sched.Start(ctx); err != nil {
				log.Error().Err(err).Msg("scheduler failed")
			}
		}()
		defer sched.Stop()
	}

	// http
	srv := server.New()
	reg := observability.InitRegistry()
	srv.Mount("/metrics", observability.MetricsHandler(reg))
	srv.MountHandlers(handlers)

	log.Info().Str("addr", cfg.HTTPAddr).Msg("API listening")
	httpSrv := &http.Server{Addr: cfg.HTTPAddr, Handler: srv.Mux()}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		_ = httpSrv.Shutdown(shutdownCtx)
	}()

	if err := httpSrv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		log.Fatal().Err(err).Msg("http server failed")
	}
}
