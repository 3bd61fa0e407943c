package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"

	"github.com/mwendwa/event-manager-go/assets"
	"github.com/mwendwa/event-manager-go/config"
	"github.com/mwendwa/event-manager-go/integrity"
	"github.com/mwendwa/event-manager-go/mailer"
	"github.com/mwendwa/event-manager-go/metrics"
	"github.com/mwendwa/event-manager-go/middleware"
	"github.com/mwendwa/event-manager-go/rabbit"
	"github.com/mwendwa/event-manager-go/routes"
	"github.com/mwendwa/event-manager-go/storage"
	"github.com/mwendwa/event-manager-go/workers"
)

func main() {
	cfg := config.Load()

	level, err := zerolog.ParseLevel(cfg.LogLevel)
	if err != nil {
		level = zerolog.InfoLevel
	}
	log := zerolog.New(os.Stdout).Level(level).With().Timestamp().Logger()

	ctx := context.Background()
	client, err := config.ConnectMongo(ctx, cfg)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to connect to MongoDB")
	}
	defer func() {
		if err := client.Disconnect(context.Background()); err != nil {
			log.Error().Err(err).Msg("mongo disconnect failed")
		}
	}()
	log.Info().Str("db", cfg.DBName).Msg("database connected")

	store := storage.NewMongo(client.Database(cfg.DBName))
	refs := integrity.NewValidator(store)
	assetStore := assets.NewStore(store, store, refs, cfg.ChunkSize, &log)
	m := metrics.New()

	workerCtx, cancelWorkers := context.WithCancel(context.Background())
	defer cancelWorkers()

	// Notifications run only when a broker is configured.
	var pub rabbit.Publisher
	var notifier *workers.Notifier
	if cfg.AMQPURL != "" {
		rmq, err := rabbit.New(cfg.AMQPURL, cfg.AMQPExchange, cfg.AMQPQueue, &log)
		if err != nil {
			log.Fatal().Err(err).Msg("failed to connect to RabbitMQ")
		}
		defer rmq.Close()
		pub = rmq

		mail := mailer.New(cfg.EmailAPIURL, cfg.EmailAPIKey, cfg.EmailFrom, &log)
		notifier = workers.NewNotifier(rmq, store, mail, &log)
		notifier.Start(workerCtx)
	}

	sweeper := workers.NewSweeper(store, assetStore, m, cfg.SweepInterval, cfg.SweepGrace, &log)
	go sweeper.Start(workerCtx)

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(middleware.RequestLogger(&log))
	r.Use(middleware.Metrics(m))

	corsCfg := cors.DefaultConfig()
	if len(cfg.CORSOrigins) == 1 && cfg.CORSOrigins[0] == "*" {
		corsCfg.AllowAllOrigins = true
	} else {
		corsCfg.AllowOrigins = cfg.CORSOrigins
	}
	corsCfg.AllowHeaders = append(corsCfg.AllowHeaders, "If-None-Match", "X-Request-ID")
	corsCfg.ExposeHeaders = []string{"ETag", "Last-Modified", "X-Request-ID"}
	r.Use(cors.New(corsCfg))

	routes.SetupRoutes(r, routes.Deps{
		Repo:           store,
		Refs:           refs,
		Assets:         assetStore,
		Publisher:      pub,
		Metrics:        m,
		MetricsHandler: promhttp.Handler(),
		Log:            &log,
	})

	srv := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      r,
		ReadTimeout:  60 * time.Second,
		WriteTimeout: 60 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	serverErr := make(chan error, 1)
	go func() {
		log.Info().Str("port", cfg.Port).Msg("starting server")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErr <- err
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	select {
	case sig := <-quit:
		log.Info().Str("signal", sig.String()).Msg("shutting down")
	case err := <-serverErr:
		log.Error().Err(err).Msg("server error")
	}

	cancelWorkers()
	sweeper.Stop()
	if notifier != nil {
		notifier.Stop()
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("graceful shutdown failed")
	}
	log.Info().Msg("server stopped")
}
