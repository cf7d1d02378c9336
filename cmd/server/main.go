package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"reserva/internal/airtable"
	"reserva/internal/api"
	"reserva/internal/availability"
	"reserva/internal/booking"
	"reserva/internal/config"
	"reserva/internal/metrics"
	"reserva/internal/notify"
	"reserva/internal/store"
)

func main() {
	// Initialize logger
	output := zerolog.ConsoleWriter{Out: os.Stdout, TimeFormat: time.RFC3339}
	logger := zerolog.New(output).With().Timestamp().Logger()

	_ = godotenv.Load()

	cfg, err := config.Load(os.Getenv("RESERVA_CONFIG_PATH"))
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to load config")
	}
	if missing := cfg.MissingEnv(); len(missing) > 0 {
		// Core endpoints answer MISSING_ENV until this is fixed; the
		// process still starts so health checks and metrics work.
		logger.Warn().Strs("missing", missing).Msg("incomplete store configuration")
	}

	client := airtable.New(cfg.Airtable.Token, cfg.Airtable.BaseID)
	var rdb *redis.Client
	if cfg.Redis.Address != "" && cfg.Airtable.CacheTTLSeconds > 0 {
		rdb = redis.NewClient(&redis.Options{Addr: cfg.Redis.Address, Password: cfg.Redis.Password, DB: cfg.Redis.DB})
		client.UseRedisCache(rdb, cfg.CacheTTL())
	}

	st := store.New(client, store.Tables{
		Timeslots:   cfg.Airtable.TimeslotsTable,
		Services:    cfg.Airtable.ServicesTable,
		Bookings:    cfg.Airtable.BookingsTable,
		Restaurants: cfg.Airtable.RestaurantsTable,
	})

	outbox, err := booking.OpenOutbox(cfg.Outbox.Path)
	if err != nil {
		logger.Fatal().Err(err).Msg("open outbox error")
	}
	defer outbox.Close()

	var notifier booking.Notifier
	if cfg.Notify.TelegramToken != "" && cfg.Notify.TelegramChatID != 0 {
		tg, err := notify.NewTelegram(cfg.Notify.TelegramToken, cfg.Notify.TelegramChatID, &logger)
		if err != nil {
			logger.Error().Err(err).Msg("telegram notifier disabled")
		} else {
			notifier = tg
		}
	}

	booker := booking.New(st, outbox, notifier, booking.Options{
		RestaurantSlug:    cfg.Restaurant.Slug,
		ServiceMode:       cfg.Booking.ServiceMode,
		ServiceBucketHour: cfg.Booking.ServiceBucketHour,
	}, &logger)

	reader := availability.New(st, availability.Options{
		RestaurantSlug:    cfg.Restaurant.Slug,
		ServiceMode:       cfg.Booking.ServiceMode,
		ServiceBucketHour: cfg.Booking.ServiceBucketHour,
	}, &logger)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	reconciler := booking.NewReconciler(booker, outbox, cfg.OutboxStaleAfter(), &logger)
	go reconciler.Run(ctx, cfg.OutboxSweepInterval())

	go startHealthServer(ctx, cfg.Monitoring.HealthCheckPort, rdb, &logger)

	if cfg.Monitoring.PrometheusEnabled {
		if cfg.Monitoring.PrometheusPort == 0 {
			cfg.Monitoring.PrometheusPort = 9090
		}
		metrics.Register()
		go startMetricsServer(ctx, cfg.Monitoring.PrometheusPort, &logger)
	}

	apiServer := api.NewHTTPServer(cfg, booker, reader, st, &logger)
	srv := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:      apiServer.Handler(),
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 30 * time.Second,
	}

	go func() {
		<-ctx.Done()
		ctxShutdown, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = srv.Shutdown(ctxShutdown)
	}()

	logger.Info().Int("port", cfg.Server.Port).Str("restaurant", cfg.Restaurant.Slug).Msg("reservation server started")
	if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		logger.Fatal().Err(err).Msg("server error")
	}
}

func startHealthServer(ctx context.Context, port int, rdb *redis.Client, logger *zerolog.Logger) {
	mux := http.NewServeMux()
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})
	mux.HandleFunc("/readyz", func(w http.ResponseWriter, _ *http.Request) {
		if rdb != nil {
			ctxPing, cancel := context.WithTimeout(ctx, time.Second)
			defer cancel()
			if err := rdb.Ping(ctxPing).Err(); err != nil {
				http.Error(w, "redis not ready", http.StatusServiceUnavailable)
				return
			}
		}
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ready"))
	})

	srv := &http.Server{Addr: fmt.Sprintf(":%d", port), Handler: mux}
	go func() {
		<-ctx.Done()
		ctxShutdown, cancel := context.WithTimeout(context.Background(), 3*time.Second)
		defer cancel()
		_ = srv.Shutdown(ctxShutdown)
	}()
	if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		logger.Error().Err(err).Msg("health server error")
	}
}

func startMetricsServer(ctx context.Context, port int, logger *zerolog.Logger) {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())

	srv := &http.Server{Addr: fmt.Sprintf(":%d", port), Handler: mux}
	go func() {
		<-ctx.Done()
		ctxShutdown, cancel := context.WithTimeout(context.Background(), 3*time.Second)
		defer cancel()
		_ = srv.Shutdown(ctxShutdown)
	}()
	if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		logger.Error().Err(err).Msg("metrics server error")
	}
}
