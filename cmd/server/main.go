package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog/log"

	"parkingapi/internal/api"
	"parkingapi/internal/auth"
	"parkingapi/internal/config"
	"parkingapi/internal/db"
	"parkingapi/internal/events"
	"parkingapi/internal/logger"
	"parkingapi/internal/repository"
	"parkingapi/internal/service"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("config_load_failed")
	}
	logger.Init(cfg.LogLevel, cfg.LogFormat)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	conn, err := db.Open(ctx, cfg.DatabaseURL)
	if err != nil {
		log.Fatal().Err(err).Msg("db_open_failed")
	}
	defer conn.Close()

	if !cfg.MigrationsOff {
		if err := db.RunMigrations(ctx, conn); err != nil {
			log.Fatal().Err(err).Msg("db_migrations_failed")
		}
	}

	store := repository.NewStore(conn)
	tokens := auth.NewTokenManager(cfg.JWTSecret, cfg.JWTTTL)
	hub := events.NewHub(cfg.CORSOrigins...)

	var mailer service.EmailSender
	if cfg.EmailEnabled() {
		mailer = service.NewMailer(cfg.SendGridAPIKey, cfg.SendGridFromEmail, cfg.SendGridFromName)
	}
	var sms service.TextSender
	if cfg.SMSEnabled() {
		sms = service.NewSMSSender(cfg.TwilioAccountSID, cfg.TwilioAuthToken, cfg.TwilioFromNumber)
	}
	sender := service.NewSenderService(mailer, sms, cfg.NotifyTimezone)
	defer sender.Wait()

	hooks := []service.BookingHook{hub, sender}
	if cfg.EventsEnabled() {
		publisher, err := events.NewAMQPPublisher(cfg.RabbitURL, cfg.BookingExchange)
		if err != nil {
			log.Fatal().Err(err).Msg("rabbitmq_connect_failed")
		}
		defer publisher.Close()
		hooks = append(hooks, publisher)
		log.Info().Str("exchange", cfg.BookingExchange).Msg("booking_events_enabled")
	}

	var checkout service.CheckoutProvider
	if cfg.StripeEnabled() {
		checkout = service.NewStripeService(cfg.StripeSecretKey, cfg.StripeSuccessURL, cfg.StripeCancelURL)
	}

	bookings := service.NewBookingCoordinator(service.NewSQLBookingStore(store), hooks...)
	jobs := service.NewJobService(store, bookings)

	scheduler := cron.New()
	if _, err := scheduler.AddFunc(cfg.CompletionSchedule, jobs.Run); err != nil {
		log.Fatal().Err(err).Str("schedule", cfg.CompletionSchedule).Msg("cron_schedule_invalid")
	}
	scheduler.Start()

	router := api.NewRouter(api.RouterDeps{
		Tokens:              tokens,
		Auth:                service.NewAuthService(store, tokens),
		Spaces:              service.NewSpaceService(store, hub),
		Vehicles:            service.NewVehicleService(store),
		Bookings:            bookings,
		Payments:            service.NewPaymentService(store, checkout),
		Admin:               service.NewAdminService(store, store),
		Hub:                 hub,
		DB:                  conn,
		StripeWebhookSecret: cfg.StripeWebhookSecret,
		CORSOrigins:         cfg.CORSOrigins,
	})

	srv := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      router,
		ReadTimeout:  cfg.ReadTimeout,
		WriteTimeout: cfg.WriteTimeout,
	}

	go func() {
		log.Info().Str("port", cfg.Port).Msg("server_started")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal().Err(err).Msg("server_failed")
		}
	}()

	<-ctx.Done()
	log.Info().Msg("server_shutting_down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("server_shutdown_failed")
	}
	<-scheduler.Stop().Done()
	log.Info().Msg("server_stopped")
}
