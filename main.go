package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"
	"golang.org/x/time/rate"

	"hotel-reservation/config"
	"hotel-reservation/controllers"
	"hotel-reservation/events"
	"hotel-reservation/logging"
	"hotel-reservation/ratelimit"
	"hotel-reservation/routes"
	"hotel-reservation/services"
)

func main() {
	// Load .env (optional)
	envErr := godotenv.Load()

	settings, err := config.LoadSettings()
	if err != nil {
		logging.Configure(logging.Config{})
		l := logging.Base()
		l.Fatal().Err(err).Msg("invalid configuration")
	}
	logging.Configure(logging.Config{Level: settings.LogLevel, Pretty: settings.LogPretty})
	log := logging.WithComponent("main")
	if envErr != nil {
		log.Debug().Msg(".env not found, using environment variables only")
	}
	if settings.LogLevel != "debug" {
		gin.SetMode(gin.ReleaseMode)
	}

	loc, _ := settings.Location()

	db, err := config.ConnectDatabase(settings)
	if err != nil {
		log.Fatal().Err(err).Str("driver", settings.DBDriver).Msg("database connect failed")
	}
	log.Info().Str("driver", settings.DBDriver).Msg("database ready")

	// Cancel attempts are shared across instances through Redis when available.
	var limiter ratelimit.Limiter
	if rdb := config.NewRedisClient(settings); rdb != nil {
		defer rdb.Close()
		limiter = ratelimit.NewRedisLimiter(rdb)
		log.Info().Str("addr", settings.RedisAddr).Msg("rate limiter backed by redis")
	} else {
		if settings.RedisAddr != "" {
			log.Warn().Str("addr", settings.RedisAddr).Msg("redis unreachable, rate limiter kept in memory")
		}
		limiter = ratelimit.NewMemoryLimiter()
	}

	var publisher events.Publisher = events.NopPublisher{}
	if settings.RabbitMQURL != "" {
		p, err := events.NewAMQPPublisher(settings.RabbitMQURL, settings.EventsQueue, logging.WithComponent("events"))
		if err != nil {
			log.Warn().Err(err).Msg("rabbitmq unavailable, events disabled")
		} else {
			publisher = p
			log.Info().Str("queue", settings.EventsQueue).Msg("publishing events to rabbitmq")
		}
	}
	defer publisher.Close()

	opts := []services.Option{services.WithPublisher(publisher), services.WithLocation(loc)}

	// Initialize services
	reservationService := services.NewReservationService(db, limiter, services.CancellationPolicy{
		MaxAttempts: settings.CancelMaxAttempts,
		Window:      settings.CancelWindow,
		Cutoff:      settings.CancelCutoff,
	}, opts...)
	roomService := services.NewRoomService(db, opts...)
	paymentService := services.NewPaymentService(db, opts...)
	sweeper := services.NewSweeper(db, settings.SweepInterval, opts...)

	// Build router
	router := routes.SetupRouter(routes.Deps{
		Reservations: controllers.NewReservationController(reservationService, loc),
		Rooms:        controllers.NewRoomController(roomService),
		CashReceipts: controllers.NewCashReceiptsController(paymentService),
		JWTSecret:    settings.JWTSecret,
		CorsOrigins:  settings.CorsOriginList(),
		Throttle: ratelimit.NewThrottle(ratelimit.ThrottleConfig{
			Rate:  rate.Limit(settings.ThrottleRPS),
			Burst: settings.ThrottleBurst,
		}),
	})

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	sweepDone := make(chan struct{})
	go func() {
		defer close(sweepDone)
		sweeper.Run(ctx)
	}()

	addr := ":" + settings.Port
	srv := &http.Server{
		Addr:              addr,
		Handler:           router,
		ReadTimeout:       10 * time.Second,
		ReadHeaderTimeout: 5 * time.Second,
		WriteTimeout:      20 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	go func() {
		log.Info().Str("addr", addr).Msg("server starting")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal().Err(err).Msg("listen failed")
		}
	}()

	<-ctx.Done()
	log.Info().Msg("shutdown signal received")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("server forced to shutdown")
	}
	<-sweepDone

	if sqlDB, err := db.DB(); err == nil {
		_ = sqlDB.Close()
	}
	log.Info().Msg("server stopped gracefully")
}
