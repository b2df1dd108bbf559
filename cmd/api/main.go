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

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"golang.org/x/crypto/bcrypt"
	"golang.org/x/time/rate"

	"github.com/jwalitptl/queue-api/internal/config"
	"github.com/jwalitptl/queue-api/internal/email"
	doctorhandler "github.com/jwalitptl/queue-api/internal/handler/doctor"
	"github.com/jwalitptl/queue-api/internal/handler/health"
	patienthandler "github.com/jwalitptl/queue-api/internal/handler/patient"
	"github.com/jwalitptl/queue-api/internal/middleware"
	"github.com/jwalitptl/queue-api/internal/repository/postgres"
	"github.com/jwalitptl/queue-api/internal/router"
	"github.com/jwalitptl/queue-api/internal/service/doctor"
	"github.com/jwalitptl/queue-api/internal/service/notification"
	"github.com/jwalitptl/queue-api/internal/service/patient"
	"github.com/jwalitptl/queue-api/internal/sms"
	"github.com/jwalitptl/queue-api/internal/worker"
	"github.com/jwalitptl/queue-api/pkg/logger"
	"github.com/jwalitptl/queue-api/pkg/messaging"
	"github.com/jwalitptl/queue-api/pkg/messaging/redis"
	"github.com/jwalitptl/queue-api/pkg/metrics"
	"github.com/jwalitptl/queue-api/pkg/security"
)

func main() {
	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatal().Err(err).Msg("failed to load configuration")
	}

	appLog := logger.NewLogger(&logger.Config{
		Level:      logger.ParseLevel(cfg.Log.Level),
		TimeFormat: time.RFC3339,
		JSON:       cfg.Log.JSON,
	})
	log.Logger = *appLog.Zerolog()
	zerolog.SetGlobalLevel(logger.ParseLevel(cfg.Log.Level))

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	db, err := postgres.NewDB(cfg.Database)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to connect to database")
	}
	defer db.Close()

	m := metrics.New("queue_api")

	doctorRepo := postgres.NewDoctorRepository(db)
	patientRepo := postgres.NewPatientRepository(db)

	checks := []health.Check{{Name: "database", Pinger: db}}
	var publisher messaging.Publisher = messaging.NoopPublisher{}
	if cfg.Redis.Enabled {
		broker, err := redis.NewRedisBroker(ctx, redis.Config{
			URL:          cfg.Redis.URL,
			MaxRetries:   cfg.Redis.MaxRetries,
			RetryBackoff: cfg.Redis.RetryBackoff,
			PoolSize:     cfg.Redis.PoolSize,
			MinIdleConns: cfg.Redis.MinIdleConns,
		}, appLog, m)
		if err != nil {
			log.Fatal().Err(err).Msg("failed to connect to Redis")
		}
		defer broker.Close()

		publisher = messaging.NewEventPublisher(broker, appLog, m)
		checks = append(checks, health.Check{Name: "redis", Pinger: broker})

		for _, topic := range []string{messaging.TopicPatientsImported, messaging.TopicPatientsNotified} {
			topic := topic
			if err := messaging.Listen(ctx, broker, topic, appLog, func(msg messaging.Message) error {
				appLog.Info("event received", "topic", topic, "type", msg.Type, "occurred_at", msg.OccurredAt)
				return nil
			}); err != nil {
				log.Fatal().Err(err).Str("topic", topic).Msg("failed to subscribe")
			}
		}
	}

	var dispatcher sms.Dispatcher
	switch cfg.SMS.Provider {
	case sms.ProviderGateway:
		dispatcher = sms.NewGatewayDispatcher(cfg.SMS, &http.Client{Timeout: cfg.SMS.Timeout}, appLog, m)
	default:
		dispatcher = sms.NewLogDispatcher(appLog, m)
	}

	mailer := email.NewLogService(appLog)
	if cfg.SMTP.Enabled {
		mailer = email.NewSMTPService(cfg.SMTP, appLog)
	}

	tokens := security.NewTokenManager(cfg.JWT.Secret, cfg.JWT.Expiry())
	directory := doctor.NewCachedDirectory(doctorRepo, time.Minute)
	doctorSvc := doctor.NewService(doctorRepo, security.NewBcryptHasher(bcrypt.DefaultCost), tokens, mailer, directory, appLog)
	patientSvc := patient.NewService(patientRepo, directory, mailer, publisher, doctorSvc, m, appLog)
	notifier := notification.NewService(patientRepo, dispatcher, doctorRepo, doctorSvc, publisher, appLog)

	if err := doctorSvc.EnsureDefaultAdmin(ctx, cfg.Admin); err != nil {
		log.Fatal().Err(err).Msg("failed to provision administrator")
	}

	if err := middleware.RegisterValidators(); err != nil {
		log.Fatal().Err(err).Msg("failed to register validators")
	}

	uploadDir := cfg.Import.UploadDir
	if err := os.MkdirAll(uploadDir, 0o700); err != nil {
		log.Fatal().Err(err).Str("dir", uploadDir).Msg("failed to create upload directory")
	}

	sweeper, err := worker.NewUploadSweeper(worker.UploadSweeperConfig{
		Dir:      uploadDir,
		Interval: cfg.Import.SweepInterval,
		MaxAge:   cfg.Import.StaleAfter,
	}, appLog)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to create upload sweeper")
	}
	go sweeper.Start(ctx)

	sizeLimit := middleware.DefaultSizeLimitConfig()
	sizeLimit.MaxUploadSize = cfg.Import.MaxUploadBytes

	gin.SetMode(gin.ReleaseMode)
	r := router.NewRouter(
		middleware.NewAuthMiddleware(tokens, directory),
		doctorhandler.NewHandler(doctorSvc),
		patienthandler.NewHandler(patientSvc, notifier, patienthandler.UploadConfig{
			MaxBytes: cfg.Import.MaxUploadBytes,
			Dir:      uploadDir,
		}, appLog),
		health.NewHandler(m.Handler(), checks...),
		router.RouterConfig{
			RateLimitEnabled: cfg.RateLimit.Enabled,
			RateLimit:        rate.Limit(cfg.RateLimit.RequestsPerSecond),
			RateBurst:        cfg.RateLimit.Burst,
			CORSConfig:       middleware.DefaultCORSConfig(cfg.Server.AllowedOrigins),
			SizeLimit:        sizeLimit,
			Timeout:          time.Duration(cfg.Server.TimeoutSeconds) * time.Second,
			Registerer:       m.Registry,
			MetricsPrefix:    "queue_api",
			Logger:           appLog,
		},
	)
	r.Setup()

	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:           r.Engine(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		log.Info().Int("port", cfg.Server.Port).Msg("starting server")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal().Err(err).Msg("failed to start server")
		}
	}()

	<-ctx.Done()
	log.Info().Msg("shutting down server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("server forced to shutdown")
	}

	log.Info().Msg("server exited properly")
}
