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

	"crosspost/domain/repository"
	"crosspost/infrastructure/cache"
	"crosspost/infrastructure/configuration"
	"crosspost/infrastructure/logger"
	"crosspost/infrastructure/media"
	"crosspost/infrastructure/persistence"
	"crosspost/infrastructure/platform"
	"crosspost/infrastructure/pubsub"
	"crosspost/infrastructure/realtime"
	"crosspost/infrastructure/servicebus"
	httpHandler "crosspost/interfaces/http"
	"crosspost/interfaces/middleware"
	"crosspost/server"
	"crosspost/usecase"

	"github.com/gin-gonic/gin"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the HTTP API",
	RunE:  runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)
}

func runServe(cmd *cobra.Command, _ []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	if os.Getenv("ENV") == "production" || os.Getenv("ENV") == "prod" {
		gin.SetMode(gin.ReleaseMode)
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	store, closeStore, err := persistence.OpenCredentialStore(cfg.Database)
	if err != nil {
		return fmt.Errorf("credential store: %w", err)
	}
	defer func() { _ = closeStore() }()
	logger.GetLogger().WithField("vendor", cfg.Database.Vendor).Info("Database connected.")
	if cfg.Publish.EmptyOnStoreFailure {
		store = persistence.NewFallbackCredentialStore(store)
	}

	mediaStore, err := media.NewOsStore(cfg.Media.Dir, cfg.Media.MaxSizeMB)
	if err != nil {
		return err
	}

	registry := platform.NewRegistryFromConfig(cfg, platform.DefaultHTTPClient())
	lifecycle := usecase.NewCredentialLifecycle(store, registry, usecase.WithSaveTimeout(cfg.Publish.StoreTimeout))

	hub := realtime.NewPublishHub()
	notifiers := []repository.IReportNotifier{hub}
	var reportUsecase usecase.IReportUsecase

	if mongoClient, err := persistence.NewMongoDb(ctx, cfg.Database.Mongo); err != nil {
		logger.GetLogger().WithField("error", err).Warn("MongoDB not available - continuing without report history")
	} else {
		defer func() { _ = mongoClient.Disconnect(context.Background()) }()
		audit := persistence.NewPublishAuditRepository(mongoClient, cfg.Database.Mongo.Name)
		notifiers = append(notifiers, audit)
		reportUsecase = usecase.NewReportUsecase(audit)
		logger.GetLogger().Info("MongoDB connected successfully")
	}

	notifiers = append(notifiers, messagingNotifiers(ctx, cfg)...)

	redisClient, err := cache.NewCache(ctx, cfg.RedisClient)
	if err != nil {
		logger.GetLogger().WithField("error", err).Warn("Redis not available - idempotency keys are kept in memory")
		redisClient = nil
	} else {
		defer func() { _ = redisClient.Close() }()
		logger.GetLogger().Info("Redis client initialized successfully.")
	}
	idempotency := cache.NewIdempotencyStore(redisClient, cfg.Publish.IdempotencyTTL)

	publishUsecase := usecase.NewPublishUsecase(store, registry, lifecycle, mediaStore, usecase.PublishOptions{
		PlatformTimeout: cfg.Publish.PlatformTimeout,
		StoreTimeout:    cfg.Publish.StoreTimeout,
		MaxParallel:     cfg.Publish.MaxParallel,
		MediaBaseURL:    cfg.Media.PublicBaseURL,
	}, notifiers...)
	credentialUsecase := usecase.NewCredentialUsecase(store, registry, cfg.Publish.StoreTimeout)

	router := server.InitiateRouter(
		cfg.App.CORSOrigins,
		middleware.NewJWTVerifier(cfg.App.SecretKey),
		httpHandler.NewPublishHandler(publishUsecase, reportUsecase, mediaStore, idempotency),
		httpHandler.NewCredentialHandler(publishUsecase, credentialUsecase),
		httpHandler.NewMediaHandler(mediaStore),
		hub.Serve,
	)
	router.MaxMultipartMemory = 32 << 20

	httpServer := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.App.Port),
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		logger.GetLogger().WithFields(map[string]interface{}{
			"port":      cfg.App.Port,
			"tls":       cfg.App.TLSEnabled,
			"platforms": registry.Platforms(),
		}).Info("Starting application")
		var err error
		if cfg.App.TLSEnabled && cfg.App.TLSCertFile != "" && cfg.App.TLSKeyFile != "" {
			err = httpServer.ListenAndServeTLS(cfg.App.TLSCertFile, cfg.App.TLSKeyFile)
		} else {
			if cfg.App.TLSEnabled {
				logger.GetLogger().Error("TLS enabled but cert or key path empty; falling back to HTTP")
			}
			err = httpServer.ListenAndServe()
		}
		if !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		logger.GetLogger().Info("Application shutdown requested")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return httpServer.Shutdown(shutdownCtx)
	})
	return g.Wait()
}

// messagingNotifiers connects the optional Pub/Sub and Service Bus report sinks.
func messagingNotifiers(ctx context.Context, cfg *configuration.Config) []repository.IReportNotifier {
	var out []repository.IReportNotifier

	if cfg.Pubsub.ProjectID != "" {
		client, err := pubsub.NewPubSub(ctx, cfg.Pubsub.ProjectID)
		if err != nil {
			logger.GetLogger().WithField("error", err).Error("Error while instantiate PubSub")
		} else if topic, err := pubsub.EnsureTopic(ctx, client, cfg.Pubsub.Topic); err != nil {
			logger.GetLogger().WithField("error", err).Error("Error while ensuring PubSub topic")
		} else {
			out = append(out, pubsub.NewReportPublisher(topic))
		}
	}

	if cfg.ServiceBus.Namespace != "" {
		sender, err := servicebus.NewQueueNotifier(ctx, cfg.ServiceBus.Namespace, cfg.ServiceBus.Queue)
		if err != nil {
			logger.GetLogger().WithField("error", err).Warn("Azure Service Bus not available - continuing without Service Bus features")
		} else {
			out = append(out, sender)
		}
	}
	return out
}
