package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"cloud.google.com/go/pubsub"
	cloudstorage "cloud.google.com/go/storage"
	"github.com/go-chi/chi/v5"
	"github.com/redis/go-redis/v9"
	"go.opentelemetry.io/otel"
	"go.uber.org/zap"
	"google.golang.org/api/option"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"github.com/Roohan-gm/shopblizz-backend/internal/handlers"
	"github.com/Roohan-gm/shopblizz-backend/internal/jobs"
	"github.com/Roohan-gm/shopblizz-backend/internal/platform/auth"
	"github.com/Roohan-gm/shopblizz-backend/internal/platform/cache"
	"github.com/Roohan-gm/shopblizz-backend/internal/platform/config"
	pfirestore "github.com/Roohan-gm/shopblizz-backend/internal/platform/firestore"
	"github.com/Roohan-gm/shopblizz-backend/internal/platform/idempotency"
	"github.com/Roohan-gm/shopblizz-backend/internal/platform/media"
	"github.com/Roohan-gm/shopblizz-backend/internal/platform/notify"
	"github.com/Roohan-gm/shopblizz-backend/internal/platform/observability"
	"github.com/Roohan-gm/shopblizz-backend/internal/platform/secrets"
	"github.com/Roohan-gm/shopblizz-backend/internal/repositories"
	firestoreRepo "github.com/Roohan-gm/shopblizz-backend/internal/repositories/firestore"
	mongoRepo "github.com/Roohan-gm/shopblizz-backend/internal/repositories/mongo"
	"github.com/Roohan-gm/shopblizz-backend/internal/services"
)

// Set through -ldflags at build time.
var (
	version = "dev"
	commit  = "unknown"
)

const (
	serviceName         = "shopblizz-api"
	firebaseTimeout     = 5 * time.Second
	shutdownGracePeriod = 15 * time.Second
)

func main() {
	ctx := context.Background()
	startedAt := time.Now().UTC()

	baseLogger, err := observability.NewLogger()
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to initialise logger: %v\n", err)
		os.Exit(1)
	}
	defer func() {
		_ = baseLogger.Sync()
	}()

	logger := baseLogger.Named("api")
	ctx = observability.WithLogger(ctx, logger)

	envValues, err := config.EnvironmentValues()
	if err != nil {
		logger.Fatal("failed to read environment values", zap.Error(err))
	}

	fetcher, err := newSecretFetcher(ctx, logger, envValues)
	if err != nil {
		logger.Fatal("failed to initialise secret fetcher", zap.Error(err))
	}
	defer func() {
		if err := fetcher.Close(); err != nil {
			logger.Warn("secret fetcher close error", zap.Error(err))
		}
	}()

	cfg, err := config.Load(ctx,
		config.WithSecretResolver(config.SecretResolverFunc(fetcher.Resolve)),
		config.WithRequiredSecrets(requiredSecretNames(envValues)...),
	)
	if err != nil {
		var missing *config.MissingSecretsError
		if errors.As(err, &missing) {
			logger.Fatal("missing required secrets", zap.Strings("secrets", missing.RedactedNames()))
		}
		logger.Fatal("failed to load configuration", zap.Error(err))
	}

	store, err := openStore(ctx, cfg)
	if err != nil {
		logger.Fatal("failed to initialise store", zap.String("driver", cfg.Store.Driver), zap.Error(err))
	}
	defer func() {
		closeCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := store.Close(closeCtx); err != nil {
			logger.Warn("store close error", zap.Error(err))
		}
	}()

	var redisClient *redis.Client
	var snapshotCache services.ProductSnapshotCache
	var idempotencyStore idempotency.Store = idempotency.NewMemoryStore()
	if addr := strings.TrimSpace(cfg.Redis.Addr); addr != "" {
		redisClient = redis.NewClient(&redis.Options{
			Addr:     addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		defer func() {
			if err := redisClient.Close(); err != nil {
				logger.Warn("redis close error", zap.Error(err))
			}
		}()
		snapshotCache = cache.NewProductSnapshotCache(redisClient, cfg.Redis.TTL)
		idempotencyStore = idempotency.NewRedisStore(redisClient)
	} else {
		logger.Info("redis disabled; product cache off and idempotency keys kept in memory")
	}

	storageClient, err := cloudstorage.NewClient(ctx)
	if err != nil {
		logger.Fatal("failed to initialise storage client", zap.Error(err))
	}
	defer func() {
		if err := storageClient.Close(); err != nil {
			logger.Warn("storage close error", zap.Error(err))
		}
	}()
	mediaStore, err := media.NewGCSStore(storageClient, cfg.Storage, cfg.Breaker, media.WithLogger(logger.Named("media")))
	if err != nil {
		logger.Fatal("failed to initialise media store", zap.Error(err))
	}

	pubsubClient, err := pubsub.NewClient(ctx, cfg.PubSub.ProjectID)
	if err != nil {
		logger.Fatal("failed to initialise pubsub client", zap.Error(err))
	}
	defer func() {
		if err := pubsubClient.Close(); err != nil {
			logger.Warn("pubsub close error", zap.Error(err))
		}
	}()
	customerTopic := pubsubClient.Topic(cfg.PubSub.CustomerTopic)
	operationsTopic := pubsubClient.Topic(cfg.PubSub.OperationsTopic)
	defer customerTopic.Stop()
	defer operationsTopic.Stop()

	publisher, err := notify.NewPubSubNotifier(customerTopic, operationsTopic, cfg.Breaker, logger.Named("notify"))
	if err != nil {
		logger.Fatal("failed to initialise notifier", zap.Error(err))
	}
	notifier := services.NewAsyncNotifier(services.AsyncNotifierDeps{
		Next:    publisher,
		Timeout: cfg.PubSub.Timeout,
		Logger:  observability.EventLogger(logger.Named("notify"), "notification"),
	})

	firebaseVerifier, err := auth.NewFirebaseVerifier(ctx, cfg.Firebase, firebaseTimeout)
	if err != nil {
		logger.Fatal("failed to initialise firebase verifier", zap.Error(err))
	}
	authenticator := auth.NewAuthenticator(firebaseVerifier)

	pricing, err := services.NewPricingEngine(services.PricingEngineDeps{
		Rates: cfg.Pricing.ShippingRates,
		Clock: time.Now,
	})
	if err != nil {
		logger.Fatal("failed to initialise pricing engine", zap.Error(err))
	}

	catalogService, err := services.NewCatalogService(services.CatalogServiceDeps{
		Products:   store.Products(),
		Media:      mediaStore,
		Cache:      snapshotCache,
		Categories: cfg.Catalog.Categories,
		Clock:      time.Now,
		Logger:     observability.EventLogger(logger.Named("catalog"), "catalog event"),
	})
	if err != nil {
		logger.Fatal("failed to initialise catalog service", zap.Error(err))
	}

	orderService, err := services.NewOrderService(services.OrderServiceDeps{
		Orders:   store.Orders(),
		Products: store.Products(),
		Pricing:  pricing,
		Notifier: notifier,
		Cache:    snapshotCache,
		Clock:    time.Now,
		Logger:   observability.EventLogger(logger.Named("orders"), "order event"),
	})
	if err != nil {
		logger.Fatal("failed to initialise order service", zap.Error(err))
	}

	userService, err := services.NewUserService(services.UserServiceDeps{
		Users:  store.Users(),
		Media:  mediaStore,
		Clock:  time.Now,
		Logger: observability.EventLogger(logger.Named("users"), "user event"),
	})
	if err != nil {
		logger.Fatal("failed to initialise user service", zap.Error(err))
	}

	systemService, err := newSystemService(store, redisClient, fetcher, services.BuildInfo{
		Version:   version,
		CommitSHA: commit,
		StartedAt: startedAt,
	})
	if err != nil {
		logger.Warn("health: system service init failed", zap.Error(err))
	}

	sweeper, err := jobs.NewRetentionSweeper(jobs.RetentionSweeperDeps{
		Products:  store.Products(),
		Media:     mediaStore,
		Cache:     snapshotCache,
		Window:    cfg.Retention.Window,
		BatchSize: cfg.Retention.BatchSize,
		Clock:     time.Now,
		Logger:    logger.Named("retention"),
		Meter:     otel.Meter("github.com/Roohan-gm/shopblizz-backend/internal/jobs"),
	})
	if err != nil {
		logger.Fatal("failed to initialise retention sweeper", zap.Error(err))
	}
	scheduler := jobs.NewScheduler(logger.Named("scheduler"))
	if err := scheduler.Every("product-retention", cfg.Retention.Interval, jobs.SweeperTask(sweeper)); err != nil {
		logger.Fatal("failed to schedule retention sweeper", zap.Error(err))
	}

	productHandlers := handlers.NewProductHandlers(catalogService)
	orderHandlers := handlers.NewOrderHandlers(authenticator, orderService,
		handlers.WithCheckoutRateLimit(cfg.Server.CheckoutRateLimit, cfg.Server.CheckoutRateWindow, time.Now),
	)
	userHandlers := handlers.NewUserHandlers(authenticator, userService, int64(cfg.Storage.UploadMaxMiB)<<20)
	adminOrderHandlers := handlers.NewAdminOrderHandlers(authenticator, orderService, cfg.Security.AdminRole)
	adminProductHandlers := handlers.NewAdminProductHandlers(authenticator, catalogService, cfg.Security.AdminRole,
		int64(cfg.Storage.UploadMaxMiB)<<20)

	idempotencyMiddleware := idempotency.Middleware(idempotencyStore,
		idempotency.WithLogger(logger.Named("idempotency")),
	)

	projectID := traceProjectID(cfg)
	healthHandlers := handlers.NewHealthHandlers(
		handlers.WithHealthSystemService(systemService),
		handlers.WithHealthStartedAt(startedAt),
	)

	router := handlers.NewRouter(
		handlers.WithMiddlewares(
			observability.InjectLoggerMiddleware(logger.Named("http")),
			observability.TraceMiddleware(serviceName, projectID),
			observability.RecoveryMiddleware(logger.Named("http")),
			observability.RequestLoggerMiddleware(),
		),
		handlers.WithHealthHandlers(healthHandlers),
		handlers.WithProductRoutes(productHandlers.Routes),
		handlers.WithOrderRoutes(orderHandlers.Routes),
		handlers.WithOrderMiddlewares(idempotencyMiddleware),
		handlers.WithUserRoutes(userHandlers.Routes),
		handlers.WithAdminRoutes(func(r chi.Router) {
			r.Route("/orders", adminOrderHandlers.Routes)
			r.Route("/products", adminProductHandlers.Routes)
		}),
	)

	server := &http.Server{
		Addr:         ":" + cfg.Server.Port,
		Handler:      router,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	jobsCtx, stopJobs := context.WithCancel(observability.WithLogger(context.Background(), logger.Named("jobs")))
	scheduler.Start(jobsCtx)

	shutdown := make(chan os.Signal, 1)
	signal.Notify(shutdown, syscall.SIGINT, syscall.SIGTERM)

	serverLogger := logger.Named("http").With(zap.String("addr", server.Addr))
	go func() {
		serverLogger.Info("shopblizz api listening",
			zap.String("version", version),
			zap.String("store", cfg.Store.Driver),
		)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverLogger.Fatal("http server error", zap.Error(err))
		}
	}()

	<-shutdown
	logger.Info("shutdown signal received; draining requests")

	stopJobs()
	scheduler.Wait()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownGracePeriod)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("graceful shutdown failed", zap.Error(err))
	}
	if err := notifier.Wait(shutdownCtx); err != nil {
		logger.Warn("pending notifications abandoned", zap.Error(err))
	}
}

func openStore(ctx context.Context, cfg config.Config) (repositories.Registry, error) {
	switch cfg.Store.Driver {
	case config.StoreDriverMongo:
		db, err := mongoRepo.Connect(ctx, cfg.Mongo)
		if err != nil {
			return nil, err
		}
		registry, err := mongoRepo.NewRegistry(ctx, db)
		if err != nil {
			_ = db.Client().Disconnect(context.Background())
			return nil, err
		}
		return registry, nil
	default:
		var opts []pfirestore.ProviderOption
		if credentials := strings.TrimSpace(cfg.Firebase.CredentialsFile); credentials != "" {
			opts = append(opts, pfirestore.WithClientOptions(option.WithCredentialsFile(credentials)))
		}
		provider := pfirestore.NewProvider(cfg.Firestore, opts...)
		if _, err := provider.Client(ctx); err != nil {
			return nil, err
		}
		return firestoreRepo.NewRegistry(provider)
	}
}

func newSystemService(store repositories.Registry, redisClient *redis.Client, fetcher *secrets.Fetcher, build services.BuildInfo) (services.SystemService, error) {
	checks := []repositories.DependencyCheck{{
		Name:    "store",
		Timeout: 1500 * time.Millisecond,
		Check:   store.Ping,
	}}
	if redisClient != nil {
		checks = append(checks, repositories.DependencyCheck{
			Name:     "redis",
			Timeout:  500 * time.Millisecond,
			Optional: true,
			Check: func(ctx context.Context) error {
				return redisClient.Ping(ctx).Err()
			},
		})
	}
	if fetcher != nil {
		const secretHealthReference = "secret://system/healthz?version=latest"
		checks = append(checks, repositories.DependencyCheck{
			Name:     "secretManager",
			Timeout:  time.Second,
			Optional: true,
			Check: func(ctx context.Context) error {
				_, err := fetcher.Resolve(ctx, secretHealthReference)
				if err == nil || status.Code(err) == codes.NotFound {
					return nil
				}
				return err
			},
		})
	}

	repo, err := repositories.NewDependencyHealthRepository(checks)
	if err != nil {
		return nil, err
	}
	return services.NewSystemService(services.SystemServiceDeps{
		HealthRepository: repo,
		Clock:            time.Now,
		Build:            build,
	})
}

func traceProjectID(cfg config.Config) string {
	if id := strings.TrimSpace(cfg.Firebase.ProjectID); id != "" {
		return id
	}
	return strings.TrimSpace(cfg.Firestore.ProjectID)
}

func newSecretFetcher(ctx context.Context, logger *zap.Logger, env map[string]string) (*secrets.Fetcher, error) {
	lookup := func(key string) string {
		return strings.TrimSpace(env[key])
	}

	defaultProject := lookup("API_SECRET_DEFAULT_PROJECT_ID")
	if defaultProject == "" {
		defaultProject = lookup("API_FIREBASE_PROJECT_ID")
	}
	fallbackPath := lookup("API_SECRET_FALLBACK_FILE")
	if fallbackPath == "" {
		fallbackPath = ".secrets.local"
	}

	opts := []secrets.Option{
		secrets.WithLogger(logger.Named("secrets")),
		secrets.WithFallbackFile(fallbackPath),
	}
	if defaultProject != "" {
		opts = append(opts, secrets.WithDefaultProject(defaultProject))
	}
	if credentialsFile := lookup("API_FIREBASE_CREDENTIALS_FILE"); credentialsFile != "" {
		opts = append(opts, secrets.WithClientOptions(option.WithCredentialsFile(credentialsFile)))
	}
	return secrets.NewFetcher(ctx, opts...)
}

// requiredSecretNames lists the config fields that must resolve to a value for the selected
// store driver.
func requiredSecretNames(env map[string]string) []string {
	var required []string
	if strings.EqualFold(strings.TrimSpace(env["API_STORE_DRIVER"]), config.StoreDriverMongo) {
		required = append(required, "Mongo.URI")
	}
	if strings.TrimSpace(env["API_REDIS_PASSWORD"]) != "" {
		required = append(required, "Redis.Password")
	}
	return required
}
