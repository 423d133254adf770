package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"sync"
	"syscall"
	"time"

	"cloud.google.com/go/pubsub"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
	"google.golang.org/api/option"

	"github.com/trendora/api/internal/di"
	"github.com/trendora/api/internal/handlers"
	"github.com/trendora/api/internal/payments"
	"github.com/trendora/api/internal/platform/auth"
	"github.com/trendora/api/internal/platform/cache"
	"github.com/trendora/api/internal/platform/config"
	"github.com/trendora/api/internal/platform/events"
	"github.com/trendora/api/internal/platform/idempotency"
	"github.com/trendora/api/internal/platform/observability"
	"github.com/trendora/api/internal/platform/requestctx"
	"github.com/trendora/api/internal/platform/secrets"
	"github.com/trendora/api/internal/repositories"
	"github.com/trendora/api/internal/services"
)

const idempotencyCleanupBatch = 500

func main() {
	ctx := context.Background()
	startedAt := time.Now().UTC()

	envValues, err := config.EnvironmentValues()
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to read environment values: %v\n", err)
		os.Exit(1)
	}

	baseLogger, err := observability.NewLogger(envValues["LOG_LEVEL"], "trendora-api")
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to initialise logger: %v\n", err)
		os.Exit(1)
	}
	defer func() {
		_ = baseLogger.Sync()
	}()

	logger := baseLogger.Named("api")
	ctx = requestctx.WithLogger(ctx, logger)

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

	var (
		redisClient *redis.Client
		extraChecks []repositories.DependencyCheck
	)
	if cfg.Redis.Addr != "" {
		redisClient = cache.NewRedisClient(cfg.Redis)
		defer func() {
			if err := redisClient.Close(); err != nil {
				logger.Warn("redis close error", zap.Error(err))
			}
		}()
		extraChecks = append(extraChecks, repositories.DependencyCheck{
			Name:  "redis",
			Check: func(ctx context.Context) error { return redisClient.Ping(ctx).Err() },
		})
	}

	registry, err := di.OpenRegistry(ctx, cfg, extraChecks...)
	if err != nil {
		logger.Fatal("failed to initialise repositories", zap.Error(err), zap.String("driver", cfg.Database.Driver))
	}

	publisher, closePublisher, err := newEventPublisher(ctx, cfg)
	if err != nil {
		logger.Fatal("failed to initialise event publisher", zap.Error(err), zap.String("driver", cfg.Events.Driver))
	}
	defer closePublisher()

	metrics, err := observability.NewOrderMetrics(nil)
	if err != nil {
		logger.Fatal("failed to register order metrics", zap.Error(err))
	}

	infra := di.Infrastructure{
		Metrics: metrics,
		Logger:  observability.ServiceLogger(logger.Named("services")),
	}
	if publisher != nil {
		infra.Events = publisher
	}
	if redisClient != nil {
		infra.Cache = cache.NewRedisCache(redisClient)
	}
	if secret := strings.TrimSpace(cfg.PSP.RazorpayKeySecret); secret != "" {
		verifier, err := payments.NewRazorpayVerifier(secret)
		if err != nil {
			logger.Fatal("failed to initialise razorpay verifier", zap.Error(err))
		}
		infra.Razorpay = verifier
	} else {
		logger.Warn("razorpay verification disabled; key secret not configured")
	}
	if secret := strings.TrimSpace(cfg.PSP.StripeWebhookSecret); secret != "" {
		parser, err := payments.NewStripeWebhookVerifier(secret)
		if err != nil {
			logger.Fatal("failed to initialise stripe webhook verifier", zap.Error(err))
		}
		infra.Stripe = parser
	} else {
		logger.Warn("stripe webhooks disabled; signing secret not configured")
	}

	container, err := di.NewContainer(cfg, registry, infra)
	if err != nil {
		logger.Fatal("failed to build services", zap.Error(err))
	}
	defer func() {
		closeCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := container.Close(closeCtx); err != nil {
			logger.Warn("repository close error", zap.Error(err))
		}
	}()

	authenticator, err := newAuthenticator(ctx, cfg, registry.Users())
	if err != nil {
		logger.Fatal("failed to initialise authenticator", zap.Error(err), zap.String("mode", cfg.Auth.Mode))
	}

	idempotencyLogger := logger.Named("idempotency")
	var idempotencyStore idempotency.Store
	cleanupCtx, cleanupCancel := context.WithCancel(context.Background())
	var cleanupWG sync.WaitGroup
	var cleanupTicker *time.Ticker
	if redisClient != nil {
		store, err := idempotency.NewRedisStore(redisClient)
		if err != nil {
			logger.Fatal("failed to initialise idempotency store", zap.Error(err))
		}
		idempotencyStore = store
	} else {
		memoryStore := idempotency.NewMemoryStore()
		idempotencyStore = memoryStore
		// Redis expires keys on its own; the in-process store needs sweeping.
		if cfg.Idempotency.CleanupInterval > 0 {
			cleanupTicker = time.NewTicker(cfg.Idempotency.CleanupInterval)
			cleanupWG.Add(1)
			go func() {
				defer cleanupWG.Done()
				for {
					select {
					case <-cleanupTicker.C:
						removed, err := memoryStore.CleanupExpired(cleanupCtx, time.Now().UTC(), idempotencyCleanupBatch)
						if err != nil {
							idempotencyLogger.Error("idempotency cleanup error", zap.Error(err))
							continue
						}
						if removed > 0 {
							idempotencyLogger.Info("idempotency cleanup removed records", zap.Int("count", removed))
						}
					case <-cleanupCtx.Done():
						return
					}
				}
			}()
		}
	}
	idempotencyMiddleware := idempotency.Middleware(
		idempotencyStore,
		idempotency.WithHeader(cfg.Idempotency.Header),
		idempotency.WithTTL(cfg.Idempotency.TTL),
		idempotency.WithLogger(observability.NewPrintfAdapter(idempotencyLogger)),
	)

	svc := container.Services
	cartHandlers := handlers.NewCartHandlers(authenticator, svc.Cart)
	orderHandlers := handlers.NewOrderHandlers(authenticator, svc.Orders, handlers.WithOrderIdempotency(idempotencyMiddleware))
	adminHandlers := handlers.NewAdminOrderHandlers(authenticator, svc.Orders, svc.Stats)
	paymentHandlers := handlers.NewPaymentHandlers(authenticator, svc.Payments)
	webhookHandlers := handlers.NewWebhookHandlers(svc.Payments)
	healthHandlers := handlers.NewHealthHandlers(svc.Health, handlers.WithHealthStartedAt(startedAt))

	middlewares := []func(http.Handler) http.Handler{
		observability.InjectLoggerMiddleware(logger.Named("http")),
		observability.TraceMiddleware(traceProjectID(cfg)),
		observability.RecoveryMiddleware(logger.Named("http")),
		observability.RequestLoggerMiddleware(),
	}

	router := handlers.NewRouter(
		handlers.WithMiddlewares(middlewares...),
		handlers.WithHealthHandlers(healthHandlers),
		handlers.WithCartRoutes(cartHandlers.Routes),
		handlers.WithOrderRoutes(orderHandlers.Routes),
		handlers.WithAdminRoutes(adminHandlers.Routes),
		handlers.WithPaymentRoutes(paymentHandlers.Routes),
		handlers.WithWebhookRoutes(webhookHandlers.Routes),
	)
	server := &http.Server{
		Addr:         ":" + cfg.Server.Port,
		Handler:      router,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	shutdown := make(chan os.Signal, 1)
	signal.Notify(shutdown, syscall.SIGINT, syscall.SIGTERM)

	serverLogger := logger.Named("http").With(zap.String("addr", server.Addr))
	go func() {
		serverLogger.Info("trendora api listening",
			zap.String("database", cfg.Database.Driver),
			zap.String("events", cfg.Events.Driver),
			zap.Bool("redis", redisClient != nil),
		)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverLogger.Fatal("http server error", zap.Error(err))
		}
	}()

	<-shutdown
	logger.Info("shutdown signal received; draining requests")

	if cleanupTicker != nil {
		cleanupTicker.Stop()
	}
	cleanupCancel()
	cleanupWG.Wait()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("graceful shutdown failed", zap.Error(err))
	}
}

// newEventPublisher returns a nil publisher for the "none" driver. The returned close func is
// always safe to call.
func newEventPublisher(ctx context.Context, cfg config.Config) (services.OrderEventPublisher, func(), error) {
	noop := func() {}
	switch cfg.Events.Driver {
	case config.EventsDriverPubSub:
		client, err := pubsub.NewClient(ctx, traceProjectID(cfg))
		if err != nil {
			return nil, noop, fmt.Errorf("pubsub client: %w", err)
		}
		publisher, err := events.NewPubSubPublisher(client.Topic(cfg.Events.PubSubTopic))
		if err != nil {
			_ = client.Close()
			return nil, noop, err
		}
		return publisher, func() {
			publisher.Stop()
			_ = client.Close()
		}, nil
	case config.EventsDriverKafka:
		publisher, err := events.NewKafkaPublisher(cfg.Events.KafkaBrokers, cfg.Events.KafkaTopic)
		if err != nil {
			return nil, noop, err
		}
		return publisher, func() { _ = publisher.Close() }, nil
	default:
		return nil, noop, nil
	}
}

func newAuthenticator(ctx context.Context, cfg config.Config, users repositories.UserRepository) (*auth.Authenticator, error) {
	var verifier auth.TokenVerifier
	switch cfg.Auth.Mode {
	case config.AuthModeJWT:
		jwtVerifier, err := auth.NewJWTVerifier(cfg.Auth.JWTSecret)
		if err != nil {
			return nil, err
		}
		verifier = jwtVerifier
	default:
		firebaseVerifier, err := auth.NewFirebaseVerifier(ctx, cfg.Firebase)
		if err != nil {
			return nil, err
		}
		verifier = firebaseVerifier
	}
	return auth.NewAuthenticator(verifier, auth.WithRoleResolver(adminRoleResolver(users))), nil
}

// adminRoleResolver grants the admin role from the stored user profile. Unknown users keep the
// roles carried by their token.
func adminRoleResolver(users repositories.UserRepository) auth.RoleResolver {
	return func(ctx context.Context, uid string) ([]string, error) {
		if users == nil {
			return nil, nil
		}
		user, err := users.FindByID(ctx, uid)
		if err != nil {
			var repoErr repositories.RepositoryError
			if errors.As(err, &repoErr) && repoErr.IsNotFound() {
				return nil, nil
			}
			return nil, err
		}
		if user.IsAdmin {
			return []string{auth.RoleAdmin}, nil
		}
		return nil, nil
	}
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

	project := lookup("API_SECRET_PROJECT_ID")
	if project == "" {
		project = lookup("API_FIREBASE_PROJECT_ID")
	}

	opts := []secrets.Option{
		secrets.WithLogger(logger.Named("secrets")),
		secrets.WithProject(project),
	}
	if path := lookup("API_SECRET_FALLBACK_FILE"); path != "" {
		opts = append(opts, secrets.WithFallbackFile(path))
	}
	if credentials := lookup("API_FIREBASE_CREDENTIALS_FILE"); credentials != "" {
		opts = append(opts, secrets.WithClientOptions(option.WithCredentialsFile(credentials)))
	}
	return secrets.NewFetcher(ctx, opts...)
}

// requiredSecretNames lists the secrets the selected drivers cannot start without.
func requiredSecretNames(env map[string]string) []string {
	var required []string
	if strings.EqualFold(strings.TrimSpace(env["API_DATABASE_DRIVER"]), config.DriverMongo) {
		required = append(required, "Mongo.URI")
	}
	if strings.EqualFold(strings.TrimSpace(env["API_AUTH_MODE"]), config.AuthModeJWT) {
		required = append(required, "Auth.JWTSecret")
	}
	return required
}
