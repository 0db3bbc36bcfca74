package main

import (
	"context"
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"golang.org/x/crypto/bcrypt"

	"github.com/aryan0dhankhar/academyportal/internal/client"
	"github.com/aryan0dhankhar/academyportal/internal/domain"
	"github.com/aryan0dhankhar/academyportal/internal/featureflags"
	"github.com/aryan0dhankhar/academyportal/internal/handler"
	"github.com/aryan0dhankhar/academyportal/internal/infrastructure/logger"
	"github.com/aryan0dhankhar/academyportal/internal/infrastructure/redis"
	"github.com/aryan0dhankhar/academyportal/internal/observability/metrics"
	"github.com/aryan0dhankhar/academyportal/internal/observability/tracing"
	"github.com/aryan0dhankhar/academyportal/internal/portal"
	"github.com/aryan0dhankhar/academyportal/internal/repository"
	"github.com/aryan0dhankhar/academyportal/internal/security"
	"github.com/aryan0dhankhar/academyportal/internal/security/audit"
	"github.com/aryan0dhankhar/academyportal/internal/security/auth"
	"github.com/aryan0dhankhar/academyportal/internal/security/middleware"
	"github.com/aryan0dhankhar/academyportal/internal/security/ratelimit"
	"github.com/aryan0dhankhar/academyportal/internal/service"
	"github.com/aryan0dhankhar/academyportal/internal/session"
	"github.com/aryan0dhankhar/academyportal/internal/worker"
	"github.com/aryan0dhankhar/academyportal/pkg/config"
	"github.com/aryan0dhankhar/academyportal/pkg/database"
)

func main() {
	// .env is optional; real environment variables win
	_ = godotenv.Load()

	// 1. Load configuration
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}

	// 2. Initialize structured logger and tracing
	log := logger.NewLogger(cfg.LogLevel)
	log.Info("starting academy portal", slog.String("environment", cfg.Environment))

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	shutdownTracing, err := tracing.Init(ctx, log, cfg.OTLPEndpoint, cfg.ServiceName, cfg.Environment)
	if err != nil {
		log.Error("failed to initialize tracing", slog.String("error", err.Error()))
		os.Exit(1)
	}

	checks := map[string]handler.Pinger{"redis": nil, "database": nil}

	// 3. Session store: Redis when configured, otherwise in-process
	var (
		store       session.Store
		memoryStore *session.MemoryStore
	)
	if cfg.RedisURL != "" {
		redisClient, err := redis.NewClient(cfg.RedisURL, log)
		if err != nil {
			log.Error("failed to connect to Redis", slog.String("error", err.Error()))
			os.Exit(1)
		}
		defer redisClient.Close()
		store = session.NewRedisStore(redisClient, log)
		checks["redis"] = redisClient
	} else {
		memoryStore = session.NewMemoryStore(time.Now)
		store = memoryStore
		log.Warn("REDIS_URL not set, sessions are kept in memory")
	}

	// 4. Accounts: Postgres when configured, otherwise the YAML seed
	repos, err := openRepositories(ctx, cfg, log)
	if err != nil {
		log.Error("failed to initialize repositories", slog.String("error", err.Error()))
		os.Exit(1)
	}
	defer repos.close()
	if repos.ping != nil {
		checks["database"] = repos.ping
	}

	// 5. Identity: in-process service or a remote identity API
	tokenManager := auth.NewTokenManager(cfg.JWTSecret, cfg.JWTIssuer)
	authService := service.NewAuthService(repos.users, tokenManager, cfg.TokenTTL, log)

	var (
		fetcher       session.Fetcher      = authService
		authenticator portal.Authenticator = authService
	)
	if cfg.APIBaseURL != "" {
		identityClient := client.NewIdentityClient(cfg.APIBaseURL, nil)
		fetcher, authenticator = identityClient, identityClient
		log.Info("using remote identity api", slog.String("base_url", cfg.APIBaseURL))
	}

	resolver := session.NewResolver(fetcher, store, session.Cookie{
		Name:   cfg.CredentialCookie,
		Secure: cfg.CookieSecure,
	}, session.Options{
		Freshness:    cfg.SessionFreshness,
		ErrorTTL:     cfg.IdentityErrorTTL,
		FetchTimeout: cfg.IdentityFetchTimeout,
		SessionTTL:   cfg.TokenTTL,
	}, log)

	flags := featureflags.RepositoryProvider{Tenants: repos.tenants, Fallback: featureflags.EnvProvider{}}

	// 6. Security components
	policy := security.NewPolicy()
	rateLimiter := ratelimit.NewLimiter(cfg.RateLimitPerMinute, time.Minute)
	auditLogger := audit.NewLogger(log)
	loginLimit := middleware.LoginRateLimit(rateLimiter, cfg.LoginAttemptsPerMin, time.Minute, log)

	web, err := portal.New(portal.Config{
		Sessions:       resolver,
		Authenticator:  authenticator,
		Flags:          flags,
		Policy:         policy,
		Audit:          auditLogger,
		Logger:         log,
		DenialPolicy:   cfg.DenialPolicy,
		CSRFKey:        csrfKey(cfg.CSRFKey, log),
		CookieSecure:   cfg.CookieSecure,
		TrustedOrigins: cfg.CORSAllowedOrigins,
		LoginLimit:     loginLimit,
	})
	if err != nil {
		log.Error("failed to initialize portal", slog.String("error", err.Error()))
		os.Exit(1)
	}

	// 7. Setup HTTP routes
	authHandler := handler.NewAuthHandler(authService, auditLogger, log)
	healthHandler := handler.NewHealthHandler(checks, log)

	mux := http.NewServeMux()
	mux.Handle("POST /api/auth/login", chain(http.HandlerFunc(authHandler.Login),
		loginLimit,
		middleware.ValidateJSONContentType(log),
		middleware.ValidateJSONSchema([]string{"email", "password"}, log),
		middleware.SanitizeInputs(log),
	))
	mux.Handle("GET /api/auth/me", middleware.JWTMiddleware(tokenManager, log)(http.HandlerFunc(authHandler.Me)))
	mux.HandleFunc("GET /healthz", healthHandler.Health)
	mux.HandleFunc("GET /readyz", healthHandler.Ready)
	mux.Handle("GET /metrics", promhttp.Handler())
	web.Register(mux)

	// Chain middleware: trace -> request ID -> CORS -> rate limit -> edge gate -> metrics -> mux
	rootHandler := otelhttp.NewHandler(
		withRequestID(
			withCORS(cfg.CORSAllowedOrigins,
				middleware.RateLimitMiddleware(rateLimiter, log)(
					web.Edge(metrics.HTTPMetricsMiddleware(mux)),
				),
			),
			log,
		),
		cfg.ServiceName,
	)

	// 8. Background workers
	if memoryStore != nil {
		sweeper := worker.NewSessionSweeper(memoryStore, log, cfg.SweepInterval)
		go sweeper.Start(ctx)
	}
	go maintain(ctx, resolver, rateLimiter, cfg.SweepInterval, log)

	// 9. Start HTTP server
	server := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.ServerPort),
		Handler:      rootHandler,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	log.Info("server starting",
		slog.Int("port", cfg.ServerPort),
		slog.String("denial_policy", cfg.DenialPolicy),
		slog.Int("rate_limit", cfg.RateLimitPerMinute),
		slog.Int("login_rate_limit", cfg.LoginAttemptsPerMin),
		slog.Duration("session_freshness", cfg.SessionFreshness),
	)

	// Handle graceful shutdown
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error("server error", slog.String("error", err.Error()))
			sigChan <- syscall.SIGTERM
		}
	}()

	// Wait for shutdown signal
	<-sigChan
	log.Info("shutdown signal received")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Error("shutdown error", slog.String("error", err.Error()))
	}
	if err := shutdownTracing(shutdownCtx); err != nil {
		log.Error("tracing shutdown error", slog.String("error", err.Error()))
	}

	cancel() // Stop workers
	rateLimiter.Stop()
	log.Info("server stopped")
}

type repositories struct {
	users   domain.UserRepository
	tenants domain.TenantRepository
	ping    handler.Pinger
	close   func()
}

func openRepositories(ctx context.Context, cfg *config.Config, log *slog.Logger) (*repositories, error) {
	if cfg.DatabaseURL != "" {
		pool, err := database.NewConnectionPool(ctx, &database.Config{URL: cfg.DatabaseURL}, log)
		if err != nil {
			return nil, err
		}
		if err := pool.Migrate(ctx); err != nil {
			pool.Close()
			return nil, err
		}
		log.Info("using postgres accounts", slog.String("host", database.Host(cfg.DatabaseURL)))
		db := pool.GetDB()
		return &repositories{
			users:   repository.NewPostgresUserRepository(db, log),
			tenants: repository.NewPostgresTenantRepository(db, log),
			ping:    handler.PingFunc(pool.Health),
			close: func() {
				if err := pool.Close(); err != nil {
					log.Error("failed to close database", slog.String("error", err.Error()))
				}
			},
		}, nil
	}

	users := repository.NewMemoryUserRepository()
	tenants := repository.NewMemoryTenantRepository()
	repos := &repositories{users: users, tenants: tenants, close: func() {}}
	if cfg.SeedUsersPath == "" {
		log.Warn("neither DATABASE_URL nor SEED_USERS_PATH set, no account can log in")
		return repos, nil
	}

	seed, err := repository.LoadSeedFile(cfg.SeedUsersPath)
	if err != nil {
		return nil, err
	}
	if err := seed.Apply(ctx, users, tenants, bcrypt.DefaultCost); err != nil {
		return nil, err
	}
	log.Info("seed accounts loaded",
		slog.String("path", cfg.SeedUsersPath),
		slog.Int("tenants", len(seed.Tenants)),
		slog.Int("users", len(seed.Users)),
	)
	return repos, nil
}

// csrfKey derives the 32-byte form protection key. Without a configured key
// a random one is used, which invalidates open forms on restart.
func csrfKey(secret string, log *slog.Logger) []byte {
	if secret != "" {
		sum := sha256.Sum256([]byte(secret))
		return sum[:]
	}
	key := make([]byte, 32)
	if _, err := rand.Read(key); err != nil {
		log.Error("failed to generate csrf key", slog.String("error", err.Error()))
		os.Exit(1)
	}
	log.Warn("CSRF_KEY not set, using an ephemeral key")
	return key
}

func chain(h http.Handler, middlewares ...func(http.Handler) http.Handler) http.Handler {
	for i := len(middlewares) - 1; i >= 0; i-- {
		h = middlewares[i](h)
	}
	return h
}

// maintain evicts expired identity cache entries and idle rate limit buckets.
func maintain(ctx context.Context, resolver *session.Resolver, limiter *ratelimit.Limiter, interval time.Duration, log *slog.Logger) {
	if interval <= 0 {
		interval = time.Minute
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			identities := resolver.Purge()
			buckets := limiter.Prune(10 * time.Minute)
			if identities > 0 || buckets > 0 {
				log.Debug("maintenance pass",
					slog.Int("identities_purged", identities),
					slog.Int("buckets_pruned", buckets),
				)
			}
		}
	}
}

// withCORS honors the configured origins for the JSON API
func withCORS(allowed []string, next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		origin := r.Header.Get("Origin")
		if originAllowed(allowed, origin) {
			w.Header().Set("Access-Control-Allow-Origin", origin)
			w.Header().Set("Access-Control-Allow-Credentials", "true")
		}
		w.Header().Set("Vary", "Origin")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Accept, Authorization, X-CSRF-Token")

		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusNoContent)
			return
		}

		next.ServeHTTP(w, r)
	})
}

// withRequestID attaches a request ID to the context and response headers for traceability
func withRequestID(next http.Handler, log *slog.Logger) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		reqID := r.Header.Get("X-Request-ID")
		if reqID == "" {
			reqID = generateRequestID()
		}
		w.Header().Set("X-Request-ID", reqID)

		ctx := audit.WithRequestID(r.Context(), reqID)
		start := time.Now()

		next.ServeHTTP(w, r.WithContext(ctx))

		log.Info("request completed",
			slog.String("request_id", reqID),
			slog.String("method", r.Method),
			slog.String("path", r.URL.Path),
			slog.Duration("duration_ms", time.Since(start)),
		)
	})
}

func originAllowed(allowed []string, origin string) bool {
	if origin == "" {
		return false
	}
	for _, a := range allowed {
		if a == "*" || a == origin {
			return true
		}
	}
	return false
}

func generateRequestID() string {
	buf := make([]byte, 8)
	if _, err := rand.Read(buf); err == nil {
		return hex.EncodeToString(buf)
	}
	return fmt.Sprintf("req-%d", time.Now().UnixNano())
}
