package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"net/http"
	"os"
	"time"

	"github.com/go-credgate/credgate/internal/config"
	"github.com/go-credgate/credgate/internal/credentials"
	"github.com/go-credgate/credgate/internal/handlers"
	"github.com/go-credgate/credgate/internal/metrics"
	"github.com/go-credgate/credgate/internal/middleware"
	"github.com/go-credgate/credgate/internal/source"
	"github.com/go-credgate/credgate/internal/version"

	"github.com/appleboy/graceful"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"
)

func main() {
	// Define flags
	showVersion := flag.Bool("version", false, "Show version information")
	flag.BoolVar(showVersion, "v", false, "Show version information (shorthand)")
	flag.Usage = printUsage
	flag.Parse()

	// Show version and exit if requested
	if *showVersion {
		version.PrintVersion()
		os.Exit(0)
	}

	// Check if command is provided
	args := flag.Args()
	if len(args) == 0 {
		printUsage()
		os.Exit(1)
	}

	// Handle subcommands
	switch args[0] {
	case "server":
		runServer()
	case "check":
		runCheck(args[1:])
	default:
		fmt.Printf("Unknown command: %s\n\n", args[0])
		printUsage()
		os.Exit(1)
	}
}

func printUsage() {
	fmt.Printf("Usage: %s [OPTIONS] COMMAND\n\n", os.Args[0])
	fmt.Println("Credential verification server")
	fmt.Println("\nCommands:")
	fmt.Println("  server    Start the verification server")
	fmt.Println("  check     Evaluate one credential pair and print the decision")
	fmt.Println("\nOptions:")
	fmt.Println("  -v, --version    Show version information")
	fmt.Println("  -h, --help       Show this help message")
}

func runServer() {
	// Load configuration
	cfg := config.Load()

	// Validate configuration
	if err := cfg.Validate(); err != nil {
		log.Fatalf("Invalid configuration: %v", err)
	}

	// Initialize metrics
	prometheusMetrics := metrics.Init(cfg.MetricsEnabled)
	if cfg.MetricsEnabled {
		log.Println("Prometheus metrics initialized")
	} else {
		log.Println("Metrics disabled (using noop implementation)")
	}

	// Resolve the credential source once at startup
	engine := newEngine(cfg)
	state := source.NewState()
	authenticator, err := resolveSource(cfg, engine, state)
	if err != nil {
		log.Fatalf("Failed to resolve credential source: %v", err)
	}
	log.Printf("Credential source: %s", authenticator.Kind())

	// Initialize handlers
	authHandler := handlers.NewAuthHandler(authenticator, prometheusMetrics)
	adminHandler := handlers.NewAdminHandler(state, prometheusMetrics)

	// Setup Gin
	setupGinMode(cfg)
	r := gin.New()
	// Setup Prometheus metrics middleware (must be before other routes)
	r.Use(metrics.HTTPMetricsMiddleware(prometheusMetrics))
	r.Use(gin.Logger(), gin.Recovery())
	r.Use(middleware.RequestIDMiddleware())

	// Health check endpoint
	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"status": "healthy",
			"source": string(authenticator.Kind()),
		})
	})

	// Prometheus metrics endpoint (with optional authentication)
	switch {
	case !cfg.MetricsEnabled:
		log.Printf("Prometheus metrics disabled")
	case cfg.MetricsToken != "":
		log.Printf("Prometheus metrics enabled at /metrics with Bearer token authentication")
		r.GET(
			"/metrics",
			middleware.TokenAuthMiddleware("Metrics", cfg.MetricsToken),
			gin.WrapH(promhttp.Handler()),
		)
	default:
		log.Printf("Prometheus metrics enabled at /metrics (no authentication)")
		r.GET("/metrics", gin.WrapH(promhttp.Handler()))
	}

	// Setup rate limiting
	checkLimiter, redisClient := setupRateLimiting(cfg)

	// Decision endpoint
	r.POST("/auth/check", checkLimiter, authHandler.Check)

	// Admin routes (require Bearer token; disabled when no token is set)
	if cfg.AdminToken != "" {
		admin := r.Group("/admin")
		admin.Use(middleware.TokenAuthMiddleware("Admin", cfg.AdminToken))
		{
			admin.GET("/credentials", adminHandler.ListUsers)
			admin.POST("/credentials", adminHandler.CreateUser)
		}
		log.Printf("Admin surface enabled at /admin/credentials")
	} else {
		log.Printf("Admin surface disabled (no ADMIN_TOKEN)")
	}

	// Start server
	log.Printf("Credential verification server starting on %s", cfg.ServerAddr)

	// Create HTTP server
	srv := &http.Server{
		Addr:              cfg.ServerAddr,
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       120 * time.Second,
	}

	// Create graceful manager
	m := graceful.NewManager()

	// Add server as a running job
	m.AddRunningJob(func(ctx context.Context) error {
		go func() {
			if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
				log.Fatalf("Failed to start server: %v", err)
			}
		}()
		<-ctx.Done()
		return nil
	})

	// Add shutdown job for HTTP server
	m.AddShutdownJob(func() error {
		log.Println("Shutting down server...")
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()

		if err := srv.Shutdown(ctx); err != nil {
			log.Printf("Server forced to shutdown: %v", err)
			return err
		}

		log.Println("Server exited")
		return nil
	})

	// Add shutdown job for Redis client (if used)
	if redisClient != nil {
		m.AddShutdownJob(func() error {
			log.Println("Closing Redis connection...")
			if err := redisClient.Close(); err != nil {
				log.Printf("Error closing Redis client: %v", err)
				return err
			}
			log.Println("Redis connection closed")
			return nil
		})
	}

	// Wait for graceful shutdown
	<-m.Done()
}

// runCheck evaluates one credential pair against the configured source and
// prints the decision as JSON. Exits non-zero when the check fails.
func runCheck(args []string) {
	fs := flag.NewFlagSet("check", flag.ExitOnError)
	user := fs.String("user", "", "User to check")
	password := fs.String("password", "", "Password to check")
	_ = fs.Parse(args)

	if *user == "" {
		fmt.Fprintln(os.Stderr, "check: -user is required")
		fs.Usage()
		os.Exit(2)
	}

	cfg := config.Load()
	if err := cfg.Validate(); err != nil {
		log.Fatalf("Invalid configuration: %v", err)
	}

	authenticator, err := resolveSource(cfg, newEngine(cfg), source.NewState())
	if err != nil {
		log.Fatalf("Failed to resolve credential source: %v", err)
	}

	decision, err := authenticator.Check(*user, *password)
	if err != nil {
		log.Fatalf("Credential source failed: %v", err)
	}

	out, err := json.MarshalIndent(decision, "", "  ")
	if err != nil {
		log.Fatalf("Failed to encode decision: %v", err)
	}
	fmt.Println(string(out))

	if !decision.Result {
		os.Exit(1)
	}
}

// newEngine builds the decision engine with the configured application
// context.
func newEngine(cfg *config.Config) *credentials.Engine {
	return credentials.NewEngine(
		credentials.WithAppContext(func() string { return cfg.AppID }),
	)
}

// resolveSource turns the configured source kind into an authenticator.
func resolveSource(
	cfg *config.Config,
	engine *credentials.Engine,
	state *source.State,
) (source.Authenticator, error) {
	switch cfg.SourceKind {
	case config.SourceMemory:
		table, err := source.LoadTableFile(cfg.CredentialsFile)
		if err != nil {
			return nil, err
		}
		return source.Resolve(table, source.WithEngine(engine))
	case config.SourceLocal:
		ref := source.LocalStore{
			Path:  cfg.LocalStorePath,
			Table: cfg.LocalStoreTable,
		}
		return source.Resolve(ref,
			source.WithEngine(engine),
			source.WithPassphrase(cfg.LocalStorePassphrase),
			source.WithState(state),
		)
	case config.SourceSQL:
		sqlCfg, err := source.LoadSQLConfig(cfg.SQLConfigPath)
		if err != nil {
			return nil, err
		}
		return source.Resolve(sqlCfg,
			source.WithEngine(engine),
			source.WithState(state),
		)
	default:
		return nil, fmt.Errorf("invalid source kind: %s", cfg.SourceKind)
	}
}

// setupGinMode sets Gin mode based on environment configuration
func setupGinMode(cfg *config.Config) {
	if cfg.IsProduction {
		gin.SetMode(gin.ReleaseMode)
		log.Printf("Gin mode: Release (production)")
		return
	}
	gin.SetMode(gin.DebugMode)
	log.Printf("Gin mode: Debug (development)")
}

// setupRateLimiting configures the /auth/check rate limiter based on
// configuration. Returns the middleware and an optional Redis client that
// needs cleanup on shutdown.
func setupRateLimiting(cfg *config.Config) (gin.HandlerFunc, *redis.Client) {
	if !cfg.EnableRateLimit {
		return func(c *gin.Context) { c.Next() }, nil
	}

	log.Printf("Rate limiting enabled (store: %s)", cfg.RateLimitStore)

	storeType := middleware.RateLimitStoreType(cfg.RateLimitStore)
	var sharedRedisClient *redis.Client

	if storeType == middleware.RateLimitStoreRedis {
		var err error
		sharedRedisClient, err = middleware.CreateRedisClient(
			cfg.RedisAddr,
			cfg.RedisPassword,
			cfg.RedisDB,
		)
		if err != nil {
			log.Fatalf("Failed to create shared Redis client: %v", err)
		}
		log.Printf("Redis rate limiting configured: %s (DB: %d)", cfg.RedisAddr, cfg.RedisDB)
	} else {
		log.Printf("In-memory rate limiting configured (single instance only)")
	}

	limiter, err := middleware.NewRateLimiter(middleware.RateLimitConfig{
		RequestsPerMinute: cfg.CheckRateLimit,
		StoreType:         storeType,
		RedisClient:       sharedRedisClient,
		RedisAddr:         cfg.RedisAddr,
		RedisPassword:     cfg.RedisPassword,
		RedisDB:           cfg.RedisDB,
		CleanupInterval:   cfg.RateLimitCleanupInterval,
	})
	if err != nil {
		log.Fatalf("Failed to create rate limiter for /auth/check: %v", err)
	}
	return limiter, sharedRedisClient
}
