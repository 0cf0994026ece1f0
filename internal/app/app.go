// Package app provides application initialization and lifecycle management.
package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"sync"
	"time"

	"github.com/bissquit/campus-reservations/internal/admin"
	"github.com/bissquit/campus-reservations/internal/catalog"
	catalogpostgres "github.com/bissquit/campus-reservations/internal/catalog/postgres"
	"github.com/bissquit/campus-reservations/internal/config"
	"github.com/bissquit/campus-reservations/internal/feed"
	"github.com/bissquit/campus-reservations/internal/identity"
	"github.com/bissquit/campus-reservations/internal/identity/jwt"
	identitypostgres "github.com/bissquit/campus-reservations/internal/identity/postgres"
	"github.com/bissquit/campus-reservations/internal/pkg/ctxlog"
	"github.com/bissquit/campus-reservations/internal/pkg/httputil"
	"github.com/bissquit/campus-reservations/internal/pkg/metrics"
	"github.com/bissquit/campus-reservations/internal/pkg/postgres"
	"github.com/bissquit/campus-reservations/internal/reservations"
	reservationspostgres "github.com/bissquit/campus-reservations/internal/reservations/postgres"
	"github.com/bissquit/campus-reservations/internal/version"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"
)

const (
	brokerRetryInterval   = 5 * time.Second
	defaultRequestTimeout = 60 * time.Second
)

// App represents the application instance.
type App struct {
	config        *config.Config
	logger        *slog.Logger
	db            *pgxpool.Pool
	redis         *redis.Client
	hub           *feed.Hub
	broker        *feed.RedisBroker
	server        *http.Server
	metricsServer *http.Server

	backgroundCancel context.CancelFunc
	background       sync.WaitGroup
}

// New creates a new application instance.
func New(cfg *config.Config) (*App, error) {
	logger := NewLogger(cfg.Log)

	location, err := cfg.Reservations.Location()
	if err != nil {
		return nil, fmt.Errorf("load reservations timezone: %w", err)
	}

	if cfg.Database.MigrateOnStart {
		if err := postgres.Migrate(cfg.Database.URL, cfg.Database.MigrationsPath); err != nil {
			return nil, fmt.Errorf("migrate database: %w", err)
		}
	}

	connectCtx, connectCancel := context.WithTimeout(context.Background(), cfg.Database.ConnectTimeout)
	defer connectCancel()

	db, err := postgres.Connect(connectCtx, postgres.Config{
		URL:             cfg.Database.URL,
		MaxOpenConns:    cfg.Database.MaxOpenConns,
		MaxIdleConns:    cfg.Database.MaxIdleConns,
		ConnMaxLifetime: cfg.Database.ConnMaxLifetime,
		ConnectAttempts: cfg.Database.ConnectAttempts,
	})
	if err != nil {
		return nil, fmt.Errorf("connect to database: %w", err)
	}

	backgroundCtx, backgroundCancel := context.WithCancel(context.Background())

	app := &App{
		config:           cfg,
		logger:           logger,
		db:               db,
		hub:              feed.NewHub(cfg.Feed.BufferSize),
		backgroundCancel: backgroundCancel,
	}

	var publisher feed.Publisher = app.hub
	if cfg.Redis.Enabled {
		app.redis = feed.NewRedisClient(feed.RedisConfig{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		app.broker = feed.NewRedisBroker(app.redis, cfg.Redis.Channel, app.hub)
		publisher = app.broker
		app.goBackground(func() { app.runBroker(backgroundCtx) })
	}

	app.goBackground(func() { app.collectDBMetrics(backgroundCtx) })

	router := app.setupRouter(publisher, location)

	app.server = &http.Server{
		Addr:              fmt.Sprintf("%s:%s", cfg.Server.Host, cfg.Server.Port),
		Handler:           router,
		ReadTimeout:       cfg.Server.ReadTimeout,
		ReadHeaderTimeout: cfg.Server.ReadHeaderTimeout,
		WriteTimeout:      cfg.Server.WriteTimeout,
		IdleTimeout:       cfg.Server.IdleTimeout,
	}

	// Metrics server on separate port
	metricsRouter := chi.NewRouter()
	metricsRouter.Handle("/metrics", promhttp.Handler())

	app.metricsServer = &http.Server{
		Addr:              fmt.Sprintf("%s:%s", cfg.Server.Host, cfg.Server.MetricsPort),
		Handler:           metricsRouter,
		ReadTimeout:       5 * time.Second,
		ReadHeaderTimeout: 2 * time.Second,
		WriteTimeout:      10 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	return app, nil
}

// Run starts the HTTP servers.
func (a *App) Run() error {
	go func() {
		a.logger.Info("starting metrics server",
			"host", a.config.Server.Host,
			"port", a.config.Server.MetricsPort,
		)
		if err := a.metricsServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			a.logger.Error("metrics server error", "error", err)
		}
	}()

	a.logger.Info("starting server",
		"host", a.config.Server.Host,
		"port", a.config.Server.Port,
		"version", version.Version,
	)

	if err := a.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("server error: %w", err)
	}

	return nil
}

// Shutdown gracefully shuts down the application.
func (a *App) Shutdown(ctx context.Context) error {
	a.logger.Info("shutting down servers")

	// Feed connections are hijacked and not tracked by http.Server.
	a.hub.Close()

	var wg sync.WaitGroup
	var errs []error
	var mu sync.Mutex

	for name, srv := range map[string]*http.Server{"server": a.server, "metrics server": a.metricsServer} {
		wg.Add(1)
		go func(name string, srv *http.Server) {
			defer wg.Done()
			if err := srv.Shutdown(ctx); err != nil {
				mu.Lock()
				errs = append(errs, fmt.Errorf("shutdown %s: %w", name, err))
				mu.Unlock()
			}
		}(name, srv)
	}
	wg.Wait()

	a.backgroundCancel()
	a.background.Wait()

	if a.redis != nil {
		if err := a.redis.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close redis: %w", err))
		}
	}

	a.db.Close()

	return errors.Join(errs...)
}

// Router returns the HTTP handler for testing.
func (a *App) Router() http.Handler {
	return a.server.Handler
}

func (a *App) goBackground(fn func()) {
	a.background.Add(1)
	go func() {
		defer a.background.Done()
		fn()
	}()
}

// runBroker keeps the Redis relay running until ctx is cancelled.
func (a *App) runBroker(ctx context.Context) {
	for {
		err := a.broker.Run(ctx)
		if ctx.Err() != nil {
			return
		}
		a.logger.Error("redis relay stopped, retrying",
			"error", err,
			"retry_in", brokerRetryInterval,
		)

		select {
		case <-ctx.Done():
			return
		case <-time.After(brokerRetryInterval):
		}
	}
}

func (a *App) collectDBMetrics(ctx context.Context) {
	// Collect immediately on start
	metrics.RecordDBPoolMetrics(a.db)

	ticker := time.NewTicker(15 * time.Second)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			metrics.RecordDBPoolMetrics(a.db)
		case <-ctx.Done():
			return
		}
	}
}

func (a *App) setupRouter(publisher feed.Publisher, location *time.Location) *chi.Mux {
	r := chi.NewRouter()

	// Metrics middleware must be first to measure full request time
	r.Use(httputil.MetricsMiddleware)

	// CORS must be early to handle preflight requests before other middleware
	r.Use(httputil.CORSMiddleware(a.config.CORS.AllowedOrigins))
	r.Use(middleware.RequestID)
	r.Use(httputil.RequestLoggerMiddleware(a.logger))
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)

	r.Get("/healthz", a.healthzHandler)
	r.Get("/readyz", a.readyzHandler)
	r.Get("/version", a.versionHandler)

	r.Get("/api/openapi.yaml", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/x-yaml")
		http.ServeFile(w, r, "api/openapi/openapi.yaml")
	})

	r.Get("/docs", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "text/html")
		_, _ = w.Write([]byte(`<!DOCTYPE html>
<html>
<head>
    <title>Campus Reservations API</title>
    <link rel="stylesheet" href="https://unpkg.com/swagger-ui-dist@5/swagger-ui.css">
</head>
<body>
    <div id="swagger-ui"></div>
    <script src="https://unpkg.com/swagger-ui-dist@5/swagger-ui-bundle.js"></script>
    <script>
        SwaggerUIBundle({
            url: "/api/openapi.yaml",
            dom_id: '#swagger-ui',
            presets: [SwaggerUIBundle.presets.apis, SwaggerUIBundle.SwaggerUIStandalonePreset],
            layout: "BaseLayout"
        });
    </script>
</body>
</html>`))
	})

	identityRepo := identitypostgres.NewRepository(a.db)
	verifier := jwt.NewVerifier(jwt.Config{
		SecretKey: a.config.JWT.SecretKey,
		Issuer:    a.config.JWT.Issuer,
		Audience:  a.config.JWT.Audience,
		Leeway:    a.config.JWT.Leeway,
	})
	identityService := identity.NewService(identityRepo, verifier)
	identityHandler := identity.NewHandler(identityService)

	catalogService := catalog.NewService(catalogpostgres.NewRepository(a.db))
	catalogHandler := catalog.NewHandler(catalogService)

	reservationsService := reservations.NewService(
		reservationspostgres.NewRepository(a.db),
		identityService,
		catalogService,
		identityService,
		publisher,
		location,
	)
	limiter := httputil.NewUserRateLimiter(a.config.RateLimit.SubmitRPS, a.config.RateLimit.SubmitBurst)
	reservationsHandler := reservations.NewHandler(reservationsService, limiter)

	adminService := admin.NewService(identityRepo, identityService, admin.Policy{
		PreventSelfDemotion: a.config.Admin.PreventSelfDemotion,
	})
	adminHandler := admin.NewHandler(adminService)

	feedHandler := feed.NewHandler(a.hub, identityService, feed.HandlerConfig{
		PingInterval:   a.config.Feed.PingInterval,
		WriteTimeout:   a.config.Feed.WriteTimeout,
		AllowedOrigins: a.config.CORS.AllowedOrigins,
	})

	auth := httputil.AuthMiddleware(identityService)

	requestTimeout := a.config.Server.RequestTimeout
	if requestTimeout <= 0 {
		requestTimeout = defaultRequestTimeout
	}

	r.Route("/api/v1", func(r chi.Router) {
		// Long-lived connection, no request timeout
		r.Group(func(r chi.Router) {
			r.Use(auth)
			feedHandler.RegisterRoutes(r)
		})

		r.Group(func(r chi.Router) {
			r.Use(middleware.Timeout(requestTimeout))

			catalogHandler.RegisterPublicRoutes(r)

			r.Group(func(r chi.Router) {
				r.Use(auth)

				identityHandler.RegisterProtectedRoutes(r)
				reservationsHandler.RegisterRoutes(r)
				adminHandler.RegisterRoutes(r)
			})
		})
	})

	return r
}

func (a *App) healthzHandler(w http.ResponseWriter, _ *http.Request) {
	httputil.Text(w, http.StatusOK, "OK")
}

func (a *App) readyzHandler(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
	defer cancel()

	if err := a.db.Ping(ctx); err != nil {
		ctxlog.FromContext(r.Context()).Error("readiness check failed", "error", err)
		httputil.Text(w, http.StatusServiceUnavailable, "Database unavailable")
		return
	}

	if a.broker != nil {
		if err := a.broker.Ping(ctx); err != nil {
			ctxlog.FromContext(r.Context()).Error("readiness check failed", "error", err)
			httputil.Text(w, http.StatusServiceUnavailable, "Redis unavailable")
			return
		}
	}

	httputil.Text(w, http.StatusOK, "OK")
}

func (a *App) versionHandler(w http.ResponseWriter, _ *http.Request) {
	httputil.JSON(w, http.StatusOK, map[string]string{
		"version":    version.Version,
		"commit":     version.GitCommit,
		"build_date": version.BuildDate,
	})
}

// NewLogger builds the process logger from configuration.
func NewLogger(cfg config.LogConfig) *slog.Logger {
	var level slog.Level
	switch cfg.Level {
	case "debug":
		level = slog.LevelDebug
	case "info":
		level = slog.LevelInfo
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	default:
		level = slog.LevelInfo
	}

	var handler slog.Handler
	opts := &slog.HandlerOptions{Level: level}

	if cfg.Format == "json" {
		handler = slog.NewJSONHandler(os.Stdout, opts)
	} else {
		handler = slog.NewTextHandler(os.Stdout, opts)
	}

	return slog.New(handler)
}
