package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/labstack/echo/v4"
	echomw "github.com/labstack/echo/v4/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"github.com/ehr/availability/internal/config"
	"github.com/ehr/availability/internal/domain/availability"
	"github.com/ehr/availability/internal/domain/booking"
	"github.com/ehr/availability/internal/platform/auth"
	"github.com/ehr/availability/internal/platform/db"
	"github.com/ehr/availability/internal/platform/metrics"
	"github.com/ehr/availability/internal/platform/middleware"
)

func newLogger(env string) zerolog.Logger {
	if env == "development" {
		return zerolog.New(zerolog.ConsoleWriter{Out: os.Stdout}).With().Timestamp().Logger()
	}
	return zerolog.New(os.Stdout).With().Timestamp().Logger()
}

func authMiddleware(cfg *config.Config) echo.MiddlewareFunc {
	if cfg.IsDev() && cfg.AuthIssuer == "" && cfg.AuthSigningKey == "" {
		return auth.DevAuthMiddleware()
	}
	jwtCfg := auth.JWTConfig{
		Issuer:   cfg.AuthIssuer,
		Audience: cfg.AuthAudience,
		JWKSURL:  cfg.AuthJWKSURL,
		Skipper:  auth.AuthSkipper,
	}
	if cfg.AuthSigningKey != "" {
		jwtCfg.SigningKey = []byte(cfg.AuthSigningKey)
	}
	return auth.JWTMiddleware(jwtCfg)
}

// openRuleCache connects to REDIS_URL. The cache is optional: a missing URL
// or an unreachable server yields nil and the service reads PostgreSQL
// directly.
func openRuleCache(ctx context.Context, redisURL string, logger zerolog.Logger) *redis.Client {
	if redisURL == "" {
		return nil
	}
	opts, err := redis.ParseURL(redisURL)
	if err != nil {
		logger.Warn().Err(err).Msg("invalid REDIS_URL, rule cache disabled")
		return nil
	}
	client := redis.NewClient(opts)
	pingCtx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		logger.Warn().Err(err).Msg("redis unreachable, rule cache disabled")
		_ = client.Close()
		return nil
	}
	return client
}

// services bundles the wired domain services.
type services struct {
	availability *availability.Service
	booking      *booking.Service
}

func newServices(cfg *config.Config, pool db.DB, cache redis.UniversalClient, m *metrics.Metrics, logger zerolog.Logger) (*services, error) {
	loc, err := cfg.Location()
	if err != nil {
		return nil, err
	}

	appointments := booking.NewAppointmentRepoPG(pool)
	var schedules availability.ScheduleRepository = availability.NewScheduleRepoPG(pool)
	if cache != nil {
		schedules = availability.NewCachedScheduleRepository(schedules, cache, cfg.RuleCacheTTL, logger)
	}

	availSvc := availability.NewService(availability.Repositories{
		Doctors:      availability.NewDoctorRepoPG(pool),
		Schedules:    schedules,
		BlockedDates: availability.NewBlockedDateRepoPG(pool),
		Vacations:    availability.NewVacationRepoPG(pool),
		Holidays:     availability.NewHolidayRepoPG(pool),
		Appointments: appointments,
	}, availability.Options{
		DefaultAdvanceDays: cfg.AdvanceBookingDays,
		DefaultLocation:    loc,
		MaxRangeDays:       cfg.MaxRangeDays,
	})
	availSvc.SetLogger(logger.With().Str("component", "availability").Logger())
	availSvc.SetMetrics(m)

	bookingSvc := booking.NewService(appointments, availSvc, booking.NewPGLocker(pool))
	bookingSvc.SetLogger(logger.With().Str("component", "booking").Logger())
	bookingSvc.SetMetrics(m)

	return &services{availability: availSvc, booking: bookingSvc}, nil
}

func newEcho(cfg *config.Config, logger zerolog.Logger) *echo.Echo {
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true

	e.Use(middleware.Recovery(logger))
	e.Use(middleware.RequestID())
	e.Use(middleware.Logger(logger))
	e.Use(echomw.CORSWithConfig(echomw.CORSConfig{
		AllowOrigins: cfg.CORSOrigins,
		AllowMethods: []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodPatch, http.MethodDelete},
		AllowHeaders: []string{"Authorization", "Content-Type", middleware.RequestIDHeader, "X-Tenant-ID"},
	}))
	e.Use(middleware.SecurityHeaders())
	e.Use(middleware.RequestTimeout(cfg.RequestTimeout))
	e.Use(authMiddleware(cfg))
	e.Use(middleware.RateLimit(middleware.RateLimitConfig{
		RequestsPerSecond: cfg.RateLimitRPS,
		BurstSize:         cfg.RateLimitBurst,
		IdleTTL:           10 * time.Minute,
	}))
	e.Use(middleware.Audit(logger))

	e.GET("/health", func(c echo.Context) error {
		return c.JSON(http.StatusOK, map[string]string{"status": "ok"})
	})
	return e
}

func registerAPI(api *echo.Group, svcs *services) {
	availability.NewHandler(svcs.availability).RegisterRoutes(api)
	booking.NewHandler(svcs.booking).RegisterRoutes(api)
}

func runServer() error {
	logger := newLogger(os.Getenv("ENV"))

	cfg, err := config.Load()
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to load config")
	}
	if err := cfg.Validate(); err != nil {
		logger.Fatal().Err(err).Msg("invalid config")
	}

	ctx := context.Background()
	pool, err := db.NewPool(ctx, cfg.DatabaseURL, cfg.DBMaxConns, cfg.DBMinConns)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to connect to database")
	}
	defer pool.Close()
	logger.Info().Msg("connected to database")

	var cache redis.UniversalClient
	if client := openRuleCache(ctx, cfg.RedisURL, logger); client != nil {
		defer client.Close()
		cache = client
		logger.Info().Dur("ttl", cfg.RuleCacheTTL).Msg("rule cache enabled")
	}

	var m *metrics.Metrics
	reg := prometheus.NewRegistry()
	if cfg.MetricsEnabled {
		reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
		m = metrics.New(reg)
	}

	svcs, err := newServices(cfg, pool, cache, m, logger)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to build services")
	}

	e := newEcho(cfg, logger)
	e.GET("/health/db", db.HealthHandler(pool, func() *db.PoolStats { return db.StatsOf(pool) }))
	if cfg.MetricsEnabled {
		e.GET("/metrics", echo.WrapHandler(metrics.Handler(reg)))
	}

	apiV1 := e.Group("/api/v1", db.TenantMiddleware(pool, cfg.DefaultTenant))
	registerAPI(apiV1, svcs)

	return serve(e, cfg.Port, pool, logger)
}

func serve(e *echo.Echo, port string, pool *pgxpool.Pool, logger zerolog.Logger) error {
	go func() {
		addr := ":" + port
		logger.Info().Str("addr", addr).Msg("starting server")
		if err := e.Start(addr); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal().Err(err).Msg("server error")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info().Msg("shutting down server")
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := e.Shutdown(ctx); err != nil {
		logger.Error().Err(err).Msg("server shutdown failed")
		return err
	}
	logger.Info().Int32("open_conns", pool.Stat().TotalConns()).Msg("server stopped")
	return nil
}
