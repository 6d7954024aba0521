package main

import (
	"database/sql"
	"log/slog"
	"net/http"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/DukeRupert/tsfwatch/internal"
	"github.com/DukeRupert/tsfwatch/internal/domain"
	"github.com/DukeRupert/tsfwatch/internal/events"
	"github.com/DukeRupert/tsfwatch/internal/export"
	"github.com/DukeRupert/tsfwatch/internal/handler"
	"github.com/DukeRupert/tsfwatch/internal/mapserver"
	"github.com/DukeRupert/tsfwatch/internal/metrics"
	"github.com/DukeRupert/tsfwatch/internal/middleware"
	"github.com/DukeRupert/tsfwatch/internal/osm"
	"github.com/DukeRupert/tsfwatch/internal/refresh"
	"github.com/DukeRupert/tsfwatch/internal/registry"
	"github.com/DukeRupert/tsfwatch/internal/risk"
	"github.com/DukeRupert/tsfwatch/internal/scheduler"
	"github.com/DukeRupert/tsfwatch/internal/service"
	"github.com/DukeRupert/tsfwatch/internal/weather"
)

type routerDeps struct {
	cfg       *internal.Config
	logger    *slog.Logger
	db        *sql.DB
	sessions  *service.SessionManager
	registry  *registry.Registry
	engine    *risk.Engine
	dashboard *refresh.Dashboard
	exporter  *export.Exporter
	scheduler *scheduler.Scheduler
	weather   *weather.Client
	features  *osm.Client
	mapServer mapserver.Client
	mapLoop   *refresh.Coordinator
	hub       *events.Hub
}

type router struct {
	handler http.Handler
	limiter *middleware.RateLimiter
}

// newRouter registers every route and wraps the mux in the shared
// middleware stack.
//
// Access:
// - public: /health, /metrics (basic auth), login, register, session
// - session token holder: logout
// - signed in: dashboard, collaborator and export reads, /ws
// - Admin or Operator: triggering exports, reports and map refreshes
// - Admin: /api/users
func newRouter(d routerDeps) router {
	logger := d.logger
	secureCookies := !d.cfg.IsDevelopment()
	authMw := middleware.NewAuthMiddleware(d.sessions, logger, secureCookies)
	loginLimiter := middleware.NewRateLimiter(d.cfg.LoginRateLimit, logger)
	metricsAuth := middleware.NewMetricsAuthMiddleware(d.cfg.MetricsUsername, d.cfg.MetricsPassword, logger)

	requireUser := middleware.Stack(authMw.RequireUser)
	requireStaff := middleware.Stack(authMw.RequireUser, authMw.RequireRole(domain.RoleAdmin, domain.RoleOperator))
	requireAdmin := middleware.Stack(authMw.RequireUser, authMw.RequireRole(domain.RoleAdmin))

	// Health check; an untyped nil skips the database ping.
	var pinger handler.Pinger
	if d.db != nil {
		pinger = d.db
	}

	authHandler := handler.NewAuthHandler(d.sessions, logger, secureCookies)
	dashboardHandler := handler.NewDashboardHandler(d.registry, d.engine, d.dashboard, logger)
	geoHandler := handler.NewGeoHandler(d.weather, d.features, d.mapServer, d.mapLoop, logger)
	exportHandler := handler.NewExportHandler(d.exporter, d.scheduler, logger)

	// Signed-in routes are registered on their own mux and mounted behind
	// requireUser.
	protected := http.NewServeMux()
	dashboardHandler.RegisterRoutes(protected)
	exportHandler.RegisterRoutes(protected)
	geoHandler.RegisterRoutes(protected)
	protected.Handle("GET /ws", d.hub)

	mux := http.NewServeMux()
	mux.Handle("GET /health", handler.NewHealthHandler(pinger, d.hub.Clients))
	mux.Handle("GET /metrics", metricsAuth.Handler(promhttp.Handler()))

	authHandler.RegisterRoutes(mux)
	mux.Handle("POST /api/auth/login", loginLimiter.Limit(http.HandlerFunc(authHandler.Login)))
	mux.Handle("POST /api/auth/logout", requireUser(http.HandlerFunc(authHandler.Logout)))
	mux.Handle("GET /api/users", requireAdmin(http.HandlerFunc(authHandler.Users)))

	mux.Handle("POST /api/exports", requireStaff(http.HandlerFunc(exportHandler.ExportAll)))
	mux.Handle("POST /api/reports", requireStaff(http.HandlerFunc(exportHandler.GenerateReport)))
	mux.Handle("POST /api/map/refresh", requireStaff(http.HandlerFunc(geoHandler.RefreshMap)))

	mux.Handle("/api/", requireUser(protected))
	mux.Handle("/ws", requireUser(protected))

	stack := middleware.Stack(
		authMw.WithUser,
		middleware.NewRequestLoggingMiddleware(logger).Handler,
		middleware.NewSecurityHeadersMiddleware(secureCookies, d.cfg.AllowedOrigin).Handler,
		metrics.Middleware,
	)

	return router{handler: stack(mux), limiter: loginLimiter}
}
