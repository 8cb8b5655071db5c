// README: API surface; registers HTTP routes and delegates to module services.
package http

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"fleettrack/internal/cache"
	"fleettrack/internal/events"
	"fleettrack/internal/http/handlers"
	"fleettrack/internal/http/middleware"
	"fleettrack/internal/metrics"
	"fleettrack/internal/modules/aggregate"
	"fleettrack/internal/modules/geofence"
	"fleettrack/internal/modules/ingest"
	"fleettrack/internal/modules/settings"
)

type ServerDeps struct {
	Ingest     *ingest.Service
	Geofences  *geofence.Store
	Evaluator  *geofence.Evaluator
	Settings   *settings.Service
	Aggregates *aggregate.Service
	Recent     *events.Recorder
	Meter      settings.Meter
	Metrics    *metrics.Metrics

	HMACSecret     string
	IdempotencyTTL time.Duration
	BatchTimeout   time.Duration
	DefaultOrg     string
}

type Server struct {
	deps     ServerDeps
	idemKeys *cache.Map[string, time.Time]
}

func NewServer(deps ServerDeps) *Server {
	return &Server{
		deps:     deps,
		idemKeys: cache.NewMap[string, time.Time]("request_idempotency"),
	}
}

// IdempotencyCache exposes the request-key cache for sweeper registration.
func (s *Server) IdempotencyCache() *cache.Map[string, time.Time] { return s.idemKeys }

func (s *Server) Routes() http.Handler {
	gin.SetMode(gin.ReleaseMode)
	r := gin.New()
	r.Use(middleware.Recovery(), middleware.Logging())

	ingestHandler := handlers.NewIngestHandler(s.deps.Ingest, s.deps.Metrics, s.idemKeys, s.deps.IdempotencyTTL, s.deps.BatchTimeout)
	r.POST("/ingest", middleware.Signature(s.deps.HMACSecret), ingestHandler.Ingest)

	queryHandler := handlers.NewQueryHandler(s.deps.Settings, s.deps.Aggregates, s.deps.Recent, s.deps.DefaultOrg)
	r.GET("/geofence/settings", queryHandler.Settings)
	r.GET("/miniagg", queryHandler.MiniAgg)
	r.GET("/events/recent", queryHandler.RecentEvents)

	adminHandler := handlers.NewAdminHandler(s.deps.Geofences, s.deps.Evaluator, s.deps.Settings, s.deps.Ingest, s.deps.Aggregates, s.deps.Recent, s.deps.Meter, s.idemKeys)
	admin := r.Group("/admin")
	admin.POST("/geofences", adminHandler.SetGeofences)
	admin.POST("/settings", adminHandler.SetSettings)
	admin.POST("/reset", adminHandler.Reset)

	r.GET("/metrics", gin.WrapH(promhttp.HandlerFor(s.deps.Metrics.Registry, promhttp.HandlerOpts{})))
	r.GET("/healthz", func(c *gin.Context) { c.String(http.StatusOK, "OK") })

	return r
}
