package api

import (
	"context"
	"crypto/subtle"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/jonathanmorav/unified-dashboard/internal/api/middleware"
	"github.com/jonathanmorav/unified-dashboard/internal/config"
	"github.com/jonathanmorav/unified-dashboard/internal/domain/event"
	journeydomain "github.com/jonathanmorav/unified-dashboard/internal/domain/journey"
	"github.com/jonathanmorav/unified-dashboard/internal/reconciliation"
	"github.com/jonathanmorav/unified-dashboard/internal/webhook"
	"github.com/jonathanmorav/unified-dashboard/pkg/snowflake"
)

type Router struct {
	engine     *gin.Engine
	server     *http.Server
	cfg        *config.Config
	events     event.Repository
	journeys   journeydomain.Repository
	dispatcher *webhook.Dispatcher
	queue      *webhook.QueueProcessor
	recon      *reconciliation.Engine
	reporter   *reconciliation.Reporter
	ids        *snowflake.Node
	logger     *zap.Logger
}

func NewRouter(
	cfg *config.Config,
	events event.Repository,
	journeys journeydomain.Repository,
	dispatcher *webhook.Dispatcher,
	queue *webhook.QueueProcessor,
	recon *reconciliation.Engine,
	reporter *reconciliation.Reporter,
	ids *snowflake.Node,
	logger *zap.Logger,
) *Router {
	// Disable GIN default logger
	gin.SetMode(gin.ReleaseMode)
	r := gin.New()

	r.Use(gin.Recovery())
	r.Use(middleware.RequestID())
	r.Use(middleware.Metrics())
	r.Use(middleware.Logger(logger))

	api := &Router{
		engine:     r,
		cfg:        cfg,
		events:     events,
		journeys:   journeys,
		dispatcher: dispatcher,
		queue:      queue,
		recon:      recon,
		reporter:   reporter,
		ids:        ids,
		logger:     logger,
	}

	api.RegisterRoutes()
	return api
}

func (r *Router) RegisterRoutes() {
	r.engine.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	r.engine.GET("/metrics", gin.WrapH(promhttp.Handler()))

	// Legacy webhook path kept for subscriptions registered before the
	// API was versioned.
	r.engine.POST("/webhooks/dwolla", r.HandleDwollaWebhook)

	v1 := r.engine.Group("/api/v1")
	{
		v1.POST("/webhooks/dwolla", r.HandleDwollaWebhook)

		v1.GET("/events", r.ListEvents)

		v1.GET("/queue/status", r.QueueStatus)

		v1.GET("/journeys", r.ListJourneys)
		v1.GET("/journeys/:id", r.GetJourney)

		v1.GET("/reconciliation", r.ReconciliationHistory)
		v1.GET("/reconciliation/runs/:runId", r.ReconciliationReport)
	}

	// Mutating operational endpoints require the admin token.
	admin := r.engine.Group("/api/v1")
	admin.Use(r.adminAuth())
	{
		admin.POST("/queue/start", r.StartQueue)
		admin.POST("/queue/stop", r.StopQueue)

		admin.POST("/reconciliation", r.TriggerReconciliation)
		admin.POST("/reconciliation/discrepancies/:id/resolve", r.ResolveDiscrepancy)
		admin.POST("/reconciliation/pause", r.PauseReconciliation)
		admin.POST("/reconciliation/resume", r.ResumeReconciliation)
	}
}

func (r *Router) Run() error {
	r.server = &http.Server{
		Addr:         ":" + r.cfg.Port,
		Handler:      r.engine,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	return r.server.ListenAndServe()
}

// Shutdown gracefully shuts down the HTTP server
func (r *Router) Shutdown(ctx context.Context) error {
	if r.server == nil {
		return nil
	}
	return r.server.Shutdown(ctx)
}

// Handler exposes the gin engine for tests.
func (r *Router) Handler() http.Handler {
	return r.engine
}

func (r *Router) adminAuth() gin.HandlerFunc {
	return func(c *gin.Context) {
		expected := strings.TrimSpace(r.cfg.AdminAPIToken)
		if expected == "" {
			c.AbortWithStatusJSON(http.StatusForbidden, gin.H{"error": "admin_token_not_configured"})
			return
		}

		provided := strings.TrimSpace(c.GetHeader("X-Admin-Token"))
		if provided == "" {
			authHeader := strings.TrimSpace(c.GetHeader("Authorization"))
			if strings.HasPrefix(strings.ToLower(authHeader), "bearer ") {
				provided = strings.TrimSpace(authHeader[7:])
			}
		}

		if provided == "" || subtle.ConstantTimeCompare([]byte(provided), []byte(expected)) != 1 {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
			return
		}
		c.Next()
	}
}
