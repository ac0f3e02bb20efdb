package handler

import (
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/noah-isme/journey-reconciler/internal/middleware"
	"github.com/noah-isme/journey-reconciler/pkg/logger"
	corsmiddleware "github.com/noah-isme/journey-reconciler/pkg/middleware/cors"
	reqidmiddleware "github.com/noah-isme/journey-reconciler/pkg/middleware/requestid"
)

// RouterConfig carries the handlers and cross-cutting pieces of the HTTP surface.
type RouterConfig struct {
	APIPrefix      string
	AllowedOrigins []string
	Logger         *zap.Logger
	Observer       middleware.RequestObserver

	Reconciliation *ReconciliationHandler
	History        *HistoryHandler
	Decode         *DecodeHandler
	Metrics        *MetricsHandler
}

// NewRouter builds the gin engine serving the reconciler API.
func NewRouter(cfg RouterConfig) *gin.Engine {
	if cfg.Logger == nil {
		cfg.Logger = zap.NewNop()
	}
	if cfg.APIPrefix == "" {
		cfg.APIPrefix = "/api/v1"
	}

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(reqidmiddleware.Middleware())
	r.Use(logger.GinMiddleware(cfg.Logger))
	r.Use(corsmiddleware.New(cfg.AllowedOrigins))
	r.Use(middleware.Metrics(cfg.Observer))

	if cfg.Metrics != nil {
		r.GET("/health", cfg.Metrics.Health)
		r.GET("/ready", cfg.Metrics.Ready)
		r.GET("/metrics", cfg.Metrics.Prometheus)
	}

	api := r.Group(cfg.APIPrefix)
	if cfg.Reconciliation != nil {
		api.POST("/reconciliations", cfg.Reconciliation.Trigger)
	}
	if cfg.History != nil {
		api.GET("/students/:id/history", cfg.History.Get)
	}
	if cfg.Decode != nil {
		api.GET("/decode", cfg.Decode.Decode)
	}
	return r
}
