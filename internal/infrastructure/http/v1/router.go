// Package v1 provides HTTP API version 1.
package v1

import (
	"github.com/gin-gonic/gin"

	"metaschema/internal/infrastructure/http/v1/handlers"
	"metaschema/internal/infrastructure/http/v1/middleware"
	"metaschema/internal/infrastructure/storage/postgres"
	"metaschema/internal/metadata"
	"metaschema/internal/metadata/ddl"
	"metaschema/internal/metadata/resolver"
	"metaschema/pkg/logger"
)

// RouterConfig holds router dependencies.
type RouterConfig struct {
	Logger *logger.Logger

	// Store is the schema store served by the API.
	Store *metadata.Store

	// Source answers readiness probes; optional.
	Source handlers.ReadinessProbe

	// Pool is reported by /health/info; optional.
	Pool *postgres.Pool

	// Generator renders full DDL scripts.
	Generator *ddl.Generator

	// Resolver enables the resolve endpoint; optional.
	Resolver *resolver.Resolver

	Version string
}

// NewRouter creates the gin engine of the schema API.
func NewRouter(cfg RouterConfig) *gin.Engine {
	gin.SetMode(gin.ReleaseMode)
	if cfg.Logger == nil {
		cfg.Logger = logger.Default()
	}
	if cfg.Generator == nil {
		cfg.Generator = ddl.NewGenerator(cfg.Store, ddl.WithGeneratorLogger(cfg.Logger))
	}

	router := gin.New()

	router.Use(middleware.Recovery())
	router.Use(middleware.Trace())
	router.Use(middleware.Logger(cfg.Logger))
	router.Use(middleware.ErrorHandler())

	healthHandler := handlers.NewHealthHandler(cfg.Store, cfg.Source, cfg.Pool, cfg.Version)
	health := router.Group("/health")
	{
		health.GET("/live", healthHandler.Live)
		health.GET("/ready", healthHandler.Ready)
		health.GET("/info", healthHandler.Info)
	}

	base := handlers.NewBaseHandler()
	metaHandler := handlers.NewMetaHandler(base, cfg.Store, cfg.Generator, cfg.Resolver)
	RegisterMetaRoutes(router.Group("/api/v1/meta"), metaHandler)

	return router
}
