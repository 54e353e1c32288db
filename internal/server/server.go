// Package server exposes the chat store and the streaming response
// coordinator over HTTP.
package server

import (
	"net/http"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"

	"coreon/internal/coordinator"
	"coreon/internal/guard"
	"coreon/internal/metrics"
	"coreon/internal/storage"
)

type Server struct {
	store       *storage.Store
	coordinator *coordinator.Coordinator
	limiter     *guard.RateLimiter
	logger      zerolog.Logger
	metrics     *metrics.Metrics
	healthPath  string
	metricsPath string
}

type Config struct {
	Store       *storage.Store
	Coordinator *coordinator.Coordinator
	RateLimiter *guard.RateLimiter
	Logger      zerolog.Logger
	Metrics     *metrics.Metrics
	HealthPath  string
	MetricsPath string
}

func New(cfg Config) *Server {
	m := cfg.Metrics
	if m == nil {
		m = metrics.Global()
	}
	if cfg.HealthPath == "" {
		cfg.HealthPath = "/healthz"
	}
	if cfg.MetricsPath == "" {
		cfg.MetricsPath = "/metrics"
	}
	return &Server{
		store:       cfg.Store,
		coordinator: cfg.Coordinator,
		limiter:     cfg.RateLimiter,
		logger:      cfg.Logger,
		metrics:     m,
		healthPath:  cfg.HealthPath,
		metricsPath: cfg.MetricsPath,
	}
}

// Router builds the gin engine. CORS is wide open: the backend serves a local
// desktop client, same as the original deployment shape.
func (s *Server) Router() *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(s.requestLogger())
	r.Use(cors.New(cors.Config{
		AllowAllOrigins: true,
		AllowMethods:    []string{"GET", "POST", "PATCH", "DELETE", "OPTIONS"},
		AllowHeaders:    []string{"Content-Type"},
		MaxAge:          12 * time.Hour,
	}))

	r.GET(s.healthPath, func(c *gin.Context) {
		c.String(http.StatusOK, "ok")
	})
	r.GET(s.metricsPath, gin.WrapH(promhttp.Handler()))

	api := r.Group("/api")
	{
		api.POST("/chats", s.createChat)
		api.GET("/chats", s.listChats)
		api.PATCH("/chats/:id", s.renameChat)
		api.DELETE("/chats/:id", s.deleteChat)
		api.GET("/chats/:id/messages", s.listMessages)
		api.POST("/chats/:id/respond", s.respondPersistent)
		api.POST("/respond", s.respondVolatile)
	}

	return r
}

func (s *Server) requestLogger() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		s.logger.Debug().
			Str("method", c.Request.Method).
			Str("path", c.Request.URL.Path).
			Int("status", c.Writer.Status()).
			Dur("elapsed", time.Since(start)).
			Msg("http request")
	}
}
