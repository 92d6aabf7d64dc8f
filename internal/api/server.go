// internal/api/server.go
package api

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"audit-insights/internal/common/logger"
	"audit-insights/internal/common/validation"
	"audit-insights/internal/insights/orchestrator"
	"audit-insights/internal/models"
)

// InsightService is the part of the insight service the HTTP API drives.
type InsightService interface {
	Submit(ctx context.Context, req *models.GenerateRequest) (*models.GenerateResponse, error)
	Status(auditID, sectionID string) orchestrator.Status
}

// ReadinessCheck reports whether a backing dependency is reachable.
type ReadinessCheck func(ctx context.Context) error

type Options struct {
	Address        string
	ReadTimeout    time.Duration
	WriteTimeout   time.Duration
	RequestTimeout time.Duration
	Defaults       validation.Defaults
	Checks         map[string]ReadinessCheck
}

type Server struct {
	service InsightService
	options Options
	router  *gin.Engine
	http    *http.Server
	logger  logger.Logger
}

func NewServer(service InsightService, opts Options, log logger.Logger) *Server {
	if opts.RequestTimeout <= 0 {
		opts.RequestTimeout = 10 * time.Second
	}
	if opts.Defaults == (validation.Defaults{}) {
		opts.Defaults = validation.StandardDefaults()
	}

	router := gin.New()
	router.Use(gin.Recovery(), requestID(), accessLog(log))

	s := &Server{
		service: service,
		options: opts,
		router:  router,
		logger:  log,
	}

	router.GET("/health", s.handleHealth)
	router.GET("/ready", s.handleReady)
	router.GET("/metrics", gin.WrapH(promhttp.Handler()))

	v1 := router.Group("/v1")
	{
		v1.POST("/insights", s.handleGenerate)
		v1.GET("/audits/:auditId/sections/:sectionId/status", s.handleStatus)
	}

	s.http = &http.Server{
		Addr:         opts.Address,
		Handler:      router,
		ReadTimeout:  opts.ReadTimeout,
		WriteTimeout: opts.WriteTimeout,
	}
	return s
}

// Handler exposes the router for in-process tests.
func (s *Server) Handler() http.Handler {
	return s.router
}

// Start serves until Shutdown is called.
func (s *Server) Start() error {
	s.logger.Info("HTTP server listening", map[string]interface{}{
		"address": s.options.Address,
	})
	if err := s.http.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

func (s *Server) Shutdown(ctx context.Context) error {
	return s.http.Shutdown(ctx)
}
