// Package httpapi exposes registration, listing, removal and on-demand checks
// over HTTP for the messaging transport.
package httpapi

import (
	"context"
	"log/slog"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"PageWatcher/internal/domain"
	"PageWatcher/internal/usecase"
)

// Tracker is the registration surface the handlers need.
type Tracker interface {
	Register(ctx context.Context, ownerID, rawURL, rule string) (bool, error)
	List(ctx context.Context, ownerID string) ([]usecase.Listing, error)
	Remove(ctx context.Context, ownerID, positionOrURL string) (domain.TrackedResource, error)
	Pause(ctx context.Context, ownerID string) error
	Resume(ctx context.Context, ownerID string) error
}

// Checker runs on-demand checks.
type Checker interface {
	CheckOwner(ctx context.Context, ownerID string) ([]domain.CheckOutcome, error)
}

// NewRouter builds the gin engine. gatherer may be nil to skip /metrics.
func NewRouter(tracker Tracker, checker Checker, gatherer prometheus.Gatherer, log *slog.Logger) *gin.Engine {
	if log == nil {
		log = slog.Default()
	}
	h := &handler{tracker: tracker, checker: checker}

	router := gin.New()
	router.Use(gin.Recovery(), loggerMiddleware(log.With("component", "http")))

	router.GET("/healthz", func(c *gin.Context) {
		c.JSON(200, gin.H{"status": "healthy"})
	})
	if gatherer != nil {
		router.GET("/metrics", gin.WrapH(promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{})))
	}

	owners := router.Group("/owners/:owner")
	owners.POST("/resources", h.register)
	owners.GET("/resources", h.list)
	owners.DELETE("/resources/*selector", h.remove)
	owners.POST("/check", h.check)
	owners.POST("/pause", h.pause)
	owners.POST("/resume", h.resume)

	return router
}

func loggerMiddleware(log *slog.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		path := c.Request.URL.Path

		c.Next()

		attrs := []any{
			"method", c.Request.Method,
			"path", path,
			"status", c.Writer.Status(),
			"duration", time.Since(start),
			"client_ip", c.ClientIP(),
		}
		if len(c.Errors) > 0 {
			attrs = append(attrs, "errors", c.Errors.String())
			log.Error("HTTP request with errors", attrs...)
			return
		}
		if strings.HasPrefix(path, "/healthz") || strings.HasPrefix(path, "/metrics") {
			log.Debug("HTTP request", attrs...)
			return
		}
		log.Info("HTTP request", attrs...)
	}
}
