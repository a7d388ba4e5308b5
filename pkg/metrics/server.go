package metrics

import (
	"context"
	"errors"
	"log/slog"
	"net"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/samsamfire/gocanerr/pkg/errframe"
)

// Stats gives the number of frames reported so far for a class, 0 for all
type Stats interface {
	Count(class errframe.ErrorClass) uint64
}

// Server exposes the collected metrics over HTTP :
//
//	GET /health   liveness
//	GET /metrics  prometheus exposition
//	GET /stats    per class counts as JSON
type Server struct {
	logger   *slog.Logger
	router   *gin.Engine
	channel  string
	gatherer prometheus.Gatherer
	stats    Stats
	started  time.Time
}

func NewServer(logger *slog.Logger, channel string, gatherer prometheus.Gatherer, stats Stats) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	gin.SetMode(gin.ReleaseMode)
	s := &Server{
		logger:   logger.With("service", "[HTTP]"),
		router:   gin.New(),
		channel:  channel,
		gatherer: gatherer,
		stats:    stats,
		started:  time.Now(),
	}
	s.router.Use(gin.Recovery())
	s.router.Use(requestLogger(s.logger))
	s.registerRoutes()
	return s
}

// Handler returns the router, mostly useful for testing
func (s *Server) Handler() http.Handler {
	return s.router
}

func (s *Server) registerRoutes() {
	s.router.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"status":  "ok",
			"uptime":  time.Since(s.started).String(),
			"channel": s.channel,
		})
	})

	s.router.GET("/metrics", gin.WrapH(promhttp.HandlerFor(s.gatherer, promhttp.HandlerOpts{})))

	s.router.GET("/stats", func(c *gin.Context) {
		if s.stats == nil {
			c.JSON(http.StatusServiceUnavailable, gin.H{"error": "no statistics available"})
			return
		}
		classes := gin.H{}
		for _, entry := range errframe.Classes() {
			classes[ClassLabel(entry)] = s.stats.Count(entry.Class)
		}
		c.JSON(http.StatusOK, gin.H{
			"channel": s.channel,
			"total":   s.stats.Count(0),
			"classes": classes,
		})
	})
}

// Serve listens on addr until ctx is cancelled
func (s *Server) Serve(ctx context.Context, addr string) error {
	listener, err := net.Listen("tcp", addr)
	if err != nil {
		return err
	}
	return s.ServeListener(ctx, listener)
}

func (s *Server) ServeListener(ctx context.Context, listener net.Listener) error {
	server := &http.Server{Handler: s.router, ReadHeaderTimeout: 5 * time.Second}
	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		_ = server.Shutdown(shutdownCtx)
	}()
	s.logger.Info("serving metrics", "addr", listener.Addr().String())
	err := server.Serve(listener)
	if errors.Is(err, http.ErrServerClosed) {
		return nil
	}
	return err
}

func requestLogger(logger *slog.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		status := c.Writer.Status()
		path := c.FullPath()
		if path == "" {
			path = c.Request.URL.Path
		}
		level := slog.LevelDebug
		if status >= 500 {
			level = slog.LevelError
		} else if status >= 400 {
			level = slog.LevelWarn
		}
		logger.Log(c.Request.Context(), level, "http request",
			"method", c.Request.Method,
			"path", path,
			"status", status,
			"duration", time.Since(start),
			"client_ip", c.ClientIP(),
		)
	}
}
