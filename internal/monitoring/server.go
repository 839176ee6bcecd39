package monitoring

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/ducminhle1904/signal-relay-bot/pkg/types"
)

// StatusSource is the read side of the position machine
type StatusSource interface {
	Active() (types.ActiveTrade, bool)
	StatusLine() string
}

// Server exposes /healthz, /metrics and /status
type Server struct {
	addr   string
	router *gin.Engine
}

// ServerConfig describes the monitoring server dependencies
type ServerConfig struct {
	Addr    string
	Metrics *Metrics
	Health  *HealthChecker
	Status  StatusSource
	Logf    func(format string, args ...interface{})
}

// NewServer builds the router
func NewServer(cfg ServerConfig) *Server {
	if cfg.Addr == "" {
		cfg.Addr = ":9090"
	}
	gin.SetMode(gin.ReleaseMode)
	router := gin.New()
	router.Use(gin.Recovery(), requestLogger(cfg.Logf))

	router.GET("/healthz", func(c *gin.Context) {
		if cfg.Health == nil {
			c.JSON(http.StatusOK, gin.H{"status": StatusHealthy})
			return
		}
		status := cfg.Health.Check()
		code := http.StatusOK
		if status.Status == StatusDegraded {
			code = http.StatusServiceUnavailable
		}
		c.JSON(code, status)
	})

	if cfg.Metrics != nil {
		router.GET("/metrics", gin.WrapH(cfg.Metrics.Handler()))
	}

	router.GET("/status", func(c *gin.Context) {
		if cfg.Status == nil {
			c.JSON(http.StatusNotFound, gin.H{"error": "status unavailable"})
			return
		}
		body := gin.H{"status": cfg.Status.StatusLine(), "active": false}
		if trade, ok := cfg.Status.Active(); ok {
			body["active"] = true
			body["trade"] = trade
		}
		c.JSON(http.StatusOK, body)
	})

	return &Server{addr: cfg.Addr, router: router}
}

func requestLogger(logf func(string, ...interface{})) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		if logf != nil {
			logf("HTTP %s %s status=%d dur=%s", c.Request.Method, c.Request.URL.Path, c.Writer.Status(), time.Since(start))
		}
	}
}

// Addr returns the listen address
func (s *Server) Addr() string {
	return s.addr
}

// Handler returns the router, for tests
func (s *Server) Handler() http.Handler {
	return s.router
}

// Start serves until ctx is cancelled or the listener fails
func (s *Server) Start(ctx context.Context) error {
	srv := &http.Server{Addr: s.addr, Handler: s.router, ReadHeaderTimeout: 5 * time.Second}
	errCh := make(chan error, 1)
	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case <-ctx.Done():
		shCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = srv.Shutdown(shCtx)
		return nil
	case err := <-errCh:
		return err
	}
}
