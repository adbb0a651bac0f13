package livehttp

import (
	"context"
	"errors"
	"net/http"
	"time"

	"crossguard/internal/logger"

	"github.com/gin-gonic/gin"
)

// Server 提供只读的 dashboard HTTP 服务。
type Server struct {
	addr     string
	router   *gin.Engine
	shutdown time.Duration
}

// ServerConfig 描述 live HTTP 服务依赖。
type ServerConfig struct {
	Addr    string
	Ledger  Ledger
	Book    Book
	Gateway GatewayStatus
	Symbols []string
	// LogPath 为空时 /api/live/logs 返回 503
	LogPath         string
	ShutdownTimeout time.Duration
}

// NewServer 构建 live HTTP server。
func NewServer(cfg ServerConfig) (*Server, error) {
	if cfg.Ledger == nil {
		return nil, errors.New("live http server requires a ledger")
	}
	if cfg.Addr == "" {
		cfg.Addr = ":9991"
	}
	if cfg.ShutdownTimeout <= 0 {
		cfg.ShutdownTimeout = 5 * time.Second
	}
	gin.SetMode(gin.ReleaseMode)
	router := gin.New()
	router.Use(gin.Recovery(), requestLogger())

	r := NewRouter(cfg)
	router.GET("/healthz", r.handleHealth)
	router.GET("/", r.handleEquityPage)
	router.GET("/equity", r.handleEquityPage)
	r.Register(router.Group("/api/live"))

	return &Server{addr: cfg.Addr, router: router, shutdown: cfg.ShutdownTimeout}, nil
}

// requestLogger 记录接口调用，便于追踪刷新频率。
func requestLogger() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		path := c.Request.URL.Path
		if q := c.Request.URL.RawQuery; q != "" {
			path += "?" + q
		}
		c.Next()
		logger.Debugf("HTTP %s %s status=%d ip=%s dur=%s", c.Request.Method, path, c.Writer.Status(), c.ClientIP(), time.Since(start))
	}
}

// Addr 返回监听地址。
func (s *Server) Addr() string {
	if s == nil {
		return ""
	}
	return s.addr
}

func (s *Server) Handler() http.Handler { return s.router }

// Start 启动 HTTP 服务，直到 ctx 取消或出现错误。
func (s *Server) Start(ctx context.Context) error {
	if s == nil {
		return nil
	}
	srv := &http.Server{Addr: s.addr, Handler: s.router, ReadHeaderTimeout: 10 * time.Second}
	errCh := make(chan error, 1)
	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()
	logger.Infof("dashboard 监听 %s", s.addr)

	select {
	case <-ctx.Done():
		shCtx, cancel := context.WithTimeout(context.Background(), s.shutdown)
		defer cancel()
		_ = srv.Shutdown(shCtx)
		return nil
	case err := <-errCh:
		return err
	}
}
