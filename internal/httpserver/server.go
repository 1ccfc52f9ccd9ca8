// Package httpserver serves the public news read API over the stored posts.
package httpserver

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/cgpvp/cgpvp/internal/config"
	"github.com/cgpvp/cgpvp/internal/store"
	"github.com/cgpvp/cgpvp/internal/types"
)

// Version is reported by the service info endpoint
const Version = "2.0.0"

// PostReader is the read side of the post store
type PostReader interface {
	Ping(ctx context.Context) error
	ListPosts(ctx context.Context, p store.ListParams) ([]types.PostSummary, int, error)
	RecentPosts(ctx context.Context, n int) ([]types.PostSummary, error)
	FeaturedPosts(ctx context.Context) ([]types.PostSummary, error)
	SearchPosts(ctx context.Context, term string) ([]types.PostSummary, error)
	GetPost(ctx context.Context, id string) (*types.PostSummary, error)
	GetPostImage(ctx context.Context, id string) ([]byte, error)

	Stats(ctx context.Context, now time.Time) (types.PostStats, error)
	PostsBetween(ctx context.Context, from, to time.Time) ([]types.PostSummary, error)
	CountByOrigin(ctx context.Context) ([]types.OriginCount, error)
	CountByMonth(ctx context.Context, year int) ([]types.MonthCount, error)
}

// Server wraps the gin engine and its http.Server
type Server struct {
	engine *gin.Engine
	srv    *http.Server
	cfg    config.ServerConfig
	logger *zap.SugaredLogger
}

// New builds the router. reg may be nil, in which case /metrics is not
// mounted.
func New(cfg config.ServerConfig, posts PostReader, reg *prometheus.Registry, logger *zap.SugaredLogger) *Server {
	logger = logger.Named("http")

	gin.SetMode(gin.ReleaseMode)
	router := gin.New()
	router.Use(ginLogger(logger))
	router.Use(gin.Recovery())

	h := &handler{posts: posts, now: time.Now, logger: logger}

	router.GET("/", h.info)
	router.GET("/health", h.health)
	if reg != nil {
		router.GET("/metrics", gin.WrapH(promhttp.HandlerFor(reg, promhttp.HandlerOpts{})))
	}

	news := router.Group("/api/noticias")
	news.GET("", h.list)
	news.GET("/destacada", h.featured)
	news.GET("/recientes", h.recent)
	news.GET("/buscar", h.search)
	news.GET("/estadisticas", h.stats)
	news.GET("/rango", h.between)
	news.GET("/origen", h.byOrigin)
	news.GET("/por_mes", h.byMonth)
	news.GET("/foto/:id", h.photo)
	news.GET("/:id", h.get)

	router.NoRoute(func(c *gin.Context) {
		c.JSON(http.StatusNotFound, gin.H{
			"status":  "ERROR",
			"mensaje": "Endpoint no encontrado",
		})
	})

	return &Server{
		engine: router,
		cfg:    cfg,
		logger: logger,
		srv: &http.Server{
			Addr:         cfg.Addr,
			Handler:      router,
			ReadTimeout:  cfg.ReadTimeout,
			WriteTimeout: cfg.WriteTimeout,
		},
	}
}

// Handler returns the router, mainly for tests
func (s *Server) Handler() http.Handler {
	return s.engine
}

// Run serves until ctx is cancelled, then shuts down with the configured
// grace period.
func (s *Server) Run(ctx context.Context) error {
	errCh := make(chan error, 1)
	go func() {
		s.logger.Infof("Listening on %s", s.cfg.Addr)
		if err := s.srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	grace := s.cfg.ShutdownTimeout
	if grace <= 0 {
		grace = 10 * time.Second
	}
	shutdownCtx, cancel := context.WithTimeout(context.Background(), grace)
	defer cancel()

	s.logger.Info("Shutting down HTTP server")
	return s.srv.Shutdown(shutdownCtx)
}

func ginLogger(logger *zap.SugaredLogger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		path := c.Request.URL.Path

		c.Next()

		logger.Debugw("HTTP request",
			"method", c.Request.Method,
			"path", path,
			"status_code", c.Writer.Status(),
			"client_ip", c.ClientIP(),
			"duration", time.Since(start),
		)
	}
}
