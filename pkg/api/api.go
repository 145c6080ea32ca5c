package api

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-contrib/cors"
	ginzap "github.com/gin-contrib/zap"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/telekom/account-notifier/pkg/metrics"
	"github.com/telekom/account-notifier/pkg/ratelimit"
	"github.com/telekom/account-notifier/pkg/system"
)

type APIController interface {
	BasePath() string
	Register(rg *gin.RouterGroup) error
	Handlers() []gin.HandlerFunc
}

// ServerConfig describes one HTTP component.
type ServerConfig struct {
	// Name labels log lines of this server, e.g. "accounts" or "gateway".
	Name            string
	Address         string
	TLSCertFile     string
	TLSKeyFile      string
	TrustedProxies  []string
	ShutdownTimeout time.Duration
	// RateLimit applies a per-IP limiter to every /api route when set.
	RateLimit *ratelimit.Config
	Debug     bool
}

type Server struct {
	gin         *gin.Engine
	config      ServerConfig
	log         *zap.SugaredLogger
	rateLimiter *ratelimit.IPRateLimiter
}

func NewServer(log *zap.Logger, cfg ServerConfig) (*Server, error) {
	if !cfg.Debug {
		gin.SetMode(gin.ReleaseMode)
	}
	if cfg.ShutdownTimeout <= 0 {
		cfg.ShutdownTimeout = 15 * time.Second
	}

	engine := gin.New()
	if err := engine.SetTrustedProxies(cfg.TrustedProxies); err != nil {
		return nil, fmt.Errorf("failed to set trusted proxies for %s server: %w", cfg.Name, err)
	}
	engine.Use(
		ginzap.Ginzap(log, time.RFC3339, true),
		ginzap.RecoveryWithZap(log, true),
	)

	if cfg.Debug {
		engine.Use(
			cors.New(cors.Config{
				AllowOrigins: []string{"http://localhost:5173", "http://127.0.0.1:8080"},
				AllowMethods: []string{"GET", "PUT", "PATCH", "POST", "DELETE", "OPTIONS"},
				AllowHeaders: []string{"Origin", "Authorization", "Content-Type", system.RequestIDHeader},
				MaxAge:       12 * time.Hour,
			}),
		)
	}

	sugar := log.Sugar().Named(cfg.Name)
	engine.Use(system.RequestLogger(sugar))
	engine.GET("/metrics", gin.WrapH(metrics.MetricsHandler()))

	s := &Server{
		gin:    engine,
		config: cfg,
		log:    sugar,
	}
	if cfg.RateLimit != nil {
		s.rateLimiter = ratelimit.New(*cfg.RateLimit)
	}
	return s, nil
}

// RegisterAll mounts each controller at /api/<BasePath>.
func (s *Server) RegisterAll(controllers []APIController) error {
	var mw []gin.HandlerFunc
	if s.rateLimiter != nil {
		mw = append(mw, s.rateLimiter.Middleware())
	}
	return register(s.gin.Group("api", mw...), controllers)
}

// RegisterRoot mounts each controller at /<BasePath>.
func (s *Server) RegisterRoot(controllers []APIController) error {
	return register(&s.gin.RouterGroup, controllers)
}

func register(r *gin.RouterGroup, controllers []APIController) error {
	for _, c := range controllers {
		if err := c.Register(r.Group(c.BasePath(), c.Handlers()...)); err != nil {
			return fmt.Errorf("failed to register %s routes: %w", c.BasePath(), err)
		}
	}
	return nil
}

// Handler exposes the engine for tests and embedding.
func (s *Server) Handler() http.Handler {
	return s.gin
}

// Run serves until ctx is cancelled, then shuts down gracefully within the
// configured timeout.
func (s *Server) Run(ctx context.Context) error {
	srv := &http.Server{
		Addr:              s.config.Address,
		Handler:           s.gin,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		s.log.Infow("Starting HTTP server", "address", s.config.Address, "tls", s.tlsEnabled())
		var err error
		if s.tlsEnabled() {
			err = srv.ListenAndServeTLS(s.config.TLSCertFile, s.config.TLSKeyFile)
		} else {
			err = srv.ListenAndServe()
		}
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- fmt.Errorf("%s server failed: %w", s.config.Name, err)
		}
		close(errCh)
	}()

	select {
	case err, ok := <-errCh:
		s.Close()
		if ok {
			return err
		}
		return nil
	case <-ctx.Done():
	}

	s.log.Infow("Shutting down HTTP server", "timeout", s.config.ShutdownTimeout)
	shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), s.config.ShutdownTimeout)
	defer cancel()
	defer s.Close()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("failed to shut down %s server: %w", s.config.Name, err)
	}
	return nil
}

// Close releases background resources. It does not stop a running listener;
// cancel the context passed to Run for that.
func (s *Server) Close() {
	if s.rateLimiter != nil {
		s.rateLimiter.Stop()
	}
}

func (s *Server) tlsEnabled() bool {
	return s.config.TLSCertFile != "" && s.config.TLSKeyFile != ""
}
