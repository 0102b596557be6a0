package server

import (
	"context"
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"
	"golang.org/x/sync/errgroup"

	"github.com/slava-viktorov/simple-knowledge-base/internal/config"
)

// HTTPServer serves the auth API on the configured port with graceful
// shutdown.
type HTTPServer struct {
	engine *gin.Engine
	cfg    config.Config
}

// NewHTTPServer creates a server over the router.
func NewHTTPServer(cfg config.Config, router *gin.Engine) *HTTPServer {
	router.HandleMethodNotAllowed = true
	router.ForwardedByClientIP = true
	return &HTTPServer{engine: router, cfg: cfg}
}

// Addr is the listen address derived from configuration.
func (s *HTTPServer) Addr() string {
	return ":" + s.cfg.HTTPPort
}

// Run starts the HTTP server and shuts it down when ctx is done. In-flight
// requests get the configured shutdown timeout to finish.
func (s *HTTPServer) Run(ctx context.Context) error {
	srv := &http.Server{
		Addr:              s.Addr(),
		Handler:           s.engine,
		ReadHeaderTimeout: s.cfg.ReadHeaderTimeout,
	}

	g, ctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			return fmt.Errorf("listen: %w", err)
		}
		return nil
	})

	g.Go(func() error {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), s.cfg.ShutdownTimeout)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("shutdown: %w", err)
		}
		return nil
	})

	return g.Wait()
}
