package bootstrap

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"net/http"
	"os"
	"path/filepath"
	"time"

	wardconsole "github.com/target/ward-console"
	"github.com/target/ward-console/config"
	httpx "github.com/target/ward-console/internal/http"
)

// HTTPHandlerConfig contains the dependencies of the HTTP handler.
type HTTPHandlerConfig struct {
	Config   *config.AppConfig
	Visitors httpx.VisitorResolver
	Metrics  http.Handler
	Logger   *slog.Logger
}

// BuildHTTPHandler parses the templates and wires the router.
func BuildHTTPHandler(cfg HTTPHandlerConfig) (http.Handler, error) {
	appCfg := cfg.Config
	if appCfg == nil {
		appCfg = &config.AppConfig{}
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	templates, static, err := webFS(appCfg)
	if err != nil {
		return nil, err
	}
	renderer, err := httpx.NewTemplateRenderer(httpx.TemplateRendererConfig{
		TemplateFS: templates,
		BasePath:   appCfg.EffectiveBasePath(),
		Logger:     logger,
	})
	if err != nil {
		return nil, fmt.Errorf("templates: %w", err)
	}

	var compression *httpx.CompressionConfig
	if appCfg.HTTP.CompressionEnabled {
		logger.Info("HTTP compression enabled", "level", appCfg.HTTP.CompressionLevel)
		compression = &httpx.CompressionConfig{
			Level:   appCfg.HTTP.CompressionLevel,
			MinSize: appCfg.HTTP.CompressionMinSize,
			Logger:  logger,
		}
	}

	return httpx.NewRouter(httpx.RouterServices{
		Visitors:     cfg.Visitors,
		Renderer:     renderer,
		Static:       static,
		Metrics:      cfg.Metrics,
		CookieDomain: appCfg.HTTP.CookieDomain,
		GuardWait:    appCfg.Session.GuardWait,
		Compression:  compression,
		Logger:       logger,
	})
}

// webFS returns the template and static filesystems, from WEB_DIR in
// development or the embedded copies otherwise.
func webFS(cfg *config.AppConfig) (fs.FS, fs.FS, error) {
	if cfg.IsDev && cfg.WebDir != "" {
		return os.DirFS(filepath.Join(cfg.WebDir, "templates")), os.DirFS(filepath.Join(cfg.WebDir, "static")), nil
	}
	templates, err := fs.Sub(wardconsole.TemplateFS, "web/templates")
	if err != nil {
		return nil, nil, fmt.Errorf("embedded templates: %w", err)
	}
	static, err := fs.Sub(wardconsole.StaticFS, "web/static")
	if err != nil {
		return nil, nil, fmt.Errorf("embedded static files: %w", err)
	}
	return templates, static, nil
}

func newServer(addr string, handler http.Handler) *http.Server {
	// Guard against empty addr to avoid listening on Go default
	if addr == "" {
		addr = ":8080"
	}
	return &http.Server{
		Addr:              addr,
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       120 * time.Second,
	}
}

// serveHTTP runs server until ctx is cancelled, then shuts it down gracefully.
func serveHTTP(ctx context.Context, server *http.Server, logger *slog.Logger) error {
	errCh := make(chan error, 1)
	go func() {
		logger.InfoContext(ctx, "starting HTTP server", "addr", server.Addr)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- fmt.Errorf("http server: %w", err)
			return
		}
		errCh <- nil
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	logger.Info("shutting down HTTP server")
	shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("http shutdown: %w", err)
	}
	if err := <-errCh; err != nil {
		return err
	}
	logger.Info("HTTP server stopped")
	return nil
}
