// Package server composes the REST API and health probes into one process handler.
package server

import (
	"context"
	"crypto/subtle"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/charmbracelet/log"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/hylla/qboard/internal/adapters/server/httpapi"
	"github.com/hylla/qboard/internal/adapters/server/mcpapi"
	"github.com/hylla/qboard/internal/app"
	"github.com/rs/cors"
)

// defaultBindAddress defines the localhost-first serve default.
const defaultBindAddress = "127.0.0.1:8080"

// defaultShutdownTimeout bounds graceful shutdown time once context cancellation starts.
const defaultShutdownTimeout = 5 * time.Second

// Config defines serve-mode endpoint configuration.
type Config struct {
	HTTPBind       string
	APIEndpoint    string
	MCPEndpoint    string
	AllowedOrigins []string
	Token          string
	ServerName     string
	ServerVersion  string
}

// Dependencies defines app-facing adapters required by server transports.
type Dependencies struct {
	Backend app.Backend
	Logger  *log.Logger
}

// NewHandler composes one root HTTP handler containing health probes, the REST API and the MCP tools.
func NewHandler(cfg Config, deps Dependencies) (http.Handler, Config, error) {
	normalizedCfg, err := normalizeConfig(cfg)
	if err != nil {
		return nil, Config{}, err
	}
	if deps.Backend == nil {
		return nil, Config{}, fmt.Errorf("backend dependency is required")
	}
	logger := deps.Logger
	if logger == nil {
		logger = log.New(io.Discard)
	}

	mcpHandler, err := mcpapi.NewHandler(
		mcpapi.Config{
			ServerName:    normalizedCfg.ServerName,
			ServerVersion: normalizedCfg.ServerVersion,
			EndpointPath:  normalizedCfg.MCPEndpoint,
		},
		deps.Backend,
	)
	if err != nil {
		return nil, Config{}, fmt.Errorf("configure mcp handler: %w", err)
	}

	r := chi.NewRouter()
	r.Get("/healthz", writeHealthStatus)
	r.Get("/readyz", writeHealthStatus)
	r.Route(normalizedCfg.APIEndpoint, func(r chi.Router) {
		r.Use(requestLogger(logger), bearerAuth(normalizedCfg.Token))
		r.Mount("/", httpapi.NewHandler(deps.Backend))
	})
	r.With(requestLogger(logger), bearerAuth(normalizedCfg.Token)).Handle(normalizedCfg.MCPEndpoint, mcpHandler)

	handler := cors.New(cors.Options{
		AllowedOrigins:   normalizedCfg.AllowedOrigins,
		AllowedMethods:   []string{http.MethodGet, http.MethodPost, http.MethodPatch, http.MethodDelete, http.MethodOptions},
		AllowedHeaders:   []string{"*"},
		AllowCredentials: true,
	}).Handler(r)
	return handler, normalizedCfg, nil
}

// Run starts the composed HTTP server and blocks until shutdown or startup failure.
func Run(ctx context.Context, cfg Config, deps Dependencies) error {
	if ctx == nil {
		ctx = context.Background()
	}

	handler, normalizedCfg, err := NewHandler(cfg, deps)
	if err != nil {
		return fmt.Errorf("build server handler: %w", err)
	}
	httpServer := &http.Server{
		Addr:              normalizedCfg.HTTPBind,
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
	}
	if deps.Logger != nil {
		deps.Logger.Info("serving board api", "addr", normalizedCfg.HTTPBind, "endpoint", normalizedCfg.APIEndpoint, "mcp", normalizedCfg.MCPEndpoint, "name", normalizedCfg.ServerName, "version", normalizedCfg.ServerVersion)
	}

	serveErrCh := make(chan error, 1)
	go func() {
		serveErrCh <- httpServer.ListenAndServe()
	}()

	select {
	case err := <-serveErrCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return fmt.Errorf("listen and serve: %w", err)
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), defaultShutdownTimeout)
		defer cancel()

		shutdownErr := httpServer.Shutdown(shutdownCtx)
		serveErr := <-serveErrCh
		if shutdownErr != nil && !errors.Is(shutdownErr, context.Canceled) {
			return fmt.Errorf("shutdown server: %w", shutdownErr)
		}
		if serveErr != nil && !errors.Is(serveErr, http.ErrServerClosed) {
			return fmt.Errorf("serve after shutdown: %w", serveErr)
		}
		return nil
	}
}

// normalizeConfig applies defaults and validates endpoint collisions.
func normalizeConfig(cfg Config) (Config, error) {
	cfg.HTTPBind = strings.TrimSpace(cfg.HTTPBind)
	if cfg.HTTPBind == "" {
		cfg.HTTPBind = defaultBindAddress
	}

	cfg.APIEndpoint = normalizeEndpoint(cfg.APIEndpoint, "/api")
	cfg.MCPEndpoint = normalizeEndpoint(cfg.MCPEndpoint, "/mcp")
	for _, endpoint := range []string{cfg.APIEndpoint, cfg.MCPEndpoint} {
		if endpoint == "/healthz" || endpoint == "/readyz" {
			return Config{}, fmt.Errorf("endpoint %q collides with health probes", endpoint)
		}
	}
	if cfg.APIEndpoint == cfg.MCPEndpoint {
		return Config{}, fmt.Errorf("api and mcp endpoints must differ")
	}

	origins := make([]string, 0, len(cfg.AllowedOrigins))
	for _, origin := range cfg.AllowedOrigins {
		if origin = strings.TrimSpace(origin); origin != "" {
			origins = append(origins, origin)
		}
	}
	if len(origins) == 0 {
		origins = []string{"*"}
	}
	cfg.AllowedOrigins = origins
	cfg.Token = strings.TrimSpace(cfg.Token)

	cfg.ServerName = strings.TrimSpace(cfg.ServerName)
	if cfg.ServerName == "" {
		cfg.ServerName = "qboard"
	}
	cfg.ServerVersion = strings.TrimSpace(cfg.ServerVersion)
	if cfg.ServerVersion == "" {
		cfg.ServerVersion = "dev"
	}
	return cfg, nil
}

// normalizeEndpoint normalizes one endpoint path and applies fallback defaults.
func normalizeEndpoint(path string, fallback string) string {
	path = strings.TrimSpace(path)
	if path == "" {
		path = fallback
	}
	if !strings.HasPrefix(path, "/") {
		path = "/" + path
	}
	path = "/" + strings.Trim(path, "/")
	if path == "/" {
		return fallback
	}
	return path
}

// bearerAuth rejects API requests without the configured bearer token.
// An empty token disables the check.
func bearerAuth(token string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		if token == "" {
			return next
		}
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			got := strings.TrimPrefix(r.Header.Get("Authorization"), "Bearer ")
			if subtle.ConstantTimeCompare([]byte(got), []byte(token)) != 1 {
				w.Header().Set("Content-Type", "application/json")
				w.WriteHeader(http.StatusUnauthorized)
				_, _ = w.Write([]byte(`{"error":{"code":"unauthorized","message":"missing or invalid bearer token"}}` + "\n"))
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// requestLogger logs one line per API request at a level derived from the status.
func requestLogger(logger *log.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
			next.ServeHTTP(ww, r)

			status := ww.Status()
			if status == 0 {
				status = http.StatusOK
			}
			fields := []any{"method", r.Method, "path", r.URL.Path, "status", status, "bytes", ww.BytesWritten(), "duration", time.Since(start)}
			switch {
			case status >= http.StatusInternalServerError:
				logger.Error(http.StatusText(status), fields...)
			case status >= http.StatusBadRequest:
				logger.Warn(http.StatusText(status), fields...)
			default:
				logger.Debug(http.StatusText(status), fields...)
			}
		})
	}
}

// writeHealthStatus responds with a deterministic readiness payload.
func writeHealthStatus(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte(`{"status":"ok"}` + "\n"))
}
