// Package http serves the dashboard page, its JSON and PNG chart endpoints,
// and the refresh trigger.
package http

import (
	"context"
	"html/template"
	"io/fs"
	"net/http"
	"net/url"
	"sync"
	"time"

	"fonreal/internal/amqp"
	"fonreal/internal/core"
	"fonreal/internal/log"
	"fonreal/internal/middleware/ratelimit"
	"fonreal/internal/middleware/security"
	"fonreal/internal/middleware/trace"
	"fonreal/internal/pipeline"
	appweb "fonreal/web"
)

// TableLoader is the cached dataset the handlers read from.
type TableLoader interface {
	Load(ctx context.Context) (*core.Table, error)
	Loaded() bool
	Invalidate()
}

// RefreshPublisher asks the import worker for a fresh snapshot.
type RefreshPublisher interface {
	PublishRefresh(ctx context.Context, reason string) (*amqp.RefreshMessage, error)
}

// Config wires a Server. Publisher is optional.
type Config struct {
	Addr             string
	Loader           TableLoader
	Pipeline         *pipeline.Pipeline
	Publisher        RefreshPublisher
	RefreshPerMinute int
	LogoURL          string
	Logger           *log.Logger
}

type Server struct {
	http.Server
	templates *template.Template
	loader    TableLoader
	pipeline  *pipeline.Pipeline
	publisher RefreshPublisher
	limiter   *ratelimit.Limiter
	detector  *security.Detector
	logger    *log.Logger

	shutdownOnce sync.Once
}

// NewServer configures routes and templates, returning a ready-to-run http.Server.
func NewServer(cfg Config) *Server {
	logger := cfg.Logger
	if logger == nil {
		logger = log.Default(log.ComponentHTTP)
	}

	mux := http.NewServeMux()
	s := &Server{
		Server: http.Server{
			Addr:              cfg.Addr,
			ReadHeaderTimeout: 10 * time.Second,
			ReadTimeout:       15 * time.Second,
			WriteTimeout:      60 * time.Second,
			IdleTimeout:       120 * time.Second,
		},
		loader:    cfg.Loader,
		pipeline:  cfg.Pipeline,
		publisher: cfg.Publisher,
		limiter:   ratelimit.NewLimiter(ratelimit.Config{RequestsPerMinute: cfg.RefreshPerMinute}),
		detector:  security.NewDetector(),
		logger:    logger,
	}

	t, err := template.ParseFS(appweb.TemplatesFS, "templates/*.html")
	if err != nil {
		logger.Warn("Failed parsing templates", log.FieldError, err)
	}
	s.templates = t

	if sub, err := fs.Sub(appweb.StaticFS, "static"); err == nil {
		static := http.StripPrefix("/static/", http.FileServer(http.FS(sub)))
		mux.Handle("GET /static/", security.StaticAssetMiddleware(3600)(static))
	} else {
		logger.Warn("Failed to mount embedded static FS", log.FieldError, err)
	}

	limited := s.limiter.Middleware(s.detector.ExtractClientIP, func(w http.ResponseWriter, r *http.Request) {
		s.requestLogger(r.Context()).WarnContext(r.Context(), "Rate limit exceeded",
			log.FieldClientIP, s.detector.ExtractClientIP(r), log.FieldPath, r.URL.Path)
		writeError(w, http.StatusTooManyRequests, "rate limit exceeded, try again later")
	})

	mux.HandleFunc("GET /{$}", s.handleIndex)
	mux.HandleFunc("GET /api/chart", s.handleChart)
	mux.HandleFunc("GET /chart.png", s.handleChartPNG)
	mux.Handle("POST /api/refresh", limited(http.HandlerFunc(s.handleRefresh)))
	mux.HandleFunc("GET /healthz", handleHealth)
	mux.HandleFunc("GET /readyz", s.handleReady)

	headers := security.DefaultHeadersConfig()
	headers.CSP = security.BuildCSP(imageOrigin(cfg.LogoURL)...)

	var h http.Handler = mux
	h = security.NewHeadersMiddleware(headers).Middleware(h)
	h = s.detector.Middleware(logger.WithComponent(log.ComponentSecurity))(h)
	h = trace.NewMiddleware(logger, s.detector.ExtractClientIP).Middleware(h)
	s.Handler = h

	return s
}

// imageOrigin returns the scheme and host of a logo URL, if it has one.
func imageOrigin(raw string) []string {
	u, err := url.Parse(raw)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return nil
	}
	origin := u.Scheme + "://" + u.Host
	if origin == security.LogoOrigin {
		return nil
	}
	return []string{origin}
}

// requestLogger prefers the request-scoped logger set by the trace middleware.
func (s *Server) requestLogger(ctx context.Context) *log.Logger {
	if l, ok := ctx.Value(log.LoggerContextKey).(*log.Logger); ok {
		return l
	}
	return s.logger
}

// Shutdown gracefully shuts down the server and the limiter cleanup.
func (s *Server) Shutdown(ctx context.Context) error {
	var shutdownErr error
	s.shutdownOnce.Do(func() {
		s.limiter.Stop()
		shutdownErr = s.Server.Shutdown(ctx)
	})
	return shutdownErr
}
