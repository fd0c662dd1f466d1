package httpserver

import (
	"log/slog"
	"net/http"
)

// RouterConfig holds configuration for the HTTP router.
type RouterConfig struct {
	// API serves every route except the metrics endpoint.
	API http.Handler

	// Metrics serves the Prometheus exposition. Nil disables it.
	Metrics     http.Handler
	MetricsPath string

	Logger *slog.Logger

	// RateLimit is the per-IP requests per second. Zero disables limiting.
	RateLimit float64
	RateBurst int

	MaxBodyBytes       int64
	CORSAllowedOrigins []string
}

// NewRouter builds the top-level handler.
//
// API order: Recover -> RequestID -> CORS -> RateLimit -> Audit -> BodyLimit -> API.
// The metrics endpoint is only wrapped in Recover so that scrapes are
// neither rate limited nor audited.
func NewRouter(cfg RouterConfig) http.Handler {
	log := cfg.Logger
	if log == nil {
		log = slog.Default()
	}

	middlewares := []Middleware{Recover(log), RequestID(log)}
	if len(cfg.CORSAllowedOrigins) > 0 {
		middlewares = append(middlewares, CORS(cfg.CORSAllowedOrigins))
	}
	if cfg.RateLimit > 0 {
		middlewares = append(middlewares, RateLimit(NewRateLimiter(cfg.RateLimit, cfg.RateBurst)))
	}
	middlewares = append(middlewares, Audit(log))
	if cfg.MaxBodyBytes > 0 {
		middlewares = append(middlewares, BodyLimit(cfg.MaxBodyBytes))
	}

	mux := http.NewServeMux()
	mux.Handle("/", Chain(cfg.API, middlewares...))

	if cfg.Metrics != nil {
		path := cfg.MetricsPath
		if path == "" {
			path = "/metrics"
		}
		mux.Handle("GET "+path, Chain(cfg.Metrics, Recover(log)))
	}

	return mux
}
