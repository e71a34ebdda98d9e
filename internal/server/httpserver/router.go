package httpserver

import (
	"log/slog"
	"net/http"
	"strings"

	"github.com/yndnr/trajsnap/internal/server/httpserver/handler"
	"github.com/yndnr/trajsnap/internal/telemetry/metric"
)

// RouterConfig configures NewRouter.
type RouterConfig struct {
	Handler *handler.Handler
	Logger  *slog.Logger
	Metrics *metric.Registry

	// RateLimit is requests per second per client; zero disables limiting.
	RateLimit float64
	Burst     int

	// AdminAllowList restricts /v1/admin routes to these addresses or
	// CIDR prefixes. Empty admits everyone.
	AdminAllowList []string
}

// NewRouter wraps every route of cfg.Handler in its middleware chain and
// adds GET /metrics when cfg.Metrics is set.
func NewRouter(cfg RouterConfig) (http.Handler, error) {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	acl, err := NetworkACL(cfg.AdminAllowList, logger)
	if err != nil {
		return nil, err
	}
	var limit Middleware
	if cfg.RateLimit > 0 {
		limit = RateLimit(cfg.RateLimit, cfg.Burst)
	}

	mux := http.NewServeMux()
	for _, rt := range cfg.Handler.Routes() {
		route := routeName(rt.Pattern)
		chain := []Middleware{
			RequestID(),
			Recover(logger),
			Observe(cfg.Metrics, route),
		}
		if !rt.Probe {
			chain = append(chain, Trace(route), AccessLog(logger))
			if limit != nil {
				chain = append(chain, limit)
			}
		}
		if rt.Admin {
			chain = append(chain, acl)
		}
		mux.Handle(rt.Pattern, Chain(rt.Handler, chain...))
	}
	if cfg.Metrics != nil {
		mux.Handle("GET /metrics", Chain(cfg.Metrics.Handler(), RequestID(), Recover(logger)))
	}
	return mux, nil
}

// routeName strips the method from a mux pattern.
func routeName(pattern string) string {
	if _, path, ok := strings.Cut(pattern, " "); ok {
		return path
	}
	return pattern
}
