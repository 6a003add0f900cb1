// Package httptransport assembles the chi router: shared middleware, the
// public health and metrics endpoints, and the authenticated module routes.
package httptransport

import (
	"context"
	"log/slog"
	"net/http"
	"sort"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"doccontrol/internal/platform/metrics"
	"doccontrol/pkg/platform/httputil"
	"doccontrol/pkg/platform/middleware/auth"
	"doccontrol/pkg/platform/middleware/metadata"
	"doccontrol/pkg/platform/middleware/request"
	"doccontrol/pkg/platform/middleware/requesttime"
)

// Registrar is implemented by every module handler.
type Registrar interface {
	Register(r chi.Router)
}

// CheckFunc reports whether a backing dependency is reachable.
type CheckFunc func(ctx context.Context) error

// Deps is everything NewRouter needs. Checks and Gatherer are optional.
type Deps struct {
	Logger      *slog.Logger
	Validator   auth.JWTValidator
	HTTPMetrics *metrics.Metrics
	Gatherer    prometheus.Gatherer
	Checks      map[string]CheckFunc
	Modules     []Registrar
}

func NewRouter(d Deps) http.Handler {
	r := chi.NewRouter()
	r.Use(request.RequestID)
	r.Use(metadata.ClientMetadata)
	r.Use(requesttime.Middleware)
	r.Use(request.Logger(d.Logger))
	r.Use(request.Recoverer(d.Logger))
	if d.HTTPMetrics != nil {
		r.Use(d.HTTPMetrics.Middleware)
	}

	r.Get("/health", healthHandler(d.Checks))
	if d.Gatherer != nil {
		r.Method(http.MethodGet, "/metrics", promhttp.HandlerFor(d.Gatherer, promhttp.HandlerOpts{}))
	}

	r.Group(func(r chi.Router) {
		r.Use(auth.RequireAuth(d.Validator, d.Logger))
		for _, m := range d.Modules {
			m.Register(r)
		}
	})
	return r
}

type healthResponse struct {
	Status string            `json:"status"`
	Checks map[string]string `json:"checks,omitempty"`
}

// healthHandler runs every check with a short deadline. Any failure turns
// the response into a 503 so load balancers stop routing here.
func healthHandler(checks map[string]CheckFunc) http.HandlerFunc {
	names := make([]string, 0, len(checks))
	for name := range checks {
		names = append(names, name)
	}
	sort.Strings(names)

	return func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()

		resp := healthResponse{Status: "ok", Checks: make(map[string]string, len(names))}
		for _, name := range names {
			if err := checks[name](ctx); err != nil {
				resp.Status = "degraded"
				resp.Checks[name] = err.Error()
				continue
			}
			resp.Checks[name] = "ok"
		}
		status := http.StatusOK
		if resp.Status != "ok" {
			status = http.StatusServiceUnavailable
		}
		httputil.WriteJSON(w, status, resp)
	}
}
