package main

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	activityhandler "reloop/internal/activity/handler"
	"reloop/internal/activity/interceptor"
	"reloop/internal/platform/health"
	"reloop/pkg/platform/middleware/auth"
	"reloop/pkg/platform/middleware/metadata"
	"reloop/pkg/platform/middleware/request"
	"reloop/pkg/platform/middleware/requesttime"
	"reloop/pkg/validation"
)

type routerDeps struct {
	logger      *slog.Logger
	tokens      auth.JWTValidator
	metadata    *metadata.Middleware
	interceptor *interceptor.Interceptor
	activity    *activityhandler.Handler
	health      *health.Handler
	httpMetrics *request.Metrics
	gatherer    prometheus.Gatherer
	upstream    http.Handler
}

// newRouter orders middleware so the interceptor sees the request ID, arrival time,
// client metadata and verified identity, and wraps both the activity API and the
// upstream proxy.
func newRouter(d routerDeps) http.Handler {
	r := chi.NewRouter()

	r.Use(request.Recovery(d.logger))
	r.Use(request.RequestID)
	r.Use(requesttime.Middleware)
	r.Use(d.metadata.Handler)
	r.Use(request.Logger(d.logger))
	r.Use(request.LatencyMiddleware(d.httpMetrics))

	d.health.Register(r)
	r.Handle("/metrics", promhttp.HandlerFor(d.gatherer, promhttp.HandlerOpts{}))

	r.Group(func(r chi.Router) {
		r.Use(auth.Authenticate(d.tokens, d.logger))
		r.Use(d.interceptor.Handler)

		r.Group(func(r chi.Router) {
			r.Use(auth.RequireAuth(d.logger))
			r.Use(request.BodyLimit(validation.MaxBodySize))
			d.activity.Register(r)
		})

		if d.upstream != nil {
			r.Handle("/*", d.upstream)
		}
	})
	return r
}
