// Package upstream forwards captured traffic to the application being monitored.
package upstream

import (
	"fmt"
	"log/slog"
	"net/http"
	stdhttputil "net/http/httputil"
	"net/url"
	"time"

	"reloop/pkg/platform/httputil"
	"reloop/pkg/requestcontext"
)

// New returns a reverse proxy to target. The request ID is forwarded so upstream logs
// correlate with activity records.
func New(target string, logger *slog.Logger) (http.Handler, error) {
	u, err := url.Parse(target)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return nil, fmt.Errorf("parse upstream url %q: invalid absolute URL", target)
	}

	proxy := &stdhttputil.ReverseProxy{
		Rewrite: func(pr *stdhttputil.ProxyRequest) {
			pr.SetURL(u)
			pr.SetXForwarded()
			if reqID := requestcontext.RequestID(pr.In.Context()); reqID != "" {
				pr.Out.Header.Set("X-Request-ID", reqID)
			}
		},
		FlushInterval: 100 * time.Millisecond,
		ErrorHandler: func(w http.ResponseWriter, r *http.Request, err error) {
			ctx := r.Context()
			logger.ErrorContext(ctx, "upstream request failed",
				"error", err,
				"path", r.URL.Path,
				"request_id", requestcontext.RequestID(ctx),
			)
			httputil.WriteJSON(w, http.StatusBadGateway, map[string]string{
				"error":             "bad_gateway",
				"error_description": "upstream unavailable",
			})
		},
	}
	return proxy, nil
}
