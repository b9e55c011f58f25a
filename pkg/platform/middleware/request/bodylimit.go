package request

import (
	"net/http"

	"reloop/pkg/platform/httputil"
)

// BodyLimit caps request bodies at maxBytes. A request whose Content-Length already
// exceeds the cap gets a 413 without reaching next; a chunked body that grows past it
// fails the handler's read with *http.MaxBytesError.
func BodyLimit(maxBytes int64) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if r.ContentLength > maxBytes {
				httputil.WriteError(w, &http.MaxBytesError{Limit: maxBytes})
				return
			}
			if r.Body != nil && r.Body != http.NoBody {
				r.Body = http.MaxBytesReader(w, r.Body, maxBytes)
			}
			next.ServeHTTP(w, r)
		})
	}
}
