package interceptor

import (
	"bytes"
	"net/http"
)

// responseRecorder tracks the status code written by the wrapped handler and, when
// asked to, keeps the first maxBody bytes of the response.
type responseRecorder struct {
	http.ResponseWriter
	status      int
	wroteHeader bool
	capture     bool
	body        bytes.Buffer
}

func newResponseRecorder(w http.ResponseWriter, capture bool) *responseRecorder {
	return &responseRecorder{ResponseWriter: w, capture: capture}
}

func (rw *responseRecorder) WriteHeader(code int) {
	if !rw.wroteHeader && code >= http.StatusOK {
		rw.status = code
		rw.wroteHeader = true
	}
	rw.ResponseWriter.WriteHeader(code)
}

func (rw *responseRecorder) Write(b []byte) (int, error) {
	if !rw.wroteHeader {
		rw.WriteHeader(http.StatusOK)
	}
	if rw.capture {
		if remaining := maxBody - rw.body.Len(); remaining > 0 {
			rw.body.Write(b[:min(len(b), remaining)])
		}
	}
	return rw.ResponseWriter.Write(b)
}

func (rw *responseRecorder) Flush() {
	if f, ok := rw.ResponseWriter.(http.Flusher); ok {
		if !rw.wroteHeader {
			rw.WriteHeader(http.StatusOK)
		}
		f.Flush()
	}
}

// Unwrap lets http.ResponseController reach the underlying writer.
func (rw *responseRecorder) Unwrap() http.ResponseWriter {
	return rw.ResponseWriter
}

// Status is the final status; handlers that never write answer 200.
func (rw *responseRecorder) Status() int {
	if !rw.wroteHeader {
		return http.StatusOK
	}
	return rw.status
}

func (rw *responseRecorder) Body() []byte {
	if !rw.capture {
		return nil
	}
	return rw.body.Bytes()
}
