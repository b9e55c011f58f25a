// Package interceptor turns inbound HTTP requests into activity events. It classifies
// the request before the handler runs, settles the outcome from the final status code
// and hands the record to the recorder without blocking the response. Nothing in here is
// allowed to fail or slow down the wrapped request.
package interceptor

import (
	"bytes"
	"io"
	"log/slog"
	"net"
	"net/http"
	"runtime/debug"
	"strings"

	"github.com/google/uuid"

	"reloop/internal/activity/classifier"
	"reloop/internal/activity/device"
	"reloop/internal/activity/metrics"
	"reloop/internal/activity/models"
	id "reloop/pkg/domain"
	"reloop/pkg/requestcontext"
)

// maxBody bounds how much of a request or response body is buffered.
const maxBody = 64 << 10

// Enqueuer accepts settled events. Implementations must not block.
type Enqueuer interface {
	Enqueue(event *models.Event) bool
}

type Interceptor struct {
	recorder Enqueuer
	devices  device.Parser
	logger   *slog.Logger
	metrics  *metrics.Metrics
}

type Option func(*Interceptor)

func WithDeviceParser(p device.Parser) Option {
	return func(i *Interceptor) { i.devices = p }
}

func WithLogger(logger *slog.Logger) Option {
	return func(i *Interceptor) { i.logger = logger }
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(i *Interceptor) { i.metrics = m }
}

func New(recorder Enqueuer, opts ...Option) *Interceptor {
	i := &Interceptor{
		recorder: recorder,
		devices:  device.UserAgentParser{},
		logger:   slog.Default(),
	}
	for _, opt := range opts {
		opt(i)
	}
	return i
}

// Handler wraps next. Unclassified and anonymous requests pass straight through.
func (i *Interceptor) Handler(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		event := i.begin(r)
		if event == nil {
			next.ServeHTTP(w, r)
			return
		}

		rec := newResponseRecorder(w, event.Action == models.ActionLogin && event.UserID.IsNil())
		defer func() {
			p := recover()
			status := rec.Status()
			if p != nil {
				status = http.StatusInternalServerError
			}
			i.finish(event, status, rec.Body())
			if p != nil {
				panic(p)
			}
		}()

		next.ServeHTTP(rec, r)
	})
}

// begin builds the PENDING event, or returns nil when the request is not logged.
func (i *Interceptor) begin(r *http.Request) (event *models.Event) {
	defer func() {
		if p := recover(); p != nil {
			i.logger.Error("activity capture failed",
				"panic", p,
				"stack", string(debug.Stack()),
				"method", r.Method,
				"path", r.URL.Path,
			)
			event = nil
		}
	}()

	ctx := r.Context()
	userID := requestcontext.UserID(ctx)
	if userID.IsNil() {
		userID = FromUnverifiedBearer(r.Header.Get("Authorization"))
	}
	otp := classifier.IsOTPVerification(r.URL.Path)
	if userID.IsNil() && !otp {
		return nil
	}

	c, ok := classifier.Classify(r.Method, r.URL.Path)
	if !ok {
		return nil
	}

	body := peekBody(r)
	if userID.IsNil() {
		userID = userIDHint(body)
	}

	userAgent := r.UserAgent()
	return &models.Event{
		ID:          id.NewActivityID(),
		UserID:      userID,
		IPAddress:   clientIP(r),
		Device:      i.devices.Parse(userAgent),
		Action:      c.Action,
		ActionLabel: c.Label,
		EntityType:  c.EntityType,
		EntityID:    c.EntityID,
		EntityName:  entityNameFromBody(body),
		Outcome:     models.OutcomePending,
		RiskLevel:   c.RiskLevel,
		Source:      classifier.DetectSource(userAgent, r.URL.Path, r.Header),
		AuditRef:    newAuditRef(),
		RequestID:   requestcontext.RequestID(ctx),
		Method:      r.Method,
		Path:        r.URL.Path,
		Timestamp:   requestcontext.Now(ctx),
	}
}

// finish settles the outcome and enqueues the event. It runs exactly once per logged
// request, including when the handler panicked.
func (i *Interceptor) finish(event *models.Event, status int, responseBody []byte) {
	defer func() {
		if p := recover(); p != nil {
			i.logger.Error("activity completion failed",
				"panic", p,
				"action", event.Action,
				"path", event.Path,
			)
		}
	}()

	event.Settle(status)

	if event.Action == models.ActionLogin {
		if event.Outcome == models.OutcomeFailed {
			event.Action = models.ActionFailedLogin
			event.ActionLabel = classifier.LabelFor(event.Action)
			event.RiskLevel = classifier.RiskFor(event.Action)
		} else if event.UserID.IsNil() {
			event.UserID = userIDFromResponse(responseBody)
		}
	}

	i.metrics.IncCaptured(string(event.Action))
	i.recorder.Enqueue(event)
}

// peekBody reads up to maxBody bytes of a JSON request body and restores r.Body so the
// handler still sees the full stream.
func peekBody(r *http.Request) []byte {
	if r.Body == nil || r.Body == http.NoBody {
		return nil
	}
	if ct := r.Header.Get("Content-Type"); ct != "" && !strings.Contains(strings.ToLower(ct), "json") {
		return nil
	}

	buf, err := io.ReadAll(io.LimitReader(r.Body, maxBody))
	r.Body = struct {
		io.Reader
		io.Closer
	}{io.MultiReader(bytes.NewReader(buf), r.Body), r.Body}
	if err != nil {
		return nil
	}
	return buf
}

func clientIP(r *http.Request) string {
	if ip := requestcontext.ClientIP(r.Context()); ip != "" {
		return ip
	}
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}

func newAuditRef() string {
	return "AUD-" + strings.ToUpper(strings.ReplaceAll(uuid.NewString(), "-", "")[:16])
}
