package geo

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	gobreaker "github.com/sony/gobreaker/v2"
)

const (
	defaultTimeout  = 2 * time.Second
	maxResponseSize = 16 << 10
	breakerName     = "geo-lookup"
)

// lookupResponse is the ip-api.com compatible response body.
type lookupResponse struct {
	Status     string `json:"status"`
	Message    string `json:"message"`
	City       string `json:"city"`
	RegionName string `json:"regionName"`
	Country    string `json:"country"`
}

var errLookupFailed = errors.New("geo lookup failed")

// HTTPLocator calls an ip-api.com style endpoint ({baseURL}/{ip}) behind a circuit
// breaker. An optional Cache short-circuits repeated lookups.
type HTTPLocator struct {
	baseURL  string
	client   *http.Client
	timeout  time.Duration
	cache    Cache
	cacheTTL time.Duration
	breaker  *gobreaker.CircuitBreaker[string]
	logger   *slog.Logger
	onResult func(result string)
}

// Option configures an HTTPLocator.
type Option func(*HTTPLocator)

func WithHTTPClient(c *http.Client) Option {
	return func(l *HTTPLocator) { l.client = c }
}

func WithTimeout(d time.Duration) Option {
	return func(l *HTTPLocator) {
		if d > 0 {
			l.timeout = d
		}
	}
}

func WithCache(c Cache, ttl time.Duration) Option {
	return func(l *HTTPLocator) {
		l.cache = c
		l.cacheTTL = ttl
	}
}

func WithLogger(logger *slog.Logger) Option {
	return func(l *HTTPLocator) { l.logger = logger }
}

// WithResultObserver receives "hit", "miss", "error" or "rejected" for every lookup.
func WithResultObserver(fn func(result string)) Option {
	return func(l *HTTPLocator) { l.onResult = fn }
}

func NewHTTPLocator(baseURL string, opts ...Option) *HTTPLocator {
	l := &HTTPLocator{
		baseURL: strings.TrimRight(baseURL, "/"),
		client:  &http.Client{},
		timeout: defaultTimeout,
		logger:  slog.Default(),
	}
	for _, opt := range opts {
		opt(l)
	}

	l.breaker = gobreaker.NewCircuitBreaker[string](gobreaker.Settings{
		Name:        breakerName,
		MaxRequests: 1,
		Interval:    time.Minute,
		Timeout:     30 * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= 5
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			l.logger.Warn("circuit breaker state change",
				"breaker", name,
				"from", from.String(),
				"to", to.String(),
			)
		},
	})
	return l
}

// Locate never fails; it returns UnknownLocation on any error, timeout or open breaker.
func (l *HTTPLocator) Locate(ctx context.Context, ip string) string {
	addr, ok := routable(ip)
	if !ok {
		return UnknownLocation
	}
	key := addr.String()

	if l.cache != nil {
		if cached, found, err := l.cache.Get(ctx, key); err == nil && found {
			l.observe("hit")
			return cached
		} else if err != nil {
			l.logger.Debug("geo cache read failed", "error", err)
		}
	}

	ctx, cancel := context.WithTimeout(ctx, l.timeout)
	defer cancel()

	location, err := l.breaker.Execute(func() (string, error) {
		return l.fetch(ctx, key)
	})
	if err != nil {
		if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
			l.observe("rejected")
		} else {
			l.observe("error")
			l.logger.Debug("geo lookup failed", "ip", key, "error", err)
		}
		return UnknownLocation
	}
	l.observe("miss")

	if l.cache != nil {
		if err := l.cache.Set(ctx, key, location, l.cacheTTL); err != nil {
			l.logger.Debug("geo cache write failed", "error", err)
		}
	}
	return location
}

func (l *HTTPLocator) fetch(ctx context.Context, ip string) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, l.baseURL+"/"+ip, nil)
	if err != nil {
		return "", fmt.Errorf("build geo request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := l.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("geo request: %w", err)
	}
	defer resp.Body.Close() //nolint:errcheck // read-only body

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("%w: status %d", errLookupFailed, resp.StatusCode)
	}

	var body lookupResponse
	if err := json.NewDecoder(io.LimitReader(resp.Body, maxResponseSize)).Decode(&body); err != nil {
		return "", fmt.Errorf("decode geo response: %w", err)
	}
	if body.Status != "" && body.Status != "success" {
		return "", fmt.Errorf("%w: %s", errLookupFailed, body.Message)
	}
	return formatLocation(body), nil
}

func (l *HTTPLocator) observe(result string) {
	if l.onResult != nil {
		l.onResult(result)
	}
}

// formatLocation renders "City, Region, Country", skipping empty parts and a region that
// repeats the city.
func formatLocation(r lookupResponse) string {
	parts := make([]string, 0, 3)
	if r.City != "" {
		parts = append(parts, r.City)
	}
	if r.RegionName != "" && r.RegionName != r.City {
		parts = append(parts, r.RegionName)
	}
	if r.Country != "" {
		parts = append(parts, r.Country)
	}
	if len(parts) == 0 {
		return UnknownLocation
	}
	return strings.Join(parts, ", ")
}
