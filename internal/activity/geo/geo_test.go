package geo

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type mapCache struct {
	mu      sync.Mutex
	entries map[string]string
}

func newMapCache() *mapCache { return &mapCache{entries: map[string]string{}} }

func (c *mapCache) Get(_ context.Context, ip string) (string, bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	v, ok := c.entries[ip]
	return v, ok, nil
}

func (c *mapCache) Set(_ context.Context, ip, location string, _ time.Duration) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries[ip] = location
	return nil
}

func newLookupServer(t *testing.T, calls *atomic.Int32, handler http.HandlerFunc) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		handler(w, r)
	}))
	t.Cleanup(srv.Close)
	return srv
}

func TestHTTPLocator_Locate(t *testing.T) {
	var calls atomic.Int32
	srv := newLookupServer(t, &calls, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/8.8.8.8", r.URL.Path)
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"status":"success","city":"Lagos","regionName":"Lagos","country":"Nigeria"}`))
	})

	l := NewHTTPLocator(srv.URL)
	assert.Equal(t, "Lagos, Nigeria", l.Locate(context.Background(), "8.8.8.8"))
	assert.Equal(t, int32(1), calls.Load())
}

func TestHTTPLocator_PrivateAddressesSkipLookup(t *testing.T) {
	var calls atomic.Int32
	srv := newLookupServer(t, &calls, func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
	})

	l := NewHTTPLocator(srv.URL)
	for _, ip := range []string{"127.0.0.1", "10.1.2.3", "192.168.0.10", "::1", "not-an-ip", ""} {
		assert.Equal(t, UnknownLocation, l.Locate(context.Background(), ip), ip)
	}
	assert.Zero(t, calls.Load())
}

func TestHTTPLocator_FailuresDegrade(t *testing.T) {
	tests := []struct {
		name    string
		handler http.HandlerFunc
	}{
		{"server error", func(w http.ResponseWriter, _ *http.Request) {
			w.WriteHeader(http.StatusInternalServerError)
		}},
		{"failed status", func(w http.ResponseWriter, _ *http.Request) {
			_, _ = w.Write([]byte(`{"status":"fail","message":"reserved range"}`))
		}},
		{"malformed body", func(w http.ResponseWriter, _ *http.Request) {
			_, _ = w.Write([]byte(`{not json`))
		}},
		{"empty location", func(w http.ResponseWriter, _ *http.Request) {
			_, _ = w.Write([]byte(`{"status":"success"}`))
		}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var calls atomic.Int32
			srv := newLookupServer(t, &calls, tt.handler)
			l := NewHTTPLocator(srv.URL)
			assert.Equal(t, UnknownLocation, l.Locate(context.Background(), "1.1.1.1"))
		})
	}
}

func TestHTTPLocator_Timeout(t *testing.T) {
	var calls atomic.Int32
	release := make(chan struct{})
	srv := newLookupServer(t, &calls, func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-release:
		case <-r.Context().Done():
		}
	})
	defer close(release)

	l := NewHTTPLocator(srv.URL, WithTimeout(50*time.Millisecond))
	start := time.Now()
	assert.Equal(t, UnknownLocation, l.Locate(context.Background(), "1.1.1.1"))
	assert.Less(t, time.Since(start), time.Second)
}

func TestHTTPLocator_BreakerOpensAfterConsecutiveFailures(t *testing.T) {
	var calls atomic.Int32
	srv := newLookupServer(t, &calls, func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	})

	var results []string
	l := NewHTTPLocator(srv.URL, WithResultObserver(func(r string) { results = append(results, r) }))
	for range 7 {
		assert.Equal(t, UnknownLocation, l.Locate(context.Background(), "1.1.1.1"))
	}

	assert.Equal(t, int32(5), calls.Load())
	assert.Equal(t, []string{"error", "error", "error", "error", "error", "rejected", "rejected"}, results)
}

func TestHTTPLocator_Cache(t *testing.T) {
	var calls atomic.Int32
	srv := newLookupServer(t, &calls, func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(`{"status":"success","city":"Accra","country":"Ghana"}`))
	})

	cache := newMapCache()
	l := NewHTTPLocator(srv.URL, WithCache(cache, time.Hour))

	assert.Equal(t, "Accra, Ghana", l.Locate(context.Background(), "8.8.4.4"))
	assert.Equal(t, "Accra, Ghana", l.Locate(context.Background(), "8.8.4.4"))
	assert.Equal(t, int32(1), calls.Load())

	cached, found, err := cache.Get(context.Background(), "8.8.4.4")
	require.NoError(t, err)
	assert.True(t, found)
	assert.Equal(t, "Accra, Ghana", cached)
}

func TestStaticLocatorAndIsKnown(t *testing.T) {
	assert.Equal(t, UnknownLocation, StaticLocator{}.Locate(context.Background(), "8.8.8.8"))
	assert.False(t, IsKnown(UnknownLocation))
	assert.False(t, IsKnown(""))
	assert.True(t, IsKnown("Lagos, Nigeria"))
}

func TestFormatLocation(t *testing.T) {
	assert.Equal(t, "Austin, Texas, United States",
		formatLocation(lookupResponse{City: "Austin", RegionName: "Texas", Country: "United States"}))
	assert.Equal(t, "Kenya", formatLocation(lookupResponse{Country: "Kenya"}))
	assert.Equal(t, UnknownLocation, formatLocation(lookupResponse{}))
}
