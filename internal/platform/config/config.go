package config

import (
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"
)

// Server captures process level configuration.
type Server struct {
	Addr          string
	Environment   string
	LogLevel      slog.Level
	JWTSigningKey string
	JWTIssuer     string
	// UpstreamURL is the application whose traffic is captured. Requests outside
	// /activity, /health and /metrics are proxied to it when set.
	UpstreamURL string

	Database DatabaseConfig
	Redis    RedisConfig
	Kafka    KafkaConfig
	Activity ActivityConfig
	Geo      GeoConfig
}

// DatabaseConfig selects PostgreSQL stores. An empty URL keeps everything in memory.
type DatabaseConfig struct {
	URL             string
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration
	Migrate         bool
}

// RedisConfig backs the geolocation cache. An empty URL disables caching.
type RedisConfig struct {
	URL          string
	PoolSize     int
	MinIdleConns int
	DialTimeout  time.Duration
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
}

// KafkaConfig enables the security signal notifier when Brokers is set.
type KafkaConfig struct {
	Brokers     string
	ClientID    string
	SignalTopic string
	Acks        string
}

type ActivityConfig struct {
	QueueSize          int
	Workers            int
	WriteTimeout       time.Duration
	Timezone           *time.Location
	SerializeDetection bool
	ExportLimit        int
	TrustedProxies     string
}

type GeoConfig struct {
	LookupURL     string
	LookupTimeout time.Duration
	CacheTTL      time.Duration
}

// Defaults.
var (
	DefaultAddr               = ":8080"
	DefaultQueueSize          = 1024
	DefaultWorkers            = 4
	DefaultWriteTimeout       = 5 * time.Second
	DefaultGeoLookupTimeout   = 2 * time.Second
	DefaultGeoCacheTTL        = 24 * time.Hour
	DefaultExportLimit        = 10000
	DefaultSignalTopic        = "reloop.security-signals"
	developmentJWTSigningKey  = "dev-secret-key-change-in-production"
	developmentEnvironmentTag = "development"
)

// FromEnv builds a Server config from environment variables so main stays lean.
// Malformed values are reported rather than silently replaced by defaults.
func FromEnv() (Server, error) {
	env := envReader{}
	cfg := Server{
		Addr:          env.str("RELOOP_ADDR", DefaultAddr),
		Environment:   env.str("ENVIRONMENT", developmentEnvironmentTag),
		LogLevel:      env.level("LOG_LEVEL", slog.LevelInfo),
		JWTSigningKey: env.str("JWT_SIGNING_KEY", ""),
		JWTIssuer:     env.str("JWT_ISSUER", "reloop"),
		UpstreamURL:   env.str("UPSTREAM_URL", ""),
		Database: DatabaseConfig{
			URL:             env.str("DATABASE_URL", ""),
			MaxOpenConns:    env.int("DATABASE_MAX_OPEN_CONNS", 25),
			MaxIdleConns:    env.int("DATABASE_MAX_IDLE_CONNS", 5),
			ConnMaxLifetime: env.duration("DATABASE_CONN_MAX_LIFETIME", 5*time.Minute),
			Migrate:         env.bool("DATABASE_MIGRATE", true),
		},
		Redis: RedisConfig{
			URL:          env.str("REDIS_URL", ""),
			PoolSize:     env.int("REDIS_POOL_SIZE", 10),
			MinIdleConns: env.int("REDIS_MIN_IDLE_CONNS", 2),
			DialTimeout:  env.duration("REDIS_DIAL_TIMEOUT", 5*time.Second),
			ReadTimeout:  env.duration("REDIS_READ_TIMEOUT", 3*time.Second),
			WriteTimeout: env.duration("REDIS_WRITE_TIMEOUT", 3*time.Second),
		},
		Kafka: KafkaConfig{
			Brokers:     env.str("KAFKA_BROKERS", ""),
			ClientID:    env.str("KAFKA_CLIENT_ID", "reloop"),
			SignalTopic: env.str("KAFKA_SIGNAL_TOPIC", DefaultSignalTopic),
			Acks:        env.str("KAFKA_ACKS", "all"),
		},
		Activity: ActivityConfig{
			QueueSize:          env.int("ACTIVITY_QUEUE_SIZE", DefaultQueueSize),
			Workers:            env.int("ACTIVITY_WORKERS", DefaultWorkers),
			WriteTimeout:       env.duration("ACTIVITY_WRITE_TIMEOUT", DefaultWriteTimeout),
			Timezone:           env.location("ACTIVITY_TIMEZONE", time.Local),
			SerializeDetection: env.bool("ACTIVITY_SERIALIZE_DETECTION", false),
			ExportLimit:        env.int("ACTIVITY_EXPORT_LIMIT", DefaultExportLimit),
			TrustedProxies:     env.str("TRUSTED_PROXIES", ""),
		},
		Geo: GeoConfig{
			LookupURL:     env.str("GEO_LOOKUP_URL", ""),
			LookupTimeout: env.duration("GEO_LOOKUP_TIMEOUT", DefaultGeoLookupTimeout),
			CacheTTL:      env.duration("GEO_CACHE_TTL", DefaultGeoCacheTTL),
		},
	}
	if len(env.errs) > 0 {
		return Server{}, fmt.Errorf("invalid configuration: %s", strings.Join(env.errs, "; "))
	}

	if cfg.JWTSigningKey == "" {
		if !cfg.IsDevelopment() {
			return Server{}, fmt.Errorf("invalid configuration: JWT_SIGNING_KEY is required outside development")
		}
		cfg.JWTSigningKey = developmentJWTSigningKey
	}
	return cfg, nil
}

func (s Server) IsDevelopment() bool {
	return s.Environment == developmentEnvironmentTag || s.Environment == "dev" || s.Environment == "local"
}

// envReader collects parse errors so every bad variable is reported at once.
type envReader struct {
	errs []string
}

func (e *envReader) get(key string) (string, bool) {
	v, ok := os.LookupEnv(key)
	v = strings.TrimSpace(v)
	return v, ok && v != ""
}

func (e *envReader) fail(key, raw, want string) {
	e.errs = append(e.errs, fmt.Sprintf("%s=%q is not a valid %s", key, raw, want))
}

func (e *envReader) str(key, def string) string {
	if v, ok := e.get(key); ok {
		return v
	}
	return def
}

func (e *envReader) int(key string, def int) int {
	raw, ok := e.get(key)
	if !ok {
		return def
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n <= 0 {
		e.fail(key, raw, "positive integer")
		return def
	}
	return n
}

func (e *envReader) bool(key string, def bool) bool {
	raw, ok := e.get(key)
	if !ok {
		return def
	}
	b, err := strconv.ParseBool(raw)
	if err != nil {
		e.fail(key, raw, "boolean")
		return def
	}
	return b
}

func (e *envReader) duration(key string, def time.Duration) time.Duration {
	raw, ok := e.get(key)
	if !ok {
		return def
	}
	d, err := time.ParseDuration(raw)
	if err != nil || d <= 0 {
		e.fail(key, raw, "positive duration")
		return def
	}
	return d
}

func (e *envReader) location(key string, def *time.Location) *time.Location {
	raw, ok := e.get(key)
	if !ok {
		return def
	}
	loc, err := time.LoadLocation(raw)
	if err != nil {
		e.fail(key, raw, "IANA time zone")
		return def
	}
	return loc
}

func (e *envReader) level(key string, def slog.Level) slog.Level {
	raw, ok := e.get(key)
	if !ok {
		return def
	}
	var lvl slog.Level
	if err := lvl.UnmarshalText([]byte(raw)); err != nil {
		e.fail(key, raw, "log level")
		return def
	}
	return lvl
}
