package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"sync/atomic"
	"time"

	"github.com/joho/godotenv"
)

// Environment designations.
const (
	EnvDevelopment = "dev"
	EnvProduction  = "prod"
)

// Server captures process-level configuration. Values are immutable once
// built; reloads produce a new Server swapped in through a Snapshot.
type Server struct {
	Addr        string
	MetricsAddr string
	Environment string

	Database Database
	Auth     Auth
	Redis    Redis
	Kafka    Kafka
	Log      Log
	Usage    Usage
}

// Database configures the pgx pool.
type Database struct {
	URL         string
	PoolSize    int
	MaxOverflow int
	PoolTimeout time.Duration
}

// MaxConns is the pool ceiling: base size plus overflow.
func (d Database) MaxConns() int {
	return d.PoolSize + d.MaxOverflow
}

// Auth configures the API gate.
type Auth struct {
	Environment        string
	APIKeys            []string
	APISecret          string
	RequireHMAC        *bool
	TimestampTolerance time.Duration
	AllowedOrigins     []string
	EnforceOriginCheck bool
}

// HMACRequired resolves the signature policy: an explicit override wins,
// otherwise signatures are required only in production.
func (a Auth) HMACRequired() bool {
	if a.RequireHMAC != nil {
		return *a.RequireHMAC
	}
	return isProduction(a.Environment)
}

// Redis configures the replay guard backend. Empty URL disables it.
type Redis struct {
	URL          string
	PoolSize     int
	MinIdleConns int
	DialTimeout  time.Duration
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
}

// Kafka configures the integrity event sink. No brokers means log-only.
type Kafka struct {
	Brokers        []string
	IntegrityTopic string
}

// Log configures slog.
type Log struct {
	Level  string
	Format string
}

// Usage configures the daily metrics recorder.
type Usage struct {
	QueueSize    int
	WriteTimeout time.Duration
	Location     *time.Location
}

// FromEnv builds a Server config from environment variables, loading a
// local .env first when one exists. Variables already set in the process
// environment win over the file.
func FromEnv() (Server, error) {
	_ = godotenv.Load()
	return fromLookup(os.LookupEnv)
}

// Reload re-reads configuration for a SIGHUP. Values in .env override the
// process environment here so that edits to the file take effect.
func Reload() (Server, error) {
	_ = godotenv.Overload()
	return fromLookup(os.LookupEnv)
}

func fromLookup(lookup func(string) (string, bool)) (Server, error) {
	env := envReader{lookup: lookup}

	environment := strings.ToLower(env.str("ENVIRONMENT", EnvDevelopment))
	cfg := Server{
		Addr:        env.str("HTTP_ADDR", ":8080"),
		MetricsAddr: env.str("METRICS_ADDR", ":9090"),
		Environment: environment,
		Database: Database{
			URL:         NormalizeDatabaseURL(env.str("DATABASE_URL", "")),
			PoolSize:    env.int("DATABASE_POOL_SIZE", 5),
			MaxOverflow: env.int("DATABASE_MAX_OVERFLOW", 5),
			PoolTimeout: env.seconds("DATABASE_POOL_TIMEOUT", 60),
		},
		Auth: Auth{
			Environment:        environment,
			APIKeys:            splitList(env.str("API_KEYS", "")),
			APISecret:          env.str("API_SECRET", ""),
			RequireHMAC:        env.optionalBool("REQUIRE_HMAC"),
			TimestampTolerance: env.seconds("TIMESTAMP_TOLERANCE_SECONDS", 300),
			AllowedOrigins:     splitList(env.str("ALLOWED_ORIGINS", "")),
			EnforceOriginCheck: env.bool("ENFORCE_ORIGIN_CHECK", false),
		},
		Redis: Redis{
			URL:          env.str("REDIS_URL", ""),
			PoolSize:     env.int("REDIS_POOL_SIZE", 10),
			MinIdleConns: env.int("REDIS_MIN_IDLE_CONNS", 1),
			DialTimeout:  env.duration("REDIS_DIAL_TIMEOUT", 2*time.Second),
			ReadTimeout:  env.duration("REDIS_READ_TIMEOUT", 500*time.Millisecond),
			WriteTimeout: env.duration("REDIS_WRITE_TIMEOUT", 500*time.Millisecond),
		},
		Kafka: Kafka{
			Brokers:        splitList(env.str("KAFKA_BROKERS", "")),
			IntegrityTopic: env.str("KAFKA_INTEGRITY_TOPIC", "healthlink.integrity"),
		},
		Log: Log{
			Level:  env.str("LOG_LEVEL", "info"),
			Format: env.str("LOG_FORMAT", "json"),
		},
		Usage: Usage{
			QueueSize:    env.int("USAGE_QUEUE_SIZE", 1024),
			WriteTimeout: env.duration("USAGE_WRITE_TIMEOUT", 5*time.Second),
		},
	}

	tz := env.str("METRICS_TIMEZONE", "America/Sao_Paulo")
	loc, err := time.LoadLocation(tz)
	if err != nil {
		env.errs = append(env.errs, fmt.Sprintf("METRICS_TIMEZONE: %v", err))
		loc = time.UTC
	}
	cfg.Usage.Location = loc

	if len(env.errs) > 0 {
		return Server{}, fmt.Errorf("invalid configuration: %s", strings.Join(env.errs, "; "))
	}
	if err := cfg.Validate(); err != nil {
		return Server{}, err
	}
	return cfg, nil
}

// Validate checks cross-field rules.
func (s Server) Validate() error {
	if s.Database.URL == "" {
		return fmt.Errorf("invalid configuration: DATABASE_URL is required")
	}
	if s.Database.PoolSize < 1 {
		return fmt.Errorf("invalid configuration: DATABASE_POOL_SIZE must be at least 1")
	}
	if s.Database.MaxOverflow < 0 {
		return fmt.Errorf("invalid configuration: DATABASE_MAX_OVERFLOW must not be negative")
	}
	if s.Auth.TimestampTolerance <= 0 {
		return fmt.Errorf("invalid configuration: TIMESTAMP_TOLERANCE_SECONDS must be positive")
	}
	if s.Usage.QueueSize < 1 {
		return fmt.Errorf("invalid configuration: USAGE_QUEUE_SIZE must be at least 1")
	}
	return nil
}

// NormalizeDatabaseURL strips quoting and rewrites SQLAlchemy-style driver
// prefixes to a plain postgresql:// DSN.
func NormalizeDatabaseURL(raw string) string {
	url := strings.Trim(strings.TrimSpace(raw), `"'`)
	for _, prefix := range []string{"postgresql+psycopg_async://", "postgresql+psycopg://", "postgresql+asyncpg://"} {
		if rest, ok := strings.CutPrefix(url, prefix); ok {
			return "postgresql://" + rest
		}
	}
	return url
}

func isProduction(environment string) bool {
	switch strings.ToLower(strings.TrimSpace(environment)) {
	case EnvProduction, "production":
		return true
	}
	return false
}

func splitList(raw string) []string {
	var out []string
	for _, part := range strings.Split(raw, ",") {
		if v := strings.TrimSpace(part); v != "" {
			out = append(out, v)
		}
	}
	return out
}

// Snapshot holds the current Auth settings behind an atomic pointer so the
// gate reads a consistent value per request while reloads swap it whole.
type Snapshot struct {
	current atomic.Pointer[Auth]
}

// NewSnapshot seeds a snapshot.
func NewSnapshot(a Auth) *Snapshot {
	s := &Snapshot{}
	s.Store(a)
	return s
}

// Load returns the active settings.
func (s *Snapshot) Load() Auth {
	return *s.current.Load()
}

// Store replaces the active settings.
func (s *Snapshot) Store(a Auth) {
	a.APIKeys = append([]string(nil), a.APIKeys...)
	a.AllowedOrigins = append([]string(nil), a.AllowedOrigins...)
	s.current.Store(&a)
}

type envReader struct {
	lookup func(string) (string, bool)
	errs   []string
}

func (e *envReader) raw(key string) (string, bool) {
	v, ok := e.lookup(key)
	if !ok {
		return "", false
	}
	v = strings.TrimSpace(v)
	if v == "" {
		return "", false
	}
	return v, true
}

func (e *envReader) str(key, def string) string {
	if v, ok := e.raw(key); ok {
		return v
	}
	return def
}

func (e *envReader) int(key string, def int) int {
	v, ok := e.raw(key)
	if !ok {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		e.errs = append(e.errs, fmt.Sprintf("%s: not an integer", key))
		return def
	}
	return n
}

func (e *envReader) seconds(key string, def int) time.Duration {
	return time.Duration(e.int(key, def)) * time.Second
}

func (e *envReader) duration(key string, def time.Duration) time.Duration {
	v, ok := e.raw(key)
	if !ok {
		return def
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		e.errs = append(e.errs, fmt.Sprintf("%s: not a duration", key))
		return def
	}
	return d
}

func (e *envReader) bool(key string, def bool) bool {
	if b := e.optionalBool(key); b != nil {
		return *b
	}
	return def
}

func (e *envReader) optionalBool(key string) *bool {
	v, ok := e.raw(key)
	if !ok {
		return nil
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		e.errs = append(e.errs, fmt.Sprintf("%s: not a boolean", key))
		return nil
	}
	return &b
}
