package config

import (
	"fmt"
	"log"
	"net"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/pflag"

	"shipment-tracker/internal/logx"
)

// Storage drivers.
const (
	StoragePostgres = "postgres"
	StorageMemory   = "memory"
)

// Config stores service settings.
type Config struct {
	Port        int
	Storage     string
	LogLevel    string
	DB          DB
	Kafka       Kafka
	Redis       Redis
	Tracking    Tracking
	Distributor Distributor
	RateLimit   RateLimit
	Pprof       Pprof
}

// DB stores Postgres connection settings.
type DB struct {
	Host        string
	Port        string
	User        string
	Pass        string
	Name        string
	AutoMigrate bool
}

// DSN returns a pgx connection string.
func (d DB) DSN() string {
	u := url.URL{
		Scheme:   "postgres",
		User:     url.UserPassword(d.User, d.Pass),
		Host:     d.Host + ":" + d.Port,
		Path:     d.Name,
		RawQuery: "sslmode=disable",
	}
	return u.String()
}

// Kafka stores broker settings. Empty Brokers disables Kafka.
type Kafka struct {
	Brokers        []string
	GroupID        string
	LocationsTopic string
	EventsTopic    string
}

// Redis stores snapshot cache settings. Empty Addr disables the cache.
type Redis struct {
	Addr     string
	Password string
	DB       int
	TTL      time.Duration
}

// Tracking stores tunables of the tracking core.
type Tracking struct {
	FixFreshness           time.Duration
	ClockSkew              time.Duration
	WaypointDistanceMeters float64
	WaypointInterval       time.Duration
	PollInterval           time.Duration
	OperationTimeout       time.Duration
}

// Distributor stores real-time fan-out settings.
type Distributor struct {
	Buffer int
}

// RateLimit stores ingest rate limiting settings.
type RateLimit struct {
	Enabled    bool
	Rate       float64
	Burst      int
	TTL        time.Duration
	MaxBuckets int
}

// Pprof stores debug listener settings. Empty Addr disables profiling.
type Pprof struct {
	Addr string
	User string
	Pass string
}

// Load reads configuration in order: .env (if present) → environment → flags.
func Load() (*Config, error) {
	if err := godotenv.Load(".env"); err != nil {
		log.Printf("warning: .env not loaded: %v", err)
	}

	cfg := &Config{
		Port:        DefaultPort(),
		Storage:     StoragePostgres,
		LogLevel:    defaultLogLevel,
		DB:          DefaultDB(),
		Kafka:       DefaultKafka(),
		Redis:       DefaultRedis(),
		Tracking:    DefaultTracking(),
		Distributor: DefaultDistributor(),
		RateLimit:   DefaultRateLimit(),
	}

	r := envReader{}
	r.int("PORT", &cfg.Port)
	r.str("STORAGE_DRIVER", &cfg.Storage)
	r.str("LOG_LEVEL", &cfg.LogLevel)

	r.str("POSTGRES_HOST", &cfg.DB.Host)
	r.str("POSTGRES_PORT", &cfg.DB.Port)
	r.str("POSTGRES_USER", &cfg.DB.User)
	r.str("POSTGRES_PASSWORD", &cfg.DB.Pass)
	r.str("POSTGRES_DB", &cfg.DB.Name)
	r.bool("DB_AUTO_MIGRATE", &cfg.DB.AutoMigrate)

	r.list("KAFKA_BROKERS", &cfg.Kafka.Brokers)
	r.str("KAFKA_GROUP_ID", &cfg.Kafka.GroupID)
	r.str("KAFKA_LOCATIONS_TOPIC", &cfg.Kafka.LocationsTopic)
	r.str("KAFKA_EVENTS_TOPIC", &cfg.Kafka.EventsTopic)

	r.str("REDIS_ADDR", &cfg.Redis.Addr)
	r.str("REDIS_PASSWORD", &cfg.Redis.Password)
	r.int("REDIS_DB", &cfg.Redis.DB)
	r.duration("REDIS_TTL", &cfg.Redis.TTL)

	r.duration("TRACKING_FIX_FRESHNESS", &cfg.Tracking.FixFreshness)
	r.duration("TRACKING_CLOCK_SKEW", &cfg.Tracking.ClockSkew)
	r.float("TRACKING_WAYPOINT_MIN_DISTANCE_M", &cfg.Tracking.WaypointDistanceMeters)
	r.duration("TRACKING_WAYPOINT_MIN_INTERVAL", &cfg.Tracking.WaypointInterval)
	r.duration("TRACKING_POLL_INTERVAL", &cfg.Tracking.PollInterval)
	r.duration("TRACKING_OPERATION_TIMEOUT", &cfg.Tracking.OperationTimeout)

	r.int("DISTRIBUTOR_BUFFER", &cfg.Distributor.Buffer)

	r.bool("RATE_LIMIT_ENABLED", &cfg.RateLimit.Enabled)
	r.float("RATE_LIMIT_RATE", &cfg.RateLimit.Rate)
	r.int("RATE_LIMIT_BURST", &cfg.RateLimit.Burst)
	r.duration("RATE_LIMIT_TTL", &cfg.RateLimit.TTL)
	r.int("RATE_LIMIT_MAX_BUCKETS", &cfg.RateLimit.MaxBuckets)

	r.str("PPROF_ADDR", &cfg.Pprof.Addr)
	r.str("PPROF_USER", &cfg.Pprof.User)
	r.str("PPROF_PASSWORD", &cfg.Pprof.Pass)

	if r.err != nil {
		return nil, r.err
	}

	pflag.IntVarP(&cfg.Port, "port", "p", cfg.Port, "port to listen on")
	pflag.StringVar(&cfg.Storage, "storage", cfg.Storage, "storage driver: postgres or memory")
	if err := pflag.CommandLine.Parse(os.Args[1:]); err != nil {
		return nil, fmt.Errorf("parse flags: %w", err)
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) validate() error {
	if c.Port <= 0 || c.Port > 65535 {
		return fmt.Errorf("invalid port: %d", c.Port)
	}
	if c.Storage != StoragePostgres && c.Storage != StorageMemory {
		return fmt.Errorf("invalid storage driver: %q", c.Storage)
	}
	if _, err := logx.ParseLevel(c.LogLevel); err != nil {
		return fmt.Errorf("invalid LOG_LEVEL: %w", err)
	}
	if p, err := strconv.Atoi(c.DB.Port); err != nil || p <= 0 || p > 65535 {
		return fmt.Errorf("invalid POSTGRES_PORT: %q", c.DB.Port)
	}
	if len(c.Kafka.Brokers) > 0 && c.Kafka.LocationsTopic != "" && c.Kafka.GroupID == "" {
		return fmt.Errorf("KAFKA_GROUP_ID is required with KAFKA_LOCATIONS_TOPIC")
	}
	t := c.Tracking
	if t.FixFreshness <= 0 || t.ClockSkew < 0 || t.WaypointDistanceMeters < 0 ||
		t.WaypointInterval < 0 || t.PollInterval <= 0 || t.OperationTimeout <= 0 {
		return fmt.Errorf("invalid tracking settings: %+v", t)
	}
	if c.Distributor.Buffer <= 0 {
		return fmt.Errorf("invalid DISTRIBUTOR_BUFFER: %d", c.Distributor.Buffer)
	}
	if c.Redis.TTL <= 0 {
		return fmt.Errorf("invalid REDIS_TTL: %s", c.Redis.TTL)
	}
	if c.Pprof.Addr != "" {
		if _, _, err := net.SplitHostPort(c.Pprof.Addr); err != nil {
			return fmt.Errorf("invalid PPROF_ADDR %q: %w", c.Pprof.Addr, err)
		}
	}
	return nil
}

// envReader parses environment variables, keeping the first error.
type envReader struct{ err error }

func (r *envReader) lookup(key string) (string, bool) {
	if r.err != nil {
		return "", false
	}
	v := strings.TrimSpace(os.Getenv(key))
	return v, v != ""
}

func (r *envReader) fail(key, v string, err error) {
	r.err = fmt.Errorf("invalid %s %q: %w", key, v, err)
}

func (r *envReader) str(key string, dst *string) {
	if v, ok := r.lookup(key); ok {
		*dst = v
	}
}

func (r *envReader) list(key string, dst *[]string) {
	v, ok := r.lookup(key)
	if !ok {
		return
	}
	var out []string
	for _, part := range strings.Split(v, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	*dst = out
}

func (r *envReader) int(key string, dst *int) {
	if v, ok := r.lookup(key); ok {
		n, err := strconv.Atoi(v)
		if err != nil {
			r.fail(key, v, err)
			return
		}
		*dst = n
	}
}

func (r *envReader) float(key string, dst *float64) {
	if v, ok := r.lookup(key); ok {
		f, err := strconv.ParseFloat(v, 64)
		if err != nil {
			r.fail(key, v, err)
			return
		}
		*dst = f
	}
}

func (r *envReader) bool(key string, dst *bool) {
	if v, ok := r.lookup(key); ok {
		b, err := strconv.ParseBool(v)
		if err != nil {
			r.fail(key, v, err)
			return
		}
		*dst = b
	}
}

func (r *envReader) duration(key string, dst *time.Duration) {
	if v, ok := r.lookup(key); ok {
		d, err := time.ParseDuration(v)
		if err != nil {
			r.fail(key, v, err)
			return
		}
		*dst = d
	}
}
