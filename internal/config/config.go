package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Config aggregates runtime configuration for the service.
type Config struct {
	App          AppConfig
	Postgres     PostgresConfig
	Redis        RedisConfig
	Logger       LoggerConfig
	Auth         AuthConfig
	Notification NotificationConfig
	Dispatch     DispatchConfig
}

// AppConfig controls server level behavior.
type AppConfig struct {
	Name                  string
	Env                   string
	Host                  string
	Port                  string
	Version               string
	RequestTimeoutSeconds int
}

// PostgresConfig holds DB connection values.
type PostgresConfig struct {
	DSN            string
	MaxConns       int32
	MinConns       int32
	RunMigrations  bool
	MigrationsDir  string
	ConnMaxIdleSec int32
	ConnMaxLifeSec int32
}

// RedisConfig holds Redis connection values.
type RedisConfig struct {
	Addr     string
	Password string
	DB       int
}

// LoggerConfig configures logging behavior.
type LoggerConfig struct {
	Level string
}

// AuthConfig defines bearer token parameters.
type AuthConfig struct {
	JWTSecret             string
	AccessTokenTTLMinutes int
}

// NotificationConfig selects the outbound notification sink.
type NotificationConfig struct {
	Backend       string
	ChannelPrefix string
	NATSURL       string
	TimeoutMillis int
	BufferSize    int
}

// DispatchConfig holds SLA targets, queue policy and recurring task intervals.
type DispatchConfig struct {
	FirstResponseTargetMinutes int
	ResolutionTargetMinutes    int
	SweepIntervalSeconds       int
	RedistributeIntervalSec    int
	RedistributeMaxAgeMinutes  int
	AgingBoost                 int
	MetricsWindowMinutes       int
	ReconcileIntervalSeconds   int
	ReconcileGraceSeconds      int
	BillingKeywords            []string
}

// Load reads configuration from environment variables, applying defaults where possible.
func Load() (*Config, error) {
	_ = godotenv.Load()

	redisDB, err := strconv.Atoi(getEnv("REDIS_DB", "0"))
	if err != nil {
		return nil, fmt.Errorf("invalid REDIS_DB: %w", err)
	}

	maxConns := int32(getEnvAsInt("POSTGRES_MAX_CONNS", 10))
	minConns := int32(getEnvAsInt("POSTGRES_MIN_CONNS", 2))
	runMigrations := getEnvAsBool("POSTGRES_RUN_MIGRATIONS", true)
	connMaxIdle := int32(getEnvAsInt("POSTGRES_CONN_MAX_IDLE_SECONDS", 30))
	connMaxLife := int32(getEnvAsInt("POSTGRES_CONN_MAX_LIFE_SECONDS", 300))

	cfg := &Config{
		App: AppConfig{
			Name:                  getEnv("APP_NAME", "case-dispatch-service"),
			Env:                   getEnv("APP_ENV", "development"),
			Host:                  getEnv("APP_HOST", "0.0.0.0"),
			Port:                  getEnv("APP_PORT", "8080"),
			Version:               getEnv("APP_VERSION", "dev"),
			RequestTimeoutSeconds: getEnvAsInt("HTTP_REQUEST_TIMEOUT_SECONDS", 30),
		},
		Postgres: PostgresConfig{
			DSN:            os.Getenv("POSTGRES_DSN"),
			MaxConns:       maxConns,
			MinConns:       minConns,
			RunMigrations:  runMigrations,
			MigrationsDir:  getEnv("POSTGRES_MIGRATIONS_DIR", "migrations"),
			ConnMaxIdleSec: connMaxIdle,
			ConnMaxLifeSec: connMaxLife,
		},
		Redis: RedisConfig{
			Addr:     getEnv("REDIS_ADDR", "127.0.0.1:6379"),
			Password: os.Getenv("REDIS_PASSWORD"),
			DB:       redisDB,
		},
		Logger: LoggerConfig{
			Level: getEnv("LOG_LEVEL", "info"),
		},
		Auth: AuthConfig{
			JWTSecret:             getEnv("AUTH_JWT_SECRET", "dev-secret"),
			AccessTokenTTLMinutes: getEnvAsInt("AUTH_ACCESS_TOKEN_TTL_MINUTES", 60),
		},
		Notification: NotificationConfig{
			Backend:       strings.ToLower(getEnv("NOTIFY_BACKEND", "log")),
			ChannelPrefix: getEnv("NOTIFY_CHANNEL_PREFIX", "casedispatch"),
			NATSURL:       getEnv("NATS_URL", "nats://127.0.0.1:4222"),
			TimeoutMillis: getEnvAsInt("NOTIFY_TIMEOUT_MS", 2000),
			BufferSize:    getEnvAsInt("NOTIFY_BUFFER_SIZE", 256),
		},
		Dispatch: DispatchConfig{
			FirstResponseTargetMinutes: getEnvAsInt("SLA_FIRST_RESPONSE_TARGET_MINUTES", 1440),
			ResolutionTargetMinutes:    getEnvAsInt("SLA_RESOLUTION_TARGET_MINUTES", 2880),
			SweepIntervalSeconds:       getEnvAsInt("SLA_SWEEP_INTERVAL_SECONDS", 300),
			RedistributeIntervalSec:    getEnvAsInt("QUEUE_REDISTRIBUTE_INTERVAL_SECONDS", 600),
			RedistributeMaxAgeMinutes:  getEnvAsInt("QUEUE_REDISTRIBUTE_MAX_AGE_MINUTES", 60),
			AgingBoost:                 getEnvAsInt("QUEUE_AGING_BOOST", 10),
			MetricsWindowMinutes:       getEnvAsInt("QUEUE_METRICS_WINDOW_MINUTES", 60),
			ReconcileIntervalSeconds:   getEnvAsInt("RECONCILE_INTERVAL_SECONDS", 300),
			ReconcileGraceSeconds:      getEnvAsInt("RECONCILE_GRACE_SECONDS", 60),
			BillingKeywords:            getEnvAsList("CLASSIFY_BILLING_KEYWORDS", []string{"bill", "payment", "invoice", "billing"}),
		},
	}

	if cfg.Dispatch.FirstResponseTargetMinutes <= 0 || cfg.Dispatch.ResolutionTargetMinutes <= 0 {
		return nil, fmt.Errorf("sla targets must be positive")
	}

	return cfg, nil
}

// Addr returns the HTTP bind address.
func (a AppConfig) Addr() string {
	return fmt.Sprintf("%s:%s", a.Host, a.Port)
}

// RequestTimeout returns the configured request timeout duration.
func (a AppConfig) RequestTimeout() time.Duration {
	if a.RequestTimeoutSeconds <= 0 {
		return 0
	}
	return time.Duration(a.RequestTimeoutSeconds) * time.Second
}

// Timeout bounds a single outbound notification call.
func (n NotificationConfig) Timeout() time.Duration {
	if n.TimeoutMillis <= 0 {
		return 2 * time.Second
	}
	return time.Duration(n.TimeoutMillis) * time.Millisecond
}

func (d DispatchConfig) SweepInterval() time.Duration {
	return seconds(d.SweepIntervalSeconds, 300)
}

func (d DispatchConfig) RedistributeInterval() time.Duration {
	return seconds(d.RedistributeIntervalSec, 600)
}

func (d DispatchConfig) ReconcileInterval() time.Duration {
	return seconds(d.ReconcileIntervalSeconds, 300)
}

func (d DispatchConfig) ReconcileGrace() time.Duration {
	return seconds(d.ReconcileGraceSeconds, 60)
}

func (d DispatchConfig) MetricsWindow() time.Duration {
	if d.MetricsWindowMinutes <= 0 {
		return time.Hour
	}
	return time.Duration(d.MetricsWindowMinutes) * time.Minute
}

func seconds(v, fallback int) time.Duration {
	if v <= 0 {
		v = fallback
	}
	return time.Duration(v) * time.Second
}

func getEnv(key, fallback string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return fallback
}

func getEnvAsInt(key string, fallback int) int {
	val := os.Getenv(key)
	if val == "" {
		return fallback
	}
	parsed, err := strconv.Atoi(val)
	if err != nil {
		return fallback
	}
	return parsed
}

func getEnvAsBool(key string, fallback bool) bool {
	val := os.Getenv(key)
	if val == "" {
		return fallback
	}
	parsed, err := strconv.ParseBool(val)
	if err != nil {
		return fallback
	}
	return parsed
}

func getEnvAsList(key string, fallback []string) []string {
	val := os.Getenv(key)
	if val == "" {
		return fallback
	}
	var out []string
	for _, part := range strings.Split(val, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, strings.ToLower(part))
		}
	}
	if len(out) == 0 {
		return fallback
	}
	return out
}
