package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

type AppConfig struct {
	App          AppSettings          `mapstructure:"app"`
	Postgres     PostgresSettings     `mapstructure:"postgres"`
	Redis        RedisSettings        `mapstructure:"redis"`
	Kafka        KafkaSettings        `mapstructure:"kafka"`
	Telemetry    TelemetrySettings    `mapstructure:"telemetry"`
	RateLimit    RateLimitSettings    `mapstructure:"rate_limit"`
	Argon2       Argon2Settings       `mapstructure:"argon2"`
	Registration RegistrationSettings `mapstructure:"registration"`
	Downstream   DownstreamSettings   `mapstructure:"downstream"`
}

type AppSettings struct {
	Name           string   `mapstructure:"name"`
	Env            string   `mapstructure:"env"`
	Host           string   `mapstructure:"host"`
	Port           int      `mapstructure:"port"`
	AllowedOrigins []string `mapstructure:"allowed_origins"`
}

type PostgresSettings struct {
	Host              string        `mapstructure:"host"`
	Port              int           `mapstructure:"port"`
	User              string        `mapstructure:"user"`
	Password          string        `mapstructure:"password"`
	Database          string        `mapstructure:"database"`
	Schema            string        `mapstructure:"schema"`
	SSLMode           string        `mapstructure:"ssl_mode"`
	MaxConns          int32         `mapstructure:"max_conns"`
	MinConns          int32         `mapstructure:"min_conns"`
	MaxConnLifetime   time.Duration `mapstructure:"max_conn_lifetime"`
	MaxConnIdleTime   time.Duration `mapstructure:"max_conn_idle_time"`
	HealthCheckPeriod time.Duration `mapstructure:"health_check_period"`
}

// RedisSettings configures Redis connection and TLS
type RedisSettings struct {
	Host        string        `mapstructure:"host"`
	Port        int           `mapstructure:"port"`
	DB          int           `mapstructure:"db"`
	Password    string        `mapstructure:"password"`
	TLSEnabled  bool          `mapstructure:"tls_enabled"`
	CachePrefix string        `mapstructure:"cache_prefix"`
	CacheTTL    time.Duration `mapstructure:"cache_ttl"`
}

// KafkaSettings configures Kafka producer
type KafkaSettings struct {
	Brokers     []string `mapstructure:"brokers"`
	TopicPrefix string   `mapstructure:"topic_prefix"`
	Async       bool     `mapstructure:"async"`
}

// RateLimitSettings configures rate limiting windows and max attempts per endpoint
type RateLimitSettings struct {
	WindowDuration      time.Duration `mapstructure:"window_duration"`
	RegisterMaxAttempts int           `mapstructure:"register_max_attempts"`
}

// Argon2Settings configures Argon2id password hashing parameters
type Argon2Settings struct {
	Memory      uint32 `mapstructure:"memory"`
	Iterations  uint32 `mapstructure:"iterations"`
	Parallelism uint8  `mapstructure:"parallelism"`
	SaltLength  uint32 `mapstructure:"salt_length"`
	KeyLength   uint32 `mapstructure:"key_length"`
}

type TelemetrySettings struct {
	TracingEnabled bool    `mapstructure:"tracing_enabled"`
	OTLPEndpoint   string  `mapstructure:"otlp_endpoint"`
	ServiceName    string  `mapstructure:"service_name"`
	SamplingRate   float64 `mapstructure:"sampling_rate"`
}

// RegistrationSettings tunes the account registration saga.
type RegistrationSettings struct {
	BaseDomain               string        `mapstructure:"base_domain"`
	MaxSubdomainAttempts     int           `mapstructure:"max_subdomain_attempts"`
	MaxUsernameAttempts      int           `mapstructure:"max_username_attempts"`
	TrialPeriod              time.Duration `mapstructure:"trial_period"`
	DefaultTimezone          string        `mapstructure:"default_timezone"`
	DefaultLanguage          string        `mapstructure:"default_language"`
	DefaultMaxUsers          int           `mapstructure:"default_max_users"`
	DefaultMaxStorageMB      int64         `mapstructure:"default_max_storage_mb"`
	RequireEmailVerification bool          `mapstructure:"require_email_verification"`
	CompensationTimeout      time.Duration `mapstructure:"compensation_timeout"`
	SagaTimeout              time.Duration `mapstructure:"saga_timeout"`
}

// DownstreamSettings groups the HTTP clients for sibling services.
type DownstreamSettings struct {
	Tenants ServiceClientSettings `mapstructure:"tenants"`
	Users   ServiceClientSettings `mapstructure:"users"`
}

// ServiceClientSettings configures one resilient service client.
type ServiceClientSettings struct {
	BaseURL                 string        `mapstructure:"base_url"`
	ServiceName             string        `mapstructure:"service_name"`
	ConnectTimeout          time.Duration `mapstructure:"connect_timeout"`
	ReadTimeout             time.Duration `mapstructure:"read_timeout"`
	RetryMaxAttempts        int           `mapstructure:"retry_max_attempts"`
	RetryInitialBackoff     time.Duration `mapstructure:"retry_initial_backoff"`
	RetryMaxBackoff         time.Duration `mapstructure:"retry_max_backoff"`
	BreakerFailureThreshold uint32        `mapstructure:"breaker_failure_threshold"`
	BreakerOpenTimeout      time.Duration `mapstructure:"breaker_open_timeout"`
	DegradationPolicy       string        `mapstructure:"degradation_policy"`
}

func Load() (*AppConfig, error) {
	v := viper.New()

	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.SetEnvPrefix("IAM")

	setDefaults(v)

	keys := []string{
		"app.name",
		"app.env",
		"app.host",
		"app.port",
		"app.allowed_origins",
		"postgres.host",
		"postgres.port",
		"postgres.user",
		"postgres.password",
		"postgres.database",
		"postgres.schema",
		"postgres.ssl_mode",
		"postgres.max_conns",
		"postgres.min_conns",
		"postgres.max_conn_lifetime",
		"postgres.max_conn_idle_time",
		"postgres.health_check_period",
		"redis.host",
		"redis.port",
		"redis.db",
		"redis.password",
		"redis.tls_enabled",
		"redis.cache_prefix",
		"redis.cache_ttl",
		"kafka.brokers",
		"kafka.topic_prefix",
		"kafka.async",
		"telemetry.tracing_enabled",
		"telemetry.otlp_endpoint",
		"telemetry.service_name",
		"telemetry.sampling_rate",
		"rate_limit.window_duration",
		"rate_limit.register_max_attempts",
		"argon2.memory",
		"argon2.iterations",
		"argon2.parallelism",
		"argon2.salt_length",
		"argon2.key_length",
		"registration.base_domain",
		"registration.max_subdomain_attempts",
		"registration.max_username_attempts",
		"registration.trial_period",
		"registration.default_timezone",
		"registration.default_language",
		"registration.default_max_users",
		"registration.default_max_storage_mb",
		"registration.require_email_verification",
		"registration.compensation_timeout",
		"registration.saga_timeout",
	}
	for _, svc := range []string{"tenants", "users"} {
		for _, field := range downstreamFields {
			keys = append(keys, "downstream."+svc+"."+field)
		}
	}

	if err := bindEnvs(v, keys); err != nil {
		return nil, err
	}

	v.AutomaticEnv()

	var cfg AppConfig
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}

	return &cfg, nil
}

var downstreamFields = []string{
	"base_url",
	"service_name",
	"connect_timeout",
	"read_timeout",
	"retry_max_attempts",
	"retry_initial_backoff",
	"retry_max_backoff",
	"breaker_failure_threshold",
	"breaker_open_timeout",
	"degradation_policy",
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("app.name", "auth-service")
	v.SetDefault("app.env", "development")
	v.SetDefault("app.host", "0.0.0.0")
	v.SetDefault("app.port", 8080)
	v.SetDefault("app.allowed_origins", []string{"*"})

	v.SetDefault("postgres.host", "localhost")
	v.SetDefault("postgres.port", 5432)
	v.SetDefault("postgres.user", "auth")
	v.SetDefault("postgres.password", "auth_password")
	v.SetDefault("postgres.database", "crm_auth")
	v.SetDefault("postgres.schema", "auth")
	v.SetDefault("postgres.ssl_mode", "disable")
	v.SetDefault("postgres.max_conns", 10)
	v.SetDefault("postgres.min_conns", 2)
	v.SetDefault("postgres.max_conn_lifetime", "60m")
	v.SetDefault("postgres.max_conn_idle_time", "15m")
	v.SetDefault("postgres.health_check_period", "30s")

	v.SetDefault("redis.host", "localhost")
	v.SetDefault("redis.port", 6379)
	v.SetDefault("redis.db", 0)
	v.SetDefault("redis.password", "")
	v.SetDefault("redis.tls_enabled", false)
	v.SetDefault("redis.cache_prefix", "auth:downstream")
	v.SetDefault("redis.cache_ttl", "10m")

	v.SetDefault("kafka.brokers", []string{"localhost:9092"})
	v.SetDefault("kafka.topic_prefix", "crm")
	v.SetDefault("kafka.async", true)

	v.SetDefault("telemetry.tracing_enabled", false)
	v.SetDefault("telemetry.otlp_endpoint", "localhost:4318")
	v.SetDefault("telemetry.service_name", "auth-service")
	v.SetDefault("telemetry.sampling_rate", 1.0)

	v.SetDefault("rate_limit.window_duration", "1h")
	v.SetDefault("rate_limit.register_max_attempts", 5)

	v.SetDefault("argon2.memory", 65536) // 64 MB
	v.SetDefault("argon2.iterations", 3)
	v.SetDefault("argon2.parallelism", 4)
	v.SetDefault("argon2.salt_length", 16)
	v.SetDefault("argon2.key_length", 32)

	v.SetDefault("registration.base_domain", "crm.example.com")
	v.SetDefault("registration.max_subdomain_attempts", 5)
	v.SetDefault("registration.max_username_attempts", 5)
	v.SetDefault("registration.trial_period", "336h")
	v.SetDefault("registration.default_timezone", "UTC")
	v.SetDefault("registration.default_language", "en")
	v.SetDefault("registration.default_max_users", 5)
	v.SetDefault("registration.default_max_storage_mb", 1024)
	v.SetDefault("registration.require_email_verification", true)
	v.SetDefault("registration.compensation_timeout", "30s")
	v.SetDefault("registration.saga_timeout", "180s")

	setDownstreamDefaults(v, "tenants", "http://localhost:8081/api/v1", "tenants-service")
	setDownstreamDefaults(v, "users", "http://localhost:8082/api/v1", "users-service")
}

func setDownstreamDefaults(v *viper.Viper, key, baseURL, serviceName string) {
	prefix := "downstream." + key + "."
	v.SetDefault(prefix+"base_url", baseURL)
	v.SetDefault(prefix+"service_name", serviceName)
	v.SetDefault(prefix+"connect_timeout", "10s")
	v.SetDefault(prefix+"read_timeout", "30s")
	v.SetDefault(prefix+"retry_max_attempts", 3)
	v.SetDefault(prefix+"retry_initial_backoff", "1s")
	v.SetDefault(prefix+"retry_max_backoff", "5s")
	v.SetDefault(prefix+"breaker_failure_threshold", 5)
	v.SetDefault(prefix+"breaker_open_timeout", "30s")
	v.SetDefault(prefix+"degradation_policy", "lenient")
}

func bindEnvs(v *viper.Viper, keys []string) error {
	for _, key := range keys {
		envKey := strings.ToUpper(strings.ReplaceAll(key, ".", "_"))
		if err := v.BindEnv(key, "IAM_"+envKey, envKey); err != nil {
			return fmt.Errorf("bind env for %s: %w", key, err)
		}
	}
	return nil
}
