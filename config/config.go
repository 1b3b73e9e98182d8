package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/kelseyhightower/envconfig"
	"github.com/spf13/viper"

	"github.com/jwalitptl/vip-booking/internal/model"
	"github.com/jwalitptl/vip-booking/pkg/messaging/redis"
	"github.com/jwalitptl/vip-booking/pkg/worker"
)

type DatabaseConfig struct {
	Host            string        `mapstructure:"host"`
	Port            int           `mapstructure:"port"`
	User            string        `mapstructure:"user"`
	Password        string        `mapstructure:"password"`
	Name            string        `mapstructure:"name"`
	SSLMode         string        `mapstructure:"sslmode"`
	MaxOpenConns    int           `mapstructure:"max_open_conns"`
	MaxIdleConns    int           `mapstructure:"max_idle_conns"`
	ConnMaxLifetime time.Duration `mapstructure:"conn_max_lifetime"`
}

// DSN renders the lib/pq keyword/value connection string.
func (c DatabaseConfig) DSN() string {
	return fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		c.Host, c.Port, c.User, c.Password, c.Name, c.SSLMode,
	)
}

type ServerConfig struct {
	Port            int           `mapstructure:"port"`
	Mode            string        `mapstructure:"mode"`
	ReadTimeout     time.Duration `mapstructure:"read_timeout"`
	WriteTimeout    time.Duration `mapstructure:"write_timeout"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout"`
	MaxHeaderBytes  int           `mapstructure:"max_header_bytes"`
	RequestTimeout  time.Duration `mapstructure:"request_timeout"`
	MaxBodyBytes    int64         `mapstructure:"max_body_bytes"`
	CORSOrigins     []string      `mapstructure:"cors_origins"`
}

type JWTConfig struct {
	Secret      string        `mapstructure:"secret"`
	Issuer      string        `mapstructure:"issuer"`
	ExpiryHours int           `mapstructure:"expiry_hours"`
	Leeway      time.Duration `mapstructure:"leeway"`
}

type AdminConfig struct {
	Username     string `mapstructure:"username"`
	PasswordHash string `mapstructure:"password_hash"`
}

type RateLimitConfig struct {
	Enabled           bool    `mapstructure:"enabled"`
	RequestsPerSecond float64 `mapstructure:"requests_per_second"`
	Burst             int     `mapstructure:"burst"`
}

type LogConfig struct {
	Level  string `mapstructure:"level"`
	Pretty bool   `mapstructure:"pretty"`
}

type SMTPConfig struct {
	Host     string `mapstructure:"host"`
	Port     int    `mapstructure:"port"`
	Username string `mapstructure:"username"`
	Password string `mapstructure:"password"`
	From     string `mapstructure:"from"`
}

type NotificationConfig struct {
	Enabled    bool   `mapstructure:"enabled"`
	AgentName  string `mapstructure:"agent_name"`
	AdminEmail string `mapstructure:"admin_email"`
}

type PaymentConfig struct {
	Gateway         string        `mapstructure:"gateway"`
	FailureLimit    int           `mapstructure:"failure_limit"`
	OpenTimeout     time.Duration `mapstructure:"open_timeout"`
	ReferencePrefix string        `mapstructure:"reference_prefix"`
}

type SettingsConfig struct {
	CacheTTL time.Duration `mapstructure:"cache_ttl"`
}

type OutboxConfig struct {
	BatchSize       int           `mapstructure:"batch_size"`
	PollInterval    time.Duration `mapstructure:"poll_interval"`
	RetryAttempts   int           `mapstructure:"retry_attempts"`
	RetryDelay      time.Duration `mapstructure:"retry_delay"`
	MaxDeliveries   int           `mapstructure:"max_deliveries"`
	RetentionPeriod time.Duration `mapstructure:"retention_period"`
}

type WorkerConfig struct {
	HealthPort int `mapstructure:"health_port"`
}

type RedisConfig struct {
	URL          string        `mapstructure:"url"`
	MaxRetries   int           `mapstructure:"max_retries"`
	RetryBackoff time.Duration `mapstructure:"retry_backoff"`
	PoolSize     int           `mapstructure:"pool_size"`
	MinIdleConns int           `mapstructure:"min_idle_conns"`
}

type Config struct {
	Server       ServerConfig              `mapstructure:"server"`
	Database     DatabaseConfig            `mapstructure:"database"`
	Redis        RedisConfig               `mapstructure:"redis"`
	Outbox       OutboxConfig              `mapstructure:"outbox"`
	Worker       WorkerConfig              `mapstructure:"worker"`
	JWT          JWTConfig                 `mapstructure:"jwt"`
	Admin        AdminConfig               `mapstructure:"admin"`
	RateLimit    RateLimitConfig           `mapstructure:"rate_limit"`
	Log          LogConfig                 `mapstructure:"log"`
	SMTP         SMTPConfig                `mapstructure:"smtp"`
	Notification NotificationConfig        `mapstructure:"notification"`
	Payment      PaymentConfig             `mapstructure:"payment"`
	Settings     SettingsConfig            `mapstructure:"settings"`
	Appointment  model.AppointmentSettings `mapstructure:"appointment"`
}

// Secrets are never read from the config file.
type Secrets struct {
	DBPassword        string `envconfig:"DB_PASSWORD"`
	JWTSecret         string `envconfig:"JWT_SECRET"`
	SMTPPassword      string `envconfig:"SMTP_PASSWORD"`
	AdminPasswordHash string `envconfig:"ADMIN_PASSWORD_HASH"`
}

const envPrefix = "VIP"

// LoadConfig reads config.yaml from the usual locations, overlays VIP_*
// environment variables, applies secrets and validates the result.
func LoadConfig() (*Config, error) {
	cfg, err := Load()
	if err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Load is LoadConfig without validation, for tools such as the migrator that
// only need a subset of the settings.
func Load() (*Config, error) {
	v := viper.New()
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")
	v.AddConfigPath("./config")
	v.AddConfigPath("/app")
	v.AddConfigPath("/app/config")

	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	var secrets Secrets
	if err := envconfig.Process(envPrefix, &secrets); err != nil {
		return nil, fmt.Errorf("failed to read secrets: %w", err)
	}
	cfg.applySecrets(secrets)
	return &cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.mode", "release")
	v.SetDefault("server.read_timeout", 15*time.Second)
	v.SetDefault("server.write_timeout", 15*time.Second)
	v.SetDefault("server.shutdown_timeout", 10*time.Second)
	v.SetDefault("server.max_header_bytes", 1<<20)
	v.SetDefault("server.request_timeout", 10*time.Second)
	v.SetDefault("server.max_body_bytes", 64<<10)

	v.SetDefault("database.port", 5432)
	v.SetDefault("database.sslmode", "disable")
	v.SetDefault("database.max_open_conns", 20)
	v.SetDefault("database.max_idle_conns", 5)
	v.SetDefault("database.conn_max_lifetime", 30*time.Minute)

	v.SetDefault("redis.url", "redis://localhost:6379/0")
	v.SetDefault("redis.max_retries", 3)
	v.SetDefault("redis.retry_backoff", 100*time.Millisecond)
	v.SetDefault("redis.pool_size", 10)

	v.SetDefault("outbox.batch_size", 50)
	v.SetDefault("outbox.poll_interval", 2*time.Second)
	v.SetDefault("outbox.retry_attempts", 3)
	v.SetDefault("outbox.retry_delay", 500*time.Millisecond)
	v.SetDefault("outbox.max_deliveries", 5)
	v.SetDefault("outbox.retention_period", 7*24*time.Hour)

	v.SetDefault("worker.health_port", 8081)

	v.SetDefault("jwt.issuer", "vip-booking")
	v.SetDefault("jwt.expiry_hours", 12)
	v.SetDefault("jwt.leeway", 30*time.Second)

	v.SetDefault("admin.username", "admin")

	v.SetDefault("rate_limit.enabled", true)
	v.SetDefault("rate_limit.requests_per_second", 10)
	v.SetDefault("rate_limit.burst", 20)

	v.SetDefault("log.level", "info")

	v.SetDefault("smtp.port", 587)
	v.SetDefault("notification.agent_name", "Mme Niang")

	v.SetDefault("payment.gateway", "manual")
	v.SetDefault("payment.failure_limit", 5)
	v.SetDefault("payment.open_timeout", 30*time.Second)
	v.SetDefault("payment.reference_prefix", "PAY")

	v.SetDefault("settings.cache_ttl", time.Minute)

	v.SetDefault("appointment.default_duration_minutes", 60)
	v.SetDefault("appointment.online_price", 50000)
	v.SetDefault("appointment.in_person_price", 75000)
	v.SetDefault("appointment.first_appointment_free", true)
	v.SetDefault("appointment.cancellation_deadline_hours", 24)
}

func (c *Config) applySecrets(s Secrets) {
	if s.DBPassword != "" {
		c.Database.Password = s.DBPassword
	}
	if s.JWTSecret != "" {
		c.JWT.Secret = s.JWTSecret
	}
	if s.SMTPPassword != "" {
		c.SMTP.Password = s.SMTPPassword
	}
	if s.AdminPasswordHash != "" {
		c.Admin.PasswordHash = s.AdminPasswordHash
	}
}

// Validate fails fast on settings the service cannot run with.
func (c *Config) Validate() error {
	if c.JWT.Secret == "" {
		return fmt.Errorf("jwt secret is required (set %s_JWT_SECRET)", envPrefix)
	}
	if c.JWT.ExpiryHours <= 0 {
		return fmt.Errorf("jwt expiry must be positive")
	}
	if err := c.Appointment.Validate(); err != nil {
		return fmt.Errorf("invalid appointment settings: %w", err)
	}
	if c.Outbox.BatchSize <= 0 || c.Outbox.PollInterval <= 0 {
		return fmt.Errorf("outbox batch size and poll interval must be positive")
	}
	return nil
}

// UseDatabase reports whether a Postgres host is configured.
func (c *Config) UseDatabase() bool {
	return c.Database.Host != ""
}

func (c *OutboxConfig) ToWorkerConfig() worker.OutboxProcessorConfig {
	return worker.OutboxProcessorConfig{
		BatchSize:     c.BatchSize,
		PollInterval:  c.PollInterval,
		RetryAttempts: c.RetryAttempts,
		RetryDelay:    c.RetryDelay,
		MaxDeliveries: c.MaxDeliveries,
		Retention:     c.RetentionPeriod,
	}
}

func (c *RedisConfig) ToBrokerConfig() redis.Config {
	return redis.Config{
		URL:          c.URL,
		MaxRetries:   c.MaxRetries,
		RetryBackoff: c.RetryBackoff,
		PoolSize:     c.PoolSize,
		MinIdleConns: c.MinIdleConns,
	}
}
