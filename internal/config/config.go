package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/kelseyhightower/envconfig"
	"github.com/spf13/viper"
)

type Config struct {
	Server    ServerConfig    `mapstructure:"server"`
	Database  DatabaseConfig  `mapstructure:"database"`
	JWT       JWTConfig       `mapstructure:"jwt"`
	Redis     RedisConfig     `mapstructure:"redis"`
	SMS       SMSConfig       `mapstructure:"sms"`
	SMTP      SMTPConfig      `mapstructure:"smtp"`
	Admin     AdminConfig     `mapstructure:"admin"`
	Import    ImportConfig    `mapstructure:"import"`
	RateLimit RateLimitConfig `mapstructure:"rate_limit"`
	Log       LogConfig       `mapstructure:"log"`
}

type ServerConfig struct {
	Port           int      `mapstructure:"port"`
	TimeoutSeconds int      `mapstructure:"timeout_seconds"`
	AllowedOrigins []string `mapstructure:"allowed_origins"`
}

type DatabaseConfig struct {
	Host         string `mapstructure:"host"`
	Port         int    `mapstructure:"port"`
	User         string `mapstructure:"user"`
	Password     string `mapstructure:"password"`
	Name         string `mapstructure:"name"`
	SSLMode      string `mapstructure:"sslmode"`
	MaxOpenConns int    `mapstructure:"max_open_conns"`
}

type JWTConfig struct {
	Secret      string `mapstructure:"secret"`
	ExpiryHours int    `mapstructure:"expiry_hours"`
}

func (c JWTConfig) Expiry() time.Duration {
	return time.Duration(c.ExpiryHours) * time.Hour
}

type RedisConfig struct {
	Enabled      bool          `mapstructure:"enabled"`
	URL          string        `mapstructure:"url"`
	MaxRetries   int           `mapstructure:"max_retries"`
	RetryBackoff time.Duration `mapstructure:"retry_backoff"`
	PoolSize     int           `mapstructure:"pool_size"`
	MinIdleConns int           `mapstructure:"min_idle_conns"`
}

// SMSConfig selects the messaging dispatcher. Provider "log" simulates sends.
type SMSConfig struct {
	Provider      string        `mapstructure:"provider"`
	URL           string        `mapstructure:"url"`
	APIKey        string        `mapstructure:"api_key"`
	SenderName    string        `mapstructure:"sender_name"`
	RatePerSecond float64       `mapstructure:"rate_per_second"`
	Burst         int           `mapstructure:"burst"`
	Timeout       time.Duration `mapstructure:"timeout"`
}

type SMTPConfig struct {
	Enabled  bool   `mapstructure:"enabled"`
	Host     string `mapstructure:"host"`
	Port     int    `mapstructure:"port"`
	Username string `mapstructure:"username"`
	Password string `mapstructure:"password"`
	From     string `mapstructure:"from"`
}

// AdminConfig seeds the default administrator account on startup.
type AdminConfig struct {
	Email    string `mapstructure:"email"`
	Password string `mapstructure:"password"`
	FullName string `mapstructure:"full_name"`
}

type ImportConfig struct {
	MaxUploadBytes int64         `mapstructure:"max_upload_bytes"`
	UploadDir      string        `mapstructure:"upload_dir"`
	SweepInterval  time.Duration `mapstructure:"sweep_interval"`
	StaleAfter     time.Duration `mapstructure:"stale_after"`
}

type RateLimitConfig struct {
	Enabled           bool    `mapstructure:"enabled"`
	RequestsPerSecond float64 `mapstructure:"requests_per_second"`
	Burst             int     `mapstructure:"burst"`
}

type LogConfig struct {
	Level string `mapstructure:"level"`
	JSON  bool   `mapstructure:"json"`
}

// secrets are read from QUEUE_* environment variables and take precedence over the file.
type secrets struct {
	DBPassword    string `envconfig:"DB_PASSWORD"`
	JWTSecret     string `envconfig:"JWT_SECRET"`
	SMSAPIKey     string `envconfig:"SMS_API_KEY"`
	SMTPPassword  string `envconfig:"SMTP_PASSWORD"`
	AdminPassword string `envconfig:"ADMIN_PASSWORD"`
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.timeout_seconds", 30)
	v.SetDefault("server.allowed_origins", []string{"*"})

	v.SetDefault("database.host", "localhost")
	v.SetDefault("database.port", 5432)
	v.SetDefault("database.user", "postgres")
	v.SetDefault("database.name", "queue")
	v.SetDefault("database.sslmode", "disable")
	v.SetDefault("database.max_open_conns", 10)

	v.SetDefault("jwt.expiry_hours", 24)

	v.SetDefault("redis.enabled", false)
	v.SetDefault("redis.url", "redis://localhost:6379/0")
	v.SetDefault("redis.max_retries", 3)
	v.SetDefault("redis.retry_backoff", time.Second)
	v.SetDefault("redis.pool_size", 10)

	v.SetDefault("sms.provider", "log")
	v.SetDefault("sms.sender_name", "Clinic")
	v.SetDefault("sms.rate_per_second", 5)
	v.SetDefault("sms.burst", 5)
	v.SetDefault("sms.timeout", 10*time.Second)

	v.SetDefault("smtp.port", 587)

	v.SetDefault("admin.email", "admin@clinic.local")
	v.SetDefault("admin.full_name", "Administrator")

	v.SetDefault("import.max_upload_bytes", 10<<20)
	v.SetDefault("import.upload_dir", DefaultUploadDir())
	v.SetDefault("import.sweep_interval", 10*time.Minute)
	v.SetDefault("import.stale_after", time.Hour)

	v.SetDefault("rate_limit.enabled", true)
	v.SetDefault("rate_limit.requests_per_second", 20)
	v.SetDefault("rate_limit.burst", 40)

	v.SetDefault("log.level", "info")
}

// DefaultUploadDir is the service-owned staging directory under the system temp dir.
func DefaultUploadDir() string {
	return filepath.Join(os.TempDir(), "queue-api-uploads")
}

// LoadConfig reads config.yml when present, falling back to defaults.
func LoadConfig() (*Config, error) {
	v := viper.New()
	setDefaults(v)

	v.SetConfigName("config")
	v.SetConfigType("yml")
	v.AddConfigPath(".")
	v.AddConfigPath("./config")
	v.AddConfigPath("/app/config")

	v.SetEnvPrefix("queue")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if err := cfg.applySecrets(); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) applySecrets() error {
	var s secrets
	if err := envconfig.Process("queue", &s); err != nil {
		return fmt.Errorf("failed to read environment: %w", err)
	}
	if s.DBPassword != "" {
		c.Database.Password = s.DBPassword
	}
	if s.JWTSecret != "" {
		c.JWT.Secret = s.JWTSecret
	}
	if s.SMSAPIKey != "" {
		c.SMS.APIKey = s.SMSAPIKey
	}
	if s.SMTPPassword != "" {
		c.SMTP.Password = s.SMTPPassword
	}
	if s.AdminPassword != "" {
		c.Admin.Password = s.AdminPassword
	}
	return nil
}

func (c *Config) Validate() error {
	if c.JWT.Secret == "" {
		return errors.New("jwt secret is required")
	}
	switch c.SMS.Provider {
	case "log":
	case "gateway":
		if c.SMS.URL == "" {
			return errors.New("sms gateway url is required")
		}
	default:
		return fmt.Errorf("unknown sms provider %q", c.SMS.Provider)
	}
	if c.Import.MaxUploadBytes <= 0 {
		return errors.New("import max upload bytes must be positive")
	}
	if strings.TrimSpace(c.Import.UploadDir) == "" {
		return errors.New("import upload dir is required")
	}
	return nil
}
