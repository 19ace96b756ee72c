package config

import (
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/ilyakaznacheev/cleanenv"
	"github.com/joho/godotenv"
)

type Config struct {
	Env        string `yaml:"env" env:"ENV" env-default:"local"`
	HTTPServer `yaml:"http_server"`
	Tokens     `yaml:"tokens"`
	Storage    `yaml:"storage"`
	Postgres   `yaml:"postgres"`
	Redis      `yaml:"redis"`
	Notifier   `yaml:"notifier"`
	RabbitMQ   `yaml:"rabbitmq"`
	SMTP       `yaml:"smtp"`
}

type HTTPServer struct {
	Address        string        `yaml:"address" env:"HTTP_ADDRESS" env-default:"localhost:8080"`
	PublicURL      string        `yaml:"public_url" env:"PUBLIC_URL" env-default:"http://localhost:8080"`
	Timeout        time.Duration `yaml:"timeout" env-default:"4s"`
	IdleTimeout    time.Duration `yaml:"idle_timeout" env-default:"60s"`
	AllowedOrigins []string      `yaml:"allowed_origins" env:"ALLOWED_ORIGINS" env-separator:"," env-default:"http://localhost:3000"`
	CookieName     string        `yaml:"cookie_name" env-default:"token"`
	CookieSecure   bool          `yaml:"cookie_secure" env:"COOKIE_SECURE" env-default:"false"`
}

type Tokens struct {
	VerificationTokenTTL time.Duration `yaml:"verification_token_ttl" env:"VERIFICATION_TOKEN_TTL" env-default:"6h"`
	SessionSecret        string        `yaml:"session_secret" env:"SESSION_SECRET" env-required:"true"`
	PurgeInterval        time.Duration `yaml:"purge_interval" env:"PURGE_INTERVAL" env-default:"10m"`
}

const (
	BackendPostgres = "postgres"
	BackendRedis    = "redis"
	BackendMemory   = "memory"
)

type Storage struct {
	Accounts string `yaml:"accounts" env:"STORAGE_ACCOUNTS" env-default:"postgres"`
	Tokens   string `yaml:"tokens" env:"STORAGE_TOKENS" env-default:"postgres"`
}

type Postgres struct {
	Host     string `yaml:"host" env:"POSTGRES_HOST" env-default:"postgres"`
	Port     int    `yaml:"port" env:"POSTGRES_PORT" env-default:"5432"`
	User     string `yaml:"user" env:"POSTGRES_USER"`
	Password string `yaml:"password" env:"POSTGRES_PASSWORD"`
	DBName   string `yaml:"dbname" env:"POSTGRES_DB"`
	SSLMode  string `yaml:"sslmode" env:"POSTGRES_SSLMODE" env-default:"disable"`
}

type Redis struct {
	Address  string `yaml:"address" env:"REDIS_ADDRESS" env-default:"localhost:6379"`
	Password string `yaml:"password" env:"REDIS_PASSWORD"`
	DB       int    `yaml:"db" env:"REDIS_DB" env-default:"0"`
}

const (
	NotifierRabbitMQ = "rabbitmq"
	NotifierSMTP     = "smtp"
	NotifierLog      = "log"
)

type Notifier struct {
	Mode string `yaml:"mode" env:"NOTIFIER_MODE" env-default:"rabbitmq"`
}

type RabbitMQ struct {
	URL       string `yaml:"url" env:"RABBITMQ_URL"`
	QueueName string `yaml:"queue_name" env:"RABBITMQ_QUEUE" env-default:"email_queue"`
}

type SMTP struct {
	Host     string `yaml:"host" env:"SMTP_HOST"`
	Port     int    `yaml:"port" env:"SMTP_PORT" env-default:"587"`
	Username string `yaml:"username" env:"SMTP_USERNAME"`
	Password string `yaml:"password" env:"SMTP_PASSWORD"`
	From     string `yaml:"from" env:"SMTP_FROM"`
}

// Load reads an optional .env file next to the working directory, then the
// YAML file at configPath with environment overrides, and validates the
// result.
func Load(configPath string) (*Config, error) {
	const op = "config.Load"

	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	if _, err := os.Stat(configPath); os.IsNotExist(err) {
		return nil, fmt.Errorf("%s: config file does not exist: %s", op, configPath)
	}

	var cfg Config

	if err := cleanenv.ReadConfig(configPath, &cfg); err != nil {
		return nil, fmt.Errorf("%s: failed to read config: %w", op, err)
	}

	if err := cfg.validate(); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	return &cfg, nil
}

func MustLoad(configPath string) *Config {
	cfg, err := Load(configPath)
	if err != nil {
		panic(err.Error())
	}

	return cfg
}

func (c *Config) validate() error {
	switch c.Storage.Accounts {
	case BackendPostgres, BackendMemory:
	default:
		return fmt.Errorf("unknown accounts storage %q", c.Storage.Accounts)
	}

	switch c.Storage.Tokens {
	case BackendPostgres, BackendRedis, BackendMemory:
	default:
		return fmt.Errorf("unknown tokens storage %q", c.Storage.Tokens)
	}

	// postgres tokens reference postgres accounts
	if c.Storage.Tokens == BackendPostgres && c.Storage.Accounts != BackendPostgres {
		return errors.New("postgres token storage requires postgres account storage")
	}

	if c.UsesPostgres() && (c.Postgres.User == "" || c.Postgres.DBName == "") {
		return errors.New("postgres user and dbname are required")
	}

	switch c.Notifier.Mode {
	case NotifierRabbitMQ:
		if c.RabbitMQ.URL == "" {
			return errors.New("rabbitmq url is required")
		}
	case NotifierSMTP:
		if c.SMTP.Host == "" || c.SMTP.From == "" {
			return errors.New("smtp host and from are required")
		}
	case NotifierLog:
	default:
		return fmt.Errorf("unknown notifier mode %q", c.Notifier.Mode)
	}

	if c.Tokens.VerificationTokenTTL <= 0 {
		return errors.New("verification_token_ttl must be positive")
	}

	return nil
}

func (c *Config) UsesPostgres() bool {
	return c.Storage.Accounts == BackendPostgres || c.Storage.Tokens == BackendPostgres
}
