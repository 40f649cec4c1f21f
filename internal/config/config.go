package config

import (
	"fmt"
	"time"
	_ "time/tzdata"

	"github.com/caarlos0/env/v11"
)

// Config holds all application configuration.
type Config struct {
	Server    ServerConfig    `envPrefix:"SERVER_"`
	Database  DatabaseConfig  `envPrefix:"DB_"`
	Logger    LoggerConfig    `envPrefix:"LOG_"`
	Auth      AuthConfig      `envPrefix:"AUTH_"`
	S3        S3Config        `envPrefix:"S3_"`
	Catalog   CatalogConfig   `envPrefix:"CATALOG_"`
	Panel     PanelConfig     `envPrefix:"PANEL_"`
	Gateway   GatewayConfig   `envPrefix:"GATEWAY_"`
	Admission AdmissionConfig `envPrefix:"ADMISSION_"`
	AMQP      AMQPConfig      `envPrefix:"AMQP_"`
	Notify    NotifyConfig    `envPrefix:"NOTIFY_"`

	// Store selects the order store: "postgres" or "memory".
	Store    string `env:"STORE" envDefault:"postgres"`
	TimeZone string `env:"TZ_NAME" envDefault:"Asia/Jakarta"`
}

// ServerConfig holds server-related configuration.
type ServerConfig struct {
	Host string `env:"HOST" envDefault:"0.0.0.0"`
	Port int    `env:"PORT" envDefault:"8080"`
}

// DatabaseConfig holds database-related configuration.
type DatabaseConfig struct {
	Host            string `env:"HOST" envDefault:"localhost"`
	Port            int    `env:"PORT" envDefault:"5432"`
	User            string `env:"USER" envDefault:"postgres"`
	Password        string `env:"PASSWORD"`
	Database        string `env:"NAME" envDefault:"hostbot"`
	MaxConnections  int    `env:"MAX_CONNECTIONS" envDefault:"25"`
	MinConnections  int    `env:"MIN_CONNECTIONS" envDefault:"5"`
	MaxConnLifetime int    `env:"MAX_CONN_LIFETIME" envDefault:"300"` // seconds
	ConnectAttempts int    `env:"CONNECT_ATTEMPTS" envDefault:"5"`
}

// LoggerConfig holds logger-related configuration.
type LoggerConfig struct {
	Level  string `env:"LEVEL" envDefault:"info"`
	Format string `env:"FORMAT" envDefault:"json"` // "json" or "console"
}

// AuthConfig holds authentication configuration.
type AuthConfig struct {
	APIKey        string `env:"API_KEY"`
	WebhookSecret string `env:"WEBHOOK_SECRET"`
}

// S3Config holds AWS S3 configuration for the package catalogue.
type S3Config struct {
	Enabled bool   `env:"ENABLED" envDefault:"false"`
	Bucket  string `env:"BUCKET"`
	Region  string `env:"REGION" envDefault:"us-east-1"`
	Prefix  string `env:"PREFIX" envDefault:"catalog/"`
}

// CatalogConfig locates the package catalogue files. Later files override
// packages with the same key in earlier ones.
type CatalogConfig struct {
	Paths []string `env:"PATHS" envSeparator:"," envDefault:"data/catalog/packages.jsonl.gz"`
}

// PanelConfig holds the hosting panel connection and server template.
type PanelConfig struct {
	URL           string        `env:"URL"`
	APIKey        string        `env:"API_KEY"`
	ClientAPIKey  string        `env:"CLIENT_API_KEY"`
	AutoProvision bool          `env:"AUTO_PROVISION" envDefault:"false"`
	EmailDomain   string        `env:"EMAIL_DOMAIN" envDefault:"customers.hostbot.local"`
	LocationID    int           `env:"LOCATION_ID" envDefault:"1"`
	EggID         int           `env:"EGG_ID" envDefault:"15"`
	DockerImage   string        `env:"DOCKER_IMAGE" envDefault:"ghcr.io/parkervcp/yolks:nodejs_18"`
	Startup       string        `env:"STARTUP" envDefault:"npm start"`
	Timeout       time.Duration `env:"TIMEOUT" envDefault:"45s"`
	Attempts      int           `env:"ATTEMPTS" envDefault:"2"`
}

// Configured reports whether enough panel settings exist to call the API.
func (c *PanelConfig) Configured() bool {
	return c.URL != "" && c.APIKey != ""
}

// GatewayConfig holds the outbound chat gateway settings.
type GatewayConfig struct {
	URL      string        `env:"URL"`
	Token    string        `env:"TOKEN"`
	Timeout  time.Duration `env:"TIMEOUT" envDefault:"15s"`
	Attempts int           `env:"ATTEMPTS" envDefault:"3"`
}

// AdmissionConfig holds inbound rate limiting settings.
type AdmissionConfig struct {
	Window          time.Duration `env:"WINDOW" envDefault:"60s"`
	MaxRequests     int           `env:"MAX_REQUESTS" envDefault:"8"`
	BlockDuration   time.Duration `env:"BLOCK_DURATION" envDefault:"3m"`
	DuplicateWindow time.Duration `env:"DUPLICATE_WINDOW" envDefault:"2s"`
	CleanupInterval time.Duration `env:"CLEANUP_INTERVAL" envDefault:"5m"`
}

// AMQPConfig holds the order event feed settings. An empty URL disables it.
type AMQPConfig struct {
	URL      string `env:"URL"`
	Exchange string `env:"EXCHANGE" envDefault:"order_events"`
}

// NotifyConfig holds notification settings.
type NotifyConfig struct {
	Locale       string        `env:"LOCALE" envDefault:"id"`
	AdminNumbers []string      `env:"ADMIN_NUMBERS" envSeparator:","`
	BulkDelay    time.Duration `env:"BULK_DELAY" envDefault:"2s"`
	Currency     string        `env:"CURRENCY" envDefault:"IDR"`
}

// Load loads configuration from environment variables.
func Load() (*Config, error) {
	cfg := &Config{}
	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("failed to parse environment: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}

	return cfg, nil
}

// Validate validates the configuration.
func (c *Config) Validate() error {
	if c.Server.Port < 1 || c.Server.Port > 65535 {
		return fmt.Errorf("invalid server port: %d", c.Server.Port)
	}

	if c.Store != "postgres" && c.Store != "memory" {
		return fmt.Errorf("invalid store: %s (must be postgres or memory)", c.Store)
	}

	if c.Store == "postgres" {
		if err := c.Database.validate(); err != nil {
			return err
		}
	}

	if c.Auth.APIKey == "" {
		return fmt.Errorf("API key is required")
	}

	validLogLevels := map[string]bool{
		"debug": true,
		"info":  true,
		"warn":  true,
		"error": true,
	}

	if !validLogLevels[c.Logger.Level] {
		return fmt.Errorf("invalid log level: %s (must be debug, info, warn, or error)", c.Logger.Level)
	}

	if c.Logger.Format != "json" && c.Logger.Format != "console" {
		return fmt.Errorf("invalid log format: %s (must be json or console)", c.Logger.Format)
	}

	if c.S3.Enabled {
		if c.S3.Bucket == "" {
			return fmt.Errorf("S3 bucket is required when S3 is enabled")
		}
		if c.S3.Region == "" {
			return fmt.Errorf("S3 region is required when S3 is enabled")
		}
	}

	if len(c.Catalog.Paths) == 0 {
		return fmt.Errorf("at least one catalog path is required")
	}

	if c.Panel.AutoProvision && !c.Panel.Configured() {
		return fmt.Errorf("panel URL and API key are required when auto provisioning is enabled")
	}

	if c.Admission.MaxRequests < 1 {
		return fmt.Errorf("admission max requests must be at least 1")
	}

	if c.Admission.Window <= 0 || c.Admission.BlockDuration <= 0 {
		return fmt.Errorf("admission window and block duration must be positive")
	}

	if c.Notify.Locale != "id" && c.Notify.Locale != "en" {
		return fmt.Errorf("invalid notify locale: %s (must be id or en)", c.Notify.Locale)
	}

	if _, err := time.LoadLocation(c.TimeZone); err != nil {
		return fmt.Errorf("invalid time zone %s: %w", c.TimeZone, err)
	}

	return nil
}

func (c *DatabaseConfig) validate() error {
	if c.Host == "" {
		return fmt.Errorf("database host is required")
	}

	if c.Port < 1 || c.Port > 65535 {
		return fmt.Errorf("invalid database port: %d", c.Port)
	}

	if c.User == "" {
		return fmt.Errorf("database user is required")
	}

	if c.Database == "" {
		return fmt.Errorf("database name is required")
	}

	if c.MaxConnections < 1 {
		return fmt.Errorf("database max connections must be at least 1")
	}

	if c.MinConnections < 1 {
		return fmt.Errorf("database min connections must be at least 1")
	}

	if c.MinConnections > c.MaxConnections {
		return fmt.Errorf("database min connections cannot exceed max connections")
	}

	return nil
}

// Location returns the configured time zone.
func (c *Config) Location() *time.Location {
	loc, err := time.LoadLocation(c.TimeZone)
	if err != nil {
		return time.Local
	}
	return loc
}

// ConnectionString returns the PostgreSQL connection string.
func (c *DatabaseConfig) ConnectionString() string {
	return fmt.Sprintf(
		"postgres://%s:%s@%s:%d/%s?sslmode=disable",
		c.User,
		c.Password,
		c.Host,
		c.Port,
		c.Database,
	)
}

// Address returns the server address.
func (c *ServerConfig) Address() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}
