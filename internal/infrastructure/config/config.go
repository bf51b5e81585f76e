package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Config is the root configuration structure for Hotel Core.
// All configuration is loaded from YAML and can be overridden by environment variables.
type Config struct {
	Site       SiteConfig       `yaml:"site"`
	Database   DatabaseConfig   `yaml:"database"`
	API        APIConfig        `yaml:"api"`
	WebSocket  WebSocketConfig  `yaml:"websocket"`
	Logging    LoggingConfig    `yaml:"logging"`
	Security   SecurityConfig   `yaml:"security"`
	Hub        HubConfig        `yaml:"hub"`
	Automation AutomationConfig `yaml:"automation"`
	MQTT       MQTTConfig       `yaml:"mqtt"`
	InfluxDB   InfluxDBConfig   `yaml:"influxdb"`
	Redis      RedisConfig      `yaml:"redis"`
}

// SiteConfig identifies the property this instance serves.
type SiteConfig struct {
	ID       string `yaml:"id"`
	Name     string `yaml:"name"`
	Timezone string `yaml:"timezone"`
}

// DatabaseConfig contains SQLite database settings.
type DatabaseConfig struct {
	Path        string `yaml:"path"`
	WALMode     bool   `yaml:"wal_mode"`
	BusyTimeout int    `yaml:"busy_timeout"`
}

// APIConfig contains HTTP API server settings.
type APIConfig struct {
	Host     string           `yaml:"host"`
	Port     int              `yaml:"port"`
	TLS      TLSConfig        `yaml:"tls"`
	Timeouts APITimeoutConfig `yaml:"timeouts"`
	CORS     CORSConfig       `yaml:"cors"`
}

// TLSConfig contains TLS certificate settings.
type TLSConfig struct {
	Enabled  bool   `yaml:"enabled"`
	CertFile string `yaml:"cert_file"`
	KeyFile  string `yaml:"key_file"`
}

// APITimeoutConfig contains HTTP timeout settings in seconds.
type APITimeoutConfig struct {
	Read  int `yaml:"read"`
	Write int `yaml:"write"`
	Idle  int `yaml:"idle"`
}

// CORSConfig contains Cross-Origin Resource Sharing settings.
type CORSConfig struct {
	AllowedOrigins []string `yaml:"allowed_origins"`
	AllowedMethods []string `yaml:"allowed_methods"`
	AllowedHeaders []string `yaml:"allowed_headers"`
}

// WebSocketConfig contains WebSocket server settings.
type WebSocketConfig struct {
	MaxMessageSize int `yaml:"max_message_size"`
	PingInterval   int `yaml:"ping_interval"`
	PongTimeout    int `yaml:"pong_timeout"`
}

// LoggingConfig contains logging settings.
type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
	Output string `yaml:"output"`
}

// SecurityConfig contains authentication and secret-handling settings.
type SecurityConfig struct {
	JWT JWTConfig `yaml:"jwt"`

	// SecretKey keys the cipher that protects the hub access token at rest.
	// Set via HOTELCORE_SECRET_KEY; never commit it to the YAML file.
	SecretKey string `yaml:"secret_key"`

	// BootstrapAdminPassword, when set, is used for the first admin account
	// instead of a random password.
	BootstrapAdminPassword string `yaml:"bootstrap_admin_password"`
}

// JWTConfig contains JWT token settings.
type JWTConfig struct {
	Secret         string `yaml:"secret"`
	AccessTokenTTL int    `yaml:"access_token_ttl"` // minutes
}

// HubConfig tunes the device gateway. The hub URL and token themselves live
// in the hub_config table so they can be changed from the admin API.
type HubConfig struct {
	StateTimeout   int     `yaml:"state_timeout"`   // seconds
	ServiceTimeout int     `yaml:"service_timeout"` // seconds
	MaxAttempts    int     `yaml:"max_attempts"`
	RetryBackoff   int     `yaml:"retry_backoff"` // milliseconds, multiplied by attempt number
	RateLimit      float64 `yaml:"rate_limit"`    // requests per second
	RateBurst      int     `yaml:"rate_burst"`
	InsecureTLS    bool    `yaml:"insecure_tls"`
}

// AutomationConfig holds reconciler and queue timing.
type AutomationConfig struct {
	SyncInterval          int `yaml:"sync_interval"`     // seconds
	DrainInterval         int `yaml:"drain_interval"`    // seconds
	OvertimeInterval      int `yaml:"overtime_interval"` // seconds
	DrainBatchSize        int `yaml:"drain_batch_size"`
	DebounceSeconds       int `yaml:"debounce_seconds"`
	MaxRetries            int `yaml:"max_retries"`
	RetryBaseDelay        int `yaml:"retry_base_delay"` // seconds
	AlertThreshold        int `yaml:"alert_threshold"`
	StaleAfter            int `yaml:"stale_after"` // seconds in processing before requeue
	ActivityRetentionDays int `yaml:"activity_retention_days"`
}

// MQTTConfig contains MQTT broker connection settings.
type MQTTConfig struct {
	Enabled   bool                `yaml:"enabled"`
	Broker    MQTTBrokerConfig    `yaml:"broker"`
	Auth      MQTTAuthConfig      `yaml:"auth"`
	QoS       int                 `yaml:"qos"`
	Reconnect MQTTReconnectConfig `yaml:"reconnect"`
}

// MQTTBrokerConfig contains MQTT broker connection details.
type MQTTBrokerConfig struct {
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	TLS      bool   `yaml:"tls"`
	ClientID string `yaml:"client_id"`
}

// MQTTAuthConfig contains MQTT authentication credentials.
type MQTTAuthConfig struct {
	Username string `yaml:"username"`
	Password string `yaml:"password"`
}

// MQTTReconnectConfig contains MQTT reconnection settings.
type MQTTReconnectConfig struct {
	InitialDelay int `yaml:"initial_delay"`
	MaxDelay     int `yaml:"max_delay"`
}

// InfluxDBConfig contains InfluxDB connection settings.
type InfluxDBConfig struct {
	Enabled       bool   `yaml:"enabled"`
	URL           string `yaml:"url"`
	Token         string `yaml:"token"`
	Org           string `yaml:"org"`
	Bucket        string `yaml:"bucket"`
	BatchSize     int    `yaml:"batch_size"`
	FlushInterval int    `yaml:"flush_interval"`
}

// RedisConfig enables the cross-process drain lease.
type RedisConfig struct {
	Enabled  bool   `yaml:"enabled"`
	Addr     string `yaml:"addr"`
	Password string `yaml:"password"`
	DB       int    `yaml:"db"`
	LeaseTTL int    `yaml:"lease_ttl"` // seconds
}

// Load reads configuration from a YAML file and applies environment variable overrides.
//
// The configuration loading order is:
//  1. Default values (hardcoded)
//  2. YAML file values (override defaults)
//  3. Environment variables (override file values)
//
// Environment variables follow the pattern: HOTELCORE_SECTION_KEY
// For example: HOTELCORE_DATABASE_PATH, HOTELCORE_API_PORT
func Load(path string) (*Config, error) {
	cfg := defaultConfig()

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config file: %w", err)
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parsing config file: %w", err)
	}

	applyEnvOverrides(cfg)

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validating config: %w", err)
	}

	return cfg, nil
}

// defaultConfig returns a Config with sensible defaults.
func defaultConfig() *Config {
	return &Config{
		Site: SiteConfig{
			ID:       "hotel-001",
			Name:     "Hotel",
			Timezone: "UTC",
		},
		Database: DatabaseConfig{
			Path:        "./data/hotelcore.db",
			WALMode:     true,
			BusyTimeout: 5,
		},
		API: APIConfig{
			Host: "0.0.0.0",
			Port: 8080,
			Timeouts: APITimeoutConfig{
				Read:  30,
				Write: 30,
				Idle:  60,
			},
		},
		WebSocket: WebSocketConfig{
			MaxMessageSize: 8192,
			PingInterval:   30,
			PongTimeout:    10,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
			Output: "stdout",
		},
		Security: SecurityConfig{
			JWT: JWTConfig{
				AccessTokenTTL: 60,
			},
		},
		Hub: HubConfig{
			StateTimeout:   5,
			ServiceTimeout: 10,
			MaxAttempts:    3,
			RetryBackoff:   1000,
			RateLimit:      5,
			RateBurst:      5,
		},
		Automation: AutomationConfig{
			SyncInterval:     60,
			DrainInterval:    5,
			OvertimeInterval: 60,
			DrainBatchSize:   20,
			DebounceSeconds:  3,
			MaxRetries:       3,
			RetryBaseDelay:   3,
			AlertThreshold:   3,
			StaleAfter:       300,
		},
		MQTT: MQTTConfig{
			Broker: MQTTBrokerConfig{
				Host:     "localhost",
				Port:     1883,
				ClientID: "hotelcore",
			},
			QoS: 1,
			Reconnect: MQTTReconnectConfig{
				InitialDelay: 1,
				MaxDelay:     60,
			},
		},
		Redis: RedisConfig{
			Addr:     "localhost:6379",
			LeaseTTL: 30,
		},
	}
}

// applyEnvOverrides applies environment variable overrides to the configuration.
func applyEnvOverrides(cfg *Config) {
	if v := os.Getenv("HOTELCORE_DATABASE_PATH"); v != "" {
		cfg.Database.Path = v
	}

	if v := os.Getenv("HOTELCORE_API_HOST"); v != "" {
		cfg.API.Host = v
	}
	if v := os.Getenv("HOTELCORE_API_PORT"); v != "" {
		if port, err := strconv.Atoi(v); err == nil {
			cfg.API.Port = port
		}
	}

	if v := os.Getenv("HOTELCORE_LOG_LEVEL"); v != "" {
		cfg.Logging.Level = v
	}

	if v := os.Getenv("HOTELCORE_MQTT_HOST"); v != "" {
		cfg.MQTT.Broker.Host = v
	}
	if v := os.Getenv("HOTELCORE_MQTT_USERNAME"); v != "" {
		cfg.MQTT.Auth.Username = v
	}
	if v := os.Getenv("HOTELCORE_MQTT_PASSWORD"); v != "" {
		cfg.MQTT.Auth.Password = v
	}

	if v := os.Getenv("HOTELCORE_INFLUXDB_TOKEN"); v != "" {
		cfg.InfluxDB.Token = v
	}

	if v := os.Getenv("HOTELCORE_REDIS_ADDR"); v != "" {
		cfg.Redis.Addr = v
	}
	if v := os.Getenv("HOTELCORE_REDIS_PASSWORD"); v != "" {
		cfg.Redis.Password = v
	}

	// Secrets: always supplied from the environment in production.
	if v := os.Getenv("HOTELCORE_JWT_SECRET"); v != "" {
		cfg.Security.JWT.Secret = v
	}
	if v := os.Getenv("HOTELCORE_SECRET_KEY"); v != "" {
		cfg.Security.SecretKey = v
	}
	if v := os.Getenv("HOTELCORE_BOOTSTRAP_ADMIN_PASSWORD"); v != "" {
		cfg.Security.BootstrapAdminPassword = v
	}
}

// minSecretLength applies to both the JWT secret and the token encryption key.
const minSecretLength = 32

// Validate checks the configuration for errors and security issues.
func (c *Config) Validate() error {
	var errs []string

	if c.Site.ID == "" {
		errs = append(errs, "site.id is required")
	}

	if c.Database.Path == "" {
		errs = append(errs, "database.path is required")
	}

	if c.API.Port < 1 || c.API.Port > 65535 {
		errs = append(errs, "api.port must be between 1 and 65535")
	}

	if c.Security.JWT.Secret == "" {
		errs = append(errs, "security.jwt.secret is required (set HOTELCORE_JWT_SECRET environment variable)")
	} else if len(c.Security.JWT.Secret) < minSecretLength {
		errs = append(errs, "security.jwt.secret must be at least 32 characters for adequate security")
	}

	if c.Security.SecretKey == "" {
		errs = append(errs, "security.secret_key is required (set HOTELCORE_SECRET_KEY environment variable)")
	} else if len(c.Security.SecretKey) < minSecretLength {
		errs = append(errs, "security.secret_key must be at least 32 characters")
	}

	if c.Hub.MaxAttempts < 1 {
		errs = append(errs, "hub.max_attempts must be at least 1")
	}
	if c.Hub.RateLimit <= 0 {
		errs = append(errs, "hub.rate_limit must be positive")
	}

	if c.Automation.SyncInterval < 1 {
		errs = append(errs, "automation.sync_interval must be at least 1 second")
	}
	if c.Automation.DrainInterval < 1 {
		errs = append(errs, "automation.drain_interval must be at least 1 second")
	}
	if c.Automation.DrainBatchSize < 1 {
		errs = append(errs, "automation.drain_batch_size must be at least 1")
	}
	if c.Automation.DebounceSeconds < 0 {
		errs = append(errs, "automation.debounce_seconds cannot be negative")
	}
	if c.Automation.MaxRetries < 1 {
		errs = append(errs, "automation.max_retries must be at least 1")
	}
	if c.Automation.AlertThreshold < 1 {
		errs = append(errs, "automation.alert_threshold must be at least 1")
	}
	if c.Automation.StaleAfter < 60 {
		errs = append(errs, "automation.stale_after must be at least 60 seconds")
	}

	if c.MQTT.Enabled && (c.MQTT.QoS < 0 || c.MQTT.QoS > 2) {
		errs = append(errs, "mqtt.qos must be 0, 1, or 2")
	}

	if c.InfluxDB.Enabled && c.InfluxDB.URL == "" {
		errs = append(errs, "influxdb.url is required when influxdb is enabled")
	}

	if c.Redis.Enabled && c.Redis.Addr == "" {
		errs = append(errs, "redis.addr is required when redis is enabled")
	}

	if len(errs) > 0 {
		return fmt.Errorf("configuration errors: %s", strings.Join(errs, "; "))
	}

	return nil
}

// GetReadTimeout returns the API read timeout as a Duration.
func (c *Config) GetReadTimeout() time.Duration {
	return time.Duration(c.API.Timeouts.Read) * time.Second
}

// GetWriteTimeout returns the API write timeout as a Duration.
func (c *Config) GetWriteTimeout() time.Duration {
	return time.Duration(c.API.Timeouts.Write) * time.Second
}

// GetIdleTimeout returns the API idle timeout as a Duration.
func (c *Config) GetIdleTimeout() time.Duration {
	return time.Duration(c.API.Timeouts.Idle) * time.Second
}

// Seconds converts a whole-second config field to a Duration.
func Seconds(n int) time.Duration {
	return time.Duration(n) * time.Second
}
