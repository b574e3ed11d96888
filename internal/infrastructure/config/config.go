package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Config is the root configuration structure for the codec bridge.
// All configuration is loaded from YAML and can be overridden by environment variables.
type Config struct {
	Codec     CodecConfig     `yaml:"codec"`
	Bridge    BridgeConfig    `yaml:"bridge"`
	MQTT      MQTTConfig      `yaml:"mqtt"`
	API       APIConfig       `yaml:"api"`
	WebSocket WebSocketConfig `yaml:"websocket"`
	InfluxDB  InfluxDBConfig  `yaml:"influxdb"`
	Logging   LoggingConfig   `yaml:"logging"`
	Security  SecurityConfig  `yaml:"security"`
}

// CodecConfig describes the codec this bridge polls.
type CodecConfig struct {
	// ID names the codec in MQTT topics and metric tags (e.g. "studio-a").
	ID string `yaml:"id"`

	// Host is the codec IP address or hostname.
	Host string `yaml:"host"`

	// Port is the codec HTTP port. Default: 80
	Port int `yaml:"port"`

	// Username and Password are sent as HTTP Basic credentials.
	// WARNING: Never log the password.
	Username string `yaml:"username"`
	Password string `yaml:"password"`

	// RequestTimeout bounds a single HTTP request to the codec (seconds).
	// Default: 5
	RequestTimeout int `yaml:"request_timeout"`

	// PollIntervalMS is the telemetry poll cadence in milliseconds.
	// Default: 2000
	PollIntervalMS int `yaml:"poll_interval_ms"`

	// FalsyMerge treats zero and false in device payloads as absent.
	// Only enable for firmware that pads missing fields with zero values.
	FalsyMerge bool `yaml:"falsy_merge"`

	// AutoConnect connects to the codec when the bridge starts.
	AutoConnect bool `yaml:"auto_connect"`

	// AutoPoll starts polling once connected.
	AutoPoll bool `yaml:"auto_poll"`
}

// BridgeConfig contains bridge identity and operational settings.
type BridgeConfig struct {
	// ID uniquely identifies this bridge instance in health messages.
	ID string `yaml:"id"`

	// HealthInterval is how often to publish health status (seconds).
	// Default: 30
	HealthInterval int `yaml:"health_interval"`
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
	MaxAttempts  int `yaml:"max_attempts"`
}

// APIConfig contains HTTP API server settings.
type APIConfig struct {
	Enabled  bool             `yaml:"enabled"`
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

// APITimeoutConfig contains HTTP timeout settings.
type APITimeoutConfig struct {
	Read  int `yaml:"read"`
	Write int `yaml:"write"`
	Idle  int `yaml:"idle"`
}

// CORSConfig contains Cross-Origin Resource Sharing settings.
// Overlay tools usually run in a browser source, so an empty list allows all origins.
type CORSConfig struct {
	AllowedOrigins []string `yaml:"allowed_origins"`
	AllowedMethods []string `yaml:"allowed_methods"`
	AllowedHeaders []string `yaml:"allowed_headers"`
}

// WebSocketConfig contains WebSocket server settings.
type WebSocketConfig struct {
	Path           string `yaml:"path"`
	MaxMessageSize int    `yaml:"max_message_size"`
	PingInterval   int    `yaml:"ping_interval"`
	PongTimeout    int    `yaml:"pong_timeout"`
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

// LoggingConfig contains logging settings.
type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
	Output string `yaml:"output"`
}

// SecurityConfig contains security settings.
type SecurityConfig struct {
	JWT JWTConfig `yaml:"jwt"`
}

// JWTConfig contains settings for control-endpoint bearer tokens.
// An empty secret leaves the control endpoints open (bench setups only).
type JWTConfig struct {
	Secret         string `yaml:"secret"`
	AccessTokenTTL int    `yaml:"access_token_ttl"`
}

// minJWTSecretLength is the shortest accepted HS256 secret.
const minJWTSecretLength = 32

// Load reads configuration from a YAML file and applies environment variable overrides.
//
// The configuration loading order is:
//  1. Default values (hardcoded)
//  2. YAML file values (override defaults)
//  3. Environment variables (override file values)
//
// Environment variables follow the pattern: CODECBRIDGE_SECTION_KEY
// For example: CODECBRIDGE_CODEC_HOST, CODECBRIDGE_MQTT_PASSWORD
//
// Parameters:
//   - path: Path to the YAML configuration file
//
// Returns:
//   - *Config: Loaded and validated configuration
//   - error: If file cannot be read, parsed, or validation fails
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
		Codec: CodecConfig{
			ID:             "codec-01",
			Port:           80,
			Username:       "admin",
			RequestTimeout: 5,
			PollIntervalMS: 2000,
			AutoConnect:    true,
			AutoPoll:       true,
		},
		Bridge: BridgeConfig{
			ID:             "tieline-bridge-01",
			HealthInterval: 30,
		},
		MQTT: MQTTConfig{
			Enabled: true,
			Broker: MQTTBrokerConfig{
				Host:     "localhost",
				Port:     1883,
				ClientID: "codecbridge",
			},
			QoS: 1,
			Reconnect: MQTTReconnectConfig{
				InitialDelay: 1,
				MaxDelay:     60,
				MaxAttempts:  0,
			},
		},
		API: APIConfig{
			Enabled: true,
			Host:    "0.0.0.0",
			Port:    8090,
			Timeouts: APITimeoutConfig{
				Read:  30,
				Write: 30,
				Idle:  60,
			},
		},
		WebSocket: WebSocketConfig{
			Path:           "/ws",
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
	}
}

// applyEnvOverrides applies environment variable overrides to the configuration.
// Environment variables follow the pattern: CODECBRIDGE_SECTION_KEY
func applyEnvOverrides(cfg *Config) {
	// Codec
	if v := os.Getenv("CODECBRIDGE_CODEC_HOST"); v != "" {
		cfg.Codec.Host = v
	}
	if v := os.Getenv("CODECBRIDGE_CODEC_PORT"); v != "" {
		if port, err := strconv.Atoi(v); err == nil {
			cfg.Codec.Port = port
		}
	}
	if v := os.Getenv("CODECBRIDGE_CODEC_USERNAME"); v != "" {
		cfg.Codec.Username = v
	}
	if v := os.Getenv("CODECBRIDGE_CODEC_PASSWORD"); v != "" {
		cfg.Codec.Password = v
	}

	// MQTT
	if v := os.Getenv("CODECBRIDGE_MQTT_HOST"); v != "" {
		cfg.MQTT.Broker.Host = v
	}
	if v := os.Getenv("CODECBRIDGE_MQTT_USERNAME"); v != "" {
		cfg.MQTT.Auth.Username = v
	}
	if v := os.Getenv("CODECBRIDGE_MQTT_PASSWORD"); v != "" {
		cfg.MQTT.Auth.Password = v
	}

	// API
	if v := os.Getenv("CODECBRIDGE_API_HOST"); v != "" {
		cfg.API.Host = v
	}

	// InfluxDB
	if v := os.Getenv("CODECBRIDGE_INFLUXDB_TOKEN"); v != "" {
		cfg.InfluxDB.Token = v
	}

	// Security
	if v := os.Getenv("CODECBRIDGE_JWT_SECRET"); v != "" {
		cfg.Security.JWT.Secret = v
	}
}

// Validate checks the configuration for errors and security issues.
//
// Returns:
//   - error: Description of validation failure, or nil if valid
func (c *Config) Validate() error {
	var errs []string

	// Codec validation
	if c.Codec.ID == "" {
		errs = append(errs, "codec.id is required")
	} else if strings.ContainsAny(c.Codec.ID, "/+#") {
		errs = append(errs, "codec.id must not contain MQTT topic characters (/ + #)")
	}
	if c.Codec.Host == "" {
		errs = append(errs, "codec.host is required (set CODECBRIDGE_CODEC_HOST environment variable)")
	}
	if c.Codec.Port < 1 || c.Codec.Port > 65535 {
		errs = append(errs, "codec.port must be between 1 and 65535")
	}
	if c.Codec.RequestTimeout < 1 {
		errs = append(errs, "codec.request_timeout must be at least 1 second")
	}
	if c.Codec.PollIntervalMS < 100 {
		errs = append(errs, "codec.poll_interval_ms must be at least 100")
	}

	// Bridge validation
	if c.Bridge.ID == "" {
		errs = append(errs, "bridge.id is required")
	}

	// MQTT validation
	if c.MQTT.Enabled {
		if c.MQTT.QoS < 0 || c.MQTT.QoS > 2 {
			errs = append(errs, "mqtt.qos must be 0, 1, or 2")
		}
		if c.MQTT.Broker.Host == "" {
			errs = append(errs, "mqtt.broker.host is required when mqtt is enabled")
		}
	}

	// API validation
	if c.API.Enabled && (c.API.Port < 1 || c.API.Port > 65535) {
		errs = append(errs, "api.port must be between 1 and 65535")
	}

	// InfluxDB validation
	if c.InfluxDB.Enabled {
		if c.InfluxDB.URL == "" {
			errs = append(errs, "influxdb.url is required when influxdb is enabled")
		}
		if c.InfluxDB.Bucket == "" {
			errs = append(errs, "influxdb.bucket is required when influxdb is enabled")
		}
	}

	// Control endpoints can reboot an on-air codec. A short secret
	// makes forged tokens practical, so reject it outright.
	if s := c.Security.JWT.Secret; s != "" && len(s) < minJWTSecretLength {
		errs = append(errs, "security.jwt.secret must be at least 32 characters")
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

// GetPollInterval returns the codec poll interval as a Duration.
func (c *Config) GetPollInterval() time.Duration {
	return time.Duration(c.Codec.PollIntervalMS) * time.Millisecond
}

// GetRequestTimeout returns the per-request codec timeout as a Duration.
func (c *Config) GetRequestTimeout() time.Duration {
	return time.Duration(c.Codec.RequestTimeout) * time.Second
}

// GetHealthInterval returns the bridge health publish interval as a Duration.
func (c *Config) GetHealthInterval() time.Duration {
	return time.Duration(c.Bridge.HealthInterval) * time.Second
}
