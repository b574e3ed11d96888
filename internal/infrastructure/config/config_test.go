package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

// writeConfig writes YAML content to a temporary config file.
func writeConfig(t *testing.T, content string) string {
	t.Helper()
	configPath := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(configPath, []byte(content), 0600); err != nil {
		t.Fatalf("failed to write test config: %v", err)
	}
	return configPath
}

// validConfig returns a defaulted configuration that passes validation.
func validConfig() *Config {
	cfg := defaultConfig()
	cfg.Codec.Host = "192.168.10.20"
	return cfg
}

func TestLoad_ValidConfig(t *testing.T) {
	content := `
codec:
  id: "studio-a"
  host: "192.168.10.20"
  port: 8080
  username: "admin"
  password: "secret"
  poll_interval_ms: 1000
  falsy_merge: true
bridge:
  id: "bridge-test"
mqtt:
  broker:
    host: "localhost"
    port: 1883
    client_id: "test-client"
  qos: 1
api:
  host: "0.0.0.0"
  port: 8090
`
	cfg, err := Load(writeConfig(t, content))
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if cfg.Codec.ID != "studio-a" {
		t.Errorf("Codec.ID = %q, want %q", cfg.Codec.ID, "studio-a")
	}
	if cfg.Codec.Port != 8080 {
		t.Errorf("Codec.Port = %d, want 8080", cfg.Codec.Port)
	}
	if !cfg.Codec.FalsyMerge {
		t.Error("Codec.FalsyMerge = false, want true")
	}
	if got := cfg.GetPollInterval(); got != time.Second {
		t.Errorf("GetPollInterval() = %v, want 1s", got)
	}
	// Unset values keep their defaults
	if cfg.Codec.RequestTimeout != 5 {
		t.Errorf("Codec.RequestTimeout = %d, want default 5", cfg.Codec.RequestTimeout)
	}
	if !cfg.Codec.AutoConnect {
		t.Error("Codec.AutoConnect default should be true")
	}
	if cfg.Bridge.ID != "bridge-test" {
		t.Errorf("Bridge.ID = %q, want %q", cfg.Bridge.ID, "bridge-test")
	}
}

func TestLoad_MissingFile(t *testing.T) {
	_, err := Load("/nonexistent/path/config.yaml")
	if err == nil {
		t.Error("Load() expected error for missing file, got nil")
	}
}

func TestLoad_InvalidYAML(t *testing.T) {
	_, err := Load(writeConfig(t, "invalid: [yaml: content"))
	if err == nil {
		t.Error("Load() expected error for invalid YAML, got nil")
	}
}

func TestLoad_ValidationFailure(t *testing.T) {
	content := `
codec:
  id: "studio-a"
  host: ""
`
	_, err := Load(writeConfig(t, content))
	if err == nil {
		t.Fatal("Load() expected validation error for empty codec.host, got nil")
	}
	if !strings.Contains(err.Error(), "codec.host") {
		t.Errorf("Load() error = %v, want mention of codec.host", err)
	}
}

func TestLoad_EnvOverridesFile(t *testing.T) {
	content := `
codec:
  host: "10.0.0.1"
`
	t.Setenv("CODECBRIDGE_CODEC_HOST", "10.0.0.99")

	cfg, err := Load(writeConfig(t, content))
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.Codec.Host != "10.0.0.99" {
		t.Errorf("Codec.Host = %q, want env override %q", cfg.Codec.Host, "10.0.0.99")
	}
}

func TestConfig_Validate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(c *Config)
		wantErr bool
	}{
		{
			name:    "valid config",
			mutate:  func(_ *Config) {},
			wantErr: false,
		},
		{
			name:    "missing codec ID",
			mutate:  func(c *Config) { c.Codec.ID = "" },
			wantErr: true,
		},
		{
			name:    "codec ID with topic wildcard",
			mutate:  func(c *Config) { c.Codec.ID = "studio/#" },
			wantErr: true,
		},
		{
			name:    "missing codec host",
			mutate:  func(c *Config) { c.Codec.Host = "" },
			wantErr: true,
		},
		{
			name:    "invalid codec port",
			mutate:  func(c *Config) { c.Codec.Port = 0 },
			wantErr: true,
		},
		{
			name:    "poll interval too short",
			mutate:  func(c *Config) { c.Codec.PollIntervalMS = 10 },
			wantErr: true,
		},
		{
			name:    "request timeout zero",
			mutate:  func(c *Config) { c.Codec.RequestTimeout = 0 },
			wantErr: true,
		},
		{
			name:    "missing bridge ID",
			mutate:  func(c *Config) { c.Bridge.ID = "" },
			wantErr: true,
		},
		{
			name:    "invalid QoS",
			mutate:  func(c *Config) { c.MQTT.QoS = 3 },
			wantErr: true,
		},
		{
			name: "invalid QoS ignored when MQTT disabled",
			mutate: func(c *Config) {
				c.MQTT.Enabled = false
				c.MQTT.QoS = 3
			},
			wantErr: false,
		},
		{
			name:    "invalid API port",
			mutate:  func(c *Config) { c.API.Port = 70000 },
			wantErr: true,
		},
		{
			name: "API port ignored when API disabled",
			mutate: func(c *Config) {
				c.API.Enabled = false
				c.API.Port = 0
			},
			wantErr: false,
		},
		{
			name: "influxdb enabled without URL",
			mutate: func(c *Config) {
				c.InfluxDB.Enabled = true
				c.InfluxDB.Bucket = "codec"
			},
			wantErr: true,
		},
		{
			name:    "empty JWT secret allowed",
			mutate:  func(c *Config) { c.Security.JWT.Secret = "" },
			wantErr: false,
		},
		{
			name:    "JWT secret too short",
			mutate:  func(c *Config) { c.Security.JWT.Secret = "short" },
			wantErr: true,
		},
		{
			name:    "JWT secret long enough",
			mutate:  func(c *Config) { c.Security.JWT.Secret = "test-secret-key-at-least-32-chars!" },
			wantErr: false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := validConfig()
			tt.mutate(cfg)
			err := cfg.Validate()
			if (err != nil) != tt.wantErr {
				t.Errorf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestConfig_Validate_CollectsAllErrors(t *testing.T) {
	cfg := validConfig()
	cfg.Codec.Host = ""
	cfg.Bridge.ID = ""

	err := cfg.Validate()
	if err == nil {
		t.Fatal("Validate() expected error")
	}
	for _, want := range []string{"codec.host", "bridge.id"} {
		if !strings.Contains(err.Error(), want) {
			t.Errorf("Validate() error = %v, want mention of %s", err, want)
		}
	}
}

func TestConfig_GetTimeouts(t *testing.T) {
	cfg := &Config{
		API: APIConfig{
			Timeouts: APITimeoutConfig{
				Read:  30,
				Write: 45,
				Idle:  60,
			},
		},
		Codec:  CodecConfig{RequestTimeout: 3, PollIntervalMS: 2500},
		Bridge: BridgeConfig{HealthInterval: 15},
	}

	if got := cfg.GetReadTimeout().Seconds(); got != 30 {
		t.Errorf("GetReadTimeout() = %v, want 30", got)
	}
	if got := cfg.GetWriteTimeout().Seconds(); got != 45 {
		t.Errorf("GetWriteTimeout() = %v, want 45", got)
	}
	if got := cfg.GetIdleTimeout().Seconds(); got != 60 {
		t.Errorf("GetIdleTimeout() = %v, want 60", got)
	}
	if got := cfg.GetRequestTimeout(); got != 3*time.Second {
		t.Errorf("GetRequestTimeout() = %v, want 3s", got)
	}
	if got := cfg.GetPollInterval(); got != 2500*time.Millisecond {
		t.Errorf("GetPollInterval() = %v, want 2.5s", got)
	}
	if got := cfg.GetHealthInterval(); got != 15*time.Second {
		t.Errorf("GetHealthInterval() = %v, want 15s", got)
	}
}

func TestApplyEnvOverrides(t *testing.T) {
	cfg := defaultConfig()

	t.Setenv("CODECBRIDGE_CODEC_HOST", "codec.studio.local")
	t.Setenv("CODECBRIDGE_CODEC_PORT", "8081")
	t.Setenv("CODECBRIDGE_CODEC_USERNAME", "operator")
	t.Setenv("CODECBRIDGE_CODEC_PASSWORD", "codec-pass")
	t.Setenv("CODECBRIDGE_MQTT_HOST", "mqtt.example.com")
	t.Setenv("CODECBRIDGE_MQTT_USERNAME", "testuser")
	t.Setenv("CODECBRIDGE_MQTT_PASSWORD", "testpass")
	t.Setenv("CODECBRIDGE_API_HOST", "192.168.1.1")
	t.Setenv("CODECBRIDGE_INFLUXDB_TOKEN", "secret-token")
	t.Setenv("CODECBRIDGE_JWT_SECRET", "jwt-secret")

	applyEnvOverrides(cfg)

	checks := []struct {
		field string
		got   string
		want  string
	}{
		{"Codec.Host", cfg.Codec.Host, "codec.studio.local"},
		{"Codec.Username", cfg.Codec.Username, "operator"},
		{"Codec.Password", cfg.Codec.Password, "codec-pass"},
		{"MQTT.Broker.Host", cfg.MQTT.Broker.Host, "mqtt.example.com"},
		{"MQTT.Auth.Username", cfg.MQTT.Auth.Username, "testuser"},
		{"MQTT.Auth.Password", cfg.MQTT.Auth.Password, "testpass"},
		{"API.Host", cfg.API.Host, "192.168.1.1"},
		{"InfluxDB.Token", cfg.InfluxDB.Token, "secret-token"},
		{"Security.JWT.Secret", cfg.Security.JWT.Secret, "jwt-secret"},
	}
	for _, c := range checks {
		if c.got != c.want {
			t.Errorf("%s = %q, want %q", c.field, c.got, c.want)
		}
	}

	if cfg.Codec.Port != 8081 {
		t.Errorf("Codec.Port = %d, want 8081", cfg.Codec.Port)
	}
}

func TestApplyEnvOverrides_InvalidPortIgnored(t *testing.T) {
	cfg := defaultConfig()
	t.Setenv("CODECBRIDGE_CODEC_PORT", "not-a-port")

	applyEnvOverrides(cfg)

	if cfg.Codec.Port != 80 {
		t.Errorf("Codec.Port = %d, want default 80", cfg.Codec.Port)
	}
}

func TestDefaultConfig(t *testing.T) {
	cfg := defaultConfig()

	if cfg.Codec.Port != 80 {
		t.Errorf("defaultConfig Codec.Port = %d, want 80", cfg.Codec.Port)
	}
	if cfg.Codec.Username != "admin" {
		t.Errorf("defaultConfig Codec.Username = %q, want admin", cfg.Codec.Username)
	}
	if cfg.Codec.PollIntervalMS != 2000 {
		t.Errorf("defaultConfig Codec.PollIntervalMS = %d, want 2000", cfg.Codec.PollIntervalMS)
	}
	if cfg.MQTT.Broker.Port != 1883 {
		t.Errorf("defaultConfig MQTT.Broker.Port = %d, want 1883", cfg.MQTT.Broker.Port)
	}
	if cfg.Bridge.HealthInterval != 30 {
		t.Errorf("defaultConfig Bridge.HealthInterval = %d, want 30", cfg.Bridge.HealthInterval)
	}
}
