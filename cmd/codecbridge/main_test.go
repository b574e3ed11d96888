package main

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"testing"
	"time"

	"github.com/nerrad567/tieline-bridge/internal/auth"
	"github.com/nerrad567/tieline-bridge/internal/codec"
	"github.com/nerrad567/tieline-bridge/internal/infrastructure/config"
	"github.com/nerrad567/tieline-bridge/internal/infrastructure/mqtt"
)

// writeConfig writes a config that needs no broker, database or listener.
func writeConfig(t *testing.T, host string, port int, extra string) string {
	t.Helper()

	content := fmt.Sprintf(`
codec:
  id: studio-a
  host: %q
  port: %d
  username: admin
  password: secret
  request_timeout: 2
  poll_interval_ms: 500
  auto_connect: false

bridge:
  id: test-bridge
  health_interval: 3600

mqtt:
  enabled: false

api:
  enabled: false

influxdb:
  enabled: false

logging:
  level: error
  format: text
  output: stdout
%s`, host, port, extra)

	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte(content), 0600); err != nil {
		t.Fatalf("failed to write test config: %v", err)
	}
	return path
}

// fakeCodec serves the device endpoints a status run touches.
func fakeCodec(t *testing.T, statsStatus int) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		switch r.URL.Path {
		case codec.PathSystemInfo:
			fmt.Fprint(w, `{"model":"Merlin PLUS","serial":"MP-0042","firmware":"2.18.90"}`)
		case codec.PathStatus:
			fmt.Fprint(w, `{"active_profile":"Music HQ","muted":false,"audio_level_in":-18,"audio_level_out":-20,"connection_duration":3661}`)
		case codec.PathConnectionStatistics:
			if statsStatus != http.StatusOK {
				w.WriteHeader(statsStatus)
				return
			}
			fmt.Fprint(w, `{"bitrate_tx":256,"bitrate_rx":128,"jitter":12.5,"packet_loss":0.2}`)
		default:
			w.WriteHeader(http.StatusNotFound)
		}
	}))
	t.Cleanup(srv.Close)
	return srv
}

func hostPort(t *testing.T, rawURL string) (string, int) {
	t.Helper()
	host, portStr, err := net.SplitHostPort(strings.TrimPrefix(rawURL, "http://"))
	if err != nil {
		t.Fatalf("split %q: %v", rawURL, err)
	}
	port, err := strconv.Atoi(portStr)
	if err != nil {
		t.Fatalf("port %q: %v", portStr, err)
	}
	return host, port
}

func loadConfig(t *testing.T, path string) *config.Config {
	t.Helper()
	cfg, err := config.Load(path)
	if err != nil {
		t.Fatalf("config.Load() error: %v", err)
	}
	return cfg
}

func TestGetConfigPath(t *testing.T) {
	tests := []struct {
		name string
		flag string
		env  string
		want string
	}{
		{"flag wins", "/etc/codecbridge.yaml", "/env.yaml", "/etc/codecbridge.yaml"},
		{"env", "", "/env.yaml", "/env.yaml"},
		{"default", "", "", defaultConfigPath},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Setenv("CODECBRIDGE_CONFIG", tt.env)
			if got := getConfigPath(tt.flag); got != tt.want {
				t.Errorf("getConfigPath(%q) = %q, want %q", tt.flag, got, tt.want)
			}
		})
	}
}

// TestRun_InvalidConfig verifies run fails with invalid config path.
func TestRun_InvalidConfig(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := run(ctx, "/nonexistent/path/config.yaml"); err == nil {
		t.Fatal("run() should fail with invalid config path")
	}
}

// TestRun_ValidationError verifies run reports config validation failures.
func TestRun_ValidationError(t *testing.T) {
	path := writeConfig(t, "", 80, "")

	err := run(context.Background(), path)
	if err == nil {
		t.Fatal("run() should fail without codec.host")
	}
	if !strings.Contains(err.Error(), "codec.host is required") {
		t.Errorf("error = %v, want codec.host validation message", err)
	}
}

// TestRun_ShutdownOnCancel runs with every optional sink disabled and
// verifies a cancelled context shuts the bridge down cleanly.
func TestRun_ShutdownOnCancel(t *testing.T) {
	path := writeConfig(t, "127.0.0.1", 9, "")

	ctx, cancel := context.WithTimeout(context.Background(), 200*time.Millisecond)
	defer cancel()

	done := make(chan error, 1)
	go func() { done <- run(ctx, path) }()

	select {
	case err := <-done:
		if err != nil {
			t.Errorf("run() error = %v", err)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("run() did not return after context cancellation")
	}
}

func TestRunStatus_Table(t *testing.T) {
	host, port := hostPort(t, fakeCodec(t, http.StatusOK).URL)
	cfg := loadConfig(t, writeConfig(t, host, port, ""))

	var out bytes.Buffer
	if err := runStatus(context.Background(), cfg, &out, false); err != nil {
		t.Fatalf("runStatus() error: %v", err)
	}

	for _, want := range []string{"studio-a", "Merlin PLUS", "2.18.90", "Music HQ", "256/128 kbps", "12.5 ms", "good", "01:01:01", "connection_statistics"} {
		if !strings.Contains(out.String(), want) {
			t.Errorf("output missing %q:\n%s", want, out.String())
		}
	}
}

func TestRunStatus_JSON(t *testing.T) {
	host, port := hostPort(t, fakeCodec(t, http.StatusOK).URL)
	cfg := loadConfig(t, writeConfig(t, host, port, ""))

	var out bytes.Buffer
	if err := runStatus(context.Background(), cfg, &out, true); err != nil {
		t.Fatalf("runStatus() error: %v", err)
	}

	var export codec.OverlayExport
	if err := json.Unmarshal(out.Bytes(), &export); err != nil {
		t.Fatalf("unmarshal %q: %v", out.String(), err)
	}
	if !export.IsConnected || export.CodecType != "Merlin PLUS" || export.ActiveProfile != "Music HQ" {
		t.Errorf("export = %+v", export)
	}
	if export.Network.PacketLoss != "0.20%" {
		t.Errorf("packetLoss = %q, want 0.20%%", export.Network.PacketLoss)
	}
}

func TestRunStatus_PartialFailure(t *testing.T) {
	host, port := hostPort(t, fakeCodec(t, http.StatusInternalServerError).URL)
	cfg := loadConfig(t, writeConfig(t, host, port, ""))

	var out bytes.Buffer
	if err := runStatus(context.Background(), cfg, &out, false); err != nil {
		t.Fatalf("runStatus() error: %v", err)
	}
	// Status fields still arrive when statistics fail
	if !strings.Contains(out.String(), "Music HQ") {
		t.Errorf("output missing status fields:\n%s", out.String())
	}
	if !strings.Contains(out.String(), "500") {
		t.Errorf("output missing statistics failure:\n%s", out.String())
	}
}

func TestRunStatus_Unreachable(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	host, port := hostPort(t, srv.URL)
	srv.Close()
	cfg := loadConfig(t, writeConfig(t, host, port, ""))

	err := runStatus(context.Background(), cfg, &bytes.Buffer{}, false)
	if !errors.Is(err, codec.ErrConnectFailed) {
		t.Errorf("runStatus() error = %v, want ErrConnectFailed", err)
	}
}

func TestSourceRows(t *testing.T) {
	rows := sourceRows(codec.CycleResult{Errors: map[string]error{
		"status":                nil,
		"connection_statistics": errors.New("HTTP 500"),
	}})

	if len(rows) != 2 {
		t.Fatalf("rows = %v, want 2", rows)
	}
	if rows[0][0] != "connection_statistics" || rows[0][1] != "HTTP 500" {
		t.Errorf("rows[0] = %v", rows[0])
	}
	if rows[1][0] != "status" || rows[1][1] != "ok" {
		t.Errorf("rows[1] = %v", rows[1])
	}
}

func TestMintToken(t *testing.T) {
	const secret = "test-secret-key-at-least-32-characters-long"

	if _, err := mintToken("", "ops", auth.RoleOperator, 60); err == nil {
		t.Error("mintToken() with empty secret should fail")
	}
	if _, err := mintToken(secret, "ops", auth.Role("root"), 60); !errors.Is(err, auth.ErrInvalidRole) {
		t.Errorf("mintToken() with bad role error = %v, want ErrInvalidRole", err)
	}

	token, err := mintToken(secret, "ops", auth.RoleAdmin, 5)
	if err != nil {
		t.Fatalf("mintToken() error: %v", err)
	}
	claims, err := auth.ParseToken(token, secret)
	if err != nil {
		t.Fatalf("ParseToken() error: %v", err)
	}
	if claims.Subject != "ops" || claims.Role != auth.RoleAdmin {
		t.Errorf("claims = %+v", claims)
	}
}

func TestTokenCommand(t *testing.T) {
	path := writeConfig(t, "127.0.0.1", 80, `
security:
  jwt:
    secret: "test-secret-key-at-least-32-characters-long"
`)

	cmd := newRootCommand()
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetArgs([]string{"--config", path, "token", "--subject", "automation", "--role", "viewer"})
	if err := cmd.Execute(); err != nil {
		t.Fatalf("Execute() error: %v", err)
	}

	claims, err := auth.ParseToken(strings.TrimSpace(out.String()), "test-secret-key-at-least-32-characters-long")
	if err != nil {
		t.Fatalf("ParseToken() error: %v", err)
	}
	if claims.Role != auth.RoleViewer {
		t.Errorf("role = %q, want viewer", claims.Role)
	}
}

func TestVersionCommand(t *testing.T) {
	cmd := newRootCommand()
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetArgs([]string{"version"})
	if err := cmd.Execute(); err != nil {
		t.Fatalf("Execute() error: %v", err)
	}
	if !strings.HasPrefix(out.String(), "codecbridge "+version) {
		t.Errorf("version output = %q", out.String())
	}
}

func TestHealthCheck(t *testing.T) {
	const topic = "codecbridge/command/tieline/studio-a"

	if err := healthCheck(context.Background(), nil, topic, nil); err != nil {
		t.Errorf("healthCheck() with everything disabled error = %v", err)
	}

	err := healthCheck(context.Background(), &mqtt.Client{}, topic, nil)
	if !errors.Is(err, mqtt.ErrNotConnected) {
		t.Errorf("healthCheck() with disconnected MQTT error = %v, want ErrNotConnected", err)
	}
}

func TestMQTTBridgeAdapter_Unsubscribe(t *testing.T) {
	a := &mqttBridgeAdapter{client: &mqtt.Client{}}
	if err := a.Unsubscribe("codecbridge/command/tieline/studio-a"); !errors.Is(err, mqtt.ErrNotConnected) {
		t.Errorf("Unsubscribe() error = %v, want ErrNotConnected", err)
	}
}
