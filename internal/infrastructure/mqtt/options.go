package mqtt

import (
	"crypto/tls"
	"encoding/json"
	"fmt"
	"time"

	pahomqtt "github.com/eclipse/paho.mqtt.golang"

	"github.com/nerrad567/tieline-bridge/internal/infrastructure/config"
)

// Connection constants.
const (
	// defaultConnectTimeout is the maximum time to wait for initial connection.
	defaultConnectTimeout = 10 * time.Second

	// defaultPublishTimeout is the maximum time to wait for publish acknowledgment.
	defaultPublishTimeout = 5 * time.Second

	// defaultDisconnectQuiesce is the time to wait for pending operations on disconnect.
	defaultDisconnectQuiesce = 1000 // milliseconds

	// defaultKeepAlive is the keepalive interval for the connection.
	defaultKeepAlive = 60 * time.Second

	// maxQoS is the maximum QoS level supported.
	maxQoS = 2

	// tlsMinVersion is the minimum TLS version for secure connections.
	tlsMinVersion = tls.VersionTLS12
)

// Status values carried on the system status topic.
const (
	StatusOnline  = "online"
	StatusOffline = "offline"
)

// StatusPayload is the JSON published on the system status topic.
type StatusPayload struct {
	Status    string `json:"status"`
	ClientID  string `json:"client_id"`
	Reason    string `json:"reason,omitempty"`
	Timestamp string `json:"timestamp"`
}

// Will is a Last Will and Testament message.
type Will struct {
	Topic   string
	Payload []byte
}

// Option customises Connect.
type Option func(*connectOptions)

type connectOptions struct {
	will *Will
}

// WithWill replaces the default system-status LWT with a custom message,
// for example a bridge health payload. The will is always retained at QoS 1.
func WithWill(topic string, payload []byte) Option {
	return func(o *connectOptions) {
		o.will = &Will{Topic: topic, Payload: payload}
	}
}

// buildClientOptions creates paho MQTT options from bridge config.
//
// This configures:
//   - Broker URL (tcp:// or ssl:// based on TLS setting)
//   - Client ID for identification
//   - Authentication credentials (if provided)
//   - Auto-reconnect with exponential backoff
//   - TLS configuration (if enabled)
//   - Clean session mode
func buildClientOptions(cfg config.MQTTConfig) *pahomqtt.ClientOptions {
	opts := pahomqtt.NewClientOptions()

	scheme := "tcp"
	if cfg.Broker.TLS {
		scheme = "ssl"
	}
	opts.AddBroker(brokerURL(scheme, cfg.Broker.Host, cfg.Broker.Port))

	opts.SetClientID(cfg.Broker.ClientID)

	if cfg.Auth.Username != "" {
		opts.SetUsername(cfg.Auth.Username)
		opts.SetPassword(cfg.Auth.Password)
	}

	// No persistent session: retained overlay/state topics carry what matters
	opts.SetCleanSession(true)

	opts.SetAutoReconnect(true)
	opts.SetConnectRetry(true)
	opts.SetConnectRetryInterval(time.Duration(cfg.Reconnect.InitialDelay) * time.Second)
	opts.SetMaxReconnectInterval(time.Duration(cfg.Reconnect.MaxDelay) * time.Second)

	opts.SetConnectTimeout(defaultConnectTimeout)
	opts.SetKeepAlive(defaultKeepAlive)

	if cfg.Broker.TLS {
		opts.SetTLSConfig(&tls.Config{
			MinVersion: tlsMinVersion,
		})
	}

	return opts
}

func brokerURL(scheme, host string, port int) string {
	return fmt.Sprintf("%s://%s:%d", scheme, host, port)
}

// configureLWT sets the Last Will and Testament.
//
// The broker publishes it if the process disconnects unexpectedly, so
// overlay tools can tell a dead bridge from a quiet codec. Without a custom
// will the default is an offline payload on codecbridge/system/status.
func configureLWT(opts *pahomqtt.ClientOptions, clientID string, will *Will) {
	if will != nil {
		opts.SetBinaryWill(will.Topic, will.Payload, 1, true)
		return
	}
	opts.SetBinaryWill(Topics{}.SystemStatus(), buildStatusPayload(clientID, StatusOffline, "unexpected_disconnect"), 1, true)
}

// buildStatusPayload encodes a system status message.
func buildStatusPayload(clientID, status, reason string) []byte {
	payload, err := json.Marshal(StatusPayload{
		Status:    status,
		ClientID:  clientID,
		Reason:    reason,
		Timestamp: time.Now().UTC().Format(time.RFC3339),
	})
	if err != nil {
		// StatusPayload has only string fields
		return []byte(`{"status":"` + status + `"}`)
	}
	return payload
}
