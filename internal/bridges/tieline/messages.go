package tieline

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/nerrad567/tieline-bridge/internal/codec"
)

// Protocol is the protocol segment used in bridge topics.
const Protocol = "tieline"

// Command names accepted on the command topic.
const (
	CommandMute       = "mute"
	CommandUnmute     = "unmute"
	CommandSetProfile = "set_profile"
	CommandReboot     = "reboot"
	CommandConnect    = "connect"
	CommandDisconnect = "disconnect"
)

// CommandMessage is a control request for the codec.
// Topic: codecbridge/command/tieline/{codec_id}
type CommandMessage struct {
	// ID correlates the command with its acknowledgement.
	// Assigned a UUID when the sender leaves it empty.
	ID string `json:"id"`

	// Timestamp is when the command was issued (UTC, ISO8601). Optional.
	Timestamp time.Time `json:"timestamp"`

	// Command is one of the Command* names.
	Command string `json:"command"`

	// Parameters contains command-specific values.
	// Examples:
	//   {"channel": "rx"} for mute/unmute
	//   {"profile": "Music HQ"} for set_profile
	Parameters map[string]any `json:"parameters,omitempty"`

	// Source indicates where the command originated (e.g. "automation", "panel").
	Source string `json:"source,omitempty"`
}

// MarshalJSON marshals a CommandMessage with an RFC3339 timestamp.
func (m *CommandMessage) MarshalJSON() ([]byte, error) {
	type Alias CommandMessage
	return json.Marshal(&struct {
		*Alias
		Timestamp string `json:"timestamp"`
	}{
		Alias:     (*Alias)(m),
		Timestamp: m.Timestamp.UTC().Format(time.RFC3339),
	})
}

// UnmarshalJSON unmarshals a CommandMessage. A missing timestamp is allowed.
func (m *CommandMessage) UnmarshalJSON(data []byte) error {
	type Alias CommandMessage
	aux := &struct {
		*Alias
		Timestamp string `json:"timestamp"`
	}{
		Alias: (*Alias)(m),
	}
	if err := json.Unmarshal(data, aux); err != nil {
		return fmt.Errorf("unmarshal command message: %w", err)
	}
	if aux.Timestamp != "" {
		t, err := time.Parse(time.RFC3339, aux.Timestamp)
		if err != nil {
			return fmt.Errorf("parse timestamp: %w", err)
		}
		m.Timestamp = t
	}
	return nil
}

// ParseCommand decodes a command payload and assigns an ID when missing.
func ParseCommand(payload []byte) (CommandMessage, error) {
	var cmd CommandMessage
	if err := json.Unmarshal(payload, &cmd); err != nil {
		return CommandMessage{ID: uuid.NewString()}, fmt.Errorf("%w: %w", ErrInvalidPayload, err)
	}
	if cmd.ID == "" {
		cmd.ID = uuid.NewString()
	}
	return cmd, nil
}

// stringParam returns a string parameter, or "" when absent.
// A present parameter of another type is an error.
func (m CommandMessage) stringParam(key string) (string, error) {
	v, ok := m.Parameters[key]
	if !ok || v == nil {
		return "", nil
	}
	s, ok := v.(string)
	if !ok {
		return "", fmt.Errorf("%w: %s must be a string", ErrInvalidParameters, key)
	}
	return s, nil
}

// AckStatus represents the acknowledgement status of a command.
type AckStatus string

const (
	// AckAccepted indicates the codec accepted the command.
	AckAccepted AckStatus = "accepted"

	// AckFailed indicates the command could not be executed.
	AckFailed AckStatus = "failed"
)

// Error codes for command failures.
const (
	ErrCodeInvalidCommand    = "INVALID_COMMAND"
	ErrCodeInvalidParameters = "INVALID_PARAMETERS"
	ErrCodeNotConnected      = "CODEC_NOT_CONNECTED"
	ErrCodeDeviceUnreachable = "DEVICE_UNREACHABLE"
	ErrCodeControlFailed     = "CONTROL_FAILED"
	ErrCodeTimeout           = "TIMEOUT"
)

// AckMessage acknowledges a command.
// Topic: codecbridge/ack/tieline/{codec_id}
type AckMessage struct {
	CommandID string    `json:"command_id"`
	Timestamp time.Time `json:"timestamp"`
	CodecID   string    `json:"codec_id"`
	Command   string    `json:"command"`
	Status    AckStatus `json:"status"`
	Protocol  string    `json:"protocol"`
	Error     *AckError `json:"error,omitempty"`
}

// AckError contains error details for failed commands.
type AckError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// NewAckMessage creates a successful acknowledgement.
func NewAckMessage(cmd CommandMessage, codecID string) AckMessage {
	return AckMessage{
		CommandID: cmd.ID,
		Timestamp: time.Now().UTC(),
		CodecID:   codecID,
		Command:   cmd.Command,
		Status:    AckAccepted,
		Protocol:  Protocol,
	}
}

// NewAckError creates a failed acknowledgement with error details.
func NewAckError(cmd CommandMessage, codecID, code, message string) AckMessage {
	ack := NewAckMessage(cmd, codecID)
	ack.Status = AckFailed
	ack.Error = &AckError{Code: code, Message: message}
	return ack
}

// StateMessage carries the raw reconciled state.
// Topic: codecbridge/state/tieline/{codec_id}
// QoS: mqtt.qos, Retained: Yes
type StateMessage struct {
	CodecID   string             `json:"codec_id"`
	Timestamp time.Time          `json:"timestamp"`
	Protocol  string             `json:"protocol"`
	Quality   codec.QualityLevel `json:"quality"`
	State     codec.DeviceState  `json:"state"`
}

// NewStateMessage creates a state message for the codec.
func NewStateMessage(codecID string, state codec.DeviceState) StateMessage {
	return StateMessage{
		CodecID:   codecID,
		Timestamp: time.Now().UTC(),
		Protocol:  Protocol,
		Quality:   codec.Quality(state.Connected, state.Jitter, state.PacketLoss),
		State:     state,
	}
}

// HealthStatus represents the operational status of the bridge.
type HealthStatus string

const (
	// HealthHealthy indicates the codec is connected and polling cleanly.
	HealthHealthy HealthStatus = "healthy"

	// HealthDegraded indicates the bridge is running with issues.
	HealthDegraded HealthStatus = "degraded"

	// HealthOffline indicates the bridge vanished without a clean shutdown (LWT).
	HealthOffline HealthStatus = "offline"

	// HealthStarting indicates the bridge is starting up.
	HealthStarting HealthStatus = "starting"

	// HealthStopping indicates the bridge is shutting down.
	HealthStopping HealthStatus = "stopping"
)

// HealthMessage reports bridge status.
// Topic: codecbridge/health/tieline
// QoS: mqtt.qos, Retained: Yes
type HealthMessage struct {
	Bridge        string            `json:"bridge"`
	Timestamp     time.Time         `json:"timestamp"`
	Status        HealthStatus      `json:"status"`
	Version       string            `json:"version,omitempty"`
	UptimeSeconds int64             `json:"uptime_seconds"`
	Codec         *CodecStatus      `json:"codec,omitempty"`
	Statistics    *BridgeStatistics `json:"statistics,omitempty"`

	// Reason explains the status (especially for offline/degraded).
	Reason string `json:"reason,omitempty"`
}

// CodecStatus describes the codec session.
type CodecStatus struct {
	ID      string `json:"id"`
	Status  string `json:"status"` // "connected" or "disconnected"
	Polling bool   `json:"polling"`
}

// BridgeStatistics contains operational counters.
type BridgeStatistics struct {
	// PollsTotal is the number of completed poll cycles.
	PollsTotal uint64 `json:"polls_total"`

	// PollFailures counts cycles in which at least one source failed.
	PollFailures uint64 `json:"poll_failures"`

	CommandsReceived uint64 `json:"commands_received"`
	CommandsFailed   uint64 `json:"commands_failed"`
}

// NewLWTMessage creates the Last Will and Testament health message.
// The broker publishes it if the bridge disconnects unexpectedly.
func NewLWTMessage(bridgeID string) HealthMessage {
	return HealthMessage{
		Bridge:    bridgeID,
		Timestamp: time.Now().UTC(),
		Status:    HealthOffline,
		Reason:    "unexpected_disconnect",
	}
}
