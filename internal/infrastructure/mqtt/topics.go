package mqtt

import "fmt"

// Topic prefixes for the codec bridge.
//
// Bridge topics use the flat scheme: codecbridge/{category}/{protocol}/{codec_id}
// Overlay topics drop the protocol so display tools need not care which
// codec family is behind them.
const (
	// TopicPrefix is the base for all codec bridge topics.
	TopicPrefix = "codecbridge"

	// TopicPrefixSystem is the base for system topics.
	TopicPrefixSystem = "codecbridge/system"
)

// Topics provides builders for codec bridge MQTT topics.
// Using these helpers keeps topic naming consistent across the codebase.
//
//	topics := mqtt.Topics{}
//	overlay := topics.Overlay("studio-a")
//	// Returns: "codecbridge/overlay/studio-a"
type Topics struct{}

// Overlay returns the retained topic carrying the consumer-facing export.
//
// Example: codecbridge/overlay/studio-a
func (Topics) Overlay(codecID string) string {
	return fmt.Sprintf("%s/overlay/%s", TopicPrefix, codecID)
}

// BridgeState returns the retained topic carrying raw reconciled state.
//
// Example: codecbridge/state/tieline/studio-a
func (Topics) BridgeState(protocol, codecID string) string {
	return fmt.Sprintf("%s/state/%s/%s", TopicPrefix, protocol, codecID)
}

// BridgeCommand returns the topic a bridge listens on for control commands.
//
// Example: codecbridge/command/tieline/studio-a
func (Topics) BridgeCommand(protocol, codecID string) string {
	return fmt.Sprintf("%s/command/%s/%s", TopicPrefix, protocol, codecID)
}

// BridgeAck returns the topic for command acknowledgements.
//
// Example: codecbridge/ack/tieline/studio-a
func (Topics) BridgeAck(protocol, codecID string) string {
	return fmt.Sprintf("%s/ack/%s/%s", TopicPrefix, protocol, codecID)
}

// BridgeHealth returns the topic for bridge health status.
//
// Example: codecbridge/health/tieline
func (Topics) BridgeHealth(protocol string) string {
	return fmt.Sprintf("%s/health/%s", TopicPrefix, protocol)
}

// SystemStatus returns the process online/offline topic.
//
// Example: codecbridge/system/status
func (Topics) SystemStatus() string {
	return fmt.Sprintf("%s/status", TopicPrefixSystem)
}
