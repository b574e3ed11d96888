// Package tieline implements the Tieline codec bridge.
//
// The bridge owns one codec.Client and connects it to the rest of the
// system. Every poll tick's reconciled state goes out to MQTT, InfluxDB and
// WebSocket subscribers. Control commands arrive over MQTT.
//
// # Architecture
//
//	┌──────────────┐   HTTP poll   ┌─────────────────┐   MQTT    ┌──────────────┐
//	│ Tieline codec│◄─────────────►│ Tieline bridge  │◄─────────►│   Consumers  │
//	└──────────────┘               │   (this pkg)    │           └──────────────┘
//	                               └────────┬────────┘
//	                                        │ points / broadcast
//	                                        ▼
//	                               InfluxDB, WebSocket hub
//
// # Topics
//
//   - codecbridge/overlay/{codec_id}: overlay export (retained)
//   - codecbridge/state/tieline/{codec_id}: raw reconciled state (retained)
//   - codecbridge/command/tieline/{codec_id}: control commands
//   - codecbridge/ack/tieline/{codec_id}: command acknowledgements
//   - codecbridge/health/tieline: bridge health (retained, also the LWT topic)
//
// # Commands
//
//	{"id": "c-1", "command": "set_profile", "parameters": {"profile": "Music HQ"}}
//
// Supported commands are mute, unmute, set_profile, reboot, connect and
// disconnect. A command without an id is assigned a UUID.
//
// # Thread Safety
//
// All exported types are safe for concurrent use from multiple goroutines.
package tieline
