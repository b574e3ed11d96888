// Package mqtt provides MQTT client connectivity for the codec bridge.
//
// This package manages:
//   - Connection to the broker with auto-reconnect
//   - Message publishing with QoS guarantees
//   - Topic subscriptions with wildcard support
//   - Last Will and Testament (LWT) for offline detection
//   - Connection health monitoring
//
// # Architecture
//
// The bridge republishes codec state on MQTT so overlay renderers, automation
// and dashboards can consume it without polling the codec themselves.
//
//	Tieline codec ← HTTP poll ← codec bridge → MQTT broker → overlay / consumers
//
// Retained topics (overlay, state, health, system status) give late joiners
// the current picture immediately.
//
// # Security Considerations
//
//   - Enable TLS (cfg.Broker.TLS=true) when the broker is off-host
//   - Command topics can mute or reboot an on-air codec; restrict them with broker ACLs
//   - Anonymous access is only for local development
//
// # Usage
//
//	client, err := mqtt.Connect(cfg.MQTT)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer client.Close()
//
//	err = client.Subscribe(mqtt.Topics{}.BridgeCommand("tieline", "studio-a"), 1,
//	    func(topic string, payload []byte) error {
//	        log.Printf("command: %s", payload)
//	        return nil
//	    })
//
//	client.PublishRetained(mqtt.Topics{}.Overlay("studio-a"), overlayJSON)
package mqtt
