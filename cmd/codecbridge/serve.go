package main

import (
	"context"
	"fmt"

	"github.com/nerrad567/tieline-bridge/internal/api"
	"github.com/nerrad567/tieline-bridge/internal/bridges/tieline"
	"github.com/nerrad567/tieline-bridge/internal/codec"
	"github.com/nerrad567/tieline-bridge/internal/infrastructure/config"
	"github.com/nerrad567/tieline-bridge/internal/infrastructure/influxdb"
	"github.com/nerrad567/tieline-bridge/internal/infrastructure/logging"
	"github.com/nerrad567/tieline-bridge/internal/infrastructure/mqtt"
)

// run is the serve logic, separated from the command for testability.
//
// Parameters:
//   - ctx: Context for cancellation and shutdown signals
//   - configPath: YAML configuration file
//
// Returns:
//   - error: nil on clean shutdown, or error describing failure
func run(ctx context.Context, configPath string) error {
	// Use default logger until config is loaded
	log := logging.Default()
	log.Info("starting codec bridge",
		"version", version,
		"commit", commit,
		"build_date", date,
	)

	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}
	log.Info("configuration loaded", "path", configPath)

	// Reinitialise logger with config settings
	log = logging.New(cfg.Logging, version)
	log.Info("logger initialised",
		"level", cfg.Logging.Level,
		"format", cfg.Logging.Format,
	)

	codecClient := codec.NewClient(codec.ClientOptions{
		RequestTimeout: cfg.GetRequestTimeout(),
		FalsyMerge:     cfg.Codec.FalsyMerge,
		Logger:         log.With("codec_id", cfg.Codec.ID),
	})
	defer func() {
		log.Info("disconnecting from codec")
		codecClient.Disconnect()
	}()

	// Connect to MQTT broker (optional)
	var mqttClient *mqtt.Client
	var bridgeMQTT tieline.MQTTClient
	if cfg.MQTT.Enabled {
		mqttClient, err = connectMQTT(cfg, log)
		if err != nil {
			return fmt.Errorf("connecting to MQTT: %w", err)
		}
		defer func() {
			log.Info("disconnecting from MQTT")
			if closeErr := mqttClient.Close(); closeErr != nil {
				log.Error("error closing MQTT", "error", closeErr)
			}
		}()
		bridgeMQTT = &mqttBridgeAdapter{client: mqttClient}
	} else {
		log.Info("MQTT disabled")
	}

	// Connect to InfluxDB (optional)
	var influxClient *influxdb.Client
	var metrics tieline.MetricsWriter
	if cfg.InfluxDB.Enabled {
		influxClient, err = influxdb.Connect(ctx, cfg.InfluxDB)
		if err != nil {
			return fmt.Errorf("connecting to InfluxDB: %w", err)
		}
		defer func() {
			log.Info("closing InfluxDB connection")
			if closeErr := influxClient.Close(); closeErr != nil {
				log.Error("error closing InfluxDB", "error", closeErr)
			}
		}()
		log.Info("InfluxDB connected",
			"url", cfg.InfluxDB.URL,
			"org", cfg.InfluxDB.Org,
			"bucket", cfg.InfluxDB.Bucket,
		)
		influxClient.SetOnError(func(err error) {
			log.Error("InfluxDB write error", "error", err)
		})
		metrics = influxClient
	} else {
		log.Info("InfluxDB disabled")
	}

	// The hub exists before the bridge so ticks can be broadcast
	var hub *api.Hub
	var broadcaster tieline.Broadcaster
	if cfg.API.Enabled {
		hub = api.NewHub(cfg.WebSocket, log)
		go hub.Run(ctx)
		broadcaster = hub
	}

	bridge, err := tieline.NewBridge(tieline.BridgeOptions{
		Config:      cfg,
		Codec:       codecClient,
		MQTTClient:  bridgeMQTT,
		Metrics:     metrics,
		Broadcaster: broadcaster,
		Version:     version,
		Logger:      log,
	})
	if err != nil {
		return fmt.Errorf("creating bridge: %w", err)
	}
	if err := bridge.Start(ctx); err != nil {
		return fmt.Errorf("starting bridge: %w", err)
	}
	defer func() {
		log.Info("stopping bridge")
		bridge.Stop()
	}()
	log.Info("bridge started",
		"codec_id", cfg.Codec.ID,
		"codec_host", cfg.Codec.Host,
		"connected", codecClient.IsConnected(),
	)

	if cfg.API.Enabled {
		srv, err := api.New(api.Deps{
			Config:      cfg.API,
			WS:          cfg.WebSocket,
			Security:    cfg.Security,
			Logger:      log,
			Codec:       codecClient,
			Commands:    bridge,
			Health:      bridge.Health(),
			ExternalHub: hub,
			Version:     version,
		})
		if err != nil {
			return fmt.Errorf("creating API server: %w", err)
		}
		if err := srv.Start(ctx); err != nil {
			return fmt.Errorf("starting API server: %w", err)
		}
		defer func() {
			if closeErr := srv.Close(); closeErr != nil {
				log.Error("error closing API server", "error", closeErr)
			}
		}()
		if cfg.Security.JWT.Secret == "" {
			log.Warn("security.jwt.secret is empty: control endpoints are unauthenticated")
		}
	} else {
		log.Info("API disabled")
	}

	commandTopic := mqtt.Topics{}.BridgeCommand(tieline.Protocol, cfg.Codec.ID)
	if err := healthCheck(ctx, mqttClient, commandTopic, influxClient); err != nil {
		return fmt.Errorf("health check failed: %w", err)
	}
	log.Info("all health checks passed")

	log.Info("initialisation complete, waiting for shutdown signal")
	<-ctx.Done()
	log.Info("shutdown signal received, cleaning up")

	// Deferred calls run in reverse order: API, bridge, InfluxDB, MQTT, codec.
	log.Info("codec bridge stopped")
	return nil
}

// connectMQTT connects to the broker with the bridge health LWT installed.
// The will is taken from a health reporter for the same bridge ID so the
// offline message matches what the running bridge publishes on that topic.
func connectMQTT(cfg *config.Config, log *logging.Logger) (*mqtt.Client, error) {
	lwt := tieline.NewHealthReporter(tieline.HealthReporterConfig{
		BridgeID: cfg.Bridge.ID,
		CodecID:  cfg.Codec.ID,
		QoS:      byte(cfg.MQTT.QoS),
	})
	will, err := lwt.GetLWTPayload()
	if err != nil {
		return nil, fmt.Errorf("encoding LWT: %w", err)
	}

	client, err := mqtt.Connect(cfg.MQTT, mqtt.WithWill(lwt.GetLWTTopic(), will))
	if err != nil {
		return nil, err
	}
	client.SetLogger(log)
	client.SetOnConnect(func() {
		log.Info("MQTT reconnected")
	})
	client.SetOnDisconnect(func(err error) {
		log.Warn("MQTT disconnected", "error", err)
	})

	log.Info("MQTT connected",
		"broker", fmt.Sprintf("%s:%d", cfg.MQTT.Broker.Host, cfg.MQTT.Broker.Port),
		"client_id", cfg.MQTT.Broker.ClientID,
	)
	return client, nil
}

// healthCheck verifies the optional infrastructure connections.
//
// Parameters:
//   - ctx: Context for timeout/cancellation
//   - mqttClient: MQTT client to check (may be nil if disabled)
//   - commandTopic: topic the bridge must be subscribed to when MQTT is enabled
//   - influxClient: InfluxDB client to check (may be nil if disabled)
//
// Returns:
//   - error: First health check failure, or nil if all healthy
func healthCheck(ctx context.Context, mqttClient *mqtt.Client, commandTopic string, influxClient *influxdb.Client) error {
	if mqttClient != nil {
		if err := mqttClient.HealthCheck(ctx); err != nil {
			return fmt.Errorf("mqtt: %w", err)
		}
		if !mqttClient.HasSubscription(commandTopic) {
			return fmt.Errorf("mqtt: no subscription on %s", commandTopic)
		}
	}

	if influxClient != nil {
		if err := influxClient.HealthCheck(ctx); err != nil {
			return fmt.Errorf("influxdb: %w", err)
		}
	}

	// The codec is not checked: an unreachable codec leaves the bridge
	// running with a disconnected overlay.
	return nil
}

// mqttBridgeAdapter adapts the infrastructure MQTT client to the bridge's
// MQTTClient interface. The difference is the Subscribe handler signature:
// - Infrastructure mqtt: func(topic, payload []byte) error
// - Bridge expects: func(topic, payload []byte)
type mqttBridgeAdapter struct {
	client *mqtt.Client
}

// Publish implements tieline.MQTTClient.
func (a *mqttBridgeAdapter) Publish(topic string, payload []byte, qos byte, retained bool) error {
	return a.client.Publish(topic, payload, qos, retained)
}

// Subscribe implements tieline.MQTTClient.
func (a *mqttBridgeAdapter) Subscribe(topic string, qos byte, handler func(topic string, payload []byte)) error {
	return a.client.Subscribe(topic, qos, func(t string, p []byte) error {
		handler(t, p)
		return nil
	})
}

// Unsubscribe implements tieline.MQTTClient.
func (a *mqttBridgeAdapter) Unsubscribe(topic string) error {
	return a.client.Unsubscribe(topic)
}

// IsConnected implements tieline.MQTTClient.
func (a *mqttBridgeAdapter) IsConnected() bool {
	return a.client.IsConnected()
}
