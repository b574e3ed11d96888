package tieline

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/nerrad567/tieline-bridge/internal/codec"
	"github.com/nerrad567/tieline-bridge/internal/infrastructure/config"
	"github.com/nerrad567/tieline-bridge/internal/infrastructure/influxdb"
	"github.com/nerrad567/tieline-bridge/internal/infrastructure/mqtt"
)

// Bridge operation constants.
const (
	// commandTimeout bounds a single control command, connect included.
	commandTimeout = 10 * time.Second

	// ChannelCodecState is the WebSocket channel carrying the overlay export.
	ChannelCodecState = "codec.state"
)

// Bridge connects one codec client to MQTT, InfluxDB and WebSocket consumers.
// It handles:
//   - Connecting to the codec and driving the poll loop
//   - Fanning each tick's state out to the configured sinks
//   - Receiving control commands via MQTT and acknowledging them
//   - Health reporting and graceful shutdown
//
// Thread Safety: All methods are safe for concurrent use.
type Bridge struct {
	cfg         *config.Config
	codec       Codec
	mqtt        MQTTClient
	metrics     MetricsWriter
	broadcaster Broadcaster
	health      *HealthReporter
	topics      mqtt.Topics
	qos         byte

	// Shutdown coordination
	done      chan struct{}
	stopOnce  sync.Once
	ctx       context.Context    // Bridge-level context, cancelled on Stop()
	ctxCancel context.CancelFunc // Cancel function for ctx

	logger   Logger
	loggerMu sync.RWMutex
}

// Logger is the logging interface used by the bridge.
type Logger interface {
	Debug(msg string, keysAndValues ...any)
	Info(msg string, keysAndValues ...any)
	Warn(msg string, keysAndValues ...any)
	Error(msg string, keysAndValues ...any)
}

// Codec is the codec client surface the bridge drives.
// Satisfied by *codec.Client.
type Codec interface {
	Connect(ctx context.Context, p codec.ConnectParams) (codec.SystemInfo, error)
	Disconnect()
	IsConnected() bool
	State() codec.DeviceState
	StartPolling(interval time.Duration, onTick codec.TickFunc)
	StopPolling()
	IsPolling() bool
	SetMute(ctx context.Context, channel string, mute bool) error
	SetProfile(ctx context.Context, profileID string) error
	Reboot(ctx context.Context) error
}

// MQTTClient is the interface for MQTT operations.
// This allows mocking in tests and flexibility in implementation.
type MQTTClient interface {
	// Publish sends a message to a topic.
	Publish(topic string, payload []byte, qos byte, retained bool) error

	// Subscribe registers a handler for a topic pattern.
	Subscribe(topic string, qos byte, handler func(topic string, payload []byte)) error

	// Unsubscribe removes the handler for a topic pattern.
	Unsubscribe(topic string) error

	// IsConnected returns true if connected to the broker.
	IsConnected() bool
}

// MetricsWriter records one telemetry sample per tick.
// Satisfied by *influxdb.Client.
type MetricsWriter interface {
	WriteCodecTelemetry(codecID string, s influxdb.CodecSample)
}

// Broadcaster pushes payloads to live subscribers of a channel.
// Satisfied by *api.Hub.
type Broadcaster interface {
	Broadcast(channel string, payload any)
}

// BridgeOptions holds configuration for creating a bridge.
type BridgeOptions struct {
	// Config is the loaded application configuration.
	Config *config.Config

	// Codec is the codec client.
	Codec Codec

	// MQTTClient is optional; without it nothing is published and no
	// commands are received.
	MQTTClient MQTTClient

	// Metrics is optional telemetry storage.
	Metrics MetricsWriter

	// Broadcaster is optional live push to WebSocket clients.
	Broadcaster Broadcaster

	// Version is reported in health messages.
	Version string

	// Logger is optional structured logger.
	Logger Logger
}

// NewBridge creates a new bridge instance.
// Call Start() to begin operation.
func NewBridge(opts BridgeOptions) (*Bridge, error) {
	if opts.Config == nil {
		return nil, fmt.Errorf("config is required")
	}
	if opts.Codec == nil {
		return nil, fmt.Errorf("codec client is required")
	}

	// Create bridge-level context for command cancellation on shutdown
	ctx, ctxCancel := context.WithCancel(context.Background())

	b := &Bridge{
		cfg:         opts.Config,
		codec:       opts.Codec,
		mqtt:        opts.MQTTClient,
		metrics:     opts.Metrics,
		broadcaster: opts.Broadcaster,
		qos:         byte(opts.Config.MQTT.QoS),
		done:        make(chan struct{}),
		ctx:         ctx,
		ctxCancel:   ctxCancel,
		logger:      opts.Logger,
	}

	b.health = NewHealthReporter(HealthReporterConfig{
		BridgeID:  opts.Config.Bridge.ID,
		CodecID:   opts.Config.Codec.ID,
		Version:   opts.Version,
		Interval:  opts.Config.GetHealthInterval(),
		QoS:       byte(opts.Config.MQTT.QoS),
		Publisher: opts.MQTTClient,
		Codec:     opts.Codec,
	})
	if opts.Logger != nil {
		b.health.SetLogger(opts.Logger)
	}

	return b, nil
}

// Start begins bridge operation.
// It subscribes to the command topic, connects to the codec when
// codec.auto_connect is set, starts polling when codec.auto_poll is set,
// and starts health reporting.
//
// A failed codec connect is logged, not returned: the bridge keeps running
// and publishes a disconnected overlay so consumers see the codec is down.
func (b *Bridge) Start(ctx context.Context) error {
	if err := b.health.PublishStarting(); err != nil {
		b.logError("failed to publish starting status", err)
	}

	if b.mqtt != nil {
		commandTopic := b.commandTopic()
		if err := b.mqtt.Subscribe(commandTopic, b.qos, b.handleMQTTMessage); err != nil {
			return fmt.Errorf("subscribe to commands: %w", err)
		}
		b.logInfo("subscribed to commands", "topic", commandTopic)
	}

	if b.cfg.Codec.AutoConnect {
		connectCtx, cancel := context.WithTimeout(ctx, commandTimeout)
		err := b.connect(connectCtx)
		cancel()
		if err != nil {
			b.logWarn("initial codec connect failed", "host", b.cfg.Codec.Host, "error", err)
		}
	}
	b.publishState(b.codec.State())

	b.health.Start(ctx)

	b.logInfo("bridge started",
		"bridge_id", b.cfg.Bridge.ID,
		"codec_id", b.cfg.Codec.ID,
		"connected", b.codec.IsConnected(),
		"polling", b.codec.IsPolling())

	return nil
}

// Stop gracefully shuts down the bridge: the command subscription is
// dropped, polling stops, in-flight commands are cancelled and a final
// "stopping" health status is published.
// Safe to call multiple times.
func (b *Bridge) Stop() {
	b.stopOnce.Do(func() {
		close(b.done)

		if b.mqtt != nil {
			if err := b.mqtt.Unsubscribe(b.commandTopic()); err != nil {
				b.logWarn("failed to unsubscribe from commands", "error", err)
			}
		}

		// Cancel bridge context to abort in-flight commands
		b.ctxCancel()

		b.codec.StopPolling()
		b.health.Stop()

		b.logInfo("bridge stopped")
	})
}

// commandTopic returns the MQTT topic the bridge receives commands on.
func (b *Bridge) commandTopic() string {
	return b.topics.BridgeCommand(Protocol, b.cfg.Codec.ID)
}

// Health returns the bridge health reporter.
func (b *Bridge) Health() *HealthReporter {
	return b.health
}

// connect opens a codec session and starts polling when auto_poll is set.
func (b *Bridge) connect(ctx context.Context) error {
	info, err := b.codec.Connect(ctx, codec.ConnectParams{
		Host:     b.cfg.Codec.Host,
		Port:     b.cfg.Codec.Port,
		Username: b.cfg.Codec.Username,
		Password: b.cfg.Codec.Password,
	})
	if err != nil {
		return err
	}
	b.logInfo("codec session opened", "model", info.Model, "firmware", info.Firmware)

	if b.cfg.Codec.AutoPoll {
		b.codec.StartPolling(b.cfg.GetPollInterval(), b.onTick)
	}
	return nil
}

// onTick fans one poll cycle out to every configured sink.
// It runs on the polling goroutine.
func (b *Bridge) onTick(state codec.DeviceState, result codec.CycleResult) {
	b.health.RecordPoll(result)

	if b.metrics != nil {
		b.metrics.WriteCodecTelemetry(b.cfg.Codec.ID, sampleFromState(state, result))
	}

	b.publishState(state)

	if failed := result.Failed(); failed > 0 {
		b.logDebug("poll cycle had failures", "failed", failed, "duration", result.Duration)
	}
}

// publishState publishes the overlay export and raw state, and broadcasts
// the export to WebSocket subscribers.
func (b *Bridge) publishState(state codec.DeviceState) {
	export := codec.Export(state, time.Now())

	if b.broadcaster != nil {
		b.broadcaster.Broadcast(ChannelCodecState, export)
	}

	if b.mqtt == nil {
		return
	}

	overlay, err := json.Marshal(export)
	if err != nil {
		b.logError("failed to marshal overlay", err)
		return
	}
	if err := b.mqtt.Publish(b.topics.Overlay(b.cfg.Codec.ID), overlay, b.qos, true); err != nil {
		b.logError("failed to publish overlay", err)
	}

	raw, err := json.Marshal(NewStateMessage(b.cfg.Codec.ID, state))
	if err != nil {
		b.logError("failed to marshal state", err)
		return
	}
	if err := b.mqtt.Publish(b.topics.BridgeState(Protocol, b.cfg.Codec.ID), raw, b.qos, true); err != nil {
		b.logError("failed to publish state", err)
	}
}

// sampleFromState converts a tick into an InfluxDB sample.
func sampleFromState(state codec.DeviceState, result codec.CycleResult) influxdb.CodecSample {
	return influxdb.CodecSample{
		CodecType:          state.CodecType,
		Profile:            state.Profile,
		Connected:          state.Connected,
		Muted:              state.Muted,
		BitrateTx:          state.BitrateTx,
		BitrateRx:          state.BitrateRx,
		Jitter:             state.Jitter,
		PacketLoss:         state.PacketLoss,
		AudioLevelIn:       state.AudioLevelIn,
		AudioLevelOut:      state.AudioLevelOut,
		ConnectionDuration: state.ConnectionDuration,
		Quality:            string(codec.Quality(state.Connected, state.Jitter, state.PacketLoss)),
		PollFailures:       result.Failed(),
		Time:               time.Now(),
	}
}

// handleMQTTMessage routes incoming MQTT messages.
func (b *Bridge) handleMQTTMessage(topic string, payload []byte) {
	parts := strings.Split(topic, "/")
	if len(parts) < 2 || parts[1] != "command" {
		b.logError("unexpected topic", fmt.Errorf("topic: %s", topic))
		return
	}
	b.handleCommand(payload)
}

// handleCommand parses, executes and acknowledges one command.
func (b *Bridge) handleCommand(payload []byte) {
	select {
	case <-b.done:
		return
	default:
	}

	cmd, err := ParseCommand(payload)
	if err != nil {
		b.health.RecordCommand(true)
		b.publishAck(NewAckError(cmd, b.cfg.Codec.ID, ErrCodeInvalidCommand, err.Error()))
		return
	}

	b.logInfo("received command",
		"command_id", cmd.ID,
		"command", cmd.Command,
		"source", cmd.Source)

	if err := b.ExecuteCommand(cmd); err != nil {
		b.health.RecordCommand(true)
		b.logWarn("command failed", "command_id", cmd.ID, "command", cmd.Command, "error", err)
		b.publishAck(NewAckError(cmd, b.cfg.Codec.ID, ErrorCode(err), err.Error()))
		return
	}

	b.health.RecordCommand(false)
	b.publishAck(NewAckMessage(cmd, b.cfg.Codec.ID))
}

// ExecuteCommand runs a command against the codec.
// The command is cancelled when the bridge stops.
//
// Returns:
//   - error: ErrUnknownCommand, ErrInvalidParameters, or a codec error
func (b *Bridge) ExecuteCommand(cmd CommandMessage) error {
	// Derive timeout from bridge context so commands are cancelled on shutdown
	ctx, cancel := context.WithTimeout(b.ctx, commandTimeout)
	defer cancel()

	switch cmd.Command {
	case CommandMute, CommandUnmute:
		channel, err := cmd.stringParam("channel")
		if err != nil {
			return err
		}
		return b.codec.SetMute(ctx, channel, cmd.Command == CommandMute)

	case CommandSetProfile:
		profile, err := cmd.stringParam("profile")
		if err != nil {
			return err
		}
		if profile == "" {
			return fmt.Errorf("%w: profile is required", ErrInvalidParameters)
		}
		return b.codec.SetProfile(ctx, profile)

	case CommandReboot:
		if err := b.codec.Reboot(ctx); err != nil {
			return err
		}
		b.publishState(b.codec.State())
		return nil

	case CommandConnect:
		if err := b.connect(ctx); err != nil {
			return err
		}
		b.publishState(b.codec.State())
		return nil

	case CommandDisconnect:
		b.codec.Disconnect()
		b.publishState(b.codec.State())
		return nil

	default:
		return fmt.Errorf("%w: %q", ErrUnknownCommand, cmd.Command)
	}
}

// ErrorCode maps a command error to an ack error code.
func ErrorCode(err error) string {
	switch {
	case errors.Is(err, ErrUnknownCommand), errors.Is(err, ErrInvalidPayload):
		return ErrCodeInvalidCommand
	case errors.Is(err, ErrInvalidParameters), errors.Is(err, codec.ErrInvalidArgument):
		return ErrCodeInvalidParameters
	case errors.Is(err, context.DeadlineExceeded):
		return ErrCodeTimeout
	case errors.Is(err, codec.ErrNotConnected):
		return ErrCodeNotConnected
	case errors.Is(err, codec.ErrConnectFailed), errors.Is(err, codec.ErrRequestFailed):
		return ErrCodeDeviceUnreachable
	default:
		return ErrCodeControlFailed
	}
}

// publishAck publishes an acknowledgement at the configured QoS, not retained.
func (b *Bridge) publishAck(ack AckMessage) {
	if b.mqtt == nil {
		return
	}

	payload, err := json.Marshal(ack)
	if err != nil {
		b.logError("failed to marshal ack", err)
		return
	}

	if err := b.mqtt.Publish(b.topics.BridgeAck(Protocol, b.cfg.Codec.ID), payload, b.qos, false); err != nil {
		b.logError("failed to publish ack", err)
	}
}

// SetLogger sets the logger for the bridge and its health reporter.
func (b *Bridge) SetLogger(logger Logger) {
	b.loggerMu.Lock()
	b.logger = logger
	b.loggerMu.Unlock()

	if b.health != nil {
		b.health.SetLogger(logger)
	}
}

func (b *Bridge) getLogger() Logger {
	b.loggerMu.RLock()
	defer b.loggerMu.RUnlock()
	return b.logger
}

// logInfo logs an info message if logger is set.
func (b *Bridge) logInfo(msg string, keysAndValues ...any) {
	if logger := b.getLogger(); logger != nil {
		logger.Info(msg, keysAndValues...)
	}
}

// logWarn logs a warning if logger is set.
func (b *Bridge) logWarn(msg string, keysAndValues ...any) {
	if logger := b.getLogger(); logger != nil {
		logger.Warn(msg, keysAndValues...)
	}
}

// logError logs an error message if logger is set.
func (b *Bridge) logError(msg string, err error) {
	if logger := b.getLogger(); logger != nil {
		logger.Error(msg, "error", err)
	}
}

// logDebug logs a debug message if logger is set.
func (b *Bridge) logDebug(msg string, keysAndValues ...any) {
	if logger := b.getLogger(); logger != nil {
		logger.Debug(msg, keysAndValues...)
	}
}
