package tieline

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/nerrad567/tieline-bridge/internal/codec"
	"github.com/nerrad567/tieline-bridge/internal/infrastructure/mqtt"
)

// defaultHealthInterval is used when the configured interval is zero.
const defaultHealthInterval = 30 * time.Second

// HealthReporter manages periodic health status reporting.
// It publishes health messages to MQTT at regular intervals.
type HealthReporter struct {
	bridgeID  string
	codecID   string
	version   string
	startTime time.Time
	interval  time.Duration
	qos       byte
	publisher HealthPublisher
	codec     CodecStatusSource

	stats      BridgeStatistics
	lastFailed int
	statsMu    sync.RWMutex

	// Shutdown coordination (stopOnce prevents double-close panics)
	done     chan struct{}
	wg       sync.WaitGroup
	stopOnce sync.Once

	logger   Logger
	loggerMu sync.RWMutex
}

// HealthPublisher is the interface for publishing health messages.
// This is typically implemented by an MQTT client.
type HealthPublisher interface {
	// Publish sends a message to a topic with the specified QoS and retention.
	Publish(topic string, payload []byte, qos byte, retained bool) error

	// IsConnected returns true if the publisher is connected.
	IsConnected() bool
}

// CodecStatusSource reports the codec session state.
// Satisfied by *codec.Client.
type CodecStatusSource interface {
	IsConnected() bool
	IsPolling() bool
}

// HealthReporterConfig holds configuration for the health reporter.
type HealthReporterConfig struct {
	BridgeID string
	CodecID  string
	Version  string

	// Interval is how often to publish health status.
	// Default: 30 seconds.
	Interval time.Duration

	// QoS for health publishes, normally mqtt.qos.
	QoS byte

	// Publisher is optional; without one nothing is published.
	Publisher HealthPublisher

	Codec CodecStatusSource
}

// NewHealthReporter creates a new health reporter.
//
// Parameters:
//   - cfg: Configuration for the health reporter
//
// Returns:
//   - *HealthReporter: Ready to start (call Start to begin reporting)
func NewHealthReporter(cfg HealthReporterConfig) *HealthReporter {
	interval := cfg.Interval
	if interval <= 0 {
		interval = defaultHealthInterval
	}

	return &HealthReporter{
		bridgeID:  cfg.BridgeID,
		codecID:   cfg.CodecID,
		version:   cfg.Version,
		startTime: time.Now(),
		interval:  interval,
		qos:       cfg.QoS,
		publisher: cfg.Publisher,
		codec:     cfg.Codec,
		done:      make(chan struct{}),
	}
}

// Start begins periodic health reporting. Call Stop to shut down.
//
// Parameters:
//   - ctx: Context for cancellation (will stop reporting when cancelled)
func (h *HealthReporter) Start(ctx context.Context) {
	h.wg.Add(1)
	go h.reportLoop(ctx)
}

// Stop stops health reporting and publishes a final "stopping" status.
// Safe to call multiple times.
func (h *HealthReporter) Stop() {
	h.stopOnce.Do(func() {
		close(h.done)
		h.wg.Wait()

		if err := h.publishStatus(HealthStopping, ""); err != nil {
			h.logError("failed to publish stopping health", err)
		}
	})
}

// SetLogger sets the logger for this reporter.
func (h *HealthReporter) SetLogger(logger Logger) {
	h.loggerMu.Lock()
	h.logger = logger
	h.loggerMu.Unlock()
}

// RecordPoll counts a completed poll cycle.
func (h *HealthReporter) RecordPoll(result codec.CycleResult) {
	failed := result.Failed()

	h.statsMu.Lock()
	h.stats.PollsTotal++
	if failed > 0 {
		h.stats.PollFailures++
	}
	h.lastFailed = failed
	h.statsMu.Unlock()
}

// RecordCommand counts a received command and whether it failed.
func (h *HealthReporter) RecordCommand(failed bool) {
	h.statsMu.Lock()
	h.stats.CommandsReceived++
	if failed {
		h.stats.CommandsFailed++
	}
	h.statsMu.Unlock()
}

// Statistics returns a copy of the counters.
func (h *HealthReporter) Statistics() BridgeStatistics {
	h.statsMu.RLock()
	defer h.statsMu.RUnlock()
	return h.stats
}

// PublishStarting publishes a "starting" status.
func (h *HealthReporter) PublishStarting() error {
	return h.publishStatus(HealthStarting, "bridge starting")
}

// PublishNow publishes the current health status immediately.
func (h *HealthReporter) PublishNow() error {
	status, reason := h.Status()
	return h.publishStatus(status, reason)
}

// Status evaluates the current bridge status and the reason for it.
func (h *HealthReporter) Status() (HealthStatus, string) {
	if h.publisher != nil && !h.publisher.IsConnected() {
		return HealthDegraded, "MQTT disconnected"
	}
	if h.codec == nil || !h.codec.IsConnected() {
		return HealthDegraded, "codec disconnected"
	}

	h.statsMu.RLock()
	lastFailed := h.lastFailed
	h.statsMu.RUnlock()
	if lastFailed > 0 {
		return HealthDegraded, "last poll cycle had failures"
	}

	return HealthHealthy, ""
}

// Uptime returns how long the reporter has existed.
func (h *HealthReporter) Uptime() time.Duration {
	return time.Since(h.startTime)
}

// GetLWTPayload returns the Last Will and Testament message payload.
// This should be set as the MQTT will message during connection.
func (h *HealthReporter) GetLWTPayload() ([]byte, error) {
	return json.Marshal(NewLWTMessage(h.bridgeID))
}

// GetLWTTopic returns the topic for the Last Will and Testament.
func (h *HealthReporter) GetLWTTopic() string {
	return mqtt.Topics{}.BridgeHealth(Protocol)
}

// reportLoop runs the periodic health reporting.
func (h *HealthReporter) reportLoop(ctx context.Context) {
	defer h.wg.Done()

	ticker := time.NewTicker(h.interval)
	defer ticker.Stop()

	if err := h.PublishNow(); err != nil {
		h.logError("failed to publish initial health", err)
	}

	for {
		select {
		case <-ctx.Done():
			return
		case <-h.done:
			return
		case <-ticker.C:
			if err := h.PublishNow(); err != nil {
				h.logError("failed to publish health", err)
			}
		}
	}
}

// buildMessage assembles a health message for the given status.
func (h *HealthReporter) buildMessage(status HealthStatus, reason string) HealthMessage {
	msg := HealthMessage{
		Bridge:        h.bridgeID,
		Timestamp:     time.Now().UTC(),
		Status:        status,
		Version:       h.version,
		UptimeSeconds: int64(h.Uptime().Seconds()),
		Reason:        reason,
	}

	cs := &CodecStatus{ID: h.codecID, Status: "disconnected"}
	if h.codec != nil {
		if h.codec.IsConnected() {
			cs.Status = "connected"
		}
		cs.Polling = h.codec.IsPolling()
	}
	msg.Codec = cs

	stats := h.Statistics()
	msg.Statistics = &stats

	return msg
}

// publishStatus publishes a retained health status message.
func (h *HealthReporter) publishStatus(status HealthStatus, reason string) error {
	if h.publisher == nil {
		return nil
	}

	payload, err := json.Marshal(h.buildMessage(status, reason))
	if err != nil {
		return err
	}

	return h.publisher.Publish(h.GetLWTTopic(), payload, h.qos, true)
}

// logError logs an error if logger is set.
func (h *HealthReporter) logError(msg string, err error) {
	h.loggerMu.RLock()
	logger := h.logger
	h.loggerMu.RUnlock()

	if logger != nil {
		logger.Error(msg, "error", err)
	}
}
