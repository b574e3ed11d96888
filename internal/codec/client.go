package codec

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"net/http"
	"strconv"
	"sync"
	"time"
)

// Connection defaults.
const (
	DefaultPort     = 80
	DefaultUsername = "admin"

	// DefaultMuteChannel is the channel SetMute targets when none is given.
	DefaultMuteChannel = "tx"
)

// Source names for the default poll cycle.
const (
	SourceStatus               = "status"
	SourceConnectionStatistics = "connection_statistics"
)

// Logger is the logging interface used by the client.
type Logger interface {
	Debug(msg string, keysAndValues ...any)
	Info(msg string, keysAndValues ...any)
	Warn(msg string, keysAndValues ...any)
	Error(msg string, keysAndValues ...any)
}

// Source is one telemetry endpoint fetched during a poll cycle.
// Its response is decoded as a Snapshot and merged into the device state.
type Source struct {
	Name string
	Path string
}

// DefaultSources returns the standard cycle: general status, then
// connection statistics.
func DefaultSources() []Source {
	return []Source{
		{Name: SourceStatus, Path: PathStatus},
		{Name: SourceConnectionStatistics, Path: PathConnectionStatistics},
	}
}

// CycleResult records the outcome of one poll cycle.
type CycleResult struct {
	// Errors maps every source name to its error, nil on success.
	Errors map[string]error

	// Duration is the wall time of the cycle.
	Duration time.Duration
}

// Failed returns how many sources failed.
func (r CycleResult) Failed() int {
	n := 0
	for _, err := range r.Errors {
		if err != nil {
			n++
		}
	}
	return n
}

// OK reports whether every source succeeded.
func (r CycleResult) OK() bool {
	return r.Failed() == 0
}

// TickFunc receives the reconciled state after every poll cycle.
type TickFunc func(state DeviceState, result CycleResult)

// ConnectParams identifies the device to connect to.
type ConnectParams struct {
	Host     string
	Port     int    // Default: 80
	Username string // Default: "admin"
	Password string
}

// SystemInfo is the device's /system/info response.
type SystemInfo struct {
	Model    string `json:"model,omitempty"`
	Serial   string `json:"serial,omitempty"`
	Firmware string `json:"firmware,omitempty"`

	// Raw is the full response body.
	Raw json.RawMessage `json:"-"`
}

// ClientOptions configures a Client.
type ClientOptions struct {
	// Sources is the ordered poll cycle. Default: DefaultSources().
	Sources []Source

	// RequestTimeout bounds each device request. Default: 5s.
	RequestTimeout time.Duration

	// FalsyMerge treats zero and false as absent before merging.
	// See Snapshot.DropZeroValues.
	FalsyMerge bool

	// HTTPClient overrides the transport (tests).
	HTTPClient *http.Client

	// Logger is optional.
	Logger Logger
}

// session is the state of one successful Connect.
type session struct {
	gateway    *Gateway
	generation uint64
}

// Client is the top-level adapter for one Tieline codec.
//
// It owns the connection session, the reconciled DeviceState and the poll
// scheduler. Each application creates its own Client; there is no shared
// instance.
//
// Thread Safety: All methods are safe for concurrent use. Tick updates are
// the single writer of the device state; State, Export and friends read a
// copy. Disconnect, Reboot and StopPolling wait for the poll loop to exit and
// must not be called from a TickFunc.
type Client struct {
	sources        []Source
	requestTimeout time.Duration
	falsyMerge     bool
	httpClient     *http.Client

	mu         sync.RWMutex
	state      DeviceState
	session    *session
	generation uint64

	scheduler *Scheduler

	logger   Logger
	loggerMu sync.RWMutex
}

// NewClient creates a client holding the baseline state and no session.
func NewClient(opts ClientOptions) *Client {
	sources := opts.Sources
	if len(sources) == 0 {
		sources = DefaultSources()
	}
	timeout := opts.RequestTimeout
	if timeout <= 0 {
		timeout = DefaultRequestTimeout
	}

	return &Client{
		sources:        append([]Source(nil), sources...),
		requestTimeout: timeout,
		falsyMerge:     opts.FalsyMerge,
		httpClient:     opts.HTTPClient,
		state:          NewDeviceState(),
		scheduler:      NewScheduler(),
		logger:         opts.Logger,
	}
}

// SetLogger sets the logger for this client.
func (c *Client) SetLogger(logger Logger) {
	c.loggerMu.Lock()
	c.logger = logger
	c.loggerMu.Unlock()
}

// Connect opens a session by reading the device's system info.
// On success the state is marked connected and the codec type is set from
// the reported model. Connecting again replaces the current session.
//
// Returns:
//   - SystemInfo: Decoded device info
//   - error: Wraps ErrConnectFailed on any failure
func (c *Client) Connect(ctx context.Context, p ConnectParams) (SystemInfo, error) {
	if p.Host == "" {
		return SystemInfo{}, fmt.Errorf("%w: %w: host is required", ErrConnectFailed, ErrInvalidArgument)
	}
	if p.Port == 0 {
		p.Port = DefaultPort
	}
	if p.Username == "" {
		p.Username = DefaultUsername
	}

	gw := NewGateway(GatewayConfig{
		BaseURL:    "http://" + net.JoinHostPort(p.Host, strconv.Itoa(p.Port)),
		Username:   p.Username,
		Password:   p.Password,
		Timeout:    c.requestTimeout,
		HTTPClient: c.httpClient,
	})

	raw, err := gw.Get(ctx, PathSystemInfo)
	if err != nil {
		c.logWarn("codec connect failed", "host", p.Host, "port", p.Port, "error", err)
		return SystemInfo{}, fmt.Errorf("%w: %w", ErrConnectFailed, err)
	}

	var info SystemInfo
	if err := json.Unmarshal(raw, &info); err != nil {
		return SystemInfo{}, fmt.Errorf("%w: %w: system info: %w", ErrConnectFailed, ErrMalformedResponse, err)
	}
	info.Raw = raw

	codecType := info.Model
	if codecType == "" {
		codecType = FallbackCodecType
	}

	c.mu.Lock()
	c.generation++
	c.session = &session{gateway: gw, generation: c.generation}
	c.state.Connected = true
	c.state.CodecType = codecType
	c.mu.Unlock()

	c.logInfo("codec connected", "url", gw.BaseURL(), "model", codecType)
	return info, nil
}

// Disconnect stops polling and tears down the session.
// Safe to call when not connected.
func (c *Client) Disconnect() {
	c.scheduler.Stop()

	c.mu.Lock()
	wasConnected := c.session != nil
	c.teardownLocked()
	c.mu.Unlock()

	if wasConnected {
		c.logInfo("codec disconnected")
	}
}

// teardownLocked drops the session. Caller must hold c.mu.
func (c *Client) teardownLocked() {
	c.session = nil
	c.generation++
	c.state.Connected = false
}

// IsConnected reports whether a session is open.
func (c *Client) IsConnected() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.session != nil
}

// State returns a copy of the reconciled device state.
func (c *Client) State() DeviceState {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.state
}

// Sources returns the poll cycle in order.
func (c *Client) Sources() []Source {
	return append([]Source(nil), c.sources...)
}

// Status fetches /status and merges it into the state.
// Errors wrap ErrPollFailed, or are ErrNotConnected without a session.
func (c *Client) Status(ctx context.Context) (Snapshot, error) {
	return c.poll(ctx, PathStatus)
}

// ConnectionStatistics fetches /connection/statistics and merges it.
// Errors wrap ErrPollFailed, or are ErrNotConnected without a session.
func (c *Client) ConnectionStatistics(ctx context.Context) (Snapshot, error) {
	return c.poll(ctx, PathConnectionStatistics)
}

// AudioStatistics returns the raw /audio/statistics body. The response is
// not merged into the state.
func (c *Client) AudioStatistics(ctx context.Context) (json.RawMessage, error) {
	sess, err := c.currentSession()
	if err != nil {
		return nil, err
	}
	raw, err := sess.gateway.Get(ctx, PathAudioStatistics)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrPollFailed, err)
	}
	return raw, nil
}

// Poll runs one cycle over every source in order.
// A failing source is logged and recorded; it does not stop later sources.
func (c *Client) Poll(ctx context.Context) CycleResult {
	start := time.Now()
	result := CycleResult{Errors: make(map[string]error, len(c.sources))}

	for _, src := range c.sources {
		_, err := c.poll(ctx, src.Path)
		result.Errors[src.Name] = err
		if err == nil {
			continue
		}
		if errors.Is(err, ErrNotConnected) {
			c.logDebug("poll source skipped", "source", src.Name, "reason", err)
		} else {
			c.logWarn("poll source failed", "source", src.Name, "error", err)
		}
	}

	result.Duration = time.Since(start)
	return result
}

// StartPolling runs Poll every interval and hands the result to onTick.
// Calling it while already polling replaces the previous loop.
//
// Parameters:
//   - interval: Cadence; <= 0 uses DefaultPollInterval (2s)
//   - onTick: Optional callback, run on the polling goroutine
func (c *Client) StartPolling(interval time.Duration, onTick TickFunc) {
	c.scheduler.Start(interval, func(ctx context.Context) {
		result := c.Poll(ctx)
		if ctx.Err() != nil {
			return
		}
		if onTick != nil {
			onTick(c.State(), result)
		}
	})
	c.logDebug("polling started", "interval", c.scheduler.Interval())
}

// StopPolling stops the poll loop. Safe to call when not polling.
func (c *Client) StopPolling() {
	c.scheduler.Stop()
}

// IsPolling reports whether the poll loop is active.
func (c *Client) IsPolling() bool {
	return c.scheduler.Running()
}

// SetMute mutes or unmutes a channel ("tx" when empty).
// On success the local mute flag follows.
func (c *Client) SetMute(ctx context.Context, channel string, mute bool) error {
	if channel == "" {
		channel = DefaultMuteChannel
	}
	body := struct {
		Channel string `json:"channel"`
		Mute    bool   `json:"mute"`
	}{Channel: channel, Mute: mute}

	gen, err := c.control(ctx, PathAudioMute, body)
	if err != nil {
		return err
	}

	c.mu.Lock()
	if c.sessionCurrentLocked(gen) {
		c.state.Muted = mute
	}
	c.mu.Unlock()

	c.logInfo("codec mute set", "channel", channel, "mute", mute)
	return nil
}

// SetProfile activates a stored profile. On success the local profile follows.
func (c *Client) SetProfile(ctx context.Context, profileID string) error {
	if profileID == "" {
		return fmt.Errorf("%w: %w: profile id is required", ErrControlFailed, ErrInvalidArgument)
	}

	gen, err := c.control(ctx, ProfileActivatePath(profileID), nil)
	if err != nil {
		return err
	}

	c.mu.Lock()
	if c.sessionCurrentLocked(gen) {
		c.state.Profile = profileID
	}
	c.mu.Unlock()

	c.logInfo("codec profile activated", "profile", profileID)
	return nil
}

// Reboot restarts the device. On success the session is torn down and
// polling stops; call Connect again once the device is back.
func (c *Client) Reboot(ctx context.Context) error {
	if _, err := c.control(ctx, PathSystemReboot, nil); err != nil {
		return err
	}
	c.logInfo("codec reboot requested")
	c.Disconnect()
	return nil
}

// ConnectionQuality classifies the current link.
func (c *Client) ConnectionQuality() QualityLevel {
	st := c.State()
	return Quality(st.Connected, st.Jitter, st.PacketLoss)
}

// Export returns the overlay view of the current state.
func (c *Client) Export(now time.Time) OverlayExport {
	return Export(c.State(), now)
}

// ExportJSON returns the overlay view as indented JSON.
func (c *Client) ExportJSON(now time.Time) ([]byte, error) {
	return ExportJSON(c.State(), now)
}

// poll fetches one telemetry path and merges the result.
func (c *Client) poll(ctx context.Context, path string) (Snapshot, error) {
	sess, err := c.currentSession()
	if err != nil {
		return Snapshot{}, err
	}

	raw, err := sess.gateway.Get(ctx, path)
	if err != nil {
		return Snapshot{}, fmt.Errorf("%w: %w", ErrPollFailed, err)
	}

	var snap Snapshot
	if err := json.Unmarshal(raw, &snap); err != nil {
		return Snapshot{}, fmt.Errorf("%w: %w: %s: %w", ErrPollFailed, ErrMalformedResponse, path, err)
	}
	if c.falsyMerge {
		snap = snap.DropZeroValues()
	}

	c.mu.Lock()
	current := c.sessionCurrentLocked(sess.generation)
	if current {
		c.state = Merge(c.state, snap)
	}
	c.mu.Unlock()

	if !current {
		c.logDebug("discarding poll result for closed session", "path", path)
		return snap, fmt.Errorf("%w: session closed during %s", ErrNotConnected, path)
	}
	return snap, nil
}

// control posts a command and returns the generation of the session it ran on.
func (c *Client) control(ctx context.Context, path string, body any) (uint64, error) {
	sess, err := c.currentSession()
	if err != nil {
		return 0, fmt.Errorf("%w: %w", ErrControlFailed, err)
	}
	if _, err := sess.gateway.Post(ctx, path, body); err != nil {
		c.logWarn("codec control failed", "path", path, "error", err)
		return 0, fmt.Errorf("%w: %w", ErrControlFailed, err)
	}
	return sess.generation, nil
}

func (c *Client) currentSession() (*session, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.session == nil {
		return nil, ErrNotConnected
	}
	return c.session, nil
}

// sessionCurrentLocked reports whether gen is still the open session.
// Caller must hold c.mu.
func (c *Client) sessionCurrentLocked(gen uint64) bool {
	return c.session != nil && c.session.generation == gen
}

func (c *Client) getLogger() Logger {
	c.loggerMu.RLock()
	defer c.loggerMu.RUnlock()
	return c.logger
}

func (c *Client) logDebug(msg string, keysAndValues ...any) {
	if logger := c.getLogger(); logger != nil {
		logger.Debug(msg, keysAndValues...)
	}
}

func (c *Client) logInfo(msg string, keysAndValues ...any) {
	if logger := c.getLogger(); logger != nil {
		logger.Info(msg, keysAndValues...)
	}
}

func (c *Client) logWarn(msg string, keysAndValues ...any) {
	if logger := c.getLogger(); logger != nil {
		logger.Warn(msg, keysAndValues...)
	}
}
