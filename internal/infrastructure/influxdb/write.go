package influxdb

import (
	"time"

	"github.com/influxdata/influxdb-client-go/v2/api/write"
)

// MeasurementCodecTelemetry is the measurement written once per poll tick.
const MeasurementCodecTelemetry = "codec_telemetry"

// CodecSample is one reconciled codec reading.
//
// The bridge fills it from the device state after every poll cycle.
// CodecType and Profile become tags; everything else is a field.
type CodecSample struct {
	CodecType string
	Profile   string

	Connected          bool
	Muted              bool
	BitrateTx          float64 // kbps
	BitrateRx          float64 // kbps
	Jitter             float64 // ms
	PacketLoss         float64 // percent
	AudioLevelIn       float64 // dBFS
	AudioLevelOut      float64 // dBFS
	ConnectionDuration int64   // seconds
	Quality            string

	// PollFailures is how many sources failed in the cycle that produced this sample.
	PollFailures int

	// Time defaults to now when zero.
	Time time.Time
}

// WriteCodecTelemetry writes a codec sample.
//
// The write is non-blocking; points are batched and sent asynchronously.
// Errors surface through the SetOnError callback.
//
// Example:
//
//	client.WriteCodecTelemetry("studio-a", influxdb.CodecSample{
//	    CodecType: "Merlin PLUS", Profile: "Music HQ", Connected: true, Jitter: 6,
//	})
func (c *Client) WriteCodecTelemetry(codecID string, s CodecSample) {
	if !c.IsConnected() {
		return
	}
	c.writeAPI.WritePoint(codecTelemetryPoint(codecID, s))
}

// codecTelemetryPoint builds the line-protocol point for a sample.
func codecTelemetryPoint(codecID string, s CodecSample) *write.Point {
	ts := s.Time
	if ts.IsZero() {
		ts = time.Now()
	}

	tags := map[string]string{
		"codec_id": codecID,
	}
	if s.CodecType != "" {
		tags["codec_type"] = s.CodecType
	}
	if s.Profile != "" {
		tags["profile"] = s.Profile
	}

	return write.NewPoint(
		MeasurementCodecTelemetry,
		tags,
		map[string]interface{}{
			"connected":           s.Connected,
			"muted":               s.Muted,
			"bitrate_tx":          s.BitrateTx,
			"bitrate_rx":          s.BitrateRx,
			"jitter":              s.Jitter,
			"packet_loss":         s.PacketLoss,
			"audio_level_in":      s.AudioLevelIn,
			"audio_level_out":     s.AudioLevelOut,
			"connection_duration": s.ConnectionDuration,
			"quality":             s.Quality,
			"poll_failures":       s.PollFailures,
		},
		ts,
	)
}

// WritePoint writes a custom point with full control over tags and fields.
//
// Parameters:
//   - measurement: The measurement name (table)
//   - tags: Key-value pairs for indexing (low cardinality)
//   - fields: Key-value pairs for the actual data
//
// Example:
//
//	client.WritePoint("bridge_stats",
//	    map[string]string{"bridge_id": "tieline-bridge-01"},
//	    map[string]interface{}{"polls_total": 1200})
func (c *Client) WritePoint(measurement string, tags map[string]string, fields map[string]interface{}) {
	c.WritePointWithTime(measurement, tags, fields, time.Now())
}

// WritePointWithTime writes a custom point with a specific timestamp.
//
// Parameters:
//   - measurement: The measurement name
//   - tags: Key-value pairs for indexing
//   - fields: Key-value pairs for the data
//   - timestamp: The exact time for this data point
func (c *Client) WritePointWithTime(measurement string, tags map[string]string, fields map[string]interface{}, timestamp time.Time) {
	if !c.IsConnected() {
		return
	}

	point := write.NewPoint(measurement, tags, fields, timestamp)
	c.writeAPI.WritePoint(point)
}
