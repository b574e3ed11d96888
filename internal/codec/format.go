package codec

import (
	"encoding/json"
	"fmt"
	"strconv"
	"time"
)

// QualityLevel is a coarse rating of the link, for visual display.
type QualityLevel string

// Quality levels, best to worst.
const (
	QualityExcellent    QualityLevel = "excellent"
	QualityGood         QualityLevel = "good"
	QualityFair         QualityLevel = "fair"
	QualityPoor         QualityLevel = "poor"
	QualityDisconnected QualityLevel = "disconnected"
)

// TimestampFormat is ISO-8601 in UTC with millisecond precision.
const TimestampFormat = "2006-01-02T15:04:05.000Z07:00"

// Quality classifies the link from jitter (ms) and packet loss (percent).
// A disconnected codec is always QualityDisconnected.
func Quality(connected bool, jitter, loss float64) QualityLevel {
	switch {
	case !connected:
		return QualityDisconnected
	case jitter < 10 && loss < 0.1:
		return QualityExcellent
	case jitter < 30 && loss < 0.5:
		return QualityGood
	case jitter < 50 && loss < 1.0:
		return QualityFair
	default:
		return QualityPoor
	}
}

// FormatDuration renders seconds as zero-padded HH:MM:SS.
// Negative input is treated as 0; hours past 99 are printed in full.
func FormatDuration(seconds int64) string {
	if seconds < 0 {
		seconds = 0
	}
	hrs := seconds / 3600
	mins := (seconds % 3600) / 60
	secs := seconds % 60
	return fmt.Sprintf("%02d:%02d:%02d", hrs, mins, secs)
}

// OverlayExport is the consumer-facing view of a codec.
// Field names are a stable contract for overlay and display tools.
type OverlayExport struct {
	IsConnected   bool          `json:"isConnected"`
	CodecType     string        `json:"codecType"`
	AudioStatus   AudioStatus   `json:"audioStatus"`
	Network       NetworkStatus `json:"network"`
	ActiveProfile string        `json:"activeProfile"`
	Duration      string        `json:"duration"`
	Timestamp     string        `json:"timestamp"`
}

// AudioStatus is the audio section of an OverlayExport.
type AudioStatus struct {
	Muted       bool    `json:"muted"`
	InputLevel  float64 `json:"inputLevel"`
	OutputLevel float64 `json:"outputLevel"`
}

// NetworkStatus is the network section of an OverlayExport.
type NetworkStatus struct {
	Bitrate    string       `json:"bitrate"`
	Jitter     string       `json:"jitter"`
	PacketLoss string       `json:"packetLoss"`
	Quality    QualityLevel `json:"quality"`
}

// Export builds the overlay view of state as of now.
func Export(state DeviceState, now time.Time) OverlayExport {
	return OverlayExport{
		IsConnected: state.Connected,
		CodecType:   state.CodecType,
		AudioStatus: AudioStatus{
			Muted:       state.Muted,
			InputLevel:  state.AudioLevelIn,
			OutputLevel: state.AudioLevelOut,
		},
		Network: NetworkStatus{
			Bitrate:    formatNumber(state.BitrateTx) + "/" + formatNumber(state.BitrateRx) + " kbps",
			Jitter:     formatNumber(state.Jitter) + " ms",
			PacketLoss: strconv.FormatFloat(state.PacketLoss, 'f', 2, 64) + "%",
			Quality:    Quality(state.Connected, state.Jitter, state.PacketLoss),
		},
		ActiveProfile: state.Profile,
		Duration:      FormatDuration(state.ConnectionDuration),
		Timestamp:     now.UTC().Format(TimestampFormat),
	}
}

// ExportJSON returns Export(state, now) as JSON indented by two spaces.
func ExportJSON(state DeviceState, now time.Time) ([]byte, error) {
	return json.MarshalIndent(Export(state, now), "", "  ")
}

// formatNumber prints v with the fewest digits that round-trip (250, 12.5).
func formatNumber(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}
