package codec

import "math"

// Baseline values a DeviceState holds before any poll succeeds.
const (
	DefaultProfile    = "N/A"
	DefaultCodecType  = "Unknown"
	DefaultAudioLevel = -60.0

	// FallbackCodecType is used when system info carries no model.
	FallbackCodecType = "Tieline Codec"
)

// DeviceState is the reconciled view of one codec.
//
// Every field holds the most recent value any poll reported for it. A field
// missing from a later snapshot keeps its last known value.
type DeviceState struct {
	Connected          bool    `json:"connected"`
	Profile            string  `json:"profile"`
	BitrateTx          float64 `json:"bitrate_tx"`  // kbps
	BitrateRx          float64 `json:"bitrate_rx"`  // kbps
	Jitter             float64 `json:"jitter"`      // ms
	PacketLoss         float64 `json:"packet_loss"` // percent
	AudioLevelIn       float64 `json:"audio_level_in"`
	AudioLevelOut      float64 `json:"audio_level_out"`
	Muted              bool    `json:"muted"`
	CodecType          string  `json:"codec_type"`
	ConnectionDuration int64   `json:"connection_duration"` // seconds
}

// NewDeviceState returns the baseline state.
func NewDeviceState() DeviceState {
	return DeviceState{
		Profile:       DefaultProfile,
		AudioLevelIn:  DefaultAudioLevel,
		AudioLevelOut: DefaultAudioLevel,
		CodecType:     DefaultCodecType,
	}
}

// Snapshot is one decoded device payload. A nil field was absent from the
// response; a non-nil field was present, even if its value is zero or false.
//
// Both /status and /connection/statistics decode into this type, so a
// source that only reports network counters leaves the audio fields nil.
type Snapshot struct {
	ActiveProfile      *string  `json:"active_profile,omitempty"`
	BitrateTx          *float64 `json:"bitrate_tx,omitempty"`
	BitrateRx          *float64 `json:"bitrate_rx,omitempty"`
	Jitter             *float64 `json:"jitter,omitempty"`
	PacketLoss         *float64 `json:"packet_loss,omitempty"`
	AudioLevelIn       *float64 `json:"audio_level_in,omitempty"`
	AudioLevelOut      *float64 `json:"audio_level_out,omitempty"`
	Muted              *bool    `json:"muted,omitempty"`
	ConnectionDuration *float64 `json:"connection_duration,omitempty"` // seconds, may be fractional
}

// Empty reports whether no field is present.
func (s Snapshot) Empty() bool {
	return s.ActiveProfile == nil &&
		s.BitrateTx == nil &&
		s.BitrateRx == nil &&
		s.Jitter == nil &&
		s.PacketLoss == nil &&
		s.AudioLevelIn == nil &&
		s.AudioLevelOut == nil &&
		s.Muted == nil &&
		s.ConnectionDuration == nil
}

// DropZeroValues returns a copy with every empty string, zero number and
// false flag treated as absent.
//
// Some firmware reports 0 or false for counters it has not measured yet.
// Running a snapshot through this before Merge keeps the previous value in
// that case, at the cost of never recording a genuine zero or an unmute.
func (s Snapshot) DropZeroValues() Snapshot {
	out := s
	if out.ActiveProfile != nil && *out.ActiveProfile == "" {
		out.ActiveProfile = nil
	}
	out.BitrateTx = dropZero(out.BitrateTx)
	out.BitrateRx = dropZero(out.BitrateRx)
	out.Jitter = dropZero(out.Jitter)
	out.PacketLoss = dropZero(out.PacketLoss)
	out.AudioLevelIn = dropZero(out.AudioLevelIn)
	out.AudioLevelOut = dropZero(out.AudioLevelOut)
	if out.Muted != nil && !*out.Muted {
		out.Muted = nil
	}
	out.ConnectionDuration = dropZero(out.ConnectionDuration)
	return out
}

func dropZero(v *float64) *float64 {
	if v == nil || *v == 0 {
		return nil
	}
	return v
}

// Merge folds a snapshot into prev and returns the result.
// Present fields replace, absent fields keep prev. Merge does not touch
// Connected or CodecType; those belong to the session lifecycle.
func Merge(prev DeviceState, in Snapshot) DeviceState {
	next := prev
	if in.ActiveProfile != nil {
		next.Profile = *in.ActiveProfile
	}
	if in.BitrateTx != nil {
		next.BitrateTx = *in.BitrateTx
	}
	if in.BitrateRx != nil {
		next.BitrateRx = *in.BitrateRx
	}
	if in.Jitter != nil {
		next.Jitter = *in.Jitter
	}
	if in.PacketLoss != nil {
		next.PacketLoss = *in.PacketLoss
	}
	if in.AudioLevelIn != nil {
		next.AudioLevelIn = *in.AudioLevelIn
	}
	if in.AudioLevelOut != nil {
		next.AudioLevelOut = *in.AudioLevelOut
	}
	if in.Muted != nil {
		next.Muted = *in.Muted
	}
	if in.ConnectionDuration != nil {
		next.ConnectionDuration = wholeSeconds(*in.ConnectionDuration)
	}
	return next
}

// wholeSeconds truncates a reported duration into [0, math.MaxInt64].
// NaN counts as zero.
func wholeSeconds(v float64) int64 {
	switch {
	case math.IsNaN(v), v <= 0:
		return 0
	case v >= math.MaxInt64:
		return math.MaxInt64
	}
	return int64(v)
}
