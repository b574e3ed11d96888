package codec

import (
	"encoding/json"
	"math"
	"testing"
)

func ptr[T any](v T) *T {
	return &v
}

func TestNewDeviceState_Defaults(t *testing.T) {
	st := NewDeviceState()

	if st.Connected {
		t.Error("Connected = true, want false")
	}
	if st.Profile != "N/A" {
		t.Errorf("Profile = %q, want N/A", st.Profile)
	}
	if st.AudioLevelIn != -60 || st.AudioLevelOut != -60 {
		t.Errorf("audio levels = %v/%v, want -60/-60", st.AudioLevelIn, st.AudioLevelOut)
	}
	if st.CodecType != "Unknown" {
		t.Errorf("CodecType = %q, want Unknown", st.CodecType)
	}
	if st.BitrateTx != 0 || st.BitrateRx != 0 || st.Jitter != 0 || st.PacketLoss != 0 {
		t.Errorf("network counters = %+v, want zero", st)
	}
}

func TestMerge(t *testing.T) {
	base := NewDeviceState()
	base.Profile = "studio"
	base.BitrateTx = 256
	base.Muted = true

	tests := []struct {
		name  string
		in    Snapshot
		check func(t *testing.T, got DeviceState)
	}{
		{
			name: "empty snapshot keeps everything",
			in:   Snapshot{},
			check: func(t *testing.T, got DeviceState) {
				if got != base {
					t.Errorf("Merge() = %+v, want %+v", got, base)
				}
			},
		},
		{
			name: "present field replaces",
			in:   Snapshot{ActiveProfile: ptr("remote"), Jitter: ptr(12.5)},
			check: func(t *testing.T, got DeviceState) {
				if got.Profile != "remote" {
					t.Errorf("Profile = %q, want remote", got.Profile)
				}
				if got.Jitter != 12.5 {
					t.Errorf("Jitter = %v, want 12.5", got.Jitter)
				}
				if got.BitrateTx != 256 {
					t.Errorf("BitrateTx = %v, want 256 (absent field kept)", got.BitrateTx)
				}
			},
		},
		{
			name: "zero and false are real values",
			in:   Snapshot{BitrateTx: ptr(0.0), Muted: ptr(false)},
			check: func(t *testing.T, got DeviceState) {
				if got.BitrateTx != 0 {
					t.Errorf("BitrateTx = %v, want 0", got.BitrateTx)
				}
				if got.Muted {
					t.Error("Muted = true, want false")
				}
			},
		},
		{
			name: "duration truncated to seconds",
			in:   Snapshot{ConnectionDuration: ptr(61.9)},
			check: func(t *testing.T, got DeviceState) {
				if got.ConnectionDuration != 61 {
					t.Errorf("ConnectionDuration = %d, want 61", got.ConnectionDuration)
				}
			},
		},
		{
			name: "duration beyond int64 saturates",
			in:   Snapshot{ConnectionDuration: ptr(1e19)},
			check: func(t *testing.T, got DeviceState) {
				if got.ConnectionDuration != math.MaxInt64 {
					t.Errorf("ConnectionDuration = %d, want %d", got.ConnectionDuration, int64(math.MaxInt64))
				}
			},
		},
		{
			name: "infinite duration saturates",
			in:   Snapshot{ConnectionDuration: ptr(math.Inf(1))},
			check: func(t *testing.T, got DeviceState) {
				if got.ConnectionDuration != math.MaxInt64 {
					t.Errorf("ConnectionDuration = %d, want %d", got.ConnectionDuration, int64(math.MaxInt64))
				}
			},
		},
		{
			name: "negative duration clamps to zero",
			in:   Snapshot{ConnectionDuration: ptr(-42.0)},
			check: func(t *testing.T, got DeviceState) {
				if got.ConnectionDuration != 0 {
					t.Errorf("ConnectionDuration = %d, want %d", got.ConnectionDuration, int64(0))
				}
			},
		},
		{
			name: "NaN duration clamps to zero",
			in:   Snapshot{ConnectionDuration: ptr(math.NaN())},
			check: func(t *testing.T, got DeviceState) {
				if got.ConnectionDuration != 0 {
					t.Errorf("ConnectionDuration = %d, want %d", got.ConnectionDuration, int64(0))
				}
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tt.check(t, Merge(base, tt.in))
		})
	}
}

func TestMerge_DoesNotMutateInput(t *testing.T) {
	prev := NewDeviceState()
	_ = Merge(prev, Snapshot{ActiveProfile: ptr("x")})
	if prev.Profile != DefaultProfile {
		t.Errorf("prev.Profile = %q, merge must not mutate its input", prev.Profile)
	}
}

func TestMerge_PresentFieldNeverReverts(t *testing.T) {
	snapshots := []string{
		`{"active_profile":"A","bitrate_tx":128}`,
		`{"jitter":4}`,
		`{}`,
		`{"bitrate_rx":96,"muted":true}`,
		`{"packet_loss":0.2}`,
		`{"audio_level_in":-12}`,
	}

	st := NewDeviceState()
	for i, raw := range snapshots {
		var snap Snapshot
		if err := json.Unmarshal([]byte(raw), &snap); err != nil {
			t.Fatalf("unmarshal %d: %v", i, err)
		}
		st = Merge(st, snap)
	}

	want := NewDeviceState()
	want.Profile = "A"
	want.BitrateTx = 128
	want.BitrateRx = 96
	want.Jitter = 4
	want.PacketLoss = 0.2
	want.Muted = true
	want.AudioLevelIn = -12

	if st != want {
		t.Errorf("final state = %+v, want %+v", st, want)
	}
}

func TestSnapshot_DropZeroValues(t *testing.T) {
	in := Snapshot{
		ActiveProfile: ptr(""),
		BitrateTx:     ptr(0.0),
		BitrateRx:     ptr(64.0),
		Muted:         ptr(false),
		Jitter:        ptr(3.0),
	}

	out := in.DropZeroValues()

	if out.ActiveProfile != nil {
		t.Error("empty ActiveProfile should be dropped")
	}
	if out.BitrateTx != nil {
		t.Error("zero BitrateTx should be dropped")
	}
	if out.Muted != nil {
		t.Error("false Muted should be dropped")
	}
	if out.BitrateRx == nil || *out.BitrateRx != 64 {
		t.Errorf("BitrateRx = %v, want 64", out.BitrateRx)
	}
	if out.Jitter == nil || *out.Jitter != 3 {
		t.Errorf("Jitter = %v, want 3", out.Jitter)
	}
	// Original snapshot is left alone
	if in.BitrateTx == nil {
		t.Error("DropZeroValues mutated its receiver")
	}

	prev := NewDeviceState()
	prev.BitrateTx = 256
	prev.Muted = true
	got := Merge(prev, out)
	if got.BitrateTx != 256 || !got.Muted {
		t.Errorf("Merge after DropZeroValues = %+v, want previous values kept", got)
	}
}

func TestSnapshot_Empty(t *testing.T) {
	if !(Snapshot{}).Empty() {
		t.Error("zero Snapshot should be empty")
	}
	if (Snapshot{Muted: ptr(false)}).Empty() {
		t.Error("Snapshot with Muted=false should not be empty")
	}
}
