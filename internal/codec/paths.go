package codec

import "net/url"

// Device REST endpoints (Tieline API v1).
const (
	PathSystemInfo           = "/api/v1/system/info"
	PathStatus               = "/api/v1/status"
	PathConnectionStatistics = "/api/v1/connection/statistics"
	PathAudioStatistics      = "/api/v1/audio/statistics"
	PathAudioMute            = "/api/v1/audio/mute"
	PathSystemReboot         = "/api/v1/system/reboot"
)

// ProfileActivatePath returns the activation endpoint for a profile.
//
// Example: /api/v1/profiles/Studio%20A/activate
func ProfileActivatePath(profileID string) string {
	return "/api/v1/profiles/" + url.PathEscape(profileID) + "/activate"
}
