package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/url"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/nerrad567/tieline-bridge/internal/bridges/tieline"
	"github.com/nerrad567/tieline-bridge/internal/codec"
)

// commandSource marks commands issued through the REST API.
const commandSource = "api"

// stateResponse is the body of GET /codec/state.
type stateResponse struct {
	codec.DeviceState
	Quality  codec.QualityLevel `json:"quality"`
	Duration string             `json:"duration"`
	Polling  bool               `json:"polling"`
}

// muteRequest is the body of POST /codec/mute.
type muteRequest struct {
	Channel string `json:"channel,omitempty"`
	Mute    *bool  `json:"mute"`
}

// commandResponse is returned when the codec accepted a command.
type commandResponse struct {
	CommandID string            `json:"command_id"`
	Command   string            `json:"command"`
	Status    tieline.AckStatus `json:"status"`
}

// handleGetState returns the reconciled codec state.
func (s *Server) handleGetState(w http.ResponseWriter, _ *http.Request) {
	st := s.codec.State()
	writeJSON(w, http.StatusOK, stateResponse{
		DeviceState: st,
		Quality:     codec.Quality(st.Connected, st.Jitter, st.PacketLoss),
		Duration:    codec.FormatDuration(st.ConnectionDuration),
		Polling:     s.codec.IsPolling(),
	})
}

// handleGetOverlay returns the overlay export of the current state.
func (s *Server) handleGetOverlay(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, codec.Export(s.codec.State(), time.Now()))
}

// handleGetAudio proxies the device's audio statistics document.
func (s *Server) handleGetAudio(w http.ResponseWriter, r *http.Request) {
	raw, err := s.codec.AudioStatistics(r.Context())
	if err != nil {
		if errors.Is(err, codec.ErrNotConnected) {
			writeError(w, http.StatusConflict, ErrCodeNotConnected, "codec not connected")
			return
		}
		s.logger.Warn("audio statistics failed", "error", err)
		writeError(w, http.StatusBadGateway, ErrCodeCodec, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, raw)
}

// handleMute mutes or unmutes a channel.
func (s *Server) handleMute(w http.ResponseWriter, r *http.Request) {
	var req muteRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeBadRequest(w, "invalid JSON body")
		return
	}
	if req.Mute == nil {
		writeBadRequest(w, "mute is required")
		return
	}

	command := tieline.CommandUnmute
	if *req.Mute {
		command = tieline.CommandMute
	}
	var params map[string]any
	if req.Channel != "" {
		params = map[string]any{"channel": req.Channel}
	}
	s.runCommand(w, r, command, params)
}

// handleActivateProfile switches the codec to the profile in the path.
func (s *Server) handleActivateProfile(w http.ResponseWriter, r *http.Request) {
	id, err := profileID(r)
	if err != nil || id == "" {
		writeBadRequest(w, "invalid profile id")
		return
	}
	s.runCommand(w, r, tieline.CommandSetProfile, map[string]any{"profile": id})
}

// profileID returns the decoded {id} segment. chi matches on r.URL.Path,
// which is already decoded, unless an escaped "/" made net/url keep a
// RawPath; only then is the segment still escaped.
func profileID(r *http.Request) (string, error) {
	id := chi.URLParam(r, "id")
	if r.URL.RawPath == "" {
		return id, nil
	}
	return url.PathUnescape(id)
}

// handleReboot restarts the codec.
func (s *Server) handleReboot(w http.ResponseWriter, r *http.Request) {
	s.runCommand(w, r, tieline.CommandReboot, nil)
}

// handleConnect opens a codec session using the configured credentials.
func (s *Server) handleConnect(w http.ResponseWriter, r *http.Request) {
	s.runCommand(w, r, tieline.CommandConnect, nil)
}

// handleDisconnect closes the codec session.
func (s *Server) handleDisconnect(w http.ResponseWriter, r *http.Request) {
	s.runCommand(w, r, tieline.CommandDisconnect, nil)
}

// runCommand executes a command through the bridge and writes the outcome.
func (s *Server) runCommand(w http.ResponseWriter, r *http.Request, command string, params map[string]any) {
	if s.commands == nil {
		writeServiceUnavailable(w, "codec control not available")
		return
	}

	cmd := tieline.CommandMessage{
		ID:         uuid.NewString(),
		Timestamp:  time.Now().UTC(),
		Command:    command,
		Parameters: params,
		Source:     commandSource,
	}
	if sub := subjectFromContext(r.Context()); sub != "" {
		cmd.Source = commandSource + ":" + sub
	}

	if err := s.commands.ExecuteCommand(cmd); err != nil {
		s.logger.Warn("codec command failed",
			"command", command,
			"command_id", cmd.ID,
			"error", err,
		)
		status, code := commandErrorStatus(err)
		writeError(w, status, code, err.Error())
		return
	}

	s.logger.Info("codec command accepted", "command", command, "command_id", cmd.ID, "source", cmd.Source)
	writeJSON(w, http.StatusOK, commandResponse{
		CommandID: cmd.ID,
		Command:   command,
		Status:    tieline.AckAccepted,
	})
}

// commandErrorStatus maps a command error to an HTTP status and error code.
func commandErrorStatus(err error) (int, string) {
	switch tieline.ErrorCode(err) {
	case tieline.ErrCodeInvalidCommand, tieline.ErrCodeInvalidParameters:
		return http.StatusBadRequest, ErrCodeValidation
	case tieline.ErrCodeNotConnected:
		return http.StatusConflict, ErrCodeNotConnected
	case tieline.ErrCodeTimeout:
		return http.StatusGatewayTimeout, ErrCodeTimeout
	default:
		return http.StatusBadGateway, ErrCodeCodec
	}
}
