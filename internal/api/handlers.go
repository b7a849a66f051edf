package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/havenlighting/provision-core/internal/ble"
	"github.com/havenlighting/provision-core/internal/filter"
	"github.com/havenlighting/provision-core/internal/provision"
)

// provisionRequest carries per-run overrides for start and single-shot
// requests. All fields are optional; zero fields fall back to the daemon
// configuration.
type provisionRequest struct {
	BearerToken  string `json:"bearerToken,omitempty"`
	LocationMode string `json:"locationMode,omitempty"`
	LocationID   string `json:"locationId,omitempty"`
	WiFiSSID     string `json:"wifiSsid,omitempty"`
	WiFiPassword string `json:"wifiPassword,omitempty"`
	AnnounceURL  string `json:"announceUrl,omitempty"`

	// Candidate fields, used only by the single-shot endpoint.
	DeviceName string `json:"deviceName,omitempty"`
	DeviceAddr string `json:"deviceAddr,omitempty"`
	RSSI       int    `json:"rssi,omitempty"`
}

func (req provisionRequest) params() provision.Params {
	return provision.Params{
		BearerToken:  req.BearerToken,
		LocationMode: filter.LocationMode(req.LocationMode),
		LocationID:   req.LocationID,
		WiFiSSID:     req.WiFiSSID,
		WiFiPassword: req.WiFiPassword,
		AnnounceURL:  req.AnnounceURL,
	}
}

// decodeRequest decodes an optional JSON body. An empty body is valid and
// yields the zero request.
func decodeRequest(r *http.Request) (provisionRequest, error) {
	var req provisionRequest
	if r.Body == nil || r.ContentLength == 0 {
		return req, nil
	}
	err := json.NewDecoder(r.Body).Decode(&req)
	return req, err
}

// handleStatus returns the engine state.
func (s *Server) handleStatus(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"status":     s.engine.Status(),
		"running":    s.engine.IsRunning(),
		"ws_clients": s.hub.ClientCount(),
		"version":    s.version,
	})
}

// handleStartLoop starts the autonomous provisioning loop.
func (s *Server) handleStartLoop(w http.ResponseWriter, r *http.Request) {
	req, err := decodeRequest(r)
	if err != nil {
		writeBadRequest(w, "invalid JSON body")
		return
	}

	// The loop outlives the request: bind it to the server's lifetime.
	if err := s.engine.StartLoop(s.runCtx, req.params()); err != nil {
		if errors.Is(err, provision.ErrBusy) {
			writeConflict(w, "provisioning already active")
			return
		}
		writeInternalError(w, err.Error())
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{"status": "started"})
}

// handleStopLoop requests a cooperative loop stop.
func (s *Server) handleStopLoop(w http.ResponseWriter, _ *http.Request) {
	if err := s.engine.StopLoop(); err != nil {
		writeInternalError(w, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"status": "stopping"})
}

// handleProvisionDevice runs a single attempt for a caller-supplied
// candidate. The attempt runs asynchronously; progress and the result
// arrive on the event stream.
func (s *Server) handleProvisionDevice(w http.ResponseWriter, r *http.Request) {
	req, err := decodeRequest(r)
	if err != nil {
		writeBadRequest(w, "invalid JSON body")
		return
	}
	if req.DeviceAddr == "" {
		writeBadRequest(w, "deviceAddr is required")
		return
	}
	if s.engine.IsRunning() {
		writeConflict(w, "autonomous loop is active")
		return
	}

	cand := ble.Candidate{Name: req.DeviceName, Addr: req.DeviceAddr, RSSI: req.RSSI}
	go func() {
		if _, err := s.engine.ProvisionDevice(s.runCtx, cand, req.params()); err != nil {
			s.logger.Warn("single-shot provisioning rejected", "addr", cand.Addr, "error", err)
		}
	}()

	writeJSON(w, http.StatusAccepted, map[string]any{"status": "accepted"})
}

// handleGetLogs returns the retained engine log lines, oldest first.
func (s *Server) handleGetLogs(w http.ResponseWriter, _ *http.Request) {
	logs := s.engine.Logs().Snapshot()
	writeJSON(w, http.StatusOK, map[string]any{
		"logs":  logs,
		"count": len(logs),
	})
}

// handleClearLogs discards the retained log lines.
func (s *Server) handleClearLogs(w http.ResponseWriter, _ *http.Request) {
	s.engine.Logs().Clear()
	w.WriteHeader(http.StatusNoContent)
}

// handleListAttempts returns recent provisioning attempts, newest first.
func (s *Server) handleListAttempts(w http.ResponseWriter, r *http.Request) {
	if s.attempts == nil {
		writeNotFound(w, "attempt history is not enabled")
		return
	}

	limit := 0
	if raw := r.URL.Query().Get("limit"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed < 0 {
			writeBadRequest(w, "limit must be a non-negative integer")
			return
		}
		limit = parsed
	}

	attempts, err := s.attempts.ListAttempts(r.Context(), limit)
	if err != nil {
		s.logger.Error("failed to list attempts", "error", err)
		writeInternalError(w, "failed to list attempts")
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"attempts": attempts,
		"count":    len(attempts),
	})
}

// handleListDevices returns the provisioned-device ledger, newest first.
func (s *Server) handleListDevices(w http.ResponseWriter, _ *http.Request) {
	entries := s.engine.Ledger().Entries()
	writeJSON(w, http.StatusOK, map[string]any{
		"devices": entries,
		"count":   len(entries),
	})
}

// handleResetLedger empties the ledger so devices become eligible again.
func (s *Server) handleResetLedger(w http.ResponseWriter, r *http.Request) {
	if err := s.engine.Ledger().Reset(r.Context()); err != nil {
		s.logger.Error("failed to reset ledger", "error", err)
		writeInternalError(w, "failed to reset ledger")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
