package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"github.com/nerrad567/rfplayer-bridge/internal/rfplayer"
)

// sendRequest is the payload for raw command passthrough.
type sendRequest struct {
	Command string `json:"command"`
}

// pairingRequest is the payload for putting the transceiver into
// association mode for a protocol.
type pairingRequest struct {
	Protocol string `json:"protocol"`
	Address  string `json:"address"`
}

// handleSend forwards a raw ASCII command to the transceiver.
func (s *Server) handleSend(w http.ResponseWriter, r *http.Request) {
	var req sendRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeBadRequest(w, "invalid JSON body")
		return
	}

	command := strings.TrimSpace(req.Command)
	if command == "" {
		writeBadRequest(w, "command is required")
		return
	}

	if err := s.bridge.Send(command); err != nil {
		if errors.Is(err, rfplayer.ErrNotConnected) {
			writeGatewayUnavailable(w, "transceiver not connected")
			return
		}
		s.logger.Error("sending command", "command", command, "error", err)
		writeInternalError(w, "failed to send command")
		return
	}

	writeJSON(w, http.StatusAccepted, map[string]string{
		"status":  "sent",
		"command": command,
	})
}

// handlePairing starts an association sequence for the given protocol
// and address.
func (s *Server) handlePairing(w http.ResponseWriter, r *http.Request) {
	var req pairingRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeBadRequest(w, "invalid JSON body")
		return
	}

	if req.Protocol == "" || req.Address == "" {
		writeBadRequest(w, "protocol and address are required")
		return
	}

	if err := s.bridge.Pair(req.Protocol, req.Address); err != nil {
		if errors.Is(err, rfplayer.ErrNotConnected) {
			writeGatewayUnavailable(w, "transceiver not connected")
			return
		}
		s.logger.Error("starting pairing", "protocol", req.Protocol, "error", err)
		writeInternalError(w, "failed to start pairing")
		return
	}

	writeJSON(w, http.StatusAccepted, map[string]string{
		"status":   "pairing",
		"protocol": req.Protocol,
		"address":  req.Address,
	})
}
