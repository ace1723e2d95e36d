package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"sort"

	"github.com/go-chi/chi/v5"

	"github.com/nerrad567/rfplayer-bridge/internal/device"
)

// deviceRequest is the payload for creating or updating a device.
// Pointer fields on update distinguish "not sent" from "clear".
type deviceRequest struct {
	IDString        string  `json:"id_string"`
	Protocol        string  `json:"protocol"`
	Address         string  `json:"address"`
	GroupID         string  `json:"group_id"`
	Model           string  `json:"model"`
	ProfileName     *string `json:"profile_name"`
	RedirectAddress *string `json:"redirect_address"`
}

// handleListDevices returns all registered devices sorted by identity.
func (s *Server) handleListDevices(w http.ResponseWriter, r *http.Request) {
	records, err := s.devices.List(r.Context())
	if err != nil {
		s.logger.Error("listing devices", "error", err)
		writeInternalError(w, "failed to list devices")
		return
	}

	sort.Slice(records, func(i, j int) bool {
		return records[i].IDString < records[j].IDString
	})

	writeJSON(w, http.StatusOK, map[string]any{
		"devices": records,
		"count":   len(records),
	})
}

// handleGetDevice returns a single device by identity string.
func (s *Server) handleGetDevice(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	rec, err := s.devices.Get(r.Context(), id)
	if err != nil {
		if errors.Is(err, device.ErrNotFound) {
			writeNotFound(w, "device not found")
			return
		}
		s.logger.Error("getting device", "id", id, "error", err)
		writeInternalError(w, "failed to get device")
		return
	}

	writeJSON(w, http.StatusOK, rec)
}

// handleCreateDevice registers a device explicitly. Useful for
// transmit-only actuators that never announce themselves, such as RTS
// shutters paired out-of-band.
func (s *Server) handleCreateDevice(w http.ResponseWriter, r *http.Request) {
	var req deviceRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeBadRequest(w, "invalid JSON body")
		return
	}

	if req.IDString == "" {
		writeBadRequest(w, "id_string is required")
		return
	}
	if req.Protocol == "" || req.Address == "" {
		writeBadRequest(w, "protocol and address are required")
		return
	}

	rec := &device.Record{
		IDString: req.IDString,
		Protocol: req.Protocol,
		Address:  req.Address,
		GroupID:  req.GroupID,
		Model:    req.Model,
	}
	if req.ProfileName != nil {
		if err := s.validateProfileName(*req.ProfileName); err != nil {
			writeBadRequest(w, err.Error())
			return
		}
		rec.ProfileName = *req.ProfileName
	}
	if req.RedirectAddress != nil {
		rec.RedirectAddress = *req.RedirectAddress
	}

	if err := s.devices.Register(r.Context(), rec); err != nil {
		if errors.Is(err, device.ErrExists) {
			writeConflict(w, "device already exists")
			return
		}
		s.logger.Error("creating device", "id", req.IDString, "error", err)
		writeInternalError(w, "failed to create device")
		return
	}

	writeJSON(w, http.StatusCreated, rec)
}

// handleUpdateDevice applies a partial update to a device. Only the
// profile, model and redirect can change; identity fields are fixed at
// creation.
func (s *Server) handleUpdateDevice(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	rec, err := s.devices.Get(r.Context(), id)
	if err != nil {
		if errors.Is(err, device.ErrNotFound) {
			writeNotFound(w, "device not found")
			return
		}
		s.logger.Error("getting device", "id", id, "error", err)
		writeInternalError(w, "failed to get device")
		return
	}

	var req deviceRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeBadRequest(w, "invalid JSON body")
		return
	}

	if req.ProfileName != nil {
		if *req.ProfileName != "" {
			if err := s.validateProfileName(*req.ProfileName); err != nil {
				writeBadRequest(w, err.Error())
				return
			}
		}
		rec.ProfileName = *req.ProfileName
	}
	if req.RedirectAddress != nil {
		rec.RedirectAddress = *req.RedirectAddress
	}
	if req.Model != "" {
		rec.Model = req.Model
	}

	if err := s.devices.Update(r.Context(), rec); err != nil {
		s.logger.Error("updating device", "id", id, "error", err)
		writeInternalError(w, "failed to update device")
		return
	}

	writeJSON(w, http.StatusOK, rec)
}

// handleDeleteDevice removes a device record.
func (s *Server) handleDeleteDevice(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	if err := s.devices.Remove(r.Context(), id); err != nil {
		if errors.Is(err, device.ErrNotFound) {
			writeNotFound(w, "device not found")
			return
		}
		s.logger.Error("deleting device", "id", id, "error", err)
		writeInternalError(w, "failed to delete device")
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// validateProfileName rejects profile names not present in the registry.
func (s *Server) validateProfileName(name string) error {
	_, err := s.profiles.Profile(name)
	return err
}
