package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/nerrad567/findmy-core/internal/device"
)

// DeviceListResponse is returned by GET /devices.
type DeviceListResponse struct {
	Devices    []device.Device `json:"devices"`
	Count      int             `json:"count"`
	SelectedID string          `json:"selected_id"`
}

// LostModeRequest is the optional body of PUT /devices/{id}/lost-mode.
// A missing Enabled toggles the current state.
type LostModeRequest struct {
	Enabled *bool `json:"enabled"`
}

// handleListDevices returns the fleet, with optional query filters.
//
// Query parameters:
//   - search: case-insensitive substring of the device name
//   - online: "true" keeps only online devices
//   - available: "true" keeps only available devices
//
// selected_id is the device a dashboard should focus first within the result.
func (s *Server) handleListDevices(w http.ResponseWriter, r *http.Request) {
	query := device.Query{Search: r.URL.Query().Get("search")}

	var err error
	if query.OnlineOnly, err = boolParam(r, "online"); err != nil {
		writeBadRequest(w, err.Error())
		return
	}
	if query.AvailableOnly, err = boolParam(r, "available"); err != nil {
		writeBadRequest(w, err.Error())
		return
	}

	all, err := s.service.FetchAll(r.Context())
	if err != nil {
		writeInternalError(w, "failed to fetch devices")
		return
	}

	devices := device.Filter(all, query)
	writeJSON(w, http.StatusOK, DeviceListResponse{
		Devices:    devices,
		Count:      len(devices),
		SelectedID: device.DefaultSelection(devices),
	})
}

// handleDeviceStats returns fleet-wide counts.
func (s *Server) handleDeviceStats(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, s.broker.Registry().Stats())
}

// handleGetDevice returns a single device by ID.
func (s *Server) handleGetDevice(w http.ResponseWriter, r *http.Request) {
	d, err := s.broker.Registry().GetByID(chi.URLParam(r, "id"))
	if err != nil {
		writeDeviceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, d)
}

// handlePlaySound rings a device.
func (s *Server) handlePlaySound(w http.ResponseWriter, r *http.Request) {
	d, err := s.service.PlaySound(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeDeviceError(w, err)
		return
	}

	s.notifications.Push(fmt.Sprintf("Play sound request sent to %s", d.Name), LevelSuccess)
	writeJSON(w, http.StatusOK, d)
}

// handleLostMode sets or toggles lost mode.
func (s *Server) handleLostMode(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	var req LostModeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil && !errors.Is(err, io.EOF) {
		writeBadRequest(w, "invalid JSON body")
		return
	}

	var (
		d   device.Device
		err error
	)
	if req.Enabled != nil {
		d, err = s.service.ToggleLostMode(r.Context(), id, *req.Enabled)
	} else {
		d, err = s.service.FlipLostMode(r.Context(), id)
	}
	if err != nil {
		writeDeviceError(w, err)
		return
	}

	if d.LostMode {
		s.notifications.Push(fmt.Sprintf("Lost mode enabled for %s", d.Name), LevelWarning)
	} else {
		s.notifications.Push(fmt.Sprintf("Lost mode disabled for %s", d.Name), LevelWarning)
	}
	writeJSON(w, http.StatusOK, d)
}

// handleWipe erases a device.
func (s *Server) handleWipe(w http.ResponseWriter, r *http.Request) {
	d, err := s.service.Wipe(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeDeviceError(w, err)
		return
	}

	s.notifications.Push(fmt.Sprintf("Wipe of %s recorded", d.Name), LevelWarning)
	writeJSON(w, http.StatusOK, d)
}

// boolParam parses an optional boolean query parameter.
func boolParam(r *http.Request, name string) (bool, error) {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		return false, nil
	}
	v, err := strconv.ParseBool(raw)
	if err != nil {
		return false, fmt.Errorf("query parameter %q must be a boolean", name)
	}
	return v, nil
}
