package device

import (
	"math"
	"time"
)

// Battery bounds in percent.
const (
	MinBattery = 0.0
	MaxBattery = 100.0
)

// Device represents a single tracked user device in the fleet.
type Device struct {
	// Identity
	ID    string `json:"id" yaml:"id"`
	Name  string `json:"name" yaml:"name"`
	Model string `json:"model" yaml:"model"`

	// Telemetry
	Battery     float64   `json:"battery" yaml:"battery"`
	IsOnline    bool      `json:"is_online" yaml:"is_online"`
	IsAvailable bool      `json:"is_available" yaml:"is_available"`
	LastUpdate  time.Time `json:"last_update" yaml:"last_update"`

	// Position
	Location    Location `json:"location" yaml:"location"`
	AddressText string   `json:"address_text" yaml:"address_text"`

	// Remote action flags
	LostMode bool `json:"lost_mode,omitempty" yaml:"lost_mode,omitempty"`
	Wiped    bool `json:"wiped,omitempty" yaml:"wiped,omitempty"`
}

// Location is a WGS84 coordinate pair.
type Location struct {
	Lat float64 `json:"lat" yaml:"lat"`
	Lng float64 `json:"lng" yaml:"lng"`
}

// Clone returns an independent copy of the device.
// Device holds only value fields, so a struct copy is already deep; Clone
// exists so call sites stay correct if reference fields are ever added.
func (d Device) Clone() Device {
	return d
}

// Touch stamps LastUpdate with now, never moving it backwards.
func (d *Device) Touch(now time.Time) {
	now = now.UTC()
	if now.Before(d.LastUpdate) {
		return
	}
	d.LastUpdate = now
}

// MarkWiped applies the terminal wipe state.
// Calling it on an already wiped device leaves the same flags in place.
func (d *Device) MarkWiped() {
	d.Wiped = true
	d.IsOnline = false
	d.IsAvailable = false
	d.Battery = MinBattery
}

// ClampBattery limits v to the valid battery range.
func ClampBattery(v float64) float64 {
	return math.Max(MinBattery, math.Min(MaxBattery, v))
}

// RoundBattery rounds a battery level to one decimal place.
func RoundBattery(v float64) float64 {
	return math.Round(v*10) / 10
}

// CloneAll deep copies a device slice. A nil input yields an empty slice.
func CloneAll(devices []Device) []Device {
	out := make([]Device, len(devices))
	for i := range devices {
		out[i] = devices[i].Clone()
	}
	return out
}
