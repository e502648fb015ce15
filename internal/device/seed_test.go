package device

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestSeedDevices(t *testing.T) {
	devices := SeedDevices(testNow)

	if len(devices) != 7 {
		t.Fatalf("len(SeedDevices()) = %d, want 7", len(devices))
	}

	seen := make(map[string]bool)
	for _, d := range devices {
		if seen[d.ID] {
			t.Errorf("duplicate id %q", d.ID)
		}
		seen[d.ID] = true

		if err := ValidateDevice(&d); err != nil {
			t.Errorf("device %s invalid: %v", d.ID, err)
		}
		if d.LastUpdate.After(testNow) {
			t.Errorf("device %s LastUpdate %v is in the future", d.ID, d.LastUpdate)
		}
		if d.LostMode || d.Wiped {
			t.Errorf("device %s starts with action flags set", d.ID)
		}
	}

	tests := []struct {
		id      string
		battery float64
		online  bool
		age     time.Duration
	}{
		{"1", 87, true, 0},
		{"4", 90, false, 90 * time.Minute},
		{"5", 18, true, 2 * time.Minute},
		{"7", 48, false, 180 * time.Minute},
	}
	for _, tt := range tests {
		var d *Device
		for i := range devices {
			if devices[i].ID == tt.id {
				d = &devices[i]
			}
		}
		if d == nil {
			t.Errorf("device %s missing", tt.id)
			continue
		}
		if d.Battery != tt.battery {
			t.Errorf("device %s Battery = %v, want %v", tt.id, d.Battery, tt.battery)
		}
		if d.IsOnline != tt.online {
			t.Errorf("device %s IsOnline = %v, want %v", tt.id, d.IsOnline, tt.online)
		}
		if got := testNow.Sub(d.LastUpdate); got != tt.age {
			t.Errorf("device %s age = %v, want %v", tt.id, got, tt.age)
		}
	}
}

func writeSeedFile(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "fleet.yaml")
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatalf("writing seed file: %v", err)
	}
	return path
}

func TestLoadSeedFile(t *testing.T) {
	t.Run("parses devices", func(t *testing.T) {
		path := writeSeedFile(t, `
devices:
  - id: "a"
    name: "Pixel 8 - Office"
    model: "Pixel 8"
    battery: 64
    is_online: true
    is_available: true
    age: 5m
    location: {lat: 51.5072, lng: -0.1276}
    address_text: "Strand, London"
  - id: "b"
    name: "Spare"
    model: "Pixel 6"
    battery: 12.5
    last_update: 2026-02-01T08:00:00Z
    location: {lat: 48.8566, lng: 2.3522}
  - id: "c"
    name: "Fresh"
    model: "Pixel 7"
    battery: 100
    location: {lat: 0, lng: 0}
`)
		devices, err := LoadSeedFile(path, testNow)
		if err != nil {
			t.Fatalf("LoadSeedFile() error = %v", err)
		}
		if len(devices) != 3 {
			t.Fatalf("len = %d, want 3", len(devices))
		}

		if got := testNow.Sub(devices[0].LastUpdate); got != 5*time.Minute {
			t.Errorf("age-based LastUpdate offset = %v, want 5m", got)
		}
		if devices[0].Location.Lng != -0.1276 {
			t.Errorf("Lng = %v, want -0.1276", devices[0].Location.Lng)
		}
		want := time.Date(2026, 2, 1, 8, 0, 0, 0, time.UTC)
		if !devices[1].LastUpdate.Equal(want) {
			t.Errorf("explicit LastUpdate = %v, want %v", devices[1].LastUpdate, want)
		}
		if devices[1].IsOnline {
			t.Error("device b IsOnline = true, want false")
		}
		if !devices[2].LastUpdate.Equal(testNow) {
			t.Errorf("default LastUpdate = %v, want %v", devices[2].LastUpdate, testNow)
		}

		if _, err := NewRegistry(devices); err != nil {
			t.Errorf("NewRegistry(loaded) error = %v", err)
		}
	})

	t.Run("non-finite values are rejected by the registry", func(t *testing.T) {
		path := writeSeedFile(t, `
devices:
  - id: "n"
    name: "Broken"
    battery: .nan
    is_online: true
    location: {lat: .nan, lng: 0}
`)
		devices, err := LoadSeedFile(path, testNow)
		if err != nil {
			t.Fatalf("LoadSeedFile() error = %v", err)
		}
		if _, err := NewRegistry(devices); !errors.Is(err, ErrInvalidBattery) {
			t.Errorf("NewRegistry() error = %v, want ErrInvalidBattery", err)
		}
	})

	t.Run("empty list", func(t *testing.T) {
		path := writeSeedFile(t, "devices: []\n")
		_, err := LoadSeedFile(path, testNow)
		if !errors.Is(err, ErrInvalidDevice) {
			t.Errorf("LoadSeedFile() error = %v, want ErrInvalidDevice", err)
		}
	})

	t.Run("malformed yaml", func(t *testing.T) {
		path := writeSeedFile(t, "devices: [\n")
		if _, err := LoadSeedFile(path, testNow); err == nil {
			t.Error("LoadSeedFile() error = nil, want parse error")
		}
	})

	t.Run("missing file", func(t *testing.T) {
		_, err := LoadSeedFile(filepath.Join(t.TempDir(), "nope.yaml"), testNow)
		if !errors.Is(err, os.ErrNotExist) {
			t.Errorf("LoadSeedFile() error = %v, want os.ErrNotExist", err)
		}
	})
}
