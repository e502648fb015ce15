package device

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// seedEntry is a device record as written in a seed file.
// Age, when set, makes LastUpdate relative to load time.
type seedEntry struct {
	Device `yaml:",inline"`
	Age    time.Duration `yaml:"age"`
}

// seedFile is the top-level structure of a YAML seed file.
type seedFile struct {
	Devices []seedEntry `yaml:"devices"`
}

// SeedDevices returns the built-in demonstration fleet.
// LastUpdate values are relative to now.
func SeedDevices(now time.Time) []Device {
	now = now.UTC()
	ago := func(d time.Duration) time.Time { return now.Add(-d) }

	return []Device{
		{
			ID: "1", Name: "Mobodo K200 - Saeed", Model: "Mobodo K200",
			Battery: 87, IsOnline: true, IsAvailable: true, LastUpdate: now,
			Location: Location{Lat: 35.6892, Lng: 51.389}, AddressText: "Azadi Street, Tehran",
		},
		{
			ID: "2", Name: "Ario X2 - Narges", Model: "Ario X2",
			Battery: 62, IsOnline: true, IsAvailable: true, LastUpdate: now,
			Location: Location{Lat: 32.6539, Lng: 51.666}, AddressText: "Naqsh-e Jahan Square, Isfahan",
		},
		{
			ID: "3", Name: "Hami Lite - Pouya", Model: "Hami Lite",
			Battery: 34, IsOnline: true, IsAvailable: false, LastUpdate: ago(7 * time.Minute),
			Location: Location{Lat: 29.5918, Lng: 52.5836}, AddressText: "Maaliabad Boulevard, Shiraz",
		},
		{
			ID: "4", Name: "Aftab Mini - Elham", Model: "Aftab Mini",
			Battery: 90, IsOnline: false, IsAvailable: false, LastUpdate: ago(90 * time.Minute),
			Location: Location{Lat: 36.2605, Lng: 59.6168}, AddressText: "Ahmadabad Street, Mashhad",
		},
		{
			ID: "5", Name: "Shenasa Air - Sara", Model: "Shenasa Air",
			Battery: 18, IsOnline: true, IsAvailable: true, LastUpdate: ago(2 * time.Minute),
			Location: Location{Lat: 35.7153, Lng: 51.4229}, AddressText: "Valiasr, Tehran",
		},
		{
			ID: "6", Name: "Lian Ultra - Reza", Model: "Lian Ultra",
			Battery: 75, IsOnline: true, IsAvailable: true, LastUpdate: ago(12 * time.Minute),
			Location: Location{Lat: 37.2768, Lng: 49.592}, AddressText: "Ansari Boulevard, Rasht",
		},
		{
			ID: "7", Name: "Kavir Edge - Melisa", Model: "Kavir Edge",
			Battery: 48, IsOnline: false, IsAvailable: true, LastUpdate: ago(180 * time.Minute),
			Location: Location{Lat: 38.0962, Lng: 46.2738}, AddressText: "Valiasr Crossroads, Tabriz",
		},
	}
}

// LoadSeedFile reads a fleet definition from a YAML file.
//
// Example:
//
//	devices:
//	  - id: "1"
//	    name: "Pixel 8 - Office"
//	    model: "Pixel 8"
//	    battery: 64
//	    is_online: true
//	    is_available: true
//	    age: 5m
//	    location: {lat: 51.5072, lng: -0.1276}
//	    address_text: "Strand, London"
//
// Entries without last_update or age are stamped with now. Validation of
// individual records and ID uniqueness happens in NewRegistry.
func LoadSeedFile(path string, now time.Time) ([]Device, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading seed file: %w", err)
	}

	var file seedFile
	if err := yaml.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("parsing seed file: %w", err)
	}
	if len(file.Devices) == 0 {
		return nil, fmt.Errorf("%w: seed file %s lists no devices", ErrInvalidDevice, path)
	}

	now = now.UTC()
	devices := make([]Device, 0, len(file.Devices))
	for _, entry := range file.Devices {
		d := entry.Device
		switch {
		case entry.Age > 0:
			d.LastUpdate = now.Add(-entry.Age)
		case d.LastUpdate.IsZero():
			d.LastUpdate = now
		default:
			d.LastUpdate = d.LastUpdate.UTC()
		}
		devices = append(devices, d)
	}
	return devices, nil
}
