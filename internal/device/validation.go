package device

import (
	"fmt"
	"math"
	"strings"
)

// Validation constants.
const (
	maxNameLength    = 100
	maxModelLength   = 100
	maxAddressLength = 256
)

// ValidateDevice checks a device record before it enters the registry.
// Returns an error describing the first validation failure found.
func ValidateDevice(d *Device) error {
	if d == nil {
		return ErrInvalidDevice
	}

	if strings.TrimSpace(d.ID) == "" {
		return fmt.Errorf("%w: id is required", ErrInvalidDevice)
	}

	if err := ValidateName(d.Name); err != nil {
		return err
	}

	if len(d.Model) > maxModelLength {
		return fmt.Errorf("%w: model exceeds %d characters", ErrInvalidDevice, maxModelLength)
	}
	if len(d.AddressText) > maxAddressLength {
		return fmt.Errorf("%w: address exceeds %d characters", ErrInvalidDevice, maxAddressLength)
	}

	if !finite(d.Battery) || d.Battery < MinBattery || d.Battery > MaxBattery {
		return fmt.Errorf("%w: %.1f", ErrInvalidBattery, d.Battery)
	}

	return ValidateLocation(d.Location)
}

// ValidateName checks that a device name is non-empty and not too long.
func ValidateName(name string) error {
	if strings.TrimSpace(name) == "" {
		return fmt.Errorf("%w: name is required", ErrInvalidName)
	}
	if len(name) > maxNameLength {
		return fmt.Errorf("%w: name exceeds %d characters", ErrInvalidName, maxNameLength)
	}
	return nil
}

// ValidateLocation checks latitude and longitude ranges.
func ValidateLocation(loc Location) error {
	if !finite(loc.Lat) || loc.Lat < -90 || loc.Lat > 90 {
		return fmt.Errorf("%w: latitude %f", ErrInvalidLocation, loc.Lat)
	}
	if !finite(loc.Lng) || loc.Lng < -180 || loc.Lng > 180 {
		return fmt.Errorf("%w: longitude %f", ErrInvalidLocation, loc.Lng)
	}
	return nil
}

// finite reports whether v is neither NaN nor infinite.
func finite(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0)
}
