package device

import "errors"

// Domain errors for the device package.
//
// These errors can be checked using errors.Is() for error handling:
//
//	if errors.Is(err, device.ErrDeviceNotFound) {
//	    // handle not found case
//	}
var (
	// ErrDeviceNotFound is returned when a device ID does not exist.
	ErrDeviceNotFound = errors.New("device: not found")

	// ErrDeviceExists is returned when a seed list contains the same ID twice.
	ErrDeviceExists = errors.New("device: already exists")

	// ErrImmutableID is returned when a replacement record carries a different ID.
	ErrImmutableID = errors.New("device: id cannot be changed")

	// ErrInvalidDevice is returned when device validation fails.
	ErrInvalidDevice = errors.New("device: invalid")

	// ErrInvalidName is returned when a device name is empty or too long.
	ErrInvalidName = errors.New("device: invalid name")

	// ErrInvalidBattery is returned when a battery level is outside 0-100.
	ErrInvalidBattery = errors.New("device: invalid battery level")

	// ErrInvalidLocation is returned when latitude or longitude is out of range.
	ErrInvalidLocation = errors.New("device: invalid location")
)
