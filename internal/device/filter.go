package device

import "strings"

// Query narrows a device list the way the dashboard sidebar does.
type Query struct {
	// Search matches a case-insensitive substring of the device name.
	Search string

	// OnlineOnly keeps only devices that are currently online.
	OnlineOnly bool

	// AvailableOnly keeps only devices that are currently available.
	AvailableOnly bool
}

// Matches reports whether d satisfies every criterion in q.
func (q Query) Matches(d *Device) bool {
	term := strings.ToLower(strings.TrimSpace(q.Search))
	if term != "" && !strings.Contains(strings.ToLower(d.Name), term) {
		return false
	}
	if q.OnlineOnly && !d.IsOnline {
		return false
	}
	if q.AvailableOnly && !d.IsAvailable {
		return false
	}
	return true
}

// Filter returns the devices matching q, preserving order.
// The result is always non-nil so it encodes as an empty JSON array.
func Filter(devices []Device, q Query) []Device {
	out := make([]Device, 0, len(devices))
	for i := range devices {
		if q.Matches(&devices[i]) {
			out = append(out, devices[i])
		}
	}
	return out
}

// DefaultSelection picks the device a dashboard should focus first: the first
// device that is both online and available, otherwise the first device.
// Returns "" for an empty list.
func DefaultSelection(devices []Device) string {
	for i := range devices {
		if devices[i].IsOnline && devices[i].IsAvailable {
			return devices[i].ID
		}
	}
	if len(devices) > 0 {
		return devices[0].ID
	}
	return ""
}
