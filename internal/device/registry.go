package device

import (
	"fmt"
	"sync"
)

// Logger defines the logging interface used by the Registry.
// This allows different logging implementations to be used.
type Logger interface {
	Debug(msg string, args ...any)
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
	Error(msg string, args ...any)
}

// noopLogger is a logger that does nothing.
type noopLogger struct{}

func (noopLogger) Debug(string, ...any) {}
func (noopLogger) Info(string, ...any)  {}
func (noopLogger) Warn(string, ...any)  {}
func (noopLogger) Error(string, ...any) {}

// Registry holds the authoritative, ordered device list for the process.
//
// The fleet is fixed at construction: devices are never created or deleted
// afterwards, only replaced or updated in place. Every read returns a copy.
//
// All public methods are thread-safe.
type Registry struct {
	devices []Device       // Registry order is seed order
	index   map[string]int // ID -> position in devices
	mu      sync.RWMutex   // Protects devices
	logger  Logger
}

// NewRegistry creates a registry seeded with the given devices.
// The seed is validated and copied; later changes to the slice have no effect.
func NewRegistry(seed []Device) (*Registry, error) {
	index := make(map[string]int, len(seed))
	for i := range seed {
		if err := ValidateDevice(&seed[i]); err != nil {
			return nil, fmt.Errorf("seed device %d: %w", i, err)
		}
		if _, dup := index[seed[i].ID]; dup {
			return nil, fmt.Errorf("%w: %q", ErrDeviceExists, seed[i].ID)
		}
		index[seed[i].ID] = i
	}

	return &Registry{
		devices: CloneAll(seed),
		index:   index,
		logger:  noopLogger{},
	}, nil
}

// SetLogger sets the logger for the registry.
func (r *Registry) SetLogger(logger Logger) {
	r.logger = logger
}

// GetAll returns a deep copy of every device in registry order.
func (r *Registry) GetAll() []Device {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return CloneAll(r.devices)
}

// GetByID retrieves a device by ID.
// Returns ErrDeviceNotFound if the device does not exist.
func (r *Registry) GetByID(id string) (Device, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	pos, ok := r.index[id]
	if !ok {
		return Device{}, ErrDeviceNotFound
	}
	return r.devices[pos].Clone(), nil
}

// Replace swaps the record for id with updated, preserving list order.
//
// An empty updated.ID is filled in; a different ID is rejected with
// ErrImmutableID because identifiers are never reassigned. The record must
// pass ValidateDevice, and LastUpdate is kept at the later of the stored and
// supplied values.
func (r *Registry) Replace(id string, updated Device) error {
	if updated.ID == "" {
		updated.ID = id
	}
	if updated.ID != id {
		return fmt.Errorf("%w: %q -> %q", ErrImmutableID, id, updated.ID)
	}
	if err := ValidateDevice(&updated); err != nil {
		return fmt.Errorf("replacing device %s: %w", id, err)
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	pos, ok := r.index[id]
	if !ok {
		return ErrDeviceNotFound
	}
	updated.Touch(r.devices[pos].LastUpdate)
	r.devices[pos] = updated.Clone()

	r.logger.Debug("device replaced", "id", id)
	return nil
}

// Update applies mutate to the device with the given ID under the registry
// lock and returns a copy of the result. Any change mutate makes to the ID is
// discarded.
func (r *Registry) Update(id string, mutate func(d *Device)) (Device, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	pos, ok := r.index[id]
	if !ok {
		return Device{}, ErrDeviceNotFound
	}

	d := r.devices[pos].Clone()
	mutate(&d)
	d.ID = id
	r.devices[pos] = d

	r.logger.Debug("device updated", "id", id)
	return d.Clone(), nil
}

// UpdateAll applies mutate to every device in order under a single lock.
// mutate reports whether it changed the device; the number of changed
// devices is returned.
func (r *Registry) UpdateAll(mutate func(d *Device) bool) int {
	r.mu.Lock()
	defer r.mu.Unlock()

	changed := 0
	for i := range r.devices {
		d := r.devices[i].Clone()
		if !mutate(&d) {
			continue
		}
		d.ID = r.devices[i].ID
		r.devices[i] = d
		changed++
	}
	return changed
}

// Len returns the number of devices in the registry.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.devices)
}

// Stats summarises the fleet for monitoring.
type Stats struct {
	Total     int `json:"total"`
	Online    int `json:"online"`
	Available int `json:"available"`
	LostMode  int `json:"lost_mode"`
	Wiped     int `json:"wiped"`
}

// Stats returns current fleet statistics.
func (r *Registry) Stats() Stats {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return StatsOf(r.devices)
}

// StatsOf computes fleet statistics for an arbitrary snapshot.
func StatsOf(devices []Device) Stats {
	stats := Stats{Total: len(devices)}
	for i := range devices {
		d := &devices[i]
		if d.IsOnline {
			stats.Online++
		}
		if d.IsAvailable {
			stats.Available++
		}
		if d.LostMode {
			stats.LostMode++
		}
		if d.Wiped {
			stats.Wiped++
		}
	}
	return stats
}
