package fleet

import (
	"context"
	"sync"
	"time"

	"github.com/nerrad567/findmy-core/internal/device"
)

// Latency is the simulated round-trip delay for each action.
type Latency struct {
	Fetch     time.Duration
	PlaySound time.Duration
	LostMode  time.Duration
	Wipe      time.Duration
}

// DefaultLatency returns the standard simulated round-trip delays.
func DefaultLatency() Latency {
	return Latency{
		Fetch:     350 * time.Millisecond,
		PlaySound: 200 * time.Millisecond,
		LostMode:  200 * time.Millisecond,
		Wipe:      400 * time.Millisecond,
	}
}

// Service exposes the remote actions available on a single device.
//
// Every action waits for its simulated latency before touching the registry.
// Cancelling ctx during that wait returns ctx.Err() and leaves the registry
// unchanged. Actions never retry.
type Service struct {
	broker  *Broker
	latency Latency
	logger  Logger

	clockMu sync.Mutex
	now     func() time.Time
}

// NewService creates an action service publishing through broker.
func NewService(broker *Broker, latency Latency) *Service {
	return &Service{
		broker:  broker,
		latency: latency,
		now:     time.Now,
		logger:  noopLogger{},
	}
}

// SetLogger sets the logger for the service.
func (s *Service) SetLogger(logger Logger) {
	s.logger = logger
}

// SetClock replaces the time source used to stamp LastUpdate.
func (s *Service) SetClock(now func() time.Time) {
	s.clockMu.Lock()
	s.now = now
	s.clockMu.Unlock()
}

func (s *Service) stamp() time.Time {
	s.clockMu.Lock()
	defer s.clockMu.Unlock()
	return s.now()
}

// FetchAll returns a snapshot of the whole fleet.
func (s *Service) FetchAll(ctx context.Context) ([]device.Device, error) {
	if err := sleep(ctx, s.latency.Fetch); err != nil {
		return nil, err
	}
	return s.broker.Registry().GetAll(), nil
}

// PlaySound asks a device to ring. Nothing in the registry changes; the
// current record is returned. Returns device.ErrDeviceNotFound for an
// unknown ID.
func (s *Service) PlaySound(ctx context.Context, id string) (device.Device, error) {
	if err := sleep(ctx, s.latency.PlaySound); err != nil {
		return device.Device{}, err
	}

	dev, err := s.broker.Registry().GetByID(id)
	if err != nil {
		return device.Device{}, err
	}

	s.logger.Info("play sound requested", "id", id, "name", dev.Name)
	return dev, nil
}

// ToggleLostMode sets the lost-mode flag to desired and broadcasts the
// change. Returns device.ErrDeviceNotFound for an unknown ID.
func (s *Service) ToggleLostMode(ctx context.Context, id string, desired bool) (device.Device, error) {
	if _, err := s.broker.Registry().GetByID(id); err != nil {
		return device.Device{}, err
	}
	if err := sleep(ctx, s.latency.LostMode); err != nil {
		return device.Device{}, err
	}

	updated, err := s.commit(id, func(d *device.Device) {
		d.LostMode = desired
	})
	if err != nil {
		return device.Device{}, err
	}

	s.logger.Info("lost mode changed", "id", id, "lost_mode", desired)
	return updated, nil
}

// FlipLostMode inverts the lost-mode flag as a single registry update, so
// concurrent flips each take effect. Returns device.ErrDeviceNotFound for an
// unknown ID.
func (s *Service) FlipLostMode(ctx context.Context, id string) (device.Device, error) {
	if _, err := s.broker.Registry().GetByID(id); err != nil {
		return device.Device{}, err
	}
	if err := sleep(ctx, s.latency.LostMode); err != nil {
		return device.Device{}, err
	}

	updated, err := s.commit(id, func(d *device.Device) {
		d.LostMode = !d.LostMode
	})
	if err != nil {
		return device.Device{}, err
	}

	s.logger.Info("lost mode changed", "id", id, "lost_mode", updated.LostMode)
	return updated, nil
}

// Wipe marks a device as wiped: offline, unavailable, battery zero, and frozen
// for the rest of the process. Wiping twice yields the same state. Returns
// device.ErrDeviceNotFound for an unknown ID.
func (s *Service) Wipe(ctx context.Context, id string) (device.Device, error) {
	if _, err := s.broker.Registry().GetByID(id); err != nil {
		return device.Device{}, err
	}
	if err := sleep(ctx, s.latency.Wipe); err != nil {
		return device.Device{}, err
	}

	updated, err := s.commit(id, (*device.Device).MarkWiped)
	if err != nil {
		return device.Device{}, err
	}

	s.logger.Warn("device wiped", "id", id, "name", updated.Name)
	return updated, nil
}

// commit applies mutate to one device, stamps it, and broadcasts.
func (s *Service) commit(id string, mutate func(d *device.Device)) (device.Device, error) {
	now := s.stamp()

	var updated device.Device
	err := s.broker.Commit(func(r *device.Registry) error {
		var err error
		updated, err = r.Update(id, func(d *device.Device) {
			mutate(d)
			d.Touch(now)
		})
		return err
	})
	return updated, err
}

// sleep waits for d or until ctx is done.
func sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}

	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
