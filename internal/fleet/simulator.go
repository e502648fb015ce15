package fleet

import (
	"math"
	"math/rand/v2"
	"sync"
	"time"

	"github.com/nerrad567/findmy-core/internal/device"
)

// Simulation defaults, matching the behaviour of the dashboard prototype.
const (
	DefaultTickInterval    = 3 * time.Second
	DefaultBatteryDrainMax = 1.2
	DefaultDriftMax        = 0.0005
)

// SimulationConfig controls how much a device changes per tick.
type SimulationConfig struct {
	// Interval is the time between ticks.
	Interval time.Duration

	// BatteryDrainMax is the upper bound of the random battery drop per tick.
	BatteryDrainMax float64

	// DriftMax bounds the random per-axis coordinate change per tick.
	DriftMax float64
}

// DefaultSimulationConfig returns the standard simulation settings.
func DefaultSimulationConfig() SimulationConfig {
	return SimulationConfig{
		Interval:        DefaultTickInterval,
		BatteryDrainMax: DefaultBatteryDrainMax,
		DriftMax:        DefaultDriftMax,
	}
}

// Simulator models passive device drift: battery drain and GPS jitter for
// every online device that has not been wiped.
type Simulator struct {
	cfg SimulationConfig

	mu  sync.Mutex // guards rng and now; rand.Rand is not safe for concurrent use
	rng *rand.Rand
	now func() time.Time
}

// NewSimulator creates a simulator with a randomly seeded source.
// Non-positive config values fall back to the defaults.
func NewSimulator(cfg SimulationConfig) *Simulator {
	if cfg.Interval <= 0 {
		cfg.Interval = DefaultTickInterval
	}
	if cfg.BatteryDrainMax < 0 {
		cfg.BatteryDrainMax = DefaultBatteryDrainMax
	}
	if cfg.DriftMax < 0 {
		cfg.DriftMax = DefaultDriftMax
	}

	return &Simulator{
		cfg: cfg,
		rng: rand.New(rand.NewPCG(rand.Uint64(), rand.Uint64())), //nolint:gosec // simulation noise, not security
		now: time.Now,
	}
}

// SetRand replaces the random source, for deterministic tests.
func (s *Simulator) SetRand(rng *rand.Rand) {
	s.mu.Lock()
	s.rng = rng
	s.mu.Unlock()
}

// SetClock replaces the time source used to stamp LastUpdate.
func (s *Simulator) SetClock(now func() time.Time) {
	s.mu.Lock()
	s.now = now
	s.mu.Unlock()
}

// Interval returns the configured tick interval.
func (s *Simulator) Interval() time.Duration {
	return s.cfg.Interval
}

// Tick advances every eligible device in the registry by one step and returns
// how many devices changed.
func (s *Simulator) Tick(r *device.Registry) int {
	s.mu.Lock()
	now := s.now()
	s.mu.Unlock()
	return r.UpdateAll(func(d *device.Device) bool {
		return s.Step(d, now)
	})
}

// Step advances a single device by one tick. Offline and wiped devices are
// left untouched and Step returns false for them.
//
// The battery drops by a random amount in [0, BatteryDrainMax), is rounded
// to one decimal and never rises; a device whose battery reaches zero goes
// offline in the same step.
func (s *Simulator) Step(d *device.Device, now time.Time) bool {
	if !d.IsOnline || d.Wiped {
		return false
	}

	s.mu.Lock()
	drain := s.rng.Float64() * s.cfg.BatteryDrainMax
	dLat := (s.rng.Float64()*2 - 1) * s.cfg.DriftMax
	dLng := (s.rng.Float64()*2 - 1) * s.cfg.DriftMax
	s.mu.Unlock()

	prev := d.Battery
	next := device.ClampBattery(device.RoundBattery(prev - drain))
	if next > prev {
		next = prev
	}
	d.Battery = next
	if d.Battery <= device.MinBattery {
		d.Battery = device.MinBattery
		d.IsOnline = false
	}

	d.Location.Lat = clamp(d.Location.Lat+dLat, -90, 90)
	d.Location.Lng = clamp(d.Location.Lng+dLng, -180, 180)

	d.Touch(now)
	return true
}

func clamp(v, lo, hi float64) float64 {
	return math.Max(lo, math.Min(hi, v))
}
