package telemetry

import (
	"sync"
	"sync/atomic"
	"time"

	"github.com/nerrad567/findmy-core/internal/device"
	"github.com/nerrad567/findmy-core/internal/infrastructure/influxdb"
)

// Writer receives samples. Satisfied by *influxdb.Client.
type Writer interface {
	WriteDeviceTelemetry(t influxdb.DeviceTelemetry)
	WriteFleetSummary(s influxdb.FleetSummary)
}

// Recorder is a fleet.Listener that turns snapshots into samples.
type Recorder struct {
	writer Writer
	now    func() time.Time

	mu         sync.Mutex
	lastUpdate map[string]time.Time

	samples   atomic.Uint64
	summaries atomic.Uint64
}

// NewRecorder creates a recorder writing to w.
func NewRecorder(w Writer) *Recorder {
	return &Recorder{
		writer:     w,
		now:        time.Now,
		lastUpdate: make(map[string]time.Time),
	}
}

// OnSnapshot implements fleet.Listener.
func (r *Recorder) OnSnapshot(devices []device.Device) {
	r.mu.Lock()
	defer r.mu.Unlock()

	for _, d := range devices {
		if last, ok := r.lastUpdate[d.ID]; ok && !d.LastUpdate.After(last) {
			continue
		}
		r.lastUpdate[d.ID] = d.LastUpdate
		r.writer.WriteDeviceTelemetry(sampleOf(d))
		r.samples.Add(1)
	}

	stats := device.StatsOf(devices)
	r.writer.WriteFleetSummary(influxdb.FleetSummary{
		Total:     stats.Total,
		Online:    stats.Online,
		Available: stats.Available,
		LostMode:  stats.LostMode,
		Wiped:     stats.Wiped,
		Time:      r.now(),
	})
	r.summaries.Add(1)
}

// Samples returns the number of device samples written.
func (r *Recorder) Samples() uint64 {
	return r.samples.Load()
}

// Summaries returns the number of fleet summaries written.
func (r *Recorder) Summaries() uint64 {
	return r.summaries.Load()
}

func sampleOf(d device.Device) influxdb.DeviceTelemetry {
	return influxdb.DeviceTelemetry{
		DeviceID:  d.ID,
		Model:     d.Model,
		Battery:   d.Battery,
		Lat:       d.Location.Lat,
		Lng:       d.Location.Lng,
		Online:    d.IsOnline,
		Available: d.IsAvailable,
		LostMode:  d.LostMode,
		Wiped:     d.Wiped,
		Time:      d.LastUpdate,
	}
}
