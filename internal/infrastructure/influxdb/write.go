package influxdb

import (
	"time"

	"github.com/influxdata/influxdb-client-go/v2/api/write"
)

// Measurement names.
const (
	MeasurementDeviceTelemetry = "device_telemetry"
	MeasurementFleetSummary    = "fleet_summary"
)

// DeviceTelemetry is one device sample.
type DeviceTelemetry struct {
	DeviceID  string
	Model     string
	Battery   float64
	Lat       float64
	Lng       float64
	Online    bool
	Available bool
	LostMode  bool
	Wiped     bool
	Time      time.Time
}

// FleetSummary is a fleet-wide count sample.
type FleetSummary struct {
	Total     int
	Online    int
	Available int
	LostMode  int
	Wiped     int
	Time      time.Time
}

// WriteDeviceTelemetry queues one device sample.
// The write is non-blocking; data is batched and sent asynchronously.
func (c *Client) WriteDeviceTelemetry(t DeviceTelemetry) {
	if !c.IsConnected() {
		return
	}
	c.writeAPI.WritePoint(deviceTelemetryPoint(t))
}

// WriteFleetSummary queues one fleet summary sample.
func (c *Client) WriteFleetSummary(s FleetSummary) {
	if !c.IsConnected() {
		return
	}
	c.writeAPI.WritePoint(fleetSummaryPoint(s))
}

// WritePoint writes a custom point stamped with the current time.
//
// Example:
//
//	client.WritePoint("relay_commands",
//	    map[string]string{"action": "wipe"},
//	    map[string]any{"count": 1})
func (c *Client) WritePoint(measurement string, tags map[string]string, fields map[string]any) {
	if !c.IsConnected() {
		return
	}
	c.writeAPI.WritePoint(write.NewPoint(measurement, tags, fields, time.Now()))
}

// deviceTelemetryPoint tags by device and model; everything else is a field.
func deviceTelemetryPoint(t DeviceTelemetry) *write.Point {
	return write.NewPoint(
		MeasurementDeviceTelemetry,
		map[string]string{
			"device_id": t.DeviceID,
			"model":     t.Model,
		},
		map[string]any{
			"battery":   t.Battery,
			"lat":       t.Lat,
			"lng":       t.Lng,
			"online":    t.Online,
			"available": t.Available,
			"lost_mode": t.LostMode,
			"wiped":     t.Wiped,
		},
		stamp(t.Time),
	)
}

func fleetSummaryPoint(s FleetSummary) *write.Point {
	return write.NewPoint(
		MeasurementFleetSummary,
		nil,
		map[string]any{
			"total":     s.Total,
			"online":    s.Online,
			"available": s.Available,
			"lost_mode": s.LostMode,
			"wiped":     s.Wiped,
		},
		stamp(s.Time),
	)
}

func stamp(t time.Time) time.Time {
	if t.IsZero() {
		return time.Now()
	}
	return t
}
