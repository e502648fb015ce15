package influxdb

import (
	"strings"
	"testing"
	"time"

	"github.com/influxdata/influxdb-client-go/v2/api/write"
)

var sampleTime = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

func TestDeviceTelemetryPoint(t *testing.T) {
	p := deviceTelemetryPoint(DeviceTelemetry{
		DeviceID:  "3",
		Model:     "Hami Lite",
		Battery:   33.4,
		Lat:       29.5918,
		Lng:       52.5836,
		Online:    true,
		Available: false,
		LostMode:  true,
		Time:      sampleTime,
	})

	line := write.PointToLineProtocol(p, time.Nanosecond)

	if !strings.HasPrefix(line, MeasurementDeviceTelemetry+",") {
		t.Errorf("line %q does not start with measurement", line)
	}
	for _, want := range []string{
		"device_id=3",
		`model=Hami\ Lite`,
		"battery=33.4",
		"lat=29.5918",
		"lng=52.5836",
		"online=true",
		"available=false",
		"lost_mode=true",
		"wiped=false",
	} {
		if !strings.Contains(line, want) {
			t.Errorf("line %q missing %q", line, want)
		}
	}
	if !p.Time().Equal(sampleTime) {
		t.Errorf("Time() = %v, want %v", p.Time(), sampleTime)
	}
}

func TestFleetSummaryPoint(t *testing.T) {
	p := fleetSummaryPoint(FleetSummary{Total: 7, Online: 5, Available: 5, LostMode: 1, Time: sampleTime})

	line := write.PointToLineProtocol(p, time.Nanosecond)
	for _, want := range []string{"total=7i", "online=5i", "lost_mode=1i", "wiped=0i"} {
		if !strings.Contains(line, want) {
			t.Errorf("line %q missing %q", line, want)
		}
	}
	if p.Name() != MeasurementFleetSummary {
		t.Errorf("Name() = %q, want %q", p.Name(), MeasurementFleetSummary)
	}
}

func TestStamp_ZeroUsesNow(t *testing.T) {
	before := time.Now()
	got := stamp(time.Time{})
	if got.Before(before) {
		t.Errorf("stamp(zero) = %v, want >= %v", got, before)
	}
	if !stamp(sampleTime).Equal(sampleTime) {
		t.Error("stamp() changed a non-zero time")
	}
}

func TestWrites_NoopWhenDisconnected(t *testing.T) {
	c := &Client{}

	// writeAPI is nil; these must return before touching it.
	c.WriteDeviceTelemetry(DeviceTelemetry{DeviceID: "1"})
	c.WriteFleetSummary(FleetSummary{Total: 1})
	c.WritePoint("x", nil, map[string]any{"v": 1})
	c.Flush()
}
