package api

import (
	"net/http"
	"runtime"
	"time"

	"github.com/nerrad567/findmy-core/internal/bridges/mqttrelay"
	"github.com/nerrad567/findmy-core/internal/device"
)

// SystemMetrics represents the complete system metrics response.
type SystemMetrics struct {
	Timestamp     string           `json:"timestamp"`
	Version       string           `json:"version"`
	UptimeSeconds int64            `json:"uptime_seconds"`
	Runtime       RuntimeMetrics   `json:"runtime"`
	WebSocket     WSMetrics        `json:"websocket"`
	MQTT          MQTTMetrics      `json:"mqtt"`
	Relay         *mqttrelay.Stats `json:"mqtt_relay,omitempty"`
	Fleet         FleetMetrics     `json:"fleet"`
	Notifications int              `json:"notifications"`
}

// RuntimeMetrics contains Go runtime statistics.
type RuntimeMetrics struct {
	Goroutines    int     `json:"goroutines"`
	MemoryAllocMB float64 `json:"memory_alloc_mb"`
	MemoryTotalMB float64 `json:"memory_total_mb"`
	NumGC         uint32  `json:"num_gc"`
}

// WSMetrics contains WebSocket hub statistics.
type WSMetrics struct {
	ConnectedClients int `json:"connected_clients"`
}

// MQTTMetrics contains MQTT client statistics.
type MQTTMetrics struct {
	Connected bool `json:"connected"`
}

// FleetMetrics contains registry and broker statistics.
type FleetMetrics struct {
	Devices     device.Stats `json:"devices"`
	Subscribers int          `json:"subscribers"`
	LoopRunning bool         `json:"loop_running"`
	Ticks       uint64       `json:"ticks"`
	Broadcasts  uint64       `json:"broadcasts"`
}

// handleMetrics returns system metrics.
func (s *Server) handleMetrics(w http.ResponseWriter, _ *http.Request) {
	var memStats runtime.MemStats
	runtime.ReadMemStats(&memStats)

	metrics := SystemMetrics{
		Timestamp:     time.Now().UTC().Format(time.RFC3339),
		Version:       s.version,
		UptimeSeconds: int64(time.Since(s.startTime).Seconds()),
		Runtime: RuntimeMetrics{
			Goroutines:    runtime.NumGoroutine(),
			MemoryAllocMB: float64(memStats.Alloc) / 1024 / 1024,
			MemoryTotalMB: float64(memStats.TotalAlloc) / 1024 / 1024,
			NumGC:         memStats.NumGC,
		},
		WebSocket: WSMetrics{
			ConnectedClients: s.hub.ClientCount(),
		},
		MQTT: MQTTMetrics{
			Connected: s.mqtt.IsConnected(),
		},
		Fleet: FleetMetrics{
			Devices:     s.broker.Registry().Stats(),
			Subscribers: s.broker.SubscriberCount(),
			LoopRunning: s.broker.Running(),
			Ticks:       s.broker.Ticks(),
			Broadcasts:  s.broker.Broadcasts(),
		},
		Notifications: len(s.notifications.List()),
	}

	if s.relay != nil {
		stats := s.relay.Stats()
		metrics.Relay = &stats
	}

	writeJSON(w, http.StatusOK, metrics)
}
