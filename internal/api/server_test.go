package api

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/nerrad567/findmy-core/internal/device"
	"github.com/nerrad567/findmy-core/internal/fleet"
	"github.com/nerrad567/findmy-core/internal/infrastructure/config"
	"github.com/nerrad567/findmy-core/internal/infrastructure/logging"
)

var testNow = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

func testLogger() *logging.Logger {
	return logging.New(config.LoggingConfig{Level: "error", Format: "text", Output: "discard"}, "test")
}

func testWSConfig() config.WebSocketConfig {
	return config.WebSocketConfig{Path: "/ws", MaxMessageSize: 8192, PingInterval: 30, PongTimeout: 10}
}

// testBroker returns a broker over the seeded fleet whose loop never ticks.
func testBroker(t *testing.T) *fleet.Broker {
	t.Helper()
	registry, err := device.NewRegistry(device.SeedDevices(testNow))
	if err != nil {
		t.Fatalf("NewRegistry() error = %v", err)
	}
	broker := fleet.NewBroker(registry, fleet.NewSimulator(fleet.SimulationConfig{Interval: time.Hour}))
	t.Cleanup(broker.Close)
	return broker
}

// testServerWith creates a Server over a fresh fleet with zero action latency.
func testServerWith(t *testing.T, security config.SecurityConfig) (*Server, *fleet.Broker) {
	t.Helper()

	broker := testBroker(t)
	service := fleet.NewService(broker, fleet.Latency{})
	service.SetClock(func() time.Time { return testNow.Add(time.Minute) })

	srv, err := New(Deps{
		Config: config.APIConfig{
			Host:     "127.0.0.1",
			Port:     0,
			Timeouts: config.APITimeoutConfig{Read: 5, Write: 5, Idle: 5},
		},
		WS:       testWSConfig(),
		Security: security,
		Logger:   testLogger(),
		Broker:   broker,
		Service:  service,
		Version:  "test",
	})
	if err != nil {
		t.Fatalf("New() error: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)
	go srv.hub.Run(ctx)

	return srv, broker
}

func testServer(t *testing.T) (*Server, *fleet.Broker) {
	t.Helper()
	return testServerWith(t, config.SecurityConfig{})
}

// do runs one request through the router.
func do(t *testing.T, h http.Handler, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	var req *http.Request
	if body == "" {
		req = httptest.NewRequest(method, path, nil)
	} else {
		req = httptest.NewRequest(method, path, strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
	}
	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)
	return w
}

func decode[T any](t *testing.T, w *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	if err := json.Unmarshal(w.Body.Bytes(), &v); err != nil {
		t.Fatalf("unmarshal %q: %v", w.Body.String(), err)
	}
	return v
}

func deviceIDs(devices []device.Device) []string {
	ids := make([]string, len(devices))
	for i, d := range devices {
		ids[i] = d.ID
	}
	return ids
}

// ─── Construction ──────────────────────────────────────────────────

func TestNew_RequiresDependencies(t *testing.T) {
	broker := testBroker(t)
	service := fleet.NewService(broker, fleet.Latency{})

	tests := []struct {
		name string
		deps Deps
	}{
		{"no logger", Deps{Broker: broker, Service: service}},
		{"no broker", Deps{Logger: testLogger(), Service: service}},
		{"no service", Deps{Logger: testLogger(), Broker: broker}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := New(tt.deps); err == nil {
				t.Error("New() error = nil, want missing dependency")
			}
		})
	}
}

func TestHealthCheck_NotStarted(t *testing.T) {
	srv, _ := testServer(t)
	if err := srv.HealthCheck(context.Background()); err == nil {
		t.Error("HealthCheck() = nil before Start")
	}
	if err := srv.Close(); err != nil {
		t.Errorf("Close() before Start error = %v", err)
	}
}

// ─── Health Endpoint Tests ─────────────────────────────────────────

func TestHealth(t *testing.T) {
	srv, _ := testServer(t)
	w := do(t, srv.buildRouter(), http.MethodGet, "/api/v1/health", "")

	if w.Code != http.StatusOK {
		t.Errorf("health status = %d, want %d", w.Code, http.StatusOK)
	}

	resp := decode[map[string]any](t, w)
	if resp["status"] != "ok" {
		t.Errorf("status = %v, want ok", resp["status"])
	}
	if resp["version"] != "test" {
		t.Errorf("version = %v, want test", resp["version"])
	}
	if ct := w.Header().Get("Content-Type"); ct != "application/json" {
		t.Errorf("Content-Type = %q, want application/json", ct)
	}
}

func TestMetrics(t *testing.T) {
	srv, _ := testServer(t)
	w := do(t, srv.buildRouter(), http.MethodGet, "/api/v1/metrics", "")

	if w.Code != http.StatusOK {
		t.Fatalf("metrics status = %d, want 200", w.Code)
	}

	m := decode[SystemMetrics](t, w)
	if m.Fleet.Devices.Total != 7 {
		t.Errorf("fleet.devices.total = %d, want 7", m.Fleet.Devices.Total)
	}
	if m.MQTT.Connected {
		t.Error("mqtt.connected = true without a client")
	}
	if m.Relay != nil {
		t.Errorf("mqtt_relay = %+v, want omitted", m.Relay)
	}
	if m.Version != "test" {
		t.Errorf("version = %q, want test", m.Version)
	}
}

// ─── Middleware Tests ──────────────────────────────────────────────

func TestRequestID_Generated(t *testing.T) {
	srv, _ := testServer(t)
	w := do(t, srv.buildRouter(), http.MethodGet, "/api/v1/health", "")

	if _, err := uuid.Parse(w.Header().Get("X-Request-ID")); err != nil {
		t.Errorf("X-Request-ID %q is not a UUID: %v", w.Header().Get("X-Request-ID"), err)
	}
}

func TestRequestID_PreservesClient(t *testing.T) {
	srv, _ := testServer(t)
	router := srv.buildRouter()

	req := httptest.NewRequest(http.MethodGet, "/api/v1/health", nil)
	req.Header.Set("X-Request-ID", "client-123")
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	if got := w.Header().Get("X-Request-ID"); got != "client-123" {
		t.Errorf("X-Request-ID = %q, want %q", got, "client-123")
	}
}

func TestCORS_Preflight(t *testing.T) {
	srv, _ := testServer(t)
	router := srv.buildRouter()

	req := httptest.NewRequest(http.MethodOptions, "/api/v1/devices", nil)
	req.Header.Set("Origin", "http://localhost:5173")
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	if w.Code != http.StatusNoContent {
		t.Errorf("preflight status = %d, want %d", w.Code, http.StatusNoContent)
	}
	if got := w.Header().Get("Access-Control-Allow-Origin"); got != "http://localhost:5173" {
		t.Errorf("ACAO = %q, want %q", got, "http://localhost:5173")
	}
}

func TestCORS_DisallowedOrigin(t *testing.T) {
	srv, _ := testServer(t)
	srv.cfg.CORS.AllowedOrigins = []string{"https://dashboard.example"}
	router := srv.buildRouter()

	req := httptest.NewRequest(http.MethodGet, "/api/v1/health", nil)
	req.Header.Set("Origin", "https://evil.example")
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	if got := w.Header().Get("Access-Control-Allow-Origin"); got != "" {
		t.Errorf("ACAO = %q for disallowed origin, want empty", got)
	}
}

func TestNotFound(t *testing.T) {
	srv, _ := testServer(t)
	w := do(t, srv.buildRouter(), http.MethodGet, "/api/v1/nonexistent", "")

	if w.Code != http.StatusNotFound {
		t.Errorf("unknown route status = %d, want %d", w.Code, http.StatusNotFound)
	}
}

func TestRateLimit_Actions(t *testing.T) {
	srv, _ := testServerWith(t, config.SecurityConfig{
		RateLimit: config.RateLimitConfig{Enabled: true, RequestsPerMinute: 1, Burst: 2},
	})
	router := srv.buildRouter()

	for i := range 2 {
		if w := do(t, router, http.MethodPost, "/api/v1/devices/1/sound", ""); w.Code != http.StatusOK {
			t.Fatalf("request %d status = %d, want 200", i+1, w.Code)
		}
	}

	w := do(t, router, http.MethodPost, "/api/v1/devices/1/sound", "")
	if w.Code != http.StatusTooManyRequests {
		t.Fatalf("third request status = %d, want 429", w.Code)
	}
	if e := decode[Error](t, w); e.Code != ErrCodeRateLimited {
		t.Errorf("code = %q, want %q", e.Code, ErrCodeRateLimited)
	}

	// Reads are not throttled.
	if w := do(t, router, http.MethodGet, "/api/v1/devices/1", ""); w.Code != http.StatusOK {
		t.Errorf("read after limit status = %d, want 200", w.Code)
	}
}

func TestRateLimiter(t *testing.T) {
	rl := NewRateLimiter(60, 1)

	if !rl.Allow("10.0.0.1") {
		t.Fatal("first request denied")
	}
	if rl.Allow("10.0.0.1") {
		t.Error("second immediate request allowed with burst 1")
	}
	if !rl.Allow("10.0.0.2") {
		t.Error("other IP denied")
	}
	if rl.Len() != 2 {
		t.Fatalf("Len() = %d, want 2", rl.Len())
	}

	rl.sweep(time.Now().Add(time.Minute))
	if rl.Len() != 0 {
		t.Errorf("Len() after sweep = %d, want 0", rl.Len())
	}
}

func TestClientIP(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.RemoteAddr = "203.0.113.9:51000"
	if got := clientIP(req); got != "203.0.113.9" {
		t.Errorf("clientIP() = %q, want 203.0.113.9", got)
	}

	req.RemoteAddr = "pipe"
	if got := clientIP(req); got != "pipe" {
		t.Errorf("clientIP() = %q, want pipe", got)
	}
}
