// findmy-core runs the find-my-device fleet core.
//
// It seeds the device fleet, simulates passive telemetry drift while anyone
// is watching, and exposes the remote actions (play sound, lost mode, wipe)
// over HTTP, WebSocket, and optionally MQTT. Fleet telemetry can be exported
// to InfluxDB.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/nerrad567/findmy-core/internal/api"
	"github.com/nerrad567/findmy-core/internal/bridges/mqttrelay"
	"github.com/nerrad567/findmy-core/internal/device"
	"github.com/nerrad567/findmy-core/internal/fleet"
	"github.com/nerrad567/findmy-core/internal/infrastructure/config"
	"github.com/nerrad567/findmy-core/internal/infrastructure/influxdb"
	"github.com/nerrad567/findmy-core/internal/infrastructure/logging"
	"github.com/nerrad567/findmy-core/internal/infrastructure/mqtt"
	"github.com/nerrad567/findmy-core/internal/telemetry"
)

// Version information - set at build time via ldflags
// Example: go build -ldflags "-X main.version=1.0.0 -X main.commit=abc123"
var (
	version = "dev"
	commit  = "unknown"
	date    = "unknown"
)

// Default configuration file path
const defaultConfigPath = "configs/config.yaml"

// healthCheckTimeout bounds the startup health checks.
const healthCheckTimeout = 10 * time.Second

func main() {
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	if err := run(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

// run is the application logic, separated from main for testability.
// It returns nil on clean shutdown.
func run(ctx context.Context) error { //nolint:gocognit,gocyclo // linear startup sequence
	log := logging.Default()
	log.Info("starting findmy core",
		"version", version,
		"commit", commit,
		"build_date", date,
	)

	configPath := getConfigPath()
	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}

	log = logging.New(cfg.Logging, version)
	log.Info("configuration loaded",
		"path", configPath,
		"level", cfg.Logging.Level,
		"format", cfg.Logging.Format,
	)

	// Device registry
	seed, err := loadFleet(cfg.Fleet, time.Now())
	if err != nil {
		return fmt.Errorf("loading fleet: %w", err)
	}
	registry, err := device.NewRegistry(seed)
	if err != nil {
		return fmt.Errorf("building device registry: %w", err)
	}
	registry.SetLogger(log.Component("registry"))
	log.Info("device registry initialised", "devices", registry.Len(), "seed_file", cfg.Fleet.SeedFile)

	// Simulation loop and subscription broker
	sim := fleet.NewSimulator(fleet.SimulationConfig{
		Interval:        cfg.Simulation.TickInterval,
		BatteryDrainMax: cfg.Simulation.BatteryDrainMax,
		DriftMax:        cfg.Simulation.DriftMax,
	})
	broker := fleet.NewBroker(registry, sim)
	broker.SetLogger(log.Component("broker"))
	defer func() {
		log.Info("closing fleet broker")
		broker.Close()
	}()

	service := fleet.NewService(broker, latencyFrom(cfg.Latency))
	service.SetLogger(log.Component("actions"))

	// InfluxDB telemetry export (optional)
	var influxClient *influxdb.Client
	if cfg.InfluxDB.Enabled {
		influxClient, err = influxdb.Connect(ctx, cfg.InfluxDB)
		if err != nil {
			return fmt.Errorf("connecting to InfluxDB: %w", err)
		}
		defer func() {
			log.Info("closing InfluxDB connection")
			if closeErr := influxClient.Close(); closeErr != nil {
				log.Error("error closing InfluxDB", "error", closeErr)
			}
		}()
		influxClient.SetOnError(func(err error) {
			log.Error("InfluxDB write error", "error", err)
		})

		recorder := telemetry.NewRecorder(influxClient)
		sub, subErr := broker.Subscribe(recorder)
		if subErr != nil {
			return fmt.Errorf("subscribing telemetry recorder: %w", subErr)
		}
		defer sub.Unsubscribe()

		log.Info("InfluxDB telemetry enabled",
			"url", cfg.InfluxDB.URL,
			"org", cfg.InfluxDB.Org,
			"bucket", cfg.InfluxDB.Bucket,
		)
	} else {
		log.Info("InfluxDB disabled")
	}

	// MQTT relay (optional)
	var mqttClient *mqtt.Client
	var relay *mqttrelay.Relay
	if cfg.MQTT.Enabled {
		mqttClient, relay, err = startRelay(cfg.MQTT, broker, service, log)
		if err != nil {
			return err
		}
		defer func() {
			log.Info("stopping MQTT relay")
			relay.Stop()
			log.Info("disconnecting from MQTT")
			if closeErr := mqttClient.Close(); closeErr != nil {
				log.Error("error closing MQTT", "error", closeErr)
			}
		}()
	} else {
		log.Info("MQTT relay disabled")
	}

	// HTTP API
	deps := api.Deps{
		Config:   cfg.API,
		WS:       cfg.WebSocket,
		Security: cfg.Security,
		Logger:   log.Component("api"),
		Broker:   broker,
		Service:  service,
		MQTT:     mqttClient,
		Version:  version,
	}
	if relay != nil {
		deps.Relay = relay
	}
	server, err := api.New(deps)
	if err != nil {
		return fmt.Errorf("creating API server: %w", err)
	}
	if err := server.Start(ctx); err != nil {
		return fmt.Errorf("starting API server: %w", err)
	}
	defer func() {
		if closeErr := server.Close(); closeErr != nil {
			log.Error("error closing API server", "error", closeErr)
		}
	}()

	if err := healthCheck(ctx, server, mqttClient, influxClient); err != nil {
		return fmt.Errorf("health check failed: %w", err)
	}
	log.Info("all health checks passed")

	log.Info("initialisation complete, waiting for shutdown signal")
	<-ctx.Done()

	log.Info("shutdown signal received, cleaning up")
	return nil
}

// startRelay connects to the MQTT broker and starts the command relay.
func startRelay(cfg config.MQTTConfig, broker *fleet.Broker, service *fleet.Service, log *logging.Logger) (*mqtt.Client, *mqttrelay.Relay, error) {
	client, err := mqtt.Connect(cfg)
	if err != nil {
		return nil, nil, fmt.Errorf("connecting to MQTT: %w", err)
	}
	client.SetLogger(log.Component("mqtt"))
	client.SetOnConnect(func() {
		log.Info("MQTT reconnected")
	})
	client.SetOnDisconnect(func(err error) {
		log.Warn("MQTT disconnected", "error", err)
	})
	log.Info("MQTT connected",
		"broker", fmt.Sprintf("%s:%d", cfg.Broker.Host, cfg.Broker.Port),
		"client_id", cfg.Broker.ClientID,
	)

	relay, err := mqttrelay.New(mqttrelay.Options{
		MQTT:    client,
		Topics:  client.Topics(),
		Source:  broker,
		Actions: service,
		QoS:     client.QoS(),
		Logger:  log.Component("mqttrelay"),
	})
	if err != nil {
		client.Close() //nolint:errcheck // already failing
		return nil, nil, fmt.Errorf("creating MQTT relay: %w", err)
	}
	if err := relay.Start(); err != nil {
		client.Close() //nolint:errcheck // already failing
		return nil, nil, fmt.Errorf("starting MQTT relay: %w", err)
	}
	return client, relay, nil
}

// getConfigPath returns the configuration file path.
// Uses FINDMY_CONFIG environment variable if set, otherwise default.
func getConfigPath() string {
	if path := os.Getenv("FINDMY_CONFIG"); path != "" {
		return path
	}
	return defaultConfigPath
}

// loadFleet returns the seed fleet: the configured file, or the built-in
// demonstration fleet when none is set.
func loadFleet(cfg config.FleetConfig, now time.Time) ([]device.Device, error) {
	if cfg.SeedFile == "" {
		return device.SeedDevices(now), nil
	}
	return device.LoadSeedFile(cfg.SeedFile, now)
}

// latencyFrom converts configured milliseconds to action latencies.
func latencyFrom(cfg config.LatencyConfig) fleet.Latency {
	return fleet.Latency{
		Fetch:     config.Millis(cfg.Fetch),
		PlaySound: config.Millis(cfg.PlaySound),
		LostMode:  config.Millis(cfg.LostMode),
		Wipe:      config.Millis(cfg.Wipe),
	}
}

// healthChecker is implemented by every component verified at startup.
type healthChecker interface {
	HealthCheck(ctx context.Context) error
}

// healthCheck verifies all started components concurrently. Nil MQTT and
// InfluxDB clients mean the component is disabled.
func healthCheck(ctx context.Context, server healthChecker, mqttClient *mqtt.Client, influxClient *influxdb.Client) error {
	ctx, cancel := context.WithTimeout(ctx, healthCheckTimeout)
	defer cancel()

	checks := map[string]healthChecker{"api": server}
	if mqttClient != nil {
		checks["mqtt"] = mqttClient
	}
	if influxClient != nil {
		checks["influxdb"] = influxClient
	}

	g, gctx := errgroup.WithContext(ctx)
	for name, check := range checks {
		g.Go(func() error {
			if err := check.HealthCheck(gctx); err != nil {
				return fmt.Errorf("%s: %w", name, err)
			}
			return nil
		})
	}
	return g.Wait()
}
