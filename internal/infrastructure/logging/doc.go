// Package logging provides structured logging for the find-my core.
//
// It wraps log/slog so every component logs the same way: JSON in
// production, text for local development, with service and version
// attached to each entry.
//
// # Configuration
//
//	logging:
//	  level: "info"      # debug, info, warn, error
//	  format: "json"     # json, text
//	  output: "stdout"   # stdout, stderr, discard
//	  add_source: false
//
// # Usage
//
//	logger := logging.New(cfg.Logging, "1.0.0")
//	logger.Info("starting service", "port", 8080)
//	registry.SetLogger(logger.Component("registry"))
//
// Never log secrets such as MQTT passwords or InfluxDB tokens.
package logging
