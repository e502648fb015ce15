// Package config handles loading and validating the find-my core configuration.
//
// This package manages:
//   - Loading configuration from YAML files
//   - Overriding with FINDMY_* environment variables
//   - Validation of every section in one pass
//   - Default value handling
//
// MQTT and InfluxDB are optional and disabled by default; their sections
// are only validated when enabled. Credentials should come from the
// environment rather than the file.
//
// Usage:
//
//	cfg, err := config.Load("configs/config.yaml")
//	if err != nil {
//	    log.Fatal(err)
//	}
//	fmt.Println(cfg.Simulation.TickInterval)
package config
