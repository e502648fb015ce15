// Package influxdb provides InfluxDB connectivity for fleet telemetry.
//
// It wraps the official influxdb-client-go v2 library with connection
// management, batched non-blocking writes, and health monitoring.
//
// # Measurements
//
//	device_telemetry  tags: device_id, model
//	                  fields: battery, lat, lng, online, available, lost_mode, wiped
//	fleet_summary     fields: total, online, available, lost_mode, wiped
//
// # Usage
//
//	client, err := influxdb.Connect(ctx, cfg.InfluxDB)
//	if err != nil {
//	    return err
//	}
//	defer client.Close()
//
//	client.WriteDeviceTelemetry(influxdb.DeviceTelemetry{DeviceID: "3", Battery: 33.4})
//
// Writes are batched according to batch_size and flush_interval; async
// failures are delivered to the SetOnError callback.
package influxdb
