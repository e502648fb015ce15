// Package telemetry records fleet snapshots as time-series samples.
//
// A Recorder subscribes to the fleet broker like any other listener. It
// writes one sample per device whose LastUpdate moved since the previous
// snapshot, plus one fleet summary per snapshot. The writer is normally an
// *influxdb.Client, whose writes are batched and never block the broker.
package telemetry
