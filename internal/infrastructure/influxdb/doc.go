// Package influxdb records gateway telemetry to InfluxDB v2: intent
// dispatch and result counts, endpoint connectivity transitions and the
// connected device count. Telemetry is optional; when disabled the rest
// of the gateway runs without it.
package influxdb
