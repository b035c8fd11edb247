// Package influxdb mirrors device telemetry into a local InfluxDB v2
// instance.
//
// It wraps the official influxdb-client-go v2 library with
// shadowsync-specific patterns for connection management, telemetry
// writing and health monitoring.
//
// # Purpose
//
// The broker is the source of truth for all device data; the mirror is
// an optional local sink so a site can graph its own device without a
// cloud round trip. It is disabled by default and a failed mirror write
// never affects the broker publish path.
//
// # Usage
//
//	cfg := config.InfluxDBConfig{
//	    Enabled: true,
//	    URL:     "http://localhost:8086",
//	    Token:   "your-token",
//	    Org:     "site",
//	    Bucket:  "telemetry",
//	}
//
//	client, err := influxdb.Connect(cfg)
//	if err != nil {
//	    // run without the mirror
//	}
//	defer client.Close()
//
//	client.WriteTelemetry(sample)
//
// # Thread Safety
//
// All methods are safe for concurrent use from multiple goroutines.
// The underlying write API uses non-blocking batched writes.
//
// # Error Handling
//
// Write operations are non-blocking and batch errors are delivered via
// the SetOnError callback. Connection and health check errors are
// returned directly.
package influxdb
