// Package influxdb provides InfluxDB connectivity for Stockwise Core.
//
// It wraps the official influxdb-client-go v2 library with connection
// management, stock-history writing, and health monitoring.
//
// # Purpose
//
// This package handles time-series storage for:
//   - Stock level history per product (package quantities over time)
//   - Authentication event rates (sign-ins, refreshes, denials)
//
// # Usage
//
//	cfg := config.InfluxDBConfig{
//	    URL:    "http://localhost:8086",
//	    Token:  "your-token",
//	    Org:    "stockwise",
//	    Bucket: "stock_history",
//	}
//
//	client, err := influxdb.Connect(cfg)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer client.Close()
//
//	client.WriteStockLevel("prd-1a2b3c4d", "cleaning", 12, 1.5)
//
// # Thread Safety
//
// All methods are safe for concurrent use from multiple goroutines.
// The underlying write API uses non-blocking batched writes.
//
// # Error Handling
//
// Write operations are non-blocking and batch errors are reported via a
// callback. Connection and health check errors are returned directly.
package influxdb
