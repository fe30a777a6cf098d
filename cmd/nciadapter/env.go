package main

import "os"

// getEnv reads an optional environment-gated toggle that has no home in
// Config (e.g. the InfluxDB/MQTT/S3 sinks, which are opt-in extras rather
// than part of the adapter's core deployment surface).
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}
