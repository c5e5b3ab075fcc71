// Package api implements the compute worker's HTTP surface.
//
// Endpoints:
//
//	GET  /health         liveness probe, always open
//	POST /process_batch  interpolate one batch of grid rows
//	GET  /metrics        Prometheus text exposition of worker counters
//
// A malformed or inconsistent batch is answered with 400 and a JSON
// {"error": "..."} body. When API-key auth is configured every endpoint
// except /health requires the key.
package api
