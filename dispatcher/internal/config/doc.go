// Package config loads the dispatcher configuration file (dispatcher.yaml).
//
// Top-level types:
//   - Config: endpoints [], auth, tls, region, resolution, stations, seed,
//     power, batch_size, max_concurrency, health_timeout, batch_timeout, output
//   - AuthConfig: mode (mtls|apikey|bearer|none), cert/key/ca files, header,
//     key_env, token_env; Key() and Token() resolve from environment variables
//   - Region: name plus west/east/south/north bounds in degrees
//
// Load(path) reads the YAML file, applies defaults (0.01° resolution, 80
// stations, seed 42, power 2, 20-row batches, 5s health probe, 1h batch
// timeout), then validates required fields and enums.
package config
