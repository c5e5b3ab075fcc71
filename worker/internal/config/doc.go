// Package config loads the compute worker configuration from the `worker:`
// section of a YAML file and watches it for changes.
//
// Only the log level is applied on reload. Port, worker count and auth are
// read once at startup; changing them requires a restart.
package config
