// Package metrics holds the compute worker's lifetime counters and renders
// them in the Prometheus text exposition format.
package metrics
