// Package grid builds the lon/lat coordinate grid for a region and splits it
// into row batches.
//
// New(bounds, resolution) returns an immutable Grid whose values are pixel
// centres of a north-up raster anchored at (west, north). Partition splits
// [0, height) into contiguous ranges of at most batchSize rows, and Batches
// attaches the grid rows, shared station data, power and optional mask to
// each range.
package grid
