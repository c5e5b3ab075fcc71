// Package types defines the wire types exchanged between the dispatcher and
// the compute worker. They are the canonical representation of one batch of
// grid rows and its interpolated result.
//
// A BatchRequest carries a contiguous row slice of the lon/lat grid, the full
// set of known station observations, the IDW power, and an optional boolean
// mask of the same shape as the slice. A BatchResponse echoes start_row and
// holds a [rows][cols][2] array: band 0 is the interpolated maximum, band 1
// the interpolated mean of non-zero observations.
//
// Number is a float64 that encodes NaN and ±Inf as JSON null and decodes null
// back to NaN, so nodata pixels and undefined station means survive the
// encoding/json round trip.
package types
