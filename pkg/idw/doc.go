// Package idw implements the inverse-distance-weighting interpolation that
// every compute worker runs on a batch.
//
// For a target (lon, lat) the distance to each known station is the WGS84
// geodesic distance in metres, clamped to MinDistance. Weights are
// 1/d^power; the "max" and "mean" bands are weighted averages of the station
// values using the same weight vector. With no stations, or when all weights
// are zero, both bands are 0. A NaN band value is replaced with 0.
//
// Batch interpolates a full BatchRequest. Pixels outside the optional mask
// are left as NaN and are not interpolated.
package idw
