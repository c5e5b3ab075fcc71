// Package raster assembles batch results into the two-band output raster
// and writes it to disk.
//
// New preallocates Height x Width x 2 cells set to NaN, the nodata value.
// Put copies one batch result into its row range; a start row is merged at
// most once, and a result that does not fit the raster is rejected. Rows no
// batch ever filled stay NaN. Merge builds and fills a raster from a whole
// result map.
//
// WriteENVI stores the raster band-sequential as little-endian float32 with
// an ENVI text header carrying the geotransform, so GDAL and QGIS can open it.
package raster
