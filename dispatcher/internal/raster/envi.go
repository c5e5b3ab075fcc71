package raster

import (
	"bufio"
	"encoding/binary"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"strings"

	"github.com/precipgrid/precipgrid/dispatcher/internal/grid"
)

// BandNames are the descriptions written for band 1 and band 2.
var BandNames = [Bands]string{"Maximum precipitation", "Mean precipitation (non-zero)"}

// HeaderPath returns the ENVI header path for a raster data file.
func HeaderPath(dataPath string) string {
	return strings.TrimSuffix(dataPath, filepath.Ext(dataPath)) + ".hdr"
}

// WriteENVI writes r to path as band-sequential little-endian float32 and
// writes the matching header to HeaderPath(path).
func WriteENVI(path string, r *Raster, t grid.Transform, description string) error {
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("raster: create dir: %w", err)
		}
	}

	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("raster: create data file: %w", err)
	}
	w := bufio.NewWriter(f)
	buf := make([]byte, 4)
	for b := 0; b < Bands; b++ {
		for _, v := range r.Band(b) {
			binary.LittleEndian.PutUint32(buf, math.Float32bits(float32(v)))
			if _, err := w.Write(buf); err != nil {
				f.Close()
				return fmt.Errorf("raster: write data: %w", err)
			}
		}
	}
	if err := w.Flush(); err != nil {
		f.Close()
		return fmt.Errorf("raster: flush data: %w", err)
	}
	if err := f.Close(); err != nil {
		return fmt.Errorf("raster: close data file: %w", err)
	}

	if err := os.WriteFile(HeaderPath(path), []byte(header(r, t, description)), 0o644); err != nil {
		return fmt.Errorf("raster: write header: %w", err)
	}
	return nil
}

// header renders the ENVI header. Map info uses the upper-left corner of
// pixel (1,1) and EPSG:4326 degrees.
func header(r *Raster, t grid.Transform, description string) string {
	var sb strings.Builder
	fmt.Fprintln(&sb, "ENVI")
	fmt.Fprintf(&sb, "description = {%s}\n", description)
	fmt.Fprintf(&sb, "samples = %d\n", r.Width)
	fmt.Fprintf(&sb, "lines = %d\n", r.Height)
	fmt.Fprintf(&sb, "bands = %d\n", Bands)
	fmt.Fprintln(&sb, "header offset = 0")
	fmt.Fprintln(&sb, "file type = ENVI Standard")
	fmt.Fprintln(&sb, "data type = 4")
	fmt.Fprintln(&sb, "interleave = bsq")
	fmt.Fprintln(&sb, "byte order = 0")
	fmt.Fprintf(&sb, "map info = {Geographic Lat/Lon, 1, 1, %v, %v, %v, %v, WGS-84, units=Degrees}\n",
		t.C, t.F, t.A, -t.E)
	fmt.Fprintf(&sb, "band names = {%s}\n", strings.Join(BandNames[:], ", "))
	fmt.Fprintln(&sb, "data ignore value = nan")
	return sb.String()
}
