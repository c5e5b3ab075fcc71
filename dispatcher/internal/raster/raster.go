package raster

import (
	"errors"
	"fmt"
	"log/slog"
	"math"
	"sort"

	"github.com/precipgrid/precipgrid/pkg/types"
)

// Bands is the number of bands in the output raster.
const Bands = 2

// Errors returned by Put.
var (
	ErrAlreadyMerged = errors.New("raster: start row already merged")
	ErrShape         = errors.New("raster: result does not fit raster")
)

// Raster is a Height x Width x Bands array of float64 in row-major,
// pixel-interleaved order. It is not safe for concurrent use; results are
// merged by a single goroutine.
type Raster struct {
	Height int
	Width  int
	data   []float64
	filled map[int]int // start row -> end row of merged results
}

// New returns a raster with every cell set to NaN.
func New(height, width int) *Raster {
	r := &Raster{
		Height: height,
		Width:  width,
		data:   make([]float64, height*width*Bands),
		filled: make(map[int]int),
	}
	nan := math.NaN()
	for i := range r.data {
		r.data[i] = nan
	}
	return r
}

// At returns the value of band b at (row, col).
func (r *Raster) At(row, col, band int) float64 {
	return r.data[(row*r.Width+col)*Bands+band]
}

// Put copies res into rows [res.StartRow, res.StartRow+len(res.Rows)).
// A start row that was already merged is left untouched.
func (r *Raster) Put(res *types.BatchResult) error {
	if _, ok := r.filled[res.StartRow]; ok {
		return fmt.Errorf("%w: %d", ErrAlreadyMerged, res.StartRow)
	}
	end := res.StartRow + len(res.Rows)
	if res.StartRow < 0 || end > r.Height {
		return fmt.Errorf("%w: rows [%d,%d) outside [0,%d)", ErrShape, res.StartRow, end, r.Height)
	}
	for i, row := range res.Rows {
		if len(row) != r.Width {
			return fmt.Errorf("%w: row %d has %d cols, want %d", ErrShape, res.StartRow+i, len(row), r.Width)
		}
	}
	for s, e := range r.filled {
		if res.StartRow < e && s < end {
			return fmt.Errorf("%w: rows [%d,%d) overlap merged [%d,%d)", ErrShape, res.StartRow, end, s, e)
		}
	}

	for i, row := range res.Rows {
		base := (res.StartRow + i) * r.Width * Bands
		for c, px := range row {
			r.data[base+c*Bands+types.BandMax] = float64(px[types.BandMax])
			r.data[base+c*Bands+types.BandMean] = float64(px[types.BandMean])
		}
	}
	r.filled[res.StartRow] = end
	return nil
}

// Merge builds a height x width raster from results. Results that cannot be
// merged are logged and skipped.
func Merge(results map[int]*types.BatchResult, height, width int) *Raster {
	r := New(height, width)
	starts := make([]int, 0, len(results))
	for s := range results {
		starts = append(starts, s)
	}
	sort.Ints(starts)
	for _, s := range starts {
		if err := r.Put(results[s]); err != nil {
			slog.Warn("raster: result skipped", "start_row", s, "err", err)
		}
	}
	return r
}

// Span is a half-open row range.
type Span struct {
	Start int
	End   int
}

// Coverage reports how many rows were filled and the row ranges that were not.
func (r *Raster) Coverage() (filledRows int, holes []Span) {
	starts := make([]int, 0, len(r.filled))
	for s := range r.filled {
		starts = append(starts, s)
	}
	sort.Ints(starts)

	next := 0
	for _, s := range starts {
		e := r.filled[s]
		if s > next {
			holes = append(holes, Span{Start: next, End: s})
		}
		filledRows += e - s
		next = e
	}
	if next < r.Height {
		holes = append(holes, Span{Start: next, End: r.Height})
	}
	return filledRows, holes
}

// Band returns a copy of one band in row-major order.
func (r *Raster) Band(band int) []float64 {
	out := make([]float64, r.Height*r.Width)
	for i := range out {
		out[i] = r.data[i*Bands+band]
	}
	return out
}
