package grid

import (
	"errors"
	"fmt"
	"math"

	"github.com/precipgrid/precipgrid/pkg/types"
)

// ErrInvalidArgument is returned for a non-positive batch size, a negative
// height, a non-positive resolution, or inverted region bounds.
var ErrInvalidArgument = errors.New("grid: invalid argument")

// Bounds is a region in degrees.
type Bounds struct {
	West  float64 `yaml:"west" json:"west"`
	East  float64 `yaml:"east" json:"east"`
	South float64 `yaml:"south" json:"south"`
	North float64 `yaml:"north" json:"north"`
}

// Validate checks west < east and south < north.
func (b Bounds) Validate() error {
	if !(b.West < b.East) {
		return fmt.Errorf("%w: west %v must be less than east %v", ErrInvalidArgument, b.West, b.East)
	}
	if !(b.South < b.North) {
		return fmt.Errorf("%w: south %v must be less than north %v", ErrInvalidArgument, b.South, b.North)
	}
	return nil
}

// Transform maps pixel (col, row) to the coordinate of the pixel's upper-left
// corner: x = C + A*col + B*row, y = F + D*col + E*row.
type Transform struct {
	A, B, C float64
	D, E, F float64
}

// FromOrigin returns a north-up transform with square pixels of size res.
func FromOrigin(west, north, res float64) Transform {
	return Transform{A: res, C: west, E: -res, F: north}
}

// Apply returns the coordinate of fractional pixel position (col, row).
func (t Transform) Apply(col, row float64) (x, y float64) {
	return t.C + t.A*col + t.B*row, t.F + t.D*col + t.E*row
}

// Grid holds pixel-centre longitudes and latitudes of shape Height x Width.
// It must not be modified after New returns.
type Grid struct {
	Lons      [][]float64
	Lats      [][]float64
	Transform Transform
	Height    int
	Width     int
}

// New builds the grid covering bounds at the given resolution in degrees.
func New(bounds Bounds, resolution float64) (*Grid, error) {
	if err := bounds.Validate(); err != nil {
		return nil, err
	}
	if !(resolution > 0) {
		return nil, fmt.Errorf("%w: resolution %v must be positive", ErrInvalidArgument, resolution)
	}

	width := cells(bounds.East-bounds.West, resolution)
	height := cells(bounds.North-bounds.South, resolution)
	g := &Grid{
		Lons:      make([][]float64, height),
		Lats:      make([][]float64, height),
		Transform: FromOrigin(bounds.West, bounds.North, resolution),
		Height:    height,
		Width:     width,
	}
	for r := 0; r < height; r++ {
		g.Lons[r] = make([]float64, width)
		g.Lats[r] = make([]float64, width)
		for c := 0; c < width; c++ {
			g.Lons[r][c], g.Lats[r][c] = g.Transform.Apply(float64(c)+0.5, float64(r)+0.5)
		}
	}
	return g, nil
}

// cells returns ceil(span/res), ignoring floating point noise in the quotient.
func cells(span, res float64) int {
	n := span / res
	if r := math.Round(n); math.Abs(n-r) < 1e-9 {
		return int(r)
	}
	return int(math.Ceil(n))
}

// RowRange is a half-open range of rows [Start, End).
type RowRange struct {
	Start int
	End   int
}

// Partition splits [0, height) into ordered, non-overlapping ranges of at
// most batchSize rows. The last range may be shorter.
func Partition(height, batchSize int) ([]RowRange, error) {
	if batchSize <= 0 {
		return nil, fmt.Errorf("%w: batch size %d must be positive", ErrInvalidArgument, batchSize)
	}
	if height < 0 {
		return nil, fmt.Errorf("%w: height %d must not be negative", ErrInvalidArgument, height)
	}

	out := make([]RowRange, 0, (height+batchSize-1)/batchSize)
	for start := 0; start < height; start += batchSize {
		out = append(out, RowRange{Start: start, End: min(start+batchSize, height)})
	}
	return out, nil
}

// Batches partitions g and builds one batch per range. Every batch shares
// known. mask may be nil; when set it must have the grid's shape.
func Batches(g *Grid, known *types.KnownData, power float64, batchSize int, mask types.Mask) ([]types.Batch, error) {
	if mask != nil && len(mask) != g.Height {
		return nil, fmt.Errorf("%w: mask has %d rows, grid has %d", ErrInvalidArgument, len(mask), g.Height)
	}
	ranges, err := Partition(g.Height, batchSize)
	if err != nil {
		return nil, err
	}

	batches := make([]types.Batch, 0, len(ranges))
	for _, rr := range ranges {
		b := types.Batch{
			StartRow: rr.Start,
			EndRow:   rr.End,
			Lons:     g.Lons[rr.Start:rr.End],
			Lats:     g.Lats[rr.Start:rr.End],
			Known:    known,
			Power:    power,
		}
		if mask != nil {
			m := mask[rr.Start:rr.End]
			b.Mask = &m
		}
		batches = append(batches, b)
	}
	return batches, nil
}
