package types

import (
	"encoding/json"
	"errors"
	"fmt"
	"math"
)

// Paths served by every compute worker.
const (
	HealthPath  = "/health"
	ProcessPath = "/process_batch"
	MetricsPath = "/metrics"
)

// Counter names exposed on MetricsPath.
const (
	MetricBatches      = "precipgrid_worker_batches_total"
	MetricBatchErrors  = "precipgrid_worker_batch_errors_total"
	MetricPixels       = "precipgrid_worker_pixels_total"
	MetricBatchSeconds = "precipgrid_worker_batch_seconds_total"
)

// Band indices of a result pixel.
const (
	BandMax  = 0
	BandMean = 1
)

// Number is a float64 whose JSON form is null when the value is not finite.
type Number float64

// NaN returns the nodata value.
func NaN() Number { return Number(math.NaN()) }

// IsNaN reports whether n is the nodata value.
func (n Number) IsNaN() bool { return math.IsNaN(float64(n)) }

func (n Number) MarshalJSON() ([]byte, error) {
	f := float64(n)
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return []byte("null"), nil
	}
	return json.Marshal(f)
}

func (n *Number) UnmarshalJSON(b []byte) error {
	if string(b) == "null" {
		*n = NaN()
		return nil
	}
	var f float64
	if err := json.Unmarshal(b, &f); err != nil {
		return err
	}
	*n = Number(f)
	return nil
}

// Floats converts a Number slice to plain float64 values.
func Floats(ns []Number) []float64 {
	out := make([]float64, len(ns))
	for i, n := range ns {
		out[i] = float64(n)
	}
	return out
}

// Numbers converts plain float64 values to a Number slice.
func Numbers(fs []float64) []Number {
	out := make([]Number, len(fs))
	for i, f := range fs {
		out[i] = Number(f)
	}
	return out
}

// Pixel is one result cell: [max, mean].
type Pixel [2]Number

// ErrPixelArity is returned when a decoded pixel does not hold exactly one
// value per band.
var ErrPixelArity = errors.New("pixel must have exactly 2 values")

// UnmarshalJSON rejects arrays that are shorter or longer than a pixel.
func (p *Pixel) UnmarshalJSON(b []byte) error {
	var vs []Number
	if err := json.Unmarshal(b, &vs); err != nil {
		return err
	}
	if len(vs) != len(p) {
		return fmt.Errorf("%w: got %d", ErrPixelArity, len(vs))
	}
	copy(p[:], vs)
	return nil
}

// KnownData holds positionally correlated station observations: index i of
// every slice refers to the same station.
type KnownData struct {
	Lons       []float64 `json:"lons"`
	Lats       []float64 `json:"lats"`
	MaxValues  []Number  `json:"max_values"`
	MeanValues []Number  `json:"mean_values"`
}

// ErrKnownDataLength is returned when the station arrays differ in length.
var ErrKnownDataLength = errors.New("known_data arrays differ in length")

// Len returns the number of stations.
func (k KnownData) Len() int { return len(k.Lons) }

// Validate checks that all four arrays have equal length.
func (k KnownData) Validate() error {
	n := len(k.Lons)
	if len(k.Lats) != n || len(k.MaxValues) != n || len(k.MeanValues) != n {
		return fmt.Errorf("%w: lons=%d lats=%d max_values=%d mean_values=%d",
			ErrKnownDataLength, len(k.Lons), len(k.Lats), len(k.MaxValues), len(k.MeanValues))
	}
	return nil
}

// Mask marks pixels inside the region of interest with true.
type Mask [][]bool

// Batch is one contiguous range of grid rows [StartRow, EndRow) ready for
// dispatch. Known is shared by every batch of a session and must not be
// modified while a session runs.
type Batch struct {
	StartRow int
	EndRow   int
	Lons     [][]float64
	Lats     [][]float64
	Known    *KnownData
	Power    float64
	Mask     *Mask // nil when no mask applies
}

// Rows returns the number of grid rows in the batch.
func (b Batch) Rows() int { return b.EndRow - b.StartRow }

// Request builds the wire payload for b.
func (b Batch) Request() BatchRequest {
	req := BatchRequest{
		StartRow:    b.StartRow,
		EndRow:      b.EndRow,
		LonsGrid:    b.Lons,
		LatsGrid:    b.Lats,
		Power:       b.Power,
		PolygonMask: b.Mask,
	}
	if b.Known != nil {
		req.KnownData = *b.Known
	}
	return req
}

// BatchRequest is the body of POST /process_batch.
type BatchRequest struct {
	StartRow    int         `json:"start_row"`
	EndRow      int         `json:"end_row"`
	LonsGrid    [][]float64 `json:"lons_grid"`
	LatsGrid    [][]float64 `json:"lats_grid"`
	KnownData   KnownData   `json:"known_data"`
	Power       float64     `json:"power"`
	PolygonMask *Mask       `json:"polygon_mask,omitempty"`
}

// Shape errors reported by BatchRequest.Validate.
var (
	ErrRowRange = errors.New("end_row must be greater than start_row")
	ErrShape    = errors.New("grid shape mismatch")
)

// Width returns the column count of the first grid row, or 0 for an empty slice.
func (r *BatchRequest) Width() int {
	if len(r.LonsGrid) == 0 {
		return 0
	}
	return len(r.LonsGrid[0])
}

// Validate checks the row range, that both grids and the optional mask are
// rectangular with (end_row-start_row) rows, and that known_data is consistent.
func (r *BatchRequest) Validate() error {
	if r.StartRow < 0 || r.EndRow <= r.StartRow {
		return fmt.Errorf("%w: start_row=%d end_row=%d", ErrRowRange, r.StartRow, r.EndRow)
	}
	rows, width := r.EndRow-r.StartRow, r.Width()
	if err := checkShape("lons_grid", len(r.LonsGrid), rows, width, func(i int) int { return len(r.LonsGrid[i]) }); err != nil {
		return err
	}
	if err := checkShape("lats_grid", len(r.LatsGrid), rows, width, func(i int) int { return len(r.LatsGrid[i]) }); err != nil {
		return err
	}
	if r.PolygonMask != nil {
		m := *r.PolygonMask
		if err := checkShape("polygon_mask", len(m), rows, width, func(i int) int { return len(m[i]) }); err != nil {
			return err
		}
	}
	return r.KnownData.Validate()
}

func checkShape(name string, got, rows, width int, rowLen func(int) int) error {
	if got != rows {
		return fmt.Errorf("%w: %s has %d rows, want %d", ErrShape, name, got, rows)
	}
	for i := 0; i < got; i++ {
		if n := rowLen(i); n != width {
			return fmt.Errorf("%w: %s row %d has %d cols, want %d", ErrShape, name, i, n, width)
		}
	}
	return nil
}

// BatchResponse is the body returned by a successful POST /process_batch.
type BatchResponse struct {
	StartRow int       `json:"start_row"`
	Results  [][]Pixel `json:"results"`
}

// BatchResult is a decoded batch of interpolated rows, keyed by StartRow.
type BatchResult struct {
	StartRow int
	Rows     [][]Pixel
}

// Width returns the column count of the result, or 0 when it has no rows.
func (r *BatchResult) Width() int {
	if len(r.Rows) == 0 {
		return 0
	}
	return len(r.Rows[0])
}
