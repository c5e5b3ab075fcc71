package idw

import (
	"math"
	"runtime"
	"sync"

	"github.com/tidwall/geodesic"
	"gonum.org/v1/gonum/floats"

	"github.com/precipgrid/precipgrid/pkg/types"
)

// MinDistance is the lower bound applied to every distance before weighting.
const MinDistance = 1e-9

// Stations is the numeric form of types.KnownData.
type Stations struct {
	Lons []float64
	Lats []float64
	Max  []float64
	Mean []float64
}

// FromKnown converts wire station data. It does not validate lengths.
func FromKnown(k types.KnownData) Stations {
	return Stations{
		Lons: k.Lons,
		Lats: k.Lats,
		Max:  types.Floats(k.MaxValues),
		Mean: types.Floats(k.MeanValues),
	}
}

// Len returns the number of stations.
func (s Stations) Len() int { return len(s.Lons) }

// Distance returns the WGS84 geodesic distance in metres between two points.
func Distance(lon1, lat1, lon2, lat2 float64) float64 {
	var s12 float64
	geodesic.WGS84.Inverse(lat1, lon1, lat2, lon2, &s12, nil, nil)
	return s12
}

// Weights fills w with 1/d^power for each station and returns it.
// w is reallocated when its length does not match the station count.
func Weights(lon, lat float64, s Stations, power float64, w []float64) []float64 {
	if len(w) != s.Len() {
		w = make([]float64, s.Len())
	}
	for i := range w {
		d := math.Max(Distance(lon, lat, s.Lons[i], s.Lats[i]), MinDistance)
		w[i] = 1 / math.Pow(d, power)
	}
	return w
}

// Interpolate returns the (max, mean) estimate at (lon, lat).
func Interpolate(lon, lat float64, s Stations, power float64) (float64, float64) {
	return interpolate(Weights(lon, lat, s, power, nil), s)
}

// interpolate normalises w in place and applies it to both bands.
func interpolate(w []float64, s Stations) (float64, float64) {
	sum := floats.Sum(w)
	if !(sum > 0) {
		return 0, 0
	}
	for i := range w {
		w[i] /= sum
	}
	return zeroNaN(floats.Dot(w, s.Max)), zeroNaN(floats.Dot(w, s.Mean))
}

func zeroNaN(v float64) float64 {
	if math.IsNaN(v) {
		return 0
	}
	return v
}

// Batch interpolates every pixel of req. Rows are spread over at most
// workers goroutines; workers <= 0 uses runtime.NumCPU. req must be valid.
func Batch(req *types.BatchRequest, workers int) [][]types.Pixel {
	s := FromKnown(req.KnownData)
	rows := len(req.LonsGrid)
	out := make([][]types.Pixel, rows)

	if workers <= 0 {
		workers = runtime.NumCPU()
	}
	if workers > rows {
		workers = rows
	}

	next := make(chan int)
	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			var w []float64
			for r := range next {
				out[r], w = interpolateRow(req, r, s, w)
			}
		}()
	}
	for r := 0; r < rows; r++ {
		next <- r
	}
	close(next)
	wg.Wait()
	return out
}

func interpolateRow(req *types.BatchRequest, r int, s Stations, w []float64) ([]types.Pixel, []float64) {
	lons, lats := req.LonsGrid[r], req.LatsGrid[r]
	row := make([]types.Pixel, len(lons))
	for c := range lons {
		if req.PolygonMask != nil && !(*req.PolygonMask)[r][c] {
			row[c] = types.Pixel{types.NaN(), types.NaN()}
			continue
		}
		w = Weights(lons[c], lats[c], s, req.Power, w)
		mx, mean := interpolate(w, s)
		row[c] = types.Pixel{types.Number(mx), types.Number(mean)}
	}
	return row, w
}
