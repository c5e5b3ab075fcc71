// Package stations produces the known observation set for a session.
//
// Generate places stations uniformly at random inside the region, draws a
// year of daily precipitation values per station, and reduces each station
// to its maximum and its mean over non-zero days. A fixed seed gives the
// same station set on every run.
package stations

import (
	"math"
	"math/rand"

	"gonum.org/v1/gonum/floats"

	"github.com/precipgrid/precipgrid/dispatcher/internal/grid"
	"github.com/precipgrid/precipgrid/pkg/types"
)

const (
	// DaysPerYear is the number of daily samples drawn per station.
	DaysPerYear = 365

	// MaxDailyMM is the exclusive upper bound of a daily value in millimetres.
	MaxDailyMM = 150.0
)

// Generate returns n synthetic stations inside bounds.
func Generate(bounds grid.Bounds, n int, seed int64) *types.KnownData {
	rng := rand.New(rand.NewSource(seed)) //nolint:gosec // synthetic data

	k := &types.KnownData{
		Lons:       make([]float64, n),
		Lats:       make([]float64, n),
		MaxValues:  make([]types.Number, n),
		MeanValues: make([]types.Number, n),
	}
	for i := 0; i < n; i++ {
		k.Lons[i] = bounds.West + rng.Float64()*(bounds.East-bounds.West)
		k.Lats[i] = bounds.South + rng.Float64()*(bounds.North-bounds.South)
	}

	daily := make([]float64, DaysPerYear)
	for i := 0; i < n; i++ {
		for d := range daily {
			daily[d] = rng.Float64() * MaxDailyMM
		}
		mx, mean := Reduce(daily)
		k.MaxValues[i] = types.Number(mx)
		k.MeanValues[i] = types.Number(mean)
	}
	return k
}

// Reduce returns the maximum of samples and the mean of its positive values.
// The mean is NaN when no sample is positive; the maximum is NaN for an
// empty slice.
func Reduce(samples []float64) (float64, float64) {
	if len(samples) == 0 {
		return math.NaN(), math.NaN()
	}
	var sum float64
	var count int
	for _, v := range samples {
		if v > 0 {
			sum += v
			count++
		}
	}
	mean := math.NaN()
	if count > 0 {
		mean = sum / float64(count)
	}
	return floats.Max(samples), mean
}
