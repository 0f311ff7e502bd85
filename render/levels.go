package render

import (
	"math"

	"gonum.org/v1/gonum/floats"

	"hstin/isobar/models/grid"
)

const targetBands = 8

// Levels picks evenly spaced "nice" contour boundaries covering the finite
// values of f. It returns nil when f has no finite values.
func Levels(f grid.Field) []float64 {
	finite := make([]float64, 0, len(f.Values))
	for _, v := range f.Values {
		if !math.IsNaN(v) && !math.IsInf(v, 0) {
			finite = append(finite, v)
		}
	}
	if len(finite) == 0 {
		return nil
	}

	lo, hi := floats.Min(finite), floats.Max(finite)
	if hi == lo {
		lo, hi = lo-0.5, hi+0.5
	}

	step := niceStep((hi - lo) / targetBands)
	start := math.Floor(lo/step) * step
	end := math.Ceil(hi/step) * step

	n := int(math.Round((end-start)/step)) + 1
	if n < 2 {
		n = 2
	}
	return floats.Span(make([]float64, n), start, start+float64(n-1)*step)
}

func niceStep(raw float64) float64 {
	mag := math.Pow(10, math.Floor(math.Log10(raw)))
	for _, m := range []float64{1, 2, 2.5, 5, 10} {
		if raw <= m*mag {
			return m * mag
		}
	}
	return 10 * mag
}

// band returns the index of the band holding v, or -1 when v is outside.
func band(levels []float64, v float64) int {
	n := len(levels) - 1
	if n < 1 || math.IsNaN(v) || v < levels[0] || v > levels[n] {
		return -1
	}
	lo, hi := 0, n
	for lo < hi {
		mid := (lo + hi) / 2
		if v < levels[mid+1] {
			hi = mid
		} else {
			lo = mid + 1
		}
	}
	if lo >= n {
		return n - 1
	}
	return lo
}

// tickDecimals is the number of decimals that prints every level exactly.
func tickDecimals(levels []float64) int {
	if len(levels) < 2 {
		return 0
	}
	step := levels[1] - levels[0]
	d := int(math.Max(0, -math.Floor(math.Log10(step))))
	if math.Abs(math.Round(step*math.Pow(10, float64(d)))-step*math.Pow(10, float64(d))) > 1e-9 {
		d++
	}
	return d
}
