// Package gridtest builds small deterministic datasets for tests.
package gridtest

import (
	"math"
	"time"

	"hstin/isobar/models/grid"
)

var Start = time.Date(2025, 3, 4, 0, 0, 0, 0, time.UTC)

var Variables = []string{"rain", "pm25", "no2", "o3", "u10", "v10"}

// New returns a dataset with hourly steps over a small box around Java.
// Values vary smoothly in space and time; u10 and v10 take both signs.
func New(steps, ny, nx int) *grid.Dataset {
	times := make([]time.Time, steps)
	for i := range times {
		times[i] = Start.Add(time.Duration(i) * time.Hour)
	}

	lat := make([]float64, ny)
	for i := range lat {
		lat[i] = -9 + 4*float64(i)/float64(ny-1)
	}
	lon := make([]float64, nx)
	for i := range lon {
		lon[i] = 105 + 10*float64(i)/float64(nx-1)
	}

	vars := make([]*grid.Variable, 0, len(Variables))
	for vi, name := range Variables {
		data := make([]float64, steps*ny*nx)
		for t := 0; t < steps; t++ {
			for y := 0; y < ny; y++ {
				for x := 0; x < nx; x++ {
					data[(t*ny+y)*nx+x] = value(vi, t, y, x)
				}
			}
		}
		vars = append(vars, &grid.Variable{Name: name, Data: data})
	}

	ds, err := grid.New(grid.Options{Times: times, Levels: 1, Lat: lat, Lon: lon}, vars...)
	if err != nil {
		panic(err)
	}
	return ds
}

func value(variable, t, y, x int) float64 {
	phase := float64(t) / 4
	switch Variables[variable] {
	case "u10":
		return 8 * math.Sin(float64(x)/3+phase)
	case "v10":
		return -6 * math.Cos(float64(y)/2+phase)
	case "rain":
		return math.Max(0, 20*math.Sin(float64(x+y)/5+phase))
	default:
		return float64(variable*10) + float64(x)*0.5 + float64(y)*0.25 + float64(t)
	}
}
