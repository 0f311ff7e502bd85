// Package grid holds the in-memory gridded dataset the renderer reads from.
//
// A Dataset is built once and never mutated afterwards, so any number of
// goroutines may read from it concurrently without coordination.
package grid

import (
	"fmt"
	"sort"
	"time"

	"hstin/isobar/common"
)

const (
	Lat = "lat"
	Lon = "lon"
)

// Field is a 2-D (Y, X) slice of a variable, stored row-major.
type Field struct {
	Rows   int
	Cols   int
	Values []float64
}

func NewField(rows, cols int) Field {
	return Field{Rows: rows, Cols: cols, Values: make([]float64, rows*cols)}
}

func (f Field) At(y, x int) float64 {
	return f.Values[y*f.Cols+x]
}

func (f Field) Shape() (int, int) {
	return f.Rows, f.Cols
}

// Variable is a 4-D array indexed [time, level, lat, lon].
type Variable struct {
	Name  string
	Units string
	Data  []float64
}

// Extent is the bounding box of the coordinate grid in degrees.
type Extent struct {
	LonMin, LonMax float64
	LatMin, LatMax float64
}

func (e Extent) Center() (lat, lon float64) {
	return (e.LatMin + e.LatMax) / 2, (e.LonMin + e.LonMax) / 2
}

type Dataset struct {
	times  []time.Time
	levels int
	lat    []float64
	lon    []float64
	vars   map[string]*Variable
}

type Options struct {
	Times  []time.Time
	Levels int
	Lat    []float64
	Lon    []float64
}

// New validates the shared extents and takes ownership of the variables.
func New(opts Options, vars ...*Variable) (*Dataset, error) {
	if len(opts.Times) == 0 {
		return nil, fmt.Errorf("dataset has no time steps")
	}
	if opts.Levels <= 0 {
		return nil, fmt.Errorf("dataset has no vertical levels")
	}
	if len(opts.Lat) < 2 || len(opts.Lon) < 2 {
		return nil, fmt.Errorf("dataset grid too small: %d lat x %d lon", len(opts.Lat), len(opts.Lon))
	}
	if !monotonic(opts.Lat) || !monotonic(opts.Lon) {
		return nil, fmt.Errorf("lat/lon coordinates must be strictly monotonic")
	}
	for i := 1; i < len(opts.Times); i++ {
		if !opts.Times[i].After(opts.Times[i-1]) {
			return nil, fmt.Errorf("time axis not increasing at index %d", i)
		}
	}

	d := &Dataset{
		times:  opts.Times,
		levels: opts.Levels,
		lat:    opts.Lat,
		lon:    opts.Lon,
		vars:   make(map[string]*Variable, len(vars)),
	}

	want := len(opts.Times) * opts.Levels * len(opts.Lat) * len(opts.Lon)
	for _, v := range vars {
		if len(v.Data) != want {
			return nil, fmt.Errorf("variable %q has %d values, want %d", v.Name, len(v.Data), want)
		}
		if _, dup := d.vars[v.Name]; dup {
			return nil, fmt.Errorf("variable %q defined twice", v.Name)
		}
		d.vars[v.Name] = v
	}

	return d, nil
}

// Coordinates returns the 1-D coordinate array for "lat" or "lon".
func (d *Dataset) Coordinates(name string) ([]float64, error) {
	switch name {
	case Lat:
		return d.lat, nil
	case Lon:
		return d.lon, nil
	}
	return nil, fmt.Errorf("coordinate %q: %w", name, common.ErrNotFound)
}

// Slice returns the (Y, X) field of variable at the given time and level.
// The returned Values alias the dataset and must not be modified.
func (d *Dataset) Slice(variable string, timeIndex, levelIndex int) (Field, error) {
	v, ok := d.vars[variable]
	if !ok {
		return Field{}, fmt.Errorf("variable %q: %w", variable, common.ErrNotFound)
	}
	if timeIndex < 0 || timeIndex >= len(d.times) {
		return Field{}, fmt.Errorf("time index %d not in [0, %d): %w", timeIndex, len(d.times), common.ErrOutOfRange)
	}
	if levelIndex < 0 || levelIndex >= d.levels {
		return Field{}, fmt.Errorf("level index %d not in [0, %d): %w", levelIndex, d.levels, common.ErrOutOfRange)
	}

	ny, nx := len(d.lat), len(d.lon)
	plane := ny * nx
	start := (timeIndex*d.levels + levelIndex) * plane

	return Field{Rows: ny, Cols: nx, Values: v.Data[start : start+plane : start+plane]}, nil
}

func (d *Dataset) Times() []time.Time {
	return d.times
}

func (d *Dataset) NumTimes() int {
	return len(d.times)
}

func (d *Dataset) Levels() int {
	return d.levels
}

func (d *Dataset) Variables() []string {
	names := make([]string, 0, len(d.vars))
	for name := range d.vars {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

func (d *Dataset) Units(variable string) string {
	if v, ok := d.vars[variable]; ok {
		return v.Units
	}
	return ""
}

func (d *Dataset) Extent() Extent {
	return Extent{
		LonMin: min(d.lon[0], d.lon[len(d.lon)-1]),
		LonMax: max(d.lon[0], d.lon[len(d.lon)-1]),
		LatMin: min(d.lat[0], d.lat[len(d.lat)-1]),
		LatMax: max(d.lat[0], d.lat[len(d.lat)-1]),
	}
}

func monotonic(xs []float64) bool {
	up := xs[1] > xs[0]
	for i := 1; i < len(xs); i++ {
		if up && !(xs[i] > xs[i-1]) {
			return false
		}
		if !up && !(xs[i] < xs[i-1]) {
			return false
		}
	}
	return true
}
