// Package wrf loads WRF-derived NetCDF output into a grid.Dataset.
package wrf

import (
	"fmt"
	"math"
	"reflect"
	"strings"
	"time"

	"github.com/batchatco/go-native-netcdf/netcdf"
	"github.com/batchatco/go-native-netcdf/netcdf/api"

	. "hstin/isobar/helper"
	"hstin/isobar/models/grid"
)

var (
	latNames  = []string{"lat", "latitude", "XLAT"}
	lonNames  = []string{"lon", "longitude", "XLONG"}
	timeNames = []string{"time", "Time", "XTIME"}
)

type Options struct {
	Path      string
	Variables []string
}

// Load reads the coordinates, the time axis and every requested variable.
// Variables may be 4-D [time, level, lat, lon] or 3-D [time, lat, lon]; the
// dataset keeps the smallest level count shared by all of them.
func Load(opts Options) (*grid.Dataset, error) {
	started := time.Now()

	nc, err := netcdf.Open(opts.Path)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", opts.Path, err)
	}
	defer nc.Close()

	lat, err := coordinate(nc, latNames, 0)
	if err != nil {
		return nil, err
	}
	lon, err := coordinate(nc, lonNames, 1)
	if err != nil {
		return nil, err
	}
	times, err := timeAxis(nc)
	if err != nil {
		return nil, err
	}

	plane := len(lat) * len(lon)
	arrays := make([]array, 0, len(opts.Variables))
	levels := math.MaxInt

	for _, name := range opts.Variables {
		a, err := readArray(nc, name)
		if err != nil {
			return nil, err
		}

		switch len(a.shape) {
		case 3:
			a.shape = []int{a.shape[0], 1, a.shape[1], a.shape[2]}
		case 4:
		default:
			return nil, fmt.Errorf("variable %q has %d dimensions, want 3 or 4", name, len(a.shape))
		}
		if a.shape[0] != len(times) || a.shape[2] != len(lat) || a.shape[3] != len(lon) {
			return nil, fmt.Errorf("variable %q has shape %v, want [%d _ %d %d]", name, a.shape, len(times), len(lat), len(lon))
		}

		levels = min(levels, a.shape[1])
		arrays = append(arrays, a)
	}
	if len(arrays) == 0 {
		levels = 1
	}

	vars := make([]*grid.Variable, 0, len(arrays))
	for _, a := range arrays {
		vars = append(vars, &grid.Variable{
			Name:  a.name,
			Units: a.units,
			Data:  truncateLevels(a.values, len(times), a.shape[1], levels, plane),
		})
	}

	ds, err := grid.New(grid.Options{Times: times, Levels: levels, Lat: lat, Lon: lon}, vars...)
	if err != nil {
		return nil, err
	}

	Log.Info().
		Str("path", opts.Path).
		Int("times", len(times)).
		Int("levels", levels).
		Int("lat", len(lat)).
		Int("lon", len(lon)).
		Strs("variables", ds.Variables()).
		Dur("took", time.Since(started)).
		Msg("dataset loaded")

	return ds, nil
}

type array struct {
	name   string
	units  string
	shape  []int
	values []float64
}

func readArray(nc api.Group, name string) (array, error) {
	v, err := nc.GetVariable(name)
	if err != nil {
		return array{}, fmt.Errorf("variable %q: %w", name, err)
	}

	values, shape, err := flatten(v.Values)
	if err != nil {
		return array{}, fmt.Errorf("variable %q: %w", name, err)
	}

	if fill, ok := fillValue(v.Attributes); ok {
		for i, x := range values {
			if x == fill {
				values[i] = math.NaN()
			}
		}
	}

	units, _ := stringAttr(v.Attributes, "units")
	return array{name: name, units: units, shape: shape, values: values}, nil
}

// coordinate finds the first matching coordinate variable. Curvilinear
// (2-D or 3-D) coordinates are reduced along axis: 0 walks rows (latitude),
// 1 walks columns (longitude).
func coordinate(nc api.Group, names []string, axis int) ([]float64, error) {
	for _, name := range names {
		v, err := nc.GetVariable(name)
		if err != nil {
			continue
		}
		values, shape, err := flatten(v.Values)
		if err != nil {
			return nil, fmt.Errorf("coordinate %q: %w", name, err)
		}
		if len(shape) == 1 {
			return values, nil
		}

		ny, nx := shape[len(shape)-2], shape[len(shape)-1]
		if axis == 0 {
			out := make([]float64, ny)
			for y := range out {
				out[y] = values[y*nx]
			}
			return out, nil
		}
		return append([]float64(nil), values[:nx]...), nil
	}
	return nil, fmt.Errorf("no coordinate variable among %v", names)
}

func timeAxis(nc api.Group) ([]time.Time, error) {
	for _, name := range timeNames {
		v, err := nc.GetVariable(name)
		if err != nil {
			continue
		}
		values, _, err := flatten(v.Values)
		if err != nil {
			return nil, fmt.Errorf("time variable %q: %w", name, err)
		}
		units, ok := stringAttr(v.Attributes, "units")
		if !ok {
			return nil, fmt.Errorf("time variable %q has no units attribute", name)
		}
		return DecodeTimes(values, units)
	}
	return nil, fmt.Errorf("no time variable among %v", timeNames)
}

var cfUnits = map[string]time.Duration{
	"seconds": time.Second,
	"second":  time.Second,
	"minutes": time.Minute,
	"minute":  time.Minute,
	"hours":   time.Hour,
	"hour":    time.Hour,
	"days":    24 * time.Hour,
	"day":     24 * time.Hour,
}

var cfLayouts = []string{
	"2006-01-02 15:04:05",
	"2006-01-02T15:04:05",
	"2006-01-02 15:04",
	"2006-01-02",
}

// DecodeTimes converts CF "<unit> since <epoch>" offsets to UTC timestamps.
func DecodeTimes(values []float64, units string) ([]time.Time, error) {
	unit, epoch, ok := strings.Cut(strings.TrimSpace(units), " since ")
	if !ok {
		return nil, fmt.Errorf("time units %q not in '<unit> since <date>' form", units)
	}
	step, ok := cfUnits[strings.ToLower(unit)]
	if !ok {
		return nil, fmt.Errorf("unsupported time unit %q", unit)
	}

	epoch = strings.TrimSpace(epoch)
	epoch = strings.TrimSuffix(epoch, " UTC")
	epoch = strings.TrimSuffix(epoch, "Z")
	epoch = strings.TrimSuffix(epoch, "+00:00")

	var base time.Time
	var err error
	for _, layout := range cfLayouts {
		if base, err = time.ParseInLocation(layout, epoch, time.UTC); err == nil {
			break
		}
	}
	if err != nil {
		return nil, fmt.Errorf("time epoch %q: %w", epoch, err)
	}

	out := make([]time.Time, len(values))
	for i, v := range values {
		out[i] = base.Add(time.Duration(v * float64(step)))
	}
	return out, nil
}

func truncateLevels(values []float64, steps, have, keep, plane int) []float64 {
	if have == keep {
		return values
	}
	out := make([]float64, 0, steps*keep*plane)
	for t := 0; t < steps; t++ {
		start := t * have * plane
		out = append(out, values[start:start+keep*plane]...)
	}
	return out
}

// flatten walks the nested slices go-native-netcdf hands back and returns
// row-major values plus the shape.
func flatten(v any) ([]float64, []int, error) {
	rv := reflect.ValueOf(v)
	if rv.Kind() != reflect.Slice {
		x, err := number(rv)
		if err != nil {
			return nil, nil, err
		}
		return []float64{x}, nil, nil
	}

	var shape []int
	for cur := rv; cur.Kind() == reflect.Slice; {
		shape = append(shape, cur.Len())
		if cur.Len() == 0 {
			break
		}
		cur = cur.Index(0)
	}

	total := 1
	for _, n := range shape {
		total *= n
	}
	out := make([]float64, 0, total)

	var walk func(reflect.Value, int) error
	walk = func(cur reflect.Value, depth int) error {
		if depth == len(shape) {
			x, err := number(cur)
			if err != nil {
				return err
			}
			out = append(out, x)
			return nil
		}
		if cur.Kind() != reflect.Slice || cur.Len() != shape[depth] {
			return fmt.Errorf("ragged array at depth %d", depth)
		}
		for i := 0; i < cur.Len(); i++ {
			if err := walk(cur.Index(i), depth+1); err != nil {
				return err
			}
		}
		return nil
	}
	if err := walk(rv, 0); err != nil {
		return nil, nil, err
	}
	return out, shape, nil
}

func number(v reflect.Value) (float64, error) {
	switch v.Kind() {
	case reflect.Float32, reflect.Float64:
		return v.Float(), nil
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		return float64(v.Int()), nil
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		return float64(v.Uint()), nil
	}
	return 0, fmt.Errorf("non-numeric value of kind %s", v.Kind())
}

func fillValue(attrs api.AttributeMap) (float64, bool) {
	if attrs == nil {
		return 0, false
	}
	for _, key := range []string{"_FillValue", "missing_value"} {
		raw, ok := attrs.Get(key)
		if !ok {
			continue
		}
		values, _, err := flatten(raw)
		if err != nil || len(values) == 0 {
			continue
		}
		return values[0], true
	}
	return 0, false
}

func stringAttr(attrs api.AttributeMap, key string) (string, bool) {
	if attrs == nil {
		return "", false
	}
	raw, ok := attrs.Get(key)
	if !ok {
		return "", false
	}
	s, ok := raw.(string)
	return s, ok
}
