package common

import (
	"fmt"
	"sort"
)

type Colormap int

const (
	VIRIDIS Colormap = iota
	BLUES
)

func (c Colormap) String() string {
	switch c {
	case BLUES:
		return "Blues"
	default:
		return "viridis"
	}
}

// Source says where a parameter's values come from. The set of
// implementations is closed: RawVariable and WindMagnitude.
type Source interface {
	source()
}

// RawVariable is backed directly by one dataset variable.
type RawVariable struct {
	Variable string
}

// WindMagnitude is the Euclidean norm of two wind components.
type WindMagnitude struct {
	U string
	V string
}

func (RawVariable) source()   {}
func (WindMagnitude) source() {}

type ParameterOptions struct {
	Key         string
	DisplayName string
	Unit        string
	Colormap    Colormap
	Source      Source
}

func (p ParameterOptions) Derived() bool {
	_, ok := p.Source.(WindMagnitude)
	return ok
}

const (
	WindU      = "u10"
	WindV      = "v10"
	WindVector = "wind_vector"
)

var Parameters map[string]ParameterOptions = map[string]ParameterOptions{
	"rain":        {Key: "rain", DisplayName: "Curah Hujan", Unit: "mm", Colormap: BLUES, Source: RawVariable{Variable: "rain"}},
	"pm25":        {Key: "pm25", DisplayName: "PM2.5", Unit: "µg/m³", Colormap: VIRIDIS, Source: RawVariable{Variable: "pm25"}},
	"no2":         {Key: "no2", DisplayName: "NO₂", Unit: "ppm", Colormap: VIRIDIS, Source: RawVariable{Variable: "no2"}},
	"o3":          {Key: "o3", DisplayName: "O₃", Unit: "ppm", Colormap: VIRIDIS, Source: RawVariable{Variable: "o3"}},
	"u10":         {Key: "u10", DisplayName: "U10 (Angin Barat-Timur)", Unit: "m/s", Colormap: VIRIDIS, Source: RawVariable{Variable: WindU}},
	"v10":         {Key: "v10", DisplayName: "V10 (Angin Utara-Selatan)", Unit: "m/s", Colormap: VIRIDIS, Source: RawVariable{Variable: WindV}},
	"wind_vector": {Key: "wind_vector", DisplayName: "Vektor Angin", Unit: "m/s", Colormap: VIRIDIS, Source: WindMagnitude{U: WindU, V: WindV}},
}

// LookupParameter fails with ErrNotFound for keys outside the catalog, so no
// label is ever produced for a parameter that cannot be resolved.
func LookupParameter(key string) (ParameterOptions, error) {
	p, ok := Parameters[key]
	if !ok {
		return ParameterOptions{}, fmt.Errorf("parameter %q: %w", key, ErrNotFound)
	}
	return p, nil
}

// ParameterKeys lists the catalog in a stable order.
func ParameterKeys() []string {
	keys := make([]string, 0, len(Parameters))
	for k := range Parameters {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// RequiredVariables returns every dataset variable some parameter reads.
func RequiredVariables() []string {
	seen := make(map[string]struct{})
	for _, p := range Parameters {
		switch s := p.Source.(type) {
		case RawVariable:
			seen[s.Variable] = struct{}{}
		case WindMagnitude:
			seen[s.U] = struct{}{}
			seen[s.V] = struct{}{}
		}
	}
	vars := make([]string, 0, len(seen))
	for v := range seen {
		vars = append(vars, v)
	}
	sort.Strings(vars)
	return vars
}
