package render

import (
	"fmt"
	"math"

	"hstin/isobar/common"
	"hstin/isobar/models/base"
	"hstin/isobar/models/grid"
)

// SurfaceLevel is the only vertical level the pipeline reads.
const SurfaceLevel = 0

// Resolved is a parameter turned into a plottable field.
type Resolved struct {
	Parameter common.ParameterOptions
	TimeIndex int
	Field     grid.Field
	Unit      string
}

func (r Resolved) Label() string {
	return r.Parameter.DisplayName
}

func (r Resolved) Colormap() common.Colormap {
	return r.Parameter.Colormap
}

// Legend is the colour bar caption, e.g. "Curah Hujan (mm)".
func (r Resolved) Legend() string {
	if r.Unit == "" {
		return r.Label()
	}
	return fmt.Sprintf("%s (%s)", r.Label(), r.Unit)
}

// Resolve looks key up in the catalog and produces its field at timeIndex.
// Unknown keys fail with common.ErrNotFound before anything is read.
func Resolve(ds base.Accessor, key string, timeIndex int) (Resolved, error) {
	p, err := common.LookupParameter(key)
	if err != nil {
		return Resolved{}, err
	}

	var field grid.Field
	switch s := p.Source.(type) {
	case common.RawVariable:
		field, err = ds.Slice(s.Variable, timeIndex, SurfaceLevel)
	case common.WindMagnitude:
		field, err = windMagnitude(ds, s, timeIndex)
	default:
		err = fmt.Errorf("parameter %q has unsupported source %T: %w", key, p.Source, common.ErrNotFound)
	}
	if err != nil {
		return Resolved{}, err
	}

	return Resolved{Parameter: p, TimeIndex: timeIndex, Field: field, Unit: unit(ds, p)}, nil
}

// unit prefers the units attribute stored with the data and falls back to
// the catalog. The wind magnitude takes the units of its u component.
func unit(ds base.Accessor, p common.ParameterOptions) string {
	var variable string
	switch s := p.Source.(type) {
	case common.RawVariable:
		variable = s.Variable
	case common.WindMagnitude:
		variable = s.U
	}
	if u := ds.Units(variable); u != "" {
		return u
	}
	return p.Unit
}

func windMagnitude(ds base.Accessor, s common.WindMagnitude, timeIndex int) (grid.Field, error) {
	u, v, err := windComponents(ds, s, timeIndex)
	if err != nil {
		return grid.Field{}, err
	}

	out := grid.NewField(u.Rows, u.Cols)
	for i := range out.Values {
		out.Values[i] = math.Sqrt(u.Values[i]*u.Values[i] + v.Values[i]*v.Values[i])
	}
	return out, nil
}

func windComponents(ds base.Accessor, s common.WindMagnitude, timeIndex int) (grid.Field, grid.Field, error) {
	u, err := ds.Slice(s.U, timeIndex, SurfaceLevel)
	if err != nil {
		return grid.Field{}, grid.Field{}, err
	}
	v, err := ds.Slice(s.V, timeIndex, SurfaceLevel)
	if err != nil {
		return grid.Field{}, grid.Field{}, err
	}
	if u.Rows != v.Rows || u.Cols != v.Cols {
		return grid.Field{}, grid.Field{}, fmt.Errorf("wind components %s/%s differ in shape", s.U, s.V)
	}
	return u, v, nil
}
