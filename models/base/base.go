package base

import (
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"hstin/isobar/common"
	"hstin/isobar/models/grid"
	"hstin/isobar/models/wrf"
)

// Accessor is the read-only view the rendering pipeline needs from a dataset.
type Accessor interface {
	Coordinates(name string) ([]float64, error)
	Slice(variable string, timeIndex, levelIndex int) (grid.Field, error)
	Times() []time.Time
	NumTimes() int
	Extent() grid.Extent
	Units(variable string) string
}

var _ Accessor = (*grid.Dataset)(nil)

// Open loads the dataset at path, choosing the reader from its extension.
// Any failure is reported as common.ErrStartup.
func Open(path string, variables []string) (*grid.Dataset, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".nc", ".nc4", ".cdf", ".netcdf", ".h5":
		ds, err := wrf.Load(wrf.Options{Path: path, Variables: variables})
		if err != nil {
			return nil, fmt.Errorf("%w: %w", common.ErrStartup, err)
		}
		return ds, nil
	}
	return nil, fmt.Errorf("%w: unsupported dataset format %q", common.ErrStartup, filepath.Ext(path))
}
