package base

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"

	"hstin/isobar/common"
)

func TestOpen_UnsupportedExtension(t *testing.T) {
	_, err := Open("dataset.csv", nil)
	assert.ErrorIs(t, err, common.ErrStartup)
}

func TestOpen_MissingFileIsStartupFailure(t *testing.T) {
	_, err := Open(filepath.Join(t.TempDir(), "missing.nc"), common.RequiredVariables())
	assert.ErrorIs(t, err, common.ErrStartup)
}
