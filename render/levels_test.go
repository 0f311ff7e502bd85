package render

import (
	"image/color"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"

	"hstin/isobar/common"
	"hstin/isobar/models/grid"
)

func TestLevels_CoverFiniteRange(t *testing.T) {
	f := grid.Field{Rows: 1, Cols: 5, Values: []float64{0.3, math.NaN(), 7.9, 3, math.Inf(1)}}

	levels := Levels(f)
	assert.GreaterOrEqual(t, len(levels), 3)
	assert.LessOrEqual(t, levels[0], 0.3)
	assert.GreaterOrEqual(t, levels[len(levels)-1], 7.9)
	for i := 1; i < len(levels); i++ {
		assert.Greater(t, levels[i], levels[i-1])
	}
}

func TestLevels_ConstantField(t *testing.T) {
	f := grid.Field{Rows: 1, Cols: 3, Values: []float64{4, 4, 4}}

	levels := Levels(f)
	assert.GreaterOrEqual(t, len(levels), 2)
	assert.NotEqual(t, -1, band(levels, 4))
}

func TestLevels_NoFiniteValues(t *testing.T) {
	f := grid.Field{Rows: 1, Cols: 2, Values: []float64{math.NaN(), math.NaN()}}
	assert.Nil(t, Levels(f))
}

func TestBand(t *testing.T) {
	levels := []float64{0, 1, 2, 3}

	assert.Equal(t, 0, band(levels, 0))
	assert.Equal(t, 0, band(levels, 0.5))
	assert.Equal(t, 1, band(levels, 1))
	assert.Equal(t, 2, band(levels, 3))
	assert.Equal(t, -1, band(levels, -0.1))
	assert.Equal(t, -1, band(levels, 3.1))
	assert.Equal(t, -1, band(levels, math.NaN()))
}

func TestTickDecimals(t *testing.T) {
	assert.Equal(t, 0, tickDecimals([]float64{0, 5, 10}))
	assert.Equal(t, 1, tickDecimals([]float64{0, 0.5, 1}))
	assert.Equal(t, 2, tickDecimals([]float64{0, 0.25, 0.5}))
}

func TestSample_Endpoints(t *testing.T) {
	assert.Equal(t, color.NRGBA{R: 0x44, G: 0x01, B: 0x54, A: 255}, Sample(common.VIRIDIS, 0))
	assert.Equal(t, color.NRGBA{R: 0xfd, G: 0xe7, B: 0x25, A: 255}, Sample(common.VIRIDIS, 1))
	assert.Equal(t, color.NRGBA{R: 0x08, G: 0x30, B: 0x6b, A: 255}, Sample(common.BLUES, 2))
}

func TestBandColors_DarkenAlongBlues(t *testing.T) {
	colors := BandColors(common.BLUES, 4)
	assert.Len(t, colors, 4)
	for i := 1; i < len(colors); i++ {
		assert.Less(t, int(colors[i].R)+int(colors[i].G), int(colors[i-1].R)+int(colors[i-1].G))
	}
}
