package render

import (
	"bytes"
	"context"
	"image/gif"
	"image/png"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"hstin/isobar/common"
	"hstin/isobar/models/grid/gridtest"
)

func newTestRenderer() *Renderer {
	return NewRenderer(Options{Width: 4, Height: 2.5, Workers: 3})
}

func TestFrame_RainUsesPrecipitationLabel(t *testing.T) {
	ds := gridtest.New(3, 11, 21)

	f, err := newTestRenderer().Frame(ds, FrameRequest{Parameter: "rain", TimeIndex: 1}, FrameDPI)
	require.NoError(t, err)

	assert.Equal(t, "Curah Hujan - 04/03/2025 01:00", f.Title)
	assert.Equal(t, "Curah Hujan (mm)", f.Legend)
	assert.Equal(t, common.BLUES, f.Colormap)
	assert.Zero(t, f.Glyphs)
	assert.Equal(t, 600, f.Image.Bounds().Dx())
	assert.Equal(t, 375, f.Image.Bounds().Dy())
}

func TestFrame_WindVectorAlwaysDrawsGlyphs(t *testing.T) {
	ds := gridtest.New(2, 11, 21)

	f, err := newTestRenderer().Frame(ds, FrameRequest{Parameter: common.WindVector, IncludeWind: false}, FrameDPI)
	require.NoError(t, err)

	assert.Greater(t, f.Glyphs, 0)
	assert.Equal(t, common.VIRIDIS, f.Colormap)
}

func TestFrame_IncludeWindOverlaysOtherFields(t *testing.T) {
	ds := gridtest.New(2, 11, 21)
	r := newTestRenderer()

	plain, err := r.Frame(ds, FrameRequest{Parameter: "pm25"}, FrameDPI)
	require.NoError(t, err)
	windy, err := r.Frame(ds, FrameRequest{Parameter: "pm25", IncludeWind: true}, FrameDPI)
	require.NoError(t, err)

	assert.Zero(t, plain.Glyphs)
	assert.Greater(t, windy.Glyphs, 0)
	assert.NotEqual(t, plain.Image.Pix, windy.Image.Pix)
}

func TestFrame_ReferenceDateOverride(t *testing.T) {
	ds := gridtest.New(2, 4, 4)
	r := NewRenderer(Options{Width: 3, Height: 2, ReferenceDate: "01/01/2030"})

	f, err := r.Frame(ds, FrameRequest{Parameter: "o3", TimeIndex: 1}, AnimationDPI)
	require.NoError(t, err)
	assert.Equal(t, "O₃ - 01/01/2030 01:00", f.Title)
}

func TestFrame_RepeatRendersArePixelIdentical(t *testing.T) {
	ds := gridtest.New(2, 11, 21)
	r := newTestRenderer()
	req := FrameRequest{Parameter: "no2", TimeIndex: 1, IncludeWind: true}

	a, err := r.StaticPNG(ds, req)
	require.NoError(t, err)
	b, err := r.StaticPNG(ds, req)
	require.NoError(t, err)
	assert.Equal(t, a, b)
}

func TestFrame_LookupErrorsKeepTheirKind(t *testing.T) {
	ds := gridtest.New(3, 4, 4)
	r := newTestRenderer()

	_, err := r.Frame(ds, FrameRequest{Parameter: "humidity"}, FrameDPI)
	assert.ErrorIs(t, err, common.ErrNotFound)
	assert.NotErrorIs(t, err, common.ErrRender)

	_, err = r.Frame(ds, FrameRequest{Parameter: "rain", TimeIndex: 3}, FrameDPI)
	assert.ErrorIs(t, err, common.ErrOutOfRange)
}

func TestStaticPNG_TrimmedToContent(t *testing.T) {
	ds := gridtest.New(1, 11, 21)

	raw, err := newTestRenderer().StaticPNG(ds, FrameRequest{Parameter: "rain"})
	require.NoError(t, err)

	img, err := png.Decode(bytes.NewReader(raw))
	require.NoError(t, err)
	assert.Less(t, img.Bounds().Dx(), 600)
	assert.Less(t, img.Bounds().Dy(), 375)
	assert.Greater(t, img.Bounds().Dx(), 100)
}

func TestFrames_OnePerTimeStepInOrder(t *testing.T) {
	ds := gridtest.New(5, 6, 6)

	frames, err := newTestRenderer().Frames(context.Background(), ds, "pm25", false)
	require.NoError(t, err)
	require.Len(t, frames, ds.NumTimes())

	labels := common.HourLabels(ds.Times())
	for i, f := range frames {
		assert.Equal(t, "PM2.5 - 04/03/2025 "+labels[i], f.Title)
		assert.Equal(t, frames[0].Image.Bounds(), f.Image.Bounds())
	}
}

func TestAnimate_EncodesLoopingGIF(t *testing.T) {
	ds := gridtest.New(4, 6, 6)

	raw, err := newTestRenderer().Animate(context.Background(), ds, common.WindVector, false)
	require.NoError(t, err)

	anim, err := gif.DecodeAll(bytes.NewReader(raw))
	require.NoError(t, err)
	assert.Len(t, anim.Image, 4)
	assert.Equal(t, []int{30, 30, 30, 30}, anim.Delay)
	assert.Equal(t, 0, anim.LoopCount)
}

func TestAnimate_UnknownParameter(t *testing.T) {
	_, err := newTestRenderer().Animate(context.Background(), gridtest.New(2, 4, 4), "humidity", false)
	assert.ErrorIs(t, err, common.ErrNotFound)
}

func TestAnimate_CancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := newTestRenderer().Animate(ctx, gridtest.New(3, 4, 4), "rain", false)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestLoadStyle_OverridesDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "style.yaml")
	require.NoError(t, os.WriteFile(path, []byte("land:\n  fill: \"#c0c0c0\"\nborders:\n  width: 1\n"), 0o644))

	style, err := LoadStyle(path)
	require.NoError(t, err)

	assert.Equal(t, "#c0c0c0", style.Land.Fill)
	assert.Equal(t, "ne_50m_land.shp", style.Land.File)
	assert.Equal(t, 1.0, style.Borders.Width)
	assert.Equal(t, []float64{1, 1.65}, style.Borders.Dash)
}

func TestLoadBasemap_SkipsMissingLayers(t *testing.T) {
	m, err := LoadBasemap(t.TempDir(), DefaultStyle())
	require.NoError(t, err)
	assert.Empty(t, m.layers)
}

func TestLoadBasemap_RejectsBadColour(t *testing.T) {
	style := DefaultStyle()
	style.Lakes.Fill = "teal"

	_, err := LoadBasemap("", style)
	assert.Error(t, err)
}
