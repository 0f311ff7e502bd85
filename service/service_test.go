package service

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"hstin/isobar/artifact"
	"hstin/isobar/common"
	"hstin/isobar/helper"
	"hstin/isobar/models/grid/gridtest"
	"hstin/isobar/render"
)

func newTestService(t *testing.T, steps int) *Service {
	t.Helper()
	store, err := artifact.New(artifact.Options{
		Dir:        filepath.Join(t.TempDir(), "static"),
		ScratchDir: filepath.Join(t.TempDir(), "scratch"),
		Clock:      clockwork.NewFakeClockAt(time.Date(2025, 3, 4, 12, 0, 0, 0, time.UTC)),
	})
	require.NoError(t, err)

	return New(gridtest.New(steps, 11, 21), Options{
		Renderer: render.NewRenderer(render.Options{Width: 4, Height: 2.5, Workers: 2}),
		Store:    store,
		Metrics:  helper.NewMetricsForTesting(),
	})
}

func TestTimeInfo_FullDay(t *testing.T) {
	info := newTestService(t, 24).TimeInfo()

	require.Len(t, info.Times, 24)
	for i, label := range info.Times {
		assert.Equal(t, fmt.Sprintf("%02d:00", i), label)
	}
	assert.Equal(t, "04/03/2025", info.Date)
	assert.Equal(t, "Asia/Jakarta", info.Timezone)
	assert.Equal(t, "UTC", info.LabelZone)
}

func TestTimeInfo_ReferenceDateOverride(t *testing.T) {
	svc := New(gridtest.New(2, 3, 3), Options{
		Renderer:      render.NewRenderer(render.Options{}),
		ReferenceDate: "01/01/2030",
	})
	assert.Equal(t, "01/01/2030", svc.TimeInfo().Date)
}

func TestParameters_ListsCatalog(t *testing.T) {
	params := newTestService(t, 1).Parameters()

	require.Len(t, params, len(common.Parameters))
	for _, p := range params {
		assert.Equal(t, p.Key == common.WindVector, p.Derived, p.Key)
		if p.Key == "rain" {
			assert.Equal(t, "Curah Hujan", p.Label)
			assert.Equal(t, "Blues", p.Colormap)
		}
	}
}

func TestShareableMap_MatchesStaticImage(t *testing.T) {
	svc := newTestService(t, 3)
	req := render.FrameRequest{Parameter: "rain", TimeIndex: 2, IncludeWind: true}

	static, err := svc.StaticImage(req)
	require.NoError(t, err)
	url, err := svc.ShareableMap(req)
	require.NoError(t, err)

	name := strings.TrimPrefix(url, artifact.URLPrefix)
	assert.True(t, strings.HasPrefix(name, "rain_2_"), name)

	shared, err := os.ReadFile(filepath.Join(svc.store.Dir(), name))
	require.NoError(t, err)
	assert.Equal(t, static, shared)
}

func TestShareableMap_DistinctNames(t *testing.T) {
	svc := newTestService(t, 1)
	req := render.FrameRequest{Parameter: "o3"}

	a, err := svc.ShareableMap(req)
	require.NoError(t, err)
	b, err := svc.ShareableMap(req)
	require.NoError(t, err)
	assert.NotEqual(t, a, b)
}

func TestShareableMap_UnknownParameterStoresNothing(t *testing.T) {
	svc := newTestService(t, 1)

	_, err := svc.ShareableMap(render.FrameRequest{Parameter: "humidity"})
	assert.ErrorIs(t, err, common.ErrNotFound)

	items, err := os.ReadDir(svc.store.Dir())
	require.NoError(t, err)
	assert.Empty(t, items)
}

func TestStaticImage_ErrorKinds(t *testing.T) {
	svc := newTestService(t, 4)

	_, err := svc.StaticImage(render.FrameRequest{Parameter: "humidity"})
	assert.ErrorIs(t, err, common.ErrNotFound)

	_, err = svc.StaticImage(render.FrameRequest{Parameter: "pm25", TimeIndex: 4})
	assert.ErrorIs(t, err, common.ErrOutOfRange)
}

func TestAnimation_RendersEveryStep(t *testing.T) {
	svc := newTestService(t, 3)

	data, err := svc.Animation(context.Background(), common.WindVector, false)
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(string(data), "GIF89a"))
}

func TestStage_ReleaseRemovesFile(t *testing.T) {
	svc := newTestService(t, 1)

	h, err := svc.Stage("rain_0.png", []byte("png"))
	require.NoError(t, err)
	assert.FileExists(t, h.Path)

	require.NoError(t, h.Release())
	assert.NoFileExists(t, h.Path)
}

func TestOutcome(t *testing.T) {
	assert.Equal(t, "success", Outcome(nil))
	assert.Equal(t, "not_found", Outcome(fmt.Errorf("x: %w", common.ErrNotFound)))
	assert.Equal(t, "out_of_range", Outcome(fmt.Errorf("x: %w", common.ErrOutOfRange)))
	assert.Equal(t, "error", Outcome(common.ErrRender))
}
