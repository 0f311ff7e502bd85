package artifact

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"hstin/isobar/helper"
)

var epoch = time.Date(2025, 3, 4, 12, 0, 0, 0, time.UTC)

func newTestStore(t *testing.T, clock clockwork.Clock, policy Policy) *Store {
	t.Helper()
	root := t.TempDir()
	s, err := New(Options{
		Dir:        filepath.Join(root, "static"),
		ScratchDir: filepath.Join(root, "scratch"),
		Clock:      clock,
		Policy:     policy,
		Metrics:    helper.NewMetricsForTesting(),
	})
	require.NoError(t, err)
	return s
}

func names(t *testing.T, dir string) []string {
	t.Helper()
	items, err := os.ReadDir(dir)
	require.NoError(t, err)
	out := make([]string, 0, len(items))
	for _, item := range items {
		out = append(out, item.Name())
	}
	return out
}

func TestShare_NamesNeverCollide(t *testing.T) {
	// A frozen clock forces every call to rely on the monotonic bump.
	s := newTestStore(t, clockwork.NewFakeClockAt(epoch), Policy{})

	seen := map[string]bool{}
	for i := 0; i < 20; i++ {
		url, err := s.Share("rain", 0, []byte("png"))
		require.NoError(t, err)
		assert.True(t, strings.HasPrefix(url, URLPrefix))
		assert.False(t, seen[url], url)
		seen[url] = true
	}

	assert.Len(t, names(t, s.Dir()), 20)
}

func TestShare_ConcurrentCallsGetDistinctNames(t *testing.T) {
	s := newTestStore(t, clockwork.NewFakeClockAt(epoch), Policy{})

	urls := make(chan string, 16)
	for i := 0; i < 16; i++ {
		go func() {
			url, err := s.Share("wind_vector", 3, []byte("png"))
			assert.NoError(t, err)
			urls <- url
		}()
	}

	seen := map[string]bool{}
	for i := 0; i < 16; i++ {
		url := <-urls
		assert.False(t, seen[url], url)
		seen[url] = true
	}
}

func TestShare_NameFormat(t *testing.T) {
	s := newTestStore(t, clockwork.NewFakeClockAt(epoch), Policy{})

	url, err := s.Share("wind_vector", 7, []byte("data"))
	require.NoError(t, err)

	name := strings.TrimPrefix(url, URLPrefix)
	assert.Equal(t, Name("wind_vector", 7, epoch.UnixNano()), name)

	token, ok := parseToken(name)
	require.True(t, ok)
	assert.Equal(t, epoch.UnixNano(), token)

	raw, err := os.ReadFile(filepath.Join(s.Dir(), name))
	require.NoError(t, err)
	assert.Equal(t, []byte("data"), raw)
}

func TestShare_NeverOverwritesExistingFile(t *testing.T) {
	s := newTestStore(t, clockwork.NewFakeClockAt(epoch), Policy{})

	taken := Name("rain", 0, epoch.UnixNano())
	require.NoError(t, os.WriteFile(filepath.Join(s.Dir(), taken), []byte("old"), 0o644))

	url, err := s.Share("rain", 0, []byte("new"))
	require.NoError(t, err)
	assert.NotEqual(t, URLPrefix+taken, url)

	raw, err := os.ReadFile(filepath.Join(s.Dir(), taken))
	require.NoError(t, err)
	assert.Equal(t, []byte("old"), raw)
}

func TestTransient_ReleaseRemovesFile(t *testing.T) {
	s := newTestStore(t, clockwork.NewFakeClockAt(epoch), Policy{})

	h, err := s.Transient("rain_0.png", []byte("png"))
	require.NoError(t, err)
	assert.Equal(t, "rain_0.png", h.Name)
	assert.FileExists(t, h.Path)
	assert.NotEqual(t, s.Dir(), filepath.Dir(h.Path))

	require.NoError(t, h.Release())
	assert.NoFileExists(t, h.Path)
	assert.NoError(t, h.Release())
}

func TestSweep_RemovesExpiredArtifacts(t *testing.T) {
	clock := clockwork.NewFakeClockAt(epoch)
	s := newTestStore(t, clock, Policy{TTL: time.Hour})

	old, err := s.Share("rain", 0, []byte("a"))
	require.NoError(t, err)
	clock.Advance(45 * time.Minute)
	fresh, err := s.Share("rain", 1, []byte("b"))
	require.NoError(t, err)
	clock.Advance(30 * time.Minute)

	n, err := s.Sweep()
	require.NoError(t, err)
	assert.Equal(t, 1, n)
	assert.Equal(t, []string{strings.TrimPrefix(fresh, URLPrefix)}, names(t, s.Dir()))
	assert.NotContains(t, names(t, s.Dir()), strings.TrimPrefix(old, URLPrefix))
}

func TestSweep_KeepsNewestWithinCapacity(t *testing.T) {
	clock := clockwork.NewFakeClockAt(epoch)
	s := newTestStore(t, clock, Policy{MaxEntries: 2})

	var urls []string
	for i := 0; i < 5; i++ {
		url, err := s.Share("pm25", i, []byte("x"))
		require.NoError(t, err)
		urls = append(urls, strings.TrimPrefix(url, URLPrefix))
		clock.Advance(time.Second)
	}

	n, err := s.Sweep()
	require.NoError(t, err)
	assert.Equal(t, 3, n)
	assert.ElementsMatch(t, urls[3:], names(t, s.Dir()))
}

func TestSweep_IgnoresForeignFiles(t *testing.T) {
	clock := clockwork.NewFakeClockAt(epoch)
	s := newTestStore(t, clock, Policy{TTL: time.Second, MaxEntries: 1})
	require.NoError(t, os.WriteFile(filepath.Join(s.Dir(), "README.txt"), []byte("keep"), 0o644))

	clock.Advance(time.Hour)
	n, err := s.Sweep()
	require.NoError(t, err)
	assert.Zero(t, n)
	assert.Equal(t, []string{"README.txt"}, names(t, s.Dir()))
}

func TestSweep_DropsStaleScratchFiles(t *testing.T) {
	clock := clockwork.NewFakeClockAt(epoch)
	s := newTestStore(t, clock, Policy{})

	h, err := s.Transient("rain_animation.gif", []byte("gif"))
	require.NoError(t, err)

	_, err = s.Sweep()
	require.NoError(t, err)
	assert.FileExists(t, h.Path)

	clock.Advance(DefaultScratchTTL + time.Second)
	n, err := s.Sweep()
	require.NoError(t, err)
	assert.Equal(t, 1, n)
	assert.NoFileExists(t, h.Path)
}

func TestRun_SweepsOnEveryTick(t *testing.T) {
	clock := clockwork.NewFakeClockAt(epoch)
	s := newTestStore(t, clock, Policy{TTL: time.Minute})

	_, err := s.Share("o3", 0, []byte("x"))
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		s.Run(ctx, 5*time.Minute)
		close(done)
	}()

	require.NoError(t, clock.BlockUntilContext(ctx, 1))
	clock.Advance(5 * time.Minute)

	assert.Eventually(t, func() bool {
		items, err := os.ReadDir(s.Dir())
		return err == nil && len(items) == 0
	}, 2*time.Second, 10*time.Millisecond)

	cancel()
	<-done
}
