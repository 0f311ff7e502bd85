// Package artifact keeps rendered files on disk: one-shot transient files
// for download responses and persisted, shareable maps under a public
// directory.
package artifact

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strconv"
	"sync/atomic"
	"time"

	"github.com/jonboulle/clockwork"

	. "hstin/isobar/helper"
)

// URLPrefix is where the HTTP server exposes the shared directory.
const URLPrefix = "/static/"

// DefaultScratchTTL is how long an unreleased transient file may linger.
const DefaultScratchTTL = 10 * time.Minute

// createAttempts bounds retries when a freshly minted name already exists.
const createAttempts = 8

// Policy limits how much the shared directory keeps. Zero values disable
// the corresponding limit.
type Policy struct {
	TTL        time.Duration
	MaxEntries int
	ScratchTTL time.Duration
}

type Options struct {
	Dir        string
	ScratchDir string
	Clock      clockwork.Clock
	Policy     Policy
	Metrics    *Metrics
}

type Store struct {
	dir     string
	scratch string
	clock   clockwork.Clock
	policy  Policy
	metrics *Metrics
	last    atomic.Int64
}

// New creates both directories if needed. An empty ScratchDir means a
// "scratch" directory next to the shared files; it is never served.
func New(opts Options) (*Store, error) {
	if opts.Dir == "" {
		return nil, errors.New("artifact directory is required")
	}
	if opts.ScratchDir == "" {
		opts.ScratchDir = filepath.Join(filepath.Dir(filepath.Clean(opts.Dir)), "scratch")
	}
	if opts.Clock == nil {
		opts.Clock = clockwork.NewRealClock()
	}
	if opts.Policy.ScratchTTL <= 0 {
		opts.Policy.ScratchTTL = DefaultScratchTTL
	}

	for _, dir := range []string{opts.Dir, opts.ScratchDir} {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("create artifact directory: %w", err)
		}
	}

	return &Store{
		dir:     opts.Dir,
		scratch: opts.ScratchDir,
		clock:   opts.Clock,
		policy:  opts.Policy,
		metrics: opts.Metrics,
	}, nil
}

func (s *Store) Dir() string {
	return s.dir
}

// token returns a nanosecond timestamp strictly greater than every token
// handed out before by this store.
func (s *Store) token() int64 {
	now := s.clock.Now().UnixNano()
	for {
		last := s.last.Load()
		next := max(now, last+1)
		if s.last.CompareAndSwap(last, next) {
			return next
		}
	}
}

var shareName = regexp.MustCompile(`^(.+)_(\d+)_(\d+)\.png$`)

// Name builds the file name of a shared map.
func Name(parameter string, timeIndex int, token int64) string {
	return fmt.Sprintf("%s_%d_%d.png", parameter, timeIndex, token)
}

// parseToken extracts the creation token from a shared map name.
func parseToken(name string) (int64, bool) {
	m := shareName.FindStringSubmatch(name)
	if m == nil {
		return 0, false
	}
	token, err := strconv.ParseInt(m[3], 10, 64)
	if err != nil {
		return 0, false
	}
	return token, true
}

// Share persists data under a fresh, never reused name and returns its
// public URL. An existing file is never overwritten.
func (s *Store) Share(parameter string, timeIndex int, data []byte) (string, error) {
	for attempt := 0; attempt < createAttempts; attempt++ {
		name := Name(parameter, timeIndex, s.token())
		err := writeExclusive(filepath.Join(s.dir, name), data)
		if errors.Is(err, fs.ErrExist) {
			continue
		}
		if err != nil {
			return "", err
		}

		if s.metrics != nil {
			s.metrics.ArtifactsStored.Inc()
		}
		Log.Info().Str("artifact", name).Int("bytes", len(data)).Msg("shared map stored")
		return URLPrefix + name, nil
	}
	return "", fmt.Errorf("no free artifact name for %s after %d attempts", parameter, createAttempts)
}

// Handle is a transient file waiting to be sent.
type Handle struct {
	Path string
	Name string
}

// Release removes the file. Releasing twice is harmless.
func (h *Handle) Release() error {
	if err := os.Remove(h.Path); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return err
	}
	return nil
}

// Transient writes data to the scratch directory. name is the download name
// the client sees; the file on disk gets a unique prefix.
func (s *Store) Transient(name string, data []byte) (*Handle, error) {
	for attempt := 0; attempt < createAttempts; attempt++ {
		path := filepath.Join(s.scratch, fmt.Sprintf("%d_%s", s.token(), name))
		err := writeExclusive(path, data)
		if errors.Is(err, fs.ErrExist) {
			continue
		}
		if err != nil {
			return nil, err
		}
		return &Handle{Path: path, Name: name}, nil
	}
	return nil, fmt.Errorf("no free scratch name for %s after %d attempts", name, createAttempts)
}

func writeExclusive(path string, data []byte) error {
	f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o644)
	if err != nil {
		return err
	}
	if _, err := f.Write(data); err != nil {
		f.Close()
		os.Remove(path)
		return fmt.Errorf("write %s: %w", filepath.Base(path), err)
	}
	if err := f.Close(); err != nil {
		os.Remove(path)
		return fmt.Errorf("close %s: %w", filepath.Base(path), err)
	}
	return nil
}

type entry struct {
	path  string
	token int64
}

// Sweep applies the retention policy: shared maps older than TTL go first,
// then the oldest ones beyond MaxEntries, then stale scratch files. It
// returns the number of files removed.
func (s *Store) Sweep() (int, error) {
	now := s.clock.Now().UnixNano()

	shared, err := list(s.dir, parseToken)
	if err != nil {
		return 0, err
	}
	sort.Slice(shared, func(i, j int) bool { return shared[i].token < shared[j].token })

	var doomed []entry
	keep := shared[:0]
	for _, e := range shared {
		if s.policy.TTL > 0 && time.Duration(now-e.token) > s.policy.TTL {
			doomed = append(doomed, e)
			continue
		}
		keep = append(keep, e)
	}
	if s.policy.MaxEntries > 0 && len(keep) > s.policy.MaxEntries {
		over := len(keep) - s.policy.MaxEntries
		doomed = append(doomed, keep[:over]...)
	}

	scratch, err := list(s.scratch, scratchToken)
	if err != nil {
		return 0, err
	}
	for _, e := range scratch {
		if time.Duration(now-e.token) > s.policy.ScratchTTL {
			doomed = append(doomed, e)
		}
	}

	removed := 0
	var errs []error
	for _, e := range doomed {
		if err := os.Remove(e.path); err != nil && !errors.Is(err, fs.ErrNotExist) {
			errs = append(errs, err)
			continue
		}
		removed++
	}

	if s.metrics != nil {
		s.metrics.ArtifactsSwept.Add(float64(removed))
	}
	return removed, errors.Join(errs...)
}

func scratchToken(name string) (int64, bool) {
	i := 0
	for i < len(name) && name[i] >= '0' && name[i] <= '9' {
		i++
	}
	if i == 0 || i >= len(name) || name[i] != '_' {
		return 0, false
	}
	token, err := strconv.ParseInt(name[:i], 10, 64)
	return token, err == nil
}

func list(dir string, parse func(string) (int64, bool)) ([]entry, error) {
	items, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("list %s: %w", dir, err)
	}
	out := make([]entry, 0, len(items))
	for _, item := range items {
		if item.IsDir() {
			continue
		}
		token, ok := parse(item.Name())
		if !ok {
			continue
		}
		out = append(out, entry{path: filepath.Join(dir, item.Name()), token: token})
	}
	return out, nil
}

// Run sweeps every interval until ctx ends.
func (s *Store) Run(ctx context.Context, interval time.Duration) {
	ticker := s.clock.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.Chan():
			n, err := s.Sweep()
			if err != nil {
				Log.Error().Err(err).Msg("artifact sweep failed")
				continue
			}
			if n > 0 {
				Log.Info().Int("removed", n).Msg("artifact sweep")
			}
		}
	}
}
