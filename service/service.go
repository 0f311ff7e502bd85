// Package service is the single entry point both transports call. It ties
// the dataset, renderer and artifact store together and records metrics.
package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/zsefvlol/timezonemapper"

	"hstin/isobar/artifact"
	"hstin/isobar/common"
	. "hstin/isobar/helper"
	"hstin/isobar/models/base"
	"hstin/isobar/render"
)

const (
	kindFrame     = "frame"
	kindAnimation = "animation"
	kindShare     = "share"
)

// Options wires a Service. ReferenceDate overrides the date TimeInfo
// reports; it should match the one given to the Renderer.
type Options struct {
	Renderer      *render.Renderer
	Store         *artifact.Store
	Metrics       *Metrics
	ReferenceDate string
}

type Service struct {
	ds       base.Accessor
	renderer *render.Renderer
	store    *artifact.Store
	metrics  *Metrics
	date     string
	timezone string
}

// New takes ownership of nothing: the dataset stays owned by the caller
// and must outlive the Service.
func New(ds base.Accessor, opts Options) *Service {
	if opts.Metrics == nil {
		opts.Metrics = NewMetricsForTesting()
	}
	date := opts.ReferenceDate
	if date == "" {
		date = common.DateLabel(ds.Times()[0])
	}
	lat, lon := ds.Extent().Center()

	opts.Metrics.DatasetSteps.Set(float64(ds.NumTimes()))

	return &Service{
		ds:       ds,
		renderer: opts.Renderer,
		store:    opts.Store,
		metrics:  opts.Metrics,
		date:     date,
		timezone: timezonemapper.LatLngToTimezoneString(lat, lon),
	}
}

// TimeInfo describes the time picker. Times and Date are formatted in
// LabelZone, which is always UTC; Timezone is the IANA zone of the domain
// centre and is informational only.
type TimeInfo struct {
	Times     []string `json:"times"`
	Date      string   `json:"date"`
	Timezone  string   `json:"timezone"`
	LabelZone string   `json:"label_zone"`
}

// TimeInfo lists the dataset's time steps as UTC "HH:00" labels in order.
func (s *Service) TimeInfo() TimeInfo {
	return TimeInfo{
		Times:     common.HourLabels(s.ds.Times()),
		Date:      s.date,
		Timezone:  s.timezone,
		LabelZone: common.LabelZone,
	}
}

type ParameterInfo struct {
	Key      string `json:"key"`
	Label    string `json:"label"`
	Unit     string `json:"unit"`
	Colormap string `json:"colormap"`
	Derived  bool   `json:"derived"`
}

func (s *Service) Parameters() []ParameterInfo {
	keys := common.ParameterKeys()
	out := make([]ParameterInfo, 0, len(keys))
	for _, k := range keys {
		p := common.Parameters[k]
		out = append(out, ParameterInfo{
			Key:      p.Key,
			Label:    p.DisplayName,
			Unit:     p.Unit,
			Colormap: p.Colormap.String(),
			Derived:  p.Derived(),
		})
	}
	return out
}

// StaticImage renders one trimmed PNG frame.
func (s *Service) StaticImage(req render.FrameRequest) ([]byte, error) {
	start := time.Now()
	data, err := s.renderer.StaticPNG(s.ds, req)
	s.observe(kindFrame, start, err, 1)
	if err != nil {
		return nil, err
	}

	Log.Info().Str("parameter", req.Parameter).Int("time_index", req.TimeIndex).Bool("include_wind", req.IncludeWind).Dur("took", time.Since(start)).Msg("static image rendered")
	return data, nil
}

// Animation renders every time step of parameter into one GIF.
func (s *Service) Animation(ctx context.Context, parameter string, includeWind bool) ([]byte, error) {
	start := time.Now()
	data, err := s.renderer.Animate(ctx, s.ds, parameter, includeWind)
	s.observe(kindAnimation, start, err, s.ds.NumTimes())
	if err != nil {
		return nil, err
	}

	Log.Info().Str("parameter", parameter).Int("frames", s.ds.NumTimes()).Bool("include_wind", includeWind).Dur("took", time.Since(start)).Msg("animation rendered")
	return data, nil
}

// ShareableMap renders the same image StaticImage would and persists it,
// returning its public URL.
func (s *Service) ShareableMap(req render.FrameRequest) (string, error) {
	start := time.Now()
	data, err := s.renderer.StaticPNG(s.ds, req)
	if err == nil {
		var url string
		url, err = s.store.Share(req.Parameter, req.TimeIndex, data)
		if err == nil {
			s.observe(kindShare, start, nil, 1)
			return url, nil
		}
		err = fmt.Errorf("%w: %w", common.ErrRender, err)
	}
	s.observe(kindShare, start, err, 1)
	return "", err
}

// Stage writes data to a transient file named name. The caller must
// Release the handle once the response is handed off.
func (s *Service) Stage(name string, data []byte) (*artifact.Handle, error) {
	h, err := s.store.Transient(name, data)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", common.ErrRender, err)
	}
	return h, nil
}

func (s *Service) observe(kind string, start time.Time, err error, frames int) {
	s.metrics.Renders.WithLabelValues(kind, Outcome(err)).Inc()
	s.metrics.RenderDuration.WithLabelValues(kind).Observe(time.Since(start).Seconds())
	if err == nil {
		s.metrics.FramesRendered.Add(float64(frames))
	}
}

// Outcome classifies err for metrics and logs.
func Outcome(err error) string {
	switch {
	case err == nil:
		return "success"
	case errors.Is(err, common.ErrNotFound):
		return "not_found"
	case errors.Is(err, common.ErrOutOfRange):
		return "out_of_range"
	default:
		return "error"
	}
}
