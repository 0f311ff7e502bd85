// Package render turns dataset fields into map frames and animations.
package render

import (
	"bytes"
	"errors"
	"fmt"
	"image"
	"image/color"
	"image/draw"
	"image/png"
	"math"

	"hstin/isobar/common"
	"hstin/isobar/models/base"
	"hstin/isobar/models/grid"
)

const (
	FrameDPI     = 150
	AnimationDPI = 120

	DefaultWidth     = 13.0
	DefaultHeight    = 8.0
	DefaultWatermark = "WRF Indonesia Weather Visualization"

	QuiverStride = 5
	QuiverScale  = 700
	QuiverWidth  = 0.0025

	FillAlpha   = 0.8
	QuiverAlpha = 0.7

	titleSize     = 12
	tickSize      = 10
	labelSize     = 10
	watermarkSize = 8
	trimPad       = 0.1 // inches
)

// Options configures a Renderer. An empty ReferenceDate means the date of
// the first dataset timestamp. Width and Height are the figure size in
// inches; Workers bounds concurrent frame renders inside one animation.
type Options struct {
	Basemap       *Basemap
	ReferenceDate string
	Watermark     string
	Width         float64
	Height        float64
	Workers       int
}

// Renderer composites frames. It holds no per-request state, so one
// Renderer serves any number of concurrent requests.
type Renderer struct {
	opts Options
}

func NewRenderer(opts Options) *Renderer {
	if opts.Basemap == nil {
		opts.Basemap = EmptyBasemap()
	}
	if opts.Watermark == "" {
		opts.Watermark = DefaultWatermark
	}
	if opts.Width <= 0 {
		opts.Width = DefaultWidth
	}
	if opts.Height <= 0 {
		opts.Height = DefaultHeight
	}
	if opts.Workers <= 0 {
		opts.Workers = 1
	}
	return &Renderer{opts: opts}
}

type FrameRequest struct {
	Parameter   string
	TimeIndex   int
	IncludeWind bool
}

// Frame is one composed map.
type Frame struct {
	Image    *image.RGBA
	Title    string
	Legend   string
	Colormap common.Colormap
	Levels   []float64
	Glyphs   int // wind arrows drawn, zero without an overlay
}

// wantsOverlay reports whether wind arrows go on top of the field. The
// wind magnitude field always carries them.
func wantsOverlay(p common.ParameterOptions, includeWind bool) bool {
	return includeWind || p.Derived()
}

// Frame renders req at dpi onto a fresh canvas. Lookup failures keep their
// common.ErrNotFound / common.ErrOutOfRange kind; drawing failures are
// reported as common.ErrRender.
func (r *Renderer) Frame(ds base.Accessor, req FrameRequest, dpi float64) (*Frame, error) {
	res, err := Resolve(ds, req.Parameter, req.TimeIndex)
	if err != nil {
		return nil, err
	}

	var u, v grid.Field
	overlay := wantsOverlay(res.Parameter, req.IncludeWind)
	if overlay {
		u, v, err = windComponents(ds, common.WindMagnitude{U: common.WindU, V: common.WindV}, req.TimeIndex)
		if err != nil {
			return nil, err
		}
	}

	lat, err := ds.Coordinates(grid.Lat)
	if err != nil {
		return nil, err
	}
	lon, err := ds.Coordinates(grid.Lon)
	if err != nil {
		return nil, err
	}

	frame, err := r.compose(ds, res, lat, lon, u, v, overlay, dpi)
	if err != nil {
		if errors.Is(err, common.ErrRender) {
			return nil, err
		}
		return nil, fmt.Errorf("%w: %s at %d: %w", common.ErrRender, req.Parameter, req.TimeIndex, err)
	}
	return frame, nil
}

func (r *Renderer) compose(ds base.Accessor, res Resolved, lat, lon []float64, u, v grid.Field, overlay bool, dpi float64) (*Frame, error) {
	extent := ds.Extent()
	aspect := (extent.LonMax - extent.LonMin) / (extent.LatMax - extent.LatMin)
	l := newLayout(r.opts.Width, r.opts.Height, dpi, aspect)

	img := image.NewRGBA(l.figure)
	fill(img, img.Bounds(), white)

	ax := image.NewRGBA(image.Rect(0, 0, l.axes.Dx(), l.axes.Dy()))
	if err := r.opts.Basemap.Draw(ax, extent, l.pt(1)); err != nil {
		return nil, err
	}

	levels := Levels(res.Field)
	colors := BandColors(res.Colormap(), max(len(levels)-1, 0))
	fillContours(ax, res.Field, lat, lon, extent, levels, colors, FillAlpha)

	frame := &Frame{
		Title:    r.title(ds, res),
		Legend:   res.Legend(),
		Colormap: res.Colormap(),
		Levels:   levels,
	}

	if overlay {
		q := quiver{
			stride: QuiverStride,
			scale:  QuiverScale,
			width:  QuiverWidth,
			color:  glyphColor(res.Parameter),
		}
		proj := projection{extent: extent, w: float64(ax.Bounds().Dx()), h: float64(ax.Bounds().Dy())}
		n, err := q.draw(ax, proj, lat, lon, u.Values, v.Values)
		if err != nil {
			return nil, err
		}
		frame.Glyphs = n
	}

	draw.Draw(img, l.axes, ax, image.Point{}, draw.Src)

	gc, err := newContext(img)
	if err != nil {
		return nil, err
	}
	strokeRect(gc, l.axes.Inset(-1), l.pt(0.8), black)

	if err := r.captions(img, l, frame, colors); err != nil {
		return nil, err
	}

	frame.Image = img
	return frame, nil
}

// glyphColor keeps arrows readable: white over the dark wind field, black
// elsewhere.
func glyphColor(p common.ParameterOptions) color.NRGBA {
	c := black
	if p.Derived() {
		c = white
	}
	c.A = uint8(math.Round(QuiverAlpha * 255))
	return c
}

func (r *Renderer) captions(img *image.RGBA, l layout, frame *Frame, colors []color.NRGBA) error {
	title, err := newText(titleSize, l.dpi)
	if err != nil {
		return err
	}
	defer title.Close()
	ticks, err := newText(tickSize, l.dpi)
	if err != nil {
		return err
	}
	defer ticks.Close()
	label, err := newText(labelSize, l.dpi)
	if err != nil {
		return err
	}
	defer label.Close()
	mark, err := newText(watermarkSize, l.dpi)
	if err != nil {
		return err
	}
	defer mark.Close()

	cx := (l.axes.Min.X + l.axes.Max.X) / 2
	title.drawCentered(img, frame.Title, cx, l.axes.Min.Y-int(l.pt(6)), black)

	mx := int(0.01 * float64(l.figure.Dx()))
	my := l.figure.Max.Y - int(0.01*float64(l.figure.Dy()))
	mark.draw(img, r.opts.Watermark, mx, my-(mark.height()-mark.ascent()), black)

	return drawLegend(img, l, frame.Levels, colors, FillAlpha, frame.Legend, ticks, label)
}

func (r *Renderer) title(ds base.Accessor, res Resolved) string {
	times := ds.Times()
	date := r.opts.ReferenceDate
	if date == "" {
		date = common.DateLabel(times[0])
	}
	return fmt.Sprintf("%s - %s %s", res.Label(), date, common.HourLabel(times[res.TimeIndex]))
}

// StaticPNG renders a single frame at FrameDPI, trimmed to its content.
func (r *Renderer) StaticPNG(ds base.Accessor, req FrameRequest) ([]byte, error) {
	frame, err := r.Frame(ds, req, FrameDPI)
	if err != nil {
		return nil, err
	}

	img := trim(frame.Image, white, int(math.Round(trimPad*FrameDPI)))
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		return nil, fmt.Errorf("%w: encode png: %w", common.ErrRender, err)
	}
	return buf.Bytes(), nil
}
