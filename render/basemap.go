package render

import (
	"errors"
	"fmt"
	"image"
	"image/color"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/ctessum/geom"
	"github.com/ctessum/geom/encoding/shp"
	"github.com/ctessum/geom/index/rtree"
	"github.com/wcharczuk/go-chart/v2/drawing"
	"gopkg.in/yaml.v3"

	. "hstin/isobar/helper"
	"hstin/isobar/models/grid"
)

// LayerStyle configures one base map layer. Widths and dashes are in points.
type LayerStyle struct {
	File   string    `yaml:"file"`
	Fill   string    `yaml:"fill"`
	Stroke string    `yaml:"stroke"`
	Width  float64   `yaml:"width"`
	Dash   []float64 `yaml:"dash"`
}

type Style struct {
	Ocean     LayerStyle `yaml:"ocean"`
	Land      LayerStyle `yaml:"land"`
	Lakes     LayerStyle `yaml:"lakes"`
	Rivers    LayerStyle `yaml:"rivers"`
	Coastline LayerStyle `yaml:"coastline"`
	Borders   LayerStyle `yaml:"borders"`
}

// DefaultStyle reads Natural Earth 1:50m shapefiles and paints them the way
// cartopy's default features look.
func DefaultStyle() Style {
	return Style{
		Ocean:     LayerStyle{File: "ne_50m_ocean.shp", Fill: "#add8e6"},
		Land:      LayerStyle{File: "ne_50m_land.shp", Fill: "#d3d3d3", Stroke: "#000000", Width: 0.5},
		Lakes:     LayerStyle{File: "ne_50m_lakes.shp", Fill: "#add8e6"},
		Rivers:    LayerStyle{File: "ne_50m_rivers_lake_centerlines.shp", Stroke: "#98b7e2", Width: 0.5},
		Coastline: LayerStyle{File: "ne_50m_coastline.shp", Stroke: "#000000", Width: 0.5},
		Borders:   LayerStyle{File: "ne_50m_admin_0_boundary_lines_land.shp", Stroke: "#000000", Width: 0.5, Dash: []float64{1, 1.65}},
	}
}

// LoadStyle overlays the YAML file at path on DefaultStyle.
func LoadStyle(path string) (Style, error) {
	style := DefaultStyle()
	if path == "" {
		return style, nil
	}
	raw, err := os.ReadFile(path)
	if err != nil {
		return style, fmt.Errorf("read base map style: %w", err)
	}
	if err := yaml.Unmarshal(raw, &style); err != nil {
		return style, fmt.Errorf("parse base map style %s: %w", path, err)
	}
	return style, nil
}

func (s Style) layers() []namedLayer {
	return []namedLayer{
		{"ocean", s.Ocean},
		{"land", s.Land},
		{"lakes", s.Lakes},
		{"rivers", s.Rivers},
		{"coastline", s.Coastline},
		{"borders", s.Borders},
	}
}

type namedLayer struct {
	name  string
	style LayerStyle
}

type layer struct {
	name   string
	fill   color.NRGBA
	filled bool
	stroke color.NRGBA
	lined  bool
	width  float64
	dash   []float64
	index  *rtree.Rtree
	count  int
}

// Basemap holds the geographic layers drawn beneath every frame. It is
// read-only after LoadBasemap and safe for concurrent use.
type Basemap struct {
	background color.NRGBA
	layers     []*layer
}

// LoadBasemap reads each layer's shapefile from dir. Layers whose file is
// missing are skipped; the ocean colour still paints the background.
func LoadBasemap(dir string, style Style) (*Basemap, error) {
	bg, ok, err := parseColor(style.Ocean.Fill, 1)
	if err != nil {
		return nil, fmt.Errorf("ocean fill: %w", err)
	}
	if !ok {
		bg = white
	}

	m := &Basemap{background: bg}

	for _, nl := range style.layers() {
		l, err := newLayer(nl.name, nl.style)
		if err != nil {
			return nil, err
		}
		if dir == "" || nl.style.File == "" {
			continue
		}

		path := filepath.Join(dir, nl.style.File)
		if _, err := os.Stat(path); errors.Is(err, fs.ErrNotExist) {
			Log.Warn().Str("layer", nl.name).Str("path", path).Msg("base map layer missing, skipping")
			continue
		}
		if err := l.load(path); err != nil {
			return nil, err
		}

		Log.Debug().Str("layer", nl.name).Int("features", l.count).Msg("base map layer loaded")
		m.layers = append(m.layers, l)
	}

	return m, nil
}

// EmptyBasemap paints only the ocean background.
func EmptyBasemap() *Basemap {
	m, _ := LoadBasemap("", DefaultStyle())
	return m
}

func newLayer(name string, s LayerStyle) (*layer, error) {
	fill, filled, err := parseColor(s.Fill, 1)
	if err != nil {
		return nil, fmt.Errorf("%s fill: %w", name, err)
	}
	stroke, lined, err := parseColor(s.Stroke, 1)
	if err != nil {
		return nil, fmt.Errorf("%s stroke: %w", name, err)
	}
	return &layer{
		name:   name,
		fill:   fill,
		filled: filled,
		stroke: stroke,
		lined:  lined && s.Width > 0,
		width:  s.Width,
		dash:   s.Dash,
		index:  rtree.NewTree(25, 50),
	}, nil
}

func (l *layer) load(path string) error {
	dec, err := shp.NewDecoder(path)
	if err != nil {
		return fmt.Errorf("open %s layer: %w", l.name, err)
	}
	defer dec.Close()

	for {
		g, _, more := dec.DecodeRowFields()
		if !more {
			break
		}
		if g == nil {
			continue
		}
		l.index.Insert(g)
		l.count++
	}
	if err := dec.Error(); err != nil {
		return fmt.Errorf("decode %s layer: %w", l.name, err)
	}
	return nil
}

// projection maps lon/lat onto an axes image of w x h pixels.
type projection struct {
	extent grid.Extent
	w, h   float64
}

func (p projection) xy(lon, lat float64) (float64, float64) {
	x := (lon - p.extent.LonMin) / (p.extent.LonMax - p.extent.LonMin) * p.w
	y := (p.extent.LatMax - lat) / (p.extent.LatMax - p.extent.LatMin) * p.h
	return x, y
}

func (p projection) bounds() *geom.Bounds {
	return &geom.Bounds{
		Min: geom.Point{X: p.extent.LonMin, Y: p.extent.LatMin},
		Max: geom.Point{X: p.extent.LonMax, Y: p.extent.LatMax},
	}
}

// Draw paints the background and every layer intersecting the extent onto
// ax, which covers exactly the axes area.
func (m *Basemap) Draw(ax *image.RGBA, extent grid.Extent, pxPerPt float64) error {
	fill(ax, ax.Bounds(), m.background)

	gc, err := newContext(ax)
	if err != nil {
		return err
	}
	proj := projection{extent: extent, w: float64(ax.Bounds().Dx()), h: float64(ax.Bounds().Dy())}
	box := proj.bounds()

	for _, l := range m.layers {
		for _, item := range l.index.SearchIntersect(box) {
			g, ok := item.(geom.Geom)
			if !ok {
				continue
			}
			l.draw(gc, proj, g, pxPerPt)
		}
	}
	return nil
}

func (l *layer) draw(gc *drawing.RasterGraphicContext, proj projection, g geom.Geom, pxPerPt float64) {
	switch g := g.(type) {
	case geom.Polygonal:
		for _, poly := range g.Polygons() {
			gc.BeginPath()
			for _, ring := range poly {
				for i, pt := range ring {
					x, y := proj.xy(pt.X, pt.Y)
					if i == 0 {
						gc.MoveTo(x, y)
					} else {
						gc.LineTo(x, y)
					}
				}
				gc.Close()
			}
			l.paint(gc, pxPerPt)
		}
	case geom.LineString:
		gc.BeginPath()
		l.trace(gc, proj, g)
		l.paint(gc, pxPerPt)
	case geom.MultiLineString:
		gc.BeginPath()
		for _, line := range g {
			l.trace(gc, proj, line)
		}
		l.paint(gc, pxPerPt)
	}
}

func (l *layer) trace(gc *drawing.RasterGraphicContext, proj projection, line geom.LineString) {
	for i, pt := range line {
		x, y := proj.xy(pt.X, pt.Y)
		if i == 0 {
			gc.MoveTo(x, y)
		} else {
			gc.LineTo(x, y)
		}
	}
}

func (l *layer) paint(gc *drawing.RasterGraphicContext, pxPerPt float64) {
	if l.lined {
		gc.SetStrokeColor(l.stroke)
		gc.SetLineWidth(l.width * pxPerPt)
		if len(l.dash) > 0 {
			dash := make([]float64, len(l.dash))
			for i, d := range l.dash {
				dash[i] = d * l.width * pxPerPt
			}
			gc.SetLineDash(dash, 0)
		} else {
			gc.SetLineDash(nil, 0)
		}
	}

	switch {
	case l.filled && l.lined:
		gc.SetFillColor(l.fill)
		gc.FillStroke()
	case l.filled:
		gc.SetFillColor(l.fill)
		gc.Fill()
	case l.lined:
		gc.Stroke()
	}
}
