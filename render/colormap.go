package render

import (
	"image/color"
	"math"

	"github.com/lucasb-eyer/go-colorful"

	"hstin/isobar/common"
)

// Control points sampled from matplotlib's viridis and ColorBrewer Blues.
var colormapStops = map[common.Colormap][]string{
	common.VIRIDIS: {"#440154", "#472d7b", "#3b528b", "#2c728e", "#21918c", "#28ae80", "#5ec962", "#addc30", "#fde725"},
	common.BLUES:   {"#f7fbff", "#deebf7", "#c6dbef", "#9ecae1", "#6baed6", "#4292c6", "#2171b5", "#08519c", "#08306b"},
}

var colormaps = func() map[common.Colormap][]colorful.Color {
	out := make(map[common.Colormap][]colorful.Color, len(colormapStops))
	for cm, hexes := range colormapStops {
		stops := make([]colorful.Color, len(hexes))
		for i, h := range hexes {
			c, err := colorful.Hex(h)
			if err != nil {
				panic(err)
			}
			stops[i] = c
		}
		out[cm] = stops
	}
	return out
}()

// Sample returns the colormap colour at t in [0, 1], interpolating linearly
// in sRGB between control points.
func Sample(cm common.Colormap, t float64) color.NRGBA {
	stops, ok := colormaps[cm]
	if !ok {
		stops = colormaps[common.VIRIDIS]
	}
	if math.IsNaN(t) {
		t = 0
	}
	t = math.Max(0, math.Min(1, t))

	pos := t * float64(len(stops)-1)
	i := int(math.Floor(pos))
	if i >= len(stops)-1 {
		return nrgba(stops[len(stops)-1], 255)
	}
	c := stops[i].BlendRgb(stops[i+1], pos-float64(i))
	return nrgba(c, 255)
}

// BandColors gives one colour per filled band, taken at band midpoints.
func BandColors(cm common.Colormap, bands int) []color.NRGBA {
	out := make([]color.NRGBA, bands)
	for i := range out {
		out[i] = Sample(cm, (float64(i)+0.5)/float64(bands))
	}
	return out
}

func nrgba(c colorful.Color, alpha uint8) color.NRGBA {
	r, g, b := c.Clamped().RGB255()
	return color.NRGBA{R: r, G: g, B: b, A: alpha}
}

// parseColor accepts "#rrggbb"; an empty string means "not drawn".
func parseColor(hex string, alpha float64) (color.NRGBA, bool, error) {
	if hex == "" {
		return color.NRGBA{}, false, nil
	}
	c, err := colorful.Hex(hex)
	if err != nil {
		return color.NRGBA{}, false, err
	}
	return nrgba(c, uint8(math.Round(alpha*255))), true, nil
}
