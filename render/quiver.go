package render

import (
	"image"
	"image/color"
	"math"
)

// Arrow proportions, in multiples of the shaft width.
const (
	headWidth      = 3
	headLength     = 5
	headAxisLength = 4.5
)

type quiver struct {
	stride int
	scale  float64 // data units per axes width
	width  float64 // shaft width as a fraction of the axes width
	color  color.NRGBA
}

// draw places one arrow per stride-th grid point, tail on the point, and
// returns how many arrows were drawn.
func (q quiver) draw(ax *image.RGBA, proj projection, lat, lon []float64, u, v []float64) (int, error) {
	gc, err := newContext(ax)
	if err != nil {
		return 0, err
	}
	gc.SetFillColor(q.color)

	shaft := q.width * proj.w
	glyphs := 0

	for iy := 0; iy < len(lat); iy += q.stride {
		for ix := 0; ix < len(lon); ix += q.stride {
			k := iy*len(lon) + ix
			du, dv := u[k], v[k]
			if math.IsNaN(du) || math.IsNaN(dv) {
				continue
			}
			mag := math.Hypot(du, dv)
			if mag == 0 {
				continue
			}

			x, y := proj.xy(lon[ix], lat[iy])
			length := mag / q.scale * proj.w
			pts := arrow(length, shaft)
			sin, cos := -dv/mag, du/mag

			gc.BeginPath()
			for i, p := range pts {
				px := x + p[0]*cos - p[1]*sin
				py := y + p[0]*sin + p[1]*cos
				if i == 0 {
					gc.MoveTo(px, py)
				} else {
					gc.LineTo(px, py)
				}
			}
			gc.Close()
			gc.Fill()
			glyphs++
		}
	}
	return glyphs, nil
}

// arrow outlines an arrow of the given length pointing along +x from the
// origin. Arrows shorter than their head shrink as a whole.
func arrow(length, shaft float64) [][2]float64 {
	w := shaft
	if full := headLength * shaft; length < full {
		w = shaft * length / full
	}
	s, hw := w/2, headWidth*w/2
	neck, base := length-headAxisLength*w, length-headLength*w

	return [][2]float64{
		{0, -s},
		{neck, -s},
		{base, -hw},
		{length, 0},
		{base, hw},
		{neck, s},
		{0, s},
	}
}
