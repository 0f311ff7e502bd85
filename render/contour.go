package render

import (
	"image"
	"image/color"
	"math"
	"sort"

	"hstin/isobar/models/grid"
)

// axis maps a coordinate value to a fractional index into a monotonic
// coordinate array.
type axis struct {
	coords     []float64
	descending bool
}

func newAxis(coords []float64) axis {
	return axis{coords: coords, descending: coords[len(coords)-1] < coords[0]}
}

// index returns the fractional position of v, or -1 when v is outside.
func (a axis) index(v float64) float64 {
	n := len(a.coords)
	lo, hi := a.coords[0], a.coords[n-1]
	if a.descending {
		lo, hi = hi, lo
	}
	if v < lo || v > hi {
		return -1
	}

	var i int
	if a.descending {
		i = sort.Search(n, func(k int) bool { return a.coords[k] <= v })
	} else {
		i = sort.Search(n, func(k int) bool { return a.coords[k] >= v })
	}
	if i == 0 {
		return 0
	}
	if i >= n {
		return float64(n - 1)
	}
	c0, c1 := a.coords[i-1], a.coords[i]
	return float64(i-1) + (v-c0)/(c1-c0)
}

// bilinear samples f at fractional (y, x). Any missing corner yields NaN.
func bilinear(f grid.Field, y, x float64) float64 {
	y0, x0 := int(math.Floor(y)), int(math.Floor(x))
	y1, x1 := min(y0+1, f.Rows-1), min(x0+1, f.Cols-1)
	dy, dx := y-float64(y0), x-float64(x0)

	v00, v01 := f.At(y0, x0), f.At(y0, x1)
	v10, v11 := f.At(y1, x0), f.At(y1, x1)

	top := v00*(1-dx) + v01*dx
	bottom := v10*(1-dx) + v11*dx
	return top*(1-dy) + bottom*dy
}

// fillContours paints the banded field over ax, which already holds the
// base map, blending each band colour at alpha. Pixels whose value is
// missing or outside the levels keep the base map.
func fillContours(ax *image.RGBA, f grid.Field, lat, lon []float64, extent grid.Extent, levels []float64, colors []color.NRGBA, alpha float64) {
	if len(levels) < 2 {
		return
	}

	b := ax.Bounds()
	w, h := float64(b.Dx()), float64(b.Dy())
	ya, xa := newAxis(lat), newAxis(lon)

	xs := make([]float64, b.Dx())
	for px := range xs {
		x := extent.LonMin + (float64(px)+0.5)/w*(extent.LonMax-extent.LonMin)
		xs[px] = xa.index(x)
	}

	for py := 0; py < b.Dy(); py++ {
		y := ya.index(extent.LatMax - (float64(py)+0.5)/h*(extent.LatMax-extent.LatMin))
		if y < 0 {
			continue
		}
		for px, x := range xs {
			if x < 0 {
				continue
			}
			k := band(levels, bilinear(f, y, x))
			if k < 0 {
				continue
			}
			blend(ax, b.Min.X+px, b.Min.Y+py, colors[k], alpha)
		}
	}
}

func blend(img *image.RGBA, x, y int, c color.NRGBA, alpha float64) {
	dst := img.RGBAAt(x, y)
	mix := func(s, d uint8) uint8 {
		return uint8(math.Round(float64(s)*alpha + float64(d)*(1-alpha)))
	}
	img.SetRGBA(x, y, color.RGBA{
		R: mix(c.R, dst.R),
		G: mix(c.G, dst.G),
		B: mix(c.B, dst.B),
		A: 255,
	})
}
