package render

import (
	"image"
	"image/color"
	"strconv"
)

// maxTicks bounds the number of labelled levels on the colour bar.
const maxTicks = 10

// drawLegend paints the vertical colour bar with one block per band,
// labelled tick marks at the level boundaries and the rotated caption.
func drawLegend(img *image.RGBA, l layout, levels []float64, colors []color.NRGBA, alpha float64, caption string, ticks, label *text) error {
	bar := l.bar
	bands := len(levels) - 1
	if bands < 1 {
		return nil
	}

	fill(img, bar, white)
	h := float64(bar.Dy())
	for k := 0; k < bands; k++ {
		y1 := bar.Max.Y - int(float64(k)*h/float64(bands))
		y0 := bar.Max.Y - int(float64(k+1)*h/float64(bands))
		for y := y0; y < y1; y++ {
			for x := bar.Min.X; x < bar.Max.X; x++ {
				blend(img, x, y, colors[k], alpha)
			}
		}
	}

	gc, err := newContext(img)
	if err != nil {
		return err
	}
	lw := l.pt(0.8)
	strokeRect(gc, bar, lw, black)

	every := (len(levels) + maxTicks - 1) / maxTicks
	decimals := tickDecimals(levels)
	tickLen := l.pt(3.5)
	widest := 0

	for i := 0; i < len(levels); i += every {
		y := float64(bar.Max.Y) - float64(i)*h/float64(bands)
		gc.BeginPath()
		gc.SetStrokeColor(black)
		gc.SetLineWidth(lw)
		gc.MoveTo(float64(bar.Max.X), y)
		gc.LineTo(float64(bar.Max.X)+tickLen, y)
		gc.Stroke()

		s := strconv.FormatFloat(levels[i], 'f', decimals, 64)
		x := bar.Max.X + int(tickLen+l.pt(3.5))
		ticks.draw(img, s, x, int(y)+ticks.ascent()/2-1, black)
		widest = max(widest, ticks.width(s))
	}

	lx := bar.Max.X + int(tickLen+l.pt(7)) + widest
	ly := bar.Min.Y + (bar.Dy()-label.width(caption))/2
	label.drawVertical(img, caption, lx, ly, black)
	return nil
}
