package render

import (
	"image"
	"image/color"
	"image/draw"
	"math"
	"strings"
	"sync"

	"github.com/wcharczuk/go-chart/v2/drawing"
	"golang.org/x/image/font"
	"golang.org/x/image/font/gofont/goregular"
	"golang.org/x/image/font/opentype"
	"golang.org/x/image/math/fixed"
)

var (
	white = color.NRGBA{R: 255, G: 255, B: 255, A: 255}
	black = color.NRGBA{A: 255}
)

var goRegular = sync.OnceValues(func() (*opentype.Font, error) {
	return opentype.Parse(goregular.TTF)
})

// layout places the map axes, colour bar and captions on a figure of
// w x h pixels. All lengths are in pixels.
type layout struct {
	dpi    float64
	figure image.Rectangle
	axes   image.Rectangle
	bar    image.Rectangle
}

// newLayout keeps degrees square (plate carrée) and leaves room on the
// right for the colour bar, like a matplotlib figure with a vertical
// colorbar(pad=0.02).
func newLayout(widthIn, heightIn, dpi float64, aspect float64) layout {
	w := int(math.Round(widthIn * dpi))
	h := int(math.Round(heightIn * dpi))

	left, right := 0.125*float64(w), 0.9*float64(w)
	top, bottom := 0.12*float64(h), 0.88*float64(h)
	pad := 0.02 * float64(w)
	barShare := 0.15 * (right - left)

	availW := right - left - barShare - pad
	availH := bottom - top

	axW, axH := availW, availW/aspect
	if axH > availH {
		axW, axH = availH*aspect, availH
	}
	x0 := left + (availW-axW)/2
	y0 := top + (availH-axH)/2

	axes := image.Rect(int(x0), int(y0), int(x0+axW), int(y0+axH))
	barW := math.Max(4, axH/20)
	barX := float64(axes.Max.X) + pad
	bar := image.Rect(int(barX), axes.Min.Y, int(barX+barW), axes.Max.Y)

	return layout{
		dpi:    dpi,
		figure: image.Rect(0, 0, w, h),
		axes:   axes,
		bar:    bar,
	}
}

// pt converts typographic points to pixels.
func (l layout) pt(points float64) float64 {
	return points * l.dpi / 72
}

// text draws strings with Go Regular at a size given in points.
type text struct {
	face font.Face
}

func newText(sizePt, dpi float64) (*text, error) {
	f, err := goRegular()
	if err != nil {
		return nil, err
	}
	face, err := opentype.NewFace(f, &opentype.FaceOptions{
		Size:    sizePt,
		DPI:     dpi,
		Hinting: font.HintingFull,
	})
	if err != nil {
		return nil, err
	}
	return &text{face: face}, nil
}

func (t *text) Close() error {
	return t.face.Close()
}

var subscripts = strings.NewReplacer(
	"₀", "0", "₁", "1", "₂", "2", "₃", "3", "₄", "4",
	"₅", "5", "₆", "6", "₇", "7", "₈", "8", "₉", "9",
)

// printable swaps subscript digits for plain ones when the face lacks them.
func (t *text) printable(s string) string {
	for _, r := range s {
		if r < 0x2080 || r > 0x2089 {
			continue
		}
		if _, ok := t.face.GlyphAdvance(r); !ok {
			return subscripts.Replace(s)
		}
	}
	return s
}

func (t *text) width(s string) int {
	return font.MeasureString(t.face, t.printable(s)).Ceil()
}

func (t *text) ascent() int {
	return t.face.Metrics().Ascent.Ceil()
}

func (t *text) height() int {
	m := t.face.Metrics()
	return (m.Ascent + m.Descent).Ceil()
}

// draw writes s with its baseline starting at (x, y).
func (t *text) draw(dst draw.Image, s string, x, y int, c color.Color) {
	d := &font.Drawer{
		Dst:  dst,
		Src:  image.NewUniform(c),
		Face: t.face,
		Dot:  fixed.P(x, y),
	}
	d.DrawString(t.printable(s))
}

// drawCentered centres s horizontally on cx.
func (t *text) drawCentered(dst draw.Image, s string, cx, y int, c color.Color) {
	t.draw(dst, s, cx-t.width(s)/2, y, c)
}

// drawVertical writes s rotated a quarter turn counter-clockwise, so it
// reads bottom to top, with its box's top-left corner at (x, y).
func (t *text) drawVertical(dst draw.Image, s string, x, y int, c color.Color) {
	w, h := t.width(s), t.height()
	if w <= 0 || h <= 0 {
		return
	}
	tmp := image.NewNRGBA(image.Rect(0, 0, w, h))
	t.draw(tmp, s, 0, t.ascent(), c)

	rot := image.NewNRGBA(image.Rect(0, 0, h, w))
	for yd := 0; yd < w; yd++ {
		for xd := 0; xd < h; xd++ {
			rot.SetNRGBA(xd, yd, tmp.NRGBAAt(w-1-yd, xd))
		}
	}
	draw.Draw(dst, image.Rect(x, y, x+h, y+w), rot, image.Point{}, draw.Over)
}

func newContext(img *image.RGBA) (*drawing.RasterGraphicContext, error) {
	return drawing.NewRasterGraphicContext(img)
}

func fill(img *image.RGBA, r image.Rectangle, c color.Color) {
	draw.Draw(img, r, image.NewUniform(c), image.Point{}, draw.Src)
}

// strokeRect outlines r with a line of the given width in pixels.
func strokeRect(gc *drawing.RasterGraphicContext, r image.Rectangle, width float64, c color.Color) {
	gc.BeginPath()
	gc.SetStrokeColor(c)
	gc.SetLineWidth(width)
	gc.SetLineDash(nil, 0)
	x0, y0 := float64(r.Min.X)+width/2, float64(r.Min.Y)+width/2
	x1, y1 := float64(r.Max.X)-width/2, float64(r.Max.Y)-width/2
	gc.MoveTo(x0, y0)
	gc.LineTo(x1, y0)
	gc.LineTo(x1, y1)
	gc.LineTo(x0, y1)
	gc.Close()
	gc.Stroke()
}

// trim crops img to the bounding box of non-background pixels plus pad.
func trim(img *image.RGBA, background color.NRGBA, pad int) *image.RGBA {
	b := img.Bounds()
	minX, minY, maxX, maxY := b.Max.X, b.Max.Y, b.Min.X-1, b.Min.Y-1
	bg := color.RGBAModel.Convert(background).(color.RGBA)

	for y := b.Min.Y; y < b.Max.Y; y++ {
		for x := b.Min.X; x < b.Max.X; x++ {
			if img.RGBAAt(x, y) == bg {
				continue
			}
			minX, maxX = min(minX, x), max(maxX, x)
			minY, maxY = min(minY, y), max(maxY, y)
		}
	}
	if maxX < minX {
		return img
	}

	crop := image.Rect(minX-pad, minY-pad, maxX+1+pad, maxY+1+pad).Intersect(b)
	out := image.NewRGBA(image.Rect(0, 0, crop.Dx(), crop.Dy()))
	draw.Draw(out, out.Bounds(), img, crop.Min, draw.Src)
	return out
}
