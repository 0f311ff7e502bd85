package render

import (
	"bytes"
	"context"
	"fmt"
	"image"
	"image/color/palette"
	"image/draw"
	"image/gif"
	"time"

	"golang.org/x/sync/errgroup"

	"hstin/isobar/common"
	"hstin/isobar/models/base"
)

const AnimationDelay = 300 * time.Millisecond

// Frames renders every time step of parameter at AnimationDPI. Steps are
// rendered concurrently, up to Options.Workers at a time, and returned in
// time order. The first failure cancels the rest.
func (r *Renderer) Frames(ctx context.Context, ds base.Accessor, parameter string, includeWind bool) ([]*Frame, error) {
	if _, err := common.LookupParameter(parameter); err != nil {
		return nil, err
	}

	frames := make([]*Frame, ds.NumTimes())

	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(r.opts.Workers)

	for t := range frames {
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}
			f, err := r.Frame(ds, FrameRequest{Parameter: parameter, TimeIndex: t, IncludeWind: includeWind}, AnimationDPI)
			if err != nil {
				return err
			}
			frames[t] = f
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}
	return frames, nil
}

// EncodeGIF writes frames as a looping GIF with AnimationDelay between them.
func EncodeGIF(frames []*Frame) ([]byte, error) {
	anim := &gif.GIF{LoopCount: 0}
	delay := int(AnimationDelay / (10 * time.Millisecond))

	for _, f := range frames {
		b := f.Image.Bounds()
		p := image.NewPaletted(b, palette.Plan9)
		draw.FloydSteinberg.Draw(p, b, f.Image, b.Min)
		anim.Image = append(anim.Image, p)
		anim.Delay = append(anim.Delay, delay)
	}

	var buf bytes.Buffer
	if err := gif.EncodeAll(&buf, anim); err != nil {
		return nil, fmt.Errorf("%w: encode gif: %w", common.ErrRender, err)
	}
	return buf.Bytes(), nil
}

// Animate renders and encodes the whole time series of parameter.
func (r *Renderer) Animate(ctx context.Context, ds base.Accessor, parameter string, includeWind bool) ([]byte, error) {
	frames, err := r.Frames(ctx, ds, parameter, includeWind)
	if err != nil {
		return nil, err
	}
	return EncodeGIF(frames)
}
