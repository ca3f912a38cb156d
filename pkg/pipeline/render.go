package pipeline

import (
	"bytes"
	"context"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/dotspan/dotspan/pkg/card"
	"github.com/dotspan/dotspan/pkg/errors"
	"github.com/dotspan/dotspan/pkg/export"
	"github.com/dotspan/dotspan/pkg/observability"
	"github.com/dotspan/dotspan/pkg/raster"
)

// renderScales draws req once per distinct scale, concurrently.
func (r *Runner) renderScales(ctx context.Context, req card.Request, scales []float64) (map[float64]*raster.Surface, error) {
	var (
		mu       sync.Mutex
		surfaces = make(map[float64]*raster.Surface, len(scales))
	)
	g, ctx := errgroup.WithContext(ctx)
	seen := make(map[float64]bool, len(scales))
	for _, scale := range scales {
		if seen[scale] {
			continue
		}
		seen[scale] = true
		g.Go(func() error {
			s, err := r.render(ctx, req, scale)
			if err != nil {
				return err
			}
			mu.Lock()
			surfaces[scale] = s
			mu.Unlock()
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		closeSurfaces(surfaces)
		return nil, err
	}
	return surfaces, nil
}

func closeSurfaces(surfaces map[float64]*raster.Surface) {
	for _, s := range surfaces {
		s.Close()
	}
}

func (r *Runner) render(ctx context.Context, req card.Request, scale float64) (*raster.Surface, error) {
	req.Scale = scale
	start := time.Now()
	ctx = observability.Render().OnRenderStart(ctx, req.Grid.String(), scale)

	s, err := r.Composer.Render(ctx, req)
	if err == nil && s.Degraded() {
		l := card.ComputeLayout(req)
		err = errors.New(errors.ErrCodeInvalidInput,
			"card of %.0fx%.0f at scale %g exceeds the maximum surface size", l.Width, l.Height, scale)
	}

	var width, height int
	if s != nil {
		width, height = s.Width(), s.Height()
	}
	observability.Render().OnRenderComplete(ctx, scale, width, height, time.Since(start), err)
	if err != nil {
		if s != nil {
			s.Close()
		}
		return nil, err
	}
	r.Logger.Debug("rendered surface", "scale", scale, "width", width, "height", height, "duration", time.Since(start))
	return s, nil
}

// encode produces one format's bytes from a rendered surface.
func (r *Runner) encode(ctx context.Context, s *raster.Surface, j *job, opts Options) ([]byte, error) {
	start := time.Now()
	data, err := encodeSurface(s, j, opts)
	observability.Render().OnEncode(ctx, string(j.format), len(data), time.Since(start), err)
	return data, err
}

func encodeSurface(s *raster.Surface, j *job, opts Options) ([]byte, error) {
	switch j.format {
	case export.FormatPNG:
		return export.EncodePNG(s.Image())
	case export.FormatJPG:
		return export.EncodeJPEG(s.Image(), opts.Quality)
	case export.FormatPDF:
		png, err := export.EncodePNG(s.Image())
		if err != nil {
			return nil, err
		}
		var buf bytes.Buffer
		err = export.PrintDocument(&buf, export.PrintOptions{
			ImageURL: export.DataURL("image/png", png),
			Title:    j.title,
			Paper:    opts.Paper,
		})
		return buf.Bytes(), err
	default:
		return nil, errors.New(errors.ErrCodeInvalidFormat, "unsupported format %q", j.format)
	}
}
