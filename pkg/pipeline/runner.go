package pipeline

import (
	"context"
	"fmt"
	"time"

	"github.com/charmbracelet/log"

	"github.com/dotspan/dotspan/pkg/cache"
	"github.com/dotspan/dotspan/pkg/card"
	"github.com/dotspan/dotspan/pkg/export"
	"github.com/dotspan/dotspan/pkg/observability"
)

// Runner encapsulates pipeline execution with caching.
// Both CLI and API use it to avoid duplicating caching logic.
//
// The Runner is stateless except for the cache, composer and logger. Multiple
// goroutines can safely use the same Runner with different options.
type Runner struct {
	Cache    cache.Cache
	Keyer    cache.Keyer
	Composer *card.Composer
	Logger   *log.Logger

	// TTL is the lifetime of cached artifacts. Zero means cache.TTLArtifact.
	TTL time.Duration
}

// NewRunner creates a runner.
// If keyer is nil, a DefaultKeyer is used.
// If c is nil, a NullCache is used (caching disabled).
// If composer is nil, one with default fonts and no flag loader is created.
func NewRunner(c cache.Cache, keyer cache.Keyer, composer *card.Composer, logger *log.Logger) *Runner {
	if keyer == nil {
		keyer = cache.NewDefaultKeyer()
	}
	if c == nil {
		c = cache.NewNullCache()
	}
	if logger == nil {
		logger = log.Default()
	}
	if composer == nil {
		composer = card.NewComposer(card.WithLogger(logger))
	}
	return &Runner{
		Cache:    c,
		Keyer:    keyer,
		Composer: composer,
		Logger:   logger,
	}
}

// job is one requested format and where its bytes come from.
type job struct {
	format   export.Format
	filename string
	title    string
	key      string
	cache    bool
	data     []byte
}

// Execute renders the request into every requested format with caching.
func (r *Runner) Execute(ctx context.Context, opts Options) (*Result, error) {
	r.applyLogger(&opts)
	if err := opts.ValidateAndSetDefaults(); err != nil {
		return nil, fmt.Errorf("invalid options: %w", err)
	}

	hash, err := requestHash(opts.Request)
	if err != nil {
		return nil, err
	}
	result := &Result{RequestHash: hash}

	jobs := make([]*job, len(opts.Formats))
	var missing []*job
	for i, f := range opts.Formats {
		name := opts.Filenames.Name(opts.Name, f)
		j := &job{format: f, filename: export.OnDisk(name, f), title: name, cache: opts.Cacheable(f)}
		j.key = r.Keyer.ArtifactKey(hash, opts.ArtifactKeyOpts(f, j.title))
		jobs[i] = j

		if j.cache && !opts.Refresh {
			if data, hit, err := r.Cache.Get(ctx, j.key); err == nil && hit {
				observability.Cache().OnCacheHit(ctx, "artifact")
				j.data = data
				result.CacheInfo.Hits++
				continue
			}
			observability.Cache().OnCacheMiss(ctx, "artifact")
		}
		missing = append(missing, j)
	}

	if len(missing) > 0 {
		renderStart := time.Now()
		scales := make([]float64, 0, len(missing))
		for _, j := range missing {
			scales = append(scales, opts.ScaleFor(j.format))
		}
		surfaces, err := r.renderScales(ctx, opts.Request, scales)
		if err != nil {
			return nil, fmt.Errorf("render: %w", err)
		}
		defer closeSurfaces(surfaces)
		result.Stats.Renders = len(surfaces)
		result.Stats.RenderTime = time.Since(renderStart)

		encodeStart := time.Now()
		for _, j := range missing {
			data, err := r.encode(ctx, surfaces[opts.ScaleFor(j.format)], j, opts)
			if err != nil {
				return nil, fmt.Errorf("encode %s: %w", j.format, err)
			}
			j.data = data
			if !j.cache {
				continue
			}
			if err := r.Cache.Set(ctx, j.key, data, r.ttl()); err != nil {
				opts.Logger.Debug("artifact cache write failed", "format", j.format, "err", err)
			} else {
				observability.Cache().OnCacheSet(ctx, "artifact", len(data))
			}
		}
		result.Stats.EncodeTime = time.Since(encodeStart)
	} else {
		result.CacheInfo.RenderHit = true
	}

	for _, j := range jobs {
		result.Artifacts = append(result.Artifacts, export.Artifact{
			Format:      j.format,
			Filename:    j.filename,
			ContentType: j.format.ContentType(),
			Data:        j.data,
		})
		result.Stats.Bytes += len(j.data)
	}

	opts.Logger.Info("exported card",
		"grid", opts.Request.Grid.String(),
		"formats", opts.Formats,
		"cached", result.CacheInfo.Hits,
		"renders", result.Stats.Renders,
		"bytes", result.Stats.Bytes,
		"duration", result.Stats.RenderTime+result.Stats.EncodeTime)

	return result, nil
}

// Preview renders req as a PNG at preview scale.
func (r *Runner) Preview(ctx context.Context, req card.Request) ([]byte, error) {
	req.Scale = PreviewScale
	res, err := r.Execute(ctx, Options{Request: req, Formats: []export.Format{export.FormatPNG}})
	if err != nil {
		return nil, err
	}
	return res.Artifacts[0].Data, nil
}

// Close releases resources held by the runner (primarily the cache).
func (r *Runner) Close() error {
	if r.Cache != nil {
		return r.Cache.Close()
	}
	return nil
}

func (r *Runner) ttl() time.Duration {
	if r.TTL > 0 {
		return r.TTL
	}
	return cache.TTLArtifact
}

// applyLogger sets the runner's logger on options if not already set.
func (r *Runner) applyLogger(opts *Options) {
	if opts.Logger == nil {
		opts.Logger = r.Logger
	}
}

// requestHash hashes the request without its scale, which is keyed per
// format instead.
func requestHash(req card.Request) (string, error) {
	req.Scale = 0
	return cache.HashJSON(req)
}
