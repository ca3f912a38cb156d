package observability

import (
	"context"
	"time"

	"github.com/charmbracelet/log"
)

// LogHooks implements every hook interface by writing debug lines to a
// logger. The CLI registers it in verbose mode.
type LogHooks struct {
	logger *log.Logger
}

// NewLogHooks creates hooks that log to logger.
func NewLogHooks(logger *log.Logger) *LogHooks {
	return &LogHooks{logger: logger}
}

// Register installs h for render, cache and HTTP events.
func (h *LogHooks) Register() {
	SetRenderHooks(h)
	SetCacheHooks(h)
	SetHTTPHooks(h)
}

func (h *LogHooks) OnRenderStart(ctx context.Context, grid string, scale float64) context.Context {
	h.logger.Debug("rendering card", "grid", grid, "scale", scale)
	return ctx
}

func (h *LogHooks) OnRenderComplete(_ context.Context, scale float64, width, height int, d time.Duration, err error) {
	if err != nil {
		h.logger.Debug("render failed", "scale", scale, "err", err)
		return
	}
	h.logger.Debug("rendered card", "scale", scale, "width", width, "height", height, "duration", d)
}

func (h *LogHooks) OnEncode(_ context.Context, format string, size int, d time.Duration, err error) {
	if err != nil {
		h.logger.Debug("encode failed", "format", format, "err", err)
		return
	}
	h.logger.Debug("encoded artifact", "format", format, "bytes", size, "duration", d)
}

func (h *LogHooks) OnCacheHit(_ context.Context, keyType string) {
	h.logger.Debug("cache hit", "type", keyType)
}

func (h *LogHooks) OnCacheMiss(_ context.Context, keyType string) {
	h.logger.Debug("cache miss", "type", keyType)
}

func (h *LogHooks) OnCacheSet(_ context.Context, keyType string, size int) {
	h.logger.Debug("cache set", "type", keyType, "bytes", size)
}

func (h *LogHooks) OnRequest(_ context.Context, method, host, path string) {
	h.logger.Debug("http request", "method", method, "host", host, "path", path)
}

func (h *LogHooks) OnResponse(_ context.Context, method, host, path string, status int, d time.Duration) {
	h.logger.Debug("http response", "method", method, "host", host, "path", path, "status", status, "duration", d)
}

func (h *LogHooks) OnError(_ context.Context, method, host, path string, err error) {
	h.logger.Debug("http error", "method", method, "host", host, "path", path, "err", err)
}

func (h *LogHooks) OnRetry(_ context.Context, url string, attempt int, wait time.Duration, err error) {
	h.logger.Debug("http retry", "url", url, "attempt", attempt, "wait", wait, "err", err)
}

var (
	_ RenderHooks = (*LogHooks)(nil)
	_ CacheHooks  = (*LogHooks)(nil)
	_ HTTPHooks   = (*LogHooks)(nil)
)
