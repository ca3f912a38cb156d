// Package imageload fetches and decodes small images such as the footer
// flag icon.
//
// A [Loader] accepts http(s) URLs, data URLs, file URLs and plain file
// paths unless [WithSchemes] narrows the set. Remote fetches retry transient failures with backoff, collapse
// concurrent requests for the same URL and keep the bytes in a
// [cache.Cache]. PNG, JPEG and GIF are decoded.
package imageload

import (
	"bytes"
	"context"
	"encoding/base64"
	stderrors "errors"
	"image"
	"io"
	"net/http"
	"net/url"
	"os"
	"strings"
	"time"

	"github.com/charmbracelet/log"
	"github.com/disintegration/imaging"
	"golang.org/x/sync/singleflight"

	"github.com/dotspan/dotspan/pkg/cache"
	"github.com/dotspan/dotspan/pkg/errors"
	"github.com/dotspan/dotspan/pkg/httputil"
	"github.com/dotspan/dotspan/pkg/observability"
)

// DefaultMaxBytes bounds the size of a loaded image.
const DefaultMaxBytes = 5 << 20

// Option configures a [Loader].
type Option func(*Loader)

// WithHTTPClient sets the client for remote images.
func WithHTTPClient(c *http.Client) Option {
	return func(l *Loader) { l.client = c }
}

// WithCache stores fetched bytes in c under keys from keyer.
func WithCache(c cache.Cache, keyer cache.Keyer) Option {
	return func(l *Loader) {
		l.cache = c
		if keyer != nil {
			l.keyer = keyer
		}
	}
}

// WithLogger sets the logger.
func WithLogger(logger *log.Logger) Option {
	return func(l *Loader) { l.logger = logger }
}

// WithMaxBytes sets the size limit.
func WithMaxBytes(n int64) Option {
	return func(l *Loader) { l.maxBytes = n }
}

// WithRetry sets the number of attempts and the initial backoff delay.
func WithRetry(attempts int, delay time.Duration) Option {
	return func(l *Loader) {
		l.attempts = attempts
		l.delay = delay
	}
}

// WithSchemes limits the accepted URL schemes. "file" also covers plain
// paths. Loaders fed untrusted URLs should leave out "file" and pair the
// remote schemes with [httputil.NewPublicClient].
func WithSchemes(schemes ...string) Option {
	return func(l *Loader) {
		l.schemes = make(map[string]bool, len(schemes))
		for _, s := range schemes {
			l.schemes[strings.ToLower(s)] = true
		}
	}
}

// Loader loads images. It is safe for concurrent use.
type Loader struct {
	client   *http.Client
	cache    cache.Cache
	keyer    cache.Keyer
	logger   *log.Logger
	maxBytes int64
	attempts int
	delay    time.Duration
	schemes  map[string]bool // nil accepts all

	group singleflight.Group
}

// New creates a Loader. By default it uses the shared HTTP client, no cache,
// the [httputil.DefaultPolicy] retries and a 5 MiB limit.
func New(opts ...Option) *Loader {
	l := &Loader{
		maxBytes: DefaultMaxBytes,
		attempts: httputil.DefaultPolicy.Attempts,
		delay:    httputil.DefaultPolicy.Delay,
	}
	for _, opt := range opts {
		opt(l)
	}
	if l.client == nil {
		l.client = httputil.NewClient(0)
	}
	if l.cache == nil {
		l.cache = cache.NewNullCache()
	}
	if l.keyer == nil {
		l.keyer = cache.NewDefaultKeyer()
	}
	if l.logger == nil {
		l.logger = log.New(io.Discard)
	}
	return l
}

// Load fetches and decodes the image at rawURL.
func (l *Loader) Load(ctx context.Context, rawURL string) (image.Image, error) {
	data, err := l.Fetch(ctx, rawURL)
	if err != nil {
		return nil, err
	}
	img, err := imaging.Decode(bytes.NewReader(data), imaging.AutoOrientation(true))
	if err != nil {
		return nil, errors.Wrap(errors.ErrCodeInvalidInput, err, "decode image")
	}
	return img, nil
}

// Fetch returns the raw bytes at rawURL.
func (l *Loader) Fetch(ctx context.Context, rawURL string) ([]byte, error) {
	if err := errors.ValidateImageURL(rawURL); err != nil {
		return nil, err
	}
	scheme := strings.ToLower(schemeOf(rawURL))
	if !l.allows(scheme) {
		return nil, errors.New(errors.ErrCodeInvalidInput, "image URL scheme %q not allowed", kindOf(scheme))
	}
	switch scheme {
	case "http", "https":
		return l.fetchRemote(ctx, rawURL)
	case "data":
		return l.limit(decodeDataURL(rawURL))
	case "file":
		u, err := url.Parse(rawURL)
		if err != nil {
			return nil, errors.Wrap(errors.ErrCodeInvalidInput, err, "parse file URL")
		}
		return l.readFile(u.Path)
	default:
		return l.readFile(rawURL)
	}
}

func (l *Loader) allows(scheme string) bool {
	return l.schemes == nil || l.schemes[kindOf(scheme)]
}

// kindOf maps a plain path, which has no scheme, to "file".
func kindOf(scheme string) string {
	if scheme == "" {
		return "file"
	}
	return scheme
}

func (l *Loader) fetchRemote(ctx context.Context, rawURL string) ([]byte, error) {
	key := l.keyer.ImageKey(rawURL)
	if data, hit, err := l.cache.Get(ctx, key); err == nil && hit {
		observability.Cache().OnCacheHit(ctx, "image")
		return data, nil
	}
	observability.Cache().OnCacheMiss(ctx, "image")

	v, err, _ := l.group.Do(rawURL, func() (any, error) {
		data, err := l.download(ctx, rawURL)
		if err != nil {
			return nil, err
		}
		if err := l.cache.Set(ctx, key, data, cache.TTLImage); err != nil {
			l.logger.Debug("image cache write failed", "err", err)
		} else {
			observability.Cache().OnCacheSet(ctx, "image", len(data))
		}
		return data, nil
	})
	if err != nil {
		return nil, err
	}
	return v.([]byte), nil
}

func (l *Loader) download(ctx context.Context, rawURL string) ([]byte, error) {
	var data []byte
	policy := httputil.DefaultPolicy
	policy.Attempts, policy.Delay = l.attempts, l.delay
	policy.OnRetry = func(attempt int, wait time.Duration, err error) {
		observability.HTTP().OnRetry(ctx, rawURL, attempt, wait, err)
		l.logger.Debug("retrying image fetch", "url", rawURL, "attempt", attempt, "wait", wait, "err", err)
	}
	err := policy.Do(ctx, func(int) error {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
		if err != nil {
			return err
		}
		resp, err := l.client.Do(req)
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			if stderrors.Is(err, httputil.ErrBlockedAddress) {
				return errors.Wrap(errors.ErrCodeInvalidInput, err, "fetch %s", rawURL)
			}
			return &httputil.RetryableError{Err: err}
		}
		defer resp.Body.Close()
		if err := httputil.CheckResponse(resp); err != nil {
			return err
		}
		data, err = readLimited(resp.Body, l.maxBytes)
		return err
	})
	if err != nil {
		return nil, classify(err, rawURL)
	}
	l.logger.Debug("fetched image", "url", rawURL, "bytes", len(data))
	return data, nil
}

func (l *Loader) readFile(path string) ([]byte, error) {
	f, err := os.Open(path)
	if os.IsNotExist(err) {
		return nil, errors.Wrap(errors.ErrCodeImageNotFound, err, "image %s", path)
	}
	if err != nil {
		return nil, errors.Wrap(errors.ErrCodeInvalidInput, err, "open image")
	}
	defer f.Close()
	return readLimited(f, l.maxBytes)
}

func (l *Loader) limit(data []byte, err error) ([]byte, error) {
	if err != nil {
		return nil, err
	}
	if int64(len(data)) > l.maxBytes {
		return nil, errors.New(errors.ErrCodeInvalidInput, "image exceeds %d bytes", l.maxBytes)
	}
	return data, nil
}

func readLimited(r io.Reader, max int64) ([]byte, error) {
	data, err := io.ReadAll(io.LimitReader(r, max+1))
	if err != nil {
		return nil, err
	}
	if int64(len(data)) > max {
		return nil, errors.New(errors.ErrCodeInvalidInput, "image exceeds %d bytes", max)
	}
	return data, nil
}

// decodeDataURL decodes "data:[<mediatype>][;base64],<data>".
func decodeDataURL(raw string) ([]byte, error) {
	rest := raw[len("data:"):]
	meta, payload, ok := strings.Cut(rest, ",")
	if !ok {
		return nil, errors.New(errors.ErrCodeInvalidInput, "malformed data URL")
	}
	if strings.HasSuffix(strings.ToLower(meta), ";base64") {
		data, err := base64.StdEncoding.DecodeString(payload)
		if err != nil {
			return nil, errors.Wrap(errors.ErrCodeInvalidInput, err, "decode data URL")
		}
		return data, nil
	}
	s, err := url.PathUnescape(payload)
	if err != nil {
		return nil, errors.Wrap(errors.ErrCodeInvalidInput, err, "decode data URL")
	}
	return []byte(s), nil
}

func schemeOf(raw string) string {
	if i := strings.Index(raw, ":"); i > 1 {
		return raw[:i]
	}
	return ""
}

func classify(err error, rawURL string) error {
	var se *httputil.StatusError
	switch {
	case errors.Is(err, errors.ErrCodeInvalidInput):
		return err
	case stderrors.As(err, &se) && se.StatusCode == http.StatusNotFound:
		return errors.Wrap(errors.ErrCodeImageNotFound, err, "image %s", rawURL)
	case stderrors.Is(err, context.DeadlineExceeded):
		return errors.Wrap(errors.ErrCodeTimeout, err, "fetch %s", rawURL)
	case stderrors.Is(err, context.Canceled):
		return err
	default:
		return errors.Wrap(errors.ErrCodeNetwork, err, "fetch %s", rawURL)
	}
}
