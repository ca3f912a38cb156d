// Package preview drives one export session: the adjustable controls, the
// live preview render, zoom, and the download and print actions.
//
// A [Controller] is an explicit state machine. Each control change starts a
// preview render that takes a new token; only the render holding the latest
// token publishes, so the displayed preview always reflects the most recently
// started render even when an older one finishes later. Superseded renders
// have their context cancelled and their results dropped.
//
// Exports are independent of previews. At most one runs at a time, and
// neither closing the session nor switching modes cancels it.
package preview

import (
	"bytes"
	"context"
	"image"
	"io"
	"sync"

	"github.com/charmbracelet/log"
	"github.com/google/uuid"

	"github.com/dotspan/dotspan/pkg/card"
	"github.com/dotspan/dotspan/pkg/errors"
	"github.com/dotspan/dotspan/pkg/export"
	"github.com/dotspan/dotspan/pkg/palette"
	"github.com/dotspan/dotspan/pkg/raster"
)

// User-facing failure messages.
const (
	MsgPreviewFailed  = "Failed to generate preview."
	MsgDownloadFailed = "Could not generate download file."
	MsgPrintFailed    = "Could not generate print file."
)

var (
	// ErrBusy is returned when an export starts while another is running.
	ErrBusy = errors.New(errors.ErrCodeBusy, "an export is already in progress")
	// ErrNoAccess is returned when printing without print access.
	ErrNoAccess = errors.New(errors.ErrCodeForbidden, "printing requires Plus access")
)

// State is the preview render state.
type State int

const (
	StateIdle State = iota
	StateRendering
	StateReady
	StateFailed
)

func (s State) String() string {
	switch s {
	case StateRendering:
		return "rendering"
	case StateReady:
		return "ready"
	case StateFailed:
		return "failed"
	default:
		return "idle"
	}
}

// Renderer renders a card. [card.Composer] implements it.
type Renderer interface {
	Render(ctx context.Context, req card.Request) (*raster.Surface, error)
}

// Input is what the host supplies for a session.
type Input struct {
	// Request holds the grid, texts and footer. Its cell size and gap are
	// the unscaled base values; colors and font come from the controls.
	Request card.Request
	// Theme seeds the palette and the default colors.
	Theme palette.Theme
	// Name is the owner's display name, used for the footer and filenames.
	Name string
	// HasAccess enables the print mode.
	HasAccess bool
}

// Option configures a [Controller].
type Option func(*Controller)

// WithRenderer sets the card renderer.
func WithRenderer(r Renderer) Option {
	return func(c *Controller) { c.renderer = r }
}

// WithNotify registers fn to receive a snapshot after every change. It is
// called without the controller lock held, possibly from render goroutines.
func WithNotify(fn func(Snapshot)) Option {
	return func(c *Controller) { c.notify = fn }
}

// WithLogger sets the logger.
func WithLogger(l *log.Logger) Option {
	return func(c *Controller) { c.logger = l }
}

// WithContext sets the parent context of preview renders. Cancelling it
// stops in-flight previews.
func WithContext(ctx context.Context) Option {
	return func(c *Controller) { c.base = ctx }
}

// WithFilenames sets the filename builder.
func WithFilenames(f export.Filenames) Option {
	return func(c *Controller) { c.filenames = f }
}

// WithJPEGQuality sets the JPEG download quality.
func WithJPEGQuality(q int) Option {
	return func(c *Controller) { c.jpegQuality = q }
}

// Controller owns one export session. It is safe for concurrent use.
type Controller struct {
	id          string
	input       Input
	renderer    Renderer
	notify      func(Snapshot)
	logger      *log.Logger
	base        context.Context
	filenames   export.Filenames
	jpegQuality int

	mu        sync.Mutex
	open      bool
	params    Params
	zoom      float64
	state     State
	preview   image.Image
	errMsg    string
	exporting bool
	token     uint64
	seq       uint64
	cancel    context.CancelFunc

	renders sync.WaitGroup
}

// New creates a closed controller. Call [Controller.Open] to start.
func New(input Input, opts ...Option) *Controller {
	c := &Controller{
		id:     uuid.NewString(),
		input:  input,
		base:   context.Background(),
		params: DefaultParams(input.Theme),
		zoom:   DefaultZoom,
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.logger == nil {
		c.logger = log.New(io.Discard)
	}
	if c.renderer == nil {
		c.renderer = card.NewComposer(card.WithLogger(c.logger))
	}
	if c.input.Name == "" {
		c.input.Name = c.input.Request.FooterName
	}
	if c.input.Request.Palette.IsZero() {
		c.input.Request.Palette = c.input.Theme.Palette()
	}
	return c
}

// ID identifies the session in logs.
func (c *Controller) ID() string { return c.id }

// Open resets the controls to the theme defaults, clears any error and
// starts a preview.
func (c *Controller) Open() {
	c.mu.Lock()
	c.open = true
	c.params = DefaultParams(c.input.Theme)
	c.zoom = DefaultZoom
	c.errMsg = ""
	c.startPreviewLocked()
	snap := c.snapshotLocked()
	c.mu.Unlock()
	c.emit(snap)
}

// Close stops the live preview. A running export keeps going.
func (c *Controller) Close() {
	c.mu.Lock()
	c.open = false
	c.token++
	if c.cancel != nil {
		c.cancel()
		c.cancel = nil
	}
	c.state = StateIdle
	snap := c.snapshotLocked()
	c.mu.Unlock()
	c.emit(snap)
}

// Wait blocks until every started preview render has returned.
func (c *Controller) Wait() { c.renders.Wait() }

// SetSizeScale sets the card size multiplier.
func (c *Controller) SetSizeScale(scale float64) error {
	if !(scale > 0) {
		return errors.New(errors.ErrCodeInvalidInput, "size scale must be positive, got %g", scale)
	}
	c.update(func(p *Params) { p.SizeScale = scale }, true)
	return nil
}

// SetBackground sets the card background color.
func (c *Controller) SetBackground(hex string) error {
	return c.setColor(hex, func(p *Params) { p.Background = hex })
}

// SetFontColor sets the primary text color.
func (c *Controller) SetFontColor(hex string) error {
	return c.setColor(hex, func(p *Params) { p.FontColor = hex })
}

// SetMutedColor sets the secondary text color.
func (c *Controller) SetMutedColor(hex string) error {
	return c.setColor(hex, func(p *Params) { p.MutedColor = hex })
}

// SetFontFamily sets the CSS font stack.
func (c *Controller) SetFontFamily(family string) error {
	if err := errors.ValidateText("font_family", family); err != nil {
		return err
	}
	c.update(func(p *Params) { p.FontFamily = family }, true)
	return nil
}

// SetPaper sets the print paper size. The preview image does not depend on
// it, so no render starts.
func (c *Controller) SetPaper(paper export.PaperSize) {
	c.update(func(p *Params) { p.Paper = paper }, false)
}

// SetMode switches between download and print. Print is ignored without
// access.
func (c *Controller) SetMode(m Mode) {
	if m == ModePrint && !c.input.HasAccess {
		return
	}
	c.update(func(p *Params) { p.Mode = m }, false)
}

func (c *Controller) setColor(hex string, set func(*Params)) error {
	if _, err := palette.Parse(hex); err != nil {
		return err
	}
	c.update(set, true)
	return nil
}

func (c *Controller) update(set func(*Params), rerender bool) {
	c.mu.Lock()
	set(&c.params)
	if rerender && c.open {
		c.startPreviewLocked()
	}
	snap := c.snapshotLocked()
	c.mu.Unlock()
	c.emit(snap)
}

// Refresh starts a new preview with the current controls.
func (c *Controller) Refresh() {
	c.mu.Lock()
	if !c.open {
		c.mu.Unlock()
		return
	}
	c.startPreviewLocked()
	snap := c.snapshotLocked()
	c.mu.Unlock()
	c.emit(snap)
}

func (c *Controller) startPreviewLocked() {
	if c.cancel != nil {
		c.cancel()
	}
	c.token++
	token := c.token
	ctx, cancel := context.WithCancel(c.base)
	c.cancel = cancel
	c.state = StateRendering
	c.errMsg = ""
	req := c.requestLocked(PreviewScale)

	c.renders.Add(1)
	go func() {
		defer c.renders.Done()
		defer cancel()
		s, err := c.renderer.Render(ctx, req)
		c.finishPreview(token, s, err)
	}()
}

func (c *Controller) finishPreview(token uint64, s *raster.Surface, err error) {
	if s != nil {
		// Only the pixels are kept.
		defer s.Close()
	}
	c.mu.Lock()
	if token != c.token {
		c.mu.Unlock()
		c.logger.Debug("discarding superseded preview", "session", c.id, "token", token)
		return
	}
	c.cancel = nil
	if err != nil {
		c.state = StateFailed
		c.errMsg = MsgPreviewFailed
		c.logger.Debug("preview failed", "session", c.id, "err", err)
	} else {
		c.state = StateReady
		c.preview = s.Image()
	}
	snap := c.snapshotLocked()
	c.mu.Unlock()
	c.emit(snap)
}

// Request returns the card request the current controls produce at scale.
func (c *Controller) Request(scale float64) card.Request {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.requestLocked(scale)
}

func (c *Controller) requestLocked(scale float64) card.Request {
	req := c.input.Request
	p := c.params
	req.Grid.CellSize = clamp(req.Grid.CellSize*p.SizeScale, minCellSize, maxCellSize)
	req.Grid.Gap = clamp(req.Grid.Gap*p.SizeScale, minGap, maxGap)
	req.Scale = scale
	req.BackgroundColor = p.Background
	req.TextColor = p.FontColor
	req.MutedColor = p.MutedColor
	req.FontFamily = p.FontFamily
	req.FooterName = c.input.Name
	return req
}

// Download renders the card at download scale and encodes it as PNG or JPEG.
func (c *Controller) Download(ctx context.Context, format export.Format) (export.Artifact, error) {
	if !format.IsImage() {
		return export.Artifact{}, errors.New(errors.ErrCodeInvalidFormat, "cannot download %s", format)
	}
	req, _, err := c.beginExport(false)
	if err != nil {
		return export.Artifact{}, err
	}

	art, err := c.download(ctx, req, format)
	c.endExport(err, MsgDownloadFailed)
	return art, err
}

func (c *Controller) download(ctx context.Context, req card.Request, format export.Format) (export.Artifact, error) {
	req.Scale = DownloadScale
	s, err := c.renderer.Render(ctx, req)
	if err != nil {
		return export.Artifact{}, err
	}
	defer s.Close()
	data, err := export.Encode(s.Image(), format, c.jpegQuality)
	if err != nil {
		return export.Artifact{}, err
	}
	return export.Artifact{
		Format:      format,
		Filename:    c.filenames.Name(c.input.Name, format),
		ContentType: format.ContentType(),
		Data:        data,
	}, nil
}

// Print renders the card at print scale and wraps it in a print document
// for the selected paper size.
func (c *Controller) Print(ctx context.Context) (export.Artifact, error) {
	req, params, err := c.beginExport(true)
	if err != nil {
		return export.Artifact{}, err
	}

	art, err := c.printDocument(ctx, req, params.Paper)
	c.endExport(err, MsgPrintFailed)
	return art, err
}

func (c *Controller) printDocument(ctx context.Context, req card.Request, paper export.PaperSize) (export.Artifact, error) {
	req.Scale = PrintScale
	s, err := c.renderer.Render(ctx, req)
	if err != nil {
		return export.Artifact{}, err
	}
	defer s.Close()
	png, err := export.EncodePNG(s.Image())
	if err != nil {
		return export.Artifact{}, err
	}
	title := c.filenames.Name(c.input.Name, export.FormatPDF)
	var doc bytes.Buffer
	err = export.PrintDocument(&doc, export.PrintOptions{
		ImageURL: export.DataURL("image/png", png),
		Title:    title,
		Paper:    paper,
	})
	if err != nil {
		return export.Artifact{}, err
	}
	return export.Artifact{
		Format:      export.FormatPDF,
		Filename:    export.OnDisk(title, export.FormatPDF),
		ContentType: export.FormatPDF.ContentType(),
		Data:        doc.Bytes(),
	}, nil
}

func (c *Controller) beginExport(printing bool) (card.Request, Params, error) {
	if printing && !c.input.HasAccess {
		return card.Request{}, Params{}, ErrNoAccess
	}
	c.mu.Lock()
	if c.exporting {
		c.mu.Unlock()
		return card.Request{}, Params{}, ErrBusy
	}
	c.exporting = true
	c.errMsg = ""
	req, params := c.requestLocked(0), c.params
	snap := c.snapshotLocked()
	c.mu.Unlock()
	c.emit(snap)
	return req, params, nil
}

func (c *Controller) endExport(err error, msg string) {
	c.mu.Lock()
	c.exporting = false
	if err != nil {
		c.errMsg = msg
		c.logger.Debug("export failed", "session", c.id, "err", err)
	}
	snap := c.snapshotLocked()
	c.mu.Unlock()
	c.emit(snap)
}

// Snapshot returns a copy of the current state.
func (c *Controller) Snapshot() Snapshot {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.snapshotLocked()
}

func (c *Controller) snapshotLocked() Snapshot {
	c.seq++
	return Snapshot{
		Seq:       c.seq,
		Open:      c.open,
		State:     c.state,
		Params:    c.params,
		Zoom:      c.zoom,
		Exporting: c.exporting,
		Preview:   c.preview,
		Error:     c.errMsg,
		HasAccess: c.input.HasAccess,
		Token:     c.token,
	}
}

func (c *Controller) emit(s Snapshot) {
	if c.notify != nil {
		c.notify(s)
	}
}
