package preview

import (
	"bytes"
	"context"
	stderrors "errors"
	"image/color"
	"image/png"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/dotspan/dotspan/pkg/card"
	"github.com/dotspan/dotspan/pkg/errors"
	"github.com/dotspan/dotspan/pkg/export"
	"github.com/dotspan/dotspan/pkg/grid"
	"github.com/dotspan/dotspan/pkg/palette"
	"github.com/dotspan/dotspan/pkg/raster"
)

// fakeRenderer paints a 2x1 surface in the request's background color so
// tests can tell renders apart.
type fakeRenderer struct {
	mu    sync.Mutex
	calls []card.Request

	// gate, when it returns a channel, blocks the render until it closes.
	gate func(ctx context.Context, req card.Request) <-chan struct{}
	// fail, when it returns an error, fails the render.
	fail func(ctx context.Context, req card.Request) error
}

func (f *fakeRenderer) Render(ctx context.Context, req card.Request) (*raster.Surface, error) {
	f.mu.Lock()
	f.calls = append(f.calls, req)
	f.mu.Unlock()
	if f.gate != nil {
		if g := f.gate(ctx, req); g != nil {
			<-g
		}
	}
	if f.fail != nil {
		if err := f.fail(ctx, req); err != nil {
			return nil, err
		}
	}
	s := raster.New(2, 1, 1)
	s.Fill(palette.MustParse(req.BackgroundColor))
	return s, nil
}

func (f *fakeRenderer) scales() []float64 {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]float64, len(f.calls))
	for i, r := range f.calls {
		out[i] = r.Scale
	}
	return out
}

func testInput(access bool) Input {
	theme, _ := palette.Lookup("ocean")
	return Input{
		Request: card.Request{
			Grid:         grid.Spec{Total: 52, Filled: 10, PerRow: 13, CellSize: 10, Gap: 4},
			Title:        "My year",
			ProgressText: "10 / 52 weeks",
			PercentText:  "19%",
		},
		Theme:     theme,
		Name:      "Jane Doe",
		HasAccess: access,
	}
}

var fixedNames = export.Filenames{
	Now: func() time.Time { return time.Date(2024, 3, 9, 8, 0, 0, 0, time.Local) },
}

func waitFor(t *testing.T, c *Controller, what string, cond func(Snapshot) bool) Snapshot {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for {
		s := c.Snapshot()
		if cond(s) {
			return s
		}
		if time.Now().After(deadline) {
			t.Fatalf("timed out waiting for %s; state=%s", what, s.State)
		}
		time.Sleep(2 * time.Millisecond)
	}
}

func previewColor(t *testing.T, s Snapshot) color.NRGBA {
	t.Helper()
	if s.Preview == nil {
		t.Fatal("no preview image")
	}
	return color.NRGBAModel.Convert(s.Preview.At(0, 0)).(color.NRGBA)
}

func TestOpenResetsToThemeDefaults(t *testing.T) {
	r := &fakeRenderer{}
	c := New(testInput(true), WithRenderer(r))

	if s := c.Snapshot(); s.Open || s.State != StateIdle {
		t.Fatalf("new controller: open=%v state=%s", s.Open, s.State)
	}

	c.Open()
	c.SetMode(ModePrint)
	c.SetPaper(export.PaperA4)
	if err := c.SetBackground("#000000"); err != nil {
		t.Fatal(err)
	}
	c.ZoomIn()
	c.Close()
	c.Wait()

	c.Open()
	c.Wait()
	s := c.Snapshot()
	want := Params{
		SizeScale:  SizeMedium,
		Background: "#ffffff",
		FontColor:  "#0f1b2a",
		MutedColor: "#51657a",
		FontFamily: FontSans,
		Paper:      export.PaperLetter,
		Mode:       ModeDownload,
	}
	if s.Params != want {
		t.Errorf("params after Open = %+v, want %+v", s.Params, want)
	}
	if s.Zoom != DefaultZoom {
		t.Errorf("zoom = %v, want %v", s.Zoom, DefaultZoom)
	}
	if s.State != StateReady || s.Error != "" {
		t.Errorf("state = %s error = %q", s.State, s.Error)
	}
	if got := previewColor(t, s); got != (color.NRGBA{255, 255, 255, 255}) {
		t.Errorf("preview color = %v, want white", got)
	}
}

func TestDefaultParamsFallbacks(t *testing.T) {
	p := DefaultParams(palette.Theme{})
	if p.Background != "#ffffff" || p.FontColor != "#111827" || p.MutedColor != "#6b7280" {
		t.Errorf("DefaultParams(zero theme) = %+v", p)
	}
}

func TestPreviewRendersAtPreviewScale(t *testing.T) {
	r := &fakeRenderer{}
	c := New(testInput(false), WithRenderer(r))
	c.Open()
	c.Wait()
	if got := r.scales(); len(got) != 1 || got[0] != PreviewScale {
		t.Errorf("render scales = %v, want [%d]", got, PreviewScale)
	}
}

func TestSettersWhileClosedDoNotRender(t *testing.T) {
	r := &fakeRenderer{}
	c := New(testInput(false), WithRenderer(r))
	if err := c.SetFontColor("#123456"); err != nil {
		t.Fatal(err)
	}
	c.Wait()
	if len(r.scales()) != 0 {
		t.Errorf("closed controller rendered %d times", len(r.scales()))
	}
}

func TestLatestStartedRenderWins(t *testing.T) {
	first := make(chan struct{})
	second := make(chan struct{})
	r := &fakeRenderer{
		gate: func(_ context.Context, req card.Request) <-chan struct{} {
			switch req.BackgroundColor {
			case "#111111":
				return first
			case "#222222":
				return second
			}
			return nil
		},
	}
	c := New(testInput(false), WithRenderer(r))
	c.Open()
	c.Wait()

	c.SetBackground("#111111")
	c.SetBackground("#222222")
	latest := c.Snapshot().Token

	// The newer render completes first and publishes.
	close(second)
	waitFor(t, c, "second render", func(s Snapshot) bool { return s.State == StateReady })
	// The older render completes afterwards and must not replace it.
	close(first)
	c.Wait()

	s := c.Snapshot()
	if s.Token != latest {
		t.Errorf("token = %d, want %d", s.Token, latest)
	}
	if got := previewColor(t, s); got != (color.NRGBA{0x22, 0x22, 0x22, 255}) {
		t.Errorf("preview color = %v, want #222222", got)
	}
}

func TestSupersededRenderIsCancelledAndIgnored(t *testing.T) {
	var cancelled atomic.Bool
	r := &fakeRenderer{
		fail: func(ctx context.Context, req card.Request) error {
			if req.BackgroundColor != "#111111" {
				return nil
			}
			<-ctx.Done()
			cancelled.Store(true)
			return ctx.Err()
		},
	}
	c := New(testInput(false), WithRenderer(r))
	c.Open()
	c.Wait()

	c.SetBackground("#111111")
	c.SetBackground("#333333")
	c.Wait()

	if !cancelled.Load() {
		t.Error("superseded render context was not cancelled")
	}
	s := c.Snapshot()
	if s.State != StateReady || s.Error != "" {
		t.Errorf("state = %s error = %q, want ready without error", s.State, s.Error)
	}
	if got := previewColor(t, s); got != (color.NRGBA{0x33, 0x33, 0x33, 255}) {
		t.Errorf("preview color = %v, want #333333", got)
	}
}

func TestPreviewFailureIsRecoverable(t *testing.T) {
	r := &fakeRenderer{
		fail: func(_ context.Context, req card.Request) error {
			if req.BackgroundColor == "#ff0000" {
				return stderrors.New("boom")
			}
			return nil
		},
	}
	c := New(testInput(false), WithRenderer(r))
	c.Open()
	c.Wait()

	c.SetBackground("#ff0000")
	c.Wait()
	if s := c.Snapshot(); s.State != StateFailed || s.Error != MsgPreviewFailed {
		t.Fatalf("state = %s error = %q", s.State, s.Error)
	}

	c.SetBackground("#00ff00")
	c.Wait()
	if s := c.Snapshot(); s.State != StateReady || s.Error != "" {
		t.Errorf("after recovery state = %s error = %q", s.State, s.Error)
	}
}

func TestCloseDropsInFlightPreview(t *testing.T) {
	gate := make(chan struct{})
	r := &fakeRenderer{
		gate: func(context.Context, card.Request) <-chan struct{} { return gate },
	}
	c := New(testInput(false), WithRenderer(r))
	c.Open()
	c.Close()
	close(gate)
	c.Wait()

	if s := c.Snapshot(); s.State != StateIdle || s.Preview != nil {
		t.Errorf("after close state = %s preview = %v", s.State, s.Preview != nil)
	}
}

func TestRequestScaling(t *testing.T) {
	tests := []struct {
		name           string
		cell, gap      float64
		size           float64
		wantCell, want float64
	}{
		{"medium", 10, 4, SizeMedium, 10, 4},
		{"large", 10, 4, SizeLarge, 12, 4.8},
		{"small", 10, 4, SizeSmall, 8.5, 3.4},
		{"clamped high", 18, 11, SizeLarge, 20, 12},
		{"clamped low", 1, 0.2, SizeSmall, 2, 0.5},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			in := testInput(false)
			in.Request.Grid.CellSize = tt.cell
			in.Request.Grid.Gap = tt.gap
			c := New(in, WithRenderer(&fakeRenderer{}))
			if err := c.SetSizeScale(tt.size); err != nil {
				t.Fatal(err)
			}
			req := c.Request(DownloadScale)
			if !near(req.Grid.CellSize, tt.wantCell) || !near(req.Grid.Gap, tt.want) {
				t.Errorf("cell/gap = %v/%v, want %v/%v", req.Grid.CellSize, req.Grid.Gap, tt.wantCell, tt.want)
			}
			if req.Scale != DownloadScale || req.FooterName != "Jane Doe" || req.FontFamily != FontSans {
				t.Errorf("request = %+v", req)
			}
		})
	}
}

func near(a, b float64) bool {
	d := a - b
	return d < 1e-9 && d > -1e-9
}

func TestSetterValidation(t *testing.T) {
	c := New(testInput(false), WithRenderer(&fakeRenderer{}))
	if err := c.SetSizeScale(0); !errors.Is(err, errors.ErrCodeInvalidInput) {
		t.Errorf("SetSizeScale(0) error = %v", err)
	}
	if err := c.SetBackground("blue"); !errors.Is(err, errors.ErrCodeInvalidColor) {
		t.Errorf("SetBackground(blue) error = %v", err)
	}
	if err := c.SetFontFamily("bad\x00font"); err == nil {
		t.Error("SetFontFamily with control char should fail")
	}
	if s := c.Snapshot(); s.Params.Background != "#ffffff" {
		t.Errorf("invalid color was applied: %q", s.Params.Background)
	}
}

func TestSetModeRequiresAccess(t *testing.T) {
	c := New(testInput(false), WithRenderer(&fakeRenderer{}))
	c.SetMode(ModePrint)
	if s := c.Snapshot(); s.Params.Mode != ModeDownload || s.CanShowPrintEditor() {
		t.Errorf("mode = %s without access", s.Params.Mode)
	}

	c = New(testInput(true), WithRenderer(&fakeRenderer{}))
	c.SetMode(ModePrint)
	s := c.Snapshot()
	if s.Params.Mode != ModePrint || !s.CanShowPrintEditor() || s.PanelTitle() != "Ready for print" {
		t.Errorf("mode = %s editor = %v title = %q", s.Params.Mode, s.CanShowPrintEditor(), s.PanelTitle())
	}
}

func TestDownload(t *testing.T) {
	r := &fakeRenderer{}
	c := New(testInput(false), WithRenderer(r), WithFilenames(fixedNames))

	for _, tt := range []struct {
		format export.Format
		name   string
		mime   string
	}{
		{export.FormatPNG, "dotspan-jane-doe-2024-03-09.png", "image/png"},
		{export.FormatJPG, "dotspan-jane-doe-2024-03-09.jpg", "image/jpeg"},
	} {
		art, err := c.Download(context.Background(), tt.format)
		if err != nil {
			t.Fatalf("Download(%s) error = %v", tt.format, err)
		}
		if art.Filename != tt.name || art.ContentType != tt.mime || len(art.Data) == 0 {
			t.Errorf("artifact = %s %s %d bytes", art.Filename, art.ContentType, len(art.Data))
		}
	}
	for _, s := range r.scales() {
		if s != DownloadScale {
			t.Errorf("download rendered at scale %v, want %d", s, DownloadScale)
		}
	}

	art, _ := c.Download(context.Background(), export.FormatPNG)
	if _, err := png.Decode(bytes.NewReader(art.Data)); err != nil {
		t.Errorf("png artifact does not decode: %v", err)
	}

	if _, err := c.Download(context.Background(), export.FormatPDF); !errors.Is(err, errors.ErrCodeInvalidFormat) {
		t.Errorf("Download(pdf) error = %v", err)
	}
	if s := c.Snapshot(); s.Exporting {
		t.Error("still exporting after downloads")
	}
}

func TestPrint(t *testing.T) {
	r := &fakeRenderer{}
	c := New(testInput(true), WithRenderer(r), WithFilenames(fixedNames))
	c.SetPaper(export.PaperA4)

	art, err := c.Print(context.Background())
	if err != nil {
		t.Fatalf("Print() error = %v", err)
	}
	if art.Filename != "dotspan-jane-doe-2024-03-09.html" {
		t.Errorf("filename = %q", art.Filename)
	}
	doc := string(art.Data)
	for _, want := range []string{"size: A4", "data:image/png;base64,", "<title>dotspan-jane-doe-2024-03-09.pdf</title>"} {
		if !strings.Contains(doc, want) {
			t.Errorf("print document missing %q", want)
		}
	}
	if got := r.scales(); len(got) != 1 || got[0] != PrintScale {
		t.Errorf("render scales = %v, want [%d]", got, PrintScale)
	}
}

func TestPrintRequiresAccess(t *testing.T) {
	r := &fakeRenderer{}
	c := New(testInput(false), WithRenderer(r))
	_, err := c.Print(context.Background())
	if !stderrors.Is(err, ErrNoAccess) || !errors.Is(err, errors.ErrCodeForbidden) {
		t.Errorf("Print() error = %v, want ErrNoAccess", err)
	}
	if len(r.scales()) != 0 {
		t.Error("print without access rendered")
	}
}

func TestSecondExportIsBusy(t *testing.T) {
	gate := make(chan struct{})
	started := make(chan struct{}, 1)
	r := &fakeRenderer{
		gate: func(_ context.Context, req card.Request) <-chan struct{} {
			if req.Scale == DownloadScale {
				started <- struct{}{}
				return gate
			}
			return nil
		},
	}
	c := New(testInput(true), WithRenderer(r))

	done := make(chan error, 1)
	go func() {
		_, err := c.Download(context.Background(), export.FormatPNG)
		done <- err
	}()
	<-started

	if !c.Snapshot().Exporting {
		t.Error("Exporting not set during download")
	}
	if _, err := c.Download(context.Background(), export.FormatJPG); !stderrors.Is(err, ErrBusy) {
		t.Errorf("second Download() error = %v, want ErrBusy", err)
	}
	if _, err := c.Print(context.Background()); !errors.Is(err, errors.ErrCodeBusy) {
		t.Errorf("Print() during download error = %v, want busy", err)
	}

	// Closing and switching modes leave the export running.
	c.Close()
	c.SetMode(ModePrint)
	close(gate)
	if err := <-done; err != nil {
		t.Errorf("first Download() error = %v", err)
	}
	if c.Snapshot().Exporting {
		t.Error("Exporting still set after download finished")
	}
}

func TestExportFailureMessages(t *testing.T) {
	r := &fakeRenderer{
		fail: func(_ context.Context, req card.Request) error {
			if req.Scale != PreviewScale {
				return stderrors.New("render failed")
			}
			return nil
		},
	}
	c := New(testInput(true), WithRenderer(r))

	if _, err := c.Download(context.Background(), export.FormatPNG); err == nil {
		t.Fatal("Download() should fail")
	}
	if s := c.Snapshot(); s.Error != MsgDownloadFailed || s.Exporting {
		t.Errorf("after download failure error = %q exporting = %v", s.Error, s.Exporting)
	}

	if _, err := c.Print(context.Background()); err == nil {
		t.Fatal("Print() should fail")
	}
	if s := c.Snapshot(); s.Error != MsgPrintFailed {
		t.Errorf("after print failure error = %q", s.Error)
	}

	// The controller stays usable.
	c.Open()
	c.Wait()
	if s := c.Snapshot(); s.State != StateReady || s.Error != "" {
		t.Errorf("after reopen state = %s error = %q", s.State, s.Error)
	}
}

func TestNotify(t *testing.T) {
	var mu sync.Mutex
	var states []State
	c := New(testInput(false),
		WithRenderer(&fakeRenderer{}),
		WithNotify(func(s Snapshot) {
			mu.Lock()
			states = append(states, s.State)
			mu.Unlock()
		}))
	c.Open()
	c.Wait()

	mu.Lock()
	defer mu.Unlock()
	if len(states) < 2 || states[0] != StateRendering || states[len(states)-1] != StateReady {
		t.Errorf("notified states = %v, want rendering ... ready", states)
	}
}

func TestSnapshotSeqOrdersDelayedNotifications(t *testing.T) {
	var (
		mu      sync.Mutex
		newest  Snapshot
		arrived []uint64
	)
	blocked := make(chan struct{})
	release := make(chan struct{})
	var once sync.Once
	c := New(testInput(false),
		WithRenderer(&fakeRenderer{}),
		WithNotify(func(s Snapshot) {
			if s.State == StateReady && s.Params.Background == "#111111" {
				once.Do(func() {
					close(blocked)
					<-release
				})
			}
			mu.Lock()
			defer mu.Unlock()
			arrived = append(arrived, s.Seq)
			if s.Seq > newest.Seq {
				newest = s
			}
		}))
	c.Open()
	c.Wait()

	c.SetBackground("#111111")
	<-blocked
	c.SetBackground("#222222")
	waitFor(t, c, "second render", func(s Snapshot) bool {
		return s.State == StateReady && s.Params.Background == "#222222"
	})
	close(release)
	c.Wait()

	mu.Lock()
	defer mu.Unlock()
	if last := arrived[len(arrived)-1]; last >= newest.Seq {
		t.Fatalf("delayed notification was not delivered last: arrived %v", arrived)
	}
	want := c.Snapshot()
	if newest.State != want.State || newest.Params != want.Params {
		t.Errorf("newest snapshot state=%s bg=%s, controller state=%s bg=%s",
			newest.State, newest.Params.Background, want.State, want.Params.Background)
	}
	if newest.Seq >= want.Seq {
		t.Errorf("controller seq %d not after notified seq %d", want.Seq, newest.Seq)
	}
}
