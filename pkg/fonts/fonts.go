// Package fonts resolves card font families to OpenType faces.
//
// A card names its font the way a stylesheet does ("Inter, sans-serif",
// "Georgia, serif", "monospace"). [ResolveFamily] reduces that to one of three
// generic families. A [Library] then finds a matching system font through
// go-findfont and falls back to the Go fonts embedded in golang.org/x/image
// when none is installed, so rendering never depends on the host.
//
// Parsed fonts are shared by every caller. Faces are not safe for concurrent
// drawing, so [Library.NewFace] always returns a fresh face; measurement goes
// through an internal, locked face cache.
package fonts

import (
	"fmt"
	"os"
	"strings"
	"sync"

	"github.com/flopp/go-findfont"
	"golang.org/x/image/font"
	"golang.org/x/image/font/gofont/gobold"
	"golang.org/x/image/font/gofont/gomono"
	"golang.org/x/image/font/gofont/gomonobold"
	"golang.org/x/image/font/gofont/goregular"
	"golang.org/x/image/font/opentype"
	"golang.org/x/image/math/fixed"
)

// Family is a generic font family.
type Family string

const (
	Sans  Family = "sans"
	Serif Family = "serif"
	Mono  Family = "mono"
)

// Common weights used on the card.
const (
	WeightRegular   = 400
	WeightSemiBold  = 600
	WeightExtraBold = 800
)

// boldThreshold is the lowest weight drawn with a bold face.
const boldThreshold = 600

// Spec identifies a face: family, CSS-style weight and pixel size.
type Spec struct {
	Family Family
	Weight int
	Size   float64
}

// Bold reports whether the spec selects a bold face.
func (s Spec) Bold() bool { return s.Weight >= boldThreshold }

// Scaled returns a copy of s with the size multiplied by k.
func (s Spec) Scaled(k float64) Spec {
	s.Size *= k
	return s
}

// ResolveFamily maps a CSS font-family list onto a generic family.
// Anything unrecognised resolves to [Sans].
func ResolveFamily(css string) Family {
	v := strings.ToLower(css)
	switch {
	case v == "":
		return Sans
	case strings.Contains(v, "mono"), strings.Contains(v, "courier"):
		return Mono
	case strings.Contains(v, "sans"):
		return Sans
	case strings.Contains(v, "serif"), strings.Contains(v, "georgia"), strings.Contains(v, "times"):
		return Serif
	default:
		return Sans
	}
}

// systemCandidates lists file names probed with go-findfont, in order.
var systemCandidates = map[Family]map[bool][]string{
	Sans: {
		false: {"Arial.ttf", "LiberationSans-Regular.ttf", "DejaVuSans.ttf", "Roboto-Regular.ttf"},
		true:  {"Arial Bold.ttf", "arialbd.ttf", "LiberationSans-Bold.ttf", "DejaVuSans-Bold.ttf", "Roboto-Bold.ttf"},
	},
	Serif: {
		false: {"Georgia.ttf", "LiberationSerif-Regular.ttf", "DejaVuSerif.ttf", "Times New Roman.ttf"},
		true:  {"Georgia Bold.ttf", "georgiab.ttf", "LiberationSerif-Bold.ttf", "DejaVuSerif-Bold.ttf"},
	},
	Mono: {
		false: {"Courier New.ttf", "cour.ttf", "LiberationMono-Regular.ttf", "DejaVuSansMono.ttf"},
		true:  {"Courier New Bold.ttf", "courbd.ttf", "LiberationMono-Bold.ttf", "DejaVuSansMono-Bold.ttf"},
	},
}

// embedded returns the bundled fallback for a family. There is no Go serif
// font, so serif falls back to the proportional sans.
func embedded(f Family, bold bool) []byte {
	switch {
	case f == Mono && bold:
		return gomonobold.TTF
	case f == Mono:
		return gomono.TTF
	case bold:
		return gobold.TTF
	default:
		return goregular.TTF
	}
}

// Option configures a [Library].
type Option func(*Library)

// WithSystemFonts enables or disables the system font lookup.
// Tests disable it to get the same glyphs on every machine.
func WithSystemFonts(enabled bool) Option {
	return func(l *Library) { l.system = enabled }
}

// WithFontFile registers a font file for a family and boldness, taking
// precedence over system and embedded fonts.
func WithFontFile(f Family, bold bool, path string) Option {
	return func(l *Library) { l.files[fontKey{f, bold}] = path }
}

type fontKey struct {
	family Family
	bold   bool
}

// Library loads fonts lazily and caches parsed fonts and measuring faces.
// It is safe for concurrent use.
type Library struct {
	system bool
	files  map[fontKey]string

	mu      sync.Mutex
	parsed  map[fontKey]*opentype.Font
	sources map[fontKey]string
	measure map[Spec]font.Face
}

// New creates a Library. System fonts are used when found.
func New(opts ...Option) *Library {
	l := &Library{
		system:  true,
		files:   make(map[fontKey]string),
		parsed:  make(map[fontKey]*opentype.Font),
		sources: make(map[fontKey]string),
		measure: make(map[Spec]font.Face),
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// Source reports where the font for a family and boldness was loaded from:
// a file path, or "embedded".
func (l *Library) Source(f Family, bold bool) string {
	if _, err := l.font(fontKey{f, bold}); err != nil {
		return ""
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.sources[fontKey{f, bold}]
}

// NewFace creates a face for spec. The caller owns the face and must not
// share it between goroutines.
func (l *Library) NewFace(spec Spec) (font.Face, error) {
	if spec.Size <= 0 {
		return nil, fmt.Errorf("font size must be positive, got %g", spec.Size)
	}
	f, err := l.font(fontKey{normalize(spec.Family), spec.Bold()})
	if err != nil {
		return nil, err
	}
	face, err := opentype.NewFace(f, &opentype.FaceOptions{
		Size:    spec.Size,
		DPI:     72,
		Hinting: font.HintingNone,
	})
	if err != nil {
		return nil, fmt.Errorf("create %s face at %.1fpx: %w", spec.Family, spec.Size, err)
	}
	return face, nil
}

// Measure returns the advance width of text set in spec, in pixels.
func (l *Library) Measure(text string, spec Spec) float64 {
	if text == "" {
		return 0
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	face, err := l.measureFaceLocked(spec)
	if err != nil {
		return 0
	}
	return fixedToFloat(font.MeasureString(face, text))
}

// Ascent returns the ascent of spec in pixels.
func (l *Library) Ascent(spec Spec) float64 {
	l.mu.Lock()
	defer l.mu.Unlock()
	face, err := l.measureFaceLocked(spec)
	if err != nil {
		return 0
	}
	return fixedToFloat(face.Metrics().Ascent)
}

// Close releases every cached face.
func (l *Library) Close() error {
	l.mu.Lock()
	defer l.mu.Unlock()
	for k, f := range l.measure {
		f.Close()
		delete(l.measure, k)
	}
	return nil
}

func (l *Library) measureFaceLocked(spec Spec) (font.Face, error) {
	spec.Family = normalize(spec.Family)
	if face, ok := l.measure[spec]; ok {
		return face, nil
	}
	f, err := l.fontLocked(fontKey{spec.Family, spec.Bold()})
	if err != nil {
		return nil, err
	}
	face, err := opentype.NewFace(f, &opentype.FaceOptions{Size: spec.Size, DPI: 72, Hinting: font.HintingNone})
	if err != nil {
		return nil, err
	}
	l.measure[spec] = face
	return face, nil
}

func (l *Library) font(k fontKey) (*opentype.Font, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.fontLocked(k)
}

func (l *Library) fontLocked(k fontKey) (*opentype.Font, error) {
	if f, ok := l.parsed[k]; ok {
		return f, nil
	}
	if path, ok := l.files[k]; ok {
		if f, err := parseFile(path); err == nil {
			l.store(k, f, path)
			return f, nil
		}
	}
	if l.system {
		for _, name := range systemCandidates[k.family][k.bold] {
			path, err := findfont.Find(name)
			if err != nil {
				continue
			}
			if f, err := parseFile(path); err == nil {
				l.store(k, f, path)
				return f, nil
			}
		}
	}
	f, err := opentype.Parse(embedded(k.family, k.bold))
	if err != nil {
		return nil, fmt.Errorf("parse embedded %s font: %w", k.family, err)
	}
	l.store(k, f, "embedded")
	return f, nil
}

func (l *Library) store(k fontKey, f *opentype.Font, source string) {
	l.parsed[k] = f
	l.sources[k] = source
}

func parseFile(path string) (*opentype.Font, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	return opentype.Parse(data)
}

func normalize(f Family) Family {
	switch f {
	case Sans, Serif, Mono:
		return f
	default:
		return ResolveFamily(string(f))
	}
}

func fixedToFloat(v fixed.Int26_6) float64 {
	return float64(v) / 64
}
