package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"math"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/dotspan/dotspan/pkg/card"
	"github.com/dotspan/dotspan/pkg/config"
	"github.com/dotspan/dotspan/pkg/errors"
	"github.com/dotspan/dotspan/pkg/grid"
	"github.com/dotspan/dotspan/pkg/palette"
	"github.com/dotspan/dotspan/pkg/preview"
)

// Grid defaults for cards described on the command line.
const (
	defaultPerRow   = 20
	defaultCellSize = 10
	defaultGap      = 4
)

// cardFlags holds the flags that describe one card. render, print and
// preview share them.
type cardFlags struct {
	requestFile string // JSON card request; flags set explicitly override it

	total    int
	filled   int
	perRow   int
	style    string
	cellSize float64
	gap      float64

	theme        string
	title        string
	progressText string
	percentText  string
	footerText   string
	name         string
	flagURL      string

	font       string
	textColor  string
	mutedColor string
	background string
}

// register adds the card flags to cmd.
func (f *cardFlags) register(cmd *cobra.Command) {
	fl := cmd.Flags()
	fl.StringVar(&f.requestFile, "request", "", "JSON card request file (- for stdin)")

	fl.IntVar(&f.total, "total", 0, "number of units in the span")
	fl.IntVar(&f.filled, "filled", 0, "number of elapsed units")
	fl.IntVar(&f.perRow, "per-row", defaultPerRow, "cells per row")
	fl.StringVar(&f.style, "style", string(grid.StyleClassic), "grid style: classic, rainbow")
	fl.Float64Var(&f.cellSize, "cell", defaultCellSize, "cell size in logical pixels")
	fl.Float64Var(&f.gap, "gap", defaultGap, "gap between cells in logical pixels")

	fl.StringVar(&f.theme, "theme", "", "theme id (default from config)")
	fl.StringVar(&f.title, "title", "", "card title")
	fl.StringVar(&f.progressText, "progress", "", "progress text (default \"<filled> / <total>\")")
	fl.StringVar(&f.percentText, "percent", "", "percent text (default computed)")
	fl.StringVar(&f.footerText, "footer", "", "footer text")
	fl.StringVar(&f.name, "name", "", "owner name shown in the footer and used for filenames")
	fl.StringVar(&f.flagURL, "flag", "", "flag icon URL, data URL or file")

	fl.StringVar(&f.font, "font", "", "font: sans, serif, mono or a CSS font stack (default from config)")
	fl.StringVar(&f.textColor, "text-color", "", "primary text color (hex)")
	fl.StringVar(&f.mutedColor, "muted-color", "", "secondary text color (hex)")
	fl.StringVar(&f.background, "background", "", "background color (hex)")
}

// build turns the flags into a card request and its theme. Flags changed on
// the command line win over the request file, which wins over defaults.
func (f *cardFlags) build(cmd *cobra.Command, cfg config.Config) (card.Request, palette.Theme, error) {
	var req card.Request
	if f.requestFile != "" {
		r, err := readRequest(cmd.InOrStdin(), f.requestFile)
		if err != nil {
			return card.Request{}, palette.Theme{}, err
		}
		req = r
	}
	changed := cmd.Flags().Changed
	fromFile := f.requestFile != ""

	setInt := func(flag string, dst *int, v int) {
		if changed(flag) || !fromFile {
			*dst = v
		}
	}
	setFloat := func(flag string, dst *float64, v float64) {
		if changed(flag) || !fromFile {
			*dst = v
		}
	}
	setString := func(flag string, dst *string, v string) {
		if changed(flag) || (!fromFile && v != "") {
			*dst = v
		}
	}

	setInt("total", &req.Grid.Total, f.total)
	setInt("filled", &req.Grid.Filled, f.filled)
	if changed("per-row") || req.Grid.PerRow == 0 {
		req.Grid.PerRow = f.perRow
	}
	// A zero cell size cannot be drawn, but a zero gap is a valid layout.
	if changed("cell") || req.Grid.CellSize == 0 {
		req.Grid.CellSize = f.cellSize
	}
	setFloat("gap", &req.Grid.Gap, f.gap)
	if changed("style") || req.Grid.Style == "" {
		style, err := grid.ParseStyle(f.style)
		if err != nil {
			return card.Request{}, palette.Theme{}, err
		}
		req.Grid.Style = style
	}

	setString("title", &req.Title, f.title)
	setString("progress", &req.ProgressText, f.progressText)
	setString("percent", &req.PercentText, f.percentText)
	setString("footer", &req.FooterText, f.footerText)
	setString("name", &req.FooterName, f.name)
	setString("flag", &req.FooterFlagURL, f.flagURL)
	setString("text-color", &req.TextColor, f.textColor)
	setString("muted-color", &req.MutedColor, f.mutedColor)
	setString("background", &req.BackgroundColor, f.background)

	if req.ProgressText == "" {
		req.ProgressText = progressText(req.Grid)
	}
	if req.PercentText == "" {
		req.PercentText = percentText(req.Grid)
	}

	font := f.font
	if font == "" && req.FontFamily == "" {
		font = cfg.Font
	}
	if font != "" {
		req.FontFamily = fontFamily(font)
	}

	themeID := f.theme
	if themeID == "" {
		themeID = cfg.Theme
	}
	theme, ok := palette.Lookup(themeID)
	if !ok {
		return card.Request{}, palette.Theme{}, errors.New(errors.ErrCodeInvalidTheme,
			"unknown theme %q (available: %s)", themeID, strings.Join(palette.ThemeIDs(), ", "))
	}
	if req.Palette.IsZero() || changed("theme") {
		req.Palette = theme.Palette()
	}

	if err := req.Validate(); err != nil {
		return card.Request{}, palette.Theme{}, err
	}
	return req, theme, nil
}

// readRequest decodes a JSON card request from path, or from stdin for "-".
func readRequest(stdin io.Reader, path string) (card.Request, error) {
	r := stdin
	if path != "-" {
		f, err := os.Open(path)
		if err != nil {
			return card.Request{}, fmt.Errorf("open request: %w", err)
		}
		defer f.Close()
		r = f
	}
	var req card.Request
	dec := json.NewDecoder(r)
	dec.DisallowUnknownFields()
	if err := dec.Decode(&req); err != nil {
		return card.Request{}, errors.Wrap(errors.ErrCodeInvalidInput, err, "decode request %s", path)
	}
	return req, nil
}

// fontFamily maps the short names sans, serif and mono onto the CSS stacks
// the controls offer. Anything else is taken as a CSS stack.
func fontFamily(name string) string {
	for _, c := range preview.FontChoices {
		if strings.EqualFold(c.Label, name) {
			return c.Value
		}
	}
	return name
}

func progressText(g grid.Spec) string {
	return fmt.Sprintf("%d / %d", g.Filled, g.Total)
}

func percentText(g grid.Spec) string {
	if g.Total <= 0 {
		return "0%"
	}
	return fmt.Sprintf("%d%%", int(math.Round(float64(g.Filled)*100/float64(g.Total))))
}
