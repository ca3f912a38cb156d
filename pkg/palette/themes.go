package palette

import (
	"github.com/dotspan/dotspan/pkg/errors"
)

// Theme is a named app theme. Only the tokens the exporter reads are kept.
type Theme struct {
	ID        string   `json:"id"`
	Name      string   `json:"name"`
	Surface   string   `json:"surface"`
	Border    string   `json:"border"`
	Text      string   `json:"text"`
	Muted     string   `json:"muted"`
	DotFilled string   `json:"dot_filled"`
	DotEmpty  string   `json:"dot_empty"`
	Rainbow   []string `json:"rainbow"`
}

// Palette maps the theme tokens onto export colors.
func (t Theme) Palette() Palette {
	return Palette{
		Filled:     t.DotFilled,
		Empty:      t.DotEmpty,
		Border:     t.Border,
		Text:       t.Text,
		Muted:      t.Muted,
		Background: t.Surface,
		Rainbow:    append([]string(nil), t.Rainbow...),
	}
}

// DefaultThemeID is the theme used when none is configured.
const DefaultThemeID = "classic"

var themes = []Theme{
	{ID: "classic", Name: "Classic", Surface: "#ffffff", Border: "#e5e7eb", Text: "#111827", Muted: "#6b7280", DotFilled: "#111827", DotEmpty: "#e5e7eb"},
	{ID: "aurora", Name: "Aurora", Surface: "#ffffff", Border: "#dce7e4", Text: "#0f1f1b", Muted: "#5a6e69", DotFilled: "#0f1f1b", DotEmpty: "#dce7e4"},
	{ID: "sunset", Name: "Sunset", Surface: "#ffffff", Border: "#f1d7cc", Text: "#2b1710", Muted: "#7a5547", DotFilled: "#2b1710", DotEmpty: "#f1d7cc"},
	{ID: "ocean", Name: "Ocean", Surface: "#ffffff", Border: "#d7e4ef", Text: "#0f1b2a", Muted: "#51657a", DotFilled: "#0f1b2a", DotEmpty: "#d7e4ef"},
	{ID: "citrus", Name: "Citrus", Surface: "#ffffff", Border: "#e3e7d6", Text: "#1f2a10", Muted: "#65704f", DotFilled: "#1f2a10", DotEmpty: "#e3e7d6"},
	{ID: "rose", Name: "Rose", Surface: "#ffffff", Border: "#f0d7de", Text: "#2b1119", Muted: "#7a4a58", DotFilled: "#2b1119", DotEmpty: "#f0d7de"},
	{ID: "slate", Name: "Slate", Surface: "#ffffff", Border: "#dde1e7", Text: "#1c2330", Muted: "#5b6778", DotFilled: "#1c2330", DotEmpty: "#dde1e7"},
	{ID: "desert", Name: "Desert", Surface: "#ffffff", Border: "#f1e0c9", Text: "#3a2614", Muted: "#7a5c40", DotFilled: "#3a2614", DotEmpty: "#f1e0c9"},
}

// Themes returns the built-in themes in display order.
func Themes() []Theme {
	out := make([]Theme, len(themes))
	for i, t := range themes {
		t.Rainbow = append([]string(nil), DefaultRainbow...)
		out[i] = t
	}
	return out
}

// Lookup finds a built-in theme by id.
func Lookup(id string) (Theme, bool) {
	for _, t := range Themes() {
		if t.ID == id {
			return t, true
		}
	}
	return Theme{}, false
}

// For returns the export palette for a theme id.
// The empty id yields [Classic]; unknown ids are an error.
func For(id string) (Palette, error) {
	if id == "" {
		return Classic(), nil
	}
	t, ok := Lookup(id)
	if !ok {
		return Palette{}, errors.New(errors.ErrCodeInvalidTheme, "unknown theme %q", id)
	}
	return t.Palette(), nil
}

// ThemeIDs returns the ids of all built-in themes.
func ThemeIDs() []string {
	ids := make([]string, len(themes))
	for i, t := range themes {
		ids[i] = t.ID
	}
	return ids
}
