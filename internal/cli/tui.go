package cli

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/dotspan/dotspan/pkg/errors"
	"github.com/dotspan/dotspan/pkg/export"
	"github.com/dotspan/dotspan/pkg/palette"
	"github.com/dotspan/dotspan/pkg/preview"
)

// Preview panel styles
var (
	panelLabelStyle  = lipgloss.NewStyle().Foreground(colorGray).Width(11)
	panelActiveStyle = lipgloss.NewStyle().Bold(true).Foreground(colorCyan)
	panelHelpStyle   = lipgloss.NewStyle().Foreground(colorDim)
	panelFrameStyle  = lipgloss.NewStyle().Border(lipgloss.RoundedBorder()).BorderForeground(colorDim)
)

// doubleClickWindow is the longest gap between two clicks that toggles zoom.
const doubleClickWindow = 400 * time.Millisecond

// =============================================================================
// Messages
// =============================================================================

// snapshotMsg carries a controller snapshot into the program.
type snapshotMsg preview.Snapshot

// exportedMsg reports a finished download or print.
type exportedMsg struct {
	path string
	err  error
}

// colorField identifies the color being edited.
type colorField int

const (
	editNone colorField = iota
	editBackground
	editFontColor
	editMutedColor
)

func (f colorField) label() string {
	switch f {
	case editBackground:
		return "Background"
	case editFontColor:
		return "Text color"
	case editMutedColor:
		return "Muted color"
	default:
		return ""
	}
}

// =============================================================================
// PreviewModel - Interactive export preview
// =============================================================================

// PreviewModel is the bubbletea model over one preview session.
type PreviewModel struct {
	ctrl   *preview.Controller
	ctx    context.Context
	outDir string
	opener export.Opener
	open   bool
	font   string // initial font stack, applied after the session opens

	snap   preview.Snapshot
	width  int
	height int

	editing colorField
	input   string
	status  string
	failed  bool

	lastClick time.Time
}

// NewPreviewModel creates a model over ctrl. Exports are written to outDir
// and opened with opener when open is set.
func NewPreviewModel(ctx context.Context, ctrl *preview.Controller, outDir string, opener export.Opener, open bool) PreviewModel {
	return PreviewModel{
		ctrl:   ctrl,
		ctx:    ctx,
		outDir: outDir,
		opener: opener,
		open:   open,
		snap:   ctrl.Snapshot(),
		width:  80,
		height: 24,
	}
}

func (m PreviewModel) Init() tea.Cmd {
	ctrl, font := m.ctrl, m.font
	return func() tea.Msg {
		ctrl.Open()
		if font != "" && font != preview.FontSans {
			ctrl.SetFontFamily(font)
		}
		return nil
	}
}

func (m PreviewModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case snapshotMsg:
		// Notifications race each other into the program; keep the newest.
		if msg.Seq < m.snap.Seq {
			return m, nil
		}
		m.snap = preview.Snapshot(msg)
	case exportedMsg:
		if msg.err != nil {
			m.status, m.failed = exportError(msg.err), true
		} else {
			m.status, m.failed = "Saved "+msg.path, false
		}
	case tea.WindowSizeMsg:
		m.width, m.height = msg.Width, msg.Height
	case tea.MouseMsg:
		return m.handleMouse(msg)
	case tea.KeyMsg:
		if m.editing != editNone {
			return m.handleEdit(msg)
		}
		return m.handleKey(msg)
	}
	return m, nil
}

func (m PreviewModel) handleMouse(msg tea.MouseMsg) (tea.Model, tea.Cmd) {
	switch {
	case msg.Button == tea.MouseButtonWheelUp:
		m.ctrl.Wheel(-1)
	case msg.Button == tea.MouseButtonWheelDown:
		m.ctrl.Wheel(1)
	case msg.Button == tea.MouseButtonLeft && msg.Action == tea.MouseActionPress:
		now := time.Now()
		if now.Sub(m.lastClick) <= doubleClickWindow {
			m.ctrl.ToggleZoom()
			now = time.Time{}
		}
		m.lastClick = now
	}
	return m, nil
}

func (m PreviewModel) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	p := m.snap.Params
	switch msg.String() {
	case "q", "ctrl+c", "esc":
		m.ctrl.Close()
		return m, tea.Quit
	case "+", "=":
		m.ctrl.ZoomIn()
	case "-", "_":
		m.ctrl.ZoomOut()
	case "0":
		m.ctrl.ZoomReset()
	case "z":
		m.ctrl.ToggleZoom()
	case "s":
		m.ctrl.SetSizeScale(next(preview.SizeChoices, p.SizeScale))
	case "f":
		m.ctrl.SetFontFamily(next(preview.FontChoices, p.FontFamily))
	case "b":
		m.editing, m.input = editBackground, p.Background
	case "t":
		m.editing, m.input = editFontColor, p.FontColor
	case "u":
		m.editing, m.input = editMutedColor, p.MutedColor
	case "m":
		mode := preview.ModePrint
		if p.Mode == preview.ModePrint {
			mode = preview.ModeDownload
		}
		m.ctrl.SetMode(mode)
		if mode == preview.ModePrint && !m.snap.HasAccess {
			m.status, m.failed = exportError(preview.ErrNoAccess), true
		}
	case "a":
		if m.snap.CanShowPrintEditor() {
			paper := export.PaperA4
			if p.Paper == export.PaperA4 {
				paper = export.PaperLetter
			}
			m.ctrl.SetPaper(paper)
		}
	case "r":
		m.ctrl.Refresh()
	case "d":
		return m, m.exportCmd(export.FormatPNG)
	case "j":
		return m, m.exportCmd(export.FormatJPG)
	case "p", "enter":
		if p.Mode == preview.ModePrint {
			return m, m.exportCmd(export.FormatPDF)
		}
		if msg.String() == "enter" {
			return m, m.exportCmd(export.FormatPNG)
		}
	}
	return m, nil
}

// handleEdit collects a hex color. Enter applies it, esc cancels.
func (m PreviewModel) handleEdit(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.Type {
	case tea.KeyEsc:
		m.editing, m.input = editNone, ""
	case tea.KeyEnter:
		var err error
		switch m.editing {
		case editBackground:
			err = m.ctrl.SetBackground(m.input)
		case editFontColor:
			err = m.ctrl.SetFontColor(m.input)
		case editMutedColor:
			err = m.ctrl.SetMutedColor(m.input)
		}
		if err != nil {
			m.status, m.failed = errors.UserMessage(err), true
		} else {
			m.status, m.failed = "", false
		}
		m.editing, m.input = editNone, ""
	case tea.KeyBackspace:
		if n := len(m.input); n > 0 {
			m.input = m.input[:n-1]
		}
	case tea.KeyRunes:
		if len(m.input) < len("#rrggbb") {
			m.input += string(msg.Runes)
		}
	}
	return m, nil
}

// exportCmd runs a download or print off the update loop.
func (m PreviewModel) exportCmd(format export.Format) tea.Cmd {
	ctrl, ctx, dir, opener, open := m.ctrl, m.ctx, m.outDir, m.opener, m.open
	return func() tea.Msg {
		var (
			art export.Artifact
			err error
		)
		if format == export.FormatPDF {
			art, err = ctrl.Print(ctx)
		} else {
			art, err = ctrl.Download(ctx, format)
		}
		if err != nil {
			return exportedMsg{err: err}
		}
		path := filepath.Join(dir, art.Filename)
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return exportedMsg{err: err}
		}
		if err := os.WriteFile(path, art.Data, 0o644); err != nil {
			return exportedMsg{err: err}
		}
		if open || format == export.FormatPDF {
			if err := opener.Open(context.WithoutCancel(ctx), path); err != nil {
				return exportedMsg{path: path, err: err}
			}
		}
		return exportedMsg{path: path}
	}
}

func (m PreviewModel) View() string {
	var b strings.Builder
	s := m.snap

	b.WriteString(StyleTitle.Render(s.PanelTitle()))
	b.WriteString("  ")
	b.WriteString(StyleDim.Render(fmt.Sprintf("%d%%", s.ZoomPercent())))
	switch {
	case s.Generating():
		b.WriteString("  " + StyleDim.Render("Generating preview..."))
	case s.Exporting:
		b.WriteString("  " + StyleDim.Render("Exporting..."))
	}
	b.WriteString("\n")

	cols, rows := max(m.width-4, 10), max(m.height-14, 4)
	thumb := thumbnail(s.Preview, cols, rows, s.Zoom, palette.ParseOr(s.Params.Background, palette.MustParse("#ffffff")))
	if thumb == "" {
		thumb = StyleDim.Render("No preview yet")
	}
	b.WriteString(panelFrameStyle.Render(thumb))
	b.WriteString("\n")

	p := s.Params
	b.WriteString(m.row("Size", choiceLabel(preview.SizeChoices, p.SizeScale), "s"))
	b.WriteString(m.row("Font", choiceLabel(preview.FontChoices, p.FontFamily), "f"))
	b.WriteString(m.row("Background", swatch(p.Background)+" "+p.Background, "b"))
	b.WriteString(m.row("Text", swatch(p.FontColor)+" "+p.FontColor, "t"))
	b.WriteString(m.row("Muted", swatch(p.MutedColor)+" "+p.MutedColor, "u"))
	b.WriteString(m.row("Mode", string(p.Mode), "m"))
	if s.CanShowPrintEditor() {
		b.WriteString(m.row("Paper", string(p.Paper), "a"))
	}

	if m.editing != editNone {
		b.WriteString("\n" + panelActiveStyle.Render(m.editing.label()+": ") + m.input + "█\n")
	}
	if msg := m.message(); msg != "" {
		style := StyleDim
		if m.failed || s.Error != "" {
			style = StyleError
		}
		b.WriteString("\n" + style.Render(msg) + "\n")
	}

	help := "d png  j jpeg  +/- zoom  0 reset  z toggle zoom  r refresh  q quit"
	if p.Mode == preview.ModePrint {
		help = "p print  a paper  +/- zoom  0 reset  z toggle zoom  r refresh  q quit"
	}
	b.WriteString("\n" + panelHelpStyle.Render(help))
	return b.String()
}

// message prefers the session error over the last export status.
func (m PreviewModel) message() string {
	if m.snap.Error != "" {
		return m.snap.Error
	}
	return m.status
}

func (m PreviewModel) row(label, value, key string) string {
	return panelLabelStyle.Render(label) + " " + StyleValue.Render(value) + "  " + panelHelpStyle.Render("["+key+"]") + "\n"
}

// next returns the choice after current, wrapping around.
func next[T comparable](choices []preview.Choice[T], current T) T {
	for i, c := range choices {
		if c.Value == current {
			return choices[(i+1)%len(choices)].Value
		}
	}
	return choices[0].Value
}

// choiceLabel returns the label of current, or its value when it is not a
// listed choice.
func choiceLabel[T comparable](choices []preview.Choice[T], current T) string {
	for _, c := range choices {
		if c.Value == current {
			return c.Label
		}
	}
	return fmt.Sprint(current)
}

// exportError turns an export failure into one line for the panel.
func exportError(err error) string {
	switch {
	case errors.Is(err, errors.ErrCodeBusy):
		return "An export is already running."
	case errors.Is(err, errors.ErrCodeForbidden):
		return "Printing is not available for this account."
	default:
		return errors.UserMessage(err)
	}
}
