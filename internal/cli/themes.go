package cli

import (
	"fmt"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"
	"github.com/spf13/cobra"

	"github.com/dotspan/dotspan/pkg/palette"
)

// themesCommand creates the themes listing command.
func (c *CLI) themesCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "themes",
		Short: "List the built-in themes",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			fmt.Fprintln(cmd.OutOrStdout(), themesTable(palette.Themes(), c.Config.Theme))
			return nil
		},
	}
}

// themesTable renders one row per theme with color swatches. The current
// theme is marked.
func themesTable(themes []palette.Theme, current string) string {
	rows := make([][]string, 0, len(themes))
	for _, t := range themes {
		mark := "  "
		if t.ID == current {
			mark = "▸ "
		}
		rows = append(rows, []string{
			mark,
			t.ID,
			t.Name,
			swatch(t.DotFilled) + swatch(t.DotEmpty),
			swatch(t.Surface),
			swatch(t.Text) + swatch(t.Muted),
		})
	}

	headerStyle := lipgloss.NewStyle().Foreground(colorGray).Bold(true)
	return table.New().
		Border(lipgloss.RoundedBorder()).
		BorderStyle(lipgloss.NewStyle().Foreground(colorDim)).
		Headers("", "ID", "Name", "Dots", "Surface", "Text").
		Rows(rows...).
		StyleFunc(func(row, col int) lipgloss.Style {
			if row == -1 {
				return headerStyle
			}
			if row >= 0 && row < len(themes) && themes[row].ID == current {
				return lipgloss.NewStyle().Foreground(colorCyan).Bold(true)
			}
			return lipgloss.NewStyle()
		}).
		Render()
}

// swatch renders two cells of background in hex.
func swatch(hex string) string {
	return lipgloss.NewStyle().Background(lipgloss.Color(hex)).Render("  ")
}
