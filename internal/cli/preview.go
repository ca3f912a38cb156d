package cli

import (
	"fmt"
	"io"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/log"
	"github.com/spf13/cobra"

	"github.com/dotspan/dotspan/pkg/export"
	"github.com/dotspan/dotspan/pkg/imageload"
	"github.com/dotspan/dotspan/pkg/preview"
)

// previewOpts holds the command-line flags for the preview command.
type previewOpts struct {
	card    cardFlags
	output  string // directory for downloads and print pages
	noCache bool
	noPrint bool // run the session without print access
	open    bool // open downloads after saving; print pages always open
}

// previewCommand creates the interactive preview command.
func (c *CLI) previewCommand() *cobra.Command {
	var opts previewOpts

	cmd := &cobra.Command{
		Use:   "preview",
		Short: "Adjust a card in a live terminal preview and export it",
		Long: `Open an interactive preview of the card.

Size, font and colors can be changed while the preview re-renders in the
background. Zoom with +/- or the mouse wheel, and double click (or press z)
to toggle between 100% and 200%. Press d or j to save a PNG or JPEG, or
switch to print mode with m and press p to open the print page.`,
		Example: `  dotspan preview --total 4160 --filled 1820 --per-row 52 --name "Jane Doe"`,
		Args:    cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return c.runPreview(cmd, &opts)
		},
	}

	opts.card.register(cmd)
	cmd.Flags().StringVarP(&opts.output, "output", "o", ".", "directory for exported files")
	cmd.Flags().BoolVar(&opts.noCache, "no-cache", false, "do not cache flag icons")
	cmd.Flags().BoolVar(&opts.noPrint, "no-print", false, "disable print mode")
	cmd.Flags().BoolVar(&opts.open, "open", false, "open downloads after saving")

	return cmd
}

// runPreview starts a preview session and hands the terminal to it.
func (c *CLI) runPreview(cmd *cobra.Command, opts *previewOpts) error {
	ctx := cmd.Context()

	req, theme, err := opts.card.build(cmd, c.Config)
	if err != nil {
		return err
	}
	store, err := c.newCache(ctx, opts.noCache)
	if err != nil {
		return fmt.Errorf("initialize cache: %w", err)
	}
	defer store.Close()

	// The terminal belongs to the program, so session logs are dropped.
	quiet := log.New(io.Discard)
	composer := c.newComposer(store, quiet, imageload.New)

	var program *tea.Program
	ctrl := preview.New(preview.Input{
		Request:   req,
		Theme:     theme,
		Name:      req.FooterName,
		HasAccess: !opts.noPrint,
	},
		preview.WithRenderer(composer),
		preview.WithLogger(quiet),
		preview.WithContext(ctx),
		preview.WithJPEGQuality(c.Config.JPEGQuality),
		preview.WithNotify(func(s preview.Snapshot) {
			if program != nil {
				program.Send(snapshotMsg(s))
			}
		}),
	)
	defer ctrl.Wait()

	model := NewPreviewModel(ctx, ctrl, opts.output, c.Opener, opts.open)
	model.font = req.FontFamily
	program = tea.NewProgram(model,
		tea.WithContext(ctx),
		tea.WithAltScreen(),
		tea.WithMouseCellMotion(),
	)
	if _, err := program.Run(); err != nil {
		ctrl.Close()
		if ctx.Err() != nil {
			return ctx.Err()
		}
		return fmt.Errorf("preview: %w", err)
	}
	ctrl.Close()
	printSuccess("Preview closed")
	printNextStep("Export without the preview", "dotspan render --format "+string(export.FormatPNG))
	return nil
}
