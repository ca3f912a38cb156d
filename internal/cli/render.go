package cli

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"github.com/dotspan/dotspan/pkg/export"
	"github.com/dotspan/dotspan/pkg/imageload"
	"github.com/dotspan/dotspan/pkg/pipeline"
)

// renderOpts holds the command-line flags for the render command.
type renderOpts struct {
	card    cardFlags
	formats string // comma-separated: png, jpg, pdf
	output  string // output directory, or a file path for a single format
	paper   string // print paper size: letter, a4
	quality int    // JPEG quality 1-100
	noCache bool   // skip the artifact cache entirely
	refresh bool   // ignore cached artifacts but store new ones
	open    bool   // open the written files in the system viewer
}

// renderCommand creates the render command.
func (c *CLI) renderCommand() *cobra.Command {
	var opts renderOpts

	cmd := &cobra.Command{
		Use:   "render",
		Short: "Export a progress card as PNG, JPEG or a printable page",
		Long: `Export a progress card.

The card is described with flags or a JSON request file (--request). Each
requested format is written as dotspan-<name>-<date>.<ext>. The "pdf"
format produces a print-ready HTML page that opens the print dialog.

Rendered artifacts are cached, so repeating an export is instant.`,
		Example: `  dotspan render --total 4160 --filled 1820 --per-row 52 --name "Jane Doe"
  dotspan render --request card.json --format png,jpg -o exports/
  dotspan render --total 365 --filled 120 --style rainbow --theme ocean --open`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return c.runRender(cmd, &opts)
		},
	}

	opts.card.register(cmd)
	cmd.Flags().StringVarP(&opts.formats, "format", "f", "", "output format(s): png (default), jpg, pdf (comma-separated)")
	cmd.Flags().StringVarP(&opts.output, "output", "o", "", "output directory, or file path for a single format")
	cmd.Flags().StringVar(&opts.paper, "paper", "", "paper size for pdf: letter, a4 (default from config)")
	cmd.Flags().IntVar(&opts.quality, "quality", 0, "JPEG quality 1-100 (default from config)")
	cmd.Flags().BoolVar(&opts.noCache, "no-cache", false, "disable caching")
	cmd.Flags().BoolVar(&opts.refresh, "refresh", false, "re-render even if cached")
	cmd.Flags().BoolVar(&opts.open, "open", false, "open the exported files")

	return cmd
}

// printCommand creates the print command, a shorthand for
// "render --format pdf --open".
func (c *CLI) printCommand() *cobra.Command {
	opts := renderOpts{formats: string(export.FormatPDF), open: true}

	cmd := &cobra.Command{
		Use:   "print",
		Short: "Export the printable page and open it",
		Long: `Export the card as a print-ready page and open it in the browser, which
shows the print dialog once the card image has loaded.`,
		Example: `  dotspan print --total 4160 --filled 1820 --per-row 52 --paper a4`,
		Args:    cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return c.runRender(cmd, &opts)
		},
	}

	opts.card.register(cmd)
	cmd.Flags().StringVarP(&opts.output, "output", "o", "", "output directory or file path")
	cmd.Flags().StringVar(&opts.paper, "paper", "", "paper size: letter, a4 (default from config)")
	cmd.Flags().BoolVar(&opts.noCache, "no-cache", false, "disable caching")
	cmd.Flags().BoolVar(&opts.open, "open", opts.open, "open the page after writing it")

	return cmd
}

// runRender builds the request, runs the pipeline and writes the artifacts.
func (c *CLI) runRender(cmd *cobra.Command, opts *renderOpts) error {
	ctx := withLogger(cmd.Context(), c.Logger)

	req, _, err := opts.card.build(cmd, c.Config)
	if err != nil {
		return err
	}
	formats, err := export.ParseFormats(parseFormats(opts.formats))
	if err != nil {
		return err
	}
	paper := opts.paper
	if paper == "" {
		paper = c.Config.Paper
	}
	quality := opts.quality
	if quality == 0 {
		quality = c.Config.JPEGQuality
	}

	runner, err := c.newRunner(ctx, opts.noCache, imageload.New)
	if err != nil {
		return fmt.Errorf("initialize runner: %w", err)
	}
	defer runner.Close()

	spinner := newSpinnerWithContext(ctx, fmt.Sprintf("Rendering %s...", req.Grid.String()))
	spinner.Start()

	logger := loggerFromContext(ctx)
	timer := startExport(logger)
	result, err := runner.Execute(ctx, pipeline.Options{
		Request: req,
		Formats: formats,
		Paper:   export.PaperSize(paper),
		Quality: quality,
		Refresh: opts.refresh,
		Logger:  logger,
	})
	if err != nil {
		spinner.StopWithError("Export failed")
		return fmt.Errorf("render: %w", err)
	}
	spinner.Update("Writing files...")
	paths, err := writeArtifacts(result.Artifacts, opts.output)
	if err != nil {
		spinner.StopWithError("Export failed")
		return err
	}
	spinner.Stop()
	timer.done("wrote export", "grid", req.Grid.String(), "files", len(paths), "cached", result.CacheInfo.Hits)

	printSuccess("Exported %s", req.Grid.String())
	for _, p := range paths {
		printFile(p)
	}
	printStats(result)

	if opts.open {
		for _, p := range paths {
			if err := c.Opener.Open(context.WithoutCancel(ctx), p); err != nil {
				printWarning("Could not open %s: %v", p, err)
			}
		}
	} else if _, ok := result.Artifact(export.FormatPDF); ok {
		printNextStep("Open the page to print", "dotspan print --open")
	}
	return nil
}

// writeArtifacts writes each artifact under output. A single artifact with
// an output path that carries a file extension is written to that path;
// otherwise output is a directory (default: the working directory) and
// artifacts keep their generated names.
func writeArtifacts(artifacts []export.Artifact, output string) ([]string, error) {
	if len(artifacts) == 1 && filepath.Ext(output) != "" {
		path := output
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			return nil, err
		}
		if err := os.WriteFile(path, artifacts[0].Data, 0o644); err != nil {
			return nil, fmt.Errorf("write %s: %w", path, err)
		}
		return []string{path}, nil
	}

	dir := output
	if dir == "" {
		dir = "."
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, err
	}
	paths := make([]string, 0, len(artifacts))
	for _, a := range artifacts {
		path := filepath.Join(dir, a.Filename)
		if err := os.WriteFile(path, a.Data, 0o644); err != nil {
			return paths, fmt.Errorf("write %s: %w", path, err)
		}
		paths = append(paths, path)
	}
	return paths, nil
}

// parseFormats splits a comma-separated format list. Empty means the
// pipeline default.
func parseFormats(s string) []string {
	if strings.TrimSpace(s) == "" {
		return []string{string(pipeline.DefaultFormat)}
	}
	parts := strings.Split(s, ",")
	out := parts[:0]
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}

