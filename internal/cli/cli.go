package cli

import (
	"context"
	"io"

	"github.com/charmbracelet/log"
	"github.com/spf13/cobra"

	"github.com/dotspan/dotspan/pkg/buildinfo"
	"github.com/dotspan/dotspan/pkg/cache"
	"github.com/dotspan/dotspan/pkg/card"
	"github.com/dotspan/dotspan/pkg/config"
	"github.com/dotspan/dotspan/pkg/export"
	"github.com/dotspan/dotspan/pkg/fonts"
	"github.com/dotspan/dotspan/pkg/imageload"
	"github.com/dotspan/dotspan/pkg/observability"
	"github.com/dotspan/dotspan/pkg/pipeline"
)

// =============================================================================
// Constants
// =============================================================================

// appName is the application name used for directories and display.
const appName = "dotspan"

// Log levels exported for use in main.go.
const (
	LogDebug = log.DebugLevel
	LogInfo  = log.InfoLevel
)

// =============================================================================
// CLI - Central CLI State
// =============================================================================

// CLI holds shared state for all commands.
type CLI struct {
	Logger *log.Logger

	// Config is loaded from --config (or the default path) before any
	// command runs.
	Config config.Config

	// Opener shows exported files in the system viewer.
	Opener export.Opener

	configPath string
}

// New creates a new CLI instance with a default logger and configuration.
func New(w io.Writer, level log.Level) *CLI {
	return &CLI{
		Logger: newLogger(w, level),
		Config: config.Default(),
		Opener: export.SystemOpener,
	}
}

// SetLogLevel updates the logger's level.
func (c *CLI) SetLogLevel(level log.Level) {
	c.Logger.SetLevel(level)
}

// RootCommand creates the root cobra command with all subcommands registered.
func (c *CLI) RootCommand() *cobra.Command {
	root := &cobra.Command{
		Use:   appName,
		Short: "DotSpan exports life-in-dots progress cards",
		Long: `DotSpan renders a span of time as a grid of dots, one per unit, with the
elapsed units filled in. The card can be exported as PNG, JPEG or a
printable page, previewed interactively, or served over HTTP.`,
		Version:      buildinfo.Version,
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return c.loadConfig()
		},
	}

	root.SetVersionTemplate(buildinfo.Template())
	root.PersistentFlags().StringVar(&c.configPath, "config", "", "config file (default $XDG_CONFIG_HOME/dotspan/config.toml)")

	root.AddCommand(c.renderCommand())
	root.AddCommand(c.printCommand())
	root.AddCommand(c.previewCommand())
	root.AddCommand(c.serveCommand())
	root.AddCommand(c.themesCommand())
	root.AddCommand(c.cacheCommand())
	root.AddCommand(c.configCommand())
	root.AddCommand(c.completionCommand())

	return root
}

// loadConfig reads the config file and registers debug hooks.
func (c *CLI) loadConfig() error {
	cfg, err := config.Load(c.configPath)
	if err != nil {
		return err
	}
	c.Config = cfg
	if c.Logger.GetLevel() <= log.DebugLevel {
		observability.NewLogHooks(c.Logger).Register()
	}
	return nil
}

// =============================================================================
// Runner Factory
// =============================================================================

// loaderFunc builds the flag icon loader of a composer.
type loaderFunc func(...imageload.Option) *imageload.Loader

// newRunner creates a pipeline runner for CLI use. Artifact keys are scoped
// to the build version so an upgrade never serves renders from an older
// layout. Flag icons share the cache unscoped.
func (c *CLI) newRunner(ctx context.Context, noCache bool, newLoader loaderFunc) (*pipeline.Runner, error) {
	store, err := c.newCache(ctx, noCache)
	if err != nil {
		return nil, err
	}
	keyer := cache.NewScopedKeyer(nil, buildinfo.Version+":")
	runner := pipeline.NewRunner(store, keyer, c.newComposer(store, c.Logger, newLoader), c.Logger)
	runner.TTL = c.Config.Cache.TTL
	return runner, nil
}

// newComposer creates a card composer whose flag loader, built by newLoader,
// caches in store.
func (c *CLI) newComposer(store cache.Cache, logger *log.Logger, newLoader loaderFunc) *card.Composer {
	loader := newLoader(
		imageload.WithCache(store, nil),
		imageload.WithLogger(logger),
	)
	return card.NewComposer(
		card.WithFonts(fonts.New()),
		card.WithImageLoader(loader),
		card.WithLogger(logger),
	)
}

// newCache opens the configured cache backend. A file cache that cannot be
// located degrades to no caching.
func (c *CLI) newCache(ctx context.Context, noCache bool) (cache.Cache, error) {
	if noCache {
		return cache.NewNullCache(), nil
	}
	switch c.Config.Cache.Backend {
	case config.BackendNone:
		return cache.NewNullCache(), nil
	case config.BackendRedis:
		rc, err := cache.NewRedisCache(ctx, cache.RedisConfig{
			Addr:     c.Config.Cache.RedisAddr,
			Password: c.Config.Cache.RedisPassword,
			DB:       c.Config.Cache.RedisDB,
			Prefix:   c.Config.Cache.RedisPrefix,
		})
		if err != nil {
			return nil, err
		}
		return rc, nil
	default:
		dir, err := c.cacheDir()
		if err != nil {
			c.Logger.Warn("cache disabled", "err", err)
			return cache.NewNullCache(), nil
		}
		fc, err := cache.NewFileCache(dir)
		if err != nil {
			return nil, err
		}
		return fc, nil
	}
}

// =============================================================================
// Paths
// =============================================================================

// cacheDir returns the configured cache directory, or the XDG cache
// directory (~/.cache/dotspan/) when none is set.
func (c *CLI) cacheDir() (string, error) {
	if c.Config.Cache.Dir != "" {
		return c.Config.Cache.Dir, nil
	}
	return cache.DefaultDir()
}
