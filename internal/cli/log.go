// Package cli implements the dotspan command-line interface.
//
// The commands export progress cards, preview them interactively, serve
// the export API and manage the local artifact cache. The CLI is built
// using cobra and logs through charmbracelet/log.
//
// # Commands
//
// The main commands are:
//   - render: Export a card as PNG, JPEG or a printable page
//   - print: Export the printable page and open it
//   - preview: Adjust size, font and colors in a live terminal preview
//   - serve: Run the HTTP export API
//   - themes: List the built-in themes
//   - cache: Manage the artifact cache
//   - config: Show the effective configuration
//
// # Logging
//
// All commands support --verbose (-v) for debug-level logging, which also
// reports render, encode and cache events. Loggers are passed through
// context.Context so long-running work can log progress.
//
// # Example
//
//	import "github.com/dotspan/dotspan/internal/cli"
//
//	func main() {
//	    c := cli.New(os.Stderr, cli.LogInfo)
//	    if err := c.RootCommand().Execute(); err != nil {
//	        os.Exit(1)
//	    }
//	}
package cli

import (
	"context"
	"io"
	"time"

	"github.com/charmbracelet/log"
)

// newLogger creates the CLI logger. Timestamps are "HH:MM:SS.cc" so the
// debug lines of one export can be told apart.
func newLogger(w io.Writer, level log.Level) *log.Logger {
	return log.NewWithOptions(w, log.Options{
		ReportTimestamp: true,
		TimeFormat:      "15:04:05.00",
		Level:           level,
	})
}

// exportTimer logs how long an export took. Not safe for concurrent use.
type exportTimer struct {
	logger *log.Logger
	start  time.Time
}

func startExport(l *log.Logger) *exportTimer {
	return &exportTimer{logger: l, start: time.Now()}
}

// done logs msg with keyvals and the elapsed time in milliseconds.
func (t *exportTimer) done(msg string, keyvals ...any) {
	elapsed := time.Since(t.start).Round(time.Millisecond)
	t.logger.Info(msg, append(keyvals, "elapsed", elapsed)...)
}

type ctxKey int

const loggerKey ctxKey = 0

// withLogger attaches l to ctx for the pipeline and its hooks.
func withLogger(ctx context.Context, l *log.Logger) context.Context {
	return context.WithValue(ctx, loggerKey, l)
}

// loggerFromContext returns the logger attached by withLogger, or
// log.Default().
func loggerFromContext(ctx context.Context) *log.Logger {
	if l, ok := ctx.Value(loggerKey).(*log.Logger); ok {
		return l
	}
	return log.Default()
}
