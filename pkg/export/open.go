package export

import (
	"context"
	"os/exec"
	"runtime"

	"github.com/dotspan/dotspan/pkg/errors"
)

// Opener hands a file or URL to the desktop, which shows it in the default
// application. For the print document that is the browser.
type Opener interface {
	Open(ctx context.Context, target string) error
}

// OpenerFunc adapts a function to [Opener].
type OpenerFunc func(ctx context.Context, target string) error

func (f OpenerFunc) Open(ctx context.Context, target string) error { return f(ctx, target) }

// SystemOpener opens targets with the platform launcher.
var SystemOpener Opener = OpenerFunc(systemOpen)

func systemOpen(ctx context.Context, target string) error {
	var cmd *exec.Cmd
	switch runtime.GOOS {
	case "darwin":
		cmd = exec.CommandContext(ctx, "open", target)
	case "linux":
		cmd = exec.CommandContext(ctx, "xdg-open", target)
	case "windows":
		cmd = exec.CommandContext(ctx, "cmd", "/c", "start", "", target)
	default:
		return errors.New(errors.ErrCodeUnsupported, "cannot open files on %s", runtime.GOOS)
	}
	// The launcher may be blocked by the desktop; report it so callers can
	// print the path instead.
	if err := cmd.Start(); err != nil {
		return errors.Wrap(errors.ErrCodeForbidden, err, "open %s", target)
	}
	go cmd.Wait()
	return nil
}
