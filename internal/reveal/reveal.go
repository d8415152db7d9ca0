package reveal

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"runtime"
)

var (
	commandContext = exec.CommandContext
	currentGOOS    = runtime.GOOS
)

// Show opens the platform file manager with the given file selected, or its
// parent directory where selection is not supported.
func Show(ctx context.Context, path string) error {
	if path == "" {
		return fmt.Errorf("reveal: empty path")
	}
	absolute, err := filepath.Abs(path)
	if err != nil {
		return fmt.Errorf("resolve path: %w", err)
	}
	if _, err := os.Stat(absolute); err != nil {
		return fmt.Errorf("reveal %s: %w", absolute, err)
	}

	name, args := revealCommand(currentGOOS, absolute)
	cmd := commandContext(ctx, name, args...)
	if output, err := cmd.CombinedOutput(); err != nil {
		return fmt.Errorf("open file manager: %w (%s)", err, string(output))
	}
	return nil
}

func revealCommand(goos, path string) (string, []string) {
	switch goos {
	case "darwin":
		return "open", []string{"-R", path}
	case "windows":
		return "explorer", []string{"/select," + path}
	default:
		// xdg-open has no selection flag; open the containing directory.
		return "xdg-open", []string{filepath.Dir(path)}
	}
}
