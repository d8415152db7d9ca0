package deps

import (
	"context"
	"errors"
	"fmt"
	"os/exec"
	"strings"
	"time"
)

var commandContext = exec.CommandContext

const probeTimeout = 15 * time.Second

// Prober answers whether the external conversion tool can actually be
// invoked.
type Prober interface {
	// Probe reports tool availability. A missing binary is a legitimate
	// (false, nil) result; the error return is reserved for probe-mechanism
	// failures such as being unable to spawn processes at all.
	Probe(ctx context.Context) (bool, error)
}

// FFmpegProber probes ffmpeg by running a version query.
type FFmpegProber struct {
	binary string
}

// NewFFmpegProber constructs a prober for the given ffmpeg binary name.
func NewFFmpegProber(binary string) *FFmpegProber {
	trimmed := strings.TrimSpace(binary)
	if trimmed == "" {
		trimmed = "ffmpeg"
	}
	return &FFmpegProber{binary: trimmed}
}

// Probe runs "ffmpeg -version" and reports whether it succeeded.
func (p *FFmpegProber) Probe(ctx context.Context) (bool, error) {
	if _, err := exec.LookPath(p.binary); err != nil {
		var execErr *exec.Error
		if errors.As(err, &execErr) && errors.Is(execErr.Err, exec.ErrNotFound) {
			return false, nil
		}
		if errors.Is(err, exec.ErrNotFound) {
			return false, nil
		}
		return false, fmt.Errorf("resolve %q: %w", p.binary, err)
	}

	probeCtx, cancel := context.WithTimeout(ctx, probeTimeout)
	defer cancel()

	cmd := commandContext(probeCtx, p.binary, "-version")
	if err := cmd.Run(); err != nil {
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) {
			// The binary exists but cannot answer a version query; treat it
			// as not invocable rather than a probe failure.
			return false, nil
		}
		return false, fmt.Errorf("spawn %q: %w", p.binary, err)
	}
	return true, nil
}

var _ Prober = (*FFmpegProber)(nil)
