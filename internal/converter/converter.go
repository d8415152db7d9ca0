package converter

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"strings"
	"time"

	"remux/internal/naming"
)

var commandContext = exec.CommandContext

// ConvertError carries the external tool's diagnostic output for a single
// failed conversion. The orchestrator surfaces Detail verbatim and does not
// interpret it further.
type ConvertError struct {
	InputPath string
	Detail    string
	Err       error
}

func (e *ConvertError) Error() string {
	if e.Detail != "" {
		return e.Detail
	}
	if e.Err != nil {
		return e.Err.Error()
	}
	return "conversion failed"
}

func (e *ConvertError) Unwrap() error { return e.Err }

// Client defines the conversion behaviour the orchestrator depends on.
type Client interface {
	Convert(ctx context.Context, inputPath string) (string, error)
}

// Option configures the CLI client.
type Option func(*CLI)

// WithBinary overrides the default ffmpeg binary name.
func WithBinary(binary string) Option {
	return func(c *CLI) {
		if binary != "" {
			c.binary = binary
		}
	}
}

// WithTimeout bounds a single conversion.
func WithTimeout(timeout time.Duration) Option {
	return func(c *CLI) {
		if timeout > 0 {
			c.timeout = timeout
		}
	}
}

// WithResolver overrides the output path resolver.
func WithResolver(resolver *naming.Resolver) Option {
	return func(c *CLI) {
		if resolver != nil {
			c.resolver = resolver
		}
	}
}

// CLI remuxes one container into MP4 by invoking ffmpeg in stream-copy
// mode. Audio and video streams are copied verbatim; nothing is re-encoded.
type CLI struct {
	binary   string
	timeout  time.Duration
	resolver *naming.Resolver
}

// NewCLI constructs a CLI client using defaults.
func NewCLI(opts ...Option) *CLI {
	cli := &CLI{
		binary:   "ffmpeg",
		timeout:  time.Hour,
		resolver: naming.NewResolver(),
	}
	for _, opt := range opts {
		opt(cli)
	}
	return cli
}

// Convert names a collision-free output path and runs the stream-copy remux.
// It returns the realized output path, or a *ConvertError carrying ffmpeg's
// stderr when the tool fails. A partial output file is removed on failure.
func (c *CLI) Convert(ctx context.Context, inputPath string) (string, error) {
	if strings.TrimSpace(inputPath) == "" {
		return "", errors.New("input path required")
	}

	outputPath, err := c.resolver.Resolve(inputPath)
	if err != nil {
		// Naming exhaustion is reported like any other per-file failure.
		return "", &ConvertError{InputPath: inputPath, Detail: err.Error(), Err: err}
	}

	runCtx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	args := []string{"-nostdin", "-i", inputPath, "-codec", "copy", outputPath}
	cmd := commandContext(runCtx, c.binary, args...) //nolint:gosec

	var stderr bytes.Buffer
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		_ = os.Remove(outputPath)
		detail := strings.TrimSpace(stderr.String())
		if detail == "" {
			detail = fmt.Sprintf("%s failed: %v", c.binary, err)
		}
		return "", &ConvertError{InputPath: inputPath, Detail: detail, Err: err}
	}
	return outputPath, nil
}

var _ Client = (*CLI)(nil)
