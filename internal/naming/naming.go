package naming

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// ErrNoCandidate is returned when no collision-free output path is found
// within the bounded number of attempts.
var ErrNoCandidate = errors.New("no collision-free output path available")

// maxAttempts bounds the _N suffix search. Hitting it means the directory
// already holds that many same-stem outputs, which is not a situation worth
// scanning past.
const maxAttempts = 10000

const outputExt = ".mp4"

var convertibleExtensions = map[string]struct{}{
	".mkv":  {},
	".avi":  {},
	".mov":  {},
	".wmv":  {},
	".flv":  {},
	".webm": {},
	".m4v":  {},
	".mpeg": {},
	".mpg":  {},
	".3gp":  {},
}

// IsConvertible reports whether the file extension belongs to a container
// remux can repackage into MP4.
func IsConvertible(path string) bool {
	_, ok := convertibleExtensions[strings.ToLower(filepath.Ext(path))]
	return ok
}

// Resolver derives collision-free MP4 output paths for input files.
type Resolver struct {
	// outputDir, when set, overrides each input's own directory.
	outputDir string
	// exists is swapped in tests to simulate a filesystem snapshot.
	exists func(string) bool
}

// Option configures a Resolver.
type Option func(*Resolver)

// WithOutputDir routes all outputs into a single directory.
func WithOutputDir(dir string) Option {
	return func(r *Resolver) {
		r.outputDir = strings.TrimSpace(dir)
	}
}

// WithExistsFunc overrides the file-existence check.
func WithExistsFunc(exists func(string) bool) Option {
	return func(r *Resolver) {
		if exists != nil {
			r.exists = exists
		}
	}
}

// NewResolver constructs a Resolver using defaults.
func NewResolver(opts ...Option) *Resolver {
	r := &Resolver{exists: fileExists}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Resolve returns an MP4 output path for inputPath that does not exist yet:
// the input's stem plus ".mp4", then "_1", "_2", ... suffixes until a free
// path is found. The check-then-use window against concurrent external
// writers is an accepted limitation of a single-user tool.
func (r *Resolver) Resolve(inputPath string) (string, error) {
	if strings.TrimSpace(inputPath) == "" {
		return "", errors.New("input path required")
	}

	dir := r.outputDir
	if dir == "" {
		dir = filepath.Dir(inputPath)
	}
	base := filepath.Base(inputPath)
	stem := strings.TrimSuffix(base, filepath.Ext(base))
	if stem == "" {
		stem = base
	}

	candidate := filepath.Join(dir, stem+outputExt)
	if !r.exists(candidate) {
		return candidate, nil
	}
	for counter := 1; counter <= maxAttempts; counter++ {
		candidate = filepath.Join(dir, fmt.Sprintf("%s_%d%s", stem, counter, outputExt))
		if !r.exists(candidate) {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("%w for %q after %d attempts", ErrNoCandidate, inputPath, maxAttempts)
}

func fileExists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}
