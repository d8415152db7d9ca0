package installer

import (
	"archive/zip"
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/exec"
	"path/filepath"
	"runtime"
	"strings"
	"time"
)

var (
	commandContext = exec.CommandContext
	lookPath       = exec.LookPath
	currentGOOS    = runtime.GOOS
	userHomeDir    = os.UserHomeDir
	httpClient     = &http.Client{}
)

// staticBuildURLs point at prebuilt ffmpeg archives for platforms where a
// missing or failing package manager still leaves a recovery path.
var staticBuildURLs = map[string]string{
	"darwin":  "https://evermeet.cx/ffmpeg/getrelease/ffmpeg/zip",
	"windows": "https://www.gyan.dev/ffmpeg/builds/ffmpeg-release-essentials.zip",
}

// ErrUnsupportedPlatform is returned when no install strategy applies to the
// current operating system.
var ErrUnsupportedPlatform = errors.New("no automatic install strategy for this platform")

// ProgressFunc receives opaque status lines emitted while an installation
// runs. The text comes straight from the package manager and carries no
// structure.
type ProgressFunc func(line string)

// Installer triggers installation of the external conversion tool.
type Installer interface {
	// Install runs until the underlying package manager finishes. Success
	// does not certify invocability; callers must re-probe availability
	// before trusting it.
	Install(ctx context.Context, progress ProgressFunc) error
}

// strategy is one package-manager invocation attempt.
type strategy struct {
	name string
	// guard, when set, must resolve on PATH for the strategy to apply.
	guard string
	args  []string
}

// PackageManager installs ffmpeg through the platform's package manager:
// Homebrew on macOS, winget on Windows, apt-get then dnf on Linux.
type PackageManager struct {
	timeout time.Duration
}

// Option configures the package manager installer.
type Option func(*PackageManager)

// WithTimeout bounds the whole install attempt.
func WithTimeout(timeout time.Duration) Option {
	return func(p *PackageManager) {
		if timeout > 0 {
			p.timeout = timeout
		}
	}
}

// New constructs a PackageManager installer using defaults.
func New(opts ...Option) *PackageManager {
	p := &PackageManager{timeout: 15 * time.Minute}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Install tries each applicable strategy in order and returns nil on the
// first success. Strategies whose package manager is absent are skipped. On
// platforms with a static build available (macOS, Windows), a skipped or
// failed package manager falls back to downloading the prebuilt binary; on
// Linux the last package-manager failure is returned.
func (p *PackageManager) Install(ctx context.Context, progress ProgressFunc) error {
	strategies := strategiesFor(currentGOOS)
	if len(strategies) == 0 {
		return fmt.Errorf("%w (%s)", ErrUnsupportedPlatform, currentGOOS)
	}

	installCtx, cancel := context.WithTimeout(ctx, p.timeout)
	defer cancel()

	var lastErr error
	attempted := false
	for _, s := range strategies {
		if s.guard != "" {
			if _, err := lookPath(s.guard); err != nil {
				continue
			}
		}
		attempted = true
		report(progress, fmt.Sprintf("installing ffmpeg via %s", s.name))
		if err := p.run(installCtx, s, progress); err != nil {
			lastErr = fmt.Errorf("%s: %w", s.name, err)
			report(progress, lastErr.Error())
			continue
		}
		report(progress, fmt.Sprintf("%s finished", s.name))
		return nil
	}

	if url, ok := staticBuildURLs[currentGOOS]; ok {
		report(progress, "falling back to a static ffmpeg build")
		if err := p.downloadStaticBuild(installCtx, url, progress); err != nil {
			if lastErr != nil {
				return fmt.Errorf("%v; static build: %w", lastErr, err)
			}
			return fmt.Errorf("static build: %w", err)
		}
		return nil
	}

	if !attempted {
		return fmt.Errorf("%w: no supported package manager found", ErrUnsupportedPlatform)
	}
	return lastErr
}

// downloadStaticBuild fetches a prebuilt ffmpeg archive and extracts the
// binary into a per-user directory.
func (p *PackageManager) downloadStaticBuild(ctx context.Context, url string, progress ProgressFunc) error {
	destDir, binaryName, err := staticInstallTarget(currentGOOS)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(destDir, 0o755); err != nil {
		return fmt.Errorf("create install directory: %w", err)
	}

	report(progress, fmt.Sprintf("downloading %s", url))
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return fmt.Errorf("build download request: %w", err)
	}
	resp, err := httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("download ffmpeg: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("download failed with status %s", resp.Status)
	}

	archivePath := filepath.Join(destDir, "ffmpeg_download.zip")
	archiveFile, err := os.Create(archivePath)
	if err != nil {
		return fmt.Errorf("create archive file: %w", err)
	}
	defer func() { _ = os.Remove(archivePath) }()
	if _, err := io.Copy(archiveFile, resp.Body); err != nil {
		_ = archiveFile.Close()
		return fmt.Errorf("save archive: %w", err)
	}
	if err := archiveFile.Close(); err != nil {
		return fmt.Errorf("save archive: %w", err)
	}

	destPath := filepath.Join(destDir, binaryName)
	if err := extractBinary(archivePath, binaryName, destPath); err != nil {
		return err
	}
	if err := os.Chmod(destPath, 0o755); err != nil {
		return fmt.Errorf("mark binary executable: %w", err)
	}
	report(progress, fmt.Sprintf("installed static ffmpeg build at %s", destPath))
	report(progress, fmt.Sprintf("ensure %s is on your PATH", destDir))
	return nil
}

func staticInstallTarget(goos string) (dir, binary string, err error) {
	home, err := userHomeDir()
	if err != nil {
		return "", "", fmt.Errorf("resolve home directory: %w", err)
	}
	switch goos {
	case "darwin":
		return filepath.Join(home, ".local", "bin"), "ffmpeg", nil
	case "windows":
		return filepath.Join(home, "AppData", "Local", "ffmpeg"), "ffmpeg.exe", nil
	default:
		return "", "", fmt.Errorf("%w (%s)", ErrUnsupportedPlatform, goos)
	}
}

func extractBinary(archivePath, binaryName, destPath string) error {
	archive, err := zip.OpenReader(archivePath)
	if err != nil {
		return fmt.Errorf("read archive: %w", err)
	}
	defer archive.Close()

	for _, entry := range archive.File {
		if entry.Name != binaryName && !strings.HasSuffix(entry.Name, "/"+binaryName) {
			continue
		}
		src, err := entry.Open()
		if err != nil {
			return fmt.Errorf("open archive entry: %w", err)
		}
		dest, err := os.Create(destPath)
		if err != nil {
			_ = src.Close()
			return fmt.Errorf("create binary: %w", err)
		}
		_, copyErr := io.Copy(dest, src)
		_ = src.Close()
		if closeErr := dest.Close(); copyErr == nil {
			copyErr = closeErr
		}
		if copyErr != nil {
			return fmt.Errorf("extract binary: %w", copyErr)
		}
		return nil
	}
	return fmt.Errorf("archive has no %s entry", binaryName)
}

func (p *PackageManager) run(ctx context.Context, s strategy, progress ProgressFunc) error {
	cmd := commandContext(ctx, s.args[0], s.args[1:]...) //nolint:gosec
	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return fmt.Errorf("stdout pipe: %w", err)
	}
	cmd.Stderr = cmd.Stdout
	if err := cmd.Start(); err != nil {
		return fmt.Errorf("start %s: %w", s.args[0], err)
	}

	scanner := bufio.NewScanner(stdout)
	for scanner.Scan() {
		report(progress, scanner.Text())
	}
	if err := scanner.Err(); err != nil {
		_ = cmd.Wait()
		return fmt.Errorf("read install output: %w", err)
	}
	if err := cmd.Wait(); err != nil {
		return fmt.Errorf("install failed: %w", err)
	}
	return nil
}

func strategiesFor(goos string) []strategy {
	switch goos {
	case "darwin":
		return []strategy{
			{name: "Homebrew", guard: "brew", args: []string{"brew", "install", "ffmpeg"}},
		}
	case "windows":
		return []strategy{
			{name: "winget", guard: "winget", args: []string{"winget", "install", "Gyan.FFmpeg", "-e", "--silent"}},
		}
	case "linux":
		return []strategy{
			{name: "apt-get", guard: "apt-get", args: []string{"sudo", "apt-get", "install", "-y", "ffmpeg"}},
			{name: "dnf", guard: "dnf", args: []string{"sudo", "dnf", "install", "-y", "ffmpeg"}},
		}
	default:
		return nil
	}
}

func report(progress ProgressFunc, line string) {
	if progress == nil {
		return
	}
	if line = strings.TrimSpace(line); line != "" {
		progress(line)
	}
}

// ManualInstructions returns platform-appropriate guidance for installing
// ffmpeg by hand, for when automatic installation fails or is declined.
func ManualInstructions() string {
	switch currentGOOS {
	case "darwin":
		return "Install ffmpeg manually: run 'brew install ffmpeg', or download a static build from https://evermeet.cx/ffmpeg/ and place it on your PATH."
	case "windows":
		return "Install ffmpeg manually: run 'winget install Gyan.FFmpeg', or download https://www.gyan.dev/ffmpeg/builds/ffmpeg-release-essentials.zip and add its bin directory to PATH."
	default:
		return "Install ffmpeg manually with your package manager, e.g. 'sudo apt-get install ffmpeg' or 'sudo dnf install ffmpeg'."
	}
}

var _ Installer = (*PackageManager)(nil)
