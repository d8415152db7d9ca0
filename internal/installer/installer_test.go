package installer

import (
	"archive/zip"
	"bytes"
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"testing"
)

func TestInstallUnsupportedPlatform(t *testing.T) {
	setGOOS(t, "plan9")

	err := New().Install(context.Background(), nil)
	if !errors.Is(err, ErrUnsupportedPlatform) {
		t.Fatalf("expected ErrUnsupportedPlatform, got %v", err)
	}
}

func TestInstallSkipsAbsentPackageManagers(t *testing.T) {
	setGOOS(t, "linux")
	setLookPath(t, func(string) (string, error) {
		return "", exec.ErrNotFound
	})

	err := New().Install(context.Background(), nil)
	if !errors.Is(err, ErrUnsupportedPlatform) {
		t.Fatalf("expected unsupported-platform error when no manager resolves, got %v", err)
	}
}

func TestInstallStreamsProgressAndSucceeds(t *testing.T) {
	setGOOS(t, "darwin")
	setLookPath(t, func(name string) (string, error) {
		return "/usr/local/bin/" + name, nil
	})

	var invoked [][]string
	setHelperCommand(t, "success", func(name string, args []string) {
		invoked = append(invoked, append([]string{name}, args...))
	})

	var lines []string
	err := New().Install(context.Background(), func(line string) {
		lines = append(lines, line)
	})
	if err != nil {
		t.Fatalf("Install returned error: %v", err)
	}

	if len(invoked) != 1 {
		t.Fatalf("expected one package manager invocation, got %d", len(invoked))
	}
	if invoked[0][0] != "brew" {
		t.Fatalf("expected brew on darwin, got %v", invoked[0])
	}
	joined := strings.Join(lines, "\n")
	if !strings.Contains(joined, "Downloading ffmpeg") {
		t.Fatalf("expected package manager output in progress lines, got %q", joined)
	}
	if !strings.Contains(joined, "installing ffmpeg via Homebrew") {
		t.Fatalf("expected strategy announcement, got %q", joined)
	}
}

func TestInstallFallsThroughToNextStrategy(t *testing.T) {
	setGOOS(t, "linux")
	setLookPath(t, func(name string) (string, error) {
		return "/usr/bin/" + name, nil
	})

	var invoked []string
	calls := 0
	original := commandContext
	commandContext = func(ctx context.Context, name string, args ...string) *exec.Cmd {
		invoked = append(invoked, strings.Join(append([]string{name}, args...), " "))
		calls++
		mode := "failure"
		if calls == 2 {
			mode = "success"
		}
		cmd := exec.CommandContext(ctx, os.Args[0], "-test.run=TestHelperProcess")
		cmd.Env = append(os.Environ(), "GO_WANT_HELPER_PROCESS=1", "INSTALL_HELPER_MODE="+mode)
		return cmd
	}
	t.Cleanup(func() { commandContext = original })

	if err := New().Install(context.Background(), nil); err != nil {
		t.Fatalf("expected second strategy to succeed, got %v", err)
	}
	if len(invoked) != 2 {
		t.Fatalf("expected two invocations, got %v", invoked)
	}
	if !strings.Contains(invoked[0], "apt-get") || !strings.Contains(invoked[1], "dnf") {
		t.Fatalf("expected apt-get then dnf, got %v", invoked)
	}
}

func TestInstallReturnsManagerAndFallbackFailures(t *testing.T) {
	setGOOS(t, "windows")
	setLookPath(t, func(name string) (string, error) {
		return `C:\tools\` + name, nil
	})
	setHelperCommand(t, "failure", nil)
	setHomeDir(t, t.TempDir())

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "mirror offline", http.StatusServiceUnavailable)
	}))
	defer server.Close()
	setStaticBuildURL(t, "windows", server.URL)

	err := New().Install(context.Background(), nil)
	if err == nil {
		t.Fatal("expected install failure")
	}
	if !strings.Contains(err.Error(), "winget") {
		t.Fatalf("expected failing strategy name in error, got %v", err)
	}
	if !strings.Contains(err.Error(), "static build") {
		t.Fatalf("expected fallback failure in error, got %v", err)
	}
}

func TestInstallFallsBackToStaticBuildWhenManagerAbsent(t *testing.T) {
	setGOOS(t, "darwin")
	setLookPath(t, func(string) (string, error) {
		return "", exec.ErrNotFound
	})
	home := t.TempDir()
	setHomeDir(t, home)

	archive := buildFFmpegArchive(t, "ffmpeg", "static build payload")
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write(archive)
	}))
	defer server.Close()
	setStaticBuildURL(t, "darwin", server.URL)

	var lines []string
	err := New().Install(context.Background(), func(line string) {
		lines = append(lines, line)
	})
	if err != nil {
		t.Fatalf("Install returned error: %v", err)
	}

	binaryPath := filepath.Join(home, ".local", "bin", "ffmpeg")
	data, err := os.ReadFile(binaryPath)
	if err != nil {
		t.Fatalf("read installed binary: %v", err)
	}
	if string(data) != "static build payload" {
		t.Fatalf("unexpected binary content %q", data)
	}
	info, err := os.Stat(binaryPath)
	if err != nil {
		t.Fatalf("stat installed binary: %v", err)
	}
	if info.Mode().Perm()&0o111 == 0 {
		t.Fatalf("expected executable binary, mode %v", info.Mode())
	}
	if _, err := os.Stat(filepath.Join(home, ".local", "bin", "ffmpeg_download.zip")); !os.IsNotExist(err) {
		t.Fatalf("expected archive cleanup, stat err %v", err)
	}
	joined := strings.Join(lines, "\n")
	if !strings.Contains(joined, "static ffmpeg build") {
		t.Fatalf("expected fallback announcement, got %q", joined)
	}
}

func TestInstallStaticBuildNestedArchiveEntry(t *testing.T) {
	setGOOS(t, "windows")
	setLookPath(t, func(string) (string, error) {
		return "", exec.ErrNotFound
	})
	home := t.TempDir()
	setHomeDir(t, home)

	archive := buildFFmpegArchive(t, "ffmpeg-release-essentials/bin/ffmpeg.exe", "exe payload")
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write(archive)
	}))
	defer server.Close()
	setStaticBuildURL(t, "windows", server.URL)

	if err := New().Install(context.Background(), nil); err != nil {
		t.Fatalf("Install returned error: %v", err)
	}
	binaryPath := filepath.Join(home, "AppData", "Local", "ffmpeg", "ffmpeg.exe")
	data, err := os.ReadFile(binaryPath)
	if err != nil {
		t.Fatalf("read installed binary: %v", err)
	}
	if string(data) != "exe payload" {
		t.Fatalf("unexpected binary content %q", data)
	}
}

func TestInstallStaticBuildRejectsArchiveWithoutBinary(t *testing.T) {
	setGOOS(t, "darwin")
	setLookPath(t, func(string) (string, error) {
		return "", exec.ErrNotFound
	})
	setHomeDir(t, t.TempDir())

	archive := buildFFmpegArchive(t, "README.txt", "no binary here")
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write(archive)
	}))
	defer server.Close()
	setStaticBuildURL(t, "darwin", server.URL)

	err := New().Install(context.Background(), nil)
	if err == nil || !strings.Contains(err.Error(), "archive has no ffmpeg entry") {
		t.Fatalf("expected missing-entry error, got %v", err)
	}
}

func TestManualInstructionsMentionPlatformTool(t *testing.T) {
	setGOOS(t, "darwin")
	if !strings.Contains(ManualInstructions(), "brew") {
		t.Fatal("expected brew in darwin instructions")
	}
	setGOOS(t, "linux")
	if !strings.Contains(ManualInstructions(), "apt-get") {
		t.Fatal("expected apt-get in linux instructions")
	}
}

func setGOOS(t *testing.T, goos string) {
	t.Helper()
	original := currentGOOS
	currentGOOS = goos
	t.Cleanup(func() { currentGOOS = original })
}

func setLookPath(t *testing.T, fn func(string) (string, error)) {
	t.Helper()
	original := lookPath
	lookPath = fn
	t.Cleanup(func() { lookPath = original })
}

func setHomeDir(t *testing.T, home string) {
	t.Helper()
	original := userHomeDir
	userHomeDir = func() (string, error) { return home, nil }
	t.Cleanup(func() { userHomeDir = original })
}

func setStaticBuildURL(t *testing.T, goos, url string) {
	t.Helper()
	original, had := staticBuildURLs[goos]
	staticBuildURLs[goos] = url
	t.Cleanup(func() {
		if had {
			staticBuildURLs[goos] = original
		} else {
			delete(staticBuildURLs, goos)
		}
	})
}

func buildFFmpegArchive(t *testing.T, entryName, content string) []byte {
	t.Helper()
	var buf bytes.Buffer
	writer := zip.NewWriter(&buf)
	entry, err := writer.Create(entryName)
	if err != nil {
		t.Fatalf("create zip entry: %v", err)
	}
	if _, err := entry.Write([]byte(content)); err != nil {
		t.Fatalf("write zip entry: %v", err)
	}
	if err := writer.Close(); err != nil {
		t.Fatalf("close zip: %v", err)
	}
	return buf.Bytes()
}

func setHelperCommand(t *testing.T, mode string, capture func(name string, args []string)) {
	t.Helper()
	original := commandContext
	commandContext = func(ctx context.Context, name string, args ...string) *exec.Cmd {
		if capture != nil {
			capture(name, append([]string(nil), args...))
		}
		cmd := exec.CommandContext(ctx, os.Args[0], "-test.run=TestHelperProcess")
		cmd.Env = append(os.Environ(), "GO_WANT_HELPER_PROCESS=1", "INSTALL_HELPER_MODE="+mode)
		return cmd
	}
	t.Cleanup(func() { commandContext = original })
}

func TestHelperProcess(t *testing.T) {
	if os.Getenv("GO_WANT_HELPER_PROCESS") != "1" {
		return
	}

	switch os.Getenv("INSTALL_HELPER_MODE") {
	case "success":
		fmt.Println("Downloading ffmpeg")
		fmt.Println("Pouring ffmpeg")
		os.Exit(0)
	case "failure":
		fmt.Println("error: package not found")
		os.Exit(1)
	default:
		os.Exit(0)
	}
}
