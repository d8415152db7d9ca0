package naming

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestResolvePlainCase(t *testing.T) {
	dir := t.TempDir()
	input := filepath.Join(dir, "video.mkv")

	resolver := NewResolver()
	got, err := resolver.Resolve(input)
	if err != nil {
		t.Fatalf("Resolve returned error: %v", err)
	}
	if got != filepath.Join(dir, "video.mp4") {
		t.Fatalf("unexpected output path %q", got)
	}
}

func TestResolveAppendsCounterOnCollision(t *testing.T) {
	dir := t.TempDir()
	input := filepath.Join(dir, "video.mkv")
	mustTouch(t, filepath.Join(dir, "video.mp4"))

	resolver := NewResolver()
	got, err := resolver.Resolve(input)
	if err != nil {
		t.Fatalf("Resolve returned error: %v", err)
	}
	if got != filepath.Join(dir, "video_1.mp4") {
		t.Fatalf("expected video_1.mp4, got %q", got)
	}

	mustTouch(t, got)
	got, err = resolver.Resolve(input)
	if err != nil {
		t.Fatalf("Resolve returned error: %v", err)
	}
	if got != filepath.Join(dir, "video_2.mp4") {
		t.Fatalf("expected video_2.mp4, got %q", got)
	}
}

func TestResolveNeverReturnsExistingPath(t *testing.T) {
	existing := map[string]bool{
		"/media/clip.mp4":   true,
		"/media/clip_1.mp4": true,
		"/media/clip_2.mp4": true,
	}
	resolver := NewResolver(WithExistsFunc(func(path string) bool {
		return existing[path]
	}))

	got, err := resolver.Resolve("/media/clip.avi")
	if err != nil {
		t.Fatalf("Resolve returned error: %v", err)
	}
	if existing[got] {
		t.Fatalf("resolver returned an existing path %q", got)
	}
	if got != "/media/clip_3.mp4" {
		t.Fatalf("expected clip_3.mp4, got %q", got)
	}
}

func TestResolveBoundedAttempts(t *testing.T) {
	resolver := NewResolver(WithExistsFunc(func(string) bool { return true }))

	_, err := resolver.Resolve("/media/clip.avi")
	if err == nil {
		t.Fatal("expected error when every candidate exists")
	}
	if !strings.Contains(err.Error(), "no collision-free output path") {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestResolveOutputDirOverride(t *testing.T) {
	out := t.TempDir()
	resolver := NewResolver(WithOutputDir(out))

	got, err := resolver.Resolve("/somewhere/else/video.webm")
	if err != nil {
		t.Fatalf("Resolve returned error: %v", err)
	}
	if got != filepath.Join(out, "video.mp4") {
		t.Fatalf("expected output under %q, got %q", out, got)
	}
}

func TestIsConvertible(t *testing.T) {
	for _, path := range []string{"a.mkv", "b.AVI", "c.webm", "d.3gp", "e.MpEg"} {
		if !IsConvertible(path) {
			t.Fatalf("expected %q to be convertible", path)
		}
	}
	for _, path := range []string{"a.mp4", "b.txt", "noext", "c.srt"} {
		if IsConvertible(path) {
			t.Fatalf("expected %q to be rejected", path)
		}
	}
}

func mustTouch(t *testing.T, path string) {
	t.Helper()
	if err := os.WriteFile(path, nil, 0o644); err != nil {
		t.Fatalf("touch %s: %v", path, err)
	}
}
