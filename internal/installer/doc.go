// Package installer installs ffmpeg on demand through the platform's
// package manager, falling back to a prebuilt static binary on macOS and
// Windows when no package manager can serve.
package installer
