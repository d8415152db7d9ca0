// Package naming derives collision-safe MP4 output paths for input files.
package naming
