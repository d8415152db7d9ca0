// Package converter wraps the ffmpeg command line for stream-copy container
// remuxing into MP4.
package converter
