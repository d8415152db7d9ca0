// Command remux converts video containers to MP4 by stream copy. It wraps
// the conversion orchestration core with a CLI for batch conversion, tool
// checks, ffmpeg installation, and conversion history.
package main
