// Package transcoder renders clips with FFmpeg.
//
// It supports:
//   - Building the scale, pad, watermark and effect filter chain for a clip
//   - Cutting a time window out of a staged source and encoding it to MP4
//   - Reporting encode progress parsed from FFmpeg's -progress output
//   - Probing the FFmpeg binary without side effects
//
// FFmpeg runs as an external process and must be installed; its path is
// configurable.
package transcoder
