// Package source resolves video references into descriptive metadata and
// a readable media stream.
//
// The Resolver interface is the only thing the pipeline depends on. YtDlp
// is the production implementation; it runs the yt-dlp binary, which must
// be installed and on PATH (or configured through YTDLP_PATH).
//
// Every resolver failure wraps ErrSourceUnavailable. CheckDuration enforces
// the input-duration ceiling and returns ErrSourceTooLong; callers run it
// right after FetchMetadata and before any download starts.
package source
