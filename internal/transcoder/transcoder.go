package transcoder

import (
	"bufio"
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"os/exec"
	"strconv"
	"strings"
	"time"

	"reel-server/internal/logging"
	"reel-server/internal/process"
)

// DefaultProbeTimeout bounds Probe.
const DefaultProbeTimeout = 5 * time.Second

// ErrUnsupported is returned by Probe when ffmpeg runs but lacks MP4 support.
var ErrUnsupported = errors.New("ffmpeg lacks mp4 support")

// ProgressFunc receives encode progress in [0,1]. Calls are best effort.
type ProgressFunc func(fraction float64)

// Transcoder runs FFmpeg encodes.
type Transcoder struct {
	ffmpegPath   string
	probeTimeout time.Duration
	procs        *process.Registry
}

// New creates a Transcoder using ffmpegPath ("ffmpeg" when empty).
func New(ffmpegPath string) *Transcoder {
	if ffmpegPath == "" {
		ffmpegPath = "ffmpeg"
	}
	return &Transcoder{
		ffmpegPath:   ffmpegPath,
		probeTimeout: DefaultProbeTimeout,
		procs:        process.NewRegistry(),
	}
}

// Path returns the configured ffmpeg binary.
func (t *Transcoder) Path() string {
	return t.ffmpegPath
}

// Active returns the number of running encodes.
func (t *Transcoder) Active() int {
	return t.procs.Len()
}

// Transcode encodes s.Input into s.Output. It blocks until ffmpeg exits or
// ctx is done, in which case the process is killed.
func (t *Transcoder) Transcode(ctx context.Context, s Spec, onProgress ProgressFunc) error {
	if s.Duration <= 0 {
		return fmt.Errorf("invalid clip duration %d", s.Duration)
	}

	args := BuildArgs(s)
	log := logging.With("ffmpeg " + s.Output)
	log.Debug("running %s %s", t.ffmpegPath, strings.Join(args, " "))

	cmd := exec.CommandContext(ctx, t.ffmpegPath, args...)
	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return fmt.Errorf("failed to create stdout pipe: %w", err)
	}
	stderr := process.NewTail(8).Echo(log, "stderr")
	cmd.Stderr = stderr

	if err := cmd.Start(); err != nil {
		return fmt.Errorf("failed to start ffmpeg: %w", err)
	}
	forget := t.procs.Track(s.Output, cmd)
	defer forget()

	readProgress(stdout, float64(s.Duration), onProgress)

	if err := cmd.Wait(); err != nil {
		if ctx.Err() != nil {
			return fmt.Errorf("encode aborted: %w", ctx.Err())
		}
		return fmt.Errorf("ffmpeg failed: %w: %s", err, stderr.String())
	}

	if onProgress != nil {
		onProgress(1)
	}
	return nil
}

// readProgress consumes ffmpeg's key=value progress stream until EOF.
func readProgress(r io.Reader, duration float64, onProgress ProgressFunc) {
	scanner := bufio.NewScanner(r)
	for scanner.Scan() {
		key, value, ok := strings.Cut(strings.TrimSpace(scanner.Text()), "=")
		if !ok || onProgress == nil {
			continue
		}
		if fraction, ok := parseProgress(key, value, duration); ok {
			onProgress(fraction)
		}
	}
	// Drain so ffmpeg never blocks on a full pipe.
	_, _ = io.Copy(io.Discard, r)
}

// parseProgress converts one progress line into a fraction of duration.
// out_time_ms is reported in microseconds, like out_time_us.
func parseProgress(key, value string, duration float64) (float64, bool) {
	if duration <= 0 {
		return 0, false
	}

	var seconds float64
	switch key {
	case "out_time_us", "out_time_ms":
		us, err := strconv.ParseInt(value, 10, 64)
		if err != nil {
			return 0, false
		}
		seconds = float64(us) / 1e6
	case "progress":
		if value == "end" {
			return 1, true
		}
		return 0, false
	default:
		return 0, false
	}

	fraction := seconds / duration
	switch {
	case fraction < 0:
		fraction = 0
	case fraction > 1:
		fraction = 1
	}
	return fraction, true
}

// Probe checks that ffmpeg runs and can mux MP4. It has no side effects.
func (t *Transcoder) Probe(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, t.probeTimeout)
	defer cancel()

	var out bytes.Buffer
	cmd := exec.CommandContext(ctx, t.ffmpegPath, "-hide_banner", "-formats")
	cmd.Stdout = &out
	cmd.Stderr = io.Discard

	if err := cmd.Run(); err != nil {
		return fmt.Errorf("ffmpeg probe failed: %w", err)
	}
	if !hasFormat(out.String(), "mp4") {
		return ErrUnsupported
	}
	return nil
}

// hasFormat reports whether `ffmpeg -formats` output lists name.
// Lines look like " DE mp4             MP4 (MPEG-4 Part 14)" and a format
// column may hold several comma-separated names.
func hasFormat(output, name string) bool {
	for _, line := range strings.Split(output, "\n") {
		fields := strings.Fields(line)
		if len(fields) < 2 || strings.Trim(fields[0], "DE.d") != "" {
			continue
		}
		for _, n := range strings.Split(fields[1], ",") {
			if n == name {
				return true
			}
		}
	}
	return false
}

// Version returns the first line of `ffmpeg -version`.
func (t *Transcoder) Version(ctx context.Context) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, t.probeTimeout)
	defer cancel()

	out, err := exec.CommandContext(ctx, t.ffmpegPath, "-version").Output()
	if err != nil {
		return "", fmt.Errorf("ffmpeg -version failed: %w", err)
	}
	first, _, _ := strings.Cut(string(out), "\n")
	return strings.TrimSpace(first), nil
}

// Cleanup stops all active encodes.
func (t *Transcoder) Cleanup() {
	if n := t.procs.KillAll(); n > 0 {
		logging.Info("Stopped %d active encode(s)", n)
	}
}
