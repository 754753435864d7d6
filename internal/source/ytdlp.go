package source

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"math"
	"os/exec"
	"strings"
	"sync"
	"time"

	"reel-server/internal/logging"
	"reel-server/internal/process"
)

// DefaultMetadataTimeout bounds a single metadata lookup.
const DefaultMetadataTimeout = 2 * time.Minute

// bestMuxed is yt-dlp's selector for the best single file with video and audio.
const bestMuxed = "b"

// YtDlp resolves sources by running the yt-dlp binary.
type YtDlp struct {
	binaryPath      string
	metadataTimeout time.Duration
	procs           *process.Registry
	log             *logging.Logger
}

// NewYtDlp creates a resolver using binaryPath ("yt-dlp" when empty).
func NewYtDlp(binaryPath string) *YtDlp {
	if binaryPath == "" {
		binaryPath = "yt-dlp"
	}
	return &YtDlp{
		binaryPath:      binaryPath,
		metadataTimeout: DefaultMetadataTimeout,
		procs:           process.NewRegistry(),
		log:             logging.With("yt-dlp"),
	}
}

// BinaryPath returns the configured binary.
func (y *YtDlp) BinaryPath() string {
	return y.binaryPath
}

// Active returns the number of running yt-dlp processes.
func (y *YtDlp) Active() int {
	return y.procs.Len()
}

// Close kills any running yt-dlp processes.
func (y *YtDlp) Close() {
	if n := y.procs.KillAll(); n > 0 {
		y.log.Info("killed %d running process(es)", n)
	}
}

// Version runs `yt-dlp --version`. It has no side effects and doubles as a
// readiness probe.
func (y *YtDlp) Version(ctx context.Context) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	out, err := exec.CommandContext(ctx, y.binaryPath, "--version").Output()
	if err != nil {
		return "", fmt.Errorf("yt-dlp --version failed: %w", err)
	}
	return strings.TrimSpace(string(out)), nil
}

// ExpandRef turns an opaque video ID into a watch URL. URLs pass through.
func ExpandRef(ref string) string {
	ref = strings.TrimSpace(ref)
	if strings.Contains(ref, "://") {
		return ref
	}
	return "https://www.youtube.com/watch?v=" + ref
}

// FetchMetadata implements Resolver.
func (y *YtDlp) FetchMetadata(ctx context.Context, ref string) (*Metadata, error) {
	ctx, cancel := context.WithTimeout(ctx, y.metadataTimeout)
	defer cancel()

	url := ExpandRef(ref)
	cmd := exec.CommandContext(ctx, y.binaryPath,
		"--dump-single-json", "--no-warnings", "--no-playlist", url)

	var out bytes.Buffer
	stderr := process.NewTail(process.DefaultTailLines).Echo(y.log, "stderr")
	cmd.Stdout = &out
	cmd.Stderr = stderr

	y.log.Debug("fetching metadata for %s", url)
	if err := cmd.Start(); err != nil {
		return nil, fmt.Errorf("%w: failed to start yt-dlp: %v", ErrSourceUnavailable, err)
	}
	forget := y.procs.Track("metadata", cmd)
	err := cmd.Wait()
	forget()

	if err != nil {
		if ctx.Err() != nil {
			return nil, fmt.Errorf("%w: metadata lookup aborted: %v", ErrSourceUnavailable, ctx.Err())
		}
		return nil, fmt.Errorf("%w: yt-dlp failed: %v, stderr: %s", ErrSourceUnavailable, err, stderr.String())
	}

	meta, err := parseMetadata(out.Bytes())
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrSourceUnavailable, err)
	}
	return meta, nil
}

// Open implements Resolver. The returned stream reports a non-zero yt-dlp
// exit as a read error, so a truncated download is never mistaken for EOF.
func (y *YtDlp) Open(ctx context.Context, ref string, sel Selector) (io.ReadCloser, error) {
	format := sel.FormatID
	if format == "" {
		format = bestMuxed
	}

	url := ExpandRef(ref)
	cmd := exec.CommandContext(ctx, y.binaryPath,
		"-f", format, "-o", "-", "--no-part", "--quiet", "--no-warnings", "--no-playlist", url)

	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return nil, fmt.Errorf("%w: failed to create stdout pipe: %v", ErrSourceUnavailable, err)
	}
	stderr := process.NewTail(process.DefaultTailLines).Echo(y.log, "stderr")
	cmd.Stderr = stderr

	y.log.Debug("opening stream for %s (format %s)", url, format)
	if err := cmd.Start(); err != nil {
		return nil, fmt.Errorf("%w: failed to start yt-dlp: %v", ErrSourceUnavailable, err)
	}

	return &stream{
		ctx:    ctx,
		cmd:    cmd,
		stdout: stdout,
		stderr: stderr,
		forget: y.procs.Track("stream", cmd),
	}, nil
}

// stream wraps yt-dlp's stdout and reaps the process.
type stream struct {
	ctx    context.Context
	cmd    *exec.Cmd
	stdout io.ReadCloser
	stderr *process.Tail
	forget func()

	once    sync.Once
	waitErr error
}

func (s *stream) Read(p []byte) (int, error) {
	n, err := s.stdout.Read(p)
	if errors.Is(err, io.EOF) {
		if werr := s.wait(); werr != nil {
			return n, werr
		}
	}
	return n, err
}

func (s *stream) wait() error {
	s.once.Do(func() {
		err := s.cmd.Wait()
		s.forget()
		switch {
		case err == nil:
		case s.ctx.Err() != nil:
			s.waitErr = fmt.Errorf("%w: download aborted: %v", ErrSourceUnavailable, s.ctx.Err())
		default:
			s.waitErr = fmt.Errorf("%w: yt-dlp failed: %v, stderr: %s", ErrSourceUnavailable, err, s.stderr.String())
		}
	})
	return s.waitErr
}

// Close stops the download if it is still running.
func (s *stream) Close() error {
	finished := s.cmd.ProcessState != nil
	if !finished && s.cmd.Process != nil {
		_ = s.cmd.Process.Kill()
	}
	_ = s.stdout.Close()
	err := s.wait()
	if !finished {
		// Killed by us; the exit status carries no information.
		return nil
	}
	return err
}

// ytdlpInfo is the subset of --dump-single-json output we read.
type ytdlpInfo struct {
	Title      string  `json:"title"`
	Duration   float64 `json:"duration"`
	Thumbnails []struct {
		URL    string `json:"url"`
		Width  int    `json:"width"`
		Height int    `json:"height"`
	} `json:"thumbnails"`
	Formats []struct {
		FormatID   string `json:"format_id"`
		FormatNote string `json:"format_note"`
		Ext        string `json:"ext"`
		VCodec     string `json:"vcodec"`
		ACodec     string `json:"acodec"`
		Width      int    `json:"width"`
		Height     int    `json:"height"`
	} `json:"formats"`
}

func parseMetadata(data []byte) (*Metadata, error) {
	var info ytdlpInfo
	if err := json.Unmarshal(data, &info); err != nil {
		return nil, fmt.Errorf("failed to parse yt-dlp output: %w", err)
	}
	if info.Duration < 0 || math.IsNaN(info.Duration) {
		return nil, fmt.Errorf("invalid duration %v", info.Duration)
	}

	meta := &Metadata{
		Title:           info.Title,
		DurationSeconds: int(math.Round(info.Duration)),
		Thumbnails:      make([]Thumbnail, 0, len(info.Thumbnails)),
		Formats:         make([]Rendition, 0, len(info.Formats)),
	}

	for _, t := range info.Thumbnails {
		if t.URL == "" {
			continue
		}
		meta.Thumbnails = append(meta.Thumbnails, Thumbnail{URL: t.URL, Width: t.Width, Height: t.Height})
	}
	SortThumbnails(meta.Thumbnails)

	for _, f := range info.Formats {
		r := Rendition{
			FormatID:     f.FormatID,
			QualityLabel: f.FormatNote,
			Container:    f.Ext,
			Width:        f.Width,
			Height:       f.Height,
			HasVideo:     hasCodec(f.VCodec),
			HasAudio:     hasCodec(f.ACodec),
		}
		if r.QualityLabel == "" && r.Height > 0 {
			r.QualityLabel = fmt.Sprintf("%dp", r.Height)
		}
		if r.Container != "" {
			if r.HasVideo {
				r.MimeType = "video/" + r.Container
			} else if r.HasAudio {
				r.MimeType = "audio/" + r.Container
			}
		}
		meta.Formats = append(meta.Formats, r)
	}

	return meta, nil
}

func hasCodec(codec string) bool {
	return codec != "" && codec != "none"
}
