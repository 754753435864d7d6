package source

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sort"
)

var (
	// ErrSourceUnavailable indicates the resolver could not fetch metadata
	// or open the media stream. Callers may retry.
	ErrSourceUnavailable = errors.New("source unavailable")

	// ErrSourceTooLong indicates the source exceeds the configured input
	// duration ceiling.
	ErrSourceTooLong = errors.New("source too long")
)

// DefaultMaxVideoDuration is the input ceiling in seconds.
const DefaultMaxVideoDuration = 300

// Thumbnail is one preview image variant.
type Thumbnail struct {
	URL    string `json:"url"`
	Width  int    `json:"width,omitempty"`
	Height int    `json:"height,omitempty"`
}

// Rendition is one downloadable encoding of the source.
type Rendition struct {
	FormatID     string `json:"itag"`
	QualityLabel string `json:"qualityLabel,omitempty"`
	MimeType     string `json:"mimeType,omitempty"`
	Container    string `json:"container,omitempty"`
	Width        int    `json:"width,omitempty"`
	Height       int    `json:"height,omitempty"`
	HasVideo     bool   `json:"hasVideo"`
	HasAudio     bool   `json:"hasAudio"`
}

// Muxed reports whether the rendition carries both video and audio.
func (r Rendition) Muxed() bool {
	return r.HasVideo && r.HasAudio
}

// Metadata describes a source video.
type Metadata struct {
	Title           string      `json:"title"`
	DurationSeconds int         `json:"duration"`
	Thumbnails      []Thumbnail `json:"thumbnails"`
	Formats         []Rendition `json:"formats"`
}

// MuxedFormats returns the renditions that carry both video and audio.
func (m *Metadata) MuxedFormats() []Rendition {
	out := make([]Rendition, 0, len(m.Formats))
	for _, f := range m.Formats {
		if f.Muxed() {
			out = append(out, f)
		}
	}
	return out
}

// SortThumbnails orders thumbnails by ascending resolution.
func SortThumbnails(thumbs []Thumbnail) {
	sort.SliceStable(thumbs, func(i, j int) bool {
		return thumbs[i].Width*thumbs[i].Height < thumbs[j].Width*thumbs[j].Height
	})
}

// Selector picks the rendition to download. The zero value selects the
// best rendition with both video and audio.
type Selector struct {
	FormatID string
}

// Resolver turns a video reference into metadata and a media stream.
type Resolver interface {
	// FetchMetadata returns descriptive metadata without downloading media.
	FetchMetadata(ctx context.Context, ref string) (*Metadata, error)

	// Open returns the full media stream of the selected rendition. The
	// caller must close it; a read error means the stream failed.
	Open(ctx context.Context, ref string, sel Selector) (io.ReadCloser, error)
}

// CheckDuration returns ErrSourceTooLong when meta exceeds maxSeconds.
// A non-positive maxSeconds means DefaultMaxVideoDuration.
func CheckDuration(meta *Metadata, maxSeconds int) error {
	if maxSeconds <= 0 {
		maxSeconds = DefaultMaxVideoDuration
	}
	if meta != nil && meta.DurationSeconds > maxSeconds {
		return &TooLongError{Duration: meta.DurationSeconds, Max: maxSeconds}
	}
	return nil
}

// TooLongError reports a source over the input ceiling. It matches
// ErrSourceTooLong with errors.Is.
type TooLongError struct {
	Duration int
	Max      int
}

func (e *TooLongError) Error() string {
	return fmt.Sprintf("Video is too long. Maximum duration is %d seconds.", e.Max)
}

// Is reports whether target is ErrSourceTooLong.
func (e *TooLongError) Is(target error) bool {
	return target == ErrSourceTooLong
}
