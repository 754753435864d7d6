package transcoder

import (
	"fmt"
	"slices"
	"strconv"
	"strings"

	"reel-server/internal/clip"
)

// Spec describes one encode of a staged source into a clip.
type Spec struct {
	Input     string
	Output    string
	Start     int
	Duration  int
	Preset    clip.Preset
	Watermark string
	Effects   []clip.Effect
}

// SpecFor builds the encode spec of an accepted request.
func SpecFor(req *clip.Request, input, output string) Spec {
	return Spec{
		Input:     input,
		Output:    output,
		Start:     req.StartOffset,
		Duration:  req.Duration,
		Preset:    req.Preset,
		Watermark: req.Watermark,
		Effects:   req.Effects,
	}
}

// Within shortens the clip so it ends no later than a source of
// sourceSeconds. An unknown length (0) leaves s unchanged.
func (s Spec) Within(sourceSeconds int) Spec {
	if sourceSeconds <= 0 {
		return s
	}
	if rest := sourceSeconds - s.Start; rest > 0 && rest < s.Duration {
		s.Duration = rest
	}
	return s
}

// fadeFrames is the length of the fade-in, about one second at 30fps.
const fadeFrames = 30

// BuildFilters returns the video filters in the order they are applied:
// fit, pad, zoom, watermark, then the remaining effects in request order.
// Zooming before the watermark keeps the text inside the frame.
func BuildFilters(s Spec) []string {
	w, h := s.Preset.Width, s.Preset.Height

	filters := []string{
		fmt.Sprintf("scale=%d:%d:force_original_aspect_ratio=decrease", w, h),
		fmt.Sprintf("pad=%d:%d:(ow-iw)/2:(oh-ih)/2", w, h),
	}

	if slices.Contains(s.Effects, clip.EffectZoom) {
		filters = append(filters, fmt.Sprintf(
			"zoompan=z='min(zoom+0.0015,1.2)':x='iw/2-(iw/zoom/2)':y='ih/2-(ih/zoom/2)':d=1:s=%dx%d", w, h))
	}

	if s.Watermark != "" {
		filters = append(filters, drawtext(s.Watermark, s.Preset.FontSize()))
	}

	for _, e := range s.Effects {
		switch e {
		case clip.EffectFade:
			fadeOut := s.Duration - 1
			if fadeOut < 0 {
				fadeOut = 0
			}
			filters = append(filters,
				fmt.Sprintf("fade=t=in:st=0:n=%d", fadeFrames),
				fmt.Sprintf("fade=t=out:st=%d:d=1", fadeOut))
		case clip.EffectFlash:
			filters = append(filters, "curves=preset=lighter")
		}
		// zoom is placed above; bounce only styles the web preview
	}

	return filters
}

// FilterChain joins BuildFilters into a single -vf argument.
func FilterChain(s Spec) string {
	return strings.Join(BuildFilters(s), ",")
}

func drawtext(text string, fontSize int) string {
	return "drawtext=text=" + escapeFilterValue(text) +
		":expansion=none" +
		":fontsize=" + strconv.Itoa(fontSize) +
		":fontcolor=white" +
		":x=(w-text_w)-20:y=(h-text_h)-20" +
		":shadowcolor=black:shadowx=2:shadowy=2"
}

// escapeFilterValue escapes an option value twice: once for the filter's
// key=value parser and once for the filtergraph parser.
func escapeFilterValue(v string) string {
	return escapeChars(escapeChars(v, `\':`), `\'[],;`)
}

func escapeChars(s, special string) string {
	var b strings.Builder
	b.Grow(len(s))
	for _, r := range s {
		if strings.ContainsRune(special, r) {
			b.WriteByte('\\')
		}
		b.WriteRune(r)
	}
	return b.String()
}

// BuildArgs returns the ffmpeg argument list for s.
func BuildArgs(s Spec) []string {
	return []string{
		"-hide_banner",
		"-y",
		"-ss", strconv.Itoa(s.Start),
		"-t", strconv.Itoa(s.Duration),
		"-i", s.Input,
		"-vf", FilterChain(s),
		"-c:v", "libx264",
		"-b:v", s.Preset.Bitrate,
		"-pix_fmt", "yuv420p",
		"-c:a", "aac",
		"-movflags", "+faststart",
		"-progress", "pipe:1",
		"-nostats",
		"-f", "mp4",
		s.Output,
	}
}
