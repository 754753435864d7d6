package transcoder

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"sync"
	"testing"

	"reel-server/internal/clip"
)

func mediumSpec() Spec {
	return Spec{
		Input:    "/stage/stage-1",
		Output:   "/out/reel_1_abc.mp4",
		Start:    10,
		Duration: 15,
		Preset:   clip.PresetFor(clip.QualityMedium),
	}
}

func TestBuildFiltersBase(t *testing.T) {
	got := BuildFilters(mediumSpec())
	want := []string{
		"scale=720:1280:force_original_aspect_ratio=decrease",
		"pad=720:1280:(ow-iw)/2:(oh-ih)/2",
	}
	if strings.Join(got, ",") != strings.Join(want, ",") {
		t.Errorf("BuildFilters() = %v, want %v", got, want)
	}
}

func TestBuildFiltersWatermarkFontSize(t *testing.T) {
	tests := []struct {
		quality clip.Quality
		size    string
	}{
		{clip.QualityLow, "fontsize=24"},
		{clip.QualityMedium, "fontsize=36"},
		{clip.QualityHigh, "fontsize=54"},
	}

	for _, tt := range tests {
		t.Run(string(tt.quality), func(t *testing.T) {
			s := mediumSpec()
			s.Preset = clip.PresetFor(tt.quality)
			s.Watermark = "@creator"

			filters := BuildFilters(s)
			if len(filters) != 3 {
				t.Fatalf("Expected 3 filters, got %v", filters)
			}
			dt := filters[2]
			if !strings.HasPrefix(dt, "drawtext=text=@creator:") {
				t.Errorf("Unexpected drawtext filter: %s", dt)
			}
			for _, part := range []string{tt.size, "fontcolor=white", "x=(w-text_w)-20", "y=(h-text_h)-20", "shadowcolor=black", "shadowx=2", "shadowy=2"} {
				if !strings.Contains(dt, part) {
					t.Errorf("drawtext %q missing %q", dt, part)
				}
			}
		})
	}
}

func TestBuildFiltersEffects(t *testing.T) {
	s := mediumSpec()
	s.Effects = []clip.Effect{clip.EffectFlash, clip.EffectBounce, clip.EffectZoom, clip.EffectFade}

	got := BuildFilters(s)[2:]
	want := []string{
		"zoompan=z='min(zoom+0.0015,1.2)':x='iw/2-(iw/zoom/2)':y='ih/2-(ih/zoom/2)':d=1:s=720x1280",
		"curves=preset=lighter",
		"fade=t=in:st=0:n=30",
		"fade=t=out:st=14:d=1",
	}
	if len(got) != len(want) {
		t.Fatalf("effect filters = %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("filter[%d] = %q, want %q", i, got[i], want[i])
		}
	}
}

func TestBuildFiltersZoomBeforeWatermark(t *testing.T) {
	s := mediumSpec()
	s.Watermark = "@creator"
	s.Effects = []clip.Effect{clip.EffectFade, clip.EffectZoom}

	got := BuildFilters(s)
	if len(got) != 6 {
		t.Fatalf("BuildFilters() = %v", got)
	}
	if !strings.HasPrefix(got[2], "zoompan=") || !strings.Contains(got[2], "x='iw/2-(iw/zoom/2)'") {
		t.Errorf("filter[2] = %q, want a centred zoompan", got[2])
	}
	if !strings.HasPrefix(got[3], "drawtext=") {
		t.Errorf("filter[3] = %q, want the watermark after the zoom", got[3])
	}
}

func TestBuildFiltersFadeOneSecond(t *testing.T) {
	s := mediumSpec()
	s.Duration = 1
	s.Effects = []clip.Effect{clip.EffectFade}

	got := BuildFilters(s)
	if last := got[len(got)-1]; last != "fade=t=out:st=0:d=1" {
		t.Errorf("fade out = %q", last)
	}
}

func TestEscapeFilterValue(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"plain text", "plain text"},
		{"a:b", `a\\:b`},
		{"it's", `it\\\'s`},
		{"one, two", `one\, two`},
		{"[tag];", `\[tag\]\;`},
		{`back\slash`, `back\\\\slash`},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			if got := escapeFilterValue(tt.in); got != tt.want {
				t.Errorf("escapeFilterValue(%q) = %q, want %q", tt.in, got, tt.want)
			}
		})
	}
}

func TestBuildArgs(t *testing.T) {
	s := mediumSpec()
	args := BuildArgs(s)
	joined := strings.Join(args, " ")

	for _, part := range []string{
		"-ss 10 -t 15 -i /stage/stage-1",
		"-c:v libx264 -b:v 2500k",
		"-pix_fmt yuv420p",
		"-c:a aac",
		"-movflags +faststart",
		"-progress pipe:1 -nostats",
		"-f mp4 /out/reel_1_abc.mp4",
	} {
		if !strings.Contains(joined, part) {
			t.Errorf("args %q missing %q", joined, part)
		}
	}
	if args[len(args)-1] != s.Output {
		t.Errorf("Expected output last, got %q", args[len(args)-1])
	}
}

func TestSpecFor(t *testing.T) {
	req := &clip.Request{
		SourceRef:   "dQw4w9WgXcQ",
		StartOffset: 5,
		Duration:    20,
		Quality:     clip.QualityHigh,
		Preset:      clip.PresetFor(clip.QualityHigh),
		Watermark:   "hi",
		Effects:     []clip.Effect{clip.EffectZoom},
	}

	s := SpecFor(req, "in", "out")
	if s.Input != "in" || s.Output != "out" || s.Start != 5 || s.Duration != 20 {
		t.Errorf("SpecFor() = %+v", s)
	}
	if s.Preset.Width != 1080 || s.Watermark != "hi" || len(s.Effects) != 1 {
		t.Errorf("SpecFor() = %+v", s)
	}
}

func TestSpecWithin(t *testing.T) {
	tests := []struct {
		name   string
		source int
		want   int
	}{
		{"unknown length", 0, 15},
		{"long source", 120, 15},
		{"exact fit", 25, 15},
		{"source ends early", 20, 10},
		{"start past end", 8, 15},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := mediumSpec().Within(tt.source).Duration; got != tt.want {
				t.Errorf("Within(%d).Duration = %d, want %d", tt.source, got, tt.want)
			}
		})
	}
}

func TestParseProgress(t *testing.T) {
	tests := []struct {
		key, value string
		want       float64
		ok         bool
	}{
		{"out_time_us", "7500000", 0.5, true},
		{"out_time_ms", "15000000", 1, true},
		{"out_time_us", "30000000", 1, true},
		{"out_time_us", "-1000", 0, true},
		{"out_time_us", "N/A", 0, false},
		{"progress", "end", 1, true},
		{"progress", "continue", 0, false},
		{"frame", "12", 0, false},
	}

	for _, tt := range tests {
		t.Run(tt.key+"="+tt.value, func(t *testing.T) {
			got, ok := parseProgress(tt.key, tt.value, 15)
			if ok != tt.ok || got != tt.want {
				t.Errorf("parseProgress() = %v, %v; want %v, %v", got, ok, tt.want, tt.ok)
			}
		})
	}

	if _, ok := parseProgress("out_time_us", "1", 0); ok {
		t.Error("Expected zero duration to report nothing")
	}
}

func TestHasFormat(t *testing.T) {
	output := `File formats:
 D. = Demuxing supported
 .E = Muxing supported
 --
 D  mov,mp4,m4a,3gp,3g2,mj2 QuickTime / MOV
  E mp4             MP4 (MPEG-4 Part 14)
 DE matroska,webm   Matroska / WebM
`
	if !hasFormat(output, "mp4") {
		t.Error("Expected mp4 to be found")
	}
	if !hasFormat(output, "webm") {
		t.Error("Expected webm to be found")
	}
	if hasFormat(output, "flv") {
		t.Error("Did not expect flv")
	}
	if hasFormat("", "mp4") {
		t.Error("Did not expect match in empty output")
	}
}

// fakeFFmpeg writes a shell script standing in for ffmpeg.
func fakeFFmpeg(t *testing.T, body string) string {
	t.Helper()
	if runtime.GOOS == "windows" {
		t.Skip("shell scripts not supported on windows")
	}
	path := filepath.Join(t.TempDir(), "ffmpeg")
	if err := os.WriteFile(path, []byte("#!/bin/sh\n"+body+"\n"), 0o755); err != nil {
		t.Fatalf("write fake ffmpeg: %v", err)
	}
	return path
}

func TestTranscodeReportsProgress(t *testing.T) {
	bin := fakeFFmpeg(t, `printf "frame=1\nout_time_us=5000000\nprogress=continue\nout_time_us=10000000\nprogress=end\n"`)
	tr := New(bin)

	var mu sync.Mutex
	var seen []float64
	err := tr.Transcode(context.Background(), Spec{Duration: 10, Preset: clip.PresetFor(clip.QualityLow), Output: "out.mp4"}, func(f float64) {
		mu.Lock()
		seen = append(seen, f)
		mu.Unlock()
	})
	if err != nil {
		t.Fatalf("Transcode() error = %v", err)
	}

	want := []float64{0.5, 1, 1, 1}
	if len(seen) != len(want) {
		t.Fatalf("progress = %v, want %v", seen, want)
	}
	for i := range want {
		if seen[i] != want[i] {
			t.Errorf("progress[%d] = %v, want %v", i, seen[i], want[i])
		}
	}
	if tr.Active() != 0 {
		t.Errorf("Active() = %d, want 0", tr.Active())
	}
}

func TestTranscodeFailureCarriesStderr(t *testing.T) {
	bin := fakeFFmpeg(t, `echo "stage-1: Invalid data found when processing input" >&2; exit 1`)
	tr := New(bin)

	err := tr.Transcode(context.Background(), Spec{Duration: 5, Preset: clip.PresetFor(clip.QualityLow)}, nil)
	if err == nil {
		t.Fatal("Expected error")
	}
	if !strings.Contains(err.Error(), "Invalid data found") {
		t.Errorf("Expected stderr tail in error, got %v", err)
	}
}

func TestTranscodeCancelled(t *testing.T) {
	bin := fakeFFmpeg(t, `exec sleep 30`)
	tr := New(bin)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := tr.Transcode(ctx, Spec{Duration: 5, Preset: clip.PresetFor(clip.QualityLow)}, nil)
	if err == nil {
		t.Fatal("Expected error")
	}
	if !errors.Is(err, context.Canceled) {
		t.Errorf("Expected context.Canceled, got %v", err)
	}
}

func TestTranscodeRejectsZeroDuration(t *testing.T) {
	tr := New("ffmpeg-not-called")
	if err := tr.Transcode(context.Background(), Spec{}, nil); err == nil {
		t.Error("Expected error for zero duration")
	}
}

func TestProbe(t *testing.T) {
	ok := fakeFFmpeg(t, `printf "File formats:\n  E mp4             MP4\n"`)
	if err := New(ok).Probe(context.Background()); err != nil {
		t.Errorf("Probe() error = %v", err)
	}

	noMP4 := fakeFFmpeg(t, `printf "File formats:\n DE flv  FLV\n"`)
	if err := New(noMP4).Probe(context.Background()); !errors.Is(err, ErrUnsupported) {
		t.Errorf("Probe() error = %v, want ErrUnsupported", err)
	}

	broken := fakeFFmpeg(t, `exit 2`)
	if err := New(broken).Probe(context.Background()); err == nil {
		t.Error("Expected probe failure")
	}
}

func TestVersion(t *testing.T) {
	bin := fakeFFmpeg(t, `printf "ffmpeg version 6.1.1 Copyright\nbuilt with gcc\n"`)
	v, err := New(bin).Version(context.Background())
	if err != nil {
		t.Fatalf("Version() error = %v", err)
	}
	if v != "ffmpeg version 6.1.1 Copyright" {
		t.Errorf("Version() = %q", v)
	}
}

func TestNewDefaults(t *testing.T) {
	tr := New("")
	if tr.Path() != "ffmpeg" {
		t.Errorf("Path() = %q, want ffmpeg", tr.Path())
	}
	if tr.probeTimeout != DefaultProbeTimeout {
		t.Errorf("probeTimeout = %v", tr.probeTimeout)
	}
	tr.Cleanup()
}
