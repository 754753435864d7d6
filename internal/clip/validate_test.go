package clip

import (
	"errors"
	"strings"
	"testing"
)

func validRaw() RawRequest {
	return RawRequest{
		VideoURL:  "https://www.youtube.com/watch?v=dQw4w9WgXcQ",
		StartTime: 5,
		Duration:  15,
		Quality:   "medium",
		Watermark: "@test",
		Effects:   []string{"fade"},
	}
}

func TestValidateAcceptsValidRequest(t *testing.T) {
	req, err := Validate(validRaw(), Limits{MaxOutputDuration: 60})
	if err != nil {
		t.Fatalf("Validate() unexpected error: %v", err)
	}

	if req.SourceRef != "https://www.youtube.com/watch?v=dQw4w9WgXcQ" {
		t.Errorf("SourceRef = %q", req.SourceRef)
	}
	if req.StartOffset != 5 || req.Duration != 15 {
		t.Errorf("Window = [%d,+%d], want [5,+15]", req.StartOffset, req.Duration)
	}
	if req.Preset.Width != 720 || req.Preset.Height != 1280 {
		t.Errorf("Preset = %s, want 720x1280", req.Preset)
	}
	if req.Watermark != "@test" {
		t.Errorf("Watermark = %q", req.Watermark)
	}
	if len(req.Effects) != 1 || req.Effects[0] != EffectFade {
		t.Errorf("Effects = %v, want [fade]", req.Effects)
	}
}

func TestValidateRejections(t *testing.T) {
	tests := []struct {
		name      string
		mutate    func(r *RawRequest)
		limits    Limits
		wantField string
		wantMsg   string
	}{
		{
			name:      "missing url",
			mutate:    func(r *RawRequest) { r.VideoURL = "" },
			wantField: "videoUrl",
			wantMsg:   "Video URL is required",
		},
		{
			name:      "whitespace url",
			mutate:    func(r *RawRequest) { r.VideoURL = "   " },
			wantField: "videoUrl",
			wantMsg:   "Video URL is required",
		},
		{
			name:      "malformed url",
			mutate:    func(r *RawRequest) { r.VideoURL = "ftp://example.com/video" },
			wantField: "videoUrl",
			wantMsg:   "Video URL must be",
		},
		{
			name:      "negative start",
			mutate:    func(r *RawRequest) { r.StartTime = -1 },
			wantField: "startTime",
			wantMsg:   "Start time cannot be negative",
		},
		{
			name:      "zero duration",
			mutate:    func(r *RawRequest) { r.Duration = 0 },
			wantField: "duration",
			wantMsg:   "Duration must be greater than 0",
		},
		{
			name:      "duration above default ceiling",
			mutate:    func(r *RawRequest) { r.Duration = 61 },
			wantField: "duration",
			wantMsg:   "Output duration cannot exceed 60 seconds",
		},
		{
			name:      "duration above configured ceiling",
			mutate:    func(r *RawRequest) { r.Duration = 31 },
			limits:    Limits{MaxOutputDuration: 30},
			wantField: "duration",
			wantMsg:   "Output duration cannot exceed 30 seconds",
		},
		{
			name:      "watermark too long",
			mutate:    func(r *RawRequest) { r.Watermark = strings.Repeat("w", 101) },
			wantField: "watermark",
			wantMsg:   "'watermark' must be no longer than 100",
		},
		{
			name: "too many effects",
			mutate: func(r *RawRequest) {
				r.Effects = []string{"a", "b", "c", "d", "e", "f", "g", "h", "i"}
			},
			wantField: "effects",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			raw := validRaw()
			tt.mutate(&raw)

			req, err := Validate(raw, tt.limits)
			if err == nil {
				t.Fatalf("Expected error, got request %+v", req)
			}
			if !errors.Is(err, ErrInvalidRequest) {
				t.Errorf("Expected ErrInvalidRequest, got %v", err)
			}

			var verr *ValidationError
			if !errors.As(err, &verr) {
				t.Fatalf("Expected *ValidationError, got %T", err)
			}
			if verr.Field != tt.wantField {
				t.Errorf("Field = %q, want %q", verr.Field, tt.wantField)
			}
			if tt.wantMsg != "" && !strings.Contains(verr.Message, tt.wantMsg) {
				t.Errorf("Message = %q, want it to contain %q", verr.Message, tt.wantMsg)
			}
		})
	}
}

func TestValidateDurationAtCeiling(t *testing.T) {
	raw := validRaw()
	raw.Duration = 60
	if _, err := Validate(raw, Limits{MaxOutputDuration: 60}); err != nil {
		t.Errorf("Duration equal to ceiling should be accepted, got %v", err)
	}
}

func TestValidateQualityFallback(t *testing.T) {
	for _, q := range []string{"", "4k", "MEDIUM"} {
		raw := validRaw()
		raw.Quality = q
		req, err := Validate(raw, Limits{})
		if err != nil {
			t.Fatalf("Validate(quality=%q) error: %v", q, err)
		}
		if req.Quality != QualityMedium {
			t.Errorf("Validate(quality=%q).Quality = %s, want medium", q, req.Quality)
		}
	}
}

func TestValidateEffects(t *testing.T) {
	raw := validRaw()
	raw.Effects = []string{"Zoom", "sparkle", "fade", "zoom", "bounce"}

	req, err := Validate(raw, Limits{})
	if err != nil {
		t.Fatalf("Validate() error: %v", err)
	}

	want := []Effect{EffectZoom, EffectFade, EffectBounce}
	if len(req.Effects) != len(want) {
		t.Fatalf("Effects = %v, want %v", req.Effects, want)
	}
	for i := range want {
		if req.Effects[i] != want[i] {
			t.Errorf("Effects[%d] = %s, want %s", i, req.Effects[i], want[i])
		}
	}
}

func TestValidateOpaqueID(t *testing.T) {
	raw := validRaw()
	raw.VideoURL = "dQw4w9WgXcQ"
	if _, err := Validate(raw, Limits{}); err != nil {
		t.Errorf("Expected opaque ID to be accepted, got %v", err)
	}
}

func TestValidateCleansWatermark(t *testing.T) {
	raw := validRaw()
	raw.Watermark = "  @line1\nline2  "
	req, err := Validate(raw, Limits{})
	if err != nil {
		t.Fatalf("Validate() error: %v", err)
	}
	if req.Watermark != "@line1 line2" {
		t.Errorf("Watermark = %q, want %q", req.Watermark, "@line1 line2")
	}
}

func TestIsSourceRef(t *testing.T) {
	tests := []struct {
		input string
		want  bool
	}{
		{"https://youtu.be/dQw4w9WgXcQ", true},
		{"http://example.com/v.mp4", true},
		{"dQw4w9WgXcQ", true},
		{"", false},
		{"abc", false},
		{"https://", false},
		{"javascript:alert(1)", false},
		{"not a url at all", false},
	}

	for _, tt := range tests {
		if got := IsSourceRef(tt.input); got != tt.want {
			t.Errorf("IsSourceRef(%q) = %v, want %v", tt.input, got, tt.want)
		}
	}
}

func TestDecodeRaw(t *testing.T) {
	raw, err := DecodeRaw(strings.NewReader(`{"videoUrl":"dQw4w9WgXcQ","startTime":"3","duration":10,"effects":["zoom"]}`))
	if err != nil {
		t.Fatalf("DecodeRaw() error: %v", err)
	}
	if raw.StartTime != 3 || raw.Duration != 10 {
		t.Errorf("Decoded window = %d/%d, want 3/10", raw.StartTime, raw.Duration)
	}

	_, err = DecodeRaw(strings.NewReader(`{"videoUrl":`))
	if !errors.Is(err, ErrInvalidRequest) {
		t.Errorf("Expected ErrInvalidRequest for malformed JSON, got %v", err)
	}
}
