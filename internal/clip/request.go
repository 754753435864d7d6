package clip

import (
	"encoding/json"
	"fmt"
	"math"
	"strconv"
	"strings"
)

// Quality selects the output resolution and bitrate preset.
type Quality string

// Known quality tiers.
const (
	QualityLow    Quality = "low"
	QualityMedium Quality = "medium"
	QualityHigh   Quality = "high"
)

// DefaultQuality is used when a request names no tier or an unknown one.
const DefaultQuality = QualityMedium

// Preset is the fixed output box and video bitrate for a quality tier.
type Preset struct {
	Width   int    `json:"width"`
	Height  int    `json:"height"`
	Bitrate string `json:"bitrate"`
}

// FontSize returns the watermark font size for this preset: one twentieth
// of the output width, rounded down.
func (p Preset) FontSize() int {
	return p.Width / 20
}

// String formats the preset as WxH@bitrate.
func (p Preset) String() string {
	return fmt.Sprintf("%dx%d@%s", p.Width, p.Height, p.Bitrate)
}

var presets = map[Quality]Preset{
	QualityLow:    {Width: 480, Height: 854, Bitrate: "1000k"},
	QualityMedium: {Width: 720, Height: 1280, Bitrate: "2500k"},
	QualityHigh:   {Width: 1080, Height: 1920, Bitrate: "4000k"},
}

// ParseQuality normalizes a quality name. The boolean reports whether the
// name was recognized; when it is false the returned tier is DefaultQuality.
func ParseQuality(s string) (Quality, bool) {
	q := Quality(strings.ToLower(strings.TrimSpace(s)))
	if _, ok := presets[q]; ok {
		return q, true
	}
	return DefaultQuality, false
}

// PresetFor returns the preset of a quality tier, falling back to the
// default tier's preset for unknown values.
func PresetFor(q Quality) Preset {
	if p, ok := presets[q]; ok {
		return p
	}
	return presets[DefaultQuality]
}

// Effect is a visual effect directive.
type Effect string

// Known effects. EffectBounce is accepted but only styles the web preview.
const (
	EffectZoom   Effect = "zoom"
	EffectFade   Effect = "fade"
	EffectFlash  Effect = "flash"
	EffectBounce Effect = "bounce"
)

var knownEffects = map[Effect]bool{
	EffectZoom:   true,
	EffectFade:   true,
	EffectFlash:  true,
	EffectBounce: true,
}

// ParseEffect normalizes an effect name and reports whether it is known.
func ParseEffect(s string) (Effect, bool) {
	e := Effect(strings.ToLower(strings.TrimSpace(s)))
	return e, knownEffects[e]
}

// Seconds is a whole number of seconds. It decodes from a JSON number or a
// numeric string, since form inputs post their values as strings;
// fractional values are truncated toward zero.
type Seconds int

// UnmarshalJSON implements json.Unmarshaler.
func (s *Seconds) UnmarshalJSON(data []byte) error {
	raw := strings.TrimSpace(string(data))
	if raw == "null" {
		return nil
	}
	if strings.HasPrefix(raw, `"`) {
		var str string
		if err := json.Unmarshal(data, &str); err != nil {
			return err
		}
		raw = strings.TrimSpace(str)
		if raw == "" {
			return nil
		}
	}
	f, err := strconv.ParseFloat(raw, 64)
	if err != nil || math.IsNaN(f) || math.IsInf(f, 0) {
		return fmt.Errorf("invalid seconds value %q", raw)
	}
	if f > math.MaxInt32 || f < math.MinInt32 {
		return fmt.Errorf("seconds value %q out of range", raw)
	}
	*s = Seconds(int(f))
	return nil
}

// RawRequest is the body of POST /process-video as sent by the web client.
type RawRequest struct {
	VideoURL    string   `json:"videoUrl" validate:"required,max=2048,sourceref"`
	StartTime   Seconds  `json:"startTime" validate:"gte=0"`
	Duration    Seconds  `json:"duration" validate:"gt=0"`
	Quality     string   `json:"quality" validate:"max=32"`
	AspectRatio string   `json:"aspectRatio" validate:"max=16"`
	Watermark   string   `json:"watermark" validate:"max=100"`
	Effects     []string `json:"effects" validate:"max=8,dive,max=32"`
}

// Request is an accepted clip job. It is never modified after Validate
// returns it.
type Request struct {
	SourceRef   string   `json:"sourceRef"`
	StartOffset int      `json:"startOffset"`
	Duration    int      `json:"duration"`
	Quality     Quality  `json:"quality"`
	Preset      Preset   `json:"preset"`
	AspectRatio string   `json:"aspectRatio,omitempty"`
	Watermark   string   `json:"watermark,omitempty"`
	Effects     []Effect `json:"effects,omitempty"`
}

// HasEffect reports whether the request asked for e.
func (r *Request) HasEffect(e Effect) bool {
	for _, have := range r.Effects {
		if have == e {
			return true
		}
	}
	return false
}

// End returns the end of the trim window in seconds.
func (r *Request) End() int {
	return r.StartOffset + r.Duration
}
