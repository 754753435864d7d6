package clip

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/url"
	"reflect"
	"regexp"
	"strings"
	"unicode"

	"github.com/go-playground/validator/v10"
)

// ErrInvalidRequest is the root of every validation failure.
var ErrInvalidRequest = errors.New("invalid request")

// DefaultMaxOutputDuration is the output ceiling used when Limits leaves it unset.
const DefaultMaxOutputDuration = 60

// Limits carries the configured bounds a request is checked against.
type Limits struct {
	// MaxOutputDuration is the longest clip, in seconds, a job may produce.
	MaxOutputDuration int
}

func (l Limits) maxOutput() int {
	if l.MaxOutputDuration <= 0 {
		return DefaultMaxOutputDuration
	}
	return l.MaxOutputDuration
}

// ValidationError describes why a request was rejected. Message is safe to
// show to the caller.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	return e.Message
}

// Unwrap lets errors.Is match ErrInvalidRequest.
func (e *ValidationError) Unwrap() error {
	return ErrInvalidRequest
}

func invalid(field, format string, args ...interface{}) error {
	return &ValidationError{Field: field, Message: fmt.Sprintf(format, args...)}
}

var opaqueID = regexp.MustCompile(`^[A-Za-z0-9_-]{6,64}$`)

// IsSourceRef reports whether s is an http(s) URL with a host or an opaque
// video ID.
func IsSourceRef(s string) bool {
	s = strings.TrimSpace(s)
	if s == "" {
		return false
	}
	if opaqueID.MatchString(s) {
		return true
	}
	u, err := url.Parse(s)
	if err != nil {
		return false
	}
	return (u.Scheme == "http" || u.Scheme == "https") && u.Host != ""
}

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})
	if err := v.RegisterValidation("sourceref", func(fl validator.FieldLevel) bool {
		return IsSourceRef(fl.Field().String())
	}); err != nil {
		panic(fmt.Sprintf("clip: register sourceref validation: %v", err))
	}
	return v
}

// fieldMessages override the generic tag messages for specific fields.
var fieldMessages = map[string]string{
	"videoUrl.required":  "Video URL is required",
	"videoUrl.sourceref": "Video URL must be an http(s) link or a video ID",
	"duration.gt":        "Duration must be greater than 0 seconds",
	"startTime.gte":      "Start time cannot be negative",
}

var tagMessages = map[string]string{
	"required": "The field '%s' is required.",
	"max":      "The field '%s' must be no longer than %s.",
	"gt":       "The field '%s' must be greater than %s.",
	"gte":      "The field '%s' must be greater than or equal to %s.",
}

func translate(err error) error {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) || len(verrs) == 0 {
		return invalid("", "invalid request: %v", err)
	}
	fe := verrs[0]
	field := fe.Field()
	if msg, ok := fieldMessages[field+"."+fe.Tag()]; ok {
		return invalid(field, "%s", msg)
	}
	msg, ok := tagMessages[fe.Tag()]
	if !ok {
		return invalid(field, "The field '%s' is invalid.", field)
	}
	if strings.Count(msg, "%s") == 2 {
		return invalid(field, msg, field, fe.Param())
	}
	return invalid(field, msg, field)
}

// DecodeRaw reads a RawRequest from a JSON body. Malformed JSON is reported
// as an invalid request.
func DecodeRaw(r io.Reader) (RawRequest, error) {
	var raw RawRequest
	dec := json.NewDecoder(r)
	if err := dec.Decode(&raw); err != nil {
		return RawRequest{}, invalid("", "invalid request body: %v", err)
	}
	return raw, nil
}

// Validate checks raw against limits and returns the accepted request.
func Validate(raw RawRequest, limits Limits) (*Request, error) {
	raw.VideoURL = strings.TrimSpace(raw.VideoURL)
	if err := validate.Struct(raw); err != nil {
		return nil, translate(err)
	}

	maxOutput := limits.maxOutput()
	if int(raw.Duration) > maxOutput {
		return nil, invalid("duration", "Output duration cannot exceed %d seconds", maxOutput)
	}

	quality, _ := ParseQuality(raw.Quality)

	return &Request{
		SourceRef:   raw.VideoURL,
		StartOffset: int(raw.StartTime),
		Duration:    int(raw.Duration),
		Quality:     quality,
		Preset:      PresetFor(quality),
		AspectRatio: strings.TrimSpace(raw.AspectRatio),
		Watermark:   cleanWatermark(raw.Watermark),
		Effects:     normalizeEffects(raw.Effects),
	}, nil
}

// normalizeEffects keeps known effects in request order, without duplicates.
func normalizeEffects(names []string) []Effect {
	if len(names) == 0 {
		return nil
	}
	seen := make(map[Effect]bool, len(names))
	out := make([]Effect, 0, len(names))
	for _, name := range names {
		e, ok := ParseEffect(name)
		if !ok || seen[e] {
			continue
		}
		seen[e] = true
		out = append(out, e)
	}
	if len(out) == 0 {
		return nil
	}
	return out
}

// cleanWatermark replaces control characters with spaces and trims the result.
func cleanWatermark(s string) string {
	s = strings.Map(func(r rune) rune {
		if unicode.IsControl(r) {
			return ' '
		}
		return r
	}, s)
	return strings.TrimSpace(s)
}
