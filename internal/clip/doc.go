// Package clip defines the clip job request and validates incoming
// submissions.
//
// A submission arrives as a RawRequest (the JSON body of POST
// /process-video) and is turned into an immutable Request by Validate.
// Validation is a pure function of the input and the configured Limits:
//
//   - videoUrl must be an http(s) URL or an opaque video ID
//   - startTime must be non-negative, duration positive and within
//     Limits.MaxOutputDuration
//   - quality resolves to a fixed Preset; unknown or empty values fall
//     back to medium, the same tolerance the web client relies on
//   - effects are deduplicated; unknown names are dropped, and "bounce" is
//     kept but has no server-side filter (it only styles the web preview)
//
// Every rejection unwraps to ErrInvalidRequest.
package clip
