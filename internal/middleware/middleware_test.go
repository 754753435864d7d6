package middleware

import (
	"bytes"
	"compress/gzip"
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/mux"
)

func okHandler(body string) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		io.WriteString(w, body)
	})
}

func TestResponseWriterCapturesStatusAndBytes(t *testing.T) {
	rec := httptest.NewRecorder()
	rw := newResponseWriter(rec)

	rw.WriteHeader(http.StatusNotFound)
	rw.WriteHeader(http.StatusOK)
	rw.Write([]byte("missing"))

	if rw.statusCode != http.StatusNotFound {
		t.Errorf("statusCode = %d, want 404", rw.statusCode)
	}
	if rw.bytesWritten != 7 {
		t.Errorf("bytesWritten = %d, want 7", rw.bytesWritten)
	}
	if rec.Code != http.StatusNotFound {
		t.Errorf("recorder code = %d, want 404", rec.Code)
	}
}

func TestShouldSkip(t *testing.T) {
	tests := []struct {
		name   string
		path   string
		config LoggingConfig
		want   bool
	}{
		{"regular request", "/process-video", DefaultLoggingConfig(), false},
		{"health logged when enabled", "/readyz", LoggingConfig{LogHealthChecks: true}, false},
		{"health skipped when disabled", "/readyz", LoggingConfig{LogHealthChecks: false}, true},
		{"status is a health path", "/status", LoggingConfig{LogHealthChecks: false}, true},
		{"explicit skip prefix", "/metrics", LoggingConfig{SkipPaths: []string{"/metrics"}, LogHealthChecks: true}, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := shouldSkip(tt.path, tt.config); got != tt.want {
				t.Errorf("shouldSkip(%q) = %v, want %v", tt.path, got, tt.want)
			}
		})
	}
}

func TestSanitizeLogField(t *testing.T) {
	tests := []struct {
		in, want string
	}{
		{"plain", "plain"},
		{"a\nb\rc", "a b c"},
		{"nul\x00byte", "nulbyte"},
		{"\x1b[31mred", "[31mred"},
		{"tab\tkept", "tab\tkept"},
		{"bell\x07", "bell"},
	}
	for _, tt := range tests {
		if got := sanitizeLogField(tt.in); got != tt.want {
			t.Errorf("sanitizeLogField(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestFormatW3C(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/video-info?url=abc%0Adef", http.NoBody)
	req.RemoteAddr = "10.0.0.7:51234"
	req.Header.Set("User-Agent", `Mozilla "test" 1.0`)
	req = req.WithContext(context.WithValue(req.Context(), requestIDKey, "rid-1"))

	rw := newResponseWriter(httptest.NewRecorder())
	rw.WriteHeader(http.StatusBadRequest)
	rw.Write([]byte("{}"))

	now := time.Date(2024, 5, 1, 12, 30, 0, 0, time.UTC)
	line := formatW3C(req, rw, 42*time.Millisecond, now)

	want := `2024-05-01 12:30:00 10.0.0.7 GET /video-info url=abc%0Adef 400 2 42 rid-1 "Mozilla ""test"" 1.0" -`
	if line != want {
		t.Errorf("line =\n%s\nwant\n%s", line, want)
	}
}

func TestGetClientIP(t *testing.T) {
	tests := []struct {
		name   string
		header map[string]string
		remote string
		want   string
	}{
		{"forwarded chain", map[string]string{"X-Forwarded-For": "1.1.1.1, 2.2.2.2"}, "9.9.9.9:1", "1.1.1.1"},
		{"real ip", map[string]string{"X-Real-IP": "3.3.3.3"}, "9.9.9.9:1", "3.3.3.3"},
		{"remote addr", nil, "9.9.9.9:1234", "9.9.9.9"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/", http.NoBody)
			req.RemoteAddr = tt.remote
			for k, v := range tt.header {
				req.Header.Set(k, v)
			}
			if got := getClientIP(req); got != tt.want {
				t.Errorf("getClientIP = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestLoggerPassesThrough(t *testing.T) {
	h := Logger(DefaultLoggingConfig())(okHandler("ok"))
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/status", http.NoBody))

	if rec.Code != http.StatusOK || rec.Body.String() != "ok" {
		t.Errorf("got %d %q", rec.Code, rec.Body.String())
	}
}

func TestRequestID(t *testing.T) {
	var seen string
	h := RequestID(http.HandlerFunc(func(_ http.ResponseWriter, r *http.Request) {
		seen = RequestIDFromContext(r.Context())
	}))

	t.Run("generated", func(t *testing.T) {
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", http.NoBody))
		if seen == "" || rec.Header().Get(RequestIDHeader) != seen {
			t.Errorf("context id %q, header %q", seen, rec.Header().Get(RequestIDHeader))
		}
	})

	t.Run("propagated", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/", http.NoBody)
		req.Header.Set(RequestIDHeader, "client-42")
		h.ServeHTTP(httptest.NewRecorder(), req)
		if seen != "client-42" {
			t.Errorf("id = %q, want client-42", seen)
		}
	})

	t.Run("oversized replaced", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/", http.NoBody)
		req.Header.Set(RequestIDHeader, strings.Repeat("x", 200))
		h.ServeHTTP(httptest.NewRecorder(), req)
		if len(seen) > maxRequestIDLen {
			t.Errorf("oversized id kept: %d chars", len(seen))
		}
	})

	if got := RequestIDFromContext(context.Background()); got != "" {
		t.Errorf("empty context id = %q", got)
	}
}

func TestCORS(t *testing.T) {
	router := mux.NewRouter()
	router.Handle("/process-video", okHandler("done")).Methods(http.MethodPost)

	tests := []struct {
		name       string
		origins    []string
		method     string
		origin     string
		preflight  bool
		wantStatus int
		wantAllow  string
	}{
		{"wildcard preflight", []string{"*"}, http.MethodOptions, "https://ui.example", true, http.StatusNoContent, "*"},
		{"listed origin echoed", []string{"https://ui.example"}, http.MethodPost, "https://ui.example", false, http.StatusOK, "https://ui.example"},
		{"unlisted origin", []string{"https://ui.example"}, http.MethodPost, "https://evil.example", false, http.StatusOK, ""},
		{"no origin header", []string{"*"}, http.MethodPost, "", false, http.StatusOK, ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultCORSConfig()
			cfg.AllowedOrigins = tt.origins
			h := CORS(cfg)(router)

			req := httptest.NewRequest(tt.method, "/process-video", http.NoBody)
			if tt.origin != "" {
				req.Header.Set("Origin", tt.origin)
			}
			if tt.preflight {
				req.Header.Set("Access-Control-Request-Method", http.MethodPost)
			}
			rec := httptest.NewRecorder()
			h.ServeHTTP(rec, req)

			if rec.Code != tt.wantStatus {
				t.Errorf("status = %d, want %d", rec.Code, tt.wantStatus)
			}
			if got := rec.Header().Get("Access-Control-Allow-Origin"); got != tt.wantAllow {
				t.Errorf("Allow-Origin = %q, want %q", got, tt.wantAllow)
			}
			if tt.wantAllow != "" && rec.Header().Get("Access-Control-Allow-Methods") != "GET, POST, OPTIONS" {
				t.Errorf("Allow-Methods = %q", rec.Header().Get("Access-Control-Allow-Methods"))
			}
		})
	}
}

func TestCompression(t *testing.T) {
	largeJSON := strings.Repeat(`{"itag":"18"}`, 200)

	tests := []struct {
		name           string
		path           string
		body           string
		contentType    string
		acceptEncoding string
		wantGzip       bool
	}{
		{"large json", "/video-info", largeJSON, "application/json", "gzip", true},
		{"small json", "/status", `{"status":"ok"}`, "application/json", "gzip", false},
		{"video download", "/download/reel_1_abcdefabcdef.mp4", strings.Repeat("v", 4096), "video/mp4", "gzip", false},
		{"json on skipped path", "/download/x", largeJSON, "application/json", "gzip", false},
		{"client without gzip", "/video-info", largeJSON, "application/json", "", false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := Compression(DefaultCompressionConfig())(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
				w.Header().Set("Content-Type", tt.contentType)
				w.WriteHeader(http.StatusOK)
				io.WriteString(w, tt.body)
			}))

			req := httptest.NewRequest(http.MethodGet, tt.path, http.NoBody)
			if tt.acceptEncoding != "" {
				req.Header.Set("Accept-Encoding", tt.acceptEncoding)
			}
			rec := httptest.NewRecorder()
			h.ServeHTTP(rec, req)

			gzipped := rec.Header().Get("Content-Encoding") == "gzip"
			if gzipped != tt.wantGzip {
				t.Fatalf("gzip = %v, want %v", gzipped, tt.wantGzip)
			}

			body := rec.Body.Bytes()
			if gzipped {
				zr, err := gzip.NewReader(bytes.NewReader(body))
				if err != nil {
					t.Fatal(err)
				}
				if body, err = io.ReadAll(zr); err != nil {
					t.Fatal(err)
				}
			}
			if string(body) != tt.body {
				t.Errorf("body mismatch: got %d bytes, want %d", len(body), len(tt.body))
			}
		})
	}
}

func TestCompressionKeepsStatusForEmptyBody(t *testing.T) {
	h := Compression(DefaultCompressionConfig())(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	}))
	req := httptest.NewRequest(http.MethodGet, "/", http.NoBody)
	req.Header.Set("Accept-Encoding", "gzip")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	if rec.Code != http.StatusNoContent {
		t.Errorf("status = %d, want 204", rec.Code)
	}
}

func TestNormalizePath(t *testing.T) {
	tests := []struct {
		in, want string
	}{
		{"/", "/"},
		{"/status", "/status"},
		{"/download/reel_1_abcdefabcdef.mp4", "/download/{path}"},
		{"/a/b/c/d", "/a/{path}"},
	}
	for _, tt := range tests {
		if got := normalizePath(tt.in); got != tt.want {
			t.Errorf("normalizePath(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestMetricsUsesRouteTemplate(t *testing.T) {
	var label string
	router := mux.NewRouter()
	router.HandleFunc("/download/{filename}", func(_ http.ResponseWriter, r *http.Request) {
		label = routeLabel(r)
	})
	router.Use(Metrics(DefaultMetricsConfig()))

	router.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/download/reel_1_abcdefabcdef.mp4", http.NoBody))
	if label != "/download/{filename}" {
		t.Errorf("label = %q, want /download/{filename}", label)
	}
}

func TestMetricsResponseWriterStatus(t *testing.T) {
	rec := httptest.NewRecorder()
	rw := newMetricsResponseWriter(rec)
	rw.WriteHeader(http.StatusTeapot)
	if rw.statusCode != http.StatusTeapot || rec.Code != http.StatusTeapot {
		t.Errorf("status = %d / %d", rw.statusCode, rec.Code)
	}
}
