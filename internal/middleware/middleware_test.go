package middleware

import (
	"compress/gzip"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

func TestSanitizeLogField(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"plain", "plain"},
		{"with space", "with space"},
		{"line\nbreak", "line break"},
		{"carriage\rreturn", "carriage return"},
		{"null\x00byte", "nullbyte"},
		{"ansi\x1b[31mred", "ansi[31mred"},
		{"tab\tok", "tab\tok"},
		{"bell\x07gone", "bellgone"},
	}
	for _, tt := range tests {
		if got := sanitizeLogField(tt.in); got != tt.want {
			t.Errorf("sanitizeLogField(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestEscapeW3CField(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"curl/8.0", "curl/8.0"},
		{"Mozilla 5.0", `"Mozilla 5.0"`},
		{`say "hi"`, `"say ""hi"""`},
	}
	for _, tt := range tests {
		if got := escapeW3CField(tt.in); got != tt.want {
			t.Errorf("escapeW3CField(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestShouldSkip(t *testing.T) {
	quiet := LoggingConfig{SkipPaths: []string{"/metrics"}, LogHealthChecks: false}
	verbose := LoggingConfig{LogHealthChecks: true}

	tests := []struct {
		path   string
		config LoggingConfig
		want   bool
	}{
		{"/metrics", quiet, true},
		{"/metrics/sub", quiet, true},
		{"/health", quiet, true},
		{"/livez", quiet, true},
		{"/api/thumbnail", quiet, false},
		{"/health", verbose, false},
		{"/api/thumbnail", verbose, false},
	}
	for _, tt := range tests {
		if got := shouldSkip(tt.path, tt.config); got != tt.want {
			t.Errorf("shouldSkip(%q, %+v) = %v, want %v", tt.path, tt.config, got, tt.want)
		}
	}
}

func TestGetClientIP(t *testing.T) {
	tests := []struct {
		name   string
		remote string
		header map[string]string
		want   string
	}{
		{"remote addr", "10.0.0.1:5000", nil, "10.0.0.1"},
		{"x-forwarded-for single", "10.0.0.1:5000", map[string]string{"X-Forwarded-For": "1.2.3.4"}, "1.2.3.4"},
		{"x-forwarded-for chain", "10.0.0.1:5000", map[string]string{"X-Forwarded-For": "1.2.3.4, 5.6.7.8"}, "1.2.3.4"},
		{"x-real-ip", "10.0.0.1:5000", map[string]string{"X-Real-IP": "9.9.9.9"}, "9.9.9.9"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := httptest.NewRequest(http.MethodGet, "/", nil)
			r.RemoteAddr = tt.remote
			for k, v := range tt.header {
				r.Header.Set(k, v)
			}
			if got := getClientIP(r); got != tt.want {
				t.Errorf("getClientIP = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestNormalizePath(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"/", "/"},
		{"/health", "/health"},
		{"/api/thumbnail", "/api/thumbnail"},
		{"/api/archive/entries", "/api/archive/entries"},
		{"/api/archive/entry/temp", "/api/archive/entry/{path}"},
		{"/api/a/b/c/d/e", "/api/a/b/{path}"},
	}
	for _, tt := range tests {
		if got := normalizePath(tt.in); got != tt.want {
			t.Errorf("normalizePath(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestCompressionGzipsLargeJSON(t *testing.T) {
	payload := strings.Repeat("abcdefgh", 300)
	handler := Compression(DefaultCompressionConfig())(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(payload))
	}))

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("Accept-Encoding", "gzip")
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	if enc := rec.Header().Get("Content-Encoding"); enc != "gzip" {
		t.Fatalf("Content-Encoding = %q, want gzip", enc)
	}

	zr, err := gzip.NewReader(rec.Body)
	if err != nil {
		t.Fatalf("gzip reader: %v", err)
	}
	defer zr.Close()
	body, err := io.ReadAll(zr)
	if err != nil {
		t.Fatalf("reading gzip body: %v", err)
	}
	if string(body) != payload {
		t.Error("decompressed body differs from payload")
	}
}

func TestCompressionSkipsSmallResponses(t *testing.T) {
	handler := Compression(DefaultCompressionConfig())(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"ok":true}`))
	}))

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("Accept-Encoding", "gzip")
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	if enc := rec.Header().Get("Content-Encoding"); enc != "" {
		t.Fatalf("Content-Encoding = %q, want none", enc)
	}
	if rec.Body.String() != `{"ok":true}` {
		t.Errorf("body = %q", rec.Body.String())
	}
}

func TestCompressionSkipsIncompressibleTypes(t *testing.T) {
	payload := strings.Repeat("x", 4096)
	handler := Compression(DefaultCompressionConfig())(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "image/jpeg")
		_, _ = w.Write([]byte(payload))
	}))

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("Accept-Encoding", "gzip")
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	if enc := rec.Header().Get("Content-Encoding"); enc != "" {
		t.Fatalf("Content-Encoding = %q, want none", enc)
	}
	if rec.Body.String() != payload {
		t.Error("body modified for incompressible type")
	}
}

func TestCompressionIgnoredWithoutAcceptEncoding(t *testing.T) {
	payload := strings.Repeat("y", 4096)
	handler := Compression(DefaultCompressionConfig())(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(payload))
	}))

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))

	if enc := rec.Header().Get("Content-Encoding"); enc != "" {
		t.Fatalf("Content-Encoding = %q, want none", enc)
	}
	if rec.Body.String() != payload {
		t.Error("body modified without Accept-Encoding")
	}
}

func TestCompressionPreservesStatusCode(t *testing.T) {
	handler := Compression(DefaultCompressionConfig())(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusNotFound)
		_, _ = w.Write([]byte(`{"error":"not found"}`))
	}))

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("Accept-Encoding", "gzip")
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusNotFound {
		t.Fatalf("status = %d, want 404", rec.Code)
	}
}

func TestResponseWriterCapturesStatusAndBytes(t *testing.T) {
	rec := httptest.NewRecorder()
	rw := newResponseWriter(rec)

	rw.WriteHeader(http.StatusTeapot)
	rw.WriteHeader(http.StatusOK)
	n, err := rw.Write([]byte("hello"))
	if err != nil || n != 5 {
		t.Fatalf("Write = %d, %v", n, err)
	}

	if rw.statusCode != http.StatusTeapot {
		t.Errorf("statusCode = %d, want 418 (first write wins)", rw.statusCode)
	}
	if rw.bytesWritten != 5 {
		t.Errorf("bytesWritten = %d", rw.bytesWritten)
	}
	if rec.Code != http.StatusTeapot {
		t.Errorf("underlying status = %d", rec.Code)
	}
}
