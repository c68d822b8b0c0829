package middleware

import (
	"bytes"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

func loggedRequest(t *testing.T, status int, body string) string {
	t.Helper()

	var buf bytes.Buffer
	logger := slog.New(slog.NewTextHandler(&buf, nil))
	handler := RequestLogger(logger)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(status)
		w.Write([]byte(body))
	}))

	req := httptest.NewRequest(http.MethodGet, "/api/episodes", nil)
	req.RemoteAddr = "192.168.1.20:40000"
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	return buf.String()
}

func TestRequestLoggerFields(t *testing.T) {
	line := loggedRequest(t, http.StatusOK, "hello")

	for _, want := range []string{"level=INFO", "method=GET", "path=/api/episodes", "status=200", "bytes=5", "remote=192.168.1.20"} {
		if !strings.Contains(line, want) {
			t.Errorf("log line missing %q: %s", want, line)
		}
	}
}

func TestRequestLoggerLevels(t *testing.T) {
	if line := loggedRequest(t, http.StatusNotFound, ""); !strings.Contains(line, "level=WARN") {
		t.Errorf("404 not logged at warn: %s", line)
	}
	if line := loggedRequest(t, http.StatusInternalServerError, ""); !strings.Contains(line, "level=ERROR") {
		t.Errorf("500 not logged at error: %s", line)
	}
}

func TestResponseRecorderUnwrap(t *testing.T) {
	rec := httptest.NewRecorder()
	rr := &responseRecorder{ResponseWriter: rec}
	if rr.Unwrap() != rec {
		t.Error("Unwrap did not return the underlying writer")
	}
}
