package httpapi

import (
	"net/http/httptest"
	"testing"
)

func TestParseLevel(t *testing.T) {
	cases := []struct {
		in   string
		want LogLevel
	}{
		{"", LevelOff},
		{"off", LevelOff},
		{"error", LevelError},
		{"info", LevelInfo},
		{"debug", LevelDebug},
		{"bogus", LevelInfo},
	}
	for _, tc := range cases {
		if got := parseLevel(tc.in); got != tc.want {
			t.Fatalf("parseLevel(%q)=%d want=%d", tc.in, got, tc.want)
		}
	}
}

func TestRequestLogLevelOverrides(t *testing.T) {
	r := httptest.NewRequest("GET", "/status?log=debug", nil)
	if got := requestLogLevel(r); got != LevelDebug {
		t.Fatalf("query override: got %d", got)
	}

	r = httptest.NewRequest("GET", "/status", nil)
	r.Header.Set("X-Log-Level", "error")
	if got := requestLogLevel(r); got != LevelError {
		t.Fatalf("header override: got %d", got)
	}

	// Query wins over header.
	r = httptest.NewRequest("GET", "/status?log=off", nil)
	r.Header.Set("X-Log-Level", "debug")
	if got := requestLogLevel(r); got != LevelOff {
		t.Fatalf("precedence: got %d", got)
	}
}
