package logstream

import (
	"testing"
	"time"
)

func TestParseLineMatchesServerFormat(t *testing.T) {
	now := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)
	cases := []struct {
		raw     string
		ts      string
		source  string
		level   string
		message string
	}{
		{"[12:34:56] [Server thread/INFO]: Done (3.2s)! For help, type \"help\"", "12:34:56", "Server thread", "INFO", "Done (3.2s)! For help, type \"help\""},
		{"[00:00:01] [Worker-Main-1/WARN]: Can't keep up!", "00:00:01", "Worker-Main-1", "WARN", "Can't keep up!"},
		{"[23:59:59] [Server thread/ERROR]: Encountered an unexpected exception", "23:59:59", "Server thread", "ERROR", "Encountered an unexpected exception"},
		{"[10:00:00] [Netty Epoll/IO/INFO]: path/with/slashes", "10:00:00", "Netty Epoll/IO", "INFO", "path/with/slashes"},
		{"[10:00:00] [Server thread/INFO]: ", "10:00:00", "Server thread", "INFO", ""},
	}

	for _, tc := range cases {
		rec := ParseLine(tc.raw, now)
		if rec.Timestamp != tc.ts || rec.Source != tc.source || rec.Level != tc.level || rec.Message != tc.message {
			t.Errorf("ParseLine(%q) = %+v", tc.raw, rec)
		}
		if rec.Raw != tc.raw {
			t.Errorf("raw not preserved: %q", rec.Raw)
		}
	}
}

func TestParseLineFallback(t *testing.T) {
	now := time.Date(2026, 1, 2, 15, 4, 5, 0, time.UTC)
	lines := []string{
		"Starting minecraft server version 1.21",
		"[12:34:56] [Server thread/DEBUG]: not a known level",
		"[1:2:3] [Server thread/INFO]: short clock",
		"",
	}

	for _, raw := range lines {
		rec := ParseLine(raw, now)
		if rec.Source != UnknownSource {
			t.Errorf("%q: expected source Unknown, got %q", raw, rec.Source)
		}
		if rec.Level != "INFO" {
			t.Errorf("%q: expected level INFO, got %q", raw, rec.Level)
		}
		if rec.Message != raw {
			t.Errorf("%q: expected raw message, got %q", raw, rec.Message)
		}
		if rec.Timestamp != "15:04:05" {
			t.Errorf("%q: expected client time, got %q", raw, rec.Timestamp)
		}
	}
}

func TestSplitFrame(t *testing.T) {
	got := splitFrame("one\r\ntwo\nthree\n")
	want := []string{"one", "two", "three"}
	if len(got) != len(want) {
		t.Fatalf("expected %v, got %v", want, got)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("line %d: expected %q, got %q", i, want[i], got[i])
		}
	}
}
