package logging

import (
	"bytes"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestParseLevel(t *testing.T) {
	tests := map[string]slog.Level{
		"debug":   slog.LevelDebug,
		" WARN ":  slog.LevelWarn,
		"warning": slog.LevelWarn,
		"error":   slog.LevelError,
		"":        slog.LevelInfo,
		"verbose": slog.LevelInfo,
	}
	for raw, want := range tests {
		if got := ParseLevel(raw); got != want {
			t.Errorf("ParseLevel(%q) = %v, want %v", raw, got, want)
		}
	}
}

func TestNewHandlerFormat(t *testing.T) {
	var buf bytes.Buffer
	slog.New(NewHandler(&buf, "json", slog.LevelInfo)).Info("balances", "address", "5Grw")
	if !strings.HasPrefix(buf.String(), "{") || !strings.Contains(buf.String(), `"address":"5Grw"`) {
		t.Errorf("expected json output, got %s", buf.String())
	}

	buf.Reset()
	slog.New(NewHandler(&buf, "text", slog.LevelInfo)).Debug("hidden")
	if buf.Len() != 0 {
		t.Errorf("debug record must be filtered at info level")
	}
}

func TestRotatingWriterRotates(t *testing.T) {
	path := filepath.Join(t.TempDir(), "logs", "chainbal.log")
	writer, err := newRotatingWriter(path, 10, 2)
	if err != nil {
		t.Fatalf("new writer: %v", err)
	}
	defer writer.Close()

	for _, line := range []string{"first-1\n", "second-2\n", "third-33\n"} {
		if _, err := writer.Write([]byte(line)); err != nil {
			t.Fatalf("write: %v", err)
		}
	}

	current, _ := os.ReadFile(path)
	backup1, _ := os.ReadFile(path + ".1")
	backup2, _ := os.ReadFile(path + ".2")
	if string(current) != "third-33\n" || string(backup1) != "second-2\n" || string(backup2) != "first-1\n" {
		t.Errorf("unexpected rotation: current=%q .1=%q .2=%q", current, backup1, backup2)
	}
}
