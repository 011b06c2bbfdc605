package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestGetters(t *testing.T) {
	t.Setenv("JX_STRING", " value ")
	t.Setenv("JX_INT", "42")
	t.Setenv("JX_BAD_INT", "forty")
	t.Setenv("JX_BOOL", "yes")
	t.Setenv("JX_DURATION", "1500ms")
	t.Setenv("JX_SECONDS", "2.5")

	if got := String("JX_STRING", "def"); got != "value" {
		t.Errorf("String: got %q", got)
	}
	if got := String("JX_MISSING", "def"); got != "def" {
		t.Errorf("String default: got %q", got)
	}
	if got := Int("JX_INT", 1); got != 42 {
		t.Errorf("Int: got %d", got)
	}
	if got := Int("JX_BAD_INT", 7); got != 7 {
		t.Errorf("Int invalid should fall back, got %d", got)
	}
	if !Bool("JX_BOOL", false) {
		t.Error("Bool: expected true")
	}
	if got := Duration("JX_DURATION", time.Second); got != 1500*time.Millisecond {
		t.Errorf("Duration: got %s", got)
	}
	if got := Duration("JX_SECONDS", time.Second); got != 2500*time.Millisecond {
		t.Errorf("Duration seconds: got %s", got)
	}
	if got := Port("JX_PORT", "8080"); got != ":8080" {
		t.Errorf("Port: got %s", got)
	}
}

func TestLoad(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "test.env")
	if err := os.WriteFile(path, []byte("JX_FROM_FILE=file\nJX_PRESET=file\n"), 0o600); err != nil {
		t.Fatal(err)
	}
	t.Setenv("JX_PRESET", "process")
	t.Setenv("JX_FROM_FILE", "")
	os.Unsetenv("JX_FROM_FILE")

	if err := Load(path, filepath.Join(dir, "missing.env")); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got := os.Getenv("JX_FROM_FILE"); got != "file" {
		t.Errorf("expected value from file, got %q", got)
	}
	if got := os.Getenv("JX_PRESET"); got != "process" {
		t.Errorf("process env should win, got %q", got)
	}
}
