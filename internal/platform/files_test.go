package platform

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func TestSanitizeFilename(t *testing.T) {
	tests := []struct {
		name  string
		title string
		want  string
	}{
		{"plain title", "My Video", "My Video"},
		{"strips path and punctuation", "My/Video: Test?!", "MyVideo Test"},
		{"keeps dots underscores hyphens", "clip_v2.final-cut", "clip_v2.final-cut"},
		{"empty falls back", "///???", "download"},
		{"unicode letters survive", "Füße 動画", "Füße 動画"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := SanitizeFilename(tt.title)
			if got != tt.want {
				t.Errorf("SanitizeFilename(%q) = %q, want %q", tt.title, got, tt.want)
			}
		})
	}
}

func TestSanitizeFilenameForbiddenRunes(t *testing.T) {
	got := SanitizeFilename("My/Video: Test?!")
	for _, forbidden := range []string{"/", ":", "?", "!"} {
		if strings.Contains(got, forbidden) {
			t.Errorf("Sanitized name %q contains forbidden rune %q", got, forbidden)
		}
	}
}

func TestSanitizeFilenameTruncates(t *testing.T) {
	long := strings.Repeat("a", 200)
	got := SanitizeFilename(long)
	if len([]rune(got)) != MaxFilenameLength {
		t.Errorf("Expected %d runes, got %d", MaxFilenameLength, len([]rune(got)))
	}
}

func TestCopyFile(t *testing.T) {
	dir := t.TempDir()
	src := filepath.Join(dir, "src.bin")
	dst := filepath.Join(dir, "out", "dst.bin")

	if err := os.WriteFile(src, []byte("payload"), 0644); err != nil {
		t.Fatalf("Failed to write source file: %v", err)
	}

	if err := CopyFile(src, dst); err != nil {
		t.Fatalf("CopyFile failed: %v", err)
	}

	data, err := os.ReadFile(dst)
	if err != nil {
		t.Fatalf("Failed to read destination: %v", err)
	}
	if string(data) != "payload" {
		t.Errorf("Expected destination content 'payload', got %q", data)
	}
}

func TestCleanupStale(t *testing.T) {
	dir := t.TempDir()

	stale := filepath.Join(dir, "old.mp4")
	fresh := filepath.Join(dir, "new.mp4")
	for _, p := range []string{stale, fresh} {
		if err := os.WriteFile(p, []byte("x"), 0644); err != nil {
			t.Fatalf("Failed to write %s: %v", p, err)
		}
	}

	past := time.Now().Add(-2 * time.Hour)
	if err := os.Chtimes(stale, past, past); err != nil {
		t.Fatalf("Failed to age file: %v", err)
	}

	CleanupStale(dir, time.Hour)

	if _, err := os.Stat(stale); !os.IsNotExist(err) {
		t.Error("Expected stale file to be removed")
	}
	if _, err := os.Stat(fresh); err != nil {
		t.Error("Expected fresh file to survive cleanup")
	}
}
