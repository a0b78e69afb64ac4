package platform

import (
	"fmt"
	"io"
	"log"
	"os"
	"path/filepath"
	"strings"
	"time"
	"unicode"
)

// File permissions
const (
	DefaultDirPermissions = 0755
)

// Filename constraints
const (
	// MaxFilenameLength bounds the sanitized base name, before the extension
	MaxFilenameLength = 50

	// DefaultBaseName is used when sanitization leaves nothing usable
	DefaultBaseName = "download"
)

// SanitizeFilename reduces a video title to a filesystem-safe base name:
// only letters, digits, space, '.', '_' and '-' survive, truncated to
// MaxFilenameLength runes and trimmed. Returns DefaultBaseName when the
// result would be empty.
func SanitizeFilename(title string) string {
	var b strings.Builder
	for _, r := range title {
		if unicode.IsLetter(r) || unicode.IsDigit(r) || r == ' ' || r == '.' || r == '_' || r == '-' {
			b.WriteRune(r)
		}
	}

	name := b.String()
	runes := []rune(name)
	if len(runes) > MaxFilenameLength {
		name = string(runes[:MaxFilenameLength])
	}
	name = strings.TrimSpace(name)
	if name == "" {
		return DefaultBaseName
	}
	return name
}

// EnsureDir creates the directory (and parents) if it does not exist.
func EnsureDir(dir string) error {
	if err := os.MkdirAll(dir, DefaultDirPermissions); err != nil {
		return fmt.Errorf("failed to create directory %s: %w", dir, err)
	}
	return nil
}

// CopyFile copies src to dst, creating the destination directory as needed.
// The durable output must be a real copy, never a reference into a temp
// directory that will be cleaned up.
func CopyFile(src, dst string) error {
	if err := EnsureDir(filepath.Dir(dst)); err != nil {
		return err
	}

	in, err := os.Open(src)
	if err != nil {
		return fmt.Errorf("failed to open source file: %w", err)
	}
	defer in.Close()

	out, err := os.Create(dst)
	if err != nil {
		return fmt.Errorf("failed to create destination file: %w", err)
	}
	defer out.Close()

	if _, err := io.Copy(out, in); err != nil {
		return fmt.Errorf("failed to copy %s to %s: %w", src, dst, err)
	}
	return out.Sync()
}

// CleanupStale removes regular files in dir whose modification time is older
// than maxAge. Subdirectories are left alone.
func CleanupStale(dir string, maxAge time.Duration) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return
	}

	cutoff := time.Now().Add(-maxAge)
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		info, err := entry.Info()
		if err != nil {
			continue
		}
		if info.ModTime().Before(cutoff) {
			path := filepath.Join(dir, entry.Name())
			if err := os.Remove(path); err == nil {
				log.Printf("Deleted stale download: %s", path)
			}
		}
	}
}

// StartCleanupJanitor runs CleanupStale on a ticker until stop is closed.
func StartCleanupJanitor(dir string, maxAge, interval time.Duration, stop <-chan struct{}) {
	ticker := time.NewTicker(interval)
	go func() {
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				CleanupStale(dir, maxAge)
			case <-stop:
				return
			}
		}
	}()
}
