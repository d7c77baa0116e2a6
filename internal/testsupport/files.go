package testsupport

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

// WriteFile creates path with exactly size bytes, creating parent
// directories. The content is sparse; only the size matters to callers that
// plan chunking from it. A size <= 0 writes a single byte.
func WriteFile(t testing.TB, path string, size int64) {
	t.Helper()

	if size <= 0 {
		size = 1
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatalf("mkdir for %s: %v", path, err)
	}
	f, err := os.Create(path)
	if err != nil {
		t.Fatalf("create %s: %v", path, err)
	}
	defer f.Close()
	if err := f.Truncate(size); err != nil {
		t.Fatalf("size %s: %v", path, err)
	}
}

// WriteAudio writes a placeholder recording of the given duration at
// bytesPerSecond and returns its path.
func WriteAudio(t testing.TB, dir, name string, duration time.Duration, bytesPerSecond int64) string {
	t.Helper()
	path := filepath.Join(dir, name)
	WriteFile(t, path, int64(duration.Seconds()*float64(bytesPerSecond)))
	return path
}

// ListDir returns the names of entries in dir, failing the test on error.
func ListDir(t testing.TB, dir string) []string {
	t.Helper()
	entries, err := os.ReadDir(dir)
	if err != nil {
		t.Fatalf("read dir %s: %v", dir, err)
	}
	names := make([]string, 0, len(entries))
	for _, e := range entries {
		names = append(names, e.Name())
	}
	return names
}
