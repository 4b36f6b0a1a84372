package testsupport

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"
)

// WriteFiller writes size bytes of filler to path, creating parent
// directories. Use it for files whose content does not matter, such as
// intermediates that cleanup should remove.
func WriteFiller(t testing.TB, path string, size int) {
	t.Helper()
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatalf("mkdir for %s: %v", path, err)
	}
	if err := os.WriteFile(path, bytes.Repeat([]byte{0x42}, max(size, 1)), 0o644); err != nil {
		t.Fatalf("write %s: %v", path, err)
	}
}
