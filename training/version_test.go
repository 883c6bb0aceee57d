package training

import (
	"os"
	"path/filepath"
	"testing"
)

func TestNextRunVersion(t *testing.T) {
	dir := t.TempDir()
	for _, name := range []string{"version_0", "version_2", "version_5"} {
		if err := os.Mkdir(filepath.Join(dir, name), 0755); err != nil {
			t.Fatal(err)
		}
	}

	v, err := NextRunVersion(dir)
	if err != nil {
		t.Fatalf("resolve failed: %v", err)
	}
	if v != 6 {
		t.Errorf("expected version 6, got %d", v)
	}
}

func TestNextRunVersionEmptyDir(t *testing.T) {
	v, err := NextRunVersion(t.TempDir())
	if err != nil {
		t.Fatalf("resolve failed: %v", err)
	}
	if v != 0 {
		t.Errorf("expected version 0 for empty dir, got %d", v)
	}
}

func TestNextRunVersionMissingDir(t *testing.T) {
	v, err := NextRunVersion(filepath.Join(t.TempDir(), "does-not-exist"))
	if err != nil {
		t.Fatalf("resolve failed: %v", err)
	}
	if v != 0 {
		t.Errorf("expected version 0 for missing dir, got %d", v)
	}
}

func TestNextRunVersionIgnoresNonMatching(t *testing.T) {
	dir := t.TempDir()
	for _, name := range []string{"version_3", "version_x", "checkpoints", "version_10_old"} {
		if err := os.Mkdir(filepath.Join(dir, name), 0755); err != nil {
			t.Fatal(err)
		}
	}

	v, err := NextRunVersion(dir)
	if err != nil {
		t.Fatalf("resolve failed: %v", err)
	}
	if v != 4 {
		t.Errorf("expected version 4, got %d", v)
	}
}
