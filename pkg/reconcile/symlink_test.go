package reconcile

import (
	"os"
	"path/filepath"
	"testing"
)

func TestMakeRelativeSymlinkCreatesNew(t *testing.T) {
	root := t.TempDir()
	mustMkdir(t, filepath.Join(root, "rhel"))
	mustMkdir(t, filepath.Join(root, "centos"))

	from := filepath.Join(root, "centos", "7")
	to := filepath.Join(root, "rhel", "7")
	mustMkdir(t, to)

	if err := MakeRelativeSymlink(from, to, nil); err != nil {
		t.Fatalf("MakeRelativeSymlink: %v", err)
	}

	target, err := os.Readlink(from)
	if err != nil {
		t.Fatalf("Readlink: %v", err)
	}
	if target != filepath.Join("..", "rhel", "7") {
		t.Errorf("target = %q, want %q", target, filepath.Join("..", "rhel", "7"))
	}
}

func TestMakeRelativeSymlinkIsIdempotent(t *testing.T) {
	root := t.TempDir()
	mustMkdir(t, filepath.Join(root, "a"))
	mustMkdir(t, filepath.Join(root, "b"))

	from := filepath.Join(root, "a", "link")
	to := filepath.Join(root, "b")

	if err := MakeRelativeSymlink(from, to, nil); err != nil {
		t.Fatalf("first MakeRelativeSymlink: %v", err)
	}
	before, err := os.Lstat(from)
	if err != nil {
		t.Fatal(err)
	}

	if err := MakeRelativeSymlink(from, to, nil); err != nil {
		t.Fatalf("second MakeRelativeSymlink: %v", err)
	}
	after, err := os.Lstat(from)
	if err != nil {
		t.Fatal(err)
	}
	if !before.ModTime().Equal(after.ModTime()) {
		t.Error("re-running with an unchanged target should not recreate the symlink")
	}
}

func TestMakeRelativeSymlinkReplacesNonSymlinkEntry(t *testing.T) {
	root := t.TempDir()
	mustMkdir(t, filepath.Join(root, "b"))

	from := filepath.Join(root, "stale-file")
	if err := os.WriteFile(from, []byte("corrupt local state"), 0o644); err != nil {
		t.Fatal(err)
	}
	to := filepath.Join(root, "b")

	if err := MakeRelativeSymlink(from, to, nil); err != nil {
		t.Fatalf("MakeRelativeSymlink: %v", err)
	}

	info, err := os.Lstat(from)
	if err != nil {
		t.Fatal(err)
	}
	if info.Mode()&os.ModeSymlink == 0 {
		t.Error("expected the stale regular file to be replaced with a symlink")
	}
}

func mustMkdir(t *testing.T, path string) {
	t.Helper()
	if err := os.MkdirAll(path, 0o755); err != nil {
		t.Fatal(err)
	}
}
