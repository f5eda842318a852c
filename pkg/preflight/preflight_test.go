package preflight

import (
	"os"
	"path/filepath"
	"testing"
)

func TestCheckUpstreamURLRequiresTrailingSlash(t *testing.T) {
	if _, err := CheckUpstreamURL("https://example.org/debian"); err == nil {
		t.Fatal("expected an error for a URL missing its trailing slash")
	}
}

func TestCheckUpstreamURLRequiresHTTPScheme(t *testing.T) {
	if _, err := CheckUpstreamURL("ftp://example.org/debian/"); err == nil {
		t.Fatal("expected an error for a non-http(s) scheme")
	}
}

func TestCheckUpstreamURLAcceptsValidURL(t *testing.T) {
	u, err := CheckUpstreamURL("https://example.org/debian/")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if u.Host != "example.org" || u.Path != "/debian/" {
		t.Errorf("parsed URL = %+v, unexpected host/path", u)
	}
}

func TestCheckLocalDirAccessibleAcceptsExistingDir(t *testing.T) {
	dir := t.TempDir()
	if err := CheckLocalDirAccessible(dir); err != nil {
		t.Errorf("unexpected error for an existing directory: %v", err)
	}
}

func TestCheckLocalDirAccessibleRejectsFileNotDir(t *testing.T) {
	dir := t.TempDir()
	filePath := filepath.Join(dir, "not-a-dir")
	if err := os.WriteFile(filePath, nil, 0o644); err != nil {
		t.Fatal(err)
	}
	if err := CheckLocalDirAccessible(filePath); err == nil {
		t.Fatal("expected an error when LOCAL is an existing regular file")
	}
}

func TestCheckLocalDirAccessibleRejectsAmbiguousRoot(t *testing.T) {
	for _, path := range []string{".", string(filepath.Separator)} {
		if err := CheckLocalDirAccessible(path); err == nil {
			t.Errorf("expected an error for ambiguous LOCAL %q", path)
		}
	}
}

func TestCheckLocalDirWritableCreatesAndCleansUp(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "mirror")
	if err := CheckLocalDirWritable(dir); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	entries, err := filepath.Glob(filepath.Join(dir, ".tsumugu-writetest.tmp"))
	if err != nil {
		t.Fatal(err)
	}
	if len(entries) != 0 {
		t.Error("write-test temp file was not cleaned up")
	}
}
