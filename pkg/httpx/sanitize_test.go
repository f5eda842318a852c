package httpx

import (
	"net/url"
	"testing"
)

func TestSanitizeStripsIndexHTML(t *testing.T) {
	u, _ := url.Parse("http://example.com/a/index.html")
	got := Sanitize(u)
	if got.Path != "/a/" {
		t.Errorf("Path = %q, want %q", got.Path, "/a/")
	}
}

func TestSanitizeStripsIndexHTMCaseInsensitive(t *testing.T) {
	u, _ := url.Parse("http://example.com/a/INDEX.HTM")
	got := Sanitize(u)
	if got.Path != "/a/" {
		t.Errorf("Path = %q, want %q", got.Path, "/a/")
	}
}

func TestSanitizeLeavesOrdinaryPathAlone(t *testing.T) {
	u, _ := url.Parse("http://example.com/a/b/")
	got := Sanitize(u)
	if got.Path != "/a/b/" {
		t.Errorf("Path = %q, want %q", got.Path, "/a/b/")
	}
}

func TestSamePathAfterSanitization(t *testing.T) {
	a, _ := url.Parse("http://example.com/a/")
	b, _ := url.Parse("http://example.com/a/index.html")
	if !SamePath(a, b) {
		t.Error("expected /a/ and /a/index.html to be the same path")
	}

	c, _ := url.Parse("http://example.com/a/b/")
	if SamePath(a, c) {
		t.Error("expected /a/ and /a/b/ to differ")
	}
}
