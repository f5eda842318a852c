package config

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/tsumugu-mirror/tsumugu/pkg/policy"
)

func TestBuildSyncRejectsWrongArgCount(t *testing.T) {
	_, err := BuildSync(map[string]interface{}{"args": []string{"https://example.org/"}})
	if err == nil {
		t.Fatal("expected an error when LOCAL is missing")
	}
}

func TestBuildSyncRejectsBadUpstream(t *testing.T) {
	dir := t.TempDir()
	_, err := BuildSync(map[string]interface{}{"args": []string{"https://example.org/debian", dir}})
	if err == nil {
		t.Fatal("expected an error for an upstream URL missing its trailing slash")
	}
}

func TestBuildSyncAppliesDefaults(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "mirror")
	cfg, err := BuildSync(map[string]interface{}{"args": []string{"https://example.org/debian/", dir}})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.Threads != 2 {
		t.Errorf("Threads = %d, want default 2", cfg.Threads)
	}
	if cfg.MaxDelete != 100 {
		t.Errorf("MaxDelete = %d, want default 100", cfg.MaxDelete)
	}
	if cfg.Retry != 3 {
		t.Errorf("Retry = %d, want default 3", cfg.Retry)
	}
	if cfg.Parser == nil {
		t.Error("Parser should default to nginx, got nil")
	}
}

func TestBuildSyncOverridesFromFlags(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "mirror")
	cfg, err := BuildSync(map[string]interface{}{
		"args":      []string{"https://example.org/debian/", dir},
		"threads":   4,
		"no-delete": true,
		"exclude":   []string{"^debian/dists/oldstable"},
		"timezone":  "+8",
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.Threads != 4 {
		t.Errorf("Threads = %d, want 4", cfg.Threads)
	}
	if !cfg.NoDelete {
		t.Error("NoDelete should be true")
	}
	if got := cfg.Policy.Classify("debian/dists/oldstable/main"); got != policy.Stop {
		t.Errorf("Classify(oldstable) = %v, want Stop", got)
	}
	if cfg.TimezoneOverride == nil || *cfg.TimezoneOverride != 8*time.Hour {
		t.Errorf("TimezoneOverride = %v, want +8h", cfg.TimezoneOverride)
	}
}

func TestBuildSyncRejectsBadTimezone(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "mirror")
	_, err := BuildSync(map[string]interface{}{
		"args":     []string{"https://example.org/debian/", dir},
		"timezone": "not-a-number",
	})
	if err == nil {
		t.Fatal("expected an error for a malformed timezone offset")
	}
}

func TestBuildSyncRejectsUnknownParser(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "mirror")
	_, err := BuildSync(map[string]interface{}{
		"args":   []string{"https://example.org/debian/", dir},
		"parser": "iis",
	})
	if err == nil {
		t.Fatal("expected an error for an unknown parser dialect")
	}
}

func TestBuildListDefaultsUpstreamBase(t *testing.T) {
	cfg, err := BuildList(map[string]interface{}{"args": []string{"https://example.org/"}})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.UpstreamBase != "/" {
		t.Errorf("UpstreamBase = %q, want /", cfg.UpstreamBase)
	}
	if cfg.LocalDir != "" {
		t.Errorf("LocalDir = %q, want empty for list", cfg.LocalDir)
	}
}

func TestBuildListRejectsRelativeUpstreamBase(t *testing.T) {
	_, err := BuildList(map[string]interface{}{
		"args":          []string{"https://example.org/"},
		"upstream-base": "debian",
	})
	if err == nil {
		t.Fatal("expected an error for an upstream-base not starting with /")
	}
}
