package reconcile

import (
	"os"
	"path/filepath"
	"testing"
)

func TestCleanupRemovesLedgerEntries(t *testing.T) {
	root := t.TempDir()
	stale := filepath.Join(root, "stale.txt")
	if err := os.WriteFile(stale, []byte("orphaned"), 0o644); err != nil {
		t.Fatal(err)
	}

	ledger := NewLedger(-1)
	if err := ledger.Add(stale); err != nil {
		t.Fatal(err)
	}

	if err := Cleanup(ledger, false, nil); err != nil {
		t.Fatalf("Cleanup: %v", err)
	}
	if _, err := os.Stat(stale); !os.IsNotExist(err) {
		t.Errorf("expected %s to be removed, stat err = %v", stale, err)
	}
}

func TestCleanupNoDeleteLeavesFilesInPlace(t *testing.T) {
	root := t.TempDir()
	stale := filepath.Join(root, "stale.txt")
	if err := os.WriteFile(stale, []byte("orphaned"), 0o644); err != nil {
		t.Fatal(err)
	}

	ledger := NewLedger(-1)
	if err := ledger.Add(stale); err != nil {
		t.Fatal(err)
	}

	if err := Cleanup(ledger, true, nil); err != nil {
		t.Fatalf("Cleanup: %v", err)
	}
	if _, err := os.Stat(stale); err != nil {
		t.Errorf("expected %s to remain with --no-delete set, stat err = %v", stale, err)
	}
}
