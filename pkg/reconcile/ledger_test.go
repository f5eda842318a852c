package reconcile

import (
	"errors"
	"testing"

	"github.com/tsumugu-mirror/tsumugu/pkg/tserr"
)

func TestLedgerAddWithinCap(t *testing.T) {
	l := NewLedger(3)
	for i, p := range []string{"a", "b", "c"} {
		if err := l.Add(p); err != nil {
			t.Fatalf("Add #%d: unexpected error: %v", i, err)
		}
	}
	if l.Count() != 3 {
		t.Errorf("Count() = %d, want 3", l.Count())
	}
}

func TestLedgerAddExceedsCap(t *testing.T) {
	l := NewLedger(2)
	if err := l.Add("a"); err != nil {
		t.Fatalf("Add a: %v", err)
	}
	if err := l.Add("b"); err != nil {
		t.Fatalf("Add b: %v", err)
	}

	err := l.Add("c")
	if err == nil {
		t.Fatal("expected an error once the ledger exceeds its cap")
	}

	var tsErr *tserr.Error
	if !errors.As(err, &tsErr) {
		t.Fatalf("error is not a *tserr.Error: %v", err)
	}
	if tsErr.Kind != tserr.DeletionCapExceeded {
		t.Errorf("Kind = %v, want DeletionCapExceeded", tsErr.Kind)
	}
	if tserr.ExitCode(tsErr.Kind) != 25 {
		t.Errorf("ExitCode = %d, want 25", tserr.ExitCode(tsErr.Kind))
	}
}

func TestLedgerNegativeCapIsUnbounded(t *testing.T) {
	l := NewLedger(-1)
	for i := 0; i < 100; i++ {
		if err := l.Add(string(rune('a' + i%26))); err != nil {
			t.Fatalf("Add #%d: unexpected error: %v", i, err)
		}
	}
}

func TestLedgerPaths(t *testing.T) {
	l := NewLedger(-1)
	l.Add("/mirror/debian/foo")
	l.Add("/mirror/debian/bar")

	paths := l.Paths()
	if len(paths) != 2 {
		t.Fatalf("Paths() returned %d entries, want 2", len(paths))
	}
}
