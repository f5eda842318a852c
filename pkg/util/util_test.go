package util

import "testing"

func TestExpandPath(t *testing.T) {
	home, err := ExpandPath("~")
	if err != nil {
		t.Fatalf("ExpandPath(~) failed: %v", err)
	}
	if home == "~" || home == "" {
		t.Errorf("expected tilde to expand, got %q", home)
	}

	plain, err := ExpandPath("/tmp/foo")
	if err != nil {
		t.Fatalf("ExpandPath(plain) failed: %v", err)
	}
	if plain != "/tmp/foo" {
		t.Errorf("expected path unchanged, got %q", plain)
	}
}

func TestInvertMap(t *testing.T) {
	m := map[int]string{1: "a", 2: "b"}
	inv := InvertMap(m)
	if inv["a"] != 1 || inv["b"] != 2 {
		t.Errorf("unexpected inverted map: %#v", inv)
	}
}

func TestMergeAndDeduplicate(t *testing.T) {
	result := MergeAndDeduplicate([]string{"a", "b"}, []string{"b", "c"})
	seen := map[string]bool{}
	for _, v := range result {
		seen[v] = true
	}
	if len(result) != 3 || !seen["a"] || !seen["b"] || !seen["c"] {
		t.Errorf("unexpected merge result: %#v", result)
	}
}
