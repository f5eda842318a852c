package flagparse

import (
	"reflect"
	"testing"
)

func TestParseCommandRejectsUnknown(t *testing.T) {
	if _, err := ParseCommand("backup"); err == nil {
		t.Fatal("expected an error for a command that doesn't exist")
	}
}

func TestParseSyncFlagsAndPositionals(t *testing.T) {
	cmd, flagMap, err := Parse([]string{
		"sync", "-threads", "8", "-no-delete", "-exclude", "^debian/", "-exclude", "^ubuntu/",
		"https://example.org/debian/", "/srv/mirror/debian",
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cmd != Sync {
		t.Fatalf("command = %v, want Sync", cmd)
	}
	if flagMap["threads"] != 8 {
		t.Errorf("threads = %v, want 8", flagMap["threads"])
	}
	if flagMap["no-delete"] != true {
		t.Errorf("no-delete = %v, want true", flagMap["no-delete"])
	}
	if got, want := flagMap["exclude"], []string{"^debian/", "^ubuntu/"}; !reflect.DeepEqual(got, want) {
		t.Errorf("exclude = %v, want %v", got, want)
	}
	if _, ok := flagMap["retry"]; ok {
		t.Error("retry should be absent: it was never set on the command line")
	}
	args, ok := flagMap["args"].([]string)
	if !ok || !reflect.DeepEqual(args, []string{"https://example.org/debian/", "/srv/mirror/debian"}) {
		t.Errorf("args = %#v, want the two positional arguments", flagMap["args"])
	}
}

func TestParseListFlagsAndPositional(t *testing.T) {
	cmd, flagMap, err := Parse([]string{"list", "-upstream-base", "/debian/", "https://example.org/"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cmd != List {
		t.Fatalf("command = %v, want List", cmd)
	}
	if flagMap["upstream-base"] != "/debian/" {
		t.Errorf("upstream-base = %v, want /debian/", flagMap["upstream-base"])
	}
	args, _ := flagMap["args"].([]string)
	if !reflect.DeepEqual(args, []string{"https://example.org/"}) {
		t.Errorf("args = %#v", flagMap["args"])
	}
}

func TestParseHelpReturnsNoError(t *testing.T) {
	cmd, flagMap, err := Parse([]string{"help"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cmd != Help {
		t.Fatalf("command = %v, want Help", cmd)
	}
	if flagMap != nil {
		t.Errorf("flagMap = %v, want nil", flagMap)
	}
}

func TestParseNoArgsReturnsNone(t *testing.T) {
	cmd, flagMap, err := Parse(nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cmd != None || flagMap != nil {
		t.Errorf("cmd=%v flagMap=%v, want None/nil", cmd, flagMap)
	}
}
