package passphrase

import (
	"strings"
	"testing"
)

func TestSourcePrefersEnvironment(t *testing.T) {
	calls := 0
	src := NewSource("PETTRACE_TEST_PASS")
	src.lookup = func(key string) (string, bool) {
		calls++
		if key != "PETTRACE_TEST_PASS" {
			t.Fatalf("unexpected key %s", key)
		}
		return "hunter2", true
	}

	for i := 0; i < 2; i++ {
		got, err := src.Get()
		if err != nil || got != "hunter2" {
			t.Fatalf("unexpected result %q %v", got, err)
		}
	}
	if calls != 1 {
		t.Fatalf("expected cached lookup, got %d calls", calls)
	}
}

func TestSourceRejectsBlankEnvironment(t *testing.T) {
	src := NewSource("PETTRACE_TEST_PASS")
	src.lookup = func(string) (string, bool) { return "   ", true }
	if _, err := src.Get(); err == nil || !strings.Contains(err.Error(), "empty") {
		t.Fatalf("expected empty passphrase error, got %v", err)
	}
}
