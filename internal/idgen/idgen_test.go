package idgen

import (
	"regexp"
	"strings"
	"testing"
)

var runIDPattern = regexp.MustCompile(`^run_[a-z0-9]{12}$`)

func TestNewRunID_Format(t *testing.T) {
	for i := 0; i < 100; i++ {
		id, err := NewRunID()
		if err != nil {
			t.Fatalf("NewRunID() error on iteration %d: %v", i, err)
		}
		if !runIDPattern.MatchString(id) {
			t.Fatalf("NewRunID() = %q, does not match %s", id, runIDPattern)
		}
	}
}

func TestNewRunID_Uniqueness(t *testing.T) {
	const count = 10_000
	seen := make(map[string]struct{}, count)
	for i := 0; i < count; i++ {
		id, err := NewRunID()
		if err != nil {
			t.Fatalf("NewRunID() error on iteration %d: %v", i, err)
		}
		if _, dup := seen[id]; dup {
			t.Fatalf("duplicate ID after %d generations: %q", i, id)
		}
		seen[id] = struct{}{}
	}
}

func TestWithPrefix(t *testing.T) {
	id, err := WithPrefix("export_")
	if err != nil {
		t.Fatalf("WithPrefix() error: %v", err)
	}
	if !strings.HasPrefix(id, "export_") {
		t.Errorf("WithPrefix() = %q, want prefix export_", id)
	}
	if len(id) != len("export_")+length {
		t.Errorf("WithPrefix() length = %d, want %d", len(id), len("export_")+length)
	}
}
