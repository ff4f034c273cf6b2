package idgen

import (
	"testing"
	"time"
)

func TestNewLengthAndCharset(t *testing.T) {
	id := New()
	if len(id) != 22 {
		t.Fatalf("expected 22-char id, got %d: %q", len(id), id)
	}
	for _, r := range id {
		isHex := (r >= '0' && r <= '9') || (r >= 'a' && r <= 'f')
		if !isHex {
			t.Fatalf("id %q contains non-hex rune %q", id, r)
		}
	}
}

func TestNewAtSortsByTimestamp(t *testing.T) {
	earlier := NewAt(time.UnixMilli(1000))
	later := NewAt(time.UnixMilli(2000))
	if !(earlier < later) {
		t.Fatalf("expected earlier id %q < later id %q", earlier, later)
	}
}

func TestNewAtNegativeClampedToZero(t *testing.T) {
	id := NewAt(time.UnixMilli(-500))
	if id[:12] != "000000000000" {
		t.Fatalf("expected zero-clamped timestamp prefix, got %q", id[:12])
	}
}

func TestNewUnique(t *testing.T) {
	seen := make(map[string]bool)
	for i := 0; i < 1000; i++ {
		id := New()
		if seen[id] {
			t.Fatalf("duplicate id minted: %q", id)
		}
		seen[id] = true
	}
}
