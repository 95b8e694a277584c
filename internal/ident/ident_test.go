package ident

import (
	"testing"

	"github.com/a-s-l-a-h/oxidecms-core-backend/internal/domain"
)

func TestRoundTrip(t *testing.T) {
	id := New()
	parsed, err := Parse(id.String())
	if err != nil {
		t.Fatalf("parse own rendering: %v", err)
	}
	if parsed != id {
		t.Errorf("round trip changed id: %v != %v", parsed, id)
	}

	rebuilt, err := FromBytes(id.Bytes())
	if err != nil {
		t.Fatalf("from bytes: %v", err)
	}
	if rebuilt != id {
		t.Errorf("byte round trip changed id")
	}
}

func TestParseRejectsGarbage(t *testing.T) {
	for _, raw := range []string{"", "not-a-uuid", "123", "zzzzzzzz-zzzz-zzzz-zzzz-zzzzzzzzzzzz"} {
		if _, err := Parse(raw); !domain.IsInvalidInput(err) {
			t.Errorf("Parse(%q) = %v, want invalid-input", raw, err)
		}
	}
}

func TestFromBytesLength(t *testing.T) {
	if _, err := FromBytes(make([]byte, 15)); !domain.IsInvalidInput(err) {
		t.Errorf("short input: got %v", err)
	}
	if _, err := FromBytes(make([]byte, 17)); !domain.IsInvalidInput(err) {
		t.Errorf("long input: got %v", err)
	}
}

func TestNewIsUnique(t *testing.T) {
	seen := make(map[ID]struct{})
	for i := 0; i < 1000; i++ {
		id := New()
		if _, ok := seen[id]; ok {
			t.Fatalf("duplicate id generated: %v", id)
		}
		seen[id] = struct{}{}
	}
}
