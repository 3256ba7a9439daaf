package utils

import "testing"

func TestHashStringToUint64Stable(t *testing.T) {
	if HashStringToUint64("where is my order") != HashStringToUint64("where is my order") {
		t.Fatalf("hash must be deterministic")
	}
	if HashStringToUint64("a") == HashStringToUint64("b") {
		t.Fatalf("expected different hashes")
	}
}

func TestDedupeKey(t *testing.T) {
	a := DedupeKey("CA1", "Do you ship to Canada")
	b := DedupeKey("CA1", "  do you ship to canada ")
	if a != b {
		t.Fatalf("expected case and whitespace insensitive key, got %q vs %q", a, b)
	}
	if a[:4] != "CA1:" {
		t.Fatalf("expected call prefix, got %q", a)
	}
	if DedupeKey("CA2", "Do you ship to Canada") == a {
		t.Fatalf("different calls must not collide")
	}
	if DedupeKey() != "" {
		t.Fatalf("expected empty key")
	}
}
