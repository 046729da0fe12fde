package util

import "testing"

func TestHashUserKey(t *testing.T) {
	id := "guest:12345"
	got := HashUserKey(id)
	if got != HashUserKey(id) {
		t.Fatalf("expected stable hash, got %s", got)
	}
	for _, ch := range got {
		if !((ch >= 'a' && ch <= 'f') || (ch >= '0' && ch <= '9')) {
			t.Fatalf("hash contains non-hex character: %c", ch)
		}
	}
	if len(got) != 64 {
		t.Fatalf("expected 64 hex characters, got %d", len(got))
	}
}

func TestHashBytesDiffersByContent(t *testing.T) {
	a := HashBytes([]byte("paper one"))
	b := HashBytes([]byte("paper two"))
	if a == b {
		t.Fatal("distinct contents produced equal hashes")
	}
	if len(a) != 64 {
		t.Fatalf("expected 64 hex characters, got %d", len(a))
	}
}
