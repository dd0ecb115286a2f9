package crypto

import "testing"

func TestHashAndCompare(t *testing.T) {
	hash, err := HashPassword("hunter22")
	if err != nil {
		t.Fatalf("hash: %v", err)
	}
	if err := ComparePassword(hash, "hunter22"); err != nil {
		t.Fatalf("expected match: %v", err)
	}
	if err := ComparePassword(hash, "hunter23"); err == nil {
		t.Fatalf("expected mismatch")
	}
}

func TestTemporaryPasswordLength(t *testing.T) {
	a, err := TemporaryPassword(8)
	if err != nil {
		t.Fatalf("temporary password: %v", err)
	}
	b, _ := TemporaryPassword(8)
	if len(a) != 8 || len(b) != 8 {
		t.Fatalf("unexpected lengths %d %d", len(a), len(b))
	}
	if a == b {
		t.Fatalf("expected distinct passwords")
	}
}
