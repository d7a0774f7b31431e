package security

import (
	"strings"
	"testing"
)

func TestNewSessionToken(t *testing.T) {
	a, err := NewSessionToken()
	if err != nil {
		t.Fatalf("NewSessionToken: %v", err)
	}
	b, _ := NewSessionToken()
	if a == b {
		t.Fatal("two tokens are equal")
	}
	if !WellFormedSessionToken(a) {
		t.Errorf("token %q not well formed", a)
	}
}

func TestWellFormedSessionToken(t *testing.T) {
	tests := map[string]bool{
		"":                      false,
		"abc":                   false,
		strings.Repeat("a", 64): true,
		strings.Repeat("z", 64): false,
		strings.Repeat("a", 65): false,
	}
	for in, want := range tests {
		if got := WellFormedSessionToken(in); got != want {
			t.Errorf("WellFormedSessionToken(%q) = %v, want %v", in, got, want)
		}
	}
}

func TestHashToken(t *testing.T) {
	h := HashToken("tok")
	if len(h) != 64 {
		t.Errorf("hash length = %d, want 64", len(h))
	}
	if h == "tok" {
		t.Error("hash equals token")
	}
	if !TokenHashEqual("tok", h) {
		t.Error("TokenHashEqual(match) = false")
	}
	if TokenHashEqual("other", h) {
		t.Error("TokenHashEqual(mismatch) = true")
	}
}
