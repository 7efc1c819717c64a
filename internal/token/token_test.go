package token_test

import (
	"strings"
	"testing"

	"github.com/perchpress/newsletter-backend/internal/token"
)

const alphanumeric = "ABCDEFGHIJKLMNOPQRSTUVWXYZabcdefghijklmnopqrstuvwxyz0123456789"

func TestNew_HasFixedLength(t *testing.T) {
	tok, err := token.New()
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if len(tok) != token.Length {
		t.Errorf("length: got %d, want %d", len(tok), token.Length)
	}
}

func TestNew_UsesURLSafeAlphabet(t *testing.T) {
	for i := 0; i < 50; i++ {
		tok, err := token.New()
		if err != nil {
			t.Fatalf("New: %v", err)
		}
		for _, c := range tok {
			if !strings.ContainsRune(alphanumeric, c) {
				t.Fatalf("token %q contains non-alphanumeric character %q", tok, c)
			}
		}
	}
}

func TestNew_DrawsFromTheWholeAlphabet(t *testing.T) {
	// 500 tokens give 12500 draws; a symbol sampled uniformly at 1/62 is
	// absent from all of them with probability well under 1e-80.
	seen := make(map[rune]bool, len(alphanumeric))
	for i := 0; i < 500; i++ {
		tok, err := token.New()
		if err != nil {
			t.Fatalf("New: %v", err)
		}
		for _, c := range tok {
			seen[c] = true
		}
	}
	for _, c := range alphanumeric {
		if !seen[c] {
			t.Errorf("symbol %q never generated", c)
		}
	}
}

func TestNew_DoesNotRepeat(t *testing.T) {
	seen := make(map[string]struct{}, 1000)
	for i := 0; i < 1000; i++ {
		tok, err := token.New()
		if err != nil {
			t.Fatalf("New: %v", err)
		}
		if _, dup := seen[tok]; dup {
			t.Fatalf("generated duplicate token %q", tok)
		}
		seen[tok] = struct{}{}
	}
}
