package main

import (
	"path/filepath"
	"testing"

	"github.com/pouwchain/pouwchain/internal/crypto"
)

func TestLoadOrCreateKeyMintsOnFirstCall(t *testing.T) {
	path := filepath.Join(t.TempDir(), "node.key")

	key, err := loadOrCreateKey(path)
	if err != nil {
		t.Fatalf("loadOrCreateKey() error = %v", err)
	}
	if key == nil {
		t.Fatal("loadOrCreateKey() returned a nil key")
	}
}

func TestLoadOrCreateKeyReloadsSameKey(t *testing.T) {
	path := filepath.Join(t.TempDir(), "node.key")

	first, err := loadOrCreateKey(path)
	if err != nil {
		t.Fatalf("first loadOrCreateKey() error = %v", err)
	}
	second, err := loadOrCreateKey(path)
	if err != nil {
		t.Fatalf("second loadOrCreateKey() error = %v", err)
	}

	if crypto.Address(first) != crypto.Address(second) {
		t.Fatal("loadOrCreateKey() on an existing file produced a different key")
	}
}

func TestTrimNewline(t *testing.T) {
	cases := map[string]string{
		"abc\n":   "abc",
		"abc\r\n": "abc",
		"abc":     "abc",
		"":        "",
	}
	for in, want := range cases {
		if got := trimNewline([]byte(in)); got != want {
			t.Errorf("trimNewline(%q) = %q, want %q", in, got, want)
		}
	}
}
