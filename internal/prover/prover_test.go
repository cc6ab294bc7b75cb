package prover

import (
	"context"
	"errors"
	"reflect"
	"testing"

	"github.com/pouwchain/pouwchain/internal/chainerrors"
)

func TestSplitParameters(t *testing.T) {
	cases := []struct {
		in   string
		want []string
	}{
		{"", nil},
		{"3 4 12", []string{"3", "4", "12"}},
		{"  3   4\t12  ", []string{"3", "4", "12"}},
		{"single", []string{"single"}},
	}
	for _, c := range cases {
		got := splitParameters(c.in)
		if !reflect.DeepEqual(got, c.want) {
			t.Errorf("splitParameters(%q) = %v, want %v", c.in, got, c.want)
		}
	}
}

func TestShellProverGenerateMissingBinary(t *testing.T) {
	p := NewShellProver("pouwchain-nonexistent-prover-binary")
	_, err := p.Generate(context.Background(), t.TempDir(), "3 4 12", "9999")
	if !errors.Is(err, chainerrors.ErrProverFailure) {
		t.Fatalf("Generate() with a missing binary error = %v, want %v", err, chainerrors.ErrProverFailure)
	}
}

func TestShellProverVerifyMissingBinaryReturnsFalse(t *testing.T) {
	p := NewShellProver("pouwchain-nonexistent-prover-binary")
	ok, err := p.Verify(context.Background(), t.TempDir(), []byte("{}"), "3 4 12", "9999")
	if err != nil {
		t.Fatalf("Verify() error = %v, want nil (toolchain failure reported as ok=false)", err)
	}
	if ok {
		t.Fatal("Verify() with a missing binary returned true, want false")
	}
}
