package security

import (
	"errors"
	"testing"
)

func TestWithDefaultsFillsZeroFields(t *testing.T) {
	l := Limits{MaxPages: 3}.WithDefaults()
	if l.MaxPages != 3 {
		t.Fatalf("explicit MaxPages overwritten: %d", l.MaxPages)
	}
	if l.MaxDecompressedSize != DefaultLimits().MaxDecompressedSize {
		t.Fatalf("MaxDecompressedSize not defaulted: %d", l.MaxDecompressedSize)
	}
	if l.MaxPagePixels == 0 || l.MaxXRefDepth == 0 || l.MaxNestingDepth == 0 {
		t.Fatalf("zero limits left after WithDefaults: %+v", l)
	}
}

func TestExceededWrapsSentinel(t *testing.T) {
	err := Exceeded("pages", 10, 5)
	if !errors.Is(err, ErrLimitExceeded) {
		t.Fatalf("expected ErrLimitExceeded, got %v", err)
	}
	if err.Error() != "pages: 10 > 5: resource limit exceeded" {
		t.Fatalf("unexpected message: %q", err.Error())
	}
}
