package recovery

import (
	"errors"
	"testing"
)

func TestStrictStrategyAlwaysFails(t *testing.T) {
	s := NewStrictStrategy()
	if got := s.OnError(errors.New("boom"), Location{Component: "xref"}); got != ActionFail {
		t.Fatalf("expected ActionFail, got %v", got)
	}
}

func TestLenientStrategyRepairsXRefAndSkipsObjects(t *testing.T) {
	s := NewLenientStrategy(nil)
	if got := s.OnError(errors.New("bad startxref"), Location{Component: "xref", ByteOffset: 10}); got != ActionFix {
		t.Fatalf("xref error: expected ActionFix, got %v", got)
	}
	if got := s.OnError(errors.New("bad dict"), Location{Component: "parser", ObjectNum: 4}); got != ActionSkip {
		t.Fatalf("object error: expected ActionSkip, got %v", got)
	}
	errs := s.Errors()
	if len(errs) != 2 {
		t.Fatalf("expected 2 recorded errors, got %d", len(errs))
	}
	if errs[0].Error() != "[xref] offset 10: bad startxref" {
		t.Fatalf("unexpected error text: %q", errs[0].Error())
	}
}
