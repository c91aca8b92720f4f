package realtime

import (
	"errors"
	"fmt"
	"testing"
)

func TestAsError(t *testing.T) {
	if AsError(nil) != nil {
		t.Fatalf("nil stays nil")
	}

	typed := &Error{Code: CodeNotFound, Message: "gone"}
	if got := AsError(typed); got != typed {
		t.Fatalf("typed errors pass through unchanged, got %v", got)
	}

	wrapped := fmt.Errorf("while joining: %w", typed)
	if got := AsError(wrapped); got.Code != CodeNotFound {
		t.Fatalf("wrapped typed errors unwrap, got %v", got)
	}

	plain := AsError(errors.New("pq: connection reset"))
	if plain.Code != CodeUnavailable {
		t.Fatalf("unknown errors map to Unavailable, got %v", plain)
	}
	if plain.Message != "internal error" {
		t.Fatalf("unknown errors must not leak their text, got %q", plain.Message)
	}
}

func TestErrorf(t *testing.T) {
	err := Errorf(CodeOutOfRange, "valid range 0-%d", 4)
	if err.Code != CodeOutOfRange || err.Message != "valid range 0-4" {
		t.Fatalf("got %v", err)
	}
	if err.Error() != "OutOfRange: valid range 0-4" {
		t.Fatalf("got %q", err.Error())
	}
}
