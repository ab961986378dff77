package mfperrors

import (
	"fmt"
	"testing"
)

func TestErrorTypeMapsKnownKinds(t *testing.T) {
	cases := []struct {
		err  error
		want string
	}{
		{NewSecurityViolation("blocked_import: os"), "security"},
		{NewLintError("E501 line too long"), "lint"},
		{NewExecutionError("traceback", 1), "execution"},
		{NewExecutionTimeout(), "timeout"},
		{NewCacheError(fmt.Errorf("disk full")), "cache"},
		{NewServerNotFound("hotel", []string{"weather"}), "server_not_found"},
		{NewFunctionNotFound("hotel", "book", []string{"search"}), "function_not_found"},
	}
	for _, c := range cases {
		if got := ErrorType(c.err); got != c.want {
			t.Errorf("ErrorType(%v) = %q, want %q", c.err, got, c.want)
		}
	}
}

func TestErrorTypeUntypedIsInternal(t *testing.T) {
	if got := ErrorType(fmt.Errorf("boom")); got != "internal" {
		t.Errorf("expected internal for untyped error, got %q", got)
	}
}

func TestWrappedErrorUnwraps(t *testing.T) {
	inner := NewSpecFetchError("GET failed", fmt.Errorf("dial tcp: timeout"))
	wrapped := fmt.Errorf("compiling weather: %w", inner)
	var target *MFPError
	if !AsMFPError(wrapped, &target) {
		t.Fatal("expected AsMFPError to find the wrapped MFPError")
	}
	if target.Kind != KindSpecFetch {
		t.Errorf("expected spec_fetch kind, got %s", target.Kind)
	}
}
