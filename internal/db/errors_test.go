package db

import (
	"errors"
	"fmt"
	"testing"
)

func TestError_Format(t *testing.T) {
	cause := errors.New("connection refused")
	tests := []struct {
		err  *Error
		want string
	}{
		{&Error{Op: OpGet, Err: cause}, "GET: connection refused"},
		{&Error{Backend: "redis", Op: OpGet, Err: cause}, "redis GET: connection refused"},
	}
	for _, tc := range tests {
		if got := tc.err.Error(); got != tc.want {
			t.Errorf("Error() = %q, want %q", got, tc.want)
		}
		if !errors.Is(tc.err, cause) {
			t.Error("cause must stay reachable through Unwrap")
		}
	}
}

func TestOpOf(t *testing.T) {
	wrapped := fmt.Errorf("index build: %w", &Error{Backend: "sqlite", Op: OpUpsert, Err: errors.New("disk full")})
	if got := OpOf(wrapped); got != OpUpsert {
		t.Errorf("OpOf() = %q, want %q", got, OpUpsert)
	}
	if got := OpOf(errors.New("plain")); got != "" {
		t.Errorf("OpOf(plain) = %q, want empty", got)
	}
}
