package xfererr

import (
	"errors"
	"testing"
)

func TestErrorUnwrapAndIs(t *testing.T) {
	cause := errors.New("connection reset")
	err := Transport("reading block 4", cause)

	if !errors.Is(err, cause) {
		t.Error("expected errors.Is to find the wrapped cause")
	}
	if err.Kind != KindTransport {
		t.Errorf("expected KindTransport, got %v", err.Kind)
	}
	if !err.Retryable() {
		t.Error("transport errors should be retryable")
	}
}

func TestExitCodes(t *testing.T) {
	cases := []struct {
		kind Kind
		code int
	}{
		{KindTransport, 5},
		{KindProtocol, 3},
		{KindPolicy, 3},
		{KindIntegrity, 4},
		{KindResource, 2},
	}
	for _, c := range cases {
		e := New(c.kind, "ctx", nil)
		if got := e.ExitCode(); got != c.code {
			t.Errorf("kind %v: expected exit code %d, got %d", c.kind, c.code, got)
		}
	}
}

func TestNonRetryableKinds(t *testing.T) {
	for _, k := range []Kind{KindProtocol, KindResource, KindPolicy} {
		e := New(k, "ctx", nil)
		if e.Retryable() {
			t.Errorf("kind %v should not be retryable", k)
		}
	}
}
