package limits

import (
	"errors"
	"testing"
)

func TestValidateMessageSize(t *testing.T) {
	if err := ValidateMessageSize(nil, 10); !errors.Is(err, ErrMessageEmpty) {
		t.Errorf("expected ErrMessageEmpty, got %v", err)
	}
	if err := ValidateMessageSize(make([]byte, 11), 10); !errors.Is(err, ErrMessageTooLarge) {
		t.Errorf("expected ErrMessageTooLarge, got %v", err)
	}
	if err := ValidateMessageSize(make([]byte, 10), 10); err != nil {
		t.Errorf("expected nil, got %v", err)
	}
}

func TestValidateFramePayload(t *testing.T) {
	if err := ValidateFramePayload(make([]byte, MaxMessageSize)); err != nil {
		t.Errorf("boundary size should pass: %v", err)
	}
	if err := ValidateFramePayload(make([]byte, MaxMessageSize+1)); !errors.Is(err, ErrMessageTooLarge) {
		t.Errorf("expected ErrMessageTooLarge, got %v", err)
	}
}

func TestValidateBlockSize(t *testing.T) {
	cases := []struct {
		size uint32
		ok   bool
	}{
		{0, false},
		{1, true},
		{DefaultBlockSize, true},
		{MaxBlockSize, true},
		{MaxBlockSize + 1, false},
	}
	for _, c := range cases {
		err := ValidateBlockSize(c.size)
		if c.ok && err != nil {
			t.Errorf("size %d: expected ok, got %v", c.size, err)
		}
		if !c.ok && !errors.Is(err, ErrBlockSizeOutOfRange) {
			t.Errorf("size %d: expected ErrBlockSizeOutOfRange, got %v", c.size, err)
		}
	}
}

func TestValidateConcurrency(t *testing.T) {
	if err := ValidateConcurrency(0); !errors.Is(err, ErrConcurrencyOutOfRange) {
		t.Errorf("expected out of range, got %v", err)
	}
	if err := ValidateConcurrency(17); !errors.Is(err, ErrConcurrencyOutOfRange) {
		t.Errorf("expected out of range, got %v", err)
	}
	for _, n := range []uint8{1, 8, 16} {
		if err := ValidateConcurrency(n); err != nil {
			t.Errorf("concurrency %d should be valid: %v", n, err)
		}
	}
}

func TestValidateTotalLength(t *testing.T) {
	if err := ValidateTotalLength(MaxTotalLength); err != nil {
		t.Errorf("boundary length should pass: %v", err)
	}
	if err := ValidateTotalLength(MaxTotalLength + 1); !errors.Is(err, ErrLengthTooLarge) {
		t.Errorf("expected ErrLengthTooLarge, got %v", err)
	}
}
