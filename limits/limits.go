// Package limits provides centralized size and range policy for the
// transfer engine. This ensures consistent validation across the wire
// codec, handshake, and scheduler rather than scattering magic numbers.
package limits

import (
	"errors"
	"fmt"
)

const (
	// MinBlockSize is the smallest block size policy allows (1 byte).
	MinBlockSize = 1

	// MaxBlockSize is the largest block size policy allows (4 MiB).
	MaxBlockSize = 4 * 1024 * 1024

	// DefaultBlockSize is used when the CLI does not override it.
	DefaultBlockSize = 1 * 1024 * 1024

	// FrameOverhead is the budget reserved for headers and payload tag
	// bytes above a block's raw contents in a single frame.
	FrameOverhead = 4 * 1024

	// MaxMessageSize is the largest frame payload the codec accepts,
	// per spec policy: MaxBlockSize + FrameOverhead.
	MaxMessageSize = MaxBlockSize + FrameOverhead

	// MinConcurrency is the smallest number of data workers allowed.
	MinConcurrency = 1

	// MaxConcurrency is the largest number of data workers allowed.
	MaxConcurrency = 16

	// MaxTotalLength is the largest file length policy allows (16 GiB).
	MaxTotalLength = 16 * 1024 * 1024 * 1024

	// CompressionProbeThreshold is the ratio below which the compression
	// probe enables compression for the rest of the session.
	CompressionProbeThreshold = 0.95
)

var (
	// ErrMessageEmpty indicates an empty payload was provided where one was required.
	ErrMessageEmpty = errors.New("empty message")

	// ErrMessageTooLarge indicates a payload exceeds the policy maximum.
	ErrMessageTooLarge = errors.New("message too large")

	// ErrBlockSizeOutOfRange indicates a negotiated block size outside [MinBlockSize, MaxBlockSize].
	ErrBlockSizeOutOfRange = errors.New("block size out of range")

	// ErrConcurrencyOutOfRange indicates a requested concurrency outside [MinConcurrency, MaxConcurrency].
	ErrConcurrencyOutOfRange = errors.New("concurrency out of range")

	// ErrLengthTooLarge indicates a file length exceeding MaxTotalLength.
	ErrLengthTooLarge = errors.New("file length exceeds policy maximum")
)

// ValidateMessageSize validates a payload against an explicit maximum.
func ValidateMessageSize(payload []byte, maxSize int) error {
	if len(payload) == 0 {
		return ErrMessageEmpty
	}
	if len(payload) > maxSize {
		return fmt.Errorf("%w: size %d exceeds limit %d", ErrMessageTooLarge, len(payload), maxSize)
	}
	return nil
}

// ValidateFramePayload validates a decoded frame payload against MaxMessageSize.
func ValidateFramePayload(payload []byte) error {
	if len(payload) > MaxMessageSize {
		return fmt.Errorf("%w: size %d exceeds limit %d", ErrMessageTooLarge, len(payload), MaxMessageSize)
	}
	return nil
}

// ValidateBlockSize validates a negotiated block size.
func ValidateBlockSize(blockSize uint32) error {
	if blockSize < MinBlockSize || blockSize > MaxBlockSize {
		return fmt.Errorf("%w: %d not in [%d, %d]", ErrBlockSizeOutOfRange, blockSize, MinBlockSize, MaxBlockSize)
	}
	return nil
}

// ValidateConcurrency validates a requested or accepted concurrency.
func ValidateConcurrency(concurrency uint8) error {
	if concurrency < MinConcurrency || concurrency > MaxConcurrency {
		return fmt.Errorf("%w: %d not in [%d, %d]", ErrConcurrencyOutOfRange, concurrency, MinConcurrency, MaxConcurrency)
	}
	return nil
}

// ValidateTotalLength validates a file length against the policy maximum.
func ValidateTotalLength(length uint64) error {
	if length > MaxTotalLength {
		return fmt.Errorf("%w: %d exceeds %d", ErrLengthTooLarge, length, MaxTotalLength)
	}
	return nil
}
