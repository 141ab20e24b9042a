package wire

import "errors"

var (
	// ErrFrameTooLarge indicates a frame's declared Len exceeds limits.MaxMessageSize.
	ErrFrameTooLarge = errors.New("wire: frame too large")

	// ErrBadHeader indicates a header line could not be parsed, or an
	// unrecognized header key was present.
	ErrBadHeader = errors.New("wire: bad header")

	// ErrUnsupportedVersion indicates the frame declared a Ver this
	// reader does not implement.
	ErrUnsupportedVersion = errors.New("wire: unsupported version")

	// ErrShortRead indicates the connection closed or errored before
	// Len payload bytes could be read.
	ErrShortRead = errors.New("wire: short read")

	// ErrDecodeFailed indicates the payload could not be decoded into
	// any known message variant.
	ErrDecodeFailed = errors.New("wire: decode failed")
)
