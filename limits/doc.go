// Package limits provides centralized size and range policy for the
// transfer engine, ensuring consistent enforcement across the wire
// codec, handshake, and scheduler.
//
// # Size Hierarchy
//
//   - MinBlockSize / MaxBlockSize: the block-size policy window, 1
//     byte to 4 MiB, that a handshake's HelloV1 must fall within;
//     DefaultBlockSize (1 MiB) is used when the CLI does not override it.
//   - MaxMessageSize: the largest frame payload the wire codec accepts,
//     MaxBlockSize plus a fixed header/tag overhead budget.
//   - MaxTotalLength: the 16 GiB file-length ceiling.
//
// # Validation Functions
//
//	if err := limits.ValidateBlockSize(hello.BlockSize); err != nil {
//	    // policy error, fatal at handshake time
//	}
//
// # Error Types
//
// ErrMessageEmpty, ErrMessageTooLarge, ErrBlockSizeOutOfRange,
// ErrConcurrencyOutOfRange, and ErrLengthTooLarge are sentinel errors
// wrapped with context via fmt.Errorf("%w: ...") so callers can both
// match with errors.Is and read a human-readable detail.
package limits
