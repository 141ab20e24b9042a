package handshake

import (
	"errors"
	"time"
)

// ErrBusy is returned by Dial when the Receiver already has a transfer
// active and rejected the connection per spec §4.2's single-active-
// transfer rule.
var ErrBusy = errors.New("handshake: receiver busy with another transfer")

// HandshakeTimeout bounds every read/write on the control connection,
// per spec §5's 30s per-op deadline.
const HandshakeTimeout = 30 * time.Second
