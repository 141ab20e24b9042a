// Package wire implements the framed request/response protocol that
// carries handshake, probe, request, data, and error messages between
// the Sender and Receiver.
//
// # Frame Grammar
//
// Every frame begins with two ASCII header lines terminated by "\r\n",
// then a blank "\r\n", then exactly Len bytes of binary payload:
//
//	Ver: <decimal-unsigned>\r\n
//	Len: <decimal-unsigned>\r\n
//	\r\n
//	<payload bytes>
//
// Header parsing is case-sensitive and rejects any header line it does
// not recognize. Len is bounded by limits.MaxMessageSize.
//
// # Payload Encoding
//
// The payload is a tagged-variant binary encoding: one leading tag
// byte identifies the message, followed by its fields in little-endian
// fixed-width form. Byte arrays and strings are length-prefixed with a
// uint32. DataV1 is decoded so its Bytes field borrows directly from
// the caller-supplied buffer — Decode never copies the block payload.
//
//	frame, err := wire.ReadFrame(bufio.NewReader(conn))
//	msg, err := wire.Decode(frame.Payload)
//	switch m := msg.(type) {
//	case *wire.DataV1:
//	    // m.Bytes aliases frame.Payload; do not reuse the buffer
//	    // until m is no longer needed.
//	}
package wire
