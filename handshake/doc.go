// Package handshake implements the Control Protocol from spec §4.2: the
// single-connection Hello/validate/Ack exchange that agrees a Transfer
// Plan before any data connection opens, plus the resume-bitmap
// extension (§4.3.1) that lets a Receiver resuming a `.partial` file
// prove its on-disk blocks against the Sender's CRC32 rather than
// trusting them blind.
package handshake
