// Package integrity implements the transfer engine's integrity
// pipeline: the whole-file BLAKE3 hash computed with concurrent
// positional-read I/O fan-in, the per-block CRC32 used to detect
// in-flight corruption, and the one-shot compression probe that
// decides a session's compression disposition.
package integrity
