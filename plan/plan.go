// Package plan defines the Transfer Plan: the immutable parameter set a
// Sender and Receiver agree on during the handshake and share read-only
// for the rest of the session, plus the block addressing math and the
// Received-Block Bitmap that track progress against it.
package plan

import (
	"fmt"
	"math/rand"
	"sync/atomic"

	"github.com/parcelxfer/parcel/limits"
)

// Plan is the parameter set produced by the handshake. Fields are set
// at construction; the handshake then overwrites Concurrency once with
// the accepted value, before any worker starts, and the compression
// disposition is resolved once through an atomic. After that it is
// safe to share a *Plan across all workers without synchronization.
type Plan struct {
	Name        string
	Length      uint64
	Hash        [32]byte
	BlockSize   uint32
	Concurrency uint8
	BlockCount  uint32

	// Compression starts as ProbeCompression until the compression
	// probe (integrity.Probe) resolves it to On or Off. It is read
	// through CompressionState() so the resolution is visible to every
	// worker goroutine without a data race.
	compression atomic.Int32

	// SessionID is an 8-byte token, random unless set with
	// WithSessionID, filled in by New on whichever peer builds the
	// Plan. It is not carried in any wire message and is not logged, so
	// the Sender's and Receiver's values are independent.
	SessionID [8]byte
}

// Compression is the session's compression disposition.
type Compression int32

const (
	// ProbeCompression means the probe has not yet run.
	ProbeCompression Compression = iota
	// CompressionOn means the probe enabled compression for the session.
	CompressionOn
	// CompressionOff means the probe left compression disabled.
	CompressionOff
)

// Option configures a Plan at construction time.
type Option func(*Plan)

// WithBlockSize overrides the default block size.
func WithBlockSize(size uint32) Option {
	return func(p *Plan) { p.BlockSize = size }
}

// WithConcurrency overrides the default worker concurrency.
func WithConcurrency(n uint8) Option {
	return func(p *Plan) { p.Concurrency = n }
}

// WithHash sets the whole-file BLAKE3 digest.
func WithHash(hash [32]byte) Option {
	return func(p *Plan) { p.Hash = hash }
}

// WithSessionID sets an explicit session id, overriding the random
// default. Used by tests that need deterministic log correlation.
func WithSessionID(id [8]byte) Option {
	return func(p *Plan) { p.SessionID = id }
}

// New builds a Plan for a file of the given name and length, applying
// defaults from the limits package and then any overrides. It validates
// every field against policy before returning.
func New(name string, length uint64, opts ...Option) (*Plan, error) {
	p := &Plan{
		Name:        name,
		Length:      length,
		BlockSize:   limits.DefaultBlockSize,
		Concurrency: 4,
	}
	for _, opt := range opts {
		opt(p)
	}
	if p.SessionID == ([8]byte{}) {
		_, _ = rand.Read(p.SessionID[:])
	}
	if err := Validate(name, length, p.BlockSize, p.Concurrency); err != nil {
		return nil, err
	}
	p.BlockCount = BlockCount(length, p.BlockSize)
	p.compression.Store(int32(ProbeCompression))
	return p, nil
}

// CompressionState returns the session's current compression disposition.
func (p *Plan) CompressionState() Compression {
	return Compression(p.compression.Load())
}

// ResolveCompression stores the probe's outcome. It is idempotent: once
// resolved, further calls are no-ops, since the probe runs exactly once
// per session on block 0.
func (p *Plan) ResolveCompression(on bool) {
	want := int32(CompressionOff)
	if on {
		want = int32(CompressionOn)
	}
	p.compression.CompareAndSwap(int32(ProbeCompression), want)
}

// BlockCount returns ceil(length / blockSize), the number of blocks a
// file of the given length is partitioned into.
func BlockCount(length uint64, blockSize uint32) uint32 {
	if length == 0 {
		return 0
	}
	bs := uint64(blockSize)
	return uint32((length + bs - 1) / bs)
}

// BlockRange returns the half-open byte range [start, end) a block
// sequence number addresses within a file of the plan's length.
func (p *Plan) BlockRange(seq uint32) (start, end uint64) {
	start = uint64(seq) * uint64(p.BlockSize)
	end = start + uint64(p.BlockSize)
	if end > p.Length {
		end = p.Length
	}
	return start, end
}

// BlockLen returns the nominal (pre-compression) length of a block.
func (p *Plan) BlockLen(seq uint32) uint32 {
	start, end := p.BlockRange(seq)
	return uint32(end - start)
}

// Validate checks handshake-time policy constraints: no path separators
// in the name, length within the 16 GiB ceiling, block size and
// concurrency within their ranges. A Validate failure is always a
// xfererr.KindPolicy error at the call site; this function returns the
// plain sentinel so callers can wrap it with context.
func Validate(name string, length uint64, blockSize uint32, concurrency uint8) error {
	if err := ValidateName(name); err != nil {
		return err
	}
	if err := limits.ValidateTotalLength(length); err != nil {
		return err
	}
	if err := limits.ValidateBlockSize(blockSize); err != nil {
		return err
	}
	if err := limits.ValidateConcurrency(concurrency); err != nil {
		return err
	}
	return nil
}

// ErrNameHasPathSeparator indicates a HelloV1.name contains a '/' or
// '\\', which the filename policy forbids. ValidateName also returns it
// for an empty name.
var ErrNameHasPathSeparator = fmt.Errorf("file name contains a path separator")

// ValidateName rejects any name containing a path separator, per spec
// §4.2's "name has no path separators" handshake check.
func ValidateName(name string) error {
	if name == "" {
		return fmt.Errorf("%w: empty name", ErrNameHasPathSeparator)
	}
	for _, r := range name {
		if r == '/' || r == '\\' {
			return fmt.Errorf("%w: %q", ErrNameHasPathSeparator, name)
		}
	}
	return nil
}
