package integrity

import (
	"context"
	"fmt"
	"io"

	"github.com/sirupsen/logrus"
	"github.com/zeebo/blake3"
)

// chunkGroupBytes is BLAKE3's internal chunk group size. Stripe
// boundaries are aligned to it (except the final stripe) so that, if a
// future blake3 release exposes tree-combination primitives, the
// stripe split remains a legal merge point without code changes here.
const chunkGroupBytes = 1024

// readChunkBytes bounds the memory a single stripe worker holds live:
// concurrency workers each buffer at most one chunk at a time.
const readChunkBytes = 256 * 1024

// stripeChunk is one unit of data (or error) emitted by a stripe worker.
type stripeChunk struct {
	data []byte
	err  error
}

// HashFile computes the whole-file BLAKE3 digest of the first length
// bytes readable via r, using concurrency goroutines to perform the
// positional reads. The goroutines' output is fed into one sequential
// *blake3.Hasher through an ordered fan-in, so the result is always
// bit-for-bit identical to hashing the file strictly sequentially; the
// concurrency only overlaps disk I/O latency across stripes, per
// SPEC_FULL.md §4.5.1.
func HashFile(ctx context.Context, r io.ReaderAt, length uint64, concurrency int) ([32]byte, error) {
	var out [32]byte
	if concurrency < 1 {
		concurrency = 1
	}
	bounds := stripeBoundaries(length, concurrency)
	hasher := blake3.New()

	channels := make([]chan stripeChunk, concurrency)
	for i := range channels {
		channels[i] = make(chan stripeChunk, 2)
	}

	for i := 0; i < concurrency; i++ {
		i := i
		start, end := bounds[i], bounds[i+1]
		go readStripe(ctx, r, start, end, channels[i])
	}

	logrus.WithFields(logrus.Fields{
		"function":    "HashFile",
		"length":      length,
		"concurrency": concurrency,
		"stripes":     concurrency,
	}).Debug("hashing file with parallel stripe I/O fan-in")

	for i := 0; i < concurrency; i++ {
		for chunk := range channels[i] {
			if chunk.err != nil {
				drainRemaining(channels[i+1:])
				return out, fmt.Errorf("integrity: stripe %d: %w", i, chunk.err)
			}
			if _, err := hasher.Write(chunk.data); err != nil {
				drainRemaining(channels[i+1:])
				return out, fmt.Errorf("integrity: hasher write: %w", err)
			}
		}
	}

	sum := hasher.Sum(nil)
	copy(out[:], sum)
	return out, nil
}

// readStripe sequentially reads [start, end) via positional reads and
// emits fixed-size chunks on ch, closing it when done or on first error.
func readStripe(ctx context.Context, r io.ReaderAt, start, end uint64, ch chan<- stripeChunk) {
	defer close(ch)
	off := start
	for off < end {
		select {
		case <-ctx.Done():
			ch <- stripeChunk{err: ctx.Err()}
			return
		default:
		}
		n := end - off
		if n > readChunkBytes {
			n = readChunkBytes
		}
		buf := make([]byte, n)
		if _, err := r.ReadAt(buf, int64(off)); err != nil && err != io.EOF {
			ch <- stripeChunk{err: err}
			return
		}
		ch <- stripeChunk{data: buf}
		off += n
	}
}

// drainRemaining unblocks stripe goroutines whose output we stop
// consuming after an earlier stripe fails, so they don't leak.
func drainRemaining(chans []chan stripeChunk) {
	for _, ch := range chans {
		go func(c chan stripeChunk) {
			for range c {
			}
		}(ch)
	}
}

// stripeBoundaries splits [0, length) into n stripes whose internal
// boundaries are aligned to chunkGroupBytes, except the final boundary
// which is always exactly length.
func stripeBoundaries(length uint64, n int) []uint64 {
	bounds := make([]uint64, n+1)
	if length == 0 {
		return bounds
	}
	raw := length / uint64(n)
	raw -= raw % chunkGroupBytes
	if raw == 0 {
		raw = chunkGroupBytes
	}
	for i := 0; i < n; i++ {
		b := uint64(i) * raw
		if b > length {
			b = length
		}
		bounds[i] = b
	}
	bounds[n] = length
	return bounds
}
