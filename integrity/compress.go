package integrity

import (
	"bytes"
	"errors"
	"io"

	"github.com/klauspost/compress/flate"
	"github.com/sirupsen/logrus"

	"github.com/parcelxfer/parcel/limits"
)

// compressionLevel is chosen for speed over ratio: the probe exists to
// decide viability cheaply, and every subsequent block pays this cost
// per spec §4.5, so a fast level matters more than a tight one.
const compressionLevel = flate.BestSpeed

// Compress deflates data at compressionLevel.
func Compress(data []byte) ([]byte, error) {
	var buf bytes.Buffer
	w, err := flate.NewWriter(&buf, compressionLevel)
	if err != nil {
		return nil, err
	}
	if _, err := w.Write(data); err != nil {
		return nil, err
	}
	if err := w.Close(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// Decompress inflates data, refusing to grow past maxLen bytes so a
// hostile or corrupt peer can't exhaust memory via a decompression bomb.
func Decompress(data []byte, maxLen int) ([]byte, error) {
	r := flate.NewReader(bytes.NewReader(data))
	defer r.Close()
	limited := make([]byte, 0, maxLen)
	buf := make([]byte, 32*1024)
	for {
		n, err := r.Read(buf)
		if n > 0 {
			limited = append(limited, buf[:n]...)
			if len(limited) > maxLen {
				return nil, limits.ErrMessageTooLarge
			}
		}
		if err != nil {
			if errors.Is(err, io.EOF) {
				break
			}
			return nil, err
		}
	}
	return limited, nil
}

// ProbeResult is the outcome of the one-shot compression probe run
// over block 0.
type ProbeResult struct {
	Compressed    []byte
	CompressedLen uint32
	RawLen        uint32
	Enable        bool
}

// Probe compresses block 0 and decides, per spec §4.5, whether the
// session enables compression: compressed_len < raw_len * 0.95.
func Probe(block []byte) (*ProbeResult, error) {
	compressed, err := Compress(block)
	if err != nil {
		return nil, err
	}
	enable := float64(len(compressed)) < float64(len(block))*limits.CompressionProbeThreshold
	logrus.WithFields(logrus.Fields{
		"function":   "Probe",
		"raw_len":    len(block),
		"compressed": len(compressed),
		"enabled":    enable,
	}).Info("compression probe complete")
	return &ProbeResult{
		Compressed:    compressed,
		CompressedLen: uint32(len(compressed)),
		RawLen:        uint32(len(block)),
		Enable:        enable,
	}, nil
}
