package wire

import (
	"bufio"
	"bytes"
	"errors"
	"testing"
)

func roundTrip(t *testing.T, msg Message) Message {
	payload, err := Encode(msg)
	if err != nil {
		t.Fatalf("Encode: %v", err)
	}
	decoded, err := Decode(payload)
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}
	return decoded
}

func TestHelloRoundTrip(t *testing.T) {
	hello := &HelloV1{
		Name:        "movie.mkv",
		Length:      123456789,
		Hash:        [32]byte{1, 2, 3},
		BlockSize:   1 << 20,
		Concurrency: 4,
	}
	got, ok := roundTrip(t, hello).(*HelloV1)
	if !ok {
		t.Fatalf("expected *HelloV1, got %T", got)
	}
	if *got != *hello {
		t.Errorf("round trip mismatch: got %+v, want %+v", got, hello)
	}
}

func TestAckRoundTripNoBitmap(t *testing.T) {
	ack := &AckV1{AcceptedConcurrency: 8}
	got, ok := roundTrip(t, ack).(*AckV1)
	if !ok {
		t.Fatalf("expected *AckV1, got %T", got)
	}
	if got.HasResumeBitmap || got.AcceptedConcurrency != 8 {
		t.Errorf("round trip mismatch: %+v", got)
	}
}

func TestAckRoundTripWithBitmap(t *testing.T) {
	ack := &AckV1{HasResumeBitmap: true, ResumeBitmap: []byte{0xFF, 0x0A}, AcceptedConcurrency: 2}
	got, ok := roundTrip(t, ack).(*AckV1)
	if !ok {
		t.Fatalf("expected *AckV1, got %T", got)
	}
	if !bytes.Equal(got.ResumeBitmap, ack.ResumeBitmap) || got.AcceptedConcurrency != 2 {
		t.Errorf("round trip mismatch: %+v", got)
	}
}

func TestDataRoundTripBorrowsBuffer(t *testing.T) {
	data := &DataV1{Sequence: 7, CRC32: 0xDEADBEEF, Compressed: true, Bytes: []byte("hello block")}
	payload, err := Encode(data)
	if err != nil {
		t.Fatalf("Encode: %v", err)
	}
	got, err := Decode(payload)
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}
	d, ok := got.(*DataV1)
	if !ok {
		t.Fatalf("expected *DataV1, got %T", got)
	}
	if d.Sequence != data.Sequence || d.CRC32 != data.CRC32 || d.Compressed != data.Compressed {
		t.Errorf("field mismatch: %+v", d)
	}
	if !bytes.Equal(d.Bytes, data.Bytes) {
		t.Errorf("bytes mismatch: got %q want %q", d.Bytes, data.Bytes)
	}
	// Verify the decoded bytes actually alias the payload buffer rather
	// than being a fresh copy, per the zero-copy contract.
	if len(d.Bytes) > 0 {
		marker := payload[len(payload)-1]
		payload[len(payload)-1] = marker ^ 0xFF
		if d.Bytes[len(d.Bytes)-1] == marker {
			t.Error("expected DataV1.Bytes to alias the decode buffer")
		}
	}
}

func TestErrRoundTrip(t *testing.T) {
	e := &ErrV1{Code: ErrCodeBusy, Msg: "transfer already in progress"}
	got, ok := roundTrip(t, e).(*ErrV1)
	if !ok {
		t.Fatalf("expected *ErrV1, got %T", got)
	}
	if *got != *e {
		t.Errorf("round trip mismatch: got %+v, want %+v", got, e)
	}
}

func TestCrcListRoundTrip(t *testing.T) {
	req := &CrcListV1{Sequences: []uint32{0, 1, 5, 9}}
	got, ok := roundTrip(t, req).(*CrcListV1)
	if !ok {
		t.Fatalf("expected *CrcListV1, got %T", got)
	}
	if len(got.Sequences) != len(req.Sequences) {
		t.Fatalf("length mismatch: %v vs %v", got.Sequences, req.Sequences)
	}
	for i := range req.Sequences {
		if got.Sequences[i] != req.Sequences[i] {
			t.Errorf("index %d: got %d want %d", i, got.Sequences[i], req.Sequences[i])
		}
	}
}

func TestDecodeRejectsTrailingBytes(t *testing.T) {
	payload, err := Encode(&RequestV1{Sequence: 1})
	if err != nil {
		t.Fatalf("Encode: %v", err)
	}
	payload = append(payload, 0xAA)
	if _, err := Decode(payload); !errors.Is(err, ErrDecodeFailed) {
		t.Errorf("expected ErrDecodeFailed, got %v", err)
	}
}

func TestDecodeRejectsUnknownTag(t *testing.T) {
	if _, err := Decode([]byte{0xFE}); !errors.Is(err, ErrDecodeFailed) {
		t.Errorf("expected ErrDecodeFailed, got %v", err)
	}
}

func TestDecodeRejectsEmptyPayload(t *testing.T) {
	if _, err := Decode(nil); !errors.Is(err, ErrDecodeFailed) {
		t.Errorf("expected ErrDecodeFailed, got %v", err)
	}
}

func TestFrameWriteReadRoundTrip(t *testing.T) {
	payload := []byte("arbitrary payload bytes")
	var buf bytes.Buffer
	if err := WriteFrame(&buf, payload); err != nil {
		t.Fatalf("WriteFrame: %v", err)
	}
	frame, err := ReadFrame(bufio.NewReader(&buf))
	if err != nil {
		t.Fatalf("ReadFrame: %v", err)
	}
	if frame.Version != Version1 {
		t.Errorf("expected version %d, got %d", Version1, frame.Version)
	}
	if !bytes.Equal(frame.Payload, payload) {
		t.Errorf("payload mismatch: got %q want %q", frame.Payload, payload)
	}
}

func TestReadFrameRejectsUnsupportedVersion(t *testing.T) {
	raw := "Ver: 99\r\nLen: 0\r\n\r\n"
	_, err := ReadFrame(bufio.NewReader(bytes.NewBufferString(raw)))
	if !errors.Is(err, ErrUnsupportedVersion) {
		t.Errorf("expected ErrUnsupportedVersion, got %v", err)
	}
}

func TestReadFrameRejectsUnknownHeader(t *testing.T) {
	raw := "Bogus: 1\r\nLen: 0\r\n\r\n"
	_, err := ReadFrame(bufio.NewReader(bytes.NewBufferString(raw)))
	if !errors.Is(err, ErrBadHeader) {
		t.Errorf("expected ErrBadHeader, got %v", err)
	}
}

func TestReadFrameRejectsOversizeLen(t *testing.T) {
	raw := "Ver: 1\r\nLen: 999999999\r\n\r\n"
	_, err := ReadFrame(bufio.NewReader(bytes.NewBufferString(raw)))
	if !errors.Is(err, ErrFrameTooLarge) {
		t.Errorf("expected ErrFrameTooLarge, got %v", err)
	}
}

func TestReadFrameRejectsShortPayload(t *testing.T) {
	raw := "Ver: 1\r\nLen: 10\r\n\r\nabc"
	_, err := ReadFrame(bufio.NewReader(bytes.NewBufferString(raw)))
	if !errors.Is(err, ErrShortRead) {
		t.Errorf("expected ErrShortRead, got %v", err)
	}
}

func TestHeaderWhitespaceTolerant(t *testing.T) {
	raw := "Ver:    1\r\nLen:   3\r\n\r\nabc"
	frame, err := ReadFrame(bufio.NewReader(bytes.NewBufferString(raw)))
	if err != nil {
		t.Fatalf("ReadFrame: %v", err)
	}
	if string(frame.Payload) != "abc" {
		t.Errorf("got %q", frame.Payload)
	}
}
