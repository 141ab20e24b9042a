package wire

import (
	"bytes"
	"encoding/binary"
	"fmt"
)

// Tag identifies a message variant within a frame payload.
type Tag byte

const (
	TagHello        Tag = 1
	TagAck          Tag = 2
	TagProbe        Tag = 3
	TagProbeReply   Tag = 4
	TagRequest      Tag = 5
	TagData         Tag = 6
	TagErr          Tag = 7
	TagCrcList      Tag = 8
	TagCrcListReply Tag = 9
)

// Message is implemented by every decodable payload variant.
type Message interface {
	Tag() Tag
}

// HelloV1 is sent by the Sender to the Receiver on the control channel.
type HelloV1 struct {
	Name        string
	Length      uint64
	Hash        [32]byte
	BlockSize   uint32
	Concurrency uint8
}

func (*HelloV1) Tag() Tag { return TagHello }

// AckV1 is the Receiver's reply on the control channel.
type AckV1 struct {
	HasResumeBitmap     bool
	ResumeBitmap        []byte
	AcceptedConcurrency uint8
}

func (*AckV1) Tag() Tag { return TagAck }

// ProbeV1 is sent once on the data channel to request the compression
// probe block.
type ProbeV1 struct {
	Sequence uint32
}

func (*ProbeV1) Tag() Tag { return TagProbe }

// ProbeReplyV1 reports the compressed and raw lengths of the probe block.
type ProbeReplyV1 struct {
	CompressedLen uint32
	RawLen        uint32
}

func (*ProbeReplyV1) Tag() Tag { return TagProbeReply }

// RequestV1 asks a Sender worker for a block by sequence number.
type RequestV1 struct {
	Sequence uint32
}

func (*RequestV1) Tag() Tag { return TagRequest }

// DataV1 carries a block payload with its checksum. Bytes borrows
// directly from the buffer passed to Decode; it must not be retained
// past that buffer's lifetime without copying.
type DataV1 struct {
	Sequence   uint32
	CRC32      uint32
	Compressed bool
	Bytes      []byte
}

func (*DataV1) Tag() Tag { return TagData }

// ErrV1 reports a non-fatal error a responder wants the requester to observe.
type ErrV1 struct {
	Code uint16
	Msg  string
}

func (*ErrV1) Tag() Tag { return TagErr }

// Error codes carried in ErrV1.Code.
const (
	ErrCodeBusy          uint16 = 1
	ErrCodeSourceChanged uint16 = 2
	ErrCodeRejected      uint16 = 3
)

// CrcListV1 requests the Sender's independently known CRC32 for a set
// of on-disk blocks the Receiver believes it already has, resolving
// the resume-trust open question: the Receiver never trusts its own
// disk content without this confirmation.
type CrcListV1 struct {
	Sequences []uint32
}

func (*CrcListV1) Tag() Tag { return TagCrcList }

// CrcListReplyV1 answers CrcListV1 with the Sender's CRC32 for each
// requested sequence, in the same order.
type CrcListReplyV1 struct {
	Crcs []uint32
}

func (*CrcListReplyV1) Tag() Tag { return TagCrcListReply }

// Encode serializes a message into a frame payload.
func Encode(msg Message) ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte(byte(msg.Tag()))

	switch m := msg.(type) {
	case *HelloV1:
		writeString(&buf, m.Name)
		writeUint64(&buf, m.Length)
		buf.Write(m.Hash[:])
		writeUint32(&buf, m.BlockSize)
		buf.WriteByte(m.Concurrency)
	case *AckV1:
		if m.HasResumeBitmap {
			buf.WriteByte(1)
			writeBytes(&buf, m.ResumeBitmap)
		} else {
			buf.WriteByte(0)
		}
		buf.WriteByte(m.AcceptedConcurrency)
	case *ProbeV1:
		writeUint32(&buf, m.Sequence)
	case *ProbeReplyV1:
		writeUint32(&buf, m.CompressedLen)
		writeUint32(&buf, m.RawLen)
	case *RequestV1:
		writeUint32(&buf, m.Sequence)
	case *DataV1:
		writeUint32(&buf, m.Sequence)
		writeUint32(&buf, m.CRC32)
		if m.Compressed {
			buf.WriteByte(1)
		} else {
			buf.WriteByte(0)
		}
		writeBytes(&buf, m.Bytes)
	case *ErrV1:
		writeUint16(&buf, m.Code)
		writeString(&buf, m.Msg)
	case *CrcListV1:
		writeUint32Slice(&buf, m.Sequences)
	case *CrcListReplyV1:
		writeUint32Slice(&buf, m.Crcs)
	default:
		return nil, fmt.Errorf("%w: unknown message type %T", ErrDecodeFailed, msg)
	}
	return buf.Bytes(), nil
}

// Decode parses a frame payload into its concrete message type.
// DataV1.Bytes aliases buf directly; buf must not be mutated or
// returned to a pool while the decoded message is in use.
func Decode(buf []byte) (Message, error) {
	if len(buf) < 1 {
		return nil, fmt.Errorf("%w: empty payload", ErrDecodeFailed)
	}
	d := &decoder{buf: buf, off: 1}
	tag := Tag(buf[0])

	var msg Message
	var err error
	switch tag {
	case TagHello:
		msg, err = decodeHello(d)
	case TagAck:
		msg, err = decodeAck(d)
	case TagProbe:
		msg, err = decodeProbe(d)
	case TagProbeReply:
		msg, err = decodeProbeReply(d)
	case TagRequest:
		msg, err = decodeRequest(d)
	case TagData:
		msg, err = decodeData(d)
	case TagErr:
		msg, err = decodeErr(d)
	case TagCrcList:
		msg, err = decodeCrcList(d)
	case TagCrcListReply:
		msg, err = decodeCrcListReply(d)
	default:
		return nil, fmt.Errorf("%w: unknown tag %d", ErrDecodeFailed, tag)
	}
	if err != nil {
		return nil, err
	}
	if !d.exhausted() {
		return nil, fmt.Errorf("%w: %d trailing bytes", ErrDecodeFailed, len(d.buf)-d.off)
	}
	return msg, nil
}

func decodeHello(d *decoder) (*HelloV1, error) {
	name, err := d.readString()
	if err != nil {
		return nil, err
	}
	length, err := d.readUint64()
	if err != nil {
		return nil, err
	}
	var hash [32]byte
	if err := d.readFixed(hash[:]); err != nil {
		return nil, err
	}
	blockSize, err := d.readUint32()
	if err != nil {
		return nil, err
	}
	concurrency, err := d.readByte()
	if err != nil {
		return nil, err
	}
	return &HelloV1{Name: name, Length: length, Hash: hash, BlockSize: blockSize, Concurrency: concurrency}, nil
}

func decodeAck(d *decoder) (*AckV1, error) {
	has, err := d.readByte()
	if err != nil {
		return nil, err
	}
	ack := &AckV1{HasResumeBitmap: has != 0}
	if ack.HasResumeBitmap {
		bm, err := d.readBytes()
		if err != nil {
			return nil, err
		}
		ack.ResumeBitmap = bm
	}
	concurrency, err := d.readByte()
	if err != nil {
		return nil, err
	}
	ack.AcceptedConcurrency = concurrency
	return ack, nil
}

func decodeProbe(d *decoder) (*ProbeV1, error) {
	seq, err := d.readUint32()
	if err != nil {
		return nil, err
	}
	return &ProbeV1{Sequence: seq}, nil
}

func decodeProbeReply(d *decoder) (*ProbeReplyV1, error) {
	compressed, err := d.readUint32()
	if err != nil {
		return nil, err
	}
	raw, err := d.readUint32()
	if err != nil {
		return nil, err
	}
	return &ProbeReplyV1{CompressedLen: compressed, RawLen: raw}, nil
}

func decodeRequest(d *decoder) (*RequestV1, error) {
	seq, err := d.readUint32()
	if err != nil {
		return nil, err
	}
	return &RequestV1{Sequence: seq}, nil
}

func decodeData(d *decoder) (*DataV1, error) {
	seq, err := d.readUint32()
	if err != nil {
		return nil, err
	}
	crc, err := d.readUint32()
	if err != nil {
		return nil, err
	}
	compressedByte, err := d.readByte()
	if err != nil {
		return nil, err
	}
	data, err := d.readBytesNoCopy()
	if err != nil {
		return nil, err
	}
	return &DataV1{Sequence: seq, CRC32: crc, Compressed: compressedByte != 0, Bytes: data}, nil
}

func decodeErr(d *decoder) (*ErrV1, error) {
	code, err := d.readUint16()
	if err != nil {
		return nil, err
	}
	msg, err := d.readString()
	if err != nil {
		return nil, err
	}
	return &ErrV1{Code: code, Msg: msg}, nil
}

func decodeCrcList(d *decoder) (*CrcListV1, error) {
	seqs, err := d.readUint32Slice()
	if err != nil {
		return nil, err
	}
	return &CrcListV1{Sequences: seqs}, nil
}

func decodeCrcListReply(d *decoder) (*CrcListReplyV1, error) {
	crcs, err := d.readUint32Slice()
	if err != nil {
		return nil, err
	}
	return &CrcListReplyV1{Crcs: crcs}, nil
}

// --- encoding helpers ---

func writeUint16(buf *bytes.Buffer, v uint16) {
	var b [2]byte
	binary.LittleEndian.PutUint16(b[:], v)
	buf.Write(b[:])
}

func writeUint32(buf *bytes.Buffer, v uint32) {
	var b [4]byte
	binary.LittleEndian.PutUint32(b[:], v)
	buf.Write(b[:])
}

func writeUint64(buf *bytes.Buffer, v uint64) {
	var b [8]byte
	binary.LittleEndian.PutUint64(b[:], v)
	buf.Write(b[:])
}

func writeBytes(buf *bytes.Buffer, b []byte) {
	writeUint32(buf, uint32(len(b)))
	buf.Write(b)
}

func writeString(buf *bytes.Buffer, s string) {
	writeBytes(buf, []byte(s))
}

func writeUint32Slice(buf *bytes.Buffer, vals []uint32) {
	writeUint32(buf, uint32(len(vals)))
	for _, v := range vals {
		writeUint32(buf, v)
	}
}

// --- decoding ---

// decoder walks buf without copying; readBytesNoCopy returns sub-slices
// of buf directly, which is how DataV1.Bytes achieves borrowed decode.
type decoder struct {
	buf []byte
	off int
}

func (d *decoder) exhausted() bool {
	return d.off == len(d.buf)
}

func (d *decoder) need(n int) error {
	if d.off+n > len(d.buf) {
		return fmt.Errorf("%w: need %d bytes, have %d", ErrDecodeFailed, n, len(d.buf)-d.off)
	}
	return nil
}

func (d *decoder) readByte() (uint8, error) {
	if err := d.need(1); err != nil {
		return 0, err
	}
	v := d.buf[d.off]
	d.off++
	return v, nil
}

func (d *decoder) readUint16() (uint16, error) {
	if err := d.need(2); err != nil {
		return 0, err
	}
	v := binary.LittleEndian.Uint16(d.buf[d.off:])
	d.off += 2
	return v, nil
}

func (d *decoder) readUint32() (uint32, error) {
	if err := d.need(4); err != nil {
		return 0, err
	}
	v := binary.LittleEndian.Uint32(d.buf[d.off:])
	d.off += 4
	return v, nil
}

func (d *decoder) readUint64() (uint64, error) {
	if err := d.need(8); err != nil {
		return 0, err
	}
	v := binary.LittleEndian.Uint64(d.buf[d.off:])
	d.off += 8
	return v, nil
}

func (d *decoder) readFixed(dst []byte) error {
	if err := d.need(len(dst)); err != nil {
		return err
	}
	copy(dst, d.buf[d.off:d.off+len(dst)])
	d.off += len(dst)
	return nil
}

// readBytesNoCopy reads a length-prefixed byte array and returns a
// sub-slice of d.buf directly, without allocating or copying.
func (d *decoder) readBytesNoCopy() ([]byte, error) {
	n, err := d.readUint32()
	if err != nil {
		return nil, err
	}
	if err := d.need(int(n)); err != nil {
		return nil, err
	}
	b := d.buf[d.off : d.off+int(n)]
	d.off += int(n)
	return b, nil
}

// readBytes reads a length-prefixed byte array as a fresh copy. Used
// for the resume bitmap, which outlives the frame buffer in typical
// usage.
func (d *decoder) readBytes() ([]byte, error) {
	b, err := d.readBytesNoCopy()
	if err != nil {
		return nil, err
	}
	out := make([]byte, len(b))
	copy(out, b)
	return out, nil
}

// readString reads a length-prefixed UTF-8 string as a fresh copy.
func (d *decoder) readString() (string, error) {
	b, err := d.readBytesNoCopy()
	if err != nil {
		return "", err
	}
	return string(b), nil
}

// readUint32Slice reads a length-prefixed slice of little-endian uint32s.
func (d *decoder) readUint32Slice() ([]uint32, error) {
	n, err := d.readUint32()
	if err != nil {
		return nil, err
	}
	out := make([]uint32, n)
	for i := range out {
		v, err := d.readUint32()
		if err != nil {
			return nil, err
		}
		out[i] = v
	}
	return out, nil
}
