package integrity

import "hash/crc32"

// crcTable is the IEEE 802.3 reflected polynomial table. Go's stdlib
// crc32.IEEETable already implements the exact polynomial, reflection,
// and init/xorout of 0xFFFFFFFF the spec mandates; there is no
// third-party codec in the pack that improves on it, so this is the
// one deliberately-stdlib integrity primitive (see DESIGN.md).
var crcTable = crc32.MakeTable(crc32.IEEE)

// CRC32 computes the per-block checksum over the bytes actually
// transmitted on the wire (i.e. after compression, if applied).
func CRC32(data []byte) uint32 {
	return crc32.Checksum(data, crcTable)
}
