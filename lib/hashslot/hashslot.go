// Package hashslot implements the server's slot-hashing scheme: CRC16
// over the CCITT/XMODEM polynomial, reduced mod 16384. It has to match
// the server bit-for-bit since it is part of the wire contract, not an
// implementation choice — see the golden vectors in hashslot_test.go.
package hashslot

const (
	poly = 0x1021
	// NumSlots is the number of slots the server scheme partitions the
	// keyspace into.
	NumSlots = 16384
)

// crc16 computes CRC16/XMODEM (poly 0x1021, init 0, no input/output
// reflection, no final xor) over data.
func crc16(data []byte) uint16 {
	var crc uint16
	for _, b := range data {
		crc ^= uint16(b) << 8
		for i := 0; i < 8; i++ {
			if crc&0x8000 != 0 {
				crc = (crc << 1) ^ poly
			} else {
				crc <<= 1
			}
		}
	}
	return crc
}

// Slot returns the 14-bit slot number for key, in [0, NumSlots).
func Slot(key []byte) uint16 {
	return crc16(key) % NumSlots
}
