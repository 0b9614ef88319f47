// Package wire implements the byte-level format of data link packets and
// DLLPs, between the framing symbols and the raw bytes.
package wire

import (
	"encoding/binary"
	"errors"
	"hash/crc32"

	"github.com/mithro/litepcie-go/internal/protocol"
)

// The LCRC polynomial is the standard IEEE polynomial (0x04C11DB7).
var lcrcTable = crc32.MakeTable(crc32.IEEE)

// PacketOverhead is the number of bytes the data link layer adds to a
// payload: a 2-byte sequence number and the 4-byte LCRC.
const PacketOverhead = 6

var (
	// ErrPacketTooShort is returned when a packet cannot even hold the
	// sequence number and the LCRC.
	ErrPacketTooShort = errors.New("packet too short")
	// ErrCRCMismatch is returned when the LCRC check fails.
	ErrCRCMismatch = errors.New("LCRC mismatch")
	// ErrReservedBitsSet is returned when the upper bits of the sequence
	// number field are not zero.
	ErrReservedBitsSet = errors.New("reserved sequence number bits set")
)

// AppendPacket appends a data link packet to b: the 12-bit sequence number
// in a 2-byte field, the payload, and the LCRC over both.
func AppendPacket(b []byte, seq protocol.SequenceNumber, payload []byte) []byte {
	start := len(b)
	b = binary.BigEndian.AppendUint16(b, uint16(seq)&0x0fff)
	b = append(b, payload...)
	crc := crc32.Checksum(b[start:], lcrcTable)
	return binary.BigEndian.AppendUint32(b, crc)
}

// ParsePacket validates the LCRC of a data link packet and splits it into
// sequence number and payload. The returned payload aliases b.
func ParsePacket(b []byte) (protocol.SequenceNumber, []byte, error) {
	if len(b) < PacketOverhead {
		return 0, nil, ErrPacketTooShort
	}
	body := b[:len(b)-4]
	crc := binary.BigEndian.Uint32(b[len(b)-4:])
	if crc32.Checksum(body, lcrcTable) != crc {
		return 0, nil, ErrCRCMismatch
	}
	seqField := binary.BigEndian.Uint16(body[:2])
	if seqField&0xf000 != 0 {
		return 0, nil, ErrReservedBitsSet
	}
	return protocol.SequenceNumber(seqField), body[2:], nil
}
