package wire

import (
	"encoding/binary"
	"errors"
	"fmt"
	"hash/crc32"

	"github.com/mithro/litepcie-go/internal/protocol"
)

// DLLPType identifies a data link layer control packet.
type DLLPType uint8

const (
	// DLLPAck acknowledges all packets up to and including the carried
	// sequence number.
	DLLPAck DLLPType = 0x00
	// DLLPNak rejects everything after the carried sequence number and
	// requests a replay.
	DLLPNak DLLPType = 0x10
)

func (t DLLPType) String() string {
	switch t {
	case DLLPAck:
		return "ACK"
	case DLLPNak:
		return "NAK"
	default:
		return fmt.Sprintf("unknown (0x%x)", uint8(t))
	}
}

// A DLLP is a short fixed-size control packet. It carries no sequence
// number of its own and is never retried: a lost ACK is repaired by the
// next one, a lost NAK by the replay timer.
type DLLP struct {
	Type DLLPType
	// Seq is the cumulative acknowledged sequence number.
	Seq protocol.SequenceNumber
}

// DLLPLen is the wire size of a DLLP: type, reserved, 12-bit sequence
// number in a 2-byte field, and a CRC over those four bytes.
const DLLPLen = 8

var (
	// ErrDLLPLength is returned when a control packet is not exactly DLLPLen bytes.
	ErrDLLPLength = errors.New("invalid DLLP length")
	// ErrDLLPType is returned for an unknown DLLP type field.
	ErrDLLPType = errors.New("unknown DLLP type")
)

// Append appends the wire encoding of the DLLP to b.
func (d *DLLP) Append(b []byte) []byte {
	start := len(b)
	b = append(b, uint8(d.Type), 0)
	b = binary.BigEndian.AppendUint16(b, uint16(d.Seq)&0x0fff)
	crc := crc32.Checksum(b[start:], lcrcTable)
	return binary.BigEndian.AppendUint32(b, crc)
}

// ParseDLLP parses and validates a control packet.
func ParseDLLP(b []byte) (*DLLP, error) {
	if len(b) != DLLPLen {
		return nil, ErrDLLPLength
	}
	crc := binary.BigEndian.Uint32(b[4:])
	if crc32.Checksum(b[:4], lcrcTable) != crc {
		return nil, ErrCRCMismatch
	}
	typ := DLLPType(b[0])
	if typ != DLLPAck && typ != DLLPNak {
		return nil, ErrDLLPType
	}
	seqField := binary.BigEndian.Uint16(b[2:4])
	if seqField&0xf000 != 0 {
		return nil, ErrReservedBitsSet
	}
	return &DLLP{Type: typ, Seq: protocol.SequenceNumber(seqField)}, nil
}
