// Package protocol holds the types and constants shared by all layers of the
// link engine.
package protocol

import "fmt"

// A SequenceNumber is the 12-bit sequence number carried by every
// TLP-bearing data link packet. Arithmetic is modulo SequenceNumberSpace.
type SequenceNumber uint16

// SequenceNumberSpace is the size of the sequence number space.
const SequenceNumberSpace = 1 << 12

// InvalidSequenceNumber is a value outside the 12-bit space.
// It is used before any sequence number has been assigned or acknowledged.
const InvalidSequenceNumber SequenceNumber = 0xffff

// Next returns the sequence number following s.
func (s SequenceNumber) Next() SequenceNumber {
	return (s + 1) % SequenceNumberSpace
}

// Distance returns the number of steps from s to t, going forward.
// Distance(s, s) == 0 and Distance(s, s.Next()) == 1.
func (s SequenceNumber) Distance(t SequenceNumber) uint16 {
	return uint16(t-s) % SequenceNumberSpace
}

// InWindow reports whether s lies in the half-open window (base, base+size].
// It is how cumulative ACK comparisons are done in the wrapping space.
func (s SequenceNumber) InWindow(base SequenceNumber, size uint16) bool {
	d := base.Distance(s)
	return d >= 1 && d <= size
}

func (s SequenceNumber) String() string {
	if s == InvalidSequenceNumber {
		return "invalid"
	}
	return fmt.Sprintf("%d", uint16(s))
}

// A ByteCount in the link engine.
type ByteCount int64

// The kinds of data link packets on the wire, distinguished by their framing
// start symbol.
type PacketKind uint8

const (
	// PacketKindData carries an opaque transaction layer packet.
	PacketKindData PacketKind = iota
	// PacketKindDLLP is a short data link layer control packet (ACK / NAK).
	PacketKindDLLP
)

func (k PacketKind) String() string {
	switch k {
	case PacketKindData:
		return "data"
	case PacketKindDLLP:
		return "dllp"
	default:
		return "unknown"
	}
}

const (
	// DefaultSkipIntervalMin is the smallest number of symbols between two
	// skip ordered sets.
	DefaultSkipIntervalMin = 1180
	// DefaultSkipIntervalMax is the largest number of symbols between two
	// skip ordered sets.
	DefaultSkipIntervalMax = 1538
	// DefaultRetryBufferCapacity is the retry buffer capacity in raw packet bytes.
	DefaultRetryBufferCapacity ByteCount = 4096
	// DefaultAckDelayTicks is how long the receiver accumulates before
	// sending a cumulative ACK.
	DefaultAckDelayTicks = 16
	// DefaultAckTimeoutTicks is the replay timer: how long the oldest
	// unacknowledged packet may sit in the retry buffer before it is replayed.
	DefaultAckTimeoutTicks = 1024
	// DefaultMaxRetryCount is the number of replays before the link is
	// declared down.
	DefaultMaxRetryCount = 4
	// MaxPacketPayloadSize bounds a single transaction layer payload.
	MaxPacketPayloadSize ByteCount = 2048
)
