// Package logging defines a tracing interface for link events.
package logging

import (
	"github.com/mithro/litepcie-go/internal/ltssm"
	"github.com/mithro/litepcie-go/internal/orderedset"
	"github.com/mithro/litepcie-go/internal/protocol"
	"github.com/mithro/litepcie-go/internal/wire"
)

type (
	// A ByteCount in the link engine.
	ByteCount = protocol.ByteCount
	// A SequenceNumber is a 12-bit data link sequence number.
	SequenceNumber = protocol.SequenceNumber
	// The PacketKind distinguishes data packets from DLLPs.
	PacketKind = protocol.PacketKind
	// A State is an LTSSM state.
	State = ltssm.State
	// The OrderedSetKind of an ordered set (SKP, TS1, TS2).
	OrderedSetKind = orderedset.Kind
	// The DLLPType of a control packet (ACK, NAK).
	DLLPType = wire.DLLPType
)

// PacketDropReason is the reason a received packet was discarded.
type PacketDropReason uint8

const (
	// DropCRCError: the LCRC check failed.
	DropCRCError PacketDropReason = iota
	// DropHeaderParseError: the packet was too short or carried reserved bits.
	DropHeaderParseError
	// DropOutOfSequence: the sequence number was not the expected one.
	DropOutOfSequence
	// DropDLLPMalformed: a control packet failed validation.
	DropDLLPMalformed
	// DropLinkDown: a packet arrived while the link was not in L0.
	DropLinkDown
)

func (r PacketDropReason) String() string {
	switch r {
	case DropCRCError:
		return "crc_error"
	case DropHeaderParseError:
		return "header_parse_error"
	case DropOutOfSequence:
		return "out_of_sequence"
	case DropDLLPMalformed:
		return "dllp_malformed"
	case DropLinkDown:
		return "link_down"
	default:
		return "unknown"
	}
}

// A LinkTracer records events of a single link engine. All callbacks run on
// the engine's tick loop and must not block.
type LinkTracer interface {
	// StateTransition is called for every LTSSM transition.
	StateTransition(from, to State)
	// LinkDeclaredDown is called when the replay budget is exhausted and
	// the data link layer hands control back to the LTSSM.
	LinkDeclaredDown()
	SentPacket(seq SequenceNumber, size ByteCount)
	ReceivedPacket(seq SequenceNumber, size ByteCount)
	DroppedPacket(kind PacketKind, size ByteCount, reason PacketDropReason)
	SentDLLP(typ DLLPType, seq SequenceNumber)
	ReceivedDLLP(typ DLLPType, seq SequenceNumber)
	// StartedReplay is called when a NAK or the replay timer starts a
	// replay of count buffered packets.
	StartedReplay(from SequenceNumber, count int)
	SentOrderedSet(kind OrderedSetKind)
	ReceivedOrderedSet(kind OrderedSetKind)
	// UnknownOrderedSet is called when a COM-led sequence matched neither
	// skip nor a training sequence.
	UnknownOrderedSet()
	// FramingError is called when the depacketizer discards symbols.
	FramingError()
	// Close is called when the link engine is closed.
	Close()
}
