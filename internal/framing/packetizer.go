// Package framing maps data link packets onto the symbol stream, between
// the start and end control symbols.
package framing

import (
	"github.com/mithro/litepcie-go/internal/protocol"
	"github.com/mithro/litepcie-go/internal/symbol"
)

// MaxFrameLen bounds the raw byte length of a single frame. A receiver
// accumulating more than this is not looking at a real packet.
const MaxFrameLen = int(protocol.MaxPacketPayloadSize) + 64

// The Packetizer emits one frame at a time: a start control symbol (STP for
// data packets, SDP for DLLPs), the packet bytes as data symbols, and an
// end control symbol. Byte counting is exact: the frame length is defined
// entirely by the start and end markers.
type Packetizer struct {
	raw []byte
	// pos is -1 while the start symbol is pending, len(raw) when only the
	// end symbol is left.
	pos      int
	startSym byte
	endSym   byte
	active   bool
}

// NewPacketizer creates a Packetizer.
func NewPacketizer() *Packetizer {
	return &Packetizer{}
}

// Active says if a frame is being emitted.
func (p *Packetizer) Active() bool { return p.active }

// StartFrame begins emitting a frame. It must not be called while a frame
// is in flight.
func (p *Packetizer) StartFrame(kind protocol.PacketKind, raw []byte) {
	if p.active {
		panic("BUG: framing: StartFrame while a frame is in flight")
	}
	p.raw = raw
	p.pos = -1
	p.endSym = symbol.END
	p.active = true
	switch kind {
	case protocol.PacketKindData:
		p.startSym = symbol.STP
	case protocol.PacketKindDLLP:
		p.startSym = symbol.SDP
	default:
		panic("BUG: framing: unknown packet kind")
	}
}

// Poison marks the frame in flight as bad: it will be terminated with EDB
// instead of END, and the receiver will discard it.
func (p *Packetizer) Poison() {
	if !p.active {
		panic("BUG: framing: Poison called with no frame in flight")
	}
	p.endSym = symbol.EDB
}

// NextSymbol returns the next symbol of the frame in flight.
func (p *Packetizer) NextSymbol() symbol.Symbol {
	if !p.active {
		panic("BUG: framing: NextSymbol called with no frame in flight")
	}
	switch {
	case p.pos == -1:
		p.pos++
		return symbol.K(p.startSym)
	case p.pos < len(p.raw):
		s := symbol.Data(p.raw[p.pos])
		p.pos++
		return s
	default:
		p.active = false
		p.raw = nil
		return symbol.K(p.endSym)
	}
}

// Reset aborts the frame in flight, e.g. when the link leaves L0.
func (p *Packetizer) Reset() {
	p.active = false
	p.raw = nil
}
