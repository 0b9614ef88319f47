package framing

import (
	"errors"

	"github.com/mithro/litepcie-go/internal/orderedset"
	"github.com/mithro/litepcie-go/internal/protocol"
	"github.com/mithro/litepcie-go/internal/symbol"
)

// A Frame is a complete, well-delimited data link packet, before any
// sequence number or CRC validation.
type Frame struct {
	Kind protocol.PacketKind
	Raw  []byte
}

var (
	// ErrEndWithError reports a frame terminated with EDB. The frame is
	// discarded; the sender poisoned it on purpose.
	ErrEndWithError = errors.New("frame ended with EDB")
	// ErrUnexpectedSymbol reports a control symbol that is not valid in the
	// current receive state. The frame in flight, if any, is discarded.
	ErrUnexpectedSymbol = errors.New("unexpected control symbol")
	// ErrFrameTooLong reports a frame exceeding MaxFrameLen.
	ErrFrameTooLong = errors.New("frame too long")
	// ErrDecodeError reports a symbol the physical layer could not decode.
	ErrDecodeError = errors.New("symbol decode error")
)

type depacketizerState uint8

const (
	stateIdle depacketizerState = iota
	stateAccumulating
)

// The Depacketizer reassembles frames from the receive symbol stream.
// While idle it offers symbols to the ordered set detector, so skip and
// training sequence detection runs concurrently with idle periods; ordered
// set symbols are never surfaced as frame bytes.
type Depacketizer struct {
	detector *orderedset.Detector

	state depacketizerState
	kind  protocol.PacketKind
	buf   []byte
}

// NewDepacketizer creates a Depacketizer feeding ordered sets to detector.
func NewDepacketizer(detector *orderedset.Detector) *Depacketizer {
	return &Depacketizer{
		detector: detector,
		buf:      make([]byte, 0, 256),
	}
}

// Feed consumes one received symbol. It returns a complete frame when the
// symbol was a normal end marker, and a recoverable error for anything
// malformed. Exactly one of the return values is ever set.
func (d *Depacketizer) Feed(s symbol.Symbol, decodeErr bool) (*Frame, error) {
	if decodeErr {
		return nil, d.abort(ErrDecodeError)
	}
	if d.detector.Collecting() {
		d.detector.Feed(s)
		return nil, nil
	}

	switch d.state {
	case stateIdle:
		return nil, d.feedIdle(s)
	case stateAccumulating:
		return d.feedAccumulating(s)
	default:
		panic("BUG: framing: invalid depacketizer state")
	}
}

func (d *Depacketizer) feedIdle(s symbol.Symbol) error {
	if !s.Control {
		// logical idle
		return nil
	}
	switch s.Value {
	case symbol.COM:
		d.detector.Feed(s)
		return nil
	case symbol.STP:
		d.begin(protocol.PacketKindData)
		return nil
	case symbol.SDP:
		d.begin(protocol.PacketKindDLLP)
		return nil
	default:
		return ErrUnexpectedSymbol
	}
}

func (d *Depacketizer) feedAccumulating(s symbol.Symbol) (*Frame, error) {
	if !s.Control {
		if len(d.buf) >= MaxFrameLen {
			return nil, d.abort(ErrFrameTooLong)
		}
		d.buf = append(d.buf, s.Value)
		return nil, nil
	}
	switch s.Value {
	case symbol.END:
		frame := &Frame{Kind: d.kind, Raw: append([]byte{}, d.buf...)}
		d.reset()
		return frame, nil
	case symbol.EDB:
		return nil, d.abort(ErrEndWithError)
	case symbol.COM:
		// an ordered set may interrupt a frame; it is consumed by the
		// detector and accumulation resumes afterwards
		d.detector.Feed(s)
		return nil, nil
	default:
		return nil, d.abort(ErrUnexpectedSymbol)
	}
}

func (d *Depacketizer) begin(kind protocol.PacketKind) {
	d.state = stateAccumulating
	d.kind = kind
	d.buf = d.buf[:0]
}

// abort discards any frame in flight and any partially collected ordered
// set, and passes the error through.
func (d *Depacketizer) abort(err error) error {
	d.reset()
	d.detector.Reset()
	return err
}

func (d *Depacketizer) reset() {
	d.state = stateIdle
	d.buf = d.buf[:0]
}

// Reset returns the depacketizer to idle, e.g. on electrical idle.
func (d *Depacketizer) Reset() {
	d.reset()
	d.detector.Reset()
}
