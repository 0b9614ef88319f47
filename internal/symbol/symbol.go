// Package symbol implements the 8-bit symbol abstraction at the PIPE
// boundary. A symbol is one byte on the link, tagged as ordinary data or as
// one of the reserved 8b/10b control characters (K-characters).
package symbol

// A Symbol is one 8-bit unit on the link.
type Symbol struct {
	Value   byte
	Control bool
}

// The K-character assignments used by the link layer. The values are the
// PCI Express 8b/10b control codes and must not be changed: the PIPE
// boundary is bit-exact.
const (
	COM byte = 0xbc // K28.5, ordered set alignment
	SKP byte = 0x1c // K28.0, skip
	STP byte = 0xfb // K27.7, start of transaction layer packet
	SDP byte = 0x5c // K28.2, start of data link layer packet
	END byte = 0xfd // K29.7, end
	EDB byte = 0xfe // K30.7, end bad (poisoned)
	PAD byte = 0xf7 // K23.7, pad
)

// Identifier symbols distinguishing the two training sequences. These are
// data characters (D10.2 and D5.2).
const (
	TS1ID byte = 0x4a
	TS2ID byte = 0x45
)

// Data returns v as an ordinary data symbol.
func Data(v byte) Symbol { return Symbol{Value: v} }

// K returns v as a control symbol.
func K(v byte) Symbol { return Symbol{Value: v, Control: true} }

// Idle is the symbol transmitted when the link has nothing to say.
var Idle = Data(0x00)

// Encode converts a byte and its control flag into a Symbol. The running
// disparity bookkeeping of a real 8b/10b encoder lives below the PIPE
// boundary and is not modeled here.
func Encode(v byte, isControl bool) Symbol {
	return Symbol{Value: v, Control: isControl}
}

// Decode converts a Symbol back into a byte and its control flag. A symbol
// that the physical layer flagged as undecodable is reported through the
// per-symbol decode error flag on the receive path, not here.
func Decode(s Symbol) (byte, bool) {
	return s.Value, s.Control
}

// IsK reports whether s is the control symbol with value v.
func (s Symbol) IsK(v byte) bool { return s.Control && s.Value == v }

func (s Symbol) String() string {
	if !s.Control {
		return "D." + hexByte(s.Value)
	}
	switch s.Value {
	case COM:
		return "COM"
	case SKP:
		return "SKP"
	case STP:
		return "STP"
	case SDP:
		return "SDP"
	case END:
		return "END"
	case EDB:
		return "EDB"
	case PAD:
		return "PAD"
	default:
		return "K." + hexByte(s.Value)
	}
}

func hexByte(v byte) string {
	const digits = "0123456789abcdef"
	return string([]byte{digits[v>>4], digits[v&0xf]})
}
