// Package orderedset generates and recognizes the control sequences on the
// symbol stream: skip sets for clock compensation and the TS1/TS2 training
// sequences.
package orderedset

import "github.com/mithro/litepcie-go/internal/symbol"

// Kind is the kind of an ordered set.
type Kind uint8

const (
	// KindSkip is the 4-symbol clock compensation set.
	KindSkip Kind = iota
	// KindTS1 is the first training sequence.
	KindTS1
	// KindTS2 is the second training sequence.
	KindTS2
)

func (k Kind) String() string {
	switch k {
	case KindSkip:
		return "SKP"
	case KindTS1:
		return "TS1"
	case KindTS2:
		return "TS2"
	default:
		return "unknown"
	}
}

const (
	// SkipLen is the length of a skip ordered set, in symbols.
	SkipLen = 4
	// TSLen is the length of a training sequence, in symbols.
	TSLen = 16
)

// The identifier symbol positions checked to tell TS1 from TS2.
const (
	tsIDFirst = 7
	tsIDLast  = 10
)

// A TS holds the payload fields of a training sequence.
type TS struct {
	Link byte // link number
	Lane byte // lane number
	NFTS byte // fast training sequence count
	Rate byte // rate identifier
	Ctrl byte // training control
}

func appendTS(b []symbol.Symbol, ts TS, id byte) []symbol.Symbol {
	b = append(b,
		symbol.K(symbol.COM),
		symbol.Data(ts.Link),
		symbol.Data(ts.Lane),
		symbol.Data(ts.NFTS),
		symbol.Data(ts.Rate),
		symbol.Data(ts.Ctrl),
	)
	for i := 6; i < TSLen; i++ {
		b = append(b, symbol.Data(id))
	}
	return b
}

func appendSkip(b []symbol.Symbol) []symbol.Symbol {
	b = append(b, symbol.K(symbol.COM))
	for i := 1; i < SkipLen; i++ {
		b = append(b, symbol.K(symbol.SKP))
	}
	return b
}
