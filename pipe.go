package litepcie

import "github.com/mithro/litepcie-go/internal/symbol"

// A Symbol is one 8-bit unit on the link, tagged data or control.
type Symbol = symbol.Symbol

// TxBus is what the engine drives onto the PIPE boundary on one link tick.
type TxBus struct {
	Symbol Symbol
	// ElecIdle requests transmitter electrical idle. While asserted, the
	// Symbol field is meaningless.
	ElecIdle bool
	// RateSelect is the coarse rate control value for the physical layer.
	RateSelect uint8
}

// RxBus is what the physical layer presents to the engine on one link tick.
type RxBus struct {
	Symbol Symbol
	// ElecIdle says if electrical idle is detected on the inbound lane.
	// While asserted, the Symbol field is meaningless.
	ElecIdle bool
	// Detected says if a receiver is present on the other end of the lane.
	Detected bool
	// DecodeErr flags a symbol the physical layer could not decode.
	DecodeErr bool
}
