// Package ltssm implements the link training and status state machine. It
// owns the link state: nothing else mutates it, other components read it
// through accessors.
package ltssm

import (
	"github.com/mithro/litepcie-go/internal/orderedset"
	"github.com/mithro/litepcie-go/internal/utils"
)

// State is an LTSSM state.
type State uint8

const (
	// StateDetect waits for a link partner, with the transmitter in
	// electrical idle.
	StateDetect State = iota
	// StatePolling transmits TS1 until the partner answers with a training
	// sequence.
	StatePolling
	// StateConfiguration transmits TS2 until the partner confirms with TS2.
	StateConfiguration
	// StateL0 is the data-ready state. The link is up.
	StateL0
	// StateRecovery retrains after an error, transmitting TS1.
	StateRecovery
)

func (s State) String() string {
	switch s {
	case StateDetect:
		return "Detect"
	case StatePolling:
		return "Polling"
	case StateConfiguration:
		return "Configuration"
	case StateL0:
		return "L0"
	case StateRecovery:
		return "Recovery"
	default:
		return "invalid"
	}
}

// Input carries the receive-side observations for one tick.
type Input struct {
	// RxDetected says if the physical layer sees a link partner.
	RxDetected bool
	// RxElecIdle says if the inbound lane is electrically idle.
	RxElecIdle bool
	// TS1Seen and TS2Seen are the one-tick detection flags from the
	// ordered set detector.
	TS1Seen bool
	TS2Seen bool
	// TS holds the payload of a detected training sequence.
	TS orderedset.TS
}

// After entering L0, training sequences still in flight from the partner
// must not bounce the link straight back into Recovery. TS1 reception is
// ignored for this many ticks (a few full training sequences).
const l0HoldoffTicks = 64

// The Machine steps the LTSSM once per link tick.
type Machine struct {
	state   State
	linkUp  bool
	holdoff int

	local           orderedset.TS
	negotiatedRate  byte
	negotiatedWidth int

	logger utils.Logger
}

// New creates a Machine in Detect. local is the training sequence payload
// this side transmits.
func New(local orderedset.TS, logger utils.Logger) *Machine {
	return &Machine{
		state:  StateDetect,
		local:  local,
		logger: logger,
	}
}

// State returns the current state.
func (m *Machine) State() State { return m.state }

// LinkUp says if the link is trained and data may flow. It is true exactly
// in L0.
func (m *Machine) LinkUp() bool { return m.linkUp }

// TxElecIdle says if the transmitter should request electrical idle.
func (m *Machine) TxElecIdle() bool { return m.state == StateDetect }

// SendTS returns the training sequence to transmit this tick, if any.
// Training sequences take strict priority over all other transmit traffic.
func (m *Machine) SendTS() (orderedset.Kind, orderedset.TS, bool) {
	switch m.state {
	case StatePolling, StateRecovery:
		return orderedset.KindTS1, m.local, true
	case StateConfiguration:
		return orderedset.KindTS2, m.local, true
	default:
		return 0, orderedset.TS{}, false
	}
}

// NegotiatedRate returns the rate identifier recorded from the partner's
// training sequence, valid once the link has been up.
func (m *Machine) NegotiatedRate() byte { return m.negotiatedRate }

// NegotiatedWidth returns the trained link width in lanes.
func (m *Machine) NegotiatedWidth() int { return m.negotiatedWidth }

// Step advances the state machine by one tick.
func (m *Machine) Step(in Input) {
	switch m.state {
	case StateDetect:
		if in.RxDetected {
			m.transition(StatePolling)
		}
	case StatePolling:
		// Accepting TS2 as well avoids a deadlock when the partner has
		// already advanced to Configuration.
		if in.TS1Seen || in.TS2Seen {
			m.transition(StateConfiguration)
		}
	case StateConfiguration:
		if in.TS2Seen {
			m.negotiatedRate = in.TS.Rate
			m.negotiatedWidth = 1
			m.transition(StateL0)
		}
	case StateL0:
		if m.holdoff > 0 {
			m.holdoff--
		}
		if in.RxElecIdle {
			m.logger.Infof("unexpected electrical idle in L0")
			m.transition(StateRecovery)
		} else if in.TS1Seen && m.holdoff == 0 {
			// the partner has entered Recovery
			m.transition(StateRecovery)
		}
	case StateRecovery:
		// Rejoining through Configuration keeps retraining symmetric: the
		// partner may be coming from Detect and needs our TS2 to reach L0.
		if !in.RxElecIdle && (in.TS1Seen || in.TS2Seen) {
			m.transition(StateConfiguration)
		}
	default:
		panic("BUG: ltssm: invalid state")
	}
}

// DeclareDown forces the machine into Recovery. It is called when the data
// link layer exhausts its replay budget.
func (m *Machine) DeclareDown() {
	if m.state == StateRecovery {
		return
	}
	m.transition(StateRecovery)
}

// Reset returns the machine to Detect. This is the only way back into
// Detect.
func (m *Machine) Reset() {
	m.transition(StateDetect)
	m.negotiatedRate = 0
	m.negotiatedWidth = 0
}

func (m *Machine) transition(to State) {
	from := m.state
	m.state = to
	m.linkUp = to == StateL0
	if to == StateL0 {
		m.holdoff = l0HoldoffTicks
	}
	m.logger.Debugf("LTSSM: %s -> %s", from, to)
}
