package ackhandler

import (
	"github.com/mithro/litepcie-go/internal/protocol"
	"github.com/mithro/litepcie-go/internal/utils"
	"github.com/mithro/litepcie-go/internal/wire"
	"github.com/mithro/litepcie-go/logging"
)

// The ReceivedPacketHandler owns the receive side of the reliability
// engine: LCRC validation, the expected sequence number, and ACK/NAK
// scheduling.
type ReceivedPacketHandler struct {
	expectedSeq protocol.SequenceNumber
	// lastGood is the cumulative sequence number carried by outgoing ACKs
	// and NAKs. It starts one before the first expected sequence number.
	lastGood protocol.SequenceNumber

	// ackPending accumulates deliveries until the ACK delay elapses.
	ackPending bool
	ackDueAt   uint64
	ackDelay   uint64

	// nakScheduled is a NAK waiting to be transmitted. nakOutstanding
	// stays set until the replay restarts at the expected sequence number,
	// so a burst of corrupted packets produces a single NAK.
	nakScheduled   bool
	nakOutstanding bool

	now uint64

	tracer logging.LinkTracer
	logger utils.Logger
}

// NewReceivedPacketHandler creates a ReceivedPacketHandler. ackDelay is the
// accumulation window, in ticks, before a cumulative ACK is sent.
func NewReceivedPacketHandler(ackDelay uint64, tracer logging.LinkTracer, logger utils.Logger) *ReceivedPacketHandler {
	return &ReceivedPacketHandler{
		lastGood: protocol.SequenceNumber(protocol.SequenceNumberSpace - 1),
		ackDelay: ackDelay,
		tracer:   tracer,
		logger:   logger,
	}
}

// ReceivedPacket validates a reassembled data link packet. It returns the
// payload to deliver upward, or nil if the packet was discarded. Discards
// are never fatal: a corrupted packet schedules a NAK, an out-of-sequence
// packet is dropped silently and surfaced through the tracer.
func (h *ReceivedPacketHandler) ReceivedPacket(raw []byte) []byte {
	size := protocol.ByteCount(len(raw))
	seq, payload, err := wire.ParsePacket(raw)
	if err != nil {
		reason := logging.DropHeaderParseError
		if err == wire.ErrCRCMismatch {
			reason = logging.DropCRCError
		}
		h.tracer.DroppedPacket(protocol.PacketKindData, size, reason)
		h.scheduleNak()
		return nil
	}
	if seq != h.expectedSeq {
		// Out-of-sequence packets are dropped without a NAK: during a
		// replay the tail of the old stream arrives here, and NAKing it
		// would retrigger the replay forever. A duplicate of an already
		// received packet means the partner lost an ACK, so it is
		// re-acknowledged.
		if h.isDuplicate(seq) {
			h.scheduleAck()
		}
		if h.logger.Debug() {
			h.logger.Debugf("dropping packet %s, expected %s", seq, h.expectedSeq)
		}
		h.tracer.DroppedPacket(protocol.PacketKindData, size, logging.DropOutOfSequence)
		return nil
	}

	h.lastGood = seq
	h.expectedSeq = seq.Next()
	h.nakOutstanding = false
	h.scheduleAck()
	h.tracer.ReceivedPacket(seq, size)
	return payload
}

// isDuplicate says if seq was already received, i.e. lies in the half of
// the wrapping sequence space behind the expected number.
func (h *ReceivedPacketHandler) isDuplicate(seq protocol.SequenceNumber) bool {
	return h.expectedSeq.Distance(seq) >= protocol.SequenceNumberSpace/2
}

func (h *ReceivedPacketHandler) scheduleAck() {
	if h.ackPending {
		return
	}
	h.ackPending = true
	h.ackDueAt = h.now + h.ackDelay
}

func (h *ReceivedPacketHandler) scheduleNak() {
	if h.nakOutstanding {
		return
	}
	h.nakScheduled = true
	h.nakOutstanding = true
	h.logger.Infof("scheduling NAK with cumulative sequence number %s", h.lastGood)
}

// OnTick advances the ACK accumulation timer.
func (h *ReceivedPacketHandler) OnTick() {
	h.now++
}

// PendingDLLP returns the next control packet to transmit, if one is due.
// NAKs go out immediately and take priority over ACKs.
func (h *ReceivedPacketHandler) PendingDLLP() (*wire.DLLP, bool) {
	if h.nakScheduled {
		h.nakScheduled = false
		// the NAK already carries the cumulative state, no ACK needed
		h.ackPending = false
		return &wire.DLLP{Type: wire.DLLPNak, Seq: h.lastGood}, true
	}
	if h.ackPending && h.now >= h.ackDueAt {
		h.ackPending = false
		return &wire.DLLP{Type: wire.DLLPAck, Seq: h.lastGood}, true
	}
	return nil, false
}

// Reset clears all receive-side sequence state.
func (h *ReceivedPacketHandler) Reset() {
	h.expectedSeq = 0
	h.lastGood = protocol.SequenceNumber(protocol.SequenceNumberSpace - 1)
	h.ackPending = false
	h.nakScheduled = false
	h.nakOutstanding = false
}
