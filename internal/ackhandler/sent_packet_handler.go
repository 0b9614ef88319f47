// Package ackhandler implements the reliability engine of the data link
// layer: sequence numbering, the retry buffer with NAK/timeout replay on
// the transmit side, and CRC/sequence validation with ACK scheduling on the
// receive side.
package ackhandler

import (
	"errors"

	"github.com/mithro/litepcie-go/internal/protocol"
	"github.com/mithro/litepcie-go/internal/utils"
	"github.com/mithro/litepcie-go/internal/utils/ringbuffer"
	"github.com/mithro/litepcie-go/internal/wire"
	"github.com/mithro/litepcie-go/logging"
)

// ErrRetryBufferFull is returned by Send when the retry buffer cannot take
// the packet. The caller applies backpressure and retries later; nothing is
// dropped.
var ErrRetryBufferFull = errors.New("retry buffer full")

// The SentPacketHandler owns the transmit side of the reliability engine.
// It is the single writer of the retry buffer: Send, the ACK/NAK processing
// path and the tick handler all run on the engine's tick loop.
type SentPacketHandler struct {
	buffer *retryBuffer

	nextSeq  protocol.SequenceNumber
	ackedSeq protocol.SequenceNumber // last cumulatively acknowledged

	// sendQueue holds the packets awaiting (re)transmission, in sequence
	// order. First transmissions and replays share it.
	sendQueue ringbuffer.RingBuffer[*retryBufferEntry]
	// replaying gates replay: a second NAK before the replay finished must
	// not duplicate work.
	replaying bool

	replayCount   int
	maxRetryCount int
	ackTimeout    uint64

	now      uint64
	linkDown bool

	tracer logging.LinkTracer
	logger utils.Logger
}

// NewSentPacketHandler creates a SentPacketHandler with a retry buffer of
// capacity bytes. ackTimeout is the replay timer in ticks; after
// maxRetryCount fruitless replays the link is declared down.
func NewSentPacketHandler(
	capacity protocol.ByteCount,
	ackTimeout uint64,
	maxRetryCount int,
	tracer logging.LinkTracer,
	logger utils.Logger,
) *SentPacketHandler {
	return &SentPacketHandler{
		buffer:        newRetryBuffer(capacity),
		ackedSeq:      protocol.SequenceNumber(protocol.SequenceNumberSpace - 1),
		maxRetryCount: maxRetryCount,
		ackTimeout:    ackTimeout,
		tracer:        tracer,
		logger:        logger,
	}
}

// CanSend says if a payload of the given length fits into the retry buffer
// right now. The sequence number window itself can never overflow before
// the byte capacity does.
func (h *SentPacketHandler) CanSend(payloadLen protocol.ByteCount) bool {
	return !h.linkDown && h.buffer.Fits(payloadLen+wire.PacketOverhead)
}

// Send assigns the next sequence number, wraps the payload into a data link
// packet and stores it in the retry buffer. It returns ErrRetryBufferFull
// when the packet doesn't fit; the caller must retry, not drop.
func (h *SentPacketHandler) Send(payload []byte) (protocol.SequenceNumber, error) {
	if protocol.ByteCount(len(payload)) > protocol.MaxPacketPayloadSize {
		return 0, errors.New("payload exceeds maximum packet size")
	}
	if !h.CanSend(protocol.ByteCount(len(payload))) {
		return 0, ErrRetryBufferFull
	}
	seq := h.nextSeq
	h.nextSeq = h.nextSeq.Next()
	e := &retryBufferEntry{
		seq:        seq,
		raw:        wire.AppendPacket(nil, seq, payload),
		enqueuedAt: h.now,
	}
	h.buffer.Push(e)
	h.sendQueue.PushBack(e)
	if h.logger.Debug() {
		h.logger.Debugf("queued packet %s (%d bytes, buffer %d/%d)",
			seq, len(e.raw), h.buffer.Used(), h.buffer.capacity)
	}
	return seq, nil
}

// HasFrameToSend says if a packet is waiting for (re)transmission.
func (h *SentPacketHandler) HasFrameToSend() bool {
	h.skipAcked()
	return !h.sendQueue.Empty()
}

// PopFrame hands out the wire bytes of the next packet to transmit.
func (h *SentPacketHandler) PopFrame() (raw []byte, seq protocol.SequenceNumber, ok bool) {
	h.skipAcked()
	if h.sendQueue.Empty() {
		return nil, 0, false
	}
	e := h.sendQueue.PopFront()
	e.sentAt = h.now
	if h.sendQueue.Empty() {
		h.replaying = false
	}
	h.tracer.SentPacket(e.seq, protocol.ByteCount(len(e.raw)))
	return e.raw, e.seq, true
}

// skipAcked drops queue entries that were acknowledged while still waiting
// to be (re)sent.
func (h *SentPacketHandler) skipAcked() {
	for !h.sendQueue.Empty() && h.sendQueue.PeekFront().acked {
		h.sendQueue.PopFront()
	}
	if h.sendQueue.Empty() {
		h.replaying = false
	}
}

// ReceivedDLLP processes an ACK or NAK from the link partner.
func (h *SentPacketHandler) ReceivedDLLP(d *wire.DLLP) {
	h.tracer.ReceivedDLLP(d.Type, d.Seq)
	switch d.Type {
	case wire.DLLPAck:
		h.receivedAck(d.Seq)
	case wire.DLLPNak:
		h.receivedNak(d.Seq)
	default:
		panic("BUG: ackhandler: unvalidated DLLP type")
	}
}

func (h *SentPacketHandler) receivedAck(seq protocol.SequenceNumber) {
	if seq == h.ackedSeq {
		// duplicate of the current cumulative state
		return
	}
	if !h.acknowledgeThrough(seq, "ACK") {
		return
	}
	// forward progress: the replay budget starts over
	h.replayCount = 0
}

func (h *SentPacketHandler) receivedNak(seq protocol.SequenceNumber) {
	if seq != h.ackedSeq {
		if !h.acknowledgeThrough(seq, "NAK") {
			return
		}
		h.replayCount = 0
	}
	h.startReplay(true)
}

// acknowledgeThrough applies a cumulative acknowledgment. It returns false
// if seq doesn't name a buffered packet.
func (h *SentPacketHandler) acknowledgeThrough(seq protocol.SequenceNumber, what string) bool {
	if !h.buffer.Contains(seq) {
		h.logger.Infof("ignoring %s for sequence number %s outside the retry window (acked %s, next %s)",
			what, seq, h.ackedSeq, h.nextSeq)
		return false
	}
	released := h.buffer.ReleaseThrough(seq)
	h.ackedSeq = seq
	if h.logger.Debug() {
		h.logger.Debugf("%s %s released %d packets, buffer %d/%d",
			what, seq, released, h.buffer.Used(), h.buffer.capacity)
	}
	return true
}

// startReplay queues every buffered packet for retransmission, in original
// sequence order and with unchanged sequence numbers. The replaying flag
// makes it idempotent while a replay is in flight.
func (h *SentPacketHandler) startReplay(countAgainstBudget bool) {
	h.skipAcked()
	if h.replaying {
		return
	}
	if h.buffer.Empty() {
		return
	}
	if countAgainstBudget {
		if h.replayCount >= h.maxRetryCount {
			h.declareDown()
			return
		}
		h.replayCount++
	}
	h.sendQueue.Clear()
	count := 0
	h.buffer.Iterate(func(e *retryBufferEntry) bool {
		h.sendQueue.PushBack(e)
		count++
		return true
	})
	h.replaying = true
	h.tracer.StartedReplay(h.ackedSeq, count)
	h.logger.Infof("replaying %d packets after %s (replay %d/%d)",
		count, h.ackedSeq, h.replayCount, h.maxRetryCount)
}

func (h *SentPacketHandler) declareDown() {
	h.linkDown = true
	h.sendQueue.Clear()
	h.replaying = false
	h.tracer.LinkDeclaredDown()
	h.logger.Errorf("replay budget exhausted, declaring link down")
}

// LinkDown says if the handler has exhausted its replay budget. The caller
// hands control back to the LTSSM and calls OnLinkUp once the link has
// retrained.
func (h *SentPacketHandler) LinkDown() bool { return h.linkDown }

// OnTick advances the replay timer by one tick. While the link is not up,
// the timer is held.
func (h *SentPacketHandler) OnTick(linkUp bool) {
	h.now++
	if !linkUp || h.linkDown || h.replaying {
		return
	}
	oldest := h.buffer.Oldest()
	if oldest == nil {
		return
	}
	if h.now-oldest.sentAt >= h.ackTimeout && oldest.sentAt > 0 {
		h.logger.Infof("replay timer expired for packet %s", oldest.seq)
		h.startReplay(true)
	}
}

// OnLinkUp is called when the LTSSM (re-)reaches L0. Everything still
// buffered is replayed with a fresh budget.
func (h *SentPacketHandler) OnLinkUp() {
	h.linkDown = false
	h.replayCount = 0
	h.replaying = false
	h.startReplay(false)
}

// Reset clears the retry buffer and all sequence state.
func (h *SentPacketHandler) Reset() {
	h.buffer.Clear()
	h.sendQueue.Clear()
	h.nextSeq = 0
	h.ackedSeq = protocol.SequenceNumber(protocol.SequenceNumberSpace - 1)
	h.replaying = false
	h.replayCount = 0
	h.linkDown = false
}

// BytesBuffered returns the bytes currently held in the retry buffer.
func (h *SentPacketHandler) BytesBuffered() protocol.ByteCount { return h.buffer.Used() }

// PacketsBuffered returns the number of unacknowledged packets.
func (h *SentPacketHandler) PacketsBuffered() int { return h.buffer.Len() }
