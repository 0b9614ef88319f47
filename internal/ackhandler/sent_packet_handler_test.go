package ackhandler

import (
	"testing"

	"github.com/mithro/litepcie-go/internal/protocol"
	"github.com/mithro/litepcie-go/internal/utils"
	"github.com/mithro/litepcie-go/internal/wire"
	"github.com/mithro/litepcie-go/logging"

	"github.com/stretchr/testify/require"
)

func newSentHandler(capacity protocol.ByteCount) *SentPacketHandler {
	return NewSentPacketHandler(capacity, 64, 2, logging.NullTracer, utils.DefaultLogger)
}

// popAll drains the transmit queue, returning the sequence numbers in order.
func popAll(h *SentPacketHandler) []protocol.SequenceNumber {
	var seqs []protocol.SequenceNumber
	for {
		_, seq, ok := h.PopFrame()
		if !ok {
			return seqs
		}
		seqs = append(seqs, seq)
	}
}

func TestSendAssignsSequentialNumbers(t *testing.T) {
	h := newSentHandler(4096)
	for i := 0; i < 5; i++ {
		seq, err := h.Send([]byte{byte(i)})
		require.NoError(t, err)
		require.Equal(t, protocol.SequenceNumber(i), seq)
	}
	require.Equal(t, 5, h.PacketsBuffered())
	require.Equal(t, []protocol.SequenceNumber{0, 1, 2, 3, 4}, popAll(h))
	// transmission doesn't release the buffer
	require.Equal(t, 5, h.PacketsBuffered())
}

func TestCumulativeAckEmptiesBuffer(t *testing.T) {
	h := newSentHandler(4096)
	const n = 10
	for i := 0; i < n; i++ {
		_, err := h.Send([]byte{byte(i)})
		require.NoError(t, err)
	}
	popAll(h)
	h.ReceivedDLLP(&wire.DLLP{Type: wire.DLLPAck, Seq: n - 1})
	require.Zero(t, h.PacketsBuffered())
	require.Zero(t, h.BytesBuffered())
}

func TestPartialAck(t *testing.T) {
	h := newSentHandler(4096)
	for i := 0; i < 6; i++ {
		h.Send([]byte{byte(i)})
	}
	popAll(h)
	h.ReceivedDLLP(&wire.DLLP{Type: wire.DLLPAck, Seq: 2})
	require.Equal(t, 3, h.PacketsBuffered())
	h.ReceivedDLLP(&wire.DLLP{Type: wire.DLLPAck, Seq: 5})
	require.Zero(t, h.PacketsBuffered())
}

func TestStaleAckIgnored(t *testing.T) {
	h := newSentHandler(4096)
	for i := 0; i < 4; i++ {
		h.Send([]byte{byte(i)})
	}
	popAll(h)
	h.ReceivedDLLP(&wire.DLLP{Type: wire.DLLPAck, Seq: 3})
	require.Zero(t, h.PacketsBuffered())
	// an ACK for an unsent sequence number changes nothing
	h.ReceivedDLLP(&wire.DLLP{Type: wire.DLLPAck, Seq: 100})
	require.Zero(t, h.PacketsBuffered())
}

func TestBackpressureWhenBufferFull(t *testing.T) {
	// each packet is 1 payload byte + 6 bytes overhead
	h := newSentHandler(3 * 7)
	for i := 0; i < 3; i++ {
		require.True(t, h.CanSend(1))
		_, err := h.Send([]byte{byte(i)})
		require.NoError(t, err)
	}
	require.False(t, h.CanSend(1))
	_, err := h.Send([]byte{3})
	require.ErrorIs(t, err, ErrRetryBufferFull)
	require.Equal(t, 3, h.PacketsBuffered())

	// an ACK makes room again
	h.ReceivedDLLP(&wire.DLLP{Type: wire.DLLPAck, Seq: 0})
	require.True(t, h.CanSend(1))
	_, err = h.Send([]byte{3})
	require.NoError(t, err)
}

func TestNakTriggersReplayInOrder(t *testing.T) {
	h := newSentHandler(4096)
	var raws [][]byte
	for i := 0; i < 6; i++ {
		h.Send([]byte{byte(i)})
	}
	for {
		raw, _, ok := h.PopFrame()
		if !ok {
			break
		}
		raws = append(raws, raw)
	}

	// NAK(2): 0..2 are released, 3..5 are replayed unmodified
	h.ReceivedDLLP(&wire.DLLP{Type: wire.DLLPNak, Seq: 2})
	require.Equal(t, 3, h.PacketsBuffered())
	var replayed [][]byte
	var seqs []protocol.SequenceNumber
	for {
		raw, seq, ok := h.PopFrame()
		if !ok {
			break
		}
		replayed = append(replayed, raw)
		seqs = append(seqs, seq)
	}
	require.Equal(t, []protocol.SequenceNumber{3, 4, 5}, seqs)
	require.Equal(t, raws[3:], replayed)
}

func TestReplayIdempotentWhileInFlight(t *testing.T) {
	h := newSentHandler(4096)
	for i := 0; i < 4; i++ {
		h.Send([]byte{byte(i)})
	}
	popAll(h)
	h.ReceivedDLLP(&wire.DLLP{Type: wire.DLLPNak, Seq: 0})
	// replay of 1..3 is pending; a duplicate NAK must not duplicate it
	h.ReceivedDLLP(&wire.DLLP{Type: wire.DLLPNak, Seq: 0})
	require.Equal(t, []protocol.SequenceNumber{1, 2, 3}, popAll(h))
}

func TestAckDuringReplaySkipsReleasedPackets(t *testing.T) {
	h := newSentHandler(4096)
	for i := 0; i < 4; i++ {
		h.Send([]byte{byte(i)})
	}
	popAll(h)
	h.ReceivedDLLP(&wire.DLLP{Type: wire.DLLPNak, Seq: 4095})
	// everything is queued for replay; an ACK for 0..1 arrives first
	h.ReceivedDLLP(&wire.DLLP{Type: wire.DLLPAck, Seq: 1})
	require.Equal(t, []protocol.SequenceNumber{2, 3}, popAll(h))
}

func TestReplayTimerFiresOnce(t *testing.T) {
	h := newSentHandler(4096)
	h.OnTick(true)
	h.Send([]byte{1})
	popAll(h)
	for i := 0; i < 63; i++ {
		h.OnTick(true)
	}
	require.False(t, h.HasFrameToSend())
	h.OnTick(true)
	require.Equal(t, []protocol.SequenceNumber{0}, popAll(h))
	require.False(t, h.LinkDown())
}

func TestReplayTimerHeldWhileLinkDown(t *testing.T) {
	h := newSentHandler(4096)
	h.OnTick(true)
	h.Send([]byte{1})
	popAll(h)
	for i := 0; i < 1000; i++ {
		h.OnTick(false)
	}
	require.False(t, h.HasFrameToSend())
}

func TestRetryExhaustionDeclaresLinkDown(t *testing.T) {
	h := newSentHandler(4096) // maxRetryCount = 2
	h.Send([]byte{1})
	popAll(h)
	h.ReceivedDLLP(&wire.DLLP{Type: wire.DLLPNak, Seq: 4095})
	popAll(h)
	require.False(t, h.LinkDown())
	h.ReceivedDLLP(&wire.DLLP{Type: wire.DLLPNak, Seq: 4095})
	popAll(h)
	require.False(t, h.LinkDown())
	// the budget (2) is spent, the next NAK takes the link down
	h.ReceivedDLLP(&wire.DLLP{Type: wire.DLLPNak, Seq: 4095})
	require.True(t, h.LinkDown())
	require.False(t, h.HasFrameToSend())
	require.False(t, h.CanSend(1))
	// the packet is still buffered, and retraining replays it
	require.Equal(t, 1, h.PacketsBuffered())
	h.OnLinkUp()
	require.False(t, h.LinkDown())
	require.Equal(t, []protocol.SequenceNumber{0}, popAll(h))
}

func TestForwardProgressResetsReplayBudget(t *testing.T) {
	h := newSentHandler(4096)
	for i := 0; i < 3; i++ {
		h.Send([]byte{byte(i)})
	}
	popAll(h)
	h.ReceivedDLLP(&wire.DLLP{Type: wire.DLLPNak, Seq: 4095})
	popAll(h)
	h.ReceivedDLLP(&wire.DLLP{Type: wire.DLLPNak, Seq: 4095})
	popAll(h)
	// NAK with forward progress: budget starts over
	h.ReceivedDLLP(&wire.DLLP{Type: wire.DLLPNak, Seq: 0})
	popAll(h)
	h.ReceivedDLLP(&wire.DLLP{Type: wire.DLLPNak, Seq: 0})
	popAll(h)
	require.False(t, h.LinkDown())
}

func TestSequenceNumberWrapAround(t *testing.T) {
	h := newSentHandler(1 << 16)
	h.nextSeq = 4094
	h.ackedSeq = 4093
	for i := 0; i < 4; i++ {
		h.Send([]byte{byte(i)})
	}
	popAll(h)
	require.Equal(t, 4, h.PacketsBuffered())
	h.ReceivedDLLP(&wire.DLLP{Type: wire.DLLPAck, Seq: 0})
	require.Equal(t, 1, h.PacketsBuffered())
	h.ReceivedDLLP(&wire.DLLP{Type: wire.DLLPAck, Seq: 1})
	require.Zero(t, h.PacketsBuffered())
}

func TestReset(t *testing.T) {
	h := newSentHandler(4096)
	h.Send([]byte{1})
	h.Reset()
	require.Zero(t, h.PacketsBuffered())
	require.False(t, h.HasFrameToSend())
	seq, err := h.Send([]byte{2})
	require.NoError(t, err)
	require.Zero(t, seq)
}

func TestOversizedPayloadRejected(t *testing.T) {
	h := newSentHandler(1 << 20)
	_, err := h.Send(make([]byte, int(protocol.MaxPacketPayloadSize)+1))
	require.Error(t, err)
	require.NotErrorIs(t, err, ErrRetryBufferFull)
}
