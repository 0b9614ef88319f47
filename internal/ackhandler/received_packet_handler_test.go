package ackhandler

import (
	"testing"

	"github.com/mithro/litepcie-go/internal/protocol"
	"github.com/mithro/litepcie-go/internal/utils"
	"github.com/mithro/litepcie-go/internal/wire"
	"github.com/mithro/litepcie-go/logging"

	"github.com/stretchr/testify/require"
)

func newRecvHandler(ackDelay uint64) *ReceivedPacketHandler {
	return NewReceivedPacketHandler(ackDelay, logging.NullTracer, utils.DefaultLogger)
}

func rawPacket(seq protocol.SequenceNumber, payload []byte) []byte {
	return wire.AppendPacket(nil, seq, payload)
}

func TestDeliverInOrder(t *testing.T) {
	h := newRecvHandler(0)
	for i := 0; i < 5; i++ {
		payload := h.ReceivedPacket(rawPacket(protocol.SequenceNumber(i), []byte{byte(i)}))
		require.Equal(t, []byte{byte(i)}, payload)
	}
}

func TestAckCarriesCumulativeSequenceNumber(t *testing.T) {
	h := newRecvHandler(0)
	h.ReceivedPacket(rawPacket(0, []byte{0}))
	h.ReceivedPacket(rawPacket(1, []byte{1}))
	d, ok := h.PendingDLLP()
	require.True(t, ok)
	require.Equal(t, wire.DLLPAck, d.Type)
	require.Equal(t, protocol.SequenceNumber(1), d.Seq)
	// one ACK per accumulation
	_, ok = h.PendingDLLP()
	require.False(t, ok)
}

func TestAckAccumulationDelay(t *testing.T) {
	h := newRecvHandler(4)
	h.ReceivedPacket(rawPacket(0, []byte{0}))
	_, ok := h.PendingDLLP()
	require.False(t, ok)
	for i := 0; i < 3; i++ {
		h.OnTick()
	}
	_, ok = h.PendingDLLP()
	require.False(t, ok)
	h.OnTick()
	d, ok := h.PendingDLLP()
	require.True(t, ok)
	require.Equal(t, wire.DLLPAck, d.Type)
	require.Equal(t, protocol.SequenceNumber(0), d.Seq)
}

func TestCorruptedPacketSchedulesNak(t *testing.T) {
	h := newRecvHandler(0)
	h.ReceivedPacket(rawPacket(0, []byte{0}))
	h.PendingDLLP() // drain the ACK

	bad := rawPacket(1, []byte{1})
	bad[3] ^= 0xff
	require.Nil(t, h.ReceivedPacket(bad))
	d, ok := h.PendingDLLP()
	require.True(t, ok)
	require.Equal(t, wire.DLLPNak, d.Type)
	require.Equal(t, protocol.SequenceNumber(0), d.Seq)
}

func TestSingleNakPerErrorBurst(t *testing.T) {
	h := newRecvHandler(0)
	bad := rawPacket(0, []byte{0})
	bad[2] ^= 0x01
	for i := 0; i < 5; i++ {
		require.Nil(t, h.ReceivedPacket(bad))
	}
	d, ok := h.PendingDLLP()
	require.True(t, ok)
	require.Equal(t, wire.DLLPNak, d.Type)
	// no further NAK until the replay restarts the stream
	_, ok = h.PendingDLLP()
	require.False(t, ok)

	// the replay arrives: acceptance restarts at the expected number
	require.NotNil(t, h.ReceivedPacket(rawPacket(0, []byte{0})))
	d, ok = h.PendingDLLP()
	require.True(t, ok)
	require.Equal(t, wire.DLLPAck, d.Type)

	// a fresh corruption NAKs again
	bad2 := rawPacket(1, []byte{1})
	bad2[2] ^= 0x01
	h.ReceivedPacket(bad2)
	d, ok = h.PendingDLLP()
	require.True(t, ok)
	require.Equal(t, wire.DLLPNak, d.Type)
	require.Equal(t, protocol.SequenceNumber(0), d.Seq)
}

func TestSequenceGapDroppedSilently(t *testing.T) {
	h := newRecvHandler(0)
	require.NotNil(t, h.ReceivedPacket(rawPacket(0, []byte{0})))
	h.PendingDLLP()
	// a gap is dropped without any DLLP
	require.Nil(t, h.ReceivedPacket(rawPacket(2, []byte{2})))
	_, ok := h.PendingDLLP()
	require.False(t, ok)
	// the expected one still goes through
	require.NotNil(t, h.ReceivedPacket(rawPacket(1, []byte{1})))
}

func TestDuplicateIsReacknowledged(t *testing.T) {
	h := newRecvHandler(0)
	require.NotNil(t, h.ReceivedPacket(rawPacket(0, []byte{0})))
	h.PendingDLLP()
	// the partner replays because it lost our ACK
	require.Nil(t, h.ReceivedPacket(rawPacket(0, []byte{0})))
	d, ok := h.PendingDLLP()
	require.True(t, ok)
	require.Equal(t, wire.DLLPAck, d.Type)
	require.Equal(t, protocol.SequenceNumber(0), d.Seq)
}

func TestNakBeforeAnythingReceived(t *testing.T) {
	h := newRecvHandler(0)
	bad := rawPacket(0, []byte{0})
	bad[0] ^= 0x01
	h.ReceivedPacket(bad)
	d, ok := h.PendingDLLP()
	require.True(t, ok)
	require.Equal(t, wire.DLLPNak, d.Type)
	// cumulative state is "nothing received yet"
	require.Equal(t, protocol.SequenceNumber(4095), d.Seq)
}

func TestNakSupersedesPendingAck(t *testing.T) {
	h := newRecvHandler(0)
	h.ReceivedPacket(rawPacket(0, []byte{0}))
	bad := rawPacket(1, []byte{1})
	bad[1] ^= 0x01
	h.ReceivedPacket(bad)
	d, ok := h.PendingDLLP()
	require.True(t, ok)
	require.Equal(t, wire.DLLPNak, d.Type)
	require.Equal(t, protocol.SequenceNumber(0), d.Seq)
	// the NAK carries the cumulative state, so no separate ACK follows
	_, ok = h.PendingDLLP()
	require.False(t, ok)
}

func TestReceiverReset(t *testing.T) {
	h := newRecvHandler(0)
	h.ReceivedPacket(rawPacket(0, []byte{0}))
	h.Reset()
	_, ok := h.PendingDLLP()
	require.False(t, ok)
	require.NotNil(t, h.ReceivedPacket(rawPacket(0, []byte{0})))
}
