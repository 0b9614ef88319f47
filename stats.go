package litepcie

import (
	"github.com/mithro/litepcie-go/internal/wire"
	"github.com/mithro/litepcie-go/logging"
)

// Stats is a snapshot of the link engine's counters. All lower-level faults
// are recoverable and only visible here and through the tracer; the only
// persistent signal is LinkUp.
type Stats struct {
	State  logging.State
	LinkUp bool

	PacketsSent     uint64
	PacketsReceived uint64
	PacketsDropped  uint64
	CRCErrors       uint64
	OutOfSequence   uint64

	DLLPsSent     uint64
	DLLPsReceived uint64
	NAKsSent      uint64
	NAKsReceived  uint64

	Replays        uint64
	LinkDownEvents uint64

	OrderedSetsSent     uint64
	OrderedSetsReceived uint64
	UnknownOrderedSets  uint64
	FramingErrors       uint64

	RetryBufferBytes   int64
	RetryBufferPackets int
}

// The statsTracer keeps the Stats counters and forwards every event to the
// configured tracer. It runs on the tick loop, no locking needed.
type statsTracer struct {
	stats *Stats
	next  logging.LinkTracer
}

var _ logging.LinkTracer = &statsTracer{}

func newStatsTracer(stats *Stats, next logging.LinkTracer) *statsTracer {
	return &statsTracer{stats: stats, next: next}
}

func (t *statsTracer) StateTransition(from, to logging.State) {
	t.next.StateTransition(from, to)
}

func (t *statsTracer) LinkDeclaredDown() {
	t.stats.LinkDownEvents++
	t.next.LinkDeclaredDown()
}

func (t *statsTracer) SentPacket(seq logging.SequenceNumber, size logging.ByteCount) {
	t.stats.PacketsSent++
	t.next.SentPacket(seq, size)
}

func (t *statsTracer) ReceivedPacket(seq logging.SequenceNumber, size logging.ByteCount) {
	t.stats.PacketsReceived++
	t.next.ReceivedPacket(seq, size)
}

func (t *statsTracer) DroppedPacket(kind logging.PacketKind, size logging.ByteCount, reason logging.PacketDropReason) {
	t.stats.PacketsDropped++
	switch reason {
	case logging.DropCRCError:
		t.stats.CRCErrors++
	case logging.DropOutOfSequence:
		t.stats.OutOfSequence++
	}
	t.next.DroppedPacket(kind, size, reason)
}

func (t *statsTracer) SentDLLP(typ logging.DLLPType, seq logging.SequenceNumber) {
	t.stats.DLLPsSent++
	if typ == wire.DLLPNak {
		t.stats.NAKsSent++
	}
	t.next.SentDLLP(typ, seq)
}

func (t *statsTracer) ReceivedDLLP(typ logging.DLLPType, seq logging.SequenceNumber) {
	t.stats.DLLPsReceived++
	if typ == wire.DLLPNak {
		t.stats.NAKsReceived++
	}
	t.next.ReceivedDLLP(typ, seq)
}

func (t *statsTracer) StartedReplay(from logging.SequenceNumber, count int) {
	t.stats.Replays++
	t.next.StartedReplay(from, count)
}

func (t *statsTracer) SentOrderedSet(kind logging.OrderedSetKind) {
	t.stats.OrderedSetsSent++
	t.next.SentOrderedSet(kind)
}

func (t *statsTracer) ReceivedOrderedSet(kind logging.OrderedSetKind) {
	t.stats.OrderedSetsReceived++
	t.next.ReceivedOrderedSet(kind)
}

func (t *statsTracer) UnknownOrderedSet() {
	t.stats.UnknownOrderedSets++
	t.next.UnknownOrderedSet()
}

func (t *statsTracer) FramingError() {
	t.stats.FramingErrors++
	t.next.FramingError()
}

func (t *statsTracer) Close() { t.next.Close() }
