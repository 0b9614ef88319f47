package ackhandler

import (
	"github.com/mithro/litepcie-go/internal/protocol"
	"github.com/mithro/litepcie-go/internal/utils/ringbuffer"
)

// A retryBufferEntry is one unacknowledged packet, owned by the retry
// buffer until a cumulative ACK releases it.
type retryBufferEntry struct {
	seq protocol.SequenceNumber
	// raw is the full wire encoding (sequence number, payload, LCRC).
	// A replay resends it unmodified.
	raw []byte
	// enqueuedAt is the tick the packet was first queued.
	enqueuedAt uint64
	// sentAt is the tick the packet was last handed to the framer.
	sentAt uint64
	// acked marks an entry that was released while still sitting in the
	// transmit queue. The framer skips it.
	acked bool
}

// The retryBuffer stores unacknowledged packets in sequence order, bounded
// by a byte capacity. Entries form a contiguous sequence number window and
// are only ever released cumulatively from the front.
type retryBuffer struct {
	entries  ringbuffer.RingBuffer[*retryBufferEntry]
	capacity protocol.ByteCount
	used     protocol.ByteCount
}

func newRetryBuffer(capacity protocol.ByteCount) *retryBuffer {
	return &retryBuffer{capacity: capacity}
}

func (b *retryBuffer) Len() int                  { return b.entries.Len() }
func (b *retryBuffer) Empty() bool               { return b.entries.Empty() }
func (b *retryBuffer) Used() protocol.ByteCount  { return b.used }
func (b *retryBuffer) Fits(n protocol.ByteCount) bool {
	return b.used+n <= b.capacity
}

func (b *retryBuffer) Push(e *retryBufferEntry) {
	if !b.Fits(protocol.ByteCount(len(e.raw))) {
		panic("BUG: ackhandler: retry buffer overflow")
	}
	if !b.entries.Empty() {
		last := b.last()
		if last.seq.Next() != e.seq {
			panic("BUG: ackhandler: retry buffer sequence gap")
		}
	}
	b.entries.PushBack(e)
	b.used += protocol.ByteCount(len(e.raw))
}

// ReleaseThrough removes all entries with a sequence number up to and
// including seq, atomically (cumulative acknowledgment). It reports how
// many entries were released.
func (b *retryBuffer) ReleaseThrough(seq protocol.SequenceNumber) int {
	released := 0
	for !b.entries.Empty() {
		front := b.entries.PeekFront()
		// front.seq <= seq, in window order starting at the front
		if front.seq != seq && front.seq.Distance(seq) >= protocol.SequenceNumberSpace/2 {
			break
		}
		e := b.entries.PopFront()
		e.acked = true
		b.used -= protocol.ByteCount(len(e.raw))
		released++
		if e.seq == seq {
			break
		}
	}
	return released
}

// Contains says if seq is one of the buffered sequence numbers.
func (b *retryBuffer) Contains(seq protocol.SequenceNumber) bool {
	if b.entries.Empty() {
		return false
	}
	front := b.entries.PeekFront()
	return front.seq.Distance(seq) < uint16(b.entries.Len())
}

// Iterate walks the buffered entries in sequence order.
func (b *retryBuffer) Iterate(f func(*retryBufferEntry) bool) {
	b.entries.Iterate(f)
}

func (b *retryBuffer) Oldest() *retryBufferEntry {
	if b.entries.Empty() {
		return nil
	}
	return b.entries.PeekFront()
}

func (b *retryBuffer) last() *retryBufferEntry {
	var last *retryBufferEntry
	b.entries.Iterate(func(e *retryBufferEntry) bool {
		last = e
		return true
	})
	return last
}

func (b *retryBuffer) Clear() {
	b.entries.Clear()
	b.used = 0
}
