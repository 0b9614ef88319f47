// Package qlog records link events as newline-delimited JSON, one record
// per event, in the spirit of the qlog format.
package qlog

import (
	"io"
	"log"
	"time"

	"github.com/mithro/litepcie-go/logging"

	"github.com/francoispqt/gojay"
)

type tracer struct {
	w             io.WriteCloser
	enc           *gojay.Encoder
	referenceTime time.Time
	encodeErr     error
}

var _ logging.LinkTracer = &tracer{}

// NewTracer creates a tracer writing link events to w. All methods run on
// the link's tick loop; events are encoded synchronously.
func NewTracer(w io.WriteCloser) logging.LinkTracer {
	return &tracer{
		w:             w,
		enc:           gojay.NewEncoder(w),
		referenceTime: time.Now(),
	}
}

func (t *tracer) recordEvent(details eventDetails) {
	if t.encodeErr != nil {
		return
	}
	ev := event{
		RelativeTime: time.Since(t.referenceTime),
		eventDetails: details,
	}
	if err := t.enc.EncodeObject(ev); err != nil {
		t.encodeErr = err
		return
	}
	if _, err := t.w.Write([]byte{'\n'}); err != nil {
		t.encodeErr = err
	}
}

func (t *tracer) StateTransition(from, to logging.State) {
	t.recordEvent(eventStateUpdated{From: from, To: to})
}

func (t *tracer) LinkDeclaredDown() {
	t.recordEvent(eventLinkDown{})
}

func (t *tracer) SentPacket(seq logging.SequenceNumber, size logging.ByteCount) {
	t.recordEvent(eventPacketSent{Seq: seq, Size: size})
}

func (t *tracer) ReceivedPacket(seq logging.SequenceNumber, size logging.ByteCount) {
	t.recordEvent(eventPacketReceived{Seq: seq, Size: size})
}

func (t *tracer) DroppedPacket(kind logging.PacketKind, size logging.ByteCount, reason logging.PacketDropReason) {
	t.recordEvent(eventPacketDropped{Kind: kind, Size: size, Reason: reason})
}

func (t *tracer) SentDLLP(typ logging.DLLPType, seq logging.SequenceNumber) {
	t.recordEvent(eventDLLPSent{Type: typ, Seq: seq})
}

func (t *tracer) ReceivedDLLP(typ logging.DLLPType, seq logging.SequenceNumber) {
	t.recordEvent(eventDLLPReceived{Type: typ, Seq: seq})
}

func (t *tracer) StartedReplay(from logging.SequenceNumber, count int) {
	t.recordEvent(eventReplayStarted{From: from, Count: count})
}

func (t *tracer) SentOrderedSet(kind logging.OrderedSetKind) {
	t.recordEvent(eventOrderedSetSent{Kind: kind})
}

func (t *tracer) ReceivedOrderedSet(kind logging.OrderedSetKind) {
	t.recordEvent(eventOrderedSetReceived{Kind: kind})
}

func (t *tracer) UnknownOrderedSet() {
	t.recordEvent(eventUnknownOrderedSet{})
}

func (t *tracer) FramingError() {
	t.recordEvent(eventFramingError{})
}

func (t *tracer) Close() {
	if t.encodeErr != nil {
		log.Printf("qlog: exporting failed: %s\n", t.encodeErr)
	}
	if err := t.w.Close(); err != nil {
		log.Printf("qlog: closing writer failed: %s\n", err)
	}
}
