package logging

// NewMultiplexedTracer creates a new tracer that multiplexes events to
// multiple tracers. Passing no tracers returns nil, passing a single
// tracer returns it unchanged.
func NewMultiplexedTracer(tracers ...LinkTracer) LinkTracer {
	if len(tracers) == 0 {
		return nil
	}
	if len(tracers) == 1 {
		return tracers[0]
	}
	return &tracerMultiplexer{tracers: tracers}
}

type tracerMultiplexer struct {
	tracers []LinkTracer
}

var _ LinkTracer = &tracerMultiplexer{}

func (m *tracerMultiplexer) StateTransition(from, to State) {
	for _, t := range m.tracers {
		t.StateTransition(from, to)
	}
}

func (m *tracerMultiplexer) LinkDeclaredDown() {
	for _, t := range m.tracers {
		t.LinkDeclaredDown()
	}
}

func (m *tracerMultiplexer) SentPacket(seq SequenceNumber, size ByteCount) {
	for _, t := range m.tracers {
		t.SentPacket(seq, size)
	}
}

func (m *tracerMultiplexer) ReceivedPacket(seq SequenceNumber, size ByteCount) {
	for _, t := range m.tracers {
		t.ReceivedPacket(seq, size)
	}
}

func (m *tracerMultiplexer) DroppedPacket(kind PacketKind, size ByteCount, reason PacketDropReason) {
	for _, t := range m.tracers {
		t.DroppedPacket(kind, size, reason)
	}
}

func (m *tracerMultiplexer) SentDLLP(typ DLLPType, seq SequenceNumber) {
	for _, t := range m.tracers {
		t.SentDLLP(typ, seq)
	}
}

func (m *tracerMultiplexer) ReceivedDLLP(typ DLLPType, seq SequenceNumber) {
	for _, t := range m.tracers {
		t.ReceivedDLLP(typ, seq)
	}
}

func (m *tracerMultiplexer) StartedReplay(from SequenceNumber, count int) {
	for _, t := range m.tracers {
		t.StartedReplay(from, count)
	}
}

func (m *tracerMultiplexer) SentOrderedSet(kind OrderedSetKind) {
	for _, t := range m.tracers {
		t.SentOrderedSet(kind)
	}
}

func (m *tracerMultiplexer) ReceivedOrderedSet(kind OrderedSetKind) {
	for _, t := range m.tracers {
		t.ReceivedOrderedSet(kind)
	}
}

func (m *tracerMultiplexer) UnknownOrderedSet() {
	for _, t := range m.tracers {
		t.UnknownOrderedSet()
	}
}

func (m *tracerMultiplexer) FramingError() {
	for _, t := range m.tracers {
		t.FramingError()
	}
}

func (m *tracerMultiplexer) Close() {
	for _, t := range m.tracers {
		t.Close()
	}
}
