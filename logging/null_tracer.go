package logging

// The NullTracer is a LinkTracer that does nothing.
// It is useful for embedding.
var NullTracer LinkTracer = &nullTracer{}

type nullTracer struct{}

var _ LinkTracer = &nullTracer{}

func (nullTracer) StateTransition(from, to State)                          {}
func (nullTracer) LinkDeclaredDown()                                       {}
func (nullTracer) SentPacket(SequenceNumber, ByteCount)                    {}
func (nullTracer) ReceivedPacket(SequenceNumber, ByteCount)                {}
func (nullTracer) DroppedPacket(PacketKind, ByteCount, PacketDropReason)   {}
func (nullTracer) SentDLLP(DLLPType, SequenceNumber)                       {}
func (nullTracer) ReceivedDLLP(DLLPType, SequenceNumber)                   {}
func (nullTracer) StartedReplay(SequenceNumber, int)                       {}
func (nullTracer) SentOrderedSet(OrderedSetKind)                           {}
func (nullTracer) ReceivedOrderedSet(OrderedSetKind)                       {}
func (nullTracer) UnknownOrderedSet()                                      {}
func (nullTracer) FramingError()                                           {}
func (nullTracer) Close()                                                  {}
