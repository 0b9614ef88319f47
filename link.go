// Package litepcie implements the control and reliability logic of a
// PCI-Express-style serial link in software: symbol framing at the PIPE
// boundary, a data link layer with CRC-protected, sequence-numbered
// delivery and automatic replay, and the link training state machine.
package litepcie

import (
	"github.com/mithro/litepcie-go/internal/ackhandler"
	"github.com/mithro/litepcie-go/internal/framing"
	"github.com/mithro/litepcie-go/internal/ltssm"
	"github.com/mithro/litepcie-go/internal/orderedset"
	"github.com/mithro/litepcie-go/internal/protocol"
	"github.com/mithro/litepcie-go/internal/symbol"
	"github.com/mithro/litepcie-go/internal/utils"
	"github.com/mithro/litepcie-go/internal/utils/ringbuffer"
	"github.com/mithro/litepcie-go/internal/wire"
	"github.com/mithro/litepcie-go/logging"
)

// ErrRetryBufferFull is returned by Send when the retry buffer is full.
// This is backpressure, not an error condition: retry after the link
// partner acknowledged some packets.
var ErrRetryBufferFull = ackhandler.ErrRetryBufferFull

// A Link is one side of a serial link. It is driven by calling Tick once
// per link tick; everything runs on that tick loop, so a Link must not be
// shared between goroutines without external serialization.
type Link struct {
	config *Config

	machine      *ltssm.Machine
	generator    *orderedset.Generator
	detector     *orderedset.Detector
	packetizer   *framing.Packetizer
	depacketizer *framing.Depacketizer
	sent         *ackhandler.SentPacketHandler
	received     *ackhandler.ReceivedPacketHandler

	// rxQueue holds validated payloads awaiting the transaction layer.
	rxQueue ringbuffer.RingBuffer[[]byte]
	// txFrameIsData says if the frame in flight carries a data packet, the
	// only kind that may be poisoned.
	txFrameIsData bool

	stats  Stats
	tracer logging.LinkTracer
	logger utils.Logger
}

// NewLink creates a new link engine in the Detect state.
func NewLink(config *Config) (*Link, error) {
	if config != nil {
		if err := config.Validate(); err != nil {
			return nil, err
		}
	}
	config = populateConfig(config)

	logger := utils.DefaultLogger.WithPrefix("link")
	l := &Link{
		config: config,
		logger: logger,
	}
	l.tracer = newStatsTracer(&l.stats, config.Tracer)
	l.machine = ltssm.New(orderedset.TS{
		Link: config.LinkNumber,
		Lane: config.LaneNumber,
		NFTS: config.NFTS,
		Rate: config.RateID,
	}, logger)
	l.generator = orderedset.NewGenerator(config.SkipInterval, config.SkipIntervalMax)
	l.detector = orderedset.NewDetector()
	l.packetizer = framing.NewPacketizer()
	l.depacketizer = framing.NewDepacketizer(l.detector)
	l.sent = ackhandler.NewSentPacketHandler(
		protocol.ByteCount(config.RetryBufferCapacity),
		uint64(config.AckTimeout),
		config.MaxRetryCount,
		l.tracer,
		logger,
	)
	l.received = ackhandler.NewReceivedPacketHandler(uint64(config.AckDelay), l.tracer, logger)
	return l, nil
}

// Send queues an opaque transaction layer payload for reliable delivery.
// It returns ErrRetryBufferFull when the retry buffer has no room; the
// caller stalls and retries, nothing is ever dropped.
func (l *Link) Send(payload []byte) error {
	_, err := l.sent.Send(payload)
	return err
}

// CanSend says if a payload of n bytes would be accepted right now.
func (l *Link) CanSend(n int) bool {
	return l.sent.CanSend(protocol.ByteCount(n))
}

// Receive returns the next delivered payload, if any. Payloads come out in
// exactly the order the partner sent them.
func (l *Link) Receive() ([]byte, bool) {
	if l.rxQueue.Empty() {
		return nil, false
	}
	return l.rxQueue.PopFront(), true
}

// PoisonTxFrame marks the data packet currently being framed as bad: the
// frame is terminated with the end-bad symbol and the receiver discards
// it. The packet stays in the retry buffer and is delivered intact by a
// later replay. It reports whether a data frame was in flight.
func (l *Link) PoisonTxFrame() bool {
	if !l.packetizer.Active() || !l.txFrameIsData {
		return false
	}
	l.packetizer.Poison()
	return true
}

// LinkUp says if the link is trained and data is flowing. It is the only
// persistent status signal visible to the transaction layer.
func (l *Link) LinkUp() bool { return l.machine.LinkUp() }

// State returns the current LTSSM state.
func (l *Link) State() logging.State { return l.machine.State() }

// Stats returns a snapshot of the engine's counters.
func (l *Link) Stats() Stats {
	s := l.stats
	s.State = l.machine.State()
	s.LinkUp = l.machine.LinkUp()
	s.RetryBufferBytes = int64(l.sent.BytesBuffered())
	s.RetryBufferPackets = l.sent.PacketsBuffered()
	return s
}

// Reset returns the LTSSM to Detect and clears all data link state,
// including the retry buffer.
func (l *Link) Reset() {
	from := l.machine.State()
	l.machine.Reset()
	if to := l.machine.State(); to != from {
		l.tracer.StateTransition(from, to)
	}
	l.sent.Reset()
	l.received.Reset()
	l.packetizer.Reset()
	l.depacketizer.Reset()
	l.rxQueue.Clear()
}

// Close closes the tracer. The Link must not be ticked afterwards.
func (l *Link) Close() error {
	l.tracer.Close()
	return nil
}

// Tick advances the engine by one link tick: it consumes one received
// symbol and produces one transmit symbol. The receive path runs first,
// then the LTSSM, then the transmit path, so that training traffic always
// preempts data framing.
func (l *Link) Tick(rx RxBus) TxBus {
	det := l.receive(rx)
	l.step(rx, det)
	l.sent.OnTick(l.machine.LinkUp())
	l.received.OnTick()
	return l.transmit()
}

func (l *Link) receive(rx RxBus) orderedset.Detection {
	if rx.ElecIdle {
		l.depacketizer.Reset()
		return orderedset.Detection{}
	}
	frame, err := l.depacketizer.Feed(rx.Symbol, rx.DecodeErr)
	if err != nil {
		l.tracer.FramingError()
		if l.logger.Debug() {
			l.logger.Debugf("framing error: %s", err)
		}
	}
	if frame != nil {
		l.handleFrame(frame)
	}

	det := l.detector.Poll()
	switch {
	case det.Skip:
		l.tracer.ReceivedOrderedSet(orderedset.KindSkip)
	case det.TS1:
		l.tracer.ReceivedOrderedSet(orderedset.KindTS1)
	case det.TS2:
		l.tracer.ReceivedOrderedSet(orderedset.KindTS2)
	case det.Unknown:
		l.tracer.UnknownOrderedSet()
	}
	return det
}

func (l *Link) handleFrame(frame *framing.Frame) {
	if !l.machine.LinkUp() {
		l.tracer.DroppedPacket(frame.Kind, protocol.ByteCount(len(frame.Raw)), logging.DropLinkDown)
		return
	}
	switch frame.Kind {
	case protocol.PacketKindDLLP:
		dllp, err := wire.ParseDLLP(frame.Raw)
		if err != nil {
			l.tracer.DroppedPacket(frame.Kind, protocol.ByteCount(len(frame.Raw)), logging.DropDLLPMalformed)
			return
		}
		l.sent.ReceivedDLLP(dllp)
	case protocol.PacketKindData:
		if payload := l.received.ReceivedPacket(frame.Raw); payload != nil {
			l.rxQueue.PushBack(payload)
		}
	default:
		panic("BUG: link: unknown frame kind")
	}
}

func (l *Link) step(rx RxBus, det orderedset.Detection) {
	wasUp := l.machine.LinkUp()
	from := l.machine.State()
	l.machine.Step(ltssm.Input{
		RxDetected: rx.Detected,
		RxElecIdle: rx.ElecIdle,
		TS1Seen:    det.TS1,
		TS2Seen:    det.TS2,
		TS:         det.TS,
	})
	if l.machine.LinkUp() && !wasUp {
		// clears the exhausted-budget condition before it is checked below
		l.sent.OnLinkUp()
	}
	if l.sent.LinkDown() && l.machine.State() == ltssm.StateL0 {
		// the data link layer exhausted its replay budget
		l.machine.DeclareDown()
	}
	if to := l.machine.State(); to != from {
		l.tracer.StateTransition(from, to)
	}
	isUp := l.machine.LinkUp()
	if wasUp && !isUp {
		// abort the frame in flight; the retry buffer replays it after
		// retraining
		l.packetizer.Reset()
	}
}

func (l *Link) transmit() TxBus {
	out := TxBus{Symbol: symbol.Idle, RateSelect: l.config.RateID}
	if l.machine.TxElecIdle() {
		out.ElecIdle = true
		return out
	}

	switch {
	case l.generator.Active():
		out.Symbol = l.generator.NextSymbol()
	case l.packetizer.Active():
		out.Symbol = l.packetizer.NextSymbol()
		l.generator.CountSymbol()
	default:
		out.Symbol = l.startUnit()
	}
	return out
}

// startUnit picks the next transmit unit at a unit boundary: a training
// sequence (strict priority), a scheduled skip set, a pending DLLP, a
// pending data packet, or logical idle.
func (l *Link) startUnit() Symbol {
	if kind, ts, ok := l.machine.SendTS(); ok {
		l.generator.StartTS(kind, ts)
		l.tracer.SentOrderedSet(kind)
		return l.generator.NextSymbol()
	}
	if l.generator.SkipDue() {
		l.generator.StartSkip()
		l.tracer.SentOrderedSet(orderedset.KindSkip)
		return l.generator.NextSymbol()
	}
	if !l.machine.LinkUp() {
		l.generator.CountSymbol()
		return symbol.Idle
	}
	if dllp, ok := l.received.PendingDLLP(); ok {
		l.tracer.SentDLLP(dllp.Type, dllp.Seq)
		l.packetizer.StartFrame(protocol.PacketKindDLLP, dllp.Append(nil))
		l.txFrameIsData = false
		l.generator.CountSymbol()
		return l.packetizer.NextSymbol()
	}
	if raw, _, ok := l.sent.PopFrame(); ok {
		l.packetizer.StartFrame(protocol.PacketKindData, raw)
		l.txFrameIsData = true
		l.generator.CountSymbol()
		return l.packetizer.NextSymbol()
	}
	l.generator.CountSymbol()
	return symbol.Idle
}
