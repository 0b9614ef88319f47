// Package metrics provides a link tracer exposing Prometheus metrics.
package metrics

import (
	"errors"

	"github.com/mithro/litepcie-go/logging"

	"github.com/prometheus/client_golang/prometheus"
)

const metricNamespace = "litepcie"

var (
	stateTransitions = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: metricNamespace,
			Name:      "ltssm_transitions_total",
			Help:      "LTSSM state transitions",
		},
		[]string{"from", "to"},
	)
	linkDowns = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: metricNamespace,
			Name:      "link_down_events_total",
			Help:      "times the data link layer declared the link down",
		},
	)
	packetsSent = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: metricNamespace,
			Name:      "sent_packets_total",
			Help:      "data link packets sent, replays included",
		},
	)
	bytesSent = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: metricNamespace,
			Name:      "sent_bytes_total",
			Help:      "raw data link packet bytes sent",
		},
	)
	packetsReceived = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: metricNamespace,
			Name:      "received_packets_total",
			Help:      "data link packets received and delivered",
		},
	)
	bytesReceived = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: metricNamespace,
			Name:      "received_bytes_total",
			Help:      "raw data link packet bytes received and delivered",
		},
	)
	packetsDropped = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: metricNamespace,
			Name:      "received_packets_dropped_total",
			Help:      "received packets dropped",
		},
		[]string{"reason"},
	)
	dllpsSent = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: metricNamespace,
			Name:      "sent_dllps_total",
			Help:      "control packets sent",
		},
		[]string{"type"},
	)
	dllpsReceived = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: metricNamespace,
			Name:      "received_dllps_total",
			Help:      "control packets received",
		},
		[]string{"type"},
	)
	replays = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: metricNamespace,
			Name:      "replays_total",
			Help:      "retry buffer replays",
		},
	)
	orderedSetsSent = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: metricNamespace,
			Name:      "sent_ordered_sets_total",
			Help:      "ordered sets sent",
		},
		[]string{"kind"},
	)
	orderedSetsReceived = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: metricNamespace,
			Name:      "received_ordered_sets_total",
			Help:      "ordered sets received",
		},
		[]string{"kind"},
	)
	unknownOrderedSets = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: metricNamespace,
			Name:      "unknown_ordered_sets_total",
			Help:      "ordered sets that could not be classified",
		},
	)
	framingErrors = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: metricNamespace,
			Name:      "framing_errors_total",
			Help:      "symbol stream framing errors",
		},
	)
)

// NewTracer creates a link tracer using the default Prometheus registerer.
// It can be set on the Tracer field of the link Config.
func NewTracer() logging.LinkTracer {
	return NewTracerWithRegisterer(prometheus.DefaultRegisterer)
}

// NewTracerWithRegisterer creates a link tracer using a given Prometheus
// registerer.
func NewTracerWithRegisterer(registerer prometheus.Registerer) logging.LinkTracer {
	for _, c := range [...]prometheus.Collector{
		stateTransitions,
		linkDowns,
		packetsSent,
		bytesSent,
		packetsReceived,
		bytesReceived,
		packetsDropped,
		dllpsSent,
		dllpsReceived,
		replays,
		orderedSetsSent,
		orderedSetsReceived,
		unknownOrderedSets,
		framingErrors,
	} {
		if err := registerer.Register(c); err != nil {
			if ok := errors.As(err, &prometheus.AlreadyRegisteredError{}); !ok {
				panic(err)
			}
		}
	}
	return &tracer{}
}

type tracer struct{}

var _ logging.LinkTracer = &tracer{}

func (t *tracer) StateTransition(from, to logging.State) {
	stateTransitions.WithLabelValues(from.String(), to.String()).Inc()
}

func (t *tracer) LinkDeclaredDown() { linkDowns.Inc() }

func (t *tracer) SentPacket(_ logging.SequenceNumber, size logging.ByteCount) {
	packetsSent.Inc()
	bytesSent.Add(float64(size))
}

func (t *tracer) ReceivedPacket(_ logging.SequenceNumber, size logging.ByteCount) {
	packetsReceived.Inc()
	bytesReceived.Add(float64(size))
}

func (t *tracer) DroppedPacket(_ logging.PacketKind, _ logging.ByteCount, reason logging.PacketDropReason) {
	packetsDropped.WithLabelValues(reason.String()).Inc()
}

func (t *tracer) SentDLLP(typ logging.DLLPType, _ logging.SequenceNumber) {
	dllpsSent.WithLabelValues(typ.String()).Inc()
}

func (t *tracer) ReceivedDLLP(typ logging.DLLPType, _ logging.SequenceNumber) {
	dllpsReceived.WithLabelValues(typ.String()).Inc()
}

func (t *tracer) StartedReplay(_ logging.SequenceNumber, _ int) { replays.Inc() }

func (t *tracer) SentOrderedSet(kind logging.OrderedSetKind) {
	orderedSetsSent.WithLabelValues(kind.String()).Inc()
}

func (t *tracer) ReceivedOrderedSet(kind logging.OrderedSetKind) {
	orderedSetsReceived.WithLabelValues(kind.String()).Inc()
}

func (t *tracer) UnknownOrderedSet() { unknownOrderedSets.Inc() }

func (t *tracer) FramingError() { framingErrors.Inc() }

func (t *tracer) Close() {}
