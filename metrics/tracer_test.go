package metrics

import (
	"testing"

	"github.com/mithro/litepcie-go/logging"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/require"
)

func TestTracerCountsEvents(t *testing.T) {
	tr := NewTracerWithRegisterer(prometheus.NewRegistry())

	sentBefore := testutil.ToFloat64(packetsSent)
	bytesBefore := testutil.ToFloat64(bytesSent)
	tr.SentPacket(1, 70)
	require.Equal(t, sentBefore+1, testutil.ToFloat64(packetsSent))
	require.Equal(t, bytesBefore+70, testutil.ToFloat64(bytesSent))

	droppedBefore := testutil.ToFloat64(packetsDropped.WithLabelValues("crc_error"))
	tr.DroppedPacket(logging.PacketKind(0), 70, logging.DropCRCError)
	require.Equal(t, droppedBefore+1, testutil.ToFloat64(packetsDropped.WithLabelValues("crc_error")))

	transitionsBefore := testutil.ToFloat64(stateTransitions.WithLabelValues("Polling", "Configuration"))
	tr.StateTransition(logging.State(1), logging.State(2))
	require.Equal(t, transitionsBefore+1, testutil.ToFloat64(stateTransitions.WithLabelValues("Polling", "Configuration")))

	replaysBefore := testutil.ToFloat64(replays)
	tr.StartedReplay(42, 3)
	require.Equal(t, replaysBefore+1, testutil.ToFloat64(replays))
}

func TestTracerDoubleRegistration(t *testing.T) {
	registry := prometheus.NewRegistry()
	require.NotPanics(t, func() {
		NewTracerWithRegisterer(registry)
		NewTracerWithRegisterer(registry)
	})
}
