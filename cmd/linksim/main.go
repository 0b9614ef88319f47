// Command linksim runs two link engines against each other through an
// in-process symbol pipe: training, bidirectional traffic, optional fault
// injection, with Prometheus metrics and qlog event output.
package main

import (
	"bytes"
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/mithro/litepcie-go"
	"github.com/mithro/litepcie-go/internal/symbol"
	"github.com/mithro/litepcie-go/logging"
	"github.com/mithro/litepcie-go/metrics"
	"github.com/mithro/litepcie-go/qlog"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"golang.org/x/sync/errgroup"
)

func main() {
	configPath := flag.String("config", "", "path to a config.toml")
	flag.Parse()

	cfg, err := loadSimConfig(*configPath)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	if err := run(cfg); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func run(cfg simConfig) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	ctx, cancel := context.WithCancel(ctx)
	g, ctx := errgroup.WithContext(ctx)

	if cfg.MetricsAddr != "" {
		mux := http.NewServeMux()
		mux.Handle("/metrics", promhttp.Handler())
		server := &http.Server{Addr: cfg.MetricsAddr, Handler: mux}
		g.Go(func() error {
			if err := server.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
				return err
			}
			return nil
		})
		g.Go(func() error {
			<-ctx.Done()
			return server.Shutdown(context.Background())
		})
	}

	g.Go(func() error {
		defer cancel()
		return runSim(ctx, cfg)
	})
	return g.Wait()
}

func newLink(cfg simConfig, name string) (*litepcie.Link, error) {
	var tracers []logging.LinkTracer
	if cfg.MetricsAddr != "" {
		tracers = append(tracers, metrics.NewTracer())
	}
	if cfg.QlogDir != "" {
		f, err := os.Create(filepath.Join(cfg.QlogDir, name+".qlog"))
		if err != nil {
			return nil, err
		}
		tracers = append(tracers, qlog.NewTracer(f))
	}
	return litepcie.NewLink(&litepcie.Config{
		SkipInterval:        cfg.SkipInterval,
		SkipIntervalMax:     cfg.SkipIntervalMax,
		RetryBufferCapacity: cfg.RetryBufferCapacity,
		AckDelay:            cfg.AckDelay,
		AckTimeout:          cfg.AckTimeout,
		MaxRetryCount:       cfg.MaxRetryCount,
		Tracer:              logging.NewMultiplexedTracer(tracers...),
	})
}

// A side is one link engine plus its traffic state.
type side struct {
	name string
	link *litepcie.Link

	inFlight []litepcie.RxBus
	sent     int
	received int
}

func (s *side) payload(i, size int) []byte {
	payload := bytes.Repeat([]byte{byte(i)}, size)
	payload[0] = byte(i >> 8)
	return payload
}

// pump queues fresh payloads while the retry buffer has room, and checks
// everything the partner delivered.
func (s *side) pump(partner *side, cfg simConfig) error {
	for s.sent < cfg.PacketCount && s.link.CanSend(cfg.PayloadSize) {
		if err := s.link.Send(s.payload(s.sent, cfg.PayloadSize)); err != nil {
			return fmt.Errorf("%s: send: %w", s.name, err)
		}
		s.sent++
	}
	for {
		payload, ok := partner.link.Receive()
		if !ok {
			return nil
		}
		if want := s.payload(partner.received, cfg.PayloadSize); !bytes.Equal(payload, want) {
			return fmt.Errorf("%s: payload %d corrupted in delivery", partner.name, partner.received)
		}
		partner.received++
	}
}

// A corrupter flips one bit in the first data symbol of every n-th frame.
type corrupter struct {
	every  int
	frames int
	armed  bool
	count  int
}

func (c *corrupter) apply(rx litepcie.RxBus) litepcie.RxBus {
	if c.every == 0 || rx.ElecIdle {
		return rx
	}
	if rx.Symbol.IsK(symbol.STP) {
		c.frames++
		c.armed = c.frames%c.every == 0
		return rx
	}
	if c.armed && !rx.Symbol.Control {
		rx.Symbol.Value ^= 0x01
		c.armed = false
		c.count++
	}
	return rx
}

func runSim(ctx context.Context, cfg simConfig) error {
	linkA, err := newLink(cfg, "a")
	if err != nil {
		return err
	}
	defer linkA.Close()
	linkB, err := newLink(cfg, "b")
	if err != nil {
		return err
	}
	defer linkB.Close()

	a := &side{name: "a", link: linkA}
	b := &side{name: "b", link: linkB}
	corrupt := &corrupter{every: cfg.CorruptEvery}

	tick := func() {
		rxA := pop(&a.inFlight)
		rxB := corrupt.apply(pop(&b.inFlight))
		txA := a.link.Tick(rxA)
		txB := b.link.Tick(rxB)
		b.inFlight = append(b.inFlight, litepcie.RxBus{Symbol: txA.Symbol, ElecIdle: txA.ElecIdle, Detected: true})
		a.inFlight = append(a.inFlight, litepcie.RxBus{Symbol: txB.Symbol, ElecIdle: txB.ElecIdle, Detected: true})
	}

	ticks := 0
	for ; ticks < cfg.Ticks; ticks++ {
		if ticks%4096 == 0 {
			select {
			case <-ctx.Done():
				return ctx.Err()
			default:
			}
		}
		tick()
		if a.link.LinkUp() && b.link.LinkUp() {
			if err := a.pump(b, cfg); err != nil {
				return err
			}
			if err := b.pump(a, cfg); err != nil {
				return err
			}
		}
		if a.received == cfg.PacketCount && b.received == cfg.PacketCount &&
			a.link.Stats().RetryBufferPackets == 0 && b.link.Stats().RetryBufferPackets == 0 {
			break
		}
	}

	if a.received != cfg.PacketCount || b.received != cfg.PacketCount {
		return fmt.Errorf("simulation incomplete after %d ticks: a received %d/%d, b received %d/%d",
			ticks, a.received, cfg.PacketCount, b.received, cfg.PacketCount)
	}

	printSummary(ticks, corrupt, a, b)
	return nil
}

func pop(q *[]litepcie.RxBus) litepcie.RxBus {
	if len(*q) == 0 {
		return litepcie.RxBus{ElecIdle: true, Detected: true}
	}
	rx := (*q)[0]
	*q = (*q)[1:]
	return rx
}

func printSummary(ticks int, corrupt *corrupter, sides ...*side) {
	fmt.Printf("completed in %d ticks, %d frames corrupted\n", ticks, corrupt.count)
	for _, s := range sides {
		stats := s.link.Stats()
		fmt.Printf("%s: state=%s sent=%d received=%d replays=%d crc_errors=%d naks_sent=%d link_downs=%d\n",
			s.name, stats.State, stats.PacketsSent, s.received, stats.Replays,
			stats.CRCErrors, stats.NAKsSent, stats.LinkDownEvents)
	}
}
