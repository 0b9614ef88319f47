package orderedset

import (
	"testing"

	"github.com/mithro/litepcie-go/internal/symbol"

	"github.com/stretchr/testify/require"
)

func drain(t *testing.T, g *Generator) []symbol.Symbol {
	t.Helper()
	var syms []symbol.Symbol
	for g.Active() {
		syms = append(syms, g.NextSymbol())
	}
	return syms
}

func TestGenerateSkipSet(t *testing.T) {
	g := NewGenerator(16, 16)
	require.False(t, g.Active())
	g.StartSkip()
	syms := drain(t, g)
	require.Len(t, syms, SkipLen)
	require.True(t, syms[0].IsK(symbol.COM))
	for _, s := range syms[1:] {
		require.True(t, s.IsK(symbol.SKP))
	}
}

func TestGenerateTS(t *testing.T) {
	g := NewGenerator(16, 16)
	ts := TS{Link: 1, Lane: 2, NFTS: 0xff, Rate: 0x02, Ctrl: 0}
	g.StartTS(KindTS1, ts)
	syms := drain(t, g)
	require.Len(t, syms, TSLen)
	require.True(t, syms[0].IsK(symbol.COM))
	require.Equal(t, symbol.Data(1), syms[1])
	require.Equal(t, symbol.Data(2), syms[2])
	require.Equal(t, symbol.Data(0xff), syms[3])
	require.Equal(t, symbol.Data(0x02), syms[4])
	for _, s := range syms[6:] {
		require.Equal(t, symbol.Data(symbol.TS1ID), s)
	}

	g.StartTS(KindTS2, ts)
	syms = drain(t, g)
	for _, s := range syms[6:] {
		require.Equal(t, symbol.Data(symbol.TS2ID), s)
	}
}

func TestSkipScheduleFixedInterval(t *testing.T) {
	g := NewGenerator(16, 16)
	for i := 0; i < 15; i++ {
		require.False(t, g.SkipDue())
		g.CountSymbol()
	}
	require.False(t, g.SkipDue())
	g.CountSymbol()
	require.True(t, g.SkipDue())
	g.StartSkip()
	require.False(t, g.SkipDue())
}

func TestSkipScheduleRandomizedWindow(t *testing.T) {
	g := NewGenerator(1180, 1538)
	for run := 0; run < 20; run++ {
		n := 0
		for !g.SkipDue() {
			g.CountSymbol()
			n++
		}
		require.GreaterOrEqual(t, n, 1180)
		require.LessOrEqual(t, n, 1538)
		g.StartSkip()
		drain(t, g)
	}
}

func feedSet(d *Detector, syms []symbol.Symbol) {
	for _, s := range syms {
		d.Feed(s)
	}
}

func TestDetectSkip(t *testing.T) {
	d := NewDetector()
	feedSet(d, appendSkip(nil))
	require.False(t, d.Collecting())
	det := d.Poll()
	require.True(t, det.Skip)
	require.False(t, det.TS1 || det.TS2 || det.Unknown)
	// the flag is one-shot
	require.Equal(t, Detection{}, d.Poll())
}

func TestDetectTS1AndTS2(t *testing.T) {
	d := NewDetector()
	ts := TS{Link: 3, Lane: 0, NFTS: 0x80, Rate: 0x02}
	feedSet(d, appendTS(nil, ts, symbol.TS1ID))
	det := d.Poll()
	require.True(t, det.TS1)
	require.False(t, det.TS2)
	require.Equal(t, ts, det.TS)

	feedSet(d, appendTS(nil, ts, symbol.TS2ID))
	det = d.Poll()
	require.True(t, det.TS2)
	require.Equal(t, ts, det.TS)
}

func TestDetectUnknownSet(t *testing.T) {
	d := NewDetector()
	syms := appendTS(nil, TS{}, 0x00) // identifier matches neither TS1 nor TS2
	feedSet(d, syms)
	det := d.Poll()
	require.True(t, det.Unknown)
	require.False(t, det.Skip || det.TS1 || det.TS2)
}

func TestDetectInconsistentIdentifier(t *testing.T) {
	d := NewDetector()
	syms := appendTS(nil, TS{}, symbol.TS1ID)
	syms[tsIDLast] = symbol.Data(symbol.TS2ID)
	feedSet(d, syms)
	require.True(t, d.Poll().Unknown)
}

func TestDetectorReset(t *testing.T) {
	d := NewDetector()
	d.Feed(symbol.K(symbol.COM))
	require.True(t, d.Collecting())
	d.Reset()
	require.False(t, d.Collecting())
	require.Equal(t, Detection{}, d.Poll())
}

func TestDetectorRequiresCOM(t *testing.T) {
	d := NewDetector()
	require.Panics(t, func() { d.Feed(symbol.Data(0x00)) })
}
