package orderedset

import (
	"crypto/rand"
	"encoding/binary"
	mrand "math/rand"

	"github.com/mithro/litepcie-go/internal/symbol"
)

// The Generator produces ordered sets on the transmit symbol stream.
// Training sequences are started on command and take priority over
// everything else; skip sets are scheduled by a symbol counter with a
// randomized interval, so that the two link partners don't lock step.
type Generator struct {
	rand        *mrand.Rand
	minInterval int
	maxInterval int

	symbolsSinceSkip int
	nextSkipAt       int

	pending []symbol.Symbol
}

// NewGenerator creates a Generator emitting a skip set every minInterval to
// maxInterval symbols.
func NewGenerator(minInterval, maxInterval int) *Generator {
	b := make([]byte, 8)
	rand.Read(b) // it's not the end of the world if we don't get perfect random here
	g := &Generator{
		rand:        mrand.New(mrand.NewSource(int64(binary.LittleEndian.Uint64(b)))),
		minInterval: minInterval,
		maxInterval: maxInterval,
	}
	g.scheduleSkip()
	return g
}

func (g *Generator) scheduleSkip() {
	g.symbolsSinceSkip = 0
	g.nextSkipAt = g.minInterval
	if g.maxInterval > g.minInterval {
		g.nextSkipAt += g.rand.Intn(g.maxInterval - g.minInterval + 1)
	}
}

// Active says if the generator is in the middle of emitting a set.
// While active, the generator owns the transmit stream.
func (g *Generator) Active() bool { return len(g.pending) > 0 }

// NextSymbol returns the next symbol of the set being emitted.
// It must only be called while the generator is Active.
func (g *Generator) NextSymbol() symbol.Symbol {
	if !g.Active() {
		panic("BUG: orderedset: NextSymbol called on idle generator")
	}
	s := g.pending[0]
	g.pending = g.pending[1:]
	return s
}

// StartTS begins emitting a training sequence. Any pending set is replaced:
// training traffic has strict priority.
func (g *Generator) StartTS(kind Kind, ts TS) {
	id := symbol.TS1ID
	if kind == KindTS2 {
		id = symbol.TS2ID
	}
	g.pending = appendTS(g.pending[:0], ts, id)
}

// SkipDue says if the skip interval has elapsed and a skip set should be
// emitted at the next unit boundary.
func (g *Generator) SkipDue() bool {
	return g.symbolsSinceSkip >= g.nextSkipAt
}

// StartSkip begins emitting a skip set and schedules the next one.
func (g *Generator) StartSkip() {
	g.pending = appendSkip(g.pending[:0])
	g.scheduleSkip()
}

// CountSymbol records one non-skip outbound symbol against the skip schedule.
func (g *Generator) CountSymbol() {
	g.symbolsSinceSkip++
}
