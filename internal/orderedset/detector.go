package orderedset

import "github.com/mithro/litepcie-go/internal/symbol"

// A Detection is the result of feeding symbols to the Detector, valid for
// one poll. At most one of Skip, TS1, TS2 and Unknown is set.
type Detection struct {
	Skip    bool
	TS1     bool
	TS2     bool
	Unknown bool
	// TS holds the payload fields of a detected training sequence.
	TS TS
}

// The Detector recognizes ordered sets on the receive symbol stream. The
// caller hands it every symbol following a COM; the detector consumes the
// set and reports the classification, so that no ordered set bytes ever
// reach the depacketizer.
type Detector struct {
	buf []symbol.Symbol

	detection Detection
}

// NewDetector creates a Detector.
func NewDetector() *Detector {
	return &Detector{buf: make([]symbol.Symbol, 0, TSLen)}
}

// Collecting says if the detector is in the middle of an ordered set and
// owns the receive stream.
func (d *Detector) Collecting() bool { return len(d.buf) > 0 }

// Feed hands one symbol to the detector. The first symbol of a set must be
// a COM control symbol; the caller checks that before routing symbols here.
func (d *Detector) Feed(s symbol.Symbol) {
	if !d.Collecting() && !s.IsK(symbol.COM) {
		panic("BUG: orderedset: set does not start with COM")
	}
	d.buf = append(d.buf, s)

	if len(d.buf) == SkipLen {
		if d.buf[1].IsK(symbol.SKP) && d.buf[2].IsK(symbol.SKP) && d.buf[3].IsK(symbol.SKP) {
			d.detection = Detection{Skip: true}
			d.buf = d.buf[:0]
		}
		return
	}
	if len(d.buf) < TSLen {
		return
	}

	d.detection = d.classifyTS()
	d.buf = d.buf[:0]
}

func (d *Detector) classifyTS() Detection {
	id := d.buf[tsIDFirst]
	if id.Control {
		return Detection{Unknown: true}
	}
	for i := tsIDFirst + 1; i <= tsIDLast; i++ {
		if d.buf[i] != id {
			return Detection{Unknown: true}
		}
	}
	det := Detection{
		TS: TS{
			Link: d.buf[1].Value,
			Lane: d.buf[2].Value,
			NFTS: d.buf[3].Value,
			Rate: d.buf[4].Value,
			Ctrl: d.buf[5].Value,
		},
	}
	switch id.Value {
	case symbol.TS1ID:
		det.TS1 = true
	case symbol.TS2ID:
		det.TS2 = true
	default:
		return Detection{Unknown: true}
	}
	return det
}

// Poll returns the detection made since the last poll, and clears it.
func (d *Detector) Poll() Detection {
	det := d.detection
	d.detection = Detection{}
	return det
}

// Reset discards a partially collected set, e.g. after electrical idle.
func (d *Detector) Reset() {
	d.buf = d.buf[:0]
	d.detection = Detection{}
}
