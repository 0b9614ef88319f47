package wire

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestDLLPRoundTrip(t *testing.T) {
	for _, typ := range []DLLPType{DLLPAck, DLLPNak} {
		d := &DLLP{Type: typ, Seq: 4095}
		b := d.Append(nil)
		require.Len(t, b, DLLPLen)
		parsed, err := ParseDLLP(b)
		require.NoError(t, err)
		require.Equal(t, d, parsed)
	}
}

func TestDLLPLength(t *testing.T) {
	d := &DLLP{Type: DLLPAck, Seq: 1}
	b := d.Append(nil)
	_, err := ParseDLLP(b[:DLLPLen-1])
	require.ErrorIs(t, err, ErrDLLPLength)
	_, err = ParseDLLP(append(b, 0))
	require.ErrorIs(t, err, ErrDLLPLength)
}

func TestDLLPCorruption(t *testing.T) {
	d := &DLLP{Type: DLLPNak, Seq: 77}
	b := d.Append(nil)
	b[2] ^= 0x01
	_, err := ParseDLLP(b)
	require.ErrorIs(t, err, ErrCRCMismatch)
}

func TestDLLPUnknownType(t *testing.T) {
	b := appendChecksummed([]byte{0x20, 0, 0, 1})
	_, err := ParseDLLP(b)
	require.ErrorIs(t, err, ErrDLLPType)
}

func TestDLLPTypeString(t *testing.T) {
	require.Equal(t, "ACK", DLLPAck.String())
	require.Equal(t, "NAK", DLLPNak.String())
	require.Equal(t, "unknown (0x20)", DLLPType(0x20).String())
}
