package ringbuffer

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestPushPopFIFO(t *testing.T) {
	var r RingBuffer[int]
	require.True(t, r.Empty())
	for i := 0; i < 10; i++ {
		r.PushBack(i)
	}
	require.Equal(t, 10, r.Len())
	require.Equal(t, 0, r.PeekFront())
	for i := 0; i < 10; i++ {
		require.Equal(t, i, r.PopFront())
	}
	require.True(t, r.Empty())
}

func TestGrowsAroundWrap(t *testing.T) {
	var r RingBuffer[int]
	r.Init(4)
	for i := 0; i < 4; i++ {
		r.PushBack(i)
	}
	require.Equal(t, 0, r.PopFront())
	require.Equal(t, 1, r.PopFront())
	// wrap the tail, then force a grow
	for i := 4; i < 10; i++ {
		r.PushBack(i)
	}
	for i := 2; i < 10; i++ {
		require.Equal(t, i, r.PopFront())
	}
}

func TestIterateStopsEarly(t *testing.T) {
	var r RingBuffer[int]
	for i := 0; i < 5; i++ {
		r.PushBack(i)
	}
	var seen []int
	r.Iterate(func(v int) bool {
		seen = append(seen, v)
		return v < 2
	})
	require.Equal(t, []int{0, 1, 2}, seen)
}

func TestClear(t *testing.T) {
	var r RingBuffer[int]
	r.PushBack(1)
	r.PushBack(2)
	r.Clear()
	require.True(t, r.Empty())
	require.Zero(t, r.Len())
	r.PushBack(3)
	require.Equal(t, 3, r.PopFront())
}

func TestPanicsOnEmpty(t *testing.T) {
	var r RingBuffer[int]
	require.Panics(t, func() { r.PopFront() })
	require.Panics(t, func() { r.PeekFront() })
}
