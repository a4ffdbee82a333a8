package eventbus

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"pgregory.net/rapid"
)

func TestRingCapacityRoundsUpToPowerOfTwo(t *testing.T) {
	r := NewRing[int](40)
	assert.Equal(t, 64, r.Cap())
}

func TestRingPushPopFIFOOrder(t *testing.T) {
	r := NewRing[int](8)
	for i := 0; i < 5; i++ {
		require.True(t, r.Push(i))
	}
	for i := 0; i < 5; i++ {
		v, ok := r.Pop()
		require.True(t, ok)
		assert.Equal(t, i, v)
	}
	_, ok := r.Pop()
	assert.False(t, ok)
}

func TestRingPushFailsWhenFull(t *testing.T) {
	r := NewRing[int](4)
	for i := 0; i < 4; i++ {
		require.True(t, r.Push(i))
	}
	assert.False(t, r.Push(99))
}

func TestRingConcurrentSPSCPreservesOrder(t *testing.T) {
	const n = 20000
	r := NewRing[int](64)
	var wg sync.WaitGroup
	wg.Add(2)

	go func() {
		defer wg.Done()
		for i := 0; i < n; i++ {
			for !r.Push(i) {
			}
		}
	}()

	received := make([]int, 0, n)
	go func() {
		defer wg.Done()
		for len(received) < n {
			if v, ok := r.Pop(); ok {
				received = append(received, v)
			}
		}
	}()

	wg.Wait()
	for i, v := range received {
		assert.Equal(t, i, v)
	}
}

func TestRingLenTracksPushesAndPops(t *testing.T) {
	rapid.Check(t, func(rt *rapid.T) {
		r := NewRing[int](16)
		pushes := rapid.IntRange(0, 16).Draw(rt, "pushes")
		for i := 0; i < pushes; i++ {
			r.Push(i)
		}
		assert.Equal(rt, pushes, r.Len())
	})
}
