package signaling

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tedium-project/tedium-host/internal/frame"
)

// buildFrameWithABCD builds a frame where channel 0, timeslot 0 carries
// the given low bit (the RBS-stolen bit) and every other sample is idle.
func buildFrameWithABCD(bit bool) frame.Frame {
	f := frame.IdleFrame()
	sample := frame.Sample(0xFE) // low bit clear
	if bit {
		sample = 0xFF // low bit set
	}
	f.Set(frame.NewTimeslotAddress(0, 0), sample)
	return f
}

// feedSuperframe drives the processor through one 24-frame superframe,
// setting the RBS-stolen low bit of timeslot (0,0) at all four RBS
// positions to the bits of abcd (MSB-first: A,B,C,D), and signals the
// mf_bits boundary on the first frame.
func feedSuperframe(p *Processor, startFrameCount uint32, abcd uint8, markBoundary bool) {
	bitAt := func(position int) bool {
		switch position {
		case 0:
			return abcd&0b1000 != 0
		case 1:
			return abcd&0b0100 != 0
		case 2:
			return abcd&0b0010 != 0
		default:
			return abcd&0b0001 != 0
		}
	}
	for fis := 0; fis < 24; fis++ {
		mfBits := uint8(0)
		if fis == 0 && markBoundary {
			mfBits = 0x01
		}
		var bit bool
		switch fis {
		case 5:
			bit = bitAt(0)
		case 11:
			bit = bitAt(1)
		case 17:
			bit = bitAt(2)
		case 23:
			bit = bitAt(3)
		}
		p.ProcessFrame(InternalFrame{
			Frame:      buildFrameWithABCD(bit),
			FrameCount: startFrameCount + uint32(fis),
			MFBits:     mfBits,
		})
	}
}

// TestRobbedBitOffHookEdge reproduces the scenario of spec.md §8: inject
// A=B=C=D=1 for two consecutive superframes after four superframes of
// 0101, expecting one RobbedBitState(t, (0,0), 0b1111) change with t
// equal to the first of the two matching superframes.
func TestRobbedBitOffHookEdge(t *testing.T) {
	var changes []Change
	var addrs []frame.TimeslotAddress
	p := NewProcessor(func(c Change, addr frame.TimeslotAddress) {
		changes = append(changes, c)
		addrs = append(addrs, addr)
	}, nil, nil)

	frameCount := uint32(0)
	for i := 0; i < 4; i++ {
		feedSuperframe(p, frameCount, 0b0101, i == 0)
		frameCount += 24
	}
	firstOffHookStart := frameCount
	feedSuperframe(p, frameCount, 0b1111, false)
	frameCount += 24
	feedSuperframe(p, frameCount, 0b1111, false)

	require.Len(t, changes, 1)
	assert.Equal(t, uint8(0b1111), changes[0].ABCD)
	assert.Equal(t, firstOffHookStart, changes[0].FrameCount)
	assert.Equal(t, frame.NewTimeslotAddress(0, 0), addrs[0])
}

func TestFrameDropDetected(t *testing.T) {
	var dropped uint32
	p := NewProcessor(nil, nil, func(n uint32) {
		dropped = n
	})
	p.ProcessFrame(InternalFrame{Frame: frame.IdleFrame(), FrameCount: 0})
	p.ProcessFrame(InternalFrame{Frame: frame.IdleFrame(), FrameCount: 5})
	assert.Equal(t, uint32(4), dropped)
}
