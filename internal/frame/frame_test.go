package frame

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"pgregory.net/rapid"
)

func TestIdleFrameIsAllIdle(t *testing.T) {
	f := IdleFrame()
	for t2 := 0; t2 < TimeslotsPerChannel; t2++ {
		for c := 0; c < Channels; c++ {
			assert.Equal(t, SampleIdle, f.At(NewTimeslotAddress(c, t2)))
		}
	}
}

func TestFrameSetAtRoundTrip(t *testing.T) {
	rapid.Check(t, func(rt *rapid.T) {
		f := IdleFrame()
		addr := NewTimeslotAddress(
			rapid.IntRange(0, Channels-1).Draw(rt, "channel"),
			rapid.IntRange(0, TimeslotsPerChannel-1).Draw(rt, "timeslot"),
		)
		sample := Sample(rapid.IntRange(0, 255).Draw(rt, "sample"))
		f.Set(addr, sample)
		assert.Equal(rt, sample, f.At(addr))
	})
}

func TestPutGetFrameRoundTrip(t *testing.T) {
	rapid.Check(t, func(rt *rapid.T) {
		var f Frame
		for ts := 0; ts < TimeslotsPerChannel; ts++ {
			for c := 0; c < Channels; c++ {
				f.Timeslot[ts][c] = Sample(rapid.IntRange(0, 255).Draw(rt, "s"))
			}
		}
		buf := make([]byte, FrameBytes)
		PutFrame(buf, f)
		got := GetFrame(buf)
		assert.Equal(rt, f, got)
	})
}

func TestParseInPacketRejectsShortPacket(t *testing.T) {
	_, _, err := ParseInPacket(make([]byte, RxUSBReportBytes-1))
	assert.ErrorIs(t, err, ErrShortPacket)
}

func TestParseInPacketRejectsMisalignedPayload(t *testing.T) {
	data := make([]byte, RxUSBReportBytes+RxFrameBytes+1)
	_, _, err := ParseInPacket(data)
	assert.ErrorIs(t, err, ErrShortPacket)
}

// TestParseInPacketRoundTrip builds a synthetic IN packet with K frames
// and a trailing report, then checks ParseInPacket recovers exactly the
// same frames and report, consuming exactly the packet's length (no
// partial parse).
func TestParseInPacketRoundTrip(t *testing.T) {
	rapid.Check(t, func(rt *rapid.T) {
		k := rapid.IntRange(0, 8).Draw(rt, "k")
		frames := make([]RxFrame, k)
		for i := range frames {
			frames[i] = RxFrame{
				Frame: IdleFrame(),
				Report: RxFrameReport{
					FrameCount: uint32(rapid.IntRange(0, 1<<30).Draw(rt, "fc")),
					MFBits:     uint8(rapid.IntRange(0, 255).Draw(rt, "mf")),
				},
			}
		}
		report := RxUSBReport{
			SOFCount:             uint32(rapid.IntRange(0, 1<<30).Draw(rt, "sof")),
			FIFORxLevel:          uint8(rapid.IntRange(0, 255).Draw(rt, "rxl")),
			FIFOTxLevel:          uint8(rapid.IntRange(0, 255).Draw(rt, "txl")),
			FIFORxUnderflowCount: uint16(rapid.IntRange(0, 65535).Draw(rt, "ruf")),
			FIFOTxOverflowCount:  uint16(rapid.IntRange(0, 65535).Draw(rt, "tof")),
			SequenceCount:        uint8(rapid.IntRange(0, 255).Draw(rt, "seq")),
		}

		buf := make([]byte, k*RxFrameBytes+RxUSBReportBytes)
		for i, f := range frames {
			PutRxFrame(buf[i*RxFrameBytes:], f)
		}
		PutRxUSBReport(buf[k*RxFrameBytes:], report)

		gotFrames, gotReport, err := ParseInPacket(buf)
		require.NoError(rt, err)
		assert.Equal(rt, frames, gotFrames)
		assert.Equal(rt, report, gotReport)
	})
}

func TestBuildOutPacketLengthMatchesOutPacketLength(t *testing.T) {
	rapid.Check(t, func(rt *rapid.T) {
		k := rapid.IntRange(0, 8).Draw(rt, "k")
		frames := make([]TxFrame, k)
		for i := range frames {
			frames[i] = TxFrame{Frame: IdleFrame()}
		}
		buf := make([]byte, OutPacketLength(k))
		n := BuildOutPacket(buf, TxUSBReport{}, frames)
		assert.Equal(rt, OutPacketLength(k), n)
	})
}

func TestBuildOutPacketRoundTrip(t *testing.T) {
	report := TxUSBReport{FrameCount: 42}
	frames := []TxFrame{
		{Report: TxFrameReport{FrameCount: 1}, Frame: IdleFrame()},
		{Report: TxFrameReport{FrameCount: 2}, Frame: IdleFrame()},
	}
	buf := make([]byte, OutPacketLength(len(frames)))
	n := BuildOutPacket(buf, report, frames)
	require.Equal(t, len(buf), n)

	gotReport := GetTxUSBReport(buf)
	assert.Equal(t, report, gotReport)

	offset := TxUSBReportBytes
	for _, want := range frames {
		got := GetTxFrame(buf[offset:])
		assert.Equal(t, want, got)
		offset += TxFrameBytes
	}
}
