package interrupt

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"pgregory.net/rapid"
)

func newReaderFrom(b []byte) *bytes.Reader {
	return bytes.NewReader(b)
}

func TestFromBytesMinimal(t *testing.T) {
	// channel 3, BISR all clear: no subtrees, exactly 2 bytes consumed.
	st, err := FromBytes([]byte{3, 0x00})
	require.NoError(t, err)
	assert.Equal(t, 3, st.ChannelIndex)
	assert.False(t, st.BISR.LBCODE)
	assert.Nil(t, st.LBCode)
	assert.Nil(t, st.HDLC)
	assert.Nil(t, st.Slip)
	assert.Nil(t, st.Alarm)
	assert.Nil(t, st.T1Frame)
}

func TestFromBytesTruncatedIsError(t *testing.T) {
	// BISR announces LBCODE (needs 8 more bytes) but supplies none.
	_, err := FromBytes([]byte{0, 0x02})
	assert.ErrorIs(t, err, ErrTruncated)
}

func TestFromBytesTrailingBytesIsError(t *testing.T) {
	_, err := FromBytes([]byte{0, 0x00, 0xff})
	assert.ErrorIs(t, err, ErrTrailingBytes)
}

func TestFromBytesAllSubtrees(t *testing.T) {
	buf := []byte{
		7,    // channel_index
		0xfe, // BISR: LBCODE|RxClkLOS|ONESEC|HDLC|SLIP|ALARM|T1FRAME
		0, 0, 0, 0, 0, 0, 0, 0, // 8x RLCISRx
		// 3x HDLC controller: DLSR, RDLBCR(rbufptr=0,count=0), SS7SR
		0, 0, 0,
		0, 0, 0,
		0, 0, 0,
		0, // SBISR
		0, 0, 0, // AEISR, EXZSR, CIASR
		0x04, // FISR: SIG set
		0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, // 12 bytes RSAR
	}
	st, err := FromBytes(buf)
	require.NoError(t, err)
	assert.Equal(t, 7, st.ChannelIndex)
	require.NotNil(t, st.LBCode)
	require.NotNil(t, st.HDLC)
	require.NotNil(t, st.Slip)
	require.NotNil(t, st.Alarm)
	require.NotNil(t, st.T1Frame)
	require.NotNil(t, st.T1Frame.Sig)
	assert.Len(t, st.T1Frame.Sig.RSARs, 24)
}

func TestReceiveSignalingNibbleSplit(t *testing.T) {
	raw := make([]byte, 12)
	raw[0] = 0b1010_0101 // even -> A,C ; odd -> B,D
	sig, err := parseReceiveSignaling(newReaderFrom(raw))
	require.NoError(t, err)
	assert.Equal(t, RSAR{A: true, B: false, C: true, D: false}, sig.RSARs[0])
	assert.Equal(t, RSAR{A: false, B: true, C: false, D: true}, sig.RSARs[1])
}

// TestHDLCDataLengthRoundTrip checks the RDLBC-declared variable-length
// payload is read exactly, for any in-range length.
func TestHDLCDataLengthRoundTrip(t *testing.T) {
	rapid.Check(t, func(rt *rapid.T) {
		n := rapid.IntRange(0, 64).Draw(rt, "n")
		data := make([]byte, n)
		for i := range data {
			data[i] = byte(i)
		}
		rdlbcrByte := byte(n) << 1 // RBUFPTR=0, RDLBC=n
		buf := append([]byte{0, rdlbcrByte}, data...)
		buf = append(buf, 0) // SS7SR
		ctrl, err := parseHDLCController(newReaderFrom(buf))
		require.NoError(rt, err)
		assert.Equal(rt, data, ctrl.Data)
	})
}
