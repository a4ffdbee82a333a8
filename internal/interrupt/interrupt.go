// Package interrupt decodes the variable-length status buffers the
// framer pushes on the USB interrupt endpoint into a typed tree rooted
// at BISR, per the register layout of the XRT86VX38-family framer.
package interrupt

import (
	"bytes"
	"fmt"
	"io"
)

// MaxBytes is the largest interrupt buffer the device can send.
const MaxBytes = 256

// BISR is the Block Interrupt Status Register: one status bit per
// optional subtree, plus RxClkLOS/ONESEC which this decoder does not
// expand into a subtree (the original register file has no payload for
// them beyond the bit itself).
type BISR struct {
	LBCODE   bool
	RxClkLOS bool
	ONESEC   bool
	HDLC     bool
	SLIP     bool
	ALARM    bool
	T1FRAME  bool
}

func bisrFromByte(b byte) BISR {
	return BISR{
		LBCODE:   b&0x02 != 0,
		RxClkLOS: b&0x04 != 0,
		ONESEC:   b&0x08 != 0,
		HDLC:     b&0x10 != 0,
		SLIP:     b&0x20 != 0,
		ALARM:    b&0x40 != 0,
		T1FRAME:  b&0x80 != 0,
	}
}

// RLCISRx is one channel's Receive Loopback Code Interrupt Status.
type RLCISRx struct {
	RXASTAT bool
	RXDSTAT bool
	RXAINT  bool
	RXDINT  bool
}

func rlcisrxFromByte(b byte) RLCISRx {
	return RLCISRx{
		RXASTAT: b&0x10 != 0,
		RXDSTAT: b&0x20 != 0,
		RXAINT:  b&0x40 != 0,
		RXDINT:  b&0x80 != 0,
	}
}

// LoopbackCodeStatus carries one status byte per of the 8 loopback codes.
type LoopbackCodeStatus struct {
	RLCISRs [8]RLCISRx
}

// DLSRx is one HDLC controller's Data Link Status Register.
type DLSRx struct {
	MSGType bool
	TxSOT   bool
	RxSOT   bool
	TxEOT   bool
	RxEOT   bool
	FCSErr  bool
	RxABORT bool
	RxIDLE  bool
}

func dlsrxFromByte(b byte) DLSRx {
	return DLSRx{
		MSGType: b&0x01 != 0,
		TxSOT:   b&0x02 != 0,
		RxSOT:   b&0x04 != 0,
		TxEOT:   b&0x08 != 0,
		RxEOT:   b&0x10 != 0,
		FCSErr:  b&0x20 != 0,
		RxABORT: b&0x40 != 0,
		RxIDLE:  b&0x80 != 0,
	}
}

// RDLBCR is the Receive Data Link Buffer Count Register: a pointer bit
// plus the 7-bit count of valid data bytes that follow.
type RDLBCR struct {
	RBUFPTR bool
	RDLBC   uint8
}

func rdlbcrFromByte(b byte) RDLBCR {
	return RDLBCR{
		RBUFPTR: b&0x01 != 0,
		RDLBC:   (b >> 1) & 0x7f,
	}
}

// SS7SRx is one HDLC controller's SS7 Status Register.
type SS7SRx struct {
	SS7Status bool
}

func ss7srxFromByte(b byte) SS7SRx {
	return SS7SRx{SS7Status: b&0x80 != 0}
}

// HDLCControllerStatus is the per-controller status and variable-length
// LAPD payload of one HDLC link.
type HDLCControllerStatus struct {
	DLSR   DLSRx
	RDLBCR RDLBCR
	Data   []byte
	SS7SR  SS7SRx
}

// HDLCStatus covers the framer's three HDLC controllers.
type HDLCStatus struct {
	Controller [3]HDLCControllerStatus
}

// SBISR is the Slip Buffer Interrupt Status Register.
type SBISR struct {
	TxSBFull      bool
	TxSBEmpt      bool
	TxSBSlip      bool
	SLC96Lock     bool
	MultiframeLock bool
	RxSBFull      bool
	RxSBEmpt      bool
	RxSBSlip      bool
}

func sbisrFromByte(b byte) SBISR {
	return SBISR{
		TxSBFull:       b&0x01 != 0,
		TxSBEmpt:       b&0x02 != 0,
		TxSBSlip:       b&0x04 != 0,
		SLC96Lock:      b&0x08 != 0,
		MultiframeLock: b&0x10 != 0,
		RxSBFull:       b&0x20 != 0,
		RxSBEmpt:       b&0x40 != 0,
		RxSBSlip:       b&0x80 != 0,
	}
}

// SlipStatus wraps the slip-buffer subtree.
type SlipStatus struct {
	SBISR SBISR
}

// AEISR is the Alarm and Error Interrupt Status Register.
type AEISR struct {
	RxOOFState       bool
	RxAISState       bool
	RxYELState       bool
	LOSState         bool
	LCVIntStatus     bool
	RxOOFStateChange bool
	RxAISStateChange bool
	RxYELStateChange bool
}

func aeisrFromByte(b byte) AEISR {
	return AEISR{
		RxOOFState:       b&0x01 != 0,
		RxAISState:       b&0x02 != 0,
		RxYELState:       b&0x04 != 0,
		LOSState:         b&0x08 != 0,
		LCVIntStatus:     b&0x10 != 0,
		RxOOFStateChange: b&0x20 != 0,
		RxAISStateChange: b&0x40 != 0,
		RxYELStateChange: b&0x80 != 0,
	}
}

// EXZSR is the Excessive Zeros Status Register.
type EXZSR struct {
	EXZStatus bool
}

func exzsrFromByte(b byte) EXZSR {
	return EXZSR{EXZStatus: b&0x80 != 0}
}

// CIASR is the Customer Installation Alarm Status Register.
type CIASR struct {
	RxAISCIState bool
	RxRAICIState bool
	RxAISCI      bool
	RxRAICI      bool
}

func ciasrFromByte(b byte) CIASR {
	return CIASR{
		RxAISCIState: b&0x04 != 0,
		RxRAICIState: b&0x08 != 0,
		RxAISCI:      b&0x40 != 0,
		RxRAICI:      b&0x80 != 0,
	}
}

// AlarmStatus wraps the alarm/errors/CI-alarm subtree.
type AlarmStatus struct {
	AEISR AEISR
	EXZSR EXZSR
	CIASR CIASR
}

// FISR is the Framer Interrupt Status Register.
type FISR struct {
	DS0Change bool
	DS0Status bool
	SIG       bool
	COFA      bool
	OOFStatus bool
	FMD       bool
	SE        bool
	FE        bool
}

func fisrFromByte(b byte) FISR {
	return FISR{
		DS0Change: b&0x01 != 0,
		DS0Status: b&0x02 != 0,
		SIG:       b&0x04 != 0,
		COFA:      b&0x08 != 0,
		OOFStatus: b&0x10 != 0,
		FMD:       b&0x20 != 0,
		SE:        b&0x40 != 0,
		FE:        b&0x80 != 0,
	}
}

// RSAR is one timeslot's Receive Signaling A/B/C/D bits.
type RSAR struct {
	A, B, C, D bool
}

// A maps to bit 3 (MSB of the nibble) down to D at bit 0. register.rs's
// RSAR::from(v>>4) walks the same nibble the other way; which end is "A"
// is otherwise unobservable from this interface, so this is a convention
// pinned here rather than a verified fact.
func rsarFromNibble(n byte) RSAR {
	return RSAR{
		A: n&0x08 != 0,
		B: n&0x04 != 0,
		C: n&0x02 != 0,
		D: n&0x01 != 0,
	}
}

// ReceiveSignalingStatus unpacks the 12 packed bytes carrying 24
// timeslots' worth of A/B/C/D nibbles.
type ReceiveSignalingStatus struct {
	RSARs [24]RSAR
}

// T1FrameStatus is the T1-framing subtree, with an optional signaling block.
type T1FrameStatus struct {
	FISR FISR
	Sig  *ReceiveSignalingStatus
}

// Status is the full decoded interrupt message for one channel.
type Status struct {
	ChannelIndex int
	BISR         BISR
	LBCode       *LoopbackCodeStatus
	HDLC         *HDLCStatus
	Slip         *SlipStatus
	Alarm        *AlarmStatus
	T1Frame      *T1FrameStatus
}

// ErrTruncated is returned when the buffer ends before a subtree it
// announced (via a BISR/FISR bit) can be fully read.
var ErrTruncated = fmt.Errorf("interrupt: buffer truncated")

// ErrTrailingBytes is returned when bytes remain after a structurally
// complete parse: the buffer's declared subtrees don't account for its
// full length.
var ErrTrailingBytes = fmt.Errorf("interrupt: trailing bytes after parse")

// FromBytes parses one interrupt message. A successful parse consumes
// exactly len(b) bytes; any other outcome is an error.
func FromBytes(b []byte) (Status, error) {
	r := bytes.NewReader(b)
	st, err := parse(r)
	if err != nil {
		return Status{}, err
	}
	if r.Len() != 0 {
		return Status{}, ErrTrailingBytes
	}
	return st, nil
}

func readByte(r *bytes.Reader) (byte, error) {
	b, err := r.ReadByte()
	if err != nil {
		if err == io.EOF {
			return 0, ErrTruncated
		}
		return 0, err
	}
	return b, nil
}

func readN(r *bytes.Reader, n int) ([]byte, error) {
	buf := make([]byte, n)
	k, err := io.ReadFull(r, buf)
	if err != nil || k != n {
		return nil, ErrTruncated
	}
	return buf, nil
}

func parse(r *bytes.Reader) (Status, error) {
	chIdx, err := readByte(r)
	if err != nil {
		return Status{}, err
	}
	bisrByte, err := readByte(r)
	if err != nil {
		return Status{}, err
	}
	bisr := bisrFromByte(bisrByte)

	st := Status{ChannelIndex: int(chIdx), BISR: bisr}

	if bisr.LBCODE {
		lb, err := parseLoopbackCode(r)
		if err != nil {
			return Status{}, err
		}
		st.LBCode = lb
	}
	if bisr.HDLC {
		h, err := parseHDLC(r)
		if err != nil {
			return Status{}, err
		}
		st.HDLC = h
	}
	if bisr.SLIP {
		s, err := parseSlip(r)
		if err != nil {
			return Status{}, err
		}
		st.Slip = s
	}
	if bisr.ALARM {
		a, err := parseAlarm(r)
		if err != nil {
			return Status{}, err
		}
		st.Alarm = a
	}
	if bisr.T1FRAME {
		f, err := parseT1Frame(r)
		if err != nil {
			return Status{}, err
		}
		st.T1Frame = f
	}
	return st, nil
}

func parseLoopbackCode(r *bytes.Reader) (*LoopbackCodeStatus, error) {
	raw, err := readN(r, 8)
	if err != nil {
		return nil, err
	}
	var st LoopbackCodeStatus
	for i, v := range raw {
		st.RLCISRs[i] = rlcisrxFromByte(v)
	}
	return &st, nil
}

func parseHDLC(r *bytes.Reader) (*HDLCStatus, error) {
	var st HDLCStatus
	for i := 0; i < 3; i++ {
		c, err := parseHDLCController(r)
		if err != nil {
			return nil, err
		}
		st.Controller[i] = c
	}
	return &st, nil
}

func parseHDLCController(r *bytes.Reader) (HDLCControllerStatus, error) {
	dlsrByte, err := readByte(r)
	if err != nil {
		return HDLCControllerStatus{}, err
	}
	rdlbcrByte, err := readByte(r)
	if err != nil {
		return HDLCControllerStatus{}, err
	}
	rdlbcr := rdlbcrFromByte(rdlbcrByte)
	data, err := readN(r, int(rdlbcr.RDLBC))
	if err != nil {
		return HDLCControllerStatus{}, err
	}
	ss7srByte, err := readByte(r)
	if err != nil {
		return HDLCControllerStatus{}, err
	}
	return HDLCControllerStatus{
		DLSR:   dlsrxFromByte(dlsrByte),
		RDLBCR: rdlbcr,
		Data:   data,
		SS7SR:  ss7srxFromByte(ss7srByte),
	}, nil
}

func parseSlip(r *bytes.Reader) (*SlipStatus, error) {
	b, err := readByte(r)
	if err != nil {
		return nil, err
	}
	return &SlipStatus{SBISR: sbisrFromByte(b)}, nil
}

func parseAlarm(r *bytes.Reader) (*AlarmStatus, error) {
	raw, err := readN(r, 3)
	if err != nil {
		return nil, err
	}
	return &AlarmStatus{
		AEISR: aeisrFromByte(raw[0]),
		EXZSR: exzsrFromByte(raw[1]),
		CIASR: ciasrFromByte(raw[2]),
	}, nil
}

func parseT1Frame(r *bytes.Reader) (*T1FrameStatus, error) {
	b, err := readByte(r)
	if err != nil {
		return nil, err
	}
	fisr := fisrFromByte(b)
	st := &T1FrameStatus{FISR: fisr}
	if fisr.SIG {
		sig, err := parseReceiveSignaling(r)
		if err != nil {
			return nil, err
		}
		st.Sig = sig
	}
	return st, nil
}

func parseReceiveSignaling(r *bytes.Reader) (*ReceiveSignalingStatus, error) {
	raw, err := readN(r, 12)
	if err != nil {
		return nil, err
	}
	var st ReceiveSignalingStatus
	for i, v := range raw {
		st.RSARs[i*2+0] = rsarFromNibble(v >> 4)
		st.RSARs[i*2+1] = rsarFromNibble(v & 0x0f)
	}
	return &st, nil
}
