package signaling

// robbedBitPositions are the frame-in-superframe indices (frame_in_superframe
// % 6 == 5) at which an RBS bit is stolen from every timeslot: the F-bit
// positions 5, 11, 17, 23 of an ESF superframe.
var robbedBitPositions = [4]int{5, 11, 17, 23}

const timeslotsPerChannel = 24

// RobbedBitFrame accumulates four signaling bits (A, B, C, D) per
// timeslot across an ESF superframe: a 4-bit shift register per
// timeslot, a bits-collected mask shared across the superframe (one bit
// set per RBS position seen, since all timeslots are sampled at the
// same positions), and the frame_count the superframe started at.
type RobbedBitFrame struct {
	Register      [timeslotsPerChannel]uint8
	BitsCollected uint8
	StartFrame    uint32
}

func (f *RobbedBitFrame) shiftIn(position, timeslot int, bit bool) {
	mask := uint8(1) << uint(3-position)
	if bit {
		f.Register[timeslot] |= mask
	} else {
		f.Register[timeslot] &^= mask
	}
}

func (f *RobbedBitFrame) markPositionCollected(position int) {
	f.BitsCollected |= uint8(1) << uint(position)
}

// complete reports whether all four RBS positions have been collected
// for the current superframe (bits_collected == 0b1111).
func (f RobbedBitFrame) complete() bool {
	return f.BitsCollected == 0b1111
}

// RobbedBitDebouncer is the two-stage debounce state machine of spec.md
// §3: a change in state is announced only once the same new ABCD value
// has been observed in two consecutive superframes, independently per
// timeslot.
type RobbedBitDebouncer struct {
	state       RobbedBitFrame
	accumulator RobbedBitFrame
	history     RobbedBitFrame
	haveState   [timeslotsPerChannel]bool
}

// NewRobbedBitDebouncer constructs a debouncer with no accepted state yet.
func NewRobbedBitDebouncer() *RobbedBitDebouncer {
	return &RobbedBitDebouncer{}
}

// NewFrame resets the accumulator and anchors its superframe start time;
// called at each superframe boundary on this channel (mf_bits set, or the
// processor's frame_in_superframe count wrapping back to 0).
func (d *RobbedBitDebouncer) NewFrame(frameCount uint32) {
	d.accumulator = RobbedBitFrame{StartFrame: frameCount}
}

// Change is an accepted robbed-bit state transition for one timeslot:
// the new 4-bit A/B/C/D value, and the frame_count of the superframe in
// which it was first observed.
type Change struct {
	Timeslot   int
	FrameCount uint32
	ABCD       uint8
}

// Update feeds the current frame's low bits for every timeslot of this
// channel at the given position within the superframe
// (frame_in_superframe, 0..23). samples holds, for each of the 24
// timeslots, whether that timeslot's sample had its low bit set this
// frame. On the accepting frame (frame_in_superframe == 23, all four
// RBS positions collected) each timeslot's accumulator/history/state
// triple is compared and any accepted changes are returned.
func (d *RobbedBitDebouncer) Update(frameInSuperframe int, samples [timeslotsPerChannel]bool) []Change {
	rbsIndex := rbsPositionIndex(frameInSuperframe)
	if rbsIndex < 0 {
		return nil
	}
	for ts, bit := range samples {
		d.accumulator.shiftIn(rbsIndex, ts, bit)
	}
	d.accumulator.markPositionCollected(rbsIndex)

	if frameInSuperframe != robbedBitPositions[3] || !d.accumulator.complete() {
		return nil
	}

	var changes []Change
	for ts := 0; ts < timeslotsPerChannel; ts++ {
		newVal := d.accumulator.Register[ts]
		if d.haveState[ts] && newVal == d.history.Register[ts] && newVal != d.state.Register[ts] {
			changes = append(changes, Change{Timeslot: ts, FrameCount: d.history.StartFrame, ABCD: newVal})
			d.state.Register[ts] = newVal
		} else if !d.haveState[ts] {
			d.state.Register[ts] = newVal
			d.haveState[ts] = true
		}
	}

	d.history = d.accumulator
	return changes
}

func rbsPositionIndex(frameInSuperframe int) int {
	for i, pos := range robbedBitPositions {
		if pos == frameInSuperframe {
			return i
		}
	}
	return -1
}
