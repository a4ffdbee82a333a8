package signaling

import "math"

// DetectionEvent is emitted when the debounce state machine confirms a
// new tone start.
type DetectionEvent struct {
	Digit rune
}

var frequenciesLow = [4]float64{697.0, 770.0, 852.0, 941.0}
var frequenciesHigh = [4]float64{1209.0, 1336.0, 1477.0, 1633.0}

// keyMap maps (lowIndex, highIndex) to the DTMF keypad digit, per the
// standard DTMF frequency matrix.
var keyMap = [4][4]rune{
	{'1', '2', '3', 'A'},
	{'4', '5', '6', 'B'},
	{'7', '8', '9', 'C'},
	{'*', '0', '#', 'D'},
}

// detectorGroup runs four Goertzel detectors over a shared N-sample
// window, polling all four in lockstep every N samples.
type detectorGroup struct {
	detectors [4]*GoertzelDetector
	n         int
	iteration int
}

func newDetectorGroup(frequencies [4]float64, n, initialIteration int) *detectorGroup {
	g := &detectorGroup{n: n, iteration: initialIteration}
	for i, f := range frequencies {
		g.detectors[i] = NewGoertzelDetectorFromHz(f, n)
	}
	return g
}

func (g *detectorGroup) poll() [4]float64 {
	var out [4]float64
	for i, d := range g.detectors {
		out[i] = d.Poll()
	}
	return out
}

// iterate feeds one sample to every detector in the group, returning a
// completed power vector when the window boundary is reached.
func (g *detectorGroup) iterate(xN float64) (powers [4]float64, ready bool) {
	for _, d := range g.detectors {
		d.Iterate(g.iteration, xN)
	}
	g.iteration++
	if g.iteration == g.n {
		g.iteration = 0
		return g.poll(), true
	}
	return [4]float64{}, false
}

// detectionState is the 4-state tone-start debounce machine of spec.md
// §4.5: S0..S3, requiring two consecutive same-candidate windows before
// declaring a digit start, and a silence window before re-arming.
type detectionState int

const (
	stateS0 detectionState = iota
	stateS1
	stateS2
	stateS3
)

type detectionStateMachine struct {
	state         detectionState
	lastDetection *rune
}

func newDetectionStateMachine() *detectionStateMachine {
	return &detectionStateMachine{state: stateS0}
}

// feed advances the state machine with this window's candidate digit
// (nil if none), returning a DetectionEvent exactly when a new tone
// start is confirmed.
func (m *detectionStateMachine) feed(detection *rune) *DetectionEvent {
	valid := detection != nil && m.lastDetection != nil
	same := valid && *detection == *m.lastDetection
	pause := detection == nil && m.lastDetection == nil

	newState := m.state
	newTone := false

	switch m.state {
	case stateS0:
		switch {
		case same && valid:
			newState = stateS2
		case same && !valid:
			newState = stateS1
		}
	case stateS1:
		switch {
		case valid && same:
			newState = stateS3
			newTone = true
		case !same || pause:
			newState = stateS0
		}
	case stateS2:
		switch {
		case pause:
			newState = stateS0
		case same:
			newState = stateS3
			newTone = true
		default:
			newState = stateS3
		}
	case stateS3:
		if pause {
			newState = stateS0
		}
	}

	m.state = newState
	m.lastDetection = detection

	if newTone && detection != nil {
		return &DetectionEvent{Digit: *detection}
	}
	return nil
}

// DTMFDetector runs the dual-phase low-group / single high-group
// Goertzel banks of spec.md §4.5 and emits debounced digit events.
type DTMFDetector struct {
	lowGroups    [2]*detectorGroup
	highGroup    *detectorGroup
	stateMachine *detectionStateMachine
}

// NewDTMFDetector constructs a detector with N=212 offset-0/106 low
// groups and an N=106 high group, per spec.md §4.5.
func NewDTMFDetector() *DTMFDetector {
	return &DTMFDetector{
		lowGroups: [2]*detectorGroup{
			newDetectorGroup(frequenciesLow, 212, 0),
			newDetectorGroup(frequenciesLow, 212, 106),
		},
		highGroup:    newDetectorGroup(frequenciesHigh, 106, 0),
		stateMachine: newDetectionStateMachine(),
	}
}

const (
	detectPowerMin = -25.0
	detectPowerMax = 0.0
	twistMin       = -8.0
	twistMax       = 4.0
	minRunnerUpGap = 10.0
)

// detect applies the power-window, runner-up-margin, and twist tests of
// spec.md §4.5 to one pair of low/high power vectors.
func detect(lowPowers, highPowers [4]float64) *rune {
	lowIdx, lowMax, lowRunnerUp := top2(lowPowers)
	if lowMax < detectPowerMin || lowMax > detectPowerMax {
		return nil
	}
	if lowMax-lowRunnerUp < minRunnerUpGap {
		return nil
	}

	highIdx, highMax, highRunnerUp := top2(highPowers)
	if highMax < detectPowerMin || highMax > detectPowerMax {
		return nil
	}
	if highMax-highRunnerUp < minRunnerUpGap {
		return nil
	}

	twist := highMax - lowMax
	if twist < twistMin || twist > twistMax {
		return nil
	}

	key := keyMap[lowIdx][highIdx]
	return &key
}

func top2(powers [4]float64) (maxIdx int, max, runnerUp float64) {
	max = powers[0]
	maxIdx = 0
	runnerUp = math.Inf(-1)
	for i := 1; i < 4; i++ {
		if powers[i] > max {
			runnerUp = max
			max = powers[i]
			maxIdx = i
		} else if powers[i] > runnerUp {
			runnerUp = powers[i]
		}
	}
	return maxIdx, max, runnerUp
}

// Advance feeds one linear sample (in [-1.0, 1.0]) into the detector,
// returning a DetectionEvent when a debounced digit start is confirmed.
func (d *DTMFDetector) Advance(xN float64) *DetectionEvent {
	var lowResult [4]float64
	var haveLowResult bool
	for _, g := range d.lowGroups {
		if powers, ready := g.iterate(xN); ready {
			lowResult = powers
			haveLowResult = true
		}
	}

	highResult, highReady := d.highGroup.iterate(xN)
	if !highReady {
		return nil
	}
	if !haveLowResult {
		return nil
	}

	return d.stateMachine.feed(detect(lowResult, highResult))
}
