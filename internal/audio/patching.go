package audio

import "github.com/tedium-project/tedium-host/internal/frame"

// ToneSource names a tone generator in the processor's tone plant.
type ToneSource int

const (
	DialTonePrecise ToneSource = iota
	Ringback
)

func (s ToneSource) String() string {
	switch s {
	case DialTonePrecise:
		return "DialTonePrecise"
	case Ringback:
		return "Ringback"
	default:
		return "Unknown"
	}
}

// patchKind tags which variant of Patch a value holds.
type patchKind int

const (
	patchIdle patchKind = iota
	patchInput
	patchTone
)

// Patch is a tagged value routing one output timeslot: Idle, a copy of
// another input timeslot, or a named tone generator's current output.
type Patch struct {
	kind  patchKind
	input frame.TimeslotAddress
	tone  ToneSource
}

// Idle returns the silence patch.
func Idle() Patch { return Patch{kind: patchIdle} }

// InputPatch routes src's inbound sample to the output coordinate.
func InputPatch(src frame.TimeslotAddress) Patch {
	return Patch{kind: patchInput, input: src}
}

// TonePatch routes a tone generator's current output to the output coordinate.
func TonePatch(source ToneSource) Patch {
	return Patch{kind: patchTone, tone: source}
}

// Patching is the 24x8 mapping from an output TimeslotAddress to a Patch.
// Every coordinate always holds a definite Patch (default Idle).
type Patching struct {
	table [frame.TimeslotsPerChannel][frame.Channels]Patch
}

// DefaultPatching matches the reference processor's startup table:
// timeslot (channel 0, timeslot 0) carries DialTonePrecise, every other
// coordinate is Idle.
func DefaultPatching() *Patching {
	p := &Patching{}
	p.Set(frame.NewTimeslotAddress(0, 0), TonePatch(DialTonePrecise))
	return p
}

// Get returns the Patch at address.
func (p *Patching) Get(address frame.TimeslotAddress) Patch {
	return p.table[address.Timeslot][address.Channel]
}

// Set assigns the Patch at address.
func (p *Patching) Set(address frame.TimeslotAddress, patch Patch) {
	p.table[address.Timeslot][address.Channel] = patch
}
