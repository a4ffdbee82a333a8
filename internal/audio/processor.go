// Package audio implements the audio processor (C5): a cross-point
// patching matrix that, for every 8 kHz frame, routes each output
// timeslot from idle, a copied input timeslot, or a named tone
// generator, synthesizing a fresh outbound Frame.
package audio

import "github.com/tedium-project/tedium-host/internal/frame"

// PatchMessage requests that address be repatched to patch. Delivered
// over a channel and applied at the start of the next frame's synthesis,
// matching the reference processor's message-channel draining.
type PatchMessage struct {
	Address frame.TimeslotAddress
	Patch   Patch
}

// Processor holds the patching table and tone plant, and synthesizes
// one outbound Frame per inbound Frame. Not safe for concurrent use;
// intended to run on a single goroutine fed by the audio ring.
type Processor struct {
	patching  *Patching
	tonePlant map[ToneSource]ToneGenerator
	patches   <-chan PatchMessage
}

// NewProcessor constructs a Processor with the default patching table
// and the standard named tone generators (DialTonePrecise at 350/440 Hz,
// Ringback at 440/480 Hz). patches may be nil if patch messages are
// delivered some other way (ApplyPatch can be called directly instead).
func NewProcessor(patches <-chan PatchMessage) *Processor {
	return &Processor{
		patching: DefaultPatching(),
		tonePlant: map[ToneSource]ToneGenerator{
			DialTonePrecise: NewDualToneGenerator(350.0, 440.0),
			Ringback:        NewDualToneGenerator(440.0, 480.0),
		},
		patches: patches,
	}
}

// ApplyPatch repatches address immediately, for callers that deliver
// patch requests outside the channel drained by ProcessFrame.
func (p *Processor) ApplyPatch(address frame.TimeslotAddress, patch Patch) {
	p.patching.Set(address, patch)
}

// ProcessFrame drains any pending patch messages, advances every tone
// generator exactly once, and synthesizes the outbound Frame from the
// current patching table and inbound frame.
func (p *Processor) ProcessFrame(in frame.Frame) frame.Frame {
	p.drainPatches()

	for _, g := range p.tonePlant {
		g.Advance()
	}

	var out frame.Frame
	for channel := 0; channel < frame.Channels; channel++ {
		for timeslot := 0; timeslot < frame.TimeslotsPerChannel; timeslot++ {
			addr := frame.NewTimeslotAddress(channel, timeslot)
			out.Set(addr, p.synthesize(addr, in))
		}
	}
	return out
}

func (p *Processor) drainPatches() {
	if p.patches == nil {
		return
	}
	for {
		select {
		case msg := <-p.patches:
			p.patching.Set(msg.Address, msg.Patch)
		default:
			return
		}
	}
}

func (p *Processor) synthesize(addr frame.TimeslotAddress, in frame.Frame) frame.Sample {
	patch := p.patching.Get(addr)
	switch patch.kind {
	case patchIdle:
		return frame.SampleIdle
	case patchInput:
		return in.At(patch.input)
	case patchTone:
		g, ok := p.tonePlant[patch.tone]
		if !ok {
			return frame.EncodeFromFloat(0.0)
		}
		return frame.EncodeFromFloat(g.Output())
	default:
		return frame.SampleIdle
	}
}
