package audio

import "math"

const tau = 2 * math.Pi
const sampleRateHz = 8000.0

// ToneGenerator is a stateful sequential source producing one real
// sample, in roughly [-1.0, 1.0], per Advance call at 8 kHz.
type ToneGenerator interface {
	Advance()
	Output() float64
}

// DualToneGenerator produces (sin(phi0) + sin(phi1)) * 0.5 * amplitude,
// advancing each phase by 2*pi*f/8000 per sample, modulo 2*pi.
type DualToneGenerator struct {
	phase0        float64
	phaseAdvance0 float64
	phase1        float64
	phaseAdvance1 float64
	amplitude     float64
	output        float64
}

// NewDualToneGenerator builds a generator for the given frequency pair
// at the standard fixed amplitude used by every named tone source.
func NewDualToneGenerator(freq1Hz, freq2Hz float64) *DualToneGenerator {
	return &DualToneGenerator{
		phaseAdvance0: tau * freq1Hz / sampleRateHz,
		phaseAdvance1: tau * freq2Hz / sampleRateHz,
		amplitude:     0.1,
	}
}

func (g *DualToneGenerator) Advance() {
	g.phase0 = math.Mod(g.phase0+g.phaseAdvance0, tau)
	g.phase1 = math.Mod(g.phase1+g.phaseAdvance1, tau)
	g.output = (math.Sin(g.phase0) + math.Sin(g.phase1)) * 0.5 * g.amplitude
}

func (g *DualToneGenerator) Output() float64 {
	return g.output
}
