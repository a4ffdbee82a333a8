// Package signaling implements the signaling processor (C6): per-channel
// Robbed-Bit Signaling extraction and debouncing, and Goertzel-based DTMF
// tone detection.
package signaling

import (
	"math"
	"math/cmplx"
)

// GoertzelDetector is a single-bin Goertzel power estimator: it
// accumulates N samples, then Poll reports the estimated power in dB at
// construction frequency.
type GoertzelDetector struct {
	wN, wNz1, wNz2 float64
	kfb            float64
	kff            complex128
	n              int
}

// NewGoertzelDetector builds a detector for relative frequency index m
// over an N-sample window.
func NewGoertzelDetector(m float64, n int) *GoertzelDetector {
	tauMOverN := 2 * math.Pi * m / float64(n)
	return &GoertzelDetector{
		kfb: math.Cos(tauMOverN) * 2.0,
		kff: -cmplx.Exp(complex(0, -tauMOverN)),
		n:   n,
	}
}

// NewGoertzelDetectorFromHz builds a detector tuned to frequencyHz,
// sampled at 8 kHz, over an N-sample window.
func NewGoertzelDetectorFromHz(frequencyHz float64, n int) *GoertzelDetector {
	m := frequencyHz / (8000.0 / float64(n))
	return NewGoertzelDetector(m, n)
}

// N reports the detector's window length.
func (g *GoertzelDetector) N() int {
	return g.n
}

// Iterate feeds one sample at the given iteration index (0..N) into the
// running Goertzel recurrence.
func (g *GoertzelDetector) Iterate(iteration int, xN float64) {
	g.wNz2 = g.wNz1
	g.wNz1 = g.wN
	g.wN = xN + g.wNz1*g.kfb - g.wNz2
}

// Poll computes the estimated power in dB over the last N samples and
// resets the accumulator for the next window.
func (g *GoertzelDetector) Poll() float64 {
	yN := complex(g.wN, 0) + complex(g.wNz1, 0)*g.kff
	magnitude := cmplx.Abs(yN)

	g.wN, g.wNz1, g.wNz2 = 0, 0, 0

	return math.Log10(magnitude/float64(g.n)) * 20.0
}
