// Package vad classifies denoised audio frames as speech or silence
// and detects utterance boundaries.
package vad

import (
	"math"
	"time"
)

// Decision is the gate's verdict for one frame.
type Decision struct {
	// Speech reports whether the frame belongs to an utterance and
	// should be forwarded to recognition.
	Speech bool
	// Boundary is set on the frame that ends an utterance: the
	// silence run exceeded the configured timeout.
	Boundary bool
	// Probability is the speech likelihood the threshold was applied to.
	Probability float64
}

type Config struct {
	// Threshold is the speech probability above which a frame counts
	// as voiced. Default 0.5.
	Threshold float64
	// SilenceTimeout ends the utterance once silence has lasted this long.
	SilenceTimeout time.Duration
	// FrameDuration converts the timeout into a frame count.
	FrameDuration time.Duration
}

// Gate applies the threshold with hysteresis: once speaking, short
// pauses stay inside the utterance; a silence run longer than the
// timeout emits a boundary. Per-session state, never shared.
type Gate struct {
	threshold     float64
	silenceLimit  int
	inSpeech      bool
	silenceFrames int

	floor    float64
	warmedUp bool
}

const (
	floorDecay = 0.98
	floorRise  = 1.008
	// probSlope controls how fast probability saturates above the floor.
	probSlope = 3.0
)

func New(cfg Config) *Gate {
	threshold := cfg.Threshold
	if threshold <= 0 {
		threshold = 0.5
	}
	frame := cfg.FrameDuration
	if frame <= 0 {
		frame = 20 * time.Millisecond
	}
	timeout := cfg.SilenceTimeout
	if timeout <= 0 {
		timeout = 800 * time.Millisecond
	}
	limit := int(timeout / frame)
	if limit < 1 {
		limit = 1
	}
	return &Gate{threshold: threshold, silenceLimit: limit}
}

// Process classifies one frame. Frames while in the silence state are
// not forwarded to recognition (Speech=false).
func (g *Gate) Process(frame []int16) Decision {
	p := g.probability(frame)
	voiced := p >= g.threshold

	switch {
	case voiced:
		g.inSpeech = true
		g.silenceFrames = 0
		return Decision{Speech: true, Probability: p}
	case g.inSpeech:
		g.silenceFrames++
		if g.silenceFrames >= g.silenceLimit {
			g.inSpeech = false
			g.silenceFrames = 0
			return Decision{Boundary: true, Probability: p}
		}
		// Hang time: still inside the utterance.
		return Decision{Speech: true, Probability: p}
	default:
		return Decision{Probability: p}
	}
}

// Reset clears utterance and noise-floor state.
func (g *Gate) Reset() {
	g.inSpeech = false
	g.silenceFrames = 0
	g.floor = 0
	g.warmedUp = false
}

// probability maps frame energy over the adaptive noise floor onto [0,1).
func (g *Gate) probability(frame []int16) float64 {
	if len(frame) == 0 {
		return 0
	}
	var energy float64
	for _, s := range frame {
		energy += float64(s) * float64(s)
	}
	rms := math.Sqrt(energy / float64(len(frame)))

	if !g.warmedUp {
		g.floor = rms
		g.warmedUp = true
	} else if rms < g.floor {
		g.floor = g.floor*floorDecay + rms*(1-floorDecay)
	} else if !g.inSpeech {
		g.floor *= floorRise
	}
	if g.floor < 1 {
		g.floor = 1
	}

	// Logistic on the level above the floor, in dB-ish terms.
	ratio := rms / (g.floor * 2.5)
	return 1 - 1/(1+math.Pow(ratio, probSlope))
}
