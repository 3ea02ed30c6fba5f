package denoise

import "math"

// spectralGate is a time-domain noise gate: a DC-blocking high-pass
// followed by an adaptive noise-floor tracker that attenuates frames
// close to the floor. Cheap enough to always fit the frame budget.
type spectralGate struct {
	prevIn   float64
	prevOut  float64
	floor    float64
	gain     float64
	warmedUp bool
}

const (
	hpCoeff    = 0.995
	floorRise  = 1.005 // floor climbs slowly
	floorDecay = 0.995 // and follows quiet passages down
	gateRatio  = 1.8   // frames below gateRatio*floor get attenuated
	minGain    = 0.12
	gainSmooth = 0.6
)

func NewSpectralGate() Denoiser {
	return &spectralGate{gain: 1}
}

func (g *spectralGate) ProcessFrame(frame []int16) ([]int16, error) {
	if len(frame) == 0 {
		return nil, ErrBadFrame
	}

	out := make([]int16, len(frame))
	var energy float64
	for i, s := range frame {
		// DC-blocking high-pass.
		x := float64(s)
		y := x - g.prevIn + hpCoeff*g.prevOut
		g.prevIn = x
		g.prevOut = y
		out[i] = clamp(y)
		energy += y * y
	}
	rms := math.Sqrt(energy / float64(len(frame)))

	if !g.warmedUp {
		g.floor = rms
		g.warmedUp = true
	} else if rms < g.floor {
		g.floor = g.floor*floorDecay + rms*(1-floorDecay)
	} else {
		g.floor *= floorRise
	}
	if g.floor < 1 {
		g.floor = 1
	}

	target := 1.0
	if rms < gateRatio*g.floor {
		target = minGain
	}
	g.gain = gainSmooth*g.gain + (1-gainSmooth)*target

	if g.gain < 0.999 {
		for i := range out {
			out[i] = clamp(float64(out[i]) * g.gain)
		}
	}
	return out, nil
}

func (g *spectralGate) Reset() {
	*g = spectralGate{gain: 1}
}

func clamp(v float64) int16 {
	switch {
	case v > math.MaxInt16:
		return math.MaxInt16
	case v < math.MinInt16:
		return math.MinInt16
	default:
		return int16(v)
	}
}
