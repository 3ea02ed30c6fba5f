// Package denoise suppresses stationary background noise on inbound
// audio before voice-activity gating and recognition.
package denoise

import "errors"

var ErrBadFrame = errors.New("denoise: bad frame")

// Denoiser is a pure per-frame transform: frame in, frame out, same
// sample rate and size. Filter history persists only within one
// session's stream; callers Reset() it on teardown.
type Denoiser interface {
	ProcessFrame(frame []int16) ([]int16, error)
	Reset()
}

// passthrough is the no-op implementation used when denoising is
// disabled or under test.
type passthrough struct{}

func NewPassthrough() Denoiser { return passthrough{} }

func (passthrough) ProcessFrame(frame []int16) ([]int16, error) {
	if len(frame) == 0 {
		return nil, ErrBadFrame
	}
	out := make([]int16, len(frame))
	copy(out, frame)
	return out, nil
}

func (passthrough) Reset() {}

// New selects an implementation per config.
func New(enabled bool) Denoiser {
	if !enabled {
		return NewPassthrough()
	}
	return NewSpectralGate()
}
