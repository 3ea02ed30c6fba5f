// Package tts turns dialogue replies into paced audio on the session's
// outbound media track.
package tts

import (
	"context"
	"fmt"

	"github.com/hireloop/voicepipe/internal/config"
)

// Request contains parameters to synthesize speech.
type Request struct {
	SessionID string
	Text      string
	Voice     string
}

// Chunk contains mono PCM produced by the synthesizer.
type Chunk struct {
	SessionID  string
	Sequence   int
	SampleRate int
	PCM        []int16
	Final      bool
}

// Synthesizer is the contract for producing audio. The chunk channel
// is closed when synthesis completes; a late error on the error
// channel aborts the utterance.
type Synthesizer interface {
	Synthesize(ctx context.Context, req Request) (<-chan Chunk, <-chan error)
}

// NewSynthesizer builds the configured backend.
func NewSynthesizer(cfg config.SynthesisConfig) (Synthesizer, error) {
	switch cfg.Mode {
	case "", "mock":
		return NewMockSynth(cfg.SampleRate), nil
	case "exec":
		return NewExecSynth(cfg.Command, cfg.SampleRate)
	default:
		return nil, fmt.Errorf("unknown synthesis mode %q", cfg.Mode)
	}
}
