// Package asr runs streaming speech recognition over VAD-gated audio.
package asr

import (
	"context"

	"github.com/hireloop/voicepipe/internal/domain"
)

// Result captures recognizer output for one transcription call.
type Result struct {
	Text       string
	Confidence float64
	Words      []domain.WordTiming
}

// Recognizer abstracts speech-to-text backends. The pcm buffer holds
// the whole utterance so far; final requests full-quality decoding.
type Recognizer interface {
	Transcribe(ctx context.Context, pcm []int16, sampleRate int, final bool) (Result, error)
}
