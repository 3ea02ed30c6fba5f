package asr

import (
	"context"
	"strings"
)

var mockWords = []string{
	"i", "worked", "on", "a", "team", "building", "a", "streaming",
	"platform", "and", "owned", "the", "ingest", "path", "end", "to",
	"end", "including", "the", "failure", "handling",
}

// mockRecognizer is deterministic: text length grows with buffered
// audio, which is what the pipeline invariants care about.
type mockRecognizer struct{}

func NewMockRecognizer() Recognizer {
	return mockRecognizer{}
}

func (mockRecognizer) Transcribe(_ context.Context, pcm []int16, sampleRate int, final bool) (Result, error) {
	if sampleRate <= 0 || len(pcm) == 0 {
		return Result{}, nil
	}
	seconds := float64(len(pcm)) / float64(sampleRate)
	n := int(seconds*2.5) + 1 // ~2.5 words per second of speech
	words := make([]string, 0, n)
	for i := 0; i < n; i++ {
		words = append(words, mockWords[i%len(mockWords)])
	}
	confidence := 0.0
	if final {
		confidence = 0.92
	}
	return Result{Text: strings.Join(words, " "), Confidence: confidence}, nil
}
