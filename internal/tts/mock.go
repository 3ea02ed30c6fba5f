package tts

import (
	"context"
	"math"
	"time"
)

// mockSynth emits a low hum whose duration tracks the text length, so
// pacing and queueing behave like real synthesis without a model.
type mockSynth struct {
	sampleRate int
}

func NewMockSynth(sampleRate int) Synthesizer {
	if sampleRate <= 0 {
		sampleRate = 16000
	}
	return &mockSynth{sampleRate: sampleRate}
}

const mockCharDuration = 60 * time.Millisecond

func (m *mockSynth) Synthesize(ctx context.Context, req Request) (<-chan Chunk, <-chan error) {
	chunks := make(chan Chunk, 4)
	errs := make(chan error, 1)
	go func() {
		defer close(chunks)
		defer close(errs)

		total := time.Duration(len(req.Text)) * mockCharDuration
		if total < 300*time.Millisecond {
			total = 300 * time.Millisecond
		}

		chunkSamples := m.sampleRate / 5 // 200ms per chunk
		remaining := int(float64(m.sampleRate) * total.Seconds())
		sequence := 0
		phase := 0.0
		step := 2 * math.Pi * 220 / float64(m.sampleRate)
		for remaining > 0 {
			n := chunkSamples
			if n > remaining {
				n = remaining
			}
			pcm := make([]int16, n)
			for i := range pcm {
				pcm[i] = int16(6000 * math.Sin(phase))
				phase += step
			}
			remaining -= n
			chunk := Chunk{
				SessionID:  req.SessionID,
				Sequence:   sequence,
				SampleRate: m.sampleRate,
				PCM:        pcm,
				Final:      remaining == 0,
			}
			select {
			case <-ctx.Done():
				errs <- ctx.Err()
				return
			case chunks <- chunk:
			}
			sequence++
		}
	}()
	return chunks, errs
}
