package asr

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/hireloop/voicepipe/internal/domain"
)

// Engine holds one session's recognition state: the utterance buffer
// and the in-progress hypothesis. It must be Reset between utterances;
// Finalize does that itself. Never shared across sessions.
type Engine struct {
	rec        Recognizer
	sessionID  string
	sampleRate int

	buf      []int16
	lastText string
	active   bool
	start    time.Duration
	end      time.Duration
}

func NewEngine(rec Recognizer, sessionID string, sampleRate int) *Engine {
	return &Engine{rec: rec, sessionID: sessionID, sampleRate: sampleRate}
}

// PushChunk appends a speech-gated chunk and produces a partial
// hypothesis, or nil when the hypothesis has not grown. The at offset
// is the chunk's position in the session's stream.
//
// On a decode failure the engine resets itself and returns the error;
// the caller logs and continues with the next chunk.
func (e *Engine) PushChunk(ctx context.Context, pcm []int16, at time.Duration) (*domain.TranscriptSegment, error) {
	if len(pcm) == 0 {
		return nil, nil
	}
	if !e.active {
		e.active = true
		e.start = at
	}
	e.buf = append(e.buf, pcm...)
	e.end = at + time.Duration(len(pcm))*time.Second/time.Duration(e.sampleRate)

	res, err := e.rec.Transcribe(ctx, e.buf, e.sampleRate, false)
	if err != nil {
		e.Reset()
		return nil, fmt.Errorf("partial decode: %w", err)
	}
	// Partials grow monotonically; a shrinking hypothesis is withheld.
	if res.Text == "" || len(res.Text) < len(e.lastText) {
		return nil, nil
	}
	e.lastText = res.Text
	return &domain.TranscriptSegment{
		SessionID: e.sessionID,
		Text:      res.Text,
		Start:     e.start,
		End:       e.end,
		Final:     false,
	}, nil
}

// Finalize closes the utterance: it decodes the full buffer once more,
// emits the final segment, and resets recognition state. A silent
// utterance (empty buffer) yields no final.
func (e *Engine) Finalize(ctx context.Context) (*domain.TranscriptSegment, error) {
	if !e.active || len(e.buf) == 0 {
		e.Reset()
		return nil, nil
	}
	res, err := e.rec.Transcribe(ctx, e.buf, e.sampleRate, true)
	e.Reset()
	if err != nil {
		return nil, fmt.Errorf("final decode: %w", err)
	}
	if res.Text == "" {
		return nil, nil
	}
	seg := &domain.TranscriptSegment{
		SessionID:  e.sessionID,
		Text:       res.Text,
		Start:      e.start,
		End:        e.end,
		Confidence: res.Confidence,
		Final:      true,
		Words:      res.Words,
	}
	if len(seg.Words) == 0 {
		seg.Words = uniformWordTimings(res.Text, e.start, e.end)
	}
	return seg, nil
}

// Reset discards the buffer and hypothesis. Skipping it between
// utterances would contaminate the next hypothesis.
func (e *Engine) Reset() {
	e.buf = nil
	e.lastText = ""
	e.active = false
}

// Buffered reports how much audio the engine currently holds.
func (e *Engine) Buffered() time.Duration {
	return time.Duration(len(e.buf)) * time.Second / time.Duration(e.sampleRate)
}

// uniformWordTimings splits the utterance span evenly when the backend
// gives no word-level timing.
func uniformWordTimings(text string, start, end time.Duration) []domain.WordTiming {
	words := strings.Fields(text)
	if len(words) == 0 {
		return nil
	}
	span := end - start
	step := span / time.Duration(len(words))
	out := make([]domain.WordTiming, len(words))
	for i, w := range words {
		out[i] = domain.WordTiming{
			Word:  w,
			Start: start + time.Duration(i)*step,
			End:   start + time.Duration(i+1)*step,
		}
	}
	return out
}
