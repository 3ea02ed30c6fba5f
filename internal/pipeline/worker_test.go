package pipeline

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/hireloop/voicepipe/internal/asr"
	"github.com/hireloop/voicepipe/internal/config"
	"github.com/hireloop/voicepipe/internal/domain"
)

type collectingOut struct {
	mu       sync.Mutex
	partials []domain.TranscriptSegment
	finals   []domain.TranscriptSegment
}

func (c *collectingOut) Partial(seg domain.TranscriptSegment) {
	c.mu.Lock()
	c.partials = append(c.partials, seg)
	c.mu.Unlock()
}

func (c *collectingOut) Final(seg domain.TranscriptSegment) {
	c.mu.Lock()
	c.finals = append(c.finals, seg)
	c.mu.Unlock()
}

func (c *collectingOut) counts() (int, int) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.partials), len(c.finals)
}

func TestWorkerProducesPartialsThenFinal(t *testing.T) {
	rec, err := asr.NewRecognizer(config.RecognitionConfig{Mode: "mock", SampleRate: 16000})
	require.NoError(t, err)
	engine := asr.NewEngine(rec, "s1", 16000)

	events := make(chan Event, 8)
	out := &collectingOut{}
	w := NewWorker("s1", engine, events, out)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	done := make(chan struct{})
	go func() {
		w.Run(ctx)
		close(done)
	}()

	chunk := make([]int16, 3200)
	for i := range chunk {
		chunk[i] = int16(i % 2000)
	}
	events <- Event{Kind: EventChunk, PCM: chunk, At: 0}
	events <- Event{Kind: EventChunk, PCM: chunk, At: 200 * time.Millisecond}
	events <- Event{Kind: EventBoundary}

	require.Eventually(t, func() bool {
		_, finals := out.counts()
		return finals == 1
	}, 2*time.Second, 10*time.Millisecond)

	partials, finals := out.counts()
	require.Greater(t, partials, 0)
	require.Equal(t, 1, finals)

	out.mu.Lock()
	final := out.finals[0]
	out.mu.Unlock()
	require.True(t, final.Final)
	require.NotEmpty(t, final.Text)
	require.Equal(t, "s1", final.SessionID)

	cancel()
	<-done
}
