package pipeline

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestChunkerRegroupsFrames(t *testing.T) {
	c := newChunker(3200, 16000)

	frame := make([]int16, 320) // 20ms at 16k

	var events []Event
	for i := 0; i < 9; i++ {
		events = append(events, c.Add(frame, time.Duration(i)*20*time.Millisecond)...)
	}
	require.Empty(t, events)

	events = c.Add(frame, 180*time.Millisecond)
	require.Len(t, events, 1)
	require.Equal(t, EventChunk, events[0].Kind)
	require.Len(t, events[0].PCM, 3200)
	require.Equal(t, time.Duration(0), events[0].At)
}

func TestChunkerOffsetsAdvance(t *testing.T) {
	c := newChunker(3200, 16000)

	big := make([]int16, 6400) // two chunks at once
	events := c.Add(big, 500*time.Millisecond)
	require.Len(t, events, 2)
	require.Equal(t, 500*time.Millisecond, events[0].At)
	require.Equal(t, 700*time.Millisecond, events[1].At)
}

func TestChunkerFlushEmitsRemainderThenBoundary(t *testing.T) {
	c := newChunker(3200, 16000)

	c.Add(make([]int16, 1000), time.Second)
	events := c.Flush()
	require.Len(t, events, 2)
	require.Equal(t, EventChunk, events[0].Kind)
	require.Len(t, events[0].PCM, 1000)
	require.Equal(t, time.Second, events[0].At)
	require.Equal(t, EventBoundary, events[1].Kind)

	// Flushing an empty chunker yields only the boundary.
	events = c.Flush()
	require.Len(t, events, 1)
	require.Equal(t, EventBoundary, events[0].Kind)
}
