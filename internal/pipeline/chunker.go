package pipeline

import "time"

type EventKind int

const (
	// EventChunk carries one recognition chunk of voiced audio.
	EventChunk EventKind = iota
	// EventBoundary marks the end of an utterance.
	EventBoundary
)

type Event struct {
	Kind EventKind
	PCM  []int16
	At   time.Duration // media-relative start of the chunk
}

// chunker regroups voiced frames into fixed-size recognition chunks,
// carrying the media offset of each chunk along.
type chunker struct {
	size int
	rate int
	buf  []int16
	at   time.Duration
}

func newChunker(size, rate int) *chunker {
	return &chunker{size: size, rate: rate}
}

// Add buffers voiced samples starting at media offset `at` and returns
// any full chunks that result.
func (c *chunker) Add(pcm []int16, at time.Duration) []Event {
	if len(c.buf) == 0 {
		c.at = at
	}
	c.buf = append(c.buf, pcm...)

	var events []Event
	for len(c.buf) >= c.size {
		chunk := make([]int16, c.size)
		copy(chunk, c.buf[:c.size])
		c.buf = c.buf[c.size:]
		events = append(events, Event{Kind: EventChunk, PCM: chunk, At: c.at})
		c.at += time.Duration(c.size) * time.Second / time.Duration(c.rate)
	}
	return events
}

// Flush emits the buffered remainder, if any, followed by the
// utterance boundary.
func (c *chunker) Flush() []Event {
	var events []Event
	if len(c.buf) > 0 {
		chunk := make([]int16, len(c.buf))
		copy(chunk, c.buf)
		events = append(events, Event{Kind: EventChunk, PCM: chunk, At: c.at})
		c.buf = c.buf[:0]
	}
	return append(events, Event{Kind: EventBoundary})
}
