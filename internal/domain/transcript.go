package domain

import "time"

// WordTiming locates one recognized word inside its utterance.
type WordTiming struct {
	Word  string        `json:"word"`
	Start time.Duration `json:"start"`
	End   time.Duration `json:"end"`
}

// TranscriptSegment is immutable once emitted. An utterance yields
// zero-or-more partials followed by at most one final.
type TranscriptSegment struct {
	SessionID  string
	Text       string
	Start      time.Duration
	End        time.Duration
	Confidence float64
	Final      bool
	Words      []WordTiming
}
