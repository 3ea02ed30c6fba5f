package pipeline

import (
	"context"

	"github.com/rs/zerolog/log"

	"github.com/hireloop/voicepipe/internal/asr"
	"github.com/hireloop/voicepipe/internal/domain"
)

// TranscriptOut receives recognition results in utterance order.
type TranscriptOut interface {
	Partial(domain.TranscriptSegment)
	Final(domain.TranscriptSegment)
}

// Worker feeds pipeline events through the recognition engine. One
// worker per session keeps transcripts strictly ordered.
type Worker struct {
	sid    string
	engine *asr.Engine
	events <-chan Event
	out    TranscriptOut
}

func NewWorker(sid string, engine *asr.Engine, events <-chan Event, out TranscriptOut) *Worker {
	return &Worker{sid: sid, engine: engine, events: events, out: out}
}

func (w *Worker) Run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case ev := <-w.events:
			w.handle(ctx, ev)
		}
	}
}

func (w *Worker) handle(ctx context.Context, ev Event) {
	switch ev.Kind {
	case EventChunk:
		seg, err := w.engine.PushChunk(ctx, ev.PCM, ev.At)
		if err != nil {
			// Engine already reset itself; the utterance is lost but
			// the session keeps listening.
			log.Warn().Err(err).Str("module", "pipeline").Str("sid", w.sid).Msg("recognition chunk failed")
			return
		}
		if seg != nil {
			w.out.Partial(*seg)
		}
	case EventBoundary:
		seg, err := w.engine.Finalize(ctx)
		if err != nil {
			log.Warn().Err(err).Str("module", "pipeline").Str("sid", w.sid).Msg("finalize failed")
			return
		}
		if seg != nil {
			w.out.Final(*seg)
		}
	}
}
