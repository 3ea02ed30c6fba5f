// Package fanout routes transcript segments to the live transcript
// sink, the dialogue engine, and the session's control channel.
package fanout

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/hireloop/voicepipe/internal/core"
	"github.com/hireloop/voicepipe/internal/domain"
	"github.com/hireloop/voicepipe/internal/metrics"
	"github.com/hireloop/voicepipe/internal/retry"
)

// Sink is the live transcript display; delivery is best-effort.
type Sink interface {
	PostSegment(ctx context.Context, seg domain.SinkSegment) error
}

// Dialogue is the response engine; a dropped final means a missed
// conversational turn, so finals get bounded retry.
type Dialogue interface {
	PostTranscript(ctx context.Context, req domain.DialogueRequest) (domain.DialogueReply, error)
}

type Config struct {
	QueueSize      int
	FinalWait      time.Duration // how long Final may wait for queue room
	DeliveryBudget time.Duration // per-delivery timeout
	Retry          retry.Config
}

func (c *Config) defaults() {
	if c.QueueSize <= 0 {
		c.QueueSize = 32
	}
	if c.FinalWait <= 0 {
		c.FinalWait = 500 * time.Millisecond
	}
	if c.DeliveryBudget <= 0 {
		c.DeliveryBudget = 5 * time.Second
	}
	if c.Retry.MaxAttempts == 0 {
		c.Retry = retry.DefaultConfig()
	}
}

// Queue is one session's transcript delivery queue: a single FIFO and
// worker, so the final for an utterance always follows its partials.
// Slow sinks back up this queue, never the audio path.
type Queue struct {
	sid         string
	participant domain.Participant
	sink        Sink
	dialogue    Dialogue
	cfg         Config
	m           *metrics.Metrics

	mu      sync.RWMutex
	control core.ControlSender
	onReply func(domain.DialogueReply)

	ch chan domain.TranscriptSegment
	wg sync.WaitGroup
}

func NewQueue(sid string, participant domain.Participant, sink Sink, dialogue Dialogue, cfg Config, m *metrics.Metrics) *Queue {
	cfg.defaults()
	return &Queue{
		sid:         sid,
		participant: participant,
		sink:        sink,
		dialogue:    dialogue,
		cfg:         cfg,
		m:           m,
		ch:          make(chan domain.TranscriptSegment, cfg.QueueSize),
	}
}

// SetControl attaches the control channel once the peer opens it.
func (q *Queue) SetControl(c core.ControlSender) {
	q.mu.Lock()
	q.control = c
	q.mu.Unlock()
}

// OnReply registers the dialogue turn callback (e.g. speak the answer).
func (q *Queue) OnReply(fn func(domain.DialogueReply)) {
	q.mu.Lock()
	q.onReply = fn
	q.mu.Unlock()
}

// Start launches the delivery worker; it stops when ctx is cancelled.
func (q *Queue) Start(ctx context.Context) {
	q.wg.Add(1)
	go func() {
		defer q.wg.Done()
		for {
			select {
			case <-ctx.Done():
				return
			case seg := <-q.ch:
				q.deliver(ctx, seg)
			}
		}
	}()
}

// Wait blocks until the worker has exited.
func (q *Queue) Wait() { q.wg.Wait() }

// Partial enqueues best-effort: on a full queue the update is dropped
// and logged, never blocking the caller.
func (q *Queue) Partial(seg domain.TranscriptSegment) {
	select {
	case q.ch <- seg:
	default:
		q.m.FramesDropped.Inc()
		log.Debug().Str("module", "fanout").Str("sid", q.sid).Msg("partial dropped on full queue")
	}
}

// Final enqueues with bounded blocking; a final is only abandoned when
// the queue stays full past the configured wait.
func (q *Queue) Final(seg domain.TranscriptSegment) {
	select {
	case q.ch <- seg:
	case <-time.After(q.cfg.FinalWait):
		q.m.DeliveryFailures.WithLabelValues("queue").Inc()
		log.Error().Str("module", "fanout").Str("sid", q.sid).Msg("final abandoned: delivery queue jammed")
	}
}

func (q *Queue) deliver(ctx context.Context, seg domain.TranscriptSegment) {
	q.sendControl(seg)
	q.sendSink(ctx, seg)
	if seg.Final {
		q.m.TranscriptsEmitted.WithLabelValues("final").Inc()
		q.sendDialogue(ctx, seg)
	} else {
		q.m.TranscriptsEmitted.WithLabelValues("partial").Inc()
	}
}

func (q *Queue) sendControl(seg domain.TranscriptSegment) {
	q.mu.RLock()
	control := q.control
	q.mu.RUnlock()
	if control == nil {
		return
	}

	kind := domain.MsgTranscriptPartial
	if seg.Final {
		kind = domain.MsgTranscriptFinal
	}
	payload, err := json.Marshal(domain.ControlMessage{
		Type:       kind,
		SessionID:  seg.SessionID,
		Text:       seg.Text,
		Timestamp:  time.Now().UTC(),
		Confidence: seg.Confidence,
		Words:      seg.Words,
	})
	if err != nil {
		log.Error().Err(err).Str("module", "fanout").Msg("marshal control message")
		return
	}
	if seg.Final {
		if err := control.SendFinal(payload); err != nil {
			q.m.DeliveryFailures.WithLabelValues("control").Inc()
			log.Warn().Err(err).Str("module", "fanout").Str("sid", q.sid).Msg("control final send failed")
		}
	} else {
		control.SendPartial(payload)
	}
}

func (q *Queue) sendSink(ctx context.Context, seg domain.TranscriptSegment) {
	sinkCtx, cancel := context.WithTimeout(ctx, q.cfg.DeliveryBudget)
	defer cancel()
	err := q.sink.PostSegment(sinkCtx, domain.SinkSegment{
		RoomID:        string(q.participant.Room),
		SessionID:     seg.SessionID,
		ParticipantID: string(q.participant.ID),
		Text:          seg.Text,
		StartTime:     seg.Start.Seconds(),
		EndTime:       seg.End.Seconds(),
		Confidence:    seg.Confidence,
		IsFinal:       seg.Final,
		Words:         seg.Words,
	})
	if err != nil {
		// Sink failure never couples into the dialogue path.
		q.m.DeliveryFailures.WithLabelValues("sink").Inc()
		log.Warn().Err(err).Str("module", "fanout").Str("sid", q.sid).Msg("sink delivery failed")
	}
}

func (q *Queue) sendDialogue(ctx context.Context, seg domain.TranscriptSegment) {
	var reply domain.DialogueReply
	err := retry.Do(ctx, q.cfg.Retry, func() error {
		callCtx, cancel := context.WithTimeout(ctx, q.cfg.DeliveryBudget)
		defer cancel()
		var callErr error
		reply, callErr = q.dialogue.PostTranscript(callCtx, domain.DialogueRequest{
			SessionID: seg.SessionID,
			Text:      seg.Text,
			Metadata: map[string]string{
				"room_id":        string(q.participant.Room),
				"participant_id": string(q.participant.ID),
			},
		})
		return callErr
	})
	if err != nil {
		q.m.DeliveryFailures.WithLabelValues("dialogue").Inc()
		log.Error().Err(err).Str("module", "fanout").Str("sid", q.sid).Msg("dialogue delivery failed after retries")
		return
	}

	q.mu.RLock()
	onReply := q.onReply
	q.mu.RUnlock()
	if onReply != nil {
		onReply(reply)
	}
}
