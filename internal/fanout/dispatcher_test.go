package fanout

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/hireloop/voicepipe/internal/domain"
	"github.com/hireloop/voicepipe/internal/metrics"
	"github.com/hireloop/voicepipe/internal/retry"
)

type fakeSink struct {
	mu   sync.Mutex
	segs []domain.SinkSegment
	err  error
}

func (f *fakeSink) PostSegment(_ context.Context, seg domain.SinkSegment) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return f.err
	}
	f.segs = append(f.segs, seg)
	return nil
}

func (f *fakeSink) segments() []domain.SinkSegment {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]domain.SinkSegment, len(f.segs))
	copy(out, f.segs)
	return out
}

type fakeDialogue struct {
	mu    sync.Mutex
	reqs  []domain.DialogueRequest
	reply domain.DialogueReply
	fails int // fail this many calls before succeeding
}

func (f *fakeDialogue) PostTranscript(_ context.Context, req domain.DialogueRequest) (domain.DialogueReply, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.fails > 0 {
		f.fails--
		return domain.DialogueReply{}, errors.New("engine unavailable")
	}
	f.reqs = append(f.reqs, req)
	return f.reply, nil
}

func (f *fakeDialogue) requests() []domain.DialogueRequest {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]domain.DialogueRequest, len(f.reqs))
	copy(out, f.reqs)
	return out
}

func testConfig() Config {
	return Config{
		QueueSize:      8,
		FinalWait:      100 * time.Millisecond,
		DeliveryBudget: time.Second,
		Retry:          retry.Config{MaxAttempts: 2, InitialDelay: time.Millisecond, MaxDelay: 5 * time.Millisecond, Multiplier: 2},
	}
}

func testParticipant() domain.Participant {
	return domain.Participant{Room: "room-1", ID: "cand-1"}
}

func waitFor(t *testing.T, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatal("condition not met in time")
}

func TestFinalFollowsPartials(t *testing.T) {
	sink := &fakeSink{}
	dialogue := &fakeDialogue{reply: domain.DialogueReply{ResponseText: "noted", ShouldSpeak: true}}
	q := NewQueue("s1", testParticipant(), sink, dialogue, testConfig(), metrics.NewNop())

	var replyMu sync.Mutex
	var replies []domain.DialogueReply
	q.OnReply(func(r domain.DialogueReply) {
		replyMu.Lock()
		replies = append(replies, r)
		replyMu.Unlock()
	})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	q.Start(ctx)

	q.Partial(domain.TranscriptSegment{SessionID: "s1", Text: "tell"})
	q.Partial(domain.TranscriptSegment{SessionID: "s1", Text: "tell me"})
	q.Final(domain.TranscriptSegment{SessionID: "s1", Text: "tell me more", Final: true, Confidence: 0.9})

	waitFor(t, func() bool { return len(sink.segments()) == 3 })

	segs := sink.segments()
	require.False(t, segs[0].IsFinal)
	require.False(t, segs[1].IsFinal)
	require.True(t, segs[2].IsFinal)
	require.Equal(t, "tell me more", segs[2].Text)
	require.Equal(t, "room-1", segs[2].RoomID)

	reqs := dialogue.requests()
	require.Len(t, reqs, 1)
	require.Equal(t, "tell me more", reqs[0].Text)

	replyMu.Lock()
	defer replyMu.Unlock()
	require.Len(t, replies, 1)
	require.True(t, replies[0].ShouldSpeak)
}

func TestSinkFailureDoesNotBlockDialogue(t *testing.T) {
	sink := &fakeSink{err: errors.New("sink down")}
	dialogue := &fakeDialogue{reply: domain.DialogueReply{ResponseText: "ok"}}
	q := NewQueue("s1", testParticipant(), sink, dialogue, testConfig(), metrics.NewNop())

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	q.Start(ctx)

	q.Final(domain.TranscriptSegment{SessionID: "s1", Text: "done", Final: true})

	waitFor(t, func() bool { return len(dialogue.requests()) == 1 })
}

func TestDialogueRetriesTransientFailure(t *testing.T) {
	sink := &fakeSink{}
	dialogue := &fakeDialogue{fails: 1, reply: domain.DialogueReply{ResponseText: "ok"}}
	q := NewQueue("s1", testParticipant(), sink, dialogue, testConfig(), metrics.NewNop())

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	q.Start(ctx)

	q.Final(domain.TranscriptSegment{SessionID: "s1", Text: "retried", Final: true})

	waitFor(t, func() bool { return len(dialogue.requests()) == 1 })
}

func TestPartialDroppedWhenQueueFull(t *testing.T) {
	cfg := testConfig()
	cfg.QueueSize = 1
	q := NewQueue("s1", testParticipant(), &fakeSink{}, &fakeDialogue{}, cfg, metrics.NewNop())

	// No worker running: first partial occupies the only slot, the
	// second must return immediately instead of blocking.
	q.Partial(domain.TranscriptSegment{SessionID: "s1", Text: "a"})
	done := make(chan struct{})
	go func() {
		q.Partial(domain.TranscriptSegment{SessionID: "s1", Text: "ab"})
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("partial enqueue blocked on full queue")
	}
}

func TestFinalWaitBounded(t *testing.T) {
	cfg := testConfig()
	cfg.QueueSize = 1
	cfg.FinalWait = 50 * time.Millisecond
	q := NewQueue("s1", testParticipant(), &fakeSink{}, &fakeDialogue{}, cfg, metrics.NewNop())

	q.Partial(domain.TranscriptSegment{SessionID: "s1", Text: "a"})

	start := time.Now()
	q.Final(domain.TranscriptSegment{SessionID: "s1", Text: "b", Final: true})
	elapsed := time.Since(start)
	require.GreaterOrEqual(t, elapsed, 50*time.Millisecond)
	require.Less(t, elapsed, time.Second)
}
