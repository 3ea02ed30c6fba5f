package signal

import (
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/pion/webrtc/v4"
	"github.com/stretchr/testify/require"

	"github.com/hireloop/voicepipe/internal/core"
	"github.com/hireloop/voicepipe/internal/domain"
)

type fakeControl struct {
	known      map[core.SessionID]domain.SessionState
	offers     []core.SessionID
	answers    []core.SessionID
	candidates []webrtc.ICECandidateInit
	stopped    []core.SessionID
	iceBound   []core.SessionID
	offerErr   error
}

func newFakeControl(sids ...core.SessionID) *fakeControl {
	known := make(map[core.SessionID]domain.SessionState)
	for _, sid := range sids {
		known[sid] = domain.SessionCreated
	}
	return &fakeControl{known: known}
}

func (f *fakeControl) HandleOffer(sid core.SessionID, offer webrtc.SessionDescription) (*webrtc.SessionDescription, error) {
	if f.offerErr != nil {
		return nil, f.offerErr
	}
	f.offers = append(f.offers, sid)
	return &webrtc.SessionDescription{Type: webrtc.SDPTypeAnswer, SDP: "answer-sdp"}, nil
}

func (f *fakeControl) HandleAnswer(sid core.SessionID, _ webrtc.SessionDescription) error {
	f.answers = append(f.answers, sid)
	return nil
}

func (f *fakeControl) HandleCandidate(_ core.SessionID, cand webrtc.ICECandidateInit) error {
	f.candidates = append(f.candidates, cand)
	return nil
}

func (f *fakeControl) BindICE(sid core.SessionID, _ func(webrtc.ICECandidateInit)) error {
	f.iceBound = append(f.iceBound, sid)
	return nil
}

func (f *fakeControl) SessionState(sid core.SessionID) (domain.SessionState, error) {
	state, ok := f.known[sid]
	if !ok {
		return 0, errors.New("session not found")
	}
	return state, nil
}

func (f *fakeControl) Stop(sid core.SessionID) error {
	f.stopped = append(f.stopped, sid)
	return nil
}

func testConn() *wsSignalConn {
	return &wsSignalConn{
		send:       make(chan core.Frame, 32),
		registered: make(map[core.SessionID]struct{}),
	}
}

func reply(t *testing.T, c *wsSignalConn) envelope {
	t.Helper()
	select {
	case data := <-c.send:
		var env envelope
		require.NoError(t, json.Unmarshal(data, &env))
		return env
	case <-time.After(time.Second):
		t.Fatal("no reply on send channel")
		return envelope{}
	}
}

func noReply(t *testing.T, c *wsSignalConn) {
	t.Helper()
	select {
	case data := <-c.send:
		t.Fatalf("unexpected reply: %s", data)
	default:
	}
}

func marshal(t *testing.T, env envelope) []byte {
	t.Helper()
	b, err := json.Marshal(env)
	require.NoError(t, err)
	return b
}

func TestRegisterAcknowledges(t *testing.T) {
	control := newFakeControl("s1")
	ctl := &Controller{Sessions: control}
	c := testConn()

	ctl.dispatch("client-1", c, marshal(t, envelope{Type: "register", PeerType: "candidate", SessionID: "s1"}))

	env := reply(t, c)
	require.Equal(t, "registered", env.Type)
	require.Equal(t, "s1", env.SessionID)
	require.Equal(t, "created", env.State)
	require.Contains(t, c.sessions(), core.SessionID("s1"))
	require.Equal(t, []core.SessionID{"s1"}, control.iceBound)
}

func TestRegisterUnknownSession(t *testing.T) {
	ctl := &Controller{Sessions: newFakeControl()}
	c := testConn()

	ctl.dispatch("client-1", c, marshal(t, envelope{Type: "register", SessionID: "ghost"}))

	env := reply(t, c)
	require.Equal(t, "error", env.Type)
	require.Equal(t, "unknown_session", env.Error)
	require.Empty(t, c.sessions())
}

func TestOfferReturnsAnswer(t *testing.T) {
	control := newFakeControl("s1")
	ctl := &Controller{Sessions: control}
	c := testConn()

	ctl.dispatch("client-1", c, marshal(t, envelope{Type: "offer", SessionID: "s1", SDP: "offer-sdp"}))

	env := reply(t, c)
	require.Equal(t, "answer", env.Type)
	require.Equal(t, "s1", env.SessionID)
	require.Equal(t, "answer-sdp", env.SDP)
	require.Equal(t, []core.SessionID{"s1"}, control.offers)
}

func TestOfferFailureReported(t *testing.T) {
	control := newFakeControl("s1")
	control.offerErr = errors.New("sdp rejected")
	ctl := &Controller{Sessions: control}
	c := testConn()

	ctl.dispatch("client-1", c, marshal(t, envelope{Type: "offer", SessionID: "s1", SDP: "bad"}))

	env := reply(t, c)
	require.Equal(t, "error", env.Type)
	require.Equal(t, "offer_failed", env.Error)
}

func TestCandidateForwarded(t *testing.T) {
	control := newFakeControl("s1")
	ctl := &Controller{Sessions: control}
	c := testConn()

	mid := "0"
	var line uint16 = 1
	ctl.dispatch("client-1", c, marshal(t, envelope{
		Type:      "ice_candidate",
		SessionID: "s1",
		Candidate: &candidatePayload{Candidate: "candidate:1 1 udp ...", SDPMid: &mid, SDPMLineIndex: &line},
	}))

	require.Len(t, control.candidates, 1)
	require.Equal(t, "candidate:1 1 udp ...", control.candidates[0].Candidate)
	require.Equal(t, "0", *control.candidates[0].SDPMid)
	noReply(t, c)
}

func TestCandidateWithoutBodyDropped(t *testing.T) {
	control := newFakeControl("s1")
	ctl := &Controller{Sessions: control}
	c := testConn()

	ctl.dispatch("client-1", c, marshal(t, envelope{Type: "ice_candidate", SessionID: "s1"}))
	require.Empty(t, control.candidates)
	noReply(t, c)
}

func TestPingPong(t *testing.T) {
	ctl := &Controller{Sessions: newFakeControl()}
	c := testConn()

	ctl.dispatch("client-1", c, marshal(t, envelope{Type: "ping"}))
	require.Equal(t, "pong", reply(t, c).Type)
}

func TestMalformedAndUnknownIgnored(t *testing.T) {
	control := newFakeControl("s1")
	ctl := &Controller{Sessions: control}
	c := testConn()

	ctl.dispatch("client-1", c, []byte("{not json"))
	ctl.dispatch("client-1", c, marshal(t, envelope{Type: "teleport", SessionID: "s1"}))

	noReply(t, c)
	require.Empty(t, control.offers)
}

func TestChannelLossStopsRegisteredSessions(t *testing.T) {
	control := newFakeControl("s1", "s2")
	ctl := &Controller{Sessions: control}
	c := testConn()

	ctl.dispatch("client-1", c, marshal(t, envelope{Type: "register", SessionID: "s1"}))
	ctl.dispatch("client-1", c, marshal(t, envelope{Type: "register", SessionID: "s2"}))

	ctl.teardown(c)
	require.ElementsMatch(t, []core.SessionID{"s1", "s2"}, control.stopped)
}

func TestRateLimiterRejects(t *testing.T) {
	control := newFakeControl("s1")
	ctl := &Controller{Sessions: control, Limiter: NewMessageRateLimiter(2, time.Minute)}
	c := testConn()

	ctl.dispatch("client-1", c, marshal(t, envelope{Type: "ping"}))
	ctl.dispatch("client-1", c, marshal(t, envelope{Type: "ping"}))
	ctl.dispatch("client-1", c, marshal(t, envelope{Type: "ping"}))

	require.Equal(t, "pong", reply(t, c).Type)
	require.Equal(t, "pong", reply(t, c).Type)
	require.Equal(t, "rate_limited", reply(t, c).Error)

	// A different client has its own budget.
	ctl.dispatch("client-2", c, marshal(t, envelope{Type: "ping"}))
	require.Equal(t, "pong", reply(t, c).Type)
}
