// Package app wires sessions together and owns their lifecycle.
package app

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/pion/webrtc/v4"
	"github.com/rs/zerolog/log"

	"github.com/hireloop/voicepipe/internal/asr"
	"github.com/hireloop/voicepipe/internal/config"
	"github.com/hireloop/voicepipe/internal/core"
	"github.com/hireloop/voicepipe/internal/domain"
	"github.com/hireloop/voicepipe/internal/fanout"
	"github.com/hireloop/voicepipe/internal/metrics"
	"github.com/hireloop/voicepipe/internal/tts"
)

var ErrSessionNotFound = errors.New("session not found")

// ConnFactory builds the peer connection for a new session; tests
// inject fakes here.
type ConnFactory func(sid core.SessionID) (core.MediaConn, error)

type sessionEntry struct {
	Participant domain.Participant
	Session     *Session
	Cancel      context.CancelFunc
}

// Manager is the authority on session lifecycle. Start and Stop are
// idempotent; signaling and synthesis operations require a live entry.
type Manager struct {
	cfg      *config.Config
	m        *metrics.Metrics
	rec      asr.Recognizer
	synth    tts.Synthesizer
	sink     fanout.Sink
	dialogue fanout.Dialogue
	newConn  ConnFactory

	mu       sync.RWMutex
	sessions map[core.SessionID]*sessionEntry
}

func NewManager(
	cfg *config.Config,
	rec asr.Recognizer,
	synth tts.Synthesizer,
	sink fanout.Sink,
	dialogue fanout.Dialogue,
	newConn ConnFactory,
	m *metrics.Metrics,
) *Manager {
	return &Manager{
		cfg:      cfg,
		m:        m,
		rec:      rec,
		synth:    synth,
		sink:     sink,
		dialogue: dialogue,
		newConn:  newConn,
		sessions: make(map[core.SessionID]*sessionEntry),
	}
}

// Start creates the session's pipeline. Starting an existing session
// is a no-op so clients can retry safely.
func (mgr *Manager) Start(ctx context.Context, req domain.StartRequest) error {
	if err := domain.ValidateSessionID(req.SessionID); err != nil {
		return err
	}
	sid := core.SessionID(req.SessionID)

	mgr.mu.Lock()
	defer mgr.mu.Unlock()
	if _, ok := mgr.sessions[sid]; ok {
		log.Info().Str("module", "app.manager").Str("sid", req.SessionID).Msg("start ignored: session exists")
		return nil
	}

	conn, err := mgr.newConn(sid)
	if err != nil {
		return fmt.Errorf("create peer connection: %w", err)
	}

	participant := domain.Participant{
		Room:           domain.RoomID(req.RoomID),
		ID:             domain.ParticipantID(req.ParticipantID),
		JobDescription: req.JobDescription,
	}
	sess, err := newSession(sid, participant, mgr.cfg, conn, mgr.rec, mgr.synth, mgr.sink, mgr.dialogue, mgr.m)
	if err != nil {
		conn.Close()
		return fmt.Errorf("build session: %w", err)
	}

	sessCtx, cancel := context.WithCancel(ctx)
	sess.onClosed = func() { go mgr.remove(sid) }
	if err := sess.start(sessCtx); err != nil {
		cancel()
		conn.Close()
		return fmt.Errorf("start session: %w", err)
	}

	mgr.sessions[sid] = &sessionEntry{Participant: participant, Session: sess, Cancel: cancel}
	mgr.m.SessionsActive.Inc()
	log.Info().Str("module", "app.manager").Str("sid", req.SessionID).Str("room", req.RoomID).Msg("session started")
	return nil
}

// Stop tears the session down. Stopping an unknown session is a no-op.
func (mgr *Manager) Stop(sid core.SessionID) error {
	mgr.mu.Lock()
	entry, ok := mgr.sessions[sid]
	if ok {
		delete(mgr.sessions, sid)
	}
	mgr.mu.Unlock()
	if !ok {
		log.Info().Str("module", "app.manager").Str("sid", string(sid)).Msg("stop ignored: no such session")
		return nil
	}

	entry.Session.close()
	entry.Cancel()
	mgr.m.SessionsActive.Dec()
	log.Info().Str("module", "app.manager").Str("sid", string(sid)).Msg("session stopped")
	return nil
}

// remove cleans up after the peer connection died on its own.
func (mgr *Manager) remove(sid core.SessionID) {
	mgr.mu.Lock()
	entry, ok := mgr.sessions[sid]
	if ok {
		delete(mgr.sessions, sid)
	}
	mgr.mu.Unlock()
	if !ok {
		return
	}
	entry.Session.close()
	entry.Cancel()
	mgr.m.SessionsActive.Dec()
	log.Info().Str("module", "app.manager").Str("sid", string(sid)).Msg("session removed after peer loss")
}

func (mgr *Manager) get(sid core.SessionID) (*Session, error) {
	mgr.mu.RLock()
	defer mgr.mu.RUnlock()
	entry, ok := mgr.sessions[sid]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrSessionNotFound, sid)
	}
	return entry.Session, nil
}

// HandleOffer applies the remote offer and returns the local answer.
func (mgr *Manager) HandleOffer(sid core.SessionID, offer webrtc.SessionDescription) (*webrtc.SessionDescription, error) {
	sess, err := mgr.get(sid)
	if err != nil {
		return nil, err
	}
	sess.state.Store(int32(domain.SessionNegotiating))
	answer, err := sess.conn.ApplyOfferAndCreateAnswer(offer)
	if err != nil {
		return nil, fmt.Errorf("apply offer: %w", err)
	}
	return answer, nil
}

// HandleAnswer completes a renegotiation this side initiated.
func (mgr *Manager) HandleAnswer(sid core.SessionID, answer webrtc.SessionDescription) error {
	sess, err := mgr.get(sid)
	if err != nil {
		return err
	}
	if err := sess.conn.ApplyAnswer(answer); err != nil {
		return fmt.Errorf("apply answer: %w", err)
	}
	return nil
}

// HandleCandidate applies a trickled remote ICE candidate.
func (mgr *Manager) HandleCandidate(sid core.SessionID, cand webrtc.ICECandidateInit) error {
	sess, err := mgr.get(sid)
	if err != nil {
		return err
	}
	if err := sess.conn.AddICECandidate(cand); err != nil {
		return fmt.Errorf("add ice candidate: %w", err)
	}
	return nil
}

// BindICE routes the session's locally gathered candidates to the
// signaling channel the client registered on.
func (mgr *Manager) BindICE(sid core.SessionID, fn func(webrtc.ICECandidateInit)) error {
	sess, err := mgr.get(sid)
	if err != nil {
		return err
	}
	sess.conn.OnICECandidate(fn)
	return nil
}

// Synthesize speaks text on the session's outbound track.
func (mgr *Manager) Synthesize(sid core.SessionID, text string) error {
	sess, err := mgr.get(sid)
	if err != nil {
		return err
	}
	return sess.Speak(text)
}

// SessionState reports the lifecycle state for status surfaces.
func (mgr *Manager) SessionState(sid core.SessionID) (domain.SessionState, error) {
	sess, err := mgr.get(sid)
	if err != nil {
		return 0, err
	}
	return sess.State(), nil
}

func (mgr *Manager) SessionCount() int {
	mgr.mu.RLock()
	defer mgr.mu.RUnlock()
	return len(mgr.sessions)
}

// Shutdown stops every live session, for process teardown.
func (mgr *Manager) Shutdown() {
	mgr.mu.Lock()
	sids := make([]core.SessionID, 0, len(mgr.sessions))
	for sid := range mgr.sessions {
		sids = append(sids, sid)
	}
	mgr.mu.Unlock()
	for _, sid := range sids {
		_ = mgr.Stop(sid)
	}
}
