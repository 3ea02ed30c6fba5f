package signal

import (
	"github.com/pion/webrtc/v4"
	"github.com/rs/zerolog/log"

	"github.com/hireloop/voicepipe/internal/core"
)

// handleRegister binds a session id to this channel and acknowledges.
// The session must have been started through the lifecycle surface.
func (ctl *Controller) handleRegister(c *wsSignalConn, env envelope) {
	sid := core.SessionID(env.SessionID)
	state, err := ctl.Sessions.SessionState(sid)
	if err != nil {
		log.Warn().Err(err).Str("module", "signal").Str("sid", env.SessionID).Msg("register for unknown session")
		ctl.sendJSON(c, envelope{Type: "error", SessionID: env.SessionID, Error: "unknown_session"})
		return
	}

	c.register(sid)

	// Trickle locally gathered candidates back over this channel.
	if err := ctl.Sessions.BindICE(sid, func(ci webrtc.ICECandidateInit) {
		ctl.sendCandidate(c, sid, ci)
	}); err != nil {
		log.Error().Err(err).Str("module", "signal").Str("sid", env.SessionID).Msg("bind ice relay")
	}

	log.Info().Str("module", "signal").Str("sid", env.SessionID).Str("peer_type", env.PeerType).Msg("registered")
	ctl.sendJSON(c, envelope{Type: "registered", SessionID: env.SessionID, State: state.String()})
}

func (ctl *Controller) handleOffer(c *wsSignalConn, env envelope) {
	sid := core.SessionID(env.SessionID)
	answer, err := ctl.Sessions.HandleOffer(sid, webrtc.SessionDescription{
		Type: webrtc.SDPTypeOffer,
		SDP:  env.SDP,
	})
	if err != nil {
		log.Error().Err(err).Str("module", "signal").Str("sid", env.SessionID).Msg("apply offer")
		ctl.sendJSON(c, envelope{Type: "error", SessionID: env.SessionID, Error: "offer_failed"})
		return
	}
	ctl.sendJSON(c, envelope{Type: "answer", SessionID: env.SessionID, SDP: answer.SDP})
}

func (ctl *Controller) handleAnswer(c *wsSignalConn, env envelope) {
	sid := core.SessionID(env.SessionID)
	err := ctl.Sessions.HandleAnswer(sid, webrtc.SessionDescription{
		Type: webrtc.SDPTypeAnswer,
		SDP:  env.SDP,
	})
	if err != nil {
		log.Error().Err(err).Str("module", "signal").Str("sid", env.SessionID).Msg("apply answer")
		ctl.sendJSON(c, envelope{Type: "error", SessionID: env.SessionID, Error: "answer_failed"})
	}
}

func (ctl *Controller) handleCandidate(c *wsSignalConn, env envelope) {
	if env.Candidate == nil {
		log.Error().Str("module", "signal").Str("sid", env.SessionID).Msg("candidate message without candidate")
		return
	}
	cand := webrtc.ICECandidateInit{
		Candidate:     env.Candidate.Candidate,
		SDPMid:        env.Candidate.SDPMid,
		SDPMLineIndex: env.Candidate.SDPMLineIndex,
	}
	sid := core.SessionID(env.SessionID)
	if err := ctl.Sessions.HandleCandidate(sid, cand); err != nil {
		log.Error().Err(err).Str("module", "signal").Str("sid", env.SessionID).Msg("add ice candidate")
	}
}

func (ctl *Controller) sendCandidate(c *wsSignalConn, sid core.SessionID, ci webrtc.ICECandidateInit) {
	ctl.sendJSON(c, envelope{
		Type:      "ice_candidate",
		SessionID: string(sid),
		Candidate: &candidatePayload{
			Candidate:     ci.Candidate,
			SDPMid:        ci.SDPMid,
			SDPMLineIndex: ci.SDPMLineIndex,
		},
	})
}

func (ctl *Controller) handlePing(c *wsSignalConn) {
	ctl.sendJSON(c, envelope{Type: "pong"})
}
