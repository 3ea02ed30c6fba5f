package signal

import (
	"context"
	"encoding/json"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"
)

// envelope is the JSON wire shape shared by every signaling message.
type envelope struct {
	Type      string            `json:"type"`
	PeerType  string            `json:"peer_type,omitempty"`
	SessionID string            `json:"session_id,omitempty"`
	SDP       string            `json:"sdp,omitempty"`
	Candidate *candidatePayload `json:"candidate,omitempty"`
	Error     string            `json:"error,omitempty"`
	State     string            `json:"state,omitempty"`
}

type candidatePayload struct {
	Candidate     string  `json:"candidate"`
	SDPMid        *string `json:"sdpMid,omitempty"`
	SDPMLineIndex *uint16 `json:"sdpMLineIndex,omitempty"`
}

func (ctl *Controller) writePump(ctx context.Context, c *wsSignalConn) {
	for {
		select {
		case <-ctx.Done():
			log.Info().Str("module", "signal").Msg("writePump ctx done")
			return
		case data, ok := <-c.send:
			if !ok {
				log.Warn().Str("module", "signal").Msg("writePump channel closed")
				return
			}
			if err := c.conn.SetWriteDeadline(time.Now().Add(5 * time.Second)); err != nil {
				log.Error().Err(err).Str("module", "signal").Msg("writePump set deadline")
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, data); err != nil {
				log.Error().Err(err).Str("module", "signal").Msg("writePump write error")
				return
			}
		}
	}
}

func (ctl *Controller) readPump(ctx context.Context, client string, c *wsSignalConn) {
	defer func() {
		log.Info().Str("module", "signal").Str("client", client).Msg("readPump closing")
		ctl.teardown(c)
		c.Close()
	}()

	for {
		select {
		case <-ctx.Done():
			log.Info().Str("module", "signal").Str("client", client).Msg("readPump ctx done")
			return
		default:
			_, data, err := c.conn.ReadMessage()
			if err != nil {
				log.Error().Err(err).Str("module", "signal").Str("client", client).Msg("readPump read error")
				return
			}
			ctl.dispatch(client, c, data)
		}
	}
}

// teardown stops every session that was registered over this channel.
func (ctl *Controller) teardown(c *wsSignalConn) {
	for _, sid := range c.sessions() {
		log.Info().Str("module", "signal").Str("sid", string(sid)).Msg("channel lost, stopping session")
		if err := ctl.Sessions.Stop(sid); err != nil {
			log.Error().Err(err).Str("module", "signal").Str("sid", string(sid)).Msg("teardown stop")
		}
	}
}

// dispatch routes one inbound message. A malformed payload costs only
// that message.
func (ctl *Controller) dispatch(client string, c *wsSignalConn, data []byte) {
	var env envelope
	if err := json.Unmarshal(data, &env); err != nil {
		log.Error().Err(err).Str("module", "signal").Msg("bad json")
		return
	}

	if ctl.Limiter != nil && !ctl.Limiter.Allow(client) {
		log.Warn().Str("module", "signal").Str("client", client).Str("type", env.Type).Msg("rate limited")
		ctl.sendJSON(c, envelope{Type: "error", SessionID: env.SessionID, Error: "rate_limited"})
		return
	}

	switch env.Type {
	case "register":
		ctl.handleRegister(c, env)
	case "offer":
		ctl.handleOffer(c, env)
	case "answer":
		ctl.handleAnswer(c, env)
	case "ice_candidate":
		ctl.handleCandidate(c, env)
	case "ping":
		ctl.handlePing(c)
	default:
		log.Warn().Str("module", "signal").Str("type", env.Type).Msg("unknown signal")
	}
}

func (ctl *Controller) sendJSON(c *wsSignalConn, v any) {
	b, err := json.Marshal(v)
	if err != nil {
		log.Error().Err(err).Str("module", "signal").Msg("sendJSON marshal")
		return
	}
	if err := c.TrySend(b); err != nil {
		log.Warn().Err(err).Str("module", "signal").Msg("sendJSON dropped")
	}
}
