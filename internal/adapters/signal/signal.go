// Package signal is the persistent WebSocket signaling channel:
// register, offer/answer, trickled ICE candidates.
package signal

import (
	"context"
	"errors"
	"net/http"
	"sync"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/pion/webrtc/v4"
	"github.com/rs/zerolog/log"

	"github.com/hireloop/voicepipe/internal/core"
	"github.com/hireloop/voicepipe/internal/domain"
)

var ErrBackpressure = errors.New("backpressure")

// SessionControl is what the signaling protocol needs from the
// session controller.
type SessionControl interface {
	HandleOffer(sid core.SessionID, offer webrtc.SessionDescription) (*webrtc.SessionDescription, error)
	HandleAnswer(sid core.SessionID, answer webrtc.SessionDescription) error
	HandleCandidate(sid core.SessionID, cand webrtc.ICECandidateInit) error
	BindICE(sid core.SessionID, fn func(webrtc.ICECandidateInit)) error
	SessionState(sid core.SessionID) (domain.SessionState, error)
	Stop(sid core.SessionID) error
}

type Controller struct {
	Sessions SessionControl
	Limiter  *MessageRateLimiter
}

func NewController(sessions SessionControl) *Controller {
	return &Controller{
		Sessions: sessions,
		Limiter:  NewMessageRateLimiter(200, defaultRateWindow),
	}
}

// wsSignalConn is one client's signaling connection. It remembers
// which sessions registered on it so losing the socket tears all of
// them down.
type wsSignalConn struct {
	conn *websocket.Conn
	send chan core.Frame

	mu         sync.RWMutex
	closed     bool
	registered map[core.SessionID]struct{}
}

func (c *wsSignalConn) TrySend(f core.Frame) error {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.closed {
		return errors.New("connection closed")
	}
	select {
	case c.send <- f:
	default:
		return ErrBackpressure
	}
	return nil
}

func (c *wsSignalConn) Close() {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return
	}
	c.closed = true
	close(c.send)
	_ = c.conn.Close()
	c.mu.Unlock()
}

func (c *wsSignalConn) register(sid core.SessionID) {
	c.mu.Lock()
	c.registered[sid] = struct{}{}
	c.mu.Unlock()
}

func (c *wsSignalConn) sessions() []core.SessionID {
	c.mu.RLock()
	defer c.mu.RUnlock()
	out := make([]core.SessionID, 0, len(c.registered))
	for sid := range c.registered {
		out = append(out, sid)
	}
	return out
}

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool { return true },
}

func (ctl *Controller) HandleSignal(ctx context.Context, c *gin.Context) {
	token := c.GetString("client_token")
	log.Info().Str("module", "signal").Str("client", token).Msg("new WS connection")

	ws, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		log.Error().Err(err).Msg("ws upgrade")
		return
	}

	conn := &wsSignalConn{
		conn:       ws,
		send:       make(chan core.Frame, 32),
		registered: make(map[core.SessionID]struct{}),
	}

	ctx, cancel := context.WithCancel(ctx)
	go ctl.writePump(ctx, conn)
	go func() {
		defer cancel()
		ctl.readPump(ctx, token, conn)
	}()
}
