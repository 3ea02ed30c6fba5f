// Package control wraps the session's WebRTC data channel: outbound
// transcript envelopes with partial-eviction backpressure, inbound
// client directives.
package control

import (
	"encoding/json"
	"errors"
	"sync"
	"time"

	"github.com/pion/webrtc/v4"
	"github.com/rs/zerolog/log"

	"github.com/hireloop/voicepipe/internal/config"
	"github.com/hireloop/voicepipe/internal/core"
	"github.com/hireloop/voicepipe/internal/domain"
	"github.com/hireloop/voicepipe/internal/metrics"
)

var (
	ErrChannelClosed = errors.New("control channel closed")
	ErrFinalTimeout  = errors.New("control buffer jammed with finals")
)

type msgKind int

const (
	kindPartial msgKind = iota
	kindFinal
)

type outMsg struct {
	kind    msgKind
	payload core.Frame
}

// dataChannel is the slice of *webrtc.DataChannel the wrapper needs.
type dataChannel interface {
	Send([]byte) error
	OnMessage(func(webrtc.DataChannelMessage))
	Label() string
	Close() error
}

// Channel serializes outbound messages through a bounded buffer. When
// the buffer is full a new partial evicts the oldest buffered partial;
// finals are never evicted and instead wait, bounded, for room.
type Channel struct {
	dc  dataChannel
	sid string
	cfg config.ControlConfig
	m   *metrics.Metrics

	mu     sync.Mutex
	cond   *sync.Cond
	queue  []outMsg
	closed bool

	onDirective func(directive string)
}

var _ core.ControlSender = (*Channel)(nil)

func NewChannel(sid string, dc dataChannel, cfg config.ControlConfig, m *metrics.Metrics) *Channel {
	if cfg.BufferSize <= 0 {
		cfg.BufferSize = 64
	}
	if cfg.FinalWait <= 0 {
		cfg.FinalWait = 500 * time.Millisecond
	}
	c := &Channel{dc: dc, sid: sid, cfg: cfg, m: m}
	c.cond = sync.NewCond(&c.mu)

	dc.OnMessage(c.handleInbound)
	go c.writeLoop()
	return c
}

// OnDirective registers the handler for pause/resume directives from
// the remote client.
func (c *Channel) OnDirective(fn func(directive string)) {
	c.mu.Lock()
	c.onDirective = fn
	c.mu.Unlock()
}

// SendPartial enqueues best-effort. A full buffer costs the oldest
// partial its slot; if the buffer is all finals the new partial loses.
func (c *Channel) SendPartial(payload core.Frame) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return
	}
	if len(c.queue) >= c.cfg.BufferSize && !c.evictOldestPartialLocked() {
		c.m.FramesDropped.Inc()
		log.Debug().Str("module", "control").Str("sid", c.sid).Msg("partial dropped: buffer full of finals")
		return
	}
	c.queue = append(c.queue, outMsg{kind: kindPartial, payload: payload})
	c.cond.Signal()
}

// SendFinal enqueues, evicting a buffered partial if needed. With the
// buffer full of finals it waits up to FinalWait for the writer.
func (c *Channel) SendFinal(payload core.Frame) error {
	deadline := time.Now().Add(c.cfg.FinalWait)
	c.mu.Lock()
	defer c.mu.Unlock()
	for {
		if c.closed {
			return ErrChannelClosed
		}
		if len(c.queue) < c.cfg.BufferSize || c.evictOldestPartialLocked() {
			c.queue = append(c.queue, outMsg{kind: kindFinal, payload: payload})
			c.cond.Signal()
			return nil
		}
		wait := time.Until(deadline)
		if wait <= 0 {
			return ErrFinalTimeout
		}
		c.waitLocked(wait)
	}
}

// waitLocked blocks on the queue condition for at most d.
func (c *Channel) waitLocked(d time.Duration) {
	timer := time.AfterFunc(d, func() { c.cond.Broadcast() })
	defer timer.Stop()
	c.cond.Wait()
}

func (c *Channel) evictOldestPartialLocked() bool {
	for i, m := range c.queue {
		if m.kind == kindPartial {
			c.queue = append(c.queue[:i], c.queue[i+1:]...)
			c.m.FramesDropped.Inc()
			return true
		}
	}
	return false
}

func (c *Channel) writeLoop() {
	for {
		c.mu.Lock()
		for len(c.queue) == 0 && !c.closed {
			c.cond.Wait()
		}
		if c.closed && len(c.queue) == 0 {
			c.mu.Unlock()
			return
		}
		msg := c.queue[0]
		c.queue = c.queue[1:]
		c.cond.Broadcast()
		c.mu.Unlock()

		if err := c.dc.Send(msg.payload); err != nil {
			log.Warn().Err(err).Str("module", "control").Str("sid", c.sid).Msg("data channel send failed")
			c.m.DeliveryFailures.WithLabelValues("control").Inc()
		}
	}
}

func (c *Channel) handleInbound(raw webrtc.DataChannelMessage) {
	var msg domain.ControlMessage
	if err := json.Unmarshal(raw.Data, &msg); err != nil {
		log.Debug().Err(err).Str("module", "control").Str("sid", c.sid).Msg("unreadable inbound control message")
		return
	}
	if msg.Type != domain.MsgDirective {
		return
	}
	switch msg.Directive {
	case domain.DirectivePause, domain.DirectiveResume:
		c.mu.Lock()
		fn := c.onDirective
		c.mu.Unlock()
		if fn != nil {
			fn(msg.Directive)
		}
	default:
		log.Debug().Str("module", "control").Str("sid", c.sid).Str("directive", msg.Directive).Msg("unknown directive ignored")
	}
}

// Close stops the writer after the buffered messages drain.
func (c *Channel) Close() {
	c.mu.Lock()
	c.closed = true
	c.cond.Broadcast()
	c.mu.Unlock()
	_ = c.dc.Close()
}
