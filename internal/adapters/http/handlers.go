package http

import (
	"context"
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog/log"

	"github.com/hireloop/voicepipe/internal/adapters/signal"
	"github.com/hireloop/voicepipe/internal/app"
	"github.com/hireloop/voicepipe/internal/core"
	"github.com/hireloop/voicepipe/internal/domain"
	"github.com/hireloop/voicepipe/internal/tts"
)

// SessionManager is the lifecycle surface the HTTP layer drives; it
// is a superset of what signaling needs.
type SessionManager interface {
	signal.SessionControl
	Start(ctx context.Context, req domain.StartRequest) error
	Synthesize(sid core.SessionID, text string) error
}

type Handlers struct {
	Sessions SessionManager
}

func NewHandlers(sessions SessionManager) *Handlers {
	return &Handlers{Sessions: sessions}
}

type stopRequest struct {
	SessionID string `json:"session_id"`
}

type synthesizeRequest struct {
	SessionID string `json:"session_id"`
	Text      string `json:"text"`
}

func (h *Handlers) Health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

func (h *Handlers) Start(c *gin.Context) {
	var req domain.StartRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
		return
	}
	if err := h.Sessions.Start(c.Request.Context(), req); err != nil {
		if errors.Is(err, domain.ErrSessionIDEmpty) || errors.Is(err, domain.ErrSessionIDTooLong) {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		log.Error().Err(err).Str("module", "adapters.http").Str("sid", req.SessionID).Msg("start failed")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "start failed"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "ok", "conversation_started": true})
}

func (h *Handlers) Stop(c *gin.Context) {
	var req stopRequest
	if err := c.ShouldBindJSON(&req); err != nil || req.SessionID == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "missing session_id"})
		return
	}
	if err := h.Sessions.Stop(core.SessionID(req.SessionID)); err != nil {
		log.Error().Err(err).Str("module", "adapters.http").Str("sid", req.SessionID).Msg("stop failed")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "stop failed"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

func (h *Handlers) Synthesize(c *gin.Context) {
	var req synthesizeRequest
	if err := c.ShouldBindJSON(&req); err != nil || req.SessionID == "" || req.Text == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "missing session_id or text"})
		return
	}
	err := h.Sessions.Synthesize(core.SessionID(req.SessionID), req.Text)
	switch {
	case err == nil:
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	case errors.Is(err, app.ErrSessionNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": "session not found"})
	case errors.Is(err, tts.ErrSynthesisBusy):
		c.JSON(http.StatusConflict, gin.H{"error": "synthesis busy"})
	default:
		log.Error().Err(err).Str("module", "adapters.http").Str("sid", req.SessionID).Msg("synthesize failed")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "synthesize failed"})
	}
}

func (h *Handlers) State(c *gin.Context) {
	sid := core.SessionID(c.Param("id"))
	state, err := h.Sessions.SessionState(sid)
	if err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "session not found"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"session_id": string(sid), "state": state.String()})
}
