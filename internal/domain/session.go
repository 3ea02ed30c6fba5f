// Package domain contains entities without logic, just meta-data.
package domain

import "errors"

const MaxSessionIDLen = 64

var (
	ErrSessionIDEmpty   = errors.New("session id empty")
	ErrSessionIDTooLong = errors.New("session id too long")
)

type (
	RoomID        string
	ParticipantID string
)

// SessionState is the lifecycle of one interview participant's media session.
type SessionState int32

const (
	SessionCreated SessionState = iota
	SessionNegotiating
	SessionConnected
	SessionClosed
	SessionFailed
)

func (s SessionState) String() string {
	switch s {
	case SessionCreated:
		return "created"
	case SessionNegotiating:
		return "negotiating"
	case SessionConnected:
		return "connected"
	case SessionClosed:
		return "closed"
	case SessionFailed:
		return "failed"
	default:
		return "unknown"
	}
}

// Participant binds a session to its interview room bookkeeping.
type Participant struct {
	Room           RoomID
	ID             ParticipantID
	JobDescription string
}

func ValidateSessionID(id string) error {
	if len(id) == 0 {
		return ErrSessionIDEmpty
	}
	if len(id) > MaxSessionIDLen {
		return ErrSessionIDTooLong
	}
	return nil
}
