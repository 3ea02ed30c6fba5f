package domain

import "time"

// Control-channel message types.
const (
	MsgTranscriptPartial = "transcript.partial"
	MsgTranscriptFinal   = "transcript.final"
	MsgDirective         = "control.directive"
)

// Directives the remote client may send over the control channel.
const (
	DirectivePause  = "pause"
	DirectiveResume = "resume"
)

// ControlMessage is the typed envelope carried over the control channel.
type ControlMessage struct {
	Type       string       `json:"type"`
	SessionID  string       `json:"session_id"`
	Text       string       `json:"text,omitempty"`
	Timestamp  time.Time    `json:"timestamp"`
	Confidence float64      `json:"confidence,omitempty"`
	Words      []WordTiming `json:"words,omitempty"`
	Directive  string       `json:"directive,omitempty"`
}

// DialogueRequest is what the dialogue engine receives per final transcript.
type DialogueRequest struct {
	SessionID string            `json:"session_id"`
	Text      string            `json:"text"`
	Metadata  map[string]string `json:"metadata,omitempty"`
}

// DialogueReply is the engine's conversational turn.
type DialogueReply struct {
	ResponseText string `json:"response_text"`
	ShouldSpeak  bool   `json:"should_speak"`
}

// SinkSegment is the live transcript sink's wire shape.
type SinkSegment struct {
	RoomID        string       `json:"room_id"`
	SessionID     string       `json:"session_id"`
	ParticipantID string       `json:"participant_id"`
	Text          string       `json:"text"`
	StartTime     float64      `json:"start_time"`
	EndTime       float64      `json:"end_time"`
	Confidence    float64      `json:"confidence"`
	IsFinal       bool         `json:"is_final"`
	Words         []WordTiming `json:"words,omitempty"`
}

// StartRequest is the external session lifecycle surface.
type StartRequest struct {
	SessionID      string `json:"session_id"`
	RoomID         string `json:"room_id"`
	ParticipantID  string `json:"participant_id"`
	JobDescription string `json:"job_description"`
}
