package core

import (
	"context"

	"github.com/pion/webrtc/v4"
)

// PeerState mirrors the peer connection's negotiation state machine.
type PeerState int

const (
	PeerNew PeerState = iota
	PeerHaveLocalOffer
	PeerHaveRemoteAnswer
	PeerConnected
	PeerFailed
	PeerClosed
)

func (s PeerState) String() string {
	switch s {
	case PeerNew:
		return "new"
	case PeerHaveLocalOffer:
		return "have-local-offer"
	case PeerHaveRemoteAnswer:
		return "have-remote-answer"
	case PeerConnected:
		return "connected"
	case PeerFailed:
		return "failed"
	case PeerClosed:
		return "closed"
	default:
		return "unknown"
	}
}

type MediaConn interface {
	// Start configures internal callbacks and binds the connection lifetime to ctx.
	Start(ctx context.Context) error
	// Close should stop all underlying media resources.
	Close()
	IsClosed() bool
	// AddICECandidate applies a remote ICE candidate.
	AddICECandidate(webrtc.ICECandidateInit) error
	// ApplyOfferAndCreateAnswer handles the remote offer and returns the local answer.
	ApplyOfferAndCreateAnswer(webrtc.SessionDescription) (*webrtc.SessionDescription, error)
	// ApplyAnswer completes a locally initiated renegotiation.
	ApplyAnswer(webrtc.SessionDescription) error
	// OnICECandidate sets a callback for newly gathered local ICE candidates.
	OnICECandidate(func(webrtc.ICECandidateInit))
	// OnTrack sets a callback that will be invoked when a new remote track arrives.
	OnTrack(func(ctx context.Context, track *webrtc.TrackRemote, receiver *webrtc.RTPReceiver))
	// OnControlChannel sets a callback for the remote-opened data channel.
	OnControlChannel(func(dc *webrtc.DataChannel))
	// OnStateChange reports peer state machine transitions.
	OnStateChange(func(PeerState))
	// AddLocalTrack attaches an outbound media track to the underlying PeerConnection.
	AddLocalTrack(track webrtc.TrackLocal) (*webrtc.RTPSender, error)
}
