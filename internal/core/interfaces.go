package core

// Frame is a raw binary payload (e.g., a signaling message or audio frame).
type Frame []byte

type SessionID string

// SignalConn abstracts the system messaging transport.
// Owned by the adapter; the adapter must Close() it.
type SignalConn interface {
	TrySend(Frame) error
	Close()
}

// ControlSender delivers transcript/control envelopes to the remote
// participant's client over the low-latency side-channel.
type ControlSender interface {
	// SendPartial is best-effort; on backpressure the oldest partial
	// in the buffer is evicted.
	SendPartial(Frame)
	// SendFinal blocks, bounded, until the buffer has room.
	SendFinal(Frame) error
}
