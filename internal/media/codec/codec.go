// Package codec converts between RTP payloads and PCM frames.
package codec

import (
	"errors"
	"strings"

	"github.com/pion/webrtc/v4"
)

var ErrUnsupportedCodec = errors.New("unsupported codec")

// Decoder turns one RTP payload into mono PCM samples at SampleRate().
type Decoder interface {
	Decode(payload []byte) ([]int16, error)
	SampleRate() int
}

// ForTrack selects a decoder for a negotiated inbound track.
func ForTrack(mimeType string, clockRate uint32) (Decoder, error) {
	switch {
	case strings.EqualFold(mimeType, webrtc.MimeTypeOpus):
		return newOpusDecoder(), nil
	case strings.EqualFold(mimeType, webrtc.MimeTypePCMU):
		return muLawDecoder{rate: int(clockRate)}, nil
	case strings.EqualFold(mimeType, webrtc.MimeTypePCMA):
		return aLawDecoder{rate: int(clockRate)}, nil
	case strings.EqualFold(mimeType, "audio/L16"):
		return l16Decoder{rate: int(clockRate)}, nil
	default:
		return nil, ErrUnsupportedCodec
	}
}

// l16Decoder handles raw big-endian PCM (RTP L16).
type l16Decoder struct {
	rate int
}

func (d l16Decoder) SampleRate() int { return d.rate }

func (d l16Decoder) Decode(payload []byte) ([]int16, error) {
	if len(payload)%2 != 0 {
		return nil, errors.New("l16 payload not sample aligned")
	}
	out := make([]int16, len(payload)/2)
	for i := range out {
		out[i] = int16(payload[2*i])<<8 | int16(payload[2*i+1])
	}
	return out, nil
}
