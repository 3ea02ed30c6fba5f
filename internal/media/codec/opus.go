package codec

import (
	"github.com/pion/opus"
)

const (
	opusSampleRate = 48000
	// The pion decoder emits one 20ms frame per packet: 320 SILK
	// samples upsampled 3x, mono only (stereo payloads are rejected
	// by the decoder itself).
	opusFrameSamples = opusSampleRate / 1000 * 20
)

// opusDecoder wraps the pure-Go pion decoder. Output is mono S16LE.
type opusDecoder struct {
	dec opus.Decoder
	out []byte
}

func newOpusDecoder() *opusDecoder {
	return &opusDecoder{
		dec: opus.NewDecoder(),
		out: make([]byte, opusFrameSamples*2),
	}
}

func (d *opusDecoder) SampleRate() int { return opusSampleRate }

func (d *opusDecoder) Decode(payload []byte) ([]int16, error) {
	if _, _, err := d.dec.Decode(payload, d.out); err != nil {
		return nil, err
	}
	pcm := make([]int16, opusFrameSamples)
	for i := range pcm {
		pcm[i] = int16(d.out[2*i]) | int16(d.out[2*i+1])<<8
	}
	return pcm, nil
}
