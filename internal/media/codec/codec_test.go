package codec

import (
	"testing"

	"github.com/pion/webrtc/v4"
	"github.com/stretchr/testify/require"
)

func TestMuLawRoundTrip(t *testing.T) {
	for _, s := range []int16{0, 1, -1, 100, -100, 1000, -1000, 8000, -8000, 32000, -32000} {
		decoded := DecodeMuLaw(EncodeMuLaw(s))
		diff := int32(decoded) - int32(s)
		if diff < 0 {
			diff = -diff
		}
		// µ-law is logarithmic; error grows with magnitude.
		require.LessOrEqual(t, diff, int32(s)/16+int32(40), "sample %d decoded as %d", s, decoded)
	}
}

func TestALawRoundTrip(t *testing.T) {
	for _, s := range []int16{0, 8, -8, 100, -100, 1000, -1000, 8000, -8000, 32000, -32000} {
		decoded := DecodeALaw(EncodeALaw(s))
		diff := int32(decoded) - int32(s)
		if diff < 0 {
			diff = -diff
		}
		require.LessOrEqual(t, diff, int32(s)/16+int32(40), "sample %d decoded as %d", s, decoded)
	}
}

func TestForTrackSelection(t *testing.T) {
	d, err := ForTrack(webrtc.MimeTypePCMU, 8000)
	require.NoError(t, err)
	require.Equal(t, 8000, d.SampleRate())

	d, err = ForTrack(webrtc.MimeTypeOpus, 48000)
	require.NoError(t, err)
	require.Equal(t, 48000, d.SampleRate())

	_, err = ForTrack("audio/G722", 8000)
	require.ErrorIs(t, err, ErrUnsupportedCodec)
}

func TestL16Decode(t *testing.T) {
	d := l16Decoder{rate: 48000}
	pcm, err := d.Decode([]byte{0x01, 0x00, 0xFF, 0xFF})
	require.NoError(t, err)
	require.Equal(t, []int16{256, -1}, pcm)

	_, err = d.Decode([]byte{0x01})
	require.Error(t, err)
}

func TestOpusDecodeYieldsOneFrame(t *testing.T) {
	// SILK-only wideband 20ms mono packet, code 0.
	packet := []byte{0x48, 0x0B, 0xE4, 0xC1, 0x36, 0xEC, 0xC5, 0x80}

	d := newOpusDecoder()
	pcm, err := d.Decode(packet)
	require.NoError(t, err)
	// A 20ms packet is exactly 960 samples at 48k, not the scratch
	// buffer capacity.
	require.Len(t, pcm, 960)
}

func TestEncodeMuLawFrameLength(t *testing.T) {
	pcm := make([]int16, 160)
	require.Len(t, EncodeMuLawFrame(pcm), 160)
}
