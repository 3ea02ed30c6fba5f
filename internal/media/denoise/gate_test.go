package denoise

import (
	"math"
	"math/rand"
	"testing"

	"github.com/stretchr/testify/require"
)

func rms(frame []int16) float64 {
	var sum float64
	for _, s := range frame {
		sum += float64(s) * float64(s)
	}
	return math.Sqrt(sum / float64(len(frame)))
}

func noiseFrame(r *rand.Rand, amp int, n int) []int16 {
	out := make([]int16, n)
	for i := range out {
		out[i] = int16(r.Intn(2*amp) - amp)
	}
	return out
}

func speechFrame(n int) []int16 {
	out := make([]int16, n)
	for i := range out {
		out[i] = int16(9000 * math.Sin(2*math.Pi*200*float64(i)/16000))
	}
	return out
}

func TestFrameSizePreserved(t *testing.T) {
	g := NewSpectralGate()
	out, err := g.ProcessFrame(make([]int16, 320))
	require.NoError(t, err)
	require.Len(t, out, 320)
}

func TestEmptyFrameRejected(t *testing.T) {
	g := NewSpectralGate()
	_, err := g.ProcessFrame(nil)
	require.ErrorIs(t, err, ErrBadFrame)

	_, err = NewPassthrough().ProcessFrame(nil)
	require.ErrorIs(t, err, ErrBadFrame)
}

func TestQuietNoiseAttenuated(t *testing.T) {
	g := NewSpectralGate()
	r := rand.New(rand.NewSource(1))

	var inLevel, outLevel float64
	// Let the floor settle, then measure.
	for i := 0; i < 100; i++ {
		frame := noiseFrame(r, 200, 320)
		out, err := g.ProcessFrame(frame)
		require.NoError(t, err)
		if i >= 50 {
			inLevel += rms(frame)
			outLevel += rms(out)
		}
	}
	require.Less(t, outLevel, inLevel*0.6, "stationary noise should be attenuated")
}

func TestSpeechPassesThrough(t *testing.T) {
	g := NewSpectralGate()
	r := rand.New(rand.NewSource(2))

	for i := 0; i < 50; i++ {
		_, err := g.ProcessFrame(noiseFrame(r, 100, 320))
		require.NoError(t, err)
	}

	var inLevel, outLevel float64
	for i := 0; i < 50; i++ {
		frame := speechFrame(320)
		out, err := g.ProcessFrame(frame)
		require.NoError(t, err)
		if i >= 10 { // skip the gain ramp
			inLevel += rms(frame)
			outLevel += rms(out)
		}
	}
	require.Greater(t, outLevel, inLevel*0.8, "speech level should survive the gate")
}

func TestPassthroughCopies(t *testing.T) {
	p := NewPassthrough()
	in := []int16{1, 2, 3}
	out, err := p.ProcessFrame(in)
	require.NoError(t, err)
	require.Equal(t, in, out)
	out[0] = 9
	require.Equal(t, int16(1), in[0])
}

func TestResetClearsHistory(t *testing.T) {
	g := NewSpectralGate().(*spectralGate)
	_, err := g.ProcessFrame(speechFrame(320))
	require.NoError(t, err)
	require.True(t, g.warmedUp)
	g.Reset()
	require.False(t, g.warmedUp)
	require.Equal(t, 1.0, g.gain)
}
