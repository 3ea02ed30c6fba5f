// Package resample converts PCM between the media clock rate and the
// recognition clock rate.
package resample

import "encoding/binary"

// Resample converts mono PCM from one sample rate to another using
// linear interpolation. Good enough for speech; the recognizer does
// not care about content above 8 kHz.
func Resample(in []int16, fromRate, toRate int) []int16 {
	if fromRate == toRate || len(in) == 0 {
		out := make([]int16, len(in))
		copy(out, in)
		return out
	}
	n := len(in) * toRate / fromRate
	out := make([]int16, n)
	for i := range out {
		pos := float64(i) * float64(fromRate) / float64(toRate)
		j := int(pos)
		if j >= len(in)-1 {
			out[i] = in[len(in)-1]
			continue
		}
		frac := pos - float64(j)
		out[i] = int16(float64(in[j])*(1-frac) + float64(in[j+1])*frac)
	}
	return out
}

// PCMToBytes serializes samples as little-endian 16-bit PCM.
func PCMToBytes(in []int16) []byte {
	out := make([]byte, len(in)*2)
	for i, s := range in {
		binary.LittleEndian.PutUint16(out[i*2:], uint16(s))
	}
	return out
}

// BytesToPCM parses little-endian 16-bit PCM.
func BytesToPCM(in []byte) []int16 {
	out := make([]int16, len(in)/2)
	for i := range out {
		out[i] = int16(binary.LittleEndian.Uint16(in[i*2:]))
	}
	return out
}
