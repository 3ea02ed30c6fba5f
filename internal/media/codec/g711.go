package codec

const muLawBias = 0x84

type muLawDecoder struct {
	rate int
}

func (d muLawDecoder) SampleRate() int { return d.rate }

func (d muLawDecoder) Decode(payload []byte) ([]int16, error) {
	out := make([]int16, len(payload))
	for i, b := range payload {
		out[i] = DecodeMuLaw(b)
	}
	return out, nil
}

type aLawDecoder struct {
	rate int
}

func (d aLawDecoder) SampleRate() int { return d.rate }

func (d aLawDecoder) Decode(payload []byte) ([]int16, error) {
	out := make([]int16, len(payload))
	for i, b := range payload {
		out[i] = DecodeALaw(b)
	}
	return out, nil
}

func DecodeMuLaw(b byte) int16 {
	b = ^b
	sign := b & 0x80
	exp := (b >> 4) & 0x07
	man := int32(b & 0x0F)
	mag := ((man << 3) + muLawBias) << exp
	mag -= muLawBias
	if sign != 0 {
		return int16(-mag)
	}
	return int16(mag)
}

func EncodeMuLaw(s int16) byte {
	v := int32(s)
	sign := byte(0)
	if v < 0 {
		v = -v
		sign = 0x80
	}
	if v > 32635 {
		v = 32635
	}
	v += muLawBias
	exp := byte(7)
	for mask := int32(0x4000); v&mask == 0 && exp > 0; mask >>= 1 {
		exp--
	}
	man := byte((v >> (exp + 3)) & 0x0F)
	return ^(sign | exp<<4 | man)
}

func DecodeALaw(b byte) int16 {
	b ^= 0x55
	positive := b&0x80 != 0
	exp := (b >> 4) & 0x07
	man := int32(b & 0x0F)
	var mag int32
	if exp == 0 {
		mag = man<<4 + 8
	} else {
		mag = (man<<4 + 0x108) << (exp - 1)
	}
	if positive {
		return int16(mag)
	}
	return int16(-mag)
}

func EncodeALaw(s int16) byte {
	v := int32(s)
	sign := byte(0x80)
	if v < 0 {
		v = -v
		sign = 0
	}
	if v > 32635 {
		v = 32635
	}
	var b byte
	if v >= 256 {
		exp := byte(7)
		for mask := int32(0x4000); v&mask == 0 && exp > 1; mask >>= 1 {
			exp--
		}
		man := byte((v >> (exp + 3)) & 0x0F)
		b = exp<<4 | man
	} else {
		b = byte(v >> 4)
	}
	return (sign | b) ^ 0x55
}

// EncodeMuLawFrame encodes a PCM frame into a G.711 µ-law payload.
func EncodeMuLawFrame(pcm []int16) []byte {
	out := make([]byte, len(pcm))
	for i, s := range pcm {
		out[i] = EncodeMuLaw(s)
	}
	return out
}
