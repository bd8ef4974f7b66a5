// Package audio prepares inbound client audio for the recognition engine:
// decoding G.711 mu-law frames from telephony-style clients and coalescing
// small frames into engine-sized chunks.
package audio

// DecodeMulaw expands G.711 PCMU (mu-law) audio into 16-bit signed
// little-endian linear PCM. Output is twice the input length.
func DecodeMulaw(data []byte) []byte {
	pcm := make([]byte, len(data)*2)
	for i, b := range data {
		sample := mulawSample(b)
		pcm[i*2] = byte(sample)
		pcm[i*2+1] = byte(sample >> 8)
	}
	return pcm
}

// mulawSample expands one mu-law byte to a 16-bit linear sample per the
// ITU-T G.711 companding formula with bias 33.
func mulawSample(b byte) int16 {
	// The wire representation is bit-inverted.
	b = ^b

	sign := b & 0x80
	segment := int32((b >> 4) & 0x07)
	mantissa := int32(b & 0x0F)

	step := mantissa << (segment + 1)
	step += 33 << segment
	magnitude := step - 33

	if sign != 0 {
		return int16(-magnitude)
	}
	return int16(magnitude)
}
