package audio

import (
	"encoding/binary"
	"math"
)

// Resample converts mono float audio between sample rates with linear
// interpolation. Used when a capture device cannot open at 24kHz.
func Resample(input []float32, fromRate, toRate int) []float32 {
	if fromRate == toRate || fromRate <= 0 || toRate <= 0 {
		return input
	}

	ratio := float64(toRate) / float64(fromRate)
	outputLen := int(math.Ceil(float64(len(input)) * ratio))
	output := make([]float32, outputLen)

	resampleCore(output, input, ratio)
	return output
}

func resampleCore(output, input []float32, ratio float64) {
	for i := 0; i < len(output); i++ {
		srcPos := float64(i) / ratio
		srcIdx := int(srcPos)
		frac := float32(srcPos - float64(srcIdx))

		if srcIdx+1 < len(input) {
			output[i] = input[srcIdx]*(1-frac) + input[srcIdx+1]*frac
		} else if srcIdx < len(input) {
			output[i] = input[srcIdx]
		}
	}
}

// PCMBytesToInt16 reads little-endian sample pairs; a trailing odd byte is ignored.
func PCMBytesToInt16(pcm []byte) []int16 {
	samples := make([]int16, len(pcm)/2)
	for i := 0; i < len(samples); i++ {
		samples[i] = int16(binary.LittleEndian.Uint16(pcm[i*2:]))
	}
	return samples
}

// Float32ToInt16 clips to [-1, 1] and scales negatives by 32768 and
// non-negatives by 32767, so both ends of the int16 range are reachable.
func Float32ToInt16(samples []float32) []int16 {
	result := make([]int16, len(samples))
	for i, s := range samples {
		switch {
		case math.IsNaN(float64(s)):
			s = 0
		case s > 1.0:
			s = 1.0
		case s < -1.0:
			s = -1.0
		}
		if s < 0 {
			result[i] = int16(s * 32768.0)
		} else {
			result[i] = int16(s * 32767.0)
		}
	}
	return result
}
