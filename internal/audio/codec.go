package audio

import (
	"encoding/base64"
	"encoding/binary"
	"errors"
	"fmt"
	"strings"
)

const (
	SampleRate    = 24000
	Channels      = 1
	BitsPerSample = 16
	BytesPerFrame = Channels * BitsPerSample / 8
	WAVHeaderSize = 44

	// base64 chunk size, a multiple of 3 so chunks concatenate without padding.
	encodeChunkSize = 0x8000 - 0x8000%3
)

var (
	ErrWAVTooShort    = errors.New("wav data too short")
	ErrWAVMalformed   = errors.New("malformed wav header")
	ErrWAVUnsupported = errors.New("unsupported wav format")
)

type WAV struct {
	SampleRate    int
	Channels      int
	BitsPerSample int
	Samples       []int16
}

func (w WAV) Duration() float64 {
	if w.SampleRate == 0 || w.Channels == 0 {
		return 0
	}
	return float64(len(w.Samples)/w.Channels) / float64(w.SampleRate)
}

// EncodeFloatPCM16 converts float samples to little-endian PCM16 and returns
// them base64 encoded, ready for an input_audio_buffer.append message.
func EncodeFloatPCM16(samples []float32) string {
	pcm := make([]byte, len(samples)*2)
	for i, s := range Float32ToInt16(samples) {
		binary.LittleEndian.PutUint16(pcm[i*2:], uint16(s))
	}

	var sb strings.Builder
	sb.Grow(base64.StdEncoding.EncodedLen(len(pcm)))
	for start := 0; start < len(pcm); start += encodeChunkSize {
		end := min(start+encodeChunkSize, len(pcm))
		sb.WriteString(base64.StdEncoding.EncodeToString(pcm[start:end]))
	}
	return sb.String()
}

// DecodeBytesToWAV wraps raw 24kHz mono PCM16 bytes in a canonical 44-byte
// WAV header. A trailing odd byte is dropped.
func DecodeBytesToWAV(pcm []byte) []byte {
	dataSize := len(pcm) &^ 1

	out := make([]byte, WAVHeaderSize+dataSize)
	copy(out[0:4], "RIFF")
	binary.LittleEndian.PutUint32(out[4:8], uint32(36+dataSize))
	copy(out[8:12], "WAVE")
	copy(out[12:16], "fmt ")
	binary.LittleEndian.PutUint32(out[16:20], 16)
	binary.LittleEndian.PutUint16(out[20:22], 1)
	binary.LittleEndian.PutUint16(out[22:24], Channels)
	binary.LittleEndian.PutUint32(out[24:28], SampleRate)
	binary.LittleEndian.PutUint32(out[28:32], SampleRate*BytesPerFrame)
	binary.LittleEndian.PutUint16(out[32:34], BytesPerFrame)
	binary.LittleEndian.PutUint16(out[34:36], BitsPerSample)
	copy(out[36:40], "data")
	binary.LittleEndian.PutUint32(out[40:44], uint32(dataSize))

	copy(out[WAVHeaderSize:], pcm[:dataSize])
	return out
}

func ParseWAV(data []byte) (WAV, error) {
	if len(data) < WAVHeaderSize {
		return WAV{}, fmt.Errorf("%w: need %d bytes, got %d", ErrWAVTooShort, WAVHeaderSize, len(data))
	}
	if string(data[0:4]) != "RIFF" || string(data[8:12]) != "WAVE" {
		return WAV{}, fmt.Errorf("%w: missing RIFF/WAVE tags", ErrWAVMalformed)
	}
	if string(data[12:16]) != "fmt " || string(data[36:40]) != "data" {
		return WAV{}, fmt.Errorf("%w: missing fmt/data chunks", ErrWAVMalformed)
	}

	format := binary.LittleEndian.Uint16(data[20:22])
	channels := binary.LittleEndian.Uint16(data[22:24])
	rate := binary.LittleEndian.Uint32(data[24:28])
	bits := binary.LittleEndian.Uint16(data[34:36])
	if format != 1 {
		return WAV{}, fmt.Errorf("%w: audio format %d", ErrWAVUnsupported, format)
	}
	if bits != BitsPerSample {
		return WAV{}, fmt.Errorf("%w: %d bits per sample", ErrWAVUnsupported, bits)
	}
	if channels == 0 || rate == 0 {
		return WAV{}, fmt.Errorf("%w: %d channels at %d Hz", ErrWAVMalformed, channels, rate)
	}

	dataSize := int(binary.LittleEndian.Uint32(data[40:44]))
	if dataSize > len(data)-WAVHeaderSize {
		return WAV{}, fmt.Errorf("%w: data chunk claims %d bytes, have %d", ErrWAVTooShort, dataSize, len(data)-WAVHeaderSize)
	}

	return WAV{
		SampleRate:    int(rate),
		Channels:      int(channels),
		BitsPerSample: int(bits),
		Samples:       PCMBytesToInt16(data[WAVHeaderSize : WAVHeaderSize+dataSize]),
	}, nil
}
