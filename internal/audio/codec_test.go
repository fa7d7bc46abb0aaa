package audio

import (
	"encoding/base64"
	"encoding/binary"
	"errors"
	"testing"
)

func TestEncodeFloatPCM16_Bytes(t *testing.T) {
	encoded := EncodeFloatPCM16([]float32{0, 1, -1, 0.5})
	raw, err := base64.StdEncoding.DecodeString(encoded)
	if err != nil {
		t.Fatalf("decode base64: %v", err)
	}
	if len(raw) != 8 {
		t.Fatalf("expected 8 bytes, got %d", len(raw))
	}

	want := []int16{0, 32767, -32768, 16383}
	for i, w := range want {
		got := int16(binary.LittleEndian.Uint16(raw[i*2:]))
		if got != w {
			t.Errorf("sample %d: expected %d, got %d", i, w, got)
		}
	}
}

func TestEncodeFloatPCM16_Clips(t *testing.T) {
	raw, err := base64.StdEncoding.DecodeString(EncodeFloatPCM16([]float32{3, -3}))
	if err != nil {
		t.Fatalf("decode base64: %v", err)
	}
	if got := int16(binary.LittleEndian.Uint16(raw[0:])); got != 32767 {
		t.Errorf("expected 32767, got %d", got)
	}
	if got := int16(binary.LittleEndian.Uint16(raw[2:])); got != -32768 {
		t.Errorf("expected -32768, got %d", got)
	}
}

func TestEncodeFloatPCM16_Empty(t *testing.T) {
	if got := EncodeFloatPCM16(nil); got != "" {
		t.Errorf("expected empty string, got %q", got)
	}
}

func TestEncodeFloatPCM16_LargeInputMatchesSinglePass(t *testing.T) {
	samples := make([]float32, 3*encodeChunkSize)
	for i := range samples {
		samples[i] = float32(i%200-100) / 100
	}

	pcm := make([]byte, len(samples)*2)
	for i, s := range Float32ToInt16(samples) {
		binary.LittleEndian.PutUint16(pcm[i*2:], uint16(s))
	}
	want := base64.StdEncoding.EncodeToString(pcm)

	if got := EncodeFloatPCM16(samples); got != want {
		t.Error("chunked encoding differs from single-pass encoding")
	}
}

func TestDecodeBytesToWAV_Header(t *testing.T) {
	pcm := []byte{0x01, 0x00, 0xFF, 0x7F}
	wav := DecodeBytesToWAV(pcm)

	if len(wav) != WAVHeaderSize+len(pcm) {
		t.Fatalf("expected %d bytes, got %d", WAVHeaderSize+len(pcm), len(wav))
	}

	checks := []struct {
		name string
		got  uint32
		want uint32
	}{
		{"riff size", binary.LittleEndian.Uint32(wav[4:8]), 36 + 4},
		{"fmt size", binary.LittleEndian.Uint32(wav[16:20]), 16},
		{"format", uint32(binary.LittleEndian.Uint16(wav[20:22])), 1},
		{"channels", uint32(binary.LittleEndian.Uint16(wav[22:24])), 1},
		{"sample rate", binary.LittleEndian.Uint32(wav[24:28]), 24000},
		{"byte rate", binary.LittleEndian.Uint32(wav[28:32]), 48000},
		{"block align", uint32(binary.LittleEndian.Uint16(wav[32:34])), 2},
		{"bits", uint32(binary.LittleEndian.Uint16(wav[34:36])), 16},
		{"data size", binary.LittleEndian.Uint32(wav[40:44]), 4},
	}
	for _, c := range checks {
		if c.got != c.want {
			t.Errorf("%s: expected %d, got %d", c.name, c.want, c.got)
		}
	}

	for _, tag := range []struct {
		off  int
		want string
	}{{0, "RIFF"}, {8, "WAVE"}, {12, "fmt "}, {36, "data"}} {
		if got := string(wav[tag.off : tag.off+4]); got != tag.want {
			t.Errorf("tag at %d: expected %q, got %q", tag.off, tag.want, got)
		}
	}

	for i, b := range pcm {
		if wav[WAVHeaderSize+i] != b {
			t.Errorf("payload byte %d: expected %#x, got %#x", i, b, wav[WAVHeaderSize+i])
		}
	}
}

func TestDecodeBytesToWAV_OddLength(t *testing.T) {
	wav := DecodeBytesToWAV([]byte{0x01, 0x00, 0x02})
	if len(wav) != WAVHeaderSize+2 {
		t.Fatalf("expected trailing byte dropped, got %d bytes", len(wav))
	}
	if got := binary.LittleEndian.Uint32(wav[40:44]); got != 2 {
		t.Errorf("data size: expected 2, got %d", got)
	}
}

func TestDecodeBytesToWAV_Empty(t *testing.T) {
	wav := DecodeBytesToWAV(nil)
	if len(wav) != WAVHeaderSize {
		t.Fatalf("expected bare header, got %d bytes", len(wav))
	}
	parsed, err := ParseWAV(wav)
	if err != nil {
		t.Fatalf("parse empty wav: %v", err)
	}
	if len(parsed.Samples) != 0 {
		t.Errorf("expected no samples, got %d", len(parsed.Samples))
	}
}

func TestParseWAV_RoundTrip(t *testing.T) {
	original := []int16{0, 100, -100, 32767, -32768}
	pcm := make([]byte, len(original)*2)
	for i, s := range original {
		binary.LittleEndian.PutUint16(pcm[i*2:], uint16(s))
	}

	parsed, err := ParseWAV(DecodeBytesToWAV(pcm))
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if parsed.SampleRate != SampleRate || parsed.Channels != Channels || parsed.BitsPerSample != BitsPerSample {
		t.Errorf("unexpected format: %+v", parsed)
	}
	if len(parsed.Samples) != len(original) {
		t.Fatalf("expected %d samples, got %d", len(original), len(parsed.Samples))
	}
	for i := range original {
		if parsed.Samples[i] != original[i] {
			t.Errorf("sample %d: expected %d, got %d", i, original[i], parsed.Samples[i])
		}
	}
}

func TestParseWAV_Duration(t *testing.T) {
	parsed, err := ParseWAV(DecodeBytesToWAV(make([]byte, 48000)))
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if d := parsed.Duration(); d != 1.0 {
		t.Errorf("expected 1s, got %f", d)
	}
}

func TestParseWAV_Errors(t *testing.T) {
	valid := DecodeBytesToWAV([]byte{0, 0, 0, 0})

	corrupt := func(mutate func(b []byte)) []byte {
		b := append([]byte(nil), valid...)
		mutate(b)
		return b
	}

	tests := []struct {
		name string
		data []byte
		want error
	}{
		{"too short", valid[:20], ErrWAVTooShort},
		{"bad riff", corrupt(func(b []byte) { copy(b[0:4], "RIFX") }), ErrWAVMalformed},
		{"bad data tag", corrupt(func(b []byte) { copy(b[36:40], "LIST") }), ErrWAVMalformed},
		{"float format", corrupt(func(b []byte) { binary.LittleEndian.PutUint16(b[20:22], 3) }), ErrWAVUnsupported},
		{"8 bit", corrupt(func(b []byte) { binary.LittleEndian.PutUint16(b[34:36], 8) }), ErrWAVUnsupported},
		{"zero channels", corrupt(func(b []byte) { binary.LittleEndian.PutUint16(b[22:24], 0) }), ErrWAVMalformed},
		{"truncated data", corrupt(func(b []byte) { binary.LittleEndian.PutUint32(b[40:44], 400) }), ErrWAVTooShort},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ParseWAV(tt.data)
			if !errors.Is(err, tt.want) {
				t.Errorf("expected %v, got %v", tt.want, err)
			}
		})
	}
}
