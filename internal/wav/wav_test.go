package wav

import (
	"encoding/binary"
	"testing"
)

func TestEncodeHeader(t *testing.T) {
	b := Encode([]float32{0, 0.5, -0.5}, 24000)
	if len(b) != 44+3*2 {
		t.Fatalf("unexpected length %d", len(b))
	}
	if string(b[0:4]) != "RIFF" || string(b[8:12]) != "WAVE" {
		t.Fatalf("bad RIFF/WAVE markers: %q %q", b[0:4], b[8:12])
	}
	if got := binary.LittleEndian.Uint32(b[24:28]); got != 24000 {
		t.Fatalf("sample rate = %d, want 24000", got)
	}
	if got := binary.LittleEndian.Uint16(b[22:24]); got != 1 {
		t.Fatalf("channels = %d, want 1", got)
	}
	if got := binary.LittleEndian.Uint32(b[40:44]); got != 6 {
		t.Fatalf("data length = %d, want 6", got)
	}
}

func TestEncodeClampsRange(t *testing.T) {
	b := Encode([]float32{2.0, -2.0}, 16000)
	hi := int16(binary.LittleEndian.Uint16(b[44:46]))
	lo := int16(binary.LittleEndian.Uint16(b[46:48]))
	if hi != 32767 {
		t.Fatalf("positive clip = %d, want 32767", hi)
	}
	if lo != -32768 {
		t.Fatalf("negative clip = %d, want -32768", lo)
	}
}

func TestEncodeEmpty(t *testing.T) {
	b := Encode(nil, 24000)
	if len(b) != 44 {
		t.Fatalf("empty input should produce a bare header, got %d bytes", len(b))
	}
}
