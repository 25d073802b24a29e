package runner

import (
	"encoding/base64"
	"encoding/binary"
	"fmt"
	"math"
)

// decodePCM converts the runner's base64 little-endian float32 payload into
// samples.
func decodePCM(b64 string) ([]float32, error) {
	raw, err := base64.StdEncoding.DecodeString(b64)
	if err != nil {
		return nil, fmt.Errorf("decode pcm: %w", err)
	}
	if len(raw)%4 != 0 {
		return nil, fmt.Errorf("pcm payload length %d is not a multiple of 4", len(raw))
	}
	out := make([]float32, len(raw)/4)
	for i := range out {
		bits := binary.LittleEndian.Uint32(raw[i*4:])
		out[i] = math.Float32frombits(bits)
	}
	return out, nil
}

// encodePCM is the inverse of decodePCM; used by tests.
func encodePCM(samples []float32) string {
	raw := make([]byte, len(samples)*4)
	for i, s := range samples {
		binary.LittleEndian.PutUint32(raw[i*4:], math.Float32bits(s))
	}
	return base64.StdEncoding.EncodeToString(raw)
}
