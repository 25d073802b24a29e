// Package wav converts raw float32 PCM into a minimal 16-bit mono WAV
// container. This is the boundary format conversion at the edge of the
// engine contract; nothing here touches models.
package wav

import (
	"bytes"
	"encoding/binary"
)

const (
	bitsPerSample = 16
	numChannels   = 1
	headerBytes   = 44
)

// Encode frames samples as a 16-bit little-endian mono WAV file. Samples
// outside [-1, 1] are clamped.
func Encode(samples []float32, sampleRate int) []byte {
	dataLen := len(samples) * 2
	buf := bytes.NewBuffer(make([]byte, 0, headerBytes+dataLen))

	byteRate := sampleRate * numChannels * bitsPerSample / 8
	blockAlign := numChannels * bitsPerSample / 8

	buf.WriteString("RIFF")
	binary.Write(buf, binary.LittleEndian, uint32(36+dataLen))
	buf.WriteString("WAVE")

	buf.WriteString("fmt ")
	binary.Write(buf, binary.LittleEndian, uint32(16))
	binary.Write(buf, binary.LittleEndian, uint16(1)) // PCM
	binary.Write(buf, binary.LittleEndian, uint16(numChannels))
	binary.Write(buf, binary.LittleEndian, uint32(sampleRate))
	binary.Write(buf, binary.LittleEndian, uint32(byteRate))
	binary.Write(buf, binary.LittleEndian, uint16(blockAlign))
	binary.Write(buf, binary.LittleEndian, uint16(bitsPerSample))

	buf.WriteString("data")
	binary.Write(buf, binary.LittleEndian, uint32(dataLen))
	for _, s := range samples {
		binary.Write(buf, binary.LittleEndian, pcm16(s))
	}
	return buf.Bytes()
}

func pcm16(s float32) int16 {
	switch {
	case s >= 1.0:
		return 32767
	case s <= -1.0:
		return -32768
	default:
		return int16(s * 32767)
	}
}
