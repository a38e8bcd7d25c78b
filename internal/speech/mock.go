package speech

import (
	"bytes"
	"context"
	"encoding/binary"
)

// MockTranscript is what the mock provider "hears" in every recording
const MockTranscript = "这是模拟的语音识别结果：您好，我想了解人工智能的发展历程。"

// MockProvider stands in for the vendor when no credentials are configured,
// so the frontend keeps working end to end.
type MockProvider struct{}

// NewMockProvider creates a mock speech provider
func NewMockProvider() *MockProvider {
	return &MockProvider{}
}

// Name returns the provider name
func (p *MockProvider) Name() string {
	return "mock"
}

// Recognize returns a fixed transcript for any non-empty audio
func (p *MockProvider) Recognize(_ context.Context, req RecognizeRequest) Result {
	if len(req.Audio) == 0 {
		return Failed(ReasonInvalidRequest, -1, "audio is empty")
	}
	return Recognized(MockTranscript, 0.95)
}

// Synthesize returns a short silent WAV clip
func (p *MockProvider) Synthesize(_ context.Context, req SynthesizeRequest) Result {
	if failed := checkText(req.Text); failed != nil {
		return *failed
	}
	return Synthesized(SilentWAV(2048))
}

// SilentWAV builds a mono 16-bit 16 kHz PCM WAV file holding n bytes of silence
func SilentWAV(n int) []byte {
	const (
		sampleRate    = 16000
		channels      = 1
		bitsPerSample = 16
	)
	blockAlign := channels * bitsPerSample / 8

	var buf bytes.Buffer
	buf.WriteString("RIFF")
	binary.Write(&buf, binary.LittleEndian, uint32(36+n))
	buf.WriteString("WAVEfmt ")
	binary.Write(&buf, binary.LittleEndian, uint32(16))
	binary.Write(&buf, binary.LittleEndian, uint16(1)) // PCM
	binary.Write(&buf, binary.LittleEndian, uint16(channels))
	binary.Write(&buf, binary.LittleEndian, uint32(sampleRate))
	binary.Write(&buf, binary.LittleEndian, uint32(sampleRate*blockAlign))
	binary.Write(&buf, binary.LittleEndian, uint16(blockAlign))
	binary.Write(&buf, binary.LittleEndian, uint16(bitsPerSample))
	buf.WriteString("data")
	binary.Write(&buf, binary.LittleEndian, uint32(n))
	buf.Write(make([]byte, n))
	return buf.Bytes()
}
