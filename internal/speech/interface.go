package speech

import "context"

// RecognizeRequest is one speech-to-text call
type RecognizeRequest struct {
	Audio      []byte
	Format     string // wav, mp3, pcm; anything else is sent as wav
	SampleRate int    // 0 means DefaultSampleRate
}

// SynthesizeRequest is one text-to-speech call. Speed, Pitch and Volume are
// clamped into [0, 15] by the provider.
type SynthesizeRequest struct {
	Text    string
	VoiceID int
	Speed   int
	Pitch   int
	Volume  int
}

// Provider performs exactly one recognition or synthesis per call. Every
// failure is reported through the returned Result, never as a panic or a
// separate error value.
type Provider interface {
	Recognize(ctx context.Context, req RecognizeRequest) Result
	Synthesize(ctx context.Context, req SynthesizeRequest) Result

	// Name returns the name of the provider (e.g., "baidu", "mock")
	Name() string
}
