package speech

import (
	"fmt"
	"strings"
	"unicode/utf8"
)

const (
	// MaxTextLength is the vendor limit on synthesis input, in characters
	MaxTextLength = 1024

	// DefaultSampleRate is the only rate the recognition model is tuned for
	DefaultSampleRate = 16000

	minLevel = 0
	maxLevel = 15
)

// Supported recognition encodings
const (
	FormatWAV = "wav"
	FormatMP3 = "mp3"
	FormatPCM = "pcm"
)

// Clamp forces a speed, pitch or volume level into [0, 15]
func Clamp(v int) int {
	if v < minLevel {
		return minLevel
	}
	if v > maxLevel {
		return maxLevel
	}
	return v
}

// NormalizeFormat maps an encoding label onto one the recognizer accepts.
// webm, ogg and anything unrecognised are relabelled as wav; the audio
// itself is never transcoded. The second return value reports relabelling.
func NormalizeFormat(format string) (string, bool) {
	f := strings.ToLower(strings.TrimPrefix(strings.TrimSpace(format), "."))
	switch f {
	case FormatWAV, FormatMP3, FormatPCM:
		return f, false
	default:
		return FormatWAV, true
	}
}

// NormalizeConfidence converts the vendor's 0-100 score into [0, 1]
func NormalizeConfidence(c float64) float64 {
	v := c / 100
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}

// checkText rejects synthesis input the vendor would refuse
func checkText(text string) *Result {
	if strings.TrimSpace(text) == "" {
		r := Failed(ReasonInvalidRequest, -1, "text is empty")
		return &r
	}
	if n := utf8.RuneCountInString(text); n > MaxTextLength {
		r := Failed(ReasonInvalidRequest, -1, fmt.Sprintf("text has %d characters, limit is %d", n, MaxTextLength))
		return &r
	}
	return nil
}
