package speech

import "fmt"

// Kind tags which variant a Result holds
type Kind int

const (
	KindRecognized Kind = iota + 1
	KindSynthesized
	KindFailed
)

func (k Kind) String() string {
	switch k {
	case KindRecognized:
		return "recognized"
	case KindSynthesized:
		return "synthesized"
	case KindFailed:
		return "failed"
	default:
		return "unknown"
	}
}

// Reason classifies a failed speech operation
type Reason string

const (
	// ReasonNoToken means the credential exchange produced no token
	ReasonNoToken Reason = "no_token"
	// ReasonHTTPError means the vendor answered with a non-200 status
	ReasonHTTPError Reason = "http_error"
	// ReasonVendorError means the vendor answered 200 with a non-zero err_no
	ReasonVendorError Reason = "vendor_error"
	// ReasonUnexpectedResponse means a 200 body was neither audio nor a known JSON shape
	ReasonUnexpectedResponse Reason = "unexpected_response"
	// ReasonTransport covers network, timeout and read failures
	ReasonTransport Reason = "transport"
	// ReasonInvalidRequest is raised before any network call
	ReasonInvalidRequest Reason = "invalid_request"
)

// Failure carries the diagnostics of a failed operation
type Failure struct {
	Reason  Reason
	Code    int
	Message string
}

func (f *Failure) Error() string {
	return fmt.Sprintf("%s (code %d): %s", f.Reason, f.Code, f.Message)
}

// Result is the outcome of one recognition or synthesis call. Exactly one
// of the variant fields is meaningful, selected by Kind.
type Result struct {
	Kind Kind

	// KindRecognized
	Text       string
	Confidence float64

	// KindSynthesized
	Audio []byte

	// KindFailed
	Failure *Failure
}

// Recognized builds a successful recognition result
func Recognized(text string, confidence float64) Result {
	return Result{Kind: KindRecognized, Text: text, Confidence: confidence}
}

// Synthesized builds a successful synthesis result
func Synthesized(audio []byte) Result {
	return Result{Kind: KindSynthesized, Audio: audio}
}

// Failed builds a failure result
func Failed(reason Reason, code int, message string) Result {
	return Result{
		Kind:    KindFailed,
		Failure: &Failure{Reason: reason, Code: code, Message: message},
	}
}

// OK reports whether the result is not a failure
func (r Result) OK() bool {
	return r.Kind == KindRecognized || r.Kind == KindSynthesized
}
