// Package recognition models the event stream of a speech recognizer.
//
// The recognizer itself runs elsewhere (a browser tab, a device, a console).
// Its output reaches the orchestrator as four channels exposed by a Source.
package recognition

import "strings"

// Transcript is one recognized fragment.
type Transcript struct {
	Text    string `json:"text"`
	IsFinal bool   `json:"is_final"`
}

// Trimmed returns the transcript text without surrounding whitespace.
func (t Transcript) Trimmed() string {
	return strings.TrimSpace(t.Text)
}

// Lifecycle is a recognizer start or end notification.
type Lifecycle int

const (
	Started Lifecycle = iota + 1
	Ended
)

func (l Lifecycle) String() string {
	switch l {
	case Started:
		return "start"
	case Ended:
		return "end"
	default:
		return "unknown"
	}
}

// Source is a speech recognizer feeding the orchestrator.
type Source interface {
	Transcripts() <-chan Transcript
	// Volume carries levels normalized to [0,1].
	Volume() <-chan float64
	Lifecycle() <-chan Lifecycle
	Errors() <-chan *Error

	// SetListening asks the recognizer to start or stop capturing.
	SetListening(enabled bool)
}

// NormalizeVolume turns frequency-bin magnitudes (0..255) into a level in [0,1]:
// the bin average divided by 128, capped at 1.
func NormalizeVolume(bins []byte) float64 {
	if len(bins) == 0 {
		return 0
	}
	sum := 0
	for _, b := range bins {
		sum += int(b)
	}
	return ClampVolume(float64(sum) / float64(len(bins)) / 128)
}

// ClampVolume limits a level to [0,1].
func ClampVolume(v float64) float64 {
	switch {
	case v != v, v < 0:
		return 0
	case v > 1:
		return 1
	default:
		return v
	}
}
