package recognition

import "fmt"

// ErrorCode identifies a recognizer failure.
type ErrorCode string

const (
	CodeNoSpeech     ErrorCode = "no-speech"
	CodeAudioCapture ErrorCode = "audio-capture"
	CodeNotAllowed   ErrorCode = "not-allowed"
	CodeUnsupported  ErrorCode = "unsupported"
	CodeNetwork      ErrorCode = "network"
	CodeAborted      ErrorCode = "aborted"
)

var messages = map[ErrorCode]string{
	CodeNoSpeech:     "No se detectó voz. Intenta hablar más claro.",
	CodeAudioCapture: "No se detectó micrófono. Verifique permisos.",
	CodeNotAllowed:   "Permiso para micrófono denegado. Verifique configuración.",
	CodeUnsupported:  "Reconocimiento de voz no soportado en este navegador.",
}

// GenericMessage is shown for codes without a specific text.
const GenericMessage = "Error en el reconocimiento de voz."

// Error is a recognizer failure. It never affects turn processing.
type Error struct {
	Code   ErrorCode
	Detail string
}

// NewError creates an Error for code.
func NewError(code ErrorCode) *Error {
	return &Error{Code: code}
}

func (e *Error) Error() string {
	if e.Detail != "" {
		return fmt.Sprintf("recognition: %s: %s", e.Code, e.Detail)
	}
	return fmt.Sprintf("recognition: %s", e.Code)
}

// Message returns the user-facing Spanish text for the error.
func (e *Error) Message() string {
	if m, ok := messages[e.Code]; ok {
		return m
	}
	return GenericMessage
}
