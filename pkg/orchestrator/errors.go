package orchestrator

import (
	"errors"

	"github.com/teslashibe/go-jarvis/pkg/dialogue"
	"github.com/teslashibe/go-jarvis/pkg/tools"
)

// ErrAlreadyRunning is returned by a second call to Run.
var ErrAlreadyRunning = errors.New("orchestrator: already running")

// User-facing replies for failed turns.
const (
	TextGenericError   = "Lo siento, ha ocurrido un error. Por favor, inténtalo de nuevo."
	TextQuotaExhausted = "Error de API: límite de créditos alcanzado."
	TextUnauthorized   = "Error de autenticación con la API."
	TextRateLimited    = "Demasiadas solicitudes. Por favor, espera un momento."
	TextTimeout        = "La respuesta está tardando demasiado. Por favor, inténtalo de nuevo."
	TextToolError      = "Lo siento, no pude completar esa acción. Por favor, inténtalo de nuevo."
)

// ErrorText returns the apologetic reply for a failed turn.
func ErrorText(err error) string {
	if tools.IsToolError(err) {
		return TextToolError
	}
	switch dialogue.Classify(err) {
	case dialogue.CategoryQuotaExhausted:
		return TextQuotaExhausted
	case dialogue.CategoryUnauthorized:
		return TextUnauthorized
	case dialogue.CategoryRateLimited:
		return TextRateLimited
	case dialogue.CategoryTimeout:
		return TextTimeout
	default:
		return TextGenericError
	}
}

var errMissingDeps = errors.New("orchestrator: source, classifier, tools, dialogue and speaker are required")
