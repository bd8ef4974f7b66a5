package session

import (
	"fmt"

	"github.com/voxnote/dictation-gateway/internal/engine"
)

// ErrorCode classifies fatal session errors surfaced to the caller.
type ErrorCode string

const (
	ErrorCodeUnsupported  ErrorCode = "unsupported"
	ErrorCodeNoSpeech     ErrorCode = "no-speech"
	ErrorCodeAudioCapture ErrorCode = "audio-capture"
	ErrorCodePermission   ErrorCode = "permission-denied"
	ErrorCodeNetwork      ErrorCode = "network"
	ErrorCodeEngine       ErrorCode = "engine"
)

const (
	msgUnsupported = "Speech recognition is not available in this environment."
	msgRestartLoop = "Speech recognition keeps failing right after starting. Check your connection and try again."
)

// classifyEngineError maps a raw engine error code onto the session taxonomy
// with a human-readable message. The "aborted" code never reaches this
// function; it is swallowed before classification.
func classifyEngineError(code string) (ErrorCode, string) {
	switch code {
	case engine.CodeNoSpeech:
		return ErrorCodeNoSpeech, "No speech was detected. Try again."
	case engine.CodeAudioCapture:
		return ErrorCodeAudioCapture, "Audio capture failed. Check your microphone."
	case engine.CodeNotAllowed, "service-not-allowed":
		return ErrorCodePermission, "Permission to use the microphone was denied or blocked."
	case engine.CodeNetwork:
		return ErrorCodeNetwork, "A network error interrupted speech recognition."
	default:
		return ErrorCodeEngine, fmt.Sprintf("Speech recognition failed (%s).", code)
	}
}
