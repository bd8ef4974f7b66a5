// Package session holds the transcription session controller and the
// transcript assembler: the state machine that drives a streaming recognition
// engine, merges its interim/final results into a stable document, and
// survives spontaneous engine terminations.
package session

// State models the session lifecycle.
type State string

const (
	StateIdle      State = "idle"
	StateListening State = "listening"
	StatePaused    State = "paused"
	StateError     State = "error"
)

// StopReason records why the engine is being stopped. It is set synchronously
// before every engine stop and consumed by the next termination event, which
// itself carries no cause: this is how a user stop, a pause, and a spontaneous
// backend disconnect are told apart.
type StopReason string

const (
	StopReasonAuto   StopReason = "auto"
	StopReasonUser   StopReason = "user"
	StopReasonPaused StopReason = "paused"
)

// Snapshot is the controller state as observed at one instant. It is safe to
// read from any goroutine via Controller.Snapshot.
type Snapshot struct {
	State        State     `json:"state"`
	Listening    bool      `json:"listening"`
	Paused       bool      `json:"paused"`
	Speaking     bool      `json:"speaking"`
	Language     string    `json:"language"`
	FinalText    string    `json:"finalText"`
	LiveText     string    `json:"liveText"`
	ErrorCode    ErrorCode `json:"errorCode,omitempty"`
	ErrorMessage string    `json:"errorMessage,omitempty"`
	Supported    bool      `json:"supported"`
}

// EventSink receives controller output. Methods are invoked with the
// controller lock held; implementations must be fast and must not call back
// into the controller.
type EventSink interface {
	SessionStateChanged(snapshot Snapshot)
	TranscriptChanged(finalText string, liveText string)
	SpeakingChanged(active bool)
	SessionError(code ErrorCode, message string)
}

// Saver persists finalized session text. Implemented by the history manager;
// saving empty or duplicate content is the implementation's no-op, not the
// controller's concern.
type Saver interface {
	Save(content string)
}
