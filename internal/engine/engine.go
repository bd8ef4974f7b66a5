// Package engine defines the narrow contract between the session controller
// and a streaming speech-recognition backend, plus the available backends.
package engine

import "errors"

// ErrUnsupported is returned when no recognition backend is available in the
// current environment.
var ErrUnsupported = errors.New("speech recognition is not supported in this environment")

// Error codes delivered through Listener.OnError. These mirror the vocabulary
// of browser speech APIs so the controller can classify terminations from any
// backend the same way.
const (
	CodeNoSpeech     = "no-speech"
	CodeAudioCapture = "audio-capture"
	CodeNotAllowed   = "not-allowed"
	CodeNetwork      = "network"
	CodeAborted      = "aborted"
)

// Alternative is one hypothesis for a result slot. The first alternative is
// always the best one.
type Alternative struct {
	Text       string
	Confidence float64
}

// Slot is a single result slot. Interim slots may be re-delivered with
// updated text until the backend flags them final; a final slot is never
// re-delivered within one engine run.
type Slot struct {
	Alternatives []Alternative
	IsFinal      bool
}

// ResultBatch is an ordered run of result slots starting at StartIndex.
// Slot i in the batch describes result index StartIndex+i.
type ResultBatch struct {
	StartIndex int
	Slots      []Slot
}

// Listener receives engine events. All methods may be called from arbitrary
// goroutines; implementations must serialize internally.
type Listener interface {
	// OnResult delivers a batch of interim/final result slots.
	OnResult(batch ResultBatch)

	// OnEnd fires exactly once per engine run, whether the run was stopped by
	// the caller or ended on its own. It carries no cause.
	OnEnd()

	// OnError reports a failure using one of the Code constants, or a raw
	// backend code for anything unclassified. An errored run still emits OnEnd.
	OnError(code string)
}

// Engine is one streaming recognition connection. An Engine may be started
// again after its previous run has terminated.
type Engine interface {
	// Configure sets the recognition language tag (e.g. "en-US") for
	// subsequent runs.
	Configure(language string)

	// Start begins a run. Events are delivered asynchronously to the bound
	// Listener until OnEnd.
	Start() error

	// Stop requests termination of the current run. The run is not over until
	// OnEnd fires; Stop on an idle engine is a no-op.
	Stop()
}

// AudioWriter is implemented by engines that consume caller-supplied audio
// rather than capturing it themselves.
type AudioWriter interface {
	WriteAudio(chunk []byte) error
}

// Factory creates engines bound to a listener. A nil Factory is the
// "unsupported" condition: no session can ever start.
type Factory interface {
	New(listener Listener) (Engine, error)
}
