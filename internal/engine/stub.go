package engine

import (
	"sync"

	"github.com/rs/zerolog"

	"github.com/voxnote/dictation-gateway/internal/observability"
)

// StubScript describes what a stub engine run plays back.
type StubScript struct {
	// Batches are delivered in order once a run starts.
	Batches []ResultBatch

	// EndAfterScript makes the run terminate on its own after the last batch,
	// which is how a spontaneous backend disconnect looks to the controller.
	EndAfterScript bool
}

// DefaultStubScript produces one interim update followed by its final form.
func DefaultStubScript() StubScript {
	return StubScript{
		Batches: []ResultBatch{
			{StartIndex: 0, Slots: []Slot{{Alternatives: []Alternative{{Text: "stub transcript", Confidence: 0.42}}, IsFinal: false}}},
			{StartIndex: 0, Slots: []Slot{{Alternatives: []Alternative{{Text: "stub transcript ready", Confidence: 0.99}}, IsFinal: true}}},
		},
	}
}

// StubFactory creates engines that play a fixed script without contacting any
// recognition service. Used by tests and ENGINE=stub runs.
type StubFactory struct {
	script StubScript
}

// NewStubFactory returns a factory whose engines play the given script on
// every run. A zero script falls back to DefaultStubScript.
func NewStubFactory(script StubScript) *StubFactory {
	if len(script.Batches) == 0 {
		script = DefaultStubScript()
	}
	return &StubFactory{script: script}
}

func (f *StubFactory) New(listener Listener) (Engine, error) {
	return &StubEngine{
		listener: listener,
		script:   f.script,
		log:      observability.GetLogger().With().Str("component", "engine.stub").Logger(),
	}, nil
}

// StubEngine produces deterministic result batches without a backend.
type StubEngine struct {
	listener Listener
	script   StubScript
	log      zerolog.Logger

	mu       sync.Mutex
	language string
	run      int
	active   bool
	starts   int
}

func (e *StubEngine) Configure(language string) {
	e.mu.Lock()
	e.language = language
	e.mu.Unlock()
}

func (e *StubEngine) Start() error {
	e.mu.Lock()
	e.run++
	run := e.run
	e.active = true
	e.starts++
	e.mu.Unlock()

	e.log.Debug().Int("run", run).Msg("stub run started")
	go e.play(run)
	return nil
}

func (e *StubEngine) Stop() {
	e.mu.Lock()
	if !e.active {
		e.mu.Unlock()
		return
	}
	e.active = false
	e.run++
	e.mu.Unlock()

	// Terminations are asynchronous, like a real backend's.
	go e.listener.OnEnd()
}

// Starts reports how many runs were started; tests use it to observe the
// controller's restart behavior.
func (e *StubEngine) Starts() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.starts
}

func (e *StubEngine) play(run int) {
	for _, batch := range e.script.Batches {
		if !e.currentRun(run) {
			return
		}
		e.listener.OnResult(batch)
	}
	if !e.script.EndAfterScript {
		return
	}

	e.mu.Lock()
	if run != e.run || !e.active {
		e.mu.Unlock()
		return
	}
	e.active = false
	e.run++
	e.mu.Unlock()
	e.listener.OnEnd()
}

func (e *StubEngine) currentRun(run int) bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return run == e.run && e.active
}
