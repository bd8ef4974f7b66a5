package session

import (
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/voxnote/dictation-gateway/internal/engine"
	"github.com/voxnote/dictation-gateway/internal/observability"
	"github.com/voxnote/dictation-gateway/internal/resilience"
)

// Config controls session controller behavior.
type Config struct {
	// DefaultLanguage is used when Start is called with an empty language tag.
	DefaultLanguage string

	// SpeakingPulse is how long the speaking indicator stays up after the
	// last result batch.
	SpeakingPulse time.Duration

	// Restart bounds the auto-restart policy for spontaneous engine ends.
	Restart resilience.RestartPolicy
}

// Controller owns exactly one engine connection and drives the session state
// machine. Every transition, whether caller-initiated or triggered by an
// asynchronous engine event, runs to completion under the controller's lock,
// and the current state is always readable synchronously from inside any
// callback.
type Controller struct {
	factory engine.Factory
	saver   Saver
	sink    EventSink
	cfg     Config
	log     zerolog.Logger
	now     func() time.Time

	mu         sync.Mutex
	eng        engine.Engine
	epoch      int
	state      State
	stopReason StopReason
	language   string
	finalText  string
	liveText   string
	speaking   bool
	speakTimer *time.Timer
	errCode    ErrorCode
	errMsg     string
	runStarted time.Time
	restarts   *resilience.RestartTracker
}

// NewController builds a controller. A nil factory means the host has no
// recognition capability; Start will fail with engine.ErrUnsupported.
func NewController(factory engine.Factory, saver Saver, sink EventSink, cfg Config) *Controller {
	if cfg.DefaultLanguage == "" {
		cfg.DefaultLanguage = "en-US"
	}
	if cfg.SpeakingPulse <= 0 {
		cfg.SpeakingPulse = 500 * time.Millisecond
	}
	return &Controller{
		factory:  factory,
		saver:    saver,
		sink:     sink,
		cfg:      cfg,
		log:      observability.GetLogger().With().Str("component", "session.controller").Logger(),
		now:      time.Now,
		state:    StateIdle,
		restarts: resilience.NewRestartTracker(cfg.Restart),
	}
}

// engineListener binds one engine instance to the controller. The epoch lets
// the controller drop events from an engine it has already replaced.
type engineListener struct {
	c     *Controller
	epoch int
}

func (l *engineListener) OnResult(batch engine.ResultBatch) { l.c.handleResult(l.epoch, batch) }
func (l *engineListener) OnEnd()                            { l.c.handleEnd(l.epoch) }
func (l *engineListener) OnError(code string)               { l.c.handleError(l.epoch, code) }

// Start begins a new session, discarding any prior one. The transcript
// buffers are reset and any previous error is cleared.
func (c *Controller) Start(language string) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.factory == nil {
		c.haltLocked(ErrorCodeUnsupported, msgUnsupported)
		return engine.ErrUnsupported
	}
	if language == "" {
		language = c.cfg.DefaultLanguage
	}

	// No stacking of sessions: retire the previous engine first. Its later
	// callbacks carry a stale epoch and are dropped.
	if c.eng != nil {
		old := c.eng
		c.eng = nil
		old.Stop()
	}
	c.epoch++
	c.language = language
	c.finalText = ""
	c.liveText = ""
	c.errCode = ""
	c.errMsg = ""
	c.stopReason = StopReasonAuto
	c.restarts.Reset()

	eng, err := c.factory.New(&engineListener{c: c, epoch: c.epoch})
	if err != nil {
		c.haltLocked(ErrorCodeUnsupported, msgUnsupported)
		return err
	}
	c.eng = eng
	eng.Configure(language)

	c.state = StateListening
	c.runStarted = c.now()
	if err := eng.Start(); err != nil {
		code, msg := classifyEngineError(engine.CodeNetwork)
		c.haltLocked(code, msg)
		return err
	}

	observability.RecordSessionStart()
	c.log.Info().Str("language", language).Msg("session started")
	c.sink.SessionStateChanged(c.snapshotLocked())
	c.sink.TranscriptChanged(c.finalText, c.liveText)
	return nil
}

// Stop ends the session. The transition to Idle is optimistic: it happens
// immediately, and the engine's eventual termination event finalizes the
// transcript because stopReason is User. Stop outside a session is a no-op.
func (c *Controller) Stop() {
	c.mu.Lock()
	defer c.mu.Unlock()

	switch c.state {
	case StateListening:
		c.stopReason = StopReasonUser
		c.state = StateIdle
		c.clearSpeakingLocked()
		c.log.Info().Msg("session stopped by user")
		c.sink.SessionStateChanged(c.snapshotLocked())
		c.eng.Stop()
	case StatePaused:
		// The engine already terminated when the session was paused, so no
		// termination event is coming. Finalize directly; the history append
		// dedups if the paused fragment was already saved.
		c.stopReason = StopReasonUser
		c.state = StateIdle
		c.finalizeLocked()
		c.log.Info().Msg("paused session stopped by user")
		c.sink.SessionStateChanged(c.snapshotLocked())
		if c.eng != nil {
			c.eng.Stop()
		}
	default:
		// Idle or Error-Halted: nothing to stop.
	}
}

// Pause stops the engine but keeps the session resumable. Only valid while
// actively listening.
func (c *Controller) Pause() {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.state != StateListening {
		return
	}
	c.stopReason = StopReasonPaused
	c.state = StatePaused
	c.clearSpeakingLocked()
	c.log.Info().Msg("session paused")
	c.sink.SessionStateChanged(c.snapshotLocked())
	c.eng.Stop()
}

// Resume restarts the engine after a pause. The paused text becomes the new
// baseline with a single separating space, so continued speech concatenates
// cleanly.
func (c *Controller) Resume() {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.state != StatePaused || c.eng == nil {
		return
	}
	baseline := strings.TrimSpace(c.liveText)
	if baseline != "" {
		baseline += " "
	}
	c.finalText = baseline
	c.liveText = baseline
	c.stopReason = StopReasonAuto
	c.state = StateListening
	c.runStarted = c.now()
	if err := c.eng.Start(); err != nil {
		code, msg := classifyEngineError(engine.CodeNetwork)
		c.haltLocked(code, msg)
		return
	}
	c.log.Info().Msg("session resumed")
	c.sink.SessionStateChanged(c.snapshotLocked())
	c.sink.TranscriptChanged(c.finalText, c.liveText)
}

// WriteAudio forwards caller-supplied audio to the engine when it accepts
// audio and the session is actively listening. Audio outside an active run
// is dropped.
func (c *Controller) WriteAudio(chunk []byte) error {
	c.mu.Lock()
	eng := c.eng
	listening := c.state == StateListening
	c.mu.Unlock()

	if !listening || eng == nil {
		return nil
	}
	if writer, ok := eng.(engine.AudioWriter); ok {
		return writer.WriteAudio(chunk)
	}
	return nil
}

// Snapshot returns the current session state.
func (c *Controller) Snapshot() Snapshot {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.snapshotLocked()
}

func (c *Controller) handleResult(epoch int, batch engine.ResultBatch) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if epoch != c.epoch || c.state != StateListening {
		return
	}
	c.finalText, c.liveText = Merge(batch, c.finalText)
	c.pulseSpeakingLocked()
	observability.RecordResultBatch(batchHasFinal(batch))
	c.sink.TranscriptChanged(c.finalText, c.liveText)
}

// handleEnd processes the engine's termination event. The event itself says
// nothing about why the run ended; stopReason, set before the stop that
// caused it, disambiguates.
func (c *Controller) handleEnd(epoch int) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if epoch != c.epoch {
		return
	}

	if c.stopReason == StopReasonAuto && c.state == StateListening {
		// The engine ended on its own while the session should still be
		// running (idle timeout, server-side segment boundary). Restart it
		// transparently, within the rapid-restart bound.
		if !c.restarts.Allow(c.now().Sub(c.runStarted)) {
			c.log.Warn().Int("rapid", c.restarts.Rapid()).Msg("engine restart limit hit")
			c.haltLocked(ErrorCodeNetwork, msgRestartLoop)
			return
		}
		c.runStarted = c.now()
		if err := c.eng.Start(); err != nil {
			code, msg := classifyEngineError(engine.CodeNetwork)
			c.haltLocked(code, msg)
			return
		}
		observability.RecordEngineRestart()
		c.log.Debug().Msg("engine restarted after spontaneous end")
		return
	}

	// User stop, pause, or an errored run: freeze the transcript. Repeated
	// delivery is harmless because finalize is idempotent.
	c.finalizeLocked()
	c.sink.SessionStateChanged(c.snapshotLocked())
}

func (c *Controller) handleError(epoch int, code string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if epoch != c.epoch {
		return
	}
	if code == engine.CodeAborted {
		// Expected side effect of a caller-initiated stop racing the
		// engine's internal abort. Never surfaced.
		c.log.Debug().Msg("spurious abort ignored")
		return
	}
	errCode, msg := classifyEngineError(code)
	c.log.Warn().Str("engine_code", code).Str("code", string(errCode)).Msg("engine error")
	c.haltLocked(errCode, msg)
}

// finalizeLocked trims the live text and freezes both buffers to it, handing
// non-empty content to the history saver. An errored session keeps its text
// visible but is not recorded to history.
func (c *Controller) finalizeLocked() {
	trimmed := strings.TrimSpace(c.liveText)
	c.finalText = trimmed
	c.liveText = trimmed
	c.clearSpeakingLocked()
	c.sink.TranscriptChanged(c.finalText, c.liveText)
	if trimmed != "" && c.state != StateError && c.saver != nil {
		c.saver.Save(trimmed)
	}
}

// haltLocked moves the session to Error-Halted. No automatic retry: the
// caller must start a new session.
func (c *Controller) haltLocked(code ErrorCode, message string) {
	c.stopReason = StopReasonUser
	c.state = StateError
	c.errCode = code
	c.errMsg = message
	c.clearSpeakingLocked()
	observability.RecordSessionError(string(code))
	c.sink.SessionError(code, message)
	c.sink.SessionStateChanged(c.snapshotLocked())
}

func (c *Controller) pulseSpeakingLocked() {
	if !c.speaking {
		c.speaking = true
		c.sink.SpeakingChanged(true)
	}
	if c.speakTimer != nil {
		c.speakTimer.Stop()
	}
	c.speakTimer = time.AfterFunc(c.cfg.SpeakingPulse, c.expireSpeaking)
}

func (c *Controller) expireSpeaking() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.speaking {
		c.speaking = false
		c.sink.SpeakingChanged(false)
	}
}

func (c *Controller) clearSpeakingLocked() {
	if c.speakTimer != nil {
		c.speakTimer.Stop()
		c.speakTimer = nil
	}
	if c.speaking {
		c.speaking = false
		c.sink.SpeakingChanged(false)
	}
}

func (c *Controller) snapshotLocked() Snapshot {
	return Snapshot{
		State:        c.state,
		Listening:    c.state == StateListening,
		Paused:       c.state == StatePaused,
		Speaking:     c.speaking,
		Language:     c.language,
		FinalText:    c.finalText,
		LiveText:     c.liveText,
		ErrorCode:    c.errCode,
		ErrorMessage: c.errMsg,
		Supported:    c.factory != nil,
	}
}
