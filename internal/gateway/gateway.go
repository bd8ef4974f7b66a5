package gateway

import (
	"encoding/json"
	"net/http"
	"sync"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"

	"github.com/voxnote/dictation-gateway/internal/audio"
	"github.com/voxnote/dictation-gateway/internal/config"
	"github.com/voxnote/dictation-gateway/internal/engine"
	"github.com/voxnote/dictation-gateway/internal/history"
	"github.com/voxnote/dictation-gateway/internal/observability"
	"github.com/voxnote/dictation-gateway/internal/resilience"
	"github.com/voxnote/dictation-gateway/internal/session"
)

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool {
		// Dictation clients are served from the same host in production;
		// allow all origins for development.
		return true
	},
	ReadBufferSize:  4096,
	WriteBufferSize: 4096,
}

// clientSession holds the state of one connected dictation client. Each
// client owns its own session controller; the history manager is shared
// process-wide state.
type clientSession struct {
	conn       *websocket.Conn
	controller *session.Controller
	manager    *history.Manager
	logger     zerolog.Logger
	chunker    *audio.Chunker
	decode     func([]byte) []byte

	out       chan interface{}
	done      chan struct{}
	closeOnce sync.Once
}

// Handler returns the /ws endpoint handler. The factory may be nil when the
// host has no recognition backend; sessions then fail with the unsupported
// condition while history operations keep working.
func Handler(cfg *config.Config, factory engine.Factory, manager *history.Manager) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			logger := observability.GetLogger()
			logger.Warn().Err(err).Msg("failed to upgrade connection to websocket")
			return
		}
		defer conn.Close()

		s := newClientSession(conn, cfg, factory, manager)
		observability.RecordConnectionOpened()
		defer observability.RecordConnectionClosed()

		s.logger.Info().Msg("dictation client connected")
		go s.writeLoop()
		s.sendInitialState()
		s.readLoop()
		s.close()
		s.logger.Info().Msg("dictation client disconnected")
	}
}

func newClientSession(conn *websocket.Conn, cfg *config.Config, factory engine.Factory, manager *history.Manager) *clientSession {
	s := &clientSession{
		conn:    conn,
		manager: manager,
		logger:  observability.WithCorrelationID("").With().Str("component", "gateway").Logger(),
		chunker: audio.NewChunker(cfg.AudioChunkBytes),
		out:     make(chan interface{}, 64),
		done:    make(chan struct{}),
	}
	if cfg.AudioEncoding == config.AudioEncodingMulaw {
		s.decode = audio.DecodeMulaw
	}
	s.controller = session.NewController(factory, manager, s, session.Config{
		DefaultLanguage: cfg.DefaultLanguage,
		SpeakingPulse:   cfg.SpeakingPulse(),
		Restart: resilience.RestartPolicy{
			MinRunDuration: cfg.RestartMinRun(),
			MaxRapid:       cfg.RestartMaxRapid,
		},
	})
	return s
}

func (s *clientSession) readLoop() {
	for {
		messageType, data, err := s.conn.ReadMessage()
		if err != nil {
			return
		}

		switch messageType {
		case websocket.BinaryMessage:
			s.forwardAudio(data)
		case websocket.TextMessage:
			var cmd Command
			if err := json.Unmarshal(data, &cmd); err != nil {
				s.emit(ErrorEvent{Event: newEvent("error"), Code: "bad-command", Message: "malformed command"})
				continue
			}
			s.handleCommand(cmd)
		}
	}
}

// forwardAudio runs a binary frame through the decode and chunking pipeline
// and hands complete chunks to the session.
func (s *clientSession) forwardAudio(frame []byte) {
	if s.decode != nil {
		frame = s.decode(frame)
	}
	for _, chunk := range s.chunker.Write(frame) {
		if err := s.controller.WriteAudio(chunk); err != nil {
			s.logger.Warn().Err(err).Msg("failed to forward audio to engine")
			return
		}
	}
}

// flushAudio pushes any buffered partial chunk to the engine so trailing
// audio is transcribed before the run stops.
func (s *clientSession) flushAudio() {
	if rest := s.chunker.Flush(); len(rest) > 0 {
		if err := s.controller.WriteAudio(rest); err != nil {
			s.logger.Warn().Err(err).Msg("failed to flush trailing audio")
		}
	}
}

func (s *clientSession) handleCommand(cmd Command) {
	switch cmd.Op {
	case OpStart:
		if err := s.controller.Start(cmd.Language); err != nil {
			// The error was already surfaced through the event sink.
			s.logger.Warn().Err(err).Msg("session start failed")
		}
	case OpStop:
		s.flushAudio()
		s.controller.Stop()
	case OpPause:
		s.flushAudio()
		s.controller.Pause()
	case OpResume:
		s.controller.Resume()
	case OpStatus:
		s.emit(StateEvent{Event: newEvent("state"), Session: s.controller.Snapshot()})
	case OpSetDocument:
		s.manager.SetDocument(cmd.Text)
	case OpGetDocument, OpCopy:
		// The gateway has no host clipboard; "copy" hands the document back
		// for the client to place on its own clipboard.
		s.emit(DocumentEvent{Event: newEvent("document"), Text: s.manager.Document()})
	case OpHistoryList:
		s.emit(HistoryEvent{Event: newEvent("history"), Entries: s.manager.List()})
	case OpHistoryDelete:
		s.manager.Delete(cmd.ID)
		s.emit(HistoryEvent{Event: newEvent("history"), Entries: s.manager.List()})
	case OpHistoryClear:
		s.manager.ClearAll()
		s.emit(HistoryEvent{Event: newEvent("history"), Entries: s.manager.List()})
	default:
		s.emit(ErrorEvent{Event: newEvent("error"), Code: "bad-command", Message: "unknown op " + cmd.Op})
	}
}

func (s *clientSession) sendInitialState() {
	s.emit(StateEvent{Event: newEvent("state"), Session: s.controller.Snapshot()})
	s.emit(DocumentEvent{Event: newEvent("document"), Text: s.manager.Document()})
	s.emit(HistoryEvent{Event: newEvent("history"), Entries: s.manager.List()})
}

func (s *clientSession) writeLoop() {
	for {
		select {
		case event := <-s.out:
			if err := s.conn.WriteJSON(event); err != nil {
				return
			}
		case <-s.done:
			return
		}
	}
}

func (s *clientSession) close() {
	s.closeOnce.Do(func() {
		// Disconnect ends the session; the controller finalizes and hands
		// any text to history.
		s.controller.Stop()
		close(s.done)
	})
}

// emit queues an event for the client without blocking the caller. A slow
// client drops events rather than stalling the session.
func (s *clientSession) emit(event interface{}) {
	select {
	case s.out <- event:
	case <-s.done:
	default:
		s.logger.Warn().Msg("event channel full, dropping event")
	}
}

// SessionStateChanged implements session.EventSink.
func (s *clientSession) SessionStateChanged(snapshot session.Snapshot) {
	s.emit(StateEvent{Event: newEvent("state"), Session: snapshot})
}

// TranscriptChanged implements session.EventSink. The live text is also the
// editable document, so every change feeds the debounced autosave.
func (s *clientSession) TranscriptChanged(finalText string, liveText string) {
	s.manager.SetDocument(liveText)
	s.emit(TranscriptEvent{Event: newEvent("transcript"), FinalText: finalText, LiveText: liveText})
}

// SpeakingChanged implements session.EventSink.
func (s *clientSession) SpeakingChanged(active bool) {
	s.emit(SpeakingEvent{Event: newEvent("speaking"), Active: active})
}

// SessionError implements session.EventSink.
func (s *clientSession) SessionError(code session.ErrorCode, message string) {
	s.emit(ErrorEvent{Event: newEvent("error"), Code: string(code), Message: message})
}
