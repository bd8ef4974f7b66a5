package engine

import (
	"context"
	"fmt"
	"strings"
	"sync"

	websocketv1api "github.com/deepgram/deepgram-go-sdk/v3/pkg/api/listen/v1/websocket"
	msginterfaces "github.com/deepgram/deepgram-go-sdk/v3/pkg/api/listen/v1/websocket/interfaces"
	interfaces "github.com/deepgram/deepgram-go-sdk/v3/pkg/client/interfaces"
	listenClient "github.com/deepgram/deepgram-go-sdk/v3/pkg/client/listen"
	"github.com/rs/zerolog"

	"github.com/voxnote/dictation-gateway/internal/observability"
)

// DeepgramConfig controls the Deepgram live-transcription backend.
type DeepgramConfig struct {
	APIKey     string
	Model      string
	Encoding   string
	SampleRate int
	Channels   int
}

// DeepgramFactory creates Deepgram-backed engines.
type DeepgramFactory struct {
	cfg DeepgramConfig
}

// NewDeepgramFactory returns a factory for Deepgram live engines.
func NewDeepgramFactory(cfg DeepgramConfig) *DeepgramFactory {
	if cfg.Model == "" {
		cfg.Model = "nova-2"
	}
	if cfg.Encoding == "" {
		cfg.Encoding = "linear16"
	}
	if cfg.SampleRate <= 0 {
		cfg.SampleRate = 16000
	}
	if cfg.Channels <= 0 {
		cfg.Channels = 1
	}
	return &DeepgramFactory{cfg: cfg}
}

// New binds a fresh engine to the listener. An empty API key means the
// backend is unavailable and surfaces as ErrUnsupported.
func (f *DeepgramFactory) New(listener Listener) (Engine, error) {
	if strings.TrimSpace(f.cfg.APIKey) == "" {
		return nil, ErrUnsupported
	}
	return &deepgramEngine{
		cfg:      f.cfg,
		listener: listener,
		log:      observability.GetLogger().With().Str("component", "engine.deepgram").Logger(),
	}, nil
}

// liveCallbackHandler implements the SDK's LiveMessageCallback interface.
// It embeds the default handler and overrides only the methods we care about.
type liveCallbackHandler struct {
	*websocketv1api.DefaultCallbackHandler
	onMessage func(*msginterfaces.MessageResponse)
	onClose   func()
	onError   func(*msginterfaces.ErrorResponse)
}

func (h *liveCallbackHandler) Message(message *msginterfaces.MessageResponse) error {
	h.onMessage(message)
	return nil
}

func (h *liveCallbackHandler) Close(closeResponse *msginterfaces.CloseResponse) error {
	h.onClose()
	return nil
}

func (h *liveCallbackHandler) Error(errorResponse *msginterfaces.ErrorResponse) error {
	h.onError(errorResponse)
	return nil
}

// deepgramEngine is one logical recognition connection. Each Start opens a
// fresh SDK websocket client; runs are numbered so callbacks from an already
// superseded run are dropped instead of being misread as events of the
// current one.
type deepgramEngine struct {
	cfg      DeepgramConfig
	listener Listener
	log      zerolog.Logger

	mu        sync.Mutex
	language  string
	client    *listenClient.WSCallback
	run       int
	active    bool
	nextIndex int
}

func (e *deepgramEngine) Configure(language string) {
	e.mu.Lock()
	e.language = language
	e.mu.Unlock()
}

func (e *deepgramEngine) Start() error {
	e.mu.Lock()
	if e.active {
		e.mu.Unlock()
		return fmt.Errorf("deepgram engine is already running")
	}
	e.run++
	run := e.run
	e.nextIndex = 0
	language := e.language
	e.mu.Unlock()

	tOptions := &interfaces.LiveTranscriptionOptions{
		Model:          e.cfg.Model,
		Language:       language,
		Punctuate:      true,
		InterimResults: true,
		Encoding:       e.cfg.Encoding,
		SampleRate:     e.cfg.SampleRate,
		Channels:       e.cfg.Channels,
	}

	callback := &liveCallbackHandler{
		DefaultCallbackHandler: websocketv1api.NewDefaultCallbackHandler(),
		onMessage:              func(msg *msginterfaces.MessageResponse) { e.handleMessage(run, msg) },
		onClose:                func() { e.handleClose(run) },
		onError:                func(resp *msginterfaces.ErrorResponse) { e.handleError(run, resp) },
	}

	client, err := listenClient.NewWSUsingCallback(
		context.Background(),
		e.cfg.APIKey,
		nil, // ClientOptions - nil uses defaults
		tOptions,
		callback,
	)
	if err != nil {
		return fmt.Errorf("failed to create deepgram client: %w", err)
	}

	e.mu.Lock()
	e.client = client
	e.active = true
	e.mu.Unlock()

	e.log.Debug().Str("model", e.cfg.Model).Str("language", language).Msg("deepgram run started")
	return nil
}

func (e *deepgramEngine) Stop() {
	e.mu.Lock()
	client := e.client
	active := e.active
	e.mu.Unlock()

	if !active || client == nil {
		return
	}
	// Finish flushes pending audio; the SDK emits Close when the server is
	// done, which becomes the listener's OnEnd.
	client.Finish()
}

func (e *deepgramEngine) WriteAudio(chunk []byte) error {
	e.mu.Lock()
	client := e.client
	active := e.active
	e.mu.Unlock()

	if !active || client == nil {
		return fmt.Errorf("deepgram engine is not running")
	}
	if _, err := client.Write(chunk); err != nil {
		return fmt.Errorf("failed to send audio to deepgram: %w", err)
	}
	return nil
}

func (e *deepgramEngine) handleMessage(run int, msg *msginterfaces.MessageResponse) {
	if msg == nil {
		return
	}
	switch msg.Type {
	case "Results", "Message":
	default:
		return
	}
	if len(msg.Channel.Alternatives) == 0 {
		return
	}

	e.mu.Lock()
	if run != e.run || !e.active {
		e.mu.Unlock()
		return
	}
	index := e.nextIndex
	if msg.IsFinal {
		e.nextIndex++
	}
	e.mu.Unlock()

	alternatives := make([]Alternative, 0, len(msg.Channel.Alternatives))
	for _, alt := range msg.Channel.Alternatives {
		alternatives = append(alternatives, Alternative{
			Text:       alt.Transcript,
			Confidence: alt.Confidence,
		})
	}
	if strings.TrimSpace(alternatives[0].Text) == "" {
		return
	}

	e.listener.OnResult(ResultBatch{
		StartIndex: index,
		Slots:      []Slot{{Alternatives: alternatives, IsFinal: msg.IsFinal}},
	})
}

func (e *deepgramEngine) handleClose(run int) {
	e.mu.Lock()
	if run != e.run {
		e.mu.Unlock()
		return
	}
	e.active = false
	e.client = nil
	e.mu.Unlock()

	e.log.Debug().Msg("deepgram run ended")
	e.listener.OnEnd()
}

func (e *deepgramEngine) handleError(run int, resp *msginterfaces.ErrorResponse) {
	e.mu.Lock()
	if run != e.run {
		e.mu.Unlock()
		return
	}
	// Invalidate the run so a trailing Close callback cannot emit a second
	// OnEnd for it.
	e.run++
	e.active = false
	e.client = nil
	e.mu.Unlock()

	code := classifyDeepgramError(resp)
	e.log.Warn().Str("code", code).Msg("deepgram run failed")
	e.listener.OnError(code)
	e.listener.OnEnd()
}

func classifyDeepgramError(resp *msginterfaces.ErrorResponse) string {
	if resp == nil {
		return CodeNetwork
	}
	detail := strings.ToLower(resp.Description + " " + resp.ErrMsg + " " + resp.ErrCode)
	switch {
	case strings.Contains(detail, "aborted"):
		return CodeAborted
	case strings.Contains(detail, "unauthorized"),
		strings.Contains(detail, "forbidden"),
		strings.Contains(detail, "401"),
		strings.Contains(detail, "403"):
		return CodeNotAllowed
	default:
		return CodeNetwork
	}
}
