package gateway

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	"github.com/voxnote/dictation-gateway/internal/config"
	"github.com/voxnote/dictation-gateway/internal/engine"
	"github.com/voxnote/dictation-gateway/internal/history"
)

// rawEvent decodes just enough of any server event to dispatch on its type.
type rawEvent struct {
	Type    string          `json:"type"`
	Version int             `json:"version"`
	Session json.RawMessage `json:"session"`
	Final   string          `json:"finalText"`
	Live    string          `json:"liveText"`
	Active  bool            `json:"active"`
	Code    string          `json:"code"`
	Message string          `json:"message"`
	Entries []history.Entry `json:"entries"`
	Text    string          `json:"text"`
}

type sessionFields struct {
	State     string `json:"state"`
	Listening bool   `json:"listening"`
	FinalText string `json:"finalText"`
	LiveText  string `json:"liveText"`
	Supported bool   `json:"supported"`
}

func newTestServer(t *testing.T) (*websocket.Conn, *history.Manager) {
	t.Helper()
	manager := history.NewManager(history.NewMemoryStore(), history.Options{
		AutosaveDebounce: 10 * time.Millisecond,
	})
	factory := engine.NewStubFactory(engine.StubScript{})
	cfg := &config.Config{DefaultLanguage: "en-US"}

	server := httptest.NewServer(Handler(cfg, factory, manager))
	t.Cleanup(server.Close)

	url := "ws" + strings.TrimPrefix(server.URL, "http") + "/ws"
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		t.Fatalf("Failed to dial websocket: %v", err)
	}
	t.Cleanup(func() { conn.Close() })
	return conn, manager
}

func send(t *testing.T, conn *websocket.Conn, cmd Command) {
	t.Helper()
	if err := conn.WriteJSON(cmd); err != nil {
		t.Fatalf("Failed to send command %q: %v", cmd.Op, err)
	}
}

// waitEvent reads events until one of the given type arrives, skipping
// interleaved transcript and speaking traffic.
func waitEvent(t *testing.T, conn *websocket.Conn, eventType string) rawEvent {
	t.Helper()
	deadline := time.Now().Add(3 * time.Second)
	conn.SetReadDeadline(deadline)
	for {
		var event rawEvent
		if err := conn.ReadJSON(&event); err != nil {
			t.Fatalf("Waiting for %q event: %v", eventType, err)
		}
		if event.Type == eventType {
			return event
		}
		if time.Now().After(deadline) {
			t.Fatalf("Timed out waiting for %q event", eventType)
		}
	}
}

func TestGateway_InitialState(t *testing.T) {
	conn, _ := newTestServer(t)

	// A fresh client gets its state, document, and history up front.
	state := waitEvent(t, conn, "state")
	if state.Version != EventVersion {
		t.Errorf("Expected version %d, got %d", EventVersion, state.Version)
	}
	var snap sessionFields
	if err := json.Unmarshal(state.Session, &snap); err != nil {
		t.Fatalf("Bad session payload: %v", err)
	}
	if snap.State != "idle" || !snap.Supported {
		t.Errorf("Unexpected initial session: %+v", snap)
	}

	doc := waitEvent(t, conn, "document")
	if doc.Text != "" {
		t.Errorf("Expected empty initial document, got %q", doc.Text)
	}
	hist := waitEvent(t, conn, "history")
	if len(hist.Entries) != 0 {
		t.Errorf("Expected empty initial history, got %v", hist.Entries)
	}
}

func TestGateway_DictationRoundTrip(t *testing.T) {
	conn, _ := newTestServer(t)
	waitEvent(t, conn, "history") // drain the initial burst

	send(t, conn, Command{Op: OpStart})

	// The stub engine plays an interim batch then its final form.
	var live string
	deadline := time.Now().Add(3 * time.Second)
	for time.Now().Before(deadline) {
		event := waitEvent(t, conn, "transcript")
		live = event.Live
		if live == "stub transcript ready" {
			break
		}
	}
	if live != "stub transcript ready" {
		t.Fatalf("Expected stub transcript, got %q", live)
	}

	send(t, conn, Command{Op: OpStop})
	for {
		event := waitEvent(t, conn, "state")
		var snap sessionFields
		if err := json.Unmarshal(event.Session, &snap); err != nil {
			t.Fatalf("Bad session payload: %v", err)
		}
		if snap.State == "idle" {
			break
		}
	}

	// The finalized transcript lands in history; the save is asynchronous,
	// so poll through the command path.
	deadline = time.Now().Add(3 * time.Second)
	for {
		send(t, conn, Command{Op: OpHistoryList})
		event := waitEvent(t, conn, "history")
		if len(event.Entries) == 1 {
			if event.Entries[0].Content != "stub transcript ready" {
				t.Fatalf("Unexpected history content %q", event.Entries[0].Content)
			}
			return
		}
		if time.Now().After(deadline) {
			t.Fatal("Transcript never reached history")
		}
		time.Sleep(10 * time.Millisecond)
	}
}

func TestGateway_SpeakingEvents(t *testing.T) {
	conn, _ := newTestServer(t)
	waitEvent(t, conn, "history")

	send(t, conn, Command{Op: OpStart})
	event := waitEvent(t, conn, "speaking")
	if !event.Active {
		t.Error("Expected first speaking event to be active")
	}
}

func TestGateway_DocumentOps(t *testing.T) {
	conn, manager := newTestServer(t)
	waitEvent(t, conn, "history")

	send(t, conn, Command{Op: OpSetDocument, Text: "edited by hand"})
	send(t, conn, Command{Op: OpGetDocument})
	event := waitEvent(t, conn, "document")
	if event.Text != "edited by hand" {
		t.Errorf("Expected document round trip, got %q", event.Text)
	}
	if manager.Document() != "edited by hand" {
		t.Errorf("Manager document out of sync: %q", manager.Document())
	}

	// Copy returns the document for the client-side clipboard.
	send(t, conn, Command{Op: OpCopy})
	event = waitEvent(t, conn, "document")
	if event.Text != "edited by hand" {
		t.Errorf("Expected copy to return the document, got %q", event.Text)
	}
}

func TestGateway_HistoryOps(t *testing.T) {
	conn, manager := newTestServer(t)
	waitEvent(t, conn, "history")

	manager.Save("first")
	manager.Save("second")

	send(t, conn, Command{Op: OpHistoryList})
	event := waitEvent(t, conn, "history")
	if len(event.Entries) != 2 {
		t.Fatalf("Expected 2 entries, got %d", len(event.Entries))
	}

	send(t, conn, Command{Op: OpHistoryDelete, ID: event.Entries[0].ID})
	event = waitEvent(t, conn, "history")
	if len(event.Entries) != 1 || event.Entries[0].Content != "first" {
		t.Errorf("Unexpected entries after delete: %v", event.Entries)
	}

	send(t, conn, Command{Op: OpHistoryClear})
	event = waitEvent(t, conn, "history")
	if len(event.Entries) != 0 {
		t.Errorf("Expected empty history after clear, got %v", event.Entries)
	}
}

func TestGateway_BadCommands(t *testing.T) {
	conn, _ := newTestServer(t)
	waitEvent(t, conn, "history")

	if err := conn.WriteMessage(websocket.TextMessage, []byte("{not json")); err != nil {
		t.Fatal(err)
	}
	event := waitEvent(t, conn, "error")
	if event.Code != "bad-command" {
		t.Errorf("Expected bad-command for malformed JSON, got %q", event.Code)
	}

	send(t, conn, Command{Op: "launch_missiles"})
	event = waitEvent(t, conn, "error")
	if event.Code != "bad-command" || !strings.Contains(event.Message, "launch_missiles") {
		t.Errorf("Expected bad-command for unknown op, got %q %q", event.Code, event.Message)
	}
}

func TestGateway_RejectsPlainHTTP(t *testing.T) {
	manager := history.NewManager(history.NewMemoryStore(), history.Options{})
	cfg := &config.Config{DefaultLanguage: "en-US"}
	server := httptest.NewServer(Handler(cfg, engine.NewStubFactory(engine.StubScript{}), manager))
	t.Cleanup(server.Close)

	// A request without an upgrade handshake is refused, not served.
	resp, err := http.Get(server.URL)
	if err != nil {
		t.Fatalf("GET failed: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusBadRequest {
		t.Errorf("Expected 400 for non-websocket request, got %d", resp.StatusCode)
	}
}

func TestGateway_UnsupportedFactory(t *testing.T) {
	manager := history.NewManager(history.NewMemoryStore(), history.Options{})
	cfg := &config.Config{DefaultLanguage: "en-US"}
	server := httptest.NewServer(Handler(cfg, nil, manager))
	t.Cleanup(server.Close)

	url := "ws" + strings.TrimPrefix(server.URL, "http") + "/ws"
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		t.Fatalf("Failed to dial websocket: %v", err)
	}
	t.Cleanup(func() { conn.Close() })

	state := waitEvent(t, conn, "state")
	var snap sessionFields
	if err := json.Unmarshal(state.Session, &snap); err != nil {
		t.Fatal(err)
	}
	if snap.Supported {
		t.Error("Expected supported=false without an engine factory")
	}

	send(t, conn, Command{Op: OpStart})
	event := waitEvent(t, conn, "error")
	if event.Code != "unsupported" {
		t.Errorf("Expected unsupported error, got %q", event.Code)
	}

	// History keeps working without a recognition backend.
	send(t, conn, Command{Op: OpHistoryList})
	waitEvent(t, conn, "history")
}
