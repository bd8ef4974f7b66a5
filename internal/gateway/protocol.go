// Package gateway exposes the session controller and history manager to
// dictation clients over a WebSocket control/event connection. Text frames
// carry JSON commands and events; binary frames carry raw audio for the
// recognition engine.
package gateway

import (
	"github.com/voxnote/dictation-gateway/internal/history"
	"github.com/voxnote/dictation-gateway/internal/session"
)

// EventVersion is bumped when the event wire format changes.
const EventVersion = 1

// Command operations accepted from clients.
const (
	OpStart         = "start"
	OpStop          = "stop"
	OpPause         = "pause"
	OpResume        = "resume"
	OpStatus        = "status"
	OpSetDocument   = "set_document"
	OpGetDocument   = "get_document"
	OpCopy          = "copy"
	OpHistoryList   = "history_list"
	OpHistoryDelete = "history_delete"
	OpHistoryClear  = "history_clear"
)

// Command is a control message from a dictation client.
type Command struct {
	Op       string `json:"op"`
	Language string `json:"language,omitempty"` // start
	ID       string `json:"id,omitempty"`       // history_delete
	Text     string `json:"text,omitempty"`     // set_document
}

// Event is the common envelope for server-to-client messages.
type Event struct {
	Type    string `json:"type"`
	Version int    `json:"version"`
}

// StateEvent carries a full session snapshot.
type StateEvent struct {
	Event
	Session session.Snapshot `json:"session"`
}

// TranscriptEvent carries the current text buffers.
type TranscriptEvent struct {
	Event
	FinalText string `json:"finalText"`
	LiveText  string `json:"liveText"`
}

// SpeakingEvent signals the transient speech-activity indicator.
type SpeakingEvent struct {
	Event
	Active bool `json:"active"`
}

// ErrorEvent surfaces a classified session error.
type ErrorEvent struct {
	Event
	Code    string `json:"code"`
	Message string `json:"message"`
}

// HistoryEvent carries the transcript history, most recent first.
type HistoryEvent struct {
	Event
	Entries []history.Entry `json:"entries"`
}

// DocumentEvent carries the current editable document.
type DocumentEvent struct {
	Event
	Text string `json:"text"`
}

func newEvent(eventType string) Event {
	return Event{Type: eventType, Version: EventVersion}
}
