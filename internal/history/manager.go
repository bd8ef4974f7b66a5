package history

import (
	"encoding/json"
	"strings"
	"sync"
	"time"

	"github.com/bep/debounce"
	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/voxnote/dictation-gateway/internal/observability"
	"github.com/voxnote/dictation-gateway/internal/resilience"
)

const (
	documentKey = "dictation:document"
	historyKey  = "dictation:history"

	dateLayout = "Jan 2, 2006 3:04 PM"
)

// Entry is one completed transcript in history. Immutable once created,
// except for deletion.
type Entry struct {
	ID      string `json:"id"`
	Date    string `json:"date"`
	Content string `json:"content"`
}

// Options tunes the manager. Zero values fall back to defaults.
type Options struct {
	// AutosaveDebounce is the quiet period before the document is persisted.
	AutosaveDebounce time.Duration

	// Retry controls how persistence writes are retried on transient errors.
	Retry *resilience.RetryConfig

	Now   func() time.Time
	NewID func() string
}

// Manager owns the editable document and the append-only transcript history.
// Store failures are logged and counted but never propagate into a session:
// the in-memory state stays authoritative for the current run.
type Manager struct {
	store Store
	log   zerolog.Logger
	retry *resilience.RetryConfig
	now   func() time.Time
	newID func() string

	mu        sync.Mutex
	entries   []Entry
	document  string
	debounced func(func())
}

// NewManager builds a manager on top of store and restores any previously
// persisted document and history. An empty or missing store is a valid first
// run.
func NewManager(store Store, opts Options) *Manager {
	if opts.AutosaveDebounce <= 0 {
		opts.AutosaveDebounce = 500 * time.Millisecond
	}
	if opts.Retry == nil {
		opts.Retry = resilience.DefaultRetryConfig()
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	if opts.NewID == nil {
		opts.NewID = func() string { return uuid.New().String() }
	}

	m := &Manager{
		store:     store,
		log:       observability.GetLogger().With().Str("component", "history.manager").Logger(),
		retry:     opts.Retry,
		now:       opts.Now,
		newID:     opts.NewID,
		debounced: debounce.New(opts.AutosaveDebounce),
	}
	m.restore()
	return m
}

func (m *Manager) restore() {
	if raw, ok, err := m.store.Get(historyKey); err != nil {
		m.log.Warn().Err(err).Msg("failed to load history")
		observability.RecordStoreFailure("load_history")
	} else if ok {
		var entries []Entry
		if err := json.Unmarshal([]byte(raw), &entries); err != nil {
			m.log.Warn().Err(err).Msg("failed to decode persisted history")
		} else {
			m.entries = entries
		}
	}

	if doc, ok, err := m.store.Get(documentKey); err != nil {
		m.log.Warn().Err(err).Msg("failed to load document")
		observability.RecordStoreFailure("load_document")
	} else if ok {
		m.document = doc
	}

	observability.SetHistoryEntries(len(m.entries))
}

// Document returns the current editable document.
func (m *Manager) Document() string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.document
}

// SetDocument replaces the editable document and schedules a debounced
// persist; rapid successive changes coalesce into one write of the latest
// content.
func (m *Manager) SetDocument(text string) {
	m.mu.Lock()
	m.document = text
	m.mu.Unlock()
	m.debounced(m.persistDocument)
}

// Flush persists the document immediately, bypassing the debounce. Called on
// shutdown.
func (m *Manager) Flush() {
	m.persistDocument()
}

func (m *Manager) persistDocument() {
	m.mu.Lock()
	doc := m.document
	m.mu.Unlock()

	var err error
	if doc == "" {
		err = resilience.Retry(func() error { return m.store.Delete(documentKey) }, m.retry, isTransientStoreError)
	} else {
		err = resilience.Retry(func() error { return m.store.Set(documentKey, doc) }, m.retry, isTransientStoreError)
	}
	if err != nil {
		m.log.Error().Err(err).Msg("failed to persist document")
		observability.RecordStoreFailure("document")
		return
	}
	observability.RecordAutosave()
}

// Save appends a completed transcript. Empty content and content whose
// trimmed form already exists in history are no-ops, never errors.
func (m *Manager) Save(content string) {
	trimmed := strings.TrimSpace(content)
	if trimmed == "" {
		return
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	for _, entry := range m.entries {
		if strings.TrimSpace(entry.Content) == trimmed {
			return
		}
	}

	entry := Entry{
		ID:      m.newID(),
		Date:    m.now().Format(dateLayout),
		Content: trimmed,
	}
	// Most recent first.
	m.entries = append([]Entry{entry}, m.entries...)
	m.persistHistoryLocked()
	observability.SetHistoryEntries(len(m.entries))
	m.log.Info().Str("id", entry.ID).Int("entries", len(m.entries)).Msg("transcript saved to history")
}

// List returns the history, most recent first.
func (m *Manager) List() []Entry {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]Entry, len(m.entries))
	copy(out, m.entries)
	return out
}

// Delete removes the entry with the given id. Deleting an unknown id is a
// no-op.
func (m *Manager) Delete(id string) {
	m.mu.Lock()
	defer m.mu.Unlock()

	kept := m.entries[:0]
	removed := false
	for _, entry := range m.entries {
		if entry.ID == id && !removed {
			removed = true
			continue
		}
		kept = append(kept, entry)
	}
	if !removed {
		return
	}
	m.entries = kept
	m.persistHistoryLocked()
	observability.SetHistoryEntries(len(m.entries))
}

// ClearAll empties the history and removes its persisted form entirely.
func (m *Manager) ClearAll() {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.entries = nil
	if err := resilience.Retry(func() error { return m.store.Delete(historyKey) }, m.retry, isTransientStoreError); err != nil {
		m.log.Error().Err(err).Msg("failed to clear persisted history")
		observability.RecordStoreFailure("history")
	}
	observability.SetHistoryEntries(0)
}

func (m *Manager) persistHistoryLocked() {
	if len(m.entries) == 0 {
		if err := resilience.Retry(func() error { return m.store.Delete(historyKey) }, m.retry, isTransientStoreError); err != nil {
			m.log.Error().Err(err).Msg("failed to persist history")
			observability.RecordStoreFailure("history")
		}
		return
	}

	raw, err := json.Marshal(m.entries)
	if err != nil {
		m.log.Error().Err(err).Msg("failed to encode history")
		return
	}
	if err := resilience.Retry(func() error { return m.store.Set(historyKey, string(raw)) }, m.retry, isTransientStoreError); err != nil {
		m.log.Error().Err(err).Msg("failed to persist history")
		observability.RecordStoreFailure("history")
	}
}
