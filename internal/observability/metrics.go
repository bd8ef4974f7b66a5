package observability

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// Session metrics
	sessionsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "dictation_gateway_sessions_total",
		Help: "Total number of dictation sessions started",
	})

	engineRestartsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "dictation_gateway_engine_restarts_total",
		Help: "Total number of transparent engine restarts after spontaneous ends",
	})

	resultBatchesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "dictation_gateway_result_batches_total",
		Help: "Total result batches received from the recognition engine",
	}, []string{"kind"}) // kind: "interim" or "final"

	sessionErrorsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "dictation_gateway_session_errors_total",
		Help: "Total fatal session errors by classified code",
	}, []string{"code"})

	// Gateway metrics
	activeConnections = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "dictation_gateway_active_connections",
		Help: "Number of connected dictation clients",
	})

	connectionsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "dictation_gateway_connections_total",
		Help: "Total number of client connections accepted",
	})

	// History / persistence metrics
	historyEntries = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "dictation_gateway_history_entries",
		Help: "Number of transcripts currently in history",
	})

	autosaveWritesTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "dictation_gateway_autosave_writes_total",
		Help: "Total debounced document autosaves",
	})

	storeFailuresTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "dictation_gateway_store_failures_total",
		Help: "Total persistence store failures by operation",
	}, []string{"op"})
)

// RecordSessionStart counts a new dictation session.
func RecordSessionStart() {
	sessionsTotal.Inc()
}

// RecordEngineRestart counts a transparent engine restart.
func RecordEngineRestart() {
	engineRestartsTotal.Inc()
}

// RecordResultBatch counts a result batch from the engine.
func RecordResultBatch(final bool) {
	kind := "interim"
	if final {
		kind = "final"
	}
	resultBatchesTotal.WithLabelValues(kind).Inc()
}

// RecordSessionError counts a fatal session error.
func RecordSessionError(code string) {
	sessionErrorsTotal.WithLabelValues(code).Inc()
}

// RecordConnectionOpened tracks a newly accepted client connection.
func RecordConnectionOpened() {
	connectionsTotal.Inc()
	activeConnections.Inc()
}

// RecordConnectionClosed tracks a client disconnect.
func RecordConnectionClosed() {
	activeConnections.Dec()
}

// SetHistoryEntries records the current history size.
func SetHistoryEntries(n int) {
	historyEntries.Set(float64(n))
}

// RecordAutosave counts a debounced document write.
func RecordAutosave() {
	autosaveWritesTotal.Inc()
}

// RecordStoreFailure counts a persistence failure for an operation.
func RecordStoreFailure(op string) {
	storeFailuresTotal.WithLabelValues(op).Inc()
}
