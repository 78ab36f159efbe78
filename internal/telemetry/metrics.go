package telemetry

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Метрики воркера. Регистрируются в глобальном реестре promauto;
// daemon отдаёт их на /metrics.
var (
	// RowsProcessed — обработанные строки по вкладке и финальному статусу.
	RowsProcessed = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "scriptum_rows_processed_total",
		Help: "Rows processed, by tab and final status.",
	}, []string{"tab", "status"})

	// RowDuration — длительность полной обработки одной строки.
	RowDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "scriptum_row_processing_seconds",
		Help:    "Wall time of processing a single row.",
		Buckets: prometheus.ExponentialBuckets(1, 2, 12), // 1s .. ~1h
	}, []string{"tab"})

	// AssistantCalls — запросы к ассистентам по роли.
	AssistantCalls = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "scriptum_assistant_calls_total",
		Help: "Assistant invocations, by role (writer, moderator, brief).",
	}, []string{"role"})

	// ClaimAttempts — попытки захвата строки по вкладке и исходу.
	ClaimAttempts = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "scriptum_claim_attempts_total",
		Help: "Row claim attempts, by tab and outcome (claimed, empty, error).",
	}, []string{"tab", "outcome"})

	// RunsStarted — запуски цикла прогона.
	RunsStarted = promauto.NewCounter(prometheus.CounterOpts{
		Name: "scriptum_runs_started_total",
		Help: "Run loop invocations started.",
	})
)
