// Package runner реализует цикл прогона: обход вкладок в порядке
// конфигурации, захват строк и делегирование обработчику строк
// с гарантированным снятием блокировки.
package runner

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/nkoval/scriptum/internal/config"
	"github.com/nkoval/scriptum/internal/domain"
	"github.com/nkoval/scriptum/internal/events"
	"github.com/nkoval/scriptum/internal/processor"
	"github.com/nkoval/scriptum/internal/repo"
	"github.com/nkoval/scriptum/internal/telemetry"
)

// RowSource — операции репозитория, нужные циклу прогона.
type RowSource interface {
	AcquireClaimableRow(ctx context.Context, tab string, ttl time.Duration) (*domain.Row, error)
	UpdateRow(ctx context.Context, row *domain.Row, updates map[string]string) error
	ReleaseLock(ctx context.Context, row *domain.Row) error
}

// RowProcessor — обработчик одной захваченной строки.
type RowProcessor interface {
	Process(ctx context.Context, task processor.RowTask) error
}

// Config — конфигурация Runner.
type Config struct {
	// Rows — репозиторий строк (обязательно).
	Rows RowSource

	// Processor — обработчик строк (обязательно).
	Processor RowProcessor

	// Tabs — вкладки в порядке конфигурации.
	Tabs []config.TabAssistants

	// PerRunRows — бюджет строк на один прогон (default: 1).
	PerRunRows int

	// LockTTL — длительность аренды строки.
	LockTTL time.Duration

	// Events — публикация событий строк. Nil допустим.
	Events *events.Publisher

	// Logger
	Logger *slog.Logger
}

// Runner — оркестратор прогонов.
type Runner struct {
	rows       RowSource
	processor  RowProcessor
	tabs       []config.TabAssistants
	perRunRows int
	lockTTL    time.Duration
	events     *events.Publisher
	logger     *slog.Logger
}

// New создаёт Runner.
func New(cfg Config) *Runner {
	perRunRows := cfg.PerRunRows
	if perRunRows < 1 {
		perRunRows = 1
	}

	lockTTL := cfg.LockTTL
	if lockTTL <= 0 {
		lockTTL = config.DefaultLockTTLMinutes * time.Minute
	}

	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	return &Runner{
		rows:       cfg.Rows,
		processor:  cfg.Processor,
		tabs:       cfg.Tabs,
		perRunRows: perRunRows,
		lockTTL:    lockTTL,
		events:     cfg.Events,
		logger:     logger,
	}
}

// Run выполняет один прогон по всем вкладкам конфигурации.
func (r *Runner) Run(ctx context.Context) (int, error) {
	return r.RunTabs(ctx, nil)
}

// RunTabs выполняет один прогон по подмножеству вкладок (nil — все).
//
// Обрабатывается до perRunRows строк. Прогон завершается раньше, если
// полный проход по вкладкам не нашёл ни одной доступной строки:
// запас строк для этого вызова исчерпан.
func (r *Runner) RunTabs(ctx context.Context, tabNames []string) (int, error) {
	runID := uuid.New().String()
	logger := telemetry.WithRunID(r.logger, runID)

	tabs := r.selectTabs(tabNames)
	if len(tabs) == 0 {
		logger.Warn("no tabs to process")
		return 0, nil
	}

	telemetry.RunsStarted.Inc()
	logger.Info("run started", "tabs", len(tabs), "budget", r.perRunRows)

	processed := 0
	for processed < r.perRunRows {
		if err := ctx.Err(); err != nil {
			return processed, err
		}

		row, tabCfg, found := r.claimNext(ctx, tabs, logger)
		if !found {
			// Полный пустой проход: больше нечего обрабатывать
			break
		}

		if r.processRow(ctx, runID, row, tabCfg, logger) {
			processed++
		}
	}

	logger.Info("run finished", "processed", processed)
	return processed, nil
}

// selectTabs возвращает вкладки прогона в порядке конфигурации.
func (r *Runner) selectTabs(names []string) []config.TabAssistants {
	if names == nil {
		return r.tabs
	}

	wanted := make(map[string]bool, len(names))
	for _, name := range names {
		wanted[name] = true
	}

	var tabs []config.TabAssistants
	for _, t := range r.tabs {
		if wanted[t.Tab] {
			tabs = append(tabs, t)
		}
	}
	return tabs
}

// claimNext сканирует вкладки и возвращает первую захваченную строку.
func (r *Runner) claimNext(ctx context.Context, tabs []config.TabAssistants, logger *slog.Logger) (*domain.Row, config.TabAssistants, bool) {
	for _, tabCfg := range tabs {
		if err := tabCfg.EnsureComplete(); err != nil {
			logger.Error("tab configuration is incomplete, skipping", "tab", tabCfg.Tab, "error", err)
			continue
		}

		row, err := r.rows.AcquireClaimableRow(ctx, tabCfg.Tab, r.lockTTL)
		if errors.Is(err, repo.ErrNoClaimableRow) {
			telemetry.ClaimAttempts.WithLabelValues(tabCfg.Tab, "empty").Inc()
			continue
		}
		if err != nil {
			telemetry.ClaimAttempts.WithLabelValues(tabCfg.Tab, "error").Inc()
			logger.Error("acquire row failed", "tab", tabCfg.Tab, "error", err)
			continue
		}

		telemetry.ClaimAttempts.WithLabelValues(tabCfg.Tab, "claimed").Inc()
		return row, tabCfg, true
	}
	return nil, config.TabAssistants{}, false
}

// processRow обрабатывает захваченную строку и в любом исходе
// снимает блокировку. Возвращает true при успехе.
func (r *Runner) processRow(ctx context.Context, runID string, row *domain.Row, tabCfg config.TabAssistants, logger *slog.Logger) bool {
	logger = telemetry.WithRow(telemetry.WithTab(logger, row.Tab), row.Index)
	start := time.Now()

	defer func() {
		// Снятие блокировки best-effort: при сбое аренда истечёт сама
		if relErr := r.rows.ReleaseLock(ctx, row); relErr != nil {
			logger.Error("release lock failed", "error", relErr)
		}
		telemetry.RowDuration.WithLabelValues(row.Tab).Observe(time.Since(start).Seconds())
	}()

	err := r.processor.Process(ctx, processor.RowTask{
		Row:                  row,
		WriterAssistantID:    tabCfg.WriterAssistantID,
		ModeratorAssistantID: tabCfg.ModeratorAssistantID,
		ImageEnabled:         tabCfg.ImageEnabled,
	})

	if err != nil {
		logger.Error("row processing failed", "error", err)
		r.recordFailure(ctx, runID, row, err, logger)
		return false
	}

	status := row.Values[domain.ColumnStatus]
	telemetry.RowsProcessed.WithLabelValues(row.Tab, status).Inc()
	r.events.RowProcessed(ctx, events.RowPayload{
		RunID:     runID,
		Tab:       row.Tab,
		Row:       row.Index,
		Status:    status,
		Iteration: row.Iteration(),
	})
	return true
}

// recordFailure записывает в строку статус Error и текст ошибки.
// Запись best-effort: таблица — журнал ошибок для оператора, но сбой
// записи не должен валить прогон.
func (r *Runner) recordFailure(ctx context.Context, runID string, row *domain.Row, procErr error, logger *slog.Logger) {
	err := r.rows.UpdateRow(ctx, row, map[string]string{
		domain.ColumnStatus:        string(domain.RowStatusError),
		domain.ColumnModeratorNote: procErr.Error(),
	})
	if err != nil {
		logger.Error("write error status failed", "error", err)
	}

	telemetry.RowsProcessed.WithLabelValues(row.Tab, string(domain.RowStatusError)).Inc()
	r.events.RowFailed(ctx, events.RowPayload{
		RunID:  runID,
		Tab:    row.Tab,
		Row:    row.Index,
		Status: string(domain.RowStatusError),
		Error:  procErr.Error(),
	})
}
