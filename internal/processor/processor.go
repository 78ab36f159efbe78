// Package processor реализует цикл правок одной строки: писатель
// готовит черновик по заголовку, модератор выносит вердикты, при
// отказе писатель получает текст с комментарием на доработку.
// Количество кругов ограничено потолком правок; после цикла строка
// опционально проходит стадию изображения и получает финальный статус.
package processor

import (
	"context"
	"log/slog"
	"strconv"
	"strings"

	"github.com/nkoval/scriptum/internal/assistants"
	"github.com/nkoval/scriptum/internal/domain"
	"github.com/nkoval/scriptum/internal/telemetry"
)

// Роли ассистентов в метриках.
const (
	roleWriter    = "writer"
	roleModerator = "moderator"
	roleBrief     = "brief"
)

// AssistantRunner выполняет один запрос к ассистенту и возвращает
// текст его ответа.
type AssistantRunner interface {
	RunAssistant(ctx context.Context, assistantID, message string) (string, error)
}

// ImagePipeline генерирует изображение по брифу и публикует его.
type ImagePipeline interface {
	GenerateAndUpload(ctx context.Context, brief, title string) (string, error)
}

// RowWriter записывает обновления полей строки в хранилище.
type RowWriter interface {
	UpdateRow(ctx context.Context, row *domain.Row, updates map[string]string) error
}

// RowTask — задание на обработку одной захваченной строки.
type RowTask struct {
	Row *domain.Row

	// WriterAssistantID, ModeratorAssistantID — пара ассистентов вкладки.
	WriterAssistantID    string
	ModeratorAssistantID string

	// ImageEnabled — генерировать ли изображение для этой вкладки.
	ImageEnabled bool
}

// Config — конфигурация Processor.
type Config struct {
	// Assistants — клиент ассистентов (обязательно).
	Assistants AssistantRunner

	// Rows — репозиторий для записи обновлений (обязательно).
	Rows RowWriter

	// Images — пайплайн изображений. Может быть nil, если генерация
	// изображений выключена для всех вкладок.
	Images ImagePipeline

	// BriefAssistantID — глобальный ассистент арт-брифов.
	BriefAssistantID string

	// MaxRevisions — потолок правок. 0 означает, что первый вердикт
	// модератора финален: второго круга не будет.
	MaxRevisions int

	// Logger
	Logger *slog.Logger
}

// Processor — обработчик захваченных строк.
type Processor struct {
	assistants       AssistantRunner
	rows             RowWriter
	images           ImagePipeline
	briefAssistantID string
	maxRevisions     int
	logger           *slog.Logger
}

// New создаёт Processor.
func New(cfg Config) *Processor {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Processor{
		assistants:       cfg.Assistants,
		rows:             cfg.Rows,
		images:           cfg.Images,
		briefAssistantID: cfg.BriefAssistantID,
		maxRevisions:     cfg.MaxRevisions,
		logger:           logger,
	}
}

// Process прогоняет строку через цикл правок и стадию изображения.
//
// Промежуточное состояние (счётчик итераций, заметка модератора)
// записывается в хранилище по ходу цикла и не откатывается при сбое
// на поздних стадиях. Контент, ссылка на изображение, статус, счётчик
// и заметка фиксируются одной финальной записью.
func (p *Processor) Process(ctx context.Context, task RowTask) error {
	row := task.Row
	title := row.Title()

	if strings.TrimSpace(title) == "" {
		return stageErr(StageValidation, "", ErrEmptyTitle)
	}
	if task.ImageEnabled && (p.briefAssistantID == "" || p.images == nil) {
		return stageErr(StageValidation, "", ErrMissingImageDependency)
	}

	logger := p.logger.With("tab", row.Tab, "row", row.Index)

	iteration := row.Iteration()
	if err := p.persistIteration(ctx, row, iteration); err != nil {
		return err
	}

	logger.Info("requesting draft", "assistant_id", task.WriterAssistantID)
	telemetry.AssistantCalls.WithLabelValues(roleWriter).Inc()
	draft, err := p.assistants.RunAssistant(ctx, task.WriterAssistantID, title)
	if err != nil {
		return stageErr(StageWriter, "initial draft", err)
	}

	approved := false
	note := ""
	for {
		telemetry.AssistantCalls.WithLabelValues(roleModerator).Inc()
		note, err = p.assistants.RunAssistant(ctx, task.ModeratorAssistantID, draft)
		if err != nil {
			return stageErr(StageModerator, "", err)
		}

		// Вердикт сохраняется дословно, без нормализации
		if err := p.rows.UpdateRow(ctx, row, map[string]string{domain.ColumnModeratorNote: note}); err != nil {
			return stageErr(StagePersist, "persist moderator note", err)
		}

		if assistants.IsApproved(note) {
			approved = true
			logger.Info("draft approved", "iteration", iteration)
			break
		}

		iteration++
		if err := p.persistIteration(ctx, row, iteration); err != nil {
			return err
		}

		if iteration >= p.maxRevisions {
			// Потолок правок — штатное завершение, не ошибка
			logger.Info("revision ceiling reached", "iteration", iteration)
			break
		}

		logger.Info("draft rejected, requesting revision", "iteration", iteration)
		telemetry.AssistantCalls.WithLabelValues(roleWriter).Inc()
		draft, err = p.assistants.RunAssistant(ctx, task.WriterAssistantID,
			assistants.BuildRevisionPrompt(draft, note))
		if err != nil {
			return stageErr(StageWriter, "revision", err)
		}
	}

	imageURL := ""
	if task.ImageEnabled {
		logger.Info("requesting image brief", "assistant_id", p.briefAssistantID)
		telemetry.AssistantCalls.WithLabelValues(roleBrief).Inc()
		brief, err := p.assistants.RunAssistant(ctx, p.briefAssistantID, draft)
		if err != nil {
			return stageErr(StageBrief, "", err)
		}

		imageURL, err = p.images.GenerateAndUpload(ctx, brief, title)
		if err != nil {
			return stageErr(StageImage, "", err)
		}
	}

	status := domain.RowStatusWritten
	if !approved {
		status = domain.RowStatusWrittenNotModerated
	}

	err = p.rows.UpdateRow(ctx, row, map[string]string{
		domain.ColumnContent:       draft,
		domain.ColumnImageURL:      imageURL,
		domain.ColumnStatus:        string(status),
		domain.ColumnIteration:     strconv.Itoa(iteration),
		domain.ColumnModeratorNote: note,
	})
	if err != nil {
		return stageErr(StagePersist, "persist final state", err)
	}

	logger.Info("row processed", "status", string(status), "iteration", iteration)
	return nil
}

func (p *Processor) persistIteration(ctx context.Context, row *domain.Row, iteration int) error {
	err := p.rows.UpdateRow(ctx, row, map[string]string{
		domain.ColumnIteration: strconv.Itoa(iteration),
	})
	if err != nil {
		return stageErr(StagePersist, "persist iteration counter", err)
	}
	return nil
}
