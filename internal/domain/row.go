package domain

import (
	"strconv"
	"strings"
)

// Названия обязательных столбцов вкладки.
//
// Порядок столбцов в таблице произвольный, но все семь должны
// присутствовать в заголовке (строка 1) каждой обрабатываемой вкладки.
const (
	ColumnTitle         = "Title"
	ColumnContent       = "Content"
	ColumnImageURL      = "Image URL"
	ColumnStatus        = "Status"
	ColumnIteration     = "Iteration"
	ColumnModeratorNote = "Moderator Note"
	ColumnLock          = "Lock"
)

// RequiredColumns возвращает список обязательных столбцов.
func RequiredColumns() []string {
	return []string{
		ColumnTitle,
		ColumnContent,
		ColumnImageURL,
		ColumnStatus,
		ColumnIteration,
		ColumnModeratorNote,
		ColumnLock,
	}
}

// RowStatus — статус строки контент-пайплайна.
//
// Жизненный цикл:
//
//	Prepared → Written                 (модератор одобрил черновик)
//	         ↘ Written (not moderated) (достигнут лимит итераций)
//	         ↘ Error                   (обработка завершилась ошибкой)
type RowStatus string

const (
	// RowStatusPrepared — строка готова к обработке.
	RowStatusPrepared RowStatus = "Prepared"

	// RowStatusWritten — текст написан и одобрен модератором.
	RowStatusWritten RowStatus = "Written"

	// RowStatusWrittenNotModerated — текст написан, но лимит правок
	// исчерпан без одобрения. Это штатное завершение, не ошибка.
	RowStatusWrittenNotModerated RowStatus = "Written (not moderated)"

	// RowStatusError — обработка строки завершилась ошибкой.
	// Текст ошибки записывается в Moderator Note.
	RowStatusError RowStatus = "Error"
)

// IsTerminal возвращает true, если статус финальный для строки.
func (s RowStatus) IsTerminal() bool {
	switch s {
	case RowStatusWritten, RowStatusWrittenNotModerated, RowStatusError:
		return true
	default:
		return false
	}
}

// Row — строка таблицы контент-пайплайна.
//
// Row идентифицируется вкладкой и 1-based номером строки в ней.
// Values хранит снимок значений ячеек по именам столбцов; репозиторий
// зеркалирует в него каждое успешное обновление, поэтому снимок всегда
// отражает последнюю запись независимо от задержек backing store.
type Row struct {
	// Tab — название вкладки, которой принадлежит строка.
	Tab string

	// Index — номер строки в таблице (1-based, данные начинаются со 2).
	Index int

	// Values — снимок значений ячеек: имя столбца → значение.
	Values map[string]string
}

// Title возвращает заголовок строки. Неизменяем после создания строки.
func (r *Row) Title() string {
	return r.Values[ColumnTitle]
}

// Status возвращает текущий статус строки.
func (r *Row) Status() RowStatus {
	return RowStatus(r.Values[ColumnStatus])
}

// Lock возвращает значение ячейки блокировки.
func (r *Row) Lock() string {
	return r.Values[ColumnLock]
}

// Iteration возвращает счётчик итераций модерации.
// Пустое или нечитаемое значение трактуется как 0.
func (r *Row) Iteration() int {
	return ParseIteration(r.Values[ColumnIteration])
}

// ParseIteration разбирает значение счётчика итераций.
// Любое значение, которое не парсится как неотрицательное целое,
// трактуется как 0 — счётчик заводится заново.
func ParseIteration(raw string) int {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return 0
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n < 0 {
		return 0
	}
	return n
}
