// Package store определяет контракт backing store — табличного
// хранилища строк контент-пайплайна.
//
// Ядро системы (репозиторий, процессор, run loop) работает только
// с интерфейсом Backend; конкретные реализации живут в подпакетах:
//
//   - gsheets — Google Sheets (production)
//   - pgstore — ячеечная таблица в PostgreSQL (локальная разработка
//     и sandbox-запуски)
//
// Backend не управляет жизненным циклом аутентификации и соединений —
// это забота конструктора конкретной реализации.
package store

import (
	"context"
	"errors"
	"fmt"
)

// Backend — низкоуровневый доступ к табличному хранилищу.
//
// Нумерация строк и столбцов 1-based, как в таблицах: строка 1 —
// заголовок, данные начинаются со строки 2. Запись одной ячейки
// предполагается атомарной на стороне хранилища (см. модель
// конкурентности: гонка за строку разрешается через lease, а не CAS).
type Backend interface {
	// ReadHeader возвращает строку заголовка вкладки по порядку столбцов.
	ReadHeader(ctx context.Context, tab string) ([]string, error)

	// ListRows возвращает все строки данных вкладки (со строки 2)
	// в естественном порядке хранилища. Короткие строки допустимы:
	// отсутствующие ячейки трактуются как пустые.
	ListRows(ctx context.Context, tab string) ([][]string, error)

	// WriteCell записывает значение в ячейку (row, col оба 1-based).
	WriteCell(ctx context.Context, tab string, row, col int, value string) error
}

// ErrTransient помечает временные ошибки хранилища (сетевые сбои,
// rate limit, 5xx). Только такие ошибки повторяются политикой retry;
// остальные пробрасываются сразу.
var ErrTransient = errors.New("transient store error")

// Transient оборачивает err как временную ошибку хранилища.
func Transient(err error) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%w: %w", ErrTransient, err)
}

// IsTransient сообщает, является ли ошибка временной.
// Используется как предикат retry.Policy.
func IsTransient(err error) bool {
	return errors.Is(err, ErrTransient)
}
