package repo

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/nkoval/scriptum/internal/domain"
	"github.com/nkoval/scriptum/internal/lease"
	"github.com/nkoval/scriptum/internal/retry"
	"github.com/nkoval/scriptum/internal/store"
)

// tabContext — кэш сведений о вкладке: заголовок и карта столбцов.
//
// Строится лениво при первом обращении к вкладке и переиспользуется.
// Инвалидация не поддерживается: смена схемы таблицы требует
// перезапуска процесса.
type tabContext struct {
	headers   []string
	columnMap map[string]int // имя столбца → 1-based индекс
}

// RowRepo — репозиторий строк поверх табличного backing store.
//
// Инкапсулирует протокол lease-блокировки: строка доступна для захвата,
// когда Status == Prepared и блокировка отсутствует либо истекла.
// Захват записывает новую метку аренды в ячейку Lock до возврата строки
// вызывающему. Все обращения к хранилищу проходят через политику
// повторов; повторяются только временные ошибки.
type RowRepo struct {
	backend store.Backend
	policy  retry.Policy
	clock   lease.Clock
	logger  *slog.Logger

	mu       sync.Mutex
	contexts map[string]*tabContext
}

// Config — конфигурация RowRepo.
type Config struct {
	// Backend — табличное хранилище (обязательно).
	Backend store.Backend

	// Policy — политика повторов для обращений к хранилищу.
	// Нулевая политика получает имя "store" и предикат store.IsTransient.
	Policy retry.Policy

	// Clock — источник времени (default: системные часы UTC).
	Clock lease.Clock

	// Logger
	Logger *slog.Logger
}

// New создаёт RowRepo.
func New(cfg Config) *RowRepo {
	policy := cfg.Policy
	if policy.Name == "" {
		policy.Name = "store"
	}
	if policy.Retryable == nil {
		policy.Retryable = store.IsTransient
	}

	clock := cfg.Clock
	if clock == nil {
		clock = lease.SystemClock{}
	}

	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	return &RowRepo{
		backend:  cfg.Backend,
		policy:   policy,
		clock:    clock,
		logger:   logger,
		contexts: make(map[string]*tabContext),
	}
}

// getContext возвращает кэш вкладки, при первом обращении читая
// заголовок и проверяя наличие обязательных столбцов.
func (r *RowRepo) getContext(ctx context.Context, tab string) (*tabContext, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if tc, ok := r.contexts[tab]; ok {
		return tc, nil
	}

	var headers []string
	err := r.policy.Do(ctx, func() error {
		var err error
		headers, err = r.backend.ReadHeader(ctx, tab)
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("read header of tab %q: %w", tab, err)
	}

	columnMap := make(map[string]int, len(headers))
	for i, name := range headers {
		if name == "" {
			continue
		}
		if _, ok := columnMap[name]; !ok {
			columnMap[name] = i + 1
		}
	}

	var missing []string
	for _, name := range domain.RequiredColumns() {
		if _, ok := columnMap[name]; !ok {
			missing = append(missing, name)
		}
	}
	if len(missing) > 0 {
		return nil, fmt.Errorf("%w in tab %q: %s",
			ErrMissingColumns, tab, strings.Join(missing, ", "))
	}

	tc := &tabContext{headers: headers, columnMap: columnMap}
	r.contexts[tab] = tc
	return tc, nil
}

// AcquireClaimableRow находит первую доступную для захвата строку
// вкладки и блокирует её на ttl.
//
// Строки сканируются сверху вниз в естественном порядке хранилища;
// побеждает первое совпадение. Рандомизации нет: при конкуренции
// несколько воркеров гонятся за одной и той же строкой, но окно
// конфликта ограничено длиной аренды. Если доступных строк нет,
// возвращает ErrNoClaimableRow.
func (r *RowRepo) AcquireClaimableRow(ctx context.Context, tab string, ttl time.Duration) (*domain.Row, error) {
	tc, err := r.getContext(ctx, tab)
	if err != nil {
		return nil, err
	}

	var raw [][]string
	err = r.policy.Do(ctx, func() error {
		var err error
		raw, err = r.backend.ListRows(ctx, tab)
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("list rows of tab %q: %w", tab, err)
	}

	now := r.clock.Now()

	for offset, rawRow := range raw {
		index := offset + 2 // данные начинаются со строки 2

		values := make(map[string]string, len(tc.headers))
		for i, name := range tc.headers {
			if name == "" {
				continue
			}
			if i < len(rawRow) {
				values[name] = strings.TrimSpace(rawRow[i])
			} else {
				values[name] = ""
			}
		}

		if domain.RowStatus(values[domain.ColumnStatus]) != domain.RowStatusPrepared {
			continue
		}
		if !lease.IsExpired(values[domain.ColumnLock], now) {
			continue
		}

		row := &domain.Row{Tab: tab, Index: index, Values: values}

		newLock := lease.Value(now, ttl)
		if err := r.UpdateRow(ctx, row, map[string]string{domain.ColumnLock: newLock}); err != nil {
			return nil, fmt.Errorf("lock row %d of tab %q: %w", index, tab, err)
		}

		r.logger.Info("row locked",
			"tab", tab,
			"row", index,
			"locked_until", newLock,
		)
		return row, nil
	}

	return nil, ErrNoClaimableRow
}

// UpdateRow записывает каждое поле updates в соответствующую ячейку
// строки и зеркалирует значения в снимок row.Values.
//
// Поле без соответствующего столбца на вкладке — ErrUnknownColumn;
// в этом случае часть ячеек могла быть уже записана, но снимок
// обновляется только при полном успехе.
func (r *RowRepo) UpdateRow(ctx context.Context, row *domain.Row, updates map[string]string) error {
	if len(updates) == 0 {
		return nil
	}

	tc, err := r.getContext(ctx, row.Tab)
	if err != nil {
		return err
	}

	for column, value := range updates {
		col, ok := tc.columnMap[column]
		if !ok {
			return fmt.Errorf("%w: %q in tab %q", ErrUnknownColumn, column, row.Tab)
		}

		err := r.policy.Do(ctx, func() error {
			return r.backend.WriteCell(ctx, row.Tab, row.Index, col, value)
		})
		if err != nil {
			return fmt.Errorf("write %q of row %d in tab %q: %w", column, row.Index, row.Tab, err)
		}
	}

	for column, value := range updates {
		row.Values[column] = value
	}
	return nil
}

// ReleaseLock снимает блокировку строки (записывает пустой Lock).
// Идемпотентна: повторный вызов для уже свободной строки — no-op успех.
func (r *RowRepo) ReleaseLock(ctx context.Context, row *domain.Row) error {
	return r.UpdateRow(ctx, row, map[string]string{domain.ColumnLock: ""})
}
