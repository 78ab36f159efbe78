// Package pgstore реализует store.Backend поверх PostgreSQL.
//
// Таблица sheet_cells эмулирует ячеечную сетку spreadsheet'а:
// (вкладка, строка, столбец) → значение. Бэкенд используется для
// локальной разработки и sandbox-запусков, когда настоящая таблица
// Google Sheets недоступна или нежелательна. Контракт тот же:
// строка 1 — заголовок, данные со строки 2, вся семантика пайплайна
// живёт в значениях ячеек.
package pgstore

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/nkoval/scriptum/internal/store"
)

const schema = `
CREATE TABLE IF NOT EXISTS sheet_cells (
	tab     text   NOT NULL,
	row_num bigint NOT NULL,
	col_num bigint NOT NULL,
	value   text   NOT NULL DEFAULT '',
	PRIMARY KEY (tab, row_num, col_num)
)`

// Backend — PostgreSQL реализация store.Backend.
type Backend struct {
	pool *pgxpool.Pool
}

// NewPool создаёт пул соединений с PostgreSQL и проверяет его ping'ом.
func NewPool(ctx context.Context, dsn string) (*pgxpool.Pool, error) {
	cfg, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return nil, fmt.Errorf("parse dsn: %w", err)
	}
	cfg.MaxConns = 5
	cfg.HealthCheckPeriod = 30 * time.Second

	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("new pool: %w", err)
	}

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := pool.Ping(pingCtx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping db: %w", err)
	}
	return pool, nil
}

// New создаёт Backend поверх готового пула.
func New(pool *pgxpool.Pool) *Backend {
	return &Backend{pool: pool}
}

// Bootstrap создаёт таблицу sheet_cells, если её ещё нет.
func (b *Backend) Bootstrap(ctx context.Context) error {
	if _, err := b.pool.Exec(ctx, schema); err != nil {
		return fmt.Errorf("create sheet_cells: %w", err)
	}
	return nil
}

// ReadHeader читает строку заголовка вкладки (row_num = 1).
func (b *Backend) ReadHeader(ctx context.Context, tab string) ([]string, error) {
	query := `
		SELECT col_num, value
		FROM sheet_cells
		WHERE tab = $1 AND row_num = 1
		ORDER BY col_num
	`
	rows, err := b.pool.Query(ctx, query, tab)
	if err != nil {
		return nil, store.Transient(fmt.Errorf("read header of %s: %w", tab, err))
	}
	defer rows.Close()

	var header []string
	for rows.Next() {
		var col int64
		var value string
		if err := rows.Scan(&col, &value); err != nil {
			return nil, fmt.Errorf("scan header cell: %w", err)
		}
		header = padTo(header, int(col))
		header[col-1] = value
	}
	if err := rows.Err(); err != nil {
		return nil, store.Transient(fmt.Errorf("read header of %s: %w", tab, err))
	}
	return header, nil
}

// ListRows читает все строки данных вкладки (row_num >= 2) по порядку.
func (b *Backend) ListRows(ctx context.Context, tab string) ([][]string, error) {
	query := `
		SELECT row_num, col_num, value
		FROM sheet_cells
		WHERE tab = $1 AND row_num >= 2
		ORDER BY row_num, col_num
	`
	rows, err := b.pool.Query(ctx, query, tab)
	if err != nil {
		return nil, store.Transient(fmt.Errorf("list rows of %s: %w", tab, err))
	}
	defer rows.Close()

	cells := map[int64]map[int64]string{}
	var maxRow int64
	for rows.Next() {
		var rowNum, colNum int64
		var value string
		if err := rows.Scan(&rowNum, &colNum, &value); err != nil {
			return nil, fmt.Errorf("scan cell: %w", err)
		}
		if cells[rowNum] == nil {
			cells[rowNum] = map[int64]string{}
		}
		cells[rowNum][colNum] = value
		if rowNum > maxRow {
			maxRow = rowNum
		}
	}
	if err := rows.Err(); err != nil {
		return nil, store.Transient(fmt.Errorf("list rows of %s: %w", tab, err))
	}

	// Собираем плотный список строк 2..maxRow; дыры — пустые строки,
	// как в настоящем spreadsheet
	var result [][]string
	for rowNum := int64(2); rowNum <= maxRow; rowNum++ {
		var row []string
		for colNum, value := range cells[rowNum] {
			row = padTo(row, int(colNum))
			row[colNum-1] = value
		}
		result = append(result, row)
	}
	return result, nil
}

// WriteCell записывает значение ячейки (upsert).
func (b *Backend) WriteCell(ctx context.Context, tab string, row, col int, value string) error {
	query := `
		INSERT INTO sheet_cells (tab, row_num, col_num, value)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (tab, row_num, col_num) DO UPDATE SET value = EXCLUDED.value
	`
	if _, err := b.pool.Exec(ctx, query, tab, row, col, value); err != nil {
		return store.Transient(fmt.Errorf("write cell %s[%d,%d]: %w", tab, row, col, err))
	}
	return nil
}

// padTo расширяет срез до n элементов пустыми строками.
func padTo(s []string, n int) []string {
	for len(s) < n {
		s = append(s, "")
	}
	return s
}

var _ store.Backend = (*Backend)(nil)
