// Package gsheets реализует store.Backend поверх Google Sheets API v4.
//
// Клиент авторизуется файлом сервисного аккаунта и работает только
// со значениями ячеек (spreadsheets.values): чтение заголовка, чтение
// диапазона данных и запись одиночной ячейки в режиме RAW.
package gsheets

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"sync"

	"google.golang.org/api/googleapi"
	"google.golang.org/api/option"
	"google.golang.org/api/sheets/v4"

	"github.com/nkoval/scriptum/internal/store"
)

// defaultDataColumns — запасная правая граница диапазона данных,
// когда заголовок вкладки ещё не прочитан или пуст.
const defaultDataColumns = 26

// Backend — Google Sheets реализация store.Backend.
//
// Последний столбец каждой вкладки вычисляется по длине её заголовка
// и кэшируется: диапазон данных обязан покрывать все столбцы
// заголовка, иначе столбцы правее границы читались бы как пустые.
type Backend struct {
	svc           *sheets.Service
	spreadsheetID string

	mu      sync.Mutex
	lastCol map[string]int
}

// New создаёт Backend для таблицы spreadsheetID, авторизуясь файлом
// сервисного аккаунта credentialsFile.
func New(ctx context.Context, spreadsheetID, credentialsFile string) (*Backend, error) {
	svc, err := sheets.NewService(ctx,
		option.WithCredentialsFile(credentialsFile),
		option.WithScopes(sheets.SpreadsheetsScope),
	)
	if err != nil {
		return nil, fmt.Errorf("create sheets service: %w", err)
	}

	return &Backend{
		svc:           svc,
		spreadsheetID: spreadsheetID,
		lastCol:       make(map[string]int),
	}, nil
}

// ReadHeader читает строку заголовка вкладки (строка 1).
func (b *Backend) ReadHeader(ctx context.Context, tab string) ([]string, error) {
	rng := fmt.Sprintf("%s!1:1", quoteTab(tab))

	resp, err := b.svc.Spreadsheets.Values.Get(b.spreadsheetID, rng).Context(ctx).Do()
	if err != nil {
		return nil, classify(fmt.Errorf("read header of %s: %w", tab, err))
	}

	if len(resp.Values) == 0 {
		return nil, nil
	}

	header := make([]string, 0, len(resp.Values[0]))
	for _, cell := range resp.Values[0] {
		header = append(header, strings.TrimSpace(fmt.Sprint(cell)))
	}

	if len(header) > 0 {
		b.mu.Lock()
		b.lastCol[tab] = len(header)
		b.mu.Unlock()
	}
	return header, nil
}

// lastColumn возвращает 1-based индекс последнего столбца вкладки,
// при необходимости читая заголовок.
func (b *Backend) lastColumn(ctx context.Context, tab string) (int, error) {
	b.mu.Lock()
	col := b.lastCol[tab]
	b.mu.Unlock()
	if col > 0 {
		return col, nil
	}

	if _, err := b.ReadHeader(ctx, tab); err != nil {
		return 0, err
	}

	b.mu.Lock()
	col = b.lastCol[tab]
	b.mu.Unlock()
	if col == 0 {
		col = defaultDataColumns
	}
	return col, nil
}

// ListRows читает все строки данных вкладки, начиная со строки 2.
// Диапазон ограничен справа последним столбцом заголовка.
func (b *Backend) ListRows(ctx context.Context, tab string) ([][]string, error) {
	lastCol, err := b.lastColumn(ctx, tab)
	if err != nil {
		return nil, err
	}
	rng := fmt.Sprintf("%s!A2:%s", quoteTab(tab), ColumnToA1(lastCol))

	resp, err := b.svc.Spreadsheets.Values.Get(b.spreadsheetID, rng).Context(ctx).Do()
	if err != nil {
		return nil, classify(fmt.Errorf("list rows of %s: %w", tab, err))
	}

	rows := make([][]string, 0, len(resp.Values))
	for _, raw := range resp.Values {
		row := make([]string, 0, len(raw))
		for _, cell := range raw {
			row = append(row, fmt.Sprint(cell))
		}
		rows = append(rows, row)
	}
	return rows, nil
}

// WriteCell записывает значение в одну ячейку в режиме RAW.
func (b *Backend) WriteCell(ctx context.Context, tab string, row, col int, value string) error {
	rng := fmt.Sprintf("%s!%s%d", quoteTab(tab), ColumnToA1(col), row)

	vr := &sheets.ValueRange{
		Values: [][]interface{}{{value}},
	}

	_, err := b.svc.Spreadsheets.Values.Update(b.spreadsheetID, rng, vr).
		ValueInputOption("RAW").
		Context(ctx).
		Do()
	if err != nil {
		return classify(fmt.Errorf("write cell %s: %w", rng, err))
	}
	return nil
}

// ColumnToA1 преобразует 1-based индекс столбца в буквенную A1-нотацию
// (1 → A, 26 → Z, 27 → AA).
func ColumnToA1(col int) string {
	var b []byte
	for col > 0 {
		col--
		b = append([]byte{byte('A' + col%26)}, b...)
		col /= 26
	}
	return string(b)
}

// quoteTab экранирует название вкладки для A1-нотации.
func quoteTab(tab string) string {
	return "'" + strings.ReplaceAll(tab, "'", "''") + "'"
}

// classify помечает временные ошибки Google API (rate limit, 5xx)
// как store.ErrTransient для политики повторов.
func classify(err error) error {
	var gerr *googleapi.Error
	if errors.As(err, &gerr) {
		if gerr.Code == http.StatusTooManyRequests || gerr.Code >= 500 {
			return store.Transient(err)
		}
		return err
	}
	// Ошибка без HTTP-кода — сетевой сбой, считаем временной
	return store.Transient(err)
}

var _ store.Backend = (*Backend)(nil)
