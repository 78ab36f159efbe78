package repo

import "errors"

// Ошибки репозитория строк.
var (
	// ErrNoClaimableRow — на вкладке нет строк, доступных для захвата.
	ErrNoClaimableRow = errors.New("no claimable row")

	// ErrUnknownColumn — у поля нет соответствующего столбца на вкладке.
	ErrUnknownColumn = errors.New("unknown column")

	// ErrMissingColumns — в заголовке вкладки нет обязательных столбцов.
	ErrMissingColumns = errors.New("missing required columns")
)
