// Package retry реализует переиспользуемую политику повторов для
// сетевых операций: ограниченное число попыток, экспоненциальная
// задержка с джиттером и предикат «стоит ли повторять».
//
// Одна и та же политика разделяется всеми сетевыми коллабораторами
// (backing store, ассистенты, генерация изображений) вместо
// дублирования логики повторов в каждом клиенте.
package retry

import (
	"context"
	"log/slog"
	"time"

	"github.com/cenkalti/backoff/v4"
)

// Значения по умолчанию.
const (
	DefaultAttempts  = 3
	DefaultBaseDelay = 1 * time.Second
	DefaultMaxDelay  = 10 * time.Second
)

// Policy — настроенная политика повторов.
//
// Повторяются только ошибки, для которых Retryable возвращает true;
// остальные пробрасываются сразу. Нулевые поля заменяются значениями
// по умолчанию в Do.
type Policy struct {
	// Name — имя политики для логов (например, "sheets", "assistants").
	Name string

	// Attempts — общее число попыток (первая + повторы).
	Attempts int

	// BaseDelay — базовая задержка перед первым повтором.
	BaseDelay time.Duration

	// MaxDelay — верхняя граница задержки между повторами.
	MaxDelay time.Duration

	// Retryable — предикат повторяемости ошибки.
	// nil означает «повторять любую ошибку».
	Retryable func(error) bool

	// Logger — логгер предупреждений о повторах.
	Logger *slog.Logger
}

// Do выполняет fn согласно политике.
//
// Возвращает nil при первом успехе, последнюю ошибку после исчерпания
// попыток либо первую неповторяемую ошибку. Отмена контекста прерывает
// ожидание между попытками.
func (p Policy) Do(ctx context.Context, fn func() error) error {
	attempts := p.Attempts
	if attempts <= 0 {
		attempts = DefaultAttempts
	}
	baseDelay := p.BaseDelay
	if baseDelay <= 0 {
		baseDelay = DefaultBaseDelay
	}
	maxDelay := p.MaxDelay
	if maxDelay <= 0 {
		maxDelay = DefaultMaxDelay
	}
	logger := p.Logger
	if logger == nil {
		logger = slog.Default()
	}

	eb := backoff.NewExponentialBackOff()
	eb.InitialInterval = baseDelay
	eb.MaxInterval = maxDelay
	eb.MaxElapsedTime = 0 // ограничиваемся числом попыток, не временем

	op := func() error {
		err := fn()
		if err == nil {
			return nil
		}
		if p.Retryable != nil && !p.Retryable(err) {
			return backoff.Permanent(err)
		}
		return err
	}

	attempt := 0
	notify := func(err error, delay time.Duration) {
		attempt++
		logger.Warn("retrying after error",
			"policy", p.Name,
			"attempt", attempt,
			"max_attempts", attempts,
			"delay", delay,
			"error", err,
		)
	}

	b := backoff.WithContext(backoff.WithMaxRetries(eb, uint64(attempts-1)), ctx)
	return backoff.RetryNotify(op, b, notify)
}
