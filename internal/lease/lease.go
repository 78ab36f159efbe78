// Package lease реализует протокол time-based блокировки строк.
//
// Блокировка — это не токен владения, а метка истечения: ячейка Lock
// хранит ISO-8601 UTC метку времени, до которой строка считается
// занятой. Пустая ячейка означает отсутствие блокировки. Снятие
// блокировки — запись пустой строки; восстановление после краха
// процесса происходит само собой по истечении аренды.
package lease

import (
	"time"
)

// Format — формат метки блокировки: ISO-8601 UTC с суффиксом Z.
const Format = "2006-01-02T15:04:05.999999Z"

// Clock отдаёт текущее время. Внедряется в репозиторий, чтобы тесты
// могли имитировать истечение аренды без реального ожидания.
type Clock interface {
	Now() time.Time
}

// SystemClock — часы на основе time.Now (UTC).
type SystemClock struct{}

// Now возвращает текущее время в UTC.
func (SystemClock) Now() time.Time {
	return time.Now().UTC()
}

// IsExpired проверяет, истекла ли блокировка со значением value
// на момент now.
//
// Пустое значение — блокировки нет, строка свободна.
// Нечитаемое значение трактуется как НЕ истёкшее: мы не крадём
// блокировку, формат которой не можем разобрать. Это сознательный
// консервативный выбор; залипшую строку с мусором в ячейке Lock
// снимает оператор вручную.
func IsExpired(value string, now time.Time) bool {
	if value == "" {
		return true
	}
	until, err := Parse(value)
	if err != nil {
		return false
	}
	return !until.After(now.UTC())
}

// Value формирует значение блокировки: now + ttl, формат ISO-8601 UTC.
func Value(now time.Time, ttl time.Duration) string {
	return now.UTC().Add(ttl).Format(Format)
}

// Parse разбирает значение блокировки в момент времени.
func Parse(value string) (time.Time, error) {
	return time.Parse(time.RFC3339, value)
}
