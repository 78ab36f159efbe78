// Package cli реализует операторскую утилиту командной строки.
//
// В отличие от daemon-планировщика, утилита работает разово и напрямую
// с табличным хранилищем:
//   - run — один прогон цикла обработки (по всем или выбранным вкладкам)
//   - check — проверка схемы вкладок (обязательные столбцы)
//   - status — сводка по статусам строк вкладки
//   - release — ручное снятие блокировки строки; штатный выход для
//     строки, чья блокировка не парсится и потому никогда не истекает
//
// Данные выводятся в stdout (таблица или JSON с флагом --json),
// сообщения — в stderr, чтобы работал pipe в jq.
package cli
