// Package telemetry — логирование и метрики воркера.
//
// logging.go настраивает structured logging через slog (уровень и
// формат берутся из LOG_LEVEL и LOG_FORMAT) и даёт помощники для
// привязки контекста прогона к записям лога.
//
// metrics.go объявляет Prometheus-метрики обработки строк: счётчики
// прогонов, захватов и обращений к ассистентам, длительность строки.
// Демон планировщика экспортирует их на /metrics; CLI метрики не
// публикует.
package telemetry
