// Package assistants реализует клиента OpenAI Assistants API.
//
// # Обзор
//
// Для ядра пайплайна ассистент — синхронная функция «текст на входе,
// текст на выходе»: RunAssistant(assistantID, message) → reply.
// Внутри скрыт асинхронный протокол Assistants API: создание треда,
// публикация сообщения, запуск run и опрос его статуса до завершения
// с необязательным общим дедлайном.
//
// Все ошибки генерации схлопываются в один непрозрачный вид
// (ErrGeneration) после исчерпания собственных повторов клиента;
// вызывающий различает только «получили ответ» и «не получили».
//
// # Протокол модерации
//
// prompt.go содержит чистые функции протокола писатель/модератор:
// канонические токены одобрения, нормализацию ответа модератора и
// шаблон запроса на доработку, в который дословно вшиваются прошлый
// черновик и замечания.
package assistants
