package assistants

import (
	"fmt"
	"strings"
)

// approvalResponses — канонические ответы модератора, означающие
// одобрение черновика. Сравнение идёт после нормализации.
var approvalResponses = map[string]struct{}{
	"ok":     {},
	"ок":     {},
	"okay":   {},
	"хорошо": {},
}

// Normalize приводит ответ модератора к канонической форме:
// обрезает пробелы и переводит в нижний регистр.
func Normalize(reply string) string {
	return strings.ToLower(strings.TrimSpace(reply))
}

// IsApproved сообщает, является ли ответ модератора одобрением.
func IsApproved(reply string) bool {
	_, ok := approvalResponses[Normalize(reply)]
	return ok
}

// BuildRevisionPrompt формирует запрос писателю на доработку:
// прошлый черновик и замечания модератора вшиваются дословно,
// без экранирования.
func BuildRevisionPrompt(draft, feedback string) string {
	return fmt.Sprintf("Text:\n%s\n\nComment:\n%s", draft, feedback)
}
