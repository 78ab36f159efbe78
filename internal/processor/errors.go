package processor

import (
	"errors"
	"fmt"
)

// Stage — этап обработки строки, на котором произошла ошибка.
type Stage string

const (
	// StageValidation — проверка предусловий строки.
	StageValidation Stage = "validation"

	// StageWriter — генерация черновика писателем.
	StageWriter Stage = "writer"

	// StageModerator — вердикт модератора.
	StageModerator Stage = "moderator"

	// StageBrief — генерация арт-брифа по финальному тексту.
	StageBrief Stage = "brief"

	// StageImage — генерация и загрузка изображения.
	StageImage Stage = "image"

	// StagePersist — запись промежуточного состояния в хранилище.
	StagePersist Stage = "persist"
)

// Ошибки предусловий.
var (
	// ErrEmptyTitle — у строки пустой заголовок, писателю нечего писать.
	ErrEmptyTitle = errors.New("row title is empty")

	// ErrMissingImageDependency — для вкладки включена генерация
	// изображений, но не задан бриф-ассистент или пайплайн изображений.
	ErrMissingImageDependency = errors.New("image generation enabled but brief assistant or image pipeline is missing")
)

// ProcessingError — ошибка обработки строки с меткой этапа.
//
// Все разнородные сбои (ассистенты, изображения, запись в хранилище)
// приводятся к этому типу, чтобы цикл прогона обрабатывал их единообразно,
// а этап оставался различимым для логов и метрик.
type ProcessingError struct {
	Stage Stage
	Msg   string
	Err   error
}

func (e *ProcessingError) Error() string {
	switch {
	case e.Msg != "" && e.Err != nil:
		return fmt.Sprintf("%s stage: %s: %v", e.Stage, e.Msg, e.Err)
	case e.Err != nil:
		return fmt.Sprintf("%s stage: %v", e.Stage, e.Err)
	default:
		return fmt.Sprintf("%s stage: %s", e.Stage, e.Msg)
	}
}

func (e *ProcessingError) Unwrap() error {
	return e.Err
}

// stageErr — короткий конструктор ProcessingError.
func stageErr(stage Stage, msg string, err error) *ProcessingError {
	return &ProcessingError{Stage: stage, Msg: msg, Err: err}
}
