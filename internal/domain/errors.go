package domain

import (
	"errors"
	"fmt"
)

var (
	// ErrValidation возвращается при некорректных входных данных до любых изменений.
	ErrValidation = errors.New("validation error")
	// ErrNotFound возвращается, когда связанная сущность отсутствует.
	ErrNotFound = errors.New("not found")
	// ErrPreconditionFailed возвращается при нарушении конечного автомата.
	ErrPreconditionFailed = errors.New("precondition failed")
	// ErrEmptyResult возвращается, когда пакетная операция не нашла ни одного кандидата.
	ErrEmptyResult = errors.New("empty result")
	// ErrExternalDependency возвращается при сбое внешнего сервиса. Повтор на стороне вызывающего.
	ErrExternalDependency = errors.New("external dependency error")
	// ErrConcurrencyConflict возвращается, когда проиграна гонка за блокировку или CAS.
	ErrConcurrencyConflict = errors.New("concurrency conflict")
)

var (
	// ErrEmptyShortlist — ни один продукт не прошёл порог шортлиста.
	ErrEmptyShortlist = fmt.Errorf("%w: no shortlist candidates", ErrEmptyResult)
	// ErrNotReady — запуск не прошёл все проверки готовности.
	ErrNotReady = fmt.Errorf("%w: launch is not ready", ErrPreconditionFailed)
	// ErrAlreadyArmed — готовность уже взведена другим вызовом.
	ErrAlreadyArmed = fmt.Errorf("%w: readiness already armed", ErrConcurrencyConflict)
	// ErrAssetGenerationFailed — генератор контента вернул ошибку или невалидный ответ.
	ErrAssetGenerationFailed = fmt.Errorf("%w: asset generation failed", ErrExternalDependency)
)

// Validationf строит ошибку валидации с пояснением.
func Validationf(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrValidation, fmt.Sprintf(format, args...))
}

// Preconditionf строит ошибку нарушения состояния с пояснением.
func Preconditionf(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrPreconditionFailed, fmt.Sprintf(format, args...))
}

// NotFoundf строит ошибку отсутствующей сущности.
func NotFoundf(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrNotFound, fmt.Sprintf(format, args...))
}
