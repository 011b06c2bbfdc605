package runner

import "errors"

// Ошибки runner.
var (
	// ErrFlowNotFound — flow из сообщения не найден в БД.
	ErrFlowNotFound = errors.New("flow not found")

	// ErrFlowInactive — flow выключен и не запускается автоматически.
	ErrFlowInactive = errors.New("flow is not active")

	// ErrSaveFailed — flow выполнен, но отчёт не сохранён.
	ErrSaveFailed = errors.New("save execution")
)
