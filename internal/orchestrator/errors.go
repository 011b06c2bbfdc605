package orchestrator

import "errors"

// ErrCancelled — выполнение отменено до завершения.
// Сообщение совпадает с полем error отчёта.
var ErrCancelled = errors.New("cancelled")
