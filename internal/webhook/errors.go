package webhook

import (
	"errors"
	"fmt"
)

// Ошибки доставки.
var (
	// ErrDeliveryFailed — получатель ответил не 2xx или недоступен.
	ErrDeliveryFailed = errors.New("webhook delivery failed")

	// ErrInvalidURL — адрес доставки пустой или невалидный.
	ErrInvalidURL = errors.New("invalid webhook url")
)

// DeliveryError — ошибка доставки с контекстом.
type DeliveryError struct {
	URL        string // адрес доставки
	StatusCode int    // HTTP статус, 0 для транспортных ошибок
	Err        error  // транспортная ошибка
}

// Error реализует интерфейс error.
func (e *DeliveryError) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("webhook %s: unexpected status %d", e.URL, e.StatusCode)
	}
	return fmt.Sprintf("webhook %s: %v", e.URL, e.Err)
}

// Unwrap возвращает транспортную ошибку.
func (e *DeliveryError) Unwrap() error {
	return e.Err
}

// Is сопоставляет ошибку с ErrDeliveryFailed.
func (e *DeliveryError) Is(target error) bool {
	return target == ErrDeliveryFailed
}
