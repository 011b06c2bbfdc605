package exchange

import (
	"errors"
	"fmt"
)

// Ошибки адаптеров бирж.
var (
	// ErrUnsupportedExchange — биржа не поддерживается.
	ErrUnsupportedExchange = errors.New("unsupported exchange")

	// ErrExchangeCall — биржа вернула ошибку или недоступна.
	ErrExchangeCall = errors.New("exchange call failed")

	// ErrInvalidOrder — параметры ордера невалидны.
	ErrInvalidOrder = errors.New("invalid order params")

	// ErrMissingCredentials — не заданы ключи для подписанного запроса.
	ErrMissingCredentials = errors.New("missing exchange credentials")
)

// UnsupportedExchangeError — запрошен тип биржи без реализации.
type UnsupportedExchangeError struct {
	ExchangeType string
}

// Error реализует интерфейс error.
func (e *UnsupportedExchangeError) Error() string {
	return fmt.Sprintf("exchange %s is not supported yet", e.ExchangeType)
}

// Unwrap возвращает ErrUnsupportedExchange.
func (e *UnsupportedExchangeError) Unwrap() error {
	return ErrUnsupportedExchange
}

// ExchangeCallError — ошибка вызова биржи.
type ExchangeCallError struct {
	Venue      string // биржа: "binance", "okx"
	Operation  string // операция: "ticker", "balance", "order"
	StatusCode int    // HTTP статус, 0 для транспортных ошибок
	Message    string // сообщение биржи
	Err        error  // транспортная ошибка, если была
}

// Error реализует интерфейс error.
func (e *ExchangeCallError) Error() string {
	msg := e.Message
	if msg == "" && e.Err != nil {
		msg = e.Err.Error()
	}
	if e.StatusCode != 0 {
		return fmt.Sprintf("%s %s: status %d: %s", e.Venue, e.Operation, e.StatusCode, msg)
	}
	return fmt.Sprintf("%s %s: %s", e.Venue, e.Operation, msg)
}

// Unwrap возвращает транспортную ошибку (например, context.DeadlineExceeded).
func (e *ExchangeCallError) Unwrap() error {
	return e.Err
}

// Is сопоставляет ошибку с ErrExchangeCall.
func (e *ExchangeCallError) Is(target error) bool {
	return target == ErrExchangeCall
}
