package nodes

import (
	"errors"
	"fmt"
	"time"
)

// Ошибки вычисления узлов.
var (
	// ErrUnknownNodeType — тип узла не поддерживается.
	ErrUnknownNodeType = errors.New("unknown node type")

	// ErrMissingInput — обязательный вход не получил значения.
	ErrMissingInput = errors.New("missing node input")

	// ErrInvalidConfig — невалидные параметры узла.
	ErrInvalidConfig = errors.New("invalid node config")

	// ErrNodeTimeout — узел превысил таймаут.
	ErrNodeTimeout = errors.New("node execution timeout")

	// ErrExchangeNotFound — интеграция биржи не передана в выполнение.
	ErrExchangeNotFound = errors.New("exchange not found")

	// ErrExchangeInactive — интеграция биржи отключена.
	ErrExchangeInactive = errors.New("exchange is not active")
)

// UnknownNodeTypeError — узел неизвестного типа.
type UnknownNodeTypeError struct {
	NodeID string
	Type   string
}

// Error реализует интерфейс error.
func (e *UnknownNodeTypeError) Error() string {
	return fmt.Sprintf("node %s: unknown node type %q", e.NodeID, e.Type)
}

// Unwrap возвращает ErrUnknownNodeType.
func (e *UnknownNodeTypeError) Unwrap() error {
	return ErrUnknownNodeType
}

// MissingInputError — вход узла не определён (вышестоящий узел упал как optional).
type MissingInputError struct {
	NodeID string
	Input  string
}

// Error реализует интерфейс error.
func (e *MissingInputError) Error() string {
	return fmt.Sprintf("node %s: input %q did not produce a value", e.NodeID, e.Input)
}

// Unwrap возвращает ErrMissingInput.
func (e *MissingInputError) Unwrap() error {
	return ErrMissingInput
}

// TimeoutError — узел не уложился в таймаут.
type TimeoutError struct {
	NodeID  string
	Timeout time.Duration
	Err     error
}

// Error реализует интерфейс error.
func (e *TimeoutError) Error() string {
	return fmt.Sprintf("node %s: timed out after %s", e.NodeID, e.Timeout)
}

// Unwrap возвращает исходную ошибку.
func (e *TimeoutError) Unwrap() error {
	return e.Err
}

// Is сопоставляет ошибку с ErrNodeTimeout.
func (e *TimeoutError) Is(target error) bool {
	return target == ErrNodeTimeout
}

// configError строит ошибку параметров узла.
func configError(nodeID, format string, args ...any) error {
	return fmt.Errorf("%w: node %s: %s", ErrInvalidConfig, nodeID, fmt.Sprintf(format, args...))
}
