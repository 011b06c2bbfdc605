package engine

import "errors"

// ErrInvalidGraph — граф workflow не прошёл валидацию.
// Любая *InvalidGraphError сопоставляется с ним через errors.Is.
var ErrInvalidGraph = errors.New("invalid graph")

// Причины невалидности графа.
var (
	// ErrNoNodes — граф не содержит узлов.
	ErrNoNodes = errors.New("graph has no nodes")

	// ErrEmptyNodeID — узел без ID.
	ErrEmptyNodeID = errors.New("node has empty ID")

	// ErrDuplicateNodeID — несколько узлов с одинаковым ID.
	ErrDuplicateNodeID = errors.New("duplicate node ID")

	// ErrDanglingEdge — ребро ссылается на несуществующий узел.
	ErrDanglingEdge = errors.New("edge references unknown node")

	// ErrSelfLoop — ребро из узла в самого себя.
	ErrSelfLoop = errors.New("edge connects node to itself")

	// ErrNoTrigger — нет trigger-узла без входящих рёбер.
	ErrNoTrigger = errors.New("graph has no trigger node")

	// ErrTriggerHasInput — в trigger-узел входит ребро.
	ErrTriggerHasInput = errors.New("trigger node has incoming edge")

	// ErrCyclicGraph — обнаружен цикл.
	ErrCyclicGraph = errors.New("cycle detected")
)

// Ошибки вычисления значений.
var (
	// ErrTemplateRender — ошибка рендеринга шаблона.
	ErrTemplateRender = errors.New("template render failed")

	// ErrTemplateParse — ошибка парсинга шаблона.
	ErrTemplateParse = errors.New("template parse failed")

	// ErrExpression — ошибка компиляции или вычисления выражения.
	ErrExpression = errors.New("expression failed")

	// ErrUnknownOperator — неизвестный оператор сравнения.
	ErrUnknownOperator = errors.New("unknown comparison operator")
)

// InvalidGraphError — ошибка валидации графа с контекстом.
type InvalidGraphError struct {
	NodeID  string // узел, где обнаружена ошибка
	EdgeID  string // ребро, где обнаружена ошибка
	Message string // описание
	Err     error  // причина (ErrCyclicGraph, ErrDanglingEdge, ...)
}

// Error реализует интерфейс error.
func (e *InvalidGraphError) Error() string {
	switch {
	case e.NodeID != "":
		return "invalid graph: node " + e.NodeID + ": " + e.Message
	case e.EdgeID != "":
		return "invalid graph: edge " + e.EdgeID + ": " + e.Message
	default:
		return "invalid graph: " + e.Message
	}
}

// Unwrap возвращает причину.
func (e *InvalidGraphError) Unwrap() error {
	return e.Err
}

// Is сопоставляет ошибку с ErrInvalidGraph.
func (e *InvalidGraphError) Is(target error) bool {
	return target == ErrInvalidGraph
}

func nodeError(nodeID, message string, err error) *InvalidGraphError {
	return &InvalidGraphError{NodeID: nodeID, Message: message, Err: err}
}

func edgeError(edgeID, message string, err error) *InvalidGraphError {
	return &InvalidGraphError{EdgeID: edgeID, Message: message, Err: err}
}
