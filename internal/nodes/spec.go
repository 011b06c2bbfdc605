package nodes

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/Crypto-Goatz/jaxrun/internal/domain"
)

// Spec — разобранные параметры узла.
//
// Набор реализаций закрыт: Evaluator обрабатывает каждую
// в исчерпывающем type switch.
type Spec interface {
	Kind() domain.NodeKind
	sealed()
}

// TriggerSpec — точка входа. Выход — Payload.
type TriggerSpec struct {
	Payload map[string]any
	Message string
}

// ConditionSpec — булево условие.
//
// Задаётся либо выражением (Expression), либо тройкой Left/Operator/Right
// в формате редактора.
type ConditionSpec struct {
	Expression string
	Left       any
	Operator   string
	Right      any
}

// TransformSpec — чистое преобразование входов.
//
// Expression вычисляется как выражение; Mappings — как шаблоны
// (каждый ключ результата из своего шаблона).
type TransformSpec struct {
	Expression string
	Mappings   map[string]any
}

// ExchangeOperation — операция биржи.
type ExchangeOperation string

const (
	OperationTicker  ExchangeOperation = "ticker"
	OperationBalance ExchangeOperation = "balance"
	OperationOrder   ExchangeOperation = "order"
)

// ExchangeCallSpec — вызов биржи.
type ExchangeCallSpec struct {
	ExchangeID string

	// ExchangeType — биржа для публичных котировок без интеграции.
	ExchangeType string

	Operation ExchangeOperation
	Symbol    any
	Side      any
	OrderType any
	Amount    any
	Price     any
}

// WebhookSpec — исходящий webhook.
type WebhookSpec struct {
	URL     any
	Event   any
	Data    any
	Secret  string
	Headers map[string]string
}

// VariableWriteSpec — запись переменной выполнения.
type VariableWriteSpec struct {
	Name  string
	Value any
}

// DelaySpec — пауза.
type DelaySpec struct {
	Duration time.Duration
}

// NotificationSpec — сообщение в журнал выполнения.
type NotificationSpec struct {
	Message any
	Channel string
}

func (TriggerSpec) Kind() domain.NodeKind       { return domain.NodeKindTrigger }
func (ConditionSpec) Kind() domain.NodeKind     { return domain.NodeKindCondition }
func (TransformSpec) Kind() domain.NodeKind     { return domain.NodeKindTransform }
func (ExchangeCallSpec) Kind() domain.NodeKind  { return domain.NodeKindExchangeCall }
func (WebhookSpec) Kind() domain.NodeKind       { return domain.NodeKindWebhook }
func (VariableWriteSpec) Kind() domain.NodeKind { return domain.NodeKindVariableWrite }
func (DelaySpec) Kind() domain.NodeKind         { return domain.NodeKindDelay }
func (NotificationSpec) Kind() domain.NodeKind  { return domain.NodeKindNotification }

func (TriggerSpec) sealed()       {}
func (ConditionSpec) sealed()     {}
func (TransformSpec) sealed()     {}
func (ExchangeCallSpec) sealed()  {}
func (WebhookSpec) sealed()       {}
func (VariableWriteSpec) sealed() {}
func (DelaySpec) sealed()         {}
func (NotificationSpec) sealed()  {}

// Policy — поведение планировщика для узла.
type Policy struct {
	// Optional — ошибка узла не прерывает выполнение: пишется warn,
	// выход узла становится неопределённым.
	// Для webhook по умолчанию true, отключается через "required": true.
	Optional bool

	// Default — значение для неопределённых входов.
	Default    any
	HasDefault bool

	// Sink — выход узла становится результатом выполнения.
	Sink bool

	// Timeout — таймаут внешнего вызова; 0 — таймаут движка.
	Timeout time.Duration
}

// Ключи параметров, общие для всех узлов.
const (
	configOptional   = "optional"
	configRequired   = "required"
	configDefault    = "default"
	configSink       = "sink"
	configTimeoutSec = "timeout_sec"
)

// ParsePolicy разбирает общие параметры узла.
func ParsePolicy(node *domain.Node) Policy {
	cfg := node.Params()
	p := Policy{
		Optional: getBool(cfg, configOptional, false),
		Sink:     getBool(cfg, configSink, false),
		Timeout:  getSeconds(cfg, configTimeoutSec),
	}
	// webhook по умолчанию опционален; required сильнее optional
	if node.Kind() == domain.NodeKindWebhook {
		if _, ok := cfg[configOptional]; !ok {
			p.Optional = true
		}
		if _, ok := cfg[configRequired]; ok {
			p.Optional = !getBool(cfg, configRequired, false)
		}
	}
	if v, ok := cfg[configDefault]; ok {
		p.Default, p.HasDefault = v, true
	}
	return p
}

// defaultTickerVenue — биржа котировок для priceCheck без exchangeId.
const defaultTickerVenue = "binance"

// defaultDelay — пауза delay-узла без параметров.
const defaultDelay = time.Second

// Parse разбирает параметры узла в Spec.
//
// Возвращает *UnknownNodeTypeError для неизвестного типа и
// ErrInvalidConfig для отсутствующих обязательных параметров.
// Значения с шаблонами не вычисляются: это делает Evaluator.
func Parse(node *domain.Node) (Spec, error) {
	kind, ok := domain.ParseNodeKind(node.Type)
	if !ok {
		return nil, &UnknownNodeTypeError{NodeID: node.ID, Type: node.Type}
	}
	cfg := node.Params()

	switch kind {
	case domain.NodeKindTrigger:
		payload := getMap(cfg, "payload")
		if payload == nil {
			payload = map[string]any{}
		}
		return TriggerSpec{Payload: payload, Message: getString(cfg, "message")}, nil

	case domain.NodeKindCondition:
		spec := ConditionSpec{
			Expression: getString(cfg, "expression"),
			Operator:   getString(cfg, "operator"),
		}
		spec.Left, _ = getAny(cfg, "leftValue", "left")
		spec.Right, _ = getAny(cfg, "rightValue", "right")
		if spec.Expression == "" && spec.Left == nil && spec.Right == nil {
			return nil, configError(node.ID, "condition requires expression or leftValue/rightValue")
		}
		if spec.Operator == "" {
			spec.Operator = "=="
		}
		return spec, nil

	case domain.NodeKindTransform:
		spec := TransformSpec{
			Expression: getString(cfg, "expression"),
			Mappings:   getMap(cfg, "mappings"),
		}
		if spec.Expression == "" && len(spec.Mappings) == 0 {
			return nil, configError(node.ID, "transform requires expression or mappings")
		}
		return spec, nil

	case domain.NodeKindExchangeCall:
		return parseExchangeCall(node, cfg)

	case domain.NodeKindWebhook:
		url, _ := getAny(cfg, "url", "webhookUrl")
		if url == nil || url == "" {
			return nil, configError(node.ID, "webhook requires url")
		}
		event, _ := getAny(cfg, "event")
		data, _ := getAny(cfg, "data", "payload")
		return WebhookSpec{
			URL:     url,
			Event:   event,
			Data:    data,
			Secret:  getString(cfg, "secret"),
			Headers: getMapString(cfg, "headers"),
		}, nil

	case domain.NodeKindVariableWrite:
		name := getString(cfg, "variableName", "name")
		if name == "" {
			return nil, configError(node.ID, "variable write requires variableName")
		}
		value, _ := getAny(cfg, "value")
		return VariableWriteSpec{Name: name, Value: value}, nil

	case domain.NodeKindDelay:
		d := defaultDelay
		if ms, ok := getFloat(cfg, "delay"); ok && ms > 0 {
			d = time.Duration(ms * float64(time.Millisecond))
		} else if sec := getSeconds(cfg, "duration_sec"); sec > 0 {
			d = sec
		}
		return DelaySpec{Duration: d}, nil

	case domain.NodeKindNotification:
		msg, _ := getAny(cfg, "message")
		channel := getString(cfg, "channel")
		if channel == "" {
			channel = "console"
		}
		return NotificationSpec{Message: msg, Channel: channel}, nil
	}

	return nil, &UnknownNodeTypeError{NodeID: node.ID, Type: node.Type}
}

// parseExchangeCall разбирает exchangeCall и алиасы priceCheck/placeOrder.
func parseExchangeCall(node *domain.Node, cfg map[string]any) (Spec, error) {
	spec := ExchangeCallSpec{
		ExchangeID:   getString(cfg, "exchangeId", "exchange"),
		ExchangeType: getString(cfg, "exchangeType"),
	}
	spec.Symbol, _ = getAny(cfg, "symbol")
	spec.Side, _ = getAny(cfg, "side")
	spec.OrderType, _ = getAny(cfg, "orderType")
	spec.Amount, _ = getAny(cfg, "amount")
	spec.Price, _ = getAny(cfg, "price")

	switch node.Type {
	case "priceCheck":
		spec.Operation = OperationTicker
	case "placeOrder":
		spec.Operation = OperationOrder
	default:
		op, err := parseOperation(getString(cfg, "operation"))
		if err != nil {
			return nil, configError(node.ID, "%v", err)
		}
		spec.Operation = op
	}

	// Котировки публичны: без exchangeId запрос идёт к бирже ExchangeType без ключей
	if spec.ExchangeID == "" && spec.Operation != OperationTicker {
		return nil, configError(node.ID, "%s requires exchangeId", spec.Operation)
	}
	if spec.ExchangeID == "" && spec.ExchangeType == "" {
		spec.ExchangeType = defaultTickerVenue
	}
	if spec.Operation != OperationBalance && spec.Symbol == nil {
		return nil, configError(node.ID, "%s requires symbol", spec.Operation)
	}
	if spec.Operation == OperationOrder && (spec.Side == nil || spec.Amount == nil) {
		return nil, configError(node.ID, "order requires side and amount")
	}
	return spec, nil
}

// parseOperation сводит имя операции к ExchangeOperation.
func parseOperation(s string) (ExchangeOperation, error) {
	switch strings.ToLower(s) {
	case "ticker", "fetchticker", "price", "pricecheck":
		return OperationTicker, nil
	case "balance", "fetchbalance":
		return OperationBalance, nil
	case "order", "placeorder", "createorder":
		return OperationOrder, nil
	case "":
		return "", errors.New("operation is required")
	}
	return "", fmt.Errorf("unknown operation %q", s)
}
