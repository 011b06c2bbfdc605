package domain

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

// NodeKind — канонический тип узла workflow.
type NodeKind string

const (
	// NodeKindTrigger — точка входа, не имеет входящих рёбер.
	NodeKindTrigger NodeKind = "trigger"

	// NodeKindCondition — ветвление по булеву условию.
	NodeKindCondition NodeKind = "condition"

	// NodeKindTransform — чистое преобразование входных данных.
	NodeKindTransform NodeKind = "transform"

	// NodeKindExchangeCall — вызов биржи (ticker, balance, order).
	NodeKindExchangeCall NodeKind = "exchangeCall"

	// NodeKindWebhook — отправка исходящего webhook.
	NodeKindWebhook NodeKind = "webhook"

	// NodeKindVariableWrite — запись переменной выполнения.
	NodeKindVariableWrite NodeKind = "variableWrite"

	// NodeKindDelay — пауза между шагами.
	NodeKindDelay NodeKind = "delay"

	// NodeKindNotification — сообщение в журнал выполнения.
	NodeKindNotification NodeKind = "notification"
)

// kindAliases — имена типов из редактора, которые сводятся к каноническим.
var kindAliases = map[string]NodeKind{
	"start":       NodeKindTrigger,
	"priceCheck":  NodeKindExchangeCall,
	"placeOrder":  NodeKindExchangeCall,
	"setVariable": NodeKindVariableWrite,
	"message":     NodeKindNotification,
}

// ParseNodeKind сводит тип узла (включая алиасы) к каноническому.
// Второе значение false, если тип неизвестен.
func ParseNodeKind(s string) (NodeKind, bool) {
	if k, ok := kindAliases[s]; ok {
		return k, true
	}
	switch k := NodeKind(s); k {
	case NodeKindTrigger, NodeKindCondition, NodeKindTransform, NodeKindExchangeCall,
		NodeKindWebhook, NodeKindVariableWrite, NodeKindDelay, NodeKindNotification:
		return k, true
	}
	return "", false
}

// Node — узел графа workflow.
//
// ID уникален в пределах flow и не меняется после начала выполнения.
type Node struct {
	// ID — идентификатор узла.
	ID string `json:"id"`

	// Type — тип узла (канонический или алиас, например "priceCheck").
	Type string `json:"type"`

	// Config — параметры узла.
	Config map[string]any `json:"config,omitempty"`

	// Data — параметры узла в формате редактора.
	// Используются, если Config не задан.
	Data map[string]any `json:"data,omitempty"`

	// Position — координаты в редакторе, движком игнорируются.
	Position json.RawMessage `json:"position,omitempty"`
}

// Kind возвращает канонический тип узла.
// Для неизвестного типа возвращает пустую строку.
func (n *Node) Kind() NodeKind {
	k, _ := ParseNodeKind(n.Type)
	return k
}

// IsTrigger возвращает true для trigger-узлов.
func (n *Node) IsTrigger() bool {
	return n.Kind() == NodeKindTrigger
}

// Params возвращает параметры узла: Config, либо Data.
func (n *Node) Params() map[string]any {
	if n.Config != nil {
		return n.Config
	}
	if n.Data != nil {
		return n.Data
	}
	return map[string]any{}
}

// Edge — направленное ребро между узлами.
type Edge struct {
	// ID — идентификатор ребра.
	ID string `json:"id"`

	// Source — ID узла-источника.
	Source string `json:"source"`

	// Target — ID узла-приёмника.
	Target string `json:"target"`

	// SourceHandle — выход источника. Для condition: "true" или "false".
	SourceHandle string `json:"sourceHandle,omitempty"`

	// TargetHandle — имя входа приёмника.
	TargetHandle string `json:"targetHandle,omitempty"`

	// Condition — ветка condition-узла в формате редактора ("true"/"false").
	Condition string `json:"condition,omitempty"`

	// Data — произвольные данные редактора. Поле data.condition
	// учитывается так же, как Condition.
	Data map[string]any `json:"data,omitempty"`
}

// Branch возвращает метку ветки ребра или пустую строку для безусловного ребра.
func (e *Edge) Branch() string {
	if e.SourceHandle != "" {
		return e.SourceHandle
	}
	if e.Condition != "" {
		return e.Condition
	}
	if c, ok := e.Data["condition"].(string); ok {
		return c
	}
	return ""
}

// InputKey возвращает ключ, под которым значение источника
// попадает во входы приёмника.
func (e *Edge) InputKey() string {
	if e.TargetHandle != "" {
		return e.TargetHandle
	}
	return e.Source
}

// ExchangeIntegration — учётные данные подключения к бирже.
//
// Доступны только на чтение во время выполнения и не сохраняются движком.
type ExchangeIntegration struct {
	// ID — идентификатор интеграции, на который ссылаются узлы.
	ID string `json:"id"`

	// ExchangeType — биржа: "binance", "okx", ...
	ExchangeType string `json:"exchangeType"`

	// Name — отображаемое имя.
	Name string `json:"name,omitempty"`

	// APIKey — публичный ключ.
	APIKey string `json:"apiKey"`

	// APISecret — секрет для подписи запросов.
	APISecret string `json:"apiSecret"`

	// Passphrase — дополнительная фраза (OKX).
	Passphrase string `json:"passphrase,omitempty"`

	// IsActive — флаг активности. Nil означает активную интеграцию.
	IsActive *bool `json:"isActive,omitempty"`
}

// Active возвращает true, если интеграцию можно использовать.
func (x *ExchangeIntegration) Active() bool {
	return x.IsActive == nil || *x.IsActive
}

// Flow — сохранённое определение workflow.
//
// Flow хранится в БД и запускается вручную, по webhook или по расписанию.
type Flow struct {
	// ID — уникальный идентификатор flow.
	ID uuid.UUID `json:"id"`

	// Name — имя flow.
	Name string `json:"name"`

	// Description — описание назначения.
	Description string `json:"description,omitempty"`

	// Nodes — узлы графа.
	Nodes []Node `json:"nodes"`

	// Edges — рёбра графа в порядке добавления.
	Edges []Edge `json:"edges"`

	// Variables — начальные переменные выполнения.
	Variables map[string]any `json:"variables,omitempty"`

	// ExchangeIDs — интеграции, которые нужны flow.
	// Учётные данные подставляет исполнитель.
	ExchangeIDs []string `json:"exchange_ids,omitempty"`

	// IsActive — неактивные flows не запускаются по расписанию и webhook.
	IsActive bool `json:"is_active"`

	// CreatedAt — время создания.
	CreatedAt time.Time `json:"created_at"`

	// UpdatedAt — время последнего изменения.
	UpdatedAt time.Time `json:"updated_at"`
}
