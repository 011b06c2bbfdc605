package api

import (
	"github.com/Crypto-Goatz/jaxrun/internal/domain"
	"github.com/Crypto-Goatz/jaxrun/internal/webhook"
)

// Flow DTOs

// FlowRequest — запрос на создание или замену flow.
type FlowRequest struct {
	Name        string         `json:"name"`
	Description string         `json:"description,omitempty"`
	Nodes       []domain.Node  `json:"nodes"`
	Edges       []domain.Edge  `json:"edges"`
	Variables   map[string]any `json:"variables,omitempty"`
	ExchangeIDs []string       `json:"exchange_ids,omitempty"`
	IsActive    *bool          `json:"is_active,omitempty"`
}

// apply переносит поля запроса во flow. IsActive по умолчанию true.
func (r *FlowRequest) apply(f *domain.Flow) {
	f.Name = r.Name
	f.Description = r.Description
	f.Nodes = r.Nodes
	f.Edges = r.Edges
	f.Variables = r.Variables
	f.ExchangeIDs = r.ExchangeIDs
	f.IsActive = r.IsActive == nil || *r.IsActive
}

// TriggerFlowRequest — запрос на запуск сохранённого flow.
type TriggerFlowRequest struct {
	Variables map[string]any `json:"variables,omitempty"`
}

// TriggerResponse — ответ на постановку flow в очередь.
type TriggerResponse struct {
	ExecutionID string `json:"execution_id"`
	FlowID      string `json:"flow_id"`
	Status      string `json:"status"`
}

// Execution DTOs

// ValidateRequest — запрос на проверку workflow без выполнения.
type ValidateRequest struct {
	Nodes []domain.Node `json:"nodes"`
	Edges []domain.Edge `json:"edges"`
}

// Schedule DTOs

// CreateScheduleRequest — запрос на создание schedule.
type CreateScheduleRequest struct {
	Name        string         `json:"name,omitempty"`
	CronExpr    string         `json:"cron_expr,omitempty"`
	IntervalSec int            `json:"interval_sec,omitempty"`
	Timezone    string         `json:"timezone,omitempty"`
	Variables   map[string]any `json:"variables,omitempty"`
	Enabled     *bool          `json:"enabled,omitempty"`
}

// SetEnabledRequest — включение или выключение schedule.
type SetEnabledRequest struct {
	Enabled bool `json:"enabled"`
}

// Webhook DTOs

// CreateWebhookRequest — запрос на создание подписки.
type CreateWebhookRequest struct {
	Name   string   `json:"name"`
	URL    string   `json:"url"`
	Events []string `json:"events,omitempty"`
	Secret string   `json:"secret,omitempty"`
}

// WebhookResponse — подписка без секрета.
type WebhookResponse struct {
	domain.WebhookSubscription
	Secret string `json:"secret,omitempty"`
}

// WebhookFromDomain скрывает секрет подписки.
func WebhookFromDomain(s domain.WebhookSubscription) WebhookResponse {
	return WebhookResponse{WebhookSubscription: s}
}

// HookResponse — итог рассылки входящего webhook.
type HookResponse struct {
	Event       string            `json:"event"`
	Delivered   int               `json:"delivered"`
	Failed      int               `json:"failed"`
	ExecutionID string            `json:"execution_id,omitempty"`
	Execution   *ExecutionSummary `json:"execution,omitempty"`
	Results     []webhook.Result  `json:"results"`
}

// ExecutionSummary — итог синхронно выполненного flow.
type ExecutionSummary struct {
	Success bool             `json:"success"`
	Status  domain.RunStatus `json:"status"`
	Error   string           `json:"error,omitempty"`
}
