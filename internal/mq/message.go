package mq

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/Crypto-Goatz/jaxrun/internal/domain"
)

// MessageType — тип сообщения в очереди.
type MessageType string

// Типы сообщений.
const (
	MessageTypeFlowTriggered      MessageType = "flow.triggered"
	MessageTypeExecutionCompleted MessageType = "execution.completed"
)

// Источники запуска flow.
const (
	SourceManual   = "manual"
	SourceSchedule = "schedule"
	SourceWebhook  = "webhook"
)

// Message — конверт сообщения.
type Message struct {
	ID        string          `json:"id"`
	Type      MessageType     `json:"type"`
	Payload   json.RawMessage `json:"payload"`
	Timestamp time.Time       `json:"timestamp"`
}

// NewMessage упаковывает payload в конверт.
func NewMessage(t MessageType, payload any, now time.Time) (*Message, error) {
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("marshal payload: %w", err)
	}
	return &Message{
		ID:        uuid.NewString(),
		Type:      t,
		Payload:   body,
		Timestamp: now,
	}, nil
}

// FlowTriggeredPayload — запрос на выполнение сохранённого flow.
//
// ExecutionID выдаётся отправителем, чтобы повторная доставка
// не создавала второе выполнение.
type FlowTriggeredPayload struct {
	ExecutionID string         `json:"execution_id"`
	FlowID      uuid.UUID      `json:"flow_id"`
	Variables   map[string]any `json:"variables,omitempty"`
	Source      string         `json:"source"`
}

// ExecutionCompletedPayload — итог выполнения.
type ExecutionCompletedPayload struct {
	ExecutionID string           `json:"execution_id"`
	FlowID      string           `json:"flow_id"`
	Status      domain.RunStatus `json:"status"`
	Error       string           `json:"error,omitempty"`
	DurationMs  int64            `json:"duration_ms"`
}

// CompletedFrom собирает payload из отчёта о выполнении.
func CompletedFrom(exec *domain.Execution) ExecutionCompletedPayload {
	return ExecutionCompletedPayload{
		ExecutionID: exec.ID,
		FlowID:      exec.FlowID,
		Status:      exec.Status,
		Error:       exec.Error,
		DurationMs:  exec.Duration().Milliseconds(),
	}
}

// ParsePayload декодирует payload сообщения в T.
func ParsePayload[T any](msg *Message) (T, error) {
	var result T
	if err := json.Unmarshal(msg.Payload, &result); err != nil {
		return result, fmt.Errorf("unmarshal %s payload: %w", msg.Type, err)
	}
	return result, nil
}
