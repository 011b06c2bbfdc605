package domain

import (
	"slices"
	"time"

	"github.com/google/uuid"
)

// WebhookSubscription — подписка внешней системы на события jaxrun.
//
// Входящий webhook рассылается всем активным подпискам,
// у которых событие входит в Events (пустой список — все события).
type WebhookSubscription struct {
	// ID — идентификатор подписки.
	ID uuid.UUID `json:"id"`

	// Name — имя для отображения.
	Name string `json:"name"`

	// URL — адрес доставки.
	URL string `json:"url"`

	// Events — события, на которые оформлена подписка.
	Events []string `json:"events,omitempty"`

	// Secret — общий секрет для подписи тела запроса.
	Secret string `json:"secret,omitempty"`

	// IsActive — флаг активности.
	IsActive bool `json:"is_active"`

	CreatedAt time.Time `json:"created_at"`
}

// Matches проверяет, нужно ли доставлять событие этой подписке.
func (s *WebhookSubscription) Matches(event string) bool {
	if !s.IsActive {
		return false
	}
	return len(s.Events) == 0 || slices.Contains(s.Events, event)
}
