package nodes

import (
	"context"
	"fmt"

	"github.com/Crypto-Goatz/jaxrun/internal/engine"
	"github.com/Crypto-Goatz/jaxrun/internal/webhook"
)

// defaultWebhookEvent — событие webhook-узла без параметра event.
const defaultWebhookEvent = "workflow.webhook"

// evalWebhook отправляет исходящий webhook. Выход — HTTP статус ответа.
//
// Без параметра data отправляется основной вход узла.
func (e *Evaluator) evalWebhook(ctx context.Context, nodeID string, s WebhookSpec, ts *engine.Scope) (*Outcome, error) {
	url, err := engine.ResolveString(s.URL, ts)
	if err != nil {
		return nil, err
	}
	if url == "" {
		return nil, configError(nodeID, "webhook url resolved to empty value")
	}

	event, err := engine.ResolveString(s.Event, ts)
	if err != nil {
		return nil, err
	}
	if event == "" {
		event = defaultWebhookEvent
	}

	data := ts.Input
	if s.Data != nil {
		if data, err = engine.Resolve(s.Data, ts); err != nil {
			return nil, err
		}
	}

	headers := make(map[string]string, len(s.Headers))
	for k, v := range s.Headers {
		if headers[k], err = engine.Render(v, ts); err != nil {
			return nil, err
		}
	}

	receipt, err := e.sender.Send(ctx, webhook.Delivery{
		URL:     url,
		Event:   event,
		Data:    data,
		Secret:  s.Secret,
		Headers: headers,
	})
	if err != nil {
		return nil, err
	}

	return &Outcome{
		Value:   receipt.StatusCode,
		Summary: fmt.Sprintf("Webhook sent to %s (status %d)", url, receipt.StatusCode),
	}, nil
}
