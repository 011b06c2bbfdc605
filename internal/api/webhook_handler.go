package api

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/url"

	"github.com/google/uuid"

	"github.com/Crypto-Goatz/jaxrun/internal/domain"
	"github.com/Crypto-Goatz/jaxrun/internal/mq"
	"github.com/Crypto-Goatz/jaxrun/internal/orchestrator"
	"github.com/Crypto-Goatz/jaxrun/internal/webhook"
)

// maxHookBody — предельный размер тела входящего webhook.
const maxHookBody = 1 << 20

// ListWebhooks возвращает подписки. Секреты не возвращаются.
// GET /api/v1/webhooks
func (h *Handler) ListWebhooks(w http.ResponseWriter, r *http.Request) {
	if h.webhooks == nil {
		Unavailable(w, "webhook storage is not configured")
		return
	}

	subs, err := h.webhooks.List(r.Context(), r.URL.Query().Get("active") == "true")
	if HandleRepoError(w, h.logger, err, "") {
		return
	}

	result := make([]WebhookResponse, len(subs))
	for i, s := range subs {
		result[i] = WebhookFromDomain(s)
	}

	List(w, result, len(result))
}

// CreateWebhook создаёт подписку.
// POST /api/v1/webhooks
func (h *Handler) CreateWebhook(w http.ResponseWriter, r *http.Request) {
	if h.webhooks == nil {
		Unavailable(w, "webhook storage is not configured")
		return
	}

	var req CreateWebhookRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		BadRequest(w, "invalid request body")
		return
	}
	if req.Name == "" {
		BadRequest(w, "name is required")
		return
	}
	u, err := url.Parse(req.URL)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		BadRequest(w, "url must be an absolute http(s) URL")
		return
	}

	sub := &domain.WebhookSubscription{
		ID:        uuid.New(),
		Name:      req.Name,
		URL:       req.URL,
		Events:    req.Events,
		Secret:    req.Secret,
		IsActive:  true,
		CreatedAt: h.now().UTC(),
	}

	if HandleRepoError(w, h.logger, h.webhooks.Create(r.Context(), sub), "") {
		return
	}

	Created(w, WebhookFromDomain(*sub))
}

// DeleteWebhook удаляет подписку.
// DELETE /api/v1/webhooks/{id}
func (h *Handler) DeleteWebhook(w http.ResponseWriter, r *http.Request) {
	if h.webhooks == nil {
		Unavailable(w, "webhook storage is not configured")
		return
	}

	id, err := uuid.Parse(r.PathValue("id"))
	if err != nil {
		BadRequest(w, "invalid webhook id")
		return
	}

	if HandleRepoError(w, h.logger, h.webhooks.Delete(r.Context(), id), "webhook not found") {
		return
	}

	NoContent(w)
}

// ReceiveWebhook принимает входящий webhook.
// POST /api/v1/hooks/{event}?flow_id=...
//
// Тело рассылается всем подпискам на событие; ответ отправляется после
// завершения всех доставок. С flow_id активный flow запускается
// с переменной webhook, содержащей тело запроса.
func (h *Handler) ReceiveWebhook(w http.ResponseWriter, r *http.Request) {
	event := r.PathValue("event")

	body, err := io.ReadAll(io.LimitReader(r.Body, maxHookBody))
	if err != nil {
		BadRequest(w, "failed to read body")
		return
	}
	var data any
	if len(body) > 0 {
		if err := json.Unmarshal(body, &data); err != nil {
			BadRequest(w, "body must be JSON")
			return
		}
	}

	var flow *domain.Flow
	if flowID := r.URL.Query().Get("flow_id"); flowID != "" {
		var ok bool
		if flow, ok = h.flowByID(r.Context(), w, flowID); !ok {
			return
		}
		if !flow.IsActive {
			Conflict(w, "flow is not active")
			return
		}
	}

	resp := HookResponse{Event: event, Results: []webhook.Result{}}

	if h.webhooks != nil {
		subs, err := h.webhooks.List(r.Context(), true)
		if HandleRepoError(w, h.logger, err, "") {
			return
		}

		var deliveries []webhook.Delivery
		for i := range subs {
			if !subs[i].Matches(event) {
				continue
			}
			deliveries = append(deliveries, webhook.Delivery{
				URL:    subs[i].URL,
				Event:  event,
				Data:   data,
				Secret: subs[i].Secret,
			})
		}

		if len(deliveries) > 0 {
			resp.Results = h.dispatcher.Broadcast(r.Context(), deliveries)
			resp.Failed = webhook.CountFailed(resp.Results)
			resp.Delivered = len(resp.Results) - resp.Failed
		}
	}

	if flow == nil {
		Success(w, resp)
		return
	}

	payload := mq.FlowTriggeredPayload{
		ExecutionID: orchestrator.NewExecutionID(),
		FlowID:      flow.ID,
		Variables:   map[string]any{"webhook": data, "event": event},
		Source:      mq.SourceWebhook,
	}
	resp.ExecutionID = payload.ExecutionID

	exec, err := h.startFlow(r.Context(), payload)
	if err != nil {
		h.logger.Error("failed to trigger flow from webhook",
			"flow_id", flow.ID,
			"event", event,
			"error", err,
		)
		if errors.Is(err, errNoExecutor) {
			Unavailable(w, err.Error())
			return
		}
		InternalError(w, h.logger, err)
		return
	}

	if exec != nil {
		resp.Execution = &ExecutionSummary{Success: exec.Succeeded(), Status: exec.Status, Error: exec.Error}
		Success(w, resp)
		return
	}
	Accepted(w, resp)
}
