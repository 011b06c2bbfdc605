package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"github.com/google/uuid"

	"github.com/Crypto-Goatz/jaxrun/internal/domain"
	"github.com/Crypto-Goatz/jaxrun/internal/mq"
	"github.com/Crypto-Goatz/jaxrun/internal/orchestrator"
	"github.com/Crypto-Goatz/jaxrun/internal/runner"
)

// ListFlows возвращает список всех flows.
// GET /api/v1/flows
func (h *Handler) ListFlows(w http.ResponseWriter, r *http.Request) {
	if h.flows == nil {
		Unavailable(w, "flow storage is not configured")
		return
	}

	flows, err := h.flows.List(r.Context())
	if HandleRepoError(w, h.logger, err, "") {
		return
	}
	if flows == nil {
		flows = []domain.Flow{}
	}

	List(w, flows, len(flows))
}

// CreateFlow создаёт новый flow.
// POST /api/v1/flows
func (h *Handler) CreateFlow(w http.ResponseWriter, r *http.Request) {
	if h.flows == nil {
		Unavailable(w, "flow storage is not configured")
		return
	}

	var req FlowRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		BadRequest(w, "invalid request body")
		return
	}
	if req.Name == "" {
		BadRequest(w, "name is required")
		return
	}
	if v := orchestrator.Validate(req.Nodes, req.Edges); !v.Valid() {
		InvalidWorkflow(w, v.Errors)
		return
	}

	now := h.now().UTC()
	flow := &domain.Flow{
		ID:        uuid.New(),
		CreatedAt: now,
		UpdatedAt: now,
	}
	req.apply(flow)

	if HandleRepoError(w, h.logger, h.flows.Create(r.Context(), flow), "") {
		return
	}

	h.logger.Info("flow created", "flow_id", flow.ID, "name", flow.Name, "nodes", len(flow.Nodes))
	Created(w, flow)
}

// GetFlow возвращает flow по ID.
// GET /api/v1/flows/{id}
func (h *Handler) GetFlow(w http.ResponseWriter, r *http.Request) {
	flow, ok := h.loadFlow(w, r)
	if !ok {
		return
	}
	Success(w, flow)
}

// UpdateFlow заменяет определение flow.
// PUT /api/v1/flows/{id}
func (h *Handler) UpdateFlow(w http.ResponseWriter, r *http.Request) {
	flow, ok := h.loadFlow(w, r)
	if !ok {
		return
	}

	var req FlowRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		BadRequest(w, "invalid request body")
		return
	}
	if req.Name == "" {
		req.Name = flow.Name
	}
	if v := orchestrator.Validate(req.Nodes, req.Edges); !v.Valid() {
		InvalidWorkflow(w, v.Errors)
		return
	}

	req.apply(flow)
	flow.UpdatedAt = h.now().UTC()

	if HandleRepoError(w, h.logger, h.flows.Update(r.Context(), flow), "flow not found") {
		return
	}

	Success(w, flow)
}

// DeleteFlow удаляет flow. История выполнений сохраняется.
// DELETE /api/v1/flows/{id}
func (h *Handler) DeleteFlow(w http.ResponseWriter, r *http.Request) {
	if h.flows == nil {
		Unavailable(w, "flow storage is not configured")
		return
	}

	id, err := uuid.Parse(r.PathValue("id"))
	if err != nil {
		BadRequest(w, "invalid flow id")
		return
	}

	if HandleRepoError(w, h.logger, h.flows.Delete(r.Context(), id), "flow not found") {
		return
	}

	NoContent(w)
}

// TriggerFlow запускает сохранённый flow вручную.
// POST /api/v1/flows/{id}/trigger
//
// С брокером flow ставится в очередь (202), без него выполняется
// синхронно и ответ содержит итог выполнения.
func (h *Handler) TriggerFlow(w http.ResponseWriter, r *http.Request) {
	flow, ok := h.loadFlow(w, r)
	if !ok {
		return
	}

	var req TriggerFlowRequest
	if r.ContentLength != 0 {
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			BadRequest(w, "invalid request body")
			return
		}
	}

	payload := mq.FlowTriggeredPayload{
		ExecutionID: orchestrator.NewExecutionID(),
		FlowID:      flow.ID,
		Variables:   req.Variables,
		Source:      mq.SourceManual,
	}
	exec, err := h.startFlow(r.Context(), payload)
	switch {
	case errors.Is(err, runner.ErrFlowNotFound):
		NotFound(w, "flow not found")
	case errors.Is(err, runner.ErrFlowInactive):
		Conflict(w, "flow is not active")
	case errors.Is(err, errNoExecutor):
		Unavailable(w, err.Error())
	case err != nil:
		InternalError(w, h.logger, err)
	case exec == nil:
		Accepted(w, TriggerResponse{
			ExecutionID: payload.ExecutionID,
			FlowID:      payload.FlowID.String(),
			Status:      string(domain.RunStatusPending),
		})
	default:
		Success(w, exec.Result())
	}
}

// errNoExecutor — нет ни брокера, ни синхронного исполнителя.
var errNoExecutor = errors.New("no executor is configured")

// startFlow ставит flow в очередь либо выполняет его синхронно.
// Для поставленного в очередь flow возвращает nil отчёт.
func (h *Handler) startFlow(ctx context.Context, payload mq.FlowTriggeredPayload) (*domain.Execution, error) {
	switch {
	case h.publisher != nil:
		if err := h.publisher.PublishFlowTriggered(ctx, payload); err != nil {
			return nil, err
		}
		h.logger.Info("flow queued",
			"flow_id", payload.FlowID,
			"execution_id", payload.ExecutionID,
			"source", payload.Source,
		)
		return nil, nil
	case h.runner != nil:
		return h.runner.HandleTrigger(ctx, payload)
	default:
		return nil, errNoExecutor
	}
}

// loadFlow читает {id} из пути и загружает flow.
// При ошибке ответ уже отправлен.
func (h *Handler) loadFlow(w http.ResponseWriter, r *http.Request) (*domain.Flow, bool) {
	return h.flowByID(r.Context(), w, r.PathValue("id"))
}

func (h *Handler) flowByID(ctx context.Context, w http.ResponseWriter, rawID string) (*domain.Flow, bool) {
	if h.flows == nil {
		Unavailable(w, "flow storage is not configured")
		return nil, false
	}

	id, err := uuid.Parse(rawID)
	if err != nil {
		BadRequest(w, "invalid flow id")
		return nil, false
	}

	flow, err := h.flows.GetByID(ctx, id)
	if HandleRepoError(w, h.logger, err, "flow not found") {
		return nil, false
	}
	return flow, true
}
