package api

import (
	"context"
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/Crypto-Goatz/jaxrun/internal/domain"
	"github.com/Crypto-Goatz/jaxrun/internal/orchestrator"
	"github.com/Crypto-Goatz/jaxrun/internal/repo"
)

const (
	defaultListLimit = 50
	maxListLimit     = 500
)

// Execute выполняет workflow из тела запроса и возвращает итог.
// POST /api/v1/executions
//
// Ответ всегда 200 для разобранного запроса: невалидный граф,
// упавший узел и отмена отражаются в success/error итога.
func (h *Handler) Execute(w http.ResponseWriter, r *http.Request) {
	var inv orchestrator.Invocation
	if err := json.NewDecoder(r.Body).Decode(&inv); err != nil {
		BadRequest(w, "invalid request body")
		return
	}

	exec := h.engine.Execute(r.Context(), inv)

	if h.executions != nil {
		// история сохраняется и если клиент отключился
		if err := h.executions.Save(context.WithoutCancel(r.Context()), exec); err != nil {
			h.logger.Warn("failed to save execution", "execution_id", exec.ID, "error", err)
		}
	}

	JSON(w, http.StatusOK, exec.Result())
}

// Validate проверяет workflow без выполнения.
// POST /api/v1/executions/validate
func (h *Handler) Validate(w http.ResponseWriter, r *http.Request) {
	var req ValidateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		BadRequest(w, "invalid request body")
		return
	}

	v := orchestrator.Validate(req.Nodes, req.Edges)
	if !v.Valid() {
		InvalidWorkflow(w, v.Errors)
		return
	}
	Success(w, v)
}

// ListExecutions возвращает историю выполнений.
// GET /api/v1/executions?flow_id=...&status=...&limit=...&offset=...
func (h *Handler) ListExecutions(w http.ResponseWriter, r *http.Request) {
	if h.executions == nil {
		Unavailable(w, "execution storage is not configured")
		return
	}

	q := r.URL.Query()
	filter := repo.ExecutionFilter{
		FlowID: q.Get("flow_id"),
	}
	if s := q.Get("status"); s != "" {
		filter.Status = domain.ParseRunStatus(s)
		if filter.Status == domain.RunStatusPending && s != string(domain.RunStatusPending) {
			BadRequest(w, "invalid status")
			return
		}
	}

	var ok bool
	if filter.Limit, filter.Offset, ok = parsePage(w, r); !ok {
		return
	}

	execs, err := h.executions.List(r.Context(), filter)
	if HandleRepoError(w, h.logger, err, "") {
		return
	}
	if execs == nil {
		execs = []domain.Execution{}
	}

	List(w, execs, len(execs))
}

// GetExecution возвращает полный отчёт о выполнении.
// GET /api/v1/executions/{id}
func (h *Handler) GetExecution(w http.ResponseWriter, r *http.Request) {
	if h.executions == nil {
		Unavailable(w, "execution storage is not configured")
		return
	}

	exec, err := h.executions.GetByID(r.Context(), r.PathValue("id"))
	if HandleRepoError(w, h.logger, err, "execution not found") {
		return
	}

	Success(w, exec)
}

// parsePage читает limit и offset из query.
// При ошибке ответ уже отправлен.
func parsePage(w http.ResponseWriter, r *http.Request) (limit, offset int, ok bool) {
	limit = defaultListLimit
	if s := r.URL.Query().Get("limit"); s != "" {
		n, err := strconv.Atoi(s)
		if err != nil || n <= 0 {
			BadRequest(w, "invalid limit")
			return 0, 0, false
		}
		limit = min(n, maxListLimit)
	}
	if s := r.URL.Query().Get("offset"); s != "" {
		n, err := strconv.Atoi(s)
		if err != nil || n < 0 {
			BadRequest(w, "invalid offset")
			return 0, 0, false
		}
		offset = n
	}
	return limit, offset, true
}
