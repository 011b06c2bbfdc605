package api

import (
	"net/http"
)

// RegisterRoutes регистрирует все маршруты API.
func (h *Handler) RegisterRoutes(mux *http.ServeMux) {
	chain := Chain(
		Recovery(h.logger),
		Metrics(h.metrics, "api"),
		Logging(h.logger),
	)
	handle := func(pattern string, fn http.HandlerFunc) {
		mux.Handle(pattern, chain(fn))
	}

	// Executions
	handle("POST /api/v1/executions", h.Execute)
	handle("POST /api/v1/executions/validate", h.Validate)
	handle("GET /api/v1/executions", h.ListExecutions)
	handle("GET /api/v1/executions/{id}", h.GetExecution)

	// Flows
	handle("GET /api/v1/flows", h.ListFlows)
	handle("POST /api/v1/flows", h.CreateFlow)
	handle("GET /api/v1/flows/{id}", h.GetFlow)
	handle("PUT /api/v1/flows/{id}", h.UpdateFlow)
	handle("DELETE /api/v1/flows/{id}", h.DeleteFlow)
	handle("POST /api/v1/flows/{id}/trigger", h.TriggerFlow)

	// Schedules
	handle("GET /api/v1/schedules", h.ListSchedules)
	handle("POST /api/v1/flows/{id}/schedules", h.CreateSchedule)
	handle("GET /api/v1/schedules/{id}", h.GetSchedule)
	handle("DELETE /api/v1/schedules/{id}", h.DeleteSchedule)
	handle("PUT /api/v1/schedules/{id}/enabled", h.SetScheduleEnabled)

	// Webhooks
	handle("GET /api/v1/webhooks", h.ListWebhooks)
	handle("POST /api/v1/webhooks", h.CreateWebhook)
	handle("DELETE /api/v1/webhooks/{id}", h.DeleteWebhook)
	handle("POST /api/v1/hooks/{event}", h.ReceiveWebhook)
}
