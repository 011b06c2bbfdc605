package api

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/google/uuid"

	"github.com/Crypto-Goatz/jaxrun/internal/domain"
	"github.com/Crypto-Goatz/jaxrun/internal/repo"
	"github.com/Crypto-Goatz/jaxrun/internal/scheduler"
)

// ListSchedules возвращает список schedules с фильтрацией.
// GET /api/v1/schedules?flow_id=...&enabled=...&limit=...&offset=...
func (h *Handler) ListSchedules(w http.ResponseWriter, r *http.Request) {
	if h.schedules == nil {
		Unavailable(w, "schedule storage is not configured")
		return
	}

	filter := repo.ScheduleFilter{}

	if flowIDStr := r.URL.Query().Get("flow_id"); flowIDStr != "" {
		flowID, err := uuid.Parse(flowIDStr)
		if err != nil {
			BadRequest(w, "invalid flow_id")
			return
		}
		filter.FlowID = &flowID
	}

	if enabledStr := r.URL.Query().Get("enabled"); enabledStr != "" {
		enabled := enabledStr == "true"
		filter.Enabled = &enabled
	}

	var ok bool
	if filter.Limit, filter.Offset, ok = parsePage(w, r); !ok {
		return
	}

	schedules, err := h.schedules.List(r.Context(), filter)
	if HandleRepoError(w, h.logger, err, "") {
		return
	}
	if schedules == nil {
		schedules = []domain.Schedule{}
	}

	List(w, schedules, len(schedules))
}

// CreateSchedule создаёт новый schedule для flow.
// POST /api/v1/flows/{id}/schedules
func (h *Handler) CreateSchedule(w http.ResponseWriter, r *http.Request) {
	if h.schedules == nil {
		Unavailable(w, "schedule storage is not configured")
		return
	}
	flow, ok := h.loadFlow(w, r)
	if !ok {
		return
	}

	var req CreateScheduleRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		BadRequest(w, "invalid request body")
		return
	}

	if req.CronExpr == "" && req.IntervalSec <= 0 {
		BadRequest(w, "either cron_expr or interval_sec is required")
		return
	}
	if req.CronExpr != "" {
		if err := scheduler.ValidateCronExpr(req.CronExpr); err != nil {
			BadRequest(w, err.Error())
			return
		}
	}

	timezone := req.Timezone
	if timezone == "" {
		timezone = "UTC"
	}
	if _, err := time.LoadLocation(timezone); err != nil {
		BadRequest(w, "invalid timezone")
		return
	}

	now := h.now().UTC()
	schedule := &domain.Schedule{
		ID:          uuid.New(),
		FlowID:      flow.ID,
		Name:        req.Name,
		CronExpr:    req.CronExpr,
		IntervalSec: req.IntervalSec,
		Timezone:    timezone,
		Enabled:     req.Enabled == nil || *req.Enabled,
		Variables:   req.Variables,
		CreatedAt:   now,
		UpdatedAt:   now,
	}

	nextDue, err := scheduler.CalculateNextDue(schedule, now)
	if err != nil {
		BadRequest(w, err.Error())
		return
	}
	schedule.NextDueAt = &nextDue

	if HandleRepoError(w, h.logger, h.schedules.Create(r.Context(), schedule), "") {
		return
	}

	h.logger.Info("schedule created",
		"schedule_id", schedule.ID,
		"flow_id", flow.ID,
		"next_due_at", nextDue,
	)
	Created(w, schedule)
}

// GetSchedule возвращает schedule по ID.
// GET /api/v1/schedules/{id}
func (h *Handler) GetSchedule(w http.ResponseWriter, r *http.Request) {
	id, ok := h.scheduleID(w, r)
	if !ok {
		return
	}

	schedule, err := h.schedules.GetByID(r.Context(), id)
	if HandleRepoError(w, h.logger, err, "schedule not found") {
		return
	}

	Success(w, schedule)
}

// DeleteSchedule удаляет schedule.
// DELETE /api/v1/schedules/{id}
func (h *Handler) DeleteSchedule(w http.ResponseWriter, r *http.Request) {
	id, ok := h.scheduleID(w, r)
	if !ok {
		return
	}

	if HandleRepoError(w, h.logger, h.schedules.Delete(r.Context(), id), "schedule not found") {
		return
	}

	NoContent(w)
}

// SetScheduleEnabled включает или выключает schedule.
// PUT /api/v1/schedules/{id}/enabled
func (h *Handler) SetScheduleEnabled(w http.ResponseWriter, r *http.Request) {
	id, ok := h.scheduleID(w, r)
	if !ok {
		return
	}

	var req SetEnabledRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		BadRequest(w, "invalid request body")
		return
	}

	if HandleRepoError(w, h.logger, h.schedules.SetEnabled(r.Context(), id, req.Enabled), "schedule not found") {
		return
	}

	schedule, err := h.schedules.GetByID(r.Context(), id)
	if HandleRepoError(w, h.logger, err, "schedule not found") {
		return
	}

	Success(w, schedule)
}

func (h *Handler) scheduleID(w http.ResponseWriter, r *http.Request) (uuid.UUID, bool) {
	if h.schedules == nil {
		Unavailable(w, "schedule storage is not configured")
		return uuid.Nil, false
	}
	id, err := uuid.Parse(r.PathValue("id"))
	if err != nil {
		BadRequest(w, "invalid schedule id")
		return uuid.Nil, false
	}
	return id, true
}
