package handlers

import (
	"errors"
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/lifeleveling/lifeleveling/internal/domain"
	res "github.com/lifeleveling/lifeleveling/pkg/http"
)

// ReminderScheduler arms and cancels reminder alarms.
type ReminderScheduler interface {
	Schedule(r domain.Reminder) error
	Cancel(reminderID string)
}

type ReminderHandler struct {
	scheduler ReminderScheduler
}

func NewReminderHandler(s ReminderScheduler) *ReminderHandler { return &ReminderHandler{scheduler: s} }

func (h *ReminderHandler) Schedule(c echo.Context) error {
	r := new(domain.Reminder)
	if err := c.Bind(r); err != nil || r.ID == "" {
		return badRequest(c)
	}
	if err := h.scheduler.Schedule(*r); err != nil {
		if errors.Is(err, domain.ErrMissingDueDate) {
			return res.ErrorJSON(c, http.StatusUnprocessableEntity, "missing_due_date", err.Error(), nil)
		}
		return res.ErrorJSON(c, http.StatusInternalServerError, "schedule_failed", err.Error(), nil)
	}
	return res.JSON(c, http.StatusAccepted, map[string]interface{}{
		"reminder_id":  r.ID,
		"request_code": domain.RequestCode(r.ID),
		"due_at":       r.DueAt,
	})
}

func (h *ReminderHandler) Cancel(c echo.Context) error {
	h.scheduler.Cancel(c.Param("id"))
	return c.NoContent(http.StatusNoContent)
}
